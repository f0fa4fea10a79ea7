package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
)

// ProxyRenderer renders detailed information about a single proxy
type ProxyRenderer struct {
	out  io.Writer
	json bool
}

// NewProxyRenderer creates a new proxy renderer
func NewProxyRenderer(out io.Writer, json bool) *ProxyRenderer {
	return &ProxyRenderer{out: out, json: json}
}

// Render renders detailed proxy information
func (r *ProxyRenderer) Render(rec *models.ProxyRecord) error {
	if r.json {
		return writeStructured(r.out, FormatJSON, newProxyView(rec))
	}

	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Proxy: %s\n", rec.ContractName)
	fmt.Fprintln(r.out, strings.Repeat("=", 60))
	fmt.Fprintf(r.out, "  Address:        %s\n", addressStyle.Sprint(rec.Address.Hex()))
	fmt.Fprintf(r.out, "  Implementation: %s\n", addressOrDash(rec.Implementation))
	fmt.Fprintf(r.out, "  Kind:           %s\n", kindStyle.Sprint(kindTitle(string(rec.Kind))))
	fmt.Fprintf(r.out, "  Admin:          %s\n", addressOrDash(rec.Admin))
	fmt.Fprintf(r.out, "  Last deployed:  %s\n", timestampStyle.Sprint(timeOrDash(rec.LastDeployedAt)))

	if len(rec.Extra) > 0 {
		fmt.Fprintln(r.out)
		sectionHeaderStyle.Fprintln(r.out, "Other fields:")
		keys := lo.Keys(rec.Extra)
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(r.out, "  %s: %s\n", k, string(rec.Extra[k]))
		}
	}
	return nil
}

// DeployResultRenderer renders the outcome of a deploy or upgrade
type DeployResultRenderer struct {
	out  io.Writer
	json bool
}

// NewDeployResultRenderer creates a new deploy result renderer
func NewDeployResultRenderer(out io.Writer, json bool) *DeployResultRenderer {
	return &DeployResultRenderer{out: out, json: json}
}

// Render renders the deploy result
func (r *DeployResultRenderer) Render(result *models.DeployResult) error {
	if r.json {
		return writeStructured(r.out, FormatJSON, result)
	}

	if result.IsNewProxy {
		fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Deployed %s behind a new %s proxy", result.ContractName, result.Kind)))
	} else {
		fmt.Fprintln(r.out, FormatSuccess(fmt.Sprintf("Upgraded %s", result.ContractName)))
	}
	fmt.Fprintln(r.out)
	fmt.Fprintf(r.out, "  Proxy:             %s\n", addressStyle.Sprint(result.ContractAddress.Hex()))
	fmt.Fprintf(r.out, "  Implementation:    %s\n", result.ImplementationAddress.Hex())
	fmt.Fprintf(r.out, "  Implementation tx: %s\n", implStyle.Sprint(result.TransactionHash.Hex()))
	label := "Proxy tx:"
	if !result.IsNewProxy {
		label = "Upgrade tx:"
	}
	fmt.Fprintf(r.out, "  %-18s %s\n", label, implStyle.Sprint(result.ProxyTransactionHash.Hex()))
	fmt.Fprintf(r.out, "  Signer:            %s\n", result.SignerAddress.Hex())
	if result.Reinitialized {
		fmt.Fprintf(r.out, "  %s\n", kindStyle.Sprint("Initializer called during upgrade"))
	}
	return nil
}

var (
	_ Renderer[*models.ProxyRecord]  = (*ProxyRenderer)(nil)
	_ Renderer[*models.DeployResult] = (*DeployResultRenderer)(nil)
)
