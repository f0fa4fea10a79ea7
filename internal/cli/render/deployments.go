package render

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// proxyView is the serialized form of a registry record
type proxyView struct {
	Contract       string `json:"contract" yaml:"contract"`
	Address        string `json:"address" yaml:"address"`
	Implementation string `json:"implementation,omitempty" yaml:"implementation,omitempty"`
	Kind           string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Admin          string `json:"admin,omitempty" yaml:"admin,omitempty"`
	LastDeployedAt string `json:"lastDeployedAt,omitempty" yaml:"lastDeployedAt,omitempty"`
}

func newProxyView(rec *models.ProxyRecord) proxyView {
	v := proxyView{
		Contract: rec.ContractName,
		Address:  rec.Address.Hex(),
		Kind:     string(rec.Kind),
	}
	if addr := addressOrDash(rec.Implementation); addr != "-" {
		v.Implementation = addr
	}
	if addr := addressOrDash(rec.Admin); addr != "-" {
		v.Admin = addr
	}
	if ts := timeOrDash(rec.LastDeployedAt); ts != "-" {
		v.LastDeployedAt = ts
	}
	return v
}

// ProxiesRenderer renders the proxy list
type ProxiesRenderer struct {
	out    io.Writer
	format Format
}

// NewProxiesRenderer creates a new proxies renderer
func NewProxiesRenderer(out io.Writer, format Format) *ProxiesRenderer {
	return &ProxiesRenderer{out: out, format: format}
}

// Render writes the proxies in the configured format
func (r *ProxiesRenderer) Render(result *usecase.ProxyListResult) error {
	if r.format != FormatTable {
		return writeStructured(r.out, r.format, lo.Map(result.Proxies, func(rec *models.ProxyRecord, _ int) proxyView {
			return newProxyView(rec)
		}))
	}

	if len(result.Proxies) == 0 {
		if result.Total == 0 {
			fmt.Fprintf(r.out, "No proxies recorded in %s\n", result.RegistryPath)
		} else {
			fmt.Fprintf(r.out, "No proxies match (%d recorded)\n", result.Total)
		}
		return nil
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.DrawBorder = false
	t.Style().Options.SeparateColumns = false
	t.Style().Options.SeparateHeader = true
	t.AppendHeader(table.Row{"Contract", "Proxy", "Implementation", "Kind", "Last Deployed"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft},
		{Number: 4, Align: text.AlignLeft},
	})

	for _, rec := range result.Proxies {
		t.AppendRow(table.Row{
			contractStyle.Sprint(rec.ContractName),
			addressStyle.Sprint(rec.Address.Hex()),
			implStyle.Sprint(addressOrDash(rec.Implementation)),
			kindStyle.Sprint(kindTitle(string(rec.Kind))),
			timestampStyle.Sprint(timeOrDash(rec.LastDeployedAt)),
		})
	}

	fmt.Fprintln(r.out, t.Render())
	if len(result.Proxies) != result.Total {
		fmt.Fprintf(r.out, "\n%d of %d proxies shown\n", len(result.Proxies), result.Total)
	}
	return nil
}

var _ Renderer[*usecase.ProxyListResult] = (*ProxiesRenderer)(nil)
