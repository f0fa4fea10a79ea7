package render

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// ConfigRenderer renders config-related output
type ConfigRenderer struct {
	out  io.Writer
	json bool
}

// NewConfigRenderer creates a new config renderer
func NewConfigRenderer(out io.Writer, json bool) *ConfigRenderer {
	return &ConfigRenderer{out: out, json: json}
}

// getRelativePath returns the relative path from current directory
func getRelativePath(path string) string {
	cwd, err := os.Getwd()
	if err != nil {
		return path
	}

	relPath, err := filepath.Rel(cwd, path)
	if err != nil {
		return path
	}

	return relPath
}

// Render renders the configuration display
func (r *ConfigRenderer) Render(result *usecase.ShowConfigResult) error {
	if r.json {
		return writeStructured(r.out, FormatJSON, result)
	}

	fmt.Fprintln(r.out, "📋 Current config:")

	network := "(not set)"
	switch {
	case result.NetworkName != "":
		network = result.NetworkName
	case result.NodeURL != "":
		network = result.NodeURL
	}
	fmt.Fprintf(r.out, "Network:         %s\n", network)

	signer := "(no private key)"
	if result.Signer != nil {
		signer = result.Signer.Hex()
	}
	fmt.Fprintf(r.out, "Signer:          %s\n", signer)
	fmt.Fprintf(r.out, "Proxy kind:      %s\n", kindTitle(string(result.ProxyKind)))
	if result.FactoryAddress != nil {
		fmt.Fprintf(r.out, "Factory:         %s\n", result.FactoryAddress.Hex())
	} else {
		fmt.Fprintf(r.out, "Proxy artifact:  %s\n", result.ProxyArtifact)
	}
	if result.Admin != nil {
		fmt.Fprintf(r.out, "Admin:           %s\n", result.Admin.Hex())
	}
	fmt.Fprintf(r.out, "Confirmations:   timeout %s, %d submission attempt(s)\n", result.ConfirmationTimeout, result.RetryAttempts)
	fmt.Fprintf(r.out, "Build dir:       %s\n", getRelativePath(result.BuildDir))
	fmt.Fprintf(r.out, "Registry:        %s\n", getRelativePath(result.RegistryPath))

	if result.ConfigExists {
		fmt.Fprintf(r.out, "\n📁 config file: %s\n", getRelativePath(result.ConfigPath))
	} else {
		fmt.Fprintln(r.out, "\n📁 no .treb/config.local.json; using flags, environment and defaults")
	}
	return nil
}

var _ Renderer[*usecase.ShowConfigResult] = (*ConfigRenderer)(nil)
