package artifacts

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
)

const counterABI = `[
  {"type":"constructor","inputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"initialize","inputs":[{"name":"start","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
  {"type":"function","name":"count","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
]`

func newTestRepository(t *testing.T, dir string) *Repository {
	t.Helper()
	cfg := &config.RuntimeConfig{Deployment: config.DeploymentConfig{BuildDir: dir}}
	return NewRepository(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeArtifact(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestRepository_LoadTruffleArtifact(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, filepath.Join(dir, "Counter.json"), `{
		"contractName": "Counter",
		"abi": `+counterABI+`,
		"bytecode": "0x6080604052",
		"metadata": "{\"compiler\":{\"version\":\"0.5.0\"}}"
	}`)

	artifact, err := newTestRepository(t, dir).Load(context.Background(), "Counter")
	require.NoError(t, err)

	assert.Equal(t, "Counter", artifact.Name)
	assert.Equal(t, []byte{0x60, 0x80, 0x60, 0x40, 0x52}, artifact.Bytecode)
	assert.Contains(t, artifact.ABI.Methods, "count")
	assert.Empty(t, artifact.ConstructorInputs())

	init, ok := artifact.Initializer()
	require.True(t, ok)
	assert.Equal(t, "initialize", init.RawName)
	assert.Len(t, init.Inputs, 1)
}

func TestRepository_LoadFoundryArtifact(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, filepath.Join(dir, "Counter.sol", "CounterV2.json"), `{
		"abi": `+counterABI+`,
		"bytecode": {"object": "0x6001", "sourceMap": "", "linkReferences": {}},
		"metadata": {"settings": {"compilationTarget": {"src/Counter.sol": "CounterV2"}}}
	}`)

	artifact, err := newTestRepository(t, dir).Load(context.Background(), "CounterV2")
	require.NoError(t, err)
	assert.Equal(t, "CounterV2", artifact.Name)
	assert.Equal(t, []byte{0x60, 0x01}, artifact.Bytecode)
	assert.Equal(t, filepath.Join(dir, "Counter.sol", "CounterV2.json"), artifact.Path)
}

func TestRepository_LoadNotFoundSuggests(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, filepath.Join(dir, "Counter.json"), `{"contractName":"Counter","abi":[],"bytecode":"0x00"}`)
	writeArtifact(t, filepath.Join(dir, "Token.sol", "Token.json"), `{"abi":[],"bytecode":{"object":"0x00"}}`)

	_, err := newTestRepository(t, dir).Load(context.Background(), "Countr")
	require.Error(t, err)

	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "artifact", nf.Kind)
	assert.Equal(t, "Countr", nf.Name)
	assert.Contains(t, nf.Suggestions, "Counter")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_LoadMissingBuildDir(t *testing.T) {
	_, err := newTestRepository(t, filepath.Join(t.TempDir(), "build")).Load(context.Background(), "Counter")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRepository_List(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, filepath.Join(dir, "B.json"), `{}`)
	writeArtifact(t, filepath.Join(dir, "A.sol", "A.json"), `{}`)
	writeArtifact(t, filepath.Join(dir, "build-info", "abc123.json"), `{}`)

	names, err := newTestRepository(t, dir).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, names)
}

func TestParseArtifact_Errors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		reason string
	}{
		{"invalid json", `{"abi": [`, "invalid artifact JSON"},
		{"missing abi", `{"contractName":"X","bytecode":"0x6001"}`, "missing abi"},
		{"invalid abi", `{"abi":[{"type":"function","name":"f","inputs":[{"type":"uint7"}]}],"bytecode":"0x6001"}`, "invalid abi"},
		{"invalid constructor type", `{"abi":[{"type":"constructor","inputs":[{"name":"x","type":"int264"}]}],"bytecode":"0x6001"}`, "invalid abi"},
		{"invalid nested output type", `{"abi":[{"type":"function","name":"g","inputs":[],"outputs":[{"type":"uint12[]"}]}],"bytecode":"0x6001"}`, "invalid abi"},
		{"missing bytecode", `{"abi":[]}`, "empty bytecode"},
		{"empty bytecode", `{"abi":[],"bytecode":"0x"}`, "empty bytecode"},
		{"empty foundry bytecode", `{"abi":[],"bytecode":{"object":"0x"}}`, "empty bytecode"},
		{"non hex bytecode", `{"abi":[],"bytecode":"0xzz"}`, "not valid hex"},
		{"odd length bytecode", `{"abi":[],"bytecode":"0x600"}`, "not valid hex"},
		{"bytecode wrong type", `{"abi":[],"bytecode":42}`, "invalid bytecode"},
		{"unlinked library", `{"abi":[],"bytecode":"0x6080__$1234567890abcdef1234567890abcdef12$__6000"}`, "unlinked library"},
		{"legacy unlinked library", `{"abi":[],"bytecode":"0x6080__SafeMath______________________________6000"}`, "unlinked library"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseArtifact("X.json", []byte(tt.data), "X")
			require.Error(t, err)

			var parseErr *domain.ParseError
			require.ErrorAs(t, err, &parseErr)
			assert.Equal(t, "X.json", parseErr.Path)
			assert.Contains(t, parseErr.Error(), tt.reason)
		})
	}
}

func TestParseArtifact_BytecodeWithoutPrefix(t *testing.T) {
	artifact, err := ParseArtifact("X.json", []byte(`{"abi":[],"bytecode":"6001"}`), "X")
	require.NoError(t, err)
	assert.Equal(t, "X", artifact.Name)
	assert.Equal(t, []byte{0x60, 0x01}, artifact.Bytecode)
}
