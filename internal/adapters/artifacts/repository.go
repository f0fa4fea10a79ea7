package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/samber/lo"
	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// Solidity library placeholders: "__$<34 hex>$__" (solc >= 0.5) and "__Name_____" (older)
var linkPlaceholder = regexp.MustCompile(`__\$[0-9a-fA-F]{34}\$__|__[A-Za-z0-9_.:/]{1,36}__`)

// Repository loads compiled artifacts from a build directory. It reads the
// flat truffle/etherlime layout (<dir>/<Name>.json) and the Foundry layout
// (<dir>/<Source>.sol/<Name>.json). It never invokes a compiler.
type Repository struct {
	buildDir string
	log      *slog.Logger
}

// NewRepository creates an artifact repository for the configured build directory
func NewRepository(cfg *config.RuntimeConfig, log *slog.Logger) *Repository {
	return &Repository{
		buildDir: cfg.Deployment.BuildDir,
		log:      log.With("component", "artifacts"),
	}
}

// Load reads the artifact for contractName
func (r *Repository) Load(ctx context.Context, contractName string) (*models.ContractArtifact, error) {
	path, err := r.find(contractName)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	artifact, err := ParseArtifact(path, data, contractName)
	if err != nil {
		return nil, err
	}
	r.log.Debug("loaded artifact", "contract", artifact.Name, "path", path, "bytecode_size", len(artifact.Bytecode))
	return artifact, nil
}

// List returns the names of all artifacts in the build directory
func (r *Repository) List(ctx context.Context) ([]string, error) {
	var names []string
	err := filepath.WalkDir(r.buildDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != r.buildDir && (d.Name() == "build-info" || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == ".json" {
			names = append(names, strings.TrimSuffix(d.Name(), ".json"))
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan build directory %s: %w", r.buildDir, err)
	}

	names = lo.Uniq(names)
	slices.Sort(names)
	return names, nil
}

// find resolves the artifact path for name, preferring the flat layout
func (r *Repository) find(name string) (string, error) {
	flat := filepath.Join(r.buildDir, name+".json")
	if fileExists(flat) {
		return flat, nil
	}

	// Foundry usually places <Name>.json under <Name>.sol, try that before globbing
	direct := filepath.Join(r.buildDir, name+".sol", name+".json")
	if fileExists(direct) {
		return direct, nil
	}

	matches, err := filepath.Glob(filepath.Join(r.buildDir, "*.sol", name+".json"))
	if err != nil {
		return "", fmt.Errorf("failed to search build directory: %w", err)
	}
	switch len(matches) {
	case 0:
	case 1:
		return matches[0], nil
	default:
		slices.Sort(matches)
		return "", &domain.ConfigError{
			Field:  "contract",
			Reason: fmt.Sprintf("%s is ambiguous, found %s", name, strings.Join(matches, ", ")),
		}
	}

	available, _ := r.List(context.Background())
	return "", &domain.NotFoundError{
		Kind:        "artifact",
		Name:        name,
		Path:        r.buildDir,
		Suggestions: domain.Suggest(name, available),
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// ParseArtifact decodes an artifact file. fallbackName is used when the file
// does not carry a contract name itself.
func ParseArtifact(path string, data []byte, fallbackName string) (*models.ContractArtifact, error) {
	var raw models.Artifact
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &domain.ParseError{Path: path, Reason: "invalid artifact JSON", Err: err}
	}

	if len(raw.ABI) == 0 || bytes.Equal(raw.ABI, []byte("null")) {
		return nil, &domain.ParseError{Path: path, Reason: "missing abi"}
	}
	parsedABI, err := abi.JSON(bytes.NewReader(raw.ABI))
	if err != nil {
		return nil, &domain.ParseError{Path: path, Reason: "invalid abi", Err: err}
	}
	if err := validateABI(parsedABI); err != nil {
		return nil, &domain.ParseError{Path: path, Reason: "invalid abi", Err: err}
	}

	bytecodeHex, err := bytecodeString(raw.Bytecode)
	if err != nil {
		return nil, &domain.ParseError{Path: path, Reason: "invalid bytecode", Err: err}
	}
	bytecode, err := decodeBytecode(bytecodeHex)
	if err != nil {
		return nil, &domain.ParseError{Path: path, Reason: err.Error()}
	}

	name := raw.ContractName
	if name == "" {
		name = compilationTargetName(raw)
	}
	if name == "" {
		name = fallbackName
	}
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), ".json")
	}

	metadata := raw.Metadata
	if len(metadata) == 0 && raw.RawMetadata != "" {
		metadata = json.RawMessage(raw.RawMetadata)
	}

	return &models.ContractArtifact{
		Name:     name,
		Path:     path,
		Bytecode: bytecode,
		ABI:      parsedABI,
		RawABI:   raw.ABI,
		Metadata: metadata,
	}, nil
}

// bytecodeString accepts either a hex string or a Foundry {"object": "0x.."} value
func bytecodeString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var obj models.BytecodeObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", errors.New("bytecode must be a hex string or an object with an object field")
	}
	return obj.Object, nil
}

func decodeBytecode(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0x" {
		return nil, errors.New("empty bytecode (abstract contract or interface?)")
	}
	if loc := linkPlaceholder.FindString(s); loc != "" {
		return nil, fmt.Errorf("bytecode has unlinked library placeholder %s", loc)
	}
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	code, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("bytecode is not valid hex: %w", err)
	}
	return code, nil
}

func compilationTargetName(raw models.Artifact) string {
	var meta models.ArtifactMetadata
	source := []byte(raw.RawMetadata)
	if len(raw.Metadata) > 0 && raw.Metadata[0] == '{' {
		source = raw.Metadata
	}
	if len(source) == 0 || json.Unmarshal(source, &meta) != nil {
		return ""
	}
	for _, name := range meta.Settings.CompilationTarget {
		return name
	}
	return ""
}

var _ usecase.ArtifactRepository = (*Repository)(nil)

// validateABI rejects argument types that abi.JSON accepts but cannot be
// encoded, such as uint7 or int264.
func validateABI(parsed abi.ABI) error {
	check := func(owner string, args abi.Arguments) error {
		for _, arg := range args {
			if err := validateType(arg.Type); err != nil {
				return fmt.Errorf("%s: argument %q: %w", owner, arg.Name, err)
			}
		}
		return nil
	}

	if err := check("constructor", parsed.Constructor.Inputs); err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(parsed.Methods)) {
		m := parsed.Methods[name]
		if err := check(m.Sig, m.Inputs); err != nil {
			return err
		}
		if err := check(m.Sig, m.Outputs); err != nil {
			return err
		}
	}
	for _, name := range slices.Sorted(maps.Keys(parsed.Events)) {
		if err := check(parsed.Events[name].Sig, parsed.Events[name].Inputs); err != nil {
			return err
		}
	}
	return nil
}

func validateType(t abi.Type) error {
	switch t.T {
	case abi.IntTy, abi.UintTy:
		if t.Size < 8 || t.Size > 256 || t.Size%8 != 0 {
			return fmt.Errorf("unsupported type %s", t.String())
		}
	case abi.FixedBytesTy:
		if t.Size < 1 || t.Size > 32 {
			return fmt.Errorf("unsupported type %s", t.String())
		}
	case abi.SliceTy, abi.ArrayTy:
		if t.Elem != nil {
			return validateType(*t.Elem)
		}
	case abi.TupleTy:
		for _, elem := range t.TupleElems {
			if err := validateType(*elem); err != nil {
				return err
			}
		}
	}
	return nil
}
