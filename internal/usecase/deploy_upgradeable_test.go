package usecase_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trebuchet-org/treb-proxy/internal/adapters/environment"
	"github.com/trebuchet-org/treb-proxy/internal/adapters/proxy"
	"github.com/trebuchet-org/treb-proxy/internal/adapters/registry"
	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
	"github.com/trebuchet-org/treb-proxy/internal/domain/models"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

const (
	testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

	counterABI = `[
	  {"type":"function","name":"initialize","inputs":[{"name":"start","type":"uint256"}],"outputs":[],"stateMutability":"nonpayable"},
	  {"type":"function","name":"count","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}
	]`
	plainABI     = `[{"type":"function","name":"count","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"view"}]`
	proxyCtorABI = `[{"type":"constructor","inputs":[{"name":"_logic","type":"address"},{"name":"_admin","type":"address"},{"name":"_data","type":"bytes"}],"stateMutability":"payable"}]`
)

var signer = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")

type sentCall struct {
	to   common.Address
	data []byte
}

// fakeChain hands out sequential addresses and hashes and lets tests choose
// which transaction (by send order, starting at 1) fails and how.
type fakeChain struct {
	sends    int
	deploys  [][]byte
	calls    []sentCall
	sendErrs map[int]error
	reverts  map[int]bool
	hangs    map[int]bool
	onWait   func(n int)
}

func newFakeChain() *fakeChain {
	return &fakeChain{sendErrs: map[int]error{}, reverts: map[int]bool{}, hangs: map[int]bool{}}
}

func (c *fakeChain) next() (int, error) {
	c.sends++
	if err, ok := c.sendErrs[c.sends]; ok {
		delete(c.sendErrs, c.sends)
		c.sends--
		return 0, err
	}
	return c.sends, nil
}

func deployedAt(n int) common.Address { return common.BigToAddress(big.NewInt(int64(0xA000 + n))) }
func txHash(n int) common.Hash        { return common.BigToHash(big.NewInt(int64(n))) }

func (c *fakeChain) SendDeployTransaction(_ context.Context, bytecode []byte, args []byte) (common.Address, common.Hash, error) {
	n, err := c.next()
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	c.deploys = append(c.deploys, append(append([]byte{}, bytecode...), args...))
	return deployedAt(n), txHash(n), nil
}

func (c *fakeChain) SendCallTransaction(_ context.Context, to common.Address, data []byte) (common.Hash, error) {
	n, err := c.next()
	if err != nil {
		return common.Hash{}, err
	}
	c.calls = append(c.calls, sentCall{to: to, data: data})
	return txHash(n), nil
}

func (c *fakeChain) WaitForConfirmation(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	n := int(hash.Big().Int64())
	if c.onWait != nil {
		c.onWait(n)
	}
	if c.hangs[n] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	status := types.ReceiptStatusSuccessful
	if c.reverts[n] {
		status = types.ReceiptStatusFailed
	}
	return &types.Receipt{Status: status, TxHash: hash, BlockNumber: big.NewInt(int64(n))}, nil
}

func (c *fakeChain) SignerAddress() common.Address { return signer }
func (c *fakeChain) ProviderEndpoint() string      { return "http://localhost:8545" }

type staticArtifacts map[string]*models.ContractArtifact

func (s staticArtifacts) Load(_ context.Context, name string) (*models.ContractArtifact, error) {
	if a, ok := s[name]; ok {
		return a, nil
	}
	return nil, &domain.NotFoundError{Kind: "artifact", Name: name}
}

func (s staticArtifacts) List(context.Context) ([]string, error) { return nil, nil }

func newArtifact(t *testing.T, name, rawABI, bytecode string) *models.ContractArtifact {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(rawABI))
	require.NoError(t, err)
	return &models.ContractArtifact{Name: name, ABI: parsed, Bytecode: common.FromHex(bytecode)}
}

type deployFixture struct {
	cfg          *config.RuntimeConfig
	chain        *fakeChain
	store        *registry.FileStore
	registryPath string
	proxyArt     *models.ContractArtifact
	uc           *usecase.DeployUpgradeable
}

func newDeployFixture(t *testing.T, mutate func(dc *config.DeploymentConfig)) *deployFixture {
	t.Helper()
	dir := t.TempDir()
	f := &deployFixture{
		registryPath: filepath.Join(dir, "proxy.json"),
		chain:        newFakeChain(),
		proxyArt:     newArtifact(t, config.DefaultProxyArtifact, proxyCtorABI, "0xfefe"),
	}
	f.cfg = &config.RuntimeConfig{
		ProjectRoot: dir,
		Deployment: config.DeploymentConfig{
			NodeURL:             "http://localhost:8545",
			PrivateKey:          testKey,
			BuildDir:            filepath.Join(dir, "build"),
			RegistryPath:        f.registryPath,
			ProxyKind:           models.ProxyKindTransparent,
			ProxyArtifact:       config.DefaultProxyArtifact,
			ConfirmationTimeout: time.Second,
		},
	}
	if mutate != nil {
		mutate(&f.cfg.Deployment)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.store = registry.NewFileStore(f.cfg, log)
	artifacts := staticArtifacts{f.proxyArt.Name: f.proxyArt}
	strategy, err := proxy.NewStrategy(f.cfg, f.chain, artifacts, log)
	require.NoError(t, err)
	f.uc = usecase.NewDeployUpgradeable(f.cfg, artifacts, f.store, f.chain, strategy, environment.NewArgParser(), usecase.NopProgress{}, log)
	return f
}

func (f *deployFixture) load(t *testing.T) models.ProxyRegistry {
	t.Helper()
	reg, err := f.store.Load(context.Background())
	require.NoError(t, err)
	return reg
}

func (f *deployFixture) writeRegistry(t *testing.T, content string) []byte {
	t.Helper()
	require.NoError(t, os.WriteFile(f.registryPath, []byte(content), 0644))
	return []byte(content)
}

// proxyInitData decodes the data argument passed to the proxy constructor
func (f *deployFixture) proxyInitData(t *testing.T, deploy []byte) (common.Address, []byte) {
	t.Helper()
	values, err := f.proxyArt.ABI.Constructor.Inputs.Unpack(deploy[len(f.proxyArt.Bytecode):])
	require.NoError(t, err)
	return values[0].(common.Address), values[2].([]byte)
}

func selector(sig string) []byte {
	return crypto.Keccak256([]byte(sig))[:4]
}

const existingRegistry = `{
  "Counter": {
    "address": "0x00000000000000000000000000000000000000c1",
    "implementation": "0x00000000000000000000000000000000000000c2",
    "kind": "transparent",
    "lastDeployedAt": "2020-01-01T00:00:00Z",
    "note": "deployed by hand"
  },
  "Other": {
    "address": "0x00000000000000000000000000000000000000d1"
  }
}
`

var existingProxy = common.HexToAddress("0x00000000000000000000000000000000000000c1")

func TestDeployUpgradeable_FirstDeploy(t *testing.T) {
	f := newDeployFixture(t, nil)
	counter := newArtifact(t, "Counter", counterABI, "0x6001")

	result, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{
		Artifact: counter,
		InitArgs: []any{big.NewInt(10)},
	})
	require.NoError(t, err)

	assert.True(t, result.IsNewProxy)
	assert.Equal(t, "Counter", result.ContractName)
	assert.Equal(t, deployedAt(1), result.ImplementationAddress)
	assert.Equal(t, deployedAt(2), result.ContractAddress)
	assert.Equal(t, txHash(1), result.TransactionHash)
	assert.Equal(t, txHash(2), result.ProxyTransactionHash)
	assert.Equal(t, signer, result.SignerAddress)
	assert.Equal(t, "http://localhost:8545", result.ProviderEndpoint)
	assert.Equal(t, models.ProxyKindTransparent, result.Kind)

	require.Len(t, f.chain.deploys, 2)
	assert.Equal(t, counter.Bytecode, f.chain.deploys[0])
	logic, initData := f.proxyInitData(t, f.chain.deploys[1])
	assert.Equal(t, deployedAt(1), logic)
	expectedInit, err := counter.ABI.Pack("initialize", big.NewInt(10))
	require.NoError(t, err)
	assert.Equal(t, expectedInit, initData)

	reg := f.load(t)
	require.Len(t, reg, 1)
	rec := reg.Get("Counter")
	require.NotNil(t, rec)
	assert.Equal(t, result.ContractAddress, rec.Address)
	assert.Equal(t, deployedAt(1), rec.Implementation)
	assert.Equal(t, signer, rec.Admin)
	assert.Equal(t, models.ProxyKindTransparent, rec.Kind)
	assert.WithinDuration(t, time.Now(), rec.LastDeployedAt, time.Minute)
}

func TestDeployUpgradeable_FirstDeployWithoutInitializer(t *testing.T) {
	f := newDeployFixture(t, nil)
	plain := newArtifact(t, "Plain", plainABI, "0x6002")

	_, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{Artifact: plain})
	require.NoError(t, err)

	_, initData := f.proxyInitData(t, f.chain.deploys[1])
	assert.Empty(t, initData)
}

func TestDeployUpgradeable_Upgrade(t *testing.T) {
	f := newDeployFixture(t, nil)
	f.writeRegistry(t, existingRegistry)
	counterV2 := newArtifact(t, "Counter", counterABI, "0x6003")

	result, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{Artifact: counterV2})
	require.NoError(t, err)

	assert.False(t, result.IsNewProxy)
	assert.False(t, result.Reinitialized)
	assert.Equal(t, existingProxy, result.ContractAddress)
	assert.Equal(t, deployedAt(1), result.ImplementationAddress)
	assert.Equal(t, txHash(2), result.ProxyTransactionHash)

	require.Len(t, f.chain.deploys, 1)
	require.Len(t, f.chain.calls, 1)
	assert.Equal(t, existingProxy, f.chain.calls[0].to)
	assert.Equal(t, selector("upgradeTo(address)"), f.chain.calls[0].data[:4])

	reg := f.load(t)
	require.Len(t, reg, 2)
	rec := reg.Get("Counter")
	assert.Equal(t, existingProxy, rec.Address)
	assert.Equal(t, deployedAt(1), rec.Implementation)
	assert.True(t, rec.LastDeployedAt.After(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.JSONEq(t, `"deployed by hand"`, string(rec.Extra["note"]))
	assert.Equal(t, common.HexToAddress("0xd1"), reg.Get("Other").Address)
}

func TestDeployUpgradeable_DeployThenUpgradeKeepsAddress(t *testing.T) {
	f := newDeployFixture(t, nil)
	ctx := context.Background()

	first, err := f.uc.Run(ctx, usecase.DeployUpgradeableParams{
		Artifact: newArtifact(t, "Counter", counterABI, "0x6001"),
		InitArgs: []any{big.NewInt(10)},
	})
	require.NoError(t, err)
	addr1 := first.ContractAddress

	second, err := f.uc.Run(ctx, usecase.DeployUpgradeableParams{
		Artifact: newArtifact(t, "Counter", counterABI, "0x6004"),
	})
	require.NoError(t, err)

	assert.Equal(t, addr1, second.ContractAddress)
	assert.NotEqual(t, first.ImplementationAddress, second.ImplementationAddress)
	require.Len(t, f.chain.calls, 1)
	assert.Equal(t, addr1, f.chain.calls[0].to)

	reg := f.load(t)
	assert.Equal(t, []string{"Counter"}, reg.Names())
	assert.Equal(t, addr1, reg.Get("Counter").Address)
	assert.Equal(t, second.ImplementationAddress, reg.Get("Counter").Implementation)
}

func TestDeployUpgradeable_UpgradeIgnoresInitArgs(t *testing.T) {
	f := newDeployFixture(t, nil)
	f.writeRegistry(t, existingRegistry)

	_, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{
		Artifact: newArtifact(t, "Counter", counterABI, "0x6003"),
		InitArgs: []any{big.NewInt(99)},
	})
	require.NoError(t, err)

	require.Len(t, f.chain.calls, 1)
	assert.Equal(t, selector("upgradeTo(address)"), f.chain.calls[0].data[:4])
}

func TestDeployUpgradeable_Reinitialize(t *testing.T) {
	f := newDeployFixture(t, nil)
	f.writeRegistry(t, existingRegistry)
	counter := newArtifact(t, "Counter", counterABI, "0x6003")

	result, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{
		Artifact:     counter,
		RawInitArgs:  []string{"7"},
		Reinitialize: true,
	})
	require.NoError(t, err)
	assert.True(t, result.Reinitialized)

	require.Len(t, f.chain.calls, 1)
	call := f.chain.calls[0]
	assert.Equal(t, selector("upgradeToAndCall(address,bytes)"), call.data[:4])

	expectedInit, err := counter.ABI.Pack("initialize", big.NewInt(7))
	require.NoError(t, err)
	assert.Contains(t, string(call.data), string(expectedInit))
}

func TestDeployUpgradeable_ConfigErrorsSendNothing(t *testing.T) {
	tests := []struct {
		name     string
		registry string
		mutate   func(dc *config.DeploymentConfig)
		params   func(t *testing.T) usecase.DeployUpgradeableParams
		field    string
	}{
		{
			name:     "reinitialize without initializer",
			registry: `{"Plain": {"address": "0x00000000000000000000000000000000000000c1"}}`,
			params: func(t *testing.T) usecase.DeployUpgradeableParams {
				return usecase.DeployUpgradeableParams{Artifact: newArtifact(t, "Plain", plainABI, "0x6002"), Reinitialize: true}
			},
			field: "reinitialize",
		},
		{
			name: "init args without initializer",
			params: func(t *testing.T) usecase.DeployUpgradeableParams {
				return usecase.DeployUpgradeableParams{Artifact: newArtifact(t, "Plain", plainABI, "0x6002"), InitArgs: []any{big.NewInt(1)}}
			},
			field: "args",
		},
		{
			name: "missing initializer args",
			params: func(t *testing.T) usecase.DeployUpgradeableParams {
				return usecase.DeployUpgradeableParams{Artifact: newArtifact(t, "Counter", counterABI, "0x6001")}
			},
			field: "args",
		},
		{
			name: "unparseable raw args",
			params: func(t *testing.T) usecase.DeployUpgradeableParams {
				return usecase.DeployUpgradeableParams{Artifact: newArtifact(t, "Counter", counterABI, "0x6001"), RawInitArgs: []string{"ten"}}
			},
			field: "args",
		},
		{
			name:   "missing private key",
			mutate: func(dc *config.DeploymentConfig) { dc.PrivateKey = "" },
			params: func(t *testing.T) usecase.DeployUpgradeableParams {
				return usecase.DeployUpgradeableParams{Artifact: newArtifact(t, "Plain", plainABI, "0x6002")}
			},
			field: "private_key",
		},
		{
			name:     "recorded kind differs",
			registry: `{"Plain": {"address": "0x00000000000000000000000000000000000000c1", "kind": "factory"}}`,
			params: func(t *testing.T) usecase.DeployUpgradeableParams {
				return usecase.DeployUpgradeableParams{Artifact: newArtifact(t, "Plain", plainABI, "0x6002")}
			},
			field: "proxy_kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDeployFixture(t, tt.mutate)
			if tt.registry != "" {
				f.writeRegistry(t, tt.registry)
			}

			_, err := f.uc.Run(context.Background(), tt.params(t))
			require.Error(t, err)

			var cfgErr *domain.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Zero(t, f.chain.sends)
		})
	}
}

func TestDeployUpgradeable_MalformedRegistryIsFatal(t *testing.T) {
	f := newDeployFixture(t, nil)
	before := f.writeRegistry(t, `{"Counter": {"address": `)

	_, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{
		Artifact: newArtifact(t, "Plain", plainABI, "0x6002"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrParse)
	assert.Zero(t, f.chain.sends)

	after, err := os.ReadFile(f.registryPath)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestDeployUpgradeable_FailuresLeaveRegistryUntouched(t *testing.T) {
	tests := []struct {
		name     string
		artifact string
		setup    func(c *fakeChain)
		stage    string
		txHash   common.Hash
		sentinel error
	}{
		{
			name:     "implementation reverts",
			artifact: "New",
			setup:    func(c *fakeChain) { c.reverts[1] = true },
			stage:    usecase.StageDeployImplementation,
			txHash:   txHash(1),
			sentinel: domain.ErrTransactionReverted,
		},
		{
			name:     "proxy reverts",
			artifact: "New",
			setup:    func(c *fakeChain) { c.reverts[2] = true },
			stage:    usecase.StageDeployProxy,
			txHash:   txHash(2),
			sentinel: domain.ErrTransactionReverted,
		},
		{
			name:     "upgrade reverts",
			artifact: "Counter",
			setup:    func(c *fakeChain) { c.reverts[2] = true },
			stage:    usecase.StageUpgradeProxy,
			txHash:   txHash(2),
			sentinel: domain.ErrTransactionReverted,
		},
		{
			name:     "implementation submission fails",
			artifact: "New",
			setup:    func(c *fakeChain) { c.sendErrs[1] = errors.New("insufficient funds for gas * price + value") },
			stage:    usecase.StageDeployImplementation,
		},
		{
			name:     "upgrade confirmation times out",
			artifact: "Counter",
			setup:    func(c *fakeChain) { c.hangs[2] = true },
			stage:    usecase.StageUpgradeProxy,
			txHash:   txHash(2),
			sentinel: domain.ErrTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDeployFixture(t, func(dc *config.DeploymentConfig) { dc.ConfirmationTimeout = 50 * time.Millisecond })
			before := f.writeRegistry(t, existingRegistry)
			tt.setup(f.chain)

			_, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{
				Artifact: newArtifact(t, tt.artifact, plainABI, "0x6005"),
			})
			require.Error(t, err)

			var depErr *domain.DeploymentError
			require.ErrorAs(t, err, &depErr)
			assert.Equal(t, tt.artifact, depErr.ContractName)
			assert.Equal(t, tt.stage, depErr.Stage)
			if tt.txHash != (common.Hash{}) {
				assert.Equal(t, tt.txHash.Hex(), depErr.TxHash)
			}
			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
			}
			assert.Contains(t, err.Error(), tt.artifact)

			after, err := os.ReadFile(f.registryPath)
			require.NoError(t, err)
			assert.Equal(t, before, after)
		})
	}
}

func TestDeployUpgradeable_TimeoutErrorCarriesHash(t *testing.T) {
	f := newDeployFixture(t, func(dc *config.DeploymentConfig) { dc.ConfirmationTimeout = 20 * time.Millisecond })
	f.chain.hangs[1] = true

	_, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{
		Artifact: newArtifact(t, "Plain", plainABI, "0x6002"),
	})

	var timeoutErr *domain.TimeoutError
	require.ErrorAs(t, err, &timeoutErr)
	assert.Equal(t, txHash(1).Hex(), timeoutErr.TxHash)
	assert.Equal(t, 20*time.Millisecond, timeoutErr.Timeout)
	assert.Equal(t, 1, f.chain.sends)
}

func TestDeployUpgradeable_RetriesSubmission(t *testing.T) {
	f := newDeployFixture(t, func(dc *config.DeploymentConfig) {
		dc.Retry = config.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond}
	})
	f.chain.sendErrs[1] = errors.New("connection reset by peer")

	result, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{
		Artifact: newArtifact(t, "Plain", plainABI, "0x6002"),
	})
	require.NoError(t, err)
	assert.Equal(t, deployedAt(1), result.ImplementationAddress)
	assert.Len(t, f.chain.deploys, 2)
}

func TestDeployUpgradeable_NoRetryByDefault(t *testing.T) {
	f := newDeployFixture(t, nil)
	f.chain.sendErrs[1] = errors.New("connection reset by peer")

	_, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{
		Artifact: newArtifact(t, "Plain", plainABI, "0x6002"),
	})
	assert.ErrorIs(t, err, domain.ErrDeployment)
	assert.ErrorContains(t, err, "connection reset by peer")
	assert.Empty(t, f.chain.deploys)
}

func TestDeployUpgradeable_MergesConcurrentRegistryChanges(t *testing.T) {
	f := newDeployFixture(t, nil)
	f.chain.onWait = func(n int) {
		if n != 2 {
			return
		}
		// another process records a proxy while ours is being mined
		reg, err := registry.LoadFile(f.registryPath)
		require.NoError(t, err)
		reg.Upsert("Sibling", &models.ProxyRecord{Address: common.HexToAddress("0xe1")})
		require.NoError(t, registry.SaveFile(f.registryPath, reg))
	}

	_, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{
		Artifact: newArtifact(t, "Plain", plainABI, "0x6002"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Plain", "Sibling"}, f.load(t).Names())
}

func TestDeployUpgradeable_LoadsArtifactByName(t *testing.T) {
	f := newDeployFixture(t, nil)

	_, err := f.uc.Run(context.Background(), usecase.DeployUpgradeableParams{ContractName: "Missing"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Zero(t, f.chain.sends)
}
