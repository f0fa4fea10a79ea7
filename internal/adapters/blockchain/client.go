package blockchain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/trebuchet-org/treb-proxy/internal/domain"
	"github.com/trebuchet-org/treb-proxy/internal/domain/config"
	"github.com/trebuchet-org/treb-proxy/internal/usecase"
)

// Backend is the subset of ethclient.Client used to send transactions.
// The go-ethereum simulated backend satisfies it too.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Client signs transactions with a single private key and submits them
// through a Backend.
type Client struct {
	backend      Backend
	endpoint     string
	key          *ecdsa.PrivateKey
	from         common.Address
	gasPrice     *big.Int
	gasLimit     uint64
	pollInterval time.Duration
	log          *slog.Logger

	mu      sync.Mutex
	chainID *big.Int
}

// Dial connects to the configured node. Without a node URL the client is
// still created so that read-only commands work; sending then fails with a
// ConfigError.
func Dial(cfg *config.RuntimeConfig, log *slog.Logger) (*Client, error) {
	dc := cfg.Deployment
	if dc.NodeURL == "" {
		return NewClient(nil, "", dc, log)
	}
	ec, err := ethclient.Dial(dc.NodeURL)
	if err != nil {
		return nil, &domain.ConfigError{Field: "rpc_url", Reason: "failed to connect to RPC", Err: err}
	}
	return NewClient(ec, dc.NodeURL, dc, log)
}

// NewClient creates a client over an existing backend
func NewClient(backend Backend, endpoint string, dc config.DeploymentConfig, log *slog.Logger) (*Client, error) {
	c := &Client{
		backend:      backend,
		endpoint:     endpoint,
		gasPrice:     dc.GasPrice,
		gasLimit:     dc.GasLimit,
		pollInterval: dc.PollInterval,
		log:          log.With("component", "blockchain"),
	}
	if c.pollInterval <= 0 {
		c.pollInterval = config.DefaultPollInterval
	}
	if dc.PrivateKey != "" {
		key, err := config.ParsePrivateKey(dc.PrivateKey)
		if err != nil {
			return nil, err
		}
		c.key = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}
	return c, nil
}

// SignerAddress returns the address transactions are sent from
func (c *Client) SignerAddress() common.Address {
	return c.from
}

// ProviderEndpoint returns the node URL
func (c *Client) ProviderEndpoint() string {
	return c.endpoint
}

// SendDeployTransaction submits a contract creation and returns the address
// the contract will have once mined.
func (c *Client) SendDeployTransaction(ctx context.Context, bytecode []byte, args []byte) (common.Address, common.Hash, error) {
	data := make([]byte, 0, len(bytecode)+len(args))
	data = append(data, bytecode...)
	data = append(data, args...)

	tx, err := c.send(ctx, nil, data)
	if err != nil {
		return common.Address{}, common.Hash{}, err
	}
	return crypto.CreateAddress(c.from, tx.Nonce()), tx.Hash(), nil
}

// SendCallTransaction submits a call to an existing contract
func (c *Client) SendCallTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	tx, err := c.send(ctx, &to, data)
	if err != nil {
		return common.Hash{}, err
	}
	return tx.Hash(), nil
}

func (c *Client) send(ctx context.Context, to *common.Address, data []byte) (*types.Transaction, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	chainID, err := c.getChainID(ctx)
	if err != nil {
		return nil, err
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce for %s: %w", c.from.Hex(), err)
	}

	gasPrice := c.gasPrice
	if gasPrice == nil {
		if gasPrice, err = c.backend.SuggestGasPrice(ctx); err != nil {
			return nil, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	gas := c.gasLimit
	if gas == 0 {
		gas, err = c.backend.EstimateGas(ctx, ethereum.CallMsg{
			From:     c.from,
			To:       to,
			GasPrice: gasPrice,
			Data:     data,
		})
		if err != nil {
			return nil, fmt.Errorf("gas estimation failed: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       to,
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.log.Debug("transaction sent", "hash", signed.Hash().Hex(), "nonce", nonce, "gas", gas, "gas_price", gasPrice)
	return signed, nil
}

// WaitForConfirmation polls for the receipt until it is available or ctx is
// done. A reverted transaction returns its receipt together with an error
// wrapping domain.ErrTransactionReverted.
func (c *Client) WaitForConfirmation(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	if c.backend == nil {
		return nil, c.ready()
	}

	started := time.Now()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.pollInterval
	b.MaxInterval = 8 * c.pollInterval
	b.Multiplier = 1.5

	// ctx is the only bound on the wait
	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.log.Debug("transaction not yet confirmed", "hash", txHash.Hex(), "retry_in", next)
		}),
	}

	var mined *types.Receipt
	receipt, err := backoff.Retry(ctx, func() (*types.Receipt, error) {
		receipt, err := c.backend.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt.Status != types.ReceiptStatusSuccessful {
			mined = receipt
			return nil, backoff.Permanent(fmt.Errorf("%w: %s (status %d, gas used %d)",
				domain.ErrTransactionReverted, txHash.Hex(), receipt.Status, receipt.GasUsed))
		}
		return receipt, nil
	}, opts...)

	switch {
	case err == nil:
		c.log.Debug("transaction confirmed", "hash", txHash.Hex(), "block", receipt.BlockNumber, "gas_used", receipt.GasUsed)
		return receipt, nil
	case mined != nil:
		return mined, err
	case errors.Is(ctx.Err(), context.Canceled):
		return nil, ctx.Err()
	case ctx.Err() != nil || errors.Is(err, ethereum.NotFound) || pastDeadline(ctx):
		return nil, &domain.TimeoutError{TxHash: txHash.Hex(), Timeout: time.Since(started).Round(time.Millisecond)}
	default:
		return nil, fmt.Errorf("failed to fetch receipt for %s: %w", txHash.Hex(), err)
	}
}

func pastDeadline(ctx context.Context) bool {
	deadline, ok := ctx.Deadline()
	return ok && !time.Now().Before(deadline)
}

func (c *Client) ready() error {
	if c.backend == nil {
		return &domain.ConfigError{Field: "rpc_url", Reason: "a node URL is required (use --rpc-url or --network)"}
	}
	if c.key == nil {
		return &domain.ConfigError{Field: "private_key", Reason: "a private key is required to sign transactions"}
	}
	return nil
}

func (c *Client) getChainID(ctx context.Context) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.chainID != nil {
		return c.chainID, nil
	}
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	c.chainID = id
	return id, nil
}

var _ usecase.ChainClient = (*Client)(nil)
