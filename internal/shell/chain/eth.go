package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/artpar/chaindeploy/internal/shell/artifact"
)

// Backend is the node surface EthClient needs. *ethclient.Client and the
// simulated backend client both satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// EthConfig holds EthClient settings.
type EthConfig struct {
	ConfirmTimeout time.Duration // Max wait for a receipt (default 5m)
	PollInterval   time.Duration // Receipt poll interval (default 2s)
	Logger         *slog.Logger
}

// EthClient implements Client against an EVM JSON-RPC node.
type EthClient struct {
	backend        Backend
	key            *ecdsa.PrivateKey
	from           common.Address
	chainID        *big.Int
	confirmTimeout time.Duration
	pollInterval   time.Duration
	logger         *slog.Logger
}

// Ensure EthClient implements Client
var _ Client = (*EthClient)(nil)

// NewEthClient creates a client over an existing backend.
func NewEthClient(backend Backend, key *ecdsa.PrivateKey, chainID *big.Int, cfg EthConfig) (*EthClient, error) {
	if backend == nil {
		return nil, NewChainError("NewEthClient", "", "", "backend is required", ErrConnectionFailed)
	}
	if key == nil {
		return nil, NewChainError("NewEthClient", "", "", "signing key is required", ErrConnectionFailed)
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, NewChainError("NewEthClient", "", "", "chain id must be positive", ErrConnectionFailed)
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 5 * time.Minute
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &EthClient{
		backend:        backend,
		key:            key,
		from:           crypto.PubkeyToAddress(key.PublicKey),
		chainID:        new(big.Int).Set(chainID),
		confirmTimeout: cfg.ConfirmTimeout,
		pollInterval:   cfg.PollInterval,
		logger:         cfg.Logger.With("component", "chain"),
	}, nil
}

// DialEth connects to a JSON-RPC endpoint. When expectedChainID is non-zero
// the node's chain id must match it.
func DialEth(ctx context.Context, rpcURL string, expectedChainID int64, key *ecdsa.PrivateKey, cfg EthConfig) (*EthClient, func(), error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, NewChainError("Dial", "endpoint", rpcURL, err.Error(), ErrConnectionFailed)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, nil, NewChainError("Dial", "endpoint", rpcURL, fmt.Sprintf("query chain id: %v", err), ErrConnectionFailed)
	}
	if expectedChainID != 0 && chainID.Cmp(big.NewInt(expectedChainID)) != 0 {
		client.Close()
		return nil, nil, NewChainError("Dial", "endpoint", rpcURL,
			fmt.Sprintf("node reports chain id %s, configured %d", chainID, expectedChainID), ErrChainIDMismatch)
	}

	c, err := NewEthClient(client, key, chainID, cfg)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return c, client.Close, nil
}

// =============================================================================
// Client Methods
// =============================================================================

// CodePresentAt reports whether non-empty code exists at address.
func (c *EthClient) CodePresentAt(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, NewChainError("CodePresentAt", "address", address, "not a hex address", ErrInvalidAddress)
	}
	code, err := c.backend.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return false, NewChainError("CodePresentAt", "address", address, err.Error(), ErrConnectionFailed)
	}
	return len(code) > 0, nil
}

// Deploy submits the artifact's creation code with constructor args and waits
// for the receipt.
func (c *EthClient) Deploy(ctx context.Context, a *artifact.Artifact, args []string) (string, error) {
	params, err := ConvertArgs(a.ABI.Constructor.Inputs, args)
	if err != nil {
		return "", NewChainError("Deploy", "contract", a.Name, err.Error(), err)
	}

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return "", NewChainError("Deploy", "contract", a.Name, err.Error(), ErrSubmitFailed)
	}

	addr, tx, _, err := bind.DeployContract(opts, a.ABI, a.Bytecode, c.backend, params...)
	if err != nil {
		return "", NewChainError("Deploy", "contract", a.Name, err.Error(), ErrSubmitFailed)
	}
	c.logger.Info("deployment submitted", "artifact", a.Name, "tx", tx.Hash().Hex(), "address", addr.Hex())

	receipt, err := c.waitReceipt(ctx, tx)
	if err != nil {
		return "", NewChainError("Deploy", "contract", a.Name, err.Error(), err)
	}
	if receipt.ContractAddress != (common.Address{}) {
		addr = receipt.ContractAddress
	}

	code, err := c.backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return "", NewChainError("Deploy", "contract", a.Name, fmt.Sprintf("verify code: %v", err), ErrConfirmFailed)
	}
	if len(code) == 0 {
		return "", NewChainError("Deploy", "contract", a.Name, "no code at deployed address "+addr.Hex(), ErrReverted)
	}
	return addr.Hex(), nil
}

// Invoke sends a method call transaction and waits for the receipt. Reverts
// caught during gas estimation surface the node's revert message.
func (c *EthClient) Invoke(ctx context.Context, call Call) error {
	id := fmt.Sprintf("%s.%s", call.Target, call.Method)
	if !common.IsHexAddress(call.Target) {
		return NewChainError("Invoke", "call", id, "target is not a hex address", ErrInvalidAddress)
	}
	method, ok := call.Artifact.ABI.Methods[call.Method]
	if !ok {
		return NewChainError("Invoke", "call", id, fmt.Sprintf("%s has no method %q", call.Artifact.Name, call.Method), ErrUnknownMethod)
	}
	params, err := ConvertArgs(method.Inputs, call.Args)
	if err != nil {
		return NewChainError("Invoke", "call", id, err.Error(), err)
	}

	opts, err := c.transactOpts(ctx)
	if err != nil {
		return NewChainError("Invoke", "call", id, err.Error(), ErrSubmitFailed)
	}

	bound := bind.NewBoundContract(common.HexToAddress(call.Target), call.Artifact.ABI, c.backend, c.backend, c.backend)
	tx, err := bound.Transact(opts, call.Method, params...)
	if err != nil {
		return NewChainError("Invoke", "call", id, err.Error(), ErrSubmitFailed)
	}
	c.logger.Info("call submitted", "target", call.Target, "method", call.Method, "tx", tx.Hash().Hex())

	if _, err := c.waitReceipt(ctx, tx); err != nil {
		return NewChainError("Invoke", "call", id, err.Error(), err)
	}
	return nil
}

// CurrentIdentity returns the signer's checksummed address.
func (c *EthClient) CurrentIdentity(ctx context.Context) (string, error) {
	return c.from.Hex(), nil
}

// =============================================================================
// Helpers
// =============================================================================

func (c *EthClient) transactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	return opts, nil
}

// waitReceipt polls for the transaction receipt until it is mined, the
// confirm timeout passes or ctx is done. A failed status is ErrReverted.
func (c *EthClient) waitReceipt(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, tx.Hash())
		switch {
		case err == nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: tx %s", ErrReverted, tx.Hash().Hex())
			}
			return receipt, nil
		case errors.Is(err, ethereum.NotFound):
			c.logger.Debug("transaction not yet mined", "tx", tx.Hash().Hex())
		default:
			c.logger.Debug("receipt lookup failed", "tx", tx.Hash().Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: tx %s: %v", ErrConfirmFailed, tx.Hash().Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
