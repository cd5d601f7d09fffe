package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/moby/sys/atomicwriter"

	"github.com/artpar/chaindeploy/internal/core/crypto"
	"github.com/artpar/chaindeploy/internal/core/deployment"
	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/artpar/chaindeploy/internal/shell/artifact"
	"github.com/artpar/chaindeploy/internal/shell/chain"
	"github.com/artpar/chaindeploy/internal/shell/deployer"
	"github.com/artpar/chaindeploy/internal/shell/metrics"
	"github.com/artpar/chaindeploy/internal/shell/store"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess     = 0
	ExitConfigError = 1
	ExitLedgerError = 2
	ExitChainError  = 3
	ExitPlanError   = 4
	ExitRunAborted  = 5
)

// RunError represents a failed run with the exit code it maps to.
type RunError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *RunError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// Options are the per-invocation switches from the command line.
type Options struct {
	Force        bool
	ValidateOnly bool
	ExportPath   string
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy wires the configured components together and runs the plan.
func Deploy(ctx context.Context, cfg *Config, opts Options, logger *slog.Logger) error {
	plan, err := loadPlan(cfg.Plan.Path)
	if err != nil {
		return &RunError{Op: "load plan", Err: err, ExitCode: ExitPlanError}
	}
	logger.Info("plan loaded", "plan", plan.Name, "path", cfg.Plan.Path, "steps", len(plan.Steps))
	if opts.ValidateOnly {
		return nil
	}

	if err := cfg.Validate(); err != nil {
		return &RunError{Op: "validate config", Err: err, ExitCode: ExitConfigError}
	}
	vars, err := cfg.PlanVariables()
	if err != nil {
		return &RunError{Op: "read plan variables", Err: err, ExitCode: ExitConfigError}
	}

	key, err := loadSignerKey(cfg.Signer)
	if err != nil {
		return &RunError{Op: "load signer key", Err: err, ExitCode: ExitConfigError}
	}

	st, err := openStore(cfg.Ledger, cfg.Network.Name)
	if err != nil {
		return &RunError{Op: "open ledger store", Err: err, ExitCode: ExitLedgerError}
	}
	defer st.Close()

	client, closeClient, err := chain.DialEth(ctx, cfg.Network.RPCURL, cfg.Network.ChainID, key, chain.EthConfig{
		ConfirmTimeout: cfg.Network.ConfirmTimeout,
		PollInterval:   cfg.Network.PollInterval,
		Logger:         logger,
	})
	if err != nil {
		return &RunError{Op: "connect to chain", Err: err, ExitCode: ExitChainError}
	}
	defer closeClient()

	recorder := metrics.New(cfg.Network.Name)
	orch, err := deployer.New(st, artifact.NewFileResolver(cfg.Artifacts.Dir), client, plan, deployer.Config{
		Network:   cfg.Network.Name,
		Force:     opts.Force,
		Variables: vars,
		Logger:    logger,
		Metrics:   recorder,
	})
	if err != nil {
		return &RunError{Op: "create orchestrator", Err: err, ExitCode: ExitPlanError}
	}

	result, runErr := orch.Run(ctx)

	if err := recorder.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		logger.Warn("failed to write metrics textfile", "path", cfg.Metrics.Textfile, "error", err)
	}
	if runErr != nil {
		return &RunError{Op: "run plan", Err: runErr, ExitCode: exitCodeFor(runErr)}
	}

	if opts.ExportPath != "" {
		if err := exportUnits(opts.ExportPath, result.Units); err != nil {
			return &RunError{Op: "export addresses", Err: err, ExitCode: ExitLedgerError}
		}
		logger.Info("addresses exported", "path", opts.ExportPath, "units", len(result.Units))
	}
	return nil
}

// exitCodeFor maps a run failure to its exit code.
func exitCodeFor(err error) int {
	var planErr *deployment.PlanError
	switch {
	case errors.Is(err, deployer.ErrLedgerWrite), errors.Is(err, deployer.ErrArchive):
		return ExitLedgerError
	case errors.Is(err, domain.ErrNetworkMismatch):
		return ExitConfigError
	case errors.Is(err, deployer.ErrIdentity), errors.Is(err, chain.ErrConnectionFailed):
		return ExitChainError
	case errors.As(err, &planErr), errors.Is(err, artifact.ErrNotFound), errors.Is(err, artifact.ErrMalformed):
		return ExitPlanError
	default:
		return ExitRunAborted
	}
}

// =============================================================================
// Component Setup
// =============================================================================

func loadPlan(path string) (*deployment.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}
	return deployment.ParsePlan(string(data))
}

func openStore(cfg LedgerConfig, network string) (store.Store, error) {
	switch cfg.Backend {
	case "sqlite":
		return store.NewSQLiteStore(cfg.DSN, network)
	case "file", "":
		return store.NewFileStore(cfg.Dir, network)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Backend)
	}
}

func loadSignerKey(cfg SignerConfig) (*ecdsa.PrivateKey, error) {
	if cfg.KeyFile != "" {
		data, err := os.ReadFile(cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("read key file: %w", err)
		}
		return crypto.DecryptSignerKey(string(data), cfg.EncryptionKey)
	}
	return crypto.ParseSignerKey(cfg.PrivateKey)
}

// exportUnits writes the unit address map as JSON.
func exportUnits(path string, units map[string]string) error {
	if units == nil {
		units = map[string]string{}
	}
	data, err := json.MarshalIndent(units, "", "  ")
	if err != nil {
		return err
	}
	return atomicwriter.WriteFile(path, append(data, '\n'), 0o644)
}

// SealSignerKey encrypts the configured private key for use as a key file.
func SealSignerKey(cfg SignerConfig) (string, error) {
	if cfg.PrivateKey == "" {
		return "", errors.New("signer.private_key is required")
	}
	key, err := crypto.ParseSignerKey(cfg.PrivateKey)
	if err != nil {
		return "", err
	}
	return crypto.EncryptSignerKey(key, cfg.EncryptionKey)
}
