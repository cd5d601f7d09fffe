package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/artpar/chaindeploy/internal/core/deployment"
	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/artpar/chaindeploy/internal/shell/artifact"
	"github.com/artpar/chaindeploy/internal/shell/chain"
	"github.com/artpar/chaindeploy/internal/shell/metrics"
	"github.com/artpar/chaindeploy/internal/shell/store"
)

// =============================================================================
// Configuration
// =============================================================================

// Config configures an Orchestrator.
type Config struct {
	// Network the ledger belongs to. A stored ledger for another network
	// aborts the run.
	Network string

	// Force discards the existing ledger and redeploys everything.
	Force bool

	// Variables override the plan's own variables.
	Variables map[string]string

	Logger  *slog.Logger
	Metrics *metrics.Recorder

	// Now and NewRunID default to time.Now and uuid.NewString.
	Now      func() time.Time
	NewRunID func() string
}

// Result summarizes a finished run.
type Result struct {
	RunID       string
	State       deployment.RunState
	Units       map[string]string
	ArchivePath string
	Outcomes    map[metrics.Outcome]int
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator walks a plan step by step. It is single-use per run and must
// be the only writer of its store.
type Orchestrator struct {
	store     store.Store
	resolver  artifact.Resolver
	chain     chain.Client
	plan      *deployment.Plan
	variables map[string]string
	cfg       Config
	logger    *slog.Logger

	// verified holds units whose code was confirmed live during this run.
	verified map[string]bool
	outcomes map[metrics.Outcome]int
}

// New creates an Orchestrator. The plan must have passed ParsePlan.
func New(st store.Store, resolver artifact.Resolver, client chain.Client, plan *deployment.Plan, cfg Config) (*Orchestrator, error) {
	if st == nil || resolver == nil || client == nil {
		return nil, errors.New("store, resolver and chain client are required")
	}
	if plan == nil {
		return nil, deployment.ErrNoSteps
	}
	if err := deployment.ValidateOrder(plan.Steps); err != nil {
		return nil, err
	}
	if cfg.Network == "" {
		return nil, domain.ErrNetworkRequired
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = uuid.NewString
	}

	vars := make(map[string]string, len(plan.Variables)+len(cfg.Variables))
	for k, v := range plan.Variables {
		vars[k] = v
	}
	for k, v := range cfg.Variables {
		vars[k] = v
	}

	return &Orchestrator{
		store:     st,
		resolver:  resolver,
		chain:     client,
		plan:      plan,
		variables: vars,
		cfg:       cfg,
		logger:    cfg.Logger.With("network", cfg.Network),
		verified:  make(map[string]bool),
		outcomes:  make(map[metrics.Outcome]int),
	}, nil
}

// Run executes the plan to completion or to the first fatal error. On error
// the ledger holds the last checkpoint and a later Run resumes from it.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	runID := o.cfg.NewRunID()
	logger := o.logger.With("run_id", runID)

	state, sess, err := o.start(ctx, runID, logger)
	if err != nil {
		o.cfg.Metrics.Run(string(state), err, o.cfg.Now())
		return nil, err
	}
	logger = logger.With("state", string(state))

	result := &Result{RunID: runID, State: state, Outcomes: o.outcomes}

	if !state.RunsSteps() {
		logger.Info("plan already completed, nothing to do; use force to redeploy")
		result.Units = sess.Snapshot().Units
		// A previous run may have stopped between completion and archiving.
		result.ArchivePath, err = o.archive(ctx, sess, logger)
		o.cfg.Metrics.Run(string(state), err, o.cfg.Now())
		return result, err
	}

	err = o.walk(ctx, sess, logger)
	if err == nil {
		result.ArchivePath, err = o.finish(ctx, sess, logger)
	}
	result.Units = sess.Snapshot().Units
	o.cfg.Metrics.Run(string(state), err, o.cfg.Now())
	if err != nil {
		return result, err
	}

	logger.Info("deployment completed",
		"units", len(result.Units),
		"deployed", o.outcomes[metrics.OutcomeDeployed],
		"redeployed", o.outcomes[metrics.OutcomeRedeployed],
		"skipped", o.outcomes[metrics.OutcomeSkipped],
		"invoked", o.outcomes[metrics.OutcomeInvoked],
		"recovered", o.outcomes[metrics.OutcomeRecovered],
		"archive", result.ArchivePath)
	return result, nil
}

// start loads the ledger, picks the run state and prepares the session.
func (o *Orchestrator) start(ctx context.Context, runID string, logger *slog.Logger) (deployment.RunState, *Session, error) {
	identity, err := o.chain.CurrentIdentity(ctx)
	if err != nil {
		return deployment.StateFresh, nil, fmt.Errorf("%w: %w", ErrIdentity, err)
	}

	ledger, err := o.store.Load(ctx)
	found := err == nil
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			logger.Info("no usable ledger, starting fresh", "reason", err.Error())
		} else {
			logger.Warn("ledger unreadable, starting fresh", "error", err)
		}
	}

	if found {
		if err := ledger.CheckNetwork(o.cfg.Network); err != nil {
			return deployment.StateFresh, nil, err
		}
	}

	state := deployment.DetermineRunState(found, found && ledger.Completed, o.cfg.Force)
	logger.Info("run state determined", "state", string(state), "ledger_found", found, "identity", identity)

	switch state {
	case deployment.StateCompleted:
		return state, NewSession(o.store, ledger, runID, o.cfg.Now, logger), nil

	case deployment.StateResuming:
		sess := NewSession(o.store, ledger, runID, o.cfg.Now, logger)
		if err := o.reconcileAll(ctx, sess, logger); err != nil {
			return state, nil, err
		}
		return state, sess, nil

	case deployment.StateForceReset:
		if found {
			logger.Warn("force mode: discarding ledger",
				"units", len(ledger.Units), "flags", len(ledger.Flags), "completed", ledger.Completed)
			sess := NewSession(o.store, ledger, runID, o.cfg.Now, logger)
			if err := sess.Reset(ctx, identity); err != nil {
				return state, nil, err
			}
			return state, sess, nil
		}
	}

	fresh, err := domain.NewLedger(o.cfg.Network, identity, o.cfg.Now())
	if err != nil {
		return state, nil, err
	}
	sess := NewSession(o.store, fresh, runID, o.cfg.Now, logger)
	if err := sess.Flush(ctx); err != nil {
		return state, nil, err
	}
	return state, sess, nil
}

// walk executes every step in declaration order.
func (o *Orchestrator) walk(ctx context.Context, sess *Session, logger *slog.Logger) error {
	for _, step := range o.plan.Steps {
		stepLogger := logger.With("step_id", step.ID)

		if err := sess.Advance(ctx, step.ID, step.Description); err != nil {
			return &StepError{StepID: step.ID, Label: step.Label(), Err: err}
		}

		started := time.Now()
		var (
			outcome metrics.Outcome
			err     error
		)
		switch step.Kind() {
		case deployment.StepKindDeploy:
			outcome, err = o.deployIfNeeded(ctx, sess, step.Deploy, stepLogger)
		case deployment.StepKindInvoke:
			outcome, err = o.invokeIfNeeded(ctx, sess, step.Invoke, stepLogger)
		}
		if err != nil {
			outcome = metrics.OutcomeFailed
		}
		o.outcomes[outcome]++
		o.cfg.Metrics.Step(string(step.Kind()), outcome, time.Since(started))

		if err != nil {
			stepLogger.Error("step failed", "step", step.Label(), "error", err)
			return &StepError{StepID: step.ID, Label: step.Label(), Err: err}
		}
		stepLogger.Info("step done", "step", step.Label(), "outcome", string(outcome))
	}
	return nil
}

// finish marks the ledger completed and archives it.
func (o *Orchestrator) finish(ctx context.Context, sess *Session, logger *slog.Logger) (string, error) {
	if err := sess.Complete(ctx); err != nil {
		return "", err
	}
	return o.archive(ctx, sess, logger)
}

// archive writes the archival copy of a completed ledger. An archive that
// already exists for the same completion counts as written.
func (o *Orchestrator) archive(ctx context.Context, sess *Session, logger *slog.Logger) (string, error) {
	path, err := o.store.Archive(ctx, sess.Snapshot())
	switch {
	case errors.Is(err, store.ErrArchiveExists):
		logger.Debug("ledger already archived", "archive", path)
		return path, nil
	case err != nil:
		logger.Error("archive failed", "error", err)
		return "", fmt.Errorf("%w: %w", ErrArchive, err)
	}
	logger.Info("ledger archived", "archive", path)
	return path, nil
}

// =============================================================================
// Step Execution
// =============================================================================

// deployIfNeeded deploys a unit unless a live instance is already recorded.
func (o *Orchestrator) deployIfNeeded(ctx context.Context, sess *Session, d *deployment.DeployStep, logger *slog.Logger) (metrics.Outcome, error) {
	logger = logger.With("unit", d.Unit)
	outcome := metrics.OutcomeDeployed

	addr, cached := sess.Address(d.Unit)
	if deployment.DetermineUnitAction(cached, o.cfg.Force) == deployment.UnitReconcile {
		if o.verified[d.Unit] || o.isLive(ctx, d.Unit, addr, logger) {
			o.verified[d.Unit] = true
			logger.Info("unit live, skipping", "address", addr)
			return metrics.OutcomeSkipped, nil
		}
		if err := o.purge(ctx, sess, []string{d.Unit}, logger); err != nil {
			return "", err
		}
		outcome = metrics.OutcomeRedeployed
	}

	art, err := o.resolver.Resolve(ctx, d.Artifact)
	if err != nil {
		return "", err
	}
	args, err := deployment.ResolveArgs(d.Args, o.variables, sess.Address)
	if err != nil {
		return "", err
	}

	logger.Info("deploying unit", "artifact", d.Artifact, "args", len(args))
	deployed, err := o.chain.Deploy(ctx, art, args)
	if err != nil {
		return "", err
	}
	if err := sess.RecordUnit(ctx, d.Unit, deployed); err != nil {
		return "", err
	}
	o.verified[d.Unit] = true
	logger.Info("unit deployed", "address", deployed)
	return outcome, nil
}

// invokeIfNeeded performs a configuration action unless its flag is set.
func (o *Orchestrator) invokeIfNeeded(ctx context.Context, sess *Session, inv *deployment.InvokeStep, logger *slog.Logger) (metrics.Outcome, error) {
	logger = logger.With("flag", inv.Flag, "unit", inv.Target)

	if deployment.DetermineInvokeAction(sess.FlagSet(inv.Flag), o.cfg.Force) == deployment.InvokeSkip {
		logger.Info("action already done, skipping")
		return metrics.OutcomeSkipped, nil
	}

	target, ok := sess.Address(inv.Target)
	if !ok {
		return "", deployment.NewPlanError("target",
			fmt.Sprintf("unit %q has no recorded address", inv.Target), deployment.ErrUnresolvedReference)
	}
	art, err := o.resolver.Resolve(ctx, inv.Artifact)
	if err != nil {
		return "", err
	}
	args, err := deployment.ResolveArgs(inv.Args, o.variables, sess.Address)
	if err != nil {
		return "", err
	}

	outcome := metrics.OutcomeInvoked
	logger.Info("invoking", "method", inv.Method, "address", target)
	err = o.chain.Invoke(ctx, chain.Call{
		Target:   target,
		Artifact: art,
		Method:   inv.Method,
		Args:     args,
	})
	if err != nil {
		if !deployment.IsAlreadyDone(err, inv.AlreadyDone) {
			return "", err
		}
		logger.Warn("action reported as already done, treating as success", "error", err)
		outcome = metrics.OutcomeRecovered
	}

	if err := sess.RecordFlag(ctx, inv.Flag); err != nil {
		return "", err
	}
	return outcome, nil
}
