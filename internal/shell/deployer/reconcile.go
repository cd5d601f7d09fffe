package deployer

import (
	"context"
	"log/slog"

	"github.com/artpar/chaindeploy/internal/core/deployment"
)

// =============================================================================
// Reconciliation
// =============================================================================

// isLive checks a recorded address against the chain. A malformed address or
// a failed query counts as absent: the unit is redeployed rather than trusted.
func (o *Orchestrator) isLive(ctx context.Context, unit, address string, logger *slog.Logger) bool {
	present, err := o.chain.CodePresentAt(ctx, address)
	if err != nil {
		logger.Warn("code lookup failed, treating unit as absent", "unit", unit, "address", address, "error", err)
		return false
	}
	if !present {
		logger.Warn("no code at recorded address", "unit", unit, "address", address)
	}
	return present
}

// reconcileAll checks every recorded unit before a resumed run walks the plan
// and purges the dead ones.
func (o *Orchestrator) reconcileAll(ctx context.Context, sess *Session, logger *slog.Logger) error {
	var dead []string
	for _, unit := range sess.Units() {
		addr, _ := sess.Address(unit)
		if o.isLive(ctx, unit, addr, logger) {
			o.verified[unit] = true
			continue
		}
		dead = append(dead, unit)
	}
	if len(dead) == 0 {
		logger.Info("all recorded units live", "units", len(o.verified))
		return nil
	}
	return o.purge(ctx, sess, dead, logger)
}

// purge forgets dead units together with every unit and flag that depends on
// them in the plan, so their steps run again as if never started. The ledger
// is flushed before anything is redeployed.
func (o *Orchestrator) purge(ctx context.Context, sess *Session, dead []string, logger *slog.Logger) error {
	downUnits, downFlags := deployment.Downstream(o.plan.Steps, dead)

	units := append(append([]string(nil), dead...), downUnits...)
	for _, u := range units {
		delete(o.verified, u)
	}

	logger.Warn("purging stale ledger entries", "dead", dead, "downstream_units", downUnits, "downstream_flags", downFlags)
	return sess.Forget(ctx, units, downFlags)
}
