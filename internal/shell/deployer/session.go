package deployer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/artpar/chaindeploy/internal/shell/store"
)

// =============================================================================
// Session
// =============================================================================

// Session owns the ledger for the duration of a run. Every mutator applies
// the change to a copy, saves the copy and only then adopts it, so the
// in-memory ledger never runs ahead of the stored one.
type Session struct {
	store  store.Store
	ledger *domain.Ledger
	runID  string
	now    func() time.Time
	logger *slog.Logger
}

// NewSession wraps a loaded or freshly created ledger.
func NewSession(st store.Store, ledger *domain.Ledger, runID string, now func() time.Time, logger *slog.Logger) *Session {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		store:  st,
		ledger: ledger,
		runID:  runID,
		now:    now,
		logger: logger,
	}
}

// Snapshot returns a copy of the current ledger.
func (s *Session) Snapshot() *domain.Ledger {
	return s.ledger.Clone()
}

// Address returns the recorded address of a unit.
func (s *Session) Address(unit string) (string, bool) {
	return s.ledger.Address(unit)
}

// FlagSet reports whether a configuration action is recorded as done.
func (s *Session) FlagSet(flag string) bool {
	return s.ledger.FlagSet(flag)
}

// Units returns the recorded unit names, sorted.
func (s *Session) Units() []string {
	return s.ledger.UnitNames()
}

// =============================================================================
// Flushing Mutators
// =============================================================================

// Flush saves the ledger as is.
func (s *Session) Flush(ctx context.Context) error {
	return s.commit(ctx, "flush", func(*domain.Ledger) error { return nil })
}

// RecordUnit records a deployed unit's address.
func (s *Session) RecordUnit(ctx context.Context, unit, address string) error {
	return s.commit(ctx, "record unit", func(l *domain.Ledger) error {
		return l.SetUnit(unit, address)
	})
}

// RecordFlag marks a configuration action as done.
func (s *Session) RecordFlag(ctx context.Context, flag string) error {
	return s.commit(ctx, "record flag", func(l *domain.Ledger) error {
		return l.SetFlag(flag)
	})
}

// Forget removes units and flags in a single save. Nothing is written when
// none of them are recorded.
func (s *Session) Forget(ctx context.Context, units, flags []string) error {
	changed := false
	for _, u := range units {
		if _, ok := s.ledger.Units[u]; ok {
			changed = true
		}
	}
	for _, f := range flags {
		if _, ok := s.ledger.Flags[f]; ok {
			changed = true
		}
	}
	if !changed {
		return nil
	}

	return s.commit(ctx, "forget", func(l *domain.Ledger) error {
		for _, u := range units {
			l.RemoveUnit(u)
		}
		for _, f := range flags {
			l.ClearFlag(f)
		}
		return nil
	})
}

// Advance moves progress to a step. Replaying an earlier step leaves the
// ledger untouched and writes nothing.
func (s *Session) Advance(ctx context.Context, stepID float64, description string) error {
	now := s.now()
	if !s.ledger.Clone().Advance(stepID, description, now) {
		return nil
	}
	return s.commit(ctx, "advance", func(l *domain.Ledger) error {
		l.Advance(stepID, description, now)
		return nil
	})
}

// Complete marks the plan done.
func (s *Session) Complete(ctx context.Context) error {
	return s.commit(ctx, "complete", func(l *domain.Ledger) error {
		return l.Complete(s.now())
	})
}

// Reset wipes units, flags, progress and completion in a single save.
func (s *Session) Reset(ctx context.Context, deployerIdentity string) error {
	return s.commit(ctx, "reset", func(l *domain.Ledger) error {
		l.Reset(deployerIdentity)
		return nil
	})
}

func (s *Session) commit(ctx context.Context, op string, mutate func(*domain.Ledger) error) error {
	next := s.ledger.Clone()
	if err := mutate(next); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	next.RunID = s.runID

	if err := s.store.Save(ctx, next); err != nil {
		s.logger.Error("ledger flush failed", "op", op, "error", err)
		return fmt.Errorf("%w: %s: %w", ErrLedgerWrite, op, err)
	}
	s.ledger = next
	return nil
}
