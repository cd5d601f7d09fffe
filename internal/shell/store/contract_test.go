package store

import (
	"context"
	"testing"
	"time"

	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory creates a fresh Store bound to the "sepolia" network.
type storeFactory func(t *testing.T) Store

var contractNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleLedger(t *testing.T) *domain.Ledger {
	t.Helper()
	l, err := domain.NewLedger("sepolia", "0xdeployer", contractNow)
	require.NoError(t, err)
	l.RunID = "5f0c1d2e-aaaa-bbbb-cccc-000000000000"
	require.NoError(t, l.SetUnit("Token", "0x1111"))
	require.NoError(t, l.SetUnit("Registry", "0x2222"))
	require.NoError(t, l.SetFlag("registry_linked"))
	l.Advance(2.5, "invoke Token.setRegistry", contractNow)
	return l
}

// runStoreContract exercises the Store contract shared by every backend.
func runStoreContract(t *testing.T, factory storeFactory) {
	t.Run("LoadMissing", func(t *testing.T) {
		s := factory(t)
		_, err := s.Load(context.Background())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		l := sampleLedger(t)

		require.NoError(t, s.Save(ctx, l))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, domain.LedgerVersion, got.Version)
		assert.Equal(t, "sepolia", got.Network)
		assert.Equal(t, "0xdeployer", got.DeployerIdentity)
		assert.Equal(t, l.Units, got.Units)
		assert.Equal(t, l.Flags, got.Flags)
		require.NotNil(t, got.Progress)
		assert.Equal(t, 2.5, got.Progress.StepID)
		assert.True(t, contractNow.Equal(got.CreatedAt))
		assert.False(t, got.Completed)
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		l := sampleLedger(t)
		require.NoError(t, s.Save(ctx, l))

		l.RemoveUnit("Registry")
		require.NoError(t, s.Save(ctx, l))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"Token": "0x1111"}, got.Units)
	})

	t.Run("EmptyMapsSurvive", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		l, err := domain.NewLedger("sepolia", "0xdeployer", contractNow)
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, l))

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.NotNil(t, got.Units)
		assert.NotNil(t, got.Flags)
		assert.Nil(t, got.Progress)
	})

	t.Run("ArchiveRequiresCompletion", func(t *testing.T) {
		s := factory(t)
		_, err := s.Archive(context.Background(), sampleLedger(t))
		assert.ErrorIs(t, err, ErrNotCompleted)
	})

	t.Run("ArchiveOnce", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		l := sampleLedger(t)
		require.NoError(t, l.Complete(contractNow.Add(time.Hour)))

		name, err := s.Archive(ctx, l)
		require.NoError(t, err)
		assert.Contains(t, name, "sepolia-20260301T130000Z-5f0c1d2e.json")

		again, err := s.Archive(ctx, l)
		assert.ErrorIs(t, err, ErrArchiveExists)
		assert.Equal(t, name, again)
	})

	t.Run("ArchiveDoesNotTouchLiveLedger", func(t *testing.T) {
		s := factory(t)
		ctx := context.Background()
		l := sampleLedger(t)
		require.NoError(t, s.Save(ctx, l))

		done := l.Clone()
		require.NoError(t, done.Complete(contractNow))
		_, err := s.Archive(ctx, done)
		require.NoError(t, err)

		got, err := s.Load(ctx)
		require.NoError(t, err)
		assert.False(t, got.Completed)
	})
}
