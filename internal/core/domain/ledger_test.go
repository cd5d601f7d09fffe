package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := NewLedger("sepolia", "0xdeployer", testNow)
	require.NoError(t, err)
	return l
}

// =============================================================================
// Ledger Creation Tests
// =============================================================================

func TestNewLedger_ValidInput(t *testing.T) {
	l := newTestLedger(t)

	assert.Equal(t, LedgerVersion, l.Version)
	assert.Equal(t, "sepolia", l.Network)
	assert.Equal(t, "0xdeployer", l.DeployerIdentity)
	assert.Equal(t, testNow, l.CreatedAt)
	assert.Empty(t, l.Units)
	assert.Empty(t, l.Flags)
	assert.Nil(t, l.Progress)
	assert.False(t, l.Completed)
}

func TestNewLedger_MissingNetwork(t *testing.T) {
	_, err := NewLedger("", "0xdeployer", testNow)
	assert.ErrorIs(t, err, ErrNetworkRequired)
}

func TestLedger_CheckNetwork(t *testing.T) {
	l := newTestLedger(t)

	assert.NoError(t, l.CheckNetwork("sepolia"))
	assert.ErrorIs(t, l.CheckNetwork("mainnet"), ErrNetworkMismatch)
}

// =============================================================================
// Unit and Flag Tests
// =============================================================================

func TestLedger_SetAndRemoveUnit(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.SetUnit("Token", "0xabc"))
	addr, ok := l.Address("Token")
	assert.True(t, ok)
	assert.Equal(t, "0xabc", addr)

	assert.True(t, l.RemoveUnit("Token"))
	assert.False(t, l.RemoveUnit("Token"))
	_, ok = l.Address("Token")
	assert.False(t, ok)
}

func TestLedger_SetUnit_Validation(t *testing.T) {
	l := newTestLedger(t)

	assert.ErrorIs(t, l.SetUnit("", "0xabc"), ErrUnitNameRequired)
	assert.ErrorIs(t, l.SetUnit("Token", ""), ErrAddressRequired)
}

func TestLedger_SetUnit_NilMaps(t *testing.T) {
	l := &Ledger{Network: "sepolia"}

	require.NoError(t, l.SetUnit("Token", "0xabc"))
	require.NoError(t, l.SetFlag("linked"))
	assert.Equal(t, "0xabc", l.Units["Token"])
	assert.True(t, l.FlagSet("linked"))
}

func TestLedger_UnitNamesSorted(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.SetUnit("Registry", "0x2"))
	require.NoError(t, l.SetUnit("Bridge", "0x1"))
	require.NoError(t, l.SetUnit("Token", "0x3"))

	assert.Equal(t, []string{"Bridge", "Registry", "Token"}, l.UnitNames())
}

func TestLedger_Flags(t *testing.T) {
	l := newTestLedger(t)

	assert.False(t, l.FlagSet("linked"))
	require.NoError(t, l.SetFlag("linked"))
	assert.True(t, l.FlagSet("linked"))
	assert.True(t, l.ClearFlag("linked"))
	assert.False(t, l.FlagSet("linked"))
	assert.ErrorIs(t, l.SetFlag(""), ErrFlagRequired)
}

// =============================================================================
// Progress Tests
// =============================================================================

func TestLedger_Advance_NeverRegresses(t *testing.T) {
	l := newTestLedger(t)

	assert.True(t, l.Advance(1, "deploy token", testNow))
	assert.True(t, l.Advance(2.5, "link registry", testNow.Add(time.Minute)))
	assert.False(t, l.Advance(2, "deploy registry", testNow.Add(2*time.Minute)))

	require.NotNil(t, l.Progress)
	assert.Equal(t, 2.5, l.Progress.StepID)
	assert.Equal(t, "link registry", l.Progress.Description)
	assert.Equal(t, testNow.Add(time.Minute), l.Progress.LastUpdated)
}

func TestLedger_Advance_RejectsNonFiniteIDs(t *testing.T) {
	l := newTestLedger(t)

	assert.False(t, l.Advance(math.NaN(), "nan", testNow))
	assert.Nil(t, l.Progress)

	require.True(t, l.Advance(2, "deploy registry", testNow))
	assert.False(t, l.Advance(math.NaN(), "nan", testNow))
	assert.False(t, l.Advance(math.Inf(1), "inf", testNow))
	assert.False(t, l.Advance(1, "deploy token", testNow))
	assert.Equal(t, float64(2), l.Progress.StepID)
}

func TestLedger_Advance_SameStepRefreshes(t *testing.T) {
	l := newTestLedger(t)

	l.Advance(3, "deploy bridge", testNow)
	assert.True(t, l.Advance(3, "deploy bridge", testNow.Add(time.Hour)))
	assert.Equal(t, testNow.Add(time.Hour), l.Progress.LastUpdated)
}

func TestLedger_Complete(t *testing.T) {
	l := newTestLedger(t)

	require.NoError(t, l.Complete(testNow))
	assert.True(t, l.Completed)
	require.NotNil(t, l.CompletedAt)
	assert.Equal(t, testNow, *l.CompletedAt)

	assert.ErrorIs(t, l.Complete(testNow), ErrLedgerCompleted)
}

// =============================================================================
// Reset and Clone Tests
// =============================================================================

func TestLedger_Reset_ClearsEverythingTogether(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.SetUnit("A", "0x1"))
	require.NoError(t, l.SetUnit("B", "0x2"))
	require.NoError(t, l.SetFlag("f1"))
	l.Advance(7, "final", testNow)
	require.NoError(t, l.Complete(testNow))

	l.Reset("0xnewdeployer")

	assert.Empty(t, l.Units)
	assert.Empty(t, l.Flags)
	assert.Nil(t, l.Progress)
	assert.False(t, l.Completed)
	assert.Nil(t, l.CompletedAt)
	assert.Equal(t, "0xnewdeployer", l.DeployerIdentity)
	assert.Equal(t, "sepolia", l.Network)
	assert.Equal(t, testNow, l.CreatedAt)
}

func TestLedger_Clone_IsDeep(t *testing.T) {
	l := newTestLedger(t)
	require.NoError(t, l.SetUnit("A", "0x1"))
	require.NoError(t, l.SetFlag("f1"))
	l.Advance(1, "first", testNow)

	c := l.Clone()
	require.NoError(t, c.SetUnit("A", "0x2"))
	c.ClearFlag("f1")
	c.Progress.StepID = 9

	assert.Equal(t, "0x1", l.Units["A"])
	assert.True(t, l.FlagSet("f1"))
	assert.Equal(t, float64(1), l.Progress.StepID)
}
