package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupFileStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir(), "sepolia")
	require.NoError(t, err)
	return s
}

func TestFileStore_Contract(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return setupFileStore(t)
	})
}

func TestFileStore_Path(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, "Sepolia Testnet")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "sepolia-testnet.json"), s.Path())
}

func TestFileStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "deployments")
	s, err := NewFileStore(dir, "sepolia")
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), sampleLedger(t)))
	_, err = os.Stat(s.Path())
	assert.NoError(t, err)
}

func TestFileStore_HumanReadable(t *testing.T) {
	s := setupFileStore(t)
	require.NoError(t, s.Save(context.Background(), sampleLedger(t)))

	content, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Contains(t, string(content), "\n  \"network\": \"sepolia\"")
	assert.Contains(t, string(content), "\"Token\": \"0x1111\"")
}

func TestFileStore_NoTempFilesLeftBehind(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()
	l := sampleLedger(t)

	for i := 0; i < 5; i++ {
		l.Advance(float64(3+i), "step", time.Now())
		require.NoError(t, s.Save(ctx, l))
	}

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sepolia.json", entries[0].Name())
}

func TestFileStore_CorruptTreatedAsNotFound(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated json", `{"version": 1, "network": "sepo`},
		{"not json", "hello"},
		{"unknown version", `{"version": 99, "network": "sepolia"}`},
		{"missing network", `{"version": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupFileStore(t)
			require.NoError(t, os.WriteFile(s.Path(), []byte(tt.content), 0o644))

			_, err := s.Load(context.Background())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestFileStore_ArchiveIsReadOnlyCopy(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()
	l := sampleLedger(t)
	require.NoError(t, l.Complete(time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)))

	path, err := s.Archive(ctx, l)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(s.Path()), "archive", "sepolia-20260302T083000Z-5f0c1d2e.json"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o444), info.Mode().Perm())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "\"completed\": true")
}

func TestFileStore_ArchiveLeavesNoTempFiles(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()
	l := sampleLedger(t)
	require.NoError(t, l.Complete(time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)))

	_, err := s.Archive(ctx, l)
	require.NoError(t, err)
	_, err = s.Archive(ctx, l)
	require.ErrorIs(t, err, ErrArchiveExists)

	entries, err := os.ReadDir(filepath.Join(filepath.Dir(s.Path()), "archive"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sepolia-20260302T083000Z-5f0c1d2e.json", entries[0].Name())
}

func TestFileStore_ArchiveIgnoresInterruptedAttempt(t *testing.T) {
	s := setupFileStore(t)
	ctx := context.Background()
	l := sampleLedger(t)
	require.NoError(t, l.Complete(time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC)))

	archiveDir := filepath.Join(filepath.Dir(s.Path()), "archive")
	require.NoError(t, os.MkdirAll(archiveDir, 0o755))
	stale := filepath.Join(archiveDir, ".sepolia-20260302T083000Z-5f0c1d2e.json.tmp-123")
	require.NoError(t, os.WriteFile(stale, []byte(`{"version": 1, "netw`), 0o444))

	path, err := s.Archive(ctx, l)
	require.NoError(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "\"completed\": true")
}
