package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/artpar/chaindeploy/internal/core/deployment"
	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/moby/sys/atomicwriter"
)

// =============================================================================
// FileStore
// =============================================================================

// FileStore keeps the live ledger as {dir}/{network}.json and archives under
// {dir}/archive/.
type FileStore struct {
	network    string
	path       string
	archiveDir string
}

// NewFileStore creates a file-backed store for a network, creating dir if needed.
func NewFileStore(dir, network string) (*FileStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, NewStoreError("NewFileStore", "ledger", network, err.Error(), ErrWriteFailed)
	}
	return &FileStore{
		network:    network,
		path:       filepath.Join(dir, deployment.LedgerFileName(network)),
		archiveDir: filepath.Join(dir, "archive"),
	}, nil
}

// Path returns the live ledger file path.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (*domain.Ledger, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewStoreError("Load", "ledger", s.network, "no ledger file", ErrNotFound)
		}
		return nil, NewStoreError("Load", "ledger", s.network, fmt.Sprintf("unreadable ledger: %v", err), ErrNotFound)
	}
	return decodeLedger("Load", s.network, data)
}

func (s *FileStore) Save(ctx context.Context, ledger *domain.Ledger) error {
	data, err := encodeLedger("Save", ledger)
	if err != nil {
		return err
	}
	// Written to a temp file in the same directory, synced and renamed.
	if err := atomicwriter.WriteFile(s.path, data, 0o644); err != nil {
		return NewStoreError("Save", "ledger", s.network, err.Error(), ErrWriteFailed)
	}
	return nil
}

func (s *FileStore) Archive(ctx context.Context, ledger *domain.Ledger) (string, error) {
	if ledger == nil || !ledger.Completed || ledger.CompletedAt == nil {
		return "", NewStoreError("Archive", "archive", s.network, "only completed ledgers are archived", ErrNotCompleted)
	}
	data, err := encodeLedger("Archive", ledger)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.archiveDir, 0o755); err != nil {
		return "", NewStoreError("Archive", "archive", s.network, err.Error(), ErrWriteFailed)
	}

	name := deployment.ArchiveName(ledger.Network, *ledger.CompletedAt, ledger.RunID)
	path := filepath.Join(s.archiveDir, name)

	// The copy is written and synced under a temp name, then hard-linked
	// into place. Link fails if the name exists, so a half-written archive
	// never appears under the final name.
	tmp, err := os.CreateTemp(s.archiveDir, "."+name+".tmp-*")
	if err != nil {
		return "", NewStoreError("Archive", "archive", name, err.Error(), ErrWriteFailed)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", NewStoreError("Archive", "archive", name, err.Error(), ErrWriteFailed)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", NewStoreError("Archive", "archive", name, err.Error(), ErrWriteFailed)
	}
	if err := tmp.Close(); err != nil {
		return "", NewStoreError("Archive", "archive", name, err.Error(), ErrWriteFailed)
	}
	if err := os.Chmod(tmp.Name(), 0o444); err != nil {
		return "", NewStoreError("Archive", "archive", name, err.Error(), ErrWriteFailed)
	}
	if err := os.Link(tmp.Name(), path); err != nil {
		if errors.Is(err, os.ErrExist) {
			return path, NewStoreError("Archive", "archive", name, "archive already exists", ErrArchiveExists)
		}
		return "", NewStoreError("Archive", "archive", name, err.Error(), ErrWriteFailed)
	}
	return path, nil
}

// Close is a no-op; nothing is held open between calls.
func (s *FileStore) Close() error {
	return nil
}
