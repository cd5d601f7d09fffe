package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/chaindeploy/internal/core/deployment"
	"github.com/artpar/chaindeploy/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite. One database may hold the
// ledgers of several networks; each store instance is bound to one.
type SQLiteStore struct {
	db      *sqlx.DB
	network string
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn, network string) (*SQLiteStore, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	db, err := sqlx.Open("sqlite3", dsn+sep+"_busy_timeout=5000")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// Serialize access; ledgers are written one step at a time anyway.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db, network: network}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Ledger Operations
// =============================================================================

// ledgerRow represents a ledger row in the database.
type ledgerRow struct {
	Network   string `db:"network"`
	Body      string `db:"body"`
	UpdatedAt string `db:"updated_at"`
}

func (s *SQLiteStore) Load(ctx context.Context) (*domain.Ledger, error) {
	query := `SELECT network, body, updated_at FROM ledgers WHERE network = ?`

	var row ledgerRow
	if err := s.db.GetContext(ctx, &row, query, s.network); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("Load", "ledger", s.network, "ledger not found", ErrNotFound)
		}
		return nil, NewStoreError("Load", "ledger", s.network, fmt.Sprintf("unreadable ledger: %v", err), ErrNotFound)
	}

	return decodeLedger("Load", s.network, []byte(row.Body))
}

func (s *SQLiteStore) Save(ctx context.Context, ledger *domain.Ledger) error {
	data, err := encodeLedger("Save", ledger)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO ledgers (network, body, updated_at)
		VALUES (:network, :body, :updated_at)
		ON CONFLICT(network) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at`

	row := map[string]any{
		"network":    s.network,
		"body":       string(data),
		"updated_at": time.Now().UTC().Format(time.RFC3339Nano),
	}

	return s.withTx(ctx, "Save", func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return NewStoreError("Save", "ledger", s.network, err.Error(), ErrWriteFailed)
		}
		return nil
	})
}

func (s *SQLiteStore) Archive(ctx context.Context, ledger *domain.Ledger) (string, error) {
	if ledger == nil || !ledger.Completed || ledger.CompletedAt == nil {
		return "", NewStoreError("Archive", "archive", s.network, "only completed ledgers are archived", ErrNotCompleted)
	}
	data, err := encodeLedger("Archive", ledger)
	if err != nil {
		return "", err
	}

	name := deployment.ArchiveName(ledger.Network, *ledger.CompletedAt, ledger.RunID)
	query := `
		INSERT INTO ledger_archives (network, name, body, completed_at)
		VALUES (:network, :name, :body, :completed_at)`

	row := map[string]any{
		"network":      s.network,
		"name":         name,
		"body":         string(data),
		"completed_at": ledger.CompletedAt.UTC().Format(time.RFC3339Nano),
	}

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: ledger_archives.name") {
			return name, NewStoreError("Archive", "archive", name, "archive already exists", ErrArchiveExists)
		}
		return "", NewStoreError("Archive", "archive", name, err.Error(), ErrWriteFailed)
	}
	return name, nil
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) withTx(ctx context.Context, op string, fn func(*sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError(op, "", "", "failed to begin transaction", ErrTxFailed)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError(op, "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError(op, "", "", "failed to commit transaction", ErrWriteFailed)
	}

	return nil
}
