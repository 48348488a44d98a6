// Package txlog keeps a local append-only record of submitted transactions.
// The chain is the source of truth; this log exists so an operator can audit
// what the CLI sent without replaying explorer queries.
package txlog

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"github.com/sudostake/sudostake-cli/internal/engine"
)

type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func Open(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create tx log directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, fmt.Errorf("create tx lock directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open tx log sqlite: %w", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			network TEXT NOT NULL,
			vault TEXT NOT NULL,
			method TEXT NOT NULL,
			tx_hash TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at INTEGER NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS idx_transactions_vault_created ON transactions(vault, created_at DESC);",
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init tx log schema: %w", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends one submitted transaction. The file lock covers writers
// from concurrent CLI invocations sharing a state directory.
func (s *Store) Record(rec engine.TxRecord) error {
	if strings.TrimSpace(rec.Method) == "" {
		return fmt.Errorf("record transaction: missing method")
	}
	locked, err := s.lock.TryLockContext(context.Background(), 5*time.Second)
	if err != nil {
		return fmt.Errorf("lock tx log: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock tx log: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = s.db.Exec(`
		INSERT INTO transactions (network, vault, method, tx_hash, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.Network, rec.VaultID, rec.Method, rec.TxHash, rec.Status, created.Unix())
	if err != nil {
		return fmt.Errorf("record transaction: %w", err)
	}
	return nil
}

// Recent returns the latest records, newest first, optionally filtered to
// one vault.
func (s *Store) Recent(vaultID string, limit int) ([]engine.TxRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if strings.TrimSpace(vaultID) == "" {
		rows, err = s.db.Query(`
			SELECT network, vault, method, tx_hash, status, created_at
			FROM transactions ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	} else {
		rows, err = s.db.Query(`
			SELECT network, vault, method, tx_hash, status, created_at
			FROM transactions WHERE vault = ? ORDER BY created_at DESC, id DESC LIMIT ?`, vaultID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	records := make([]engine.TxRecord, 0)
	for rows.Next() {
		var rec engine.TxRecord
		var createdUnix int64
		if err := rows.Scan(&rec.Network, &rec.VaultID, &rec.Method, &rec.TxHash, &rec.Status, &createdUnix); err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		rec.CreatedAt = time.Unix(createdUnix, 0).UTC()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}
	return records, nil
}
