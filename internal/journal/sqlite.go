package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		pipeline TEXT NOT NULL,
		network TEXT NOT NULL,
		step TEXT NOT NULL,
		kind TEXT NOT NULL,
		tx_hash TEXT,
		class_hash TEXT,
		contract_address TEXT,
		status TEXT NOT NULL,
		reason TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_network ON transactions(network, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_run ON transactions(run_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Record inserts a journal entry
func (s *SQLiteStore) Record(ctx context.Context, e *Entry) error {
	prepare(e)
	query := `
		INSERT INTO transactions (id, run_id, pipeline, network, step, kind, tx_hash, class_hash, contract_address, status, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.RunID, e.Pipeline, e.Network, e.Step, e.Kind,
		e.TxHash, e.ClassHash, e.ContractAddress, e.Status, e.Reason,
		e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("recording transaction: %w", err)
	}
	return nil
}

// List returns entries, newest first
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Network != "" {
		where = append(where, "network = ?")
		args = append(args, filter.Network)
	}
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}

	query := `SELECT id, run_id, pipeline, network, step, kind, tx_hash, class_hash, contract_address, status, reason, created_at FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC LIMIT ?"
	args = append(args, limitOf(filter))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                                       Entry
			txHash, classHash, contractAddr, reason sql.NullString
			createdAt                               string
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Pipeline, &e.Network, &e.Step, &e.Kind, &txHash, &classHash, &contractAddr, &e.Status, &reason, &createdAt); err != nil {
			return nil, err
		}
		e.TxHash = txHash.String
		e.ClassHash = classHash.String
		e.ContractAddress = contractAddr.String
		e.Reason = reason.String
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			s.logger.Warn("unparseable journal timestamp", "id", e.ID, "value", createdAt)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
