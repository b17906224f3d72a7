package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new Postgres store
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Migrate runs database migrations
func (s *PostgresStore) Migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		seq BIGSERIAL,
		id UUID PRIMARY KEY,
		run_id UUID NOT NULL,
		pipeline TEXT NOT NULL,
		network TEXT NOT NULL,
		step TEXT NOT NULL,
		kind TEXT NOT NULL,
		tx_hash TEXT,
		class_hash TEXT,
		contract_address TEXT,
		status TEXT NOT NULL,
		reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_network ON transactions(network, created_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_run ON transactions(run_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Record inserts a journal entry
func (s *PostgresStore) Record(ctx context.Context, e *Entry) error {
	prepare(e)
	query := `
		INSERT INTO transactions (id, run_id, pipeline, network, step, kind, tx_hash, class_hash, contract_address, status, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID, e.RunID, e.Pipeline, e.Network, e.Step, e.Kind,
		nullIfEmpty(e.TxHash), nullIfEmpty(e.ClassHash), nullIfEmpty(e.ContractAddress),
		e.Status, nullIfEmpty(e.Reason), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("recording transaction: %w", err)
	}
	return nil
}

// List returns entries, newest first
func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Network != "" {
		args = append(args, filter.Network)
		where = append(where, fmt.Sprintf("network = $%d", len(args)))
	}
	if filter.RunID != "" {
		args = append(args, filter.RunID)
		where = append(where, fmt.Sprintf("run_id = $%d", len(args)))
	}

	query := `SELECT id, run_id, pipeline, network, step, kind, tx_hash, class_hash, contract_address, status, reason, created_at FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, limitOf(filter))
	query += fmt.Sprintf(" ORDER BY created_at DESC, seq DESC LIMIT $%d", len(args))

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
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Pipeline, &e.Network, &e.Step, &e.Kind, &txHash, &classHash, &contractAddr, &e.Status, &reason, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.TxHash = txHash.String
		e.ClassHash = classHash.String
		e.ContractAddress = contractAddr.String
		e.Reason = reason.String
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
