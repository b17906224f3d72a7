// Package journal keeps an audit trail of every transaction gatewayctl
// submits, in SQLite or Postgres.
package journal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pendergraft/gatewayctl/internal/config"
)

// ErrDisabled is returned when reading from a journal that is not configured.
var ErrDisabled = errors.New("transaction journal is disabled (set JOURNAL_TYPE=sqlite or postgres)")

// Entry statuses.
const (
	StatusSubmitted = "submitted"
	StatusSkipped   = "skipped"
	StatusAccepted  = "accepted"
	StatusReverted  = "reverted"
	StatusTimeout   = "timeout"
	StatusRejected  = "rejected"
)

// Entry is one journal row. A transaction usually produces two: one when
// it is submitted and one with its final status.
type Entry struct {
	ID              string
	RunID           string
	Pipeline        string
	Network         string
	Step            string
	Kind            string
	TxHash          string
	ClassHash       string
	ContractAddress string
	Status          string
	Reason          string
	CreatedAt       time.Time
}

// Filter contains filter options for listing entries
type Filter struct {
	Network string
	RunID   string
	Limit   int
}

// Store is a transaction journal with lifecycle methods.
type Store interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, filter Filter) ([]Entry, error)

	Close() error
	Migrate(ctx context.Context) error
}

// New creates a journal based on configuration and runs its migrations.
func New(ctx context.Context, cfg config.JournalConfig, logger *slog.Logger) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Type {
	case "", "none":
		return Discard{}, nil
	case "sqlite":
		s, err = NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		s, err = NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown journal type: %s", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrating journal: %w", err)
	}
	return s, nil
}

// Discard is the journal used when none is configured.
type Discard struct{}

func (Discard) Record(context.Context, *Entry) error { return nil }

func (Discard) List(context.Context, Filter) ([]Entry, error) { return nil, ErrDisabled }

func (Discard) Close() error                  { return nil }
func (Discard) Migrate(context.Context) error { return nil }

// prepare fills generated fields before insert.
func prepare(e *Entry) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
}

func limitOf(f Filter) int {
	if f.Limit <= 0 {
		return 50
	}
	return f.Limit
}
