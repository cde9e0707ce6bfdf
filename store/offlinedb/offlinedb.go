package offlinedb

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"github.com/halftrip/cachepurge"
)

//go:embed schema.sql
var schemaSQL string

// DefaultName is the adapter name unless WithName overrides it.
const DefaultName = "offline-db"

// clearOrder lists tables children first. cache_meta goes last so a reader never sees
// "initialized" over half-deleted data.
var clearOrder = []string{
	"expense_splits",
	"expenses",
	"poll_options",
	"polls",
	"checklist_items",
	"notes",
	"trip_members",
	"trips",
	"cache_meta",
}

const initializedKey = "initialized"

// Option configures Open.
type Option func(*options)

type options struct {
	name     string
	readOnly bool
}

// WithName overrides the adapter name.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// ReadOnly opens the database with writes disabled (PRAGMA query_only).
func ReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// Store is the structured offline cache of trips and everything hanging off them.
// It implements cachepurge.Adapter.
type Store struct {
	db   *sql.DB
	name string

	mu     sync.RWMutex
	closed bool
}

// Open creates or opens a SQLite database at path and applies the schema.
func Open(path string, opts ...Option) (*Store, error) {
	o := options{name: DefaultName}
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open offline db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect offline db: %w", err)
	}
	// SQLite allows one writer; a single connection also keeps PRAGMAs in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA secure_delete = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if o.readOnly {
		if _, err := db.Exec("PRAGMA query_only = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set query_only: %w", err)
		}
	}
	return &Store{db: db, name: o.name}, nil
}

// Name implements cachepurge.Adapter.
func (s *Store) Name() string { return s.name }

// Close closes the database. Later clears report ErrUnavailable.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Clear deletes every cached row in one transaction, then checkpoints and truncates the
// WAL. With secure_delete on, deleted rows are zeroed in the database file and no copy
// is left in the -wal file.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return cachepurge.NewClearError(s.name, cachepurge.ErrUnavailable, errors.New("database closed"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(s.name, err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	for _, table := range clearOrder {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return classify(s.name, fmt.Errorf("delete %s: %w", table, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return classify(s.name, fmt.Errorf("commit: %w", err))
	}
	var busy, logFrames, checkpointed int
	err = s.db.QueryRowContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		return classify(s.name, fmt.Errorf("checkpoint: %w", err))
	}
	if busy != 0 {
		return cachepurge.NewClearError(s.name, cachepurge.ErrUnavailable, errors.New("wal checkpoint blocked by a reader"))
	}
	return nil
}

// Rows returns the number of cached rows per table.
func (s *Store) Rows(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(clearOrder))
	for _, table := range clearOrder {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

// Total returns the number of cached rows across every table.
func (s *Store) Total(ctx context.Context) (int, error) {
	rows, err := s.Rows(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, n := range rows {
		total += n
	}
	return total, nil
}

func classify(name string, err error) *cachepurge.ClearError {
	kind := cachepurge.ErrFault
	var sqlErr sqlite3.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = cachepurge.ErrTimeout
	case errors.Is(err, sql.ErrConnDone):
		kind = cachepurge.ErrUnavailable
	case errors.As(err, &sqlErr):
		switch sqlErr.Code {
		case sqlite3.ErrPerm, sqlite3.ErrReadonly, sqlite3.ErrAuth:
			kind = cachepurge.ErrAccessDenied
		case sqlite3.ErrFull:
			kind = cachepurge.ErrQuotaExceeded
		case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrBusy, sqlite3.ErrLocked:
			kind = cachepurge.ErrUnavailable
		}
	}
	return cachepurge.NewClearError(name, kind, err)
}
