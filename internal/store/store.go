// Package store persists documents, their page images and the recognized
// text blocks in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrStorage marks failures of the underlying database.
	ErrStorage = errors.New("storage error")
	// ErrDuplicateName is returned when a new document's name is taken.
	ErrDuplicateName = errors.New("document name already exists")
	// ErrEmptyName is returned when a new document has no name.
	ErrEmptyName = errors.New("document name is empty")
	// ErrNotFound is returned for unknown documents or pages.
	ErrNotFound = errors.New("not found")
	// ErrNoPages is returned when a commit carries no pages.
	ErrNoPages = errors.New("no pages to commit")
)

// StorageError wraps a database failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes every StorageError match ErrStorage.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

// Store is a handle on the notes database. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

type options struct {
	logger       *slog.Logger
	busyTimeout  time.Duration
	maxOpenConns int
	now          func() time.Time
}

// Option configures Open.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBusyTimeout sets how long a connection waits on a locked database.
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithMaxOpenConns limits the connection pool.
func WithMaxOpenConns(n int) Option {
	return func(o *options) { o.maxOpenConns = n }
}

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// DSN builds the connection string for path with the pragmas every
// connection needs. Foreign keys are per connection in SQLite, so they go in
// the DSN rather than a one-off PRAGMA.
func DSN(path string, busyTimeout time.Duration) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", busyTimeout.Milliseconds()),
	}
	if !isMemory(path) {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)", "_pragma=synchronous(NORMAL)")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(pragmas, "&")
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

// Open opens (creating if needed) the database at path and ensures the
// schema exists.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	o := options{
		logger:      slog.Default(),
		busyTimeout: 10 * time.Second,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if !isMemory(path) {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, storageErr("open", err)
			}
		}
	}

	db, err := sql.Open("sqlite", DSN(path, o.busyTimeout))
	if err != nil {
		return nil, storageErr("open", err)
	}
	if isMemory(path) {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	} else if o.maxOpenConns > 0 {
		db.SetMaxOpenConns(o.maxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storageErr("ping", err)
	}

	s := &Store{db: db, logger: o.logger, now: o.now}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	o.logger.Debug("database opened", "path", path)
	return s, nil
}

// OpenMemory opens a private in-memory database.
func OpenMemory(ctx context.Context, opts ...Option) (*Store, error) {
	return Open(ctx, ":memory:", opts...)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Count returns the number of rows in one of the notely tables.
func (s *Store) Count(ctx context.Context, table string) (int64, error) {
	switch table {
	case TableDocuments, TablePages, TableBlocks:
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, storageErr("count "+table, err)
}
