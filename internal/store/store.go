package store

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/ir"
	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/querysql"
)

// DriverName is the database/sql driver registered by this package.
// It is go-sqlite3 with the fold() function installed on every connection.
const DriverName = "sqlite3_pmeql"

// SQLite DSN parameters.
const (
	defaultBusyTimeout = "5000" // 5 seconds
	defaultSynchronous = "NORMAL"
	defaultJournalMode = "WAL"
	defaultReadConns   = 4
)

func init() {
	sql.Register(DriverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc(querysql.DefaultFoldFunc, foldSQL, true)
		},
	})
}

// foldSQL is the Go side of fold(). NULL folds to the empty string.
func foldSQL(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return ir.Fold(val)
	case []byte:
		return ir.Fold(string(val))
	default:
		return ir.Fold(fmt.Sprint(val))
	}
}

// Options controls how a database is opened.
type Options struct {
	// ReadOnly opens the file with mode=ro and query_only, so the data
	// source itself refuses writes regardless of what reaches it.
	ReadOnly bool

	// MaxOpenConns sizes the read-only pool (0 uses 4).
	// Writable stores always use a single connection.
	MaxOpenConns int
}

// Store is the SQLite data source explored by operators.
//
// It executes caller-supplied read queries with a row cap, introspects
// tables and columns, and reports query plans. It owns no schema of its own.
type Store struct {
	db       *sql.DB
	readOnly bool
	compiler *querysql.SQLCompiler
}

// Open opens the SQLite database at path.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes (writable stores only)
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// A read-only store requires the file to exist.
func Open(path string, opts Options) (*Store, error) {
	db, err := sql.Open(DriverName, buildDSN(path, opts.ReadOnly))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if opts.ReadOnly {
		n := opts.MaxOpenConns
		if n <= 0 {
			n = defaultReadConns
		}
		db.SetMaxOpenConns(n)
		db.SetMaxIdleConns(n)
	} else {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Store{db: db, readOnly: opts.ReadOnly, compiler: querysql.NewSQLCompiler()}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ReadOnly reports whether the store was opened read-only.
func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// buildDSN constructs a go-sqlite3 DSN. Pragmas ride on the DSN so every
// pooled connection gets them, not only the first.
func buildDSN(path string, readOnly bool) string {
	params := url.Values{}
	params.Set("_busy_timeout", defaultBusyTimeout)
	params.Set("_foreign_keys", "on")

	if readOnly {
		params.Set("mode", "ro")
		params.Set("_query_only", "on")
	} else {
		params.Set("_journal_mode", defaultJournalMode)
		params.Set("_synchronous", defaultSynchronous)
	}

	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + "?" + params.Encode()
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
