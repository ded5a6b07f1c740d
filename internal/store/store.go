package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/PseudoDevs/IamJohnDevORM/internal/queryir"
)

// stmtCacheSize caps the prepared statements held per store. IN-lists and
// partial updates produce a distinct statement per shape, so the cache is
// bounded and the least recently used statement is closed on overflow.
const stmtCacheSize = 64

// Supported drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config describes one store connection.
type Config struct {
	// Driver is DriverSQLite or DriverPostgres.
	Driver string

	// DSN is a file path for SQLite or a connection string for Postgres.
	DSN string

	// MaxOpenConns caps open connections. SQLite always uses one.
	MaxOpenConns int

	// Logger receives Debug records for statement preparation.
	Logger *slog.Logger
}

// Store executes compiled statements against a relational database.
//
// Statements arrive with "?" placeholders and are rebound to the driver's
// style. Prepared statements are cached by their rebound SQL text, so two
// statements share a prepared handle only when their text is identical.
// At most stmtCacheSize statements stay prepared.
//
// Thread-safety: All methods are safe for concurrent use.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger

	mu    sync.Mutex
	stmts *simplelru.LRU[string, *cachedStmt]
}

// cachedStmt counts in-flight users so an evicted statement is closed only
// once the last of them has released it.
type cachedStmt struct {
	stmt    *sqlx.Stmt
	refs    int
	evicted bool
}

// Open connects to the database described by cfg.
//
// SQLite databases are configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//   - a single open connection
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if cfg.Driver != DriverSQLite && cfg.Driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("no data source name for driver %s", cfg.Driver)
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// SQLite only supports one writer at a time, so limit connections
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Store{db: db, logger: logger}
	s.stmts, err = simplelru.NewLRU[string, *cachedStmt](stmtCacheSize, s.evict)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("statement cache: %w", err)
	}
	return s, nil
}

// Close releases cached statements and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.mu.Lock()
	s.stmts.Purge()
	s.mu.Unlock()
	return s.db.Close()
}

// DB returns the underlying handle.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Driver returns the driver name.
func (s *Store) Driver() string {
	return s.db.DriverName()
}

// Query runs a row-returning statement and returns every row as a
// column-keyed map. Byte-slice values are returned as strings.
func (s *Store) Query(ctx context.Context, query string, params []any) ([]queryir.Row, error) {
	cs, err := s.prepare(ctx, query)
	if err != nil {
		return nil, err
	}
	defer s.release(cs)

	rows, err := cs.stmt.QueryxContext(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	out := []queryir.Row{}
	for rows.Next() {
		m := make(map[string]any)
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, queryir.Row(m))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// Exec runs a statement and returns the number of rows affected.
func (s *Store) Exec(ctx context.Context, query string, params []any) (int64, error) {
	cs, err := s.prepare(ctx, query)
	if err != nil {
		return 0, err
	}
	defer s.release(cs)

	res, err := cs.stmt.ExecContext(ctx, params...)
	if err != nil {
		return 0, fmt.Errorf("exec: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// prepare returns the cached statement for query, preparing it on first
// use. The caller must hand the statement back with release.
func (s *Store) prepare(ctx context.Context, query string) (*cachedStmt, error) {
	bound := s.db.Rebind(query)

	s.mu.Lock()
	defer s.mu.Unlock()

	if cs, ok := s.stmts.Get(bound); ok {
		cs.refs++
		return cs, nil
	}

	stmt, err := s.db.PreparexContext(ctx, bound)
	if err != nil {
		return nil, fmt.Errorf("prepare: %w", err)
	}
	cs := &cachedStmt{stmt: stmt, refs: 1}
	s.stmts.Add(bound, cs)
	s.logger.Debug("prepared statement", "sql", bound, "cached", s.stmts.Len())
	return cs, nil
}

func (s *Store) release(cs *cachedStmt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cs.refs--
	if cs.evicted && cs.refs == 0 {
		cs.stmt.Close()
	}
}

// evict runs under s.mu when the cache drops a statement.
func (s *Store) evict(sql string, cs *cachedStmt) {
	cs.evicted = true
	if cs.refs == 0 {
		cs.stmt.Close()
	}
	s.logger.Debug("evicted statement", "sql", sql)
}

// cachedStatements returns the number of prepared statements held.
func (s *Store) cachedStatements() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stmts.Len()
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}
