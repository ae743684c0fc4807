// Package logstore persists log events and serves filtered, paginated reads
// over any engine with a dialect.Dialect.
package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/devmkr/Vislog/internal/dialect"
	"github.com/devmkr/Vislog/internal/logstore/migrate"
	"github.com/devmkr/Vislog/internal/model"
	"github.com/devmkr/Vislog/internal/retention"
	"github.com/rs/zerolog/log"
)

// Config holds the store settings supplied by the host.
type Config struct {
	// PageSize is the number of entries per Query page.
	PageSize int
	// MountPath is the dashboard's own path. Events whose RequestPath or
	// Path property contains it are not stored. Empty disables the check.
	MountPath string
	// QueryTimeout bounds every statement issued by the store. Zero leaves
	// deadlines to the caller's context and the driver.
	QueryTimeout time.Duration
	// Retention drives Cleanup. Nil keeps everything.
	Retention *retention.Policy
}

// Store is the log repository over a database/sql handle.
type Store struct {
	db           *sql.DB
	d            dialect.Dialect
	pageSize     int
	mountPath    string
	queryTimeout time.Duration
	policy       *retention.Policy
	now          func() time.Time
	stmts        statements
}

// Open connects using d, applies pending migrations and returns the store.
func Open(ctx context.Context, d dialect.Dialect, dsn string, cfg Config) (*Store, error) {
	normalized, err := d.NormalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.DriverName(), normalized)
	if err != nil {
		return nil, fmt.Errorf("logstore: open %s: %w", d.Name(), err)
	}
	d.Tune(db, normalized)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("logstore: connect %s: %w", d.Name(), err)
	}

	if err := migrate.NewRunner(db, d).Run(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("logstore: migrate: %w", err)
	}

	log.Info().Str("dialect", d.Name()).Msg("log store opened")
	return New(db, d, cfg), nil
}

// New wraps an already opened and migrated database.
func New(db *sql.DB, d dialect.Dialect, cfg Config) *Store {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = model.DefaultPageSize
	}
	return &Store{
		db:           db,
		d:            d,
		pageSize:     pageSize,
		mountPath:    cfg.MountPath,
		queryTimeout: cfg.QueryTimeout,
		policy:       cfg.Retention,
		now:          time.Now,
		stmts:        buildStatements(d),
	}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the dialect the store generates SQL for.
func (s *Store) Dialect() dialect.Dialect {
	return s.d
}

// PageSize returns the number of entries per Query page.
func (s *Store) PageSize() int {
	return s.pageSize
}

// queryCtx derives a context bounded by the store's query timeout, if any.
func (s *Store) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

// col renders a column of the entry table, qualified and quoted.
func (s *Store) col(name string) string {
	return s.d.QuoteIdent(model.TableLog) + "." + s.d.QuoteIdent(name)
}

// statements are the fixed SQL texts, quoted and rebound once per store.
type statements struct {
	insertEntry    string
	insertProperty string
	selectEntries  string
	countEntries   string
	saveQuery      string
	listQueries    string
	deleteQuery    string
}

func buildStatements(d dialect.Dialect) statements {
	q := d.QuoteIdent
	logT, propT, queryT := q(model.TableLog), q(model.TableProperty), q(model.TableQuery)

	return statements{
		insertEntry: d.Rebind(fmt.Sprintf("INSERT INTO %s (%s, %s, %s, %s, %s, %s) VALUES (?, ?, ?, ?, ?, ?)",
			logT, q(model.ColID), q(model.ColMessage), q(model.ColMessageTemplate),
			q(model.ColLevel), q(model.ColTimestamp), q(model.ColException))),
		insertProperty: d.Rebind(fmt.Sprintf("INSERT INTO %s (%s, %s, %s) VALUES (?, ?, ?)",
			propT, q(model.ColLogID), q(model.ColName), q(model.ColValue))),
		selectEntries: fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s FROM %s",
			q(model.ColID), q(model.ColMessage), q(model.ColMessageTemplate),
			q(model.ColLevel), q(model.ColTimestamp), q(model.ColException), logT),
		countEntries: fmt.Sprintf("SELECT COUNT(*) FROM %s", logT),
		saveQuery: d.Rebind(fmt.Sprintf("INSERT INTO %s (%s, %s) VALUES (?, ?)",
			queryT, q(model.ColName), q(model.ColQuery))),
		listQueries: fmt.Sprintf("SELECT %s, %s, %s FROM %s ORDER BY %s",
			q(model.ColID), q(model.ColName), q(model.ColQuery), queryT, q(model.ColName)),
		deleteQuery: d.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s = ?", queryT, q(model.ColName))),
	}
}
