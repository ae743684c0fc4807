package logstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/devmkr/Vislog/internal/dialect"
	"github.com/devmkr/Vislog/internal/model"
	"github.com/devmkr/Vislog/internal/querylang"
	"github.com/rs/zerolog/log"
)

// clauses accumulates optional WHERE conditions. Empty conditions are
// dropped, so absent filters never show up as vacuous predicates.
type clauses struct {
	parts []string
	args  []any
}

func (c *clauses) add(cond string, args ...any) {
	if strings.TrimSpace(cond) == "" {
		return
	}
	c.parts = append(c.parts, cond)
	c.args = append(c.args, args...)
}

// where renders " WHERE a AND b", or nothing when no condition was added.
func (c *clauses) where() string {
	if len(c.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(c.parts, " AND ")
}

// filterClauses assembles the time window, the compiled free-text query and
// the level and exception conditions.
func (s *Store) filterClauses(start *time.Time, filter model.QueryFilter) (*clauses, error) {
	c := &clauses{}
	ts := s.col(model.ColTimestamp)

	if start != nil {
		c.add(ts+" <= ?", s.d.TimeValue(*start))
	}
	switch {
	case filter.DateFilter != "":
		amount, unit, err := filter.DateFilter.Window()
		if err != nil {
			return nil, err
		}
		c.add(ts + " >= " + s.d.RelativeTimestamp(-amount, unit))
	case !filter.DateRange.IsZero():
		if !filter.DateRange.From.IsZero() {
			c.add(ts+" >= ?", s.d.TimeValue(filter.DateRange.From))
		}
		if !filter.DateRange.To.IsZero() {
			c.add(ts+" <= ?", s.d.TimeValue(filter.DateRange.To))
		}
	}

	frag, err := querylang.Translate(filter.Query, s.d)
	if err != nil {
		return nil, err
	}
	if !frag.Empty() {
		c.add("("+frag.SQL+")", frag.Args...)
	}

	if lvl := strings.TrimSpace(filter.Level); lvl != "" {
		parsed, ok := model.ParseLevel(lvl)
		if !ok {
			return nil, fmt.Errorf("%w: unknown level %q", model.ErrInvalidArgument, filter.Level)
		}
		c.add(s.col(model.ColLevel)+" = ?", parsed.String())
	}
	if filter.ExceptionsOnly {
		exc := s.col(model.ColException)
		c.add(fmt.Sprintf("(%s IS NOT NULL AND %s <> '')", exc, exc))
	}
	return c, nil
}

// Query returns page (1-based) of the entries matching filter, newest first,
// each with its properties ordered by name. startingTimestamp, when set,
// excludes entries after it.
func (s *Store) Query(ctx context.Context, page int, startingTimestamp *time.Time, filter model.QueryFilter) ([]model.LogEntry, error) {
	if page <= 0 {
		return nil, fmt.Errorf("%w: page must be positive, got %d", model.ErrInvalidArgument, page)
	}

	c, err := s.filterClauses(startingTimestamp, filter)
	if err != nil {
		return nil, err
	}

	query := s.d.Rebind(s.stmts.selectEntries + c.where() +
		fmt.Sprintf(" ORDER BY %s DESC, %s DESC ", s.col(model.ColTimestamp), s.col(model.ColID)) +
		s.d.Paginate((page-1)*s.pageSize, s.pageSize))

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	log.Debug().Str("sql", query).Int("args", len(c.args)).Msg("logstore: query")

	rows, err := s.db.QueryContext(ctx, query, c.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		var (
			e         model.LogEntry
			ts        dbTime
			exception sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Message, &e.MessageTemplate, &e.Level, &ts, &exception); err != nil {
			return nil, err
		}
		e.Timestamp = ts.Time
		if exception.Valid && exception.String != "" {
			exc := exception.String
			e.Exception = &exc
		}
		e.Properties = []model.LogProperty{}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.loadProperties(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Count returns how many entries match, using the same predicate as Query.
func (s *Store) Count(ctx context.Context, startingTimestamp *time.Time, filter model.QueryFilter) (int64, error) {
	c, err := s.filterClauses(startingTimestamp, filter)
	if err != nil {
		return 0, err
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	var n int64
	err = s.db.QueryRowContext(ctx, s.d.Rebind(s.stmts.countEntries+c.where()), c.args...).Scan(&n)
	return n, err
}

// loadProperties fills in the properties of entries with one query.
func (s *Store) loadProperties(ctx context.Context, entries []model.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	index := make(map[string]int, len(entries))
	ids := make([]any, len(entries))
	for i, e := range entries {
		index[e.ID] = i
		ids[i] = e.ID
	}

	q := s.d.QuoteIdent
	query := s.d.Rebind(fmt.Sprintf("SELECT %s, %s, %s FROM %s WHERE %s IN (%s) ORDER BY %s, %s",
		q(model.ColLogID), q(model.ColName), q(model.ColValue), q(model.TableProperty),
		q(model.ColLogID), dialect.Placeholders(len(ids)), q(model.ColLogID), q(model.ColName)))

	rows, err := s.db.QueryContext(ctx, query, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			logID string
			p     model.LogProperty
			value sql.NullString
		)
		if err := rows.Scan(&logID, &p.Name, &value); err != nil {
			return err
		}
		p.Value = value.String
		if i, ok := index[logID]; ok {
			entries[i].Properties = append(entries[i].Properties, p)
		}
	}
	return rows.Err()
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
}

// dbTime scans timestamps whichever way the driver returns them: time.Time
// from typed columns, text from SQLite.
type dbTime struct {
	time.Time
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("logstore: cannot scan %T into timestamp", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("logstore: unrecognized timestamp %q", s)
}
