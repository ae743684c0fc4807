// Package dialect isolates the SQL syntax differences between the storage
// engines the log store can run on. A Dialect is picked once by the host and
// injected into the store; nothing in the query path selects one implicitly.
package dialect

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/devmkr/Vislog/internal/model"
)

// Dialect supplies the engine-specific pieces of generated SQL.
type Dialect interface {
	// Name is the identifier used in configuration ("sqlite", "postgres", ...).
	Name() string
	// DriverName is the database/sql driver registered for this engine.
	DriverName() string
	// NormalizeDSN validates dsn and adds the options the store relies on.
	NormalizeDSN(dsn string) (string, error)
	// Tune adjusts pool settings after sql.Open.
	Tune(db *sql.DB, dsn string)

	// QuoteIdent quotes a trusted identifier (table or column name).
	QuoteIdent(name string) string
	// QuoteLiteral renders value as a string literal with all quoting escaped.
	QuoteLiteral(value string) string
	// Rebind rewrites '?' placeholders into the engine's native form.
	Rebind(query string) string
	// Paginate returns the row-window clause appended after ORDER BY.
	Paginate(offset, limit int) string
	// RelativeTimestamp evaluates to "now + amount*unit" in UTC.
	RelativeTimestamp(amount int, unit model.TimeUnit) string
	// NumericCast converts a text expression to a number, or NULL when the
	// text is not numeric.
	NumericCast(expr string) string
	// TimeValue encodes t as a bind parameter comparable with stored timestamps.
	TimeValue(t time.Time) any
	// IsUniqueViolation reports whether err is a uniqueness constraint failure.
	IsUniqueViolation(err error) bool
}

// Fragment is a piece of SQL written with '?' placeholders together with
// the arguments bound to them, in order.
type Fragment struct {
	SQL  string
	Args []any
}

// Empty reports whether the fragment carries no SQL.
func (f Fragment) Empty() bool { return strings.TrimSpace(f.SQL) == "" }

var registry = map[string]Dialect{}

func register(d Dialect, aliases ...string) {
	registry[d.Name()] = d
	for _, a := range aliases {
		registry[a] = d
	}
}

// Lookup returns the dialect registered under name (case-insensitive).
func Lookup(name string) (Dialect, error) {
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("dialect: unknown dialect %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names lists the canonical dialect names.
func Names() []string {
	return []string{"sqlite", "postgres", "mysql", "duckdb"}
}

// ansi holds the behaviour shared by the engines that follow standard SQL
// quoting. Concrete dialects embed it and override what differs.
type ansi struct{}

func (ansi) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (ansi) QuoteLiteral(value string) string {
	value = strings.ReplaceAll(value, "\x00", "")
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (ansi) Rebind(query string) string { return query }

func (ansi) Paginate(offset, limit int) string {
	return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
}

func (ansi) TimeValue(t time.Time) any { return t.UTC() }

func (ansi) Tune(*sql.DB, string) {}

// rebindNumbered rewrites each '?' outside quoted regions as prefix+N.
func rebindNumbered(query, prefix string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)

	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if quote != 0 {
			b.WriteByte(ch)
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
			b.WriteByte(ch)
		case '?':
			n++
			b.WriteString(prefix)
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// Placeholders returns n comma-separated '?' markers.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
