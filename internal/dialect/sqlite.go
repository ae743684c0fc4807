package dialect

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devmkr/Vislog/internal/model"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// sqliteTimeLayout is fixed-width so stored timestamps order lexically,
// including against the millisecond output of strftime('%Y-%m-%d %H:%M:%f').
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// sqliteNumberFunc converts numeric text to REAL and anything else to NULL.
const sqliteNumberFunc = "vislog_number"

var numericText = regexp.MustCompile(`^\s*[-+]?[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?\s*$`)

// SQLite targets modernc.org/sqlite, a pure Go driver.
type SQLite struct{ ansi }

func init() {
	register(SQLite{}, "sqlite3")
	if err := sqlite.RegisterDeterministicScalarFunction(sqliteNumberFunc, 1, sqliteNumber); err != nil {
		panic(fmt.Sprintf("dialect: register %s: %v", sqliteNumberFunc, err))
	}
}

func sqliteNumber(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	var text string
	switch v := args[0].(type) {
	case int64:
		return float64(v), nil
	case float64:
		return v, nil
	case string:
		text = v
	case []byte:
		text = string(v)
	default:
		return nil, nil
	}
	if !numericText.MatchString(text) {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return nil, nil
	}
	return f, nil
}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite" }

// NormalizeDSN maps an empty DSN to an in-memory database and appends the
// pragmas the store depends on unless the caller already set them.
func (SQLite) NormalizeDSN(dsn string) (string, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = ":memory:"
	}
	var opts []string
	if !strings.Contains(dsn, "busy_timeout") {
		opts = append(opts, "_pragma=busy_timeout(5000)")
	}
	if !strings.Contains(dsn, "foreign_keys") {
		opts = append(opts, "_pragma=foreign_keys(1)")
	}
	if !strings.Contains(dsn, "_txlock") {
		opts = append(opts, "_txlock=immediate")
	}
	if len(opts) == 0 {
		return dsn, nil
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(opts, "&"), nil
}

// Tune pins in-memory databases to one connection; every new connection
// would otherwise open a separate empty database.
func (SQLite) Tune(db *sql.DB, dsn string) {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		db.SetMaxOpenConns(1)
	}
}

func (SQLite) RelativeTimestamp(amount int, unit model.TimeUnit) string {
	return fmt.Sprintf("strftime('%%Y-%%m-%%d %%H:%%M:%%f', 'now', '%+d %ss')", amount, unit)
}

func (SQLite) NumericCast(expr string) string {
	return sqliteNumberFunc + "(" + expr + ")"
}

func (SQLite) TimeValue(t time.Time) any {
	return t.UTC().Format(sqliteTimeLayout)
}

func (SQLite) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE || se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}
