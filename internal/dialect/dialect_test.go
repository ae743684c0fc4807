package dialect

import (
	"database/sql/driver"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/devmkr/Vislog/internal/model"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for _, name := range []string{"sqlite", "SQLite", "postgres", "postgresql", "pgx", "mysql", "mariadb", "duckdb"} {
		d, err := Lookup(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, d.DriverName())
	}

	_, err := Lookup("oracle")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "a = ? AND b = ?", "a = $1 AND b = $2"},
		{"inside literal", "a = '?' AND b = ?", "a = '?' AND b = $1"},
		{"escaped quote", "a = 'it''s?' OR b = ?", "a = 'it''s?' OR b = $1"},
		{"quoted identifier", `"we?ird" = ?`, `"we?ird" = $1`},
		{"none", "SELECT 1", "SELECT 1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Postgres{}.Rebind(tt.input))
			assert.Equal(t, tt.input, SQLite{}.Rebind(tt.input))
		})
	}
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, `'O''Brien'`, SQLite{}.QuoteLiteral("O'Brien"))
	assert.Equal(t, `''' OR ''1''=''1'`, Postgres{}.QuoteLiteral("' OR '1'='1"))
	assert.Equal(t, `'a\\'' OR 1=1 -- '`, MySQL{}.QuoteLiteral(`a\' OR 1=1 -- `))
	assert.Equal(t, `'nul'`, DuckDB{}.QuoteLiteral("n\x00ul"))
}

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"messageTemplate"`, Postgres{}.QuoteIdent("messageTemplate"))
	assert.Equal(t, "`timestamp`", MySQL{}.QuoteIdent("timestamp"))
	assert.Equal(t, `"a""b"`, SQLite{}.QuoteIdent(`a"b`))
}

func TestPaginate(t *testing.T) {
	assert.Equal(t, "LIMIT 50 OFFSET 100", SQLite{}.Paginate(100, 50))
	assert.Equal(t, "LIMIT 50 OFFSET 100", MySQL{}.Paginate(100, 50))
	assert.Equal(t, "LIMIT 50 OFFSET 100", DuckDB{}.Paginate(100, 50))
	assert.Equal(t, "OFFSET 100 ROWS FETCH NEXT 50 ROWS ONLY", Postgres{}.Paginate(100, 50))
}

func TestRelativeTimestamp(t *testing.T) {
	assert.Equal(t, "strftime('%Y-%m-%d %H:%M:%f', 'now', '-5 minutes')", SQLite{}.RelativeTimestamp(-5, model.Minute))
	assert.Equal(t, "((NOW() AT TIME ZONE 'UTC') + INTERVAL '-4 hours')", Postgres{}.RelativeTimestamp(-4, model.Hour))
	assert.Equal(t, "DATE_ADD(UTC_TIMESTAMP(6), INTERVAL -7 DAY)", MySQL{}.RelativeTimestamp(-7, model.Day))
	assert.Equal(t, "make_timestamp(epoch_us(now()) + -300000000)", DuckDB{}.RelativeTimestamp(-5, model.Minute))
}

func TestTimeValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 30, 15, 123456789, time.FixedZone("X", 2*3600))

	assert.Equal(t, "2024-03-01 08:30:15.123456789", SQLite{}.TimeValue(ts))
	assert.Equal(t, "2024-03-01 08:30:15.000000000", SQLite{}.TimeValue(ts.Truncate(time.Second)))
	v, ok := Postgres{}.TimeValue(ts).(time.Time)
	require.True(t, ok)
	assert.Equal(t, time.UTC, v.Location())
	assert.True(t, v.Equal(ts))
}

func TestSQLiteNumber(t *testing.T) {
	tests := []struct {
		in   any
		want any
	}{
		{"5", 5.0},
		{" -1.5e2 ", -150.0},
		{"+0.25", 0.25},
		{[]byte("42"), 42.0},
		{int64(7), 7.0},
		{3.5, 3.5},
		{"e", nil},
		{"-", nil},
		{"1-2", nil},
		{"1.2.3", nil},
		{".5", nil},
		{"1e", nil},
		{"abc", nil},
		{"", nil},
		{nil, nil},
	}
	for _, tt := range tests {
		got, err := sqliteNumber(nil, []driver.Value{tt.in})
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "input %q", tt.in)
	}
	assert.Equal(t, "vislog_number(v.value)", SQLite{}.NumericCast("v.value"))
}

func TestSQLiteNormalizeDSN(t *testing.T) {
	dsn, err := SQLite{}.NormalizeDSN("")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(dsn, ":memory:?"))
	assert.Contains(t, dsn, "_pragma=busy_timeout(5000)")

	dsn, err = SQLite{}.NormalizeDSN("file:logs.db?_pragma=busy_timeout(100)")
	require.NoError(t, err)
	assert.Contains(t, dsn, "busy_timeout(100)")
	assert.NotContains(t, dsn, "busy_timeout(5000)")
	assert.Contains(t, dsn, "&_txlock=immediate")
}

func TestMySQLNormalizeDSN(t *testing.T) {
	dsn, err := MySQL{}.NormalizeDSN("user:pw@tcp(localhost:3306)/logs")
	require.NoError(t, err)
	assert.Contains(t, dsn, "parseTime=true")

	_, err = MySQL{}.NormalizeDSN("not a dsn")
	assert.Error(t, err)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, Postgres{}.IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, Postgres{}.IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.True(t, MySQL{}.IsUniqueViolation(&mysql.MySQLError{Number: 1062}))
	assert.False(t, MySQL{}.IsUniqueViolation(errors.New("boom")))
	assert.False(t, SQLite{}.IsUniqueViolation(errors.New("UNIQUE constraint failed")))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?, ?, ?", Placeholders(3))
	assert.Equal(t, "", Placeholders(0))
}
