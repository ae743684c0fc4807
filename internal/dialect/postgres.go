package dialect

import (
	"errors"
	"fmt"

	"github.com/devmkr/Vislog/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
)

const pgUniqueViolation = "23505"

// Postgres targets PostgreSQL through pgx's database/sql adapter.
type Postgres struct{ ansi }

func init() { register(Postgres{}, "postgresql", "pgx") }

func (Postgres) Name() string       { return "postgres" }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) NormalizeDSN(dsn string) (string, error) {
	if _, err := pgx.ParseConfig(dsn); err != nil {
		return "", fmt.Errorf("dialect: invalid postgres dsn: %w", err)
	}
	return dsn, nil
}

func (Postgres) Rebind(query string) string {
	return rebindNumbered(query, "$")
}

func (Postgres) Paginate(offset, limit int) string {
	return fmt.Sprintf("OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", offset, limit)
}

// RelativeTimestamp works in UTC wall-clock time to match the TIMESTAMP
// column, whatever the session TimeZone is.
func (Postgres) RelativeTimestamp(amount int, unit model.TimeUnit) string {
	return fmt.Sprintf("((NOW() AT TIME ZONE 'UTC') + INTERVAL '%d %ss')", amount, unit)
}

func (Postgres) NumericCast(expr string) string {
	return fmt.Sprintf(`(CASE WHEN %[1]s ~ '^\s*[-+]?[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?\s*$' THEN CAST(%[1]s AS DOUBLE PRECISION) END)`, expr)
}

func (Postgres) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
