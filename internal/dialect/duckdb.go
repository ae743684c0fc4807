package dialect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/devmkr/Vislog/internal/model"

	"github.com/duckdb/duckdb-go/v2"
)

// DuckDB targets the embedded DuckDB engine. An empty DSN is an in-memory
// database shared by every connection of the pool.
type DuckDB struct{ ansi }

func init() { register(DuckDB{}) }

func (DuckDB) Name() string       { return "duckdb" }
func (DuckDB) DriverName() string { return "duckdb" }

// NormalizeDSN makes sure the parent directory of a file database exists.
func (DuckDB) NormalizeDSN(dsn string) (string, error) {
	path := dsn
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return "", fmt.Errorf("dialect: create duckdb directory: %w", err)
		}
	}
	return dsn, nil
}

// RelativeTimestamp works in epoch microseconds so the result is a UTC
// TIMESTAMP regardless of the session time zone.
func (DuckDB) RelativeTimestamp(amount int, unit model.TimeUnit) string {
	return fmt.Sprintf("make_timestamp(epoch_us(now()) + %d)", unit.Duration(amount).Microseconds())
}

func (DuckDB) NumericCast(expr string) string {
	return fmt.Sprintf("TRY_CAST(%s AS DOUBLE)", expr)
}

func (DuckDB) IsUniqueViolation(err error) bool {
	var de *duckdb.Error
	if errors.As(err, &de) {
		return de.Type == duckdb.ErrorTypeConstraint
	}
	return err != nil && strings.Contains(err.Error(), "Duplicate key")
}
