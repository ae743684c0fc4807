package dialect

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/devmkr/Vislog/internal/model"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

// MySQL targets MySQL 8 / MariaDB through go-sql-driver.
type MySQL struct{ ansi }

func init() { register(MySQL{}, "mariadb") }

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

// NormalizeDSN forces DATETIME columns to be scanned as UTC time.Time values.
func (MySQL) NormalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("dialect: invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func (MySQL) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteLiteral also escapes backslashes: MySQL treats them as escape
// characters inside string literals unless NO_BACKSLASH_ESCAPES is set.
func (MySQL) QuoteLiteral(value string) string {
	value = strings.ReplaceAll(value, "\x00", "")
	value = strings.ReplaceAll(value, `\`, `\\`)
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (MySQL) RelativeTimestamp(amount int, unit model.TimeUnit) string {
	return fmt.Sprintf("DATE_ADD(UTC_TIMESTAMP(6), INTERVAL %d %s)", amount, strings.ToUpper(unit.String()))
}

func (MySQL) NumericCast(expr string) string {
	return fmt.Sprintf("(CASE WHEN %[1]s REGEXP '^[[:space:]]*[-+]?[0-9]+([.][0-9]+)?([eE][-+]?[0-9]+)?[[:space:]]*$' THEN CAST(%[1]s AS DOUBLE) END)", expr)
}

func (MySQL) IsUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
