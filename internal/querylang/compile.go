// Package querylang compiles the log filter language into SQL predicates.
//
// A filter is a boolean expression over comparisons:
//
//	@level = 'Error' and (RequestPath like '/api/%' or StatusCode >= 500)
//
// Names with an @ sigil refer to entry columns; bare names refer to
// properties and compile to correlated EXISTS subqueries. Every literal and
// every property name is bound as a parameter.
package querylang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/devmkr/Vislog/internal/dialect"
	"github.com/devmkr/Vislog/internal/model"
)

const maxIdentLength = 128

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]*$`)

var sqlOps = map[string]string{
	"=":    "=",
	"!=":   "<>",
	">":    ">",
	">=":   ">=",
	"<":    "<",
	"<=":   "<=",
	"LIKE": "LIKE",
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Translate parses queryText and compiles it into a predicate for d. Blank
// input yields an empty fragment. Malformed input fails with *SyntaxError.
func Translate(queryText string, d dialect.Dialect) (dialect.Fragment, error) {
	node, err := Parse(queryText)
	if err != nil || node == nil {
		return dialect.Fragment{}, err
	}

	c := &compiler{d: d, query: queryText}
	sql, err := c.compile(node)
	if err != nil {
		return dialect.Fragment{}, err
	}
	return dialect.Fragment{SQL: sql, Args: c.args}, nil
}

// Validate reports whether queryText would translate. Every compile error
// is dialect independent, so the SQL is built for SQLite and discarded.
func Validate(queryText string) error {
	_, err := Translate(queryText, dialect.SQLite{})
	return err
}

type compiler struct {
	d     dialect.Dialect
	query string
	args  []any
}

func (c *compiler) errorf(pos int, format string, args ...any) error {
	return &SyntaxError{Query: c.query, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return "?"
}

func (c *compiler) column(table, name string) string {
	return c.d.QuoteIdent(table) + "." + c.d.QuoteIdent(name)
}

func (c *compiler) compile(n Node) (string, error) {
	switch n := n.(type) {
	case BinaryExpr:
		left, err := c.compile(n.Left)
		if err != nil {
			return "", err
		}
		right, err := c.compile(n.Right)
		if err != nil {
			return "", err
		}
		return "(" + left + " " + n.Op + " " + right + ")", nil
	case NotExpr:
		inner, err := c.compile(n.Expr)
		if err != nil {
			return "", err
		}
		return "NOT (" + inner + ")", nil
	case Comparison:
		if n.Ref.Field {
			return c.coreField(n)
		}
		return c.property(n)
	}
	return "", fmt.Errorf("querylang: unexpected node %T", n)
}

func (c *compiler) coreField(cmp Comparison) (string, error) {
	col := c.column(model.TableLog, cmp.Ref.Name)
	if cmp.Literal.Kind == LitNull {
		switch cmp.Op {
		case "=":
			return col + " IS NULL", nil
		case "!=":
			return col + " IS NOT NULL", nil
		}
		return "", c.errorf(cmp.Literal.Pos, "null can only be compared with = or !=")
	}

	switch cmp.Ref.Name {
	case model.ColLevel:
		return c.level(col, cmp)
	case model.ColTimestamp:
		return c.timestamp(col, cmp)
	}
	return c.value(col, cmp.Op, cmp.Literal)
}

// level normalizes the literal through model.ParseLevel. Ordering operators
// follow the severity order and expand to the matching set of level names.
func (c *compiler) level(col string, cmp Comparison) (string, error) {
	if cmp.Op == "LIKE" {
		return c.value(col, cmp.Op, cmp.Literal)
	}
	if cmp.Literal.Kind != LitString {
		return "", c.errorf(cmp.Literal.Pos, "@level must be compared with a level name")
	}
	lvl, ok := model.ParseLevel(cmp.Literal.Value)
	if !ok {
		return "", c.errorf(cmp.Literal.Pos, "unknown level %q", cmp.Literal.Value)
	}

	switch cmp.Op {
	case "=", "!=":
		return col + " " + sqlOps[cmp.Op] + " " + c.bind(lvl.String()), nil
	}

	var names []string
	for _, l := range model.Levels {
		if compareLevels(l, lvl, cmp.Op) {
			names = append(names, l.String())
		}
	}
	if len(names) == 0 {
		return "1 = 0", nil
	}
	marks := make([]string, len(names))
	for i, name := range names {
		marks[i] = c.bind(name)
	}
	return col + " IN (" + strings.Join(marks, ", ") + ")", nil
}

func compareLevels(l, ref model.Level, op string) bool {
	switch op {
	case ">":
		return l > ref
	case ">=":
		return l >= ref
	case "<":
		return l < ref
	case "<=":
		return l <= ref
	}
	return false
}

func (c *compiler) timestamp(col string, cmp Comparison) (string, error) {
	if cmp.Op == "LIKE" {
		return "", c.errorf(cmp.Pos, "LIKE cannot be applied to @timestamp")
	}
	if cmp.Literal.Kind != LitString {
		return "", c.errorf(cmp.Literal.Pos, "@timestamp must be compared with a quoted date or time")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, cmp.Literal.Value); err == nil {
			return col + " " + sqlOps[cmp.Op] + " " + c.bind(c.d.TimeValue(t)), nil
		}
	}
	return "", c.errorf(cmp.Literal.Pos, "invalid timestamp %q", cmp.Literal.Value)
}

// property compiles a comparison against a property into a correlated
// EXISTS subquery. "= null" means the property is absent.
func (c *compiler) property(cmp Comparison) (string, error) {
	name := cmp.Ref.Name
	if len(name) > maxIdentLength || !identPattern.MatchString(name) {
		return "", c.errorf(cmp.Ref.Pos, "invalid property name %q", name)
	}

	sub := fmt.Sprintf("SELECT 1 FROM %s p WHERE %s = %s AND %s = %s",
		c.d.QuoteIdent(model.TableProperty),
		c.column("p", model.ColLogID), c.column(model.TableLog, model.ColID),
		c.column("p", model.ColName), c.bind(name))

	if cmp.Literal.Kind == LitNull {
		switch cmp.Op {
		case "=":
			return "NOT EXISTS (" + sub + ")", nil
		case "!=":
			return "EXISTS (" + sub + ")", nil
		}
		return "", c.errorf(cmp.Literal.Pos, "null can only be compared with = or !=")
	}

	cond, err := c.value(c.column("p", model.ColValue), cmp.Op, cmp.Literal)
	if err != nil {
		return "", err
	}
	return "EXISTS (" + sub + " AND " + cond + ")", nil
}

// value compares a text expression with a literal. Equality always compares
// text; ordering against a number goes through the dialect's numeric cast so
// non-numeric values never match.
func (c *compiler) value(expr, op string, lit Literal) (string, error) {
	switch lit.Kind {
	case LitBool:
		if op != "=" && op != "!=" {
			return "", c.errorf(lit.Pos, "booleans can only be compared with = or !=")
		}
		return "LOWER(" + expr + ") " + sqlOps[op] + " " + c.bind(lit.Value), nil
	case LitNumber:
		if op == "=" || op == "!=" || op == "LIKE" {
			return expr + " " + sqlOps[op] + " " + c.bind(lit.Value), nil
		}
		f, err := strconv.ParseFloat(lit.Value, 64)
		if err != nil {
			return "", c.errorf(lit.Pos, "invalid number %q", lit.Value)
		}
		return c.d.NumericCast(expr) + " " + sqlOps[op] + " " + c.bind(f), nil
	case LitString:
		return expr + " " + sqlOps[op] + " " + c.bind(lit.Value), nil
	}
	return "", c.errorf(lit.Pos, "null can only be compared with = or !=")
}
