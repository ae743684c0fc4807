// Package retention resolves per-level maximum ages and turns them into the
// deletion predicate used by cleanup.
package retention

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/devmkr/Vislog/internal/dialect"
	"github.com/devmkr/Vislog/internal/model"
)

var (
	ErrInvalidRule      = errors.New("retention: invalid rule")
	ErrOverlappingRules = errors.New("retention: overlapping rules")
)

// Rule keeps entries of Levels for at most MaxAge. A rule with no levels is
// the catch-all for every level no other rule names.
type Rule struct {
	Levels []model.Level
	MaxAge time.Duration
}

// CatchAll reports whether r applies to unclaimed levels.
func (r Rule) CatchAll() bool { return len(r.Levels) == 0 }

func (r Rule) String() string {
	if r.CatchAll() {
		return fmt.Sprintf("* -> %s", r.MaxAge)
	}
	names := make([]string, len(r.Levels))
	for i, l := range r.Levels {
		names[i] = l.String()
	}
	return fmt.Sprintf("%s -> %s", strings.Join(names, ","), r.MaxAge)
}

// Policy is a validated set of rules. A level is claimed by at most one
// explicit rule and there is at most one catch-all.
type Policy struct {
	rules    []Rule
	explicit map[model.Level]time.Duration
	catchAll *Rule
}

// NewPolicy validates rules. Two explicit rules naming the same level, or
// more than one catch-all, fail with ErrOverlappingRules.
func NewPolicy(rules ...Rule) (*Policy, error) {
	p := &Policy{explicit: make(map[model.Level]time.Duration)}

	for i, r := range rules {
		if r.MaxAge <= 0 {
			return nil, fmt.Errorf("%w: rule %d (%s) needs a positive max age", ErrInvalidRule, i, r)
		}
		if r.CatchAll() {
			if p.catchAll != nil {
				return nil, fmt.Errorf("%w: rules %s and %s are both catch-all", ErrOverlappingRules, *p.catchAll, r)
			}
			rule := r
			p.catchAll = &rule
			p.rules = append(p.rules, r)
			continue
		}
		// A level repeated within one rule is kept once.
		levels := make([]model.Level, 0, len(r.Levels))
		for _, l := range r.Levels {
			if !l.Valid() {
				return nil, fmt.Errorf("%w: rule %d has unknown level %d", ErrInvalidRule, i, int(l))
			}
			if slices.Contains(levels, l) {
				continue
			}
			if _, dup := p.explicit[l]; dup {
				return nil, fmt.Errorf("%w: level %s is claimed by more than one rule", ErrOverlappingRules, l)
			}
			p.explicit[l] = r.MaxAge
			levels = append(levels, l)
		}
		p.rules = append(p.rules, Rule{Levels: levels, MaxAge: r.MaxAge})
	}
	return p, nil
}

// Rules returns the validated rules in configuration order.
func (p *Policy) Rules() []Rule {
	return append([]Rule(nil), p.rules...)
}

// Empty reports whether the policy deletes nothing.
func (p *Policy) Empty() bool { return len(p.rules) == 0 }

// Resolve returns the maximum age for level. The explicit rule naming the
// level wins over the catch-all; false means entries are kept forever.
func (p *Policy) Resolve(level model.Level) (time.Duration, bool) {
	if age, ok := p.explicit[level]; ok {
		return age, true
	}
	if p.catchAll != nil {
		return p.catchAll.MaxAge, true
	}
	return 0, false
}

// DeletionPredicate selects every entry older than the max age of its level,
// measured from now. Cutoffs are bound as parameters. An empty policy yields
// an empty fragment.
func (p *Policy) DeletionPredicate(now time.Time, d dialect.Dialect) dialect.Fragment {
	levelCol := d.QuoteIdent(model.TableLog) + "." + d.QuoteIdent(model.ColLevel)
	tsCol := d.QuoteIdent(model.TableLog) + "." + d.QuoteIdent(model.ColTimestamp)

	var (
		terms   []string
		args    []any
		claimed []any
	)
	for _, r := range p.rules {
		if r.CatchAll() {
			continue
		}
		names := levelArgs(r.Levels)
		claimed = append(claimed, names...)
		args = append(args, names...)
		args = append(args, d.TimeValue(now.Add(-r.MaxAge)))
		terms = append(terms, fmt.Sprintf("(%s IN (%s) AND %s < ?)", levelCol, dialect.Placeholders(len(names)), tsCol))
	}

	if p.catchAll != nil {
		cutoff := d.TimeValue(now.Add(-p.catchAll.MaxAge))
		if len(claimed) == 0 {
			terms = append(terms, fmt.Sprintf("(%s < ?)", tsCol))
		} else {
			terms = append(terms, fmt.Sprintf("(%s NOT IN (%s) AND %s < ?)", levelCol, dialect.Placeholders(len(claimed)), tsCol))
			args = append(args, claimed...)
		}
		args = append(args, cutoff)
	}

	return dialect.Fragment{SQL: strings.Join(terms, " OR "), Args: args}
}

func levelArgs(levels []model.Level) []any {
	out := make([]any, len(levels))
	for i, l := range levels {
		out[i] = l.String()
	}
	return out
}

// ParseRule builds a Rule from configuration text: level names (empty for
// the catch-all) and a max age accepted by ParseMaxAge.
func ParseRule(levels []string, maxAge string) (Rule, error) {
	age, err := ParseMaxAge(maxAge)
	if err != nil {
		return Rule{}, err
	}
	r := Rule{MaxAge: age}
	for _, name := range levels {
		lvl, ok := model.ParseLevel(name)
		if !ok {
			return Rule{}, fmt.Errorf("%w: unknown level %q", ErrInvalidRule, name)
		}
		r.Levels = append(r.Levels, lvl)
	}
	return r, nil
}

// ParseMaxAge accepts Go durations ("5h", "90m") plus day and week
// suffixes ("10d", "2w").
func ParseMaxAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n := len(s); n > 1 {
		var unit time.Duration
		switch s[n-1] {
		case 'd':
			unit = 24 * time.Hour
		case 'w':
			unit = 7 * 24 * time.Hour
		}
		if unit > 0 {
			v, err := strconv.ParseFloat(s[:n-1], 64)
			if err != nil || v <= 0 {
				return 0, fmt.Errorf("%w: invalid max age %q", ErrInvalidRule, s)
			}
			return time.Duration(v * float64(unit)), nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: invalid max age %q", ErrInvalidRule, s)
	}
	return d, nil
}
