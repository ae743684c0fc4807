package logstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/devmkr/Vislog/internal/model"
	"github.com/rs/zerolog/log"
)

// SaveQuery stores a named query. A duplicate name is reported as false
// and leaves the existing row untouched.
func (s *Store) SaveQuery(ctx context.Context, name, query string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, fmt.Errorf("%w: saved query needs a name", model.ErrInvalidArgument)
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, s.stmts.saveQuery, name, query); err != nil {
		if s.d.IsUniqueViolation(err) {
			log.Debug().Str("name", name).Msg("logstore: saved query already exists")
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListSavedQueries returns every saved query ordered by name.
func (s *Store) ListSavedQueries(ctx context.Context) ([]model.SavedQuery, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, s.stmts.listQueries)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	queries := []model.SavedQuery{}
	for rows.Next() {
		var q model.SavedQuery
		if err := rows.Scan(&q.ID, &q.Name, &q.Query); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

// DeleteQuery removes the named query and reports whether a row existed.
func (s *Store) DeleteQuery(ctx context.Context, name string) (bool, error) {
	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	res, err := s.db.ExecContext(ctx, s.stmts.deleteQuery, strings.TrimSpace(name))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
