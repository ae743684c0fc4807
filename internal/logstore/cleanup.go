package logstore

import (
	"context"
	"fmt"

	"github.com/devmkr/Vislog/internal/model"
	"github.com/rs/zerolog/log"
)

// Cleanup deletes every entry older than the max age its level resolves to
// and returns how many entries were removed. Properties go first, in the
// same transaction, since not every engine cascades deletes.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	if s.policy == nil || s.policy.Empty() {
		return 0, nil
	}

	pred := s.policy.DeletionPredicate(s.now().UTC(), s.d)
	if pred.Empty() {
		return 0, nil
	}

	q := s.d.QuoteIdent
	deleteProps := s.d.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s IN (SELECT %s FROM %s WHERE %s)",
		q(model.TableProperty), q(model.ColLogID), s.col(model.ColID), q(model.TableLog), pred.SQL))
	deleteEntries := s.d.Rebind(fmt.Sprintf("DELETE FROM %s WHERE %s", q(model.TableLog), pred.SQL))

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, deleteProps, pred.Args...); err != nil {
		return 0, fmt.Errorf("delete expired properties: %w", err)
	}
	res, err := tx.ExecContext(ctx, deleteEntries, pred.Args...)
	if err != nil {
		return 0, fmt.Errorf("delete expired entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true

	if n > 0 {
		log.Debug().Int64("deleted", n).Msg("logstore: retention cleanup")
	}
	return n, nil
}
