package logstore

import (
	"context"
	"strconv"
	"strings"

	"github.com/devmkr/Vislog/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Properties carrying the request path of an HTTP log event.
var requestPathProperties = []string{"RequestPath", "Path"}

// Ingest stores events in a single transaction and returns how many were
// written. Events produced by requests to the store's own mount path are
// skipped. Either every remaining event is stored or none is.
func (s *Store) Ingest(ctx context.Context, events []model.LogEvent) (int, error) {
	accepted := make([]model.LogEvent, 0, len(events))
	for _, ev := range events {
		if s.selfObserved(ev) {
			continue
		}
		accepted = append(accepted, ev)
	}
	if skipped := len(events) - len(accepted); skipped > 0 {
		log.Debug().Int("skipped", skipped).Str("mount_path", s.mountPath).Msg("logstore: dropped self-observed events")
	}
	if len(accepted) == 0 {
		return 0, nil
	}

	ctx, cancel := s.queryCtx(ctx)
	defer cancel()

	if err := s.insertBatchTx(ctx, accepted); err != nil {
		return 0, err
	}
	return len(accepted), nil
}

// insertBatchTx inserts events and their properties in one transaction.
func (s *Store) insertBatchTx(ctx context.Context, events []model.LogEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	entryStmt, err := tx.PrepareContext(ctx, s.stmts.insertEntry)
	if err != nil {
		return err
	}
	defer entryStmt.Close()

	propStmt, err := tx.PrepareContext(ctx, s.stmts.insertProperty)
	if err != nil {
		return err
	}
	defer propStmt.Close()

	for _, ev := range events {
		id := uuid.NewString()

		level := ev.Level
		if !level.Valid() {
			level = model.Information
		}
		ts := ev.Timestamp
		if ts.IsZero() {
			ts = s.now()
		}
		message := ev.RenderedMessage
		if message == "" {
			message = ev.MessageTemplate
		}
		var exception any
		if ev.Exception != "" {
			exception = ev.Exception
		}

		if _, err := entryStmt.ExecContext(ctx,
			id, message, ev.MessageTemplate, level.String(), s.d.TimeValue(ts), exception,
		); err != nil {
			return err
		}

		for _, p := range ev.Properties {
			if _, err := propStmt.ExecContext(ctx, id, p.Name, unquoteScalar(p.Value)); err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) selfObserved(ev model.LogEvent) bool {
	if s.mountPath == "" {
		return false
	}
	for _, p := range ev.Properties {
		for _, name := range requestPathProperties {
			if p.Name == name && strings.Contains(p.Value, s.mountPath) {
				return true
			}
		}
	}
	return false
}

// unquoteScalar strips the quotes a structured logger puts around rendered
// string scalars: "\"abc\"" is stored as abc.
func unquoteScalar(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	if u, err := strconv.Unquote(v); err == nil {
		return u
	}
	return v[1 : len(v)-1]
}
