package model

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidArgument marks caller mistakes: non-positive pages, unknown
// levels or date filter tokens. Surfaced synchronously, never retried.
var ErrInvalidArgument = errors.New("invalid argument")

// LogWriter accepts batches of events from the logging pipeline.
type LogWriter interface {
	Ingest(ctx context.Context, events []LogEvent) (int, error)
}

// LogReader is the read-side contract used by the HTTP boundary.
type LogReader interface {
	Query(ctx context.Context, page int, startingTimestamp *time.Time, filter QueryFilter) ([]LogEntry, error)
	Count(ctx context.Context, startingTimestamp *time.Time, filter QueryFilter) (int64, error)
	PageSize() int
}

// QueryCatalog manages saved free-text queries.
type QueryCatalog interface {
	SaveQuery(ctx context.Context, name, query string) (bool, error)
	ListSavedQueries(ctx context.Context) ([]SavedQuery, error)
	DeleteQuery(ctx context.Context, name string) (bool, error)
}

// ReadAPI is the unified contract for read surfaces.
type ReadAPI interface {
	LogReader
	QueryCatalog
}
