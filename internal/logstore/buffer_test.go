package logstore

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/devmkr/Vislog/internal/dialect"
	"github.com/devmkr/Vislog/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	batches [][]model.LogEvent
	fail    bool
}

func (w *recordingWriter) Ingest(_ context.Context, events []model.LogEvent) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return 0, errors.New("database unavailable")
	}
	w.batches = append(w.batches, append([]model.LogEvent(nil), events...))
	return len(events), nil
}

func (w *recordingWriter) total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, b := range w.batches {
		n += len(b)
	}
	return n
}

func TestInsertBufferFlushesOnStop(t *testing.T) {
	w := &recordingWriter{}
	b := NewInsertBuffer(w, InsertBufferConfig{BatchSize: 100, FlushInterval: time.Hour})

	for i := 0; i < 5; i++ {
		b.Add(event("m", model.Information, base))
	}
	b.Stop()

	assert.Equal(t, 5, w.total())
	ingested, failed := b.Stats()
	assert.EqualValues(t, 5, ingested)
	assert.EqualValues(t, 0, failed)
}

func TestInsertBufferBatchesBySize(t *testing.T) {
	w := &recordingWriter{}
	b := NewInsertBuffer(w, InsertBufferConfig{BatchSize: 4, FlushInterval: time.Hour})

	for i := 0; i < 10; i++ {
		b.Add(event("m", model.Information, base))
	}
	b.Stop()

	assert.Equal(t, 10, w.total())
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, batch := range w.batches {
		assert.LessOrEqual(t, len(batch), 4)
	}
}

func TestInsertBufferFlushesOnInterval(t *testing.T) {
	w := &recordingWriter{}
	b := NewInsertBuffer(w, InsertBufferConfig{BatchSize: 1000, FlushInterval: 10 * time.Millisecond})
	defer b.Stop()

	b.Add(event("m", model.Information, base))
	assert.Eventually(t, func() bool { return w.total() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestInsertBufferFailedFlushIsCounted(t *testing.T) {
	w := &recordingWriter{fail: true}
	b := NewInsertBuffer(w, InsertBufferConfig{BatchSize: 10, FlushInterval: time.Hour})

	b.Add(event("a", model.Information, base))
	b.Add(event("b", model.Information, base))
	b.Stop()

	ingested, failed := b.Stats()
	assert.EqualValues(t, 0, ingested)
	assert.EqualValues(t, 2, failed)
}

func TestInsertBufferStopIsIdempotent(t *testing.T) {
	b := NewInsertBuffer(&recordingWriter{})
	b.Stop()
	b.Stop()

	b.Add(event("late", model.Information, base))
	_, failed := b.Stats()
	assert.EqualValues(t, 1, failed)
}

func TestInsertBufferIntoStore(t *testing.T) {
	s := newTestStore(t, dialect.SQLite{}, Config{MountPath: "/vislog"})
	b := NewInsertBuffer(s, InsertBufferConfig{BatchSize: 3, FlushInterval: 5 * time.Millisecond})

	for i := 0; i < 7; i++ {
		b.Add(event("m", model.Information, base.Add(time.Duration(i)*time.Second)))
	}
	b.Add(event("self", model.Information, base, "RequestPath", "/vislog/api/logs"))
	b.Stop()

	n, err := s.Count(context.Background(), nil, model.QueryFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	ingested, _ := b.Stats()
	assert.EqualValues(t, 7, ingested)
}

type countingCleaner struct {
	calls atomic.Int32
	err   error
}

func (c *countingCleaner) Cleanup(context.Context) (int64, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestRetentionCleanerRunsAtStart(t *testing.T) {
	c := &countingCleaner{}
	rc, err := NewRetentionCleaner(c, "@every 1h")
	require.NoError(t, err)
	defer rc.Stop()

	assert.EqualValues(t, 1, c.calls.Load())
}

func TestRetentionCleanerSchedule(t *testing.T) {
	c := &countingCleaner{err: errors.New("locked")}
	rc, err := NewRetentionCleaner(c, "@every 1s")
	require.NoError(t, err)
	defer rc.Stop()

	assert.Eventually(t, func() bool { return c.calls.Load() >= 2 }, 5*time.Second, 50*time.Millisecond)
}

func TestRetentionCleanerInvalidSchedule(t *testing.T) {
	c := &countingCleaner{}
	_, err := NewRetentionCleaner(c, "every so often")
	assert.Error(t, err)
	assert.EqualValues(t, 0, c.calls.Load())
}

func TestRetentionCleanerStopIsIdempotent(t *testing.T) {
	rc, err := NewRetentionCleaner(&countingCleaner{}, "")
	require.NoError(t, err)

	rc.Stop()
	rc.Stop()
}
