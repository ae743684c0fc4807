package logstore

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/devmkr/Vislog/internal/model"
	"github.com/rs/zerolog/log"
)

// DefaultFlushQueueSize is the number of batches that can be queued for async flushing.
const DefaultFlushQueueSize = 64

// InsertBuffer batches events from the pipeline and hands each batch to a
// LogWriter as one Ingest call. Add never blocks on database writes.
type InsertBuffer struct {
	writer        model.LogWriter
	mu            sync.Mutex
	pending       []model.LogEvent
	stopped       bool
	flushChan     chan []model.LogEvent
	kick          chan struct{}
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup // separate WaitGroup for tickLoop
	stopOnce      sync.Once

	ingested atomic.Int64
	failed   atomic.Int64

	// backpressureCount tracks inline flushes for throttled logging.
	backpressureCount atomic.Int64
	lastBPLog         atomic.Int64 // unix timestamp of last backpressure log
}

// InsertBufferConfig holds tunable parameters for the insert buffer.
type InsertBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
}

// NewInsertBuffer creates an insert buffer in front of writer.
func NewInsertBuffer(writer model.LogWriter, conf ...InsertBufferConfig) *InsertBuffer {
	batchSize := 500
	flushInterval := 250 * time.Millisecond
	flushQueueSize := DefaultFlushQueueSize
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
	}

	b := &InsertBuffer{
		writer:        writer,
		pending:       make([]model.LogEvent, 0, batchSize),
		flushChan:     make(chan []model.LogEvent, flushQueueSize),
		kick:          make(chan struct{}, 1),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

// tickLoop drains the pending buffer on every tick and whenever Add reports
// a full batch. It is the only sender on flushChan.
func (b *InsertBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending()
		case <-b.kick:
			b.drainPending()
		case <-b.done:
			b.drainPending() // final drain
			return
		}
	}
}

// logBackpressure emits a throttled warning (at most once per 10 seconds) when
// the flush channel is full and an inline flush is triggered.
func (b *InsertBuffer) logBackpressure() {
	count := b.backpressureCount.Add(1)
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		log.Warn().Int64("inline_flushes", count).Msg("logstore: backpressure, flush queue full")
	}
}

// drainPending moves pending events to the flush channel in batches of at
// most maxBatch.
func (b *InsertBuffer) drainPending() {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	all := b.pending
	b.pending = make([]model.LogEvent, 0, b.maxBatch)
	b.mu.Unlock()

	for len(all) > 0 {
		n := min(len(all), b.maxBatch)
		batch := all[:n:n]
		all = all[n:]

		// Non-blocking send. A full channel means the database is falling
		// behind; flush inline as a safety valve.
		select {
		case b.flushChan <- batch:
		default:
			b.logBackpressure()
			b.flushBatch(batch)
		}
	}
}

// flushWorker processes batches from the flush channel.
func (b *InsertBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		b.flushBatch(batch)
	}
}

// Add queues an event for batch insertion. Events added after Stop are
// dropped.
func (b *InsertBuffer) Add(ev model.LogEvent) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		b.failed.Add(1)
		return
	}
	b.pending = append(b.pending, ev)
	full := len(b.pending) >= b.maxBatch
	b.mu.Unlock()

	if full {
		select {
		case b.kick <- struct{}{}:
		default:
		}
	}
}

// Stop flushes remaining events and waits for all writes to complete. It is
// safe to call more than once.
func (b *InsertBuffer) Stop() {
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		b.mu.Unlock()

		close(b.done)
		// Wait for tickLoop to finish its final drain before closing flushChan,
		// ensuring all pending events are sent to the flush channel.
		b.tickWg.Wait()
		close(b.flushChan)
		b.wg.Wait()
	})
}

// Stats returns how many events were written and how many were lost to
// failed flushes or late Adds.
func (b *InsertBuffer) Stats() (ingested, failed int64) {
	return b.ingested.Load(), b.failed.Load()
}

// flushBatch writes one batch. Ingest is all-or-nothing, so a failure loses
// the whole batch; retrying is left to the event source.
func (b *InsertBuffer) flushBatch(batch []model.LogEvent) {
	if len(batch) == 0 {
		return
	}
	n, err := b.writer.Ingest(context.Background(), batch)
	if err != nil {
		b.failed.Add(int64(len(batch)))
		log.Error().Err(err).Int("events", len(batch)).Msg("logstore: flush failed, batch dropped")
		return
	}
	b.ingested.Add(int64(n))
}
