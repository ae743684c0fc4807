package main

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/devmkr/Vislog/internal/ingest"
	"github.com/devmkr/Vislog/internal/logsource"
	"github.com/rs/zerolog/log"
)

// SourceStats counts the records one input delivered.
type SourceStats struct {
	Name     string
	Accepted int64
	Rejected int64
}

type sourceCounters struct {
	accepted atomic.Int64
	rejected atomic.Int64
}

// IngestFanIn drains every CLEF input concurrently into one processor.
// Records are parsed on the goroutine of the source that produced them and
// tagged with that source's name, so the processor's sink sees decoded
// events only and a slow input never holds back the others.
type IngestFanIn struct {
	ctx    context.Context
	cancel context.CancelFunc

	processor ingest.EnvelopeProcessor
	sources   []logsource.LogSource
	counters  []*sourceCounters
	done      chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewIngestFanIn(parent context.Context, processor ingest.EnvelopeProcessor, sources []logsource.LogSource) *IngestFanIn {
	ctx, cancel := context.WithCancel(parent)
	counters := make([]*sourceCounters, len(sources))
	for i := range counters {
		counters[i] = &sourceCounters{}
	}
	return &IngestFanIn{
		ctx:       ctx,
		cancel:    cancel,
		processor: processor,
		sources:   sources,
		counters:  counters,
		done:      make(chan struct{}),
	}
}

// Start launches one consumer per source. Done closes once every source
// has ended.
func (f *IngestFanIn) Start() {
	f.startOnce.Do(func() {
		for i, src := range f.sources {
			f.wg.Add(1)
			go f.consume(src, f.counters[i])
		}
		go func() {
			f.wg.Wait()
			close(f.done)
		}()
	})
}

// Stop stops every source and waits for in-flight records to reach the
// processor.
func (f *IngestFanIn) Stop() {
	f.stopOnce.Do(func() {
		f.cancel()
		for _, src := range f.sources {
			src.Stop()
		}
		f.Start()
		<-f.done
	})
}

// Done is closed when all sources are exhausted or stopped.
func (f *IngestFanIn) Done() <-chan struct{} { return f.done }

func (f *IngestFanIn) HasSources() bool { return len(f.sources) > 0 }

// SourceNames lists the inputs in the order they were opened.
func (f *IngestFanIn) SourceNames() []string {
	names := make([]string, 0, len(f.sources))
	for _, src := range f.sources {
		names = append(names, src.Name())
	}
	return names
}

// Stats reports per-source record counts.
func (f *IngestFanIn) Stats() []SourceStats {
	stats := make([]SourceStats, len(f.sources))
	for i, src := range f.sources {
		stats[i] = SourceStats{
			Name:     src.Name(),
			Accepted: f.counters[i].accepted.Load(),
			Rejected: f.counters[i].rejected.Load(),
		}
	}
	return stats
}

func (f *IngestFanIn) consume(src logsource.LogSource, counters *sourceCounters) {
	defer f.wg.Done()

	records := src.Lines()
	for {
		select {
		case <-f.ctx.Done():
			return
		case env, ok := <-records:
			if !ok {
				log.Debug().Str("source", src.Name()).Msg("input ended")
				return
			}
			if env.Source == "" {
				env.Source = src.Name()
			}
			res := f.processor.ProcessEnvelope(env)
			switch {
			case res == nil:
			case res.Err != nil:
				counters.rejected.Add(1)
			default:
				counters.accepted.Add(1)
			}
		}
	}
}
