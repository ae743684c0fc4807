package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/devmkr/Vislog/internal/ingest"
	"github.com/devmkr/Vislog/internal/logsource"
	"github.com/devmkr/Vislog/internal/model"
)

type fakeSource struct {
	name    string
	lines   chan model.IngestEnvelope
	stopped chan struct{}
	once    sync.Once
}

func newFakeSource(name string, buffer int) *fakeSource {
	return &fakeSource{
		name:    name,
		lines:   make(chan model.IngestEnvelope, buffer),
		stopped: make(chan struct{}),
	}
}

func (s *fakeSource) Lines() <-chan model.IngestEnvelope { return s.lines }
func (s *fakeSource) Name() string                       { return s.name }

func (s *fakeSource) Stop() {
	s.once.Do(func() {
		close(s.stopped)
		close(s.lines)
	})
}

// recordingProcessor keeps every envelope it is handed.
type recordingProcessor struct {
	mu        sync.Mutex
	envelopes []model.IngestEnvelope
	inner     *ingest.Processor
}

func (p *recordingProcessor) ProcessEnvelope(env model.IngestEnvelope) *ingest.ProcessResult {
	p.mu.Lock()
	p.envelopes = append(p.envelopes, env)
	p.mu.Unlock()
	return p.inner.ProcessEnvelope(env)
}

type eventSink struct {
	mu     sync.Mutex
	events []model.LogEvent
}

func (s *eventSink) Add(ev model.LogEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func waitDone(t *testing.T, f *IngestFanIn) {
	t.Helper()
	select {
	case <-f.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inputs to end")
	}
}

func TestIngestFanIn_ParsesEveryInput(t *testing.T) {
	t.Parallel()

	sink := &eventSink{}
	proc := &recordingProcessor{inner: ingest.NewProcessor(sink)}

	a := newFakeSource("a", 4)
	b := newFakeSource("b", 4)
	fanIn := NewIngestFanIn(context.Background(), proc, []logsource.LogSource{a, b})
	defer fanIn.Stop()

	if got := fanIn.SourceNames(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("SourceNames() = %v, want [a b]", got)
	}

	a.lines <- model.IngestEnvelope{Line: `{"@mt":"alpha"}`}
	a.lines <- model.IngestEnvelope{Line: "not clef"}
	b.lines <- model.IngestEnvelope{Source: "tcp:10.0.0.1:5000", Line: `{"@mt":"beta"}`}
	b.lines <- model.IngestEnvelope{Line: "   "}
	a.Stop()
	b.Stop()

	fanIn.Start()
	waitDone(t, fanIn)

	if len(sink.events) != 2 {
		t.Fatalf("sink got %d events, want 2", len(sink.events))
	}

	stats := fanIn.Stats()
	want := []SourceStats{{Name: "a", Accepted: 1, Rejected: 1}, {Name: "b", Accepted: 1}}
	for i := range want {
		if stats[i] != want[i] {
			t.Fatalf("Stats()[%d] = %+v, want %+v", i, stats[i], want[i])
		}
	}

	sources := map[string]string{}
	for _, env := range proc.envelopes {
		sources[env.Line] = env.Source
	}
	if sources[`{"@mt":"alpha"}`] != "a" {
		t.Fatalf("untagged record source = %q, want a", sources[`{"@mt":"alpha"}`])
	}
	if sources[`{"@mt":"beta"}`] != "tcp:10.0.0.1:5000" {
		t.Fatalf("tagged record source = %q, want it kept", sources[`{"@mt":"beta"}`])
	}
}

func TestIngestFanIn_StopStopsSources(t *testing.T) {
	t.Parallel()

	src := newFakeSource("x", 1)
	fanIn := NewIngestFanIn(context.Background(), ingest.NewProcessor(nil), []logsource.LogSource{src})
	fanIn.Start()
	fanIn.Stop()
	fanIn.Stop()

	select {
	case <-src.stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("expected source Stop() to be called")
	}
	waitDone(t, fanIn)
}

func TestIngestFanIn_NoSources(t *testing.T) {
	t.Parallel()

	fanIn := NewIngestFanIn(context.Background(), ingest.NewProcessor(nil), nil)
	if fanIn.HasSources() {
		t.Fatal("HasSources() = true, want false")
	}
	fanIn.Start()
	waitDone(t, fanIn)
	if stats := fanIn.Stats(); len(stats) != 0 {
		t.Fatalf("Stats() = %+v, want empty", stats)
	}
}
