package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/devmkr/Vislog/internal/model"
)

type recordingSink struct {
	events []model.LogEvent
}

func (s *recordingSink) Add(ev model.LogEvent) {
	s.events = append(s.events, ev)
}

func TestProcessor_ProcessEnvelope(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	p := NewProcessor(sink)

	if r := p.ProcessEnvelope(model.IngestEnvelope{Source: "tcp", Line: "   "}); r != nil {
		t.Fatalf("blank line result = %+v, want nil", r)
	}

	r := p.ProcessEnvelope(model.IngestEnvelope{Source: "tcp", Line: `{"@mt":"Started {App}","App":"api"}`})
	if r == nil || r.Event == nil || r.Err != nil {
		t.Fatalf("result = %+v, want parsed event", r)
	}
	if r.Event.RenderedMessage != `Started "api"` {
		t.Fatalf("message = %q", r.Event.RenderedMessage)
	}

	r = p.ProcessEnvelope(model.IngestEnvelope{Source: "tcp", Line: "not json"})
	if r == nil || r.Err == nil {
		t.Fatalf("result = %+v, want error", r)
	}

	if got := len(sink.events); got != 1 {
		t.Fatalf("sink events = %d, want 1", got)
	}
	parsed, rejected := p.Stats()
	if parsed != 1 || rejected != 1 {
		t.Fatalf("stats = (%d, %d), want (1, 1)", parsed, rejected)
	}
}

func TestFramer_MultiLineObject(t *testing.T) {
	t.Parallel()

	f := NewFramer(0)

	if rec, ok := f.Push(`{"@mt":"one line"}`); !ok || rec != `{"@mt":"one line"}` {
		t.Fatalf("single line = (%q, %v)", rec, ok)
	}

	lines := []string{
		"{",
		`  "@mt": "brace } in a string {",`,
		`  "Ctx": {"a": [1, 2]}`,
		"}",
	}
	for i, line := range lines[:len(lines)-1] {
		if _, ok := f.Push(line); ok {
			t.Fatalf("line %d completed a record early", i)
		}
	}
	if !f.Pending() {
		t.Fatal("expected pending record")
	}
	rec, ok := f.Push(lines[len(lines)-1])
	if !ok {
		t.Fatal("expected complete record")
	}
	if _, err := ParseCLEF(rec); err != nil {
		t.Fatalf("joined record does not parse: %v\n%s", err, rec)
	}
	if f.Pending() {
		t.Fatal("framer still pending after completion")
	}
}

func TestFramer_FlushAndOversize(t *testing.T) {
	t.Parallel()

	f := NewFramer(16)
	f.Push("{")
	if rec, ok := f.Push(`"@mt": "this line is long enough"`); !ok || rec == "" {
		t.Fatalf("oversized record = (%q, %v), want abandoned record", rec, ok)
	}
	if f.Pending() {
		t.Fatal("framer still pending after oversize")
	}

	f.Push("{")
	if _, ok := f.Flush(); !ok {
		t.Fatal("expected partial record from Flush")
	}
	if _, ok := f.Flush(); ok {
		t.Fatal("second Flush returned a record")
	}
}

func TestCountJSONDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want int
	}{
		{`{"a": 1}`, 0},
		{`{`, 1},
		{`"x": "{[", "y": [`, 1},
		{`"esc": "\"}"}`, -1},
		{`]}`, -2},
	}
	for _, tt := range tests {
		if got := CountJSONDepth(tt.line); got != tt.want {
			t.Errorf("CountJSONDepth(%q) = %d, want %d", tt.line, got, tt.want)
		}
	}
}

func TestReadBatch(t *testing.T) {
	t.Parallel()

	body := strings.Join([]string{
		`{"@mt":"first","@l":"Debug"}`,
		"",
		"{",
		`  "@mt": "second {N}",`,
		`  "N": 2`,
		"}",
		`{"@m":"third"}`,
	}, "\n")

	events, err := ReadBatch(strings.NewReader(body), 0)
	if err != nil {
		t.Fatalf("ReadBatch returned error: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[1].RenderedMessage != "second 2" {
		t.Fatalf("second message = %q", events[1].RenderedMessage)
	}
	if events[0].Level != model.Debug {
		t.Fatalf("first level = %v, want Debug", events[0].Level)
	}
}

func TestReadBatch_RejectsWholeBatch(t *testing.T) {
	t.Parallel()

	body := "{\"@mt\":\"ok\"}\nnot json\n{\"@mt\":\"also ok\"}\n"
	events, err := ReadBatch(strings.NewReader(body), 0)
	if events != nil {
		t.Fatalf("events = %+v, want nil", events)
	}
	var lineErr *LineError
	if !errors.As(err, &lineErr) {
		t.Fatalf("err = %v, want *LineError", err)
	}
	if lineErr.Line != 2 {
		t.Fatalf("line = %d, want 2", lineErr.Line)
	}
	if !errors.Is(err, ErrNotCLEF) {
		t.Fatalf("err = %v, want ErrNotCLEF", err)
	}
}

func TestReadBatch_Unterminated(t *testing.T) {
	t.Parallel()

	_, err := ReadBatch(strings.NewReader("{\n\"@mt\": \"x\"\n"), 0)
	if !errors.Is(err, ErrNotCLEF) {
		t.Fatalf("err = %v, want ErrNotCLEF", err)
	}
}
