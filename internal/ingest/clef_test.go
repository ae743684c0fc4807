package ingest

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/devmkr/Vislog/internal/model"
)

func TestParseCLEF_FullEvent(t *testing.T) {
	t.Parallel()

	line := `{"@t":"2024-06-01T12:00:00.123Z","@mt":"User {User} logged in from {Ip}","@l":"Warning",` +
		`"User":"alice","Ip":"10.0.0.1","Attempts":3,"Ok":true,"Ctx":{"a":1},"@@Meta":"x","@i":"abc12","@r":["ignored"]}`

	ev, err := ParseCLEF(line)
	if err != nil {
		t.Fatalf("ParseCLEF returned error: %v", err)
	}

	if ev.Level != model.Warning {
		t.Fatalf("level = %v, want Warning", ev.Level)
	}
	want := time.Date(2024, 6, 1, 12, 0, 0, 123000000, time.UTC)
	if !ev.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", ev.Timestamp, want)
	}
	if ev.MessageTemplate != "User {User} logged in from {Ip}" {
		t.Fatalf("template = %q", ev.MessageTemplate)
	}
	if ev.RenderedMessage != `User "alice" logged in from "10.0.0.1"` {
		t.Fatalf("message = %q", ev.RenderedMessage)
	}

	wantProps := []model.LogProperty{
		{Name: "@Meta", Value: "x"},
		{Name: "Attempts", Value: "3"},
		{Name: "Ctx", Value: `{"a":1}`},
		{Name: "EventId", Value: "abc12"},
		{Name: "Ip", Value: "10.0.0.1"},
		{Name: "Ok", Value: "true"},
		{Name: "User", Value: "alice"},
	}
	if len(ev.Properties) != len(wantProps) {
		t.Fatalf("properties = %+v, want %+v", ev.Properties, wantProps)
	}
	for i, p := range wantProps {
		if ev.Properties[i] != p {
			t.Fatalf("property[%d] = %+v, want %+v", i, ev.Properties[i], p)
		}
	}
}

func TestParseCLEF_RenderedMessageWins(t *testing.T) {
	t.Parallel()

	ev, err := ParseCLEF(`{"@m":"already rendered","@x":"System.Exception: boom","@l":"ERR"}`)
	if err != nil {
		t.Fatalf("ParseCLEF returned error: %v", err)
	}
	if ev.RenderedMessage != "already rendered" || ev.MessageTemplate != "already rendered" {
		t.Fatalf("message = %q template = %q", ev.RenderedMessage, ev.MessageTemplate)
	}
	if ev.Exception != "System.Exception: boom" {
		t.Fatalf("exception = %q", ev.Exception)
	}
	if ev.Level != model.Error {
		t.Fatalf("level = %v, want Error", ev.Level)
	}
	if !ev.Timestamp.IsZero() {
		t.Fatalf("timestamp = %v, want zero", ev.Timestamp)
	}
}

func TestParseCLEF_LevelDefaults(t *testing.T) {
	t.Parallel()

	for _, line := range []string{
		`{"@mt":"no level"}`,
		`{"@mt":"odd level","@l":"Loud"}`,
	} {
		ev, err := ParseCLEF(line)
		if err != nil {
			t.Fatalf("ParseCLEF(%s) returned error: %v", line, err)
		}
		if ev.Level != model.Information {
			t.Fatalf("ParseCLEF(%s) level = %v, want Information", line, ev.Level)
		}
	}
}

func TestParseCLEF_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		line    string
		notCLEF bool
	}{
		{name: "plain text", line: "hello world", notCLEF: true},
		{name: "broken json", line: `{"@mt": "x"`, notCLEF: true},
		{name: "no message", line: `{"User":"alice"}`, notCLEF: true},
		{name: "bad timestamp", line: `{"@mt":"x","@t":"yesterday"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseCLEF(tt.line)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.Is(err, ErrNotCLEF); got != tt.notCLEF {
				t.Fatalf("errors.Is(err, ErrNotCLEF) = %v, want %v (err: %v)", got, tt.notCLEF, err)
			}
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	t.Parallel()

	props := map[string]any{
		"Name":  "bob",
		"Count": json.Number("42"),
		"Obj":   map[string]any{"a": json.Number("1")},
		"Flag":  false,
	}

	tests := []struct {
		template string
		want     string
	}{
		{"Hello {Name}", `Hello "bob"`},
		{"Hello {Name:l}", "Hello bob"},
		{"Hello {$Name}", `Hello "bob"`},
		{"[{Count,5}]", "[   42]"},
		{"[{Count,-5}]", "[42   ]"},
		{"{@Obj}", `{"a":1}`},
		{"{Flag}", "false"},
		{"{{literal}} {Missing}", "{literal} {Missing}"},
		{"unclosed {Name", "unclosed {Name"},
		{"no holes", "no holes"},
	}

	for _, tt := range tests {
		if got := RenderTemplate(tt.template, props); got != tt.want {
			t.Errorf("RenderTemplate(%q) = %q, want %q", tt.template, got, tt.want)
		}
	}
}
