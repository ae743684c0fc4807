package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/devmkr/Vislog/internal/model"
)

// Reserved CLEF keys. Any other key is a property; "@@name" escapes a
// property whose name starts with "@".
const (
	clefTimestamp  = "@t"
	clefTemplate   = "@mt"
	clefMessage    = "@m"
	clefLevel      = "@l"
	clefException  = "@x"
	clefEventID    = "@i"
	clefRenderings = "@r"
)

// EventIDProperty holds the CLEF @i event type identifier.
const EventIDProperty = "EventId"

var ErrNotCLEF = errors.New("ingest: not a CLEF event")

// ParseCLEF decodes one compact log event format line. A missing @l means
// Information; a missing @t leaves the timestamp zero for the store to fill.
func ParseCLEF(line string) (model.LogEvent, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "{") {
		return model.LogEvent{}, ErrNotCLEF
	}

	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return model.LogEvent{}, fmt.Errorf("%w: %v", ErrNotCLEF, err)
	}

	_, hasTemplate := raw[clefTemplate]
	_, hasMessage := raw[clefMessage]
	if !hasTemplate && !hasMessage {
		return model.LogEvent{}, fmt.Errorf("%w: neither @mt nor @m present", ErrNotCLEF)
	}

	ev := model.LogEvent{
		MessageTemplate: stringValue(raw[clefTemplate]),
		RenderedMessage: stringValue(raw[clefMessage]),
		Exception:       stringValue(raw[clefException]),
		Level:           model.NormalizeLevel(stringValue(raw[clefLevel])),
	}

	if ts := stringValue(raw[clefTimestamp]); ts != "" {
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return model.LogEvent{}, fmt.Errorf("ingest: invalid @t %q: %w", ts, err)
		}
		ev.Timestamp = t.UTC()
	}

	props := make(map[string]any, len(raw))
	for key, value := range raw {
		switch key {
		case clefTimestamp, clefTemplate, clefMessage, clefLevel, clefException, clefRenderings:
			continue
		case clefEventID:
			props[EventIDProperty] = value
			continue
		}
		if strings.HasPrefix(key, "@@") {
			key = key[1:]
		} else if strings.HasPrefix(key, "@") {
			continue // unknown reserved key
		}
		props[key] = value
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ev.Properties = append(ev.Properties, model.LogProperty{Name: name, Value: displayValue(props[name])})
	}

	if ev.MessageTemplate == "" {
		ev.MessageTemplate = ev.RenderedMessage
	}
	if !hasMessage {
		ev.RenderedMessage = RenderTemplate(ev.MessageTemplate, props)
	}
	return ev, nil
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return displayValue(v)
}

// displayValue renders a property value as stored text: strings as-is,
// numbers in their JSON spelling, structures as compact JSON.
func displayValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		if val {
			return "true"
		}
		return "false"
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
