package model

import "time"

// LogEntry is one persisted log record together with its properties.
type LogEntry struct {
	ID              string        `json:"id"`
	Message         string        `json:"message"`
	MessageTemplate string        `json:"messageTemplate"`
	Level           string        `json:"level"`
	Timestamp       time.Time     `json:"timestamp"`
	Exception       *string       `json:"exception,omitempty"`
	Properties      []LogProperty `json:"properties"`
}

// HasException reports whether the entry carries a non-empty exception rendering.
func (e LogEntry) HasException() bool {
	return e.Exception != nil && *e.Exception != ""
}

// LogProperty is a name/value pair attached to an entry. Value holds display text.
type LogProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LogEvent is what the logging pipeline hands to the store. Message and
// properties are already rendered; the store never parses templates.
type LogEvent struct {
	Timestamp       time.Time
	Level           Level
	MessageTemplate string
	RenderedMessage string
	Properties      []LogProperty // ordered as emitted
	Exception       string        // empty = no exception
}

// Property returns the value of the first property with the given name.
func (e LogEvent) Property(name string) (string, bool) {
	for _, p := range e.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// SavedQuery is a named free-text filter expression.
type SavedQuery struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Query string `json:"query"`
}

// IngestEnvelope is one raw line received by an ingest source, tagged with
// the source that produced it.
type IngestEnvelope struct {
	Source string
	Line   string
}
