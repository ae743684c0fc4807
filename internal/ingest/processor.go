package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync/atomic"

	"github.com/devmkr/Vislog/internal/model"
	"github.com/rs/zerolog/log"
)

// RecordSink receives parsed events. The store's InsertBuffer satisfies it.
type RecordSink interface {
	Add(model.LogEvent)
}

// EnvelopeProcessor consumes source-tagged ingest lines.
type EnvelopeProcessor interface {
	ProcessEnvelope(model.IngestEnvelope) *ProcessResult
}

// ProcessResult holds the outcome of one envelope.
type ProcessResult struct {
	Event *model.LogEvent
	Err   error
}

// Processor parses CLEF envelopes and routes the events to a sink.
type Processor struct {
	sink RecordSink

	parsed   atomic.Int64
	rejected atomic.Int64
}

// NewProcessor creates a processor writing to sink.
func NewProcessor(sink RecordSink) *Processor {
	return &Processor{sink: sink}
}

// ProcessEnvelope parses one framed record. Blank lines are ignored and
// return nil.
func (p *Processor) ProcessEnvelope(env model.IngestEnvelope) *ProcessResult {
	if strings.TrimSpace(env.Line) == "" {
		return nil
	}

	ev, err := ParseCLEF(env.Line)
	if err != nil {
		n := p.rejected.Add(1)
		// Log the first rejection and then every thousandth.
		if n == 1 || n%1000 == 0 {
			log.Warn().Err(err).Str("source", env.Source).Int64("rejected", n).Msg("ingest: rejected line")
		}
		return &ProcessResult{Err: err}
	}

	p.parsed.Add(1)
	if p.sink != nil {
		p.sink.Add(ev)
	}
	return &ProcessResult{Event: &ev}
}

// Stats returns how many envelopes parsed and how many were rejected.
func (p *Processor) Stats() (parsed, rejected int64) {
	return p.parsed.Load(), p.rejected.Load()
}

// LineError reports the record that failed to parse in a batch.
type LineError struct {
	Line int
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ReadBatch parses a newline-delimited CLEF body. The whole batch is
// rejected on the first malformed record; Line is the line on which that
// record ended.
func ReadBatch(r io.Reader, maxRecordSize int) ([]model.LogEvent, error) {
	if maxRecordSize <= 0 {
		maxRecordSize = DefaultMaxRecordSize
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	framer := NewFramer(maxRecordSize)

	var events []model.LogEvent
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		record, ok := framer.Push(scanner.Text())
		if !ok || strings.TrimSpace(record) == "" {
			continue
		}
		ev, err := ParseCLEF(record)
		if err != nil {
			return nil, &LineError{Line: lineNo, Err: err}
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if _, ok := framer.Flush(); ok {
		return nil, &LineError{Line: lineNo, Err: fmt.Errorf("%w: unterminated record", ErrNotCLEF)}
	}
	return events, nil
}
