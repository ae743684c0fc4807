package logsource

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"sync"

	"github.com/devmkr/Vislog/internal/ingest"
	"github.com/devmkr/Vislog/internal/model"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultReaderBuffer is the default channel buffer size for reader records.
	DefaultReaderBuffer = 50_000

	// DefaultReaderMaxLineSize is the default maximum size (in bytes) of a single record.
	DefaultReaderMaxLineSize = ingest.DefaultMaxRecordSize
)

// ReaderConfig holds tunable parameters for a reader source.
type ReaderConfig struct {
	BufferSize  int
	MaxLineSize int
}

// ReaderSource frames CLEF records out of a byte stream such as stdin.
type ReaderSource struct {
	name     string
	ch       chan model.IngestEnvelope
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// NewStdinSource reads records from stdin in a background goroutine.
func NewStdinSource(ctx context.Context, conf ...ReaderConfig) *ReaderSource {
	return NewReaderSource(ctx, "stdin", os.Stdin, conf...)
}

// NewReaderSource reads records from r until EOF, Stop or ctx ends.
func NewReaderSource(ctx context.Context, name string, r io.Reader, conf ...ReaderConfig) *ReaderSource {
	bufferSize := DefaultReaderBuffer
	maxLineSize := DefaultReaderMaxLineSize
	if len(conf) > 0 {
		if conf[0].BufferSize > 0 {
			bufferSize = conf[0].BufferSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &ReaderSource{
		name:   name,
		ch:     make(chan model.IngestEnvelope, bufferSize),
		cancel: cancel,
	}
	go s.read(ctx, r, maxLineSize)
	return s
}

func (s *ReaderSource) read(ctx context.Context, r io.Reader, maxLineSize int) {
	defer close(s.ch)

	// Scanning blocks, so it runs apart from the loop that watches ctx.
	records := make(chan string)
	go func() {
		defer close(records)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		framer := ingest.NewFramer(maxLineSize)

		send := func(record string) bool {
			select {
			case records <- record:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for scanner.Scan() {
			line := scanner.Text()
			if line == "" && !framer.Pending() {
				continue
			}
			if record, ok := framer.Push(line); ok && !send(record) {
				return
			}
		}
		if record, ok := framer.Flush(); ok && !send(record) {
			return
		}
		if err := scanner.Err(); err != nil {
			if errors.Is(err, bufio.ErrTooLong) {
				log.Warn().Str("source", s.name).Int("max_bytes", maxLineSize).
					Msg("logsource: line exceeded max size, stopping source")
				return
			}
			log.Warn().Err(err).Str("source", s.name).Msg("logsource: read error")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case record, ok := <-records:
			if !ok {
				return
			}
			select {
			case s.ch <- model.IngestEnvelope{Source: s.name, Line: record}:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *ReaderSource) Lines() <-chan model.IngestEnvelope { return s.ch }
func (s *ReaderSource) Stop()                              { s.stopOnce.Do(s.cancel) }
func (s *ReaderSource) Name() string                       { return s.name }
