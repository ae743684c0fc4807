package tcpserver

import (
	"bufio"
	"context"
	"errors"
	"net"
	"sync"

	"github.com/devmkr/Vislog/internal/ingest"
	"github.com/devmkr/Vislog/internal/model"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultAddr is used when no listen address is configured.
	DefaultAddr = "127.0.0.1:5342"

	// DefaultLineChannelSize is the default buffer size for the incoming record channel.
	DefaultLineChannelSize = 100_000

	// DefaultMaxLineSize is the default maximum size (in bytes) of a single record.
	DefaultMaxLineSize = ingest.DefaultMaxRecordSize
)

// ServerConfig holds tunable parameters for the TCP server.
type ServerConfig struct {
	LineChannelSize int
	MaxLineSize     int
}

// Server listens for newline-delimited CLEF events over TCP. Each
// connection gets its own framer, so a pretty-printed object is joined
// before it reaches the channel and records never interleave.
type Server struct {
	listener    net.Listener
	addr        string
	lineChan    chan model.IngestEnvelope
	maxLineSize int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// NewServer creates a new TCP server listening on addr, or DefaultAddr.
func NewServer(addr string, conf ...ServerConfig) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	lineChannelSize := DefaultLineChannelSize
	maxLineSize := DefaultMaxLineSize
	if len(conf) > 0 {
		if conf[0].LineChannelSize > 0 {
			lineChannelSize = conf[0].LineChannelSize
		}
		if conf[0].MaxLineSize > 0 {
			maxLineSize = conf[0].MaxLineSize
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:        addr,
		lineChan:    make(chan model.IngestEnvelope, lineChannelSize),
		maxLineSize: maxLineSize,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start begins accepting TCP connections.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	log.Info().Str("addr", listener.Addr().String()).Msg("tcpserver: listening")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
					continue
				}
			}
			s.wg.Add(1)
			go s.handleConnection(conn)
		}
	}()

	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	// Unblock the scanner when the server stops.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	source := "tcp:" + conn.RemoteAddr().String()
	framer := ingest.NewFramer(s.maxLineSize)

	scanner := bufio.NewScanner(conn)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, s.maxLineSize)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" && !framer.Pending() {
			continue
		}
		record, ok := framer.Push(line)
		if !ok {
			continue
		}
		if !s.emit(source, record) {
			return
		}
	}
	if record, ok := framer.Flush(); ok {
		s.emit(source, record)
	}

	if err := scanner.Err(); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		if errors.Is(err, bufio.ErrTooLong) {
			log.Warn().Str("remote", conn.RemoteAddr().String()).Int("max_bytes", s.maxLineSize).
				Msg("tcpserver: dropped connection, line exceeds max size")
			return
		}
		log.Warn().Err(err).Str("remote", conn.RemoteAddr().String()).Msg("tcpserver: read error")
	}
}

func (s *Server) emit(source, record string) bool {
	select {
	case s.lineChan <- model.IngestEnvelope{Source: source, Line: record}:
		return true
	case <-s.ctx.Done():
		return false
	}
}

// Stop closes the listener and every open connection, waits for the
// handlers and then closes the record channel. Safe to call more than once.
func (s *Server) Stop() error {
	s.stopOnce.Do(func() {
		s.cancel()
		if s.listener != nil {
			s.listener.Close()
		}
		s.wg.Wait()
		close(s.lineChan)
	})
	return nil
}

// Lines returns the channel of framed records.
func (s *Server) Lines() <-chan model.IngestEnvelope {
	return s.lineChan
}

// Addr returns the active listen address.
// Before Start, it returns the configured address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
