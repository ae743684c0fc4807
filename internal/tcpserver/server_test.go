package tcpserver

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/devmkr/Vislog/internal/model"
)

func TestNewServer_DefaultLocalhostAddress(t *testing.T) {
	t.Parallel()

	s := NewServer("")
	if got := s.Addr(); got != DefaultAddr {
		t.Fatalf("Addr() = %q, want %q", got, DefaultAddr)
	}
}

func TestNewServer_UsesConfiguredAddressAndBuffers(t *testing.T) {
	t.Parallel()

	s := NewServer("0.0.0.0:5000", ServerConfig{
		LineChannelSize: 64,
		MaxLineSize:     2048,
	})

	if got := s.Addr(); got != "0.0.0.0:5000" {
		t.Fatalf("Addr() = %q, want %q", got, "0.0.0.0:5000")
	}
	if got := cap(s.lineChan); got != 64 {
		t.Fatalf("line channel cap = %d, want %d", got, 64)
	}
	if got := s.maxLineSize; got != 2048 {
		t.Fatalf("max line size = %d, want %d", got, 2048)
	}
}

func receive(t *testing.T, s *Server) model.IngestEnvelope {
	t.Helper()
	select {
	case env := <-s.Lines():
		return env
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for record")
	}
	return model.IngestEnvelope{}
}

func TestServer_FramesRecordsPerConnection(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	defer s.Stop()

	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	fmt.Fprint(conn, "{\"@mt\":\"one\"}\n\n{\n  \"@mt\": \"two\"\n}\n")
	conn.Close()

	first := receive(t, s)
	if first.Line != `{"@mt":"one"}` {
		t.Fatalf("first record = %q", first.Line)
	}
	if len(first.Source) <= len("tcp:") || first.Source[:4] != "tcp:" {
		t.Fatalf("source = %q, want tcp:<remote>", first.Source)
	}

	second := receive(t, s)
	if second.Line != "{\n  \"@mt\": \"two\"\n}" {
		t.Fatalf("second record = %q", second.Line)
	}
}

func TestServer_StopClosesChannel(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0")
	if err := s.Start(); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	// An idle client must not keep Stop waiting.
	conn, err := net.Dial("tcp", s.Addr())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		s.Stop()
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}

	if _, ok := <-s.Lines(); ok {
		t.Fatal("expected closed channel")
	}
}
