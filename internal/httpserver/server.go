package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/devmkr/Vislog/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// DefaultAddr is used when no listen address is configured.
const DefaultAddr = "0.0.0.0:5341"

// Store is the narrow store contract required by the HTTP API.
type Store interface {
	model.ReadAPI
	model.LogWriter
}

// Server exposes the log store over HTTP below a mount path.
type Server struct {
	addr        string
	mountPath   string
	store       Store
	server      *http.Server
	ctx         context.Context
	cancel      context.CancelFunc
	startTime   time.Time
	maxBodySize int64
}

// NewServer creates a new HTTP API server. Routes live under mountPath,
// e.g. "/vislog/api/logs".
func NewServer(addr, mountPath string, store Store) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	if mountPath == "" {
		mountPath = model.DefaultMountPath
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:        addr,
		mountPath:   "/" + strings.Trim(mountPath, "/"),
		store:       store,
		ctx:         ctx,
		cancel:      cancel,
		startTime:   time.Now(),
		maxBodySize: 10 << 20,
	}
}

// Handler builds the gin engine with every route registered.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group(s.mountPath + "/api")
	api.GET("/health", s.handleHealth)
	api.GET("/logs", s.handleLogs)
	api.POST("/events", s.handleEvents)
	api.GET("/queries", s.handleListQueries)
	api.POST("/queries", s.handleSaveQuery)
	api.DELETE("/queries/:name", s.handleDeleteQuery)

	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()
	log.Info().Str("addr", listener.Addr().String()).Str("mount_path", s.mountPath).Msg("httpserver: listening")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("httpserver: serve failed")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
