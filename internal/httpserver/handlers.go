package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/devmkr/Vislog/internal/ingest"
	"github.com/devmkr/Vislog/internal/model"
	"github.com/devmkr/Vislog/internal/querylang"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// writeError maps caller mistakes to 400 and everything else to 500.
// Storage errors are logged but not echoed back.
func writeError(c *gin.Context, err error) {
	var syntaxErr *querylang.SyntaxError
	var lineErr *ingest.LineError
	switch {
	case errors.As(err, &syntaxErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": syntaxErr.Error(), "position": syntaxErr.Pos})
	case errors.As(err, &lineErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": lineErr.Error(), "line": lineErr.Line})
	case errors.Is(err, model.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("httpserver: request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", model.ErrInvalidArgument, fmt.Sprintf(format, args...))
}

func (s *Server) handleHealth(c *gin.Context) {
	logCount, err := s.store.Count(c.Request.Context(), nil, model.QueryFilter{})
	if err != nil {
		log.Error().Err(err).Msg("httpserver: health count failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read health metrics"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"uptime":    time.Since(s.startTime).String(),
		"log_count": logCount,
	})
}

func parseTime(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, invalid("%s must be an RFC 3339 timestamp, got %q", name, value)
	}
	return t.UTC(), nil
}

// logsRequest reads the paging and filter parameters of GET /api/logs.
func logsRequest(c *gin.Context) (page int, start *time.Time, filter model.QueryFilter, err error) {
	page = 1
	if raw := c.Query("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil {
			return 0, nil, filter, invalid("page must be an integer, got %q", raw)
		}
	}

	startAt, err := parseTime("start", c.Query("start"))
	if err != nil {
		return 0, nil, filter, err
	}
	if !startAt.IsZero() {
		start = &startAt
	}

	filter.Query = c.Query("q")
	filter.Level = c.Query("level")
	filter.DateFilter = model.DateFilter(c.Query("dateFilter"))
	if raw := c.Query("exceptionsOnly"); raw != "" {
		if filter.ExceptionsOnly, err = strconv.ParseBool(raw); err != nil {
			return 0, nil, filter, invalid("exceptionsOnly must be a boolean, got %q", raw)
		}
	}
	if filter.DateRange.From, err = parseTime("from", c.Query("from")); err != nil {
		return 0, nil, filter, err
	}
	if filter.DateRange.To, err = parseTime("to", c.Query("to")); err != nil {
		return 0, nil, filter, err
	}
	return page, start, filter, nil
}

func (s *Server) handleLogs(c *gin.Context) {
	page, start, filter, err := logsRequest(c)
	if err != nil {
		writeError(c, err)
		return
	}

	ctx := c.Request.Context()
	entries, err := s.store.Query(ctx, page, start, filter)
	if err != nil {
		writeError(c, err)
		return
	}
	total, err := s.store.Count(ctx, start, filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"page":     page,
		"pageSize": s.store.PageSize(),
		"total":    total,
		"entries":  entries,
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodySize)
	events, err := ingest.ReadBatch(body, 0)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		writeError(c, err)
		return
	}

	n, err := s.store.Ingest(c.Request.Context(), events)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"received": len(events), "ingested": n})
}

func (s *Server) handleListQueries(c *gin.Context) {
	queries, err := s.store.ListSavedQueries(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queries)
}

func (s *Server) handleSaveQuery(c *gin.Context) {
	var req struct {
		Name  string `json:"name" binding:"required"`
		Query string `json:"query" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing name/query field"})
		return
	}
	req.Name = strings.TrimSpace(req.Name)

	if err := querylang.Validate(req.Query); err != nil {
		writeError(c, err)
		return
	}

	saved, err := s.store.SaveQuery(c.Request.Context(), req.Name, req.Query)
	if err != nil {
		writeError(c, err)
		return
	}
	if !saved {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("a query named %q already exists", req.Name)})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"name": req.Name, "query": req.Query})
}

func (s *Server) handleDeleteQuery(c *gin.Context) {
	name := c.Param("name")
	deleted, err := s.store.DeleteQuery(c.Request.Context(), name)
	if err != nil {
		writeError(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no query named %q", name)})
		return
	}
	c.Status(http.StatusNoContent)
}
