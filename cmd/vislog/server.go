package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/devmkr/Vislog/internal/httpserver"
	"github.com/devmkr/Vislog/internal/ingest"
	"github.com/devmkr/Vislog/internal/logstore"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// runServer starts CLEF ingestion, retention and the HTTP API.
func runServer(cfg appConfig) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := cfg.openStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open log store: %w", err)
	}
	defer store.Close()

	// Create insert buffer for batched writes
	insertBuffer := logstore.NewInsertBuffer(store, logstore.InsertBufferConfig{
		BatchSize:      cfg.InsertBatchSize,
		FlushInterval:  cfg.InsertFlushInterval,
		FlushQueueSize: cfg.InsertFlushQueue,
	})
	defer insertBuffer.Stop()

	// Start retention cleaner when any rule is configured
	var cleaner *logstore.RetentionCleaner
	if len(cfg.Retention) > 0 {
		cleaner, err = logstore.NewRetentionCleaner(store, cfg.CleanupSchedule)
		if err != nil {
			return fmt.Errorf("failed to start retention cleaner: %w", err)
		}
		defer cleaner.Stop()
	} else {
		log.Info().Msg("no retention rules configured, entries are kept indefinitely")
	}

	// Start HTTP API server if enabled
	if cfg.APIEnabled {
		apiServer := httpserver.NewServer(cfg.APIAddr, cfg.MountPath, store)
		if err := apiServer.Start(); err != nil {
			return fmt.Errorf("failed to start API server: %w", err)
		}
		defer apiServer.Stop()
	}

	sources, err := openInputs(ctx, cfg)
	if err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if _, ok := <-sigCh; !ok {
			return
		}
		fmt.Println("\nShutting down gracefully... (press Ctrl+C again to force)")
		cancel()

		// Shutdown deadline starts now, not at boot.
		deadline := time.NewTimer(10 * time.Second)
		defer deadline.Stop()

		select {
		case _, ok := <-sigCh:
			if !ok {
				return
			}
			fmt.Println("\nForce shutdown.")
		case <-deadline.C:
			fmt.Println("Shutdown timed out, forcing exit.")
		}
		os.Exit(1)
	}()

	processor := ingest.NewProcessor(insertBuffer)
	fanIn := NewIngestFanIn(ctx, processor, sources)
	fanIn.Start()

	printStartupBanner(cfg, fanIn.SourceNames())

	// Use errgroup for concurrent goroutine lifecycle management.
	g, gctx := errgroup.WithContext(ctx)

	// Nothing left to serve once piped input ends without an API.
	if !cfg.APIEnabled {
		g.Go(func() error {
			select {
			case <-fanIn.Done():
				cancel()
			case <-gctx.Done():
			}
			return nil
		})
	}

	// Wait for context cancellation (from signal handler) in the errgroup
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server: errgroup exited with error")
	}

	cancel()
	fanIn.Stop()
	insertBuffer.Stop()

	signal.Stop(sigCh)
	close(sigCh)

	for _, st := range fanIn.Stats() {
		log.Info().
			Str("source", st.Name).
			Int64("accepted", st.Accepted).
			Int64("rejected", st.Rejected).
			Msg("input drained")
	}
	parsed, rejected := processor.Stats()
	ingested, failed := insertBuffer.Stats()
	log.Info().
		Int64("parsed", parsed).
		Int64("rejected", rejected).
		Int64("ingested", ingested).
		Int64("failed", failed).
		Msg("server stopped")

	return nil
}

func printStartupBanner(cfg appConfig, sources []string) {
	dim := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	cyan := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	bold := lipgloss.NewStyle().Bold(true)

	check := green.Render("●")
	dot := dim.Render("●")

	logo := cyan.Bold(true).Render(`
    ╦  ╦╦╔═╗╦  ╔═╗╔═╗
    ╚╗╔╝║╚═╗║  ║ ║║ ╦
     ╚╝ ╩╚═╝╩═╝╚═╝╚═╝`)

	var lines []string
	lines = append(lines, "", logo, "    "+dim.Render("v"+version), "")

	separator := dim.Render("    ─────────────────────────────────")
	lines = append(lines, separator, "")

	lines = append(lines, bold.Render("    Gateway"), "")
	if cfg.APIEnabled {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", check, cyan.Render(cfg.APIAddr+cfg.MountPath)))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  HTTP API       %s", dot, dim.Render("disabled")))
	}
	if len(sources) > 0 {
		lines = append(lines, fmt.Sprintf("    %s  CLEF Inputs    %s", check, cyan.Render(strings.Join(sources, ", "))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  CLEF Inputs    %s", dot, dim.Render("none")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Storage"), "")
	lines = append(lines, fmt.Sprintf("    %s  Dialect        %s", check, dim.Render(cfg.Dialect)))
	if cfg.Dialect == "duckdb" || cfg.Dialect == "sqlite" {
		lines = append(lines, fmt.Sprintf("    %s  Database       %s", check, dim.Render(shortenPath(cfg.DSN))))
	}
	if len(cfg.Retention) > 0 {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", check, dim.Render(fmt.Sprintf("%d rules, %s", len(cfg.Retention), cfg.CleanupSchedule))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Retention      %s", dot, dim.Render("keep everything")))
	}
	lines = append(lines, "")

	lines = append(lines, bold.Render("    Config"), "")
	if cfg.ConfigPath != "" {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", check, dim.Render(shortenPath(cfg.ConfigPath))))
	} else {
		lines = append(lines, fmt.Sprintf("    %s  Config File    %s", dot, dim.Render("default (no file)")))
	}

	lines = append(lines, "", separator, "")
	lines = append(lines, "    "+dim.Render("Press ")+yellow.Render("Ctrl+C")+dim.Render(" to stop"), "")

	fmt.Println(strings.Join(lines, "\n"))
}

func shortenPath(path string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	if strings.HasPrefix(path, home) {
		return "~" + path[len(home):]
	}
	return path
}
