package main

import (
	"context"
	"fmt"
	"os"

	"github.com/devmkr/Vislog/internal/logsource"
	"github.com/devmkr/Vislog/internal/tcpserver"
	"github.com/rs/zerolog/log"
)

// Stdin modes for the stdin setting.
const (
	stdinAuto   = "auto"
	stdinAlways = "always"
	stdinNever  = "never"
)

// clefInput is one way of receiving CLEF records besides the HTTP API.
type clefInput struct {
	name    string
	enabled func(appConfig) bool
	open    func(context.Context, appConfig) (logsource.LogSource, error)
}

var clefInputs = []clefInput{
	{name: "tcp", enabled: func(c appConfig) bool { return c.TCPEnabled }, open: openTCPInput},
	{name: "stdin", enabled: stdinEnabled, open: openStdinInput},
}

// openInputs opens every enabled input. If one fails the ones already
// opened are stopped again.
func openInputs(ctx context.Context, cfg appConfig) ([]logsource.LogSource, error) {
	var sources []logsource.LogSource
	for _, in := range clefInputs {
		if !in.enabled(cfg) {
			continue
		}
		src, err := in.open(ctx, cfg)
		if err != nil {
			for _, opened := range sources {
				opened.Stop()
			}
			return nil, fmt.Errorf("open %s input: %w", in.name, err)
		}
		log.Debug().Str("input", in.name).Msg("input opened")
		sources = append(sources, src)
	}
	return sources, nil
}

func openTCPInput(_ context.Context, cfg appConfig) (logsource.LogSource, error) {
	server := tcpserver.NewServer(cfg.TCPAddr, tcpserver.ServerConfig{MaxLineSize: cfg.MaxRecordSize})
	if err := server.Start(); err != nil {
		return nil, err
	}
	return logsource.NewTCPSource(server), nil
}

func openStdinInput(ctx context.Context, cfg appConfig) (logsource.LogSource, error) {
	return logsource.NewStdinSource(ctx, logsource.ReaderConfig{MaxLineSize: cfg.MaxRecordSize}), nil
}

// stdinEnabled reads stdin in auto mode only when it is piped, e.g.
// `myapp | vislog serve`.
func stdinEnabled(cfg appConfig) bool {
	switch cfg.Stdin {
	case stdinAlways:
		return true
	case stdinNever:
		return false
	}
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice == 0
}
