package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Build variables - set by ldflags during build.
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
	goVersion = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "vislog",
		Short:         "Vislog stores structured application logs and serves them over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is $HOME/.config/vislog/config.yml)")

	load := func() (appConfig, error) {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return cfg, fmt.Errorf("loading config: %w", err)
		}
		configureLogger(cfg)
		return cfg, nil
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Ingest CLEF events over TCP, HTTP and stdin and serve the query API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			return runServer(cfg)
		},
	}

	cleanupCmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Apply the retention policy once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			n, err := runCleanup(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d entries\n", n)
			return err
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Vislog - Structured Log Store\n")
			fmt.Fprintf(out, "  Version:    %s\n", version)
			fmt.Fprintf(out, "  Commit:     %s\n", commit)
			fmt.Fprintf(out, "  Built:      %s\n", buildTime)
			_, err := fmt.Fprintf(out, "  Go version: %s\n", goVersion)
			return err
		},
	}

	rootCmd.AddCommand(serveCmd, cleanupCmd, versionCmd)
	return rootCmd
}

// runCleanup opens the store, applies retention once and closes it.
func runCleanup(ctx context.Context, cfg appConfig) (int64, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	store, err := cfg.openStore(ctx)
	if err != nil {
		return 0, err
	}
	defer store.Close()

	n, err := store.Cleanup(ctx)
	if err != nil {
		return 0, fmt.Errorf("cleanup: %w", err)
	}
	log.Info().Int64("deleted", n).Msg("retention cleanup finished")
	return n, nil
}
