package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/devmkr/Vislog/internal/dialect"
	"github.com/devmkr/Vislog/internal/httpserver"
	"github.com/devmkr/Vislog/internal/ingest"
	"github.com/devmkr/Vislog/internal/logstore"
	"github.com/devmkr/Vislog/internal/model"
	"github.com/devmkr/Vislog/internal/retention"
	"github.com/devmkr/Vislog/internal/tcpserver"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	defaultDialect             = "duckdb"
	defaultInsertBatchSize     = 500
	defaultInsertFlushInterval = 250 * time.Millisecond
	defaultInsertFlushQueue    = 64
	defaultLogLevel            = "info"
	defaultLogFormat           = "console"
)

// retentionConfig is one entry of the retention list:
//
//	retention:
//	  - levels: [Verbose, Debug]
//	    max-age: 5h
//	  - max-age: 75d
type retentionConfig struct {
	Levels []string `mapstructure:"levels"`
	MaxAge string   `mapstructure:"max-age"`
}

// appConfig is internal runtime configuration.
// It is package-private to keep defaults and shape local to the CLI entrypoint.
type appConfig struct {
	Dialect             string            `mapstructure:"dialect"`
	DSN                 string            `mapstructure:"dsn"`
	PageSize            int               `mapstructure:"page-size"`
	MountPath           string            `mapstructure:"mount-path"`
	QueryTimeout        time.Duration     `mapstructure:"query-timeout"`
	APIEnabled          bool              `mapstructure:"api-enabled"`
	APIAddr             string            `mapstructure:"api-addr"`
	TCPEnabled          bool              `mapstructure:"tcp-enabled"`
	TCPAddr             string            `mapstructure:"tcp-addr"`
	Stdin               string            `mapstructure:"stdin"`
	MaxRecordSize       int               `mapstructure:"max-record-size"`
	InsertBatchSize     int               `mapstructure:"insert-batch-size"`
	InsertFlushInterval time.Duration     `mapstructure:"insert-flush-interval"`
	InsertFlushQueue    int               `mapstructure:"insert-flush-queue-size"`
	CleanupSchedule     string            `mapstructure:"cleanup-schedule"`
	Retention           []retentionConfig `mapstructure:"retention"`
	LogLevel            string            `mapstructure:"log-level"`
	LogFormat           string            `mapstructure:"log-format"`
	ConfigPath          string            `mapstructure:"-"` // not from config file
}

func loadConfig(configPath string) (appConfig, error) {
	var cfg appConfig

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("VISLOG")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	v.SetDefault("dialect", defaultDialect)
	v.SetDefault("dsn", "")
	v.SetDefault("page-size", model.DefaultPageSize)
	v.SetDefault("mount-path", model.DefaultMountPath)
	v.SetDefault("query-timeout", time.Duration(0))
	v.SetDefault("api-enabled", true)
	v.SetDefault("api-addr", httpserver.DefaultAddr)
	v.SetDefault("tcp-enabled", true)
	v.SetDefault("tcp-addr", tcpserver.DefaultAddr)
	v.SetDefault("stdin", stdinAuto)
	v.SetDefault("max-record-size", ingest.DefaultMaxRecordSize)
	v.SetDefault("insert-batch-size", defaultInsertBatchSize)
	v.SetDefault("insert-flush-interval", defaultInsertFlushInterval)
	v.SetDefault("insert-flush-queue-size", defaultInsertFlushQueue)
	v.SetDefault("cleanup-schedule", logstore.DefaultCleanupSchedule)
	v.SetDefault("retention", []retentionConfig{})
	v.SetDefault("log-level", defaultLogLevel)
	v.SetDefault("log-format", defaultLogFormat)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		defaultConfigPath := filepath.Join(home, ".config", "vislog", "config.yml")
		v.SetConfigFile(defaultConfigPath)
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	cfg.ConfigPath = v.ConfigFileUsed()
	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		cfg.ConfigPath = ""
	}

	d, err := dialect.Lookup(cfg.Dialect)
	if err != nil {
		return cfg, err
	}
	cfg.Dialect = d.Name()

	if cfg.DSN == "" {
		switch cfg.Dialect {
		case "duckdb":
			cfg.DSN = filepath.Join(home, ".local", "share", "vislog", "vislog.duckdb")
		case "sqlite":
			cfg.DSN = filepath.Join(home, ".local", "share", "vislog", "vislog.db")
		default:
			return cfg, fmt.Errorf("dsn is required for dialect %s", cfg.Dialect)
		}
	}
	// Expand ~ in file paths
	if strings.HasPrefix(cfg.DSN, "~/") {
		cfg.DSN = filepath.Join(home, cfg.DSN[2:])
	}

	if cfg.PageSize <= 0 {
		return cfg, fmt.Errorf("invalid page-size: %d", cfg.PageSize)
	}
	if cfg.MaxRecordSize <= 0 {
		return cfg, fmt.Errorf("invalid max-record-size: %d", cfg.MaxRecordSize)
	}
	switch cfg.Stdin {
	case stdinAuto, stdinAlways, stdinNever:
	default:
		return cfg, fmt.Errorf("invalid stdin %q: want auto, always or never", cfg.Stdin)
	}
	if !strings.HasPrefix(cfg.MountPath, "/") {
		return cfg, fmt.Errorf("invalid mount-path %q: must start with /", cfg.MountPath)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel)); err != nil {
		return cfg, fmt.Errorf("invalid log-level %q", cfg.LogLevel)
	}
	switch cfg.LogFormat {
	case "console", "json":
	default:
		return cfg, fmt.Errorf("invalid log-format %q: want console or json", cfg.LogFormat)
	}
	if _, err := cfg.retentionPolicy(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// retentionPolicy validates the configured rules as a whole.
func (c appConfig) retentionPolicy() (*retention.Policy, error) {
	rules := make([]retention.Rule, 0, len(c.Retention))
	for i, rc := range c.Retention {
		rule, err := retention.ParseRule(rc.Levels, rc.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("retention[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return retention.NewPolicy(rules...)
}

func (c appConfig) storeConfig() (logstore.Config, error) {
	policy, err := c.retentionPolicy()
	if err != nil {
		return logstore.Config{}, err
	}
	return logstore.Config{
		PageSize:     c.PageSize,
		MountPath:    c.MountPath,
		QueryTimeout: c.QueryTimeout,
		Retention:    policy,
	}, nil
}

// openStore creates the parent directory of file-backed databases and opens
// the store with migrations applied.
func (c appConfig) openStore(ctx context.Context) (*logstore.Store, error) {
	d, err := dialect.Lookup(c.Dialect)
	if err != nil {
		return nil, err
	}
	storeCfg, err := c.storeConfig()
	if err != nil {
		return nil, err
	}
	if c.Dialect == "duckdb" || c.Dialect == "sqlite" {
		if dir := filepath.Dir(c.DSN); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
	}
	return logstore.Open(ctx, d, c.DSN, storeCfg)
}

// configureLogger points the global zerolog logger at stderr.
func configureLogger(cfg appConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if cfg.LogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"})
}
