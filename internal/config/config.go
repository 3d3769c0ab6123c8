package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Store backends accepted by SYNAPSE_STORE.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreS3       = "s3"
)

type Config struct {
	Store       string // SYNAPSE_STORE (default "file")
	DataDir     string // SYNAPSE_DATA_DIR (default ~/.local/share/synapse)
	DatabaseURL string // SYNAPSE_DATABASE_URL (required for postgres)
	GRPCAddr    string // SYNAPSE_GRPC_ADDR (default ":7421")
	HTTPAddr    string // SYNAPSE_HTTP_ADDR (default ":7420")
	NATSURL     string // SYNAPSE_NATS_URL (optional, empty = no NATS events)
	NATSPrefix  string // SYNAPSE_NATS_PREFIX (default "synapse")

	// S3 store settings
	S3Bucket   string // SYNAPSE_S3_BUCKET (required for s3)
	S3Prefix   string // SYNAPSE_S3_PREFIX (default "synapse/")
	S3Region   string // SYNAPSE_S3_REGION (default "us-east-1")
	S3Endpoint string // SYNAPSE_S3_ENDPOINT (custom endpoint for MinIO)

	// Engine settings
	PositionDebounce time.Duration // SYNAPSE_POSITION_DEBOUNCE (default 400ms)
	Retention        time.Duration // SYNAPSE_RETENTION (default 720h; negative = keep forever)
	CleanupInterval  time.Duration // SYNAPSE_CLEANUP_INTERVAL (default 24h)
	WindowTimeout    time.Duration // SYNAPSE_WINDOW_TIMEOUT (default 2m)

	// Browser settings
	Headless       bool // SYNAPSE_HEADLESS (default true)
	InstallBrowser bool // SYNAPSE_INSTALL_BROWSER (default false)

	// Sync settings
	SyncInterval   time.Duration // SYNAPSE_SYNC_INTERVAL (default 0 = disabled)
	SyncS3Bucket   string        // SYNAPSE_SYNC_S3_BUCKET (enables S3 when set)
	SyncS3Endpoint string        // SYNAPSE_SYNC_S3_ENDPOINT
	SyncS3Region   string        // SYNAPSE_SYNC_S3_REGION (default "us-east-1")
	SyncS3Key      string        // SYNAPSE_SYNC_S3_KEY (default "synapse/graph.jsonl")
	SyncGitRepo    string        // SYNAPSE_SYNC_GIT_REPO (enables git when set; path to clone)
	SyncGitFile    string        // SYNAPSE_SYNC_GIT_FILE (default "graph.jsonl")
	SyncGitBranch  string        // SYNAPSE_SYNC_GIT_BRANCH (default "main")

	// Event hooks, from [[hooks]] tables in the config file only.
	Hooks []Hook
}

// Hook runs Command whenever an event matching Topic is published.
type Hook struct {
	Topic   string
	Command string
	Timeout time.Duration // zero = hooks.DefaultTimeout
	Dir     string
}

type fileHook struct {
	Topic   string `toml:"topic"`
	Command string `toml:"command"`
	Timeout string `toml:"timeout"`
	Dir     string `toml:"dir"`
}

// fileConfig is the TOML overlay read from SYNAPSE_CONFIG. Durations are Go
// duration strings. Environment variables win over the file.
type fileConfig struct {
	Store       string `toml:"store"`
	DataDir     string `toml:"data_dir"`
	DatabaseURL string `toml:"database_url"`
	GRPCAddr    string `toml:"grpc_addr"`
	HTTPAddr    string `toml:"http_addr"`
	NATSURL     string `toml:"nats_url"`
	NATSPrefix  string `toml:"nats_prefix"`

	S3 struct {
		Bucket   string `toml:"bucket"`
		Prefix   string `toml:"prefix"`
		Region   string `toml:"region"`
		Endpoint string `toml:"endpoint"`
	} `toml:"s3"`

	Engine struct {
		PositionDebounce string `toml:"position_debounce"`
		Retention        string `toml:"retention"`
		CleanupInterval  string `toml:"cleanup_interval"`
		WindowTimeout    string `toml:"window_timeout"`
	} `toml:"engine"`

	Browser struct {
		Headless *bool `toml:"headless"`
		Install  *bool `toml:"install"`
	} `toml:"browser"`

	Sync struct {
		Interval   string `toml:"interval"`
		S3Bucket   string `toml:"s3_bucket"`
		S3Endpoint string `toml:"s3_endpoint"`
		S3Region   string `toml:"s3_region"`
		S3Key      string `toml:"s3_key"`
		GitRepo    string `toml:"git_repo"`
		GitFile    string `toml:"git_file"`
		GitBranch  string `toml:"git_branch"`
	} `toml:"sync"`

	Hooks []fileHook `toml:"hooks"`
}

// Load reads the configuration from SYNAPSE_CONFIG (if set) and the
// environment.
func Load() (*Config, error) {
	var fc fileConfig
	if path := os.Getenv("SYNAPSE_CONFIG"); path != "" {
		if _, err := toml.DecodeFile(path, &fc); err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	c := &Config{
		Store:       setting("SYNAPSE_STORE", fc.Store, StoreFile),
		DataDir:     setting("SYNAPSE_DATA_DIR", fc.DataDir, defaultDataDir()),
		DatabaseURL: setting("SYNAPSE_DATABASE_URL", fc.DatabaseURL, ""),
		GRPCAddr:    setting("SYNAPSE_GRPC_ADDR", fc.GRPCAddr, ":7421"),
		HTTPAddr:    setting("SYNAPSE_HTTP_ADDR", fc.HTTPAddr, ":7420"),
		NATSURL:     setting("SYNAPSE_NATS_URL", fc.NATSURL, ""),
		NATSPrefix:  setting("SYNAPSE_NATS_PREFIX", fc.NATSPrefix, "synapse"),

		S3Bucket:   setting("SYNAPSE_S3_BUCKET", fc.S3.Bucket, ""),
		S3Prefix:   setting("SYNAPSE_S3_PREFIX", fc.S3.Prefix, "synapse/"),
		S3Region:   setting("SYNAPSE_S3_REGION", fc.S3.Region, "us-east-1"),
		S3Endpoint: setting("SYNAPSE_S3_ENDPOINT", fc.S3.Endpoint, ""),

		SyncS3Bucket:   setting("SYNAPSE_SYNC_S3_BUCKET", fc.Sync.S3Bucket, ""),
		SyncS3Endpoint: setting("SYNAPSE_SYNC_S3_ENDPOINT", fc.Sync.S3Endpoint, ""),
		SyncS3Region:   setting("SYNAPSE_SYNC_S3_REGION", fc.Sync.S3Region, "us-east-1"),
		SyncS3Key:      setting("SYNAPSE_SYNC_S3_KEY", fc.Sync.S3Key, "synapse/graph.jsonl"),
		SyncGitRepo:    setting("SYNAPSE_SYNC_GIT_REPO", fc.Sync.GitRepo, ""),
		SyncGitFile:    setting("SYNAPSE_SYNC_GIT_FILE", fc.Sync.GitFile, "graph.jsonl"),
		SyncGitBranch:  setting("SYNAPSE_SYNC_GIT_BRANCH", fc.Sync.GitBranch, "main"),
	}

	durations := []struct {
		key      string
		file     string
		fallback string
		dst      *time.Duration
	}{
		{"SYNAPSE_POSITION_DEBOUNCE", fc.Engine.PositionDebounce, "400ms", &c.PositionDebounce},
		{"SYNAPSE_RETENTION", fc.Engine.Retention, "720h", &c.Retention},
		{"SYNAPSE_CLEANUP_INTERVAL", fc.Engine.CleanupInterval, "24h", &c.CleanupInterval},
		{"SYNAPSE_WINDOW_TIMEOUT", fc.Engine.WindowTimeout, "2m", &c.WindowTimeout},
		{"SYNAPSE_SYNC_INTERVAL", fc.Sync.Interval, "0", &c.SyncInterval},
	}
	for _, d := range durations {
		v := setting(d.key, d.file, d.fallback)
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	for i, h := range fc.Hooks {
		hook := Hook{Topic: h.Topic, Command: h.Command, Dir: h.Dir}
		if h.Timeout != "" {
			d, err := time.ParseDuration(h.Timeout)
			if err != nil {
				return nil, fmt.Errorf("hooks[%d].timeout: %w", i, err)
			}
			hook.Timeout = d
		}
		c.Hooks = append(c.Hooks, hook)
	}

	var err error
	if c.Headless, err = boolSetting("SYNAPSE_HEADLESS", fc.Browser.Headless, true); err != nil {
		return nil, err
	}
	if c.InstallBrowser, err = boolSetting("SYNAPSE_INSTALL_BROWSER", fc.Browser.Install, false); err != nil {
		return nil, err
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreMemory, StoreFile, StoreSQLite:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("SYNAPSE_DATABASE_URL is required for the postgres store")
		}
	case StoreS3:
		if c.S3Bucket == "" {
			return fmt.Errorf("SYNAPSE_S3_BUCKET is required for the s3 store")
		}
	default:
		return fmt.Errorf("SYNAPSE_STORE: unknown store %q", c.Store)
	}
	if c.PositionDebounce < 0 {
		return fmt.Errorf("SYNAPSE_POSITION_DEBOUNCE must not be negative")
	}
	for i, h := range c.Hooks {
		if h.Topic == "" || h.Command == "" {
			return fmt.Errorf("hooks[%d]: topic and command are required", i)
		}
	}
	return nil
}

// GraphFile is the JSON document used by the file store.
func (c *Config) GraphFile() string {
	return filepath.Join(c.DataDir, "graph.json")
}

// SQLitePath is the database used by the sqlite store.
func (c *Config) SQLitePath() string {
	return filepath.Join(c.DataDir, "graph.db")
}

func defaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "synapse")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".synapse"
	}
	return filepath.Join(home, ".local", "share", "synapse")
}

// setting returns the environment value, then the file value, then fallback.
func setting(key, file, fallback string) string {
	return envOrDefault(key, orDefault(file, fallback))
}

func boolSetting(key string, file *bool, fallback bool) (bool, error) {
	if file != nil {
		fallback = *file
	}
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func orDefault(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
