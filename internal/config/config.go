// Package config builds the server configuration from, in rising
// precedence, built-in defaults, an optional YAML file, TENSORKV_*
// environment variables, and command-line flags.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v2"
)

// envPrefix namespaces the environment variables this package reads.
const envPrefix = "TENSORKV_"

// BootstrapStore describes a store created declaratively at startup, so an
// operator can stand up a shard instance without a follow-up API call.
type BootstrapStore struct {
	Name     string `yaml:"name"`
	Position uint64 `yaml:"position"`
	Range    uint64 `yaml:"range"`
}

// Config is the full server configuration.
type Config struct {
	// ListenAddr is the address the API server binds.
	ListenAddr string `yaml:"listen_addr"`

	// MetricsAddr, when non-empty, serves /metrics on its own listener so
	// the scrape endpoint can be firewalled separately. Empty shares the
	// API listener.
	MetricsAddr string `yaml:"metrics_addr"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// LogFormat is text or json.
	LogFormat string `yaml:"log_format"`

	// ShutdownGrace bounds how long a draining server waits for in-flight
	// requests.
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`

	// MaxRequestBytes caps HTTP request bodies.
	MaxRequestBytes int64 `yaml:"max_request_bytes"`

	// ChunkSize is the chunk capacity the server advertises to clients and
	// uses when splitting payloads itself.
	ChunkSize int `yaml:"chunk_size"`

	// SampleInterval is how often store gauges are refreshed.
	SampleInterval time.Duration `yaml:"sample_interval"`

	// BootstrapStores are created, in order, before the server starts
	// listening.
	BootstrapStores []BootstrapStore `yaml:"bootstrap_stores"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddr:      ":8080",
		MetricsAddr:     "",
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownGrace:   10 * time.Second,
		MaxRequestBytes: 64 << 20,
		ChunkSize:       64 * 1024,
		SampleInterval:  10 * time.Second,
	}
}

// BindFlags registers every configuration flag on fs with the built-in
// defaults. Load later applies only the flags actually set, so flags win
// over the file and the environment.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("config", "", "path to a YAML configuration file")
	fs.String("listen-addr", d.ListenAddr, "address the API server listens on")
	fs.String("metrics-addr", d.MetricsAddr, "separate listen address for /metrics (empty: share the API listener)")
	fs.String("log-level", d.LogLevel, "log level: debug, info, warn or error")
	fs.String("log-format", d.LogFormat, "log format: text or json")
	fs.Duration("shutdown-grace", d.ShutdownGrace, "how long to wait for in-flight requests on shutdown")
	fs.Int64("max-request-bytes", d.MaxRequestBytes, "maximum HTTP request body size")
	fs.Int("chunk-size", d.ChunkSize, "payload chunk capacity in bytes")
	fs.Duration("sample-interval", d.SampleInterval, "how often per-store metrics are sampled")
	fs.StringSlice("bootstrap-store", nil, "store to create at startup as name:position:range (repeatable)")
}

// Load assembles the configuration. fs must have been prepared with
// BindFlags and parsed.
func Load(fs *pflag.FlagSet) (Config, error) {
	c := Default()

	path, err := fs.GetString("config")
	if err != nil {
		return Config{}, err
	}
	if path == "" {
		path = os.Getenv(envPrefix + "CONFIG")
	}
	if path != "" {
		if err := c.fromFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := c.fromEnv(); err != nil {
		return Config{}, err
	}
	if err := c.fromFlags(fs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// fromFile layers a YAML file over the receiver. Unknown fields are
// rejected so typos fail loudly.
func (c *Config) fromFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.UnmarshalStrict(raw, c); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

// fromEnv layers TENSORKV_* variables over the receiver.
func (c *Config) fromEnv() error {
	if v := os.Getenv(envPrefix + "LISTEN_ADDR"); v != "" {
		c.ListenAddr = v
	}
	if v := os.Getenv(envPrefix + "METRICS_ADDR"); v != "" {
		c.MetricsAddr = v
	}
	if v := os.Getenv(envPrefix + "LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(envPrefix + "LOG_FORMAT"); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(envPrefix + "SHUTDOWN_GRACE"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parse %sSHUTDOWN_GRACE", envPrefix)
		}
		c.ShutdownGrace = d
	}
	if v := os.Getenv(envPrefix + "MAX_REQUEST_BYTES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "parse %sMAX_REQUEST_BYTES", envPrefix)
		}
		c.MaxRequestBytes = n
	}
	if v := os.Getenv(envPrefix + "CHUNK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "parse %sCHUNK_SIZE", envPrefix)
		}
		c.ChunkSize = n
	}
	if v := os.Getenv(envPrefix + "SAMPLE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrapf(err, "parse %sSAMPLE_INTERVAL", envPrefix)
		}
		c.SampleInterval = d
	}
	if v := os.Getenv(envPrefix + "BOOTSTRAP_STORES"); v != "" {
		stores, err := parseBootstrapList(strings.Split(v, ","))
		if err != nil {
			return errors.Wrapf(err, "parse %sBOOTSTRAP_STORES", envPrefix)
		}
		c.BootstrapStores = stores
	}
	return nil
}

// fromFlags layers explicitly set flags over the receiver.
func (c *Config) fromFlags(fs *pflag.FlagSet) error {
	var visitErr error
	fs.Visit(func(f *pflag.Flag) {
		if visitErr != nil {
			return
		}
		switch f.Name {
		case "listen-addr":
			c.ListenAddr, visitErr = fs.GetString(f.Name)
		case "metrics-addr":
			c.MetricsAddr, visitErr = fs.GetString(f.Name)
		case "log-level":
			c.LogLevel, visitErr = fs.GetString(f.Name)
		case "log-format":
			c.LogFormat, visitErr = fs.GetString(f.Name)
		case "shutdown-grace":
			c.ShutdownGrace, visitErr = fs.GetDuration(f.Name)
		case "max-request-bytes":
			c.MaxRequestBytes, visitErr = fs.GetInt64(f.Name)
		case "chunk-size":
			c.ChunkSize, visitErr = fs.GetInt(f.Name)
		case "sample-interval":
			c.SampleInterval, visitErr = fs.GetDuration(f.Name)
		case "bootstrap-store":
			var specs []string
			specs, visitErr = fs.GetStringSlice(f.Name)
			if visitErr == nil {
				c.BootstrapStores, visitErr = parseBootstrapList(specs)
			}
		}
	})
	return visitErr
}

// parseBootstrapList parses name:position:range triples.
func parseBootstrapList(specs []string) ([]BootstrapStore, error) {
	stores := make([]BootstrapStore, 0, len(specs))
	for _, spec := range specs {
		parts := strings.Split(strings.TrimSpace(spec), ":")
		if len(parts) != 3 {
			return nil, errors.Newf("bootstrap store %q is not name:position:range", spec)
		}
		position, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bootstrap store %q position", spec)
		}
		rng, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "bootstrap store %q range", spec)
		}
		stores = append(stores, BootstrapStore{Name: parts[0], Position: position, Range: rng})
	}
	return stores, nil
}

// Validate rejects configurations the server cannot run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return errors.New("listen address must not be empty")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return errors.Newf("unknown log format %q (want text or json)", c.LogFormat)
	}
	if c.ShutdownGrace <= 0 {
		return errors.New("shutdown grace must be positive")
	}
	if c.MaxRequestBytes <= 0 {
		return errors.New("max request bytes must be positive")
	}
	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}
	if c.SampleInterval <= 0 {
		return errors.New("sample interval must be positive")
	}
	for _, b := range c.BootstrapStores {
		if b.Name == "" {
			return errors.New("bootstrap store name must not be empty")
		}
		if b.Range == 0 || b.Position >= b.Range {
			return errors.Newf("bootstrap store %q: position %d must lie in [0, %d)",
				b.Name, b.Position, b.Range)
		}
	}
	return nil
}

// level parses LogLevel.
func (c *Config) level() (slog.Level, error) {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, errors.Newf("unknown log level %q", c.LogLevel)
	}
}

// Logger builds the process logger described by LogLevel and LogFormat.
func (c *Config) Logger() (*slog.Logger, error) {
	level, err := c.level()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if c.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(h), nil
}
