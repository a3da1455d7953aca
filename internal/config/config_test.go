package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// newFlagSet binds the config flags onto a fresh, test-local flag set.
func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestDefaults(t *testing.T) {
	c, err := Load(newFlagSet(t))
	require.NoError(t, err)
	require.Equal(t, Default(), c)
	require.Equal(t, ":8080", c.ListenAddr)
	require.Equal(t, "info", c.LogLevel)
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tensorkv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listen_addr: ":9999"
log_level: debug
shutdown_grace: 3s
bootstrap_stores:
  - name: shard0
    position: 0
    range: 2
  - name: shard1
    position: 1
    range: 2
`), 0o644))

	c, err := Load(newFlagSet(t, "--config", path))
	require.NoError(t, err)
	require.Equal(t, ":9999", c.ListenAddr)
	require.Equal(t, "debug", c.LogLevel)
	require.Equal(t, 3*time.Second, c.ShutdownGrace)
	require.Equal(t, []BootstrapStore{
		{Name: "shard0", Position: 0, Range: 2},
		{Name: "shard1", Position: 1, Range: 2},
	}, c.BootstrapStores)
	// Fields the file does not mention keep their defaults.
	require.Equal(t, Default().ChunkSize, c.ChunkSize)
}

func TestFromFileRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listne_addr: \":1\"\n"), 0o644))
	_, err := Load(newFlagSet(t, "--config", path))
	require.Error(t, err)
}

func TestFromEnv(t *testing.T) {
	t.Setenv("TENSORKV_LISTEN_ADDR", ":7777")
	t.Setenv("TENSORKV_LOG_FORMAT", "json")
	t.Setenv("TENSORKV_SAMPLE_INTERVAL", "250ms")
	t.Setenv("TENSORKV_BOOTSTRAP_STORES", "a:0:4,b:3:4")

	c, err := Load(newFlagSet(t))
	require.NoError(t, err)
	require.Equal(t, ":7777", c.ListenAddr)
	require.Equal(t, "json", c.LogFormat)
	require.Equal(t, 250*time.Millisecond, c.SampleInterval)
	require.Equal(t, []BootstrapStore{
		{Name: "a", Position: 0, Range: 4},
		{Name: "b", Position: 3, Range: 4},
	}, c.BootstrapStores)
}

func TestPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tensorkv.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen_addr: \":1111\"\nlog_level: warn\n"), 0o644))
	t.Setenv("TENSORKV_LISTEN_ADDR", ":2222")

	// Environment beats the file; an explicit flag beats both.
	c, err := Load(newFlagSet(t, "--config", path))
	require.NoError(t, err)
	require.Equal(t, ":2222", c.ListenAddr)
	require.Equal(t, "warn", c.LogLevel)

	c, err = Load(newFlagSet(t, "--config", path, "--listen-addr", ":3333"))
	require.NoError(t, err)
	require.Equal(t, ":3333", c.ListenAddr)
}

func TestBootstrapFlag(t *testing.T) {
	c, err := Load(newFlagSet(t,
		"--bootstrap-store", "shard0:0:2",
		"--bootstrap-store", "shard1:1:2"))
	require.NoError(t, err)
	require.Len(t, c.BootstrapStores, 2)
	require.Equal(t, BootstrapStore{Name: "shard1", Position: 1, Range: 2}, c.BootstrapStores[1])
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.ListenAddr = "" }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }},
		{"non-positive grace", func(c *Config) { c.ShutdownGrace = 0 }},
		{"non-positive body cap", func(c *Config) { c.MaxRequestBytes = 0 }},
		{"non-positive chunk size", func(c *Config) { c.ChunkSize = -1 }},
		{"bootstrap position out of range", func(c *Config) {
			c.BootstrapStores = []BootstrapStore{{Name: "x", Position: 2, Range: 2}}
		}},
		{"bootstrap empty name", func(c *Config) {
			c.BootstrapStores = []BootstrapStore{{Position: 0, Range: 1}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

func TestMalformedBootstrapSpec(t *testing.T) {
	_, err := Load(newFlagSet(t, "--bootstrap-store", "just-a-name"))
	require.Error(t, err)
	_, err = Load(newFlagSet(t, "--bootstrap-store", "a:zero:2"))
	require.Error(t, err)
}

func TestLogger(t *testing.T) {
	c := Default()
	logger, err := c.Logger()
	require.NoError(t, err)
	require.NotNil(t, logger)

	c.LogFormat = "json"
	logger, err = c.Logger()
	require.NoError(t, err)
	require.NotNil(t, logger)
}
