package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// TestDefaults tests that the defaults match the documented values
func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 5, cfg.Executor.MaxConcurrentOperations)
	assert.Equal(t, 30*time.Minute, time.Duration(cfg.Executor.OperationTimeout))
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.Health.CheckInterval))
	assert.Equal(t, 5*time.Second, time.Duration(cfg.Health.ProbeTimeout))
	assert.Equal(t, 30*time.Second, time.Duration(cfg.Service.ShutdownGracePeriod))
	assert.Equal(t, 1000, cfg.Notifications.RingCapacity)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Notifications.ChannelSendTimeout))
	assert.Equal(t, 3, cfg.Notifications.ChannelRetryAttempts)

	policy := cfg.Retry.Policy()
	require.NoError(t, policy.Validate())
	assert.Equal(t, 3, policy.MaxAttempts)
	assert.Equal(t, time.Second, policy.BaseDelay)
}

// TestValidateRejections tests the configuration-class failures
func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty service name", func(c *Config) { c.Service.Name = "" }},
		{"zero workers", func(c *Config) { c.Executor.MaxConcurrentOperations = 0 }},
		{"too many workers", func(c *Config) { c.Executor.MaxConcurrentOperations = 21 }},
		{"negative queue", func(c *Config) { c.Executor.QueueSize = -1 }},
		{"zero health interval", func(c *Config) { c.Health.CheckInterval = 0 }},
		{"zero ring capacity", func(c *Config) { c.Notifications.RingCapacity = 0 }},
		{"webhook without url", func(c *Config) {
			c.Notifications.Webhooks = []WebhookConfig{{Name: "ops"}}
		}},
		{"bad retry strategy", func(c *Config) { c.Retry.Strategy = "quadratic" }},
		{"api without listen", func(c *Config) { c.API.Listen = "" }},
		{"content type without path", func(c *Config) {
			c.ContentTypes = []ContentTypeConfig{{Name: "movies", MaxSize: 1 << 30}}
		}},
		{"relative local path", func(c *Config) {
			c.ContentTypes = []ContentTypeConfig{{Name: "movies", LocalPath: "data/movies", MaxSize: 1 << 30}}
		}},
		{"traversing local path", func(c *Config) {
			c.ContentTypes = []ContentTypeConfig{{Name: "movies", LocalPath: "/data/../etc", MaxSize: 1 << 30}}
		}},
		{"zero budget", func(c *Config) {
			c.ContentTypes = []ContentTypeConfig{{Name: "movies", LocalPath: "/data/movies"}}
		}},
		{"duplicate content type", func(c *Config) {
			c.ContentTypes = []ContentTypeConfig{
				{Name: "movies", LocalPath: "/data/movies", MaxSize: 1 << 30},
				{Name: "movies", LocalPath: "/data/movies2", MaxSize: 1 << 30},
			}
		}},
		{"bad filter glob", func(c *Config) {
			c.ContentTypes = []ContentTypeConfig{{
				Name: "movies", LocalPath: "/data/movies", MaxSize: 1 << 30,
				Filters: []FilterConfig{{Type: "glob", Pattern: "[unclosed"}},
			}}
		}},
		{"bad filter regex", func(c *Config) {
			c.ContentTypes = []ContentTypeConfig{{
				Name: "movies", LocalPath: "/data/movies", MaxSize: 1 << 30,
				Filters: []FilterConfig{{Type: "regex", Pattern: "("}},
			}}
		}},
		{"unknown filter type", func(c *Config) {
			c.ContentTypes = []ContentTypeConfig{{
				Name: "movies", LocalPath: "/data/movies", MaxSize: 1 << 30,
				Filters: []FilterConfig{{Type: "checksum"}},
			}}
		}},
		{"zero weight priority rule", func(c *Config) {
			c.ContentTypes = []ContentTypeConfig{{
				Name: "movies", LocalPath: "/data/movies", MaxSize: 1 << 30,
				PriorityRules: []PriorityRuleConfig{{Name: "recent", Rule: FilterConfig{Type: "max_age", Window: Duration(time.Hour)}}},
			}}
		}},
		{"unknown direction", func(c *Config) {
			c.ContentTypes = []ContentTypeConfig{{
				Name: "movies", LocalPath: "/data/movies", MaxSize: 1 << 30, Direction: "sideways",
			}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errdefs.IsConfiguration(err), "expected configuration class, got %v", err)
		})
	}
}

// TestLoad tests YAML loading over the defaults
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "syncd.yaml")
	doc := `
service:
  name: media-sync
  shutdown_grace_period: 10s
executor:
  max_concurrent_operations: 2
  operation_timeout: 5m
notifications:
  ring_capacity: 50
content_types:
  - name: movies
    local_path: /data/movies
    max_size: 10GB
    priority: 1
    schedule: "0 2 * * *"
    direction: from_source
    filters:
      - type: extension
        extensions: [".mkv", ".mp4"]
      - type: max_size
        size: 8GB
    priority_rules:
      - name: recent
        weight: 10
        rule:
          type: max_age
          window: 720h
  - name: tv
    local_path: /data/tv
    max_size: 5GB
    priority: 2
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "media-sync", cfg.Service.Name)
	assert.Equal(t, 10*time.Second, time.Duration(cfg.Service.ShutdownGracePeriod))
	assert.Equal(t, 2, cfg.Executor.MaxConcurrentOperations)
	assert.Equal(t, 5*time.Minute, time.Duration(cfg.Executor.OperationTimeout))
	assert.Equal(t, 50, cfg.Notifications.RingCapacity)

	// Untouched sections keep their defaults
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.True(t, cfg.API.Enabled)

	cts := cfg.DomainContentTypes()
	require.Len(t, cts, 2)
	movies := cts[0]
	assert.Equal(t, "movies", movies.Name)
	assert.Equal(t, int64(10<<30), movies.MaxSizeBytes)
	assert.Equal(t, types.DirectionFromSource, movies.Direction)
	require.Len(t, movies.Filters, 2)
	assert.Equal(t, types.FilterExtension, movies.Filters[0].Type)
	assert.Equal(t, int64(8<<30), movies.Filters[1].Value)
	require.Len(t, movies.PriorityRules, 1)
	assert.Equal(t, 720*time.Hour, movies.PriorityRules[0].Rule.Window)
}

// TestLoadMissingFile tests the error class for an absent path
func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/syncd.yaml")
	require.Error(t, err)
	assert.True(t, errdefs.IsConfiguration(err))
}

// TestLoadInvalidYAML tests the error class for a malformed document
func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("service: ["), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errdefs.IsConfiguration(err))
}

// TestParseSize tests the byte unit notation
func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want Size
	}{
		{"10GB", 10 << 30},
		{"500MB", 500 << 20},
		{"1.5GB", Size(1.5 * float64(1<<30))},
		{"64KB", 64 << 10},
		{"2TB", 2 << 40},
		{"123B", 123},
		{"4096", 4096},
		{" 1gb ", 1 << 30},
	}

	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "GB", "ten GB", "-"} {
		_, err := ParseSize(bad)
		assert.Error(t, err, bad)
	}
}
