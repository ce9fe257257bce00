package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/retry"
	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// Limits on executor pool sizing
const (
	MinWorkers = 1
	MaxWorkers = 20
)

// Config is the root configuration for a sync service. It is loaded
// once before Start and never mutated afterwards.
type Config struct {
	Service       ServiceConfig       `yaml:"service"`
	Log           LogConfig           `yaml:"log"`
	Executor      ExecutorConfig      `yaml:"executor"`
	Health        HealthConfig        `yaml:"health"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Retry         RetryConfig         `yaml:"retry"`
	API           APIConfig           `yaml:"api"`
	Storage       StorageConfig       `yaml:"storage"`
	Watch         WatchConfig         `yaml:"watch"`
	Agent         AgentConfig         `yaml:"agent"`
	ContentTypes  []ContentTypeConfig `yaml:"content_types"`
}

// AgentConfig wires the reference file agent: where items come from,
// where they land, and how the transferor behaves
type AgentConfig struct {
	SourceRoot      string `yaml:"source_root"`
	DestinationRoot string `yaml:"destination_root"`
	BandwidthLimit  Size   `yaml:"bandwidth_limit"`
	VerifyChecksum  bool   `yaml:"verify_checksum"`
}

// ServiceConfig identifies the service and bounds its shutdown
type ServiceConfig struct {
	Name                string   `yaml:"name"`
	ShutdownGracePeriod Duration `yaml:"shutdown_grace_period"`
}

// LogConfig controls the global logger
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// ExecutorConfig sizes the operation pool
type ExecutorConfig struct {
	MaxConcurrentOperations int      `yaml:"max_concurrent_operations"`
	OperationTimeout        Duration `yaml:"operation_timeout"`
	QueueSize               int      `yaml:"queue_size"`
	RejectWhenFull          bool     `yaml:"reject_when_full"`
}

// HealthConfig controls the health aggregator
type HealthConfig struct {
	CheckInterval Duration `yaml:"check_interval"`
	ProbeTimeout  Duration `yaml:"probe_timeout"`
}

// NotificationsConfig controls the hub and its built-in channels
type NotificationsConfig struct {
	RingCapacity         int             `yaml:"ring_capacity"`
	ChannelSendTimeout   Duration        `yaml:"channel_send_timeout"`
	ChannelRetryAttempts int             `yaml:"channel_retry_attempts"`
	LogChannel           bool            `yaml:"log_channel"`
	Webhooks             []WebhookConfig `yaml:"webhooks"`
}

// WebhookConfig declares one webhook notification channel
type WebhookConfig struct {
	Name     string            `yaml:"name"`
	URL      string            `yaml:"url"`
	Method   string            `yaml:"method"`
	Headers  map[string]string `yaml:"headers"`
	Timeout  Duration          `yaml:"timeout"`
	MinLevel string            `yaml:"min_level"`
}

// RetryConfig is the default retry policy applied to operations that
// carry none of their own
type RetryConfig struct {
	MaxAttempts int      `yaml:"max_attempts"`
	BaseDelay   Duration `yaml:"base_delay"`
	MaxDelay    Duration `yaml:"max_delay"`
	Strategy    string   `yaml:"strategy"`
	Multiplier  float64  `yaml:"multiplier"`
	Jitter      string   `yaml:"jitter"`
}

// APIConfig controls the observable HTTP surface
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// StorageConfig locates the transfer marker database
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
}

// WatchConfig controls the directory change watcher
type WatchConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Debounce Duration `yaml:"debounce"`
}

// FilterConfig is the YAML form of one filter or priority predicate
type FilterConfig struct {
	Type       string   `yaml:"type"`
	Pattern    string   `yaml:"pattern"`
	Extensions []string `yaml:"extensions"`
	Size       Size     `yaml:"size"`
	Window     Duration `yaml:"window"`
}

// PriorityRuleConfig is the YAML form of one weighted scoring rule
type PriorityRuleConfig struct {
	Name   string       `yaml:"name"`
	Weight float64      `yaml:"weight"`
	Rule   FilterConfig `yaml:"rule"`
}

// ContentTypeConfig is the YAML form of one configured sync bucket
type ContentTypeConfig struct {
	Name              string               `yaml:"name"`
	LocalPath         string               `yaml:"local_path"`
	RemotePath        string               `yaml:"remote_path"`
	MaxSize           Size                 `yaml:"max_size"`
	AllowedExtensions []string             `yaml:"allowed_extensions"`
	Schedule          string               `yaml:"schedule"`
	Priority          int                  `yaml:"priority"`
	Direction         string               `yaml:"direction"`
	Filters           []FilterConfig       `yaml:"filters"`
	PriorityRules     []PriorityRuleConfig `yaml:"priority_rules"`
}

// DefaultConfig returns the runtime defaults. Loaded files override
// only the fields they set.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:                "syncd",
			ShutdownGracePeriod: Duration(30 * time.Second),
		},
		Log: LogConfig{
			Level: "info",
		},
		Executor: ExecutorConfig{
			MaxConcurrentOperations: 5,
			OperationTimeout:        Duration(30 * time.Minute),
		},
		Health: HealthConfig{
			CheckInterval: Duration(5 * time.Minute),
			ProbeTimeout:  Duration(5 * time.Second),
		},
		Notifications: NotificationsConfig{
			RingCapacity:         1000,
			ChannelSendTimeout:   Duration(10 * time.Second),
			ChannelRetryAttempts: 3,
			LogChannel:           true,
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   Duration(1 * time.Second),
			MaxDelay:    Duration(30 * time.Second),
			Strategy:    string(retry.StrategyExponential),
			Multiplier:  2,
			Jitter:      string(retry.JitterFull),
		},
		API: APIConfig{
			Enabled: true,
			Listen:  "127.0.0.1:9090",
		},
		Storage: StorageConfig{
			DataDir: "/var/lib/syncd",
		},
		Watch: WatchConfig{
			Debounce: Duration(2 * time.Second),
		},
		Agent: AgentConfig{
			DestinationRoot: "/",
			VerifyChecksum:  true,
		},
	}
}

// Load reads a YAML configuration file over the defaults and
// validates the result
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errdefs.Wrapf(errdefs.ClassConfiguration, err, "failed to read config %s", path)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errdefs.Wrapf(errdefs.ClassConfiguration, err, "failed to parse config %s", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting, returning a configuration-class
// error on the first violation
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return errdefs.New(errdefs.ClassConfiguration, "service.name is required")
	}
	if c.Service.ShutdownGracePeriod < 0 {
		return errdefs.New(errdefs.ClassConfiguration, "service.shutdown_grace_period must be >= 0")
	}

	w := c.Executor.MaxConcurrentOperations
	if w < MinWorkers || w > MaxWorkers {
		return errdefs.Newf(errdefs.ClassConfiguration,
			"executor.max_concurrent_operations must be in [%d, %d], got %d", MinWorkers, MaxWorkers, w)
	}
	if c.Executor.OperationTimeout <= 0 {
		return errdefs.New(errdefs.ClassConfiguration, "executor.operation_timeout must be > 0")
	}
	if c.Executor.QueueSize < 0 {
		return errdefs.New(errdefs.ClassConfiguration, "executor.queue_size must be >= 0")
	}

	if c.Health.CheckInterval <= 0 {
		return errdefs.New(errdefs.ClassConfiguration, "health.check_interval must be > 0")
	}
	if c.Health.ProbeTimeout <= 0 {
		return errdefs.New(errdefs.ClassConfiguration, "health.probe_timeout must be > 0")
	}

	if c.Notifications.RingCapacity <= 0 {
		return errdefs.New(errdefs.ClassConfiguration, "notifications.ring_capacity must be > 0")
	}
	if c.Notifications.ChannelSendTimeout <= 0 {
		return errdefs.New(errdefs.ClassConfiguration, "notifications.channel_send_timeout must be > 0")
	}
	if c.Notifications.ChannelRetryAttempts < 0 {
		return errdefs.New(errdefs.ClassConfiguration, "notifications.channel_retry_attempts must be >= 0")
	}
	for i, wh := range c.Notifications.Webhooks {
		if wh.URL == "" {
			return errdefs.Newf(errdefs.ClassConfiguration, "notifications.webhooks[%d].url is required", i)
		}
	}

	if err := c.Retry.Policy().Validate(); err != nil {
		return err
	}

	if c.API.Enabled && c.API.Listen == "" {
		return errdefs.New(errdefs.ClassConfiguration, "api.listen is required when api.enabled")
	}

	if len(c.ContentTypes) > 0 && c.Agent.SourceRoot != "" && !filepath.IsAbs(c.Agent.SourceRoot) {
		return errdefs.New(errdefs.ClassConfiguration, "agent.source_root must be absolute")
	}
	if c.Agent.BandwidthLimit < 0 {
		return errdefs.New(errdefs.ClassConfiguration, "agent.bandwidth_limit must be >= 0")
	}

	seen := make(map[string]bool, len(c.ContentTypes))
	for i := range c.ContentTypes {
		ct := &c.ContentTypes[i]
		if err := ct.validate(); err != nil {
			return err
		}
		if seen[ct.Name] {
			return errdefs.Newf(errdefs.ClassConfiguration, "content_types: duplicate name %q", ct.Name)
		}
		seen[ct.Name] = true
	}

	return nil
}

func (c *ContentTypeConfig) validate() error {
	if c.Name == "" {
		return errdefs.New(errdefs.ClassConfiguration, "content_types: name is required")
	}
	if c.LocalPath == "" {
		return errdefs.Newf(errdefs.ClassConfiguration, "content type %q: local_path is required", c.Name)
	}
	if !filepath.IsAbs(c.LocalPath) {
		return errdefs.Newf(errdefs.ClassConfiguration, "content type %q: local_path must be absolute", c.Name)
	}
	if c.LocalPath != filepath.Clean(c.LocalPath) {
		return errdefs.Newf(errdefs.ClassConfiguration, "content type %q: local_path must not traverse", c.Name)
	}
	if c.MaxSize <= 0 {
		return errdefs.Newf(errdefs.ClassConfiguration, "content type %q: max_size must be > 0", c.Name)
	}

	switch types.SyncDirection(c.Direction) {
	case types.DirectionBidirectional, types.DirectionToDestination, types.DirectionFromSource, "":
	default:
		return errdefs.Newf(errdefs.ClassConfiguration, "content type %q: unknown direction %q", c.Name, c.Direction)
	}

	for i, f := range c.Filters {
		if _, err := f.rule(); err != nil {
			return errdefs.Wrapf(errdefs.ClassConfiguration, err, "content type %q: filters[%d]", c.Name, i)
		}
	}
	for i, r := range c.PriorityRules {
		if r.Weight == 0 {
			return errdefs.Newf(errdefs.ClassConfiguration, "content type %q: priority_rules[%d] has zero weight", c.Name, i)
		}
		if _, err := r.Rule.rule(); err != nil {
			return errdefs.Wrapf(errdefs.ClassConfiguration, err, "content type %q: priority_rules[%d]", c.Name, i)
		}
	}

	return nil
}

// rule converts the YAML filter form into the domain rule, verifying
// that patterns compile
func (f FilterConfig) rule() (types.FilterRule, error) {
	rule := types.FilterRule{
		Type:       types.FilterType(f.Type),
		Pattern:    f.Pattern,
		Extensions: f.Extensions,
		Value:      int64(f.Size),
		Window:     time.Duration(f.Window),
	}

	switch rule.Type {
	case types.FilterGlob:
		if _, err := glob.Compile(f.Pattern); err != nil {
			return rule, fmt.Errorf("invalid glob %q: %w", f.Pattern, err)
		}
	case types.FilterRegex:
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return rule, fmt.Errorf("invalid regex %q: %w", f.Pattern, err)
		}
	case types.FilterExtension:
		if len(f.Extensions) == 0 {
			return rule, fmt.Errorf("extension filter needs at least one extension")
		}
	case types.FilterMinSize, types.FilterMaxSize:
		if f.Size <= 0 {
			return rule, fmt.Errorf("size filter needs a positive size")
		}
	case types.FilterMinAge, types.FilterMaxAge:
		if f.Window <= 0 {
			return rule, fmt.Errorf("age filter needs a positive window")
		}
	default:
		return rule, fmt.Errorf("unknown filter type %q", f.Type)
	}

	return rule, nil
}

// Policy converts the retry section into an engine policy
func (r RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: r.MaxAttempts,
		BaseDelay:   time.Duration(r.BaseDelay),
		MaxDelay:    time.Duration(r.MaxDelay),
		Strategy:    retry.Strategy(r.Strategy),
		Multiplier:  r.Multiplier,
		Jitter:      retry.Jitter(r.Jitter),
	}
}

// ContentType converts a validated content type section into its
// domain form
func (c ContentTypeConfig) ContentType() types.ContentType {
	direction := types.SyncDirection(c.Direction)
	if direction == "" {
		direction = types.DirectionFromSource
	}

	ct := types.ContentType{
		Name:              c.Name,
		LocalPath:         c.LocalPath,
		RemotePath:        c.RemotePath,
		MaxSizeBytes:      int64(c.MaxSize),
		AllowedExtensions: c.AllowedExtensions,
		Schedule:          c.Schedule,
		Priority:          c.Priority,
		Direction:         direction,
	}
	for _, f := range c.Filters {
		rule, _ := f.rule()
		ct.Filters = append(ct.Filters, rule)
	}
	for _, r := range c.PriorityRules {
		rule, _ := r.Rule.rule()
		ct.PriorityRules = append(ct.PriorityRules, types.PriorityRule{
			Name:   r.Name,
			Weight: r.Weight,
			Rule:   rule,
		})
	}
	return ct
}

// DomainContentTypes converts every configured content type
func (c *Config) DomainContentTypes() []types.ContentType {
	out := make([]types.ContentType, 0, len(c.ContentTypes))
	for _, ct := range c.ContentTypes {
		out = append(out, ct.ContentType())
	}
	return out
}
