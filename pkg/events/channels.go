package events

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
)

// LogChannel writes events to the structured log. It is always
// available and never fails, which makes it the fallback channel for
// a hub with no external destinations.
type LogChannel struct{}

// NewLogChannel creates a log-backed channel
func NewLogChannel() *LogChannel {
	return &LogChannel{}
}

// Name returns the channel name
func (c *LogChannel) Name() string { return "log" }

// Available always reports true
func (c *LogChannel) Available() bool { return true }

// Send writes the event at its mapped log level
func (c *LogChannel) Send(_ context.Context, event *Event) error {
	logger := log.WithComponent("notify")

	entry := logger.Info()
	switch event.Level {
	case LevelDebug:
		entry = logger.Debug()
	case LevelWarn:
		entry = logger.Warn()
	case LevelError, LevelCritical:
		entry = logger.Error()
	}

	entry = entry.
		Str("event_id", event.ID).
		Str("event_type", string(event.Type)).
		Str("source", event.Source)
	if event.Error != "" {
		entry = entry.Str("error", event.Error)
	}
	if len(event.Data) > 0 {
		entry = entry.Interface("data", event.Data)
	}
	entry.Msg(event.Message)
	return nil
}

// WebhookConfig configures a webhook channel
type WebhookConfig struct {
	// URL receives event payloads as JSON
	URL string

	// Method is the HTTP method to use (default: POST)
	Method string

	// Headers are custom HTTP headers to include in each request
	Headers map[string]string

	// Timeout bounds each request (default: 10s)
	Timeout time.Duration

	// MinLevel suppresses events below this severity. Empty delivers
	// everything.
	MinLevel Level
}

// WebhookChannel posts events to an HTTP endpoint as JSON
type WebhookChannel struct {
	name   string
	config WebhookConfig
	client *http.Client
	closed atomic.Bool
}

// NewWebhookChannel creates a webhook channel. The name distinguishes
// multiple webhooks on one hub.
func NewWebhookChannel(name string, config WebhookConfig) (*WebhookChannel, error) {
	if config.URL == "" {
		return nil, errdefs.New(errdefs.ClassConfiguration, "webhook: url is required")
	}
	if config.Method == "" {
		config.Method = http.MethodPost
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	if name == "" {
		name = "webhook"
	}

	return &WebhookChannel{
		name:   name,
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Name returns the channel name
func (c *WebhookChannel) Name() string { return c.name }

// Available reports whether the channel accepts events
func (c *WebhookChannel) Available() bool { return !c.closed.Load() }

// Send posts the event as JSON and treats any non-2xx response as a
// failure. 5xx responses come back transient so the hub retries them.
func (c *WebhookChannel) Send(ctx context.Context, event *Event) error {
	if c.closed.Load() {
		return fmt.Errorf("webhook %s: %w", c.name, errdefs.ErrClosed)
	}
	if c.config.MinLevel != "" && !event.Level.AtLeast(c.config.MinLevel) {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, c.config.Method, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range c.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return errdefs.Wrapf(errdefs.ClassTransient, err, "webhook %s request failed", c.name)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode >= 500 {
		return errdefs.Newf(errdefs.ClassTransient, "webhook %s returned %d", c.name, resp.StatusCode)
	}
	return errdefs.Newf(errdefs.ClassPrecondition, "webhook %s returned %d", c.name, resp.StatusCode)
}

// Close stops the channel and releases idle connections
func (c *WebhookChannel) Close() error {
	c.closed.Store(true)
	c.client.CloseIdleConnections()
	return nil
}
