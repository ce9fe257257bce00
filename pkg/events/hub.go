package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vladzaharia/dangerprep-sub010/pkg/errdefs"
	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
	"github.com/vladzaharia/dangerprep-sub010/pkg/metrics"
	"github.com/vladzaharia/dangerprep-sub010/pkg/retry"
)

// Config holds notification hub settings
type Config struct {
	// HistorySize bounds the in-memory event buffer. Oldest events are
	// evicted when full. Default 1000.
	HistorySize int

	// SendTimeout bounds each delivery attempt on a channel. Default 10s.
	SendTimeout time.Duration

	// RetryAttempts is the number of re-sends after a failed first
	// attempt. Default 3.
	RetryAttempts int

	// RetryBase and RetryMax shape the exponential backoff between
	// delivery attempts. Defaults 1s and 32s.
	RetryBase time.Duration
	RetryMax  time.Duration

	// Source is stamped on events that carry no explicit source.
	// Default "syncd".
	Source string
}

// Hub fans events out to registered channels and keeps a bounded
// history for inspection
type Hub struct {
	config *Config

	mu       sync.RWMutex
	channels map[string]Channel
	order    []string
	ring     []*Event
	head     int
	count    int
	dropped  uint64
	closed   bool
}

// NewHub creates a notification hub. A nil config uses defaults.
func NewHub(config *Config) *Hub {
	if config == nil {
		config = &Config{}
	}
	if config.HistorySize <= 0 {
		config.HistorySize = 1000
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}
	if config.RetryAttempts < 0 {
		config.RetryAttempts = 0
	} else if config.RetryAttempts == 0 {
		config.RetryAttempts = 3
	}
	if config.RetryBase <= 0 {
		config.RetryBase = 1 * time.Second
	}
	if config.RetryMax <= 0 {
		config.RetryMax = 32 * time.Second
	}
	if config.Source == "" {
		config.Source = "syncd"
	}

	return &Hub{
		config:   config,
		channels: make(map[string]Channel),
		ring:     make([]*Event, config.HistorySize),
	}
}

// AddChannel registers a delivery channel. Channel names must be
// unique within the hub.
func (h *Hub) AddChannel(ch Channel) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return fmt.Errorf("failed to add channel %s: %w", ch.Name(), errdefs.ErrClosed)
	}
	if _, exists := h.channels[ch.Name()]; exists {
		return errdefs.Newf(errdefs.ClassConfiguration, "channel %q already registered", ch.Name())
	}

	h.channels[ch.Name()] = ch
	h.order = append(h.order, ch.Name())

	lg := log.WithComponent("events")
	lg.Debug().Str("channel", ch.Name()).Msg("Channel registered")
	return nil
}

// RemoveChannel unregisters a channel by name. The channel is not
// closed; the caller owns its lifecycle.
func (h *Hub) RemoveChannel(name string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.channels[name]; !exists {
		return false
	}

	delete(h.channels, name)
	for i, n := range h.order {
		if n == name {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return true
}

// ChannelNames returns registered channel names in registration order
func (h *Hub) ChannelNames() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// HasAvailableChannel reports whether at least one registered channel
// is currently willing to accept events
func (h *Hub) HasAvailableChannel() bool {
	return h.AvailableChannels() > 0
}

// AvailableChannels returns the number of channels reporting available
func (h *Hub) AvailableChannels() int {
	h.mu.RLock()
	channels := make([]Channel, 0, len(h.channels))
	for _, ch := range h.channels {
		channels = append(channels, ch)
	}
	h.mu.RUnlock()

	n := 0
	for _, ch := range channels {
		if ch.Available() {
			n++
		}
	}
	return n
}

// Emit builds an event, appends it to the history, and fans it out to
// every target channel concurrently. It returns once all deliveries
// settle; each attempt is bounded by the configured send timeout and
// failed attempts are retried with exponential backoff. Emitting with
// no channels registered succeeds and only records the event.
func (h *Hub) Emit(ctx context.Context, eventType EventType, message string, opts *EmitOptions) (*Event, error) {
	if opts == nil {
		opts = &EmitOptions{}
	}

	level := opts.Level
	if level == "" {
		level = LevelInfo
	}
	source := opts.Source
	if source == "" {
		source = h.config.Source
	}

	event := &Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Level:     level,
		Source:    source,
		Message:   message,
		Timestamp: time.Now(),
		Tags:      opts.Tags,
		Data:      opts.Data,
	}
	if opts.Error != nil {
		event.Error = opts.Error.Error()
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, fmt.Errorf("failed to emit %s: %w", eventType, errdefs.ErrClosed)
	}

	h.append(event)
	targets := h.targetsLocked(opts.Channels)

	// Seed pending delivery records so history readers see in-flight
	// state
	if len(targets) > 0 {
		event.Deliveries = make([]Delivery, len(targets))
		for i, ch := range targets {
			event.Deliveries[i] = Delivery{Channel: ch.Name(), State: DeliveryPending}
		}
	}
	h.mu.Unlock()

	metrics.EventsEmittedTotal.WithLabelValues(string(eventType), string(level)).Inc()

	if len(targets) == 0 {
		return h.snapshot(event), nil
	}

	var g errgroup.Group
	for i, ch := range targets {
		i, ch := i, ch
		g.Go(func() error {
			d := h.deliver(ctx, ch, i, event)

			h.mu.Lock()
			event.Deliveries[i] = d
			h.mu.Unlock()

			metrics.DeliveriesTotal.WithLabelValues(d.Channel, string(d.State)).Inc()
			if d.State == DeliveryFailed {
				lg := log.WithComponent("events")
				lg.Warn().
					Str("channel", d.Channel).
					Str("event_id", event.ID).
					Int("attempts", d.Attempts).
					Str("error", d.Error).
					Msg("Event delivery failed")
			}
			return nil
		})
	}
	_ = g.Wait()

	return h.snapshot(event), nil
}

// deliver sends one event to one channel with per-attempt timeout and
// backoff between attempts
func (h *Hub) deliver(ctx context.Context, ch Channel, slot int, event *Event) Delivery {
	name := ch.Name()
	if !ch.Available() {
		return Delivery{
			Channel: name,
			State:   DeliveryFailed,
			Error:   "channel unavailable",
		}
	}

	start := time.Now()
	policy := retry.Policy{
		MaxAttempts: h.config.RetryAttempts + 1,
		BaseDelay:   h.config.RetryBase,
		MaxDelay:    h.config.RetryMax,
		Strategy:    retry.StrategyExponential,
		Multiplier:  2,
		Jitter:      retry.JitterNone,
		// Channel errors are opaque; retry everything except
		// cancellation, which ShouldRetry already rules out.
		RetryIf: func(error) bool { return true },
	}

	res, err := retry.Do(ctx, policy, func(ctx context.Context) (interface{}, error) {
		sendCtx, cancel := context.WithTimeout(ctx, h.config.SendTimeout)
		defer cancel()

		if sendErr := ch.Send(sendCtx, event); sendErr != nil {
			h.markRetrying(event, slot)
			return nil, sendErr
		}
		return nil, nil
	})

	d := Delivery{
		Channel:  name,
		Duration: time.Since(start),
	}
	if res != nil {
		d.Attempts = res.Attempts
	}
	if err != nil {
		d.State = DeliveryFailed
		d.Error = err.Error()
	} else {
		d.State = DeliveryDelivered
	}
	return d
}

// markRetrying flips a pending delivery slot to retrying after a
// failed attempt. The final state overwrites it once settled.
func (h *Hub) markRetrying(event *Event, slot int) {
	h.mu.Lock()
	if slot < len(event.Deliveries) {
		event.Deliveries[slot].State = DeliveryRetrying
	}
	h.mu.Unlock()
}

// append adds an event to the ring, evicting the oldest when full.
// Caller holds h.mu.
func (h *Hub) append(event *Event) {
	if h.count == len(h.ring) {
		h.dropped++
		metrics.EventsDroppedTotal.Inc()
	} else {
		h.count++
	}
	h.ring[h.head] = event
	h.head = (h.head + 1) % len(h.ring)
}

// targetsLocked resolves the fan-out set in registration order.
// Caller holds h.mu.
func (h *Hub) targetsLocked(subset []string) []Channel {
	var targets []Channel
	for _, name := range h.order {
		if len(subset) > 0 && !containsString(subset, name) {
			continue
		}
		targets = append(targets, h.channels[name])
	}
	return targets
}

// snapshot returns a deep-enough copy of an event for callers to keep
func (h *Hub) snapshot(event *Event) *Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return copyEventLocked(event)
}

func copyEventLocked(event *Event) *Event {
	out := *event
	if len(event.Deliveries) > 0 {
		out.Deliveries = append([]Delivery(nil), event.Deliveries...)
	}
	return &out
}

// Recent returns up to limit events, newest first. A non-positive
// limit returns the full history.
func (h *Hub) Recent(limit int) []*Event {
	return h.RecentFiltered(Filter{Limit: limit})
}

// RecentFiltered returns events matching the filter, newest first
func (h *Hub) RecentFiltered(filter Filter) []*Event {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Event
	for k := 0; k < h.count; k++ {
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
		idx := (h.head - 1 - k + len(h.ring)) % len(h.ring)
		event := h.ring[idx]
		if filter.matches(event) {
			out = append(out, copyEventLocked(event))
		}
	}
	return out
}

// Dropped returns the number of events evicted from the history
func (h *Hub) Dropped() uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dropped
}

// Close marks the hub closed and closes any channel that implements
// Close. Emission after Close fails; history remains readable.
// Close is idempotent.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	channels := make([]Channel, 0, len(h.channels))
	for _, name := range h.order {
		channels = append(channels, h.channels[name])
	}
	h.mu.Unlock()

	var firstErr error
	for _, ch := range channels {
		closer, ok := ch.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			lg := log.WithComponent("events")
			lg.Warn().Err(err).Str("channel", ch.Name()).Msg("Channel close failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to close channel %s: %w", ch.Name(), err)
			}
		}
	}
	return firstErr
}
