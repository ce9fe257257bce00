package metrics

import (
	"time"
)

// Source exposes the runtime state the collector samples. The service
// host implements it; tests can supply a stub.
type Source interface {
	// OperationCounts returns the current number of operations keyed by state.
	OperationCounts() map[string]int

	// QueueDepth returns the number of operations waiting for a worker.
	QueueDepth() int

	// BusyWorkers returns the number of workers currently executing.
	BusyWorkers() int

	// AvailableChannels returns the number of notification channels
	// that report themselves available.
	AvailableChannels() int
}

// Collector periodically samples gauge-type metrics from a Source
type Collector struct {
	source   Source
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector creates a new metrics collector. A non-positive interval
// falls back to 15 seconds.
func NewCollector(source Source, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		source:   source,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	for state, count := range c.source.OperationCounts() {
		OperationsByState.WithLabelValues(state).Set(float64(count))
	}

	OperationQueueDepth.Set(float64(c.source.QueueDepth()))
	WorkersBusy.Set(float64(c.source.BusyWorkers()))
	ChannelsAvailable.Set(float64(c.source.AvailableChannels()))
}
