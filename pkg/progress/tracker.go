package progress

import (
	"sync"
	"time"

	"github.com/VividCortex/ewma"
	"github.com/rs/zerolog"

	"github.com/vladzaharia/dangerprep-sub010/pkg/log"
)

// Config holds tracker configuration. The zero value tracks a single
// indeterminate operation with no periodic emission.
type Config struct {
	TotalItems     int64
	TotalBytes     int64
	Phases         []Phase
	UpdateInterval time.Duration // Zero disables periodic emission
	TrackRates     bool
	TrackETA       bool
}

// Tracker follows one operation from start to a terminal state and
// fans snapshots out to registered listeners. One tracker per
// operation; trackers are safe for concurrent use.
type Tracker struct {
	mu sync.Mutex

	operationID string
	status      Status
	message     string

	totalItems     int64
	completedItems int64
	totalBytes     int64
	processedBytes int64
	currentItem    string

	phases       []*Phase
	phaseByID    map[string]*Phase
	currentPhase string

	highWater float64 // Monotone floor for the reported percent

	startedAt    time.Time
	lastUpdateAt time.Time

	trackRates bool
	trackETA   bool
	itemRate   ewma.MovingAverage
	byteRate   ewma.MovingAverage
	lastSample time.Time
	lastItems  int64
	lastBytes  int64

	updateInterval time.Duration
	stopCh         chan struct{}
	stopOnce       sync.Once

	// sendMu serializes listener delivery so snapshots arrive in
	// update order without holding the state mutex across callbacks
	sendMu     sync.Mutex
	listeners  map[int]Listener
	listenerID int
	order      []int

	logger zerolog.Logger
}

// New creates a tracker for the given operation id. A nil config gets
// defaults. Phases with non-positive weights are normalized to weight 1.
func New(operationID string, cfg *Config) *Tracker {
	if cfg == nil {
		cfg = &Config{}
	}

	t := &Tracker{
		operationID:    operationID,
		status:         StatusNotStarted,
		totalItems:     cfg.TotalItems,
		totalBytes:     cfg.TotalBytes,
		phaseByID:      make(map[string]*Phase),
		updateInterval: cfg.UpdateInterval,
		trackRates:     cfg.TrackRates,
		trackETA:       cfg.TrackETA,
		stopCh:         make(chan struct{}),
		listeners:      make(map[int]Listener),
		logger:         log.WithOperationID(operationID),
	}

	for _, p := range cfg.Phases {
		phase := p
		if phase.Weight <= 0 {
			t.logger.Warn().Str("phase", phase.ID).Msg("non-positive phase weight, using 1")
			phase.Weight = 1
		}
		phase.Status = StatusNotStarted
		phase.Progress = 0
		t.phases = append(t.phases, &phase)
		t.phaseByID[phase.ID] = &phase
	}

	if cfg.TrackRates {
		t.itemRate = ewma.NewMovingAverage()
		t.byteRate = ewma.NewMovingAverage()
	}

	return t
}

// OperationID returns the tracked operation's id
func (t *Tracker) OperationID() string {
	return t.operationID
}

// AddListener registers a listener and returns its handle for removal.
// Listeners are invoked sequentially in registration order.
func (t *Tracker) AddListener(l Listener) int {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.listenerID++
	id := t.listenerID
	t.listeners[id] = l
	t.order = append(t.order, id)
	return id
}

// RemoveListener unregisters the listener with the given handle
func (t *Tracker) RemoveListener(id int) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	delete(t.listeners, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Start moves the tracker to in_progress and begins periodic emission
// when an update interval is configured
func (t *Tracker) Start() {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if t.status != StatusNotStarted {
		t.mu.Unlock()
		t.logger.Warn().Str("status", string(t.status)).Msg("start ignored, tracker already started")
		return
	}
	now := time.Now()
	t.status = StatusInProgress
	t.startedAt = now
	t.lastUpdateAt = now
	t.lastSample = now
	snap := t.snapshotLocked()
	t.mu.Unlock()

	if t.updateInterval > 0 {
		go t.tickLoop()
	}
	t.deliverLocked(snap)
}

// Pause suspends update processing. Updates received while paused are
// ignored entirely.
func (t *Tracker) Pause() {
	t.transition(StatusInProgress, StatusPaused, "")
}

// Resume returns a paused tracker to in_progress
func (t *Tracker) Resume() {
	t.transition(StatusPaused, StatusInProgress, "")
}

// Complete marks the operation successful and raises the percent to 100
func (t *Tracker) Complete() {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		t.logger.Warn().Str("status", string(t.status)).Msg("complete ignored, tracker already terminal")
		return
	}
	t.status = StatusCompleted
	t.highWater = 100
	for _, p := range t.phases {
		if p.Status == StatusInProgress {
			p.Status = StatusCompleted
			p.Progress = 100
			p.FinishedAt = time.Now()
		}
	}
	t.lastUpdateAt = time.Now()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.stopTicker()
	t.deliverLocked(snap)
}

// Fail marks the operation failed. A nil error leaves the message as is.
func (t *Tracker) Fail(err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.terminate(StatusFailed, msg)
}

// Cancel marks the operation cancelled
func (t *Tracker) Cancel() {
	t.terminate(StatusCancelled, "")
}

func (t *Tracker) terminate(status Status, msg string) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if t.status.Terminal() {
		t.mu.Unlock()
		t.logger.Warn().
			Str("status", string(t.status)).
			Str("requested", string(status)).
			Msg("transition ignored, tracker already terminal")
		return
	}
	t.status = status
	if msg != "" {
		t.message = msg
	}
	t.lastUpdateAt = time.Now()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.stopTicker()
	t.deliverLocked(snap)
}

func (t *Tracker) transition(from, to Status, msg string) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if t.status != from {
		t.mu.Unlock()
		t.logger.Warn().
			Str("status", string(t.status)).
			Str("requested", string(to)).
			Msg("transition ignored")
		return
	}
	t.status = to
	if msg != "" {
		t.message = msg
	}
	t.lastUpdateAt = time.Now()
	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.deliverLocked(snap)
}

// Update records item and byte progress. Inputs are clamped to the
// configured totals. Updates on a paused tracker are ignored without
// emission; updates on a terminal tracker are logged and dropped.
func (t *Tracker) Update(completedItems, processedBytes int64, currentItem string) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	switch {
	case t.status == StatusPaused:
		t.mu.Unlock()
		return
	case t.status.Terminal():
		t.mu.Unlock()
		t.logger.Warn().Str("status", string(t.status)).Msg("update ignored, tracker terminal")
		return
	case t.status == StatusNotStarted:
		t.mu.Unlock()
		t.logger.Warn().Msg("update ignored, tracker not started")
		return
	}

	if completedItems < 0 {
		completedItems = 0
	}
	if t.totalItems > 0 && completedItems > t.totalItems {
		completedItems = t.totalItems
	}
	if processedBytes < 0 {
		processedBytes = 0
	}
	if t.totalBytes > 0 && processedBytes > t.totalBytes {
		processedBytes = t.totalBytes
	}

	t.completedItems = completedItems
	t.processedBytes = processedBytes
	if currentItem != "" {
		t.currentItem = currentItem
	}
	now := time.Now()
	t.lastUpdateAt = now
	t.sampleRatesLocked(now)

	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.deliverLocked(snap)
}

// SetPhase activates the phase with the given id, completing the
// previously active phase
func (t *Tracker) SetPhase(id string) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if t.status.Terminal() || t.status == StatusPaused {
		t.mu.Unlock()
		return
	}
	phase, ok := t.phaseByID[id]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn().Str("phase", id).Msg("unknown phase")
		return
	}

	now := time.Now()
	if t.currentPhase != "" && t.currentPhase != id {
		if prev, ok := t.phaseByID[t.currentPhase]; ok && prev.Status == StatusInProgress {
			prev.Status = StatusCompleted
			prev.Progress = 100
			prev.FinishedAt = now
		}
	}
	t.currentPhase = id
	if phase.Status == StatusNotStarted {
		phase.Status = StatusInProgress
		phase.StartedAt = now
	}
	t.lastUpdateAt = now

	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.deliverLocked(snap)
}

// UpdatePhaseProgress sets the percent of one phase, clamped to [0,100]
func (t *Tracker) UpdatePhaseProgress(id string, percent float64) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if t.status.Terminal() || t.status == StatusPaused {
		t.mu.Unlock()
		return
	}
	phase, ok := t.phaseByID[id]
	if !ok {
		t.mu.Unlock()
		t.logger.Warn().Str("phase", id).Msg("unknown phase")
		return
	}

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	phase.Progress = percent
	if phase.Status == StatusNotStarted {
		phase.Status = StatusInProgress
		phase.StartedAt = time.Now()
	}
	if percent >= 100 && phase.Status == StatusInProgress {
		phase.Status = StatusCompleted
		phase.FinishedAt = time.Now()
	}
	t.lastUpdateAt = time.Now()

	snap := t.snapshotLocked()
	t.mu.Unlock()

	t.deliverLocked(snap)
}

// Snapshot returns a value copy of the current state
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Status returns the current lifecycle status
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// sampleRatesLocked feeds the moving averages with the rate observed
// since the previous sample. Caller holds t.mu.
func (t *Tracker) sampleRatesLocked(now time.Time) {
	if !t.trackRates {
		return
	}
	dt := now.Sub(t.lastSample).Seconds()
	if dt < 0.001 {
		return
	}
	t.itemRate.Add(float64(t.completedItems-t.lastItems) / dt)
	t.byteRate.Add(float64(t.processedBytes-t.lastBytes) / dt)
	t.lastSample = now
	t.lastItems = t.completedItems
	t.lastBytes = t.processedBytes
}

// percentLocked derives the overall percent. Item totals win over
// phase weights; with neither, percent stays at the high-water mark.
func (t *Tracker) percentLocked() float64 {
	pct := t.highWater

	switch {
	case t.totalItems > 0:
		p := float64(t.completedItems) / float64(t.totalItems) * 100
		if p > pct {
			pct = p
		}
	case len(t.phases) > 0:
		var weighted, total float64
		for _, p := range t.phases {
			weighted += p.Progress * p.Weight
			total += p.Weight
		}
		if total > 0 {
			p := weighted / total
			if p > pct {
				pct = p
			}
		}
	case t.totalBytes > 0:
		p := float64(t.processedBytes) / float64(t.totalBytes) * 100
		if p > pct {
			pct = p
		}
	}

	if pct > 100 {
		pct = 100
	}
	return pct
}

func (t *Tracker) snapshotLocked() Snapshot {
	pct := t.percentLocked()
	t.highWater = pct

	m := Metrics{
		TotalItems:     t.totalItems,
		CompletedItems: t.completedItems,
		TotalBytes:     t.totalBytes,
		ProcessedBytes: t.processedBytes,
		StartedAt:      t.startedAt,
		LastUpdateAt:   t.lastUpdateAt,
	}

	if !t.startedAt.IsZero() {
		m.ElapsedSeconds = time.Since(t.startedAt).Seconds()
	}
	if t.trackRates && m.ElapsedSeconds > 0 {
		if t.totalItems > 0 || t.completedItems > 0 {
			m.AverageRate = float64(t.completedItems) / m.ElapsedSeconds
			m.InstantaneousRate = t.itemRate.Value()
		} else {
			m.AverageRate = float64(t.processedBytes) / m.ElapsedSeconds
			m.InstantaneousRate = t.byteRate.Value()
		}
	}
	if t.trackETA && m.AverageRate > 0 {
		if t.totalItems > 0 {
			m.ETASeconds = float64(t.totalItems-t.completedItems) / m.AverageRate
		} else if t.totalBytes > 0 {
			m.ETASeconds = float64(t.totalBytes-t.processedBytes) / m.AverageRate
		}
	}

	snap := Snapshot{
		OperationID:     t.operationID,
		Status:          t.status,
		ProgressPercent: pct,
		CurrentPhase:    t.currentPhase,
		CurrentItem:     t.currentItem,
		Metrics:         m,
		Timestamp:       time.Now(),
		Message:         t.message,
	}
	for _, p := range t.phases {
		snap.Phases = append(snap.Phases, *p)
	}
	return snap
}

// deliverLocked invokes listeners in registration order. Caller holds
// t.sendMu, which is what keeps delivery ordered.
func (t *Tracker) deliverLocked(snap Snapshot) {
	for _, id := range t.order {
		l, ok := t.listeners[id]
		if !ok {
			continue
		}
		t.invoke(l, snap)
	}
}

func (t *Tracker) invoke(l Listener, snap Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Msg("progress listener panicked")
		}
	}()
	l.OnProgress(snap)
}

func (t *Tracker) tickLoop() {
	ticker := time.NewTicker(t.updateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.sendMu.Lock()
			t.mu.Lock()
			if t.status != StatusInProgress {
				t.mu.Unlock()
				t.sendMu.Unlock()
				continue
			}
			t.sampleRatesLocked(time.Now())
			snap := t.snapshotLocked()
			t.mu.Unlock()
			t.deliverLocked(snap)
			t.sendMu.Unlock()
		}
	}
}

func (t *Tracker) stopTicker() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
	})
}
