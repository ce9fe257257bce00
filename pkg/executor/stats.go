package executor

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/vladzaharia/dangerprep-sub010/pkg/types"
)

// statsWindow is how many recent durations feed the percentile and
// min/avg/max figures
const statsWindow = 1000

// Stats is an immutable snapshot of executor activity. Counters are
// lifetime totals. Duration figures cover a rolling window of the
// most recent completed and failed operations; cancelled operations
// are not sampled since their durations reflect cancel timing rather
// than work size.
type Stats struct {
	Submitted int64 `json:"submitted"`
	Queued    int   `json:"queued"`
	Running   int   `json:"running"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`

	// ErrorRate is Failed over Completed+Failed. Cancelled operations
	// do not count against it.
	ErrorRate float64 `json:"error_rate"`

	// WindowSize is how many samples currently back the duration
	// figures, at most statsWindow
	WindowSize  int           `json:"window_size"`
	AvgDuration time.Duration `json:"avg_duration"`
	MinDuration time.Duration `json:"min_duration"`
	MaxDuration time.Duration `json:"max_duration"`
	P95         time.Duration `json:"p95"`
	P99         time.Duration `json:"p99"`
}

// statsState accumulates executor statistics behind its own mutex so
// recording never contends with queue operations
type statsState struct {
	mu        sync.Mutex
	submitted int64
	completed int64
	failed    int64
	cancelled int64

	window [statsWindow]time.Duration
	next   int
	filled int
}

func (s *statsState) recordSubmit() {
	s.mu.Lock()
	s.submitted++
	s.mu.Unlock()
}

func (s *statsState) recordTerminal(state types.OperationState, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch state {
	case types.OperationStateCompleted:
		s.completed++
	case types.OperationStateFailed:
		s.failed++
	case types.OperationStateCancelled:
		s.cancelled++
		return
	default:
		return
	}

	s.window[s.next] = d
	s.next = (s.next + 1) % statsWindow
	if s.filled < statsWindow {
		s.filled++
	}
}

func (s *statsState) terminalCounts() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int{
		string(types.OperationStateCompleted): int(s.completed),
		string(types.OperationStateFailed):    int(s.failed),
		string(types.OperationStateCancelled): int(s.cancelled),
	}
}

func (s *statsState) snapshot(queued, running int) Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{
		Submitted:  s.submitted,
		Queued:     queued,
		Running:    running,
		Completed:  s.completed,
		Failed:     s.failed,
		Cancelled:  s.cancelled,
		WindowSize: s.filled,
	}

	if terminal := s.completed + s.failed; terminal > 0 {
		st.ErrorRate = float64(s.failed) / float64(terminal)
	}

	if s.filled == 0 {
		return st
	}

	samples := make([]time.Duration, s.filled)
	copy(samples, s.window[:s.filled])
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })

	var total time.Duration
	for _, d := range samples {
		total += d
	}
	st.AvgDuration = total / time.Duration(s.filled)
	st.MinDuration = samples[0]
	st.MaxDuration = samples[len(samples)-1]
	st.P95 = percentile(samples, 0.95)
	st.P99 = percentile(samples, 0.99)
	return st
}

// percentile picks the nearest-rank entry from an ascending-sorted
// sample slice
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(q*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
