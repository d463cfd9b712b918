// Package wake implements the wake sink: it watches the stream of
// enhanced frames for a wakeword hit and dispatches to a hook under a
// bounded time budget, debounced per wakeword index. The hook call
// itself is wrapped in a context.WithTimeout so a slow hook is logged,
// never awaited past its budget.
package wake

import (
	"context"
	"sync"
	"time"

	"github.com/naptick/voicecore/internal/logging"
	"github.com/naptick/voicecore/pkg/pcm"
)

// HookBudget bounds how long a wake hook may run before the sink gives
// up waiting on it and logs a timeout.
const HookBudget = 10 * time.Millisecond

// Hook is invoked when a debounced wakeword fires. Implementations
// should return promptly; the sink enforces HookBudget regardless.
type Hook func(ctx context.Context, wakewordIndex int) error

// Metrics is the minimal counter surface the sink needs; satisfied by
// pkg/metrics.Sink.
type Metrics interface {
	IncWakeHookTimeout()
}

type noopMetrics struct{}

func (noopMetrics) IncWakeHookTimeout() {}

// Sink dispatches wakeword hits seen in a stream of enhanced frames.
type Sink struct {
	mu       sync.Mutex
	cooldown time.Duration
	lastFire map[int]time.Time

	hook    Hook
	metrics Metrics
	logger  logging.Logger
}

// New builds a Sink. hook may be nil, in which case Dispatch is a no-op
// that still honors debounce bookkeeping (useful before the scheduler
// has wired a real handler).
func New(cooldown time.Duration, hook Hook, metrics Metrics, logger logging.Logger) *Sink {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Sink{
		cooldown: cooldown,
		lastFire: make(map[int]time.Time),
		hook:     hook,
		metrics:  metrics,
		logger:   logger,
	}
}

// Dispatch inspects an enhanced frame and, if it carries a wakeword hit
// that is not within cooldown of its last firing, invokes the hook
// under HookBudget. It returns true when the hit passed the debounce
// (the hook, if set, was invoked, regardless of whether it succeeded or
// timed out).
func (s *Sink) Dispatch(parent context.Context, ef pcm.EnhancedFrame) bool {
	if ef.WakewordIndex == pcm.NoWakeword {
		return false
	}

	s.mu.Lock()
	last, seen := s.lastFire[ef.WakewordIndex]
	if seen && time.Since(last) < s.cooldown {
		s.mu.Unlock()
		return false
	}
	s.lastFire[ef.WakewordIndex] = time.Now()
	s.mu.Unlock()

	if s.hook == nil {
		return true
	}

	ctx, cancel := context.WithTimeout(parent, HookBudget)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.hook(ctx, ef.WakewordIndex)
	}()

	select {
	case err := <-done:
		if err != nil {
			s.logger.Warn("wake hook returned error", "wakeword_index", ef.WakewordIndex, "error", err)
		}
	case <-ctx.Done():
		s.metrics.IncWakeHookTimeout()
		s.logger.Warn("wake hook exceeded budget", "wakeword_index", ef.WakewordIndex, "budget", HookBudget)
	}

	return true
}

// Reset clears debounce state for all wakeword indices.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFire = make(map[int]time.Time)
}
