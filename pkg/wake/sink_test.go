package wake

import (
	"context"
	"testing"
	"time"

	"github.com/naptick/voicecore/pkg/pcm"
)

func TestSinkDebouncesPerIndex(t *testing.T) {
	var fires []int
	hook := func(_ context.Context, idx int) error {
		fires = append(fires, idx)
		return nil
	}
	s := New(time.Hour, hook, nil, nil)

	s.Dispatch(context.Background(), pcm.EnhancedFrame{WakewordIndex: 0})
	s.Dispatch(context.Background(), pcm.EnhancedFrame{WakewordIndex: 0}) // within cooldown
	s.Dispatch(context.Background(), pcm.EnhancedFrame{WakewordIndex: 1}) // distinct index, not gated

	if len(fires) != 2 {
		t.Fatalf("expected 2 fires (idx 0 once, idx 1 once), got %v", fires)
	}
}

func TestSinkIgnoresNoWakeword(t *testing.T) {
	called := false
	hook := func(_ context.Context, _ int) error { called = true; return nil }
	s := New(time.Second, hook, nil, nil)

	s.Dispatch(context.Background(), pcm.EnhancedFrame{WakewordIndex: pcm.NoWakeword})
	if called {
		t.Fatal("hook must not fire for NoWakeword frames")
	}
}

type countingMetrics struct {
	timedOut int
}

func (c *countingMetrics) IncWakeHookTimeout() { c.timedOut++ }

func TestSinkEnforcesHookBudget(t *testing.T) {
	hook := func(ctx context.Context, _ int) error {
		<-ctx.Done()
		return ctx.Err()
	}
	metrics := &countingMetrics{}
	s := New(time.Second, hook, metrics, nil)

	start := time.Now()
	s.Dispatch(context.Background(), pcm.EnhancedFrame{WakewordIndex: 0})
	elapsed := time.Since(start)

	if elapsed > 200*time.Millisecond {
		t.Fatalf("dispatch took %v, expected to return promptly after HookBudget", elapsed)
	}
	if metrics.timedOut != 1 {
		t.Fatalf("expected 1 timeout metric, got %d", metrics.timedOut)
	}
}

func TestSinkResetClearsDebounce(t *testing.T) {
	calls := 0
	hook := func(_ context.Context, _ int) error { calls++; return nil }
	s := New(time.Hour, hook, nil, nil)

	s.Dispatch(context.Background(), pcm.EnhancedFrame{WakewordIndex: 0})
	s.Reset()
	s.Dispatch(context.Background(), pcm.EnhancedFrame{WakewordIndex: 0})

	if calls != 2 {
		t.Fatalf("expected 2 calls after reset, got %d", calls)
	}
}
