package capture

import (
	"context"
	"testing"
	"time"
)

func TestPullFrameUnderflowWhenQueueEmpty(t *testing.T) {
	s := New(Config{SampleRateHz: 16000, Channels: 1, FrameSizeMs: 20})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, _, err := s.PullFrame(ctx)
	if err != ErrUnderflow {
		t.Fatalf("expected ErrUnderflow on an empty queue, got %v", err)
	}
}

func TestPullFrameReturnsQueuedChunksInOrder(t *testing.T) {
	s := New(Config{SampleRateHz: 16000, Channels: 1, FrameSizeMs: 20})
	s.enqueue([]int16{1, 2, 3})
	s.enqueue([]int16{4, 5, 6})

	ctx := context.Background()
	f1, gap1, err := s.PullFrame(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gap1 {
		t.Fatal("expected no gap on first pull")
	}
	if f1.Samples[0] != 1 {
		t.Fatalf("expected first chunk first, got %v", f1.Samples)
	}

	f2, _, err := s.PullFrame(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f2.Samples[0] != 4 {
		t.Fatalf("expected second chunk second, got %v", f2.Samples)
	}
}

func TestPullFrameConcurrentCallersGetBusy(t *testing.T) {
	s := New(Config{SampleRateHz: 16000, Channels: 1, FrameSizeMs: 20})
	s.mu.Lock() // simulate an in-flight PullFrame holding the codec lock
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, _, err := s.PullFrame(ctx)
	if err != ErrBusy {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
}

func TestPullFrameSurfacesGapOnOverflow(t *testing.T) {
	s := New(Config{SampleRateHz: 16000, Channels: 1, FrameSizeMs: 20})
	for i := 0; i < queueDepth+2; i++ {
		s.enqueue([]int16{int16(i)})
	}

	ctx := context.Background()
	_, gap, err := s.PullFrame(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !gap {
		t.Fatal("expected gap=true after queue overflow dropped frames")
	}
}
