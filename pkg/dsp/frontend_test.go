package dsp

import (
	"testing"

	"github.com/naptick/voicecore/pkg/pcm"
)

func tone(n int, amplitude int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = amplitude
	}
	return out
}

func TestFrontendFeedFetchOrderAndCount(t *testing.T) {
	const chunksize = 160
	f := NewFrontend(Config{
		Channels:      1,
		FeedChunksize: chunksize,
		VADThreshold:  0.02,
		HangoverRise:  2,
		HangoverFall:  8,
	})

	// Feed exactly 5 chunks worth of samples in one call, plus a partial
	// chunk, then verify fetch returns exactly 5 enhanced frames in order.
	total := chunksize*5 + 37
	samples := make([]int16, total)
	for i := range samples {
		samples[i] = int16(i % 7) // deterministic, order-sensitive content
	}

	status, err := f.Feed(pcm.Frame{Samples: samples, Channels: 1, SampleRate: 16000})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if status.ChunksProduced != 5 {
		t.Fatalf("expected 5 chunks produced, got %d", status.ChunksProduced)
	}

	var fetched [][]int16
	for {
		ef, ok := f.Fetch()
		if !ok {
			break
		}
		fetched = append(fetched, ef.Samples)
	}
	if len(fetched) != 5 {
		t.Fatalf("expected 5 fetched frames, got %d", len(fetched))
	}

	for i, frame := range fetched {
		want := samples[i*chunksize : (i+1)*chunksize]
		for j := range want {
			if frame[j] != want[j] {
				t.Fatalf("frame %d sample %d: got %d want %d (ordering violated)", i, j, frame[j], want[j])
			}
		}
	}

	// The partial remainder must not have produced a 6th frame yet.
	if _, ok := f.Fetch(); ok {
		t.Fatal("unexpected extra frame from partial chunk")
	}
}

func TestFrontendFeedEmptyIsIdempotent(t *testing.T) {
	f := NewFrontend(Config{Channels: 1, FeedChunksize: 160, VADThreshold: 0.02, HangoverRise: 2, HangoverFall: 8})
	status, err := f.Feed(pcm.Frame{})
	if err != nil {
		t.Fatalf("feed empty: %v", err)
	}
	if status.ChunksProduced != 0 {
		t.Fatalf("expected 0 chunks from empty feed, got %d", status.ChunksProduced)
	}
}

func TestFrontendDowmixesMultichannel(t *testing.T) {
	f := NewFrontend(Config{Channels: 2, FeedChunksize: 4, VADThreshold: 0.02, HangoverRise: 1, HangoverFall: 1})
	// 2 channels, 4 frames: channel values alternate so the average is
	// deterministic and checkable.
	samples := []int16{10, 20, 10, 20, 10, 20, 10, 20}
	if _, err := f.Feed(pcm.Frame{Samples: samples, Channels: 2}); err != nil {
		t.Fatalf("feed: %v", err)
	}
	ef, ok := f.Fetch()
	if !ok {
		t.Fatal("expected one fetched frame")
	}
	if len(ef.Samples) != 4 {
		t.Fatalf("expected 4 downmixed samples, got %d", len(ef.Samples))
	}
	for _, s := range ef.Samples {
		if s != 15 {
			t.Errorf("expected downmixed value 15, got %d", s)
		}
	}
}

func TestVADHysteresis(t *testing.T) {
	v := newEnergyVAD(0.1, 2, 8)

	loud := tone(160, 20000)
	quiet := tone(160, 0)

	// Single loud frame must not assert speech yet (needs 2 consecutive).
	if v.process(loud) {
		t.Fatal("speech asserted after a single frame, expected hangoverRise=2")
	}
	if !v.process(loud) {
		t.Fatal("speech not asserted after 2 consecutive loud frames")
	}

	// A single quiet frame must not deassert (needs 8 consecutive).
	for i := 0; i < 7; i++ {
		if !v.process(quiet) {
			t.Fatalf("speech deasserted too early at quiet frame %d", i+1)
		}
	}
	if v.process(quiet) {
		t.Fatal("speech still asserted after 8 consecutive quiet frames")
	}
}

func TestFrontendDegradedModeReportedOnce(t *testing.T) {
	calls := 0
	logger := &countingLogger{warn: &calls}
	NewFrontend(Config{Channels: 0, FeedChunksize: 160, VADThreshold: 0.02, Logger: logger})
	if calls != 1 {
		t.Fatalf("expected exactly 1 degraded-mode warning, got %d", calls)
	}
}

type countingLogger struct {
	warn *int
}

func (countingLogger) Debug(string, ...interface{}) {}
func (countingLogger) Info(string, ...interface{})  {}
func (c *countingLogger) Warn(string, ...interface{}) {
	*c.warn++
}
func (countingLogger) Error(string, ...interface{}) {}
