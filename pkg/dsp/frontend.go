// Package dsp implements the audio front end: a stateful pipeline that
// collapses N-channel capture frames into a single enhanced channel,
// applying AEC, blind-source-separation/noise-suppression (here: a
// channel-averaging downmix, since adaptive BSS/NS coefficients are
// out of scope), VAD, and an optional wake-word detector.
package dsp

import (
	"time"

	"github.com/naptick/voicecore/internal/logging"
	"github.com/naptick/voicecore/pkg/pcm"
)

// WakewordDetector reports a detection index for a chunk of enhanced
// mono audio, or ok=false if nothing fired. Implementations are
// expected to be cheap per-chunk calls; the on-device model itself is
// out of scope here.
type WakewordDetector interface {
	Detect(samples []int16) (index int, ok bool)
}

// NullWakewordDetector never fires. NewFrontend substitutes it when no
// detector is configured; in degraded mode detection is skipped
// altogether.
type NullWakewordDetector struct{}

func (NullWakewordDetector) Detect([]int16) (int, bool) { return pcm.NoWakeword, false }

// Config configures one Frontend instance.
type Config struct {
	Channels      int
	FeedChunksize int // samples per channel per chunk
	VADThreshold  float64
	HangoverRise  int
	HangoverFall  int
	Wakeword      WakewordDetector
	WakeCooldown  time.Duration
	Logger        logging.Logger
}

// FeedStatus reports what feed() did with the samples it was given.
type FeedStatus struct {
	ChunksProduced int
}

// Frontend is the stateful DSP pipeline. It is not safe for concurrent
// use by multiple goroutines; the capture/DSP task is its sole owner.
type Frontend struct {
	channels      int
	feedChunksize int
	accumulator   []int16

	echo     *echoCanceller
	vad      *energyVAD
	wakeword WakewordDetector

	wakeCooldown    time.Duration
	lastWakeFiredAt map[int]time.Time

	queue []pcm.EnhancedFrame

	degraded bool
	reported bool
	logger   logging.Logger
}

// NewFrontend builds a Frontend. If Wakeword is nil the detector is
// treated as absent (wakeword disabled), not a configuration error.
func NewFrontend(cfg Config) *Frontend {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	channels := cfg.Channels
	degraded := false
	if channels < 1 {
		channels = 1
		degraded = true
	}

	chunksize := cfg.FeedChunksize
	if chunksize < 1 {
		chunksize = 1
		degraded = true
	}

	wakeword := cfg.Wakeword
	if wakeword == nil {
		wakeword = NullWakewordDetector{}
	}

	threshold := cfg.VADThreshold
	if threshold <= 0 {
		threshold = 0.02
		degraded = true
	}

	f := &Frontend{
		channels:        channels,
		feedChunksize:   chunksize,
		echo:            newEchoCanceller(0),
		vad:             newEnergyVAD(threshold, cfg.HangoverRise, cfg.HangoverFall),
		wakeword:        wakeword,
		wakeCooldown:    cfg.WakeCooldown,
		lastWakeFiredAt: make(map[int]time.Time),
		degraded:        degraded,
		logger:          logger,
	}

	if degraded {
		f.reportDegradedOnce()
	}

	return f
}

func (f *Frontend) reportDegradedOnce() {
	if f.reported {
		return
	}
	f.reported = true
	f.logger.Warn("dsp frontend constructed in degraded pass-through mode",
		"channels", f.channels, "feed_chunksize", f.feedChunksize)
}

// Feed appends a capture frame's samples to the internal accumulator.
// It is idempotent on empty frames and advances processing by exactly
// one chunk each time the accumulator reaches feedChunksize*channels
// samples, possibly producing more than one chunk from a single large
// frame.
func (f *Frontend) Feed(frame pcm.Frame) (FeedStatus, error) {
	if len(frame.Samples) == 0 {
		return FeedStatus{}, nil
	}

	f.accumulator = append(f.accumulator, frame.Samples...)

	chunkSamples := f.feedChunksize * f.channels
	var status FeedStatus
	for len(f.accumulator) >= chunkSamples {
		chunk := f.accumulator[:chunkSamples]
		f.accumulator = f.accumulator[chunkSamples:]
		f.processChunk(chunk)
		status.ChunksProduced++
	}
	return status, nil
}

// RecordPlayedAudio feeds the AEC stage a reference of audio that was
// just sent to the speaker, so it can be subtracted out of the next
// captured frames.
func (f *Frontend) RecordPlayedAudio(samples []int16) {
	f.echo.recordPlayed(samples)
}

func (f *Frontend) processChunk(chunk []int16) {
	mono := downmix(chunk, f.channels)
	cleaned := f.echo.cancel(mono)

	vadActive := f.vad.process(cleaned)

	wakeIndex := pcm.NoWakeword
	if !f.degraded {
		if idx, ok := f.wakeword.Detect(cleaned); ok {
			if f.cooldownElapsed(idx) {
				wakeIndex = idx
				f.lastWakeFiredAt[idx] = time.Now()
			}
		}
	}

	f.queue = append(f.queue, pcm.EnhancedFrame{
		Samples:        cleaned,
		VADActive:      vadActive,
		WakewordIndex:  wakeIndex,
		TriggerChannel: 0,
	})
}

func (f *Frontend) cooldownElapsed(idx int) bool {
	last, ok := f.lastWakeFiredAt[idx]
	if !ok {
		return true
	}
	return time.Since(last) >= f.wakeCooldown
}

// Fetch returns the next processed chunk, if any. It never blocks for
// I/O: an empty queue returns ok=false immediately.
func (f *Frontend) Fetch() (pcm.EnhancedFrame, bool) {
	if len(f.queue) == 0 {
		return pcm.EnhancedFrame{}, false
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next, true
}

func downmix(chunk []int16, channels int) []int16 {
	if channels <= 1 {
		out := make([]int16, len(chunk))
		copy(out, chunk)
		return out
	}

	frames := len(chunk) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(chunk[i*channels+c])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}
