// Package segment implements the segment batcher: it accumulates
// enhanced samples while VAD is active and emits a completed Utterance
// to the scheduler once VAD deasserts, capped at max_utterance_samples.
// Unlike a rolling audio buffer that trims itself down as it grows,
// this batcher emits-or-drops once its cap is hit.
package segment

import (
	"github.com/naptick/voicecore/pkg/pcm"
)

// Metrics is the minimal counter surface the batcher needs; satisfied
// by pkg/metrics.Sink.
type Metrics interface {
	IncDroppedUtterance()
}

type noopMetrics struct{}

func (noopMetrics) IncDroppedUtterance() {}

// Batcher implements a four-way branch over VAD transitions and buffer
// fullness. It is driven by one goroutine (the capture/DSP task feeding
// it fetch() results) and is not safe for concurrent Feed calls.
type Batcher struct {
	maxSamples int
	minSamples int

	buffer       []int16
	wasActive    bool
	out          chan pcm.Utterance
	metrics      Metrics
}

// New builds a Batcher. out should be a depth-1 channel: an Utterance
// arriving while the scheduler is still busy with a prior one is
// dropped, not queued.
func New(out chan pcm.Utterance, minSamples, maxSamples int, metrics Metrics) *Batcher {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Batcher{
		maxSamples: maxSamples,
		minSamples: minSamples,
		out:        out,
		metrics:    metrics,
	}
}

// Feed consumes one enhanced frame and applies the batcher's branches.
func (b *Batcher) Feed(ef pcm.EnhancedFrame) {
	if ef.VADActive {
		b.wasActive = true
		room := b.maxSamples - len(b.buffer)
		if room <= 0 {
			b.emit(true)
			return
		}
		toAppend := ef.Samples
		if len(toAppend) > room {
			toAppend = toAppend[:room]
		}
		b.buffer = append(b.buffer, toAppend...)
		if len(b.buffer) >= b.maxSamples {
			b.emit(true)
		}
		return
	}

	// !VADActive
	if b.wasActive {
		if len(b.buffer) >= b.minSamples {
			b.emit(false)
		} else {
			b.reset() // too-short false positive, discard silently
		}
	}
	b.wasActive = false
}

func (b *Batcher) emit(truncated bool) {
	utt := pcm.Utterance{Samples: b.buffer, Truncated: truncated}
	b.buffer = nil
	b.wasActive = false

	select {
	case b.out <- utt:
	default:
		b.metrics.IncDroppedUtterance()
	}
}

func (b *Batcher) reset() {
	b.buffer = nil
	b.wasActive = false
}
