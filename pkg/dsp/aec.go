package dsp

import (
	"math"
	"sync"
)

// echoCanceller attenuates microphone energy that correlates with
// recently-played-back audio, operating on one DSP chunk at a time. It
// is the AEC stage of the front end: a correctness-preserving
// reference implementation, not a production adaptive filter.
type echoCanceller struct {
	mu            sync.Mutex
	reference     []float64
	maxRefSamples int
	threshold     float64
}

func newEchoCanceller(maxRefSamples int) *echoCanceller {
	if maxRefSamples <= 0 {
		maxRefSamples = 16000 * 2 // ~2s @ 16kHz mono
	}
	return &echoCanceller{
		maxRefSamples: maxRefSamples,
		threshold:     0.55,
	}
}

// recordPlayed appends samples that were just sent to the speaker so
// that later capture chunks can be checked against them.
func (e *echoCanceller) recordPlayed(samples []int16) {
	if len(samples) == 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range samples {
		e.reference = append(e.reference, float64(s)/32768.0)
	}
	if len(e.reference) > e.maxRefSamples {
		e.reference = e.reference[len(e.reference)-e.maxRefSamples:]
	}
}

// cancel returns a copy of in with any segment that strongly correlates
// with the reference buffer muted to zero, attenuating the speaker echo
// before VAD/STT see it.
func (e *echoCanceller) cancel(in []int16) []int16 {
	out := make([]int16, len(in))
	copy(out, in)
	if len(in) == 0 {
		return out
	}

	e.mu.Lock()
	ref := e.reference
	threshold := e.threshold
	e.mu.Unlock()

	if len(ref) == 0 {
		return out
	}

	inSamples := toFloat(in)
	inEnergy := energy(inSamples)
	if inEnergy == 0 {
		return out
	}

	compareLen := len(inSamples)
	if compareLen > len(ref) {
		compareLen = len(ref)
	}

	stride := compareLen / 4
	if stride < 8 {
		stride = 8
	}

	maxCorr := 0.0
	searchRange := len(ref) - compareLen + 1
	for pos := 0; pos < searchRange; pos += stride {
		seg := ref[pos : pos+compareLen]
		segEnergy := energy(seg)
		if segEnergy == 0 {
			continue
		}
		dot := 0.0
		for i := 0; i < compareLen; i++ {
			dot += inSamples[i] * seg[i]
		}
		corr := dot / math.Sqrt(inEnergy*segEnergy)
		if corr > maxCorr {
			maxCorr = corr
			if maxCorr >= 0.999 {
				break
			}
		}
	}

	if maxCorr < threshold {
		return out
	}
	for i := 0; i < compareLen && i < len(out); i++ {
		out[i] = 0
	}
	return out
}

func (e *echoCanceller) reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reference = nil
}

func toFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

func energy(samples []float64) float64 {
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return sum
}
