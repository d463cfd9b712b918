package dsp

import "math"

// energyVAD is an RMS-energy voice activity detector with asymmetric
// hysteresis: asserting speech requires hangoverRise consecutive frames
// above threshold, deasserting requires hangoverFall consecutive frames
// below threshold. Both edges are frame-counted rather than wall-clock
// timed, so behavior only depends on the chunk cadence, not real time.
type energyVAD struct {
	threshold   float64
	hangoverUp  int
	hangoverDn  int
	speaking    bool
	aboveStreak int
	belowStreak int
	lastRMS     float64
}

func newEnergyVAD(threshold float64, hangoverRise, hangoverFall int) *energyVAD {
	if hangoverRise < 1 {
		hangoverRise = 1
	}
	if hangoverFall < 1 {
		hangoverFall = 1
	}
	return &energyVAD{
		threshold:  threshold,
		hangoverUp: hangoverRise,
		hangoverDn: hangoverFall,
	}
}

// process consumes one chunk of mono samples and returns whether speech
// is active after this chunk.
func (v *energyVAD) process(samples []int16) bool {
	v.lastRMS = rms(samples)

	if v.lastRMS > v.threshold {
		v.aboveStreak++
		v.belowStreak = 0
		if !v.speaking && v.aboveStreak >= v.hangoverUp {
			v.speaking = true
		}
		return v.speaking
	}

	v.belowStreak++
	v.aboveStreak = 0
	if v.speaking && v.belowStreak >= v.hangoverDn {
		v.speaking = false
	}
	return v.speaking
}

func (v *energyVAD) reset() {
	v.speaking = false
	v.aboveStreak = 0
	v.belowStreak = 0
}

func (v *energyVAD) setThreshold(t float64) { v.threshold = t }

func rms(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		f := float64(s) / 32768.0
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(samples)))
}
