// Package playback implements the playback driver: blocking
// single-flight playback of decoded PCM through a malgo output device,
// with a fast cancel path and single-owner device discipline so at
// most one utterance is ever playing at a time.
package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/naptick/voicecore/pkg/pcm"
)

// ErrBusy is returned by PlayBlocking when a play is already in flight.
var ErrBusy = errors.New("playback: device busy")

// CancelBudget bounds how long Cancel may take to actually halt
// playback: barge-in needs this to be fast enough to feel instant.
const CancelBudget = 50 * time.Millisecond

// AECSink receives every played sample so the DSP front end's echo
// canceller can build its reference buffer.
type AECSink interface {
	RecordPlayedAudio(samples []int16)
}

// Driver renders decoded PCM through a malgo playback device, enforcing
// single-flight playback and a fast cancel path.
type Driver struct {
	ctx        *malgo.AllocatedContext
	sampleRate int
	channels   int
	aec        AECSink

	mu      sync.Mutex
	playing bool
	cancel  context.CancelFunc
}

// New builds a Driver bound to a malgo context the caller owns and must
// Uninit() on shutdown.
func New(ctx *malgo.AllocatedContext, sampleRate, channels int, aec AECSink) *Driver {
	return &Driver{ctx: ctx, sampleRate: sampleRate, channels: channels, aec: aec}
}

// PlayBlocking decodes a canonical container or raw frame and blocks
// until the device has drained every sample, or ctx is cancelled. A
// second concurrent call returns ErrBusy immediately.
func (d *Driver) PlayBlocking(ctx context.Context, payload []byte) error {
	d.mu.Lock()
	if d.playing {
		d.mu.Unlock()
		return ErrBusy
	}
	d.playing = true
	playCtx, playCancel := context.WithCancel(ctx)
	d.cancel = playCancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.playing = false
		d.cancel = nil
		d.mu.Unlock()
		playCancel()
	}()

	samples, rate, channels, err := pcm.DecodeContainer(payload)
	if err != nil {
		// Not a container: treat as raw PCM at the driver's configured
		// sample rate and channel count.
		samples = bytesToInt16(payload)
		rate, channels = d.sampleRate, d.channels
	}

	return d.render(playCtx, samples, rate, channels)
}

func (d *Driver) render(ctx context.Context, samples []int16, sampleRate, channels int) error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	pos := 0
	done := make(chan struct{})
	var closeOnce sync.Once
	signalDone := func() { closeOnce.Do(func() { close(done) }) }

	onSamples := func(out, _ []byte, frameCount uint32) {
		frames := int(frameCount) * channels
		remaining := len(samples) - pos
		if remaining <= 0 {
			signalDone()
			return
		}
		n := frames
		if n > remaining {
			n = remaining
		}
		chunk := samples[pos : pos+n]
		writeInt16LE(out, chunk)

		if d.aec != nil {
			d.aec.RecordPlayedAudio(chunk)
		}

		pos += n
		if pos >= len(samples) {
			signalDone()
		}
	}

	callbacks := malgo.DeviceCallbacks{Data: onSamples}
	device, err := malgo.InitDevice(d.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return err
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return err
	}
	defer device.Stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel aborts the in-flight playback, if any, and returns once the
// device has been signalled to stop (well within CancelBudget since it
// is just a context cancellation, not a hardware drain wait).
func (d *Driver) Cancel() error {
	d.mu.Lock()
	cancel := d.cancel
	d.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func writeInt16LE(out []byte, samples []int16) {
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}
