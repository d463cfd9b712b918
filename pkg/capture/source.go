// Package capture pulls interleaved multichannel PCM frames from the
// capture codec at a fixed sample rate through a pull/gap/underflow/Busy
// contract instead of a free-running callback: frames land in a small
// internal queue as the audio driver produces them, and PullFrame drains
// that queue under an exclusive lock so at most one caller is ever
// reading the codec at a time.
package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/naptick/voicecore/pkg/pcm"
)

// ErrBusy is returned by PullFrame when another goroutine already holds
// the codec lock.
var ErrBusy = errors.New("capture: codec busy")

// ErrUnderflow is returned when no frame becomes available within the
// pull deadline.
var ErrUnderflow = errors.New("capture: underflow")

// ErrDriverError wraps a fatal failure from the underlying audio
// device.
var ErrDriverError = errors.New("capture: driver error")

// PullTimeout bounds how long PullFrame waits for the next frame before
// reporting Underflow.
const PullTimeout = 200 * time.Millisecond

// queueDepth bounds the internal frame queue; once full, the capture
// callback drops the oldest frame and records a gap rather than
// blocking the audio callback (which must never block).
const queueDepth = 8

// Source pulls PcmFrames from a malgo capture device. It does not
// resample: Channels/SampleRate are fixed at construction and never
// change after Start.
type Source struct {
	sampleRate int
	channels   int
	frameSize  int // samples per channel per pulled frame

	device *malgo.Device

	mu sync.Mutex // guards the codec read path; held only during PullFrame

	queueMu  sync.Mutex
	queue    [][]int16
	gapAfter bool // set when the queue overflowed; surfaced on the next pull
	seq      uint64

	notify chan struct{}
}

// Config configures one Source.
type Config struct {
	SampleRateHz int
	Channels     int
	FrameSizeMs  int
}

// New builds an unstarted Source. Call Start to open the device.
func New(cfg Config) *Source {
	frameSize := cfg.SampleRateHz * cfg.FrameSizeMs / 1000
	if frameSize < 1 {
		frameSize = 1
	}
	return &Source{
		sampleRate: cfg.SampleRateHz,
		channels:   cfg.Channels,
		frameSize:  frameSize,
		notify:     make(chan struct{}, 1),
	}
}

// Start opens the malgo capture device and begins buffering frames.
// mctx is a malgo context the caller owns and must Uninit() after the
// Source is stopped.
func (s *Source) Start(mctx *malgo.AllocatedContext) error {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(s.channels)
	deviceConfig.SampleRate = uint32(s.sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	var pending []int16

	onSamples := func(_ []byte, input []byte, frameCount uint32) {
		if input == nil {
			return
		}
		samples := bytesToInt16(input)
		pending = append(pending, samples...)

		chunkLen := s.frameSize * s.channels
		for len(pending) >= chunkLen {
			chunk := make([]int16, chunkLen)
			copy(chunk, pending[:chunkLen])
			pending = pending[chunkLen:]
			s.enqueue(chunk)
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		return errDriver(err)
	}
	if err := device.Start(); err != nil {
		return errDriver(err)
	}
	s.device = device
	return nil
}

// Stop halts the capture device.
func (s *Source) Stop() error {
	if s.device == nil {
		return nil
	}
	s.device.Stop()
	s.device.Uninit()
	s.device = nil
	return nil
}

func (s *Source) enqueue(chunk []int16) {
	s.queueMu.Lock()
	if len(s.queue) >= queueDepth {
		// Drop oldest: capture must never block the real-time audio
		// callback, so back-pressure here takes the form of loss, not
		// a blocking send, with the loss surfaced as an explicit gap.
		s.queue = s.queue[1:]
		s.gapAfter = true
	}
	s.queue = append(s.queue, chunk)
	s.queueMu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// PullFrame returns the next PcmFrame in stream order, or an error.
// Only one caller may be inside PullFrame at a time; a concurrent
// caller receives ErrBusy immediately rather than blocking. gap is true
// when frames were dropped between the previous pull and this one
// (queue overflow), signalling the loss explicitly instead of silently
// padding with silence.
func (s *Source) PullFrame(ctx context.Context) (frame pcm.Frame, gap bool, err error) {
	if !s.mu.TryLock() {
		return pcm.Frame{}, false, ErrBusy
	}
	defer s.mu.Unlock()

	deadline := time.NewTimer(PullTimeout)
	defer deadline.Stop()

	for {
		if chunk, chunkGap, ok := s.dequeue(); ok {
			s.seq++
			return pcm.Frame{Samples: chunk, Channels: s.channels, SampleRate: s.sampleRate}, chunkGap, nil
		}

		select {
		case <-s.notify:
			continue
		case <-deadline.C:
			return pcm.Frame{}, false, ErrUnderflow
		case <-ctx.Done():
			return pcm.Frame{}, false, ctx.Err()
		}
	}
}

func (s *Source) dequeue() (chunk []int16, gap bool, ok bool) {
	s.queueMu.Lock()
	defer s.queueMu.Unlock()
	if len(s.queue) == 0 {
		return nil, false, false
	}
	chunk = s.queue[0]
	s.queue = s.queue[1:]
	gap = s.gapAfter
	s.gapAfter = false
	return chunk, gap, true
}

func errDriver(err error) error {
	if err == nil {
		return nil
	}
	return errors.Join(ErrDriverError, err)
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(uint16(b[2*i]) | uint16(b[2*i+1])<<8)
	}
	return out
}
