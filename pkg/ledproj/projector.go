// Package ledproj implements the LED state projector: it maps
// interaction state to a named pattern and pushes it to the LED
// driver, overlaying short transient flashes for wake/error events
// without changing the base pattern. Pattern definitions are
// deliberately opaque strings here; the driver owns rendering.
package ledproj

import (
	"sync"
	"time"

	"github.com/naptick/voicecore/internal/logging"
)

// State mirrors the scheduler's InteractionState; kept independent to
// avoid an import cycle between pkg/scheduler and pkg/ledproj.
type State int

const (
	Idle State = iota
	Listening
	Thinking
	Speaking
	Error
)

var basePatterns = map[State]string{
	Idle:      "idle_breathe",
	Listening: "listening_pulse",
	Thinking:  "thinking_spin",
	Speaking:  "speaking_wave",
	Error:     "error_solid_red",
}

// Driver is the external hardware collaborator; rendering of a named
// pattern is entirely its responsibility.
type Driver interface {
	SetPattern(name string) error
	FlashOverlay(name string, duration time.Duration) error
}

const (
	wakeFlashPattern    = "wake_flash"
	wakeFlashDuration   = 150 * time.Millisecond
	errorFlashPattern   = "error_flash"
	errorFlashDuration  = 300 * time.Millisecond
)

// Projector tracks the current base pattern and forwards transient
// overlays without losing it.
type Projector struct {
	mu      sync.Mutex
	driver  Driver
	current State
	logger  logging.Logger
}

func New(driver Driver, logger logging.Logger) *Projector {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Projector{driver: driver, current: Idle, logger: logger}
}

// SetState pushes the base pattern for a new interaction state.
// Callers must invoke this synchronously before any blocking work for
// the new state, so the LEDs never lag the state they represent.
func (p *Projector) SetState(s State) error {
	p.mu.Lock()
	p.current = s
	p.mu.Unlock()

	pattern, ok := basePatterns[s]
	if !ok {
		pattern = basePatterns[Idle]
	}
	if p.driver == nil {
		return nil
	}
	if err := p.driver.SetPattern(pattern); err != nil {
		p.logger.Warn("led pattern push failed", "pattern", pattern, "error", err)
		return err
	}
	return nil
}

// FlashWake overlays a brief flash for a wakeword detection without
// altering the current base pattern.
func (p *Projector) FlashWake() {
	p.overlay(wakeFlashPattern, wakeFlashDuration)
}

// FlashError overlays a brief flash for an error condition.
func (p *Projector) FlashError() {
	p.overlay(errorFlashPattern, errorFlashDuration)
}

func (p *Projector) overlay(pattern string, d time.Duration) {
	if p.driver == nil {
		return
	}
	if err := p.driver.FlashOverlay(pattern, d); err != nil {
		p.logger.Warn("led overlay push failed", "pattern", pattern, "error", err)
	}
}

// CurrentState reports the last base state set, mostly for tests.
func (p *Projector) CurrentState() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}
