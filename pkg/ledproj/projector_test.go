package ledproj

import (
	"testing"
	"time"
)

type recordingDriver struct {
	patterns []string
	overlays []string
}

func (r *recordingDriver) SetPattern(name string) error {
	r.patterns = append(r.patterns, name)
	return nil
}

func (r *recordingDriver) FlashOverlay(name string, _ time.Duration) error {
	r.overlays = append(r.overlays, name)
	return nil
}

func TestSetStatePushesBasePattern(t *testing.T) {
	driver := &recordingDriver{}
	p := New(driver, nil)

	if err := p.SetState(Speaking); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(driver.patterns) != 1 || driver.patterns[0] != "speaking_wave" {
		t.Fatalf("expected speaking_wave pattern, got %v", driver.patterns)
	}
	if p.CurrentState() != Speaking {
		t.Fatalf("expected current state Speaking, got %v", p.CurrentState())
	}
}

func TestFlashOverlayDoesNotChangeBasePattern(t *testing.T) {
	driver := &recordingDriver{}
	p := New(driver, nil)

	p.SetState(Listening)
	p.FlashWake()

	if p.CurrentState() != Listening {
		t.Fatalf("expected base state to remain Listening, got %v", p.CurrentState())
	}
	if len(driver.overlays) != 1 || driver.overlays[0] != wakeFlashPattern {
		t.Fatalf("expected one wake flash overlay, got %v", driver.overlays)
	}
	if len(driver.patterns) != 1 {
		t.Fatalf("expected base pattern pushed exactly once, got %v", driver.patterns)
	}
}
