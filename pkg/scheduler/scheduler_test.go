package scheduler

import (
	"context"
	"testing"

	"github.com/naptick/voicecore/pkg/cloud"
	"github.com/naptick/voicecore/pkg/devicestate"
	"github.com/naptick/voicecore/pkg/ledproj"
	"github.com/naptick/voicecore/pkg/metrics"
	"github.com/naptick/voicecore/pkg/pcm"
	"github.com/naptick/voicecore/pkg/tools"
)

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Transcribe(context.Context, []int16, int) (string, error) { return f.text, f.err }
func (f *fakeSTT) Name() string                                             { return "fake-stt" }

type fakeLLM struct {
	replies []cloud.CompletionResult
	errs    []error
	calls   int
}

func (f *fakeLLM) Complete(context.Context, cloud.CompletionRequest) (cloud.CompletionResult, error) {
	i := f.calls
	f.calls++
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], err
	}
	return cloud.CompletionResult{}, err
}
func (f *fakeLLM) Name() string { return "fake-llm" }

type fakeTTS struct {
	text  string
	calls int
}

func (f *fakeTTS) StreamSynthesize(_ context.Context, text, _ string, onChunk func([]int16) error) error {
	f.calls++
	f.text = text
	return onChunk([]int16{1, 2, 3})
}
func (f *fakeTTS) Abort() error { return nil }
func (f *fakeTTS) Name() string { return "fake-tts" }

type fakePlayback struct {
	played    int
	cancelled bool
}

func (f *fakePlayback) PlayBlocking(context.Context, []byte) error { f.played++; return nil }
func (f *fakePlayback) Cancel() error                              { f.cancelled = true; return nil }

func newTestScheduler(stt cloud.STTClient, llm cloud.LLMClient, tts cloud.TTSClient, play Playback) (*Scheduler, *metrics.Sink) {
	store := devicestate.New("dev", 1)
	m := metrics.New()
	execr := tools.New(store, nil, nil)
	leds := ledproj.New(nil, nil)
	s := New(Config{WakeWord: "naptick"}, stt, llm, tts, execr, store, leds, play, m, nil)
	return s, m
}

// S1 - happy path: transcript routes to a local intent, TTS plays, and
// the scheduler ends back in Idle with one interaction recorded.
func TestHandleUtteranceHappyPathLocalIntent(t *testing.T) {
	stt := &fakeSTT{text: "naptick turn the lights off"}
	llm := &fakeLLM{}
	tts := &fakeTTS{}
	play := &fakePlayback{}
	s, m := newTestScheduler(stt, llm, tts, play)

	s.HandleUtterance(context.Background(), pcm.Utterance{Samples: make([]int16, 100)})

	if s.State() != Idle {
		t.Fatalf("expected Idle after interaction, got %v", s.State())
	}
	if play.played != 1 {
		t.Fatalf("expected exactly one playback, got %d", play.played)
	}
	if llm.calls != 0 {
		t.Fatalf("local intent must not reach the LLM, got %d calls", llm.calls)
	}
	snap := m.Snapshot(0)
	if snap.Interactions != 1 {
		t.Fatalf("expected 1 interaction recorded, got %v", snap.Interactions)
	}
}

// S3 - tool call: the LLM asks for get_temperature, the executor
// answers from the device store, and the follow-up reply is spoken.
func TestHandleUtteranceToolCallRoundTrip(t *testing.T) {
	stt := &fakeSTT{text: "what is the temperature"}
	llm := &fakeLLM{
		replies: []cloud.CompletionResult{
			{ToolCall: &cloud.ToolCall{Name: "get_temperature", Arguments: map[string]string{}}},
			{Text: "It's about 22 and a half degrees."},
		},
	}
	tts := &fakeTTS{}
	play := &fakePlayback{}
	s, m := newTestScheduler(stt, llm, tts, play)

	store := devicestate.New("dev", 1)
	_ = store // the executor inside newTestScheduler owns its own store

	s.HandleUtterance(context.Background(), pcm.Utterance{Samples: make([]int16, 100)})

	if llm.calls != 2 {
		t.Fatalf("expected exactly 2 LLM calls (initial + follow-up), got %d", llm.calls)
	}
	if tts.text != "It's about 22 and a half degrees." {
		t.Fatalf("expected TTS called with the follow-up reply, got %q", tts.text)
	}
	snap := m.Snapshot(0)
	if snap.Interactions != 1 || snap.InteractionErrors != 0 {
		t.Fatalf("expected 1 clean interaction, got %+v", snap)
	}
}

// S4 - nested tool call guard: a second tool call in the follow-up
// reply must not be executed; a synthesized acknowledgement is spoken
// instead.
func TestHandleUtteranceBoundsToolCallRecursion(t *testing.T) {
	stt := &fakeSTT{text: "what is the temperature"}
	llm := &fakeLLM{
		replies: []cloud.CompletionResult{
			{ToolCall: &cloud.ToolCall{Name: "get_temperature", Arguments: map[string]string{}}},
			{ToolCall: &cloud.ToolCall{Name: "get_sensors", Arguments: map[string]string{}}},
		},
	}
	tts := &fakeTTS{}
	play := &fakePlayback{}
	s, _ := newTestScheduler(stt, llm, tts, play)

	s.HandleUtterance(context.Background(), pcm.Utterance{Samples: make([]int16, 100)})

	if llm.calls != 2 {
		t.Fatalf("expected exactly 2 LLM calls (no third round-trip), got %d", llm.calls)
	}
	if tts.calls != 1 {
		t.Fatalf("expected exactly one TTS call with the synthesized acknowledgement, got %d", tts.calls)
	}
}

// S6 - STT failure: no router call, no TTS call, one interaction and
// one interaction error recorded, state returns to Idle.
func TestHandleUtteranceSTTFailureReturnsToIdle(t *testing.T) {
	stt := &fakeSTT{err: context.DeadlineExceeded}
	llm := &fakeLLM{}
	tts := &fakeTTS{}
	play := &fakePlayback{}
	s, m := newTestScheduler(stt, llm, tts, play)

	s.HandleUtterance(context.Background(), pcm.Utterance{Samples: make([]int16, 100)})

	if s.State() != Idle {
		t.Fatalf("expected Idle after STT failure, got %v", s.State())
	}
	if llm.calls != 0 {
		t.Fatal("expected no LLM call after STT failure")
	}
	if tts.calls != 0 {
		t.Fatal("expected no TTS call after STT failure")
	}
	snap := m.Snapshot(0)
	if snap.STTFailure != 1 {
		t.Fatalf("expected 1 stt failure, got %v", snap.STTFailure)
	}
	if snap.Interactions != 1 {
		t.Fatalf("expected 1 interaction attempt recorded even on failure, got %v", snap.Interactions)
	}
	if snap.InteractionErrors != 1 {
		t.Fatalf("expected 1 interaction error, got %v", snap.InteractionErrors)
	}
}

// S5 - barge-in: a wake event mid-SPEAKING cancels playback and
// returns to Idle, incrementing wake_events exactly once.
func TestOnWakeCancelsPlaybackDuringSpeaking(t *testing.T) {
	stt := &fakeSTT{}
	llm := &fakeLLM{}
	tts := &fakeTTS{}
	play := &fakePlayback{}
	s, m := newTestScheduler(stt, llm, tts, play)

	s.setState(Speaking)
	if err := s.OnWake(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !play.cancelled {
		t.Fatal("expected playback to be cancelled on barge-in")
	}
	if s.State() != Idle {
		t.Fatalf("expected Idle after barge-in, got %v", s.State())
	}
	snap := m.Snapshot(0)
	if snap.WakeEvents != 1 {
		t.Fatalf("expected 1 wake event, got %v", snap.WakeEvents)
	}
}

// A wake event mid-THINKING must be ignored: no cancellation, state
// unchanged.
func TestOnWakeIgnoredDuringThinking(t *testing.T) {
	stt := &fakeSTT{}
	llm := &fakeLLM{}
	tts := &fakeTTS{}
	play := &fakePlayback{}
	s, _ := newTestScheduler(stt, llm, tts, play)

	s.setState(Thinking)
	if err := s.OnWake(context.Background(), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if play.cancelled {
		t.Fatal("expected no playback cancellation while THINKING")
	}
	if s.State() != Thinking {
		t.Fatalf("expected state to remain Thinking, got %v", s.State())
	}
}

func TestScrubWakewordRemovesWholeWordCaseInsensitive(t *testing.T) {
	cases := []struct{ in, wake, want string }{
		{"Naptick, play jazz", "naptick", "play jazz"},
		{"play jazz", "naptick", "play jazz"},
		{"NAPTICK turn off the lights", "naptick", "turn off the lights"},
		{"naptickally speaking", "naptick", "naptickally speaking"}, // not a whole word
	}
	for _, c := range cases {
		got := scrubWakeword(c.in, c.wake)
		if got != c.want {
			t.Errorf("scrubWakeword(%q, %q) = %q, want %q", c.in, c.wake, got, c.want)
		}
	}
}
