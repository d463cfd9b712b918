// Package scheduler implements the interaction scheduler: the central
// IDLE/LISTENING/THINKING/SPEAKING/ERROR state machine that drives one
// voice interaction end to end (STT -> intent routing or LLM+tools ->
// TTS -> playback) and owns barge-in/cancellation.
//
// A mutex guards the state enum and the per-turn cancel functions; each
// stage of a turn runs under its own cancelable context so a barge-in
// or timeout can cut a stage short without affecting the next turn.
// Intents short-circuit before the LLM is ever called, and a tool call
// the LLM returns triggers exactly one bounded follow-up round-trip.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/naptick/voicecore/internal/logging"
	"github.com/naptick/voicecore/pkg/cloud"
	"github.com/naptick/voicecore/pkg/devicestate"
	"github.com/naptick/voicecore/pkg/intent"
	"github.com/naptick/voicecore/pkg/ledproj"
	"github.com/naptick/voicecore/pkg/metrics"
	"github.com/naptick/voicecore/pkg/pcm"
	"github.com/naptick/voicecore/pkg/tools"
)

// State is the scheduler's interaction state.
type State int

const (
	Idle State = iota
	Listening
	Thinking
	Speaking
	ErrorState
)

// Playback is the narrow surface the scheduler needs from the playback driver.
type Playback interface {
	PlayBlocking(ctx context.Context, payload []byte) error
	Cancel() error
}

// Config bundles the per-turn knobs the scheduler needs.
type Config struct {
	WakeWord            string
	MinWordsToInterrupt int
	Voice               string
	STTTimeout          time.Duration
	LLMTimeout          time.Duration
	TTSTimeout          time.Duration
	SystemPrompt        string
}

// Scheduler owns one interaction at a time; arriving utterances during
// a non-IDLE state are dropped upstream (by the segment batcher and the
// process's scheduler loop), so HandleUtterance never needs its own
// back-pressure logic.
type Scheduler struct {
	cfg   Config
	stt   cloud.STTClient
	llm   cloud.LLMClient
	tts   cloud.TTSClient
	tools *tools.Executor
	store *devicestate.Store
	leds  *ledproj.Projector
	play  Playback
	metrics *metrics.Sink
	logger  logging.Logger

	mu         sync.Mutex
	state      State
	turnCancel context.CancelFunc
	ttsCancel  context.CancelFunc
	history    []cloud.Message
	maxHistory int
}

func New(cfg Config, stt cloud.STTClient, llm cloud.LLMClient, tts cloud.TTSClient,
	toolExec *tools.Executor, store *devicestate.Store, leds *ledproj.Projector,
	play Playback, metricsSink *metrics.Sink, logger logging.Logger) *Scheduler {

	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	s := &Scheduler{
		cfg: cfg, stt: stt, llm: llm, tts: tts, tools: toolExec,
		store: store, leds: leds, play: play, metrics: metricsSink, logger: logger,
		state: Idle, maxHistory: 20,
	}
	if cfg.SystemPrompt != "" {
		s.history = append(s.history, cloud.Message{Role: "system", Content: cfg.SystemPrompt})
	}
	return s
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Scheduler) setState(new State) {
	s.mu.Lock()
	s.state = new
	s.mu.Unlock()
	if s.leds != nil {
		s.leds.SetState(ledproj.State(new))
	}
}

// HandleUtterance drives one complete interaction for a batched
// Utterance. It is the scheduler task's sole entry point; callers must
// serialize calls (the segment batcher's depth-1 channel already
// guarantees at most one in flight).
func (s *Scheduler) HandleUtterance(parent context.Context, utt pcm.Utterance) {
	ctx, cancel := context.WithCancel(parent)
	s.mu.Lock()
	s.turnCancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.setState(Listening)
	s.setState(Thinking)

	sttCtx, sttCancel := context.WithTimeout(ctx, s.sttTimeout())
	defer sttCancel()
	transcript, err := s.stt.Transcribe(sttCtx, utt.Samples, 16000)
	if err != nil {
		s.fail("stt", err)
		return
	}
	if s.metrics != nil {
		s.metrics.IncSTTSuccess()
	}
	if strings.TrimSpace(transcript) == "" {
		s.setState(Idle)
		return
	}

	transcript = scrubWakeword(transcript, s.cfg.WakeWord)

	if decision := intent.Route(transcript); decision.Kind != intent.None {
		s.handleIntent(ctx, decision)
		return
	}

	s.history = append(s.history, cloud.Message{Role: "user", Content: transcript})
	s.trimHistory()

	reply, err := s.converse(ctx)
	if err != nil {
		s.fail("llm", err)
		return
	}

	s.history = append(s.history, cloud.Message{Role: "assistant", Content: reply})
	s.trimHistory()

	s.speak(ctx, reply)
}

func (s *Scheduler) sttTimeout() time.Duration {
	if s.cfg.STTTimeout > 0 {
		return s.cfg.STTTimeout
	}
	return 10 * time.Second
}

func (s *Scheduler) llmTimeout() time.Duration {
	if s.cfg.LLMTimeout > 0 {
		return s.cfg.LLMTimeout
	}
	return 15 * time.Second
}

func (s *Scheduler) ttsTimeout() time.Duration {
	if s.cfg.TTSTimeout > 0 {
		return s.cfg.TTSTimeout
	}
	return 15 * time.Second
}

func (s *Scheduler) trimHistory() {
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
}

var toolSchemas = []cloud.ToolSchema{
	{Name: "get_device_state", Description: "Return the full device state snapshot."},
	{Name: "get_health", Description: "Return device health summary."},
	{Name: "get_temperature", Description: "Return the current temperature and humidity readings."},
	{Name: "get_sensors", Description: "Return all sensor readings."},
	{Name: "set_leds", Description: "Enable or disable the LED strip.", Parameters: []string{"enabled"}},
	{Name: "set_led_color", Description: "Set the LED strip to an RGB color.", Parameters: []string{"red", "green", "blue"}},
	{Name: "set_audio_mute", Description: "Mute or unmute audio playback.", Parameters: []string{"muted"}},
}

// converse runs the LLM call and, if it returns a tool call, executes
// it and allows exactly one follow-up round-trip. A second tool call
// in that follow-up is not executed; its text (or a synthesized
// acknowledgement) becomes the reply.
func (s *Scheduler) converse(ctx context.Context) (string, error) {
	llmCtx, cancel := context.WithTimeout(ctx, s.llmTimeout())
	defer cancel()

	messages := s.history
	if s.store != nil {
		snapshot := cloud.Message{Role: "system", Content: "device_state: " + s.store.CanonicalString()}
		messages = append(append([]cloud.Message{}, s.history...), snapshot)
	}

	result, err := s.llm.Complete(llmCtx, cloud.CompletionRequest{Messages: messages, Tools: toolSchemas})
	if err != nil {
		return "", err
	}
	if result.ToolCall == nil {
		return result.Text, nil
	}

	toolResult := s.tools.Call(result.ToolCall.Name, result.ToolCall.Arguments)
	s.history = append(s.history, cloud.Message{Role: "assistant", Content: formatToolCall(result.ToolCall)})
	s.history = append(s.history, cloud.Message{Role: "tool", Content: formatToolResult(toolResult)})

	followupCtx, followupCancel := context.WithTimeout(ctx, s.llmTimeout())
	defer followupCancel()

	followup, err := s.llm.Complete(followupCtx, cloud.CompletionRequest{Messages: s.history, Tools: toolSchemas})
	if err != nil {
		return "", err
	}
	if followup.ToolCall != nil {
		// Bounded recursion: a second tool call is not executed.
		if strings.TrimSpace(followup.Text) != "" {
			return followup.Text, nil
		}
		return fmt.Sprintf("Done: %s", toolResult.Summary()), nil
	}
	return followup.Text, nil
}

func formatToolCall(tc *cloud.ToolCall) string {
	return fmt.Sprintf("called %s", tc.Name)
}

func formatToolResult(r tools.Result) string {
	if r.Err != "" {
		return "error: " + r.Err
	}
	return r.Summary()
}

func (s *Scheduler) handleIntent(ctx context.Context, d intent.Decision) {
	switch d.Kind {
	case intent.SpotifyPlay:
		s.metricInc("spotify_play")
		s.speak(ctx, fmt.Sprintf("Playing %s.", d.Query))
	case intent.SpotifyPause:
		s.metricInc("spotify_pause")
		s.speak(ctx, "Paused.")
	case intent.SpotifyResume:
		s.metricInc("spotify_resume")
		s.speak(ctx, "Resuming.")
	case intent.SpotifyVolumeDelta:
		s.metricInc("spotify_volume")
		s.speak(ctx, "Adjusting volume.")
	case intent.LightsOn:
		s.tools.Call("set_leds", map[string]string{"enabled": "true"})
		s.speak(ctx, "Lights on.")
	case intent.LightsOff:
		s.tools.Call("set_leds", map[string]string{"enabled": "false"})
		s.speak(ctx, "Lights off.")
	default:
		s.setState(Idle)
	}
}

func (s *Scheduler) metricInc(kind string) {
	if s.metrics != nil {
		s.metrics.IncSpotify(kind)
	}
}

func (s *Scheduler) speak(ctx context.Context, text string) {
	s.setState(Speaking)

	ttsCtx, cancel := context.WithTimeout(ctx, s.ttsTimeout())
	s.mu.Lock()
	s.ttsCancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.ttsCancel = nil
		s.mu.Unlock()
		cancel()
	}()

	var audio []int16
	err := s.tts.StreamSynthesize(ttsCtx, text, s.cfg.Voice, func(chunk []int16) error {
		audio = append(audio, chunk...)
		return nil
	})
	if err != nil {
		if ttsCtx.Err() == nil {
			s.fail("tts", err)
			return
		}
		// Cancelled: barge-in already reset state, nothing further to do.
		return
	}
	if s.metrics != nil {
		s.metrics.IncTTSSuccess()
	}

	payload := pcm.EncodeContainer(audio, 16000, 1)
	if err := s.play.PlayBlocking(ttsCtx, payload); err != nil {
		if ttsCtx.Err() == nil {
			s.fail("playback", err)
		}
		// Cancelled: barge-in already reset state, nothing further to do.
		return
	}

	if s.metrics != nil {
		s.metrics.IncInteraction()
	}
	s.setState(Idle)
}

func (s *Scheduler) fail(stage string, err error) {
	s.logger.Error("interaction failed", "stage", stage, "error", err)
	if stage == "stt" && s.metrics != nil {
		s.metrics.IncSTTFailure()
	}
	if stage == "tts" && s.metrics != nil {
		s.metrics.IncTTSFailure()
	}
	if s.metrics != nil {
		s.metrics.IncInteraction()
		s.metrics.IncInteractionError()
	}
	s.setState(ErrorState)
	if s.leds != nil {
		s.leds.FlashError()
	}
	s.recover()
}

func (s *Scheduler) recover() {
	s.setState(Idle)
}

// OnWake implements the wake sink hook: a detection mid-SPEAKING is a
// barge-in (cancel playback/TTS, return to IDLE); mid-THINKING it is
// ignored (the in-flight cloud round trip is not cancelled and its
// reply is spoken as usual); in any other state it is a no-op here
// (the caller is responsible for turning a wake into a new utterance
// via the capture path).
func (s *Scheduler) OnWake(ctx context.Context, wakewordIndex int) error {
	if s.metrics != nil {
		s.metrics.IncWakeFired()
	}
	if s.leds != nil {
		s.leds.FlashWake()
	}

	s.mu.Lock()
	state := s.state
	turnCancel := s.turnCancel
	s.mu.Unlock()

	switch state {
	case Speaking:
		if err := s.play.Cancel(); err != nil {
			s.logger.Warn("playback cancel failed during barge-in", "error", err)
		}
		if turnCancel != nil {
			turnCancel()
		}
		s.setState(Idle)
	case Thinking:
		// Ignored: the pending round trip continues undisturbed.
	}
	return nil
}

func scrubWakeword(transcript, wakeword string) string {
	if wakeword == "" {
		return strings.TrimSpace(transcript)
	}
	lower := strings.ToLower(transcript)
	target := strings.ToLower(wakeword)

	idx := strings.Index(lower, target)
	if idx == -1 {
		return strings.TrimSpace(transcript)
	}

	before := idx == 0 || !isWordChar(rune(lower[idx-1]))
	afterIdx := idx + len(target)
	after := afterIdx >= len(lower) || !isWordChar(rune(lower[afterIdx]))
	if !before || !after {
		return strings.TrimSpace(transcript)
	}

	scrubbed := transcript[:idx] + transcript[afterIdx:]
	scrubbed = strings.Trim(scrubbed, " ,.")
	return strings.TrimSpace(scrubbed)
}

func isWordChar(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
