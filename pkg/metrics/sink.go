// Package metrics implements the metrics sink: a set of counters backed
// by prometheus client_golang in one registry (plain Counters, plus a
// CounterVec for the labelled spotify family), and a Snapshot() that publishes an
// immutable copy with no field-level tearing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Sink owns the prometheus registry and counter set for one running
// voicecore instance.
type Sink struct {
	registry *prometheus.Registry

	wakeEvents          prometheus.Counter
	simulatedWakeEvents prometheus.Counter
	buttonEvents        prometheus.Counter
	sttSuccess          prometheus.Counter
	sttFailure          prometheus.Counter
	ttsSuccess          prometheus.Counter
	ttsFailure          prometheus.Counter
	spotify             *prometheus.CounterVec
	interactions        prometheus.Counter
	interactionErrors   prometheus.Counter
	droppedUtterances   prometheus.Counter
	wakeHookTimeouts    prometheus.Counter
}

// Snapshot is an immutable point-in-time copy of every counter, safe to
// publish/log/serve without risk of field-level tearing.
type Snapshot struct {
	TimestampMs         int64
	WakeEvents          float64
	SimulatedWakeEvents float64
	ButtonEvents        float64
	STTSuccess          float64
	STTFailure          float64
	TTSSuccess          float64
	TTSFailure          float64
	Spotify             map[string]float64
	Interactions        float64
	InteractionErrors   float64
	DroppedUtterances   float64
	WakeHookTimeouts    float64
}

// New builds a Sink and registers its collectors on a fresh registry.
func New() *Sink {
	reg := prometheus.NewRegistry()
	s := &Sink{
		registry: reg,
		wakeEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_wake_events_total", Help: "Wakeword detections routed to the wake sink.",
		}),
		simulatedWakeEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_simulated_wake_events_total", Help: "Wake events injected by test/debug tooling.",
		}),
		buttonEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_button_events_total", Help: "Physical button-triggered interactions.",
		}),
		sttSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_stt_success_total", Help: "Successful STT calls.",
		}),
		sttFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_stt_failure_total", Help: "Failed STT calls.",
		}),
		ttsSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_tts_success_total", Help: "Successful TTS calls.",
		}),
		ttsFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_tts_failure_total", Help: "Failed TTS calls.",
		}),
		spotify: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "voicecore_spotify_total", Help: "Spotify intent dispatches by kind.",
		}, []string{"kind"}),
		interactions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_interactions_total", Help: "Attempted voice interactions, including those that ended in ERROR state.",
		}),
		interactionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_interaction_errors_total", Help: "Interactions that ended in ERROR state.",
		}),
		droppedUtterances: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_dropped_utterances_total", Help: "Utterances dropped due to scheduler back-pressure.",
		}),
		wakeHookTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "voicecore_wake_hook_timeouts_total", Help: "Wake hook invocations that exceeded their budget.",
		}),
	}

	reg.MustRegister(s.wakeEvents, s.simulatedWakeEvents, s.buttonEvents,
		s.sttSuccess, s.sttFailure, s.ttsSuccess, s.ttsFailure, s.spotify,
		s.interactions, s.interactionErrors, s.droppedUtterances, s.wakeHookTimeouts)

	return s
}

// Registry exposes the underlying prometheus registry for an HTTP
// handler to serve.
func (s *Sink) Registry() *prometheus.Registry { return s.registry }

func (s *Sink) IncWakeEvent()          { s.wakeEvents.Inc() }
func (s *Sink) IncSimulatedWakeEvent() { s.simulatedWakeEvents.Inc() }
func (s *Sink) IncButtonEvent()        { s.buttonEvents.Inc() }
func (s *Sink) IncSTTSuccess()         { s.sttSuccess.Inc() }
func (s *Sink) IncSTTFailure()         { s.sttFailure.Inc() }
func (s *Sink) IncTTSSuccess()         { s.ttsSuccess.Inc() }
func (s *Sink) IncTTSFailure()         { s.ttsFailure.Inc() }
func (s *Sink) IncSpotify(kind string) { s.spotify.WithLabelValues(kind).Inc() }
func (s *Sink) IncInteraction()        { s.interactions.Inc() }
func (s *Sink) IncInteractionError()   { s.interactionErrors.Inc() }
func (s *Sink) IncDroppedUtterance()   { s.droppedUtterances.Inc() }
func (s *Sink) IncWakeFired()          { s.wakeEvents.Inc() }
func (s *Sink) IncWakeHookTimeout()    { s.wakeHookTimeouts.Inc() }

// Snapshot gathers every counter's current value into one immutable
// struct. The gather itself is not atomic across counters (prometheus
// counters have no cross-metric transaction), but each individual
// counter read is atomic, and the result is a value type the caller
// owns exclusively — no shared mutable state leaks out.
func (s *Sink) Snapshot(timestampMs int64) Snapshot {
	metricFamilies, err := s.registry.Gather()
	spotify := make(map[string]float64)
	values := make(map[string]float64)
	if err == nil {
		for _, mf := range metricFamilies {
			for _, m := range mf.GetMetric() {
				if mf.GetName() == "voicecore_spotify_total" {
					for _, label := range m.GetLabel() {
						if label.GetName() == "kind" {
							spotify[label.GetValue()] = m.GetCounter().GetValue()
						}
					}
					continue
				}
				values[mf.GetName()] = m.GetCounter().GetValue()
			}
		}
	}

	return Snapshot{
		TimestampMs:         timestampMs,
		WakeEvents:          values["voicecore_wake_events_total"],
		SimulatedWakeEvents: values["voicecore_simulated_wake_events_total"],
		ButtonEvents:        values["voicecore_button_events_total"],
		STTSuccess:          values["voicecore_stt_success_total"],
		STTFailure:          values["voicecore_stt_failure_total"],
		TTSSuccess:          values["voicecore_tts_success_total"],
		TTSFailure:          values["voicecore_tts_failure_total"],
		Spotify:             spotify,
		Interactions:        values["voicecore_interactions_total"],
		InteractionErrors:   values["voicecore_interaction_errors_total"],
		DroppedUtterances:   values["voicecore_dropped_utterances_total"],
		WakeHookTimeouts:    values["voicecore_wake_hook_timeouts_total"],
	}
}
