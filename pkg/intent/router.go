// Package intent implements the intent router: a pure function over a
// fixed, ordered keyword table. It never consults device state and
// carries no receiver state, kept as small stateless helpers rather
// than methods on a struct.
package intent

import "strings"

// Kind enumerates the closed set of routing decisions.
type Kind int

const (
	None Kind = iota
	SpotifyPlay
	SpotifyPause
	SpotifyResume
	SpotifyVolumeDelta
	LightsOn
	LightsOff
)

// Decision is the routed outcome. Query is set only for SpotifyPlay;
// VolumeDelta is set only for SpotifyVolumeDelta (+1 for louder, -1 for
// quieter).
type Decision struct {
	Kind        Kind
	Query       string
	VolumeDelta int
}

type rule struct {
	kind     Kind
	keywords []string
}

// Priority order: pause/stop, resume/continue, volume up/louder, volume
// down/quieter/lower, play <query>, lights off/on. Evaluated top to
// bottom; the first matching rule wins ties.
var rules = []rule{
	{SpotifyPause, []string{"pause", "stop"}},
	{SpotifyResume, []string{"resume", "continue"}},
	{SpotifyVolumeDelta, []string{"volume up", "louder"}}, // delta +1
	{SpotifyVolumeDelta, []string{"volume down", "quieter", "lower"}}, // delta -1
	{SpotifyPlay, []string{"play"}},
	{LightsOff, []string{"lights off", "turn off the lights", "turn off lights"}},
	{LightsOn, []string{"lights on", "turn on the lights", "turn on lights"}},
}

// Route matches utterance against the fixed keyword table and returns
// the first decision in priority order. Matching is case-insensitive
// substring matching; Route never consults external state.
func Route(utterance string) Decision {
	lower := strings.ToLower(strings.TrimSpace(utterance))

	for _, r := range rules {
		for _, kw := range r.keywords {
			idx := strings.Index(lower, kw)
			if idx == -1 {
				continue
			}
			switch r.kind {
			case SpotifyVolumeDelta:
				if kw == "volume up" || kw == "louder" {
					return Decision{Kind: SpotifyVolumeDelta, VolumeDelta: 1}
				}
				return Decision{Kind: SpotifyVolumeDelta, VolumeDelta: -1}
			case SpotifyPlay:
				query := strings.TrimSpace(lower[idx+len(kw):])
				return Decision{Kind: SpotifyPlay, Query: query}
			default:
				return Decision{Kind: r.kind}
			}
		}
	}

	return Decision{Kind: None}
}
