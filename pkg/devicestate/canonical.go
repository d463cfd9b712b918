package devicestate

import (
	"fmt"
	"sort"
	"strings"
)

// KV is one key/value pair of the canonical document. Value is always
// rendered as a string so the whole document can be hashed or compared
// without a full JSON round-trip.
type KV struct {
	Key   string
	Value string
}

// Canonical walks every section and key in a fixed order and returns
// the flattened key/value document, so equality checks and checksums
// over repeated serializations stay meaningful. Sensor keys are sorted
// by name since the sensor set itself is dynamic; every other section
// uses a hardcoded key order.
func (s *Store) Canonical() []KV {
	var out []KV

	name, freeHeap, minHeap := s.DeviceSnapshot()
	out = append(out,
		KV{"device.name", name},
		KV{"device.free_heap", fmt.Sprintf("%d", freeHeap)},
		KV{"device.min_free_heap", fmt.Sprintf("%d", minHeap)},
	)

	connected, ssid, rssi := s.WifiSnapshot()
	out = append(out,
		KV{"wifi.connected", fmt.Sprintf("%t", connected)},
		KV{"wifi.ssid", ssid},
		KV{"wifi.rssi", fmt.Sprintf("%d", rssi)},
	)

	ledsEnabled, ledCount, brightness, state := s.LEDsSnapshot()
	out = append(out,
		KV{"leds.enabled", fmt.Sprintf("%t", ledsEnabled)},
		KV{"leds.count", fmt.Sprintf("%d", ledCount)},
		KV{"leds.brightness", fmt.Sprintf("%d", brightness)},
		KV{"leds.state", state},
	)

	playing, muted := s.AudioSnapshot()
	out = append(out,
		KV{"audio.playing", fmt.Sprintf("%t", playing)},
		KV{"audio.muted", fmt.Sprintf("%t", muted)},
	)

	out = append(out, KV{"link.connected", fmt.Sprintf("%t", s.LinkSnapshot())})

	sensors := s.SensorsSnapshot()
	names := make([]string, 0, len(sensors))
	for n := range sensors {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		r := sensors[n]
		out = append(out,
			KV{"sensors." + n + ".available", fmt.Sprintf("%t", r.Available)},
			KV{"sensors." + n + ".value", fmt.Sprintf("%g", r.Value)},
			KV{"sensors." + n + ".unit", r.Unit},
		)
	}

	return out
}

// CanonicalString renders Canonical() as a single "key=value" line,
// entries separated by ";", in the same stable order. Callers that need
// a bounded payload (e.g. a 512-byte tool result) should truncate the
// result themselves.
func (s *Store) CanonicalString() string {
	pairs := s.Canonical()
	parts := make([]string, len(pairs))
	for i, kv := range pairs {
		parts[i] = kv.Key + "=" + kv.Value
	}
	return strings.Join(parts, ";")
}
