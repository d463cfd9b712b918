// Package tools implements the tool executor: a closed dispatch table
// of the device tools the LLM may invoke, with strict argument
// validation (no partial mutation on error) and canonical-string
// logging of every call. Each tool is one small handler looked up by
// string name, in the same spirit as a provider registry.
package tools

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/naptick/voicecore/internal/logging"
	"github.com/naptick/voicecore/pkg/devicestate"
)

// LEDDriver is the external collaborator that actually drives hardware;
// the executor only updates devicestate and forwards to it.
type LEDDriver interface {
	SetEnabled(enabled bool) error
	SetColor(r, g, b uint8) error
}

// Result is either a canonical key/value document (success) or an
// error string.
type Result struct {
	Values map[string]string
	Err    string
}

// Summary renders a Result as a single canonical string, bounded to
// 512 bytes so it always fits in a tool-call reply back to the LLM.
func (r Result) Summary() string {
	var s string
	if r.Err != "" {
		s = "error=" + r.Err
	} else {
		names := make([]string, 0, len(r.Values))
		for k := range r.Values {
			names = append(names, k)
		}
		sort.Strings(names)
		for i, k := range names {
			if i > 0 {
				s += ";"
			}
			s += k + "=" + r.Values[k]
		}
	}
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}

func ok(kv ...string) Result {
	values := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		values[kv[i]] = kv[i+1]
	}
	return Result{Values: values}
}

func fail(format string, args ...interface{}) Result {
	return Result{Err: fmt.Sprintf(format, args...)}
}

// Executor dispatches the closed set of named tools.
type Executor struct {
	store  *devicestate.Store
	leds   LEDDriver
	logger logging.Logger
}

func New(store *devicestate.Store, leds LEDDriver, logger logging.Logger) *Executor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Executor{store: store, leds: leds, logger: logger}
}

// Call dispatches name against the closed tool table. Unknown names
// return a well-formed error result, never a panic.
func (e *Executor) Call(name string, args map[string]string) Result {
	e.logger.Info("tool call", "name", name, "args", canonicalArgs(args))

	switch name {
	case "get_device_state":
		return e.getDeviceState()
	case "get_health":
		return e.getHealth()
	case "get_temperature":
		return e.getTemperature()
	case "get_sensors":
		return e.getSensors()
	case "set_leds":
		return e.setLEDs(args)
	case "set_led_color":
		return e.setLEDColor(args)
	case "set_audio_mute":
		return e.setAudioMute(args)
	default:
		return fail("Unknown function: %s", name)
	}
}

func (e *Executor) getDeviceState() Result {
	var kv []string
	for _, pair := range e.store.Canonical() {
		kv = append(kv, pair.Key, pair.Value)
	}
	return ok(kv...)
}

func (e *Executor) getHealth() Result {
	_, freeHeap, minHeap := e.store.DeviceSnapshot()
	sensors := e.store.SensorsSnapshot()
	active := 0
	for _, r := range sensors {
		if r.Available {
			active++
		}
	}
	status := "ok"
	if freeHeap > 0 && freeHeap < minHeap/2 {
		status = "low_memory"
	}
	return ok(
		"status", status,
		"free_heap", fmt.Sprintf("%d", freeHeap),
		"min_free_heap", fmt.Sprintf("%d", minHeap),
		"sensors_active", fmt.Sprintf("%d", active),
	)
}

func (e *Executor) getTemperature() Result {
	sensors := e.store.SensorsSnapshot()
	temp, hasTemp := sensors["temperature"]
	humidity, hasHumidity := sensors["humidity"]
	if !hasTemp || !temp.Available {
		return fail("temperature sensor unavailable")
	}
	result := ok(
		"temperature_c", fmt.Sprintf("%g", temp.Value),
		"source", "sensors.temperature",
	)
	if hasHumidity && humidity.Available {
		result.Values["humidity_rh"] = fmt.Sprintf("%g", humidity.Value)
	}
	return result
}

func (e *Executor) getSensors() Result {
	sensors := e.store.SensorsSnapshot()
	names := make([]string, 0, len(sensors))
	for n := range sensors {
		names = append(names, n)
	}
	sort.Strings(names)

	values := make(map[string]string, len(names)*3)
	for _, n := range names {
		r := sensors[n]
		values[n+".available"] = fmt.Sprintf("%t", r.Available)
		values[n+".value"] = fmt.Sprintf("%g", r.Value)
		values[n+".unit"] = r.Unit
	}
	return Result{Values: values}
}

func (e *Executor) setLEDs(args map[string]string) Result {
	raw, present := args["enabled"]
	if !present {
		return fail("missing required field: enabled")
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return fail("enabled must be a boolean, got %q", raw)
	}

	if e.leds != nil {
		if err := e.leds.SetEnabled(enabled); err != nil {
			return fail("led driver error: %v", err)
		}
	}
	e.store.SetLEDsEnabled(enabled)
	return ok("success", "true", "message", fmt.Sprintf("leds enabled=%t", enabled))
}

func (e *Executor) setLEDColor(args map[string]string) Result {
	r, err := parseByteChannel(args, "red")
	if err != nil {
		return fail(err.Error())
	}
	g, err := parseByteChannel(args, "green")
	if err != nil {
		return fail(err.Error())
	}
	b, err := parseByteChannel(args, "blue")
	if err != nil {
		return fail(err.Error())
	}

	if e.leds != nil {
		if err := e.leds.SetColor(r, g, b); err != nil {
			return fail("led driver error: %v", err)
		}
	}
	e.store.SetLEDsEnabled(true)
	return ok("success", "true", "message", fmt.Sprintf("led color set to (%d,%d,%d)", r, g, b))
}

func parseByteChannel(args map[string]string, field string) (uint8, error) {
	raw, present := args[field]
	if !present {
		return 0, fmt.Errorf("missing required field: %s", field)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", field, raw)
	}
	if n < 0 || n > 255 {
		return 0, fmt.Errorf("%s must be in range 0-255, got %d", field, n)
	}
	return uint8(n), nil
}

func (e *Executor) setAudioMute(args map[string]string) Result {
	raw, present := args["muted"]
	if !present {
		return fail("missing required field: muted")
	}
	muted, err := strconv.ParseBool(raw)
	if err != nil {
		return fail("muted must be a boolean, got %q", raw)
	}
	e.store.SetAudioMuted(muted)
	return ok("success", "true", "message", fmt.Sprintf("audio muted=%t", muted))
}

func canonicalArgs(args map[string]string) string {
	names := make([]string, 0, len(args))
	for k := range args {
		names = append(names, k)
	}
	sort.Strings(names)
	out := ""
	for i, k := range names {
		if i > 0 {
			out += ";"
		}
		out += k + "=" + args[k]
	}
	return out
}
