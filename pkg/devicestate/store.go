// Package devicestate implements the process-wide device-state store: a
// struct-of-structs with one sync.RWMutex per section, so that each
// section publishes atomically while a reader may observe a mix of
// old/new values across sections. Canonical serialization walks
// sections and keys in a fixed order to keep equality and checksums
// meaningful.
package devicestate

import "sync"

// DeviceSection holds identity and memory telemetry.
type DeviceSection struct {
	mu        sync.RWMutex
	name      string
	freeHeap  uint64
	minHeap   uint64
}

// WifiSection holds Wi-Fi link telemetry.
type WifiSection struct {
	mu        sync.RWMutex
	connected bool
	ssid      string
	rssi      int
}

// LEDSection holds the LED subsystem's published state.
type LEDSection struct {
	mu         sync.RWMutex
	enabled    bool
	count      int
	brightness int
	state      string
}

// AudioSection holds playback/mute state.
type AudioSection struct {
	mu      sync.RWMutex
	playing bool
	muted   bool
}

// LinkSection holds the cloud connectivity flag.
type LinkSection struct {
	mu        sync.RWMutex
	connected bool
}

// SensorReading is one sensor's availability plus its last reading.
type SensorReading struct {
	Available bool
	Value     float64
	Unit      string
}

// SensorsSection holds sensor readings keyed by sensor name; the set of
// names grows as SetSensorReading is called with new names.
type SensorsSection struct {
	mu       sync.RWMutex
	readings map[string]SensorReading
}

// Store is the process-wide device-state document.
type Store struct {
	Device  DeviceSection
	Wifi    WifiSection
	LEDs    LEDSection
	Audio   AudioSection
	Link    LinkSection
	Sensors SensorsSection
}

// New builds an empty Store with sane zero-value defaults.
func New(deviceName string, ledCount int) *Store {
	s := &Store{}
	s.Device.name = deviceName
	s.LEDs.count = ledCount
	s.LEDs.brightness = 128
	s.LEDs.state = "idle"
	s.Sensors.readings = make(map[string]SensorReading)
	return s
}

// --- Device ---

func (s *Store) SetDeviceHeap(freeHeap, minHeap uint64) {
	s.Device.mu.Lock()
	defer s.Device.mu.Unlock()
	s.Device.freeHeap = freeHeap
	if s.Device.minHeap == 0 || minHeap < s.Device.minHeap {
		s.Device.minHeap = minHeap
	}
}

func (s *Store) DeviceSnapshot() (name string, freeHeap, minHeap uint64) {
	s.Device.mu.RLock()
	defer s.Device.mu.RUnlock()
	return s.Device.name, s.Device.freeHeap, s.Device.minHeap
}

// --- Wifi ---

func (s *Store) SetWifi(connected bool, ssid string, rssi int) {
	s.Wifi.mu.Lock()
	defer s.Wifi.mu.Unlock()
	s.Wifi.connected = connected
	s.Wifi.ssid = ssid
	s.Wifi.rssi = rssi
}

func (s *Store) WifiSnapshot() (connected bool, ssid string, rssi int) {
	s.Wifi.mu.RLock()
	defer s.Wifi.mu.RUnlock()
	return s.Wifi.connected, s.Wifi.ssid, s.Wifi.rssi
}

// --- LEDs ---

func (s *Store) SetLEDsEnabled(enabled bool) {
	s.LEDs.mu.Lock()
	defer s.LEDs.mu.Unlock()
	s.LEDs.enabled = enabled
}

func (s *Store) SetLEDState(state string) {
	s.LEDs.mu.Lock()
	defer s.LEDs.mu.Unlock()
	s.LEDs.state = state
	s.LEDs.enabled = true
}

func (s *Store) LEDsSnapshot() (enabled bool, count, brightness int, state string) {
	s.LEDs.mu.RLock()
	defer s.LEDs.mu.RUnlock()
	return s.LEDs.enabled, s.LEDs.count, s.LEDs.brightness, s.LEDs.state
}

// --- Audio ---

func (s *Store) SetAudioPlaying(playing bool) {
	s.Audio.mu.Lock()
	defer s.Audio.mu.Unlock()
	s.Audio.playing = playing
}

func (s *Store) SetAudioMuted(muted bool) {
	s.Audio.mu.Lock()
	defer s.Audio.mu.Unlock()
	s.Audio.muted = muted
}

func (s *Store) AudioSnapshot() (playing, muted bool) {
	s.Audio.mu.RLock()
	defer s.Audio.mu.RUnlock()
	return s.Audio.playing, s.Audio.muted
}

// --- Link ---

func (s *Store) SetLinkConnected(connected bool) {
	s.Link.mu.Lock()
	defer s.Link.mu.Unlock()
	s.Link.connected = connected
}

func (s *Store) LinkSnapshot() (connected bool) {
	s.Link.mu.RLock()
	defer s.Link.mu.RUnlock()
	return s.Link.connected
}

// --- Sensors ---

func (s *Store) SetSensorReading(name string, reading SensorReading) {
	s.Sensors.mu.Lock()
	defer s.Sensors.mu.Unlock()
	s.Sensors.readings[name] = reading
}

func (s *Store) SensorsSnapshot() map[string]SensorReading {
	s.Sensors.mu.RLock()
	defer s.Sensors.mu.RUnlock()
	out := make(map[string]SensorReading, len(s.Sensors.readings))
	for k, v := range s.Sensors.readings {
		out[k] = v
	}
	return out
}
