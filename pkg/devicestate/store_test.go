package devicestate

import "testing"

func TestCanonicalIsStableOrder(t *testing.T) {
	s := New("naptick-01", 12)
	s.SetSensorReading("temp", SensorReading{Available: true, Value: 21.5, Unit: "c"})
	s.SetSensorReading("humidity", SensorReading{Available: true, Value: 40, Unit: "rh"})

	a := s.CanonicalString()
	b := s.CanonicalString()
	if a != b {
		t.Fatalf("canonical string not stable across calls:\n%s\n%s", a, b)
	}

	// humidity sorts before temp alphabetically regardless of insertion order
	s2 := New("naptick-01", 12)
	s2.SetSensorReading("humidity", SensorReading{Available: true, Value: 40, Unit: "rh"})
	s2.SetSensorReading("temp", SensorReading{Available: true, Value: 21.5, Unit: "c"})
	if s.CanonicalString() != s2.CanonicalString() {
		t.Fatal("canonical string depends on insertion order, expected key-sorted stability")
	}
}

func TestSectionsPublishIndependently(t *testing.T) {
	s := New("naptick-01", 12)
	s.SetWifi(true, "home", -40)
	s.SetAudioMuted(true)

	connected, ssid, rssi := s.WifiSnapshot()
	if !connected || ssid != "home" || rssi != -40 {
		t.Fatalf("unexpected wifi snapshot: %v %v %v", connected, ssid, rssi)
	}
	_, muted := s.AudioSnapshot()
	if !muted {
		t.Fatal("expected audio muted")
	}
}
