package pcm

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestContainerRoundTrip(t *testing.T) {
	cases := []struct {
		rate     int
		channels int
		samples  []int16
	}{
		{16000, 1, []int16{0, 1, -1, 32767, -32768}},
		{44100, 2, []int16{100, -100, 200, -200, 300, -300}},
		{8000, 1, []int16{}},
	}

	for _, tc := range cases {
		encoded := EncodeContainer(tc.samples, tc.rate, tc.channels)
		gotSamples, gotRate, gotChannels, err := DecodeContainer(encoded)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if gotRate != tc.rate || gotChannels != tc.channels {
			t.Fatalf("got rate=%d channels=%d, want rate=%d channels=%d", gotRate, gotChannels, tc.rate, tc.channels)
		}
		if len(gotSamples) != len(tc.samples) {
			t.Fatalf("got %d samples, want %d", len(gotSamples), len(tc.samples))
		}
		for i := range tc.samples {
			if gotSamples[i] != tc.samples[i] {
				t.Errorf("sample %d: got %d want %d", i, gotSamples[i], tc.samples[i])
			}
		}
	}
}

func TestDecodeContainerSkipsUnknownChunks(t *testing.T) {
	samples := []int16{10, -10, 20, -20}
	encoded := EncodeContainer(samples, 16000, 1)

	// Splice an odd-length unknown "LIST" chunk right after the RIFF/WAVE
	// header, before fmt, to exercise the skip-and-2-byte-align path.
	var extra bytes.Buffer
	extra.WriteString("LIST")
	binary.Write(&extra, binary.LittleEndian, uint32(3))
	extra.WriteString("xyz")
	extra.WriteByte(0) // pad byte for odd length

	spliced := make([]byte, 0, len(encoded)+extra.Len())
	spliced = append(spliced, encoded[:12]...) // RIFF size + WAVE tag
	spliced = append(spliced, extra.Bytes()...)
	spliced = append(spliced, encoded[12:]...)

	// Fix up the RIFF size field for the inserted bytes.
	binary.LittleEndian.PutUint32(spliced[4:8], uint32(len(spliced)-8))

	gotSamples, gotRate, gotChannels, err := DecodeContainer(spliced)
	if err != nil {
		t.Fatalf("decode with unknown chunk: %v", err)
	}
	if gotRate != 16000 || gotChannels != 1 {
		t.Fatalf("got rate=%d channels=%d", gotRate, gotChannels)
	}
	if len(gotSamples) != len(samples) {
		t.Fatalf("got %d samples, want %d", len(gotSamples), len(samples))
	}
}

func TestDecodeContainerRejectsBadTag(t *testing.T) {
	if _, _, _, err := DecodeContainer([]byte("not a riff file at all")); err == nil {
		t.Fatal("expected error for non-RIFF input")
	}
}
