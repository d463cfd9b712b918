package pcm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// EncodeContainer wraps interleaved int16 PCM samples in a canonical
// 44-byte linear-PCM (RIFF/WAVE) container, for an arbitrary channel
// count and sample rate.
func EncodeContainer(samples []int16, sampleRate, channels int) []byte {
	dataBytes := len(samples) * 2
	blockAlign := channels * 2
	byteRate := sampleRate * blockAlign

	buf := new(bytes.Buffer)
	buf.Grow(44 + dataBytes)

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataBytes))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM format
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataBytes))
	binary.Write(buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// DecodeContainer parses a well-formed container produced by
// EncodeContainer (or any compliant encoder), accepting arbitrary chunk
// sequences: unknown chunks are skipped, with 2-byte alignment.
func DecodeContainer(data []byte) (samples []int16, sampleRate, channels int, err error) {
	r := bytes.NewReader(data)

	var riffTag [4]byte
	if _, err = io.ReadFull(r, riffTag[:]); err != nil {
		return nil, 0, 0, fmt.Errorf("pcm: reading RIFF tag: %w", err)
	}
	if string(riffTag[:]) != "RIFF" {
		return nil, 0, 0, fmt.Errorf("pcm: not a RIFF container")
	}

	var riffSize uint32
	if err = binary.Read(r, binary.LittleEndian, &riffSize); err != nil {
		return nil, 0, 0, fmt.Errorf("pcm: reading RIFF size: %w", err)
	}

	var waveTag [4]byte
	if _, err = io.ReadFull(r, waveTag[:]); err != nil {
		return nil, 0, 0, fmt.Errorf("pcm: reading WAVE tag: %w", err)
	}
	if string(waveTag[:]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("pcm: not a WAVE container")
	}

	var bitsPerSample uint16
	var haveFmt, haveData bool
	var dataBytes []byte

	for {
		var chunkID [4]byte
		if _, err = io.ReadFull(r, chunkID[:]); err != nil {
			break // end of stream: stop once chunks run out
		}
		var chunkSize uint32
		if err = binary.Read(r, binary.LittleEndian, &chunkSize); err != nil {
			return nil, 0, 0, fmt.Errorf("pcm: reading chunk size: %w", err)
		}

		body := make([]byte, chunkSize)
		if _, err = io.ReadFull(r, body); err != nil {
			return nil, 0, 0, fmt.Errorf("pcm: reading %q chunk body: %w", chunkID, err)
		}

		switch string(chunkID[:]) {
		case "fmt ":
			if len(body) < 16 {
				return nil, 0, 0, fmt.Errorf("pcm: fmt chunk too short")
			}
			channels = int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			dataBytes = body
			haveData = true
		}

		// Chunks are 2-byte aligned; consume the pad byte if present.
		if chunkSize%2 == 1 {
			var pad [1]byte
			io.ReadFull(r, pad[:])
		}
	}

	if !haveFmt || !haveData {
		return nil, 0, 0, fmt.Errorf("pcm: missing fmt or data chunk")
	}
	if bitsPerSample != 16 {
		return nil, 0, 0, fmt.Errorf("pcm: unsupported bits-per-sample %d", bitsPerSample)
	}

	samples = make([]int16, len(dataBytes)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(dataBytes[i*2 : i*2+2]))
	}

	return samples, sampleRate, channels, nil
}
