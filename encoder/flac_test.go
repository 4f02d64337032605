package encoder

import (
	"encoding/binary"
	"math"
	"testing"
)

func sinePCM(seconds float64, freq float64) []byte {
	n := int(seconds * SampleRate)
	pcm := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / SampleRate
		s := int16(math.Sin(2*math.Pi*freq*t) * 16000)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(s))
	}
	return pcm
}

func TestEncode(t *testing.T) {
	pcm := sinePCM(0.5, 440)
	flacData, err := Encode(pcm)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(flacData) < 4 || string(flacData[:4]) != "fLaC" {
		t.Fatal("output does not start with FLAC magic")
	}
	if len(flacData) >= len(pcm) {
		t.Logf("warning: no compression (%d raw, %d flac)", len(pcm), len(flacData))
	}
}

func TestFlacEncoderEmpty(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close on empty encoder: %v", err)
	}
	if enc.TotalFrames() != 0 {
		t.Errorf("TotalFrames = %d, want 0", enc.TotalFrames())
	}
	if len(enc.Bytes()) == 0 {
		t.Error("expected non-empty FLAC output (at least header)")
	}
}

func TestFlacEncoderPartialBlock(t *testing.T) {
	enc, err := NewFlac()
	if err != nil {
		t.Fatalf("NewFlac: %v", err)
	}

	partial := make([]int16, BlockSize/4)
	for i := range partial {
		partial[i] = int16(i % 1000)
	}

	if err := enc.EncodeBlock(partial); err != nil {
		t.Fatalf("EncodeBlock partial: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if enc.TotalFrames() != uint64(len(partial)) {
		t.Errorf("TotalFrames = %d, want %d", enc.TotalFrames(), len(partial))
	}
}

func TestEncodeOddLength(t *testing.T) {
	// Trailing odd byte is dropped rather than corrupting a sample.
	pcm := append(sinePCM(0.1, 300), 0x7f)
	if _, err := Encode(pcm); err != nil {
		t.Fatalf("Encode odd-length: %v", err)
	}
}
