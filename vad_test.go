package main

import (
	"encoding/binary"
	"math"
	"testing"

	"utter/encoder"
)

func sineWave(freq float64, durationMs int) []byte {
	n := encoder.SampleRate * durationMs / 1000
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		s := int16(16000 * math.Sin(2*math.Pi*freq*float64(i)/encoder.SampleRate))
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

func silentPCM(durationMs int) []byte {
	return make([]byte, encoder.SampleRate*durationMs/1000*2)
}

func mustVAD(t *testing.T) *vadProcessor {
	t.Helper()
	vp, err := newVADProcessor()
	if err != nil {
		t.Fatal(err)
	}
	return vp
}

func TestVADToneMayCountAsSpeech(t *testing.T) {
	vp := mustVAD(t)
	vp.Process(sineWave(440, 200))
	if !vp.VoiceDetected() {
		// WebRTC VAD is trained on speech; a pure tone is a legitimate miss.
		t.Skip("pure tone not classified as speech")
	}
}

func TestVADIgnoresSilence(t *testing.T) {
	vp := mustVAD(t)
	vp.Process(silentPCM(200))
	if vp.VoiceDetected() {
		t.Error("voice reported on pure silence")
	}
	if !vp.LastVoiceTime().IsZero() {
		t.Error("LastVoiceTime set on pure silence")
	}
}

func TestVADBuffersUnalignedChunks(t *testing.T) {
	vp := mustVAD(t)
	// Chunk boundaries from the capture layer have no relation to the
	// 640-byte VAD frame size.
	silence := silentPCM(200)
	for i := 0; i < len(silence); i += 100 {
		end := min(i+100, len(silence))
		vp.Process(silence[i:end])
	}
	if vp.VoiceDetected() {
		t.Error("voice reported on silence fed in unaligned chunks")
	}
}

func TestVADResetClearsState(t *testing.T) {
	vp := mustVAD(t)
	vp.Process(sineWave(440, 200))
	vp.Reset()
	if vp.VoiceDetected() {
		t.Error("voice flag survived Reset")
	}
	if !vp.LastVoiceTime().IsZero() {
		t.Error("LastVoiceTime survived Reset")
	}
}

func TestVADTickWindowIsPerCall(t *testing.T) {
	vp := mustVAD(t)
	vp.Process(silentPCM(200))
	if vp.HasSpeechTick() {
		t.Error("speech reported for a silent tick window")
	}
	// Nothing processed since the last call: still no speech.
	if vp.HasSpeechTick() {
		t.Error("speech reported for an empty tick window")
	}
}
