package main

import (
	"testing"
	"time"

	"utter/capture"
	"utter/session"
	"utter/transcriber"
)

func waitRecState(t *testing.T, states <-chan session.Snapshot, want session.State) session.Snapshot {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case snap := <-states:
			if snap.State == want {
				return snap
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %q", want)
		}
	}
}

func newEscapeRecorder(t *testing.T, primary *transcriber.FakeProvider) (*session.Recorder, chan session.Snapshot) {
	t.Helper()
	pcm := make([]byte, 4096)
	states := make(chan session.Snapshot, 64)
	rec := session.New(capture.NewFakePCM(pcm, false), nil, primary, nil, session.Config{
		Capabilities: session.Capabilities{CanRecord: true},
		OnChange:     func(s session.Snapshot) { states <- s },
	})
	t.Cleanup(rec.Close)
	return rec, states
}

func TestEscapeAbortsRecordingWithoutTranscribing(t *testing.T) {
	primary := &transcriber.FakeProvider{ProviderName: "cloud", Text: "should not appear", Confidence: 0.9}
	rec, states := newEscapeRecorder(t, primary)

	rec.StartRecording()
	waitRecState(t, states, session.StateRecording)

	handleEscape(rec)
	snap := waitRecState(t, states, session.StateIdle)

	if snap.Transcript != "" {
		t.Errorf("transcript = %q, want empty after abort", snap.Transcript)
	}
	if primary.Calls() != 0 {
		t.Errorf("primary called %d times, want 0", primary.Calls())
	}
}

func TestEscapeClearsErrorWhenIdle(t *testing.T) {
	primary := &transcriber.FakeProvider{ProviderName: "cloud", Text: "hi", Confidence: 0.9}
	pcm := make([]byte, 4096)
	states := make(chan session.Snapshot, 64)
	fc := capture.NewFakePCM(pcm, false)
	fc.Mute = true
	rec := session.New(fc, nil, primary, nil, session.Config{
		Capabilities: session.Capabilities{CanRecord: true},
		OnChange:     func(s session.Snapshot) { states <- s },
	})
	t.Cleanup(rec.Close)

	rec.StartRecording()
	waitRecState(t, states, session.StateRecording)
	rec.StopRecording()
	waitRecState(t, states, session.StateError)

	handleEscape(rec)
	snap := waitRecState(t, states, session.StateIdle)
	if snap.Err != "" {
		t.Errorf("err = %q, want cleared", snap.Err)
	}
}
