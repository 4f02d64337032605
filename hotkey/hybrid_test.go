package hotkey

import (
	"testing"
	"time"
)

func expectStart(t *testing.T, hy *Hybrid) {
	t.Helper()
	select {
	case <-hy.Start():
	case <-time.After(time.Second):
		t.Fatal("no start event")
	}
}

func expectStop(t *testing.T, hy *Hybrid) {
	t.Helper()
	select {
	case <-hy.StopChan():
	case <-time.After(time.Second):
		t.Fatal("no stop event")
	}
}

func expectNoStop(t *testing.T, hy *Hybrid, within time.Duration) {
	t.Helper()
	select {
	case <-hy.StopChan():
		t.Fatal("recording stopped early")
	case <-time.After(within):
	}
}

func TestHybridHoldStopsOnRelease(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	hy := NewHybrid(fk, threshold)

	fk.SimKeydown()
	expectStart(t, hy)

	time.Sleep(threshold + 20*time.Millisecond)
	if hy.IsToggle() {
		t.Error("hold past the threshold reported as a toggle")
	}
	fk.SimKeyup()
	expectStop(t, hy)
}

func TestHybridTapTogglesOn(t *testing.T) {
	fk := NewFake()
	hy := NewHybrid(fk, 200*time.Millisecond)

	fk.SimKeydown()
	expectStart(t, hy)
	fk.SimKeyup() // released inside the threshold
	time.Sleep(10 * time.Millisecond)
	if !hy.IsToggle() {
		t.Error("short tap did not enter toggle mode")
	}
	expectNoStop(t, hy, 50*time.Millisecond)

	// The next press, however long, ends the toggled recording.
	fk.SimKeydown()
	fk.SimKeyup()
	expectStop(t, hy)
	if hy.IsToggle() {
		t.Error("toggle flag survived the stop")
	}
}

func TestHybridAlternatingCycles(t *testing.T) {
	fk := NewFake()
	threshold := 50 * time.Millisecond
	hy := NewHybrid(fk, threshold)

	hold := func() {
		fk.SimKeydown()
		expectStart(t, hy)
		time.Sleep(threshold + 20*time.Millisecond)
		fk.SimKeyup()
		expectStop(t, hy)
	}
	tap := func() {
		fk.SimKeydown()
		expectStart(t, hy)
		fk.SimKeyup()
		time.Sleep(20 * time.Millisecond)
		fk.SimKeydown()
		fk.SimKeyup()
		expectStop(t, hy)
	}

	hold()
	tap()
	hold()
}
