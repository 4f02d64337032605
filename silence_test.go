package main

import "testing"

func newTestMonitor(toggle bool) *silenceMonitor {
	return newSilenceMonitor(func() bool { return toggle })
}

// drive feeds n uniform ticks and returns every non-None event in order.
func drive(m *silenceMonitor, speech bool, n int) []SilenceEvent {
	var evs []SilenceEvent
	for i := 0; i < n; i++ {
		if ev := m.Tick(speech); ev != SilenceNone {
			evs = append(evs, ev)
		}
	}
	return evs
}

func TestSilenceWarnTiming(t *testing.T) {
	m := newTestMonitor(false)
	warnTick := int(silenceWarnEvery / tickInterval)
	for i := 0; i < warnTick-1; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("event %d fired at tick %d, before the warn window closed", ev, i)
		}
	}
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("tick %d = %d, want SilenceWarn", warnTick, ev)
	}
}

func TestSilenceWarnFiresOnce(t *testing.T) {
	m := newTestMonitor(false)
	warns := 0
	for _, ev := range drive(m, false, 300) {
		if ev == SilenceWarn {
			warns++
		}
	}
	if warns != 1 {
		t.Fatalf("got %d warns over sustained silence, want exactly 1", warns)
	}
}

func TestSpeechNeverWarns(t *testing.T) {
	m := newTestMonitor(false)
	if evs := drive(m, true, 200); len(evs) != 0 {
		t.Fatalf("unexpected events while speaking: %v", evs)
	}
}

func TestWarnClearsWhenSpeechResumes(t *testing.T) {
	m := newTestMonitor(false)
	drive(m, false, 80)
	for _, ev := range drive(m, true, 80) {
		if ev == SilenceWarnClear {
			return
		}
	}
	t.Fatal("warning never cleared after speech resumed")
}

func TestSparseNoiseDoesNotClearWarn(t *testing.T) {
	m := newTestMonitor(false)
	drive(m, false, 80)

	// One voiced tick in ten stays under the clear ratio; stray VAD
	// positives should not dismiss the warning.
	for i := 0; i < 80; i++ {
		if ev := m.Tick(i%10 == 0); ev == SilenceWarnClear {
			t.Fatalf("warning cleared at tick %d with only 10%% speech", i)
		}
	}
}

func TestToggleModeRepeatsWarn(t *testing.T) {
	m := newTestMonitor(true)
	drive(m, false, 80)
	for _, ev := range drive(m, false, 100) {
		if ev == SilenceRepeat {
			return
		}
	}
	t.Fatal("no repeat nudge in toggle mode")
}

func TestToggleModeAutoCloses(t *testing.T) {
	m := newTestMonitor(true)
	for i := 0; i < 400; i++ {
		ev := m.Tick(false)
		if ev == SilenceAutoClose {
			return
		}
		// Once the close window has filled, auto-close outranks
		// another repeat nudge.
		if i >= 300 && ev == SilenceRepeat {
			t.Fatalf("repeat at tick %d where auto-close was due", i)
		}
	}
	t.Fatal("toggle-mode recording never auto-closed")
}

func TestHeldModeNeverAutoClosesOrRepeats(t *testing.T) {
	m := newTestMonitor(false)
	for i := 0; i < 400; i++ {
		switch m.Tick(false) {
		case SilenceAutoClose:
			t.Fatalf("auto-close at tick %d while the key is held", i)
		case SilenceRepeat:
			t.Fatalf("repeat at tick %d while the key is held", i)
		}
	}
}

func TestSteadySpeechPreventsAutoClose(t *testing.T) {
	m := newTestMonitor(true)
	for i := 0; i < 500; i++ {
		if ev := m.Tick(i%10 < 7); ev == SilenceAutoClose {
			t.Fatalf("auto-close at tick %d despite 70%% speech", i)
		}
	}
}
