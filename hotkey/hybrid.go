package hotkey

import (
	"sync/atomic"
	"time"
)

type Mode string

const (
	ModePTT    Mode = "ptt"
	ModeToggle Mode = "toggle"
)

// StartEvent signals that a new recording should begin.
type StartEvent struct {
	Mode Mode
}

// Hybrid layers tap-to-toggle on top of hold-to-talk using the same key
// combination. A press shorter than the long-press threshold toggles
// recording on until the next tap; a longer press records while held.
type Hybrid struct {
	startCh chan StartEvent
	stopCh  chan struct{}
	toggle  atomic.Bool
}

func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		startCh: make(chan StartEvent, 1),
		stopCh:  make(chan struct{}, 1),
	}
	go h.run(hk, longPress)
	return h
}

// Start signals when to begin recording.
func (h *Hybrid) Start() <-chan StartEvent { return h.startCh }

// StopChan signals when to stop recording, in both PTT and toggle modes.
func (h *Hybrid) StopChan() <-chan struct{} { return h.stopCh }

// IsToggle reports whether the current recording is toggle-mode (started
// by a short tap rather than a held key).
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		// Recording starts on press; the hold duration decides the mode.
		<-hk.Keydown()
		h.toggle.Store(false)
		h.startCh <- StartEvent{Mode: ModeToggle}

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			// Held past threshold: PTT, stop on release.
			<-hk.Keyup()
			h.fireStop()
			continue
		case <-hk.Keyup():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			h.toggle.Store(true)
		}

		// Toggled on; the next full press+release stops it.
		<-hk.Keydown()
		<-hk.Keyup()
		h.toggle.Store(false)
		h.fireStop()
	}
}

func (h *Hybrid) fireStop() {
	select {
	case h.stopCh <- struct{}{}:
	default:
	}
}
