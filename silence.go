package main

import "time"

const (
	tickInterval        = 100 * time.Millisecond
	silenceWarnEvery    = 8 * time.Second
	silenceAutoCloseDur = 30 * time.Second
	speechMinRatio      = 0.10
	speechClearRatio    = 0.25 // clearing needs more speech than warning did (hysteresis)
)

type SilenceEvent int

const (
	SilenceNone      SilenceEvent = iota
	SilenceWarn                   // sustained silence, first notice
	SilenceWarnClear              // the speaker came back
	SilenceRepeat                 // still silent, nudge again
	SilenceAutoClose              // give up and stop the recording (toggle mode only)
)

// silenceMonitor tracks per-tick voice activity over a sliding window and
// decides when the user has gone quiet. One monitor lives for exactly one
// recording.
type silenceMonitor struct {
	warnTicks  int
	closeTicks int

	isToggle func() bool

	ticks        int
	window       []bool
	speechTicks  int
	warned       bool
	lastWarnTick int
}

func newSilenceMonitor(isToggle func() bool) *silenceMonitor {
	closeTicks := int(silenceAutoCloseDur / tickInterval)
	return &silenceMonitor{
		warnTicks:  int(silenceWarnEvery / tickInterval),
		closeTicks: closeTicks,
		isToggle:   isToggle,
		window:     make([]bool, closeTicks),
	}
}

// recentSpeechRatio is the voiced fraction of the last n ticks. Before n
// ticks have elapsed it only looks at what exists, and an empty history
// counts as speech so a fresh recording never warns instantly.
func (m *silenceMonitor) recentSpeechRatio(n int) float64 {
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	voiced := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.closeTicks)%m.closeTicks] {
			voiced++
		}
	}
	return float64(voiced) / float64(n)
}

// Tick records one VAD observation and reports what, if anything, the
// caller should do about it.
func (m *silenceMonitor) Tick(hasSpeech bool) SilenceEvent {
	idx := m.ticks % m.closeTicks
	if m.ticks >= m.closeTicks && m.window[idx] {
		m.speechTicks--
	}
	m.window[idx] = hasSpeech
	if hasSpeech {
		m.speechTicks++
	}
	m.ticks++

	r := m.recentSpeechRatio(m.warnTicks)

	if m.ticks >= m.warnTicks && r < speechMinRatio && !m.warned {
		m.warned = true
		m.lastWarnTick = m.ticks
		return SilenceWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return SilenceWarnClear
	}

	// Held-key recordings stop when the key is released; only toggled
	// recordings need the monitor to end them.
	if !m.isToggle() {
		return SilenceNone
	}

	if m.ticks >= m.closeTicks && float64(m.speechTicks)/float64(m.closeTicks) < speechMinRatio {
		return SilenceAutoClose
	}

	if m.warned && m.ticks-m.lastWarnTick >= m.warnTicks {
		m.lastWarnTick = m.ticks
		return SilenceRepeat
	}

	return SilenceNone
}
