package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"utter/session"
)

// TUI message types
type StateMsg struct {
	State session.State
	Err   string
}
type TranscriptionMsg struct {
	Text       string
	Confidence float64
	Count      int
	Copied     bool
}
type AudioLevelMsg struct{ Level float64 }
type RecordingTickMsg struct{ Duration float64 }
type ModeLineMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type NoVoiceWarningMsg struct{}
type VoiceClearedMsg struct{}
type ProviderHealthMsg struct{ OK bool }
type tickMsg time.Time

var (
	tuiProgram   *tea.Program
	tuiMu        sync.Mutex
	tuiReady     = make(chan struct{})
	tuiReadyOnce sync.Once
)

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

var (
	styleRec       = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleStandby   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleRequest   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	styleProcess   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	styleWarn      = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleMeter     = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	styleMeterBG   = lipgloss.NewStyle().Foreground(lipgloss.Color("236"))
	styleDim       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleFaint     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleHelp      = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpBold  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleText      = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleTitle     = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	styleClipboard = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

type tuiModel struct {
	state             session.State
	errMsg            string
	frame             int
	recordingDuration float64
	audioLevel        float64
	peakLevel         float64
	noVoice           bool
	providerDown      bool
	width, height     int
	modeLine          string
	deviceLine        string
	msgCount          int
	lastText          string
	lastConfidence    float64
	copiedToClipboard bool
}

func NewTUIProgram() *tea.Program {
	m := tuiModel{state: session.StateIdle}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	tuiReadyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "ctrl+g":
			select {
			case deviceSelectChan <- struct{}{}:
			default:
			}
		case "esc":
			select {
			case clearChan <- struct{}{}:
			default:
			}
			m.lastText = ""
			m.msgCount = 0
		}

	case tickMsg:
		m.frame++
		return m, tuiTick()

	case StateMsg:
		prev := m.state
		m.state = msg.State
		m.errMsg = msg.Err
		if msg.State == session.StateRecording && prev != session.StateRecording {
			m.recordingDuration = 0
			m.audioLevel = 0
			m.peakLevel = 0
			m.noVoice = false
		}
		if msg.State != session.StateRecording {
			m.audioLevel = 0
			m.noVoice = false
		}

	case RecordingTickMsg:
		m.recordingDuration = msg.Duration

	case AudioLevelMsg:
		if m.state == session.StateRecording {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
			if msg.Level > m.peakLevel {
				m.peakLevel = msg.Level
			}
		}

	case TranscriptionMsg:
		m.msgCount = msg.Count
		m.lastText = msg.Text
		m.lastConfidence = msg.Confidence
		m.copiedToClipboard = msg.Copied

	case NoVoiceWarningMsg:
		m.noVoice = true

	case VoiceClearedMsg:
		m.noVoice = false

	case ProviderHealthMsg:
		m.providerDown = !msg.OK

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

func (m tuiModel) statusLine() string {
	switch m.state {
	case session.StateRequesting:
		return styleRequest.Render("◍ requesting microphone...")
	case session.StateRecording:
		return styleRec.Render(fmt.Sprintf("● REC %.1fs", m.recordingDuration))
	case session.StateProcessing:
		spin := spinnerFrames[m.frame%len(spinnerFrames)]
		return styleProcess.Render(spin + " transcribing...")
	case session.StateError:
		return styleError.Render("✗ " + m.errMsg)
	default:
		return styleStandby.Render("○ STANDBY")
	}
}

func (m tuiModel) meter() string {
	const width = 30
	level := m.audioLevel * 8
	if level > 1 {
		level = 1
	}
	filled := int(level * width)
	return styleMeter.Render(strings.Repeat("█", filled)) +
		styleMeterBG.Render(strings.Repeat("░", width-filled))
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string
	lines = append(lines, "")
	lines = append(lines, " "+m.statusLine())

	if m.state == session.StateRecording {
		lines = append(lines, " "+m.meter())
		if m.noVoice {
			lines = append(lines, " "+styleWarn.Render("⚠ no voice detected"))
		}
	}

	if m.modeLine != "" {
		mode := m.modeLine
		if m.providerDown {
			mode += " " + styleWarn.Render("(provider unreachable)")
		}
		lines = append(lines, " "+styleDim.Render(mode))
	}
	if m.deviceLine != "" {
		lines = append(lines, " "+styleFaint.Render(m.deviceLine))
	}

	lines = append(lines, "")

	wrapWidth := m.width - 4
	if wrapWidth < 10 {
		wrapWidth = 10
	}
	if m.lastText != "" {
		title := fmt.Sprintf("Last transcription (#%d, conf %.2f)", m.msgCount, m.lastConfidence)
		lines = append(lines, " "+styleTitle.Render(title))
		wrapped := wrapText(m.lastText, wrapWidth)
		for i, line := range wrapped {
			out := " " + styleText.Render(line)
			if i == len(wrapped)-1 && m.copiedToClipboard {
				out += " " + styleClipboard.Render("[✓ copied]")
			}
			lines = append(lines, out)
		}
	} else {
		lines = append(lines, " "+styleFaint.Render("No transcriptions yet"))
	}

	lines = append(lines, "")
	lines = append(lines, " "+styleHelpBold.Render("Ctrl+Shift+Space")+styleHelp.Render(" to record · esc clear · ctrl+g mic · ctrl+c quit"))
	lines = append(lines, " "+styleHelp.Render("utter "+version))

	for len(lines) < m.height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:m.height], "\n")
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
