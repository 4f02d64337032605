package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"utter/beep"
	"utter/capture"
	"utter/clipboard"
	"utter/hotkey"
	"utter/log"
	"utter/session"
	"utter/shutdown"
	"utter/transcriber"
)

var version = "dev"

var autoPaste bool

var transcriptionCount atomic.Int64

// TUI-to-event-loop channels.
var (
	deviceSelectChan = make(chan struct{}, 1)
	clearChan        = make(chan struct{}, 1)
)

var shutdownOnce sync.Once

func gracefulShutdown() {
	shutdownOnce.Do(func() {
		if n := transcriptionCount.Load(); n > 0 {
			log.SessionEnd(int(n))
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func deviceLineText(dev *capture.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if capture.IsBluetooth(dev.Name) {
			suffix = " (BT!)"
		}
	}
	return "mic: " + name + suffix + " (ctrl+g)"
}

func modeLineText(primary transcriber.Provider, fallback transcriber.Fallback) string {
	label := primary.Name()
	if lang := primary.GetLanguage(); lang != "" {
		label += " (" + lang + ")"
	}
	if fallback != nil && fallback.Available() {
		label += " + " + fallback.Name()
	}
	return "[" + label + "]"
}

func run() {
	autoPasteFlag := flag.Bool("autopaste", true, "Auto-paste to focused window after transcription")
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	langFlag := flag.String("lang", "en", "Language code for transcription (e.g., en, es, fr). Empty = auto-detect")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	thresholdFlag := flag.Float64("threshold", session.DefaultConfidenceThreshold, "Minimum confidence to accept the primary transcript")
	maxDurFlag := flag.Duration("maxdur", session.DefaultMaxDuration, "Maximum recording duration")
	whisperBinFlag := flag.String("whisper-bin", "whisper-cli", "whisper.cpp binary used as on-device fallback")
	whisperModelFlag := flag.String("whisper-model", os.Getenv("WHISPER_MODEL"), "Path to the whisper.cpp model file")
	fallbackTimeoutFlag := flag.Duration("fallback-timeout", transcriber.DefaultLocalTimeout, "Time budget for the on-device fallback")
	hybridFlag := flag.Bool("hybrid", false, "Enable hybrid tap+hold recording mode")
	longPressFlag := flag.Duration("longpress", 350*time.Millisecond, "Long-press threshold for PTT vs tap (e.g., 350ms)")
	testFlag := flag.Bool("test", false, "Test mode (headless, stdin-driven)")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *versionFlag {
		fmt.Printf("utter %s\n", version)
		os.Exit(0)
	}

	autoPaste = *autoPasteFlag

	primary, err := transcriber.New()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if *langFlag != "" {
		primary.SetLanguage(*langFlag)
	}

	local := transcriber.NewLocal(*whisperBinFlag, *whisperModelFlag, *fallbackTimeoutFlag)
	if *langFlag != "" {
		local.SetLanguage(*langFlag)
	}
	var fallback transcriber.Fallback = local

	devCtx, devErr := capture.NewContext()
	caps := session.Capabilities{
		CanRecord:             devErr == nil,
		CanFallbackTranscribe: local.Available(),
	}
	if devErr != nil {
		log.Errorf("audio context init error: %v", devErr)
		fmt.Fprintf(os.Stderr, "Warning: audio unavailable: %v\n", devErr)
	} else {
		defer devCtx.Close()
	}

	// Resolve -setup into -device early (before daemonization)
	if *setupFlag && *deviceFlag == "" && devCtx != nil {
		if dev, _ := capture.SelectDevice(devCtx); dev != nil {
			*deviceFlag = dev.Name
		}
	}

	// Daemonize in non-TUI mode: re-exec in background, return shell prompt
	if !*tuiFlag && !*testFlag && os.Getenv("_UTTER_BG") == "" {
		args := os.Args[1:]
		if *deviceFlag != "" {
			args = append(args, "-device", *deviceFlag)
		}
		exe, _ := os.Executable()
		cmd := exec.Command(exe, args...)
		cmd.Env = append(os.Environ(), "_UTTER_BG=1")
		devnull, _ := os.Open(os.DevNull)
		cmd.Stdin, cmd.Stdout, cmd.Stderr = devnull, devnull, devnull
		if err := cmd.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if !*tuiFlag {
		if err := log.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
		} else {
			log.SessionStart(primary.Name(), local.Name())
		}
	}

	if *testFlag {
		args := flag.Args()
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Usage: utter -test <wav-file>")
			os.Exit(1)
		}
		runTestMode(args[0], primary, fallback, caps, *maxDurFlag, *thresholdFlag)
		return
	}

	if autoPaste {
		if err := clipboard.Init(); err != nil {
			fmt.Printf("Warning: paste init failed: %v\n", err)
			fmt.Println("Fix with: sudo chmod 660 /dev/uinput && sudo chgrp input /dev/uinput")
		}
	}

	var selectedDevice *capture.DeviceInfo
	if devCtx != nil {
		if *deviceFlag != "" {
			if devices, err := devCtx.Devices(); err == nil {
				for i := range devices {
					if devices[i].Name == *deviceFlag {
						selectedDevice = &devices[i]
						break
					}
				}
			}
		} else if *setupFlag {
			selectedDevice, err = capture.SelectDevice(devCtx)
			if err != nil {
				log.Warnf("device selection failed: %v", err)
				fmt.Printf("Warning: device selection failed: %v\n", err)
				fmt.Println("Falling back to default device")
				selectedDevice = nil
			}
		}
	}

	// Start TUI
	if !*tuiFlag {
		tuiReadyOnce.Do(func() { close(tuiReady) })
	} else {
		tuiMu.Lock()
		tuiProgram = NewTUIProgram()
		tuiMu.Unlock()

		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				log.Errorf("TUI error: %v", err)
				os.Exit(1)
			}
			gracefulShutdown()
		}()

		<-tuiReady
	}

	vp, err := newVADProcessor()
	if err != nil {
		log.Warnf("VAD init failed: %v", err)
		vp = nil
	}

	rec := session.New(devCtx, selectedDevice, primary, fallback, session.Config{
		Capabilities:        caps,
		MaxDuration:         *maxDurFlag,
		ConfidenceThreshold: *thresholdFlag,
		OnChange:            makeStateHandler(primary),
		OnAudio: func(chunk []byte) {
			tuiSend(AudioLevelMsg{Level: rmsLevel(chunk)})
			if vp != nil {
				vp.Process(chunk)
			}
		},
	})
	defer rec.Close()

	if dg, ok := primary.(*transcriber.Deepgram); ok {
		hc := transcriber.NewHealthCache(dg.Probe, 30*time.Second)
		go func() {
			for {
				ok := hc.Healthy(context.Background())
				tuiSend(ProviderHealthMsg{OK: ok})
				time.Sleep(30 * time.Second)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		rec.Close()
		gracefulShutdown()
	}()

	go beep.Init()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		log.Errorf("hotkey register error: %v", err)
		fmt.Printf("Error registering hotkey: %v\n", err)
		os.Exit(1)
	}
	defer hk.Unregister()

	tuiSend(ModeLineMsg{Text: modeLineText(primary, fallback)})
	tuiSend(DeviceLineMsg{Text: deviceLineText(selectedDevice)})

	if *hybridFlag {
		hy := hotkey.NewHybrid(hk, *longPressFlag)
		go watchSilence(rec, vp, hy.IsToggle)
		for {
			select {
			case <-hy.Start():
				log.Info("hotkey_start")
				rec.StartRecording()
			case <-hy.StopChan():
				rec.StopRecording()
			case <-clearChan:
				handleEscape(rec)
			case <-deviceSelectChan:
				handleDeviceSwitch(devCtx, rec, &selectedDevice)
			}
		}
	} else {
		go watchSilence(rec, vp, func() bool { return false })
		for {
			select {
			case <-hk.Keydown():
				log.Info("hotkey_down")
				rec.StartRecording()
			case <-hk.Keyup():
				rec.StopRecording()
			case <-clearChan:
				handleEscape(rec)
			case <-deviceSelectChan:
				handleDeviceSwitch(devCtx, rec, &selectedDevice)
			}
		}
	}
}

// makeStateHandler routes recorder snapshots to the TUI, audio cues, and
// clipboard. Serialized with its own mutex since the recorder notifies
// from several goroutines.
func makeStateHandler(primary transcriber.Provider) func(session.Snapshot) {
	var mu sync.Mutex
	prev := session.StateIdle
	return func(snap session.Snapshot) {
		mu.Lock()
		from := prev
		prev = snap.State
		mu.Unlock()

		tuiSend(StateMsg{State: snap.State, Err: snap.Err})

		switch snap.State {
		case session.StateRecording:
			beep.PlayStart()
			if w, ok := primary.(interface{ Warm(context.Context) }); ok {
				go w.Warm(context.Background())
			}
		case session.StateProcessing:
			beep.PlayEnd()
		case session.StateError:
			beep.PlayError()
		case session.StateIdle:
			if from == session.StateProcessing && snap.Transcript != "" {
				deliverTranscript(snap)
			}
		}
	}
}

func deliverTranscript(snap session.Snapshot) {
	n := transcriptionCount.Add(1)
	copied := false
	if autoPaste {
		if err := clipboard.Copy(snap.Transcript); err == nil {
			copied = true
			if err := clipboard.Paste(); err != nil {
				log.Warnf("paste failed: %v", err)
			}
		} else {
			log.Warnf("clipboard copy failed: %v", err)
		}
	}
	tuiSend(TranscriptionMsg{
		Text:       snap.Transcript,
		Confidence: snap.Confidence,
		Count:      int(n),
		Copied:     copied,
	})
}

// watchSilence drives the no-voice warning and, in toggle mode, the
// silence auto-stop while a recording is live.
func watchSilence(rec *session.Recorder, vp *vadProcessor, isToggle func() bool) {
	if vp == nil {
		return
	}
	var mon *silenceMonitor
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for range ticker.C {
		snap := rec.Snapshot()
		if snap.State != session.StateRecording {
			mon = nil
			continue
		}
		if mon == nil {
			vp.Reset()
			mon = newSilenceMonitor(isToggle)
		}
		tuiSend(RecordingTickMsg{Duration: time.Since(snap.StartedAt).Seconds()})
		switch mon.Tick(vp.HasSpeechTick()) {
		case SilenceWarn:
			log.Info("no_voice_warning")
			tuiSend(NoVoiceWarningMsg{})
			beep.PlayError()
		case SilenceWarnClear:
			tuiSend(VoiceClearedMsg{})
		case SilenceRepeat:
			log.Info("silence_during_warning")
			tuiSend(NoVoiceWarningMsg{})
			beep.PlayError()
		case SilenceAutoClose:
			log.Info("silence_auto_close")
			rec.StopRecording()
			mon = nil
		}
	}
}

// handleEscape aborts a live session outright; outside of one it only
// clears the last result or error.
func handleEscape(rec *session.Recorder) {
	switch rec.Snapshot().State {
	case session.StateRecording, session.StateProcessing, session.StateRequesting:
		log.Info("recording_canceled")
		rec.CancelRecording()
	default:
		rec.ClearTranscript()
	}
}

func rmsLevel(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sumSquares float64
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(len(data)/2))
}

func handleDeviceSwitch(devCtx capture.Context, rec *session.Recorder, selectedDevice **capture.DeviceInfo) {
	if devCtx == nil {
		return
	}
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.ReleaseTerminal()
	}
	newDevice, err := capture.SelectDevice(devCtx)
	if p != nil {
		p.RestoreTerminal()
	}

	if err != nil {
		log.Warnf("device selection failed: %v", err)
		return
	}
	name := "system default"
	if newDevice != nil {
		name = newDevice.Name
	}
	log.Info("device_switch: " + name)
	*selectedDevice = newDevice
	rec.SetDevice(newDevice)
	tuiSend(DeviceLineMsg{Text: deviceLineText(newDevice)})
}
