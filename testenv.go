package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"utter/beep"
	"utter/capture"
	"utter/hotkey"
	"utter/log"
	"utter/session"
	"utter/transcriber"
)

// runTestMode drives the recorder from stdin commands against a canned
// WAV file instead of the live microphone. Used by integration scripts.
func runTestMode(wavPath string, primary transcriber.Provider, fallback transcriber.Fallback, caps session.Capabilities, maxDur time.Duration, threshold float64) {
	beep.Disable()

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
	defer log.Close()

	fallbackName := "none"
	if fallback != nil {
		fallbackName = fallback.Name()
	}
	log.SessionStart(primary.Name(), fallbackName)

	fakeCtx, err := capture.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}
	caps.CanRecord = true

	recordingDone := make(chan struct{}, 1)

	rec := session.New(fakeCtx, nil, primary, fallback, session.Config{
		Capabilities:        caps,
		MaxDuration:         maxDur,
		ConfidenceThreshold: threshold,
		OnChange: func(snap session.Snapshot) {
			switch snap.State {
			case session.StateIdle:
				if snap.Transcript != "" {
					transcriptionCount.Add(1)
					fmt.Printf("TEXT: %s\n", snap.Transcript)
				}
			case session.StateError:
				fmt.Printf("ERROR: %s\n", snap.Err)
			default:
				return
			}
			select {
			case recordingDone <- struct{}{}:
			default:
			}
		},
	})
	defer rec.Close()

	hk := hotkey.NewFake()

	// Stdin driver -- sends hotkey events, handles WAIT/SLEEP/QUIT
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			cmd := strings.TrimSpace(scanner.Text())
			switch cmd {
			case "KEYDOWN":
				hk.SimKeydown()
			case "KEYUP":
				hk.SimKeyup()
			case "CANCEL":
				rec.CancelRecording()
			case "WAIT":
				<-recordingDone
			case "QUIT":
				log.SessionEnd(int(transcriptionCount.Load()))
				os.Exit(0)
			default:
				if strings.HasPrefix(cmd, "SLEEP ") {
					if ms, err := strconv.Atoi(cmd[6:]); err == nil {
						time.Sleep(time.Duration(ms) * time.Millisecond)
					}
				}
			}
		}
		os.Exit(0)
	}()

	// Event loop -- same shape as run()
	for {
		select {
		case <-hk.Keydown():
			rec.StartRecording()
		case <-hk.Keyup():
			rec.StopRecording()
		}
	}
}
