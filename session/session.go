// Package session owns the push-to-talk recording lifecycle: microphone
// acquisition, bounded buffering, and transcription with a primary cloud
// provider and an optional on-device fallback.
//
// A Recorder holds at most one live recording session. All failures are
// reported through the state snapshot rather than returned errors, so the
// display layer can render state reactively without its own error handling.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"utter/capture"
	"utter/encoder"
	"utter/log"
	"utter/transcriber"
)

type State string

const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateError      State = "error"
)

const (
	DefaultMaxDuration         = 60 * time.Second
	DefaultConfidenceThreshold = 0.5
)

// User-facing failure messages. The permission message is distinct from
// the generic device message so the user knows which knob to turn.
const (
	msgUnsupported      = "Voice recording is not supported on this device."
	msgPermissionDenied = "Microphone access denied. Please allow microphone access and try again."
	msgDeviceError      = "Could not access the microphone. Please check your audio device and try again."
	msgNoAudio          = "No audio recorded. Please try again."
	msgFallbackFailed   = "Transcription failed (fallback also failed). Please try again."
	msgNoFallback       = "Transcription failed. No fallback recognizer available."
)

// Capabilities describes what the current environment supports, resolved
// once at startup.
type Capabilities struct {
	CanRecord             bool
	CanFallbackTranscribe bool
}

type Config struct {
	Capabilities        Capabilities
	MaxDuration         time.Duration
	ConfidenceThreshold float64
	// OnChange is invoked after every state transition with a fresh
	// snapshot. Called from the recorder's goroutines; must not block.
	OnChange func(Snapshot)
	// OnAudio observes raw PCM chunks while recording (level meters, VAD).
	OnAudio func(chunk []byte)
}

// Snapshot is an immutable view of the recorder.
type Snapshot struct {
	State      State
	Transcript string
	Confidence float64
	Err        string
	StartedAt  time.Time
}

type activeSession struct {
	cancel context.CancelFunc
	timer  *time.Timer

	mu        sync.Mutex
	dev       capture.CaptureDevice
	chunks    [][]byte
	recording bool
}

func (s *activeSession) appendChunk(data []byte) {
	s.mu.Lock()
	if s.recording && len(data) > 0 {
		buf := make([]byte, len(data))
		copy(buf, data)
		s.chunks = append(s.chunks, buf)
	}
	s.mu.Unlock()
}

func (s *activeSession) isRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// finalize stops buffering and returns the joined PCM. The chunk slice is
// released; audio never outlives its session.
func (s *activeSession) finalize() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
	var n int
	for _, c := range s.chunks {
		n += len(c)
	}
	pcm := make([]byte, 0, n)
	for _, c := range s.chunks {
		pcm = append(pcm, c...)
	}
	s.chunks = nil
	return pcm
}

// release stops the capture stream exactly once. Safe to call from
// multiple goroutines; the first caller takes ownership of the device.
func (s *activeSession) release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	dev := s.dev
	s.dev = nil
	s.recording = false
	s.chunks = nil
	s.mu.Unlock()
	if dev == nil {
		return
	}
	dev.Stop()
	dev.ClearCallback()
	dev.Close()
}

type Recorder struct {
	devCtx    capture.Context
	device    *capture.DeviceInfo
	primary   transcriber.Provider
	fallback  transcriber.Fallback // may be nil
	caps      Capabilities
	maxDur    time.Duration
	threshold float64
	onChange  func(Snapshot)
	onAudio   func([]byte)

	mu          sync.Mutex
	state       State
	transcript  string
	confidence  float64
	errMsg      string
	startedAt   time.Time
	closed      bool
	gen         int // bumped on every reset; stale async work checks it
	active      *activeSession
	pipelineCtx context.Context
}

// New wires a Recorder. devCtx stays owned by the caller; primary must be
// non-nil, fallback may be nil when the environment has none.
func New(devCtx capture.Context, device *capture.DeviceInfo, primary transcriber.Provider, fallback transcriber.Fallback, cfg Config) *Recorder {
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = DefaultMaxDuration
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	return &Recorder{
		devCtx:    devCtx,
		device:    device,
		primary:   primary,
		fallback:  fallback,
		caps:      cfg.Capabilities,
		maxDur:    cfg.MaxDuration,
		threshold: cfg.ConfidenceThreshold,
		onChange:  cfg.OnChange,
		onAudio:   cfg.OnAudio,
		state:     StateIdle,
	}
}

// SetDevice switches the capture device for subsequent recordings.
func (r *Recorder) SetDevice(dev *capture.DeviceInfo) {
	r.mu.Lock()
	r.device = dev
	r.mu.Unlock()
}

func (r *Recorder) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

func (r *Recorder) snapshotLocked() Snapshot {
	return Snapshot{
		State:      r.state,
		Transcript: r.transcript,
		Confidence: r.confidence,
		Err:        r.errMsg,
		StartedAt:  r.startedAt,
	}
}

func (r *Recorder) notify(snap Snapshot) {
	if r.onChange != nil {
		r.onChange(snap)
	}
}

// setState applies a transition on behalf of generation gen. Transitions
// from superseded generations are dropped, so an async completion racing
// CancelRecording or Close can never overwrite the newer state.
func (r *Recorder) setState(gen int, state State, errMsg string) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	from := r.state
	r.state = state
	r.errMsg = errMsg
	snap := r.snapshotLocked()
	r.mu.Unlock()
	log.StateChange(string(from), string(state), errMsg)
	r.notify(snap)
}

// StartRecording requests microphone access and begins buffering audio.
// A session already in flight is reset first; two recordings never run
// concurrently.
func (r *Recorder) StartRecording() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if !r.caps.CanRecord {
		gen := r.gen
		r.mu.Unlock()
		r.setState(gen, StateError, msgUnsupported)
		return
	}

	prev := r.detachLocked()
	gen := r.gen
	r.errMsg = ""
	r.mu.Unlock()

	prev.release()

	r.setState(gen, StateRequesting, "")

	go r.acquire(gen)
}

func (r *Recorder) acquire(gen int) {
	sess := &activeSession{recording: true}

	r.mu.Lock()
	device := r.device
	r.mu.Unlock()

	dev, err := r.devCtx.NewCapture(device, capture.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err == nil {
		sess.mu.Lock()
		sess.dev = dev
		sess.mu.Unlock()
		dev.SetCallback(r.dataCallback(sess))
		if err = dev.Start(); err != nil {
			sess.release()
		}
	}

	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		sess.release()
		return
	}

	if err != nil {
		r.mu.Unlock()
		if errors.Is(err, capture.ErrPermission) {
			r.setState(gen, StateError, msgPermissionDenied)
		} else {
			log.Errorf("capture start: %v", err)
			r.setState(gen, StateError, msgDeviceError)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	sess.timer = time.AfterFunc(r.maxDur, func() { r.autoStop(gen) })
	r.active = sess
	r.pipelineCtx = ctx
	r.startedAt = time.Now()
	r.mu.Unlock()

	r.setState(gen, StateRecording, "")
}

func (r *Recorder) dataCallback(sess *activeSession) capture.DataCallback {
	return func(data []byte, _ uint32) {
		if !sess.isRecording() {
			return
		}
		sess.appendChunk(data)
		if r.onAudio != nil && len(data) > 0 {
			r.onAudio(data)
		}
	}
}

// StopRecording finalizes the recorder and hands the captured audio to the
// transcription pipeline. No-op unless currently recording.
func (r *Recorder) StopRecording() {
	r.stop(-1)
}

// autoStop is StopRecording on the recording-bound timer's behalf.
func (r *Recorder) autoStop(gen int) {
	r.stop(gen)
}

func (r *Recorder) stop(gen int) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	// A stop that races microphone acquisition abandons the session;
	// there is no audio worth transcribing yet.
	if gen < 0 && r.state == StateRequesting {
		prev := r.detachLocked()
		cur := r.gen
		r.mu.Unlock()
		prev.release()
		r.setState(cur, StateIdle, "")
		return
	}
	if r.state != StateRecording || r.active == nil {
		r.mu.Unlock()
		return
	}
	if gen >= 0 && gen != r.gen {
		r.mu.Unlock()
		return
	}
	sess := r.active
	curGen := r.gen
	ctx := r.pipelineCtx
	r.mu.Unlock()

	if sess.timer != nil {
		sess.timer.Stop()
	}

	r.setState(curGen, StateProcessing, "")

	go func() {
		// Release the device before transcription so the OS recording
		// indicator drops as soon as capture ends.
		pcm := sess.finalize()
		sess.release()

		r.mu.Lock()
		if r.closed || curGen != r.gen {
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		r.transcribe(ctx, curGen, pcm)
	}()
}

// transcribe runs the provider pipeline: primary first, fallback on
// failure or low confidence, below-threshold primary as a last resort.
func (r *Recorder) transcribe(ctx context.Context, gen int, pcm []byte) {
	if len(pcm) == 0 {
		r.finishError(gen, msgNoAudio)
		return
	}

	start := time.Now()
	audioS := float64(len(pcm)/2) / float64(encoder.SampleRate)

	primaryRes, primaryErr := r.primary.Transcribe(ctx, pcm)
	if primaryErr != nil && transcriber.IsCanceled(primaryErr) {
		// Explicit cancellation racing the request; not an error.
		return
	}

	if primaryErr == nil && primaryRes.Confidence >= r.threshold {
		log.Transcription(r.primary.Name(), primaryRes.Confidence, audioS, float64(time.Since(start).Milliseconds()), false)
		r.finishSuccess(gen, primaryRes)
		return
	}

	if primaryErr != nil {
		log.Errorf("primary transcription: %v", primaryErr)
		log.Fallback("primary_failed")
	} else {
		log.Fallback("low_confidence")
	}

	if r.caps.CanFallbackTranscribe && r.fallback != nil && r.fallback.Available() {
		fbRes, fbErr := r.fallback.Transcribe(ctx, pcm)
		if fbErr == nil {
			// Fallback output is accepted regardless of its confidence.
			log.Transcription(r.fallback.Name(), fbRes.Confidence, audioS, float64(time.Since(start).Milliseconds()), true)
			r.finishSuccess(gen, fbRes)
			return
		}
		if transcriber.IsCanceled(fbErr) {
			return
		}
		log.Errorf("fallback transcription: %v", fbErr)
		if primaryErr == nil {
			// Below-threshold primary beats no result at all.
			r.finishSuccess(gen, primaryRes)
			return
		}
		r.finishError(gen, msgFallbackFailed)
		return
	}

	if primaryErr == nil {
		r.finishSuccess(gen, primaryRes)
		return
	}
	r.finishError(gen, msgNoFallback)
}

func (r *Recorder) finishSuccess(gen int, res *transcriber.Result) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.transcript = res.Text
	r.confidence = res.Confidence
	r.active = nil
	r.pipelineCtx = nil
	r.mu.Unlock()
	if res.Text != "" {
		log.TranscriptionText(res.Text)
	}
	r.setState(gen, StateIdle, "")
}

func (r *Recorder) finishError(gen int, msg string) {
	r.mu.Lock()
	if r.closed || gen != r.gen {
		r.mu.Unlock()
		return
	}
	r.active = nil
	r.pipelineCtx = nil
	r.mu.Unlock()
	r.setState(gen, StateError, msg)
}

// CancelRecording aborts a live recording or an in-flight transcription
// without surfacing a result. Always lands in idle with the error cleared.
func (r *Recorder) CancelRecording() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	prev := r.detachLocked()
	gen := r.gen
	r.mu.Unlock()

	prev.release()
	r.setState(gen, StateIdle, "")
}

// ClearTranscript resets the last result. From the error state this also
// returns the recorder to idle; otherwise the state is untouched.
func (r *Recorder) ClearTranscript() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.transcript = ""
	r.confidence = 0
	r.errMsg = ""
	toIdle := r.state == StateError
	gen := r.gen
	snap := r.snapshotLocked()
	r.mu.Unlock()

	if toIdle {
		r.setState(gen, StateIdle, "")
	} else {
		r.notify(snap)
	}
}

// Close force-terminates any session, releases the device, and suppresses
// every pending asynchronous state update. The recorder is unusable after.
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	prev := r.detachLocked()
	r.closed = true
	r.state = StateIdle
	r.mu.Unlock()

	prev.release()
}

// detachLocked disconnects the current session so late completions become
// no-ops: bumps the generation, cancels the transcription context, and
// hands back the session for device release outside the lock.
func (r *Recorder) detachLocked() *activeSession {
	r.gen++
	prev := r.active
	r.active = nil
	r.pipelineCtx = nil
	if prev != nil {
		if prev.timer != nil {
			prev.timer.Stop()
		}
		if prev.cancel != nil {
			prev.cancel()
		}
	}
	return prev
}
