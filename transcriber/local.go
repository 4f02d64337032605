package transcriber

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"utter/encoder"
)

// DefaultLocalTimeout bounds one on-device recognition pass.
const DefaultLocalTimeout = 10 * time.Second

// Local runs an on-device whisper.cpp CLI as the fallback provider. It
// produces a single final result per call and enforces its own timeout
// independent of the caller's cancellation signal.
type Local struct {
	command   string
	modelPath string
	timeout   time.Duration
	lang      string
}

func NewLocal(command, modelPath string, timeout time.Duration) *Local {
	if command == "" {
		command = "whisper-cli"
	}
	if timeout <= 0 {
		timeout = DefaultLocalTimeout
	}
	return &Local{command: command, modelPath: modelPath, timeout: timeout}
}

func (l *Local) Name() string            { return "local" }
func (l *Local) SetLanguage(lang string) { l.lang = lang }
func (l *Local) GetLanguage() string     { return l.lang }

// Available reports whether the recognizer binary (and model, when
// configured) exists in this environment. Resolved once at startup.
func (l *Local) Available() bool {
	if _, err := exec.LookPath(l.command); err != nil {
		return false
	}
	if l.modelPath != "" {
		if _, err := os.Stat(l.modelPath); err != nil {
			return false
		}
	}
	return true
}

func (l *Local) Transcribe(ctx context.Context, pcm []byte) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	wavPath := filepath.Join(os.TempDir(), fmt.Sprintf("utter_%d.wav", os.Getpid()))
	if err := os.WriteFile(wavPath, wavFromPCM(pcm), 0600); err != nil {
		return nil, fmt.Errorf("writing fallback audio: %w", err)
	}
	defer os.Remove(wavPath)

	args := []string{"-f", wavPath, "-nt", "--no-prints"}
	if l.modelPath != "" {
		args = append(args, "-m", l.modelPath)
	}
	if l.lang != "" {
		args = append(args, "-l", l.lang)
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, l.command, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("local recognition timed out after %s", l.timeout)
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("local recognition: %w", ctx.Err())
		}
		detail := strings.TrimSpace(stderr.String())
		if detail != "" {
			return nil, fmt.Errorf("%s: %v: %s", l.command, err, detail)
		}
		return nil, fmt.Errorf("%s: %w", l.command, err)
	}

	text := strings.TrimSpace(stdout.String())
	return &Result{
		Text:     text,
		Duration: float64(len(pcm)/2) / float64(encoder.SampleRate),
		Metrics:  &NetworkMetrics{Total: time.Since(start)},
	}, nil
}

// wavFromPCM prepends a canonical 44-byte RIFF header for 16 kHz mono s16le.
func wavFromPCM(pcm []byte) []byte {
	header := make([]byte, 44)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+len(pcm)))
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], encoder.Channels)
	binary.LittleEndian.PutUint32(header[24:28], encoder.SampleRate)
	binary.LittleEndian.PutUint32(header[28:32], encoder.SampleRate*encoder.Channels*2)
	binary.LittleEndian.PutUint16(header[32:34], encoder.Channels*2)
	binary.LittleEndian.PutUint16(header[34:36], encoder.BitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(len(pcm)))
	return append(header, pcm...)
}
