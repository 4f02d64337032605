package transcriber

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

type NetworkMetrics struct {
	ConnWait    time.Duration
	DNS         time.Duration
	TCP         time.Duration
	TLS         time.Duration
	ReqHeaders  time.Duration
	ReqBody     time.Duration
	TTFB        time.Duration
	Download    time.Duration
	Total       time.Duration
	ConnReused  bool
	TLSProtocol string
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func firstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

type Result struct {
	Text       string
	Confidence float64
	Duration   float64
	Metrics    *NetworkMetrics
	RateLimit  string
}

// Provider transcribes one complete utterance of raw 16 kHz mono s16le PCM.
// The context carries the caller's cancellation signal; a canceled call
// returns an error satisfying IsCanceled.
type Provider interface {
	Name() string
	SetLanguage(lang string)
	GetLanguage() string
	Transcribe(ctx context.Context, pcm []byte) (*Result, error)
}

// Fallback is an on-device provider that may or may not exist in the
// current environment.
type Fallback interface {
	Provider
	Available() bool
}

// IsCanceled reports whether err stems from the caller's cancellation
// rather than a provider failure.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

type baseTranscriber struct {
	client *TracedClient
	apiURL string
	lang   string
}

func (b *baseTranscriber) SetLanguage(lang string) { b.lang = lang }

func (b *baseTranscriber) GetLanguage() string { return b.lang }

// Warm pre-establishes the HTTPS connection so the handshake overlaps
// the recording instead of delaying the first transcription request.
func (b *baseTranscriber) Warm(ctx context.Context) {
	b.client.Warm(ctx, b.apiURL)
}

// New picks the primary cloud provider from environment keys.
func New() (Provider, error) {
	dgKey := os.Getenv("DEEPGRAM_API_KEY")
	groqKey := os.Getenv("GROQ_API_KEY")

	if dgKey != "" {
		return NewDeepgram(dgKey), nil
	}
	if groqKey != "" {
		return NewGroq(groqKey), nil
	}

	return nil, fmt.Errorf("set DEEPGRAM_API_KEY or GROQ_API_KEY environment variable")
}
