package transcriber

import (
	"context"
	"sync"
	"time"
)

// FakeProvider is a scriptable Provider/Fallback for tests.
type FakeProvider struct {
	ProviderName string
	Text         string
	Confidence   float64
	Err          error
	Delay        time.Duration
	Unavailable  bool

	mu    sync.Mutex
	calls int
	lang  string
}

func NewFake(text string, confidence float64, err error) *FakeProvider {
	return &FakeProvider{ProviderName: "fake", Text: text, Confidence: confidence, Err: err}
}

func (f *FakeProvider) Name() string { return f.ProviderName }

func (f *FakeProvider) SetLanguage(lang string) {
	f.mu.Lock()
	f.lang = lang
	f.mu.Unlock()
}

func (f *FakeProvider) GetLanguage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lang
}

func (f *FakeProvider) Available() bool { return !f.Unavailable }

// Calls reports how many Transcribe attempts were made.
func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeProvider) Transcribe(ctx context.Context, _ []byte) (*Result, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Err != nil {
		return nil, f.Err
	}
	return &Result{
		Text:       f.Text,
		Confidence: f.Confidence,
		Metrics:    &NetworkMetrics{Total: 10 * time.Millisecond},
	}, nil
}
