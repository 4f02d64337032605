package transcriber

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestNetworkMetricsSum(t *testing.T) {
	m := &NetworkMetrics{
		ConnWait:   10 * time.Millisecond,
		DNS:        20 * time.Millisecond,
		TCP:        30 * time.Millisecond,
		TLS:        40 * time.Millisecond,
		ReqHeaders: 5 * time.Millisecond,
		ReqBody:    15 * time.Millisecond,
		TTFB:       50 * time.Millisecond,
		Download:   25 * time.Millisecond,
	}
	got := m.Sum()
	want := 195 * time.Millisecond
	if got != want {
		t.Errorf("Sum() = %v, want %v", got, want)
	}
}

func TestFirstNonEmpty(t *testing.T) {
	h := http.Header{}
	h.Set("X-Rate-Limit", "100")

	if got := firstNonEmpty(h, "X-Missing", "X-Rate-Limit"); got != "100" {
		t.Errorf("got %q, want %q", got, "100")
	}
	if got := firstNonEmpty(h, "X-A", "X-B"); got != "?" {
		t.Errorf("got %q, want %q", got, "?")
	}
}

func TestNewProviderSelection(t *testing.T) {
	t.Setenv("DEEPGRAM_API_KEY", "dg")
	t.Setenv("GROQ_API_KEY", "gq")
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "deepgram" {
		t.Errorf("Name = %q, want deepgram", p.Name())
	}

	t.Setenv("DEEPGRAM_API_KEY", "")
	p, err = New()
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "groq" {
		t.Errorf("Name = %q, want groq", p.Name())
	}

	t.Setenv("GROQ_API_KEY", "")
	if _, err := New(); err == nil {
		t.Error("expected error with no API keys")
	}
}

func TestIsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fake := NewFake("text", 0.9, nil)
	fake.Delay = time.Second
	_, err := fake.Transcribe(ctx, nil)
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
	if !IsCanceled(err) {
		t.Errorf("IsCanceled(%v) = false, want true", err)
	}
	if IsCanceled(errors.New("network down")) {
		t.Error("plain error misreported as cancellation")
	}
}

func TestFakeProviderCounts(t *testing.T) {
	fake := NewFake("hi", 0.8, nil)
	for range 3 {
		if _, err := fake.Transcribe(context.Background(), nil); err != nil {
			t.Fatal(err)
		}
	}
	if fake.Calls() != 3 {
		t.Errorf("Calls = %d, want 3", fake.Calls())
	}
}

func TestHealthCacheTTL(t *testing.T) {
	probes := 0
	hc := NewHealthCache(func(context.Context) error {
		probes++
		return nil
	}, time.Hour)

	ctx := context.Background()
	for range 5 {
		if !hc.Healthy(ctx) {
			t.Fatal("expected healthy")
		}
	}
	if probes != 1 {
		t.Errorf("probes = %d, want 1 (cached)", probes)
	}

	hc.Invalidate()
	hc.Healthy(ctx)
	if probes != 2 {
		t.Errorf("probes = %d after Invalidate, want 2", probes)
	}
}

func TestHealthCacheUnhealthy(t *testing.T) {
	hc := NewHealthCache(func(context.Context) error {
		return errors.New("unreachable")
	}, time.Hour)
	if hc.Healthy(context.Background()) {
		t.Error("expected unhealthy")
	}
}

func TestLocalUnavailableWhenMissing(t *testing.T) {
	l := NewLocal("definitely-not-a-real-binary-name", "", 0)
	if l.Available() {
		t.Error("Available should be false for missing binary")
	}
}

func TestWavFromPCM(t *testing.T) {
	pcm := make([]byte, 3200)
	wav := wavFromPCM(pcm)
	if len(wav) != 44+len(pcm) {
		t.Fatalf("len = %d, want %d", len(wav), 44+len(pcm))
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Error("bad RIFF header")
	}
}
