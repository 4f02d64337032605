package capture

import (
	"errors"
	"sync"
	"testing"
)

func TestIsBluetooth(t *testing.T) {
	for _, tt := range []struct {
		name string
		want bool
	}{
		{"AirPods Pro", true},
		{"Sony WH-1000XM4", true},
		{"Jabra Elite 75t", true},
		{"Built-in Microphone", false},
		{"USB PnP Sound Device", false},
		{"Headset (Bluetooth)", true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsBluetooth(tt.name); got != tt.want {
				t.Errorf("IsBluetooth(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestClassifyErr(t *testing.T) {
	if classifyErr(nil) != nil {
		t.Error("nil should stay nil")
	}

	err := classifyErr(errors.New("pulse: Access denied"))
	if !errors.Is(err, ErrPermission) {
		t.Errorf("access denial not classified: %v", err)
	}

	plain := errors.New("device disconnected")
	if errors.Is(classifyErr(plain), ErrPermission) {
		t.Error("generic device error misclassified as permission")
	}
}

func TestFakeCaptureFeedsAllAudio(t *testing.T) {
	pcm := make([]byte, 10*fakeFrameSize*fakeBytesPerFrame)
	for i := range pcm {
		pcm[i] = byte(i % 251)
	}

	ctx := NewFakePCM(pcm, false)
	dev, err := ctx.NewCapture(nil, CaptureConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}

	var mu sync.Mutex
	var got []byte
	dev.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		got = append(got, data...)
		mu.Unlock()
	})

	if err := dev.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-dev.(*FakeCapture).AudioDone()
	dev.Stop()
	dev.ClearCallback()

	mu.Lock()
	defer mu.Unlock()
	if len(got) < len(pcm) {
		t.Fatalf("fed %d bytes, want at least %d", len(got), len(pcm))
	}
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, got[i], pcm[i])
		}
	}
}

func TestFakeCaptureStartErr(t *testing.T) {
	ctx := NewFakePCM(nil, false)
	ctx.StartErr = ErrPermission
	dev, err := ctx.NewCapture(nil, CaptureConfig{})
	if err != nil {
		t.Fatalf("NewCapture: %v", err)
	}
	if err := dev.Start(); !errors.Is(err, ErrPermission) {
		t.Errorf("Start = %v, want ErrPermission", err)
	}
}
