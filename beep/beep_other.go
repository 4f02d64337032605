//go:build !linux

package beep

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx     *malgo.AllocatedContext
	device       *malgo.Device
	startSamples []byte
	endSamples   []byte
	errorSamples []byte
	soundOnce    sync.Once

	// Playback state, read by the device callback.
	current sync.Mutex
	playBuf atomic.Pointer[[]byte]
	playPos atomic.Uint32
)

func toBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		buf[i*2] = byte(s)
		buf[i*2+1] = byte(s >> 8)
	}
	return buf
}

func initSound() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}

	startSamples = toBytes(generateTick(sampleRate, startFreq, 0.03, startVolume, startDecay))
	endSamples = toBytes(generateTick(sampleRate, endFreq, 0.05, endVolume, endDecay))
	errorSamples = toBytes(generateDoubleBeep(sampleRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay))

	if err := initDevice(); err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func initDevice() error {
	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	var err error
	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{
		Data: dataCallback,
	})
	return err
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	samples := playBuf.Load()
	if samples == nil {
		clear(pOutput)
		return
	}

	pos := playPos.Load()
	total := uint32(len(*samples))
	want := frameCount * 2
	remaining := total - pos
	if remaining == 0 {
		playBuf.Store(nil)
		clear(pOutput)
		return
	}
	if want > remaining {
		want = remaining
	}
	copy(pOutput[:want], (*samples)[pos:pos+want])
	playPos.Store(pos + want)
	clear(pOutput[want:])
}

func playTone(samples []byte) {
	if disabled || malgoCtx == nil || len(samples) == 0 {
		return
	}

	current.Lock()
	defer current.Unlock()

	if device == nil {
		return
	}
	device.Stop()
	playPos.Store(0)
	playBuf.Store(&samples)

	if err := device.Start(); err != nil {
		// Recreate the device once; handles post-sleep invalidation.
		device.Uninit()
		if err := initDevice(); err != nil {
			device = nil
			return
		}
		device.Start()
	}
}

func Init() {
	soundOnce.Do(initSound)
}

func PlayStart() {
	soundOnce.Do(initSound)
	go playTone(startSamples)
}

func PlayEnd() {
	soundOnce.Do(initSound)
	go playTone(endSamples)
}

func PlayError() {
	soundOnce.Do(initSound)
	go playTone(errorSamples)
}
