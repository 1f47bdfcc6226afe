package capture

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoDevice captures microphone audio through the miniaudio bindings.
// It implements Device. The malgo context outlives individual captures;
// the device handle itself is initialized per Start and released on Stop.
type MalgoDevice struct {
	ctx        *malgo.AllocatedContext
	sampleRate int

	mu     sync.Mutex
	device *malgo.Device
}

// NewMalgoDevice initializes the audio backend context.
func NewMalgoDevice(sampleRate int) (*MalgoDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	return &MalgoDevice{ctx: ctx, sampleRate: sampleRate}, nil
}

// Start acquires the default capture device and begins delivering PCM-16
// mono chunks to onData.
func (d *MalgoDevice) Start(onData func(pcm []byte)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device != nil {
		return fmt.Errorf("device already started")
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(d.sampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(outputSamples, inputSamples []byte, frameCount uint32) {
			onData(inputSamples)
		},
	}

	device, err := malgo.InitDevice(d.ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	d.device = device
	return nil
}

// Stop halts capture and releases the device handle. No data callbacks are
// delivered after Stop returns.
func (d *MalgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.device == nil {
		return nil
	}

	err := d.device.Stop()
	d.device.Uninit()
	d.device = nil

	if err != nil {
		return fmt.Errorf("failed to stop capture device: %w", err)
	}

	return nil
}

// Close releases the audio backend context.
func (d *MalgoDevice) Close() error {
	if err := d.Stop(); err != nil {
		return err
	}

	if err := d.ctx.Uninit(); err != nil {
		return fmt.Errorf("failed to release audio context: %w", err)
	}
	d.ctx.Free()

	return nil
}
