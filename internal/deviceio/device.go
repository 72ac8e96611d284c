// Package deviceio wraps malgo device lifecycle management shared by
// the plug-in harness's capture stand-in (cmd/radioform-plugin) and the
// host's physical-device output (cmd/radioform-host), following
// the open/configure/start/stop/uninit sequence the teacher's
// Capturer and Player both repeat independently.
package deviceio

import (
	"fmt"
	"strings"
	"unsafe"

	"github.com/gen2brain/malgo"
)

// Context wraps one malgo audio context, shared by every device a
// process opens.
type Context struct {
	ctx *malgo.AllocatedContext
}

// NewContext initializes a malgo audio context.
func NewContext() (*Context, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("deviceio: init context: %w", err)
	}
	return &Context{ctx: ctx}, nil
}

// Close releases the underlying malgo context.
func (c *Context) Close() error {
	if c.ctx == nil {
		return nil
	}
	err := c.ctx.Uninit()
	c.ctx.Free()
	c.ctx = nil
	return err
}

// Device is an opened malgo capture or playback device; Start begins its
// callbacks.
type Device struct {
	dev *malgo.Device
}

// OpenCapture opens a capture device at sampleRate/channels (float32
// samples), invoking onData with each raw callback buffer. Mirrors
// capture.go's malgo.DeviceConfig/Callbacks wiring, generalized to
// arbitrary channel counts instead of a fixed mono capture. A nil
// deviceID opens the platform default; pass one resolved by
// FindCaptureDeviceID to pin a specific physical input.
func OpenCapture(ctx *Context, sampleRate, channels uint32, periodMs uint32, deviceID unsafe.Pointer, onData func(data []byte)) (*Device, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = channels
	if deviceID != nil {
		cfg.Capture.DeviceID = deviceID
	}
	cfg.SampleRate = sampleRate
	if periodMs == 0 {
		periodMs = 20
	}
	cfg.PeriodSizeInMilliseconds = periodMs

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			onData(in)
		},
	}

	dev, err := malgo.InitDevice(ctx.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("deviceio: init capture device: %w", err)
	}
	return &Device{dev: dev}, nil
}

// OpenPlayback opens a playback device at sampleRate/channels,
// invoking onRequest to fill each callback's output buffer. Mirrors
// playback.go's persistent-device pattern.
func OpenPlayback(ctx *Context, sampleRate, channels uint32, periodMs uint32, onRequest func(out []byte, frames uint32)) (*Device, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = channels
	cfg.SampleRate = sampleRate
	if periodMs == 0 {
		periodMs = 20
	}
	cfg.PeriodSizeInMilliseconds = periodMs

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frames uint32) {
			onRequest(out, frames)
		},
	}

	dev, err := malgo.InitDevice(ctx.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, fmt.Errorf("deviceio: init playback device: %w", err)
	}
	return &Device{dev: dev}, nil
}

// Start starts the device's IO thread.
func (d *Device) Start() error {
	if err := d.dev.Start(); err != nil {
		return fmt.Errorf("deviceio: start device: %w", err)
	}
	return nil
}

// Stop stops the device's IO thread without releasing it.
func (d *Device) Stop() error {
	return d.dev.Stop()
}

// Close stops and releases the device.
func (d *Device) Close() {
	d.dev.Stop()
	d.dev.Uninit()
}

// SampleRate returns the device's actual running sample rate, which
// may differ from what was requested.
func (d *Device) SampleRate() uint32 {
	return d.dev.SampleRate()
}

// DeviceInfo describes one OS-enumerated device. malgo's portable
// DeviceInfo carries a platform-opaque DeviceID union with no stable
// cross-platform string form, so Name doubles as the enumeration key
// (ID == Name) here; that is a real limitation of the portable surface,
// not an oversight, and is the reason internal/routing's DeviceWatcher
// is a seam rather than something internal/deviceio can satisfy fully
// on its own.
type DeviceInfo struct {
	ID        string
	Name      string
	IsDefault bool
}

// PlaybackDevices enumerates the OS's current playback device list.
func (c *Context) PlaybackDevices() ([]DeviceInfo, error) {
	infos, err := c.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("deviceio: enumerate playback devices: %w", err)
	}
	out := make([]DeviceInfo, 0, len(infos))
	for _, info := range infos {
		name := info.Name()
		out = append(out, DeviceInfo{ID: name, Name: name, IsDefault: info.IsDefault != 0})
	}
	return out, nil
}

// FindCaptureDeviceID resolves a capture device whose name contains
// nameSubstring to the opaque device id malgo's DeviceConfig.Capture.DeviceID
// expects, for pinning OpenCapture to a specific physical input instead
// of the platform default.
func FindCaptureDeviceID(ctx *Context, nameSubstring string) (unsafe.Pointer, error) {
	infos, err := ctx.ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("deviceio: enumerate capture devices: %w", err)
	}
	for _, info := range infos {
		if strings.Contains(info.Name(), nameSubstring) {
			return info.ID.Pointer(), nil
		}
	}
	return nil, fmt.Errorf("deviceio: no capture device matching %q", nameSubstring)
}
