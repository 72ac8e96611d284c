// Package render implements the host audio renderer (C8): the single
// consumer of a ring (C1), pulling frames on the physical device's
// callback, running the DSP engine (C5) over them in place, and
// writing the result to the device's output buffer. Grounded on
// internal/audio/playback.go's Player -- same "persistent device, pull
// callback, never block" shape -- but pulling from a ring instead of
// an in-process push buffer, since here the producer is a separate
// process (the plug-in) rather than a goroutine in the same binary.
package render

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"time"

	"github.com/agalue/radioform/internal/dsp"
	"github.com/agalue/radioform/internal/ring"
)

// heartbeatInterval bounds how often the renderer updates the ring's
// consumer heartbeat and host_connected flag; gated by wall clock so a
// device callback firing hundreds of times a second doesn't hammer the
// header on every call.
const heartbeatInterval = 1 * time.Second

// Renderer pulls from a ring, runs the DSP engine over each buffer in
// place, and hands the result to the physical output device. The ring
// handle is held behind an atomic pointer so switch_device can replace
// it wait-free from the control thread while the render callback keeps
// running on the audio thread.
type Renderer struct {
	handle atomic.Pointer[ring.Handle]
	engine *dsp.Engine

	lastHeartbeat time.Time

	scratch     []float32
	scratchL    []float32
	scratchR    []float32
	scratchOutL []float32
	scratchOutR []float32
	outBuf      []float32
}

// New returns a Renderer that reads from h (may be nil, meaning no
// ring is bound yet -- the renderer emits silence) and processes every
// buffer through engine.
func New(h *ring.Handle, engine *dsp.Engine) *Renderer {
	r := &Renderer{engine: engine}
	if h != nil {
		r.handle.Store(h)
	}
	return r
}

// SwitchDevice atomically replaces the active ring handle, per
// spec.md §4.8's switch_device contract: the store itself is a single
// pointer write, so it completes well within one buffer period
// regardless of what the render callback is doing concurrently.
func (r *Renderer) SwitchDevice(h *ring.Handle) {
	r.handle.Store(h)
}

// growFloat32 returns dst resized to exactly n, reusing its backing
// array when large enough so steady-state operation allocates nothing.
func growFloat32(dst []float32, n int) []float32 {
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	return dst[:n]
}

// RenderInterleaved is the device pull callback's core: it reads
// frames stereo frames from the bound ring (zero-filling and bumping
// the underrun counter on shortfall, entirely inside ring.Read), runs
// the DSP engine over them in place, and writes the interleaved result
// into out (len(out) must be >= frames*2). If no ring is bound, out is
// silence.
func (r *Renderer) RenderInterleaved(out []float32, frames int) {
	h := r.handle.Load()
	if h == nil {
		for i := range out[:frames*2] {
			out[i] = 0
		}
		return
	}

	r.scratch = growFloat32(r.scratch, frames*2)
	h.Read(r.scratch, frames)

	r.scratchL = growFloat32(r.scratchL, frames)
	r.scratchR = growFloat32(r.scratchR, frames)
	r.scratchOutL = growFloat32(r.scratchOutL, frames)
	r.scratchOutR = growFloat32(r.scratchOutR, frames)

	r.engine.ProcessInterleaved(r.scratch, out, frames, r.scratchL, r.scratchR, r.scratchOutL, r.scratchOutR)

	r.maybeUpdateHeartbeat(h)
}

func (r *Renderer) maybeUpdateHeartbeat(h *ring.Handle) {
	now := time.Now()
	if now.Sub(r.lastHeartbeat) < heartbeatInterval {
		return
	}
	r.lastHeartbeat = now
	h.UpdateHeartbeatConsumer()
	h.SetConsumerConnected(true)
}

// RenderCallback adapts RenderInterleaved to the raw little-endian
// float32 byte buffer a malgo playback callback provides, matching
// playback.go's binary.LittleEndian/math.Float32bits pattern.
func (r *Renderer) RenderCallback(out []byte, frames uint32) {
	n := int(frames)
	r.outBuf = growFloat32(r.outBuf, n*2)
	r.RenderInterleaved(r.outBuf, n)
	for i, v := range r.outBuf {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(v))
	}
}
