package plugin

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/agalue/radioform/internal/ring"
)

// Backoff schedule for ring attach retries: base 30ms, doubling, capped
// at ~2s, 15 attempts total (worst case about 20s of sleeping: 30ms
// through 1.92s, then 2s for each of the remaining eight attempts).
const (
	attachBaseDelay = 30 * time.Millisecond
	attachMaxDelay  = 2 * time.Second
	attachMaxTries  = 15
)

// Health checks and heartbeat updates are gated by wall clock, not
// per-callback, so a mixed-output callback firing hundreds of times a
// second doesn't re-run either on every call.
const (
	healthCheckInterval = 3 * time.Second
	heartbeatInterval   = 1 * time.Second
)

// Counters tracks the endpoint's monotonic diagnostics: format changes
// observed, conversion failures, ring attach failures, and recoveries.
// Exported for the plug-in harness's diagnostics surface.
type Counters struct {
	FormatChanges   atomic.Uint64
	ConvertFailures atomic.Uint64
	AttachFailures  atomic.Uint64
	RecoveryCount   atomic.Uint64
}

// Endpoint is one virtual device instance inside the OS audio daemon's
// mixed-output path. It owns the producer side of a ring: attaching to
// it with retry/backoff, converting and (if needed) resampling the
// mixed audio the OS hands it, and writing the result into the ring.
// Conversion/resample buffers are member-owned and grown on demand so
// that, after warm-up, WriteMixedOutput performs zero heap allocations.
//
// WriteMixedOutput runs on the OS's real-time IO thread; StartIO/StopIO
// run on a separate control thread (spec.md's "start_io/stop_io" vs.
// "write_mixed_output" split) and must never make the IO thread block.
// The ring handle is therefore held in an atomic pointer (mirroring
// internal/render.Renderer's switch_device pattern) rather than behind
// a mutex shared with the control path, and a failed/unhealthy ring is
// reattached by a dedicated recovery goroutine, never inline on the IO
// thread.
type Endpoint struct {
	path    string
	ringCfg ring.Config

	state  atomic.Uint32 // State
	handle atomic.Pointer[ring.Handle]

	// muClients guards clientCount only; WriteMixedOutput never takes
	// this lock, so a StartIO backoff in flight on the control thread
	// can never block the IO thread.
	muClients   sync.Mutex
	clientCount int

	recover chan struct{}

	attachBaseDelay time.Duration
	attachMaxDelay  time.Duration
	attachMaxTries  int

	// The remaining fields are touched only from WriteMixedOutput,
	// which spec.md guarantees is invoked by a single IO thread, so
	// they need no lock of their own -- except lastHealthCheck, which
	// StartIO also seeds once on connect, strictly before the
	// handle/state stores that publish Connected to WriteMixedOutput.
	lastHealthCheck time.Time
	lastHeartbeat   time.Time

	streamFormat StreamFormat
	streamRate   int
	resampler    *Resampler

	interleaved  []float32
	mono         []float32
	resampled    []float32
	resampledOut []float32

	lastHostHeartbeatValue  uint64
	lastHostHeartbeatSeenAt time.Time

	Counters Counters
}

// NewEndpoint returns an Endpoint bound to the ring file at path, with
// the given ring layout (what the ring must already have, or will be
// created with).
func NewEndpoint(path string, cfg ring.Config) *Endpoint {
	e := &Endpoint{
		path:            path,
		ringCfg:         cfg,
		recover:         make(chan struct{}, 1),
		attachBaseDelay: attachBaseDelay,
		attachMaxDelay:  attachMaxDelay,
		attachMaxTries:  attachMaxTries,
	}
	e.state.Store(uint32(Uninitialised))
	go e.recoveryLoop()
	return e
}

// State reports the endpoint's current lifecycle state.
func (e *Endpoint) State() State {
	return State(e.state.Load())
}

// StartIO handles the OS "start IO" transition: client-count
// increments, and if it went 0->1, a ring attach is attempted with
// exponential backoff. Runs on the control thread; the backoff's sleeps
// never hold a lock WriteMixedOutput needs.
func (e *Endpoint) StartIO() error {
	e.muClients.Lock()
	e.clientCount++
	first := e.clientCount == 1
	e.muClients.Unlock()
	if !first {
		return nil
	}

	e.state.Store(uint32(Connecting))
	h, err := e.attachWithBackoff()
	if err != nil {
		e.muClients.Lock()
		e.clientCount--
		e.muClients.Unlock()
		e.state.Store(uint32(Error))
		log.Printf("plugin: ring attach failed for %s after %d attempts: %v", e.path, e.attachMaxTries, err)
		return err
	}

	h.SetProducerConnected(true)
	// Seed lastHealthCheck at connect time rather than leaving it at its
	// zero value: otherwise the very first WriteMixedOutput call would
	// immediately run a health check before the host has had any chance
	// to connect or send a heartbeat, and fail it. This write happens
	// strictly before the handle/state stores below publish Connected,
	// so it is visible to WriteMixedOutput without racing it.
	e.lastHealthCheck = nowFunc()
	e.handle.Store(h)
	e.state.Store(uint32(Connected))
	return nil
}

func (e *Endpoint) attachWithBackoff() (*ring.Handle, error) {
	delay := e.attachBaseDelay
	var lastErr error
	for attempt := 0; attempt < e.attachMaxTries; attempt++ {
		h, err := ring.CreateOrOpen(e.path, e.ringCfg)
		if err == nil {
			return h, nil
		}
		lastErr = err
		e.Counters.AttachFailures.Add(1)
		time.Sleep(delay)
		delay *= 2
		if delay > e.attachMaxDelay {
			delay = e.attachMaxDelay
		}
	}
	if lastErr == nil {
		return nil, ErrAttachExhausted
	}
	return nil, fmt.Errorf("%w: %w", ErrAttachExhausted, lastErr)
}

// StopIO handles the OS "stop IO" transition: client-count decrements,
// and on reaching 0, the ring is unmapped and the endpoint moves to
// Disconnected.
func (e *Endpoint) StopIO() {
	e.muClients.Lock()
	if e.clientCount > 0 {
		e.clientCount--
	}
	remaining := e.clientCount
	e.muClients.Unlock()
	if remaining > 0 {
		return
	}

	if h := e.handle.Swap(nil); h != nil {
		h.SetProducerConnected(false)
		_ = h.Close()
	}
	e.state.Store(uint32(Disconnected))
}

// requestRecovery signals the recovery goroutine without ever blocking
// the caller; a recovery already pending makes this a no-op.
func (e *Endpoint) requestRecovery() {
	select {
	case e.recover <- struct{}{}:
	default:
	}
}

// recoveryLoop performs every ring (re)attach triggered by a failed
// health check. It runs for the lifetime of the Endpoint on its own
// goroutine so that WriteMixedOutput, on the IO thread, never itself
// calls ring.CreateOrOpen -- an open/mmap syscall plus allocation that
// spec.md forbids on the real-time path, recovery included.
func (e *Endpoint) recoveryLoop() {
	for range e.recover {
		if old := e.handle.Swap(nil); old != nil {
			_ = old.Close()
		}
		h, err := ring.CreateOrOpen(e.path, e.ringCfg)
		if err != nil {
			e.state.Store(uint32(Error))
			continue
		}
		h.SetProducerConnected(true)
		e.handle.Store(h)
		e.state.Store(uint32(Connected))
	}
}

// WriteMixedOutput is the OS "write mixed output" callback. It must
// never block the OS audio thread: on any failure it increments a
// counter and returns silently. data is one buffer in the given
// StreamFormat, at sampleRate.
func (e *Endpoint) WriteMixedOutput(data []byte, format StreamFormat, sampleRate int) {
	if State(e.state.Load()) != Connected {
		return
	}
	h := e.handle.Load()
	if h == nil {
		return
	}

	now := nowFunc()
	if now.Sub(e.lastHealthCheck) >= healthCheckInterval {
		e.lastHealthCheck = now
		if !e.healthy(h) {
			e.Counters.RecoveryCount.Add(1)
			e.state.Store(uint32(Error))
			e.requestRecovery()
			return
		}
	}
	if now.Sub(e.lastHeartbeat) >= heartbeatInterval {
		e.lastHeartbeat = now
		h.UpdateHeartbeatProducer()
	}

	if format != e.streamFormat || sampleRate != e.streamRate {
		e.streamFormat = format
		e.streamRate = sampleRate
		ringRate := int(h.SampleRate())
		if sampleRate != ringRate {
			e.resampler = NewResampler(sampleRate, ringRate)
		} else {
			e.resampler = nil
		}
		h.NoteFormatChange()
		e.Counters.FormatChanges.Add(1)
	}

	var frames int
	e.interleaved, frames = ToInterleavedFloat32(e.interleaved, data, format)
	if frames == 0 {
		return
	}

	channels := int(h.Channels())
	if format.Channels != channels {
		// Mismatched channel counts beyond what the ring was created
		// for cannot be safely reinterpreted; drop the buffer rather
		// than write corrupt frames.
		h.NoteFormatMismatch()
		e.Counters.ConvertFailures.Add(1)
		return
	}

	toWrite := e.interleaved[:frames*channels]
	if e.resampler != nil {
		toWrite = e.resampleInterleaved(toWrite, channels)
		frames = len(toWrite) / channels
	}

	if _, err := h.Write(toWrite, frames); err != nil {
		e.Counters.ConvertFailures.Add(1)
	}
}

// resampleInterleaved resamples each channel of an interleaved buffer
// independently, reusing member-owned scratch slices. Only ever called
// from WriteMixedOutput on the single IO thread.
func (e *Endpoint) resampleInterleaved(in []float32, channels int) []float32 {
	frames := len(in) / channels
	if cap(e.mono) < frames {
		e.mono = make([]float32, frames)
	}
	e.mono = e.mono[:frames]

	var outFrames int
	for c := 0; c < channels; c++ {
		for i := 0; i < frames; i++ {
			e.mono[i] = in[i*channels+c]
		}
		e.resampled = e.resampler.Resample(e.resampled, e.mono)
		outFrames = len(e.resampled)
		need := outFrames * channels
		if cap(e.resampledOut) < need {
			e.resampledOut = make([]float32, need)
		}
		e.resampledOut = e.resampledOut[:need]
		for i := range e.resampled {
			e.resampledOut[i*channels+c] = e.resampled[i]
		}
	}
	return e.resampledOut[:outFrames*channels]
}

// healthy evaluates the spec's health predicates against h (ring file
// still exists, host connected, host heartbeat fresh, write_index >=
// read_index, used <= capacity). Called from WriteMixedOutput, gated to
// at most once per healthCheckInterval; it only judges health, it never
// performs the reattach itself (see recoveryLoop).
func (e *Endpoint) healthy(h *ring.Handle) bool {
	if !ring.Exists(e.path) {
		return false
	}
	if !h.ConsumerConnected() {
		return false
	}
	stats := h.Snapshot()
	if stats.WriteIndex < stats.ReadIndex {
		return false
	}
	if stats.WriteIndex-stats.ReadIndex > uint64(h.CapacityFrames()) {
		return false
	}
	return e.hostHeartbeatFresh(stats.HostHeartbeat)
}

// hostHeartbeatFresh tracks the last distinct host_heartbeat value seen
// and when it was first observed, so "changed within the last 5s" can
// be judged without the health check itself running any more often
// than healthCheckInterval.
func (e *Endpoint) hostHeartbeatFresh(current uint64) bool {
	now := nowFunc()
	if current != e.lastHostHeartbeatValue {
		e.lastHostHeartbeatValue = current
		e.lastHostHeartbeatSeenAt = now
		return true
	}
	if e.lastHostHeartbeatSeenAt.IsZero() {
		e.lastHostHeartbeatSeenAt = now
		return true
	}
	return now.Sub(e.lastHostHeartbeatSeenAt) < ring.HeartbeatFreshWindowSeconds*time.Second
}

var nowFunc = time.Now
