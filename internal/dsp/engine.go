// Package dsp orchestrates the per-band biquad cascade, preamp
// smoother, DC blocker, and soft limiter into the engine the host
// render thread drives once per buffer. Its public contract has two
// tiers, matching the callers it has to serve: a configuration tier
// (apply_preset, set_sample_rate, reset) that runs on the control
// thread and is free to allocate, and a real-time tier (process_*,
// set_bypass, update_band_*) that runs on the audio thread and never
// allocates, blocks, or locks.
package dsp

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"github.com/agalue/radioform/internal/biquad"
	"github.com/agalue/radioform/internal/dsp/fastmath"
	"github.com/agalue/radioform/internal/dynamics"
	"github.com/agalue/radioform/internal/preset"
	"github.com/agalue/radioform/internal/smoother"
)

// MinSampleRate and MaxSampleRate bound create/set_sample_rate.
const (
	MinSampleRate = 8000
	MaxSampleRate = 384000
)

// ErrInvalidRate is returned by Create and SetSampleRate when the
// requested rate falls outside [MinSampleRate, MaxSampleRate].
var ErrInvalidRate = errors.New("dsp: invalid sample rate")

// bandTransitionMs is the ~10ms smoothing window update_band_*
// uses to avoid zipper noise on live parameter changes, per spec.md
// §4.5.
const bandTransitionMs = 10.0

// meterDecayMs is the peak meter's release time constant.
const meterDecayMs = 300.0

// meterFloorDB is the dBFS floor peaks are clamped to for reporting.
const meterFloorDB = -120.0

// loadSmoothingAlpha is the weight given to the previous CPU-load
// reading when folding in a new instantaneous measurement.
const loadSmoothingAlpha = 0.9

// Engine is the real-time-safe parametric EQ: preamp smoother, an
// array of biquad stages sized to preset.MaxBands, a stereo DC
// blocker, a soft limiter, and the bookkeeping (bypass, meters, CPU
// load) the spec requires. An Engine is exclusive to the host process;
// the control and render threads share it only via the wait-free
// primitives called out per-field below.
type Engine struct {
	sampleRate float64

	current     preset.Preset
	stages      [preset.MaxBands]*biquad.Stage
	activeBands int
	numBands    int

	preamp       *smoother.Smoother
	dcBlockerL   *dynamics.DCBlocker
	dcBlockerR   *dynamics.DCBlocker
	limiter      *dynamics.Limiter
	limiterOn    atomic.Bool

	bypass atomic.Bool

	peakL atomic.Uint64 // float64 bits, linear magnitude
	peakR atomic.Uint64

	cpuLoad atomic.Uint64 // float64 bits, fraction of real time
}

// Stats is a snapshot of the engine's meters and bookkeeping, exported for
// diagnostics and the host UI's metering display.
type Stats struct {
	PeakLDB    float64
	PeakRDB    float64
	CPULoad    float64
	Bypassed   bool
	ActiveBand int
}

// Create validates sampleRate and returns a new Engine with the flat
// preset installed. Configuration tier: not real-time-safe.
func Create(sampleRate float64) (*Engine, error) {
	if !validRate(sampleRate) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, sampleRate)
	}
	e := &Engine{sampleRate: sampleRate}
	for i := range e.stages {
		e.stages[i] = biquad.NewStage()
	}
	e.preamp = smoother.New(sampleRate)
	e.dcBlockerL = dynamics.NewDCBlocker(dynamics.DefaultDCBlockerHz, sampleRate)
	e.dcBlockerR = dynamics.NewDCBlocker(dynamics.DefaultDCBlockerHz, sampleRate)
	e.limiter = dynamics.NewLimiter(preset.MaxLimiterThresholdDB)
	if err := e.ApplyPreset(preset.Flat()); err != nil {
		return nil, err
	}
	return e, nil
}

func validRate(r float64) bool {
	return r >= MinSampleRate && r <= MaxSampleRate && !math.IsNaN(r) && !math.IsInf(r, 0)
}

// ApplyPreset validates p, then installs it. Per enabled band the
// stage is recomputed instantly -- this is the configuration tier, not
// a real-time caller, so there is no prior audible state to protect
// with smoothing. On validation failure the engine's current preset is
// left untouched (invariant 4).
func (e *Engine) ApplyPreset(p preset.Preset) error {
	if err := p.Validate(); err != nil {
		return err
	}

	active := 0
	for i := range e.stages {
		if i >= len(p.Bands) || !p.Bands[i].Enabled {
			e.stages[i].SetFlat()
			continue
		}
		b := p.Bands[i]
		e.stages[i].SetCoeffs(b.Kind, b.FrequencyHz, b.GainDB, b.Q, e.sampleRate)
		active++
	}
	e.activeBands = active
	e.numBands = len(p.Bands)

	e.preamp.SetValue(dbToLinear(p.PreampDB))
	e.limiter.SetThresholdDB(p.LimiterThresholdDB)
	e.limiterOn.Store(p.LimiterEnabled)
	e.current = p
	return nil
}

// SetSampleRate re-initializes the preamp smoother and DC blocker at
// the new rate and re-applies the current preset so band coefficients
// are recomputed for it. Configuration tier.
func (e *Engine) SetSampleRate(sampleRate float64) error {
	if !validRate(sampleRate) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, sampleRate)
	}
	e.sampleRate = sampleRate
	e.preamp.SetSampleRate(sampleRate)
	e.dcBlockerL.SetCutoff(dynamics.DefaultDCBlockerHz, sampleRate)
	e.dcBlockerR.SetCutoff(dynamics.DefaultDCBlockerHz, sampleRate)
	return e.ApplyPreset(e.current)
}

// Reset clears all biquad and DC-blocker delay-line state and resets
// statistics, without touching the installed preset. Configuration
// tier.
func (e *Engine) Reset() {
	for i := range e.stages {
		e.stages[i].SetFlat()
	}
	e.dcBlockerL.Reset()
	e.dcBlockerR.Reset()
	e.peakL.Store(0)
	e.peakR.Store(0)
	e.cpuLoad.Store(0)
	// Re-apply current preset so bands don't stay flat after reset.
	_ = e.ApplyPreset(e.current)
}

// SetBypass atomically enables or disables bypass. Real-time tier.
func (e *Engine) SetBypass(b bool) { e.bypass.Store(b) }

// GetBypass reports the current bypass state. Real-time tier.
func (e *Engine) GetBypass() bool { return e.bypass.Load() }

// UpdateBandGain clamps db to the preset's valid range, updates the
// stored preset record, and re-coefficients the band's stage with
// ~10ms smoothing. Real-time tier: safe to call from the same thread
// that calls process_*; per spec.md §4.5's note, allowing control-
// thread callers instead requires a wait-free handoff this Engine does
// not provide.
func (e *Engine) UpdateBandGain(i int, db float64) {
	if !e.validBandIndex(i) {
		return
	}
	db = clamp(db, preset.MinGainDB, preset.MaxGainDB)
	e.current.Bands[i].GainDB = db
	e.recomputeBandSmooth(i)
}

// UpdateBandFrequency clamps hz to the valid range and re-coefficients
// the band's stage with smoothing. Real-time tier.
func (e *Engine) UpdateBandFrequency(i int, hz float64) {
	if !e.validBandIndex(i) {
		return
	}
	hz = clamp(hz, preset.MinFrequencyHz, preset.MaxFrequencyHz)
	e.current.Bands[i].FrequencyHz = hz
	e.recomputeBandSmooth(i)
}

// UpdateBandQ clamps q to the valid range and re-coefficients the
// band's stage with smoothing. Real-time tier.
func (e *Engine) UpdateBandQ(i int, q float64) {
	if !e.validBandIndex(i) {
		return
	}
	q = clamp(q, preset.MinQ, preset.MaxQ)
	e.current.Bands[i].Q = q
	e.recomputeBandSmooth(i)
}

func (e *Engine) validBandIndex(i int) bool {
	return i >= 0 && i < len(e.current.Bands) && i < len(e.stages)
}

func (e *Engine) recomputeBandSmooth(i int) {
	b := e.current.Bands[i]
	if !b.Enabled {
		return
	}
	transitionSamples := int(bandTransitionMs * e.sampleRate / 1000.0)
	e.stages[i].SetCoeffsSmooth(b.Kind, b.FrequencyHz, b.GainDB, b.Q, e.sampleRate, transitionSamples)
}

// UpdatePreamp sets the preamp smoother's target; the ramp itself
// advances one sample at a time inside ProcessInterleaved/ProcessPlanar.
// Real-time tier.
func (e *Engine) UpdatePreamp(db float64) {
	db = clamp(db, preset.MinGainDB, preset.MaxGainDB)
	e.current.PreampDB = db
	e.preamp.SetTarget(dbToLinear(db))
}

// Stats returns a snapshot of the engine's meters, CPU load, and
// bypass/band-count bookkeeping. Peaks, CPU load and bypass are read via
// atomics; ActiveBand is a plain field written by ApplyPreset.
func (e *Engine) Stats() Stats {
	return Stats{
		PeakLDB:    linearToDB(math.Float64frombits(e.peakL.Load())),
		PeakRDB:    linearToDB(math.Float64frombits(e.peakR.Load())),
		CPULoad:    math.Float64frombits(e.cpuLoad.Load()),
		Bypassed:   e.bypass.Load(),
		ActiveBand: e.activeBands,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func dbToLinear(db float64) float64 { return math.Pow(10, db/20) }

func linearToDB(v float64) float64 {
	if v <= 0 {
		return meterFloorDB
	}
	db := 20 * math.Log10(v)
	if db < meterFloorDB {
		return meterFloorDB
	}
	return db
}
