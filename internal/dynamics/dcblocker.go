// Package dynamics implements the DSP engine's non-filtering stages: a
// DC-blocking high-pass and a zero-latency soft limiter.
package dynamics

import "math"

// DefaultDCBlockerHz is the default cutoff frequency for the DC blocker.
const DefaultDCBlockerHz = 5.0

// minDCBlockerK and maxDCBlockerK bound the feedback coefficient so an
// extreme cutoff can never produce an unstable or all-pass filter.
const (
	minDCBlockerK = 0.95
	maxDCBlockerK = 0.9999
)

// DCBlocker is a first-order high-pass: y[n] = x[n] - x[n-1] + k*y[n-1].
// One instance is kept per audio channel.
type DCBlocker struct {
	k        float64
	lastIn   float64
	lastOut  float64
}

// NewDCBlocker returns a DCBlocker for the given cutoff frequency (Hz)
// and sample rate.
func NewDCBlocker(cutoffHz, sampleRate float64) *DCBlocker {
	d := &DCBlocker{}
	d.SetCutoff(cutoffHz, sampleRate)
	return d
}

// SetCutoff re-derives k = 1 - 2*pi*fc/fs, clamped to [0.95, 0.9999].
// Intended for the configuration tier (engine construction or sample
// rate change).
func (d *DCBlocker) SetCutoff(cutoffHz, sampleRate float64) {
	k := 1 - 2*math.Pi*cutoffHz/sampleRate
	if k < minDCBlockerK {
		k = minDCBlockerK
	}
	if k > maxDCBlockerK {
		k = maxDCBlockerK
	}
	d.k = k
}

// Reset clears the filter's delay-line state.
func (d *DCBlocker) Reset() {
	d.lastIn = 0
	d.lastOut = 0
}

// Process runs one sample through the blocker. Real-time safe.
func (d *DCBlocker) Process(x float32) float32 {
	xf := float64(x)
	y := xf - d.lastIn + d.k*d.lastOut
	d.lastIn = xf
	d.lastOut = y
	return float32(y)
}
