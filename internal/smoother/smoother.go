// Package smoother implements a sample-rate-aware parameter ramp used to
// eliminate zipper noise on scalar DSP parameters such as preamp gain.
package smoother

import "math"

// Smoother is a one-pole exponential filter with an outer velocity-
// damping loop, ramping a scalar value toward a target over a
// configurable time constant.
type Smoother struct {
	sampleRate   float64
	timeConstant float64 // ms
	coeff        float64
	velocityCoeff float64

	current  float64
	target   float64
	velocity float64
}

// velocityCoeff is fixed: it controls how quickly the velocity term
// itself responds to a change in (target - current), distinct from the
// coeff that controls how quickly current chases target.
const defaultVelocityCoeff = 0.5

// New returns a Smoother initialized to value 0 at the given sample rate
// and a 10ms time constant (the engine's default for preamp smoothing).
func New(sampleRate float64) *Smoother {
	s := &Smoother{sampleRate: sampleRate, velocityCoeff: defaultVelocityCoeff}
	s.SetTimeConstant(10)
	return s
}

// SetTimeConstant sets the ramp's responsiveness: coeff = exp(-1 / (ms *
// sampleRate / 1000)).
func (s *Smoother) SetTimeConstant(ms float64) {
	s.timeConstant = ms
	s.coeff = math.Exp(-1.0 / (ms * s.sampleRate / 1000.0))
}

// SetSampleRate re-derives coeff for a new sample rate, keeping the same
// time constant. Intended for the configuration tier only.
func (s *Smoother) SetSampleRate(sampleRate float64) {
	s.sampleRate = sampleRate
	s.SetTimeConstant(s.timeConstant)
}

// SetTarget sets the value the smoother ramps toward. target is a plain
// field, not an atomic: calls must come from the thread that calls Next.
func (s *Smoother) SetTarget(target float64) {
	s.target = target
}

// SetValue snaps current to value immediately and zeroes velocity. Used
// at engine (re)initialization, where there is no prior audible state to
// protect.
func (s *Smoother) SetValue(value float64) {
	s.current = value
	s.target = value
	s.velocity = 0
}

// Next advances the ramp by one sample and returns the new current
// value. Real-time safe: no allocation, no locks.
func (s *Smoother) Next() float64 {
	s.velocity = s.velocityCoeff*s.velocity + (1-s.velocityCoeff)*(s.target-s.current)
	s.current = s.coeff*s.current + (1-s.coeff)*(s.target-0.5*s.velocity)
	return s.current
}

// Current returns the smoother's current value without advancing it.
func (s *Smoother) Current() float64 { return s.current }

// IsStable reports whether the ramp has settled: both the distance to
// target and the velocity are within eps.
func (s *Smoother) IsStable(eps float64) bool {
	return math.Abs(s.current-s.target) < eps && math.Abs(s.velocity) < eps
}
