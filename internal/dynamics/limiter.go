package dynamics

import "math"

// kneeFraction is the fraction of threshold at which the soft knee
// begins; below it the limiter is bit-exact passthrough.
const kneeFraction = 0.8

// Limiter is a near-zero-latency amplitude ceiling with a rational-
// function soft knee, preferred over tanh for lower harmonic content at
// equal cost, and over a look-ahead brick-wall design because it adds no
// algorithmic latency.
type Limiter struct {
	threshold float64
	kneeStart float64
}

// NewLimiter returns a Limiter for the given threshold in dBFS.
func NewLimiter(thresholdDB float64) *Limiter {
	l := &Limiter{}
	l.SetThresholdDB(thresholdDB)
	return l
}

// SetThresholdDB re-derives the linear threshold and knee start.
func (l *Limiter) SetThresholdDB(thresholdDB float64) {
	l.threshold = math.Pow(10, thresholdDB/20)
	l.kneeStart = kneeFraction * l.threshold
}

// Threshold and KneeStart expose the linear-scale values, e.g. for
// tests that need to compare against the spec's literal constants.
func (l *Limiter) Threshold() float64 { return l.threshold }
func (l *Limiter) KneeStart() float64 { return l.kneeStart }

// Process applies the soft knee to one sample. Below kneeStart the
// signal passes through unchanged; above it, the excess is compressed
// by a rational function that approaches but never reaches threshold.
func (l *Limiter) Process(x float32) float32 {
	xf := float64(x)
	mag := math.Abs(xf)
	if mag <= l.kneeStart {
		return x
	}

	sign := 1.0
	if xf < 0 {
		sign = -1.0
	}

	scaled := (mag - l.kneeStart) / (l.threshold - l.kneeStart)
	y := l.kneeStart + (l.threshold-l.kneeStart)*scaled/(1+scaled)
	return float32(sign * y)
}
