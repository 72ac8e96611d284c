package dynamics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// Invariant 7: DC rejection. A constant input's absolute mean, after a
// 5/fc * fs sample warm-up, drops below 1e-3.
func TestDCBlockerRejectsDC(t *testing.T) {
	const sampleRate = 48000.0
	d := NewDCBlocker(DefaultDCBlockerHz, sampleRate)

	warmup := int(5 / DefaultDCBlockerHz * sampleRate)
	for i := 0; i < warmup; i++ {
		d.Process(0.5)
	}

	var sum float64
	const measure = 4800
	for i := 0; i < measure; i++ {
		sum += math.Abs(float64(d.Process(0.5)))
	}
	mean := sum / measure
	assert.Less(t, mean, 1e-3)
}

func TestDCBlockerCutoffClamped(t *testing.T) {
	d := NewDCBlocker(1e9, 48000)
	assert.GreaterOrEqual(t, d.k, minDCBlockerK)
	d2 := NewDCBlocker(-1e9, 48000)
	assert.LessOrEqual(t, d2.k, maxDCBlockerK)
}

// S6: limiter soft-knee behavior.
func TestLimiterSoftKnee(t *testing.T) {
	l := NewLimiter(-0.1)
	threshold := math.Pow(10, -0.1/20)
	kneeStart := 0.8 * threshold

	assert.InDelta(t, 0.791, kneeStart, 0.01)
	assert.InDelta(t, 0.989, threshold, 0.01)

	// Below the knee: bit-exact passthrough.
	below := float32(kneeStart * 0.5)
	assert.Equal(t, below, l.Process(below))

	// Above the knee: output approaches but never reaches threshold,
	// and rises monotonically with input.
	var last float32
	for amp := 0.0; amp <= 2.0; amp += 0.05 {
		x := float32(amp)
		y := l.Process(x)
		if amp > kneeStart {
			assert.Less(t, float64(y), threshold)
		}
		assert.GreaterOrEqual(t, y, last)
		last = y
	}
}

func TestLimiterPreservesSign(t *testing.T) {
	l := NewLimiter(-0.1)
	pos := l.Process(1.5)
	neg := l.Process(-1.5)
	assert.Greater(t, pos, float32(0))
	assert.Less(t, neg, float32(0))
	assert.InDelta(t, float64(pos), float64(-neg), 1e-6)
}
