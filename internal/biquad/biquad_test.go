package biquad

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// S4/invariant 5 analogue: a flat stage is bit-exact passthrough.
func TestFlatStageIsTransparent(t *testing.T) {
	s := NewStage()
	n := 256
	in := make([]float32, n)
	for i := range in {
		in[i] = float32(math.Sin(float64(i) * 0.1))
	}
	outL := make([]float32, n)
	outR := make([]float32, n)
	s.ProcessBuffer(in, in, outL, outR, n)

	assert.Equal(t, in, outL)
	assert.Equal(t, in, outR)
}

// Invariant 6: a peak band with gain_db=0 is indistinguishable from flat.
func TestUnityGainPeakMatchesFlat(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		freq := rapid.Float64Range(20, 20000).Draw(t, "freq")
		q := rapid.Float64Range(0.1, 10).Draw(t, "q")

		flat := NewStage()
		peak := NewStage()
		peak.SetCoeffs(Peak, freq, 0, q, 48000)

		n := 64
		in := make([]float32, n)
		for i := range in {
			in[i] = float32(math.Sin(float64(i) * 0.05))
		}
		flatOut := make([]float32, n)
		peakOut := make([]float32, n)
		flat.ProcessBuffer(in, in, flatOut, flatOut, n)
		peak.ProcessBuffer(in, in, peakOut, peakOut, n)

		for i := range in {
			assert.InDelta(t, flatOut[i], peakOut[i], 1e-6)
		}
	})
}

// S5: a +6dB peak band at 1kHz, Q=1 boosts 1kHz and leaves 100Hz/10kHz
// roughly unaffected, measured via sinusoidal steady-state probes.
func TestPeakFrequencyResponse(t *testing.T) {
	const sampleRate = 48000.0
	s := NewStage()
	s.SetCoeffs(Peak, 1000, 6, 1.0, sampleRate)

	measureDB := func(probeHz float64) float64 {
		s2 := NewStage()
		s2.SetCoeffs(Peak, 1000, 6, 1.0, sampleRate)
		n := 4800
		in := make([]float32, n)
		for i := 0; i < n; i++ {
			in[i] = float32(math.Sin(2 * math.Pi * probeHz * float64(i) / sampleRate))
		}
		out := make([]float32, n)
		s2.ProcessBuffer(in, in, out, out, n)

		// Measure peak amplitude over the final quarter, once the
		// filter has reached steady state.
		start := n * 3 / 4
		var peakIn, peakOut float32
		for i := start; i < n; i++ {
			if v := abs32(in[i]); v > peakIn {
				peakIn = v
			}
			if v := abs32(out[i]); v > peakOut {
				peakOut = v
			}
		}
		return 20 * math.Log10(float64(peakOut)/float64(peakIn))
	}

	require.InDelta(t, 6.0, measureDB(1000), 1.0)
	require.InDelta(t, 0.0, measureDB(100), 1.0)
	require.InDelta(t, 0.0, measureDB(10000), 1.0)
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// Invariant 8 analogue: a smooth coefficient transition changes the
// stage's response gradually, never snapping discontinuously mid-ramp.
func TestSmoothTransitionHasNoDiscontinuity(t *testing.T) {
	s := NewStage()
	s.SetCoeffs(Peak, 1000, 0, 1.0, 48000)
	s.SetCoeffsSmooth(Peak, 1000, 12, 1.0, 48000, 480) // ~10ms at 48kHz

	n := 480
	in := make([]float32, n)
	for i := range in {
		in[i] = 0.5
	}
	out := make([]float32, n)
	s.ProcessBuffer(in, in, out, out, n)

	for i := 1; i < n; i++ {
		assert.Less(t, math.Abs(float64(out[i]-out[i-1])), 0.2)
	}
}

func TestNonFiniteCoeffsForceFlat(t *testing.T) {
	s := NewStage()
	s.SetCoeffs(Peak, 1000, 6, 1.0, 48000)
	s.SetCoeffs(Peak, 1000, math.NaN(), 1.0, 48000) // NaN gain -> non-finite coefficients
	assert.Equal(t, Flat, s.current)
}
