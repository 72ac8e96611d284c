package dsp

import (
	"math"
	"testing"

	"github.com/agalue/radioform/internal/biquad"
	"github.com/agalue/radioform/internal/preset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineBuffer(n int, freqHz, sampleRate float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * freqHz * float64(i) / sampleRate))
	}
	return out
}

func TestCreateRejectsInvalidRate(t *testing.T) {
	_, err := Create(4000)
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = Create(500000)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

// Invariant 5 analogue: flat preset, bypass off, is transparent aside
// from the DC blocker's near-unity passthrough at audio frequencies.
func TestFlatPresetIsTransparent(t *testing.T) {
	e, err := Create(48000)
	require.NoError(t, err)

	in := sineBuffer(4800, 1000, 48000)
	outL := make([]float32, len(in))
	outR := make([]float32, len(in))
	e.ProcessPlanar(in, in, outL, outR, len(in))

	// Settle past the DC blocker's warm-up, then compare shape.
	for i := 1000; i < len(in); i++ {
		assert.InDelta(t, float64(in[i]), float64(outL[i]), 0.05)
	}
}

// Invariant 5 (bit-exact bypass): with bypass enabled, out == in for
// any finite buffer, regardless of preset.
func TestBypassIsBitExact(t *testing.T) {
	e, err := Create(48000)
	require.NoError(t, err)
	require.NoError(t, e.ApplyPreset(preset.Preset{
		Bands: []preset.Band{{FrequencyHz: 1000, GainDB: 10, Q: 2, Kind: biquad.Peak, Enabled: true}},
		PreampDB: 5,
	}))
	e.SetBypass(true)

	in := sineBuffer(512, 440, 48000)
	outL := make([]float32, len(in))
	outR := make([]float32, len(in))
	e.ProcessPlanar(in, in, outL, outR, len(in))

	assert.Equal(t, in, outL)
	assert.Equal(t, in, outR)
}

func TestApplyPresetRejectsInvalidAndKeepsPrior(t *testing.T) {
	e, err := Create(48000)
	require.NoError(t, err)
	good := preset.Preset{PreampDB: 3}
	require.NoError(t, e.ApplyPreset(good))

	bad := preset.Preset{PreampDB: 999}
	err = e.ApplyPreset(bad)
	assert.ErrorIs(t, err, preset.ErrInvalidPreset)
	assert.Equal(t, good.PreampDB, e.current.PreampDB)
}

func TestUpdateBandGainClampsAndSmooths(t *testing.T) {
	e, err := Create(48000)
	require.NoError(t, err)
	require.NoError(t, e.ApplyPreset(preset.Preset{
		Bands: []preset.Band{{FrequencyHz: 1000, GainDB: 0, Q: 1, Kind: biquad.Peak, Enabled: true}},
	}))

	e.UpdateBandGain(0, 999) // clamps to MaxGainDB
	assert.Equal(t, preset.MaxGainDB, e.current.Bands[0].GainDB)

	in := make([]float32, 1000)
	for i := range in {
		in[i] = 0.5
	}
	outL := make([]float32, len(in))
	outR := make([]float32, len(in))
	e.ProcessPlanar(in, in, outL, outR, len(in))
	for i := 1; i < len(in); i++ {
		assert.Less(t, math.Abs(float64(outL[i]-outL[i-1])), 0.2)
	}
}

func TestUpdateBandGainIgnoresOutOfRangeIndex(t *testing.T) {
	e, err := Create(48000)
	require.NoError(t, err)
	e.UpdateBandGain(99, 5) // must not panic
}

func TestSetSampleRateReappliesPreset(t *testing.T) {
	e, err := Create(48000)
	require.NoError(t, err)
	require.NoError(t, e.ApplyPreset(preset.Preset{
		Bands: []preset.Band{{FrequencyHz: 1000, GainDB: 6, Q: 1, Kind: biquad.Peak, Enabled: true}},
	}))
	require.NoError(t, e.SetSampleRate(96000))
	assert.Equal(t, 1, e.activeBands)
}

func TestResetClearsMetersAndState(t *testing.T) {
	e, err := Create(48000)
	require.NoError(t, err)
	in := sineBuffer(1000, 1000, 48000)
	outL := make([]float32, len(in))
	outR := make([]float32, len(in))
	e.ProcessPlanar(in, in, outL, outR, len(in))
	e.Reset()
	stats := e.Stats()
	assert.Equal(t, meterFloorDB, stats.PeakLDB)
}

func TestStatsReportsBypassAndBandCount(t *testing.T) {
	e, err := Create(48000)
	require.NoError(t, err)
	require.NoError(t, e.ApplyPreset(preset.Preset{
		Bands: []preset.Band{
			{FrequencyHz: 1000, GainDB: 1, Q: 1, Kind: biquad.Peak, Enabled: true},
			{FrequencyHz: 2000, GainDB: 1, Q: 1, Kind: biquad.Peak, Enabled: false},
		},
	}))
	e.SetBypass(true)
	stats := e.Stats()
	assert.True(t, stats.Bypassed)
	assert.Equal(t, 1, stats.ActiveBand)
}

func TestProcessInterleavedMatchesPlanar(t *testing.T) {
	e, err := Create(48000)
	require.NoError(t, err)
	require.NoError(t, e.ApplyPreset(preset.Preset{PreampDB: 2}))

	n := 256
	l := sineBuffer(n, 500, 48000)
	r := sineBuffer(n, 700, 48000)
	interleaved := make([]float32, 2*n)
	for i := 0; i < n; i++ {
		interleaved[2*i] = l[i]
		interleaved[2*i+1] = r[i]
	}

	outL := make([]float32, n)
	outR := make([]float32, n)
	e.ProcessPlanar(l, r, outL, outR, n)

	e2, err := Create(48000)
	require.NoError(t, err)
	require.NoError(t, e2.ApplyPreset(preset.Preset{PreampDB: 2}))
	out := make([]float32, 2*n)
	scratchL := make([]float32, n)
	scratchR := make([]float32, n)
	scratchOutL := make([]float32, n)
	scratchOutR := make([]float32, n)
	e2.ProcessInterleaved(interleaved, out, n, scratchL, scratchR, scratchOutL, scratchOutR)

	for i := 0; i < n; i++ {
		assert.InDelta(t, float64(outL[i]), float64(out[2*i]), 1e-6)
		assert.InDelta(t, float64(outR[i]), float64(out[2*i+1]), 1e-6)
	}
}
