package preset

import (
	"testing"

	"github.com/agalue/radioform/internal/biquad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBand() Band {
	return Band{FrequencyHz: 1000, GainDB: 3, Q: 1.0, Kind: biquad.Peak, Enabled: true}
}

func TestFlatPresetValidates(t *testing.T) {
	assert.NoError(t, Flat().Validate())
}

func TestValidPresetValidates(t *testing.T) {
	p := Preset{Name: "Test", Bands: []Band{validBand()}, PreampDB: 2, LimiterEnabled: true, LimiterThresholdDB: -1}
	assert.NoError(t, p.Validate())
}

func TestInvariant4_OutOfRangeFieldsRejected(t *testing.T) {
	cases := []Preset{
		{Bands: []Band{{FrequencyHz: 10, GainDB: 0, Q: 1, Kind: biquad.Peak}}},    // freq too low
		{Bands: []Band{{FrequencyHz: 30000, GainDB: 0, Q: 1, Kind: biquad.Peak}}}, // freq too high
		{Bands: []Band{{FrequencyHz: 1000, GainDB: 20, Q: 1, Kind: biquad.Peak}}}, // gain too high
		{Bands: []Band{{FrequencyHz: 1000, GainDB: 0, Q: 0.01, Kind: biquad.Peak}}}, // q too low
		{PreampDB: 50},
		{LimiterThresholdDB: 5},
	}
	for _, p := range cases {
		assert.ErrorIs(t, p.Validate(), ErrInvalidPreset)
	}
}

func TestTooManyBandsRejected(t *testing.T) {
	p := Preset{}
	for i := 0; i < MaxBands+1; i++ {
		p.Bands = append(p.Bands, validBand())
	}
	assert.ErrorIs(t, p.Validate(), ErrInvalidPreset)
}

func TestNonFiniteRejected(t *testing.T) {
	p := Preset{Bands: []Band{{FrequencyHz: 1000, GainDB: 0, Q: 1, Kind: biquad.Peak}}, PreampDB: math_NaN()}
	assert.ErrorIs(t, p.Validate(), ErrInvalidPreset)
}

func TestJSONRoundtrip(t *testing.T) {
	p := Preset{Name: "Roundtrip", Bands: []Band{validBand()}, PreampDB: 1, LimiterEnabled: true, LimiterThresholdDB: -2}
	data, err := p.ToJSON()
	require.NoError(t, err)

	got, err := ParseJSON(data)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestParseJSONRejectsInvalid(t *testing.T) {
	_, err := ParseJSON([]byte(`{"preamp_db": 999}`))
	assert.ErrorIs(t, err, ErrInvalidPreset)
}

func math_NaN() float64 {
	var zero float64
	return zero / zero
}
