// Package preset defines the EQ preset/band data model, its JSON wire
// shape, and the range validation that gates apply_preset.
package preset

import (
	"fmt"
	"math"

	"github.com/agalue/radioform/internal/biquad"
)

// MaxBands bounds the number of bands a preset may carry. Named after
// the spec's RADIOFORM_MAX_BANDS constant.
const MaxBands = 10

// Range bounds for preset/band fields.
const (
	MinFrequencyHz = 20.0
	MaxFrequencyHz = 20000.0
	MinGainDB      = -12.0
	MaxGainDB      = 12.0
	MinQ           = 0.1
	MaxQ           = 10.0
	MinLimiterThresholdDB = -6.0
	MaxLimiterThresholdDB = 0.0
)

// Band is one stage of the EQ cascade.
type Band struct {
	FrequencyHz float64    `json:"frequency_hz"`
	GainDB      float64    `json:"gain_db"`
	Q           float64    `json:"q_factor"`
	Kind        biquad.Kind `json:"type"`
	Enabled     bool       `json:"enabled"`
}

// Validate checks a single band's fields against the declared ranges,
// rejecting non-finite values and anything out of range.
func (b Band) Validate() error {
	if !finite(b.FrequencyHz) || b.FrequencyHz < MinFrequencyHz || b.FrequencyHz > MaxFrequencyHz {
		return fmt.Errorf("%w: frequency_hz %v out of [%v,%v]", ErrInvalidPreset, b.FrequencyHz, MinFrequencyHz, MaxFrequencyHz)
	}
	if !finite(b.GainDB) || b.GainDB < MinGainDB || b.GainDB > MaxGainDB {
		return fmt.Errorf("%w: gain_db %v out of [%v,%v]", ErrInvalidPreset, b.GainDB, MinGainDB, MaxGainDB)
	}
	if !finite(b.Q) || b.Q < MinQ || b.Q > MaxQ {
		return fmt.Errorf("%w: q_factor %v out of [%v,%v]", ErrInvalidPreset, b.Q, MinQ, MaxQ)
	}
	if b.Kind > biquad.BandPass {
		return fmt.Errorf("%w: unknown filter type %v", ErrInvalidPreset, b.Kind)
	}
	return nil
}

// Preset is the full engine configuration: a named cascade plus preamp
// and limiter settings.
type Preset struct {
	Name                string `json:"name"`
	Bands               []Band `json:"bands"`
	PreampDB            float64 `json:"preamp_db"`
	LimiterEnabled      bool    `json:"limiter_enabled"`
	LimiterThresholdDB  float64 `json:"limiter_threshold_db"`
}

// Flat returns the preset with no enabled bands, 0dB preamp, and the
// limiter disabled -- the identity configuration used by invariant 5
// (bit-exact bypass) and S4 (flat preset is transparent).
func Flat() Preset {
	return Preset{
		Name:               "Flat",
		Bands:              nil,
		PreampDB:           0,
		LimiterEnabled:     false,
		LimiterThresholdDB: 0,
	}
}

// Validate checks every field against its declared range, per invariant
// 4: any out-of-range or non-finite field causes the whole preset to be
// rejected, and the caller (the DSP engine's apply_preset) must leave
// its prior state in force rather than partially apply this one.
func (p Preset) Validate() error {
	if len(p.Bands) > MaxBands {
		return fmt.Errorf("%w: %d bands exceeds max of %d", ErrInvalidPreset, len(p.Bands), MaxBands)
	}
	if !finite(p.PreampDB) || p.PreampDB < MinGainDB || p.PreampDB > MaxGainDB {
		return fmt.Errorf("%w: preamp_db %v out of [%v,%v]", ErrInvalidPreset, p.PreampDB, MinGainDB, MaxGainDB)
	}
	if !finite(p.LimiterThresholdDB) || p.LimiterThresholdDB < MinLimiterThresholdDB || p.LimiterThresholdDB > MaxLimiterThresholdDB {
		return fmt.Errorf("%w: limiter_threshold_db %v out of [%v,%v]", ErrInvalidPreset, p.LimiterThresholdDB, MinLimiterThresholdDB, MaxLimiterThresholdDB)
	}
	for i, b := range p.Bands {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("band %d: %w", i, err)
		}
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
