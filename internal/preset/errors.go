package preset

import "errors"

// ErrInvalidPreset is returned by Validate (and surfaced by the DSP
// engine's apply_preset) when any field is out of its declared range or
// non-finite.
var ErrInvalidPreset = errors.New("preset: invalid")
