package preset

import (
	"encoding/json"
	"fmt"
)

// ParseJSON decodes and validates a preset from its external JSON shape.
// Disk persistence and the preset-editing UI are external collaborators
// (out of scope per the spec); this is the boundary the engine's
// validator must accept data across.
func ParseJSON(data []byte) (Preset, error) {
	var p Preset
	if err := json.Unmarshal(data, &p); err != nil {
		return Preset{}, fmt.Errorf("preset: decode: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}

// ToJSON serializes a preset back to its external JSON shape.
func (p Preset) ToJSON() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}
