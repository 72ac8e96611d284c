// Package ring implements the shared-memory single-producer/single-consumer
// transport that carries one virtual endpoint's audio between the plug-in
// process and the host process.
package ring

import "fmt"

// Format identifies the on-wire sample encoding of the ring's payload.
// Values match the wire table in the ring file format.
type Format uint32

const (
	FormatFloat32 Format = 0
	FormatFloat64 Format = 1
	FormatInt16   Format = 2
	FormatInt24   Format = 3
	FormatInt32   Format = 4
)

func (f Format) String() string {
	switch f {
	case FormatFloat32:
		return "float32"
	case FormatFloat64:
		return "float64"
	case FormatInt16:
		return "int16"
	case FormatInt24:
		return "int24"
	case FormatInt32:
		return "int32"
	default:
		return fmt.Sprintf("format(%d)", uint32(f))
	}
}

// BytesPerSample returns the on-wire size of a single sample in this
// format, or 0 if the format is not recognized.
func (f Format) BytesPerSample() uint32 {
	switch f {
	case FormatFloat32:
		return 4
	case FormatFloat64:
		return 8
	case FormatInt16:
		return 2
	case FormatInt24:
		return 3
	case FormatInt32:
		return 4
	default:
		return 0
	}
}

// Valid reports whether f is one of the supported on-wire formats.
func (f Format) Valid() bool {
	return f.BytesPerSample() != 0
}

// SupportedSampleRates enumerates the sample rates a ring may be created
// with.
var SupportedSampleRates = [...]uint32{44100, 48000, 88200, 96000, 176400, 192000}

// SampleRateSupported reports whether rate is one of SupportedSampleRates.
func SampleRateSupported(rate uint32) bool {
	for _, r := range SupportedSampleRates {
		if r == rate {
			return true
		}
	}
	return false
}

// MinChannels and MaxChannels bound the channels field.
const (
	MinChannels = 1
	MaxChannels = 8
)

// MinRingDurationMs and MaxRingDurationMs bound ring_duration_ms.
const (
	MinRingDurationMs = 20
	MaxRingDurationMs = 100
)

// ChannelsSupported reports whether channels is within [MinChannels,MaxChannels].
func ChannelsSupported(channels uint32) bool {
	return channels >= MinChannels && channels <= MaxChannels
}

// DurationSupported reports whether durationMs is within the allowed range.
func DurationSupported(durationMs uint32) bool {
	return durationMs >= MinRingDurationMs && durationMs <= MaxRingDurationMs
}

// CapacityFrames computes ring_capacity_frames for a given rate/duration.
func CapacityFrames(sampleRate, durationMs uint32) uint32 {
	return sampleRate * durationMs / 1000
}
