package ring

import (
	"encoding/binary"
	"math"
)

// encodeSample writes one float32 sample into dst in the given on-wire
// format, returning the number of bytes written. Integer formats clamp
// the sample to [-1,1] and scale it by 2^(bits-1)-1; float formats store
// it unclamped.
func encodeSample(dst []byte, f Format, sample float32) int {
	switch f {
	case FormatFloat32:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(sample))
		return 4
	case FormatFloat64:
		binary.LittleEndian.PutUint64(dst, math.Float64bits(float64(sample)))
		return 8
	case FormatInt16:
		v := int16(clampFloat(sample) * 32767.0)
		binary.LittleEndian.PutUint16(dst, uint16(v))
		return 2
	case FormatInt24:
		v := int32(clampFloat(sample) * 8388607.0)
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v >> 16)
		return 3
	case FormatInt32:
		v := int32(float64(clampFloat(sample)) * 2147483647.0)
		binary.LittleEndian.PutUint32(dst, uint32(v))
		return 4
	default:
		return 0
	}
}

// decodeSample reads one sample from src in the given on-wire format and
// returns it as float32, scaling integer formats as int_value /
// 2^(bits-1); since encodeSample scales by 2^(bits-1)-1, an integer
// round trip can differ from the input by about one LSB.
func decodeSample(src []byte, f Format) float32 {
	switch f {
	case FormatFloat32:
		return math.Float32frombits(binary.LittleEndian.Uint32(src))
	case FormatFloat64:
		return float32(math.Float64frombits(binary.LittleEndian.Uint64(src)))
	case FormatInt16:
		v := int16(binary.LittleEndian.Uint16(src))
		return float32(v) / 32768.0
	case FormatInt24:
		v := int32(src[0]) | int32(src[1])<<8 | int32(src[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xFFFFFF) // sign-extend
		}
		return float32(v) / 8388608.0
	case FormatInt32:
		v := int32(binary.LittleEndian.Uint32(src))
		return float32(float64(v) / 2147483648.0)
	default:
		return 0
	}
}

func clampFloat(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
