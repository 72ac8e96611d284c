package biquad

import "math"

// Coeffs holds one biquad stage's transfer function coefficients in the
// normalized form (a0 is always 1 after normalization).
type Coeffs struct {
	B0, B1, B2 float64
	A1, A2     float64
}

// Finite reports whether every coefficient is a finite number. Checked
// before installing new coefficients; a non-finite result forces the
// stage flat rather than risk poisoning the delay line.
func (c Coeffs) Finite() bool {
	return isFinite(c.B0) && isFinite(c.B1) && isFinite(c.B2) && isFinite(c.A1) && isFinite(c.A2)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Flat is the identity transfer function: y = x.
var Flat = Coeffs{B0: 1, B1: 0, B2: 0, A1: 0, A2: 0}

// Compute derives normalized biquad coefficients for kind at the given
// frequency (Hz), gain (dB, used only by peak/shelf kinds), Q, and
// sample rate, using the RBJ "Audio EQ Cookbook" formulas.
func Compute(kind Kind, freqHz, gainDB, q, sampleRate float64) Coeffs {
	if freqHz <= 0 || sampleRate <= 0 || q <= 0 {
		return Flat
	}

	omega := 2 * math.Pi * freqHz / sampleRate
	sinW, cosW := math.Sin(omega), math.Cos(omega)
	a := math.Pow(10, gainDB/40) // amplitude, for shelf/peak

	var alpha float64
	switch kind {
	case Peak:
		// Enhanced bandwidth prewarp to reduce bandwidth cramping at
		// high frequencies: the omega/sin(omega) factor collapses to 1
		// as omega -> 0, avoiding a division blow-up there.
		warp := 1.0
		if sinW != 0 {
			warp = omega / sinW
		}
		alpha = sinW / (2 * q * warp)
	default:
		alpha = sinW / (2 * q)
	}

	var c Coeffs
	switch kind {
	case Peak:
		b0 := 1 + alpha*a
		b1 := -2 * cosW
		b2 := 1 - alpha*a
		a0 := 1 + alpha/a
		a1 := -2 * cosW
		a2 := 1 - alpha/a
		c = normalize(b0, b1, b2, a0, a1, a2)

	case LowShelf:
		sq := math.Sqrt(a) * alpha * 2
		b0 := a * ((a + 1) - (a-1)*cosW + sq)
		b1 := 2 * a * ((a - 1) - (a+1)*cosW)
		b2 := a * ((a + 1) - (a-1)*cosW - sq)
		a0 := (a + 1) + (a-1)*cosW + sq
		a1 := -2 * ((a - 1) + (a+1)*cosW)
		a2 := (a + 1) + (a-1)*cosW - sq
		c = normalize(b0, b1, b2, a0, a1, a2)

	case HighShelf:
		sq := math.Sqrt(a) * alpha * 2
		b0 := a * ((a + 1) + (a-1)*cosW + sq)
		b1 := -2 * a * ((a - 1) + (a+1)*cosW)
		b2 := a * ((a + 1) + (a-1)*cosW - sq)
		a0 := (a + 1) - (a-1)*cosW + sq
		a1 := 2 * ((a - 1) - (a+1)*cosW)
		a2 := (a + 1) - (a-1)*cosW - sq
		c = normalize(b0, b1, b2, a0, a1, a2)

	case LowPass:
		b0 := (1 - cosW) / 2
		b1 := 1 - cosW
		b2 := (1 - cosW) / 2
		a0 := 1 + alpha
		a1 := -2 * cosW
		a2 := 1 - alpha
		c = normalize(b0, b1, b2, a0, a1, a2)

	case HighPass:
		b0 := (1 + cosW) / 2
		b1 := -(1 + cosW)
		b2 := (1 + cosW) / 2
		a0 := 1 + alpha
		a1 := -2 * cosW
		a2 := 1 - alpha
		c = normalize(b0, b1, b2, a0, a1, a2)

	case Notch:
		b0 := 1.0
		b1 := -2 * cosW
		b2 := 1.0
		a0 := 1 + alpha
		a1 := -2 * cosW
		a2 := 1 - alpha
		c = normalize(b0, b1, b2, a0, a1, a2)

	case BandPass:
		b0 := alpha
		b1 := 0.0
		b2 := -alpha
		a0 := 1 + alpha
		a1 := -2 * cosW
		a2 := 1 - alpha
		c = normalize(b0, b1, b2, a0, a1, a2)

	default:
		return Flat
	}

	if !c.Finite() {
		return Flat
	}
	return c
}

func normalize(b0, b1, b2, a0, a1, a2 float64) Coeffs {
	return Coeffs{B0: b0 / a0, B1: b1 / a0, B2: b2 / a0, A1: a1 / a0, A2: a2 / a0}
}
