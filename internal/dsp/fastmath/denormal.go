// Package fastmath isolates the DSP engine's denormal-suppression
// concern. Flushing denormals to zero at the hardware level (MXCSR/FPCR
// flush-to-zero bits) needs an architecture-specific assembly stub; none
// of the example repos this module is grounded on carries one, so this
// package uses the portable software equivalent instead of fabricating
// unverified asm. See DESIGN.md for the reasoning.
package fastmath

// denormalFloor is added to and subtracted from a value so that any
// magnitude below about 1e-31 (half an ulp of the bias) rounds to exactly
// zero, which covers every float64 denormal. Chosen well below any
// audible signal level (-300 dBFS) so it never perturbs real audio.
const denormalFloor = 1e-15

// FlushDenormal rounds x to zero if its magnitude is below about 1e-31,
// a range that includes every denormal. The DSP engine applies it to the
// peak meter's decaying value; biquad and DC-blocker state do not pass
// through it.
func FlushDenormal(x float64) float64 {
	return (x + denormalFloor) - denormalFloor
}
