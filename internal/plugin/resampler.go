package plugin

// Resampler is a last-resort linear-interpolation adapter, used when
// the OS stream's sample rate differs from the ring's configured rate.
// Per spec.md §1 Non-goals, fidelity is explicitly not a goal here: the
// product's own hardware path should rarely need resampling at all,
// and linear interpolation is cheap enough to run with zero algorithmic
// look-ahead on the mixed-output callback thread.
type Resampler struct {
	ratio      float64
	lastSample float32
}

// NewResampler returns a Resampler converting fromRate to toRate.
func NewResampler(fromRate, toRate int) *Resampler {
	return &Resampler{ratio: float64(toRate) / float64(fromRate)}
}

// Resample converts input (mono float32) to the target rate, writing
// into dst (grown if necessary) and returning the resulting slice.
// Records the chunk's last input sample in lastSample, but every output
// sample is interpolated from the current chunk only (srcIdx never
// reaches inputLen), so no history carries across chunk boundaries.
func (r *Resampler) Resample(dst []float32, input []float32) []float32 {
	if r.ratio == 1.0 {
		if cap(dst) < len(input) {
			dst = make([]float32, len(input))
		}
		dst = dst[:len(input)]
		copy(dst, input)
		return dst
	}

	inputLen := len(input)
	if inputLen == 0 {
		return dst[:0]
	}

	outputLen := int(float64(inputLen) * r.ratio)
	if cap(dst) < outputLen {
		dst = make([]float32, outputLen)
	}
	dst = dst[:outputLen]

	for i := 0; i < outputLen; i++ {
		srcPos := float64(i) / r.ratio
		srcIdx := int(srcPos)
		frac := float32(srcPos - float64(srcIdx))

		sample1 := r.lastSample
		if srcIdx < inputLen {
			sample1 = input[srcIdx]
		}

		sample2 := sample1
		if srcIdx+1 < inputLen {
			sample2 = input[srcIdx+1]
		} else if srcIdx < inputLen {
			sample2 = input[inputLen-1]
		}

		dst[i] = sample1 + (sample2-sample1)*frac
	}

	r.lastSample = input[inputLen-1]
	return dst
}
