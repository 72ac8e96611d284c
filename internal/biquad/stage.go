package biquad

// channelState holds the two delay-line registers of a direct-form-II
// transposed biquad for one audio channel.
type channelState struct {
	z1, z2 float64
}

// transition describes an in-flight linear interpolation from the
// coefficients active when SetCoeffsSmooth was called toward a target,
// advanced one sample at a time by ProcessBuffer.
type transition struct {
	target    Coeffs
	delta     Coeffs
	remaining int
}

// Stage is one filter in the cascade: current coefficients, an optional
// in-flight transition, and per-channel delay-line state for stereo.
// A Stage is either stable (no interpolation) or transitioning
// (remaining > 0, coefficients updated every sample); the hot path is
// identical to a stable biquad once remaining reaches zero, since the
// branch predicts not-taken in steady state.
type Stage struct {
	current Coeffs
	trans   transition
	left    channelState
	right   channelState
}

// NewStage returns a Stage initialized to the flat (unity) response.
func NewStage() *Stage {
	return &Stage{current: Flat}
}

// SetFlat resets the stage to unity gain and clears any in-flight
// transition and delay-line state. Not real-time safe is not required
// here -- it has no allocation -- but it is intended for the
// configuration tier.
func (s *Stage) SetFlat() {
	s.current = Flat
	s.trans = transition{}
	s.left = channelState{}
	s.right = channelState{}
}

// SetCoeffs installs coefficients for kind/freqHz/gainDB/q at sampleRate
// immediately, with no interpolation. Intended for the configuration
// tier (e.g. applying a whole preset at once, where there is no
// previous audible state to protect against zipper noise).
func (s *Stage) SetCoeffs(kind Kind, freqHz, gainDB, q, sampleRate float64) {
	c := Compute(kind, freqHz, gainDB, q, sampleRate)
	if !c.Finite() {
		s.SetFlat()
		return
	}
	s.current = c
	s.trans = transition{}
}

// SetCoeffsSmooth installs coefficients for kind/freqHz/gainDB/q at
// sampleRate as a target, interpolating linearly from the stage's
// current coefficients over transitionSamples samples. Safe to call
// from the same thread that calls ProcessBuffer, per the single-writer
// real-time tier contract; if transitionSamples <= 0 this behaves like
// SetCoeffs.
func (s *Stage) SetCoeffsSmooth(kind Kind, freqHz, gainDB, q, sampleRate float64, transitionSamples int) {
	target := Compute(kind, freqHz, gainDB, q, sampleRate)
	if !target.Finite() {
		s.SetFlat()
		return
	}
	if transitionSamples <= 0 {
		s.current = target
		s.trans = transition{}
		return
	}

	n := float64(transitionSamples)
	s.trans = transition{
		target: target,
		delta: Coeffs{
			B0: (target.B0 - s.current.B0) / n,
			B1: (target.B1 - s.current.B1) / n,
			B2: (target.B2 - s.current.B2) / n,
			A1: (target.A1 - s.current.A1) / n,
			A2: (target.A2 - s.current.A2) / n,
		},
		remaining: transitionSamples,
	}
}

// ProcessBuffer applies this stage in place to n stereo samples, reading
// from inL/inR and writing to outL/outR (which may alias the inputs).
// This is the real-time tier: no allocation, no branch on filter kind.
func (s *Stage) ProcessBuffer(inL, inR, outL, outR []float32, n int) {
	for i := 0; i < n; i++ {
		s.advanceTransition()
		outL[i] = processSample(&s.left, s.current, inL[i])
		outR[i] = processSample(&s.right, s.current, inR[i])
	}
}

func (s *Stage) advanceTransition() {
	if s.trans.remaining <= 0 {
		return
	}
	s.trans.remaining--
	if s.trans.remaining == 0 {
		// Snap to target on the last step to prevent float drift from
		// accumulating across many small additions.
		s.current = s.trans.target
		return
	}
	s.current.B0 += s.trans.delta.B0
	s.current.B1 += s.trans.delta.B1
	s.current.B2 += s.trans.delta.B2
	s.current.A1 += s.trans.delta.A1
	s.current.A2 += s.trans.delta.A2
}

// processSample runs one sample through direct form II transposed:
//
//	y[n]  = b0*x[n] + z1
//	z1'   = b1*x[n] - a1*y[n] + z2
//	z2'   = b2*x[n] - a2*y[n]
//
// chosen over direct form I because it needs only two state variables
// per channel and resists coefficient-quantization artefacts at low
// frequencies. Every sample is checked for non-finite output; on
// detection the channel's delay line is cleared and the input is
// passed through untouched, so a single NaN can never stick.
func processSample(st *channelState, c Coeffs, x float32) float32 {
	xf := float64(x)
	y := c.B0*xf + st.z1
	if isFinite(y) {
		st.z1 = c.B1*xf - c.A1*y + st.z2
		st.z2 = c.B2*xf - c.A2*y
		return float32(y)
	}

	st.z1 = 0
	st.z2 = 0
	return x
}
