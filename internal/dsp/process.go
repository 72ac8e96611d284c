package dsp

import (
	"math"
	"time"

	"github.com/agalue/radioform/internal/dsp/fastmath"
)

// decayPerBuffer derives the peak meter's per-buffer decay factor:
// exp(-frames / (meterDecayMs * sampleRate / 1000)).
func (e *Engine) decayPerBuffer(frames int) float64 {
	return math.Exp(-float64(frames) / (meterDecayMs * e.sampleRate / 1000.0))
}

// ProcessPlanar runs the engine over frames samples already split into
// left/right channels, in strict order: preamp, per-band cascade, DC
// blocker, limiter, metering. out may alias in. Real-time tier: no
// allocation, no locks, no blocking calls.
func (e *Engine) ProcessPlanar(lIn, rIn, lOut, rOut []float32, frames int) {
	start := time.Now()

	if e.bypass.Load() {
		copy(lOut[:frames], lIn[:frames])
		copy(rOut[:frames], rIn[:frames])
		e.updateLoad(start, frames)
		return
	}

	for i := 0; i < frames; i++ {
		gain := float32(e.preamp.Next())
		lOut[i] = lIn[i] * gain
		rOut[i] = rIn[i] * gain
	}

	for i := 0; i < e.numBands; i++ {
		e.stages[i].ProcessBuffer(lOut, rOut, lOut, rOut, frames)
	}

	for i := 0; i < frames; i++ {
		lOut[i] = e.dcBlockerL.Process(lOut[i])
		rOut[i] = e.dcBlockerR.Process(rOut[i])
	}

	if e.limiterOn.Load() {
		for i := 0; i < frames; i++ {
			lOut[i] = e.limiter.Process(lOut[i])
			rOut[i] = e.limiter.Process(rOut[i])
		}
	}

	e.updateMeters(lOut[:frames], rOut[:frames])
	e.updateLoad(start, frames)
}

// ProcessInterleaved is ProcessPlanar's interleaved-buffer counterpart:
// in/out hold frames stereo pairs as [L0,R0,L1,R1,...]. It deinterleaves
// into caller-owned scratch, defers to ProcessPlanar, then
// re-interleaves; scratch must be at least frames long per channel and
// is caller-owned so this call makes no allocations of its own.
func (e *Engine) ProcessInterleaved(in, out []float32, frames int, scratchL, scratchR, scratchOutL, scratchOutR []float32) {
	if e.bypass.Load() {
		if !samePointer(in, out) {
			copy(out[:2*frames], in[:2*frames])
		}
		e.updateLoad(time.Now(), frames)
		return
	}

	for i := 0; i < frames; i++ {
		scratchL[i] = in[2*i]
		scratchR[i] = in[2*i+1]
	}

	e.ProcessPlanar(scratchL[:frames], scratchR[:frames], scratchOutL[:frames], scratchOutR[:frames], frames)

	for i := 0; i < frames; i++ {
		out[2*i] = scratchOutL[i]
		out[2*i+1] = scratchOutR[i]
	}
}

func samePointer(a, b []float32) bool {
	if len(a) == 0 || len(b) == 0 {
		return len(a) == len(b)
	}
	return &a[0] == &b[0]
}

// updateMeters folds this buffer's peaks into the decaying peak meters:
// peak = max(buffer_peak, previous_peak * decay). The multiplicative
// decay is exactly the kind of feedback term that can wander into
// denormal territory as it approaches zero over many silent buffers,
// so it is flushed through fastmath before being stored.
func (e *Engine) updateMeters(l, r []float32) {
	decay := e.decayPerBuffer(len(l))

	var peakL, peakR float32
	for i := range l {
		if v := abs32(l[i]); v > peakL {
			peakL = v
		}
		if v := abs32(r[i]); v > peakR {
			peakR = v
		}
	}

	prevL := math.Float64frombits(e.peakL.Load())
	prevR := math.Float64frombits(e.peakR.Load())
	newL := math.Max(float64(peakL), fastmath.FlushDenormal(prevL*decay))
	newR := math.Max(float64(peakR), fastmath.FlushDenormal(prevR*decay))
	e.peakL.Store(math.Float64bits(newL))
	e.peakR.Store(math.Float64bits(newR))
}

// updateLoad measures wall-clock spent on this buffer against the time
// it represents (frames / sample_rate) and folds it into the smoothed
// CPU-load estimate: 0.9*current + 0.1*instant.
func (e *Engine) updateLoad(start time.Time, frames int) {
	elapsed := time.Since(start).Seconds()
	available := float64(frames) / e.sampleRate
	var instant float64
	if available > 0 {
		instant = elapsed / available
	}
	prev := math.Float64frombits(e.cpuLoad.Load())
	next := loadSmoothingAlpha*prev + (1-loadSmoothingAlpha)*instant
	e.cpuLoad.Store(math.Float64bits(next))
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
