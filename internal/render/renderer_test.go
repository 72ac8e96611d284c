package render

import (
	"path/filepath"
	"testing"

	"github.com/agalue/radioform/internal/dsp"
	"github.com/agalue/radioform/internal/ring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRing(t *testing.T) *ring.Handle {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ring.bin")
	h, err := ring.CreateOrOpen(path, ring.Config{SampleRate: 48000, Channels: 2, Format: ring.FormatFloat32, DurationMs: 40})
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func TestRenderInterleavedPullsFromRing(t *testing.T) {
	h := newTestRing(t)
	engine, err := dsp.Create(48000)
	require.NoError(t, err)
	r := New(h, engine)

	in := make([]float32, 256)
	for i := range in {
		in[i] = 0.5
	}
	_, err2 := h.Write(in, 128)
	require.NoError(t, err2)

	out := make([]float32, 256)
	r.RenderInterleaved(out, 128)

	var nonZero bool
	for _, v := range out {
		if v != 0 {
			nonZero = true
			break
		}
	}
	assert.True(t, nonZero)
}

func TestRenderInterleavedSilentWhenNoRingBound(t *testing.T) {
	engine, err := dsp.Create(48000)
	require.NoError(t, err)
	r := New(nil, engine)

	out := make([]float32, 128)
	for i := range out {
		out[i] = 1
	}
	r.RenderInterleaved(out, 64)

	for _, v := range out {
		assert.Equal(t, float32(0), v)
	}
}

func TestSwitchDeviceReplacesRing(t *testing.T) {
	h1 := newTestRing(t)
	engine, err := dsp.Create(48000)
	require.NoError(t, err)
	r := New(h1, engine)

	h2 := newTestRing(t)
	r.SwitchDevice(h2)

	in := make([]float32, 256)
	for i := range in {
		in[i] = 0.25
	}
	_, err = h2.Write(in, 128)
	require.NoError(t, err)

	out := make([]float32, 256)
	r.RenderInterleaved(out, 128)

	assert.NotEqual(t, float32(0), out[0])
}

func TestRenderCallbackEncodesLittleEndianFloat32(t *testing.T) {
	h := newTestRing(t)
	engine, err := dsp.Create(48000)
	require.NoError(t, err)
	r := New(h, engine)

	in := make([]float32, 4)
	for i := range in {
		in[i] = 0.1
	}
	_, err = h.Write(in, 2)
	require.NoError(t, err)

	out := make([]byte, 2*2*4)
	r.RenderCallback(out, 2)
	assert.Len(t, out, 16)
}
