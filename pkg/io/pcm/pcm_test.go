package pcm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultSpecSizes(t *testing.T) {
	spec := DefaultSpec()
	assert.Equal(t, 480, spec.FrameSamples())
	assert.Equal(t, 960, spec.FrameBytes())
	assert.Equal(t, 32000, spec.BytesPerSecond())
	assert.Equal(t, 30*time.Millisecond, spec.DurationOf(960))
	assert.Equal(t, 50, spec.FramesIn(1500*time.Millisecond))
}

func TestFrameEnd(t *testing.T) {
	spec := DefaultSpec()
	f := Frame{Data: make([]byte, spec.FrameBytes()), Offset: 90 * time.Millisecond}
	assert.Equal(t, 120*time.Millisecond, f.End(spec))
}

func TestSamplesRoundTripAndRMS(t *testing.T) {
	in := []int16{0, 16384, -16384, 32767, -32768}
	raw := Encode(in)
	require.Len(t, raw, 10)
	assert.Equal(t, in, Samples(raw))

	assert.Zero(t, RMS(nil))
	assert.Zero(t, RMS(Encode(make([]int16, 100))))

	square := make([]int16, 100)
	for i := range square {
		if i%2 == 0 {
			square[i] = 16384
		} else {
			square[i] = -16384
		}
	}
	assert.InDelta(t, 0.5, RMS(Encode(square)), 1e-9)
}
