package audioconv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAVRoundTrip(t *testing.T) {
	pcm := make([]float32, CaptureRate/10) // 100ms ramp
	for i := range pcm {
		pcm[i] = float32(i%200)/200.0 - 0.5
	}

	data, err := EncodeWAV(pcm)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))

	got, sr, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, CaptureRate, sr)
	require.Len(t, got, len(pcm))

	// 16-bit quantization error only
	for i := 0; i < len(pcm); i += 97 {
		assert.InDelta(t, pcm[i], got[i], 0.001)
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	_, err := EncodeWAV(nil)
	assert.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	_, _, err := Decode([]byte("definitely not audio"))
	assert.Error(t, err)

	_, _, err = Decode([]byte{0x01})
	assert.Error(t, err)
}

func TestDownmix(t *testing.T) {
	stereo := []float32{1, 0, 0.5, 0.5, -1, 1}
	mono := Downmix(stereo, 2)
	require.Len(t, mono, 3)
	assert.InDelta(t, 0.5, mono[0], 1e-6)
	assert.InDelta(t, 0.5, mono[1], 1e-6)
	assert.InDelta(t, 0.0, mono[2], 1e-6)

	// mono passes through untouched
	same := Downmix(mono, 1)
	assert.Equal(t, mono, same)
}

func TestResample(t *testing.T) {
	in := make([]float32, 1600)
	for i := range in {
		in[i] = float32(i) / float32(len(in))
	}

	up := Resample(in, 16000, 48000)
	assert.Equal(t, 4800, len(up))

	down := Resample(in, 16000, 8000)
	assert.Equal(t, 800, len(down))

	// identity when rates match
	assert.Equal(t, len(in), len(Resample(in, 16000, 16000)))

	// endpoints stay in range
	for _, s := range up {
		assert.GreaterOrEqual(t, s, float32(0))
		assert.Less(t, s, float32(1.001))
	}
}
