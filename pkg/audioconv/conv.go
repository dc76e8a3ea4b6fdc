package audioconv

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// CaptureRate is the sample rate of microphone captures handed to the
// recognition service.
const CaptureRate = 16000

// EncodeWAV packs mono float32 PCM at CaptureRate into an in-memory WAV
// (16-bit little-endian), ready to upload as a recognition request body.
func EncodeWAV(pcm []float32) ([]byte, error) {
	if len(pcm) == 0 {
		return nil, errors.New("no samples to encode")
	}

	ints := make([]int, len(pcm))
	for i, s := range pcm {
		ints[i] = int(clamp(float64(s), -1.0, 1.0) * 32767)
	}

	var buf seekBuffer
	enc := wav.NewEncoder(&buf, CaptureRate, 16, 1, 1)
	err := enc.Write(&gaudio.IntBuffer{
		Data:           ints,
		Format:         &gaudio.Format{NumChannels: 1, SampleRate: CaptureRate},
		SourceBitDepth: 16,
	})
	if err != nil {
		return nil, fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("close wav: %w", err)
	}

	return buf.buf, nil
}

// Decode converts synthesized audio bytes into mono float32 PCM. The
// container is sniffed from the payload, so it works for whatever
// response_format the synthesis service was asked for (wav, mp3,
// ogg-vorbis, ogg-opus). Returns the samples and their sample rate.
func Decode(data []byte) ([]float32, int, error) {
	if len(data) < 4 {
		return nil, 0, errors.New("audio payload too short")
	}

	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return decodeWAV(bytes.NewReader(data))
	case bytes.HasPrefix(data, []byte("OggS")):
		if pcm, sr, err := decodeOggVorbis(bytes.NewReader(data)); err == nil {
			return pcm, sr, nil
		}
		return decodeOggOpus(bytes.NewReader(data))
	default:
		// mp3: ID3 tag or a raw frame sync
		if bytes.HasPrefix(data, []byte("ID3")) || (data[0] == 0xFF && data[1]&0xE0 == 0xE0) {
			return decodeMP3(bytes.NewReader(data))
		}
		return nil, 0, errors.New("unrecognized audio container (expected wav/mp3/ogg)")
	}
}

func decodeWAV(r io.ReadSeeker) ([]float32, int, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, 0, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil || pb == nil || pb.Data == nil {
		if err == nil {
			err = errors.New("empty wav")
		}
		return nil, 0, err
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := intSliceToFloat32(pb.Data, bd)

	ch := 1
	sr := 24000
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sr = pb.Format.SampleRate
		}
	}
	if ch > 1 {
		x = Downmix(x, ch)
	}
	return x, sr, nil
}

func decodeMP3(r io.Reader) ([]float32, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, 0, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, 0, err
	}
	x := int16SliceToFloat32(ints)
	x = Downmix(x, 2) // go-mp3 always emits stereo

	sr := dec.SampleRate()
	if sr <= 0 {
		sr = 44100
	}
	return x, sr, nil
}

func decodeOggVorbis(r io.Reader) ([]float32, int, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, 0, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, 0, errors.New("invalid ogg/vorbis stream")
	}
	if format.Channels > 1 {
		pcm = Downmix(pcm, format.Channels)
	}
	return pcm, format.SampleRate, nil
}

func decodeOggOpus(rs io.ReadSeeker) ([]float32, int, error) {
	dec, err := popus.NewDecoder(rs)
	if err != nil {
		return nil, 0, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// Opus always decodes at 48 kHz.
	var (
		pcm []float32
		buf = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, int16SliceToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}

	if len(pcm) == 0 {
		return nil, 0, errors.New("empty opus stream")
	}
	if ch > 1 {
		pcm = Downmix(pcm, ch)
	}
	return pcm, 48000, nil
}

// Downmix collapses interleaved multi-channel samples to mono by averaging.
func Downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	nFrames := len(in) / channels
	out := make([]float32, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Resample converts mono samples between rates with linear interpolation.
// Good enough for speech; playback does not need a polyphase filter.
func Resample(in []float32, inSR, outSR int) []float32 {
	if inSR == outSR || len(in) == 0 {
		return in
	}
	ratio := float64(outSR) / float64(inSR)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

// seekBuffer is an in-memory io.WriteSeeker for the wav encoder, which
// seeks back to patch chunk sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (b *seekBuffer) Write(p []byte) (int, error) {
	if need := b.pos + len(p); need > len(b.buf) {
		grown := make([]byte, need)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:], p)
	b.pos += len(p)
	return len(p), nil
}

func (b *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int
	switch whence {
	case io.SeekStart:
		next = int(offset)
	case io.SeekCurrent:
		next = b.pos + int(offset)
	case io.SeekEnd:
		next = len(b.buf) + int(offset)
	default:
		return 0, errors.New("bad whence")
	}
	if next < 0 {
		return 0, errors.New("negative seek")
	}
	b.pos = next
	return int64(next), nil
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
