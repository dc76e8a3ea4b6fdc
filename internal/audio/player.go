package audio

import (
	"errors"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"

	"parley/pkg/audioconv"
)

const playbackRate = 44100

// Player owns the output side of the audio device. The speaker is
// initialized once at the playback rate; everything handed to Play is
// resampled to match.
type Player struct {
	rate beep.SampleRate
}

func NewPlayer() (*Player, error) {
	rate := beep.SampleRate(playbackRate)
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return nil, err
	}
	return &Player{rate: rate}, nil
}

// Play blocks until the given mono PCM has finished playing.
func (p *Player) Play(pcm []float32, sampleRate int) error {
	if len(pcm) == 0 {
		return errors.New("audio: nothing to play")
	}
	if sampleRate != int(p.rate) {
		pcm = audioconv.Resample(pcm, sampleRate, int(p.rate))
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(&pcmStreamer{data: pcm}, beep.Callback(func() {
		close(done)
	})))
	<-done
	return nil
}

// pcmStreamer adapts a mono float32 buffer to beep's stereo stream.
type pcmStreamer struct {
	data []float32
	pos  int
}

func (s *pcmStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.data) {
		return 0, false
	}
	n := 0
	for i := range samples {
		if s.pos >= len(s.data) {
			break
		}
		v := float64(s.data[s.pos])
		samples[i][0] = v
		samples[i][1] = v
		s.pos++
		n++
	}
	return n, true
}

func (s *pcmStreamer) Err() error { return nil }
