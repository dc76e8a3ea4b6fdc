package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	log "log/slog"

	"github.com/gordonklaus/portaudio"
)

const (
	// SampleRate matches what the recognition service wants.
	SampleRate = 16000

	frameSize   = 320 // 20ms
	frameMillis = 20

	defaultThreshRMS = 0.015
	silenceTail      = 600 * time.Millisecond
	prerollFrames    = 15 // 300ms kept before speech onset
	maxUtterance     = 15 * time.Second
)

// ErrNoInputDevice means no usable microphone was found at startup.
var ErrNoInputDevice = errors.New("audio: no usable input device")

// Recorder owns the capture side of the audio device. It initializes
// portaudio once and opens a fresh stream around every capture, so the
// device is only held while actually listening.
type Recorder struct {
	dev       *portaudio.DeviceInfo
	threshold float64
}

func NewRecorder() (*Recorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("init portaudio: %w", err)
	}

	dev, err := pickInputDevice()
	if err != nil {
		portaudio.Terminate()
		return nil, err
	}

	log.Debug("Using microphone", "device", dev.Name)
	return &Recorder{dev: dev, threshold: defaultThreshRMS}, nil
}

func (r *Recorder) Close() {
	portaudio.Terminate()
}

// DeviceName reports the selected input device, for logs and diagnostics.
func (r *Recorder) DeviceName() string { return r.dev.Name }

// pickInputDevice tries the default input first, then falls back to the
// first device that offers input channels.
func pickInputDevice() (*portaudio.DeviceInfo, error) {
	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}

	devs, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	for _, d := range devs {
		if d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, ErrNoInputDevice
}

// Calibrate listens to ambient noise for d and raises the silence
// threshold above it, so background hum does not read as speech.
func (r *Recorder) Calibrate(d time.Duration) error {
	if d <= 0 {
		d = time.Second
	}

	stream, buf, err := r.openStream()
	if err != nil {
		return err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	defer stream.Stop()

	var (
		peak   float64
		frames = int(d.Milliseconds()) / frameMillis
	)
	for i := 0; i < frames; i++ {
		if err := stream.Read(); err != nil {
			return fmt.Errorf("read frame: %w", err)
		}
		if rms := frameRMS(buf); rms > peak {
			peak = rms
		}
	}

	if t := peak * 1.5; t > defaultThreshRMS {
		r.threshold = t
	}
	log.Debug("Calibrated ambient noise", "threshold", r.threshold)
	return nil
}

// Record captures one utterance: it waits for speech above the RMS
// threshold, keeps a short pre-roll so the onset is not clipped, and stops
// after silenceTail of trailing silence or the hard cap. Returns mono
// float32 PCM at SampleRate; an empty slice means nothing was said.
func (r *Recorder) Record(ctx context.Context) ([]float32, error) {
	stream, buf, err := r.openStream()
	if err != nil {
		return nil, err
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return nil, fmt.Errorf("start stream: %w", err)
	}
	defer stream.Stop()

	var (
		out           = make([]float32, 0, SampleRate*3)
		preroll       = make([]float32, 0, prerollFrames*frameSize)
		speaking      bool
		silenceFrames int
	)

	maxFrames := int(maxUtterance/time.Second) * SampleRate / frameSize
	silenceLimit := int(silenceTail.Milliseconds()) / frameMillis

	for i := 0; i < maxFrames; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := stream.Read(); err != nil {
			return nil, fmt.Errorf("read frame: %w", err)
		}

		rms := frameRMS(buf)

		if rms > r.threshold {
			if !speaking {
				speaking = true
				out = append(out, preroll...)
			}
			silenceFrames = 0
			out = append(out, buf...)
			continue
		}

		if speaking {
			silenceFrames++
			if silenceFrames >= silenceLimit {
				break
			}
			out = append(out, buf...)
		} else {
			preroll = append(preroll, buf...)
			if len(preroll) > prerollFrames*frameSize {
				preroll = preroll[len(preroll)-prerollFrames*frameSize:]
			}
		}
	}

	return out, nil
}

func (r *Recorder) openStream() (*portaudio.Stream, []float32, error) {
	buf := make([]float32, frameSize)

	params := portaudio.LowLatencyParameters(r.dev, nil)
	params.Input.Channels = 1
	params.SampleRate = SampleRate
	params.FramesPerBuffer = len(buf)

	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, nil, fmt.Errorf("open stream on %q: %w", r.dev.Name, err)
	}
	return stream, buf, nil
}

func frameRMS(f []float32) float64 {
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
