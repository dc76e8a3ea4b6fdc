package notify

import (
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/generators"
	"github.com/faiface/beep/speaker"
)

// Chime plays a short tone to signal that the microphone is open.
// The speaker must already be initialized (audio.NewPlayer does that).
func Chime() {
	sr := beep.SampleRate(44100)
	tone, err := generators.SinTone(sr, 880)
	if err != nil {
		return
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(
		beep.Take(sr.N(120*time.Millisecond), tone),
		beep.Callback(func() { close(done) }),
	))
	<-done
}
