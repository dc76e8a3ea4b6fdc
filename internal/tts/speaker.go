// Package tts speaks text through a remote synthesis service and the
// local output device.
package tts

import (
	"context"
	"fmt"
	"io"
	"net/http"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"parley/internal/config"
	"parley/pkg/audioconv"
)

type speech interface {
	New(ctx context.Context, body openai.AudioSpeechNewParams, opts ...option.RequestOption) (*http.Response, error)
}

// Player plays mono PCM and blocks until done. Satisfied by *audio.Player.
type Player interface {
	Play(pcm []float32, sampleRate int) error
}

// Speaker is the text-to-speech adapter: synthesize remotely, decode,
// play locally. Failures here are non-fatal for the conversation; the
// caller logs and carries on with a silent turn.
type Speaker struct {
	api    speech
	player Player
	model  string
	voice  string
	format string
}

func New(client openai.Client, player Player, sp config.Speech) *Speaker {
	return &Speaker{
		api:    &client.Audio.Speech,
		player: player,
		model:  sp.TTSModel,
		voice:  sp.Voice,
		format: sp.Format,
	}
}

// Speak blocks until playback of the synthesized text completes.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	clean := Speakable(text)
	if clean == "" {
		return nil
	}

	resp, err := s.api.New(ctx, openai.AudioSpeechNewParams{
		Model:          openai.SpeechModel(s.model),
		Voice:          openai.AudioSpeechNewParamsVoice(s.voice),
		Input:          clean,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormat(s.format),
	})
	if err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read audio: %w", err)
	}

	pcm, rate, err := audioconv.Decode(data)
	if err != nil {
		return fmt.Errorf("decode audio: %w", err)
	}

	log.Debug("Playing reply", "samples", len(pcm), "rate", rate)

	if err := s.player.Play(pcm, rate); err != nil {
		return fmt.Errorf("playback: %w", err)
	}
	return nil
}
