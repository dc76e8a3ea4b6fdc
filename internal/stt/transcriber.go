// Package stt turns one utterance of microphone audio into text using a
// remote transcription service.
package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"parley/internal/config"
	"parley/pkg/audioconv"
)

// ErrNoSpeech means the capture contained nothing intelligible. Callers
// re-prompt; any other error is a transport or service failure.
var ErrNoSpeech = errors.New("stt: no speech detected")

// Recorder captures one utterance of mono PCM at audioconv.CaptureRate.
// Satisfied by *audio.Recorder.
type Recorder interface {
	Record(ctx context.Context) ([]float32, error)
}

type transcriptions interface {
	New(ctx context.Context, body openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error)
}

// Transcriber is the speech-to-text adapter: blocking capture followed by
// a blocking remote recognition call.
type Transcriber struct {
	rec      Recorder
	api      transcriptions
	model    string
	language string
}

func New(client openai.Client, rec Recorder, sp config.Speech) *Transcriber {
	return &Transcriber{
		rec:      rec,
		api:      &client.Audio.Transcriptions,
		model:    sp.STTModel,
		language: sp.Language,
	}
}

// Transcribe records until end of utterance and returns the transcript.
func (t *Transcriber) Transcribe(ctx context.Context) (string, error) {
	pcm, err := t.rec.Record(ctx)
	if err != nil {
		return "", fmt.Errorf("record: %w", err)
	}
	if len(pcm) == 0 {
		return "", ErrNoSpeech
	}

	log.Debug("Recorded utterance", "samples", len(pcm))

	wav, err := audioconv.EncodeWAV(pcm)
	if err != nil {
		return "", fmt.Errorf("encode capture: %w", err)
	}

	resp, err := t.api.New(ctx, openai.AudioTranscriptionNewParams{
		File:     openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model:    openai.AudioModel(t.model),
		Language: openai.String(t.language),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrNoSpeech
	}
	return text, nil
}
