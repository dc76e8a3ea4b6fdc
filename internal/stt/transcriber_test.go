package stt

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecorder struct {
	pcm []float32
	err error
}

func (f *fakeRecorder) Record(ctx context.Context) ([]float32, error) {
	return f.pcm, f.err
}

type fakeTranscriptions struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriptions) New(ctx context.Context, body openai.AudioTranscriptionNewParams, opts ...option.RequestOption) (*openai.Transcription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &openai.Transcription{Text: f.text}, nil
}

func speech() []float32 {
	pcm := make([]float32, 1600)
	for i := range pcm {
		pcm[i] = 0.25
	}
	return pcm
}

func TestTranscribe(t *testing.T) {
	api := &fakeTranscriptions{text: "  hello there \n"}
	tr := &Transcriber{rec: &fakeRecorder{pcm: speech()}, api: api, model: "whisper-1", language: "en"}

	text, err := tr.Transcribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
	assert.Equal(t, 1, api.calls)
}

func TestTranscribeEmptyCaptureIsNoSpeech(t *testing.T) {
	api := &fakeTranscriptions{text: "ignored"}
	tr := &Transcriber{rec: &fakeRecorder{}, api: api}

	_, err := tr.Transcribe(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeech)
	assert.Zero(t, api.calls, "no network call for an empty capture")
}

func TestTranscribeBlankResultIsNoSpeech(t *testing.T) {
	tr := &Transcriber{rec: &fakeRecorder{pcm: speech()}, api: &fakeTranscriptions{text: "   "}}

	_, err := tr.Transcribe(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeech)
}

func TestTranscribeServiceFailure(t *testing.T) {
	boom := errors.New("connection refused")
	tr := &Transcriber{rec: &fakeRecorder{pcm: speech()}, api: &fakeTranscriptions{err: boom}}

	_, err := tr.Transcribe(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrNoSpeech)
}

func TestTranscribeRecorderFailure(t *testing.T) {
	tr := &Transcriber{rec: &fakeRecorder{err: errors.New("device gone")}, api: &fakeTranscriptions{}}

	_, err := tr.Transcribe(context.Background())
	assert.Error(t, err)
}

func TestConsole(t *testing.T) {
	var out strings.Builder
	c := NewConsole(strings.NewReader("hello\n\nworld\n"), &out)

	text, err := c.Transcribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = c.Transcribe(context.Background())
	assert.ErrorIs(t, err, ErrNoSpeech)

	text, err = c.Transcribe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "world", text)

	_, err = c.Transcribe(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestConsoleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewConsole(strings.NewReader("hello\n"), io.Discard)
	_, err := c.Transcribe(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
