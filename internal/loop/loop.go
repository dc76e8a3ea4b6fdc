// Package loop sequences the conversation: listen, transcribe, dispatch,
// speak, repeat — until an exit phrase, EOF or a signal.
package loop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	log "log/slog"

	"parley/internal/stt"
)

// State of the controller. Transitions are strictly sequential; there is
// no overlap between listening and speaking.
type State int

const (
	StateListening State = iota
	StateTranscribing
	StateDispatching
	StateSpeaking
	StateExiting
)

func (s State) String() string {
	switch s {
	case StateListening:
		return "listening"
	case StateTranscribing:
		return "transcribing"
	case StateDispatching:
		return "dispatching"
	case StateSpeaking:
		return "speaking"
	case StateExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// exitPhrases end the conversation when they are the whole utterance.
var exitPhrases = map[string]struct{}{
	"quit":      {},
	"exit":      {},
	"stop":      {},
	"goodbye":   {},
	"bye":       {},
	"thank you": {},
}

// IsExitPhrase reports whether the transcript, lowercased and with
// trailing punctuation dropped, is one of the fixed exit phrases.
func IsExitPhrase(text string) bool {
	norm := strings.ToLower(strings.TrimSpace(text))
	norm = strings.TrimRight(norm, ".,!?")
	norm = strings.TrimSpace(norm)
	_, ok := exitPhrases[norm]
	return ok
}

// Transcriber captures one utterance and returns its transcript.
type Transcriber interface {
	Transcribe(ctx context.Context) (string, error)
}

// Agent dispatches a transcript to the LLM backend.
type Agent interface {
	Send(ctx context.Context, text string) (string, error)
}

// Speaker voices a reply and blocks until playback completes.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

const apology = "Sorry, I could not reach the model. Let's try again."

// Controller owns the turn loop. In echo mode Agent and Speaker are never
// touched: the transcript is printed back unchanged.
type Controller struct {
	Transcriber Transcriber
	Agent       Agent
	Speaker     Speaker

	// Notify, when set, runs right before each listen (audible cue).
	Notify func()

	// Out receives transcripts and replies. Defaults to stdout.
	Out io.Writer

	Echo bool

	state State
}

// State returns the controller's current state.
func (c *Controller) State() State { return c.state }

// Run drives turns until an exit phrase, end of input, or ctx
// cancellation. Per-turn adapter failures are logged and the loop goes
// back to listening; only cancellation and EOF end it, always cleanly.
func (c *Controller) Run(ctx context.Context) error {
	out := c.Out
	if out == nil {
		out = os.Stdout
	}

	for {
		c.state = StateListening
		if c.Notify != nil {
			c.Notify()
		}

		text, err := c.listen(ctx)
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
			c.state = StateExiting
			return nil
		case errors.Is(err, stt.ErrNoSpeech):
			log.Info("Could not understand audio")
			continue
		default:
			log.Error("Recognition failed", "err", err)
			continue
		}

		if IsExitPhrase(text) {
			c.farewell(ctx, out)
			return nil
		}

		if c.Echo {
			fmt.Fprintf(out, "\033[3m%s\033[0m\n\n", text)
			continue
		}

		c.state = StateDispatching
		fmt.Fprintf(out, "\033[3m%s\033[0m\n\n", text)

		reply, err := c.Agent.Send(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				c.state = StateExiting
				return nil
			}
			log.Error("Backend failed", "err", err)
			c.say(ctx, apology)
			continue
		}

		fmt.Fprintf(out, "%s\n\n", reply)

		c.state = StateSpeaking
		c.say(ctx, reply)
	}
}

func (c *Controller) listen(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.state = StateTranscribing
	return c.Transcriber.Transcribe(ctx)
}

// say voices text best-effort: synthesis trouble degrades the turn to
// text-only instead of ending the conversation.
func (c *Controller) say(ctx context.Context, text string) {
	if c.Speaker == nil {
		return
	}
	if err := c.Speaker.Speak(ctx, text); err != nil {
		log.Warn("Synthesis failed, continuing without voice", "err", err)
	}
}

func (c *Controller) farewell(ctx context.Context, out io.Writer) {
	fmt.Fprintln(out, "Goodbye")
	if !c.Echo {
		c.say(ctx, "Goodbye")
	}
	c.state = StateExiting
}
