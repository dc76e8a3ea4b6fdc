// Package agent keeps one conversation session with the remote LLM agent
// backend: the system prompt, the toolgroup wiring and the accumulated
// turn history.
package agent

import (
	"context"
	"errors"
	"fmt"

	log "log/slog"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"parley/internal/config"
)

// ErrEmptyReply means the backend answered without content. It is retried
// like a transport failure.
var ErrEmptyReply = errors.New("agent: empty reply from backend")

type completions interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Session is owned by the main loop and never shared. History only grows
// on successful turns, so a failed dispatch cannot poison the context.
type Session struct {
	chat     completions
	model    string
	strategy config.Strategy
	extra    []option.RequestOption
	history  []openai.ChatCompletionMessageParamUnion
}

// NewSession wires a session from a fully resolved config. The config
// must already be validated; see config.Load.
func NewSession(client openai.Client, cfg config.AgentConfig) *Session {
	s := &Session{
		chat:     &client.Chat.Completions,
		model:    cfg.Model,
		strategy: cfg.SamplingParams.Strategy,
	}
	if cfg.Instructions != "" {
		s.history = append(s.history, openai.SystemMessage(cfg.Instructions))
	}
	if len(cfg.Toolgroups) > 0 {
		// llama-stack's OpenAI-compatible surface takes toolgroups as a
		// vendor extension on the request body.
		s.extra = append(s.extra, option.WithJSONSet("toolgroups", toolgroupPayload(cfg.Toolgroups)))
	}
	return s
}

// Send posts one user turn and returns the reply text, blocking for the
// duration of the remote inference. A failed or empty response is retried
// exactly once before the error is surfaced.
func (s *Session) Send(ctx context.Context, text string) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(s.history)+2)
	msgs = append(msgs, s.history...)
	msgs = append(msgs, openai.UserMessage(text))

	params := openai.ChatCompletionNewParams{
		Messages: msgs,
		Model:    shared.ChatModel(s.model),
	}
	switch s.strategy.Type {
	case "top_p":
		params.Temperature = openai.Float(s.strategy.Temperature)
		params.TopP = openai.Float(s.strategy.TopP)
	case "greedy":
		params.Temperature = openai.Float(0)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			log.Warn("Retrying turn", "err", lastErr)
		}

		resp, err := s.chat.New(ctx, params, s.extra...)
		if err != nil {
			lastErr = fmt.Errorf("create turn: %w", err)
			continue
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			lastErr = ErrEmptyReply
			continue
		}

		reply := resp.Choices[0].Message.Content
		s.history = append(msgs, openai.AssistantMessage(reply))
		return reply, nil
	}

	return "", lastErr
}

// Len reports the number of messages in the session context.
func (s *Session) Len() int { return len(s.history) }

func toolgroupPayload(refs []config.ToolgroupRef) []any {
	out := make([]any, 0, len(refs))
	for _, r := range refs {
		if len(r.Args) == 0 {
			out = append(out, r.Name)
			continue
		}
		out = append(out, map[string]any{"name": r.Name, "args": r.Args})
	}
	return out
}
