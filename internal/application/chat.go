package application

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"minecraft-ai/internal/domain"
)

type TextModel interface {
	Generate(ctx context.Context, prompt string, history []domain.ChatTurn) (string, error)
}

// Chat is the typed-message path. Model failures never reach the caller; they
// are replaced with domain.FallbackReply.
type Chat struct {
	model  TextModel
	conv   *Conversation
	logger *slog.Logger
	busy   atomic.Bool
}

// NewChat returns a Chat that records both sides of each exchange in conv.
func NewChat(model TextModel, conv *Conversation, logger *slog.Logger) *Chat {
	return &Chat{
		model:  model,
		conv:   conv,
		logger: logger,
	}
}

// Send records the prompt, asks the model with the last domain.HistoryLimit
// messages as context and records the reply. Only one Send runs at a time.
func (c *Chat) Send(ctx context.Context, prompt string) (domain.Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return domain.Message{}, domain.ErrEmptyPrompt
	}
	if !c.busy.CompareAndSwap(false, true) {
		return domain.Message{}, domain.ErrChatBusy
	}
	defer c.busy.Store(false)

	history := toTurns(c.conv.Recent(domain.HistoryLimit))
	c.conv.Add(domain.RoleUser, prompt)

	reply, err := c.model.Generate(ctx, prompt, history)
	if err != nil {
		c.logger.Error("text model request", "error", &domain.RequestError{Err: err})
		reply = domain.FallbackReply
	} else if reply == "" {
		reply = domain.EmptyReply
	}

	return c.conv.Add(domain.RoleAssistant, reply), nil
}

// Busy reports whether a Send is in flight.
func (c *Chat) Busy() bool {
	return c.busy.Load()
}

func toTurns(msgs []domain.Message) []domain.ChatTurn {
	turns := make([]domain.ChatTurn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, domain.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}
