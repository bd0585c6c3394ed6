// Package ai generates chat replies through one of several model backends.
package ai

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/fpt/klein-bot/pkg/logger"
)

var (
	ErrEmptyPrompt   = errors.New("empty prompt")
	ErrEmptyResponse = errors.New("empty response")
)

// Generator answers a prompt in the context of a user's conversation.
type Generator interface {
	Generate(ctx context.Context, userID, prompt string) (string, error)
}

// Backend is a single model call over a full conversation.
type Backend interface {
	Name() string
	Complete(ctx context.Context, system string, turns []Turn) (string, error)
}

// Conversation adds per-user history to a Backend.
type Conversation struct {
	backend Backend
	history *History
	system  string
	logger  *logger.Logger
}

func NewConversation(backend Backend, history *History, system string) *Conversation {
	if history == nil {
		history = NewHistory(0)
	}
	return &Conversation{
		backend: backend,
		history: history,
		system:  system,
		logger:  logger.NewComponentLogger("ai"),
	}
}

// Backend returns the underlying model backend.
func (c *Conversation) Backend() Backend { return c.backend }

// Generate sends the user's history plus prompt. History only grows when the
// backend succeeds.
func (c *Conversation) Generate(ctx context.Context, userID, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ErrEmptyPrompt
	}

	user := Turn{Role: RoleUser, Text: prompt}
	turns := append(c.history.Get(userID), user)

	c.logger.DebugWithIntention(logger.IntentionAI, "Generating", "backend", c.backend.Name(), "user", userID, "turns", len(turns))
	reply, err := c.backend.Complete(ctx, c.system, turns)
	if err != nil {
		return "", errors.Wrapf(err, "%s generation failed", c.backend.Name())
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return "", errors.Wrap(ErrEmptyResponse, c.backend.Name())
	}

	c.history.Append(userID, user, Turn{Role: RoleModel, Text: reply})
	return reply, nil
}

// Purge forgets users idle for DefaultHistoryIdle. It is run by the
// maintenance sweep.
func (c *Conversation) Purge() int {
	return c.history.Prune(DefaultHistoryIdle)
}
