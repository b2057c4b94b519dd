package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/soramame/ralmia/internal/database/repository"
	"github.com/soramame/ralmia/internal/llm"
)

// ChatService runs the persona conversation over the bounded transcript.
type ChatService struct {
	History      *repository.ChatRepo
	Provider     llm.ChatProvider
	Persona      string
	HistoryLimit int
}

// Ask records the player's prompt, replays the recent transcript to the
// provider and records the reply. The user turn is kept even when the
// provider fails, matching the append-only transcript semantics.
func (s *ChatService) Ask(ctx context.Context, playerID, prompt string) (string, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", fmt.Errorf("chat: empty prompt")
	}
	if err := s.History.Append(ctx, playerID, llm.RoleUser, prompt); err != nil {
		return "", fmt.Errorf("chat: save prompt: %w", err)
	}

	limit := s.HistoryLimit
	if limit <= 0 {
		limit = 20
	}
	msgs, err := s.History.History(ctx, playerID, limit)
	if err != nil {
		return "", fmt.Errorf("chat: load history: %w", err)
	}
	history := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		history = append(history, llm.Message{Role: m.Role, Content: m.Content})
	}

	reply, err := s.Provider.Reply(ctx, s.Persona, history)
	if err != nil {
		return "", err
	}
	if err := s.History.Append(ctx, playerID, llm.RoleAssistant, reply); err != nil {
		return "", fmt.Errorf("chat: save reply: %w", err)
	}
	return reply, nil
}

// Transcript returns the newest turns, oldest first.
func (s *ChatService) Transcript(ctx context.Context, playerID string, limit int) ([]repository.ChatMessage, error) {
	if limit <= 0 {
		limit = 6
	}
	return s.History.History(ctx, playerID, limit)
}

// Forget clears one player's transcript.
func (s *ChatService) Forget(ctx context.Context, playerID string) error {
	return s.History.DeleteForPlayer(ctx, playerID)
}
