package llm

import "context"

// Message is one transcript turn handed to the provider.
type Message struct {
	Role    string
	Content string
}

// Transcript roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatProvider produces the persona's reply to a conversation. The history
// already ends with the user's latest prompt.
type ChatProvider interface {
	Reply(ctx context.Context, persona string, history []Message) (string, error)
}
