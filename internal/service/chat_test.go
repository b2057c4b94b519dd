package service

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soramame/ralmia/internal/database"
	"github.com/soramame/ralmia/internal/database/repository"
	"github.com/soramame/ralmia/internal/llm"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("../database/migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// echoProvider replies with a canned string and records what it saw.
type echoProvider struct {
	persona string
	history []llm.Message
	fail    error
}

func (p *echoProvider) Reply(ctx context.Context, persona string, history []llm.Message) (string, error) {
	p.persona = persona
	p.history = history
	if p.fail != nil {
		return "", p.fail
	}
	return "beep boop", nil
}

func TestChatAskRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	chatRepo := repository.NewChatRepo(newTestDB(t))
	provider := &echoProvider{}
	svc := &ChatService{History: chatRepo, Provider: provider, Persona: "You are Ralmia.", HistoryLimit: 20}

	reply, err := svc.Ask(ctx, "p1", "hello there")
	require.NoError(t, err)
	require.Equal(t, "beep boop", reply)

	require.Equal(t, "You are Ralmia.", provider.persona)
	require.Len(t, provider.history, 1)
	require.Equal(t, llm.Message{Role: "user", Content: "hello there"}, provider.history[0])

	msgs, err := svc.Transcript(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "user", msgs[0].Role)
	require.Equal(t, "assistant", msgs[1].Role)
	require.Equal(t, "beep boop", msgs[1].Content)
}

func TestChatAskHistoryWindow(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	chatRepo := repository.NewChatRepo(newTestDB(t))
	provider := &echoProvider{}
	svc := &ChatService{History: chatRepo, Provider: provider, Persona: "persona", HistoryLimit: 4}

	for i := 0; i < 5; i++ {
		_, err := svc.Ask(ctx, "p1", fmt.Sprintf("prompt %d", i))
		require.NoError(t, err)
	}

	// the provider only ever sees the newest window, ending with the prompt
	require.Len(t, provider.history, 4)
	require.Equal(t, "prompt 4", provider.history[3].Content)
}

func TestChatAskProviderFailureKeepsPrompt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	chatRepo := repository.NewChatRepo(newTestDB(t))
	provider := &echoProvider{fail: fmt.Errorf("provider down")}
	svc := &ChatService{History: chatRepo, Provider: provider, Persona: "persona"}

	_, err := svc.Ask(ctx, "p1", "hello?")
	require.Error(t, err)

	// the user's turn stays in the transcript, no assistant turn is written
	msgs, err := svc.Transcript(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, "user", msgs[0].Role)
}

func TestChatAskEmptyPrompt(t *testing.T) {
	t.Parallel()
	chatRepo := repository.NewChatRepo(newTestDB(t))
	svc := &ChatService{History: chatRepo, Provider: &echoProvider{}}

	_, err := svc.Ask(context.Background(), "p1", "   ")
	require.Error(t, err)
}

func TestChatForget(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	chatRepo := repository.NewChatRepo(newTestDB(t))
	svc := &ChatService{History: chatRepo, Provider: &echoProvider{}, Persona: "persona"}

	_, err := svc.Ask(ctx, "p1", "remember me")
	require.NoError(t, err)
	require.NoError(t, svc.Forget(ctx, "p1"))

	msgs, err := svc.Transcript(ctx, "p1", 10)
	require.NoError(t, err)
	require.Empty(t, msgs)
}
