package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/user"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/soramame/ralmia/internal/api"
	"github.com/soramame/ralmia/internal/config"
	"github.com/soramame/ralmia/internal/database"
	"github.com/soramame/ralmia/internal/database/repository"
	"github.com/soramame/ralmia/internal/llm"
	"github.com/soramame/ralmia/internal/service"
	"github.com/soramame/ralmia/internal/stats"
	"github.com/soramame/ralmia/internal/tui"
	"github.com/soramame/ralmia/internal/workflow"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		log.Fatalf("mkdir db dir: %v", err)
	}

	if err := database.RunMigrations(cfg.Database.Path, "internal/database/migrations"); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := database.SeedDecks(ctx, db); err != nil {
		log.Fatalf("seed decks: %v", err)
	}

	// repositories
	deckRepo := repository.NewDeckRepo(db)
	recordRepo := repository.NewRecordRepo(db)
	chatRepo := repository.NewChatRepo(db)

	// services
	engine := &stats.Engine{Records: recordRepo}
	controller := workflow.NewController(deckRepo, recordRepo,
		time.Duration(cfg.Workflow.TimeoutSeconds)*time.Second)
	chat := &service.ChatService{
		History:      chatRepo,
		Provider:     llm.NewOpenAIProvider(cfg.APIKey(), cfg.LLM.Model),
		Persona:      cfg.LLM.Persona,
		HistoryLimit: cfg.Chat.HistoryLimit,
	}
	maintenance := &service.MaintenanceService{
		DB:       db,
		Records:  recordRepo,
		Chat:     chatRepo,
		Sessions: controller,
		ChatKeep: cfg.Chat.Keep,
	}

	sched, err := maintenance.StartScheduler(ctx)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	defer func() { _ = sched.Shutdown() }()

	if cfg.Server.Enabled {
		srv := &api.Server{Decks: deckRepo, Records: recordRepo, Stats: engine}
		go func() {
			if err := srv.App().Listen(cfg.Server.Addr); err != nil {
				log.Printf("http server: %v", err)
			}
		}()
	}

	playerID, playerName := localPlayer()

	p := tea.NewProgram(tui.New(ctx, playerID, playerName,
		tui.Repos{Decks: deckRepo, Records: recordRepo},
		tui.Services{Stats: engine, Workflow: controller, Chat: chat, Maintenance: maintenance},
	), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("error: %v\n", err)
	}
}

// localPlayer identifies the initiator by a stable opaque id and a display
// name, the same shape a chat platform adapter would supply.
func localPlayer() (string, string) {
	if u, err := user.Current(); err == nil {
		name := u.Name
		if name == "" {
			name = u.Username
		}
		return u.Uid, name
	}
	return "local", "local"
}
