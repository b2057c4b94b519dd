package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/soramame/ralmia/internal/database"
	"github.com/soramame/ralmia/internal/database/repository"
	"github.com/soramame/ralmia/internal/workflow"
)

// MaintenanceService houses destructive/ops actions and the periodic
// housekeeping jobs.
type MaintenanceService struct {
	DB       *sql.DB
	Records  *repository.RecordRepo
	Chat     *repository.ChatRepo
	Sessions *workflow.Controller
	ChatKeep int
}

// ResetRecords wipes the whole match ledger. Irreversible.
func (s *MaintenanceService) ResetRecords(ctx context.Context) error {
	return s.Records.DeleteAll(ctx)
}

// ResetPlayer removes one player's records and reports how many were dropped.
func (s *MaintenanceService) ResetPlayer(ctx context.Context, playerID string) (int64, error) {
	return s.Records.DeleteForPlayer(ctx, playerID)
}

// ResetAll wipes every table. The schema stays intact so the app keeps running.
func (s *MaintenanceService) ResetAll(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(s.DB, func(tx *sql.Tx) error {
		for _, t := range []string{"game_records", "chat_history", "decks"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}

// StartScheduler runs the periodic jobs: dropping expired recording sessions
// and trimming transcripts to the configured bound. Returns the scheduler so
// the caller can shut it down.
func (s *MaintenanceService) StartScheduler(ctx context.Context) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			if n := s.Sessions.Sweep(); n > 0 {
				log.Printf("maintenance: dropped %d expired sessions", n)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Hour),
		gocron.NewTask(func() {
			if err := s.Chat.TrimAll(ctx, s.ChatKeep); err != nil {
				log.Printf("maintenance: trim chat history: %v", err)
			}
		}),
	)
	if err != nil {
		return nil, err
	}

	sched.Start()
	return sched, nil
}
