package database

import (
	"context"
	"database/sql"

	"github.com/soramame/ralmia/internal/database/repository"
)

// SeedDecks ensures a new database starts with a few common archetypes,
// so the recording workflow has options before anyone curates the catalog.
// It is idempotent and safe to run on every startup.
func SeedDecks(ctx context.Context, db *sql.DB) error {
	decks := repository.NewDeckRepo(db)
	existing, err := decks.List(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	for _, name := range []string{"Aggro", "Control", "Midrange", "Combo"} {
		if err := decks.Add(ctx, name); err != nil {
			return err
		}
	}
	return nil
}
