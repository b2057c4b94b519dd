package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrEmptyDeckName is returned when a deck name is empty after trimming.
	ErrEmptyDeckName = errors.New("deck name is empty")
	// ErrDuplicateDeck is returned when the exact name is already registered.
	ErrDuplicateDeck = errors.New("deck already exists")
)

// DeckRepo handles the deck archetype catalog.
type DeckRepo struct {
	db *sql.DB
}

func NewDeckRepo(db *sql.DB) *DeckRepo {
	return &DeckRepo{db: db}
}

// List returns deck names in lexicographic order. An empty catalog yields
// an empty slice, not an error.
func (r *DeckRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT deck_name FROM decks ORDER BY deck_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Add registers a new archetype. Names are trimmed and matched
// case-sensitively; renames are not supported.
func (r *DeckRepo) Add(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyDeckName
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO decks (deck_name) VALUES (?)`, name)
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return ErrDuplicateDeck
	}
	return err
}

// Remove deletes an archetype by exact name. Historical match records keep
// their deck strings. Returns true iff a row matched.
func (r *DeckRepo) Remove(ctx context.Context, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM decks WHERE deck_name = ?`, name)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Closest returns the registered name nearest to the input by edit distance,
// for "did you mean" hints. Empty string when the catalog is empty.
func (r *DeckRepo) Closest(ctx context.Context, name string) (string, error) {
	names, err := r.List(ctx)
	if err != nil {
		return "", err
	}
	best, bestDist := "", -1
	for _, candidate := range names {
		d := levenshtein.ComputeDistance(name, candidate)
		if bestDist < 0 || d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best, nil
}
