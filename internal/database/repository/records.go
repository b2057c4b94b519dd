package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// now returns UTC time truncated to seconds, the precision stored in the
// ledger.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// RecordRepo handles the match ledger. It is the only access path into
// game_records; stats and deletion all go through it.
type RecordRepo struct {
	db *sql.DB
}

func NewRecordRepo(db *sql.DB) *RecordRepo {
	return &RecordRepo{db: db}
}

// Insert appends one completed match. The timestamp is assigned here from
// the server clock at second precision. Deck names are stored verbatim,
// never checked against the catalog.
func (r *RecordRepo) Insert(ctx context.Context, rec MatchRecord) error {
	ts := now().Format(timestampLayout)
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO game_records (timestamp, player_name, player_id, result, my_deck, opponent_deck, turn_order, memo)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, ts, rec.PlayerName, rec.PlayerID, string(rec.Result), rec.MyDeck, rec.OpponentDeck, string(rec.TurnOrder), rec.Memo)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// DeleteAll removes every match record. Irreversible.
func (r *RecordRepo) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM game_records`); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// DeleteForPlayer removes one player's records and reports how many matched.
// Zero matches is not an error.
func (r *RecordRepo) DeleteForPlayer(ctx context.Context, playerID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM game_records WHERE player_id = ?`, playerID)
	if err != nil {
		return 0, fmt.Errorf("delete records for player: %w", err)
	}
	return res.RowsAffected()
}

// ListRecent returns records newest first. A non-positive limit falls back
// to 10.
func (r *RecordRepo) ListRecent(ctx context.Context, limit int) ([]MatchRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, timestamp, player_name, player_id, result, my_deck, opponent_deck, turn_order, COALESCE(memo, '')
	FROM game_records
	ORDER BY timestamp DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []MatchRecord
	for rows.Next() {
		var rec MatchRecord
		var ts, result, turn string
		if err := rows.Scan(&rec.ID, &ts, &rec.PlayerName, &rec.PlayerID, &result, &rec.MyDeck, &rec.OpponentDeck, &turn, &rec.Memo); err != nil {
			return nil, err
		}
		rec.Timestamp, _ = time.ParseInLocation(timestampLayout, ts, time.UTC)
		rec.Result = Result(result)
		rec.TurnOrder = TurnOrder(turn)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListForPlayer returns the (opponent deck, result) pairs of one player's
// records, the basis for per-archetype breakdowns.
func (r *RecordRepo) ListForPlayer(ctx context.Context, playerID string) ([]DeckResult, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT opponent_deck, result FROM game_records WHERE player_id = ?
	`, playerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DeckResult
	for rows.Next() {
		var dr DeckResult
		var result string
		if err := rows.Scan(&dr.OpponentDeck, &result); err != nil {
			return nil, err
		}
		dr.Result = Result(result)
		out = append(out, dr)
	}
	return out, rows.Err()
}

// Results returns the result column, optionally scoped to one player.
// An empty playerID means all players.
func (r *RecordRepo) Results(ctx context.Context, playerID string) ([]Result, error) {
	query := `SELECT result FROM game_records`
	args := []any{}
	if playerID != "" {
		query += ` WHERE player_id = ?`
		args = append(args, playerID)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Result
	for rows.Next() {
		var result string
		if err := rows.Scan(&result); err != nil {
			return nil, err
		}
		out = append(out, Result(result))
	}
	return out, rows.Err()
}

// OpponentDecks returns the opponent deck of every record, for distribution
// summaries.
func (r *RecordRepo) OpponentDecks(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT opponent_deck FROM game_records`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var deck string
		if err := rows.Scan(&deck); err != nil {
			return nil, err
		}
		out = append(out, deck)
	}
	return out, rows.Err()
}
