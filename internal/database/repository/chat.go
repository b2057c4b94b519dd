package repository

import (
	"context"
	"database/sql"
)

// ChatRepo handles the bounded per-player chat transcript. Append-only;
// the only guarantees are "last N, in order".
type ChatRepo struct {
	db *sql.DB
}

func NewChatRepo(db *sql.DB) *ChatRepo {
	return &ChatRepo{db: db}
}

// Append stores one transcript turn.
func (r *ChatRepo) Append(ctx context.Context, playerID, role, content string) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO chat_history (player_id, role, content) VALUES (?, ?, ?)
	`, playerID, role, content)
	return err
}

// History returns the newest limit turns for a player, oldest first, ready
// to replay to the conversational service.
func (r *ChatRepo) History(ctx context.Context, playerID string, limit int) ([]ChatMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, role, content FROM chat_history
	WHERE player_id = ?
	ORDER BY id DESC
	LIMIT ?
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.Role, &m.Content); err != nil {
			return nil, err
		}
		m.PlayerID = playerID
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// reverse into chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// DeleteForPlayer clears one player's transcript.
func (r *ChatRepo) DeleteForPlayer(ctx context.Context, playerID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM chat_history WHERE player_id = ?`, playerID)
	return err
}

// TrimAll drops all but the newest keep turns of every player's transcript,
// keeping the table bounded.
func (r *ChatRepo) TrimAll(ctx context.Context, keep int) error {
	if keep <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
	DELETE FROM chat_history WHERE id NOT IN (
		SELECT id FROM chat_history AS h
		WHERE (
			SELECT COUNT(*) FROM chat_history AS newer
			WHERE newer.player_id = h.player_id AND newer.id >= h.id
		) <= ?
	)
	`, keep)
	return err
}
