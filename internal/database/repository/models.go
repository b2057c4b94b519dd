package repository

import "time"

// Result is the outcome of a match from the recording player's side.
type Result string

const (
	ResultWin  Result = "WIN"
	ResultLoss Result = "LOSS"
)

// TurnOrder records whether the player acted first or second.
type TurnOrder string

const (
	TurnFirst  TurnOrder = "FIRST"
	TurnSecond TurnOrder = "SECOND"
)

// Deck represents a deck archetype row.
type Deck struct {
	ID   int64
	Name string
}

// MatchRecord represents a completed match. Rows are immutable once written;
// deck names are snapshots taken at record time and are never reconciled
// against the catalog.
type MatchRecord struct {
	ID           int64
	Timestamp    time.Time
	PlayerName   string
	PlayerID     string
	Result       Result
	MyDeck       string
	OpponentDeck string
	TurnOrder    TurnOrder
	Memo         string
}

// DeckResult is the (opponent deck, result) pair used for per-archetype breakdowns.
type DeckResult struct {
	OpponentDeck string
	Result       Result
}

// ChatMessage is one turn of a player's rolling transcript.
type ChatMessage struct {
	ID       int64
	PlayerID string
	Role     string
	Content  string
}
