// Package stats aggregates win/loss summaries from the match ledger.
// It holds no state of its own; every figure is derived by scanning the
// store at call time, so nothing can drift.
package stats

import (
	"context"

	"github.com/soramame/ralmia/internal/database/repository"
)

// Summary is a win/loss aggregate. WinRate is a percentage, unrounded;
// renderings decide their own precision.
type Summary struct {
	Wins    int     `json:"wins"`
	Losses  int     `json:"losses"`
	Total   int     `json:"total"`
	WinRate float64 `json:"win_rate"`
}

// Engine reads through the single RecordRepo access path.
type Engine struct {
	Records *repository.RecordRepo
}

// Overall aggregates across all players when playerID is empty, otherwise
// for one player. An empty store yields the zero Summary.
func (e *Engine) Overall(ctx context.Context, playerID string) (Summary, error) {
	results, err := e.Records.Results(ctx, playerID)
	if err != nil {
		return Summary{}, err
	}
	var s Summary
	for _, res := range results {
		tally(&s, res)
	}
	finalize(&s)
	return s, nil
}

// ByOpponentDeck groups one player's records by the opponent deck string
// exactly as stored. Historical naming drift yields separate groups.
func (e *Engine) ByOpponentDeck(ctx context.Context, playerID string) (map[string]Summary, error) {
	pairs, err := e.Records.ListForPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Summary, len(pairs))
	for _, p := range pairs {
		s := out[p.OpponentDeck]
		tally(&s, p.Result)
		out[p.OpponentDeck] = s
	}
	for deck, s := range out {
		finalize(&s)
		out[deck] = s
	}
	return out, nil
}

// OpponentDeckCounts is the global distribution of opponent decks.
func (e *Engine) OpponentDeckCounts(ctx context.Context) (map[string]int, error) {
	decks, err := e.Records.OpponentDecks(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(decks))
	for _, d := range decks {
		out[d]++
	}
	return out, nil
}

func tally(s *Summary, res repository.Result) {
	switch res {
	case repository.ResultWin:
		s.Wins++
	case repository.ResultLoss:
		s.Losses++
	}
	s.Total++
}

func finalize(s *Summary) {
	if s.Total > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Total) * 100
	}
}
