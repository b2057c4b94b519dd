package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/soramame/ralmia/internal/database"
	"github.com/soramame/ralmia/internal/database/repository"
	"github.com/soramame/ralmia/internal/stats"
)

func newServer(t *testing.T) (*Server, *repository.RecordRepo, *repository.DeckRepo) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("../database/migrations")
	require.NoError(t, err)
	require.NoError(t, database.RunMigrations(dbPath, migrations))

	db, err := database.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	decks := repository.NewDeckRepo(db)
	records := repository.NewRecordRepo(db)
	return &Server{Decks: decks, Records: records, Stats: &stats.Engine{Records: records}}, records, decks
}

func getJSON(t *testing.T, srv *Server, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(body, out))
	}
	return resp.StatusCode
}

func TestLiveness(t *testing.T) {
	t.Parallel()
	srv, _, _ := newServer(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp, err := srv.App().Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "Ralmia is alive!", string(body))

	var health map[string]string
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/healthz", &health))
	require.Equal(t, "ok", health["status"])
}

func TestStatsEndpoints(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv, records, _ := newServer(t)

	var empty stats.Summary
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/stats", &empty))
	require.Equal(t, stats.Summary{}, empty)

	for _, r := range []repository.Result{repository.ResultWin, repository.ResultWin, repository.ResultLoss} {
		require.NoError(t, records.Insert(ctx, repository.MatchRecord{
			PlayerName: "Alice", PlayerID: "p1", Result: r,
			MyDeck: "Aggro", OpponentDeck: "Control", TurnOrder: repository.TurnFirst,
		}))
	}

	var mine stats.Summary
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/stats?player_id=p1", &mine))
	require.Equal(t, 2, mine.Wins)
	require.Equal(t, 3, mine.Total)
	require.InDelta(t, 66.666, mine.WinRate, 0.001)

	var byDeck map[string]stats.Summary
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/stats/p1/opponents", &byDeck))
	require.Len(t, byDeck, 1)
	require.Equal(t, 3, byDeck["Control"].Total)
}

func TestRecentAndDecksEndpoints(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	srv, records, decks := newServer(t)

	require.NoError(t, decks.Add(ctx, "Control"))
	require.NoError(t, decks.Add(ctx, "Aggro"))
	require.NoError(t, records.Insert(ctx, repository.MatchRecord{
		PlayerName: "Alice", PlayerID: "p1", Result: repository.ResultWin,
		MyDeck: "Aggro", OpponentDeck: "Control", TurnOrder: repository.TurnSecond,
	}))

	var deckResp struct {
		Decks []string `json:"decks"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/decks", &deckResp))
	require.Equal(t, []string{"Aggro", "Control"}, deckResp.Decks)

	var recResp struct {
		Records []map[string]any `json:"records"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/records/recent?limit=5", &recResp))
	require.Len(t, recResp.Records, 1)
	require.Equal(t, "Aggro", recResp.Records[0]["my_deck"])

	var dist struct {
		OpponentDecks map[string]int `json:"opponent_decks"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv, "/api/decks/distribution", &dist))
	require.Equal(t, map[string]int{"Control": 1}, dist.OpponentDecks)
}
