// Package api exposes the read-only HTTP surface: liveness plus ledger and
// stats queries. All mutation happens through the interactive surface.
package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/soramame/ralmia/internal/database/repository"
	"github.com/soramame/ralmia/internal/stats"
)

// Server wires the repositories behind the HTTP routes.
type Server struct {
	Decks   *repository.DeckRepo
	Records *repository.RecordRepo
	Stats   *stats.Engine
}

// App builds the fiber application.
func (s *Server) App() *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("Ralmia is alive!")
	})
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	apiGroup := app.Group("/api")
	apiGroup.Get("/decks", s.listDecks)
	apiGroup.Get("/decks/distribution", s.deckDistribution)
	apiGroup.Get("/records/recent", s.recentRecords)
	apiGroup.Get("/stats", s.overallStats)
	apiGroup.Get("/stats/:player_id/opponents", s.opponentStats)

	return app
}

func (s *Server) listDecks(c *fiber.Ctx) error {
	names, err := s.Decks.List(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"decks": names})
}

func (s *Server) deckDistribution(c *fiber.Ctx) error {
	counts, err := s.Stats.OpponentDeckCounts(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"opponent_decks": counts})
}

func (s *Server) recentRecords(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "10"))
	records, err := s.Records.ListRecent(c.Context(), limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	out := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		out = append(out, fiber.Map{
			"timestamp":     r.Timestamp.Format("2006-01-02 15:04:05"),
			"player_name":   r.PlayerName,
			"result":        r.Result,
			"my_deck":       r.MyDeck,
			"opponent_deck": r.OpponentDeck,
			"turn_order":    r.TurnOrder,
		})
	}
	return c.JSON(fiber.Map{"records": out})
}

func (s *Server) overallStats(c *fiber.Ctx) error {
	summary, err := s.Stats.Overall(c.Context(), c.Query("player_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(summary)
}

func (s *Server) opponentStats(c *fiber.Ctx) error {
	byDeck, err := s.Stats.ByOpponentDeck(c.Context(), c.Params("player_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(byDeck)
}
