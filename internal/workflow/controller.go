// Package workflow implements the guided match-recording flow: an
// ephemeral per-invocation state machine that walks one initiator through
// result, own deck, opponent deck and turn order, then commits exactly one
// record to the ledger.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/soramame/ralmia/internal/database/repository"
)

var (
	// ErrStaleSession is returned for events bound to an unknown, expired or
	// already-committed session. Stale events never mutate anything.
	ErrStaleSession = errors.New("recording session expired, please restart")
	// ErrInvalidChoice is returned for values outside the offered option set.
	// The session stays on its current step.
	ErrInvalidChoice = errors.New("not one of the offered choices")
)

// Step is the choice a session is waiting on.
type Step int

const (
	StepResult Step = iota
	StepMyDeck
	StepOpponentDeck
	StepTurnOrder
)

// Option is one selectable value shown to the initiator.
type Option struct {
	Value string
	Label string
}

// placeholder offered when the deck catalog is empty. Selecting it
// re-prompts without advancing.
const placeholderValue = ""

// Prompt is what a surface renders for the session's current step.
type Prompt struct {
	SessionID string
	Step      Step
	Title     string
	Options   []Option
}

// Next is the outcome of one choice event: either another prompt or the
// committed record.
type Next struct {
	Prompt    *Prompt
	Committed *repository.MatchRecord
}

type session struct {
	initiatorID   string
	initiatorName string
	createdAt     time.Time
	step          Step
	result        repository.Result
	myDeck        string
	opponentDeck  string
}

// Controller owns all in-flight recording sessions. Sessions for different
// initiators are independent; the map and its entries are only touched under
// the mutex, and the terminal store write happens after the session is
// already discarded.
type Controller struct {
	Decks   *repository.DeckRepo
	Records *repository.RecordRepo
	Timeout time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

func NewController(decks *repository.DeckRepo, records *repository.RecordRepo, timeout time.Duration) *Controller {
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	return &Controller{
		Decks:    decks,
		Records:  records,
		Timeout:  timeout,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Start opens a new session for the initiator and returns the first prompt.
// Separate invocations, even by the same initiator, are independent sessions.
func (c *Controller) Start(initiatorID, initiatorName string) Prompt {
	id := uuid.NewString()
	c.mu.Lock()
	c.sessions[id] = &session{
		initiatorID:   initiatorID,
		initiatorName: initiatorName,
		createdAt:     c.now(),
		step:          StepResult,
	}
	c.mu.Unlock()
	return resultPrompt(id)
}

func resultPrompt(sessionID string) Prompt {
	return Prompt{
		SessionID: sessionID,
		Step:      StepResult,
		Title:     "Select the result",
		Options: []Option{
			{Value: string(repository.ResultWin), Label: "Win"},
			{Value: string(repository.ResultLoss), Label: "Loss"},
		},
	}
}

func turnOrderPrompt(sessionID string) Prompt {
	return Prompt{
		SessionID: sessionID,
		Step:      StepTurnOrder,
		Title:     "Select turn order",
		Options: []Option{
			{Value: string(repository.TurnFirst), Label: "First"},
			{Value: string(repository.TurnSecond), Label: "Second"},
		},
	}
}

// Choose delivers one choice event to a session. A valid choice advances the
// session and returns the next prompt, or on the final step commits the
// record. An invalid or placeholder choice returns ErrInvalidChoice together
// with a refreshed prompt for the unchanged step. A failed commit is
// reported to the caller but the session is gone either way; no partial
// record is ever written.
func (c *Controller) Choose(ctx context.Context, sessionID, value string) (Next, error) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	if !ok {
		c.mu.Unlock()
		return Next{}, ErrStaleSession
	}
	if c.now().Sub(s.createdAt) > c.Timeout {
		delete(c.sessions, sessionID)
		c.mu.Unlock()
		return Next{}, ErrStaleSession
	}

	switch s.step {
	case StepResult:
		if value != string(repository.ResultWin) && value != string(repository.ResultLoss) {
			c.mu.Unlock()
			return c.reprompt(ctx, sessionID, StepResult)
		}
		s.result = repository.Result(value)
		s.step = StepMyDeck
		c.mu.Unlock()
		return c.deckPrompt(ctx, sessionID, StepMyDeck)

	case StepMyDeck, StepOpponentDeck:
		step := s.step
		c.mu.Unlock()
		ok, err := c.deckExists(ctx, value)
		if err != nil {
			return Next{}, fmt.Errorf("list decks: %w", err)
		}
		if !ok {
			return c.reprompt(ctx, sessionID, step)
		}
		c.mu.Lock()
		s, alive := c.sessions[sessionID]
		if !alive || s.step != step {
			c.mu.Unlock()
			return Next{}, ErrStaleSession
		}
		// the catalog read happened outside the lock; the window may have
		// closed in the meantime
		if c.now().Sub(s.createdAt) > c.Timeout {
			delete(c.sessions, sessionID)
			c.mu.Unlock()
			return Next{}, ErrStaleSession
		}
		if step == StepMyDeck {
			s.myDeck = value
			s.step = StepOpponentDeck
			c.mu.Unlock()
			// mirror matchups are fine, the catalog is listed again as-is
			return c.deckPrompt(ctx, sessionID, StepOpponentDeck)
		}
		s.opponentDeck = value
		s.step = StepTurnOrder
		c.mu.Unlock()
		p := turnOrderPrompt(sessionID)
		return Next{Prompt: &p}, nil

	default: // StepTurnOrder
		if value != string(repository.TurnFirst) && value != string(repository.TurnSecond) {
			c.mu.Unlock()
			return c.reprompt(ctx, sessionID, StepTurnOrder)
		}
		rec := repository.MatchRecord{
			PlayerName:   s.initiatorName,
			PlayerID:     s.initiatorID,
			Result:       s.result,
			MyDeck:       s.myDeck,
			OpponentDeck: s.opponentDeck,
			TurnOrder:    repository.TurnOrder(value),
		}
		// the session is done whether or not the insert succeeds
		delete(c.sessions, sessionID)
		c.mu.Unlock()
		if err := c.Records.Insert(ctx, rec); err != nil {
			log.Printf("workflow: commit failed for %s: %v", rec.PlayerID, err)
			return Next{}, err
		}
		return Next{Committed: &rec}, nil
	}
}

// Cancel discards an in-flight session. Unknown ids are a no-op; nothing is
// written either way.
func (c *Controller) Cancel(sessionID string) {
	c.mu.Lock()
	delete(c.sessions, sessionID)
	c.mu.Unlock()
}

// Sweep discards every expired session so the map stays bounded even when
// abandoned sessions never receive another event. Returns how many were
// dropped.
func (c *Controller) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	dropped := 0
	for id, s := range c.sessions {
		if c.now().Sub(s.createdAt) > c.Timeout {
			delete(c.sessions, id)
			dropped++
		}
	}
	return dropped
}

// Active reports the number of in-flight sessions.
func (c *Controller) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

func (c *Controller) deckExists(ctx context.Context, name string) (bool, error) {
	if name == placeholderValue {
		return false, nil
	}
	names, err := c.Decks.List(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// deckPrompt lists the catalog live at step entry; catalog edits made
// mid-workflow show up on the next prompt.
func (c *Controller) deckPrompt(ctx context.Context, sessionID string, step Step) (Next, error) {
	names, err := c.Decks.List(ctx)
	if err != nil {
		return Next{}, fmt.Errorf("list decks: %w", err)
	}
	title := "Select your deck"
	if step == StepOpponentDeck {
		title = "Select the opponent's deck"
	}
	opts := make([]Option, 0, len(names))
	for _, n := range names {
		opts = append(opts, Option{Value: n, Label: n})
	}
	if len(opts) == 0 {
		opts = append(opts, Option{Value: placeholderValue, Label: "no decks found"})
	}
	return Next{Prompt: &Prompt{SessionID: sessionID, Step: step, Title: title, Options: opts}}, nil
}

func (c *Controller) reprompt(ctx context.Context, sessionID string, step Step) (Next, error) {
	switch step {
	case StepMyDeck, StepOpponentDeck:
		next, err := c.deckPrompt(ctx, sessionID, step)
		if err != nil {
			return Next{}, err
		}
		return next, ErrInvalidChoice
	case StepTurnOrder:
		p := turnOrderPrompt(sessionID)
		return Next{Prompt: &p}, ErrInvalidChoice
	default:
		p := resultPrompt(sessionID)
		return Next{Prompt: &p}, ErrInvalidChoice
	}
}
