package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/soramame/ralmia/internal/database/repository"
	"github.com/soramame/ralmia/internal/service"
	"github.com/soramame/ralmia/internal/stats"
	"github.com/soramame/ralmia/internal/workflow"
)

// App ties together views.
type App struct {
	ctx        context.Context
	repos      Repos
	services   Services
	playerID   string
	playerName string

	state      appState
	status     string
	modal      modalState
	inputBuf   string
	deckCursor int

	decks   []string
	records []repository.MatchRecord
	overall stats.Summary
	byDeck  map[string]stats.Summary

	prompt    *workflow.Prompt
	optCursor int

	transcript []repository.ChatMessage
	chatInput  string
}

type Repos struct {
	Decks   *repository.DeckRepo
	Records *repository.RecordRepo
}

type Services struct {
	Stats       *stats.Engine
	Workflow    *workflow.Controller
	Chat        *service.ChatService
	Maintenance *service.MaintenanceService
}

type appState string

const (
	viewMenu   appState = "menu"
	viewRecord appState = "record"
	viewDecks  appState = "decks"
	viewStats  appState = "stats"
	viewRecent appState = "recent"
	viewChat   appState = "chat"
)

type modalState string

const (
	modalNone         modalState = ""
	modalAddDeck      modalState = "addDeck"
	modalRemoveDeck   modalState = "removeDeck"
	modalConfirmReset modalState = "confirmReset"
)

func New(ctx context.Context, playerID, playerName string, repos Repos, services Services) *App {
	return &App{
		ctx:        ctx,
		repos:      repos,
		services:   services,
		playerID:   playerID,
		playerName: playerName,
		state:      viewMenu,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadDecks(), a.loadRecent(), a.loadStats())
}

// messages

type decksMsg []string
type recordsMsg []repository.MatchRecord
type statsMsg struct {
	overall stats.Summary
	byDeck  map[string]stats.Summary
}
type promptMsg struct{ prompt *workflow.Prompt }
type committedMsg struct{ rec repository.MatchRecord }
type transcriptMsg []repository.ChatMessage
type statusMsg string
type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

// commands

func (a *App) loadDecks() tea.Cmd {
	return func() tea.Msg {
		names, err := a.repos.Decks.List(a.ctx)
		if err != nil {
			return errMsg{err}
		}
		return decksMsg(names)
	}
}

func (a *App) loadRecent() tea.Cmd {
	return func() tea.Msg {
		recs, err := a.repos.Records.ListRecent(a.ctx, 10)
		if err != nil {
			return errMsg{err}
		}
		return recordsMsg(recs)
	}
}

func (a *App) loadStats() tea.Cmd {
	return func() tea.Msg {
		overall, err := a.services.Stats.Overall(a.ctx, a.playerID)
		if err != nil {
			return errMsg{err}
		}
		byDeck, err := a.services.Stats.ByOpponentDeck(a.ctx, a.playerID)
		if err != nil {
			return errMsg{err}
		}
		return statsMsg{overall: overall, byDeck: byDeck}
	}
}

func (a *App) loadTranscript() tea.Cmd {
	return func() tea.Msg {
		msgs, err := a.services.Chat.Transcript(a.ctx, a.playerID, 6)
		if err != nil {
			return errMsg{err}
		}
		return transcriptMsg(msgs)
	}
}

func (a *App) chooseCmd(sessionID, value string) tea.Cmd {
	return func() tea.Msg {
		next, err := a.services.Workflow.Choose(a.ctx, sessionID, value)
		switch {
		case errors.Is(err, workflow.ErrInvalidChoice):
			// re-prompt on the same step
			return promptMsg{prompt: next.Prompt}
		case errors.Is(err, workflow.ErrStaleSession):
			return errMsg{err}
		case err != nil:
			return errMsg{fmt.Errorf("record not saved: %w", err)}
		case next.Committed != nil:
			return committedMsg{rec: *next.Committed}
		default:
			return promptMsg{prompt: next.Prompt}
		}
	}
}

func (a *App) addDeckCmd(name string) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			if err := a.repos.Decks.Add(a.ctx, name); err != nil {
				return errMsg{err}
			}
			return statusMsg("deck added")
		},
		a.loadDecks(),
	)
}

func (a *App) removeDeckCmd(name string) tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			removed, err := a.repos.Decks.Remove(a.ctx, name)
			if err != nil {
				return errMsg{err}
			}
			if !removed {
				hint, _ := a.repos.Decks.Closest(a.ctx, name)
				if hint != "" {
					return statusMsg(fmt.Sprintf("no deck named %q. did you mean %q?", name, hint))
				}
				return statusMsg(fmt.Sprintf("no deck named %q", name))
			}
			return statusMsg("deck removed (past records keep the name)")
		},
		a.loadDecks(),
	)
}

func (a *App) askCmd(prompt string) tea.Cmd {
	return func() tea.Msg {
		if _, err := a.services.Chat.Ask(a.ctx, a.playerID, prompt); err != nil {
			return errMsg{err}
		}
		return statusMsg("")
	}
}

func (a *App) resetCmd() tea.Cmd {
	return tea.Batch(
		func() tea.Msg {
			if err := a.services.Maintenance.ResetRecords(a.ctx); err != nil {
				return errMsg{err}
			}
			return statusMsg("all match records deleted")
		},
		a.loadRecent(),
		a.loadStats(),
	)
}

// update

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch m := msg.(type) {
	case tea.KeyMsg:
		if a.modal != modalNone {
			return a.handleModalKey(m)
		}
		switch a.state {
		case viewRecord:
			return a.handleRecordKey(m)
		case viewChat:
			return a.handleChatKey(m)
		case viewDecks:
			return a.handleDecksKey(m)
		}
		return a.handleMenuKey(m)

	case decksMsg:
		a.decks = []string(m)
		if a.deckCursor >= len(a.decks) {
			a.deckCursor = 0
		}
	case recordsMsg:
		a.records = []repository.MatchRecord(m)
	case statsMsg:
		a.overall = m.overall
		a.byDeck = m.byDeck
	case promptMsg:
		a.prompt = m.prompt
		a.optCursor = 0
	case committedMsg:
		a.prompt = nil
		a.state = viewMenu
		a.status = fmt.Sprintf("saved: %s, %s vs %s, %s", m.rec.Result, m.rec.MyDeck, m.rec.OpponentDeck, m.rec.TurnOrder)
		return a, tea.Batch(a.loadRecent(), a.loadStats())
	case transcriptMsg:
		a.transcript = []repository.ChatMessage(m)
	case statusMsg:
		a.status = string(m)
		if a.state == viewChat {
			return a, a.loadTranscript()
		}
	case errMsg:
		a.status = "error: " + m.Error()
		if a.state == viewRecord && errors.Is(m.err, workflow.ErrStaleSession) {
			a.prompt = nil
			a.state = viewMenu
		}
	}
	return a, nil
}

func (a *App) handleMenuKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "r":
		p := a.services.Workflow.Start(a.playerID, a.playerName)
		a.prompt = &p
		a.optCursor = 0
		a.state = viewRecord
		a.status = ""
	case "d":
		a.state = viewDecks
		a.status = ""
		return a, a.loadDecks()
	case "s":
		a.state = viewStats
		a.status = ""
		return a, a.loadStats()
	case "l":
		a.state = viewRecent
		a.status = ""
		return a, a.loadRecent()
	case "c":
		a.state = viewChat
		a.status = ""
		return a, a.loadTranscript()
	case "x":
		a.modal = modalConfirmReset
	case "esc":
		a.state = viewMenu
	}
	return a, nil
}

func (a *App) handleRecordKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	if a.prompt == nil {
		a.state = viewMenu
		return a, nil
	}
	switch m.String() {
	case "q", "ctrl+c":
		a.services.Workflow.Cancel(a.prompt.SessionID)
		return a, tea.Quit
	case "esc":
		a.services.Workflow.Cancel(a.prompt.SessionID)
		a.prompt = nil
		a.state = viewMenu
		a.status = "recording cancelled"
	case "up", "k":
		if a.optCursor > 0 {
			a.optCursor--
		}
	case "down", "j":
		if a.optCursor < len(a.prompt.Options)-1 {
			a.optCursor++
		}
	case "enter":
		opt := a.prompt.Options[a.optCursor]
		return a, a.chooseCmd(a.prompt.SessionID, opt.Value)
	}
	return a, nil
}

func (a *App) handleDecksKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "esc":
		a.state = viewMenu
	case "up", "k":
		if a.deckCursor > 0 {
			a.deckCursor--
		}
	case "down", "j":
		if a.deckCursor < len(a.decks)-1 {
			a.deckCursor++
		}
	case "a":
		a.modal = modalAddDeck
		a.inputBuf = ""
	case "r":
		a.modal = modalRemoveDeck
		a.inputBuf = ""
	case "x":
		if len(a.decks) > 0 {
			return a, a.removeDeckCmd(a.decks[a.deckCursor])
		}
	}
	return a, nil
}

func (a *App) handleChatKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.String() {
	case "ctrl+c":
		return a, tea.Quit
	case "ctrl+r":
		return a, tea.Batch(
			func() tea.Msg {
				if err := a.services.Chat.Forget(a.ctx, a.playerID); err != nil {
					return errMsg{err}
				}
				return statusMsg("transcript cleared")
			},
			a.loadTranscript(),
		)
	}
	switch m.Type {
	case tea.KeyEsc:
		a.state = viewMenu
		a.status = ""
	case tea.KeyEnter:
		text := strings.TrimSpace(a.chatInput)
		if text == "" {
			return a, nil
		}
		a.chatInput = ""
		a.status = "thinking..."
		return a, tea.Sequence(a.askCmd(text), a.loadTranscript())
	case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
		if len(a.chatInput) > 0 {
			a.chatInput = a.chatInput[:len(a.chatInput)-1]
		}
	case tea.KeySpace:
		a.chatInput += " "
	case tea.KeyRunes:
		a.chatInput += string(m.Runes)
	}
	return a, nil
}

func (a *App) handleModalKey(m tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.modal {
	case modalConfirmReset:
		switch m.String() {
		case "y", "Y":
			a.modal = modalNone
			return a, a.resetCmd()
		case "n", "N", "esc":
			a.modal = modalNone
		}
	case modalAddDeck, modalRemoveDeck:
		switch m.Type {
		case tea.KeyEsc:
			a.modal = modalNone
			a.inputBuf = ""
		case tea.KeyEnter:
			text := strings.TrimSpace(a.inputBuf)
			modal := a.modal
			a.modal = modalNone
			a.inputBuf = ""
			if text == "" {
				return a, nil
			}
			if modal == modalAddDeck {
				return a, a.addDeckCmd(text)
			}
			return a, a.removeDeckCmd(text)
		case tea.KeyBackspace, tea.KeyCtrlH, tea.KeyDelete:
			if len(a.inputBuf) > 0 {
				a.inputBuf = a.inputBuf[:len(a.inputBuf)-1]
			}
		case tea.KeySpace:
			a.inputBuf += " "
		case tea.KeyRunes:
			a.inputBuf += string(m.Runes)
		}
	}
	return a, nil
}

// view

var titleStyle = lipgloss.NewStyle().Bold(true).Underline(true)

func (a *App) View() string {
	var body string
	switch a.state {
	case viewRecord:
		body = a.renderRecord()
	case viewDecks:
		body = a.renderDecks()
	case viewStats:
		body = a.renderStats()
	case viewRecent:
		body = a.renderRecent()
	case viewChat:
		body = a.renderChat()
	default:
		body = a.renderMenu()
	}
	if a.modal != modalNone {
		body += "\n\n" + a.renderModal()
	}
	return body
}

func (a *App) renderMenu() string {
	title := titleStyle.Render("Ralmia - match ledger")
	body := fmt.Sprintf("Player: %s\nRecords: %d shown  Decks: %d", a.playerName, len(a.records), len(a.decks))
	body += "\n[r] Record match  [d] Decks  [s] Stats  [l] Recent  [c] Chat  [x] Reset records  [q] Quit"
	if a.status != "" {
		body += "\n" + a.status
	}
	return fmt.Sprintf("%s\n%s", title, body)
}

func (a *App) renderRecord() string {
	title := titleStyle.Render("Record match")
	if a.prompt == nil {
		return title + "\nNo session."
	}
	out := fmt.Sprintf("%s\n%s\n", title, a.prompt.Title)
	for i, opt := range a.prompt.Options {
		marker := " "
		if i == a.optCursor {
			marker = "▶"
		}
		out += fmt.Sprintf("%s %s\n", marker, opt.Label)
	}
	out += "[enter] Select  [esc] Cancel"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderDecks() string {
	title := titleStyle.Render("Deck catalog")
	out := title + "\n"
	if len(a.decks) == 0 {
		out += "  (no decks yet)\n"
	}
	for i, name := range a.decks {
		marker := " "
		if i == a.deckCursor {
			marker = "▶"
		}
		out += fmt.Sprintf("%s %s\n", marker, name)
	}
	out += "[a] Add  [x] Delete selected  [r] Remove by name  [esc] Back  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderStats() string {
	title := titleStyle.Render("Stats - " + a.playerName)
	out := fmt.Sprintf("%s\nWins: %d  Losses: %d  Total: %d  Win rate: %.1f%%\n",
		title, a.overall.Wins, a.overall.Losses, a.overall.Total, a.overall.WinRate)
	if len(a.byDeck) > 0 {
		out += "By opponent deck:\n"
		names := make([]string, 0, len(a.byDeck))
		for name := range a.byDeck {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s := a.byDeck[name]
			out += fmt.Sprintf("- %-20s %d games, %d wins (%.1f%%)\n", name, s.Total, s.Wins, s.WinRate)
		}
	}
	out += "[esc] Back  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderRecent() string {
	title := titleStyle.Render("Recent matches")
	out := title + "\n"
	if len(a.records) == 0 {
		out += "  (no records yet)\n"
	}
	for _, r := range a.records {
		mark := "W"
		if r.Result == repository.ResultLoss {
			mark = "L"
		}
		out += fmt.Sprintf("%s  %s  %-12s %s vs %s (%s)\n",
			r.Timestamp.Format("2006-01-02 15:04"), mark, r.PlayerName, r.MyDeck, r.OpponentDeck, strings.ToLower(string(r.TurnOrder)))
	}
	out += "[esc] Back  [q] Quit"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderChat() string {
	title := titleStyle.Render("Chat with Ralmia")
	out := title + "\n"
	for _, m := range a.transcript {
		who := "you"
		if m.Role == "assistant" {
			who = "ralmia"
		}
		out += fmt.Sprintf("%-7s %s\n", who+":", m.Content)
	}
	out += fmt.Sprintf("> %s\n", a.chatInput)
	out += "[enter] Send  [ctrl+r] Clear transcript  [esc] Back"
	if a.status != "" {
		out += "\n" + a.status
	}
	return out
}

func (a *App) renderModal() string {
	switch a.modal {
	case modalConfirmReset:
		return titleStyle.Render("Delete ALL match records?") + "\nThis cannot be undone.\n[y] Yes  [n] No"
	case modalAddDeck:
		return titleStyle.Render("New deck") + fmt.Sprintf("\n%s\n[enter] Save  [esc] Cancel", a.inputBuf)
	case modalRemoveDeck:
		return titleStyle.Render("Remove deck by name") + fmt.Sprintf("\n%s\n[enter] Remove  [esc] Cancel", a.inputBuf)
	default:
		return ""
	}
}
