// Package session keeps a player's view of one game in step with the remote
// authority and issues the player's commands against it.
package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/cbodonnell/tilesync/client/api"
	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/log"
	"github.com/cbodonnell/tilesync/pkg/messages"
	"github.com/cbodonnell/tilesync/pkg/observable"
)

var logger = log.Component("session")

// Requester posts a command for a game and decodes the response into out.
// *api.Client implements it.
type Requester interface {
	PostCommand(ctx context.Context, gameID types.GameID, command types.Command, body interface{}, out interface{}) error
}

// RulesEvaluator lists the melds available in a summary.
type RulesEvaluator interface {
	PossibleMelds(summary *types.GameSummary) ([]types.PossibleMeld, error)
}

// TileFormatter renders a tile for display.
type TileFormatter interface {
	FormatTile(tile types.Tile) string
}

// State is what subscribers of a Model observe. Summary is nil until one is
// loaded and is shared between subscribers, so it must not be modified.
type State struct {
	Summary *types.GameSummary
	Busy    bool
}

type NewModelOptions struct {
	Requester Requester
	// Deck resolves tile ids
	Deck types.Deck
	// Rules is optional; without it PossibleMelds is always empty
	Rules RulesEvaluator
	// Formatter defaults to Tile.String
	Formatter TileFormatter
	// Summary is the initial summary, if already fetched
	Summary *types.GameSummary
}

// Model owns the cached summary of one game and the busy flag. At most one
// command is in flight at a time: command methods return false without side
// effects while busy or before a summary is loaded.
//
// Command responses and pushed summaries are applied in the order they
// complete. There is no version check between them, so the last one wins.
type Model struct {
	requester Requester
	deck      types.Deck
	rules     RulesEvaluator
	formatter TileFormatter

	lock    sync.Mutex
	summary *types.GameSummary
	busy    bool

	state    *observable.Value[State]
	errors   *observable.Feed[error]
	inflight sync.WaitGroup
}

func NewModel(opts NewModelOptions) *Model {
	return &Model{
		requester: opts.Requester,
		deck:      opts.Deck,
		rules:     opts.Rules,
		formatter: opts.Formatter,
		summary:   opts.Summary,
		state:     observable.NewValue(State{Summary: opts.Summary}),
		errors:    observable.NewFeed[error](),
	}
}

// State returns the current state.
func (m *Model) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return State{Summary: m.summary, Busy: m.busy}
}

// Summary returns the cached summary or nil.
func (m *Model) Summary() *types.GameSummary {
	return m.State().Summary
}

// Busy reports whether a command is in flight.
func (m *Model) Busy() bool {
	return m.State().Busy
}

// Subscribe calls fn with the current state right away and after every
// change.
func (m *Model) Subscribe(fn func(State)) (unsubscribe func()) {
	return m.state.Subscribe(fn)
}

// SubscribeErrors calls fn with every failed command's error, a *CommandError.
func (m *Model) SubscribeErrors(fn func(error)) (unsubscribe func()) {
	return m.errors.Subscribe(fn)
}

// Wait blocks until no command request is in flight.
func (m *Model) Wait() {
	m.inflight.Wait()
}

// SetSummary replaces the cached summary without touching the busy flag.
func (m *Model) SetSummary(summary *types.GameSummary) {
	m.lock.Lock()
	m.summary = summary
	m.storeLocked()
	m.lock.Unlock()
	m.state.Flush()
}

// HandleMessage applies a server push.
func (m *Model) HandleMessage(msg messages.ServerMessage) {
	switch msg := msg.(type) {
	case *messages.GameSummaryUpdate:
		if msg.Summary == nil {
			logger.Warn("Ignoring summary update without a summary")
			return
		}
		logger.Trace("Applying pushed summary of game %s at version %d", msg.Summary.ID, msg.Summary.Version)
		m.SetSummary(msg.Summary)
	case *messages.GameUpdate:
		if msg.Game == nil {
			logger.Warn("Ignoring game update without a game")
			return
		}
		logger.Debug("Ignoring full game update of game %s", msg.Game.ID)
	default:
		logger.Warn("Ignoring unexpected server message %T", msg)
	}
}

func (m *Model) storeLocked() {
	m.state.Store(State{Summary: m.summary, Busy: m.busy})
}

// DiscardTile discards a tile from the player's hand.
func (m *Model) DiscardTile(tileID types.TileID) bool {
	return m.replace(types.CommandDiscardTile, nil, func(s *types.GameSummary) interface{} {
		return api.DiscardTileRequest{PlayerID: s.PlayerID, TileID: tileID}
	})
}

// DrawTile draws the next tile of the wall.
func (m *Model) DrawTile() bool {
	return m.replace(types.CommandDrawTile, nil, func(s *types.GameSummary) interface{} {
		return api.DrawTileRequest{PlayerID: s.PlayerID, GameVersion: s.Version}
	})
}

// CreateMeld groups tiles of the hand into a meld.
func (m *Model) CreateMeld(tiles []types.TileID) bool {
	return m.replace(types.CommandCreateMeld, nil, func(s *types.GameSummary) interface{} {
		return api.CreateMeldRequest{PlayerID: s.PlayerID, Tiles: tiles}
	})
}

// BreakMeld returns the tiles of a concealed meld to the hand.
func (m *Model) BreakMeld(setID string) bool {
	return m.replace(types.CommandBreakMeld, nil, func(s *types.GameSummary) interface{} {
		return api.BreakMeldRequest{PlayerID: s.PlayerID, SetID: setID}
	})
}

// ClaimTile claims the last discarded tile.
func (m *Model) ClaimTile() bool {
	return m.replace(types.CommandClaimTile, nil, playerRequest)
}

// SayMahjong declares mahjong. A rejection is reported on the error feed
// wrapping ErrInvalidMahjong.
func (m *Model) SayMahjong() bool {
	return m.replace(types.CommandSayMahjong, nil, playerRequest)
}

// PassRound ends the round without a winner.
func (m *Model) PassRound() bool {
	return m.replace(types.CommandPassRound, nil, playerRequest)
}

// MovePlayer asks the authority to play the current turn.
func (m *Model) MovePlayer() bool {
	return m.replace(types.CommandMovePlayer, nil, playerRequest)
}

// SortHand sorts the hand. With an explicit order the cached hand is
// reordered right away, before the request is sent; without one the
// authority decides the order.
func (m *Model) SortHand(order []types.TileID) bool {
	var optimistic func(s *types.GameSummary) *types.GameSummary
	if len(order) > 0 {
		optimistic = func(s *types.GameSummary) *types.GameSummary {
			sorted := s.Copy()
			sorted.Hand = sorted.Hand.SortByOrder(order)
			return sorted
		}
	}
	return m.replace(types.CommandSortHand, optimistic, func(s *types.GameSummary) interface{} {
		return api.SortHandRequest{PlayerID: s.PlayerID, GameVersion: s.Version, Tiles: order}
	})
}

// SetSettings changes the game settings. Only the settings of the cached
// summary are updated from the response.
func (m *Model) SetSettings(settings types.GameSettings) bool {
	summary, ok := m.begin(nil)
	if !ok {
		return false
	}
	body := api.SetSettingsRequest{PlayerID: summary.PlayerID, Settings: settings}
	m.run(types.CommandSetSettings, summary.ID, body, &types.GameSettings{}, func(out interface{}) {
		merged := m.summary.Copy()
		merged.Settings = *out.(*types.GameSettings)
		m.summary = merged
	})
	return true
}

func playerRequest(s *types.GameSummary) interface{} {
	return api.PlayerRequest{PlayerID: s.PlayerID}
}

// replace issues a command whose response replaces the summary.
func (m *Model) replace(command types.Command, optimistic func(*types.GameSummary) *types.GameSummary, body func(*types.GameSummary) interface{}) bool {
	summary, ok := m.begin(optimistic)
	if !ok {
		return false
	}
	m.run(command, summary.ID, body(summary), &types.GameSummary{}, func(out interface{}) {
		m.summary = out.(*types.GameSummary)
	})
	return true
}

// begin admits a command. The busy flag is set before begin returns, so a
// concurrent caller is rejected even though the request has not been sent.
func (m *Model) begin(optimistic func(*types.GameSummary) *types.GameSummary) (*types.GameSummary, bool) {
	m.lock.Lock()
	if m.busy || m.summary == nil {
		m.lock.Unlock()
		return nil, false
	}
	m.busy = true
	if optimistic != nil {
		m.summary = optimistic(m.summary)
	}
	summary := m.summary
	m.storeLocked()
	m.inflight.Add(1)
	m.lock.Unlock()
	m.state.Flush()
	return summary, true
}

// run sends the request in the background. apply runs under the lock when
// the request succeeds; either way the busy flag is cleared.
func (m *Model) run(command types.Command, gameID types.GameID, body interface{}, out interface{}, apply func(out interface{})) {
	go func() {
		defer m.inflight.Done()
		logger.Debug("Sending %s for game %s", command, gameID)
		err := m.requester.PostCommand(context.Background(), gameID, command, body, out)

		m.lock.Lock()
		m.busy = false
		if err == nil {
			if m.summary != nil {
				apply(out)
			}
		}
		m.storeLocked()
		m.lock.Unlock()
		m.state.Flush()

		if err != nil {
			if command == types.CommandSayMahjong && rejectedByAuthority(err) {
				err = &invalidMahjongError{err: err}
			}
			logger.Warn("Command %s for game %s failed: %v", command, gameID, err)
			m.errors.Send(&CommandError{Command: command, Err: err})
		}
	}()
}

// Tile resolves a tile id through the deck.
func (m *Model) Tile(id types.TileID) (types.Tile, bool) {
	return m.deck.Get(id)
}

// TileString renders a tile for display, or "?" when the id is unknown.
func (m *Model) TileString(id types.TileID) string {
	tile, ok := m.deck.Get(id)
	if !ok {
		return "?"
	}
	if m.formatter != nil {
		return m.formatter.FormatTile(tile)
	}
	return tile.String()
}

// TurnPlayer returns the player whose turn it is.
func (m *Model) TurnPlayer() (types.PlayerSummary, bool) {
	summary := m.Summary()
	if summary == nil {
		return types.PlayerSummary{}, false
	}
	i := summary.Round.PlayerIndex
	if i < 0 || i >= len(summary.Players) {
		return types.PlayerSummary{}, false
	}
	return summary.Players[i], true
}

// PlayingPlayer returns the player this session plays as.
func (m *Model) PlayingPlayer() (types.PlayerSummary, bool) {
	summary := m.Summary()
	if summary == nil {
		return types.PlayerSummary{}, false
	}
	i := summary.PlayerIndex(summary.PlayerID)
	if i < 0 {
		return types.PlayerSummary{}, false
	}
	return summary.Players[i], true
}

// PossibleMelds asks the rules evaluator for the melds available in the
// cached summary. It returns an empty list when the evaluator fails.
func (m *Model) PossibleMelds() (melds []types.PossibleMeld) {
	summary := m.Summary()
	if summary == nil || m.rules == nil {
		return []types.PossibleMeld{}
	}
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Rules evaluator panicked: %v", r)
			melds = []types.PossibleMeld{}
		}
	}()
	melds, err := m.rules.PossibleMelds(summary)
	if err != nil {
		logger.Warn("Failed to get possible melds: %v", err)
		return []types.PossibleMeld{}
	}
	if melds == nil {
		return []types.PossibleMeld{}
	}
	return melds
}

func (s State) String() string {
	if s.Summary == nil {
		return fmt.Sprintf("no game (busy=%t)", s.Busy)
	}
	return fmt.Sprintf("game %s v%d (busy=%t)", s.Summary.ID, s.Summary.Version, s.Busy)
}
