package devserver

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/google/uuid"
)

// HandSize is the number of tiles dealt to each player.
const HandSize = 13

// RequestError is a command rejection with the HTTP status to answer with.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func badRequest(format string, args ...interface{}) error {
	return &RequestError{Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func conflict(format string, args ...interface{}) error {
	return &RequestError{Status: http.StatusConflict, Message: fmt.Sprintf(format, args...)}
}

// CommandRequest is the union of all command bodies.
type CommandRequest struct {
	PlayerID    types.PlayerID      `json:"player_id"`
	GameVersion *int                `json:"game_version,omitempty"`
	TileID      *types.TileID       `json:"tile_id,omitempty"`
	Tiles       []types.TileID      `json:"tiles,omitempty"`
	SetID       string              `json:"set_id,omitempty"`
	Settings    *types.GameSettings `json:"settings,omitempty"`
}

// Store holds the games of the development server and applies commands to
// them. It enforces turn order and hand membership but is not a rules engine.
type Store struct {
	lock      sync.Mutex
	deck      types.Deck
	games     map[types.GameID]*types.Game
	createdAt map[types.GameID]time.Time
	rand      *rand.Rand
}

func NewStore(deck types.Deck, seed uint64) *Store {
	return &Store{
		deck:      deck,
		games:     make(map[types.GameID]*types.Game),
		createdAt: make(map[types.GameID]time.Time),
		rand:      rand.New(rand.NewPCG(seed, seed)),
	}
}

func (s *Store) Deck() types.Deck {
	return s.deck
}

// CreateGame deals a new game. The first player is the dealer and starts.
func (s *Store) CreateGame(id types.GameID, name string, players []types.PlayerSummary) *types.Game {
	s.lock.Lock()
	defer s.lock.Unlock()

	g := &types.Game{
		ID:       id,
		Version:  1,
		Name:     name,
		Players:  slices.Clone(players),
		Score:    make(map[types.PlayerID]int),
		Settings: types.GameSettings{DiscardWaitMs: 10000},
	}
	for _, p := range players {
		g.Score[p.ID] = 0
	}
	s.dealLocked(g)
	s.games[id] = g
	s.createdAt[id] = time.Now().UTC()
	return g.Copy()
}

// SetGame stores g as is, replacing any game with the same ID.
func (s *Store) SetGame(g *types.Game) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.games[g.ID] = g.Copy()
	if _, ok := s.createdAt[g.ID]; !ok {
		s.createdAt[g.ID] = time.Now().UTC()
	}
}

func (s *Store) Game(id types.GameID) (*types.Game, bool) {
	s.lock.Lock()
	defer s.lock.Unlock()
	g, ok := s.games[id]
	if !ok {
		return nil, false
	}
	return g.Copy(), true
}

// GamesOf lists the games playerID is seated in, oldest first.
func (s *Store) GamesOf(playerID types.PlayerID) []types.DashboardGame {
	s.lock.Lock()
	defer s.lock.Unlock()
	games := []types.DashboardGame{}
	for id, g := range s.games {
		if seatOf(g, playerID) < 0 {
			continue
		}
		games = append(games, types.DashboardGame{
			ID:        id,
			Name:      g.Name,
			Phase:     g.Phase,
			CreatedAt: s.createdAt[id].Format(time.RFC3339),
		})
	}
	slices.SortFunc(games, func(a, b types.DashboardGame) int {
		if a.CreatedAt != b.CreatedAt {
			if a.CreatedAt < b.CreatedAt {
				return -1
			}
			return 1
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return games
}

// Apply runs command for the player of req and returns the updated game.
// The version increases on every accepted command.
func (s *Store) Apply(gameID types.GameID, command types.Command, req CommandRequest) (*types.Game, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	g, ok := s.games[gameID]
	if !ok {
		return nil, &RequestError{Status: http.StatusNotFound, Message: fmt.Sprintf("game %s not found", gameID)}
	}
	if req.PlayerID == "" {
		return nil, badRequest("missing player_id")
	}
	if seatOf(g, req.PlayerID) < 0 {
		return nil, badRequest("player %s is not in game %s", req.PlayerID, gameID)
	}
	if g.Phase == types.GamePhaseEnd && command != types.CommandSetSettings && command != types.CommandPassRound {
		return nil, conflict("game %s has ended", gameID)
	}

	// commands work on a copy so a rejected one leaves no trace
	next := g.Copy()
	var err error
	switch command {
	case types.CommandDrawTile:
		err = s.drawTile(next, req)
	case types.CommandDiscardTile:
		err = discardTile(next, req)
	case types.CommandCreateMeld:
		err = createMeld(next, req)
	case types.CommandBreakMeld:
		err = breakMeld(next, req)
	case types.CommandClaimTile:
		err = claimTile(next, req)
	case types.CommandSayMahjong:
		err = sayMahjong(next, req)
	case types.CommandSortHand:
		err = sortHand(next, req)
	case types.CommandPassRound:
		err = s.passRound(next)
	case types.CommandMovePlayer:
		err = s.movePlayer(next)
	case types.CommandSetSettings:
		err = setSettings(next, req)
	default:
		err = &RequestError{Status: http.StatusNotFound, Message: fmt.Sprintf("unknown command %s", command)}
	}
	if err != nil {
		return nil, err
	}

	next.Version++
	s.games[gameID] = next
	return next.Copy(), nil
}

func seatOf(g *types.Game, playerID types.PlayerID) int {
	return slices.IndexFunc(g.Players, func(p types.PlayerSummary) bool { return p.ID == playerID })
}

func turnOf(g *types.Game) types.PlayerID {
	return g.Players[g.Round.PlayerIndex].ID
}

func checkVersion(g *types.Game, req CommandRequest) error {
	if req.GameVersion != nil && *req.GameVersion != g.Version {
		return conflict("stale game version %d, current is %d", *req.GameVersion, g.Version)
	}
	return nil
}

func checkTurn(g *types.Game, playerID types.PlayerID) error {
	if turnOf(g) != playerID {
		return conflict("it is not %s's turn", playerID)
	}
	return nil
}

// freeTileIndex returns the index of a concealed tile of hand that is not
// part of a meld, or -1.
func freeTileIndex(hand types.Hand, id types.TileID) int {
	return slices.IndexFunc(hand, func(t types.HandTile) bool {
		return t.ID == id && t.SetID == nil && t.Concealed
	})
}

func (s *Store) dealLocked(g *types.Game) {
	wall := make([]types.TileID, 0, len(s.deck))
	for _, tile := range s.deck.Tiles() {
		wall = append(wall, tile.ID)
	}
	s.rand.Shuffle(len(wall), func(i, j int) { wall[i], wall[j] = wall[j], wall[i] })

	g.Hands = make(map[types.PlayerID]types.Hand, len(g.Players))
	for _, p := range g.Players {
		hand := make(types.Hand, 0, HandSize+1)
		for i := 0; i < HandSize && len(wall) > 0; i++ {
			hand = append(hand, types.HandTile{ID: wall[len(wall)-1], Concealed: true})
			wall = wall[:len(wall)-1]
		}
		g.Hands[p.ID] = hand
	}
	g.DrawWall = wall
	g.Board = []types.TileID{}
	g.Phase = types.GamePhasePlaying
	g.Round.PlayerIndex = g.Round.DealerIndex
	g.Round.DiscardedTile = nil
	g.Round.ClaimedBy = nil
}

func (s *Store) drawTile(g *types.Game, req CommandRequest) error {
	if err := checkVersion(g, req); err != nil {
		return err
	}
	if err := checkTurn(g, req.PlayerID); err != nil {
		return err
	}
	if len(g.Hands[req.PlayerID]) > HandSize {
		return conflict("player %s must discard before drawing", req.PlayerID)
	}
	if len(g.DrawWall) == 0 {
		return conflict("the draw wall is empty")
	}

	tile := g.DrawWall[len(g.DrawWall)-1]
	g.DrawWall = g.DrawWall[:len(g.DrawWall)-1]
	hand := append(g.Hands[req.PlayerID], types.HandTile{ID: tile, Concealed: true})
	if slices.Contains(g.Settings.AutoSortPlayers, req.PlayerID) {
		hand = sortedByID(hand)
	}
	g.Hands[req.PlayerID] = hand
	g.Round.DiscardedTile = nil
	g.Round.ClaimedBy = nil
	return nil
}

func discardTile(g *types.Game, req CommandRequest) error {
	if req.TileID == nil {
		return badRequest("missing tile_id")
	}
	if err := checkTurn(g, req.PlayerID); err != nil {
		return err
	}
	hand := g.Hands[req.PlayerID]
	i := freeTileIndex(hand, *req.TileID)
	if i < 0 {
		return badRequest("tile %d is not a free tile of the hand", *req.TileID)
	}

	g.Hands[req.PlayerID] = slices.Delete(hand, i, i+1)
	g.Board = append(g.Board, *req.TileID)
	discarded := *req.TileID
	g.Round.DiscardedTile = &discarded
	g.Round.ClaimedBy = nil
	g.Round.PlayerIndex = (g.Round.PlayerIndex + 1) % len(g.Players)
	return nil
}

func createMeld(g *types.Game, req CommandRequest) error {
	if len(req.Tiles) < 3 || len(req.Tiles) > 4 {
		return badRequest("a meld has 3 or 4 tiles")
	}
	hand := g.Hands[req.PlayerID]
	indexes := make([]int, 0, len(req.Tiles))
	for _, id := range req.Tiles {
		i := freeTileIndex(hand, id)
		if i < 0 || slices.Contains(indexes, i) {
			return badRequest("tile %d is not a free tile of the hand", id)
		}
		indexes = append(indexes, i)
	}

	setID := uuid.NewString()
	for _, i := range indexes {
		id := setID
		hand[i].SetID = &id
	}
	return nil
}

func breakMeld(g *types.Game, req CommandRequest) error {
	if req.SetID == "" {
		return badRequest("missing set_id")
	}
	hand := g.Hands[req.PlayerID]
	found := false
	for i := range hand {
		if hand[i].SetID == nil || *hand[i].SetID != req.SetID {
			continue
		}
		if !hand[i].Concealed {
			return badRequest("meld %s is exposed", req.SetID)
		}
		found = true
	}
	if !found {
		return badRequest("meld %s not found", req.SetID)
	}
	for i := range hand {
		if hand[i].SetID != nil && *hand[i].SetID == req.SetID {
			hand[i].SetID = nil
		}
	}
	return nil
}

func claimTile(g *types.Game, req CommandRequest) error {
	if g.Round.DiscardedTile == nil || len(g.Board) == 0 {
		return conflict("there is no tile to claim")
	}
	n := len(g.Players)
	discarder := g.Players[(g.Round.PlayerIndex+n-1)%n].ID
	if discarder == req.PlayerID {
		return conflict("player %s cannot claim their own discard", req.PlayerID)
	}

	tile := *g.Round.DiscardedTile
	g.Board = g.Board[:len(g.Board)-1]
	g.Hands[req.PlayerID] = append(g.Hands[req.PlayerID], types.HandTile{ID: tile, Concealed: true})
	claimant := req.PlayerID
	g.Round.ClaimedBy = &claimant
	g.Round.DiscardedTile = nil
	g.Round.PlayerIndex = seatOf(g, req.PlayerID)
	return nil
}

func sayMahjong(g *types.Game, req CommandRequest) error {
	if len(g.Hands[req.PlayerID]) != HandSize+1 {
		return badRequest("invalid mahjong: %s holds %d tiles", req.PlayerID, len(g.Hands[req.PlayerID]))
	}
	g.Phase = types.GamePhaseEnd
	g.Score[req.PlayerID]++
	return nil
}

func sortHand(g *types.Game, req CommandRequest) error {
	if err := checkVersion(g, req); err != nil {
		return err
	}
	hand := g.Hands[req.PlayerID]
	if len(req.Tiles) == 0 {
		g.Hands[req.PlayerID] = sortedByID(hand)
		return nil
	}

	ids := hand.IDs()
	order := slices.Clone(req.Tiles)
	slices.Sort(ids)
	slices.Sort(order)
	if !slices.Equal(ids, order) {
		return badRequest("tiles are not a permutation of the hand")
	}
	g.Hands[req.PlayerID] = hand.SortByOrder(req.Tiles)
	return nil
}

// sortedByID orders a hand by deck ID, which groups tiles by suit and rank.
func sortedByID(hand types.Hand) types.Hand {
	order := hand.IDs()
	slices.Sort(order)
	return hand.SortByOrder(order)
}

func (s *Store) passRound(g *types.Game) error {
	n := len(g.Players)
	g.Round.DealerIndex = (g.Round.DealerIndex + 1) % n
	if g.Round.DealerIndex == 0 {
		g.Round.WindIndex = (g.Round.WindIndex + 1) % 4
	}
	g.Round.ConsecutiveSameSeats = 0
	s.dealLocked(g)
	return nil
}

// movePlayer plays the current turn: it draws when the player may and then
// discards the last free tile.
func (s *Store) movePlayer(g *types.Game) error {
	playerID := turnOf(g)
	if len(g.Hands[playerID]) <= HandSize {
		if err := s.drawTile(g, CommandRequest{PlayerID: playerID}); err != nil {
			return err
		}
	}
	hand := g.Hands[playerID]
	for i := len(hand) - 1; i >= 0; i-- {
		if hand[i].SetID == nil && hand[i].Concealed {
			id := hand[i].ID
			return discardTile(g, CommandRequest{PlayerID: playerID, TileID: &id})
		}
	}
	return conflict("player %s has no tile to discard", playerID)
}

func setSettings(g *types.Game, req CommandRequest) error {
	if req.Settings == nil {
		return badRequest("missing settings")
	}
	if g.Settings.FixedSettings {
		return conflict("settings of game %s are fixed", g.ID)
	}
	g.Settings = req.Settings.Copy()
	return nil
}
