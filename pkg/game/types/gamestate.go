package types

import (
	"maps"
	"slices"
)

type PlayerSummary struct {
	// ID is the player's ID
	ID PlayerID `json:"id"`
	// Name is the display name
	Name string `json:"name"`
	// IsAI is true for computer controlled seats
	IsAI bool `json:"is_ai"`
}

// OtherHand is what a player can see of another player's hand.
type OtherHand struct {
	// TilesCount is the number of tiles held, concealed or not
	TilesCount int `json:"tiles"`
	// VisibleMelds are the exposed melds
	VisibleMelds []Meld `json:"visible_melds"`
}

func (o OtherHand) Copy() OtherHand {
	c := OtherHand{TilesCount: o.TilesCount}
	if o.VisibleMelds != nil {
		c.VisibleMelds = make([]Meld, len(o.VisibleMelds))
		for i, meld := range o.VisibleMelds {
			c.VisibleMelds[i] = meld.Copy()
		}
	}
	return c
}

// RoundSummary is the round and turn pointer of a game.
type RoundSummary struct {
	// PlayerIndex indexes GameSummary.Players with the player whose turn it is
	PlayerIndex int `json:"player_index"`
	// DealerIndex indexes GameSummary.Players with the round's dealer
	DealerIndex int `json:"dealer_index"`
	// WindIndex is the prevailing wind, 0 for east through 3 for north
	WindIndex int `json:"wind_index"`
	// ConsecutiveSameSeats counts rounds in which the dealer kept the seat
	ConsecutiveSameSeats int `json:"consecutive_same_seats"`
	// DiscardedTile is the last discarded tile, open for claims
	DiscardedTile *TileID `json:"discarded_tile,omitempty"`
	// ClaimedBy is the player currently claiming the discarded tile
	ClaimedBy *PlayerID `json:"claimed_by,omitempty"`
}

func (r RoundSummary) Copy() RoundSummary {
	c := r
	if r.DiscardedTile != nil {
		tile := *r.DiscardedTile
		c.DiscardedTile = &tile
	}
	if r.ClaimedBy != nil {
		player := *r.ClaimedBy
		c.ClaimedBy = &player
	}
	return c
}

// GameSettings are the per-game options players can change.
type GameSettings struct {
	// AIEnabled lets AI players take their turns automatically
	AIEnabled bool `json:"ai_enabled"`
	// AutoSortPlayers have their hand sorted by the server after each draw
	AutoSortPlayers []PlayerID `json:"auto_sort_players"`
	// AutoStopClaimMeld pause the game when they can claim a discard
	AutoStopClaimMeld []PlayerID `json:"auto_stop_claim_meld"`
	// DiscardWaitMs is how long a discard stays claimable
	DiscardWaitMs int `json:"discard_wait_ms"`
	// FixedSettings prevents further changes
	FixedSettings bool `json:"fixed_settings"`
	// LastDiscardedTileID enables claiming only the last discard
	LastDiscardedTileID bool `json:"last_discarded_tile_id"`
}

func (s GameSettings) Copy() GameSettings {
	c := s
	c.AutoSortPlayers = slices.Clone(s.AutoSortPlayers)
	c.AutoStopClaimMeld = slices.Clone(s.AutoStopClaimMeld)
	return c
}

// GameSummary is one player's view of a game as reported by the remote
// authority.
type GameSummary struct {
	// ID is the game's ID
	ID GameID `json:"id"`
	// Version increases with every change applied by the authority
	Version int `json:"version"`
	// PlayerID is the player this summary was built for
	PlayerID PlayerID `json:"player_id"`
	// Phase is the game's lifecycle phase
	Phase GamePhase `json:"phase"`
	// Players lists the seats in turn order
	Players []PlayerSummary `json:"players"`
	// Hand is the player's own hand
	Hand Hand `json:"hand"`
	// Board holds the discarded tiles nobody claimed
	Board []TileID `json:"board"`
	// DrawWallCount is the number of tiles left to draw
	DrawWallCount int `json:"draw_wall_count"`
	// OtherHands is keyed by the other players' IDs
	OtherHands map[PlayerID]OtherHand `json:"other_hands"`
	// Score is keyed by player ID
	Score map[PlayerID]int `json:"score"`
	// Round is the current round and turn pointer
	Round RoundSummary `json:"round"`
	// Settings are the game's settings
	Settings GameSettings `json:"settings"`
}

// Copy returns a deep copy of the summary.
func (g *GameSummary) Copy() *GameSummary {
	if g == nil {
		return nil
	}
	c := &GameSummary{
		ID:            g.ID,
		Version:       g.Version,
		PlayerID:      g.PlayerID,
		Phase:         g.Phase,
		Players:       slices.Clone(g.Players),
		Hand:          g.Hand.Copy(),
		Board:         slices.Clone(g.Board),
		DrawWallCount: g.DrawWallCount,
		Score:         maps.Clone(g.Score),
		Round:         g.Round.Copy(),
		Settings:      g.Settings.Copy(),
	}
	if g.OtherHands != nil {
		c.OtherHands = make(map[PlayerID]OtherHand, len(g.OtherHands))
		for id, hand := range g.OtherHands {
			c.OtherHands[id] = hand.Copy()
		}
	}
	return c
}

// PlayerIndex returns the index of the player in Players, or -1.
func (g *GameSummary) PlayerIndex(id PlayerID) int {
	return slices.IndexFunc(g.Players, func(p PlayerSummary) bool { return p.ID == id })
}

// Game is the complete state of a game as seen by the service audience.
type Game struct {
	// ID is the game's ID
	ID GameID `json:"id"`
	// Version increases with every change applied by the authority
	Version int `json:"version"`
	// Name is a human readable label
	Name string `json:"name"`
	// Phase is the game's lifecycle phase
	Phase GamePhase `json:"phase"`
	// Players lists the seats in turn order
	Players []PlayerSummary `json:"players"`
	// Hands is keyed by player ID
	Hands map[PlayerID]Hand `json:"hands"`
	// Board holds the discarded tiles nobody claimed
	Board []TileID `json:"board"`
	// DrawWall holds the tiles left to draw, next tile last
	DrawWall []TileID `json:"draw_wall"`
	// Score is keyed by player ID
	Score map[PlayerID]int `json:"score"`
	// Round is the current round and turn pointer
	Round RoundSummary `json:"round"`
	// Settings are the game's settings
	Settings GameSettings `json:"settings"`
}

// Copy returns a deep copy of the game.
func (g *Game) Copy() *Game {
	if g == nil {
		return nil
	}
	c := &Game{
		ID:       g.ID,
		Version:  g.Version,
		Name:     g.Name,
		Phase:    g.Phase,
		Players:  slices.Clone(g.Players),
		Board:    slices.Clone(g.Board),
		DrawWall: slices.Clone(g.DrawWall),
		Score:    maps.Clone(g.Score),
		Round:    g.Round.Copy(),
		Settings: g.Settings.Copy(),
	}
	if g.Hands != nil {
		c.Hands = make(map[PlayerID]Hand, len(g.Hands))
		for id, hand := range g.Hands {
			c.Hands[id] = hand.Copy()
		}
	}
	return c
}

// SummaryFor projects the game onto what playerID is allowed to see.
func (g *Game) SummaryFor(playerID PlayerID) *GameSummary {
	summary := &GameSummary{
		ID:            g.ID,
		Version:       g.Version,
		PlayerID:      playerID,
		Phase:         g.Phase,
		Players:       slices.Clone(g.Players),
		Hand:          g.Hands[playerID].Copy(),
		Board:         slices.Clone(g.Board),
		DrawWallCount: len(g.DrawWall),
		OtherHands:    make(map[PlayerID]OtherHand),
		Score:         maps.Clone(g.Score),
		Round:         g.Round.Copy(),
		Settings:      g.Settings.Copy(),
	}
	for _, player := range g.Players {
		if player.ID == playerID {
			continue
		}
		summary.OtherHands[player.ID] = visibleHand(g.Hands[player.ID])
	}
	return summary
}

// visibleHand collects the exposed melds of hand in first-seen order.
func visibleHand(hand Hand) OtherHand {
	other := OtherHand{TilesCount: len(hand), VisibleMelds: []Meld{}}
	index := map[string]int{}
	for _, tile := range hand {
		if tile.Concealed || tile.SetID == nil {
			continue
		}
		i, ok := index[*tile.SetID]
		if !ok {
			i = len(other.VisibleMelds)
			index[*tile.SetID] = i
			other.VisibleMelds = append(other.VisibleMelds, Meld{SetID: *tile.SetID})
		}
		other.VisibleMelds[i].Tiles = append(other.VisibleMelds[i].Tiles, tile.ID)
	}
	return other
}
