package api

import "github.com/cbodonnell/tilesync/pkg/game/types"

// Command request bodies.

type DrawTileRequest struct {
	PlayerID    types.PlayerID `json:"player_id"`
	GameVersion int            `json:"game_version"`
}

type DiscardTileRequest struct {
	PlayerID types.PlayerID `json:"player_id"`
	TileID   types.TileID   `json:"tile_id"`
}

type CreateMeldRequest struct {
	PlayerID types.PlayerID `json:"player_id"`
	Tiles    []types.TileID `json:"tiles"`
}

type BreakMeldRequest struct {
	PlayerID types.PlayerID `json:"player_id"`
	SetID    string         `json:"set_id"`
}

type SortHandRequest struct {
	PlayerID    types.PlayerID `json:"player_id"`
	GameVersion int            `json:"game_version"`
	// Tiles is the explicit order; the server sorts by its own rule when empty
	Tiles []types.TileID `json:"tiles,omitempty"`
}

type SetSettingsRequest struct {
	PlayerID types.PlayerID     `json:"player_id"`
	Settings types.GameSettings `json:"settings"`
}

// PlayerRequest is the body of commands that carry only the player:
// claim-tile, say-mahjong, pass-round and move-player.
type PlayerRequest struct {
	PlayerID types.PlayerID `json:"player_id"`
}
