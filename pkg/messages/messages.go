package messages

import (
	"github.com/cbodonnell/tilesync/pkg/game/types"
)

// Frame types, matching the websocket opcodes.
const (
	FrameText   = 1
	FrameBinary = 2
)

// Keys of the server message tagged union.
const (
	KeyGameSummaryUpdate = "GameSummaryUpdate"
	KeyGameUpdate        = "GameUpdate"
)

// ServerMessage is a message pushed by the server. The concrete type is one
// of *GameSummaryUpdate or *GameUpdate.
type ServerMessage interface {
	serverMessage()
}

// GameSummaryUpdate carries a new player-scoped summary, sent to user clients.
type GameSummaryUpdate struct {
	Summary *types.GameSummary
}

// GameUpdate carries the complete game, sent to service clients.
type GameUpdate struct {
	Game *types.Game
}

func (*GameSummaryUpdate) serverMessage() {}
func (*GameUpdate) serverMessage()        {}

// ClientMessageType discriminates client requests.
type ClientMessageType string

const (
	ClientMessageTypeGetDeck ClientMessageType = "GetDeck"
)

// ClientMessage is a request sent by the client over the push channel.
type ClientMessage struct {
	Type ClientMessageType `json:"type"`
}
