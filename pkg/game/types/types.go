package types

// GameID identifies a game on the remote authority.
type GameID string

// PlayerID identifies a player within a game.
type PlayerID string

// GamePhase is the lifecycle phase of a game.
type GamePhase string

const (
	GamePhaseBeginning GamePhase = "beginning"
	GamePhasePlaying   GamePhase = "playing"
	GamePhaseEnd       GamePhase = "end"
)

// Command names a player command. The value is the path segment of the
// command's endpoint.
type Command string

const (
	CommandDiscardTile Command = "discard-tile"
	CommandDrawTile    Command = "draw-tile"
	CommandCreateMeld  Command = "create-meld"
	CommandBreakMeld   Command = "break-meld"
	CommandClaimTile   Command = "claim-tile"
	CommandSayMahjong  Command = "say-mahjong"
	CommandSortHand    Command = "sort-hand"
	CommandPassRound   Command = "pass-round"
	CommandSetSettings Command = "settings"
	CommandMovePlayer  Command = "move-player"
)

// Commands lists every player command.
var Commands = []Command{
	CommandDiscardTile,
	CommandDrawTile,
	CommandCreateMeld,
	CommandBreakMeld,
	CommandClaimTile,
	CommandSayMahjong,
	CommandSortHand,
	CommandPassRound,
	CommandSetSettings,
	CommandMovePlayer,
}

func (c Command) String() string {
	return string(c)
}

// Valid reports whether c is a known command.
func (c Command) Valid() bool {
	for _, known := range Commands {
		if c == known {
			return true
		}
	}
	return false
}

// PossibleMeld is a meld the rules evaluator considers available to a player.
type PossibleMeld struct {
	PlayerID  PlayerID `json:"player_id"`
	Tiles     []TileID `json:"tiles"`
	IsMahjong bool     `json:"is_mahjong"`
}

// DashboardGame is an entry of the user's dashboard.
type DashboardGame struct {
	ID        GameID    `json:"id"`
	Name      string    `json:"name"`
	Phase     GamePhase `json:"phase"`
	CreatedAt string    `json:"created_at"`
}

// Dashboard lists the games of the authenticated user.
type Dashboard struct {
	PlayerID PlayerID        `json:"player_id"`
	Name     string          `json:"name"`
	Games    []DashboardGame `json:"games"`
}
