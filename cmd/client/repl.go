package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cbodonnell/tilesync/client/session"
	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/messages"
)

var errBusy = errors.New("a command is already in flight")

const helpText = `commands:
  draw                 draw a tile
  discard <tile>       discard a tile
  meld <tile>...       create a meld
  break <set>          break a concealed meld
  claim                claim the last discard
  mahjong              declare mahjong
  pass                 pass the round
  move                 let the server play the turn
  sort [<tile>...]     sort the hand, optionally in the given order
  ai on|off            toggle AI players
  hand                 show the hand
  melds                show the possible melds
  state                show the game state
  deck                 ask the server for the deck over the push channel
  logout               clear the session token and close the push channel
  quit                 exit`

// sender sends a frame over the push channel.
type sender interface {
	Send(msg messages.ClientMessage) error
}

type repl struct {
	model  *session.Model
	push   sender
	logout func()
	out    io.Writer
}

// exec runs one input line and reports whether the loop should stop.
func (r *repl) exec(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "help":
		fmt.Fprintln(r.out, helpText)
	case "quit", "exit":
		return true, nil
	case "draw":
		return false, admitted(r.model.DrawTile())
	case "discard":
		ids, err := parseTiles(args, 1)
		if err != nil {
			return false, err
		}
		return false, admitted(r.model.DiscardTile(ids[0]))
	case "meld":
		ids, err := parseTiles(args, 3)
		if err != nil {
			return false, err
		}
		return false, admitted(r.model.CreateMeld(ids))
	case "break":
		if len(args) != 1 {
			return false, fmt.Errorf("usage: break <set>")
		}
		return false, admitted(r.model.BreakMeld(args[0]))
	case "claim":
		return false, admitted(r.model.ClaimTile())
	case "mahjong":
		return false, admitted(r.model.SayMahjong())
	case "pass":
		return false, admitted(r.model.PassRound())
	case "move":
		return false, admitted(r.model.MovePlayer())
	case "sort":
		ids, err := parseTiles(args, 0)
		if err != nil {
			return false, err
		}
		return false, admitted(r.model.SortHand(ids))
	case "ai":
		return false, r.toggleAI(args)
	case "hand":
		r.printHand()
	case "melds":
		r.printMelds()
	case "state":
		r.printState()
	case "deck":
		if err := r.push.Send(messages.ClientMessage{Type: messages.ClientMessageTypeGetDeck}); err != nil {
			return false, fmt.Errorf("failed to request deck: %v", err)
		}
	case "logout":
		r.logout()
	default:
		return false, fmt.Errorf("unknown command %q, try help", name)
	}
	return false, nil
}

func admitted(ok bool) error {
	if !ok {
		return errBusy
	}
	return nil
}

// parseTiles parses tile ids, requiring at least n of them.
func parseTiles(args []string, n int) ([]types.TileID, error) {
	if len(args) < n {
		return nil, fmt.Errorf("expected at least %d tile ids", n)
	}
	ids := make([]types.TileID, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid tile id %q", arg)
		}
		ids = append(ids, types.TileID(id))
	}
	return ids, nil
}

func (r *repl) toggleAI(args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("usage: ai on|off")
	}
	summary := r.model.Summary()
	if summary == nil {
		return errBusy
	}
	settings := summary.Settings.Copy()
	settings.AIEnabled = args[0] == "on"
	return admitted(r.model.SetSettings(settings))
}

func (r *repl) printHand() {
	summary := r.model.Summary()
	if summary == nil {
		fmt.Fprintln(r.out, "no game loaded")
		return
	}
	for _, tile := range summary.Hand {
		meld := ""
		if tile.SetID != nil {
			meld = " [" + *tile.SetID + "]"
		}
		fmt.Fprintf(r.out, "%4d  %s%s\n", tile.ID, r.model.TileString(tile.ID), meld)
	}
}

func (r *repl) printMelds() {
	melds := r.model.PossibleMelds()
	if len(melds) == 0 {
		fmt.Fprintln(r.out, "no melds available")
		return
	}
	for _, meld := range melds {
		names := make([]string, len(meld.Tiles))
		for i, id := range meld.Tiles {
			names[i] = r.model.TileString(id)
		}
		suffix := ""
		if meld.IsMahjong {
			suffix = " (mahjong)"
		}
		fmt.Fprintf(r.out, "%v  %s%s\n", meld.Tiles, strings.Join(names, ", "), suffix)
	}
}

func (r *repl) printState() {
	state := r.model.State()
	fmt.Fprintln(r.out, state.String())
	if state.Summary == nil {
		return
	}
	if turn, ok := r.model.TurnPlayer(); ok {
		fmt.Fprintf(r.out, "turn: %s\n", turn.Name)
	}
	fmt.Fprintf(r.out, "wall: %d, board: %d\n", state.Summary.DrawWallCount, len(state.Summary.Board))
	if tile := state.Summary.Round.DiscardedTile; tile != nil {
		fmt.Fprintf(r.out, "discarded: %s\n", r.model.TileString(*tile))
	}
}
