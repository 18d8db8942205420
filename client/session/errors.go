package session

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/tilesync/client/api"
	"github.com/cbodonnell/tilesync/pkg/game/types"
)

// ErrInvalidMahjong is wrapped by the CommandError of a say-mahjong the
// authority answered with a client error status. Transport failures, 5xx
// responses and 401s are reported as plain CommandErrors.
var ErrInvalidMahjong = errors.New("invalid mahjong")

// CommandError is emitted on the error feed when a command request fails.
type CommandError struct {
	Command types.Command
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

type invalidMahjongError struct {
	err error
}

func (e *invalidMahjongError) Error() string {
	return fmt.Sprintf("%v: %v", ErrInvalidMahjong, e.err)
}

func (e *invalidMahjongError) Unwrap() []error {
	return []error{ErrInvalidMahjong, e.err}
}

// rejectedByAuthority reports whether err is a 4xx response other than 401.
func rejectedByAuthority(err error) bool {
	statusErr := &api.StatusError{}
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode >= http.StatusBadRequest &&
		statusErr.StatusCode < http.StatusInternalServerError &&
		statusErr.StatusCode != http.StatusUnauthorized
}
