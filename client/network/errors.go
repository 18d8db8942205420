package network

import "errors"

// ErrNotConnected is returned by Send when the handle has no open socket,
// either because the attempt has not completed or because it was replaced.
var ErrNotConnected = errors.New("not connected")

// ErrConnectionClosedByClient is returned by Send after Close was called.
type ErrConnectionClosedByClient struct{}

func (e *ErrConnectionClosedByClient) Error() string {
	return "connection closed by client"
}
