package network

import "context"

// Conn is an open duplex socket. Frame types are messages.FrameText and
// messages.FrameBinary.
type Conn interface {
	ReadMessage(ctx context.Context) (frameType int, data []byte, err error)
	WriteMessage(ctx context.Context, frameType int, data []byte) error
	Close() error
}

// Dialer opens a Conn to a websocket URL.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}
