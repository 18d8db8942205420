package network

import (
	"context"
	"fmt"
	"time"

	"github.com/cbodonnell/tilesync/pkg/messages"
	"github.com/gorilla/websocket"
)

const closeWriteTimeout = time.Second

// GorillaDialer dials with github.com/gorilla/websocket. It is the default.
type GorillaDialer struct {
	// Dialer defaults to websocket.DefaultDialer
	Dialer *websocket.Dialer
}

func (d *GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to server: %v (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("failed to connect to server: %v", err)
	}
	return &gorillaConn{conn: conn}, nil
}

type gorillaConn struct {
	conn *websocket.Conn
}

// ReadMessage blocks until a frame arrives or the socket is closed. The
// gorilla connection has no per-call cancellation so ctx is unused.
func (c *gorillaConn) ReadMessage(ctx context.Context) (int, []byte, error) {
	frameType, data, err := c.conn.ReadMessage()
	if err != nil {
		return 0, nil, err
	}
	switch frameType {
	case websocket.TextMessage:
		return messages.FrameText, data, nil
	case websocket.BinaryMessage:
		return messages.FrameBinary, data, nil
	default:
		return frameType, data, nil
	}
}

func (c *gorillaConn) WriteMessage(ctx context.Context, frameType int, data []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetWriteDeadline(deadline)
		defer c.conn.SetWriteDeadline(time.Time{})
	}
	wsType := websocket.TextMessage
	if frameType == messages.FrameBinary {
		wsType = websocket.BinaryMessage
	}
	if err := c.conn.WriteMessage(wsType, data); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}
	return nil
}

func (c *gorillaConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	return c.conn.Close()
}
