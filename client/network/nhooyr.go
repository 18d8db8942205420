package network

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cbodonnell/tilesync/pkg/messages"
	"nhooyr.io/websocket"
)

// DefaultReadLimit bounds the size of a single inbound frame for
// NhooyrDialer. Game summaries exceed the library's 32KiB default.
const DefaultReadLimit = 1 << 20

// NhooyrDialer dials with nhooyr.io/websocket.
type NhooyrDialer struct {
	HTTPClient *http.Client
	// ReadLimit defaults to DefaultReadLimit
	ReadLimit int64
}

func (d *NhooyrDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPClient: d.HTTPClient,
	})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to server: %v (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("failed to connect to server: %v", err)
	}
	limit := d.ReadLimit
	if limit == 0 {
		limit = DefaultReadLimit
	}
	conn.SetReadLimit(limit)
	return &nhooyrConn{conn: conn}, nil
}

type nhooyrConn struct {
	conn *websocket.Conn
}

func (c *nhooyrConn) ReadMessage(ctx context.Context) (int, []byte, error) {
	msgType, data, err := c.conn.Read(ctx)
	if err != nil {
		return 0, nil, err
	}
	if msgType == websocket.MessageBinary {
		return messages.FrameBinary, data, nil
	}
	return messages.FrameText, data, nil
}

func (c *nhooyrConn) WriteMessage(ctx context.Context, frameType int, data []byte) error {
	msgType := websocket.MessageText
	if frameType == messages.FrameBinary {
		msgType = websocket.MessageBinary
	}
	if err := c.conn.Write(ctx, msgType, data); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}
	return nil
}

func (c *nhooyrConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
