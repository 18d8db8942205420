package network

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/messages"
	"github.com/cbodonnell/tilesync/pkg/observable"
	"github.com/google/uuid"
)

// Connection is the reactive container returned by Manager.Connect. Holders
// resolve the current Handle through Current or Subscribe rather than keeping
// a Handle, which goes stale when the connection is reopened.
type Connection struct {
	manager   *Manager
	gameID    types.GameID
	playerID  types.PlayerID
	onMessage MessageHandler
	current   *observable.Value[*Handle]

	lock     sync.Mutex
	closed   bool
	timer    timer
	live     *Handle
	attempts int
}

func (c *Connection) GameID() types.GameID {
	return c.gameID
}

func (c *Connection) PlayerID() types.PlayerID {
	return c.playerID
}

// Current returns the current handle.
func (c *Connection) Current() *Handle {
	return c.current.Get()
}

// Subscribe calls fn with the current handle right away and again whenever
// a reconnection replaces it.
func (c *Connection) Subscribe(fn func(h *Handle)) (unsubscribe func()) {
	return c.current.Subscribe(fn)
}

// Send sends msg over the current handle.
func (c *Connection) Send(msg messages.ClientMessage) error {
	return c.Current().Send(msg)
}

// Closed reports whether Close was called.
func (c *Connection) Closed() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.closed
}

// Close marks the connection as intentionally closed, cancels a pending
// reconnection and closes the live socket. It is safe to call more than once.
func (c *Connection) Close() error {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	live := c.live
	c.live = nil
	c.lock.Unlock()

	logger.Debug("Closing connection to game %s", c.gameID)
	if live == nil {
		return nil
	}
	return live.closeConn()
}

// attempt dials once and, on success, reads until the socket closes. Any
// close that was not requested through Close schedules a reconnection.
func (c *Connection) attempt(h *Handle) {
	target, err := c.manager.targetURL(c.gameID, c.playerID)
	if err != nil {
		// the URL does not change between attempts so retrying cannot help
		logger.Error("Failed to build connection target for game %s: %v", c.gameID, err)
		return
	}

	logger.Trace("Handle %s dialing game %s", h.id, c.gameID)
	conn, err := c.manager.dial(target)
	if err != nil {
		logger.Error("Handle %s failed to connect to game %s: %v", h.id, c.gameID, err)
		c.handleClose(h)
		return
	}

	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		conn.Close()
		return
	}
	h.setConn(conn)
	c.live = h
	c.attempts = 0
	if c.current.Get() != h {
		c.current.Store(h)
	}
	c.lock.Unlock()
	c.current.Flush()

	logger.Info("Connected to game %s (handle %s)", c.gameID, h.id)
	c.readLoop(h, conn)
	conn.Close()
	c.handleClose(h)
}

func (c *Connection) readLoop(h *Handle, conn Conn) {
	for {
		frameType, data, err := conn.ReadMessage(context.Background())
		if err != nil {
			if !c.Closed() {
				logger.Error("Error reading from game %s (handle %s): %v", c.gameID, h.id, err)
			}
			logger.Trace("Connection closed for handle %s", h.id)
			return
		}

		msg, err := messages.DecodeServerMessage(frameType, data)
		if err != nil {
			if errors.Is(err, messages.ErrUnknownMessage) {
				logger.Trace("Ignoring unrecognized message on handle %s", h.id)
			} else {
				logger.Error("Failed to decode message on handle %s: %v", h.id, err)
			}
			continue
		}
		if c.onMessage != nil {
			c.onMessage(msg)
		}
	}
}

func (c *Connection) handleClose(h *Handle) {
	h.clearConn()

	c.lock.Lock()
	defer c.lock.Unlock()
	if c.live == h {
		c.live = nil
	}
	if c.closed {
		return
	}
	if limit := c.manager.maxReconnectAttempts; limit > 0 && c.attempts >= limit {
		logger.Warn("Giving up on game %s after %d reconnection attempts", c.gameID, c.attempts)
		return
	}
	c.attempts++
	delay := c.manager.nextDelay()
	logger.Info("Connection to game %s closed unexpectedly, reconnecting in %s", c.gameID, delay)
	c.timer = c.manager.afterFunc(delay, c.reconnect)
}

func (c *Connection) reconnect() {
	c.lock.Lock()
	if c.closed {
		c.lock.Unlock()
		return
	}
	c.timer = nil
	h := newHandle(c)
	c.lock.Unlock()
	c.attempt(h)
}

// Handle is one attempt at a live socket.
type Handle struct {
	id         uuid.UUID
	connection *Connection

	lock      sync.Mutex
	conn      Conn
	writeLock sync.Mutex
}

func newHandle(c *Connection) *Handle {
	return &Handle{
		id:         uuid.New(),
		connection: c,
	}
}

// ID identifies the attempt in logs.
func (h *Handle) ID() string {
	return h.id.String()
}

// Send encodes msg as a JSON text frame. Writes on a handle are serialized.
func (h *Handle) Send(msg messages.ClientMessage) error {
	if h.connection.Closed() {
		return &ErrConnectionClosedByClient{}
	}
	h.lock.Lock()
	conn := h.conn
	h.lock.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	b, err := messages.EncodeClientMessage(msg)
	if err != nil {
		return err
	}

	h.writeLock.Lock()
	defer h.writeLock.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), DefaultWriteTimeout)
	defer cancel()
	if err := conn.WriteMessage(ctx, messages.FrameText, b); err != nil {
		return fmt.Errorf("failed to send %s: %v", msg.Type, err)
	}
	return nil
}

// Close closes the whole connection, not just this attempt, and suppresses
// reconnection.
func (h *Handle) Close() error {
	return h.connection.Close()
}

func (h *Handle) setConn(conn Conn) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.conn = conn
}

func (h *Handle) clearConn() {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.conn = nil
}

func (h *Handle) closeConn() error {
	h.lock.Lock()
	conn := h.conn
	h.lock.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}
