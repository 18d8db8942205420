package devserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/messages"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type subscriber struct {
	conn     *websocket.Conn
	playerID types.PlayerID
	lock     sync.Mutex
}

func (s *subscriber) write(frameType int, data []byte) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(frameType, data)
}

// Hub fans game changes out to the push sockets of each game. Sockets opened
// with a player receive that player's summary; sockets opened without one
// receive the full game.
type Hub struct {
	lock        sync.RWMutex
	subscribers map[types.GameID]map[*subscriber]struct{}
	compress    bool
}

func NewHub(compress bool) *Hub {
	return &Hub{
		subscribers: make(map[types.GameID]map[*subscriber]struct{}),
		compress:    compress,
	}
}

// Serve upgrades the request and keeps the socket registered for gameID
// until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, gameID types.GameID, playerID types.PlayerID) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade to WebSocket: %v", err)
		return
	}
	logger.Debug("New WebSocket connection from %s for game %s", conn.RemoteAddr().String(), gameID)

	sub := &subscriber{conn: conn, playerID: playerID}
	h.add(gameID, sub)
	defer func() {
		h.remove(gameID, sub)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Error("Error reading WebSocket message from %s: %v", conn.RemoteAddr().String(), err)
			}
			logger.Trace("Connection closed for %s", conn.RemoteAddr().String())
			return
		}
		msg, err := messages.DecodeClientMessage(data)
		if err != nil {
			logger.Warn("Failed to decode client message: %v", err)
			continue
		}
		logger.Debug("Received %s from %s on game %s", msg.Type, playerID, gameID)
	}
}

func (h *Hub) add(gameID types.GameID, sub *subscriber) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if h.subscribers[gameID] == nil {
		h.subscribers[gameID] = make(map[*subscriber]struct{})
	}
	h.subscribers[gameID][sub] = struct{}{}
}

func (h *Hub) remove(gameID types.GameID, sub *subscriber) {
	h.lock.Lock()
	defer h.lock.Unlock()
	delete(h.subscribers[gameID], sub)
	if len(h.subscribers[gameID]) == 0 {
		delete(h.subscribers, gameID)
	}
}

func (h *Hub) snapshot(gameID types.GameID) []*subscriber {
	h.lock.RLock()
	defer h.lock.RUnlock()
	subs := make([]*subscriber, 0, len(h.subscribers[gameID]))
	for sub := range h.subscribers[gameID] {
		subs = append(subs, sub)
	}
	return subs
}

// Count returns the number of sockets open for gameID.
func (h *Hub) Count(gameID types.GameID) int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.subscribers[gameID])
}

// Publish pushes g to every socket of the game.
func (h *Hub) Publish(g *types.Game) {
	for _, sub := range h.snapshot(g.ID) {
		var msg messages.ServerMessage
		if sub.playerID == "" {
			msg = &messages.GameUpdate{Game: g}
		} else {
			msg = &messages.GameSummaryUpdate{Summary: g.SummaryFor(sub.playerID)}
		}
		if err := h.send(sub, msg); err != nil {
			logger.Error("Failed to push game %s to %s: %v", g.ID, sub.conn.RemoteAddr().String(), err)
		}
	}
}

func (h *Hub) send(sub *subscriber, msg messages.ServerMessage) error {
	b, err := messages.EncodeServerMessage(msg)
	if err != nil {
		return err
	}
	if !h.compress {
		return sub.write(websocket.TextMessage, b)
	}
	compressed, err := messages.Compress(b)
	if err != nil {
		return err
	}
	return sub.write(websocket.BinaryMessage, compressed)
}

// Disconnect drops every socket of gameID without a close handshake, as a
// network failure would.
func (h *Hub) Disconnect(gameID types.GameID) {
	for _, sub := range h.snapshot(gameID) {
		sub.conn.Close()
	}
}
