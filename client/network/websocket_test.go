package network

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/tilesync/client/auth"
	"github.com/cbodonnell/tilesync/pkg/messages"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPushServer accepts one socket, pushes a summary update as text and as a
// compressed binary frame, echoes the first client message back as the game
// name of a GameUpdate and then drops the socket.
func newPushServer(t *testing.T) (*httptest.Server, chan string) {
	queries := make(chan string, 4)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte(`{"GameSummaryUpdate": {"id": "g1", "version": 1}}`))
		compressed, _ := messages.Compress([]byte(`{"GameSummaryUpdate": {"id": "g1", "version": 2}}`))
		conn.WriteMessage(websocket.BinaryMessage, compressed)

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := messages.DecodeClientMessage(data)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{"GameUpdate": {"id": "g1", "name": "`+string(msg.Type)+`"}}`))
	}))
	t.Cleanup(server.Close)
	return server, queries
}

func TestDialers(t *testing.T) {
	tt := []struct {
		name   string
		dialer Dialer
	}{
		{name: "gorilla", dialer: &GorillaDialer{}},
		{name: "nhooyr", dialer: &NhooyrDialer{}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			server, queries := newPushServer(t)

			m := NewManager(ManagerOptions{
				URL:         "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ws",
				Credentials: auth.NewObserver("tok-abc"),
				Dialer:      tc.dialer,
			})
			clock := newFakeClock()
			m.afterFunc = clock.afterFunc

			received := make(chan messages.ServerMessage, 4)
			c := m.Connect("g1", "p1", func(msg messages.ServerMessage) {
				received <- msg
			})
			defer c.Close()

			assert.Equal(t, "game_id=g1&player_id=p1&token=tok-abc", <-queries)

			for _, version := range []int{1, 2} {
				select {
				case msg := <-received:
					update, ok := msg.(*messages.GameSummaryUpdate)
					require.True(t, ok)
					assert.Equal(t, version, update.Summary.Version)
				case <-time.After(2 * time.Second):
					t.Fatal("timed out waiting for summary update")
				}
			}

			h := waitConnected(t, c)
			require.NoError(t, h.Send(messages.ClientMessage{Type: messages.ClientMessageTypeGetDeck}))

			select {
			case msg := <-received:
				update, ok := msg.(*messages.GameUpdate)
				require.True(t, ok)
				assert.Equal(t, "GetDeck", update.Game.Name)
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for game update")
			}

			// the server hung up on its own, so a reconnection is scheduled
			require.Eventually(t, func() bool { return clock.scheduled() == 1 }, 2*time.Second, 5*time.Millisecond)
			assert.Equal(t, DefaultReconnectDelay, clock.delay(0))
		})
	}
}
