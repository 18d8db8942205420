package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/messages"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	*Server
	http *httptest.Server
	auth *StaticAuthProvider
}

func newTestServer(t *testing.T, compress bool) *testServer {
	t.Helper()
	provider := NewStaticAuthProvider()
	provider.AddUser("alice@example.com", "secret", "p1")
	provider.AddToken("tok-1", "p1")
	provider.AddToken("tok-2", "p2")
	provider.AddToken("tok-9", "p9")

	srv := NewServer(NewServerOptions{
		AuthProvider:   provider,
		Store:          newTestStore(t),
		CompressFrames: compress,
	})
	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(httpServer.Close)
	return &testServer{Server: srv, http: httpServer, auth: provider}
}

func (s *testServer) do(t *testing.T, method string, path string, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.http.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.http.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/v1/ws?" + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHandleLogin(t *testing.T) {
	s := newTestServer(t, false)

	tt := []struct {
		name   string
		form   url.Values
		status int
	}{
		{name: "valid", form: url.Values{"email": {"alice@example.com"}, "password": {"secret"}}, status: http.StatusOK},
		{name: "wrong password", form: url.Values{"email": {"alice@example.com"}, "password": {"nope"}}, status: http.StatusBadRequest},
		{name: "missing email", form: url.Values{"password": {"secret"}}, status: http.StatusBadRequest},
		{name: "missing password", form: url.Values{"email": {"alice@example.com"}}, status: http.StatusBadRequest},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := s.http.Client().PostForm(s.http.URL+"/login", tc.form)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.status, resp.StatusCode)
			if tc.status != http.StatusOK {
				return
			}

			body := decode[LoginResponseBody](t, resp)
			require.NotEmpty(t, body.IDToken)
			claims, err := s.auth.VerifyToken(context.Background(), body.IDToken)
			require.NoError(t, err)
			assert.Equal(t, "p1", claims.UID)
		})
	}
}

func TestHandleDeck(t *testing.T) {
	s := newTestServer(t, false)

	resp := s.do(t, http.MethodGet, "/v1/deck", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	tiles := decode[[]types.Tile](t, resp)
	assert.Len(t, tiles, 144)
	assert.Equal(t, types.TileID(0), tiles[0].ID)
}

func TestHandleDashboard(t *testing.T) {
	s := newTestServer(t, false)

	resp := s.do(t, http.MethodGet, "/v1/user/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/user/dashboard", "tok-bad", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = s.do(t, http.MethodGet, "/v1/user/dashboard", "tok-2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	dashboard := decode[types.Dashboard](t, resp)
	assert.Equal(t, types.PlayerID("p2"), dashboard.PlayerID)
	require.Len(t, dashboard.Games, 1)
	assert.Equal(t, types.GameID("g1"), dashboard.Games[0].ID)
}

func TestHandleGetGame(t *testing.T) {
	s := newTestServer(t, false)

	tt := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{name: "own summary", path: "/v1/user/game/g1?player_id=p1", token: "tok-1", status: http.StatusOK},
		{name: "player from token", path: "/v1/user/game/g1", token: "tok-1", status: http.StatusOK},
		{name: "someone else's summary", path: "/v1/user/game/g1?player_id=p2", token: "tok-1", status: http.StatusForbidden},
		{name: "not seated", path: "/v1/user/game/g1", token: "tok-9", status: http.StatusNotFound},
		{name: "unknown game", path: "/v1/user/game/g2", token: "tok-1", status: http.StatusNotFound},
		{name: "no token", path: "/v1/user/game/g1", status: http.StatusUnauthorized},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			resp := s.do(t, http.MethodGet, tc.path, tc.token, nil)
			require.Equal(t, tc.status, resp.StatusCode)
			if tc.status != http.StatusOK {
				return
			}
			summary := decode[types.GameSummary](t, resp)
			assert.Equal(t, types.PlayerID("p1"), summary.PlayerID)
			assert.Len(t, summary.Hand, 13)
			assert.Equal(t, 13, summary.OtherHands["p2"].TilesCount)
			assert.Equal(t, 3, summary.DrawWallCount)
		})
	}
}

func TestHandleCommand(t *testing.T) {
	tt := []struct {
		name    string
		command string
		token   string
		body    interface{}
		status  int
	}{
		{name: "draw", command: "draw-tile", token: "tok-1", body: map[string]interface{}{"player_id": "p1", "game_version": 1}, status: http.StatusOK},
		{name: "stale version", command: "draw-tile", token: "tok-1", body: map[string]interface{}{"player_id": "p1", "game_version": 0}, status: http.StatusConflict},
		{name: "out of turn", command: "draw-tile", token: "tok-2", body: map[string]interface{}{"player_id": "p2"}, status: http.StatusConflict},
		{name: "impersonation", command: "draw-tile", token: "tok-2", body: map[string]interface{}{"player_id": "p1"}, status: http.StatusForbidden},
		{name: "unknown command", command: "dance", token: "tok-1", body: map[string]interface{}{"player_id": "p1"}, status: http.StatusNotFound},
		{name: "invalid body", command: "draw-tile", token: "tok-1", body: "nope", status: http.StatusBadRequest},
		{name: "invalid mahjong", command: "say-mahjong", token: "tok-1", body: map[string]interface{}{"player_id": "p1"}, status: http.StatusBadRequest},
		{name: "no token", command: "draw-tile", body: map[string]interface{}{"player_id": "p1"}, status: http.StatusUnauthorized},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, false)
			resp := s.do(t, http.MethodPost, "/v1/user/game/g1/"+tc.command, tc.token, tc.body)
			require.Equal(t, tc.status, resp.StatusCode)
			if tc.status != http.StatusOK {
				return
			}
			summary := decode[types.GameSummary](t, resp)
			assert.Equal(t, 2, summary.Version)
			assert.Len(t, summary.Hand, 14)
		})
	}
}

func TestHandleCommand_Settings(t *testing.T) {
	s := newTestServer(t, false)

	resp := s.do(t, http.MethodPost, "/v1/user/game/g1/settings", "tok-2", map[string]interface{}{
		"player_id": "p2",
		"settings":  map[string]interface{}{"ai_enabled": true, "discard_wait_ms": 250},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	settings := decode[types.GameSettings](t, resp)
	assert.True(t, settings.AIEnabled)
	assert.Equal(t, 250, settings.DiscardWaitMs)

	g, ok := s.Store().Game("g1")
	require.True(t, ok)
	assert.Equal(t, settings, g.Settings)
}

func readServerMessage(t *testing.T, conn *websocket.Conn) (int, messages.ServerMessage) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	frameType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	msg, err := messages.DecodeServerMessage(frameType, data)
	require.NoError(t, err)
	return frameType, msg
}

func TestHandleWebSocket_Push(t *testing.T) {
	tt := []struct {
		name      string
		compress  bool
		frameType int
	}{
		{name: "text", frameType: websocket.TextMessage},
		{name: "compressed", compress: true, frameType: websocket.BinaryMessage},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, tc.compress)

			player := s.dial(t, "game_id=g1&player_id=p2&token=tok-2")
			service := s.dial(t, "game_id=g1&token=tok-1")
			require.Eventually(t, func() bool { return s.Hub().Count("g1") == 2 }, 2*time.Second, 5*time.Millisecond)

			resp := s.do(t, http.MethodPost, "/v1/user/game/g1/draw-tile", "tok-1", map[string]interface{}{"player_id": "p1"})
			require.Equal(t, http.StatusOK, resp.StatusCode)

			frameType, msg := readServerMessage(t, player)
			assert.Equal(t, tc.frameType, frameType)
			update, ok := msg.(*messages.GameSummaryUpdate)
			require.True(t, ok)
			assert.Equal(t, types.PlayerID("p2"), update.Summary.PlayerID)
			assert.Equal(t, 2, update.Summary.Version)
			assert.Equal(t, 14, update.Summary.OtherHands["p1"].TilesCount)

			_, msg = readServerMessage(t, service)
			full, ok := msg.(*messages.GameUpdate)
			require.True(t, ok)
			assert.Equal(t, 2, full.Game.Version)
			assert.Len(t, full.Game.Hands["p1"], 14)
		})
	}
}

func TestHandleWebSocket_Rejections(t *testing.T) {
	tt := []struct {
		name   string
		query  string
		status int
	}{
		{name: "missing token", query: "game_id=g1&player_id=p1", status: http.StatusUnauthorized},
		{name: "revoked token", query: "game_id=g1&player_id=p1&token=tok-gone", status: http.StatusUnauthorized},
		{name: "unknown game", query: "game_id=g2&player_id=p1&token=tok-1", status: http.StatusNotFound},
		{name: "other player", query: "game_id=g1&player_id=p2&token=tok-1", status: http.StatusForbidden},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(t, false)
			wsURL := "ws" + strings.TrimPrefix(s.http.URL, "http") + "/v1/ws?" + tc.query
			_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestHub_Disconnect(t *testing.T) {
	s := newTestServer(t, false)

	conn := s.dial(t, "game_id=g1&player_id=p1&token=tok-1")
	require.Eventually(t, func() bool { return s.Hub().Count("g1") == 1 }, 2*time.Second, 5*time.Millisecond)

	s.Hub().Disconnect("g1")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.Eventually(t, func() bool { return s.Hub().Count("g1") == 0 }, 2*time.Second, 5*time.Millisecond)
}
