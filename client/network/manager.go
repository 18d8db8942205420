package network

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/cbodonnell/tilesync/client/auth"
	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/log"
	"github.com/cbodonnell/tilesync/pkg/messages"
	"github.com/cbodonnell/tilesync/pkg/observable"
)

const (
	DefaultServerURL      = "ws://localhost:8080/v1/ws"
	DefaultReconnectDelay = 10 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second
)

var logger = log.Component("network")

// MessageHandler receives every decoded server message of a connection.
type MessageHandler func(msg messages.ServerMessage)

type ManagerOptions struct {
	// URL of the push endpoint, defaults to DefaultServerURL
	URL string
	// Credentials supplies the token for every connection attempt
	Credentials *auth.Observer
	// Dialer defaults to GorillaDialer
	Dialer Dialer
	// ReconnectDelay defaults to DefaultReconnectDelay
	ReconnectDelay time.Duration
	// MaxReconnectAttempts caps consecutive reconnection attempts after an
	// unexpected close. Zero retries forever.
	MaxReconnectAttempts int
	// ReconnectJitter adds a random delay in [0, ReconnectJitter) to each
	// reconnection. Zero keeps the delay fixed.
	ReconnectJitter time.Duration
	// DialTimeout defaults to DefaultDialTimeout
	DialTimeout time.Duration
}

// timer is the part of *time.Timer a Connection needs.
type timer interface {
	Stop() bool
}

// Manager opens push connections and keeps them alive.
type Manager struct {
	url                  string
	credentials          *auth.Observer
	dialer               Dialer
	reconnectDelay       time.Duration
	maxReconnectAttempts int
	reconnectJitter      time.Duration
	dialTimeout          time.Duration

	afterFunc func(d time.Duration, f func()) timer
}

func NewManager(opts ManagerOptions) *Manager {
	m := &Manager{
		url:                  opts.URL,
		credentials:          opts.Credentials,
		dialer:               opts.Dialer,
		reconnectDelay:       opts.ReconnectDelay,
		maxReconnectAttempts: opts.MaxReconnectAttempts,
		reconnectJitter:      opts.ReconnectJitter,
		dialTimeout:          opts.DialTimeout,
		afterFunc: func(d time.Duration, f func()) timer {
			return time.AfterFunc(d, f)
		},
	}
	if m.url == "" {
		m.url = DefaultServerURL
	}
	if m.dialer == nil {
		m.dialer = &GorillaDialer{}
	}
	if m.reconnectDelay <= 0 {
		m.reconnectDelay = DefaultReconnectDelay
	}
	if m.dialTimeout <= 0 {
		m.dialTimeout = DefaultDialTimeout
	}
	return m
}

// Connect opens a connection to the push channel of gameID. playerID may be
// empty. It returns at once; the first attempt runs in the background and
// every decoded message is passed to onMessage.
//
// The returned Connection holds the current Handle. After an unexpected
// close it is reopened with the same parameters and the new Handle replaces
// the old one once its socket is open.
func (m *Manager) Connect(gameID types.GameID, playerID types.PlayerID, onMessage MessageHandler) *Connection {
	c := &Connection{
		manager:   m,
		gameID:    gameID,
		playerID:  playerID,
		onMessage: onMessage,
	}
	h := newHandle(c)
	c.current = observable.NewValue(h)
	logger.Debug("Connecting to game %s as player %q", gameID, playerID)
	go c.attempt(h)
	return c
}

// targetURL is built at each attempt so a reconnection uses the token that is
// current at that time.
func (m *Manager) targetURL(gameID types.GameID, playerID types.PlayerID) (string, error) {
	u, err := url.Parse(m.url)
	if err != nil {
		return "", fmt.Errorf("failed to parse server url: %v", err)
	}
	q := u.Query()
	q.Set("game_id", string(gameID))
	if playerID != "" {
		q.Set("player_id", string(playerID))
	}
	if m.credentials != nil {
		if token := m.credentials.Current(); token != "" {
			q.Set("token", token)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (m *Manager) nextDelay() time.Duration {
	if m.reconnectJitter <= 0 {
		return m.reconnectDelay
	}
	return m.reconnectDelay + rand.N(m.reconnectJitter)
}

func (m *Manager) dial(target string) (Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), m.dialTimeout)
	defer cancel()
	return m.dialer.Dial(ctx, target)
}
