// Package app holds the session context shared by the client's components
// and mounts game sessions on it.
package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cbodonnell/tilesync/client/api"
	"github.com/cbodonnell/tilesync/client/auth"
	"github.com/cbodonnell/tilesync/client/network"
	"github.com/cbodonnell/tilesync/client/session"
	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/log"
)

var logger = log.Component("app")

// Context is created once at startup and passed by reference to everything
// that needs the token, the deck or the remote authority.
type Context struct {
	Credentials *auth.Observer
	API         *api.Client
	Network     *network.Manager
	Rules       session.RulesEvaluator
	Formatter   session.TileFormatter

	deckLock sync.Mutex
	deck     types.Deck
}

type NewContextOptions struct {
	// ServerURL is the base URL of the HTTP service
	ServerURL string
	// PushURL is the websocket endpoint
	PushURL string
	// Credentials holds the token restored at startup, or none
	Credentials *auth.Observer
	HTTPClient  *http.Client
	Dialer      network.Dialer

	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	ReconnectJitter      time.Duration

	Rules     session.RulesEvaluator
	Formatter session.TileFormatter
	// Deck skips fetching the deck from the server when set
	Deck types.Deck
}

func NewContext(opts NewContextOptions) *Context {
	credentials := opts.Credentials
	if credentials == nil {
		credentials = auth.NewObserver("")
	}
	return &Context{
		Credentials: credentials,
		API: api.NewClient(api.NewClientOptions{
			BaseURL:     opts.ServerURL,
			HTTPClient:  opts.HTTPClient,
			Credentials: credentials,
		}),
		Network: network.NewManager(network.ManagerOptions{
			URL:                  opts.PushURL,
			Credentials:          credentials,
			Dialer:               opts.Dialer,
			ReconnectDelay:       opts.ReconnectDelay,
			MaxReconnectAttempts: opts.MaxReconnectAttempts,
			ReconnectJitter:      opts.ReconnectJitter,
		}),
		Rules:     opts.Rules,
		Formatter: opts.Formatter,
		deck:      opts.Deck,
	}
}

// Deck returns the deck, fetching it from the server the first time.
func (c *Context) Deck(ctx context.Context) (types.Deck, error) {
	c.deckLock.Lock()
	defer c.deckLock.Unlock()
	if c.deck != nil {
		return c.deck, nil
	}
	deck, err := c.API.FetchDeck(ctx)
	if err != nil {
		return nil, err
	}
	logger.Debug("Loaded deck of %d tiles", len(deck))
	c.deck = deck
	return deck, nil
}

// Dashboard fetches the games of the logged in user.
func (c *Context) Dashboard(ctx context.Context) (*types.Dashboard, error) {
	dashboard, err := c.API.FetchDashboard(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard: %w", err)
	}
	return dashboard, nil
}
