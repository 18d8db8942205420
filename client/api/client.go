package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cbodonnell/tilesync/client/auth"
	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/log"
)

const (
	DefaultServerURL = "http://localhost:8080"
	DefaultTimeout   = 30 * time.Second
)

var logger = log.Component("api")

// Client issues requests to the game service. Every request carries the
// Observer's current token.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials *auth.Observer
}

type NewClientOptions struct {
	// BaseURL defaults to DefaultServerURL
	BaseURL string
	// HTTPClient defaults to a client with DefaultTimeout
	HTTPClient  *http.Client
	Credentials *auth.Observer
}

func NewClient(opts NewClientOptions) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		httpClient:  httpClient,
		credentials: opts.Credentials,
	}
}

// PostCommand posts body to the command's endpoint of gameID and decodes the
// response into out.
func (c *Client) PostCommand(ctx context.Context, gameID types.GameID, command types.Command, body interface{}, out interface{}) error {
	path := fmt.Sprintf("/v1/user/game/%s/%s", url.PathEscape(string(gameID)), command)
	if err := c.do(ctx, http.MethodPost, path, body, out); err != nil {
		return fmt.Errorf("failed to %s: %w", command, err)
	}
	return nil
}

// FetchGame loads the player's summary of gameID.
func (c *Client) FetchGame(ctx context.Context, gameID types.GameID, playerID types.PlayerID) (*types.GameSummary, error) {
	path := fmt.Sprintf("/v1/user/game/%s", url.PathEscape(string(gameID)))
	if playerID != "" {
		path += "?player_id=" + url.QueryEscape(string(playerID))
	}
	summary := &types.GameSummary{}
	if err := c.fetch(ctx, path, summary); err != nil {
		return nil, fmt.Errorf("failed to fetch game %s: %w", gameID, err)
	}
	return summary, nil
}

// FetchDashboard loads the authenticated user's dashboard.
func (c *Client) FetchDashboard(ctx context.Context) (*types.Dashboard, error) {
	dashboard := &types.Dashboard{}
	if err := c.fetch(ctx, "/v1/user/dashboard", dashboard); err != nil {
		return nil, fmt.Errorf("failed to fetch dashboard: %w", err)
	}
	return dashboard, nil
}

// FetchDeck loads the tile set.
func (c *Client) FetchDeck(ctx context.Context) (types.Deck, error) {
	tiles := []types.Tile{}
	if err := c.fetch(ctx, "/v1/deck", &tiles); err != nil {
		return nil, fmt.Errorf("failed to fetch deck: %w", err)
	}
	return types.NewDeck(tiles), nil
}

// fetch performs a data read. An unauthorized response means the session is
// no longer valid, so the token is cleared for every subscriber.
func (c *Client) fetch(ctx context.Context, path string, out interface{}) error {
	err := c.do(ctx, http.MethodGet, path, nil, out)
	if errors.Is(err, ErrUnauthorized) && c.credentials != nil {
		logger.Warn("Unauthorized response from %s, clearing session", path)
		c.credentials.Publish("")
	}
	return err
}

func (c *Client) do(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.credentials != nil {
		c.credentials.Authorize(req)
	}

	logger.Trace("%s %s", method, path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %v", err)
	}
	return nil
}
