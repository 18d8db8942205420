package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// LoginResponseBody is the response body of the auth server's login endpoint.
type LoginResponseBody struct {
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    string `json:"expiresIn"`
}

type LoginOptions struct {
	// AuthURL is the base URL of the authentication server
	AuthURL string
	// Email and Password are the user's credentials
	Email    string
	Password string
	// HTTPClient defaults to http.DefaultClient
	HTTPClient *http.Client
}

// Login exchanges credentials for an ID token and publishes it.
func (o *Observer) Login(ctx context.Context, opts LoginOptions) error {
	idToken, err := getIDToken(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to get ID token: %v", err)
	}
	o.Publish(idToken)
	return nil
}

// Logout clears the token.
func (o *Observer) Logout() {
	o.Publish("")
}

func getIDToken(ctx context.Context, opts LoginOptions) (string, error) {
	values := url.Values{}
	values.Set("email", opts.Email)
	values.Set("password", opts.Password)
	requestBody := strings.NewReader(values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(opts.AuthURL, "/")+"/login", requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to create login request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send login request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to login: status: %s, body: %s", resp.Status, string(b))
	}

	loginResponse := &LoginResponseBody{}
	if err := json.NewDecoder(resp.Body).Decode(loginResponse); err != nil {
		return "", fmt.Errorf("failed to decode login response: %v", err)
	}
	if loginResponse.IDToken == "" {
		return "", fmt.Errorf("login response has no ID token")
	}

	return loginResponse.IDToken, nil
}
