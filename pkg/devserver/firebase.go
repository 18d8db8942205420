package devserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/auth"
	"google.golang.org/api/option"
)

const DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"

var (
	_ AuthProvider  = &FirebaseAuthProvider{}
	_ Authenticator = &FirebaseAuthProvider{}
)

// FirebaseAuthProvider verifies Firebase ID tokens and logs users in through
// the Firebase Auth REST API.
type FirebaseAuthProvider struct {
	auth               *auth.Client
	apiKey             string
	identityToolkitURL string
	httpClient         *http.Client
}

type NewFirebaseAuthProviderOptions struct {
	ProjectID string
	APIKey    string
	// IdentityToolkitURL defaults to DefaultIdentityToolkitURL
	IdentityToolkitURL string
	HTTPClient         *http.Client
}

func NewFirebaseAuthProvider(ctx context.Context, opts NewFirebaseAuthProviderOptions) (*FirebaseAuthProvider, error) {
	cfg := &firebase.Config{
		ProjectID: opts.ProjectID,
	}
	app, err := firebase.NewApp(ctx, cfg, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("error initializing app: %v", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Auth client: %v", err)
	}

	p := &FirebaseAuthProvider{
		auth:               authClient,
		apiKey:             opts.APIKey,
		identityToolkitURL: opts.IdentityToolkitURL,
		httpClient:         opts.HTTPClient,
	}
	if p.identityToolkitURL == "" {
		p.identityToolkitURL = DefaultIdentityToolkitURL
	}
	if p.httpClient == nil {
		p.httpClient = http.DefaultClient
	}
	return p, nil
}

// VerifyToken verifies a Firebase ID token
func (p *FirebaseAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	token, err := p.auth.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("error verifying token: %v", err)
	}

	return &TokenClaims{
		UID: token.UID,
	}, nil
}

type signInRequestBody struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	ReturnSecureToken bool   `json:"returnSecureToken"`
}

type signInResponseBody struct {
	IDToken string `json:"idToken"`
}

type errorResponseBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

const (
	errorInvalidEmail            = "INVALID_EMAIL"
	errorInvalidLoginCredentials = "INVALID_LOGIN_CREDENTIALS"
)

// Login signs in with email and password
// https://firebase.google.com/docs/reference/rest/auth#section-sign-in-email-password
func (p *FirebaseAuthProvider) Login(ctx context.Context, email string, password string) (string, error) {
	body := bytes.NewBuffer(nil)
	if err := json.NewEncoder(body).Encode(&signInRequestBody{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}); err != nil {
		return "", fmt.Errorf("error encoding request body: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.identityToolkitURL+"/accounts:signInWithPassword?key="+p.apiKey, body)
	if err != nil {
		return "", fmt.Errorf("error creating request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorResponse := &errorResponseBody{}
		if err := json.NewDecoder(resp.Body).Decode(errorResponse); err != nil {
			return "", fmt.Errorf("failed to decode error response: %v", err)
		}
		switch errorResponse.Error.Message {
		case errorInvalidEmail, errorInvalidLoginCredentials:
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("unhandled error response message: %s", errorResponse.Error.Message)
	}

	signIn := &signInResponseBody{}
	if err := json.NewDecoder(resp.Body).Decode(signIn); err != nil {
		return "", fmt.Errorf("error decoding response: %v", err)
	}
	return signIn.IDToken, nil
}
