package devserver

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthProvider verifies session tokens.
type AuthProvider interface {
	VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error)
}

// Authenticator exchanges an email and password for a session token.
type Authenticator interface {
	Login(ctx context.Context, email string, password string) (string, error)
}

type TokenClaims struct {
	UID string `json:"uid"`
}

var (
	_ AuthProvider  = &StaticAuthProvider{}
	_ Authenticator = &StaticAuthProvider{}
)

type staticUser struct {
	password string
	uid      string
}

// StaticAuthProvider keeps users and issued tokens in memory.
type StaticAuthProvider struct {
	lock   sync.RWMutex
	users  map[string]staticUser
	tokens map[string]string
}

func NewStaticAuthProvider() *StaticAuthProvider {
	return &StaticAuthProvider{
		users:  make(map[string]staticUser),
		tokens: make(map[string]string),
	}
}

// AddUser registers a user who can log in with email and password.
func (p *StaticAuthProvider) AddUser(email string, password string, uid string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.users[email] = staticUser{password: password, uid: uid}
}

// AddToken makes token valid for uid.
func (p *StaticAuthProvider) AddToken(token string, uid string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.tokens[token] = uid
}

// RevokeToken makes token invalid.
func (p *StaticAuthProvider) RevokeToken(token string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.tokens, token)
}

func (p *StaticAuthProvider) Login(ctx context.Context, email string, password string) (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	user, ok := p.users[email]
	if !ok || user.password != password {
		return "", ErrInvalidCredentials
	}
	token := uuid.NewString()
	p.tokens[token] = user.uid
	return token, nil
}

func (p *StaticAuthProvider) VerifyToken(ctx context.Context, idToken string) (*TokenClaims, error) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	uid, ok := p.tokens[idToken]
	if !ok {
		return nil, fmt.Errorf("error verifying token: %w", ErrInvalidToken)
	}
	return &TokenClaims{UID: uid}, nil
}
