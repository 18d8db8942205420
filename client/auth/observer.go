package auth

import (
	"net/http"

	"github.com/cbodonnell/tilesync/pkg/observable"
)

// Observer is the single source of truth for the session token. The empty
// string means there is no token.
//
// One Observer is created at startup and shared by reference with everything
// that builds requests or reacts to login and logout.
type Observer struct {
	token *observable.Value[string]
}

// NewObserver creates an Observer holding initial, typically the token
// restored from storage.
func NewObserver(initial string) *Observer {
	return &Observer{
		token: observable.NewValue(initial),
	}
}

// Current returns the current token.
func (o *Observer) Current() string {
	return o.token.Get()
}

// Subscribe calls fn with the current token right away and again on every
// publish until unsubscribe is called.
func (o *Observer) Subscribe(fn func(token string)) (unsubscribe func()) {
	return o.token.Subscribe(fn)
}

// Publish replaces the current token. Publishing "" logs the session out for
// every subscriber.
func (o *Observer) Publish(token string) {
	o.token.Set(token)
}

// Authorize sets the bearer Authorization header on req when a token is
// present and leaves it unset otherwise.
func (o *Observer) Authorize(req *http.Request) {
	if token := o.Current(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}
