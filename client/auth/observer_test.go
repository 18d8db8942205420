package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserver_SubscribeReplaysCurrentToken(t *testing.T) {
	observer := NewObserver("")
	observer.Publish("tok-abc")

	var got []string
	unsubscribe := observer.Subscribe(func(token string) {
		got = append(got, token)
	})
	defer unsubscribe()

	require.Equal(t, []string{"tok-abc"}, got, "subscriber must receive the current token synchronously")

	observer.Publish("")
	assert.Equal(t, []string{"tok-abc", ""}, got)
	assert.Equal(t, "", observer.Current())
}

func TestObserver_Authorize(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{name: "with token", token: "tok-abc", want: "Bearer tok-abc"},
		{name: "without token", token: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observer := NewObserver(tt.token)
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			observer.Authorize(req)
			assert.Equal(t, tt.want, req.Header.Get("Authorization"))
			_, present := req.Header["Authorization"]
			assert.Equal(t, tt.token != "", present)
		})
	}
}

func TestObserver_Login(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		if r.FormValue("password") != "secret" {
			http.Error(w, "Invalid login credentials", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(LoginResponseBody{IDToken: "tok-" + r.FormValue("email")})
	}))
	defer server.Close()

	observer := NewObserver("")
	var published []string
	observer.Subscribe(func(token string) {
		published = append(published, token)
	})

	err := observer.Login(context.Background(), LoginOptions{AuthURL: server.URL, Email: "ann", Password: "wrong"})
	assert.Error(t, err)
	assert.Equal(t, "", observer.Current())

	err = observer.Login(context.Background(), LoginOptions{AuthURL: server.URL + "/", Email: "ann", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, "tok-ann", observer.Current())

	observer.Logout()
	assert.Equal(t, []string{"", "tok-ann", ""}, published)
}
