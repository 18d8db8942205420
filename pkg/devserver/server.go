// Package devserver is a local stand-in for the remote game authority. It
// serves the command and read endpoints and the push channel the client
// uses, backed by an in-memory Store.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/cbodonnell/tilesync/pkg/log"
	"github.com/gorilla/mux"
)

var logger = log.Component("devserver")

type Server struct {
	server *http.Server
	store  *Store
	hub    *Hub
	auth   AuthProvider
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewServerOptions struct {
	Port         int
	TLS          *TLSConfig
	AuthProvider AuthProvider
	Store        *Store
	// CompressFrames pushes zstd-compressed binary frames instead of text
	CompressFrames bool
}

func NewServer(opts NewServerOptions) *Server {
	s := &Server{
		store: opts.Store,
		hub:   NewHub(opts.CompressFrames),
		auth:  opts.AuthProvider,
		tls:   opts.TLS,
	}

	authMiddleware := NewAuthMiddleware(opts.AuthProvider)

	r := mux.NewRouter()
	if authenticator, ok := opts.AuthProvider.(Authenticator); ok {
		r.HandleFunc("/login", HandleLogin(authenticator)).Methods(http.MethodPost)
	}
	r.HandleFunc("/v1/deck", HandleDeck(s.store)).Methods(http.MethodGet)
	r.HandleFunc("/v1/ws", s.HandleWebSocket()).Methods(http.MethodGet)

	user := r.PathPrefix("/v1/user").Subrouter()
	user.Use(authMiddleware)
	user.HandleFunc("/dashboard", HandleDashboard(s.store)).Methods(http.MethodGet)
	user.HandleFunc("/game/{gameId}", HandleGetGame(s.store)).Methods(http.MethodGet)
	user.HandleFunc("/game/{gameId}/{command}", HandleCommand(s.store, s.hub)).Methods(http.MethodPost)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: r,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Store() *Store {
	return s.store
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until Stop is called.
func (s *Server) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		logger.Info("Dev server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		logger.Info("Dev server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			logger.Info("Dev server closed")
			return
		}
		logger.Error("Dev server error: %v", err)
	}
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
