package devserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/gorilla/mux"
)

type LoginResponseBody struct {
	IDToken string `json:"idToken"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response: %v", err)
	}
}

func HandleLogin(authenticator Authenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.FormValue("email")
		password := r.FormValue("password")
		if email == "" {
			http.Error(w, "Missing email", http.StatusBadRequest)
			return
		}
		if password == "" {
			http.Error(w, "Missing password", http.StatusBadRequest)
			return
		}

		token, err := authenticator.Login(r.Context(), email, password)
		if err != nil {
			if errors.Is(err, ErrInvalidCredentials) {
				http.Error(w, "Invalid credentials", http.StatusBadRequest)
				return
			}
			logger.Error("failed to login: %v", err)
			http.Error(w, "Failed to login", http.StatusInternalServerError)
			return
		}

		writeJSON(w, &LoginResponseBody{IDToken: token})
	}
}

func HandleDeck(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, store.Deck().Tiles())
	}
}

func HandleDashboard(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			logger.Error("failed to get claims from context")
			http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
			return
		}
		playerID := types.PlayerID(claims.UID)
		writeJSON(w, &types.Dashboard{
			PlayerID: playerID,
			Games:    store.GamesOf(playerID),
		})
	}
}

func HandleGetGame(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			logger.Error("failed to get claims from context")
			http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
			return
		}

		playerID := types.PlayerID(r.URL.Query().Get("player_id"))
		if playerID == "" {
			playerID = types.PlayerID(claims.UID)
		}
		if playerID != types.PlayerID(claims.UID) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		g, ok := store.Game(types.GameID(mux.Vars(r)["gameId"]))
		if !ok || seatOf(g, playerID) < 0 {
			http.Error(w, "Game not found", http.StatusNotFound)
			return
		}
		writeJSON(w, g.SummaryFor(playerID))
	}
}

// HandleCommand applies a command and pushes the new state to every socket
// of the game before answering.
func HandleCommand(store *Store, hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := claimsFromContext(r.Context())
		if !ok {
			logger.Error("failed to get claims from context")
			http.Error(w, "Failed to get user from context", http.StatusInternalServerError)
			return
		}

		vars := mux.Vars(r)
		command := types.Command(vars["command"])
		if !command.Valid() {
			http.Error(w, "Unknown command", http.StatusNotFound)
			return
		}

		req := CommandRequest{}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
		if req.PlayerID != types.PlayerID(claims.UID) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		g, err := store.Apply(types.GameID(vars["gameId"]), command, req)
		if err != nil {
			requestErr := &RequestError{}
			if errors.As(err, &requestErr) {
				logger.Debug("rejected %s from %s: %v", command, req.PlayerID, err)
				http.Error(w, requestErr.Message, requestErr.Status)
				return
			}
			logger.Error("failed to apply %s: %v", command, err)
			http.Error(w, "Failed to apply command", http.StatusInternalServerError)
			return
		}
		logger.Debug("Applied %s from %s, game %s is at version %d", command, req.PlayerID, g.ID, g.Version)

		hub.Publish(g)

		if command == types.CommandSetSettings {
			writeJSON(w, g.Settings)
			return
		}
		writeJSON(w, g.SummaryFor(req.PlayerID))
	}
}

// HandleWebSocket authenticates with the token query parameter, since
// browsers cannot set headers on a websocket request.
func (s *Server) HandleWebSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		gameID := types.GameID(query.Get("game_id"))
		playerID := types.PlayerID(query.Get("player_id"))

		claims, err := s.auth.VerifyToken(r.Context(), query.Get("token"))
		if err != nil {
			logger.Debug("failed to verify ID token: %v", err)
			http.Error(w, "failed to verify ID token", http.StatusUnauthorized)
			return
		}

		g, ok := s.store.Game(gameID)
		if !ok {
			http.Error(w, "Game not found", http.StatusNotFound)
			return
		}
		if playerID != "" && (playerID != types.PlayerID(claims.UID) || seatOf(g, playerID) < 0) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		s.hub.Serve(w, r, gameID, playerID)
	}
}
