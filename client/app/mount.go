package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/cbodonnell/tilesync/client/network"
	"github.com/cbodonnell/tilesync/client/session"
	"github.com/cbodonnell/tilesync/pkg/game/types"
	"github.com/cbodonnell/tilesync/pkg/messages"
	"github.com/cbodonnell/tilesync/pkg/queue"
)

const DefaultMessageQueueSize = 256

type MountOptions struct {
	GameID types.GameID
	// PlayerID is optional for a user who holds a single seat
	PlayerID types.PlayerID
	// Queued defers pushed messages until Update is called instead of
	// applying them as they arrive
	Queued bool
	// QueueSize defaults to DefaultMessageQueueSize
	QueueSize int
}

// Session is a mounted game: the state model wired to its push connection.
type Session struct {
	Model      *session.Model
	Connection *network.Connection

	messages    queue.Queue[messages.ServerMessage]
	unsubscribe func()
	closeOnce   sync.Once
}

// Mount loads the summary of a game, connects to its push channel and
// returns the session wiring the two to one model. The connection is closed
// when the session token is cleared.
func (c *Context) Mount(ctx context.Context, opts MountOptions) (*Session, error) {
	deck, err := c.Deck(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load deck: %v", err)
	}

	summary, err := c.API.FetchGame(ctx, opts.GameID, opts.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to mount game %s: %w", opts.GameID, err)
	}

	model := session.NewModel(session.NewModelOptions{
		Requester: c.API,
		Deck:      deck,
		Rules:     c.Rules,
		Formatter: c.Formatter,
		Summary:   summary,
	})

	s := &Session{Model: model}
	onMessage := model.HandleMessage
	if opts.Queued {
		size := opts.QueueSize
		if size <= 0 {
			size = DefaultMessageQueueSize
		}
		s.messages = queue.NewInMemoryQueue[messages.ServerMessage](size)
		onMessage = func(msg messages.ServerMessage) {
			if err := s.messages.Enqueue(msg); err != nil {
				logger.Error("Failed to enqueue message for game %s: %v", opts.GameID, err)
			}
		}
	}

	playerID := opts.PlayerID
	if playerID == "" {
		playerID = summary.PlayerID
	}
	s.Connection = c.Network.Connect(opts.GameID, playerID, onMessage)

	// the first delivery replays the current token and is not a logout
	replayed := false
	s.unsubscribe = c.Credentials.Subscribe(func(token string) {
		if !replayed {
			replayed = true
			return
		}
		if token == "" {
			logger.Info("Session token cleared, closing connection to game %s", opts.GameID)
			s.Connection.Close()
		}
	})

	logger.Info("Mounted game %s as player %s at version %d", summary.ID, summary.PlayerID, summary.Version)
	return s, nil
}

// Update applies the pushed messages received since the last call and
// returns how many there were. It does nothing unless the session was
// mounted with Queued.
func (s *Session) Update() int {
	if s.messages == nil {
		return 0
	}
	pending := s.messages.ReadAllMessages()
	for _, msg := range pending {
		s.Model.HandleMessage(msg)
	}
	return len(pending)
}

// Close unmounts the session. Commands already in flight still complete.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.unsubscribe()
		err = s.Connection.Close()
		if s.messages != nil {
			s.messages.ClearQueue()
		}
	})
	return err
}
