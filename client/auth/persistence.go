package auth

import (
	"context"
	"sync"

	"github.com/cbodonnell/tilesync/pkg/log"
	"github.com/cbodonnell/tilesync/pkg/repositories"
)

var logger = log.Component("auth")

// Restore reads the persisted token, returning "" when there is none.
func Restore(ctx context.Context, repository repositories.Repository, key string) (string, error) {
	token, err := repository.LoadToken(ctx, key)
	if err != nil {
		if repositories.IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return token, nil
}

// PersistenceWorker writes published tokens through to the repository:
// non-empty tokens are saved, the empty token deletes the key. Publishing
// never waits for storage; tokens published while a write is pending
// coalesce, so only the newest one is written.
type PersistenceWorker struct {
	repository repositories.Repository
	key        string

	lock       sync.Mutex
	pending    string
	hasPending bool
	signal     chan struct{}

	// writeLock serializes writes between Start and Flush
	writeLock sync.Mutex
	last      string
}

type NewPersistenceWorkerOptions struct {
	Repository repositories.Repository
	// Key defaults to repositories.DefaultTokenKey
	Key string
	// Persisted is the token already in storage, so the replayed value on
	// subscribe is not written back.
	Persisted string
}

func NewPersistenceWorker(opts NewPersistenceWorkerOptions) *PersistenceWorker {
	key := opts.Key
	if key == "" {
		key = repositories.DefaultTokenKey
	}
	return &PersistenceWorker{
		repository: opts.Repository,
		key:        key,
		signal:     make(chan struct{}, 1),
		last:       opts.Persisted,
	}
}

// Attach subscribes the worker to observer.
func (w *PersistenceWorker) Attach(observer *Observer) (unsubscribe func()) {
	return observer.Subscribe(func(token string) {
		w.lock.Lock()
		w.pending = token
		w.hasPending = true
		w.lock.Unlock()

		select {
		case w.signal <- struct{}{}:
		default:
		}
	})
}

// Start writes pending tokens until ctx is done.
func (w *PersistenceWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.signal:
			w.Flush(ctx)
		}
	}
}

// Flush writes the pending token, if any, before returning. Call it on
// shutdown so a token published just before exit is not lost.
func (w *PersistenceWorker) Flush(ctx context.Context) {
	w.writeLock.Lock()
	defer w.writeLock.Unlock()

	w.lock.Lock()
	token, ok := w.pending, w.hasPending
	w.hasPending = false
	w.lock.Unlock()

	if ok {
		w.persist(ctx, token)
	}
}

func (w *PersistenceWorker) persist(ctx context.Context, token string) {
	if token == w.last {
		return
	}

	if token == "" {
		if err := w.repository.DeleteToken(ctx, w.key); err != nil {
			logger.Error("Failed to delete token: %v", err)
			return
		}
		logger.Debug("Removed persisted token")
	} else {
		if err := w.repository.SaveToken(ctx, w.key, token); err != nil {
			logger.Error("Failed to save token: %v", err)
			return
		}
		logger.Debug("Persisted token")
	}
	w.last = token
}
