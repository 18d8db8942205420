package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	mocks "github.com/cbodonnell/tilesync/mocks/github.com/cbodonnell/tilesync/pkg/repositories"
	"github.com/cbodonnell/tilesync/pkg/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRestore(t *testing.T) {
	ctx := context.Background()
	repository := repositories.NewMemoryRepository()

	token, err := Restore(ctx, repository, repositories.DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "", token)

	require.NoError(t, repository.SaveToken(ctx, repositories.DefaultTokenKey, "tok-1"))
	token, err = Restore(ctx, repository, repositories.DefaultTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	failing := mocks.NewRepository(t)
	failing.On("LoadToken", mock.Anything, "k").Return("", errors.New("disk on fire"))
	_, err = Restore(ctx, failing, "k")
	assert.Error(t, err)
}

func TestPersistenceWorker_WritesThrough(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repository := mocks.NewRepository(t)
	saved := make(chan string, 4)
	deleted := make(chan struct{}, 4)
	repository.On("SaveToken", mock.Anything, repositories.DefaultTokenKey, "tok-new").
		Run(func(args mock.Arguments) { saved <- args.String(2) }).
		Return(nil).Once()
	repository.On("DeleteToken", mock.Anything, repositories.DefaultTokenKey).
		Run(func(args mock.Arguments) { deleted <- struct{}{} }).
		Return(nil).Once()

	observer := NewObserver("tok-old")
	worker := NewPersistenceWorker(NewPersistenceWorkerOptions{
		Repository: repository,
		Persisted:  "tok-old",
	})
	go worker.Start(ctx)
	unsubscribe := worker.Attach(observer)
	defer unsubscribe()

	observer.Publish("tok-new")
	select {
	case token := <-saved:
		assert.Equal(t, "tok-new", token)
	case <-time.After(time.Second):
		t.Fatal("token was not saved")
	}

	observer.Publish("")
	select {
	case <-deleted:
	case <-time.After(time.Second):
		t.Fatal("token was not deleted")
	}
}

func TestPersistenceWorker_StoppedWorkerDoesNotBlockPublish(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repository := mocks.NewRepository(t)
	repository.On("SaveToken", mock.Anything, repositories.DefaultTokenKey, "tok-19").Return(nil).Once()

	observer := NewObserver("")
	worker := NewPersistenceWorker(NewPersistenceWorkerOptions{Repository: repository})
	worker.Start(ctx)
	worker.Attach(observer)

	var seen []string
	observer.Subscribe(func(token string) {
		seen = append(seen, token)
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			observer.Publish(fmt.Sprintf("tok-%d", i))
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on the stopped worker")
	}
	require.Len(t, seen, 21)
	assert.Equal(t, "tok-19", seen[20])

	// pending writes coalesce to the newest token
	worker.Flush(context.Background())
	worker.Flush(context.Background())
}

func TestPersistenceWorker_FlushWritesPendingLogout(t *testing.T) {
	repository := mocks.NewRepository(t)
	repository.On("DeleteToken", mock.Anything, repositories.DefaultTokenKey).Return(nil).Once()

	observer := NewObserver("tok-1")
	worker := NewPersistenceWorker(NewPersistenceWorkerOptions{
		Repository: repository,
		Persisted:  "tok-1",
	})
	worker.Attach(observer)

	observer.Logout()
	worker.Flush(context.Background())
}

func TestPersistenceWorker_SkipsUnchangedToken(t *testing.T) {
	ctx := context.Background()
	repository := mocks.NewRepository(t)

	worker := NewPersistenceWorker(NewPersistenceWorkerOptions{
		Repository: repository,
		Persisted:  "tok-1",
	})
	worker.persist(ctx, "tok-1")

	repository.AssertNotCalled(t, "SaveToken", mock.Anything, mock.Anything, mock.Anything)
}
