package repositories

import (
	"context"
	"sync"
)

type MemoryRepository struct {
	lock   sync.RWMutex
	values map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		values: make(map[string]string),
	}
}

func (r *MemoryRepository) Close(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) LoadToken(ctx context.Context, key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	token, ok := r.values[key]
	if !ok {
		return "", &ErrNotFound{Key: key}
	}
	return token, nil
}

func (r *MemoryRepository) SaveToken(ctx context.Context, key string, token string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.values[key] = token
	return nil
}

func (r *MemoryRepository) DeleteToken(ctx context.Context, key string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	delete(r.values, key)
	return nil
}
