// Package registry keeps the metadata of uploaded resources.
package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/kart-io/legal-rag/internal/model"
)

// ErrNotFound is returned when a resource id is not registered.
var ErrNotFound = errors.New("resource not found")

// Registry maps resource ids to upload metadata.
type Registry interface {
	Put(ctx context.Context, r *model.Resource) error
	Get(ctx context.Context, id string) (*model.Resource, error)
	// List returns resources ordered by upload date, then id.
	List(ctx context.Context) ([]*model.Resource, error)
	Delete(ctx context.Context, id string) error
	// Lock serialises mutations on one id. The returned func releases the lock.
	Lock(id string) func()
	Close() error
}

func sortResources(rs []*model.Resource) {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].UploadDate.Equal(rs[j].UploadDate) {
			return rs[i].UploadDate.Before(rs[j].UploadDate)
		}
		return rs[i].ID < rs[j].ID
	})
}

// keyedMutex hands out one mutex per key and drops it once nobody holds or waits on it.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.Unlock()
			k.mu.Lock()
			m.refs--
			if m.refs == 0 {
				delete(k.locks, key)
			}
			k.mu.Unlock()
		})
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
