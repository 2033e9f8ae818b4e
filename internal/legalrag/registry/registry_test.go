package registry

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/legal-rag/internal/model"
)

func backends(t *testing.T) map[string]func(t *testing.T) Registry {
	return map[string]func(t *testing.T) Registry{
		"memory": func(*testing.T) Registry { return NewMemory() },
		"bolt": func(t *testing.T) Registry {
			b, err := NewBolt(filepath.Join(t.TempDir(), "registry.db"))
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })
			return b
		},
	}
}

func TestRegistry_CRUD(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	for name, newRegistry := range backends(t) {
		t.Run(name, func(t *testing.T) {
			r := newRegistry(t)
			ctx := context.Background()

			require.NoError(t, r.Put(ctx, &model.Resource{ID: "b", Name: "lease.pdf", Type: model.ResourceTypeDocument, UploadDate: base, Size: 10}))
			require.NoError(t, r.Put(ctx, &model.Resource{ID: "a", Name: "faq.csv", Type: model.ResourceTypeFAQ, UploadDate: base, Size: 20}))
			require.NoError(t, r.Put(ctx, &model.Resource{ID: "c", Name: "old.docx", Type: model.ResourceTypeDocument, UploadDate: base.Add(-time.Hour), Size: 30}))

			got, err := r.Get(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, "lease.pdf", got.Name)
			assert.True(t, base.Equal(got.UploadDate))

			list, err := r.List(ctx)
			require.NoError(t, err)
			ids := make([]string, len(list))
			for i, res := range list {
				ids[i] = res.ID
			}
			assert.Equal(t, []string{"c", "a", "b"}, ids)

			require.NoError(t, r.Delete(ctx, "a"))
			_, err = r.Get(ctx, "a")
			assert.ErrorIs(t, err, ErrNotFound)
			assert.ErrorIs(t, r.Delete(ctx, "a"), ErrNotFound)

			list, err = r.List(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 2)
		})
	}
}

func TestRegistry_EmptyList(t *testing.T) {
	for name, newRegistry := range backends(t) {
		t.Run(name, func(t *testing.T) {
			list, err := newRegistry(t).List(context.Background())
			require.NoError(t, err)
			assert.NotNil(t, list)
			assert.Empty(t, list)
		})
	}
}

func TestMemory_GetReturnsCopy(t *testing.T) {
	r := NewMemory()
	ctx := context.Background()
	require.NoError(t, r.Put(ctx, &model.Resource{ID: "x", Name: "a.pdf"}))

	got, err := r.Get(ctx, "x")
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := r.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", again.Name)
}

func TestBolt_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.db")
	ctx := context.Background()

	b, err := NewBolt(path)
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, &model.Resource{ID: "keep", Name: "statute.pdf", Type: model.ResourceTypeDocument}))
	require.NoError(t, b.Close())

	b, err = NewBolt(path)
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	got, err := b.Get(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, model.ResourceTypeDocument, got.Type)
}

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	k := newKeyedMutex()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock("id")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Equal(t, 0, k.size())
}

func TestKeyedMutex_DifferentKeysDoNotBlock(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlock := k.Lock("b")
		unlock()
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key blocked")
	}
}
