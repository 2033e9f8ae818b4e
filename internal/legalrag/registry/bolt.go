package registry

import (
	"context"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kart-io/legal-rag/internal/model"
	"github.com/kart-io/legal-rag/pkg/utils/json"
)

var bucketResources = []byte("resources")

// Bolt persists resources in a bbolt file so they survive restarts.
type Bolt struct {
	db    *bolt.DB
	locks *keyedMutex
}

var _ Registry = (*Bolt)(nil)

// NewBolt opens (or creates) the registry file at path.
func NewBolt(path string) (*Bolt, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt registry %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketResources)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &Bolt{db: db, locks: newKeyedMutex()}, nil
}

func (b *Bolt) Put(_ context.Context, r *model.Resource) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResources).Put([]byte(r.ID), data)
	})
}

func (b *Bolt) Get(_ context.Context, id string) (*model.Resource, error) {
	var r *model.Resource
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketResources).Get([]byte(id))
		if data == nil {
			return ErrNotFound
		}
		r = &model.Resource{}
		return json.Unmarshal(data, r)
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (b *Bolt) List(_ context.Context) ([]*model.Resource, error) {
	var out []*model.Resource
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketResources).ForEach(func(k, v []byte) error {
			r := &model.Resource{}
			if err := json.Unmarshal(v, r); err != nil {
				return fmt.Errorf("decode resource %s: %w", k, err)
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*model.Resource{}
	}
	sortResources(out)
	return out, nil
}

func (b *Bolt) Delete(_ context.Context, id string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketResources)
		if bkt.Get([]byte(id)) == nil {
			return ErrNotFound
		}
		return bkt.Delete([]byte(id))
	})
}

func (b *Bolt) Lock(id string) func() {
	return b.locks.Lock(id)
}

func (b *Bolt) Close() error {
	return b.db.Close()
}
