package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/maphash"
	"log"
	"sync/atomic"
	"time"

	domain "github.com/khalidAdell/quick-task/domain/task"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// generationStripes bounds the invalidation counters kept per store.
const generationStripes = 64

// CachedStore puts a Redis cache-aside layer in front of another Store.
// Only single-task reads are cached; every write drops the cached snapshot.
//
// A fill that raced with a write must not leave the old snapshot behind.
// Writes bump a generation counter for the key's stripe before deleting
// the entry; a fill re-checks the generation after its SET and deletes
// its own entry when a write happened since the load began.
type CachedStore struct {
	Store
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	sfGroup singleflight.Group
	seed    maphash.Seed
	gens    [generationStripes]atomic.Uint64
}

var _ Store = (*CachedStore)(nil)

// NewCachedStore wraps inner with a cache held in client.
func NewCachedStore(inner Store, client *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		Store:  inner,
		client: client,
		prefix: "quicktask:task:",
		ttl:    ttl,
		seed:   maphash.MakeSeed(),
	}
}

func (s *CachedStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	key := s.prefix + id

	data, err := s.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var t domain.Task
		if err := json.Unmarshal(data, &t); err == nil {
			return &t, nil
		}
		log.Printf("[task] Cache entry for %s is corrupt, reloading", id)
	case !errors.Is(err, redis.Nil):
		log.Printf("[task] Cache error for %s: %v", id, err)
	}

	// The load is shared by every waiting caller, so it must not die with
	// the first one's context. Each caller still stops waiting on its own.
	ch := s.sfGroup.DoChan(id, func() (any, error) {
		return s.load(context.WithoutCancel(ctx), id)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Callers sharing a singleflight result must not share the pointer.
		return res.Val.(*domain.Task).Clone(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load reads id from the underlying store and fills the cache with it.
func (s *CachedStore) load(ctx context.Context, id string) (*domain.Task, error) {
	gen := s.generation(id)
	started := gen.Load()

	t, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := json.Marshal(t)
	if err != nil {
		return t, nil
	}
	key := s.prefix + id
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		log.Printf("[task] Warning: failed to cache task %s: %v", id, err)
		return t, nil
	}
	if gen.Load() != started {
		// A write landed while loading; the snapshot just cached may predate it.
		if err := s.client.Del(ctx, key).Err(); err != nil {
			log.Printf("[task] Warning: failed to drop racing cache fill for task %s: %v", id, err)
		}
	}
	return t, nil
}

func (s *CachedStore) generation(id string) *atomic.Uint64 {
	return &s.gens[maphash.String(s.seed, id)%generationStripes]
}

func (s *CachedStore) Update(ctx context.Context, t *domain.Task, expectedVersion int64) error {
	err := s.Store.Update(ctx, t, expectedVersion)
	s.invalidate(ctx, t.ID)
	return err
}

func (s *CachedStore) Delete(ctx context.Context, id string, expectedVersion int64) error {
	err := s.Store.Delete(ctx, id, expectedVersion)
	s.invalidate(ctx, id)
	return err
}

// Ping checks both the cache and the underlying store.
func (s *CachedStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	return s.Store.Ping(ctx)
}

func (s *CachedStore) Close() error {
	cacheErr := s.client.Close()
	if err := s.Store.Close(); err != nil {
		return err
	}
	return cacheErr
}

func (s *CachedStore) invalidate(ctx context.Context, id string) {
	s.generation(id).Add(1)
	if err := s.client.Del(context.WithoutCancel(ctx), s.prefix+id).Err(); err != nil {
		log.Printf("[task] Warning: failed to invalidate cached task %s: %v", id, err)
	}
}
