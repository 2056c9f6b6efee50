package cache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	gocache "github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/marshaler"
	"github.com/eko/gocache/lib/v4/store"
	ristretto_store "github.com/eko/gocache/store/ristretto/v4"
)

// TagPosts marks every cached post listing; any post mutation invalidates
// the whole group.
const TagPosts = "posts"

// Store is a small in-process read cache for hot public listings that are
// identical for every caller (featured, generation connection).
type Store struct {
	cache   *gocache.Cache[any]
	marshal *marshaler.Marshaler
}

func New() (*Store, error) {
	r, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     32 << 20, // 32 MiB
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	c := gocache.New[any](ristretto_store.NewRistretto(r))
	return &Store{cache: c, marshal: marshaler.New(c)}, nil
}

// Get decodes the cached entry into dst and returns it, or an error on a
// miss.
func (s *Store) Get(ctx context.Context, key string, dst any) (any, error) {
	return s.marshal.Get(ctx, key, dst)
}

func (s *Store) Set(ctx context.Context, key string, value any, ttl time.Duration, tags ...string) {
	// Cache writes are best effort; a failed Set only costs a recompute.
	_ = s.marshal.Set(ctx, key, value, store.WithExpiration(ttl), store.WithTags(tags))
}

func (s *Store) Invalidate(ctx context.Context, tags ...string) {
	_ = s.cache.Invalidate(ctx, store.WithInvalidateTags(tags))
}
