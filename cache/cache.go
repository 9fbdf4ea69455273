package cache

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"
	"golang.org/x/sync/singleflight"

	"github.com/xeptore/beater/config"
	"github.com/xeptore/beater/spotify/types"
)

var DefaultTrackMetaTTL = 1 * time.Hour

// noExpiry stands in for "never expires" since ccache requires a TTL.
const noExpiry = 100 * 365 * 24 * time.Hour

type Cache struct {
	Content   *ContentCache
	TrackMeta *TrackMetaCache
}

func New(conf config.DownloaderCache) *Cache {
	return &Cache{
		Content:   NewContentCache(conf.MaxEntries, conf.TTL.Duration),
		TrackMeta: NewTrackMetaCache(),
	}
}

func (c *Cache) Stop() {
	c.Content.c.Stop()
	c.TrackMeta.c.Stop()
}

// ContentCache maps file ids to decrypted audio. Population of a single key
// is never run concurrently, while different keys proceed independently.
type ContentCache struct {
	c     *ccache.Cache[[]byte]
	ttl   time.Duration
	group singleflight.Group

	mu      sync.Mutex
	flights map[types.FileID]*flight
}

// flight is the population context shared by every caller waiting on a key.
// It is cancelled once the last of them gives up.
type flight struct {
	ctx     context.Context //nolint:containedctx
	cancel  context.CancelFunc
	waiters int
}

// NewContentCache creates a cache holding at most maxEntries items. Zero
// maxEntries or ttl disable eviction and expiry respectively.
func NewContentCache(maxEntries int64, ttl time.Duration) *ContentCache {
	if maxEntries == 0 {
		maxEntries = math.MaxInt64
	}

	if ttl == 0 {
		ttl = noExpiry
	}

	c := ccache.New(
		ccache.Configure[[]byte]().
			MaxSize(maxEntries).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &ContentCache{ //nolint:exhaustruct
		c:       c,
		ttl:     ttl,
		group:   singleflight.Group{},
		flights: map[types.FileID]*flight{},
	}
}

func (c *ContentCache) lookup(k types.FileID) ([]byte, bool) {
	item := c.c.Get(string(k))
	if nil == item || item.Expired() {
		return nil, false
	}

	return item.Value(), true
}

// Fetch returns a copy of the cached bytes for k, calling populate only on a
// miss. Failed populations are not cached.
//
// populate receives a context that stays alive as long as at least one caller
// still waits for k, so a caller giving up does not fail the others. ctx only
// bounds how long this caller waits.
func (c *ContentCache) Fetch(
	ctx context.Context,
	k types.FileID,
	populate func(ctx context.Context) ([]byte, error),
) ([]byte, error) {
	if v, ok := c.lookup(k); ok {
		return bytes.Clone(v), nil
	}

	f := c.join(ctx, k)
	defer c.leave(k, f)

	ch := c.group.DoChan(string(k), func() (any, error) {
		if v, ok := c.lookup(k); ok {
			return v, nil
		}

		v, err := populate(f.ctx)
		if nil != err {
			return nil, err
		}
		c.c.Set(string(k), v, c.ttl)

		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for content: %w", ctx.Err())
	case res := <-ch:
		if nil != res.Err {
			return nil, fmt.Errorf("populate content: %w", res.Err)
		}

		return bytes.Clone(res.Val.([]byte)), nil //nolint:forcetypeassert
	}
}

func (c *ContentCache) join(ctx context.Context, k types.FileID) *flight {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.flights[k]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel, waiters: 0}
		c.flights[k] = f
	}
	f.waiters++

	return f
}

func (c *ContentCache) leave(k types.FileID, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f.waiters--
	if f.waiters > 0 {
		return
	}

	f.cancel()
	if c.flights[k] == f {
		delete(c.flights, k)
		// A population still running on the cancelled context must not be
		// joined by later callers.
		c.group.Forget(string(k))
	}
}

func (c *ContentCache) Contains(k types.FileID) bool {
	_, ok := c.lookup(k)
	return ok
}

func (c *ContentCache) Len() int {
	return c.c.ItemCount()
}

type TrackMetaCache struct {
	c     *ccache.Cache[*types.TrackMeta]
	group singleflight.Group
}

func NewTrackMetaCache() *TrackMetaCache {
	c := ccache.New(
		ccache.Configure[*types.TrackMeta]().
			MaxSize(10_000).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &TrackMetaCache{c: c, group: singleflight.Group{}}
}

func (c *TrackMetaCache) Fetch(
	k string,
	ttl time.Duration,
	fetch func() (*types.TrackMeta, error),
) (*types.TrackMeta, error) {
	v, err, _ := c.group.Do(k, func() (any, error) {
		item, err := c.c.Fetch(k, ttl, fetch)
		if nil != err {
			return nil, err
		}

		return item.Value(), nil
	})
	if nil != err {
		return nil, fmt.Errorf("fetch track meta: %w", err)
	}

	return v.(*types.TrackMeta), nil //nolint:forcetypeassert
}
