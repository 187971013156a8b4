// Package dircache is the path-keyed directory listing cache: the
// bounded PathCache, the Populator that fills it lazily from the drive,
// and the Controller that clears it.
package dircache

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"
	"go.uber.org/zap"

	"github.com/drivedav/drivedav/internal/drive"
	"github.com/drivedav/drivedav/internal/logging"
	"github.com/drivedav/drivedav/internal/metrics"
	"github.com/drivedav/drivedav/internal/tree"
)

const (
	DefaultMaxEntries = 1000
	DefaultTTL        = 600 * time.Second
	DefaultShards     = 16
)

// PathCache maps canonical directory paths to their full child listing.
//
// It is bounded by entry count (least recently used listing evicted) and
// by an idle timeout: a listing not read for the TTL is dropped on its
// next lookup. Keys are spread over shards,
// each with its own lock, so lookups of unrelated paths do not contend.
// With more than one shard the capacity bound is per shard, so the total
// may briefly sit a little under MaxEntries before the first eviction.
type PathCache struct {
	shards []*shard
	ttl    time.Duration
	now    func() time.Time
}

type shard struct {
	mu  sync.Mutex
	lru *simplelru.LRU[string, *listing]
}

// listing is never modified after Put except for lastAccess, which is
// guarded by the shard lock.
type listing struct {
	entries    []drive.Entry
	lastAccess time.Time
}

// Option configures a PathCache.
type Option func(*options)

type options struct {
	shards int
	now    func() time.Time
}

// WithShards sets the number of shards. One shard makes the capacity exact.
func WithShards(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shards = n
		}
	}
}

// WithClock replaces time.Now for TTL checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates a cache holding at most maxEntries listings, each dropped
// once it has gone unread for ttl. Non-positive values select the defaults.
func New(maxEntries int, ttl time.Duration, opts ...Option) *PathCache {
	o := options{shards: DefaultShards, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if o.shards > maxEntries {
		o.shards = maxEntries
	}

	perShard := (maxEntries + o.shards - 1) / o.shards
	c := &PathCache{
		shards: make([]*shard, o.shards),
		ttl:    ttl,
		now:    o.now,
	}
	for i := range c.shards {
		// Only fails for a non-positive size.
		l, _ := simplelru.NewLRU[string, *listing](perShard, nil)
		c.shards[i] = &shard{lru: l}
	}
	return c
}

func (c *PathCache) shardFor(p string) *shard {
	return c.shards[xxhash.Sum64String(p)%uint64(len(c.shards))]
}

// Get returns a copy of the listing cached for path and marks it as
// accessed. Listings idle for longer than the TTL are dropped and
// reported as a miss.
func (c *PathCache) Get(p string) ([]drive.Entry, bool) {
	p = tree.Canonical(p)
	s := c.shardFor(p)
	now := c.now()

	s.mu.Lock()
	l, ok := s.lru.Get(p)
	if ok && now.Sub(l.lastAccess) > c.ttl {
		s.lru.Remove(p)
		s.mu.Unlock()
		metrics.RecordCacheLookup("expired")
		logging.Debug("dircache: expired", zap.String("path", p))
		return nil, false
	}
	if ok {
		l.lastAccess = now
	}
	s.mu.Unlock()

	if !ok {
		metrics.RecordCacheLookup("miss")
		return nil, false
	}
	metrics.RecordCacheLookup("hit")
	return cloneEntries(l.entries), true
}

// Put stores the complete listing of path, replacing any previous one.
// Readers see either the old listing or the new one, never a mix.
func (c *PathCache) Put(p string, entries []drive.Entry) {
	p = tree.Canonical(p)
	l := &listing{entries: cloneEntries(entries), lastAccess: c.now()}
	s := c.shardFor(p)

	s.mu.Lock()
	evicted := s.lru.Add(p, l)
	s.mu.Unlock()

	if evicted {
		metrics.RecordCacheEviction()
	}
	logging.Debug("dircache: put",
		zap.String("path", p),
		zap.Int("entries", len(entries)),
		zap.Bool("evicted", evicted))
}

// Invalidate removes the listing of path, if any.
func (c *PathCache) Invalidate(p string) {
	p = tree.Canonical(p)
	s := c.shardFor(p)
	s.mu.Lock()
	s.lru.Remove(p)
	s.mu.Unlock()
}

// InvalidateParent removes the listing of the directory containing path.
// It does nothing for the root.
func (c *PathCache) InvalidateParent(p string) {
	if parent, ok := tree.Parent(p); ok {
		c.Invalidate(parent)
	}
}

// InvalidateAll empties the cache.
func (c *PathCache) InvalidateAll() {
	for _, s := range c.shards {
		s.mu.Lock()
		s.lru.Purge()
		s.mu.Unlock()
	}
}

// Len returns the number of listings held, expired ones included until
// they are next looked up.
func (c *PathCache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.Lock()
		n += s.lru.Len()
		s.mu.Unlock()
	}
	return n
}

func cloneEntries(entries []drive.Entry) []drive.Entry {
	if entries == nil {
		return []drive.Entry{}
	}
	out := make([]drive.Entry, len(entries))
	copy(out, entries)
	return out
}
