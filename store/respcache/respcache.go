package respcache

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/halftrip/cachepurge"
)

const (
	defaultName = "response-cache"
	defaultSize = 512
	defaultTTL  = 10 * time.Minute
)

// Entry is a cached response.
type Entry struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Options configure a Cache.
type Options struct {
	Name string
	// Size is the entry limit of each bucket.
	Size int
	TTL  time.Duration
}

// Cache holds named buckets of network responses, the way a client keeps one cache per
// API version or asset kind. It implements cachepurge.Adapter.
type Cache struct {
	name string
	size int
	ttl  time.Duration

	mu      sync.Mutex
	buckets map[string]*Bucket
}

// New creates an empty cache.
func New(opts Options) *Cache {
	c := &Cache{
		name:    opts.Name,
		size:    opts.Size,
		ttl:     opts.TTL,
		buckets: map[string]*Bucket{},
	}
	if c.name == "" {
		c.name = defaultName
	}
	if c.size <= 0 {
		c.size = defaultSize
	}
	if c.ttl <= 0 {
		c.ttl = defaultTTL
	}
	return c
}

// Name implements cachepurge.Adapter.
func (c *Cache) Name() string {
	if c == nil {
		return defaultName
	}
	return c.name
}

// Open returns the named bucket, creating it when missing.
func (c *Cache) Open(name string) *Bucket {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.buckets[name]
	if !ok {
		b = &Bucket{name: name, lru: expirable.NewLRU[uint64, *Entry](c.size, nil, c.ttl)}
		c.buckets[name] = b
	}
	return b
}

// Buckets lists bucket names in sorted order.
func (c *Cache) Buckets() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.buckets))
	for name := range c.buckets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len counts live entries across buckets.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, b := range c.buckets {
		n += b.lru.Len()
	}
	return n
}

// Clear purges and deletes every bucket. A nil cache reports ErrUnavailable, the same
// as a runtime without a response cache.
func (c *Cache) Clear(context.Context) error {
	if c == nil {
		return cachepurge.NewClearError(defaultName, cachepurge.ErrUnavailable, errors.New("response cache not present"))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for name, b := range c.buckets {
		b.lru.Purge()
		delete(c.buckets, name)
	}
	return nil
}

// Bucket is one named LRU of responses keyed by request hash.
type Bucket struct {
	name string
	lru  *expirable.LRU[uint64, *Entry]
}

// Name returns the bucket name.
func (b *Bucket) Name() string { return b.name }

// Get returns the entry stored under key.
func (b *Bucket) Get(key uint64) (*Entry, bool) {
	return b.lru.Get(key)
}

// Put stores entry under key.
func (b *Bucket) Put(key uint64, entry *Entry) {
	b.lru.Add(key, entry)
}

// Len returns the number of live entries.
func (b *Bucket) Len() int {
	return b.lru.Len()
}
