package cache

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultMinDiskSize is the payload size above which entries go to disk.
const DefaultMinDiskSize = 1024 * 10

// Entry is a cached asset
type Entry struct {
	Data      []byte
	MediaType string
	Charset   string
}

type item struct {
	data      []byte // nil while the payload lives on disk
	onDisk    bool
	mediaType string
	charset   string
}

// Cache holds retrieved assets for the lifetime of one conversion, keyed by
// fragment-less URL. Small payloads stay in memory; larger ones spill into an
// optional on-disk store. Each key is written at most once.
type Cache struct {
	mu          sync.Mutex
	items       map[string]*item
	minDiskSize int
	diskPath    string
	store       *diskStore
	logger      *zap.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithDiskStore enables the on-disk tier backed by the file at path.
func WithDiskStore(path string) Option {
	return func(c *Cache) { c.diskPath = path }
}

// WithMinDiskSize sets the size threshold for the on-disk tier.
func WithMinDiskSize(n int) Option {
	return func(c *Cache) { c.minDiskSize = n }
}

// WithLogger sets the logger used for tier failures.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New creates a cache. A disk store that fails to open is logged and the
// cache stays memory-only.
func New(opts ...Option) *Cache {
	c := &Cache{
		items:       make(map[string]*item),
		minDiskSize: DefaultMinDiskSize,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.diskPath != "" {
		store, err := openDiskStore(c.diskPath)
		if err != nil {
			c.logger.Warn("on-disk cache unavailable, keeping assets in memory",
				zap.String("path", c.diskPath), zap.Error(err))
		} else {
			c.store = store
		}
	}
	return c
}

// TempPath returns a fresh path for an on-disk store inside the system temp dir.
func TempPath() string {
	return filepath.Join(os.TempDir(), "monolith-"+uuid.NewString()+".db")
}

// Get returns the entry stored under key.
func (c *Cache) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key]
	if !ok {
		return Entry{}, false
	}
	if !it.onDisk {
		return Entry{Data: it.data, MediaType: it.mediaType, Charset: it.charset}, true
	}
	if c.store == nil {
		return Entry{}, false
	}

	data, err := c.store.get(key)
	if err != nil {
		c.logger.Warn("failed to read asset from disk cache", zap.String("url", key), zap.Error(err))
		return Entry{}, false
	}
	return Entry{Data: data, MediaType: it.mediaType, Charset: it.charset}, true
}

// Set stores data under key unless the key is already present.
func (c *Cache) Set(key string, data []byte, mediaType, charset string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.items[key]; exists {
		return
	}

	it := &item{mediaType: mediaType, charset: charset}
	if c.store != nil && len(data) > c.minDiskSize {
		if err := c.store.put(key, data); err != nil {
			c.logger.Warn("disk cache write failed, keeping asset in memory",
				zap.String("url", key), zap.Error(err))
			it.data = data
		} else {
			it.onDisk = true
		}
	} else {
		it.data = data
	}
	c.items[key] = it
}

// Contains reports whether key has been stored.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.items[key]
	return ok
}

// Len returns the number of stored entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.items)
}

// OnDisk reports whether the on-disk tier is active
func (c *Cache) OnDisk() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store != nil
}

// Destroy closes the on-disk store, overwrites its file with zeroes and
// removes it. Failures are logged; the cache stays usable for resident entries.
func (c *Cache) Destroy() {
	c.mu.Lock()
	store := c.store
	c.store = nil
	c.mu.Unlock()

	if store == nil {
		return
	}
	if err := store.close(); err != nil {
		c.logger.Warn("failed to close disk cache", zap.Error(err))
	}
	if err := wipe(store.path); err != nil {
		c.logger.Warn("failed to wipe disk cache", zap.String("path", store.path), zap.Error(err))
	}
}
