package releasestore

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/immune-gmbh/firmware-publisher/pkg/lockmap"
)

// Cache is used to avoid repeating reads from the backend.
type Cache interface {
	// Get returns the cached bytes for the key, if any.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set tries to store the bytes. It is up to the implementation to decide
	// whether to actually store them.
	Set(ctx context.Context, key string, b []byte)
}

// Cached is a read-through cache in front of another Store.
//
// Cache keys include a generation number which is incremented on every
// write and on Invalidate, so a value read before a write is never
// served after it. Concurrent misses of the same key are collapsed into
// a single backend read.
type Cached struct {
	Backend Store
	Cache   Cache

	generation atomic.Uint64
	singleRead *lockmap.LockMap[string]
}

var _ Store = (*Cached)(nil)

// NewCached returns a Cached wrapping the backend.
func NewCached(backend Store, cache Cache) *Cached {
	return &Cached{
		Backend:    backend,
		Cache:      cache,
		singleRead: lockmap.NewLockMap[string](),
	}
}

func (c *Cached) key(name string) string {
	return fmt.Sprintf("%s@%d", name, c.generation.Load())
}

// Invalidate drops everything cached so far.
func (c *Cached) Invalidate() {
	c.generation.Add(1)
}

type readResult struct {
	b   []byte
	err error
}

func (c *Cached) read(ctx context.Context, name string, readFn func() ([]byte, error)) ([]byte, error) {
	key := c.key(name)
	if b, ok := c.Cache.Get(ctx, key); ok {
		return b, nil
	}

	unlocker := c.singleRead.Lock(key)
	defer unlocker.Unlock()
	if result, ok := unlocker.UserData.(readResult); ok {
		return result.b, result.err
	}

	b, err := readFn()
	unlocker.UserData = readResult{b: b, err: err}
	if err != nil {
		return nil, err
	}
	c.Cache.Set(ctx, key, b)
	return b, nil
}

func (c *Cached) ReadVersion(ctx context.Context) (string, error) {
	b, err := c.read(ctx, "version", func() ([]byte, error) {
		version, err := c.Backend.ReadVersion(ctx)
		return []byte(version), err
	})
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (c *Cached) ReadFirmware(ctx context.Context) ([]byte, error) {
	return c.read(ctx, "firmware", func() ([]byte, error) {
		return c.Backend.ReadFirmware(ctx)
	})
}

func (c *Cached) WriteRelease(ctx context.Context, version string, firmware []byte) error {
	// a failed write could still have modified a part of the release
	defer c.Invalidate()
	return c.Backend.WriteRelease(ctx, version, firmware)
}

func (c *Cached) Close() error {
	return c.Backend.Close()
}
