// Copyright 2023 Meta Platforms, Inc. and affiliates.
//
// Redistribution and use in source and binary forms, with or without modification, are permitted provided that the following conditions are met:
//
// 1. Redistributions of source code must retain the above copyright notice, this list of conditions and the following disclaimer.
//
// 2. Redistributions in binary form must reproduce the above copyright notice, this list of conditions and the following disclaimer in the documentation and/or other materials provided with the distribution.
//
// 3. Neither the name of the copyright holder nor the names of its contributors may be used to endorse or promote products derived from this software without specific prior written permission.
//
// THIS SOFTWARE IS PROVIDED BY THE COPYRIGHT HOLDERS AND CONTRIBUTORS "AS IS" AND ANY EXPRESS OR IMPLIED WARRANTIES, INCLUDING, BUT NOT LIMITED TO, THE IMPLIED WARRANTIES OF MERCHANTABILITY AND FITNESS FOR A PARTICULAR PURPOSE ARE DISCLAIMED. IN NO EVENT SHALL THE COPYRIGHT HOLDER OR CONTRIBUTORS BE LIABLE FOR ANY DIRECT, INDIRECT, INCIDENTAL, SPECIAL, EXEMPLARY, OR CONSEQUENTIAL DAMAGES (INCLUDING, BUT NOT LIMITED TO, PROCUREMENT OF SUBSTITUTE GOODS OR SERVICES; LOSS OF USE, DATA, OR PROFITS; OR BUSINESS INTERRUPTION) HOWEVER CAUSED AND ON ANY THEORY OF LIABILITY, WHETHER IN CONTRACT, STRICT LIABILITY, OR TORT (INCLUDING NEGLIGENCE OR OTHERWISE) ARISING IN ANY WAY OUT OF THE USE OF THIS SOFTWARE, EVEN IF ADVISED OF THE POSSIBILITY OF SUCH DAMAGE.

package objcache

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/facebookincubator/go-belt/tool/logger"
)

const (
	itemSizeLimit = 64 * (1 << 20) // 64MiB
	itemTTL       = time.Minute * 10
)

// Cache is an in-memory cost-bounded cache of byte slices.
type Cache struct {
	cache *ristretto.Cache
}

// New returns a Cache which keeps at most memoryLimit bytes.
func New(memoryLimit uint64) (*Cache, error) {
	cfg := &ristretto.Config{
		NumCounters: 1000,
		MaxCost:     int64(memoryLimit),
		BufferItems: 64,
		Metrics:     false,
	}
	cache, err := ristretto.NewCache(cfg)
	if err != nil {
		return nil, err
	}
	return &Cache{
		cache: cache,
	}, nil
}

// Get returns the cached bytes for the key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	obj, ok := c.cache.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := obj.([]byte)
	return b, ok
}

// Set tries to store the bytes under the key. It is up to the cache
// admission policy whether it will actually be stored, and the write becomes
// visible asynchronously (see Wait).
func (c *Cache) Set(ctx context.Context, key string, b []byte) {
	if len(b) > itemSizeLimit {
		logger.FromCtx(ctx).Debugf("not caching '%s': %d bytes is too big", key, len(b))
		return
	}

	c.cache.SetWithTTL(key, b, int64(len(b)), itemTTL)
}

// Wait blocks until all the buffered writes are applied.
func (c *Cache) Wait() {
	c.cache.Wait()
}

// Close stops the background goroutines of the cache.
func (c *Cache) Close() error {
	c.cache.Close()
	return nil
}
