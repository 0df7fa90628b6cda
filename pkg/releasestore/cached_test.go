package releasestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/immune-gmbh/firmware-publisher/pkg/objcache"
)

type countingStore struct {
	Store

	locker        sync.Mutex
	versionReads  int
	firmwareReads int
}

func (s *countingStore) ReadVersion(ctx context.Context) (string, error) {
	s.locker.Lock()
	s.versionReads++
	s.locker.Unlock()
	return s.Store.ReadVersion(ctx)
}

func (s *countingStore) ReadFirmware(ctx context.Context) ([]byte, error) {
	s.locker.Lock()
	s.firmwareReads++
	s.locker.Unlock()
	return s.Store.ReadFirmware(ctx)
}

func TestCached(t *testing.T) {
	ctx := context.Background()

	fs, err := newFS(t.TempDir(), false)
	require.NoError(t, err)
	backend := &countingStore{Store: fs}

	cache, err := objcache.New(1 << 20)
	require.NoError(t, err)
	defer cache.Close()

	stor := NewCached(backend, cache)
	testStore(t, stor)

	t.Run("reads_are_cached", func(t *testing.T) {
		require.NoError(t, stor.WriteRelease(ctx, "01.02.125", []byte("fw125")))
		backend.versionReads, backend.firmwareReads = 0, 0

		for i := 0; i < 3; i++ {
			version, err := stor.ReadVersion(ctx)
			require.NoError(t, err)
			require.Equal(t, "01.02.125", version)

			firmware, err := stor.ReadFirmware(ctx)
			require.NoError(t, err)
			require.Equal(t, []byte("fw125"), firmware)

			cache.Wait()
		}
		require.Equal(t, 1, backend.versionReads)
		require.Equal(t, 1, backend.firmwareReads)
	})

	t.Run("write_invalidates", func(t *testing.T) {
		require.NoError(t, stor.WriteRelease(ctx, "01.02.126", []byte("fw126")))

		version, err := stor.ReadVersion(ctx)
		require.NoError(t, err)
		require.Equal(t, "01.02.126", version)
	})

	t.Run("external_change_needs_invalidate", func(t *testing.T) {
		_, err := stor.ReadVersion(ctx)
		require.NoError(t, err)
		cache.Wait()

		require.NoError(t, fs.WriteRelease(ctx, "01.02.127", []byte("fw127")))
		version, err := stor.ReadVersion(ctx)
		require.NoError(t, err)
		require.Equal(t, "01.02.126", version)

		stor.Invalidate()
		version, err = stor.ReadVersion(ctx)
		require.NoError(t, err)
		require.Equal(t, "01.02.127", version)
	})
}

type nopCache struct{}

func (nopCache) Get(ctx context.Context, key string) ([]byte, bool) { return nil, false }
func (nopCache) Set(ctx context.Context, key string, b []byte) {}

type blockingStore struct {
	countingStore
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) ReadFirmware(ctx context.Context) ([]byte, error) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.release
	return s.countingStore.ReadFirmware(ctx)
}

func TestCachedSingleRead(t *testing.T) {
	ctx := context.Background()

	fs, err := newFS(t.TempDir(), false)
	require.NoError(t, err)
	require.NoError(t, fs.WriteRelease(ctx, "01.02.125", []byte("fw125")))

	backend := &blockingStore{
		countingStore: countingStore{Store: fs},
		entered:       make(chan struct{}, 1),
		release:       make(chan struct{}),
	}
	stor := NewCached(backend, nopCache{})

	const readers = 10
	var wg sync.WaitGroup
	results := make(chan []byte, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			firmware, err := stor.ReadFirmware(ctx)
			if err == nil {
				results <- firmware
			}
		}()
	}

	<-backend.entered
	time.Sleep(100 * time.Millisecond)
	close(backend.release)
	wg.Wait()
	close(results)

	count := 0
	for firmware := range results {
		require.Equal(t, []byte("fw125"), firmware)
		count++
	}
	require.Equal(t, readers, count)
	require.Less(t, backend.firmwareReads, readers)
}
