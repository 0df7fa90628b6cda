package lockmap

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockMap(t *testing.T) {
	m := NewLockMap[int]()

	var (
		wg      sync.WaitGroup
		corrupt atomic.Int64
	)
	for i := 0; i < 10000; i++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()

			l := m.Lock(k)
			defer l.Unlock()

			// check nobody else will corrupt UserData:
			if l.UserData != nil {
				corrupt.Add(1)
			}
			l.UserData = 1
			runtime.Gosched()
			if l.UserData == nil {
				corrupt.Add(1)
			}
			l.UserData = nil
		}(i % 1000)
	}

	wg.Wait()
	require.Zero(t, corrupt.Load())
	require.Zero(t, m.Len())
}

func TestLockMapSharedUserData(t *testing.T) {
	m := NewLockMap[string]()

	first := m.Lock("firmware")
	require.Equal(t, 1, m.Len())

	gotUserData := make(chan any)
	go func() {
		l := m.Lock("firmware")
		defer l.Unlock()
		gotUserData <- l.UserData
	}()

	// other keys are not blocked
	other := m.Lock("version")
	require.Equal(t, 2, m.Len())
	other.Unlock()

	require.Eventually(t, func() bool {
		m.globalLock.Lock()
		defer m.globalLock.Unlock()
		return m.lockMap["firmware"].refCount == 2
	}, time.Second, time.Millisecond)

	first.UserData = "loaded"
	first.Unlock()
	require.Equal(t, "loaded", <-gotUserData)

	require.Eventually(t, func() bool { return m.Len() == 0 }, time.Second, time.Millisecond)

	// released keys start from scratch
	l := m.Lock("firmware")
	require.Nil(t, l.UserData)
	l.Unlock()
}
