package lockmap

import (
	"sync"
)

// LockMap is a set of mutexes addressed by key. A mutex exists only
// while somebody holds or waits for it.
type LockMap[K comparable] struct {
	globalLock sync.Mutex
	lockMap    map[K]*Unlocker[K]
}

// NewLockMap returns an instance of LockMap.
func NewLockMap[K comparable]() *LockMap[K] {
	return &LockMap[K]{
		lockMap: map[K]*Unlocker[K]{},
	}
}

// Lock locks the key.
func (m *LockMap[K]) Lock(key K) *Unlocker[K] {
	// logic:
	// * global lock
	// * get or create the item
	// * global unlock
	// * increment the reference count of the item
	// * lock the item
	// * return the item
	//
	// The item is removed when the reference count drops to zero, so
	// UserData lives only while the key is contended.

	m.globalLock.Lock()

	if l := m.lockMap[key]; l != nil {
		if l.refCount == 0 {
			panic("LockMap contains released Unlocker")
		}
		l.refCount++
		m.globalLock.Unlock()
		l.locker.Lock()
		return l
	}

	l := &Unlocker[K]{m: m, key: key, refCount: 1}
	m.lockMap[key] = l
	m.globalLock.Unlock()

	l.locker.Lock()
	return l
}

// Len returns the amount of keys which are currently locked or awaited.
func (m *LockMap[K]) Len() int {
	m.globalLock.Lock()
	defer m.globalLock.Unlock()
	return len(m.lockMap)
}
