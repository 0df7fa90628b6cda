package lockmap

import (
	"sync"
)

// Unlocker is a held lock of a key.
type Unlocker[K comparable] struct {
	// UserData is shared by everybody who locks the same key until the key
	// is released by all of them. It is used to pass the result of an
	// operation to those who waited for it.
	UserData any

	// internal:
	locker   sync.Mutex
	key      K
	m        *LockMap[K]
	refCount int64
}

// Unlock releases the lock for the key.
func (l *Unlocker[K]) Unlock() {
	l.locker.Unlock()
	l.refCountDec()
}

func (l *Unlocker[K]) refCountDec() {
	l.m.globalLock.Lock()
	defer l.m.globalLock.Unlock()
	l.refCount--
	if l.refCount == 0 {
		delete(l.m.lockMap, l.key)
	}
}
