package panelapi

import "sync"

// KeyedLocks serializes work under an arbitrary string key, e.g.
// "panel_api:<input>" (spec §4.9 step 1) or a config file path (spec §4.9
// "Config patching ... per-path write lock"). One *sync.Mutex is created
// per distinct key and kept for the process lifetime.
type KeyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewKeyedLocks returns a ready-to-use lock set.
func NewKeyedLocks() *KeyedLocks {
	return &KeyedLocks{locks: make(map[string]*sync.Mutex)}
}

func (k *KeyedLocks) mutexFor(key string) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	return m
}

// Lock blocks until key's mutex is held and returns the unlock function.
func (k *KeyedLocks) Lock(key string) func() {
	m := k.mutexFor(key)
	m.Lock()
	return m.Unlock
}
