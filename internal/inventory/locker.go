package inventory

import (
	"sort"
	"sync"
)

// KeyLocker serializes work per inventory key inside one process. Keys are
// always acquired in sorted order so overlapping key sets cannot deadlock.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: map[string]*sync.Mutex{}}
}

// Lock blocks until every key is held and returns the matching unlock.
func (l *KeyLocker) Lock(keys ...string) func() {
	uniq := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
	}
	sort.Strings(uniq)

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, k := range uniq {
		m := l.get(k)
		m.Lock()
		held = append(held, m)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].Unlock()
			}
		})
	}
}

func (l *KeyLocker) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}
