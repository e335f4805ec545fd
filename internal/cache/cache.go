// Package cache holds the bounded, expiring caches used for server-side
// aggregates, and a manager that sweeps them in the background.
package cache

import (
	"sync"
	"time"

	"financeiro/internal/log"
)

// Cache is the store's view of an aggregate cache.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Purge drops every entry
	Purge()
	Size() int
}

// Cleaner is a cache the manager can sweep.
type Cleaner interface {
	CleanExpired() int
}

// Reporter is implemented by caches that count their traffic.
type Reporter interface {
	Stats() Stats
}

// Manager sweeps registered caches on an interval and reports their
// counters when stopped.
type Manager struct {
	logger *log.Logger

	mu     sync.Mutex
	caches map[string]Cleaner
	stop   chan struct{}
	done   chan struct{}
}

func NewManager(logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &Manager{
		logger: logger.WithComponent(log.ComponentCache),
		caches: make(map[string]Cleaner),
	}
}

// Register adds a cache under name. A second cache with the same name
// replaces the first.
func (m *Manager) Register(name string, c Cleaner) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// StartCleanup begins sweeping every interval. Calling it while a sweep loop
// is running does nothing.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	go m.sweep(interval, m.stop, m.done)
}

func (m *Manager) sweep(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.CleanNow(); n > 0 {
				m.logger.Debug("Expired cache entries removed", log.FieldCount, n)
			}
		case <-stop:
			return
		}
	}
}

// CleanNow sweeps every registered cache once and returns how many entries
// were removed.
func (m *Manager) CleanNow() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Stats returns the counters of every registered cache that keeps them.
func (m *Manager) Stats() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Stats, len(m.caches))
	for name, c := range m.caches {
		if r, ok := c.(Reporter); ok {
			out[name] = r.Stats()
		}
	}
	return out
}

// Stop ends the sweep loop and logs final counters. It is safe to call more
// than once.
func (m *Manager) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done

	for name, s := range m.Stats() {
		m.logger.Debug("Cache stats",
			"cache", name,
			"hits", s.Hits,
			"misses", s.Misses,
			"evictions", s.Evictions,
			"expired", s.Expired)
	}
}
