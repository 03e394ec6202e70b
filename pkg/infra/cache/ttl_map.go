package cache

import (
	"sync"
	"time"
)

// TTLEntry represents an entry in TTLMap
type TTLEntry struct {
	Value     interface{}
	ExpiresAt time.Time
}

func (e *TTLEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// TTLMap is a thread-safe map with TTL for each entry. A zero ExpiresAt never expires.
type TTLMap struct {
	Data map[string]*TTLEntry
	Mu   sync.RWMutex
	TTL  time.Duration
	now  func() time.Time
}

// NewTTLMap creates a new TTLMap with the specified default TTL
func NewTTLMap(ttl time.Duration) *TTLMap {
	return &TTLMap{
		Data: make(map[string]*TTLEntry),
		TTL:  ttl,
		now:  time.Now,
	}
}

// WithClock replaces the time source, used by tests.
func (m *TTLMap) WithClock(now func() time.Time) *TTLMap {
	m.now = now
	return m
}

// Get retrieves a value from the TTLMap if it hasn't expired
func (m *TTLMap) Get(key string) (interface{}, bool) {
	entry, ok := m.entry(key)
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

// GetEntry returns a copy of the live entry for key.
func (m *TTLMap) GetEntry(key string) (TTLEntry, bool) {
	entry, ok := m.entry(key)
	if !ok {
		return TTLEntry{}, false
	}
	return *entry, true
}

func (m *TTLMap) entry(key string) (*TTLEntry, bool) {
	m.Mu.RLock()
	entry, exists := m.Data[key]
	if !exists {
		m.Mu.RUnlock()
		return nil, false
	}
	now := m.now()
	isExpired := entry.expired(now)
	m.Mu.RUnlock()

	if isExpired {
		m.Mu.Lock()
		if current, ok := m.Data[key]; ok && current.expired(m.now()) {
			delete(m.Data, key)
		}
		m.Mu.Unlock()
		return nil, false
	}
	return entry, true
}

// Set adds or updates a value using the map's default TTL
func (m *TTLMap) Set(key string, value interface{}) {
	m.SetWithTTL(key, value, m.TTL)
}

// SetWithTTL adds or updates a value with its own TTL; ttl <= 0 never expires.
func (m *TTLMap) SetWithTTL(key string, value interface{}, ttl time.Duration) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Data[key] = m.newEntry(value, ttl)
}

// Update runs fn on the live value for key while holding the write lock and stores
// the result. keepTTL preserves the current expiry of an existing entry.
func (m *TTLMap) Update(
	key string,
	ttl time.Duration,
	keepTTL bool,
	fn func(current interface{}, exists bool) interface{},
) interface{} {
	m.Mu.Lock()
	defer m.Mu.Unlock()

	now := m.now()
	entry, exists := m.Data[key]
	if exists && entry.expired(now) {
		delete(m.Data, key)
		exists = false
	}

	var current interface{}
	if exists {
		current = entry.Value
	}
	next := fn(current, exists)
	if exists && keepTTL {
		m.Data[key] = &TTLEntry{Value: next, ExpiresAt: entry.ExpiresAt}
	} else {
		m.Data[key] = m.newEntry(next, ttl)
	}
	return next
}

func (m *TTLMap) newEntry(value interface{}, ttl time.Duration) *TTLEntry {
	entry := &TTLEntry{Value: value}
	if ttl > 0 {
		entry.ExpiresAt = m.now().Add(ttl)
	}
	return entry
}

// Delete removes a key from the TTLMap
func (m *TTLMap) Delete(key string) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	delete(m.Data, key)
}

// Purge drops every expired entry and returns how many were removed.
func (m *TTLMap) Purge() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	now := m.now()
	removed := 0
	for k, e := range m.Data {
		if e.expired(now) {
			delete(m.Data, k)
			removed++
		}
	}
	return removed
}

func (m *TTLMap) Len() int {
	m.Mu.RLock()
	defer m.Mu.RUnlock()
	return len(m.Data)
}

// Clear removes all entries from the TTLMap
func (m *TTLMap) Clear() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Data = make(map[string]*TTLEntry)
}

// Remaining returns the time left on key; ok is false for missing or expired keys and
// the duration is negative for entries that never expire.
func (m *TTLMap) Remaining(key string) (time.Duration, bool) {
	entry, ok := m.entry(key)
	if !ok {
		return 0, false
	}
	if entry.ExpiresAt.IsZero() {
		return -1, true
	}
	return entry.ExpiresAt.Sub(m.now()), true
}
