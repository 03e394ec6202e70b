package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTTLMap_ExpiresEntries(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	m := NewTTLMap(time.Minute).WithClock(clock.now)

	m.Set("a", 1)
	m.SetWithTTL("b", 2, 10*time.Second)
	m.SetWithTTL("forever", 3, 0)

	v, ok := m.Get("b")
	assert.True(t, ok)
	assert.Equal(t, 2, v)

	clock.advance(10 * time.Second)
	_, ok = m.Get("b")
	assert.False(t, ok)
	_, ok = m.Get("a")
	assert.True(t, ok)

	clock.advance(time.Hour)
	_, ok = m.Get("a")
	assert.False(t, ok)
	_, ok = m.Get("forever")
	assert.True(t, ok)
}

func TestTTLMap_UpdateKeepsTTL(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	m := NewTTLMap(time.Minute).WithClock(clock.now)

	incr := func(current interface{}, exists bool) interface{} {
		if !exists {
			return int64(1)
		}
		return current.(int64) + 1
	}

	m.Update("n", 30*time.Second, true, incr)
	clock.advance(20 * time.Second)
	got := m.Update("n", 30*time.Second, true, incr)
	assert.Equal(t, int64(2), got)

	clock.advance(10 * time.Second)
	_, ok := m.Get("n")
	assert.False(t, ok, "expiry must not be extended by updates")

	got = m.Update("n", 30*time.Second, true, incr)
	assert.Equal(t, int64(1), got)
}

func TestTTLMap_Purge(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1700000000, 0)}
	m := NewTTLMap(time.Second).WithClock(clock.now)
	m.Set("a", 1)
	m.Set("b", 2)
	m.SetWithTTL("c", 3, time.Hour)

	clock.advance(2 * time.Second)
	assert.Equal(t, 2, m.Purge())
	assert.Equal(t, 1, m.Len())

	m.Clear()
	assert.Equal(t, 0, m.Len())
}
