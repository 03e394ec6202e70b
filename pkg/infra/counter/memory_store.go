package counter

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/NeuralTrust/ThreatGate/pkg/domain/counter"
	"github.com/NeuralTrust/ThreatGate/pkg/infra/cache"
)

// MemoryStore keeps counters in process. It backs the gateway while redis is
// unreachable, so its state is never shared across instances.
type MemoryStore struct {
	data *cache.TTLMap
}

var _ counter.Store = (*MemoryStore)(nil)

func NewMemoryStore(data *cache.TTLMap) *MemoryStore {
	return &MemoryStore{data: data}
}

func (s *MemoryStore) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	var err error
	next := s.data.Update(key, ttl, true, func(current interface{}, exists bool) interface{} {
		if !exists {
			return int64(1)
		}
		n, castErr := asInt(current)
		if castErr != nil {
			err = castErr
			return current
		}
		return n + 1
	})
	if err != nil {
		return 0, err
	}
	return next.(int64), nil
}

// DecrBy only touches live keys so an unknown key never gets a counter without expiry.
func (s *MemoryStore) DecrBy(_ context.Context, key string, n int64) (int64, error) {
	var (
		result int64
		err    error
	)
	if _, ok := s.data.Get(key); !ok {
		return 0, nil
	}
	s.data.Update(key, 0, true, func(current interface{}, exists bool) interface{} {
		if !exists {
			return int64(0)
		}
		v, castErr := asInt(current)
		if castErr != nil {
			err = castErr
			return current
		}
		result = v - n
		return result
	})
	return result, err
}

func (s *MemoryStore) PushTrim(_ context.Context, key, value string, maxLen int64, ttl time.Duration) error {
	s.data.Update(key, ttl, false, func(current interface{}, exists bool) interface{} {
		var list []string
		if exists {
			list, _ = current.([]string)
		}
		size := int64(len(list)) + 1
		if size > maxLen {
			size = maxLen
		}
		next := make([]string, 0, size)
		next = append(next, value)
		for _, v := range list {
			if int64(len(next)) >= maxLen {
				break
			}
			next = append(next, v)
		}
		return next
	})
	return nil
}

func (s *MemoryStore) ListAll(_ context.Context, key string) ([]string, error) {
	v, ok := s.data.Get(key)
	if !ok {
		return []string{}, nil
	}
	list, ok := v.([]string)
	if !ok {
		return nil, fmt.Errorf("key %s does not hold a list", key)
	}
	out := make([]string, len(list))
	copy(out, list)
	return out, nil
}

func (s *MemoryStore) SetAdd(_ context.Context, key, member string, ttl time.Duration) error {
	s.data.Update(key, ttl, false, func(current interface{}, exists bool) interface{} {
		next := map[string]struct{}{}
		if exists {
			if set, ok := current.(map[string]struct{}); ok {
				for m := range set {
					next[m] = struct{}{}
				}
			}
		}
		next[member] = struct{}{}
		return next
	})
	return nil
}

func (s *MemoryStore) SetMembers(_ context.Context, key string) ([]string, error) {
	v, ok := s.data.Get(key)
	if !ok {
		return []string{}, nil
	}
	set, ok := v.(map[string]struct{})
	if !ok {
		return nil, fmt.Errorf("key %s does not hold a set", key)
	}
	out := make([]string, 0, len(set))
	for m := range set {
		out = append(out, m)
	}
	return out, nil
}

func (s *MemoryStore) GetInt(_ context.Context, key string) (int64, bool, error) {
	v, ok := s.data.Get(key)
	if !ok {
		return 0, false, nil
	}
	n, err := asInt(v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.data.Get(key)
	if !ok {
		return "", false, nil
	}
	switch val := v.(type) {
	case string:
		return val, true, nil
	case int64:
		return strconv.FormatInt(val, 10), true, nil
	default:
		return "", false, fmt.Errorf("key %s does not hold a string", key)
	}
}

func (s *MemoryStore) SetWithTTL(_ context.Context, key, value string, ttl time.Duration) error {
	s.data.SetWithTTL(key, value, ttl)
	return nil
}

func (s *MemoryStore) SetIfAbsent(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	stored := false
	s.data.Update(key, ttl, true, func(current interface{}, exists bool) interface{} {
		if exists {
			return current
		}
		stored = true
		return value
	})
	return stored, nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	d, ok := s.data.Remaining(key)
	if !ok || d < 0 {
		return 0, nil
	}
	return d, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		s.data.Delete(k)
	}
	return nil
}

// Purge drops expired counters, returning how many were removed.
func (s *MemoryStore) Purge() int {
	return s.data.Purge()
}

func asInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("value %v is not an integer", v)
	}
}
