package store

import (
	"strings"
	"sync"
	"time"
)

type LocalStore struct {
	counters map[string]localCounter
	mu       sync.RWMutex
	stop     chan struct{}
	once     sync.Once
}

type localCounter struct {
	Value  int64
	Expiry time.Time
}

func (c localCounter) expired(now time.Time) bool {
	return !c.Expiry.IsZero() && now.After(c.Expiry)
}

func NewLocalStore() *LocalStore {
	s := &LocalStore{
		counters: make(map[string]localCounter),
		stop:     make(chan struct{}),
	}
	go s.cleanupLoop(time.Minute)
	return s
}

func (s *LocalStore) Increment(key string, expiration time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	c, ok := s.counters[key]
	if !ok || c.expired(now) {
		c = localCounter{}
		// Expiry is set on first increment, same as the Redis backend.
		if expiration > 0 {
			c.Expiry = now.Add(expiration)
		}
	}
	c.Value++
	s.counters[key] = c
	return c.Value, nil
}

func (s *LocalStore) GetCounter(key string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counters[key]
	if !ok || c.expired(time.Now()) {
		return 0, nil
	}
	return c.Value, nil
}

func (s *LocalStore) Reset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counters, key)
	return nil
}

func (s *LocalStore) Counters(prefix string) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	res := make(map[string]int64)
	for k, c := range s.counters {
		if strings.HasPrefix(k, prefix) && !c.expired(now) {
			res[strings.TrimPrefix(k, prefix)] = c.Value
		}
	}
	return res, nil
}

func (s *LocalStore) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

func (s *LocalStore) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.mu.Lock()
			now := time.Now()
			for k, c := range s.counters {
				if c.expired(now) {
					delete(s.counters, k)
				}
			}
			s.mu.Unlock()
		}
	}
}
