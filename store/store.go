package store

import "time"

// Storer is the common interface for counter backends (Redis, In-Memory).
// A zero expiration keeps the counter until it is reset.
type Storer interface {
	Increment(key string, expiration time.Duration) (int64, error)
	GetCounter(key string) (int64, error)
	Reset(key string) error
	// Counters returns every live counter whose key starts with prefix,
	// keyed without the prefix.
	Counters(prefix string) (map[string]int64, error)
	Close() error
}
