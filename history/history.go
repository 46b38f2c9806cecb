// Package history keeps a bounded in-memory log of the traffic that passed
// through the gateway.
package history

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

type Kind string

const (
	KindInbound  Kind = "inbound"
	KindOutbound Kind = "outbound"
)

type Record struct {
	ID        uint64    `json:"id"`
	TraceID   string    `json:"trace_id"`
	Kind      Kind      `json:"kind"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

const DefaultCapacity = 100

// Log is a fixed-size ring of records. Once full, each append evicts the
// oldest record. IDs keep counting across evictions.
type Log struct {
	mu      sync.RWMutex
	records []Record
	start   int
	size    int
	nextID  uint64
	now     func() time.Time
}

func New(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{
		records: make([]Record, capacity),
		nextID:  1,
		now:     time.Now,
	}
}

// WithClock swaps the timestamp source. Used by tests.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
	return l
}

func (l *Log) Append(kind Kind, data any) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		ID:        l.nextID,
		TraceID:   xid.New().String(),
		Kind:      kind,
		Data:      data,
		Timestamp: l.now(),
	}
	l.nextID++

	capacity := len(l.records)
	if l.size < capacity {
		l.records[(l.start+l.size)%capacity] = rec
		l.size++
	} else {
		l.records[l.start] = rec
		l.start = (l.start + 1) % capacity
	}
	return rec
}

// Last returns up to n of the newest records, oldest first. n <= 0 returns
// everything retained.
func (l *Log) Last(n int) []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > l.size {
		n = l.size
	}
	out := make([]Record, n)
	capacity := len(l.records)
	first := l.size - n
	for i := 0; i < n; i++ {
		out[i] = l.records[(l.start+first+i)%capacity]
	}
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

func (l *Log) Cap() int {
	return len(l.records)
}

// Appended counts every record ever appended, evicted ones included.
func (l *Log) Appended() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID - 1
}
