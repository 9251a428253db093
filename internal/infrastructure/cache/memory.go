package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// memoryEntry holds a serialized payload and its expiry instant.
type memoryEntry struct {
	data   []byte
	expiry time.Time
}

// MemoryStore is an in-process Store with per-entry TTL. Reads past an
// entry's expiry treat it as absent and remove it lazily; a background sweep
// removes expired entries proactively to bound memory.
type MemoryStore struct {
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]memoryEntry

	done chan struct{}
	once sync.Once

	// clock is swapped in tests to drive expiry.
	clock func() time.Time
}

// NewMemoryStore creates the store and starts its sweep loop. A
// non-positive sweepInterval falls back to DefaultSweepInterval.
func NewMemoryStore(sweepInterval time.Duration, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}

	s := &MemoryStore{
		logger:  logger,
		entries: make(map[string]memoryEntry),
		done:    make(chan struct{}),
		clock:   time.Now,
	}

	go s.sweepLoop(sweepInterval)

	return s
}

// Get unmarshals the value for key into dest.
func (s *MemoryStore) Get(ctx context.Context, key string, dest interface{}) error {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok && !entry.expiry.After(s.clock()) {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		return ErrKeyNotFound{Key: key}
	}

	if err := json.Unmarshal(entry.data, dest); err != nil {
		return fmt.Errorf("cache unmarshal failed: %w", err)
	}
	return nil
}

// Set stores value under key for ttl.
func (s *MemoryStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	s.mu.Lock()
	s.entries[key] = memoryEntry{data: data, expiry: s.clock().Add(ttl)}
	s.mu.Unlock()

	return nil
}

// Delete removes a key.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Close stops the sweep loop.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// Len returns the number of entries currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := s.sweep(); removed > 0 {
				s.logger.Debug("cache sweep removed expired entries",
					zap.Int("removed", removed))
			}
		case <-s.done:
			return
		}
	}
}

// sweep removes every expired entry and returns how many were removed.
func (s *MemoryStore) sweep() int {
	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if !entry.expiry.After(now) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}
