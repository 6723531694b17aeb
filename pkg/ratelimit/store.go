package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Result is the outcome of a single fixed-window check.
type Result struct {
	Allowed   bool  `json:"allowed"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"resetTime"`
	Limit     int   `json:"limit"`
	WindowMs  int64 `json:"windowMs"`
}

// Store is the counter backend. Implementations must serialize the
// read-check-increment per key so no more than cfg.Requests callers are
// admitted within one window.
type Store interface {
	Check(ctx context.Context, key string, cfg Config) (Result, error)
}

type entry struct {
	count     int
	resetTime time.Time
}

// MemoryStore is the in-process fixed-window counter table. Fixed-window
// counting trades smoothness for O(1) memory and O(1) checks; a burst of up
// to 2x the limit is possible across a window boundary, which is an accepted
// trade-off of the algorithm.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*entry

	timeProvider    func() time.Time
	cleanupInterval time.Duration
	stopCh          chan struct{}
	stopOnce        sync.Once
}

type MemoryStoreOpts struct {
	TimeProvider    func() time.Time
	CleanupInterval time.Duration
}

const defaultCleanupInterval = 5 * time.Minute

func NewMemoryStore(opts *MemoryStoreOpts) *MemoryStore {
	timeProvider := time.Now
	interval := defaultCleanupInterval
	if opts != nil && opts.TimeProvider != nil {
		timeProvider = opts.TimeProvider
	}
	if opts != nil && opts.CleanupInterval > 0 {
		interval = opts.CleanupInterval
	}
	return &MemoryStore{
		entries:         make(map[string]*entry),
		timeProvider:    timeProvider,
		cleanupInterval: interval,
		stopCh:          make(chan struct{}),
	}
}

// Check performs the fixed-window admission decision for key as one critical
// section. No I/O happens under the lock.
func (s *MemoryStore) Check(_ context.Context, key string, cfg Config) (Result, error) {
	now := s.timeProvider()
	window := time.Duration(cfg.WindowMs) * time.Millisecond

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || !e.resetTime.After(now) {
		e = &entry{count: 0, resetTime: now.Add(window)}
		s.entries[key] = e
	}

	allowed := e.count < cfg.Requests
	if allowed {
		e.count++
	}

	remaining := cfg.Requests - e.count
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   allowed,
		Remaining: remaining,
		ResetTime: e.resetTime.UnixMilli(),
		Limit:     cfg.Requests,
		WindowMs:  cfg.WindowMs,
	}, nil
}

// Start launches the periodic sweep that evicts expired entries. The sweep
// runs off the request path and never blocks request handling beyond the
// per-sweep lock acquisition.
func (s *MemoryStore) Start() {
	go func() {
		ticker := time.NewTicker(s.cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Cleanup()
			case <-s.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the sweep goroutine. Safe to call more than once.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Cleanup removes entries whose window has passed. An absent entry is
// equivalent to a fresh window, so eviction never changes admission results.
func (s *MemoryStore) Cleanup() {
	now := s.timeProvider()
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, e := range s.entries {
		if !e.resetTime.After(now) {
			delete(s.entries, key)
		}
	}
}

// Len reports the current entry count.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
