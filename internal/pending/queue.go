// Package pending parks the latest unseen interest notice for each recipient
// until their next flow entry point.
package pending

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/edgard/matchbot/internal/domain"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Queue holds at most one notice per recipient. Put overwrites: the last
// writer wins.
type Queue interface {
	Put(ctx context.Context, recipient, sender domain.UserID) error
	// Peek returns the parked sender without removing it.
	Peek(ctx context.Context, recipient domain.UserID) (domain.UserID, bool, error)
	// Take returns and removes the parked sender.
	Take(ctx context.Context, recipient domain.UserID) (domain.UserID, bool, error)
	Remove(ctx context.Context, recipient domain.UserID) error
	// RemoveIf removes the entry only while sender is still the parked one.
	RemoveIf(ctx context.Context, recipient, sender domain.UserID) (bool, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend    string
	RedisURL   string
	KeyPrefix  string
	BadgerPath string
}

// Open builds the configured backend. Memory is the default.
func Open(ctx context.Context, opts Options, logger *slog.Logger) (Queue, error) {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "pending_queue", "backend", opts.Backend)

	switch opts.Backend {
	case "", BackendMemory:
		log.Info("Pending notices kept in memory; they do not survive a restart")
		return NewMemoryQueue(), nil
	case BackendRedis:
		return NewRedisQueue(ctx, opts.RedisURL, opts.KeyPrefix, log)
	case BackendBadger:
		return NewBadgerQueue(BadgerConfig{Path: opts.BadgerPath, SyncWrites: true, Logger: log})
	default:
		return nil, fmt.Errorf("unknown pending backend %q", opts.Backend)
	}
}

// MemoryQueue is a process-local Queue.
type MemoryQueue struct {
	mu      sync.Mutex
	notices map[domain.UserID]domain.UserID
}

// NewMemoryQueue returns an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{notices: make(map[domain.UserID]domain.UserID)}
}

func (q *MemoryQueue) Put(_ context.Context, recipient, sender domain.UserID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notices[recipient] = sender
	return nil
}

func (q *MemoryQueue) Peek(_ context.Context, recipient domain.UserID) (domain.UserID, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sender, ok := q.notices[recipient]
	return sender, ok, nil
}

func (q *MemoryQueue) Take(_ context.Context, recipient domain.UserID) (domain.UserID, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	sender, ok := q.notices[recipient]
	delete(q.notices, recipient)
	return sender, ok, nil
}

func (q *MemoryQueue) Remove(_ context.Context, recipient domain.UserID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.notices, recipient)
	return nil
}

func (q *MemoryQueue) RemoveIf(_ context.Context, recipient, sender domain.UserID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if parked, ok := q.notices[recipient]; !ok || parked != sender {
		return false, nil
	}
	delete(q.notices, recipient)
	return true, nil
}

func (q *MemoryQueue) Close() error { return nil }

func formatID(id domain.UserID) string {
	return strconv.FormatInt(int64(id), 10)
}

func parseID(s string) (domain.UserID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt pending entry %q: %w", s, err)
	}
	return domain.UserID(n), nil
}
