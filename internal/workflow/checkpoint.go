package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CheckpointStore persists step results keyed by run and step id. A stored
// result is the contract that lets a retried run resume instead of restart.
type CheckpointStore interface {
	Get(ctx context.Context, runID, stepID string) ([]byte, bool, error)
	Put(ctx context.Context, runID, stepID string, payload []byte) error
}

const checkpointTTL = 24 * time.Hour

// redisCheckpointStore keeps checkpoints in Redis under wf:<run>:<step>.
type redisCheckpointStore struct {
	client *redis.Client
}

// NewRedisCheckpointStore builds a Redis-backed store.
func NewRedisCheckpointStore(client *redis.Client) CheckpointStore {
	return &redisCheckpointStore{client: client}
}

func (s *redisCheckpointStore) key(runID, stepID string) string {
	return fmt.Sprintf("wf:%s:%s", runID, stepID)
}

func (s *redisCheckpointStore) Get(ctx context.Context, runID, stepID string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, s.key(runID, stepID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *redisCheckpointStore) Put(ctx context.Context, runID, stepID string, payload []byte) error {
	return s.client.Set(ctx, s.key(runID, stepID), payload, checkpointTTL).Err()
}

// memoryCheckpointStore is an in-process store for tests and for running
// without Redis.
type memoryCheckpointStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemoryCheckpointStore builds an in-memory store.
func NewMemoryCheckpointStore() CheckpointStore {
	return &memoryCheckpointStore{entries: make(map[string][]byte)}
}

func (s *memoryCheckpointStore) Get(_ context.Context, runID, stepID string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.entries[runID+":"+stepID]
	return raw, ok, nil
}

func (s *memoryCheckpointStore) Put(_ context.Context, runID, stepID string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[runID+":"+stepID] = payload
	return nil
}
