package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ftledger/internal/token/state"
	"ftledger/pkg/platform/sentinel"
)

const (
	defaultRedisKey = "ftledger:snapshot"

	fieldVersion  = "version"
	fieldDocument = "document"
)

// RedisStore keeps the latest snapshot in a single Redis hash holding the
// version and the JSON document.
type RedisStore struct {
	client *redis.Client
	key    string
}

type RedisOption func(*RedisStore)

// WithKey overrides the hash key, letting several ledgers share one Redis.
func WithKey(key string) RedisOption {
	return func(s *RedisStore) {
		if key != "" {
			s.key = key
		}
	}
}

func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client, key: defaultRedisKey}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Save writes the snapshot unless Redis already holds a newer version. The
// version check and the write run in one WATCH transaction.
func (s *RedisStore) Save(ctx context.Context, snap state.Snapshot) error {
	doc, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.HGet(ctx, s.key, fieldVersion).Uint64()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		case current > snap.Version:
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, s.key, fieldVersion, snap.Version, fieldDocument, doc)
			return nil
		})
		return err
	}, s.key)
	if err != nil {
		return fmt.Errorf("save snapshot to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (state.Snapshot, error) {
	doc, err := s.client.HGet(ctx, s.key, fieldDocument).Bytes()
	if errors.Is(err, redis.Nil) {
		return state.Snapshot{}, fmt.Errorf("load snapshot: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("load snapshot from redis: %w", err)
	}
	var snap state.Snapshot
	if err := json.Unmarshal(doc, &snap); err != nil {
		return state.Snapshot{}, fmt.Errorf("decode snapshot: %w: %w", sentinel.ErrInvalidState, err)
	}
	return snap, nil
}
