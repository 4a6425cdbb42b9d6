package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/go-redis/redis/v8"
)

const (
	hashKeyPrefix = "doc:"
	channelPrefix = "doc-events:"
)

// RedisStore keeps each path in a redis hash (field = document key) and
// publishes the changed key to a per-path channel after every write, so
// watchers can re-read the hash.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (rs *RedisStore) Get(ctx context.Context, path, key string) (json.RawMessage, error) {
	val, err := rs.rdb.HGet(ctx, hashKeyPrefix+path, key).Result()
	if err == redis.Nil {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}

	return json.RawMessage(val), nil
}

func (rs *RedisStore) Put(ctx context.Context, path, key string, doc json.RawMessage) error {
	err := rs.rdb.HSet(ctx, hashKeyPrefix+path, key, string(doc)).Err()
	if err != nil {
		return err
	}

	return rs.publish(ctx, path, key)
}

func (rs *RedisStore) Patch(ctx context.Context, path, key string, fields map[string]interface{}) error {
	doc, err := rs.Get(ctx, path, key)
	if err != nil {
		return err
	}

	merged, err := mergeFields(doc, fields)
	if err != nil {
		return err
	}

	err = rs.rdb.HSet(ctx, hashKeyPrefix+path, key, string(merged)).Err()
	if err != nil {
		return err
	}

	return rs.publish(ctx, path, key)
}

func (rs *RedisStore) Delete(ctx context.Context, path, key string) error {
	removed, err := rs.rdb.HDel(ctx, hashKeyPrefix+path, key).Result()
	if err != nil {
		return err
	}

	if removed == 0 {
		return nil
	}

	return rs.publish(ctx, path, key)
}

func (rs *RedisStore) List(ctx context.Context, path string) (Snapshot, error) {
	values, err := rs.rdb.HGetAll(ctx, hashKeyPrefix+path).Result()
	if err != nil {
		return nil, err
	}

	snap := make(Snapshot, len(values))
	for key, val := range values {
		snap[key] = json.RawMessage(val)
	}

	return snap, nil
}

func (rs *RedisStore) Watch(ctx context.Context, path string) (<-chan Snapshot, func(), error) {
	pubsub := rs.rdb.Subscribe(ctx, channelPrefix+path)
	// Receive forces the SUBSCRIBE roundtrip so no event published after
	// Watch returns is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	initial, err := rs.List(ctx, path)
	if err != nil {
		pubsub.Close()
		return nil, nil, err
	}

	out := make(chan Snapshot, 1)
	out <- initial

	go func() {
		defer close(out)
		for range pubsub.Channel() {
			snap, err := rs.List(ctx, path)
			if err != nil {
				// Transient read failure: the next event triggers a re-read.
				continue
			}
			offer(out, snap)
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() { pubsub.Close() })
	}

	return out, cancel, nil
}

func (rs *RedisStore) publish(ctx context.Context, path, key string) error {
	return rs.rdb.Publish(ctx, channelPrefix+path, key).Err()
}
