package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// maxUpdateRetries bounds the optimistic WATCH/MULTI loop in Update.
	maxUpdateRetries = 10

	availableTimeout = 2 * time.Second
)

// Key returns the redis key for a room code.
func Key(code string) string {
	return fmt.Sprintf("room:%s", code)
}

// RedisStore persists rooms as JSON strings with a TTL refreshed on every
// write.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, availableTimeout)
	defer cancel()
	return s.rdb.Ping(ctx).Err() == nil
}

func (s *RedisStore) Put(ctx context.Context, r Room) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal room %s - %w", r.Code, err)
	}
	return s.rdb.Set(ctx, Key(r.Code), b, TTL).Err()
}

func (s *RedisStore) Get(ctx context.Context, code string) (Room, error) {
	js, err := s.rdb.Get(ctx, Key(code)).Result()
	if errors.Is(err, redis.Nil) {
		return Room{}, ErrRoomNotFound
	} else if err != nil {
		return Room{}, err
	}
	var r Room
	if err := json.Unmarshal([]byte(js), &r); err != nil {
		return Room{}, fmt.Errorf("failed to unmarshal room %s - %w", code, err)
	}
	return r, nil
}

func (s *RedisStore) Exists(ctx context.Context, code string) (bool, error) {
	n, err := s.rdb.Exists(ctx, Key(code)).Result()
	return n > 0, err
}

func (s *RedisStore) Delete(ctx context.Context, code string) error {
	return s.rdb.Del(ctx, Key(code)).Err()
}

// Update runs fn inside a WATCH transaction on the room's key. If another
// writer touches the key between read and write the transaction fails and is
// retried with a fresh read, so concurrent mutations (two players marking
// ready at once) cannot lose each other's effect.
func (s *RedisStore) Update(ctx context.Context, code string, fn UpdateFunc) (Room, error) {
	key := Key(code)
	var updated Room

	txn := func(tx *redis.Tx) error {
		js, err := tx.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return ErrRoomNotFound
		} else if err != nil {
			return err
		}
		var r Room
		if err := json.Unmarshal([]byte(js), &r); err != nil {
			return fmt.Errorf("failed to unmarshal room %s - %w", code, err)
		}

		r, err = fn(r)
		if err != nil {
			return err
		}

		b, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("failed to marshal room %s - %w", code, err)
		}

		updated = r
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(r.Players) == 0 {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, b, TTL)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return updated, err
	}
	return Room{}, fmt.Errorf("room %s update retried %d times without success", code, maxUpdateRetries)
}
