package room

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/thehypotheticalgame/quiz-backend/pkg/stringid"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()

	t.Run("put then get round-trips a room", func(t *testing.T) {
		store, _ := newTestRedisStore(t)
		r := NewRoom("ABC123", stringid.New(), "Alice")
		if err := store.Put(ctx, r); err != nil {
			t.Fatalf("Put should not result in an error. Got - %v", err)
		}
		got, err := store.Get(ctx, "ABC123")
		if err != nil {
			t.Fatalf("Get should not result in an error. Got - %v", err)
		}
		if got.Code != r.Code || got.HostID != r.HostID || len(got.Players) != 1 {
			t.Errorf("retrieved room does not match inserted\n--- %+v\n--- %+v", got, r)
		}
	})

	t.Run("get of a missing key reports room not found", func(t *testing.T) {
		store, _ := newTestRedisStore(t)
		if _, err := store.Get(ctx, "NOPE00"); !errors.Is(err, ErrRoomNotFound) {
			t.Fatalf("expected ErrRoomNotFound, got %v", err)
		}
	})

	t.Run("exists and delete", func(t *testing.T) {
		store, _ := newTestRedisStore(t)
		r := NewRoom("ABC123", stringid.New(), "Alice")
		store.Put(ctx, r)

		ok, err := store.Exists(ctx, "ABC123")
		if err != nil || !ok {
			t.Fatalf("room should exist, got %v/%v", ok, err)
		}
		if err := store.Delete(ctx, "ABC123"); err != nil {
			t.Fatalf("Delete should not result in an error. Got - %v", err)
		}
		ok, _ = store.Exists(ctx, "ABC123")
		if ok {
			t.Error("deleted room should not exist")
		}
	})

	t.Run("rooms expire after the ttl", func(t *testing.T) {
		store, mr := newTestRedisStore(t)
		store.Put(ctx, NewRoom("ABC123", stringid.New(), "Alice"))

		mr.FastForward(TTL + time.Second)
		if _, err := store.Get(ctx, "ABC123"); !errors.Is(err, ErrRoomNotFound) {
			t.Fatalf("expired room should behave as not found, got %v", err)
		}
	})

	t.Run("update refreshes the ttl", func(t *testing.T) {
		store, mr := newTestRedisStore(t)
		store.Put(ctx, NewRoom("ABC123", stringid.New(), "Alice"))

		mr.FastForward(TTL / 2)
		_, err := store.Update(ctx, "ABC123", func(r Room) (Room, error) {
			return r, nil
		})
		if err != nil {
			t.Fatalf("Update should not result in an error. Got - %v", err)
		}

		mr.FastForward(TTL / 2)
		if _, err := store.Get(ctx, "ABC123"); err != nil {
			t.Fatalf("room should have survived thanks to the refreshed ttl - %v", err)
		}
	})

	t.Run("update applies the transform atomically", func(t *testing.T) {
		store, _ := newTestRedisStore(t)
		store.Put(ctx, NewRoom("ABC123", stringid.New(), "Alice"))

		updated, err := store.Update(ctx, "ABC123", func(r Room) (Room, error) {
			r.Players[0].Ready = true
			return r, nil
		})
		if err != nil {
			t.Fatalf("Update should not result in an error. Got - %v", err)
		}
		if !updated.Players[0].Ready {
			t.Error("returned room should carry the transform's effect")
		}
		got, _ := store.Get(ctx, "ABC123")
		if !got.Players[0].Ready {
			t.Error("persisted room should carry the transform's effect")
		}
	})

	t.Run("update deletes a room emptied of players", func(t *testing.T) {
		store, _ := newTestRedisStore(t)
		store.Put(ctx, NewRoom("ABC123", stringid.New(), "Alice"))

		_, err := store.Update(ctx, "ABC123", func(r Room) (Room, error) {
			r.Players = nil
			return r, nil
		})
		if err != nil {
			t.Fatalf("Update should not result in an error. Got - %v", err)
		}
		if ok, _ := store.Exists(ctx, "ABC123"); ok {
			t.Error("a room with zero players must not remain in the store")
		}
	})

	t.Run("transform errors abort the write", func(t *testing.T) {
		store, _ := newTestRedisStore(t)
		store.Put(ctx, NewRoom("ABC123", stringid.New(), "Alice"))

		boom := errors.New("boom")
		_, err := store.Update(ctx, "ABC123", func(r Room) (Room, error) {
			r.Players[0].Ready = true
			return r, boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected transform error to surface, got %v", err)
		}
		got, _ := store.Get(ctx, "ABC123")
		if got.Players[0].Ready {
			t.Error("failed transform must not persist its mutation")
		}
	})
}
