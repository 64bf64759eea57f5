package room

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used by tests. It honors the same expiry
// and atomic-update contract as RedisStore but is never used as a production
// fallback.
type MemoryStore struct {
	mu      sync.Mutex
	rooms   map[string]memoryEntry
	offline bool
}

type memoryEntry struct {
	room      Room
	expiresAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]memoryEntry)}
}

// SetOffline flips the store's reported availability, simulating an
// unreachable redis.
func (s *MemoryStore) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

func (s *MemoryStore) Available(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.offline
}

func (s *MemoryStore) Put(ctx context.Context, r Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[r.Code] = memoryEntry{room: r, expiresAt: time.Now().Add(TTL)}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, code string) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[code]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.rooms, code)
		return Room{}, ErrRoomNotFound
	}
	return e.room, nil
}

func (s *MemoryStore) Exists(ctx context.Context, code string) (bool, error) {
	_, err := s.Get(ctx, code)
	if err == ErrRoomNotFound {
		return false, nil
	}
	return err == nil, err
}

func (s *MemoryStore) Delete(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, code string, fn UpdateFunc) (Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rooms[code]
	if !ok || time.Now().After(e.expiresAt) {
		delete(s.rooms, code)
		return Room{}, ErrRoomNotFound
	}
	r, err := fn(e.room)
	if err != nil {
		return Room{}, err
	}
	if len(r.Players) == 0 {
		delete(s.rooms, code)
	} else {
		s.rooms[code] = memoryEntry{room: r, expiresAt: time.Now().Add(TTL)}
	}
	return r, nil
}
