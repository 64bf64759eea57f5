package room

import (
	"context"
)

// UpdateFunc mutates a room in memory. Implementations of Store apply it
// atomically for the room's key, so two concurrent updates cannot clobber
// each other's writes.
type UpdateFunc func(Room) (Room, error)

type Store interface {
	// Available reports whether the store can currently serve requests.
	// Re-checked per operation; unavailability is a standing condition,
	// not a fatal one.
	Available(ctx context.Context) bool

	Put(ctx context.Context, r Room) error
	Get(ctx context.Context, code string) (Room, error)
	Exists(ctx context.Context, code string) (bool, error)
	Delete(ctx context.Context, code string) error

	// Update applies fn to the stored room under the store's single-key
	// atomicity guarantee and refreshes the room's expiry. A room left with
	// zero players is deleted instead of written back. Returns the room as
	// persisted (or as it was at deletion).
	Update(ctx context.Context, code string, fn UpdateFunc) (Room, error)
}
