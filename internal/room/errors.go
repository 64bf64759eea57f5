package room

import "errors"

var (
	// ErrUnavailable means the backing store is unreachable. Multiplayer is
	// all-or-nothing; callers must refuse the operation rather than degrade
	// to local state.
	ErrUnavailable = errors.New("multiplayer is currently unavailable")

	ErrRoomNotFound   = errors.New("room not found")
	ErrPlayerNotFound = errors.New("player not found")

	ErrNotHost         = errors.New("only the host can start the game")
	ErrPlayersNotReady = errors.New("not all players are ready")

	ErrRoomFull           = errors.New("room is full")
	ErrCodeSpaceExhausted = errors.New("could not generate a unique room code")

	ErrEmptyName = errors.New("player name is required")
	ErrEmptyCode = errors.New("room code is required")
)
