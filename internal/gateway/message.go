package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/thehypotheticalgame/quiz-backend/internal/room"
	"github.com/thehypotheticalgame/quiz-backend/pkg/stringid"
)

// Envelope is the wire format in both directions: an event name plus a JSON
// payload multiplexed over one websocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Client commands.
const (
	CmdCreateRoom  = "create-room"
	CmdJoinRoom    = "join-room"
	CmdPlayerReady = "player-ready"
	CmdStartGame   = "start-game"
	CmdLeaveRoom   = "leave-room"
)

// Server events.
const (
	EvtRoomCreated       = "room-created"
	EvtRoomJoined        = "room-joined"
	EvtPlayerJoined      = "player-joined"
	EvtPlayerLeft        = "player-left"
	EvtPlayerReadyUpdate = "player-ready-update"
	EvtAllPlayersReady   = "all-players-ready"
	EvtGameStarted       = "game-started"
	EvtRoomDeleted       = "room-deleted"
	EvtError             = "error"
)

type CreateRoomPayload struct {
	PlayerName string `json:"playerName"`
}

type JoinRoomPayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type PlayerReadyPayload struct {
	RoomCode string `json:"roomCode"`
	Ready    bool   `json:"ready"`
}

type StartGamePayload struct {
	RoomCode  string `json:"roomCode"`
	GameType  string `json:"gameType"`
	TimeLimit int    `json:"timeLimit"`
}

type LeaveRoomPayload struct {
	RoomCode string `json:"roomCode"`
}

type RoomCreatedEvent struct {
	RoomCode string    `json:"roomCode"`
	Room     room.Room `json:"room"`
}

type RoomJoinedEvent struct {
	Room room.Room `json:"room"`
}

type PlayerJoinedEvent struct {
	Player room.Player `json:"player"`
	Room   room.Room   `json:"room"`
}

type PlayerLeftEvent struct {
	PlayerID stringid.ID `json:"playerId"`
	Room     room.Room   `json:"room"`
}

type PlayerReadyUpdateEvent struct {
	PlayerID stringid.ID `json:"playerId"`
	Ready    bool        `json:"ready"`
	Room     room.Room   `json:"room"`
}

type GameStartedEvent struct {
	GameType  string    `json:"gameType"`
	TimeLimit int       `json:"timeLimit"`
	Room      room.Room `json:"room"`
}

type ErrorEvent struct {
	Message string `json:"message"`
}

// Encode wraps a payload in an envelope and returns the wire bytes.
func Encode(eventType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload - %w", eventType, err)
		}
		raw = b
	}
	return json.Marshal(Envelope{Type: eventType, Payload: raw})
}

// DecodePayload unmarshals an envelope payload into a concrete command or
// event type.
func DecodePayload[T any](payload json.RawMessage) (T, error) {
	var msg T
	err := json.Unmarshal(payload, &msg)
	return msg, err
}
