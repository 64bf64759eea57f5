package room

import (
	"time"

	"github.com/thehypotheticalgame/quiz-backend/pkg/stringid"
)

const (
	// MaxPlayers caps room membership. The lobby UI renders six slots.
	MaxPlayers = 6

	// TTL is how long a room survives in the store without a write.
	TTL = 30 * time.Minute
)

type Player struct {
	ID             stringid.ID `json:"id"`
	Name           string      `json:"name"`
	Ready          bool        `json:"ready"`
	Score          int         `json:"score"`
	TotalQuestions int         `json:"totalQuestions"`
	CorrectAnswers int         `json:"correctAnswers"`
	Accuracy       int         `json:"accuracy"`
	Connected      bool        `json:"connected"`
}

type Room struct {
	Code        string      `json:"code"`
	HostID      stringid.ID `json:"hostId"`
	Players     []Player    `json:"players"`
	GameStarted bool        `json:"gameStarted"`
	GameType    string      `json:"gameType"`
	TimeLimit   int         `json:"timeLimit"`
	CreatedAt   int64       `json:"createdAt"`
}

// player returns the index of the player with the given id, or -1.
func (r Room) player(id stringid.ID) int {
	for i, p := range r.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// AllPlayersReady reports whether the room can start a round. A room with a
// single player is never considered ready; multiplayer needs at least two.
func AllPlayersReady(r Room) bool {
	if len(r.Players) < 2 {
		return false
	}
	for _, p := range r.Players {
		if !p.Ready {
			return false
		}
	}
	return true
}

func newPlayer(id stringid.ID, name string) Player {
	return Player{
		ID:        id,
		Name:      name,
		Connected: true,
	}
}

func NewRoom(code string, hostID stringid.ID, hostName string) Room {
	return Room{
		Code:      code,
		HostID:    hostID,
		Players:   []Player{newPlayer(hostID, hostName)},
		CreatedAt: time.Now().Unix(),
	}
}
