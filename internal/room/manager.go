package room

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/thehypotheticalgame/quiz-backend/pkg/stringid"
)

// Manager enforces room lifecycle and invariants on top of a Store. All
// mutations are expressed as Room -> Room transforms applied through
// Store.Update, so they are atomic per room.
type Manager struct {
	store Store
	log   *zap.Logger
}

func NewManager(store Store, log *zap.Logger) *Manager {
	return &Manager{store: store, log: log}
}

// checkAvailable gates every room operation. Multiplayer is strictly
// all-or-nothing: when the store is unreachable nothing may mutate, so the
// rest of the application (single player) keeps working against consistent
// state once the store returns.
func (m *Manager) checkAvailable(ctx context.Context) error {
	if !m.store.Available(ctx) {
		return ErrUnavailable
	}
	return nil
}

func (m *Manager) CreateRoom(ctx context.Context, hostID stringid.ID, hostName string) (Room, error) {
	hostName = strings.TrimSpace(hostName)
	if hostName == "" {
		return Room{}, ErrEmptyName
	}
	if err := m.checkAvailable(ctx); err != nil {
		return Room{}, err
	}

	code, err := uniqueCode(ctx, m.store)
	if err != nil {
		return Room{}, err
	}

	r := NewRoom(code, hostID, hostName)
	if err := m.store.Put(ctx, r); err != nil {
		return Room{}, err
	}
	m.log.Info("room created",
		zap.String("code", code),
		zap.String("host", hostID.String()))
	return r, nil
}

// AddPlayer joins a player to a room. A player id already present in the room
// is treated as a reconnection: the liveness flag is raised and no duplicate
// is appended.
func (m *Manager) AddPlayer(ctx context.Context, code string, playerID stringid.ID, playerName string) (Room, Player, error) {
	code = normalizeCode(code)
	playerName = strings.TrimSpace(playerName)
	if code == "" {
		return Room{}, Player{}, ErrEmptyCode
	}
	if playerName == "" {
		return Room{}, Player{}, ErrEmptyName
	}
	if err := m.checkAvailable(ctx); err != nil {
		return Room{}, Player{}, err
	}

	var joined Player
	updated, err := m.store.Update(ctx, code, func(r Room) (Room, error) {
		if i := r.player(playerID); i >= 0 {
			r.Players[i].Connected = true
			joined = r.Players[i]
			return r, nil
		}
		if len(r.Players) >= MaxPlayers {
			return r, ErrRoomFull
		}
		joined = newPlayer(playerID, playerName)
		r.Players = append(r.Players, joined)
		return r, nil
	})
	if err != nil {
		return Room{}, Player{}, err
	}
	m.log.Info("player joined",
		zap.String("code", code),
		zap.String("player", playerID.String()),
		zap.Int("players", len(updated.Players)))
	return updated, joined, nil
}

// RemovePlayer takes a player out of a room. The emptied room is deleted and
// reported via the deleted return. When the departing player was host, the
// first remaining player inherits the role.
func (m *Manager) RemovePlayer(ctx context.Context, code string, playerID stringid.ID) (Room, bool, error) {
	code = normalizeCode(code)
	if err := m.checkAvailable(ctx); err != nil {
		return Room{}, false, err
	}

	updated, err := m.store.Update(ctx, code, func(r Room) (Room, error) {
		i := r.player(playerID)
		if i < 0 {
			return r, ErrPlayerNotFound
		}
		r.Players = append(r.Players[:i], r.Players[i+1:]...)
		if r.HostID == playerID && len(r.Players) > 0 {
			r.HostID = r.Players[0].ID
		}
		return r, nil
	})
	if err != nil {
		return Room{}, false, err
	}
	if len(updated.Players) == 0 {
		m.log.Info("room deleted", zap.String("code", code))
		return updated, true, nil
	}
	m.log.Info("player left",
		zap.String("code", code),
		zap.String("player", playerID.String()),
		zap.Int("players", len(updated.Players)))
	return updated, false, nil
}

// SetReady flips a player's readiness and reports whether the whole room is
// now ready to start.
func (m *Manager) SetReady(ctx context.Context, code string, playerID stringid.ID, ready bool) (Room, bool, error) {
	code = normalizeCode(code)
	if err := m.checkAvailable(ctx); err != nil {
		return Room{}, false, err
	}

	updated, err := m.store.Update(ctx, code, func(r Room) (Room, error) {
		i := r.player(playerID)
		if i < 0 {
			return r, ErrPlayerNotFound
		}
		r.Players[i].Ready = ready
		return r, nil
	})
	if err != nil {
		return Room{}, false, err
	}
	return updated, AllPlayersReady(updated), nil
}

// StartGame begins a round. Only the host may start, and only once every
// player is ready. Score counters and readiness reset so the next round
// requires a fresh ready-up.
func (m *Manager) StartGame(ctx context.Context, code string, requesterID stringid.ID, gameType string, timeLimit int) (Room, error) {
	code = normalizeCode(code)
	if err := m.checkAvailable(ctx); err != nil {
		return Room{}, err
	}

	updated, err := m.store.Update(ctx, code, func(r Room) (Room, error) {
		if r.HostID != requesterID {
			return r, ErrNotHost
		}
		if !AllPlayersReady(r) {
			return r, ErrPlayersNotReady
		}
		r.GameStarted = true
		r.GameType = gameType
		r.TimeLimit = timeLimit
		for i := range r.Players {
			r.Players[i].Ready = false
			r.Players[i].Score = 0
			r.Players[i].TotalQuestions = 0
			r.Players[i].CorrectAnswers = 0
			r.Players[i].Accuracy = 0
		}
		return r, nil
	})
	if err != nil {
		return Room{}, err
	}
	m.log.Info("game started",
		zap.String("code", code),
		zap.String("gameType", gameType),
		zap.Int("timeLimit", timeLimit))
	return updated, nil
}

func (m *Manager) GetRoom(ctx context.Context, code string) (Room, error) {
	return m.store.Get(ctx, normalizeCode(code))
}

// Room codes are entered by hand; accept lowercase and stray whitespace.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Available exposes store reachability for the status endpoints.
func (m *Manager) Available(ctx context.Context) bool {
	return m.store.Available(ctx)
}
