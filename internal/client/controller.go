// Package client is the session controller used by a browser-facing client
// process: one websocket connection, promise-style room operations, and a
// last-known room snapshot kept fresh from broadcast events.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/thehypotheticalgame/quiz-backend/internal/gateway"
	"github.com/thehypotheticalgame/quiz-backend/internal/room"
)

// OpTimeout bounds how long a room operation waits for its matching success
// or error event. The timeout is advisory: it fails the caller's wait, it
// does not cancel server-side work.
const OpTimeout = 10 * time.Second

var (
	ErrNotConnected = errors.New("not connected to server")
	ErrTimeout      = errors.New("timed out waiting for server response")
)

type Status string

const (
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// RoomEvent is a broadcast event as delivered to subscribers.
type RoomEvent struct {
	Type    string
	Payload json.RawMessage
}

type opResult struct {
	payload json.RawMessage
	err     error
}

// Controller maintains one logical connection per browser session.
type Controller struct {
	url string
	log *zap.Logger

	mu          sync.Mutex
	conn        *websocket.Conn
	connected   bool
	currentRoom *room.Room
	statusSubs  []func(Status)
	eventSubs   []func(RoomEvent)
	waitType    string
	waitCh      chan opResult

	writeMu sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(url string, log *zap.Logger) *Controller {
	return &Controller{url: url, log: log}
}

// OnStatus registers an observer for connect/disconnect transitions. Any
// number of observers may subscribe independently.
func (c *Controller) OnStatus(fn func(Status)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusSubs = append(c.statusSubs, fn)
}

// OnRoomEvent registers an observer for broadcast room events.
func (c *Controller) OnRoomEvent(fn func(RoomEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.eventSubs = append(c.eventSubs, fn)
}

// Room returns the last-known room snapshot, or nil when not in a room.
func (c *Controller) Room() *room.Room {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.currentRoom == nil {
		return nil
	}
	r := *c.currentRoom
	return &r
}

func (c *Controller) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Connect dials the gateway and starts the receive loop. It is a no-op when
// already connected.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s - %w", c.url, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.cancel = cancel
	c.done = done
	subs := append([]func(Status){}, c.statusSubs...)
	c.mu.Unlock()

	for _, fn := range subs {
		fn(StatusConnected)
	}

	go func() {
		defer close(done)
		eg, gCtx := errgroup.WithContext(runCtx)
		eg.Go(func() error { return c.readLoop(gCtx, conn) })
		eg.Go(func() error {
			<-gCtx.Done()
			conn.Close()
			return nil
		})
		eg.Wait()
		c.handleDisconnect()
	}()
	return nil
}

// Close tears the connection down and notifies status observers.
func (c *Controller) Close() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (c *Controller) handleDisconnect() {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.conn = nil
	if c.waitCh != nil {
		c.waitCh <- opResult{err: ErrNotConnected}
		c.waitCh = nil
	}
	subs := append([]func(Status){}, c.statusSubs...)
	c.mu.Unlock()

	if wasConnected {
		for _, fn := range subs {
			fn(StatusDisconnected)
		}
	}
}

// CreateRoom issues create-room and waits for room-created or error.
func (c *Controller) CreateRoom(ctx context.Context, playerName string) (room.Room, error) {
	payload, err := c.request(ctx, gateway.CmdCreateRoom,
		gateway.CreateRoomPayload{PlayerName: playerName}, gateway.EvtRoomCreated)
	if err != nil {
		return room.Room{}, err
	}
	evt, err := gateway.DecodePayload[gateway.RoomCreatedEvent](payload)
	if err != nil {
		return room.Room{}, err
	}
	return evt.Room, nil
}

// JoinRoom issues join-room and waits for room-joined or error.
func (c *Controller) JoinRoom(ctx context.Context, roomCode, playerName string) (room.Room, error) {
	payload, err := c.request(ctx, gateway.CmdJoinRoom,
		gateway.JoinRoomPayload{RoomCode: roomCode, PlayerName: playerName}, gateway.EvtRoomJoined)
	if err != nil {
		return room.Room{}, err
	}
	evt, err := gateway.DecodePayload[gateway.RoomJoinedEvent](payload)
	if err != nil {
		return room.Room{}, err
	}
	return evt.Room, nil
}

// SetReady flags readiness; the result arrives as a player-ready-update
// broadcast rather than a direct reply.
func (c *Controller) SetReady(roomCode string, ready bool) error {
	return c.emit(gateway.CmdPlayerReady, gateway.PlayerReadyPayload{RoomCode: roomCode, Ready: ready})
}

// StartGame asks the gateway to begin a round. Host only; rejections come
// back as error events.
func (c *Controller) StartGame(roomCode, gameType string, timeLimit int) error {
	return c.emit(gateway.CmdStartGame, gateway.StartGamePayload{
		RoomCode:  roomCode,
		GameType:  gameType,
		TimeLimit: timeLimit,
	})
}

// LeaveRoom leaves the current room and drops the local snapshot.
func (c *Controller) LeaveRoom(roomCode string) error {
	err := c.emit(gateway.CmdLeaveRoom, gateway.LeaveRoomPayload{RoomCode: roomCode})
	c.mu.Lock()
	c.currentRoom = nil
	c.mu.Unlock()
	return err
}

// request sends a command and blocks until the success event, an error
// event, ctx cancellation, or OpTimeout. One request may be in flight at a
// time; command handling is sequential per connection anyway.
func (c *Controller) request(ctx context.Context, cmd string, payload any, successEvt string) (json.RawMessage, error) {
	ch := make(chan opResult, 1)

	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return nil, ErrNotConnected
	}
	if c.waitCh != nil {
		c.mu.Unlock()
		return nil, errors.New("another room operation is already in flight")
	}
	c.waitType = successEvt
	c.waitCh = ch
	c.mu.Unlock()

	clear := func() {
		c.mu.Lock()
		if c.waitCh == ch {
			c.waitCh = nil
		}
		c.mu.Unlock()
	}

	if err := c.emit(cmd, payload); err != nil {
		clear()
		return nil, err
	}

	timer := time.NewTimer(OpTimeout)
	defer timer.Stop()
	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return res.payload, nil
	case <-timer.C:
		clear()
		return nil, ErrTimeout
	case <-ctx.Done():
		clear()
		return nil, ctx.Err()
	}
}

func (c *Controller) emit(cmd string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	b, err := gateway.Encode(cmd, payload)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, b)
}

func (c *Controller) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		var env gateway.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.log.Warn("discarding malformed event", zap.Error(err))
			continue
		}
		c.handleEvent(env)
	}
}

func (c *Controller) handleEvent(env gateway.Envelope) {
	c.updateSnapshot(env)

	c.mu.Lock()
	var deliver chan opResult
	var res opResult
	switch {
	case env.Type == gateway.EvtError && c.waitCh != nil:
		deliver = c.waitCh
		evt, err := gateway.DecodePayload[gateway.ErrorEvent](env.Payload)
		if err != nil {
			res = opResult{err: err}
		} else {
			res = opResult{err: errors.New(evt.Message)}
		}
		c.waitCh = nil
	case env.Type == c.waitType && c.waitCh != nil:
		deliver = c.waitCh
		res = opResult{payload: env.Payload}
		c.waitCh = nil
	}
	subs := append([]func(RoomEvent){}, c.eventSubs...)
	c.mu.Unlock()

	if deliver != nil {
		deliver <- res
	}
	for _, fn := range subs {
		fn(RoomEvent{Type: env.Type, Payload: env.Payload})
	}
}

// updateSnapshot tracks the last-known room from any event that carries one.
func (c *Controller) updateSnapshot(env gateway.Envelope) {
	switch env.Type {
	case gateway.EvtRoomDeleted:
		c.mu.Lock()
		c.currentRoom = nil
		c.mu.Unlock()
	case gateway.EvtRoomCreated, gateway.EvtRoomJoined, gateway.EvtPlayerJoined,
		gateway.EvtPlayerLeft, gateway.EvtPlayerReadyUpdate, gateway.EvtGameStarted:
		var snap struct {
			Room room.Room `json:"room"`
		}
		if err := json.Unmarshal(env.Payload, &snap); err != nil || snap.Room.Code == "" {
			return
		}
		c.mu.Lock()
		c.currentRoom = &snap.Room
		c.mu.Unlock()
	}
}
