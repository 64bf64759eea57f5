// Package gateway routes websocket commands to the room manager and fans the
// resulting state out to each room's broadcast group.
package gateway

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thehypotheticalgame/quiz-backend/internal/room"
)

type Gateway struct {
	manager  *room.Manager
	hub      *Hub
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func New(manager *room.Manager, log *zap.Logger) *Gateway {
	return &Gateway{
		manager: manager,
		hub:     NewHub(),
		log:     log,
		upgrader: websocket.Upgrader{
			// The browser client is served from arbitrary origins behind
			// the CDN; room access control is the code itself.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// HandleWS upgrades the request and services the connection until it drops.
// Command handling per connection is sequential; cross-connection ordering
// for the same room is best-effort.
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	c := newClient(conn)
	g.hub.Register(c)
	g.log.Info("client connected", zap.String("conn", c.ID.String()))

	go func() {
		if err := c.pingLoop(ctx); err != nil {
			cancel()
		}
	}()
	go func() {
		if err := c.writePump(ctx); err != nil {
			g.log.Warn("write pump ended", zap.String("conn", c.ID.String()), zap.Error(err))
			cancel()
		}
	}()

	if err := c.readPump(ctx, g.dispatch); err != nil {
		g.log.Warn("read pump ended", zap.String("conn", c.ID.String()), zap.Error(err))
	}
	cancel()

	g.disconnect(c)
}

// disconnect treats an abrupt drop the same as an explicit leave: the player
// is removed from the room immediately, with no reconnection grace period.
func (g *Gateway) disconnect(c *Client) {
	code := g.hub.Unregister(c)
	g.log.Info("client disconnected", zap.String("conn", c.ID.String()))
	if code == "" {
		return
	}
	ctx := context.Background()
	updated, deleted, err := g.manager.RemovePlayer(ctx, code, c.ID)
	if err != nil {
		g.log.Warn("disconnect cleanup failed",
			zap.String("conn", c.ID.String()),
			zap.String("code", code),
			zap.Error(err))
		return
	}
	if deleted {
		g.broadcast(code, EvtRoomDeleted, nil)
		return
	}
	g.broadcast(code, EvtPlayerLeft, PlayerLeftEvent{PlayerID: c.ID, Room: updated})
}

func (g *Gateway) dispatch(ctx context.Context, c *Client, env Envelope) {
	var err error
	switch env.Type {
	case CmdCreateRoom:
		err = g.handleCreateRoom(ctx, c, env)
	case CmdJoinRoom:
		err = g.handleJoinRoom(ctx, c, env)
	case CmdPlayerReady:
		err = g.handlePlayerReady(ctx, c, env)
	case CmdStartGame:
		err = g.handleStartGame(ctx, c, env)
	case CmdLeaveRoom:
		err = g.handleLeaveRoom(ctx, c, env)
	default:
		g.log.Warn("unexpected command", zap.String("type", env.Type))
		return
	}
	if err != nil {
		g.sendError(c, err)
	}
}

func (g *Gateway) handleCreateRoom(ctx context.Context, c *Client, env Envelope) error {
	p, err := DecodePayload[CreateRoomPayload](env.Payload)
	if err != nil {
		return err
	}
	r, err := g.manager.CreateRoom(ctx, c.ID, p.PlayerName)
	if err != nil {
		return err
	}
	g.hub.Subscribe(c, r.Code)
	g.send(c, EvtRoomCreated, RoomCreatedEvent{RoomCode: r.Code, Room: r})
	return nil
}

func (g *Gateway) handleJoinRoom(ctx context.Context, c *Client, env Envelope) error {
	p, err := DecodePayload[JoinRoomPayload](env.Payload)
	if err != nil {
		return err
	}
	r, player, err := g.manager.AddPlayer(ctx, p.RoomCode, c.ID, p.PlayerName)
	if err != nil {
		return err
	}
	g.hub.Subscribe(c, r.Code)
	g.hub.BroadcastExcept(r.Code, c.ID, g.encode(EvtPlayerJoined, PlayerJoinedEvent{Player: player, Room: r}))
	g.send(c, EvtRoomJoined, RoomJoinedEvent{Room: r})
	return nil
}

func (g *Gateway) handlePlayerReady(ctx context.Context, c *Client, env Envelope) error {
	p, err := DecodePayload[PlayerReadyPayload](env.Payload)
	if err != nil {
		return err
	}
	r, allReady, err := g.manager.SetReady(ctx, p.RoomCode, c.ID, p.Ready)
	if err != nil {
		return err
	}
	g.broadcast(r.Code, EvtPlayerReadyUpdate, PlayerReadyUpdateEvent{PlayerID: c.ID, Ready: p.Ready, Room: r})
	if allReady {
		g.broadcast(r.Code, EvtAllPlayersReady, nil)
	}
	return nil
}

func (g *Gateway) handleStartGame(ctx context.Context, c *Client, env Envelope) error {
	p, err := DecodePayload[StartGamePayload](env.Payload)
	if err != nil {
		return err
	}
	r, err := g.manager.StartGame(ctx, p.RoomCode, c.ID, p.GameType, p.TimeLimit)
	if err != nil {
		return err
	}
	g.broadcast(r.Code, EvtGameStarted, GameStartedEvent{GameType: r.GameType, TimeLimit: r.TimeLimit, Room: r})
	return nil
}

func (g *Gateway) handleLeaveRoom(ctx context.Context, c *Client, env Envelope) error {
	p, err := DecodePayload[LeaveRoomPayload](env.Payload)
	if err != nil {
		return err
	}
	code := p.RoomCode
	if code == "" {
		code = g.hub.RoomOf(c.ID)
	}
	if code == "" {
		return room.ErrRoomNotFound
	}
	updated, deleted, err := g.manager.RemovePlayer(ctx, code, c.ID)
	if err != nil {
		return err
	}
	g.hub.Unsubscribe(c)
	if deleted {
		g.broadcast(updated.Code, EvtRoomDeleted, nil)
		return nil
	}
	g.broadcast(updated.Code, EvtPlayerLeft, PlayerLeftEvent{PlayerID: c.ID, Room: updated})
	return nil
}

// sendError reports a failure to the originating connection only; errors are
// never broadcast to the room.
func (g *Gateway) sendError(c *Client, err error) {
	g.log.Info("command failed", zap.String("conn", c.ID.String()), zap.Error(err))
	g.send(c, EvtError, ErrorEvent{Message: err.Error()})
}

func (g *Gateway) send(c *Client, eventType string, payload any) {
	select {
	case c.send <- g.encode(eventType, payload):
	default:
		g.log.Warn("dropping event for slow connection",
			zap.String("conn", c.ID.String()),
			zap.String("event", eventType))
	}
}

func (g *Gateway) broadcast(code, eventType string, payload any) {
	g.hub.Broadcast(code, g.encode(eventType, payload))
}

func (g *Gateway) encode(eventType string, payload any) []byte {
	b, err := Encode(eventType, payload)
	if err != nil {
		g.log.Error("failed to encode event", zap.String("event", eventType), zap.Error(err))
		return nil
	}
	return b
}
