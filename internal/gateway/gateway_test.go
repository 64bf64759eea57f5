package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/thehypotheticalgame/quiz-backend/internal/room"
)

func newTestGateway(t *testing.T) (*Gateway, *room.MemoryStore, string) {
	t.Helper()
	store := room.NewMemoryStore()
	g := New(room.NewManager(store, zap.NewNop()), zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(g.HandleWS))
	t.Cleanup(srv.Close)
	return g, store, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func dial(t *testing.T, url string) *testConn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial test gateway - %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &testConn{t: t, conn: conn}
}

func (c *testConn) send(cmd string, payload any) {
	c.t.Helper()
	b, err := Encode(cmd, payload)
	if err != nil {
		c.t.Fatalf("failed to encode %s - %v", cmd, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
		c.t.Fatalf("failed to send %s - %v", cmd, err)
	}
}

// waitFor reads events until one matches the wanted type, failing the test
// on timeout. Unrelated interleaved broadcasts are discarded.
func (c *testConn) waitFor(eventType string) json.RawMessage {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		c.conn.SetReadDeadline(deadline)
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("waiting for %s: %v", eventType, err)
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.t.Fatalf("malformed envelope waiting for %s: %v", eventType, err)
		}
		if env.Type == eventType {
			return env.Payload
		}
		if env.Type == EvtError {
			evt, _ := DecodePayload[ErrorEvent](env.Payload)
			c.t.Fatalf("got error event %q while waiting for %s", evt.Message, eventType)
		}
	}
}

func (c *testConn) waitForError(t *testing.T) string {
	t.Helper()
	payload := c.waitFor(EvtError)
	evt, err := DecodePayload[ErrorEvent](payload)
	if err != nil {
		t.Fatalf("malformed error event - %v", err)
	}
	return evt.Message
}

// createRoom drives create-room and returns the created room.
func (c *testConn) createRoom(name string) room.Room {
	c.t.Helper()
	c.send(CmdCreateRoom, CreateRoomPayload{PlayerName: name})
	evt, err := DecodePayload[RoomCreatedEvent](c.waitFor(EvtRoomCreated))
	if err != nil {
		c.t.Fatalf("malformed room-created - %v", err)
	}
	return evt.Room
}

func (c *testConn) joinRoom(code, name string) room.Room {
	c.t.Helper()
	c.send(CmdJoinRoom, JoinRoomPayload{RoomCode: code, PlayerName: name})
	evt, err := DecodePayload[RoomJoinedEvent](c.waitFor(EvtRoomJoined))
	if err != nil {
		c.t.Fatalf("malformed room-joined - %v", err)
	}
	return evt.Room
}

func TestCreateRoomCommand(t *testing.T) {
	t.Run("responds to the requester with a room code", func(t *testing.T) {
		_, _, url := newTestGateway(t)
		alice := dial(t, url)
		r := alice.createRoom("Alice")
		if len(r.Code) != 6 {
			t.Errorf("room code should be 6 characters, got %q", r.Code)
		}
		if len(r.Players) != 1 || r.Players[0].Name != "Alice" {
			t.Errorf("room should hold just Alice, got %+v", r.Players)
		}
	})

	t.Run("empty name yields an error event", func(t *testing.T) {
		_, _, url := newTestGateway(t)
		alice := dial(t, url)
		alice.send(CmdCreateRoom, CreateRoomPayload{PlayerName: ""})
		msg := alice.waitForError(t)
		if !strings.Contains(msg, "name") {
			t.Errorf("error should mention the name, got %q", msg)
		}
	})

	t.Run("store outage yields a capability error", func(t *testing.T) {
		_, store, url := newTestGateway(t)
		store.SetOffline(true)
		alice := dial(t, url)
		alice.send(CmdCreateRoom, CreateRoomPayload{PlayerName: "Alice"})
		msg := alice.waitForError(t)
		if !strings.Contains(msg, "unavailable") {
			t.Errorf("error should report multiplayer unavailable, got %q", msg)
		}
	})
}

func TestJoinRoomCommand(t *testing.T) {
	t.Run("join broadcasts player-joined to the room and room-joined to the requester", func(t *testing.T) {
		_, _, url := newTestGateway(t)
		alice := dial(t, url)
		bob := dial(t, url)

		r := alice.createRoom("Alice")
		joined := bob.joinRoom(r.Code, "Bob")
		if len(joined.Players) != 2 {
			t.Errorf("bob's view should show 2 players, got %d", len(joined.Players))
		}

		evt, err := DecodePayload[PlayerJoinedEvent](alice.waitFor(EvtPlayerJoined))
		if err != nil {
			t.Fatalf("malformed player-joined - %v", err)
		}
		if evt.Player.Name != "Bob" {
			t.Errorf("alice should see Bob join, got %q", evt.Player.Name)
		}
	})

	t.Run("unknown code yields an error event", func(t *testing.T) {
		_, _, url := newTestGateway(t)
		bob := dial(t, url)
		bob.send(CmdJoinRoom, JoinRoomPayload{RoomCode: "ZZZZZZ", PlayerName: "Bob"})
		msg := bob.waitForError(t)
		if !strings.Contains(msg, "not found") {
			t.Errorf("expected a not-found error, got %q", msg)
		}
	})
}

func TestReadyFlow(t *testing.T) {
	_, _, url := newTestGateway(t)
	alice := dial(t, url)
	bob := dial(t, url)

	r := alice.createRoom("Alice")
	bob.joinRoom(r.Code, "Bob")
	alice.waitFor(EvtPlayerJoined)

	alice.send(CmdPlayerReady, PlayerReadyPayload{RoomCode: r.Code, Ready: true})
	evt, err := DecodePayload[PlayerReadyUpdateEvent](bob.waitFor(EvtPlayerReadyUpdate))
	if err != nil {
		t.Fatalf("malformed player-ready-update - %v", err)
	}
	if !evt.Ready {
		t.Error("bob should see alice flagged ready")
	}

	bob.send(CmdPlayerReady, PlayerReadyPayload{RoomCode: r.Code, Ready: true})
	alice.waitFor(EvtAllPlayersReady)
	bob.waitFor(EvtAllPlayersReady)
}

func TestStartGameCommand(t *testing.T) {
	setup := func(t *testing.T) (*testConn, *testConn, room.Room, string) {
		_, _, url := newTestGateway(t)
		alice := dial(t, url)
		bob := dial(t, url)
		r := alice.createRoom("Alice")
		bob.joinRoom(r.Code, "Bob")
		return alice, bob, r, url
	}

	t.Run("host start before everyone is ready fails", func(t *testing.T) {
		alice, _, r, _ := setup(t)
		alice.send(CmdStartGame, StartGamePayload{RoomCode: r.Code, GameType: "addition", TimeLimit: 60})
		msg := alice.waitForError(t)
		if !strings.Contains(msg, "ready") {
			t.Errorf("expected a players-not-ready error, got %q", msg)
		}
	})

	t.Run("non-host start fails", func(t *testing.T) {
		alice, bob, r, _ := setup(t)
		alice.send(CmdPlayerReady, PlayerReadyPayload{RoomCode: r.Code, Ready: true})
		bob.send(CmdPlayerReady, PlayerReadyPayload{RoomCode: r.Code, Ready: true})
		bob.waitFor(EvtAllPlayersReady)

		bob.send(CmdStartGame, StartGamePayload{RoomCode: r.Code, GameType: "addition", TimeLimit: 60})
		msg := bob.waitForError(t)
		if !strings.Contains(msg, "host") {
			t.Errorf("expected a host-only error, got %q", msg)
		}
	})

	t.Run("host start broadcasts game-started with reset players", func(t *testing.T) {
		alice, bob, r, _ := setup(t)
		alice.send(CmdPlayerReady, PlayerReadyPayload{RoomCode: r.Code, Ready: true})
		bob.send(CmdPlayerReady, PlayerReadyPayload{RoomCode: r.Code, Ready: true})
		alice.waitFor(EvtAllPlayersReady)

		alice.send(CmdStartGame, StartGamePayload{RoomCode: r.Code, GameType: "multiplication", TimeLimit: 120})
		evt, err := DecodePayload[GameStartedEvent](bob.waitFor(EvtGameStarted))
		if err != nil {
			t.Fatalf("malformed game-started - %v", err)
		}
		if evt.GameType != "multiplication" || evt.TimeLimit != 120 {
			t.Errorf("game config not broadcast, got %s/%d", evt.GameType, evt.TimeLimit)
		}
		if !evt.Room.GameStarted {
			t.Error("broadcast room should show the game started")
		}
		for _, p := range evt.Room.Players {
			if p.Ready || p.Score != 0 {
				t.Errorf("player %s should be reset for the new round, got %+v", p.Name, p)
			}
		}
		alice.waitFor(EvtGameStarted)
	})
}

func TestLeaveRoomCommand(t *testing.T) {
	t.Run("leave broadcasts player-left and reassigns the host", func(t *testing.T) {
		_, _, url := newTestGateway(t)
		alice := dial(t, url)
		bob := dial(t, url)
		r := alice.createRoom("Alice")
		bob.joinRoom(r.Code, "Bob")

		alice.send(CmdLeaveRoom, LeaveRoomPayload{RoomCode: r.Code})
		evt, err := DecodePayload[PlayerLeftEvent](bob.waitFor(EvtPlayerLeft))
		if err != nil {
			t.Fatalf("malformed player-left - %v", err)
		}
		if len(evt.Room.Players) != 1 || evt.Room.Players[0].Name != "Bob" {
			t.Errorf("bob should be the sole remaining player, got %+v", evt.Room.Players)
		}
		if evt.Room.HostID != evt.Room.Players[0].ID {
			t.Error("host should have been reassigned to Bob")
		}
	})

	t.Run("last leave deletes the room from the store", func(t *testing.T) {
		_, store, url := newTestGateway(t)
		alice := dial(t, url)
		r := alice.createRoom("Alice")

		alice.send(CmdLeaveRoom, LeaveRoomPayload{RoomCode: r.Code})

		waitUntil(t, func() bool {
			ok, _ := store.Exists(context.Background(), r.Code)
			return !ok
		})
	})
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAbruptDisconnect(t *testing.T) {
	_, _, url := newTestGateway(t)
	alice := dial(t, url)
	bob := dial(t, url)
	r := alice.createRoom("Alice")
	bob.joinRoom(r.Code, "Bob")
	alice.waitFor(EvtPlayerJoined)

	// Bob drops without sending leave-room; the gateway must clean up as if
	// he had left.
	bob.conn.Close()

	evt, err := DecodePayload[PlayerLeftEvent](alice.waitFor(EvtPlayerLeft))
	if err != nil {
		t.Fatalf("malformed player-left - %v", err)
	}
	if len(evt.Room.Players) != 1 {
		t.Errorf("bob should have been removed, got %+v", evt.Room.Players)
	}
}
