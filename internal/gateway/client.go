package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thehypotheticalgame/quiz-backend/pkg/stringid"
)

const (
	pingInterval   = 10 * time.Second
	pongWait       = 60 * time.Second
	writeWait      = 10 * time.Second
	maxMessageSize = 1024

	sendBufferSize = 16
)

// Client is one websocket connection as seen by the gateway. Outbound events
// are queued on send and flushed by the write pump; inbound envelopes are
// decoded by the read pump and handed to the gateway's dispatcher.
type Client struct {
	ID   stringid.ID
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *Client {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	return &Client{
		ID:   stringid.New(),
		conn: conn,
		send: make(chan []byte, sendBufferSize),
	}
}

func (c *Client) pingLoop(ctx context.Context) error {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("ws{%s} failed to send PING - %w", c.ID, err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (c *Client) writePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, open := <-c.send:
			if !open {
				c.conn.SetWriteDeadline(time.Now().Add(writeWait))
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return nil
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("failed to write to websocket - %w", err)
			}
		}
	}
}

// readPump decodes inbound envelopes and dispatches them until the
// connection drops or ctx is canceled. Dispatch errors are reported to the
// sender as error events, never fatal to the connection.
func (c *Client) readPump(ctx context.Context, dispatch func(context.Context, *Client, Envelope)) error {
	readCh := make(chan []byte)
	errCh := make(chan error, 1)

	go func() {
		defer close(readCh)
		for {
			messageType, p, err := c.conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
				errCh <- fmt.Errorf("unhandled message type: %d", messageType)
				return
			}
			select {
			case readCh <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case raw, open := <-readCh:
			if !open {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal(raw, &env); err != nil {
				continue
			}
			dispatch(ctx, c, env)
		}
	}
}
