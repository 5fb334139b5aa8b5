// Cadenza - Personalized Music Recommendation Service
// Copyright 2026 Cadenza Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadenzalabs/cadenza

package push

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cadenzalabs/cadenza/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client-to-server and server-to-client message names on the push channel.
const (
	MessagePing           = "ping"
	MessagePong           = "pong"
	MessageRequestRefresh = "request-refresh"
)

// Message is the envelope on the push channel.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// sessionIDCounter assigns unique, monotonically increasing session IDs so
// fan-out order is deterministic.
var sessionIDCounter atomic.Uint64

// WSSession is a push session over a gorilla websocket connection. It
// implements Session; the write pump owns the connection for writes, the
// read pump handles ping and request-refresh.
type WSSession struct {
	id     uint64
	userID string
	conn   *websocket.Conn

	send      chan Message
	closeOnce sync.Once
	done      chan struct{}
}

// NewWSSession wraps an upgraded connection for the given user.
func NewWSSession(conn *websocket.Conn, userID string, sendBuffer int) *WSSession {
	if sendBuffer <= 0 {
		sendBuffer = 64
	}
	return &WSSession{
		id:     sessionIDCounter.Add(1),
		userID: userID,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
		done:   make(chan struct{}),
	}
}

// ID returns the session's unique identifier.
func (s *WSSession) ID() uint64 { return s.id }

// UserID returns the owning external user ID.
func (s *WSSession) UserID() string { return s.userID }

// Emit queues one event for delivery, bounded by ctx. A session whose
// outbound queue stays full past the deadline reports an error; the caller
// skips it and moves on.
func (s *WSSession) Emit(ctx context.Context, event string, payload any) error {
	msg := Message{Event: event, Data: payload}
	select {
	case s.send <- msg:
		return nil
	case <-s.done:
		return errors.New("session closed")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the session down. Safe to call more than once.
func (s *WSSession) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Run starts the pumps and blocks until the connection drops. The registry
// entry is removed before Run returns, so a departed connection never
// receives a further emit.
func (s *WSSession) Run(registry *Registry, engine *Engine) {
	go s.writePump()
	s.readPump(engine)

	registry.OnDisconnect(s)
	s.Close()
}

// readPump consumes client messages until the connection drops.
func (s *WSSession) readPump(engine *Engine) {
	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("set read deadline")
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := s.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Uint64("session_id", s.id).Msg("unexpected websocket close")
			}
			return
		}

		switch msg.Event {
		case MessagePing:
			select {
			case s.send <- Message{Event: MessagePong}:
			default:
			}
		case MessageRequestRefresh:
			engine.RequestRefresh(s)
		}
	}
}

// writePump drains the send queue onto the connection and keeps the
// protocol-level ping alive.
func (s *WSSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case msg := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("set write deadline")
				return
			}
			if err := s.conn.WriteJSON(msg); err != nil {
				logging.Warn().Err(err).Uint64("session_id", s.id).Msg("websocket write failed")
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
