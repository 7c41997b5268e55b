// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package bridge exposes manager notifications to WebSocket clients on the
// local network and advertises the endpoint over mDNS.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	nfcmanager "github.com/ZaparooProject/go-nfcmanager"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog"
)

// Message types
const (
	TypeEvent              = "event"
	TypeResponse           = "response"
	TypeGetBackgroundTag   = "getBackgroundTag"
	TypeClearBackgroundTag = "clearBackgroundTag"
	TypeIsEnabled          = "isEnabled"
)

const (
	sendBuffer   = 32
	writeTimeout = 5 * time.Second
)

// Source is the part of *nfcmanager.Manager served to clients.
type Source interface {
	Events() *nfcmanager.EventBus
	GetBackgroundTag() *nfcmanager.TagEvent
	ClearBackgroundTag()
	IsEnabled() (bool, error)
}

// Request is a message sent by a client.
type Request struct {
	ID   string `json:"id,omitempty"`
	Type string `json:"type"`
}

// Message is sent to clients, either as a broadcast notification or as
// the response to a Request.
type Message struct {
	Event   *nfcmanager.Event    `json:"event,omitempty"`
	Tag     *nfcmanager.TagEvent `json:"tag,omitempty"`
	Enabled *bool                `json:"enabled,omitempty"`
	ID      string               `json:"id,omitempty"`
	Type    string               `json:"type"`
	Error   string               `json:"error,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan Message
	done chan struct{}
	id   string
}

// Server fans manager notifications out to every connected client.
type Server struct {
	src      Source
	clients  *xsync.MapOf[string, *client]
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a bridge for src.
func NewServer(src Source, log zerolog.Logger) *Server {
	return &Server{
		src:     src,
		clients: xsync.NewMapOf[string, *client](),
		log:     log.With().Str("component", "bridge").Logger(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes of the bridge: the WebSocket endpoint on
// /ws and a health check on /health.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"clients": s.ClientCount(),
		})
	})
	return mux
}

// Run forwards notifications to clients until ctx ends.
func (s *Server) Run(ctx context.Context) {
	events, unsubscribe := s.src.Events().Channel(64)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			s.closeAll()
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			s.broadcast(Message{Type: TypeEvent, Event: &event})
		}
	}
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	return s.clients.Size()
}

func (s *Server) broadcast(msg Message) {
	s.clients.Range(func(id string, c *client) bool {
		select {
		case c.send <- msg:
		default:
			s.log.Warn().Str("client", id).Msg("client too slow, dropping notification")
		}
		return true
	})
}

func (s *Server) closeAll() {
	s.clients.Range(func(_ string, c *client) bool {
		_ = c.conn.Close()
		return true
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade")
		return
	}

	c := &client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan Message, sendBuffer),
		done: make(chan struct{}),
	}
	s.clients.Store(c.id, c)
	s.log.Info().Str("client", c.id).Int("total", s.ClientCount()).Msg("client connected")

	go s.writePump(c)
	defer func() {
		s.clients.Delete(c.id)
		close(c.done)
		_ = conn.Close()
		s.log.Info().Str("client", c.id).Int("total", s.ClientCount()).Msg("client disconnected")
	}()

	if tag := s.src.GetBackgroundTag(); tag != nil {
		c.send <- Message{Type: TypeEvent, Event: &nfcmanager.Event{
			Name: nfcmanager.EventDiscoverBackgroundTag,
			Tag:  tag,
			At:   time.Now(),
		}}
	}

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Str("client", c.id).Msg("websocket read")
			}
			return
		}
		resp := s.handleRequest(req)
		select {
		case c.send <- resp:
		case <-c.done:
			return
		}
	}
}

func (s *Server) handleRequest(req Request) Message {
	resp := Message{Type: TypeResponse, ID: req.ID}
	switch req.Type {
	case TypeGetBackgroundTag:
		resp.Tag = s.src.GetBackgroundTag()
	case TypeClearBackgroundTag:
		s.src.ClearBackgroundTag()
	case TypeIsEnabled:
		enabled, err := s.src.IsEnabled()
		if err != nil {
			resp.Error = err.Error()
			break
		}
		resp.Enabled = &enabled
	default:
		resp.Error = "unknown request type: " + req.Type
	}
	return resp
}

// writePump is the only writer of c.conn.
func (s *Server) writePump(c *client) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				s.log.Debug().Err(err).Str("client", c.id).Msg("websocket write")
				_ = c.conn.Close()
				return
			}
		}
	}
}
