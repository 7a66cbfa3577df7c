// Package ws pushes identity changes to the browser they belong to.
package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type Message struct {
	Type     string `json:"type"`
	SignedIn bool   `json:"signed_in"`
	Email    string `json:"email,omitempty"`
}

type notification struct {
	sid     string
	payload []byte
}

// Hub keeps at most one socket per browser session.
type Hub struct {
	register   chan *client
	unregister chan *client
	notify     chan notification
	clients    map[string]*client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		notify:     make(chan notification, 256),
		clients:    make(map[string]*client),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for sid, c := range h.clients {
				c.conn.Close()
				delete(h.clients, sid)
			}
			return
		case c := <-h.register:
			if existing, ok := h.clients[c.sid]; ok {
				existing.conn.Close()
			}
			h.clients[c.sid] = c
		case c := <-h.unregister:
			if stored, ok := h.clients[c.sid]; ok && stored == c {
				delete(h.clients, c.sid)
			}
		case msg := <-h.notify:
			if c, ok := h.clients[msg.sid]; ok {
				select {
				case c.send <- msg.payload:
				default:
					c.conn.Close()
					delete(h.clients, msg.sid)
				}
			}
		}
	}
}

// Notify queues message for the browser sid. It never blocks; messages are
// dropped when the queue is full.
func (h *Hub) Notify(sid string, message Message) {
	if h == nil {
		return
	}
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case h.notify <- notification{sid: sid, payload: data}:
	default:
	}
}

// Serve runs a connection for sid until it closes.
func (h *Hub) Serve(conn *websocket.Conn, sid string) {
	c := &client{hub: h, conn: conn, send: make(chan []byte, 16), sid: sid}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	c.readPump()
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	sid  string
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
