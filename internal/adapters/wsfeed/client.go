package wsfeed

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // < pongWait
	maxMessageSize = 512
	sendBufferSize = 64
)

// client es una conexión WebSocket. Solo escucha: lo que mande el peer se descarta.
type client struct {
	id    string
	conn  *websocket.Conn
	send  chan []byte
	sport string // vacío = todos
	hub   *Hub
}

func newClient(id string, conn *websocket.Conn, sport string, hub *Hub) *client {
	return &client{
		id:    id,
		conn:  conn,
		send:  make(chan []byte, sendBufferSize),
		sport: sport,
		hub:   hub,
	}
}

func (c *client) matches(sport string) bool {
	return c.sport == "" || c.sport == sport
}

// trySend no bloquea; false si el buffer está lleno.
func (c *client) trySend(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// readPump mantiene vivo el deadline con los pongs y detecta el cierre del peer.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump es el único escritor de la conexión.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// El hub cerró el canal
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
