// Package wsfeed empuja el resumen de cada ciclo a los clientes WebSocket conectados.
package wsfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alejandrodnm/fairline/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Hub mantiene los clientes activos. Implementa ports.Publisher.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]bool

	now func() time.Time
}

// NewHub crea el hub. allowedOrigins vacío o con "*" acepta cualquier origen.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		clients: make(map[*client]bool),
		now:     time.Now,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// ServeHTTP hace el upgrade y registra al cliente. ?sport= filtra por deporte.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade ya respondió con el error HTTP
		slog.Warn("websocket upgrade failed", "err", err)
		return
	}

	c := newClient(uuid.NewString(), conn, r.URL.Query().Get("sport"), h)
	h.register(c)

	go c.writePump()
	go c.readPump()
}

// Clients devuelve el número de clientes conectados.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish envía el resumen del ciclo a cada cliente cuyo filtro coincida.
// Los clientes con el buffer lleno se desconectan.
func (h *Hub) Publish(_ context.Context, report domain.CycleReport) error {
	msg := newCycleMessage(report, h.now())
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("wsfeed.Publish: marshal: %w", err)
	}

	// Enviar con el RLock tomado: unregister cierra c.send bajo Lock.
	var sent int
	var slow []*client
	h.mu.RLock()
	for c := range h.clients {
		if !c.matches(report.Sport) {
			continue
		}
		if c.trySend(data) {
			sent++
		} else {
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		slog.Warn("websocket client too slow, disconnecting", "client", c.id)
		h.unregister(c)
	}

	slog.Debug("websocket broadcast", "run_id", report.RunID, "sent", sent, "dropped", len(slow))
	return nil
}

// Close desconecta a todos los clientes.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = true
	n := len(h.clients)
	h.mu.Unlock()
	slog.Info("websocket client connected", "client", c.id, "sport", c.sport, "total", n)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	slog.Info("websocket client disconnected", "client", c.id, "total", len(h.clients))
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
