package stream

import (
	"alertbot/internal/logger"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Hub раздаёт события всем подключённым клиентам дашборда.
type Hub struct {
	mu       sync.RWMutex
	clients  map[*client]struct{}
	upgrader websocket.Upgrader
	log      *logger.Logger
	now      func() time.Time
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: map[*client]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: log,
		now: time.Now,
	}
}

// Publish не блокируется: клиент с переполненным буфером отключается.
func (h *Hub) Publish(eventType EventType, data any) {
	msg, err := json.Marshal(Event{Type: eventType, Time: h.now(), Data: data})
	if err != nil {
		h.logEntry().WithError(err).Warn("Не удалось сериализовать событие.")
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logEntry().WithField("client", c.id).Warn("Клиент не успевает читать, отключаем.")
		h.unregister(c)
	}
}

// Serve переводит запрос в websocket и держит соединение до отключения.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("Не удалось открыть WS: %w", err)
	}

	c := &client{
		id:     strings.ReplaceAll(uuid.New().String(), "-", "")[:12],
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		stopCh: make(chan struct{}),
	}
	h.register(c)

	hello, _ := json.Marshal(Event{Type: EventTypeHello, Time: h.now()})
	c.send <- hello

	go h.writeLoop(c)
	h.readLoop(c)
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = map[*client]struct{}{}
	h.mu.Unlock()
	for c := range clients {
		c.stop()
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logEntry().WithFields(logrus.Fields{
		"client":  c.id,
		"clients": n,
	}).Info("Клиент WS подключён.")
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	c.stop()
	if ok {
		h.logEntry().WithField("client", c.id).Info("Клиент WS отключён.")
	}
}

// readLoop нужен для pong и обнаружения закрытия; входящие сообщения игнорируются.
func (h *Hub) readLoop(c *client) {
	defer h.unregister(c)

	c.conn.SetReadLimit(1 << 16)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logEntry().WithError(err).Debug("Ошибка чтения WS.")
			}
			return
		}
	}
}

func (h *Hub) writeLoop(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				h.unregister(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.unregister(c)
				return
			}
		}
	}
}

func (h *Hub) logEntry() *logrus.Entry {
	return h.log.WithComponent("stream")
}
