package stream

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type EventType string

const (
	EventTypeHello       EventType = "hello"
	EventTypeAlert       EventType = "alert_result"
	EventTypeTradesReset EventType = "trades_reset"
	EventTypeTickers     EventType = "tickers_updated"
	EventTypeDividends   EventType = "dividends_updated"
)

// Event - сообщение ленты дашборда.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`
	Data any       `json:"data,omitempty"`
}

type client struct {
	id       string
	conn     *websocket.Conn
	send     chan []byte
	stopCh   chan struct{}
	stopOnce sync.Once
}

func (c *client) stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		_ = c.conn.Close()
	})
}
