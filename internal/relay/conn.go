package relay

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/cardtable/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Clients only send control frames
	maxMessageSize = 512

	sendBuffer = 256
)

type conn struct {
	ws        *websocket.Conn
	remote    string
	send      chan Event
	done      chan struct{}
	closeOnce sync.Once
}

// newConn sizes the send buffer to hold backlog events on top of the
// usual headroom.
func newConn(ws *websocket.Conn, remote string, backlog int) *conn {
	return &conn{
		ws:     ws,
		remote: remote,
		send:   make(chan Event, sendBuffer+backlog),
		done:   make(chan struct{}),
	}
}

// enqueue reports false when the client's buffer is full
func (c *conn) enqueue(e Event) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.send <- e:
		return true
	default:
		return false
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// readPump discards client frames and returns when the client goes away
func (c *conn) readPump() {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.ws.NextReader(); err != nil {
			return
		}
	}
}

func (c *conn) writePump(logger *log.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case e := <-c.send:
			data, err := protocol.Marshal(e)
			if err != nil {
				logger.Error("Failed to encode event", "error", err)
				continue
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Debug("Failed to write event", "remote", c.remote, "error", err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		}
	}
}
