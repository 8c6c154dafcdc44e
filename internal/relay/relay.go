// Package relay re-broadcasts a table's reconstructed log over websockets,
// so other programs can follow a game without polling the server.
package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/lox/cardtable/internal/protocol"
)

// Event kinds
const (
	KindLog   = "log"
	KindTable = "table"
)

// Event is one message sent to relay clients
type Event struct {
	Kind    string              `json:"kind"`
	Round   int                 `json:"round,omitempty"`
	Entries []string            `json:"entries,omitempty"`
	Table   *protocol.TableView `json:"table,omitempty"`
}

// Relay fans events out to every connected websocket client. New
// clients first receive the log published so far and the latest table.
type Relay struct {
	upgrader websocket.Upgrader
	logger   *log.Logger

	mu      sync.RWMutex
	conns   map[*conn]bool
	history []Event
	table   *Event
	closed  bool
}

func New(logger *log.Logger) *Relay {
	return &Relay{
		upgrader: websocket.Upgrader{
			// Read-only feed; any origin may follow it
			CheckOrigin:     func(*http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		logger: logger.WithPrefix("relay"),
		conns:  make(map[*conn]bool),
	}
}

// Handler serves the websocket feed at /ws and a health check at /health
func (r *Relay) Handler() http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Get("/ws", r.handleWebSocket)
	mux.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, "OK")
	})
	return mux
}

// Serve listens on addr until ctx is done
func (r *Relay) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: r.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("Starting relay", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("relay: %w", err)
	case <-ctx.Done():
	}

	r.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("relay shutdown: %w", err)
	}
	return nil
}

// Publish turns an applied update into events: one per log batch that
// carries text, then the table state.
func (r *Relay) Publish(u *protocol.ServerUpdate) {
	events := make([]Event, 0, len(u.StringLog)+1)
	for i, text := range u.StringLog {
		if i >= len(u.Log) || len(text) == 0 {
			continue
		}
		events = append(events, Event{Kind: KindLog, Round: u.Log[i].Round, Entries: text})
	}
	table := u.Table
	events = append(events, Event{Kind: KindTable, Table: &table})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for _, e := range events {
		if e.Kind == KindLog {
			r.history = append(r.history, e)
		} else {
			r.table = &e
		}
		r.broadcastLocked(e)
	}
}

// Clients returns the number of connected clients
func (r *Relay) Clients() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Close disconnects every client; later publishes are dropped
func (r *Relay) Close() {
	r.mu.Lock()
	r.closed = true
	conns := make([]*conn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.conns = make(map[*conn]bool)
	r.mu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (r *Relay) broadcastLocked(e Event) {
	for c := range r.conns {
		if !c.enqueue(e) {
			r.logger.Warn("Relay client too slow, disconnecting", "remote", c.remote)
			delete(r.conns, c)
			go c.close()
		}
	}
	r.logger.Debug("Broadcast event", "kind", e.Kind, "recipients", len(r.conns))
}

func (r *Relay) handleWebSocket(w http.ResponseWriter, req *http.Request) {
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("Failed to upgrade connection", "error", err)
		return
	}
	r.mu.Lock()
	c := newConn(ws, req.RemoteAddr, len(r.history)+1)
	if r.closed {
		r.mu.Unlock()
		c.close()
		return
	}
	for _, e := range r.history {
		c.enqueue(e)
	}
	if r.table != nil {
		c.enqueue(*r.table)
	}
	r.conns[c] = true
	total := len(r.conns)
	r.mu.Unlock()

	r.logger.Info("Client connected", "remote", c.remote, "total", total)
	go c.writePump(r.logger)
	c.readPump()

	r.mu.Lock()
	delete(r.conns, c)
	total = len(r.conns)
	r.mu.Unlock()
	c.close()
	r.logger.Info("Client disconnected", "remote", c.remote, "total", total)
}
