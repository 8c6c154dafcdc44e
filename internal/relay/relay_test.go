package relay

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/cardtable/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var e Event
	require.NoError(t, protocol.Unmarshal(data, &e))
	return e
}

func update(round int, running bool, text ...string) *protocol.ServerUpdate {
	raw := make([]json.RawMessage, len(text))
	for i := range raw {
		raw[i] = json.RawMessage(`{}`)
	}
	return &protocol.ServerUpdate{
		Log:       []protocol.LogUpdate{{Round: round, Log: raw}},
		StringLog: [][]string{text},
		Table:     protocol.TableView{Running: running},
	}
}

func TestRelayBroadcast(t *testing.T) {
	r := New(testLogger())
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	defer r.Close()

	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return r.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	r.Publish(update(3, true, "alice bets 10", "bob folds"))

	for _, ws := range []*websocket.Conn{a, b} {
		e := readEvent(t, ws)
		assert.Equal(t, KindLog, e.Kind)
		assert.Equal(t, 3, e.Round)
		assert.Equal(t, []string{"alice bets 10", "bob folds"}, e.Entries)

		e = readEvent(t, ws)
		assert.Equal(t, KindTable, e.Kind)
		require.NotNil(t, e.Table)
		assert.True(t, e.Table.Running)
	}
}

func TestRelayBackfill(t *testing.T) {
	r := New(testLogger())
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()
	defer r.Close()

	r.Publish(update(0, false, "hand one"))
	r.Publish(update(1, true, "hand two"))
	r.Publish(&protocol.ServerUpdate{Table: protocol.TableView{Running: false}})

	ws := dial(t, srv)
	e := readEvent(t, ws)
	assert.Equal(t, []string{"hand one"}, e.Entries)
	e = readEvent(t, ws)
	assert.Equal(t, []string{"hand two"}, e.Entries)

	e = readEvent(t, ws)
	require.Equal(t, KindTable, e.Kind)
	assert.False(t, e.Table.Running, "only the latest table state is replayed")
}

func TestRelayDisconnects(t *testing.T) {
	r := New(testLogger())
	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	ws := dial(t, srv)
	require.Eventually(t, func() bool { return r.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, ws.Close())
	require.Eventually(t, func() bool { return r.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)

	other := dial(t, srv)
	require.Eventually(t, func() bool { return r.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)
	r.Close()
	assert.Equal(t, 0, r.Clients())

	require.NoError(t, other.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)

	r.Publish(update(0, false, "dropped"))
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(New(testLogger()).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}
