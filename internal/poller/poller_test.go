package poller

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/cardtable/internal/client"
	"github.com/lox/cardtable/internal/protocol"
	"github.com/lox/cardtable/internal/roundlog"
	"github.com/lox/cardtable/internal/tabletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

// scriptedSource answers diff requests from a fixed script
type scriptedSource struct {
	mu       sync.Mutex
	script   []func(client.DiffRequest) (*protocol.ServerUpdate, error)
	requests []client.DiffRequest
}

func (s *scriptedSource) Diff(ctx context.Context, req client.DiffRequest) (*protocol.ServerUpdate, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	if len(s.script) == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := s.script[0]
	s.script = s.script[1:]
	s.mu.Unlock()
	return next(req)
}

func (s *scriptedSource) Requests() []client.DiffRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]client.DiffRequest(nil), s.requests...)
}

func seated(name string, asked *protocol.ActionRequest, rounds ...protocol.LogUpdate) func(client.DiffRequest) (*protocol.ServerUpdate, error) {
	return func(client.DiffRequest) (*protocol.ServerUpdate, error) {
		return &protocol.ServerUpdate{
			PlayerID: &name,
			Player:   &protocol.ServerPlayer{ActionRequested: asked},
			Log:      rounds,
		}, nil
	}
}

func failing(err error) func(client.DiffRequest) (*protocol.ServerUpdate, error) {
	return func(client.DiffRequest) (*protocol.ServerUpdate, error) { return nil, err }
}

func round(r, n int) protocol.LogUpdate {
	entries := make([]json.RawMessage, n)
	for i := range entries {
		entries[i] = json.RawMessage(`{}`)
	}
	return protocol.LogUpdate{Round: r, Log: entries}
}

var errStop = errors.New("stop")

func TestPollAdvancesCursor(t *testing.T) {
	bet := protocol.NewBetRequest(0, 10)
	src := &scriptedSource{script: []func(client.DiffRequest) (*protocol.ServerUpdate, error){
		seated("alice", bet, round(0, 2), round(1, 3)),
	}}
	p := New(src, Config{Table: 4, Player: "alice"}, testLogger())

	next, u, err := p.Poll(context.Background(), Cursor{Offset: 7})
	require.NoError(t, err)
	assert.Equal(t, 12, next.Offset)
	assert.Equal(t, bet, next.KnownAction)
	assert.Equal(t, 5, u.LogLen())

	req := src.Requests()[0]
	assert.Equal(t, protocol.TableID(4), req.Table)
	assert.Equal(t, "alice", req.Player)
	assert.Equal(t, 7, req.StartFrom)
	assert.Nil(t, req.KnownAsked)
}

func TestRunIsSequentialAndEchoesCursor(t *testing.T) {
	bet := protocol.NewBetRequest(0, 10)
	src := &scriptedSource{script: []func(client.DiffRequest) (*protocol.ServerUpdate, error){
		seated("alice", nil, round(0, 1)),
		seated("alice", bet),
		seated("alice", nil, round(0, 1), round(1, 2)),
	}}
	p := New(src, Config{Player: "alice"}, testLogger())

	var offsets []int
	applied := 0
	final, err := p.Run(context.Background(), Cursor{}, func(next Cursor, u *protocol.ServerUpdate) error {
		// Only the request being applied has been issued.
		assert.Len(t, src.Requests(), applied+1)
		offsets = append(offsets, next.Offset)
		applied++
		if applied == 3 {
			return errStop
		}
		return nil
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, []int{1, 1, 4}, offsets)
	assert.Equal(t, 4, final.Offset)

	reqs := src.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, 0, reqs[0].StartFrom)
	assert.Equal(t, 1, reqs[1].StartFrom)
	assert.Nil(t, reqs[1].KnownAsked)
	assert.Equal(t, 1, reqs[2].StartFrom)
	assert.Equal(t, bet, reqs[2].KnownAsked)
}

func TestRunStopsWhenNotSeated(t *testing.T) {
	src := &scriptedSource{script: []func(client.DiffRequest) (*protocol.ServerUpdate, error){
		func(client.DiffRequest) (*protocol.ServerUpdate, error) { return &protocol.ServerUpdate{}, nil },
	}}
	p := New(src, Config{Player: "alice"}, testLogger())

	applied := 0
	_, err := p.Run(context.Background(), Cursor{}, func(Cursor, *protocol.ServerUpdate) error {
		applied++
		return nil
	})
	assert.ErrorIs(t, err, ErrNotSeated)
	assert.Equal(t, 1, applied, "the table view is still applied")
}

func TestRunSpectatorKeepsPolling(t *testing.T) {
	unseated := func(client.DiffRequest) (*protocol.ServerUpdate, error) {
		return &protocol.ServerUpdate{Log: []protocol.LogUpdate{round(0, 1)}}, nil
	}
	src := &scriptedSource{script: []func(client.DiffRequest) (*protocol.ServerUpdate, error){unseated, unseated}}
	p := New(src, Config{Spectator: true}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	applied := 0
	final, err := p.Run(ctx, Cursor{}, func(Cursor, *protocol.ServerUpdate) error {
		applied++
		if applied == 2 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, applied)
	assert.Equal(t, 2, final.Offset)
}

func TestBackoff(t *testing.T) {
	p := New(&scriptedSource{}, Config{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}, testLogger())
	var got []time.Duration
	for n := 1; n <= 6; n++ {
		got = append(got, p.Backoff(n))
	}
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond,
		800 * time.Millisecond, time.Second, time.Second,
	}, got)
}

type retry struct {
	attempt int
	delay   time.Duration
}

func TestRunRetriesWithBackoff(t *testing.T) {
	mClock := quartz.NewMock(t)
	boom := errors.New("connection refused")
	src := &scriptedSource{script: []func(client.DiffRequest) (*protocol.ServerUpdate, error){
		failing(boom),
		failing(boom),
		seated("alice", nil, round(0, 1)),
	}}

	retries := make(chan retry, 4)
	p := New(src, Config{
		Player:         "alice",
		InitialBackoff: time.Second,
		MaxBackoff:     10 * time.Second,
		MaxAttempts:    3,
		Clock:          mClock,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			assert.ErrorIs(t, err, boom)
			retries <- retry{attempt, delay}
		},
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, Cursor{}, func(Cursor, *protocol.ServerUpdate) error { return errStop })
		done <- err
	}()

	r := <-retries
	assert.Equal(t, retry{1, time.Second}, r)
	assert.Len(t, src.Requests(), 1, "no request while backing off")
	mClock.Advance(r.delay).MustWait(ctx)

	r = <-retries
	assert.Equal(t, retry{2, 2 * time.Second}, r)
	mClock.Advance(r.delay).MustWait(ctx)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, errStop, "third attempt succeeds and is applied")
	case <-ctx.Done():
		t.Fatal("run did not finish")
	}
	assert.Len(t, src.Requests(), 3)
}

func TestRunGivesUpAfterMaxAttempts(t *testing.T) {
	mClock := quartz.NewMock(t)
	boom := &client.StatusError{Op: "diff", Code: http.StatusInternalServerError}
	src := &scriptedSource{script: []func(client.DiffRequest) (*protocol.ServerUpdate, error){
		failing(boom), failing(boom),
	}}

	retries := make(chan time.Duration, 2)
	p := New(src, Config{
		MaxAttempts: 2,
		Clock:       mClock,
		OnRetry:     func(_ int, delay time.Duration, _ error) { retries <- delay },
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx, Cursor{}, func(Cursor, *protocol.ServerUpdate) error { return nil })
		done <- err
	}()

	mClock.Advance(<-retries).MustWait(ctx)

	err := <-done
	assert.ErrorIs(t, err, ErrPollingFailed)
	var statusErr *client.StatusError
	assert.True(t, errors.As(err, &statusErr), "last cause is kept")
}

func TestRunCancelDuringBackoff(t *testing.T) {
	mClock := quartz.NewMock(t)
	src := &scriptedSource{script: []func(client.DiffRequest) (*protocol.ServerUpdate, error){failing(errors.New("x"))}}
	ctx, cancel := context.WithCancel(context.Background())

	p := New(src, Config{Clock: mClock, OnRetry: func(int, time.Duration, error) { cancel() }}, testLogger())
	_, err := p.Run(ctx, Cursor{}, func(Cursor, *protocol.ServerUpdate) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

// Replaying every diff in arrival order gives the same log as one full
// fetch at the final offset.
func TestCursorReplayMatchesFullFetch(t *testing.T) {
	srv := tabletest.NewServer(t)
	c, err := client.NewClient(srv.URL, client.Options{}, testLogger())
	require.NoError(t, err)
	p := New(c, Config{Player: "alice"}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	batches := [][]string{{"a", "b"}, {"c"}, {"d", "e", "f"}}
	rounds := []int{0, 0, 2}

	var replayed roundlog.Log
	cur := Cursor{}
	lastOffset := 0
	for i, batch := range batches {
		srv.AppendLog(rounds[i], batch...)
		next, u, err := p.Poll(ctx, cur)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, next.Offset, lastOffset)
		lastOffset = next.Offset
		replayed.IngestUpdate(u)
		cur = next
	}
	assert.Equal(t, 6, cur.Offset)

	full, err := c.Diff(ctx, client.DiffRequest{Player: "alice", StartFrom: 0})
	require.NoError(t, err)
	var whole roundlog.Log
	whole.IngestUpdate(full)

	require.Equal(t, whole.Len(), replayed.Len())
	for r := 0; r < whole.Len(); r++ {
		assert.Equal(t, whole.Round(r), replayed.Round(r))
	}
}
