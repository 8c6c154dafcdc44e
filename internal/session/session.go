// Package session owns everything a client knows about one table: the
// poll cursor, the reconstructed round log, the latest table and hand
// views, and the action the server is waiting for. Presentation code reads
// immutable snapshots and calls intent methods; it never touches the state
// directly.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/lox/cardtable/internal/action"
	"github.com/lox/cardtable/internal/client"
	"github.com/lox/cardtable/internal/poller"
	"github.com/lox/cardtable/internal/protocol"
	"github.com/lox/cardtable/internal/roundlog"
	"github.com/lox/cardtable/internal/submit"
)

var (
	// ErrCannotStart is returned by StartTable when the table is running
	// or fewer than two players are seated.
	ErrCannotStart = errors.New("session: table cannot be started")

	// ErrSpectator is returned by player intents on a spectator session.
	ErrSpectator = errors.New("session: spectators cannot act")
)

// API is the part of the table server a session talks to
type API interface {
	poller.Source
	Join(ctx context.Context, table protocol.TableID, player string) (*protocol.ServerUpdate, error)
	Bet(ctx context.Context, table protocol.TableID, player string, resp protocol.BetResp) error
	Replace(ctx context.Context, table protocol.TableID, player string, resp protocol.ReplaceResp) error
	DealersChoice(ctx context.Context, table protocol.TableID, player string, resp protocol.DealersChoiceResp) error
	Start(ctx context.Context, table protocol.TableID) error
	AddBot(ctx context.Context, table protocol.TableID, skill client.BotSkill) error
}

// Config configures a Session. Poll carries the retry settings; its
// table and player fields are filled in from Table and Player.
type Config struct {
	Table  protocol.TableID
	Player string
	Poll   poller.Config
}

// Listener receives a snapshot after every change
type Listener func(Snapshot)

// UpdateListener receives every server update once it has been applied
type UpdateListener func(*protocol.ServerUpdate)

// prompt state captured when an intent is submitted
type saved struct {
	prompt    action.Prompt
	selection *action.Selection
	choice    *action.Choice
	gen       int
}

// Session is the client state for one table
type Session struct {
	id     string
	api    API
	poll   *poller.Poller
	logger *log.Logger

	table  protocol.TableID
	player string

	submitter *submit.Submitter[saved]

	mu        sync.Mutex
	cursor    poller.Cursor
	rounds    roundlog.Log
	pager     *roundlog.Pager
	self      string
	seated    bool
	tableView protocol.TableView
	view      *protocol.PokerView
	prompt    action.Prompt
	selection *action.Selection
	choice    *action.Choice
	gen       int
	notice    string
	lastErr   error
	listeners []Listener
	updates   []UpdateListener
}

// New creates a session. An empty player makes it a spectator session.
func New(api API, cfg Config, logger *log.Logger) *Session {
	id := uuid.NewString()
	logger = logger.With("session", id[:8])

	s := &Session{
		id:     id,
		api:    api,
		logger: logger.WithPrefix("session"),
		table:  cfg.Table,
		player: cfg.Player,
	}
	s.pager = roundlog.NewPager(&s.rounds)
	s.submitter = submit.New[saved](logger)

	pc := cfg.Poll
	pc.Table = cfg.Table
	pc.Player = cfg.Player
	pc.Spectator = cfg.Player == ""
	onRetry := pc.OnRetry
	pc.OnRetry = func(attempt int, delay time.Duration, err error) {
		s.setNotice(fmt.Sprintf("Connection lost, retrying in %s (attempt %d)", delay, attempt))
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}
	s.poll = poller.New(api, pc, logger)
	return s
}

// ID identifies this session in logs
func (s *Session) ID() string { return s.id }

// Spectator reports whether the session only watches
func (s *Session) Spectator() bool { return s.player == "" }

// Subscribe registers fn to receive snapshots. Listeners are called
// synchronously, outside the session lock.
func (s *Session) Subscribe(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SubscribeUpdates registers fn to receive each applied server update.
// Updates must not be modified.
func (s *Session) SubscribeUpdates(fn UpdateListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, fn)
}

// Join fetches the current table state and seeds the cursor with the
// action the server is already waiting for.
func (s *Session) Join(ctx context.Context) error {
	u, err := s.api.Join(ctx, s.table, s.player)
	if err != nil {
		return fmt.Errorf("join table %s: %w", s.table, err)
	}
	s.logger.Info("Joined table", "table", s.table, "player", s.player, "seated", u.Seated())
	return s.apply(poller.Cursor{KnownAction: u.ActionRequested()}, u)
}

// Run polls for updates until ctx is done or polling fails for good
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	cur := s.cursor
	s.mu.Unlock()

	_, err := s.poll.Run(ctx, cur, s.apply)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.mu.Lock()
		s.notice = ""
		s.lastErr = err
		s.mu.Unlock()
		s.notify()
	}
	return err
}

// apply folds one update into the session. Prompt, selection and choice
// are rebuilt from scratch every time.
func (s *Session) apply(next poller.Cursor, u *protocol.ServerUpdate) error {
	s.mu.Lock()
	s.cursor = next
	added := s.rounds.IngestUpdate(u)
	s.pager.Advance(0)

	s.seated = u.Seated()
	if s.seated {
		s.self = *u.PlayerID
	}
	s.tableView = u.Table
	s.view = u.ViewState()
	s.rebuildLocked(u.ActionRequested())
	s.gen++
	s.notice = ""
	s.submitter.Reset()
	updates := append([]UpdateListener(nil), s.updates...)
	s.mu.Unlock()

	s.logger.Debug("Applied update", "offset", next.Offset, "entries", added)
	for _, fn := range updates {
		fn(u)
	}
	s.notify()
	return nil
}

func (s *Session) rebuildLocked(req *protocol.ActionRequest) {
	s.prompt = action.Derive(req, s.view)
	s.selection = nil
	s.choice = nil
	switch s.prompt.State {
	case action.AwaitingReplace:
		s.selection = action.NewSelection(s.prompt.MaxReplace)
	case action.AwaitingDealersChoice:
		s.choice = action.NewChoice(s.prompt.Variants)
	}
}

func (s *Session) setNotice(msg string) {
	s.mu.Lock()
	s.notice = msg
	s.mu.Unlock()
	s.notify()
}

func (s *Session) notify() {
	snap := s.Snapshot()
	s.mu.Lock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(snap)
	}
}
