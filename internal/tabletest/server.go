// Package tabletest provides an in-process table server for tests. It
// speaks the same HTTP API as the real server: long-polled diffs, bearer
// tokens in the Authorization header, tagged JSON bodies.
package tabletest

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lox/cardtable/internal/protocol"
)

// Request is a request the server received
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Auth   string
	Body   []byte
}

type logEntry struct {
	round int
	text  string
}

type table struct {
	config   protocol.TableConfig
	running  bool
	seats    map[string]int
	roles    map[int]string
	buttons  map[string]protocol.Button
	variant  *protocol.VariantDesc
	views    map[string]*protocol.PokerView
	asked    map[string]*protocol.ActionRequest
	log      []logEntry
	version  int
	botCount int
}

// Server is a scripted table server
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	closed   bool
	changed  chan struct{}
	tables   map[protocol.TableID]*table
	nextID   protocol.TableID
	tokens   map[string]string
	tokenSeq byte
	requests []Request
	failures map[string][]int
	params   []protocol.TableParameters

	bets    []protocol.BetResp
	replies []protocol.ReplaceResp
	choices []protocol.DealersChoiceResp
}

// NewServer starts a server with one empty table, id 0, and registers
// its shutdown with t.
func NewServer(t testing.TB) *Server {
	s := &Server{
		changed:  make(chan struct{}),
		tables:   make(map[protocol.TableID]*table),
		tokens:   make(map[string]string),
		failures: make(map[string][]int),
	}
	s.tables[0] = newTable(protocol.TableConfig{MaxPlayers: 6, StartingChips: 1000})
	s.nextID = 1

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.record)
	r.Get("/game", s.handleJoin)
	r.Get("/gamediff", s.handleDiff)
	r.Post("/bet", s.handleBet)
	r.Post("/replace", s.handleReplace)
	r.Post("/dealers_choice", s.handleDealersChoice)
	r.Post("/start", s.handleStart)
	r.Post("/stop", s.handleStop)
	r.Post("/add_bot", s.handleAddBot)
	r.Post("/create_table", s.handleCreateTable)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

func newTable(cfg protocol.TableConfig) *table {
	return &table{
		config:  cfg,
		seats:   make(map[string]int),
		buttons: make(map[string]protocol.Button),
		views:   make(map[string]*protocol.PokerView),
		asked:   make(map[string]*protocol.ActionRequest),
	}
}

// freeSeat returns the lowest unoccupied seat
func (t *table) freeSeat() int {
	taken := make(map[int]bool, len(t.seats))
	for _, seat := range t.seats {
		taken[seat] = true
	}
	seat := 0
	for taken[seat] {
		seat++
	}
	return seat
}

// Close wakes any held long-polls and shuts the server down
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	s.bumpLocked()
	s.mu.Unlock()
	s.Server.CloseClientConnections()
	s.Server.Close()
}

// Scripting

// Seat places player at seat on table 0 without issuing a token
func (s *Server) Seat(player string, seat int) {
	s.update(0, func(t *table) { t.seats[player] = seat })
}

// Deal marks table 0 running with the given roles and optional variant
func (s *Server) Deal(roles map[int]string, variant *protocol.VariantDesc) {
	s.update(0, func(t *table) {
		t.running = true
		t.roles = roles
		t.variant = variant
	})
}

// SetView sets the hand view player receives
func (s *Server) SetView(player string, view *protocol.PokerView) {
	s.update(0, func(t *table) { t.views[player] = view })
}

// Ask sets the action player owes; nil clears it
func (s *Server) Ask(player string, req *protocol.ActionRequest) {
	s.update(0, func(t *table) { t.asked[player] = req })
}

// AppendLog adds human-readable log entries to a round of table 0
func (s *Server) AppendLog(round int, entries ...string) {
	s.update(0, func(t *table) {
		for _, e := range entries {
			t.log = append(t.log, logEntry{round: round, text: e})
		}
	})
}

// FailNext makes the next requests to path fail with the given statuses
func (s *Server) FailNext(path string, codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = append(s.failures[path], codes...)
}

// Inspection

// Requests returns every request received so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// RequestsTo returns the requests received for path
func (s *Server) RequestsTo(path string) []Request {
	var out []Request
	for _, r := range s.Requests() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// Bets returns the bet bodies received
func (s *Server) Bets() []protocol.BetResp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.BetResp(nil), s.bets...)
}

// Replaces returns the replace bodies received
func (s *Server) Replaces() []protocol.ReplaceResp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.ReplaceResp(nil), s.replies...)
}

// DealersChoices returns the dealer's choice bodies received
func (s *Server) DealersChoices() []protocol.DealersChoiceResp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.DealersChoiceResp(nil), s.choices...)
}

// CreatedTables returns the parameters of every created table
func (s *Server) CreatedTables() []protocol.TableParameters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.TableParameters(nil), s.params...)
}

// Running reports whether table 0 has been started
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tables[0].running
}

// Seats returns table 0's seat map
func (s *Server) Seats() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.tables[0].seats))
	for k, v := range s.tables[0].seats {
		out[k] = v
	}
	return out
}

func (s *Server) update(id protocol.TableID, fn func(*table)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.tables[id]
	fn(t)
	t.version++
	s.bumpLocked()
}

func (s *Server) bumpLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

// Handlers

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		var code int
		if pending := s.failures[r.URL.Path]; len(pending) > 0 {
			code = pending[0]
			s.failures[r.URL.Path] = pending[1:]
		}
		s.mu.Unlock()

		if code != 0 {
			http.Error(w, http.StatusText(code), code)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// identify resolves the caller like the real server: a known bearer token
// wins, otherwise a new token is issued. The player parameter seats the
// caller on first use.
func (s *Server) identify(r *http.Request, t *table) (player string, issued protocol.AuthToken) {
	const basic = "Basic "
	auth := r.Header.Get("Authorization")
	key := ""
	if len(auth) > len(basic) && auth[:len(basic)] == basic {
		if tok, err := protocol.ParseAuthToken(auth[len(basic):]); err == nil {
			key = string(tok)
		}
	}
	known, ok := s.tokens[key]
	if !ok {
		s.tokenSeq++
		issued = protocol.AuthToken{s.tokenSeq, 42}
		key = string(issued)
		s.tokens[key] = ""
	}

	player = known
	if name := r.URL.Query().Get("player"); name != "" && player == "" {
		player = name
		s.tokens[key] = name
	}
	if player != "" && t != nil {
		if _, seated := t.seats[player]; !seated {
			t.seats[player] = t.freeSeat()
			t.version++
			s.bumpLocked()
		}
	}
	return player, issued
}

func (s *Server) lookupTable(w http.ResponseWriter, r *http.Request) (protocol.TableID, *table, bool) {
	id, err := protocol.ParseTableID(r.URL.Query().Get("table_id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return 0, nil, false
	}
	t, ok := s.tables[id]
	if !ok {
		http.Error(w, "no such table", http.StatusBadRequest)
		return 0, nil, false
	}
	return id, t, true
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	_, t, ok := s.lookupTable(w, r)
	if !ok {
		s.mu.Unlock()
		return
	}
	player, issued := s.identify(r, t)
	data, err := protocol.Marshal(s.buildUpdate(t, player, issued, len(t.log), false))
	s.mu.Unlock()

	writeRaw(w, data, err)
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	startFrom, err := strconv.Atoi(r.URL.Query().Get("start_from"))
	if err != nil || startFrom < 0 {
		http.Error(w, "bad start_from", http.StatusBadRequest)
		return
	}
	var known *protocol.ActionRequest
	if raw := r.URL.Query().Get("known_action_requested"); raw != "" {
		_ = protocol.Unmarshal([]byte(raw), &known)
	}
	withText := r.URL.Query().Get("send_string_log") == "1"

	s.mu.Lock()
	_, t, ok := s.lookupTable(w, r)
	if !ok {
		s.mu.Unlock()
		return
	}
	player, issued := s.identify(r, t)
	version := t.version
	for {
		changed := len(t.log) > startFrom || t.version != version
		if player != "" && !sameAction(t.asked[player], known) {
			changed = true
		}
		if changed {
			data, err := protocol.Marshal(s.buildUpdate(t, player, issued, startFrom, withText))
			s.mu.Unlock()
			writeRaw(w, data, err)
			return
		}
		if s.closed {
			s.mu.Unlock()
			http.Error(w, "shutting down", http.StatusServiceUnavailable)
			return
		}

		wait := s.changed
		s.mu.Unlock()
		select {
		case <-wait:
		case <-r.Context().Done():
			return
		}
		s.mu.Lock()
	}
}

func (s *Server) buildUpdate(t *table, player string, issued protocol.AuthToken, startFrom int, withText bool) *protocol.ServerUpdate {
	u := &protocol.ServerUpdate{
		NewAuthToken: issued,
		Log:          []protocol.LogUpdate{},
		Table: protocol.TableView{
			Running:        t.running,
			Roles:          t.roles,
			Buttons:        t.buttons,
			Seats:          t.seats,
			Config:         t.config,
			RunningVariant: t.variant,
		},
	}
	if player != "" {
		id := player
		u.PlayerID = &id
		u.Player = &protocol.ServerPlayer{
			ViewState:       t.views[player],
			ActionRequested: t.asked[player],
		}
	}
	if startFrom > len(t.log) {
		startFrom = len(t.log)
	}
	if withText {
		u.StringLog = [][]string{}
	}
	for _, e := range t.log[startFrom:] {
		raw, _ := protocol.Marshal(map[string]string{"kind": "Text", "data": e.text})
		n := len(u.Log)
		if n == 0 || u.Log[n-1].Round != e.round {
			u.Log = append(u.Log, protocol.LogUpdate{Round: e.round})
			if withText {
				u.StringLog = append(u.StringLog, nil)
			}
			n++
		}
		u.Log[n-1].Log = append(u.Log[n-1].Log, raw)
		if withText {
			u.StringLog[n-1] = append(u.StringLog[n-1], e.text)
		}
	}
	return u
}

func sameAction(a, b *protocol.ActionRequest) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ab, _ := protocol.Marshal(a)
	bb, _ := protocol.Marshal(b)
	return bytes.Equal(ab, bb)
}

func (s *Server) seated(w http.ResponseWriter, r *http.Request) (*table, string, bool) {
	_, t, ok := s.lookupTable(w, r)
	if !ok {
		return nil, "", false
	}
	player, _ := s.identify(r, t)
	if player == "" {
		http.Error(w, "no player", http.StatusBadRequest)
		return nil, "", false
	}
	return t, player, true
}

func (s *Server) handleBet(w http.ResponseWriter, r *http.Request) {
	var resp protocol.BetResp
	if err := decodeBody(r, &resp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, player, ok := s.seated(w, r)
	if !ok {
		return
	}
	if req := t.asked[player]; req == nil || req.Kind != protocol.ActionBet {
		http.Error(w, "no bet requested", http.StatusBadRequest)
		return
	}
	s.bets = append(s.bets, resp)
	s.answeredLocked(t, player)
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	var resp protocol.ReplaceResp
	if err := decodeBody(r, &resp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, player, ok := s.seated(w, r)
	if !ok {
		return
	}
	req := t.asked[player]
	if req == nil || req.Kind != protocol.ActionReplace || len(resp) > req.Replace.MaxCanReplace {
		http.Error(w, "replace not allowed", http.StatusBadRequest)
		return
	}
	s.replies = append(s.replies, resp)
	s.answeredLocked(t, player)
}

func (s *Server) handleDealersChoice(w http.ResponseWriter, r *http.Request) {
	var resp protocol.DealersChoiceResp
	if err := decodeBody(r, &resp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	t, player, ok := s.seated(w, r)
	if !ok {
		return
	}
	req := t.asked[player]
	if req == nil || req.Kind != protocol.ActionDealersChoice || resp.VariantIdx < 0 || resp.VariantIdx >= len(req.DealersChoice.Variants) {
		http.Error(w, "dealer's choice not allowed", http.StatusBadRequest)
		return
	}
	s.choices = append(s.choices, resp)
	s.answeredLocked(t, player)
}

func (s *Server) answeredLocked(t *table, player string) {
	delete(t.asked, player)
	t.version++
	s.bumpLocked()
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, t, ok := s.lookupTable(w, r)
	if !ok {
		return
	}
	t.running = true
	t.version++
	s.bumpLocked()
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, t, ok := s.lookupTable(w, r)
	if !ok {
		return
	}
	t.running = false
	t.version++
	s.bumpLocked()
}

func (s *Server) handleAddBot(w http.ResponseWriter, r *http.Request) {
	skill, err := strconv.Atoi(r.URL.Query().Get("bot_skill"))
	if err != nil {
		skill = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, t, ok := s.lookupTable(w, r)
	if !ok {
		return
	}
	if len(t.seats) >= t.config.MaxPlayers {
		http.Error(w, "table full", http.StatusBadRequest)
		return
	}
	t.botCount++
	t.seats[fmt.Sprintf("bot%d-skill%d", t.botCount, skill)] = t.freeSeat()
	t.version++
	s.bumpLocked()
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var params protocol.TableParameters
	if err := decodeBody(r, &params); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if params.TableConfig.MaxPlayers < 2 {
		http.Error(w, "max_players must be at least 2", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.tables[id] = newTable(params.TableConfig)
	s.params = append(s.params, params)
	s.mu.Unlock()

	writeJSON(w, id)
}

func decodeBody(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return protocol.Unmarshal(data, v)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := protocol.Marshal(v)
	writeRaw(w, data, err)
}

func writeRaw(w http.ResponseWriter, data []byte, err error) {
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}
