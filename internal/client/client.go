package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/cardtable/internal/credential"
	"github.com/lox/cardtable/internal/protocol"
)

var (
	// ErrDecode wraps a response body the client could not parse.
	ErrDecode = errors.New("client: malformed response")

	// ErrInvalidURL is returned for a server URL that is not absolute http(s).
	ErrInvalidURL = errors.New("client: invalid server url")
)

// StatusError is returned when the server answers with a non-success status.
type StatusError struct {
	Op   string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.Code)
	}
	return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.Code, e.Body)
}

// BotSkill selects the strategy of a server-side bot
type BotSkill int

const (
	BotAlwaysCall BotSkill = 0
	BotEasy       BotSkill = 1
	BotMedium     BotSkill = 2
)

// ParseBotSkill accepts the skill by name
func ParseBotSkill(s string) (BotSkill, error) {
	switch strings.ToLower(s) {
	case "call", "always-call":
		return BotAlwaysCall, nil
	case "easy", "":
		return BotEasy, nil
	case "medium":
		return BotMedium, nil
	default:
		return 0, fmt.Errorf("unknown bot skill %q", s)
	}
}

// Options configures a Client
type Options struct {
	// RequestTimeout bounds every request except the long-poll.
	RequestTimeout time.Duration
	// PollTimeout bounds a single long-poll. Zero waits until the server
	// answers or the context is cancelled.
	PollTimeout time.Duration
	// Credentials supplies and receives the bearer token. Nil keeps the
	// token in memory.
	Credentials credential.Store
	// Transport overrides the HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

// Client talks to the table server's HTTP API
type Client struct {
	base   *url.URL
	http   *http.Client
	poll   *http.Client
	creds  credential.Store
	logger *log.Logger
}

// NewClient creates a new API client for serverURL
func NewClient(serverURL string, opts Options, logger *log.Logger) (*Client, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, serverURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	creds := opts.Credentials
	if creds == nil {
		creds = credential.NewMemoryStore()
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		base:   u,
		http:   &http.Client{Timeout: opts.RequestTimeout, Transport: transport},
		poll:   &http.Client{Timeout: opts.PollTimeout, Transport: transport},
		creds:  creds,
		logger: logger.WithPrefix("client"),
	}, nil
}

// ServerURL returns the base URL requests are sent to
func (c *Client) ServerURL() string {
	return c.base.String()
}

// Join fetches the full table state for player. An empty player joins as
// an observer.
func (c *Client) Join(ctx context.Context, table protocol.TableID, player string) (*protocol.ServerUpdate, error) {
	q := seatQuery(table, player)
	return c.getUpdate(ctx, c.http, "join", "/game", q)
}

// DiffRequest names what the long-poll should wait for
type DiffRequest struct {
	Table      protocol.TableID
	Player     string
	StartFrom  int
	KnownAsked *protocol.ActionRequest
}

// Diff long-polls for log entries after StartFrom. The server holds the
// request until there is new log, the action request differs from
// KnownAsked, or the table changes.
func (c *Client) Diff(ctx context.Context, req DiffRequest) (*protocol.ServerUpdate, error) {
	known, err := protocol.EncodeKnownAction(req.KnownAsked)
	if err != nil {
		return nil, fmt.Errorf("encode known action: %w", err)
	}
	q := seatQuery(req.Table, req.Player)
	q.Set("send_string_log", "1")
	q.Set("start_from", strconv.Itoa(req.StartFrom))
	q.Set("known_action_requested", known)
	return c.getUpdate(ctx, c.poll, "diff", "/gamediff", q)
}

// Bet submits a bet or fold
func (c *Client) Bet(ctx context.Context, table protocol.TableID, player string, resp protocol.BetResp) error {
	return c.postJSON(ctx, "bet", "/bet", seatQuery(table, player), resp, nil)
}

// Replace submits the hand indices to swap
func (c *Client) Replace(ctx context.Context, table protocol.TableID, player string, resp protocol.ReplaceResp) error {
	if resp == nil {
		resp = protocol.ReplaceResp{}
	}
	return c.postJSON(ctx, "replace", "/replace", seatQuery(table, player), resp, nil)
}

// DealersChoice submits the chosen variant
func (c *Client) DealersChoice(ctx context.Context, table protocol.TableID, player string, resp protocol.DealersChoiceResp) error {
	if resp.SpecialCards == nil {
		resp.SpecialCards = []int{}
	}
	return c.postJSON(ctx, "dealers_choice", "/dealers_choice", seatQuery(table, player), resp, nil)
}

// Start asks the table to deal
func (c *Client) Start(ctx context.Context, table protocol.TableID) error {
	return c.postJSON(ctx, "start", "/start", tableQuery(table), nil, nil)
}

// Stop asks the table to stop after the current hand
func (c *Client) Stop(ctx context.Context, table protocol.TableID) error {
	return c.postJSON(ctx, "stop", "/stop", tableQuery(table), nil, nil)
}

// AddBot seats a server-side bot
func (c *Client) AddBot(ctx context.Context, table protocol.TableID, skill BotSkill) error {
	q := tableQuery(table)
	q.Set("bot_skill", strconv.Itoa(int(skill)))
	return c.postJSON(ctx, "add_bot", "/add_bot", q, nil, nil)
}

// CreateTable creates a table and returns its id
func (c *Client) CreateTable(ctx context.Context, params protocol.TableParameters) (protocol.TableID, error) {
	var id protocol.TableID
	if err := c.postJSON(ctx, "create_table", "/create_table", nil, params, &id); err != nil {
		return 0, err
	}
	c.logger.Info("Created table", "table", id)
	return id, nil
}

func seatQuery(table protocol.TableID, player string) url.Values {
	q := tableQuery(table)
	if player != "" {
		q.Set("player", player)
	}
	return q
}

func tableQuery(table protocol.TableID) url.Values {
	return url.Values{"table_id": []string{table.String()}}
}

func (c *Client) endpoint(path string, q url.Values) string {
	u := *c.base
	u.Path += path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) getUpdate(ctx context.Context, hc *http.Client, op, path string, q url.Values) (*protocol.ServerUpdate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, q), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	body, err := c.do(hc, op, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	update, err := protocol.DecodeUpdate(body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}
	c.adoptToken(update.NewAuthToken)
	return update, nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, q url.Values, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := protocol.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, q), body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.do(c.http, op, req)
	if err != nil {
		return err
	}
	defer resp.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp)
		return nil
	}
	data, err := io.ReadAll(resp)
	if err != nil {
		return fmt.Errorf("%s: read body: %w", op, err)
	}
	if err := protocol.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrDecode, err)
	}
	return nil
}

// do sends req with the stored credential and returns the body of a 2xx
// response.
func (c *Client) do(hc *http.Client, op string, req *http.Request) (io.ReadCloser, error) {
	token, err := c.creds.Load()
	switch {
	case err == nil:
		req.Header.Set("Authorization", token.Header())
	case !errors.Is(err, credential.ErrNoToken):
		c.logger.Warn("Failed to load credential", "error", err)
	}

	c.logger.Debug("Request", "op", op, "method", req.Method, "url", req.URL.Path)

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	return resp.Body, nil
}

func (c *Client) adoptToken(t protocol.AuthToken) {
	if t.Empty() {
		return
	}
	if err := c.creds.Save(t); err != nil {
		c.logger.Warn("Failed to save credential", "error", err)
		return
	}
	c.logger.Debug("Adopted new credential")
}
