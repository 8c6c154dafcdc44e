// Package poller keeps a client in step with the table server by issuing
// one long-poll at a time, each continuing from where the last one ended.
package poller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/lox/cardtable/internal/client"
	"github.com/lox/cardtable/internal/protocol"
)

var (
	// ErrPollingFailed is returned by Run once MaxAttempts consecutive
	// polls have failed. It wraps the last failure.
	ErrPollingFailed = errors.New("poller: polling failed")

	// ErrNotSeated is returned by Run when the server no longer knows the
	// viewer as a player and the poller is not in spectator mode.
	ErrNotSeated = errors.New("poller: not seated")
)

// Source issues a single diff request
type Source interface {
	Diff(ctx context.Context, req client.DiffRequest) (*protocol.ServerUpdate, error)
}

// Cursor is where the next poll continues from
type Cursor struct {
	// Offset counts structured log entries received so far.
	Offset int
	// KnownAction is the last action request received, echoed back so the
	// server only answers when it changes.
	KnownAction *protocol.ActionRequest
}

// Advance returns the cursor after u has been received
func (c Cursor) Advance(u *protocol.ServerUpdate) Cursor {
	return Cursor{Offset: c.Offset + u.LogLen(), KnownAction: u.ActionRequested()}
}

// Config controls a Poller
type Config struct {
	Table  protocol.TableID
	Player string
	// Spectator keeps polling when the server reports no player id.
	Spectator bool

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxAttempts    int

	Clock quartz.Clock
	// OnRetry is called after a failed poll, once the backoff timer for
	// the next attempt is running.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// ApplyFunc consumes one update. A non-nil error stops Run.
type ApplyFunc func(next Cursor, u *protocol.ServerUpdate) error

// Poller runs the long-poll loop
type Poller struct {
	src    Source
	cfg    Config
	logger *log.Logger
}

// New creates a poller reading from src
func New(src Source, cfg Config, logger *log.Logger) *Poller {
	if cfg.Clock == nil {
		cfg.Clock = quartz.NewReal()
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 8
	}
	return &Poller{
		src:    src,
		cfg:    cfg,
		logger: logger.WithPrefix("poller"),
	}
}

// Poll issues one diff request from cur and returns the advanced cursor
func (p *Poller) Poll(ctx context.Context, cur Cursor) (Cursor, *protocol.ServerUpdate, error) {
	u, err := p.src.Diff(ctx, client.DiffRequest{
		Table:      p.cfg.Table,
		Player:     p.cfg.Player,
		StartFrom:  cur.Offset,
		KnownAsked: cur.KnownAction,
	})
	if err != nil {
		return cur, nil, err
	}
	return cur.Advance(u), u, nil
}

// Run polls until ctx is done, apply fails, the viewer is unseated, or
// MaxAttempts polls in a row fail. Each poll is issued only after the
// previous update has been applied. It returns the last cursor reached.
func (p *Poller) Run(ctx context.Context, cur Cursor, apply ApplyFunc) (Cursor, error) {
	failures := 0
	for {
		next, u, err := p.Poll(ctx, cur)
		if err != nil {
			if ctx.Err() != nil {
				return cur, ctx.Err()
			}
			failures++
			if failures >= p.cfg.MaxAttempts {
				p.logger.Error("Giving up polling", "attempts", failures, "error", err)
				return cur, fmt.Errorf("%w after %d attempts: %w", ErrPollingFailed, failures, err)
			}
			if err := p.wait(ctx, failures, err); err != nil {
				return cur, err
			}
			continue
		}

		if failures > 0 {
			p.logger.Info("Polling recovered", "attempts", failures)
		}
		failures = 0
		p.logger.Debug("Poll succeeded", "offset", next.Offset, "entries", u.LogLen())

		if err := apply(next, u); err != nil {
			return next, err
		}
		cur = next

		if !u.Seated() && !p.cfg.Spectator {
			p.logger.Warn("Server does not know this player", "player", p.cfg.Player)
			return cur, ErrNotSeated
		}
	}
}

// Backoff returns the delay before retry attempt n (1-based)
func (p *Poller) Backoff(n int) time.Duration {
	d := p.cfg.InitialBackoff
	for i := 1; i < n; i++ {
		d *= 2
		if d >= p.cfg.MaxBackoff {
			return p.cfg.MaxBackoff
		}
	}
	return d
}

func (p *Poller) wait(ctx context.Context, attempt int, cause error) error {
	delay := p.Backoff(attempt)
	p.logger.Warn("Poll failed, retrying", "attempt", attempt, "delay", delay, "error", cause)

	timer := p.cfg.Clock.NewTimer(delay, "poller", "backoff")
	defer timer.Stop()
	if p.cfg.OnRetry != nil {
		p.cfg.OnRetry(attempt, delay, cause)
	}

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
