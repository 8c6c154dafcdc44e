package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lox/cardtable/internal/protocol"
	"github.com/lox/cardtable/internal/relay"
	"github.com/lox/cardtable/internal/session"
	"golang.org/x/sync/errgroup"
)

type WatchCmd struct {
	Relay string `help:"Re-broadcast the log over websockets on this address (e.g. :8090)"`
}

func (c *WatchCmd) Run(g *GlobalFlags) error {
	cfg, err := g.load(getenv)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, cfg.UI.LogLevel)

	api, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	s := newSession(api, cfg, logger)
	s.SubscribeUpdates(printLog(os.Stdout))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var r *relay.Relay
	if c.Relay != "" {
		r = relay.New(logger)
		s.SubscribeUpdates(r.Publish)
	}

	if err := s.Join(ctx); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	if r != nil {
		group.Go(func() error { return r.Serve(ctx, c.Relay) })
	}
	if s.Spectator() {
		logger.Info("Watching as spectator", "table", cfg.Player.Table)
	}

	group.Go(func() error {
		err := s.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	return group.Wait()
}

// printLog writes each new log entry on its own line, prefixed with the
// round it belongs to.
func printLog(w io.Writer) session.UpdateListener {
	return func(u *protocol.ServerUpdate) {
		for i, text := range u.StringLog {
			round := i
			if i < len(u.Log) {
				round = u.Log[i].Round
			}
			for _, line := range text {
				_, _ = fmt.Fprintf(w, "[round %d] %s\n", round+1, line)
			}
		}
	}
}
