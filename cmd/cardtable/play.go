package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lox/cardtable/internal/tui"
	"golang.org/x/sync/errgroup"
)

type PlayCmd struct{}

func (c *PlayCmd) Run(g *GlobalFlags) error {
	cfg, err := g.load(getenv)
	if err != nil {
		return err
	}

	// Get player name if not set
	if cfg.Player.Name == "" {
		fmt.Print("Enter your player name: ")
		var input string
		_, _ = fmt.Scanln(&input)
		cfg.Player.Name = strings.TrimSpace(input)
		if cfg.Player.Name == "" {
			return fmt.Errorf("player name is required")
		}
	}

	logger, closeLog, err := openLogFile(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	api, err := newClient(cfg, logger)
	if err != nil {
		return err
	}
	s := newSession(api, cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := s.Join(ctx); err != nil {
		return err
	}
	tui.ApplyTheme(cfg.UI.Theme)

	group, ctx := errgroup.WithContext(ctx)
	p := tea.NewProgram(tui.New(ctx, s, logger), tea.WithAltScreen())
	tui.Bind(ctx, p, s)

	group.Go(func() error {
		// Polling failures are shown in the UI; the player quits from there
		if err := s.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Update loop stopped", "error", err)
		}
		return nil
	})
	group.Go(func() error {
		defer cancel()
		if _, err := p.Run(); err != nil {
			return fmt.Errorf("error running TUI: %w", err)
		}
		return nil
	})

	return group.Wait()
}
