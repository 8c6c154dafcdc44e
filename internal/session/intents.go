package session

import (
	"context"
	"fmt"

	"github.com/lox/cardtable/internal/action"
	"github.com/lox/cardtable/internal/client"
	"github.com/lox/cardtable/internal/protocol"
)

// Call matches the outstanding bet, or checks when nothing is owed
func (s *Session) Call(ctx context.Context) error {
	return s.bet(ctx, "call", action.Prompt.CallIntent)
}

// Raise puts raise more than the viewer's bet this round
func (s *Session) Raise(ctx context.Context, raise int64) error {
	return s.bet(ctx, "raise", func(p action.Prompt) (protocol.BetResp, error) {
		return p.RaiseIntent(raise)
	})
}

// Fold gives up the hand
func (s *Session) Fold(ctx context.Context) error {
	return s.bet(ctx, "fold", action.Prompt.FoldIntent)
}

func (s *Session) bet(ctx context.Context, intent string, build func(action.Prompt) (protocol.BetResp, error)) error {
	return s.submit(ctx, intent, func() (func(context.Context) error, error) {
		resp, err := build(s.prompt)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			return s.api.Bet(ctx, s.table, s.player, resp)
		}, nil
	})
}

// ToggleCard selects or deselects hand card i for replacement
func (s *Session) ToggleCard(i int) error {
	s.mu.Lock()
	if s.selection == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no replace requested", action.ErrNotAwaiting)
	}
	hand := 0
	if s.view != nil {
		if me, ok := s.view.Self(); ok {
			hand = len(me.Hand)
		}
	}
	if i < 0 || i >= hand {
		s.mu.Unlock()
		return fmt.Errorf("%w: card %d of %d", action.ErrOutOfRange, i, hand)
	}
	changed := s.selection.Toggle(i)
	s.mu.Unlock()

	if changed {
		s.notify()
	}
	return nil
}

// SubmitReplace sends the selected cards. On failure the selection is
// restored unless a newer update has arrived.
func (s *Session) SubmitReplace(ctx context.Context) error {
	return s.submit(ctx, "replace", func() (func(context.Context) error, error) {
		if s.selection == nil {
			return nil, fmt.Errorf("%w: no replace requested", action.ErrNotAwaiting)
		}
		resp := s.selection.Intent()
		return func(ctx context.Context) error {
			return s.api.Replace(ctx, s.table, s.player, resp)
		}, nil
	})
}

// ChooseVariant picks the variant offered at index i
func (s *Session) ChooseVariant(i int) error {
	return s.editChoice(func(c *action.Choice) error { return c.Choose(i) })
}

// ToggleSpecialCard enables or disables special-card group i of the
// chosen variant.
func (s *Session) ToggleSpecialCard(i int) error {
	return s.editChoice(func(c *action.Choice) error { return c.ToggleSpecial(i) })
}

func (s *Session) editChoice(fn func(*action.Choice) error) error {
	s.mu.Lock()
	if s.choice == nil {
		s.mu.Unlock()
		return fmt.Errorf("%w: no dealer's choice requested", action.ErrNotAwaiting)
	}
	err := fn(s.choice)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.notify()
	return nil
}

// SubmitDealersChoice sends the chosen variant and special cards
func (s *Session) SubmitDealersChoice(ctx context.Context) error {
	return s.submit(ctx, "dealers_choice", func() (func(context.Context) error, error) {
		if s.choice == nil {
			return nil, fmt.Errorf("%w: no dealer's choice requested", action.ErrNotAwaiting)
		}
		resp, err := s.choice.Intent()
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error {
			return s.api.DealersChoice(ctx, s.table, s.player, resp)
		}, nil
	})
}

// submit runs an intent through the submitter. prepare is called under
// the session lock and returns the request to send. While the request is
// in flight the prompt is hidden; a failure brings it back.
func (s *Session) submit(ctx context.Context, intent string, prepare func() (func(context.Context) error, error)) error {
	if s.Spectator() {
		return ErrSpectator
	}

	s.mu.Lock()
	send, err := prepare()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	snap := saved{prompt: s.prompt, selection: s.selection, choice: s.choice, gen: s.gen}
	if snap.selection != nil {
		snap.selection = snap.selection.Clone()
	}
	if snap.choice != nil {
		snap.choice = snap.choice.Clone()
	}
	s.mu.Unlock()

	out := s.submitter.Submit(ctx, intent, snap, func(ctx context.Context) error {
		s.mu.Lock()
		s.prompt = action.Prompt{State: action.Idle}
		s.selection = nil
		s.choice = nil
		s.lastErr = nil
		s.mu.Unlock()
		s.notify()
		return send(ctx)
	})

	if out.RolledBack() {
		s.mu.Lock()
		if s.gen == out.Snapshot.gen {
			s.prompt = out.Snapshot.prompt
			s.selection = out.Snapshot.selection
			s.choice = out.Snapshot.choice
		}
		s.lastErr = fmt.Errorf("%s: %w", intent, out.Err)
		s.mu.Unlock()
		s.notify()
		return out.Err
	}
	if out.Err != nil {
		return out.Err
	}
	s.logger.Info("Submitted", "intent", intent)
	s.notify()
	return nil
}

// PrevPage shows the previous round of the log
func (s *Session) PrevPage() {
	s.turnPage(-1)
}

// NextPage shows the next round of the log
func (s *Session) NextPage() {
	s.turnPage(1)
}

func (s *Session) turnPage(delta int) {
	s.mu.Lock()
	s.pager.Advance(delta)
	s.mu.Unlock()
	s.notify()
}

// StartTable asks the server to start dealing
func (s *Session) StartTable(ctx context.Context) error {
	s.mu.Lock()
	ok := s.tableView.CanStart()
	s.mu.Unlock()
	if !ok {
		return ErrCannotStart
	}
	if err := s.api.Start(ctx, s.table); err != nil {
		return fmt.Errorf("start table %s: %w", s.table, err)
	}
	s.logger.Info("Started table", "table", s.table)
	return nil
}

// AddBot seats a server-side bot of the given skill
func (s *Session) AddBot(ctx context.Context, skill client.BotSkill) error {
	if err := s.api.AddBot(ctx, s.table, skill); err != nil {
		return fmt.Errorf("add bot to table %s: %w", s.table, err)
	}
	s.logger.Info("Added bot", "table", s.table, "skill", skill)
	return nil
}
