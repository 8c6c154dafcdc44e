package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/lox/cardtable/internal/client"
)

const helpText = "call|check, raise N, fold, toggle N..., replace, variant N, special N, deal, prev, next, start, bot [call|easy|medium], quit"

// execute runs one typed command. Local edits apply immediately; anything
// that talks to the server runs as a command and reports a resultMsg.
// Card, variant and special-card numbers are 1-based as displayed.
func (m *Model) execute(input string) tea.Cmd {
	fields := strings.Fields(strings.ToLower(input))
	if len(fields) == 0 {
		return nil
	}
	name, args := fields[0], fields[1:]

	switch name {
	case "c", "call", "k", "check":
		return m.send("call", m.ctrl.Call)
	case "f", "fold":
		return m.send("fold", m.ctrl.Fold)
	case "r", "raise":
		if len(args) != 1 {
			m.setError("Specify raise amount: 'raise <amount>'")
			return nil
		}
		amount, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			m.setError(fmt.Sprintf("Invalid amount: %s", args[0]))
			return nil
		}
		return m.send("raise", func(ctx context.Context) error { return m.ctrl.Raise(ctx, amount) })

	case "t", "toggle":
		if len(args) == 0 {
			m.setError("Specify cards: 'toggle 1 3'")
			return nil
		}
		for _, a := range args {
			n, ok := m.index(a)
			if !ok {
				return nil
			}
			if err := m.ctrl.ToggleCard(n); err != nil {
				m.setError(err.Error())
				break
			}
		}
		m.refresh(m.ctrl.Snapshot())
		return nil
	case "replace", "swap":
		return m.send("replace", m.ctrl.SubmitReplace)

	case "v", "variant":
		return m.edit(args, m.ctrl.ChooseVariant)
	case "s", "special":
		return m.edit(args, m.ctrl.ToggleSpecialCard)
	case "deal", "choose":
		return m.send("dealer's choice", m.ctrl.SubmitDealersChoice)

	case "p", "prev":
		m.ctrl.PrevPage()
		m.refresh(m.ctrl.Snapshot())
		return nil
	case "n", "next":
		m.ctrl.NextPage()
		m.refresh(m.ctrl.Snapshot())
		return nil

	case "start":
		return m.send("start", m.ctrl.StartTable)
	case "bot":
		skill, err := client.ParseBotSkill(strings.Join(args, ""))
		if err != nil {
			m.setError(err.Error())
			return nil
		}
		return m.send("add bot", func(ctx context.Context) error { return m.ctrl.AddBot(ctx, skill) })

	case "help", "?":
		m.setStatus(helpText)
		return nil
	case "q", "quit", "/quit":
		m.quitting = true
		return nil
	default:
		m.setError(fmt.Sprintf("Unknown command: %s (try 'help')", name))
		return nil
	}
}

// index parses a 1-based number into a 0-based index
func (m *Model) index(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		m.setError(fmt.Sprintf("Invalid number: %s", arg))
		return 0, false
	}
	return n - 1, true
}

func (m *Model) edit(args []string, fn func(int) error) tea.Cmd {
	if len(args) != 1 {
		m.setError("Specify one number")
		return nil
	}
	n, ok := m.index(args[0])
	if !ok {
		return nil
	}
	if err := fn(n); err != nil {
		m.setError(err.Error())
	}
	m.refresh(m.ctrl.Snapshot())
	return nil
}

func (m *Model) send(intent string, fn func(context.Context) error) tea.Cmd {
	m.setStatus(fmt.Sprintf("Sending %s...", intent))
	ctx := m.ctx
	return func() tea.Msg {
		return resultMsg{intent: intent, err: fn(ctx)}
	}
}
