package tui

import (
	"fmt"
	"strings"

	"github.com/lox/cardtable/internal/action"
	"github.com/lox/cardtable/internal/protocol"
	"github.com/lox/cardtable/internal/seating"
	"github.com/lox/cardtable/internal/submit"
)

func (m *Model) renderLogPane() string {
	snap := m.snap
	if !snap.HasPage {
		return InfoStyle.Render("No log yet")
	}

	var b strings.Builder
	header := fmt.Sprintf("%s of %d", snap.Page.Label, snap.Rounds)
	b.WriteString(HeaderStyle.Render(" " + header + " "))
	b.WriteString("\n")
	for _, e := range snap.Page.Entries {
		b.WriteString(e)
		b.WriteString("\n")
	}
	if !snap.Page.OnLast {
		b.WriteString(InfoStyle.Render("(newer rounds available)"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m *Model) renderSidebarPane() string {
	snap := m.snap
	var b strings.Builder

	b.WriteString(HeaderStyle.Render(fmt.Sprintf(" Table %s ", snap.Table)))
	b.WriteString("\n")
	for i, line := range snap.TableView.VariantLabel() {
		if i == 0 {
			b.WriteString(line)
		} else {
			b.WriteString(InfoStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}
	b.WriteString(WarningStyle.Render(fmt.Sprintf("Pot: %d", snap.Pot())))
	b.WriteString("\n\n")

	for _, group := range []struct {
		name  string
		slots []seating.Slot
	}{
		{"Left", snap.Layout.Left},
		{"Across", snap.Layout.Top},
		{"Right", snap.Layout.Right},
	} {
		if len(group.slots) == 0 {
			continue
		}
		b.WriteString(InfoStyle.Render(group.name))
		b.WriteString("\n")
		for _, slot := range group.slots {
			b.WriteString("  ")
			b.WriteString(renderSlot(slot))
			b.WriteString("\n")
		}
	}

	switch {
	case snap.Spectator:
		b.WriteString(InfoStyle.Render("Watching"))
	case snap.Seated:
		b.WriteString(SuccessStyle.Render(fmt.Sprintf("You: %s (seat %d)", snap.Player, snap.Layout.Seat)))
	default:
		b.WriteString(ErrorStyle.Render("Not seated"))
	}
	b.WriteString("\n")

	if !snap.TableView.Running {
		if snap.CanStart() {
			b.WriteString(SuccessStyle.Render("Ready: type 'start'"))
		} else {
			b.WriteString(InfoStyle.Render("Waiting for players"))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSlot(slot seating.Slot) string {
	label := fmt.Sprintf("%d ", slot.Seat)
	switch slot.Kind {
	case seating.Empty:
		return InfoStyle.Render(label + "empty")
	case seating.SeatedSpectator:
		return label + slot.Player + InfoStyle.Render(" (next hand)")
	}

	label += slot.Player
	if slot.Button != "" {
		label += " " + buttonMark(slot.Button)
	}
	label += fmt.Sprintf(" %d %s", slot.Chips, formatCards(slot.Hand, nil))
	if slot.Folded {
		return InfoStyle.Render(label + " folded")
	}
	return label
}

func buttonMark(b protocol.Button) string {
	switch b {
	case protocol.ButtonDealer:
		return "(D)"
	case protocol.ButtonSmallBlind:
		return "(SB)"
	case protocol.ButtonBigBlind:
		return "(BB)"
	default:
		return ""
	}
}

// formatCards renders cards with colours. When selected is non-nil the
// cards are numbered from 1 and picked ones are highlighted.
func formatCards(cards []protocol.CardView, selected *action.Selection) string {
	if len(cards) == 0 {
		return ""
	}
	parts := make([]string, 0, len(cards))
	for i, c := range cards {
		text := c.String()
		if selected != nil {
			text = fmt.Sprintf("%d:%s", i+1, text)
		}
		style := BlackCardStyle
		switch {
		case !c.Visible:
			style = CardBackStyle
		case c.State.Card.IsRed():
			style = RedCardStyle
		}
		if selected != nil && selected.Contains(i) {
			style = style.Inherit(SelectedCardStyle)
			text = "*" + text
		}
		parts = append(parts, style.Render(text))
	}
	return "[" + strings.Join(parts, " ") + "]"
}

func (m *Model) renderActionPane() string {
	snap := m.snap
	var b strings.Builder

	if snap.View != nil {
		if me, ok := snap.View.Self(); ok {
			b.WriteString(HandInfoStyle.Render("Hand: "))
			b.WriteString(formatCards(me.Hand, snap.Selection))
			b.WriteString(fmt.Sprintf("  Stack: %d", snap.View.Stack(snap.View.Role)))
		}
		if len(snap.View.CommunityCards) > 0 {
			b.WriteString(HandInfoStyle.Render("  Board: "))
			b.WriteString(formatCards(snap.View.CommunityCards, nil))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.renderPrompt())
	b.WriteString("\n")

	if snap.Notice != "" {
		b.WriteString(WarningStyle.Render(snap.Notice))
		b.WriteString("\n")
	}
	if m.status != "" {
		if m.statusIsErr {
			b.WriteString(ErrorStyle.Render(m.status))
		} else {
			b.WriteString(InfoStyle.Render(m.status))
		}
		b.WriteString("\n")
	}

	b.WriteString(m.actionInput.View())
	b.WriteString("\n")
	if m.focusedPane == paneLog {
		b.WriteString(InfoStyle.Render("Log focused: ←→ change round, ↑↓ scroll, Tab to input"))
	} else {
		b.WriteString(InfoStyle.Render("Tab to browse log • Enter to submit • 'help' for commands • Ctrl+C to quit"))
	}
	return b.String()
}

func (m *Model) renderPrompt() string {
	snap := m.snap
	if snap.Spectator {
		return HandInfoStyle.Render("Watching...")
	}
	if snap.Submission == submit.StatePending {
		return HandInfoStyle.Render("Sending...")
	}

	p := snap.Prompt
	switch p.State {
	case action.AwaitingBet:
		actions := []string{
			SuccessStyle.Render("[" + strings.ToLower(p.Bet.CallLabel()) + "]"),
		}
		if p.Bet.Max > 0 && p.Bet.Min <= p.Bet.Max {
			actions = append(actions, WarningStyle.Render(fmt.Sprintf("[raise %d-%d]", p.Bet.Min, p.Bet.Max)))
		}
		actions = append(actions, ErrorStyle.Render("[fold]"))
		return ActionsStyle.Render("Your turn: ") + strings.Join(actions, " ")

	case action.AwaitingReplace:
		label := "Replace 0 cards"
		if snap.Selection != nil {
			label = snap.Selection.Label()
		}
		return ActionsStyle.Render(fmt.Sprintf("Pick up to %d cards with 'toggle N', then ", p.MaxReplace)) +
			SuccessStyle.Render("["+strings.ToLower(label)+"]")

	case action.AwaitingDealersChoice:
		return m.renderChoice()

	default:
		return HandInfoStyle.Render("Waiting...")
	}
}

func (m *Model) renderChoice() string {
	c := m.snap.Choice
	if c == nil {
		return HandInfoStyle.Render("Waiting...")
	}
	var b strings.Builder
	b.WriteString(ActionsStyle.Render("Dealer's choice: 'variant N', 'special N', then 'deal'"))
	for i, v := range c.Variants() {
		b.WriteString("\n")
		mark := "  "
		if i == c.Variant() {
			mark = "> "
		}
		b.WriteString(fmt.Sprintf("%s%d. %s", mark, i+1, v.Name))
		if i != c.Variant() {
			continue
		}
		for j, g := range v.SpecialCards {
			box := "[ ]"
			if c.Enabled(j) {
				box = "[x]"
			}
			b.WriteString(fmt.Sprintf("\n     %s %d. %s", box, j+1, g.Name))
		}
	}
	return b.String()
}
