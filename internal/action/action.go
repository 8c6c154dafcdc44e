// Package action derives what the local player may do from the action
// request the server last declared, and builds the matching intents.
package action

import (
	"errors"
	"fmt"

	"github.com/lox/cardtable/internal/protocol"
)

var (
	// ErrNotAwaiting is returned when an intent does not match the
	// current state.
	ErrNotAwaiting = errors.New("action: not awaiting this action")

	// ErrOutOfRange is returned for a raise outside the published bounds.
	ErrOutOfRange = errors.New("action: amount out of range")
)

// State is what the server currently expects from the viewer
type State int

const (
	Idle State = iota
	AwaitingBet
	AwaitingReplace
	AwaitingDealersChoice
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingBet:
		return "awaiting bet"
	case AwaitingReplace:
		return "awaiting replace"
	case AwaitingDealersChoice:
		return "awaiting dealer's choice"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// BetBounds are the numbers a bet prompt shows
type BetBounds struct {
	// CallAmount is the total the server wants matched this round.
	CallAmount int64
	// BetThisRound is what the viewer already put in this round.
	BetThisRound int64
	// ToCall is CallAmount minus BetThisRound; zero or less is a check.
	ToCall int64
	// Bettable is the viewer's remaining stack.
	Bettable int64
	// Min and Max bound the raise input, as an increment over BetThisRound.
	Min int64
	Max int64
}

// CanCheck reports whether calling costs nothing
func (b BetBounds) CanCheck() bool {
	return b.ToCall <= 0
}

// CallLabel is the text of the call affordance
func (b BetBounds) CallLabel() string {
	if b.CanCheck() {
		return "Check"
	}
	return fmt.Sprintf("Call %d", b.ToCall)
}

// Prompt is the derived action state. Exactly one of Bet, Replace and
// Variants is meaningful, chosen by State.
type Prompt struct {
	State   State
	Request *protocol.ActionRequest

	Bet        BetBounds
	MaxReplace int
	Variants   []protocol.VariantDesc
}

// Derive computes the prompt for req. A bet or replace request without a
// hand view cannot be acted on and derives to Idle.
func Derive(req *protocol.ActionRequest, view *protocol.PokerView) Prompt {
	if req == nil {
		return Prompt{State: Idle}
	}

	switch req.Kind {
	case protocol.ActionBet:
		if view == nil || req.Bet == nil {
			return Prompt{State: Idle}
		}
		return Prompt{State: AwaitingBet, Request: req, Bet: betBounds(req.Bet, view)}
	case protocol.ActionReplace:
		if view == nil || req.Replace == nil {
			return Prompt{State: Idle}
		}
		return Prompt{State: AwaitingReplace, Request: req, MaxReplace: req.Replace.MaxCanReplace}
	case protocol.ActionDealersChoice:
		if req.DealersChoice == nil {
			return Prompt{State: Idle}
		}
		return Prompt{State: AwaitingDealersChoice, Request: req, Variants: req.DealersChoice.Variants}
	default:
		return Prompt{State: Idle}
	}
}

func betBounds(req *protocol.BetRequest, view *protocol.PokerView) BetBounds {
	btr := view.BetThisRound[view.Role]
	bettable := view.Stack(view.Role)

	min := req.MinBet - btr
	if bettable < min {
		min = bettable
	}
	if min < 0 {
		min = 0
	}

	return BetBounds{
		CallAmount:   req.CallAmount,
		BetThisRound: btr,
		ToCall:       req.CallAmount - btr,
		Bettable:     bettable,
		Min:          min,
		Max:          bettable,
	}
}

// CallIntent matches the call amount, or checks
func (p Prompt) CallIntent() (protocol.BetResp, error) {
	if p.State != AwaitingBet {
		return protocol.BetResp{}, fmt.Errorf("%w: call while %s", ErrNotAwaiting, p.State)
	}
	return protocol.Bet(p.Bet.CallAmount), nil
}

// RaiseIntent bets raise on top of what is already in this round
func (p Prompt) RaiseIntent(raise int64) (protocol.BetResp, error) {
	if p.State != AwaitingBet {
		return protocol.BetResp{}, fmt.Errorf("%w: raise while %s", ErrNotAwaiting, p.State)
	}
	if raise < p.Bet.Min || raise > p.Bet.Max {
		return protocol.BetResp{}, fmt.Errorf("%w: %d not in [%d, %d]", ErrOutOfRange, raise, p.Bet.Min, p.Bet.Max)
	}
	return protocol.Bet(raise + p.Bet.BetThisRound), nil
}

// FoldIntent folds the hand
func (p Prompt) FoldIntent() (protocol.BetResp, error) {
	if p.State != AwaitingBet {
		return protocol.BetResp{}, fmt.Errorf("%w: fold while %s", ErrNotAwaiting, p.State)
	}
	return protocol.Fold(), nil
}
