package protocol

import (
	"encoding/json"
	"fmt"
)

// ActionKind tags the arms of ActionRequest
type ActionKind string

const (
	ActionBet           ActionKind = "Bet"
	ActionReplace       ActionKind = "Replace"
	ActionDealersChoice ActionKind = "DealersChoice"
)

// ActionRequest is what the server currently wants from the viewer.
// Exactly the field matching Kind is set; a nil *ActionRequest means
// nothing is owed.
type ActionRequest struct {
	Kind          ActionKind
	Bet           *BetRequest
	Replace       *ReplaceRequest
	DealersChoice *DealersChoiceRequest
}

// BetRequest asks for a bet, call or fold
type BetRequest struct {
	CallAmount int64 `json:"call_amount"`
	MinBet     int64 `json:"min_bet"`
}

// ReplaceRequest asks which hand cards to swap
type ReplaceRequest struct {
	MaxCanReplace int `json:"max_can_replace"`
}

// DealersChoiceRequest asks the dealer to pick the next variant
type DealersChoiceRequest struct {
	Variants []VariantDesc `json:"variants"`
}

// SpecialCardGroupDesc names an optional special-card rule
type SpecialCardGroupDesc struct {
	Name string `json:"name"`
}

// VariantDesc describes a game variant and its optional special cards
type VariantDesc struct {
	Name         string                 `json:"name"`
	SpecialCards []SpecialCardGroupDesc `json:"special_cards"`
}

func NewBetRequest(callAmount, minBet int64) *ActionRequest {
	return &ActionRequest{Kind: ActionBet, Bet: &BetRequest{CallAmount: callAmount, MinBet: minBet}}
}

func NewReplaceRequest(maxCanReplace int) *ActionRequest {
	return &ActionRequest{Kind: ActionReplace, Replace: &ReplaceRequest{MaxCanReplace: maxCanReplace}}
}

func NewDealersChoiceRequest(variants ...VariantDesc) *ActionRequest {
	return &ActionRequest{Kind: ActionDealersChoice, DealersChoice: &DealersChoiceRequest{Variants: variants}}
}

// MarshalJSON encodes the request as {"kind": ..., "data": ...}
func (a ActionRequest) MarshalJSON() ([]byte, error) {
	switch {
	case a.Kind == ActionBet && a.Bet != nil:
		return marshalTagged(string(a.Kind), a.Bet)
	case a.Kind == ActionReplace && a.Replace != nil:
		return marshalTagged(string(a.Kind), a.Replace)
	case a.Kind == ActionDealersChoice && a.DealersChoice != nil:
		return marshalTagged(string(a.Kind), a.DealersChoice)
	case a.Kind == ActionBet, a.Kind == ActionReplace, a.Kind == ActionDealersChoice:
		return nil, fmt.Errorf("%w: %s", ErrMissingData, a.Kind)
	default:
		return nil, fmt.Errorf("%w: action %q", ErrUnknownKind, a.Kind)
	}
}

func (a *ActionRequest) UnmarshalJSON(b []byte) error {
	env, err := unmarshalTagged(b)
	if err != nil {
		return err
	}
	*a = ActionRequest{Kind: ActionKind(env.Kind)}
	switch a.Kind {
	case ActionBet:
		a.Bet = &BetRequest{}
		return decodeData(env, a.Bet)
	case ActionReplace:
		a.Replace = &ReplaceRequest{}
		return decodeData(env, a.Replace)
	case ActionDealersChoice:
		a.DealersChoice = &DealersChoiceRequest{}
		return decodeData(env, a.DealersChoice)
	default:
		return fmt.Errorf("%w: action %q", ErrUnknownKind, env.Kind)
	}
}

// EncodeKnownAction renders the known_action_requested query value.
// A nil request encodes as JSON null.
func EncodeKnownAction(a *ActionRequest) (string, error) {
	if a == nil {
		return "null", nil
	}
	b, err := Marshal(a)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Client -> Server Messages

// BetResp answers a BetRequest. Amount is the viewer's total bet for the
// round, not the increment.
type BetResp struct {
	Fold   bool
	Amount int64
}

func Bet(amount int64) BetResp { return BetResp{Amount: amount} }

func Fold() BetResp { return BetResp{Fold: true} }

func (b BetResp) String() string {
	if b.Fold {
		return "fold"
	}
	return fmt.Sprintf("bet %d", b.Amount)
}

func (b BetResp) MarshalJSON() ([]byte, error) {
	if b.Fold {
		return marshalTagged("Fold", nil)
	}
	return marshalTagged("Bet", b.Amount)
}

func (b *BetResp) UnmarshalJSON(data []byte) error {
	env, err := unmarshalTagged(data)
	if err != nil {
		return err
	}
	switch env.Kind {
	case "Fold":
		*b = Fold()
		return nil
	case "Bet":
		*b = BetResp{}
		return decodeData(env, &b.Amount)
	default:
		return fmt.Errorf("%w: bet %q", ErrUnknownKind, env.Kind)
	}
}

// ReplaceResp lists hand indices to swap, in the order they were picked
type ReplaceResp []int

// DealersChoiceResp picks a variant by index plus the enabled special-card
// group indices of that variant.
type DealersChoiceResp struct {
	VariantIdx   int   `json:"variant_idx"`
	SpecialCards []int `json:"special_cards"`
}

// compile-time checks
var (
	_ json.Marshaler   = ActionRequest{}
	_ json.Unmarshaler = (*ActionRequest)(nil)
	_ json.Marshaler   = BetResp{}
	_ json.Unmarshaler = (*BetResp)(nil)
)
