package protocol

import (
	"fmt"
	"strconv"
)

// Suit is the server's suit index
type Suit int

const (
	Spades Suit = iota
	Hearts
	Diamonds
	Clubs
)

// String returns the one-letter suit code
func (s Suit) String() string {
	switch s {
	case Spades:
		return "S"
	case Hearts:
		return "H"
	case Diamonds:
		return "D"
	case Clubs:
		return "C"
	default:
		return "?"
	}
}

// IsRed returns true if the suit is red (Hearts or Diamonds)
func (s Suit) IsRed() bool {
	return s == Hearts || s == Diamonds
}

// Rank is the server's rank index: 0 is the ace, 1..9 are two to ten,
// 10..12 are jack to king. 13 is a high ace.
type Rank int

func (r Rank) String() string {
	switch {
	case r == 0 || r == 13:
		return "A"
	case r >= 1 && r <= 9:
		return strconv.Itoa(int(r) + 1)
	case r >= 10 && r <= 12:
		return []string{"J", "Q", "K"}[r-10]
	default:
		return "?"
	}
}

// Card is a single playing card
type Card struct {
	Suit Suit `json:"suit"`
	Rank Rank `json:"rank"`
}

func (c Card) String() string {
	return c.Rank.String() + c.Suit.String()
}

// IsRed returns true if the card is red
func (c Card) IsRed() bool {
	return c.Suit.IsRed()
}

// Facing says whether a dealt card is exposed to the table
type Facing string

const (
	FaceUp   Facing = "FaceUp"
	FaceDown Facing = "FaceDown"
)

func (f Facing) MarshalJSON() ([]byte, error) {
	return marshalTagged(string(f), nil)
}

func (f *Facing) UnmarshalJSON(b []byte) error {
	t, err := unmarshalTagged(b)
	if err != nil {
		return err
	}
	switch Facing(t.Kind) {
	case FaceUp, FaceDown:
		*f = Facing(t.Kind)
		return nil
	default:
		return fmt.Errorf("%w: facing %q", ErrUnknownKind, t.Kind)
	}
}

// CardState is a card together with its facing
type CardState struct {
	Card   Card   `json:"card"`
	Facing Facing `json:"facing"`
}

// CardView is a card as the viewer sees it: either visible or a back
type CardView struct {
	Visible bool
	State   CardState
}

// VisibleCard builds a visible card view
func VisibleCard(suit Suit, rank Rank, facing Facing) CardView {
	return CardView{Visible: true, State: CardState{Card: Card{Suit: suit, Rank: rank}, Facing: facing}}
}

// HiddenCard builds the back of a card
func HiddenCard() CardView {
	return CardView{}
}

func (c CardView) String() string {
	if !c.Visible {
		return "##"
	}
	return c.State.Card.String()
}

func (c CardView) MarshalJSON() ([]byte, error) {
	if !c.Visible {
		return marshalTagged("Invisible", nil)
	}
	return marshalTagged("Visible", c.State)
}

func (c *CardView) UnmarshalJSON(b []byte) error {
	t, err := unmarshalTagged(b)
	if err != nil {
		return err
	}
	switch t.Kind {
	case "Invisible":
		*c = HiddenCard()
		return nil
	case "Visible":
		*c = CardView{Visible: true}
		return decodeData(t, &c.State)
	default:
		return fmt.Errorf("%w: card %q", ErrUnknownKind, t.Kind)
	}
}
