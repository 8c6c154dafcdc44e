// Package seating lays the table out around the local player: the other
// seats are ordered clockwise from the viewer and split into left, top and
// right groups.
package seating

import (
	"github.com/lox/cardtable/internal/protocol"
)

// Bucket is the side of the table a seat is drawn on
type Bucket int

const (
	Left Bucket = iota
	Top
	Right
)

func (b Bucket) String() string {
	switch b {
	case Left:
		return "left"
	case Top:
		return "top"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Kind classifies what occupies a seat
type Kind int

const (
	// Self is the local player; never placed in a bucket.
	Self Kind = iota
	// ActiveOpponent holds a role in the running hand.
	ActiveOpponent
	// SeatedSpectator is seated but not dealt in.
	SeatedSpectator
	// Empty is an unoccupied seat.
	Empty
)

func (k Kind) String() string {
	switch k {
	case Self:
		return "self"
	case ActiveOpponent:
		return "active"
	case SeatedSpectator:
		return "seated"
	case Empty:
		return "empty"
	default:
		return "unknown"
	}
}

// Rotate returns every seat except local, starting at the seat after it:
// (local+k) mod maxSeats for k = 1..maxSeats-1. The modulo is Euclidean so
// any local value yields each other seat exactly once.
func Rotate(local, maxSeats int) []int {
	if maxSeats <= 1 {
		return nil
	}
	out := make([]int, 0, maxSeats-1)
	for k := 1; k < maxSeats; k++ {
		out = append(out, mod(local+k, maxSeats))
	}
	return out
}

// BucketFor places the k-th seat after the viewer: the first third of the
// remaining seats goes left, the second third top, the rest right.
func BucketFor(k, maxSeats int) Bucket {
	switch {
	case 3*k <= maxSeats-1:
		return Left
	case 3*k <= 2*(maxSeats-1):
		return Top
	default:
		return Right
	}
}

func mod(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// Slot is one seat as it should be drawn
type Slot struct {
	Seat   int
	Offset int
	Kind   Kind
	Player protocol.PlayerID
	Role   int
	// Chips is the stack left to bet; only set for active opponents.
	Chips  int64
	Hand   []protocol.CardView
	Folded bool
	Button protocol.Button
}

// Layout is the table as seen from one viewer
type Layout struct {
	Seat  int
	Left  []Slot
	Top   []Slot
	Right []Slot
}

// Slots returns every placed slot in rotation order
func (l Layout) Slots() []Slot {
	out := make([]Slot, 0, len(l.Left)+len(l.Top)+len(l.Right))
	out = append(out, l.Left...)
	out = append(out, l.Top...)
	return append(out, l.Right...)
}

// Build lays out table for local. A viewer without a seat is anchored at
// seat 0, which is then included as the last slot, so every seat appears.
// view may be nil between hands.
func Build(local protocol.PlayerID, table *protocol.TableView, view *protocol.PokerView) Layout {
	maxSeats := table.Config.MaxPlayers
	localSeat, seated := table.SeatOf(local)
	if !seated {
		localSeat = 0
	}
	layout := Layout{Seat: localSeat}
	if maxSeats <= 0 {
		return layout
	}

	byseat := table.PlayerAtSeat()
	seats := Rotate(localSeat, maxSeats)
	if !seated {
		seats = append(seats, mod(localSeat, maxSeats))
	}

	for i, seat := range seats {
		k := i + 1
		slot := classify(local, seat, byseat, table, view)
		slot.Offset = k
		if slot.Kind == Self {
			continue
		}
		switch BucketFor(k, maxSeats) {
		case Left:
			layout.Left = append(layout.Left, slot)
		case Top:
			layout.Top = append(layout.Top, slot)
		default:
			layout.Right = append(layout.Right, slot)
		}
	}
	return layout
}

func classify(local protocol.PlayerID, seat int, byseat map[int]protocol.PlayerID, table *protocol.TableView, view *protocol.PokerView) Slot {
	slot := Slot{Seat: seat, Kind: Empty}
	player, ok := byseat[seat]
	if !ok {
		return slot
	}
	slot.Player = player
	slot.Button = table.Buttons[player]
	if player == local {
		slot.Kind = Self
		return slot
	}

	role, inHand := table.RoleOf(player)
	if !inHand {
		slot.Kind = SeatedSpectator
		return slot
	}
	slot.Role = role
	if view != nil && role == view.Role {
		slot.Kind = Self
		return slot
	}
	slot.Kind = ActiveOpponent
	if view != nil {
		p := view.Players[role]
		slot.Chips = view.Stack(role)
		slot.Hand = p.Hand
		slot.Folded = p.Folded
	}
	return slot
}
