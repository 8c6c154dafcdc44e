package protocol

import "encoding/json"

// PlayerID is the display name the server assigns to a seated player
type PlayerID = string

// Server -> Client Messages

// ServerUpdate is returned by both the join and the diff endpoints
type ServerUpdate struct {
	PlayerID     *PlayerID     `json:"player_id"`
	NewAuthToken AuthToken     `json:"new_auth_token,omitempty"`
	Player       *ServerPlayer `json:"player"`
	Log          []LogUpdate   `json:"log"`
	StringLog    [][]string    `json:"slog"`
	Table        TableView     `json:"table"`
}

// ServerPlayer is the part of an update only the local viewer sees
type ServerPlayer struct {
	ViewState       *PokerView     `json:"viewstate"`
	ActionRequested *ActionRequest `json:"action_requested"`
}

// LogUpdate is one round's worth of new structured log entries.
// Entries are kept raw; the client only counts them and shows the
// matching human-readable StringLog text.
type LogUpdate struct {
	Round int               `json:"round"`
	Log   []json.RawMessage `json:"log"`
}

// Seated reports whether the server recognised the viewer as a player
func (u *ServerUpdate) Seated() bool {
	return u.PlayerID != nil && *u.PlayerID != ""
}

// ActionRequested returns the request the server currently owes the
// viewer, or nil.
func (u *ServerUpdate) ActionRequested() *ActionRequest {
	if u.Player == nil {
		return nil
	}
	return u.Player.ActionRequested
}

// ViewState returns the viewer's hand view, or nil between hands.
func (u *ServerUpdate) ViewState() *PokerView {
	if u.Player == nil {
		return nil
	}
	return u.Player.ViewState
}

// LogLen is the number of structured log entries carried by the update
func (u *ServerUpdate) LogLen() int {
	n := 0
	for _, l := range u.Log {
		n += len(l.Log)
	}
	return n
}

// Button marks dealer and blind positions
type Button string

const (
	ButtonDealer     Button = "Dealer"
	ButtonBigBlind   Button = "BigBlind"
	ButtonSmallBlind Button = "SmallBlind"
)

// TableView is the table-level state every viewer receives
type TableView struct {
	Running        bool                `json:"running"`
	Roles          map[int]PlayerID    `json:"roles"`
	Buttons        map[PlayerID]Button `json:"buttons"`
	Seats          map[PlayerID]int    `json:"seats"`
	Config         TableConfig         `json:"config"`
	RunningVariant *VariantDesc        `json:"running_variant"`
}

// PlayerAtSeat inverts the seat map
func (t *TableView) PlayerAtSeat() map[int]PlayerID {
	out := make(map[int]PlayerID, len(t.Seats))
	for p, s := range t.Seats {
		out[s] = p
	}
	return out
}

// RoleOf returns the role a player holds in the running hand
func (t *TableView) RoleOf(player PlayerID) (int, bool) {
	for r, p := range t.Roles {
		if p == player {
			return r, true
		}
	}
	return 0, false
}

// SeatOf returns the seat a player occupies
func (t *TableView) SeatOf(player PlayerID) (int, bool) {
	s, ok := t.Seats[player]
	return s, ok
}

// CanStart reports whether a start request makes sense: the table is
// idle and more than one player is seated.
func (t *TableView) CanStart() bool {
	return !t.Running && len(t.Seats) > 1
}

// VariantLabel describes the running variant and its special cards
func (t *TableView) VariantLabel() []string {
	if t.RunningVariant == nil {
		return []string{"Waiting for next game..."}
	}
	lines := []string{t.RunningVariant.Name}
	for _, g := range t.RunningVariant.SpecialCards {
		lines = append(lines, g.Name)
	}
	return lines
}

// PlayerView is one participant's state within a hand
type PlayerView struct {
	Chips    int64      `json:"chips"`
	TotalBet int64      `json:"total_bet"`
	Hand     []CardView `json:"hand"`
	Folded   bool       `json:"folded"`
}

// VariantView carries per-variant display hints
type VariantView struct {
	UseFromHand int `json:"use_from_hand"`
}

// PokerView is the local viewer's view of the running hand
type PokerView struct {
	Role           int                `json:"role"`
	Players        map[int]PlayerView `json:"players"`
	CommunityCards []CardView         `json:"community_cards"`
	BetThisRound   map[int]int64      `json:"bet_this_round"`
	CurrentTurn    *int               `json:"current_turn"`
	Variant        VariantView        `json:"variant"`
}

// Self returns the viewer's own player state
func (v *PokerView) Self() (PlayerView, bool) {
	p, ok := v.Players[v.Role]
	return p, ok
}

// Stack is what a role can still put in: chips minus everything already
// committed this hand and this betting round.
func (v *PokerView) Stack(role int) int64 {
	p := v.Players[role]
	return p.Chips - p.TotalBet - v.BetThisRound[role]
}

// Pot sums previous rounds' bets and the current round's bets
func (v *PokerView) Pot() int64 {
	var pot int64
	for _, p := range v.Players {
		pot += p.TotalBet
	}
	for _, b := range v.BetThisRound {
		pot += b
	}
	return pot
}
