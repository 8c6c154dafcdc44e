package seating

import (
	"sort"
	"testing"

	"github.com/lox/cardtable/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotateIsBijection(t *testing.T) {
	for m := 2; m <= 10; m++ {
		for s := -m; s < 2*m; s++ {
			seats := Rotate(s, m)
			require.Len(t, seats, m-1)

			local := ((s % m) + m) % m
			seen := map[int]bool{}
			for _, seat := range seats {
				assert.NotEqual(t, local, seat)
				assert.GreaterOrEqual(t, seat, 0)
				assert.Less(t, seat, m)
				assert.False(t, seen[seat], "seat %d repeated for s=%d m=%d", seat, s, m)
				seen[seat] = true
			}
		}
	}
}

func TestRotateOrder(t *testing.T) {
	assert.Equal(t, []int{3, 4, 5, 0, 1}, Rotate(2, 6))
	assert.Equal(t, []int{1}, Rotate(0, 2))
	assert.Nil(t, Rotate(0, 1))
}

func TestBucketFor(t *testing.T) {
	tests := []struct {
		maxSeats int
		want     []Bucket
	}{
		{2, []Bucket{Right}},
		{4, []Bucket{Left, Top, Right}},
		{6, []Bucket{Left, Top, Top, Right, Right}},
		{7, []Bucket{Left, Left, Top, Top, Right, Right}},
		{9, []Bucket{Left, Left, Top, Top, Top, Right, Right, Right}},
	}
	for _, tt := range tests {
		var got []Bucket
		for k := 1; k < tt.maxSeats; k++ {
			got = append(got, BucketFor(k, tt.maxSeats))
		}
		assert.Equal(t, tt.want, got, "max seats %d", tt.maxSeats)
	}
}

func sampleTable() *protocol.TableView {
	return &protocol.TableView{
		Running: true,
		Seats:   map[string]int{"alice": 1, "bob": 2, "carol": 4, "dave": 5},
		Roles:   map[int]string{0: "alice", 1: "bob", 2: "dave"},
		Buttons: map[string]protocol.Button{"bob": protocol.ButtonDealer},
		Config:  protocol.TableConfig{MaxPlayers: 6},
	}
}

func sampleView() *protocol.PokerView {
	return &protocol.PokerView{
		Role: 0,
		Players: map[int]protocol.PlayerView{
			0: {Chips: 100},
			1: {Chips: 100, TotalBet: 20, Hand: []protocol.CardView{protocol.HiddenCard()}},
			2: {Chips: 50, Folded: true},
		},
		BetThisRound: map[int]int64{1: 10},
	}
}

func TestBuild(t *testing.T) {
	layout := Build("alice", sampleTable(), sampleView())
	assert.Equal(t, 1, layout.Seat)

	slots := layout.Slots()
	require.Len(t, slots, 5)

	var seats []int
	for _, s := range slots {
		seats = append(seats, s.Seat)
	}
	assert.Equal(t, []int{2, 3, 4, 5, 0}, seats)

	bob := slots[0]
	assert.Equal(t, ActiveOpponent, bob.Kind)
	assert.Equal(t, "bob", bob.Player)
	assert.Equal(t, int64(70), bob.Chips)
	assert.Len(t, bob.Hand, 1)
	assert.Equal(t, protocol.ButtonDealer, bob.Button)

	assert.Equal(t, Empty, slots[1].Kind)
	assert.Equal(t, SeatedSpectator, slots[2].Kind)
	assert.Equal(t, "carol", slots[2].Player)
	assert.Equal(t, ActiveOpponent, slots[3].Kind)
	assert.True(t, slots[3].Folded)
	assert.Equal(t, Empty, slots[4].Kind)

	require.Len(t, layout.Left, 1)
	require.Len(t, layout.Top, 2)
	require.Len(t, layout.Right, 2)
	assert.Equal(t, 2, layout.Left[0].Seat)
}

func TestBuildBetweenHands(t *testing.T) {
	table := sampleTable()
	table.Running = false
	table.Roles = nil

	for _, s := range Build("alice", table, nil).Slots() {
		if s.Player == "" {
			assert.Equal(t, Empty, s.Kind)
		} else {
			assert.Equal(t, SeatedSpectator, s.Kind)
		}
	}
}

func TestBuildUnseatedViewer(t *testing.T) {
	layout := Build("", sampleTable(), nil)
	assert.Equal(t, 0, layout.Seat)

	var seats []int
	for _, s := range layout.Slots() {
		seats = append(seats, s.Seat)
	}
	sort.Ints(seats)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, seats)
	assert.Equal(t, 0, layout.Right[len(layout.Right)-1].Seat)
}

func TestBuildSkipsOwnRole(t *testing.T) {
	// The viewer's role is matched even if the seat map lags behind.
	table := sampleTable()
	table.Roles[3] = "eve"
	table.Seats["eve"] = 3
	view := sampleView()
	view.Role = 3

	for _, s := range Build("alice", table, view).Slots() {
		assert.NotEqual(t, "eve", s.Player)
	}
}
