package protocol

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleUpdate = `{
  "player_id": "alice",
  "new_auth_token": [1, 2, 250],
  "player": {
    "viewstate": {
      "role": 1,
      "players": {
        "0": {"chips": 100, "total_bet": 5, "hand": [{"kind": "Invisible"}, {"kind": "Invisible"}], "folded": false},
        "1": {"chips": 100, "total_bet": 20, "hand": [
          {"kind": "Visible", "data": {"card": {"suit": 1, "rank": 0}, "facing": {"kind": "FaceDown"}}},
          {"kind": "Visible", "data": {"card": {"suit": 0, "rank": 11}, "facing": {"kind": "FaceUp"}}}
        ], "folded": false}
      },
      "community_cards": [],
      "bet_this_round": {"1": 10, "0": 25},
      "current_turn": 1,
      "variant": {"use_from_hand": 2}
    },
    "action_requested": {"kind": "Bet", "data": {"call_amount": 25, "min_bet": 30}}
  },
  "log": [{"round": 0, "log": [{"kind": "Fold", "data": {"player": "bob"}}]}, {"round": 1, "log": [{}, {}]}],
  "slog": [["bob folds"], ["alice bets", "carol calls"]],
  "table": {
    "running": true,
    "roles": {"0": "bob", "1": "alice"},
    "buttons": {"bob": "Dealer"},
    "seats": {"alice": 2, "bob": 0, "carol": 4},
    "config": {"max_players": 6, "starting_chips": 100},
    "running_variant": {"name": "Texas Hold'em", "special_cards": [{"name": "Twos wild"}]}
  }
}`

func TestDecodeUpdate(t *testing.T) {
	u, err := DecodeUpdate(strings.NewReader(sampleUpdate))
	require.NoError(t, err)

	require.True(t, u.Seated())
	assert.Equal(t, "alice", *u.PlayerID)
	assert.Equal(t, AuthToken{1, 2, 250}, u.NewAuthToken)
	assert.Equal(t, 3, u.LogLen())
	assert.Equal(t, [][]string{{"bob folds"}, {"alice bets", "carol calls"}}, u.StringLog)

	req := u.ActionRequested()
	require.NotNil(t, req)
	assert.Equal(t, ActionBet, req.Kind)
	assert.Equal(t, &BetRequest{CallAmount: 25, MinBet: 30}, req.Bet)

	view := u.ViewState()
	require.NotNil(t, view)
	self, ok := view.Self()
	require.True(t, ok)
	require.Len(t, self.Hand, 2)
	assert.Equal(t, "AH", self.Hand[0].String())
	assert.Equal(t, FaceDown, self.Hand[0].State.Facing)
	assert.Equal(t, "QS", self.Hand[1].String())
	assert.Equal(t, "##", view.Players[0].Hand[0].String())
	assert.Equal(t, int64(70), view.Stack(1))
	assert.Equal(t, int64(5+20+10+25), view.Pot())

	role, ok := u.Table.RoleOf("alice")
	require.True(t, ok)
	assert.Equal(t, 1, role)
	assert.Equal(t, map[int]PlayerID{2: "alice", 0: "bob", 4: "carol"}, u.Table.PlayerAtSeat())
	assert.Equal(t, []string{"Texas Hold'em", "Twos wild"}, u.Table.VariantLabel())
	assert.False(t, u.Table.CanStart())
}

func TestDecodeUpdateWithoutPlayer(t *testing.T) {
	u, err := DecodeUpdate(strings.NewReader(`{"player_id": null, "player": null, "log": [], "slog": null,
		"table": {"running": false, "roles": null, "buttons": {}, "seats": {"a": 0, "b": 1}, "config": {"max_players": 4, "starting_chips": 50}, "running_variant": null}}`))
	require.NoError(t, err)

	assert.False(t, u.Seated())
	assert.Nil(t, u.ActionRequested())
	assert.Nil(t, u.ViewState())
	assert.Nil(t, u.Table.Roles)
	assert.True(t, u.Table.CanStart())
	assert.Equal(t, []string{"Waiting for next game..."}, u.Table.VariantLabel())
}

func TestActionRequestJSON(t *testing.T) {
	t.Run("replace", func(t *testing.T) {
		var a ActionRequest
		require.NoError(t, Unmarshal([]byte(`{"kind":"Replace","data":{"max_can_replace":3}}`), &a))
		assert.Equal(t, *NewReplaceRequest(3), a)
	})

	t.Run("dealers choice", func(t *testing.T) {
		var a ActionRequest
		require.NoError(t, Unmarshal([]byte(`{"kind":"DealersChoice","data":{"variants":[{"name":"Omaha","special_cards":[{"name":"One-eyed jacks"}]}]}}`), &a))
		require.Equal(t, ActionDealersChoice, a.Kind)
		require.Len(t, a.DealersChoice.Variants, 1)
		assert.Equal(t, "One-eyed jacks", a.DealersChoice.Variants[0].SpecialCards[0].Name)
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		var a ActionRequest
		err := Unmarshal([]byte(`{"kind":"Shuffle","data":{}}`), &a)
		assert.ErrorIs(t, err, ErrUnknownKind)
	})

	t.Run("bet without data is rejected", func(t *testing.T) {
		var a ActionRequest
		err := Unmarshal([]byte(`{"kind":"Bet"}`), &a)
		assert.ErrorIs(t, err, ErrMissingData)
	})

	t.Run("nested failures wrap malformed", func(t *testing.T) {
		_, err := DecodeUpdate(strings.NewReader(`{"player_id":"alice","player":{"viewstate":null,"action_requested":{"kind":"Bet"}},"log":[],"slog":[],"table":{}}`))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformed)
		assert.Contains(t, err.Error(), "missing data")

		var u ServerUpdate
		err = Unmarshal([]byte(`{"log": 3}`), &u)
		assert.ErrorIs(t, err, ErrMalformed)
	})

	t.Run("known action encoding", func(t *testing.T) {
		s, err := EncodeKnownAction(nil)
		require.NoError(t, err)
		assert.Equal(t, "null", s)

		s, err = EncodeKnownAction(NewBetRequest(0, 10))
		require.NoError(t, err)
		assert.JSONEq(t, `{"kind":"Bet","data":{"call_amount":0,"min_bet":10}}`, s)
	})
}

func TestIntentJSON(t *testing.T) {
	b, err := Marshal(Bet(40))
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"Bet","data":40}`, string(b))

	b, err = Marshal(Fold())
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"Fold"}`, string(b))

	b, err = Marshal(DealersChoiceResp{VariantIdx: 2, SpecialCards: []int{0, 3}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"variant_idx":2,"special_cards":[0,3]}`, string(b))

	var resp BetResp
	require.NoError(t, Unmarshal([]byte(`{"kind":"Fold"}`), &resp))
	assert.True(t, resp.Fold)
}

func TestTableParametersJSON(t *testing.T) {
	params := TableParameters{
		TableConfig: TableConfig{
			MaxPlayers:    6,
			StartingChips: 1000,
			VariantSelector: &VariantSelector{
				Kind:  SelectorDealersChoice,
				Descs: []VariantDesc{{Name: "Texas Hold'em", SpecialCards: []SpecialCardGroupDesc{}}},
			},
		},
		AnteRule: AnteRuleDesc{
			StartingValue: 10,
			Blinds:        true,
			Change:        AnteRuleChange{Kind: AnteMulEveryNSeconds, Mul: 2, Seconds: 600},
		},
	}

	b, err := Marshal(params)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"table_config": {"max_players": 6, "starting_chips": 1000,
			"variant_selector": {"kind": "DealersChoice", "data": {"descs": [{"name": "Texas Hold'em", "special_cards": []}]}}},
		"ante_rule": {"starting_value": 10, "blinds": true, "change": {"kind": "MulEveryNSeconds", "data": {"mul": 2, "seconds": 600}}}
	}`, string(b))

	var back TableParameters
	require.NoError(t, Unmarshal(b, &back))
	assert.Equal(t, params, back)
}

func TestAuthToken(t *testing.T) {
	tok := AuthToken{7, 0, 255}
	assert.Equal(t, "Basic [7,0,255]", tok.Header())

	parsed, err := ParseAuthToken(" [7,0,255]\n")
	require.NoError(t, err)
	assert.Equal(t, tok, parsed)

	_, err = ParseAuthToken("[256]")
	assert.Error(t, err)

	var empty AuthToken
	assert.True(t, empty.Empty())
}

func TestCardStrings(t *testing.T) {
	tests := []struct {
		card     Card
		expected string
	}{
		{Card{Suit: Spades, Rank: 0}, "AS"},
		{Card{Suit: Hearts, Rank: 9}, "10H"},
		{Card{Suit: Diamonds, Rank: 10}, "JD"},
		{Card{Suit: Clubs, Rank: 12}, "KC"},
		{Card{Suit: Clubs, Rank: 13}, "AC"},
	}
	for _, test := range tests {
		assert.Equal(t, test.expected, test.card.String())
	}
	assert.True(t, Card{Suit: Diamonds}.IsRed())
	assert.False(t, Card{Suit: Clubs}.IsRed())
}
