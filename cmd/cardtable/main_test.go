package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/lox/cardtable/internal/protocol"
	"github.com/lox/cardtable/internal/tabletest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) (*CLI, *kong.Context) {
	t.Helper()
	var cli CLI
	parser, err := kong.New(&cli, kong.Vars{"version": "test"})
	require.NoError(t, err)
	ctx, err := parser.Parse(args)
	require.NoError(t, err)
	return &cli, ctx
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cardtable.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestConfigPrecedence(t *testing.T) {
	path := writeConfig(t, `
server {
  url = "http://file:3000"
}
player {
  name  = "from-file"
  table = 3
}
ui {
  log_level = "info"
}
`)

	t.Run("file over defaults", func(t *testing.T) {
		g := &GlobalFlags{Config: path}
		cfg, err := g.load(env(nil))
		require.NoError(t, err)
		assert.Equal(t, "http://file:3000", cfg.Server.URL)
		assert.Equal(t, "from-file", cfg.Player.Name)
		assert.Equal(t, 3, cfg.Player.Table)
		assert.Equal(t, "info", cfg.UI.LogLevel)
		assert.Equal(t, 10, cfg.Server.RequestTimeout)
	})

	t.Run("environment over file", func(t *testing.T) {
		g := &GlobalFlags{Config: path}
		cfg, err := g.load(env(map[string]string{
			"CARDTABLE_PLAYER": "from-env",
			"CARDTABLE_TABLE":  "7",
		}))
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.Player.Name)
		assert.Equal(t, 7, cfg.Player.Table)
		assert.Equal(t, "http://file:3000", cfg.Server.URL)
	})

	t.Run("flags over environment", func(t *testing.T) {
		g := &GlobalFlags{Config: path, Player: "from-flag", Table: "9", LogLevel: "debug", Theme: "plain"}
		cfg, err := g.load(env(map[string]string{"CARDTABLE_PLAYER": "from-env"}))
		require.NoError(t, err)
		assert.Equal(t, "from-flag", cfg.Player.Name)
		assert.Equal(t, 9, cfg.Player.Table)
		assert.Equal(t, "debug", cfg.UI.LogLevel)
		assert.Equal(t, "plain", cfg.UI.Theme)
	})

	t.Run("missing file uses defaults", func(t *testing.T) {
		g := &GlobalFlags{Config: filepath.Join(t.TempDir(), "absent.hcl")}
		cfg, err := g.load(env(nil))
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:3000", cfg.Server.URL)
		assert.Empty(t, cfg.Player.Name)
	})

	t.Run("invalid values are rejected", func(t *testing.T) {
		g := &GlobalFlags{Config: path, Table: "abc"}
		_, err := g.load(env(nil))
		assert.Error(t, err)

		g = &GlobalFlags{Config: path, LogLevel: "loud"}
		_, err = g.load(env(nil))
		assert.ErrorContains(t, err, "invalid log level")
	})
}

func TestDefaultCommandIsPlay(t *testing.T) {
	cli, ctx := parse(t, "--player", "alice")
	assert.Equal(t, "play", ctx.Command())
	assert.Equal(t, "alice", cli.Player)
	assert.Equal(t, "cardtable.hcl", cli.Config)
}

func TestCreateTableParameters(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cli, ctx := parse(t, "create-table")
		assert.Equal(t, "create-table", ctx.Command())

		params, err := cli.CreateTable.Parameters()
		require.NoError(t, err)
		assert.Equal(t, 6, params.TableConfig.MaxPlayers)
		assert.Equal(t, int64(1000), params.TableConfig.StartingChips)
		require.NotNil(t, params.TableConfig.VariantSelector)
		assert.Equal(t, protocol.SelectorRotation, params.TableConfig.VariantSelector.Kind)
		assert.Len(t, params.TableConfig.VariantSelector.Descs, len(defaultVariants))
		assert.Equal(t, protocol.AnteRuleDesc{
			StartingValue: 10,
			Blinds:        true,
			Change:        protocol.AnteRuleChange{Kind: protocol.AnteConstant},
		}, params.AnteRule)
	})

	t.Run("dealers choice with special cards", func(t *testing.T) {
		cli, _ := parse(t, "create-table",
			"--selector", "dealers-choice",
			"--variant", "Texas Hold 'Em",
			"--variant", "Five Card Draw",
			"--special", "five card draw=twos wild",
			"--no-blinds",
			"--ante", "5",
			"--ante-change", "minutes",
			"--ante-every", "15",
		)
		params, err := cli.CreateTable.Parameters()
		require.NoError(t, err)

		sel := params.TableConfig.VariantSelector
		assert.Equal(t, protocol.SelectorDealersChoice, sel.Kind)
		assert.Equal(t, []protocol.VariantDesc{
			{Name: "Texas Hold 'Em", SpecialCards: []protocol.SpecialCardGroupDesc{}},
			{Name: "Five Card Draw", SpecialCards: []protocol.SpecialCardGroupDesc{{Name: "Twos Wild"}}},
		}, sel.Descs)
		assert.False(t, params.AnteRule.Blinds)
		assert.Equal(t, protocol.AnteRuleChange{Kind: protocol.AnteMulEveryNSeconds, Mul: 2, Seconds: 900}, params.AnteRule.Change)

		body, err := protocol.Marshal(params)
		require.NoError(t, err)
		var raw map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(body, &raw))
		assert.JSONEq(t, `{"starting_value":5,"blinds":false,"change":{"kind":"MulEveryNSeconds","data":{"mul":2,"seconds":900}}}`, string(raw["ante_rule"]))
	})

	t.Run("doubling every n rounds", func(t *testing.T) {
		cli, _ := parse(t, "create-table", "--ante-change", "rounds", "--ante-every", "4")
		params, err := cli.CreateTable.Parameters()
		require.NoError(t, err)
		assert.Equal(t, protocol.AnteRuleChange{Kind: protocol.AnteMulEveryNRounds, Mul: 2, Rounds: 4}, params.AnteRule.Change)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		for _, args := range [][]string{
			{"create-table", "--max-players", "1"},
			{"create-table", "--special", "nonsense"},
			{"create-table", "--special", "Omaha=Twos Wild"},
			{"create-table", "--special", "Five Card Draw=Jokers"},
			{"create-table", "--ante-change", "rounds", "--ante-every", "0"},
		} {
			cli, _ := parse(t, args...)
			_, err := cli.CreateTable.Parameters()
			assert.Error(t, err, args)
		}
	})
}

func TestPrintLog(t *testing.T) {
	var buf bytes.Buffer
	printLog(&buf)(&protocol.ServerUpdate{
		Log: []protocol.LogUpdate{
			{Round: 0, Log: []json.RawMessage{[]byte(`{}`)}},
			{Round: 1, Log: []json.RawMessage{[]byte(`{}`), []byte(`{}`)}},
		},
		StringLog: [][]string{{"alice wins 40"}, {"bob posts 5", "alice posts 10"}},
	})
	assert.Equal(t, "[round 1] alice wins 40\n[round 2] bob posts 5\n[round 2] alice posts 10\n", buf.String())
}

func TestStartAndStop(t *testing.T) {
	srv := tabletest.NewServer(t)
	srv.Seat("bob", 1)
	srv.Seat("carol", 2)
	path := writeConfig(t, `
server {
  url = "`+srv.URL+`"
}
player {
  table      = 0
  token_file = "`+filepath.Join(t.TempDir(), "token")+`"
}
ui {
  log_level = "error"
}
`)

	cli, ctx := parse(t, "--config", path, "start")
	require.NoError(t, ctx.Run(&cli.GlobalFlags))
	assert.True(t, srv.Running())

	cli, ctx = parse(t, "--config", path, "stop")
	assert.Equal(t, "stop", ctx.Command())
	require.NoError(t, ctx.Run(&cli.GlobalFlags))
	assert.False(t, srv.Running())
}
