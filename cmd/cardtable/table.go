package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/lox/cardtable/internal/client"
	"github.com/lox/cardtable/internal/protocol"
)

// Variants and special-card groups the server knows by name
var (
	defaultVariants = []string{
		"Texas Hold 'Em",
		"Omaha Hold 'Em",
		"Seven Card Stud",
		"Five Card Stud",
		"Five Card Draw",
	}
	knownSpecialGroups = []string{
		"Twos Wild",
		"Man with the axe wins it all",
	}
)

type CreateTableCmd struct {
	MaxPlayers    int      `default:"6" help:"Maximum players at the table"`
	StartingChips int64    `default:"1000" help:"Starting chip stack"`
	Selector      string   `default:"rotation" enum:"rotation,dealers-choice" help:"How the next variant is picked (rotation or dealers-choice)"`
	Variant       []string `help:"Variant to play, repeatable (defaults to all)"`
	Special       []string `help:"Special-card group as 'Variant=Group', repeatable"`
	Ante          int64    `default:"10" help:"Starting ante or big blind"`
	Blinds        bool     `default:"true" negatable:"" help:"Use blinds instead of an ante"`
	AnteChange    string   `default:"constant" enum:"constant,rounds,minutes" help:"Ante growth: constant, rounds or minutes"`
	AnteEvery     int      `default:"10" help:"Double the ante every N rounds or minutes"`
}

// Parameters builds the create_table request body from the flags
func (c *CreateTableCmd) Parameters() (protocol.TableParameters, error) {
	if c.MaxPlayers < 2 {
		return protocol.TableParameters{}, fmt.Errorf("max players must be at least 2")
	}
	if c.StartingChips <= 0 {
		return protocol.TableParameters{}, fmt.Errorf("starting chips must be positive")
	}
	if c.Ante <= 0 {
		return protocol.TableParameters{}, fmt.Errorf("ante must be positive")
	}

	names := c.Variant
	if len(names) == 0 {
		names = defaultVariants
	}
	descs := make([]protocol.VariantDesc, len(names))
	index := make(map[string]int, len(names))
	for i, name := range names {
		descs[i] = protocol.VariantDesc{Name: name, SpecialCards: []protocol.SpecialCardGroupDesc{}}
		index[strings.ToLower(name)] = i
	}
	for _, arg := range c.Special {
		variant, group, ok := strings.Cut(arg, "=")
		if !ok || group == "" {
			return protocol.TableParameters{}, fmt.Errorf("invalid special card group %q, want 'Variant=Group'", arg)
		}
		i, ok := index[strings.ToLower(strings.TrimSpace(variant))]
		if !ok {
			return protocol.TableParameters{}, fmt.Errorf("special card group %q names unknown variant %q", group, variant)
		}
		name, ok := specialGroup(group)
		if !ok {
			return protocol.TableParameters{}, fmt.Errorf("unknown special card group %q (known: %s)", group, strings.Join(knownSpecialGroups, ", "))
		}
		descs[i].SpecialCards = append(descs[i].SpecialCards, protocol.SpecialCardGroupDesc{Name: name})
	}

	kind := protocol.SelectorRotation
	if c.Selector == "dealers-choice" {
		kind = protocol.SelectorDealersChoice
	}

	change := protocol.AnteRuleChange{Kind: protocol.AnteConstant}
	switch c.AnteChange {
	case "rounds":
		if c.AnteEvery <= 0 {
			return protocol.TableParameters{}, fmt.Errorf("ante-every must be positive")
		}
		change = protocol.AnteRuleChange{Kind: protocol.AnteMulEveryNRounds, Mul: 2, Rounds: c.AnteEvery}
	case "minutes":
		if c.AnteEvery <= 0 {
			return protocol.TableParameters{}, fmt.Errorf("ante-every must be positive")
		}
		change = protocol.AnteRuleChange{Kind: protocol.AnteMulEveryNSeconds, Mul: 2, Seconds: uint32(c.AnteEvery * 60)}
	}

	return protocol.TableParameters{
		TableConfig: protocol.TableConfig{
			MaxPlayers:      c.MaxPlayers,
			StartingChips:   c.StartingChips,
			VariantSelector: &protocol.VariantSelector{Kind: kind, Descs: descs},
		},
		AnteRule: protocol.AnteRuleDesc{
			StartingValue: c.Ante,
			Blinds:        c.Blinds,
			Change:        change,
		},
	}, nil
}

// specialGroup returns the canonical spelling of a group name
func specialGroup(name string) (string, bool) {
	for _, known := range knownSpecialGroups {
		if strings.EqualFold(known, strings.TrimSpace(name)) {
			return known, true
		}
	}
	return "", false
}

func (c *CreateTableCmd) Run(g *GlobalFlags) error {
	params, err := c.Parameters()
	if err != nil {
		return err
	}
	api, _, err := adminClient(g)
	if err != nil {
		return err
	}
	id, err := api.CreateTable(context.Background(), params)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

type StartCmd struct{}

func (c *StartCmd) Run(g *GlobalFlags) error {
	api, cfg, err := adminClient(g)
	if err != nil {
		return err
	}
	return api.Start(context.Background(), protocol.TableID(cfg.Player.Table))
}

type StopCmd struct{}

func (c *StopCmd) Run(g *GlobalFlags) error {
	api, cfg, err := adminClient(g)
	if err != nil {
		return err
	}
	return api.Stop(context.Background(), protocol.TableID(cfg.Player.Table))
}

type AddBotCmd struct {
	Skill string `default:"medium" enum:"call,easy,medium" help:"Bot skill: call, easy or medium"`
}

func (c *AddBotCmd) Run(g *GlobalFlags) error {
	skill, err := client.ParseBotSkill(c.Skill)
	if err != nil {
		return err
	}
	api, cfg, err := adminClient(g)
	if err != nil {
		return err
	}
	return api.AddBot(context.Background(), protocol.TableID(cfg.Player.Table), skill)
}

// adminClient connects for one-shot table commands, logging to stderr
func adminClient(g *GlobalFlags) (*client.Client, *client.ClientConfig, error) {
	cfg, err := g.load(getenv)
	if err != nil {
		return nil, nil, err
	}
	api, err := newClient(cfg, newLogger(os.Stderr, cfg.UI.LogLevel))
	if err != nil {
		return nil, nil, err
	}
	return api, cfg, nil
}
