package main

import (
	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	GlobalFlags `embed:""`

	Version     kong.VersionFlag `short:"v" help:"Show version"`
	Play        PlayCmd          `cmd:"" default:"1" help:"Join a table and play in the terminal"`
	Watch       WatchCmd         `cmd:"" help:"Follow a table's log without the UI"`
	CreateTable CreateTableCmd   `cmd:"create-table" help:"Create a new table and print its id"`
	Start       StartCmd         `cmd:"" help:"Start the next game at a table"`
	Stop        StopCmd          `cmd:"" help:"Stop a table after the current game"`
	AddBot      AddBotCmd        `cmd:"add-bot" help:"Seat a server-side bot at a table"`
}

func main() {
	// A missing .env is fine
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("cardtable"),
		kong.Description("Terminal client for a live multiplayer card table"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run(&cli.GlobalFlags)
	ctx.FatalIfErrorf(err)
}
