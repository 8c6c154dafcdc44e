package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/lox/cardtable/internal/client"
	"github.com/lox/cardtable/internal/credential"
	"github.com/lox/cardtable/internal/poller"
	"github.com/lox/cardtable/internal/protocol"
	"github.com/lox/cardtable/internal/session"
)

var getenv = os.Getenv

// GlobalFlags holds common configuration for all commands
type GlobalFlags struct {
	Config   string `short:"c" default:"cardtable.hcl" help:"Path to HCL configuration file"`
	Server   string `short:"s" help:"Server URL to connect to (overrides config)"`
	Player   string `short:"p" help:"Player name (overrides config)"`
	Table    string `short:"t" help:"Table id (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	LogFile  string `help:"Log file path (overrides config)"`
	Theme    string `help:"Colour theme: default, dark, light or plain (overrides config)"`
}

// load resolves the configuration: defaults, then the HCL file, then the
// environment, then flags.
func (g *GlobalFlags) load(getenv func(string) string) (*client.ClientConfig, error) {
	cfg, err := client.LoadClientConfig(g.Config)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}

	if g.Server != "" {
		cfg.Server.URL = g.Server
	}
	if g.Player != "" {
		cfg.Player.Name = g.Player
	}
	if g.Table != "" {
		id, err := protocol.ParseTableID(g.Table)
		if err != nil {
			return nil, err
		}
		cfg.Player.Table = int(id)
	}
	if g.LogLevel != "" {
		cfg.UI.LogLevel = g.LogLevel
	}
	if g.LogFile != "" {
		cfg.UI.LogFile = g.LogFile
	}
	if g.Theme != "" {
		cfg.UI.Theme = g.Theme
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(w io.Writer, level string) *log.Logger {
	logger := log.New(w)
	switch level {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "info":
		logger.SetLevel(log.InfoLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.WarnLevel) // Default to warn to reduce noise
	}
	return logger
}

// openLogFile truncates the log file on every run
func openLogFile(cfg *client.ClientConfig) (*log.Logger, func(), error) {
	f, err := os.OpenFile(cfg.UI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0666)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return newLogger(f, cfg.UI.LogLevel), func() { _ = f.Close() }, nil
}

func newClient(cfg *client.ClientConfig, logger *log.Logger) (*client.Client, error) {
	opts := cfg.Options()
	opts.Credentials = credential.NewFileStore(cfg.Player.TokenFile)
	return client.NewClient(cfg.Server.URL, opts, logger)
}

func newSession(api session.API, cfg *client.ClientConfig, logger *log.Logger) *session.Session {
	return session.New(api, session.Config{
		Table:  protocol.TableID(cfg.Player.Table),
		Player: cfg.Player.Name,
		Poll: poller.Config{
			InitialBackoff: cfg.InitialBackoff(),
			MaxBackoff:     cfg.MaxBackoff(),
			MaxAttempts:    cfg.Poll.MaxAttempts,
		},
	}, logger)
}
