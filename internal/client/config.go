package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ClientConfig represents the complete client configuration
type ClientConfig struct {
	Server ServerConnection `hcl:"server,block"`
	Player PlayerSettings   `hcl:"player,block"`
	Poll   *PollSettings    `hcl:"poll,block"`
	UI     UISettings       `hcl:"ui,block"`
}

// ServerConnection contains server connection settings
type ServerConnection struct {
	URL            string `hcl:"url"`
	RequestTimeout int    `hcl:"request_timeout,optional"`
	PollTimeout    int    `hcl:"poll_timeout,optional"`
}

// PlayerSettings contains player-specific settings
type PlayerSettings struct {
	Name      string `hcl:"name,optional"`
	Table     int    `hcl:"table,optional"`
	TokenFile string `hcl:"token_file,optional"`
}

// PollSettings controls how the update loop retries failed polls. The
// block is optional.
type PollSettings struct {
	InitialBackoffMs int `hcl:"initial_backoff_ms,optional"`
	MaxBackoffMs     int `hcl:"max_backoff_ms,optional"`
	MaxAttempts      int `hcl:"max_attempts,optional"`
}

// UISettings contains user interface settings
type UISettings struct {
	LogLevel string `hcl:"log_level,optional"`
	LogFile  string `hcl:"log_file,optional"`
	Theme    string `hcl:"theme,optional"`
}

// DefaultClientConfig returns default client configuration
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Server: ServerConnection{
			URL:            "http://localhost:3000",
			RequestTimeout: 10,
			PollTimeout:    0,
		},
		Player: PlayerSettings{
			TokenFile: defaultTokenFile(),
		},
		Poll: &PollSettings{
			InitialBackoffMs: 500,
			MaxBackoffMs:     10000,
			MaxAttempts:      8,
		},
		UI: UISettings{
			LogLevel: "warn",
			LogFile:  "cardtable.log",
			Theme:    "default",
		},
	}
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".cardtable-token"
	}
	return filepath.Join(dir, "cardtable", "token")
}

// LoadClientConfig loads client configuration from HCL file
func LoadClientConfig(filename string) (*ClientConfig, error) {
	// Check if file exists
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultClientConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ClientConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults(DefaultClientConfig())
	return &config, nil
}

func (c *ClientConfig) applyDefaults(defaults *ClientConfig) {
	if c.Server.URL == "" {
		c.Server.URL = defaults.Server.URL
	}
	if c.Server.RequestTimeout == 0 {
		c.Server.RequestTimeout = defaults.Server.RequestTimeout
	}
	if c.Player.TokenFile == "" {
		c.Player.TokenFile = defaults.Player.TokenFile
	}
	if c.Poll == nil {
		c.Poll = defaults.Poll
	}
	if c.Poll.InitialBackoffMs == 0 {
		c.Poll.InitialBackoffMs = defaults.Poll.InitialBackoffMs
	}
	if c.Poll.MaxBackoffMs == 0 {
		c.Poll.MaxBackoffMs = defaults.Poll.MaxBackoffMs
	}
	if c.Poll.MaxAttempts == 0 {
		c.Poll.MaxAttempts = defaults.Poll.MaxAttempts
	}
	if c.UI.LogLevel == "" {
		c.UI.LogLevel = defaults.UI.LogLevel
	}
	if c.UI.LogFile == "" {
		c.UI.LogFile = defaults.UI.LogFile
	}
	if c.UI.Theme == "" {
		c.UI.Theme = defaults.UI.Theme
	}
}

// ApplyEnv overrides settings from CARDTABLE_* environment variables
func (c *ClientConfig) ApplyEnv(getenv func(string) string) error {
	if v := getenv("CARDTABLE_SERVER"); v != "" {
		c.Server.URL = v
	}
	if v := getenv("CARDTABLE_PLAYER"); v != "" {
		c.Player.Name = v
	}
	if v := getenv("CARDTABLE_TABLE"); v != "" {
		var table int
		if _, err := fmt.Sscanf(v, "%d", &table); err != nil {
			return fmt.Errorf("invalid CARDTABLE_TABLE %q: %w", v, err)
		}
		c.Player.Table = table
	}
	if v := getenv("CARDTABLE_LOG_LEVEL"); v != "" {
		c.UI.LogLevel = v
	}
	return nil
}

// Validate validates the client configuration
func (c *ClientConfig) Validate() error {
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}

	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	if c.Server.PollTimeout < 0 {
		return fmt.Errorf("poll timeout cannot be negative")
	}

	if c.Player.Table < 0 {
		return fmt.Errorf("table id cannot be negative")
	}

	if c.Poll.InitialBackoffMs <= 0 {
		return fmt.Errorf("initial backoff must be positive")
	}

	if c.Poll.MaxBackoffMs < c.Poll.InitialBackoffMs {
		return fmt.Errorf("max backoff must be at least the initial backoff")
	}

	if c.Poll.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.UI.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.UI.LogLevel)
	}

	validThemes := map[string]bool{
		"default": true,
		"dark":    true,
		"light":   true,
		"plain":   true,
	}
	if !validThemes[c.UI.Theme] {
		return fmt.Errorf("invalid theme: %s", c.UI.Theme)
	}

	return nil
}

// Options converts the connection settings into client options
func (c *ClientConfig) Options() Options {
	return Options{
		RequestTimeout: time.Duration(c.Server.RequestTimeout) * time.Second,
		PollTimeout:    time.Duration(c.Server.PollTimeout) * time.Second,
	}
}

// InitialBackoff returns the first retry delay
func (c *ClientConfig) InitialBackoff() time.Duration {
	return time.Duration(c.Poll.InitialBackoffMs) * time.Millisecond
}

// MaxBackoff returns the retry delay cap
func (c *ClientConfig) MaxBackoff() time.Duration {
	return time.Duration(c.Poll.MaxBackoffMs) * time.Millisecond
}
