package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// AppConfig holds relay-specific configuration.
type AppConfig struct {
	FleetLabel        string `mapstructure:"fleet_label"`
	PollInterval      int    `mapstructure:"poll_interval"`
	StatusLogInterval int    `mapstructure:"status_log_interval"`
	Concurrency       int    `mapstructure:"concurrency"`
	IncludeStopped    bool   `mapstructure:"include_stopped"`
	CallTimeout       int    `mapstructure:"call_timeout"`
	StopTimeout       int    `mapstructure:"stop_timeout"`
	SelfContainer     string `mapstructure:"self_container"`
}

// LoggingConfig holds the logging-related configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"log_level"`
	Format string `mapstructure:"log_format"`
}

// DiscordConfig holds the chat-side credentials and scope.
type DiscordConfig struct {
	Token            string `mapstructure:"token"`
	GuildId          string `mapstructure:"guild_id"`
	OwnerId          string `mapstructure:"owner_id"`
	RegisterCommands bool   `mapstructure:"register_commands"`
}

// DockerConfig holds runtime connection settings. An empty host falls back
// to DOCKER_HOST and the other standard Docker environment variables.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// HighlightRule maps a literal token to a color name.
type HighlightRule struct {
	Token string `mapstructure:"token"`
	Color string `mapstructure:"color"`
}

// FormatConfig controls chunking and highlighting of relayed logs.
type FormatConfig struct {
	ChunkLimit     int             `mapstructure:"chunk_limit"`
	MessageLimit   int             `mapstructure:"message_limit"`
	StripANSI      bool            `mapstructure:"strip_ansi"`
	SeverityColors []HighlightRule `mapstructure:"severity_colors"`
	ServiceColors  []HighlightRule `mapstructure:"service_colors"`
}

type EtcdConfig struct {
	Endpoints   []string `mapstructure:"endpoints"`
	Prefix      string   `mapstructure:"prefix"`
	DialTimeout int      `mapstructure:"dial_timeout"`
}

type SqliteConfig struct {
	Path string `mapstructure:"path"`
}

// WatermarkConfig selects where the relay remembers how far it has read.
type WatermarkConfig struct {
	Backend     string       `mapstructure:"backend"`
	MaxBackfill int          `mapstructure:"max_backfill"`
	Etcd        EtcdConfig   `mapstructure:"etcd"`
	Sqlite      SqliteConfig `mapstructure:"sqlite"`
}

// Config is the top-level configuration struct.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   LoggingConfig   `mapstructure:"log"`
	Discord   DiscordConfig   `mapstructure:"discord"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Format    FormatConfig    `mapstructure:"format"`
	Watermark WatermarkConfig `mapstructure:"watermark"`
}

const (
	BackendMemory = "memory"
	BackendEtcd   = "etcd"
	BackendSqlite = "sqlite"
)

// Colors maps the configurable color names to ANSI SGR foreground codes.
var Colors = map[string]int{
	"gray":    30,
	"red":     31,
	"green":   32,
	"yellow":  33,
	"blue":    34,
	"magenta": 35,
	"cyan":    36,
	"white":   37,
}

func DefaultSeverityColors() []HighlightRule {
	return []HighlightRule{
		{Token: "CRITICAL", Color: "red"},
		{Token: "ERROR", Color: "red"},
		{Token: "WARNING", Color: "yellow"},
		{Token: "INFO", Color: "blue"},
		{Token: "DEBUG", Color: "white"},
	}
}

func DefaultServiceColors() []HighlightRule {
	return []HighlightRule{
		{Token: "dgg-services-manager", Color: "red"},
		{Token: "dgg-relay", Color: "yellow"},
		{Token: "dggpt", Color: "blue"},
		{Token: "dgg-emotes-bot", Color: "magenta"},
		{Token: "dgg-logger", Color: "cyan"},
	}
}

// DefaultFormat is the formatter configuration used when nothing overrides it.
func DefaultFormat() FormatConfig {
	return FormatConfig{
		ChunkLimit:     1950,
		MessageLimit:   2000,
		StripANSI:      true,
		SeverityColors: DefaultSeverityColors(),
		ServiceColors:  DefaultServiceColors(),
	}
}

func rulesToMaps(rules []HighlightRule) []map[string]string {
	out := make([]map[string]string, 0, len(rules))
	for _, r := range rules {
		out = append(out, map[string]string{"token": r.Token, "color": r.Color})
	}
	return out
}

// InitConfig performs the initial configuration: setting defaults, specifying the config file, and reading it.
func InitConfig(configFile string) error {
	viper.SetDefault("app.fleet_label", "com.docker.compose.project=dgg-services")
	viper.SetDefault("app.poll_interval", 65)
	viper.SetDefault("app.status_log_interval", 6*60*60)
	viper.SetDefault("app.concurrency", 4)
	viper.SetDefault("app.include_stopped", true)
	viper.SetDefault("app.call_timeout", 30)
	viper.SetDefault("app.stop_timeout", 10)
	viper.SetDefault("app.self_container", "dgg-services-manager")
	viper.SetDefault("log.log_level", "INFO")
	viper.SetDefault("log.log_format", "console")
	viper.SetDefault("discord.token", "")
	viper.SetDefault("discord.guild_id", "")
	viper.SetDefault("discord.owner_id", "")
	viper.SetDefault("discord.register_commands", true)
	viper.SetDefault("docker.host", "")
	viper.SetDefault("format.chunk_limit", 1950)
	viper.SetDefault("format.message_limit", 2000)
	viper.SetDefault("format.strip_ansi", true)
	viper.SetDefault("format.severity_colors", rulesToMaps(DefaultSeverityColors()))
	viper.SetDefault("format.service_colors", rulesToMaps(DefaultServiceColors()))
	viper.SetDefault("watermark.backend", BackendMemory)
	viper.SetDefault("watermark.max_backfill", 60*60)
	viper.SetDefault("watermark.etcd.endpoints", []string{"localhost:2379"})
	viper.SetDefault("watermark.etcd.prefix", "/docker-discord-relay/watermarks")
	viper.SetDefault("watermark.etcd.dial_timeout", 2)
	viper.SetDefault("watermark.sqlite.path", "relay.db")

	// Specify the config file details.
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName("config") // Looks for config.yaml
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	// Read the config file if available.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// If the file is not found, just continue with defaults and env vars.
	}

	// Enable automatic environment variable binding.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return nil
}

// Load unmarshals the configuration into the Config struct.
func Load() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	return &config, nil
}

// Validate checks the values the relay cannot run without. Discord
// credentials are only required when requireDiscord is set, so offline
// subcommands can run against Docker alone.
func (c *Config) Validate(requireDiscord bool) error {
	if requireDiscord {
		if c.Discord.Token == "" {
			return fmt.Errorf("discord.token is required")
		}
		if c.Discord.GuildId == "" {
			return fmt.Errorf("discord.guild_id is required")
		}
	}
	if strings.TrimSpace(c.App.FleetLabel) == "" {
		return fmt.Errorf("app.fleet_label is required")
	}
	if c.App.PollInterval <= 0 {
		return fmt.Errorf("app.poll_interval must be positive, got %d", c.App.PollInterval)
	}
	if c.App.StatusLogInterval < 0 {
		return fmt.Errorf("app.status_log_interval must not be negative, got %d", c.App.StatusLogInterval)
	}
	if err := c.Format.Validate(); err != nil {
		return err
	}
	switch c.Watermark.Backend {
	case BackendMemory:
	case BackendEtcd:
		if len(c.Watermark.Etcd.Endpoints) == 0 {
			return fmt.Errorf("watermark.etcd.endpoints is required for the etcd backend")
		}
	case BackendSqlite:
		if c.Watermark.Sqlite.Path == "" {
			return fmt.Errorf("watermark.sqlite.path is required for the sqlite backend")
		}
	default:
		return fmt.Errorf("unknown watermark.backend %q", c.Watermark.Backend)
	}
	return nil
}

func (fc FormatConfig) Validate() error {
	if fc.MessageLimit <= 0 {
		return fmt.Errorf("format.message_limit must be positive, got %d", fc.MessageLimit)
	}
	if fc.ChunkLimit <= 0 || fc.ChunkLimit >= fc.MessageLimit {
		return fmt.Errorf("format.chunk_limit must be between 0 and format.message_limit (%d), got %d", fc.MessageLimit, fc.ChunkLimit)
	}
	for _, rules := range [][]HighlightRule{fc.SeverityColors, fc.ServiceColors} {
		for _, r := range rules {
			if r.Token == "" {
				return fmt.Errorf("highlight rule with empty token")
			}
			if _, ok := Colors[strings.ToLower(r.Color)]; !ok {
				return fmt.Errorf("unknown color %q for token %q", r.Color, r.Token)
			}
		}
	}
	return nil
}
