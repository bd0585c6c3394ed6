package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the top-level configuration for kleinbot.
type Config struct {
	LogLevel       string `yaml:"log_level" json:"log_level" env:"LOG_LEVEL" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Prefix         string `yaml:"prefix" json:"prefix" env:"PREFIX"`
	Transport      string `yaml:"transport" json:"transport" env:"TRANSPORT" jsonschema:"enum=discord,enum=console"`
	DataDir        string `yaml:"data_dir" json:"data_dir" env:"DATA_DIR"`               // credentials and media live here
	MaxConcurrency int    `yaml:"max_concurrency" json:"max_concurrency" env:"MAX_CONCURRENCY"` // concurrent command workers

	Owner       OwnerConfig       `yaml:"owner" json:"owner" envPrefix:"OWNER_"`
	Discord     DiscordConfig     `yaml:"discord" json:"discord" envPrefix:"DISCORD_"`
	Reconnect   ReconnectConfig   `yaml:"reconnect" json:"reconnect" envPrefix:"RECONNECT_"`
	Send        SendConfig        `yaml:"send" json:"send" envPrefix:"SEND_"`
	Groups      GroupConfig       `yaml:"groups" json:"groups" envPrefix:"GROUPS_"`
	Sticker     StickerConfig     `yaml:"sticker" json:"sticker" envPrefix:"STICKER_"`
	Media       MediaConfig       `yaml:"media" json:"media" envPrefix:"MEDIA_"`
	Maintenance MaintenanceConfig `yaml:"maintenance" json:"maintenance" envPrefix:"MAINTENANCE_"`
	RateLimit   RateLimitConfig   `yaml:"rate_limit" json:"rate_limit" envPrefix:"RATE_"`
	AI          AISettings        `yaml:"ai" json:"ai" envPrefix:"AI_"`
}

// OwnerConfig identifies the operator who receives diagnostics.
type OwnerConfig struct {
	Name   string `yaml:"name" json:"name" env:"NAME"`
	Number string `yaml:"number" json:"number" env:"NUMBER"` // chat id reports are sent to
	Phone  string `yaml:"phone" json:"phone" env:"PHONE"`    // contact shown to users
}

// DiscordConfig holds Discord bot configuration.
type DiscordConfig struct {
	Token             string   `yaml:"token" json:"token" env:"TOKEN"`
	AllowedGuildIDs   []string `yaml:"allowed_guild_ids" json:"allowed_guild_ids,omitempty" env:"ALLOWED_GUILD_IDS"`
	AllowedChannelIDs []string `yaml:"allowed_channel_ids" json:"allowed_channel_ids,omitempty" env:"ALLOWED_CHANNEL_IDS"`
	AllowedUserIDs    []string `yaml:"allowed_user_ids" json:"allowed_user_ids,omitempty" env:"ALLOWED_USER_IDS"`
	MentionOnly       bool     `yaml:"mention_only" json:"mention_only" env:"MENTION_ONLY"` // in guilds, only respond when @mentioned
}

// ReconnectConfig is the backoff between connection attempts (Go durations).
type ReconnectConfig struct {
	Base string `yaml:"base" json:"base" env:"BASE"`
	Max  string `yaml:"max" json:"max" env:"MAX"`
}

// SendConfig controls replies. The retry policy for sends is fixed.
type SendConfig struct {
	Ephemeral string `yaml:"ephemeral" json:"ephemeral" env:"EPHEMERAL"`
}

type GroupConfig struct {
	CacheTTL string `yaml:"cache_ttl" json:"cache_ttl" env:"CACHE_TTL"`
	Welcome  string `yaml:"welcome" json:"welcome,omitempty" env:"WELCOME"` // "{user}" and "{group}" are replaced
	Goodbye  string `yaml:"goodbye" json:"goodbye,omitempty" env:"GOODBYE"`
}

type StickerConfig struct {
	MaxVideo       string   `yaml:"max_video" json:"max_video" env:"MAX_VIDEO"`
	MaxQuotedVideo string   `yaml:"max_quoted_video" json:"max_quoted_video" env:"MAX_QUOTED_VIDEO"`
	Emojis         []string `yaml:"emojis" json:"emojis,omitempty" env:"EMOJIS"`
}

// MediaConfig locates external tools and the temp workspace.
type MediaConfig struct {
	TempDir    string `yaml:"temp_dir" json:"temp_dir,omitempty" env:"TEMP_DIR"`
	FFmpeg     string `yaml:"ffmpeg" json:"ffmpeg,omitempty" env:"FFMPEG"`
	WebPMux    string `yaml:"webpmux" json:"webpmux,omitempty" env:"WEBPMUX"`
	YtDlp      string `yaml:"yt_dlp" json:"yt_dlp,omitempty" env:"YT_DLP"`
	MaxYouTube string `yaml:"max_youtube" json:"max_youtube" env:"MAX_YOUTUBE"`
	FetchLimit int64  `yaml:"fetch_limit" json:"fetch_limit,omitempty" env:"FETCH_LIMIT"` // bytes
}

type MaintenanceConfig struct {
	Schedule string `yaml:"schedule" json:"schedule" env:"SCHEDULE"` // cron expression
	MaxAge   string `yaml:"max_age" json:"max_age" env:"MAX_AGE"`
}

type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" json:"per_second" env:"PER_SECOND"`
	Burst     int     `yaml:"burst" json:"burst" env:"BURST"`
}

// AISettings contains content generation configuration.
type AISettings struct {
	Backend      string `yaml:"backend" json:"backend" env:"BACKEND" jsonschema:"enum=gemini,enum=anthropic,enum=openai,enum=ollama"`
	Model        string `yaml:"model" json:"model" env:"MODEL"`
	APIKey       string `yaml:"api_key" json:"api_key,omitempty" env:"API_KEY"` // falls back to the backend's usual env var
	MaxTokens    int    `yaml:"max_tokens" json:"max_tokens,omitempty" env:"MAX_TOKENS"`
	HistoryTurns int    `yaml:"history_turns" json:"history_turns" env:"HISTORY_TURNS"`
	SystemPrompt string `yaml:"system_prompt" json:"system_prompt,omitempty" env:"SYSTEM_PROMPT"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		LogLevel:       "info",
		Prefix:         "!",
		Transport:      "discord",
		DataDir:        DefaultDataDir(),
		MaxConcurrency: 4,
		Owner: OwnerConfig{
			Name: "kleinbot",
		},
		Reconnect: ReconnectConfig{Base: "2s", Max: "60s"},
		Send:      SendConfig{Ephemeral: "24h"},
		Groups:    GroupConfig{CacheTTL: "5m"},
		Sticker:   StickerConfig{MaxVideo: "11s", MaxQuotedVideo: "35s"},
		Media:     MediaConfig{MaxYouTube: "20m", FetchLimit: 16 << 20},
		Maintenance: MaintenanceConfig{
			Schedule: "*/15 * * * *",
			MaxAge:   "1h",
		},
		RateLimit: RateLimitConfig{PerSecond: 1, Burst: 5},
		AI: AISettings{
			Backend:      "gemini",
			Model:        "gemini-2.5-flash",
			HistoryTurns: 10,
		},
	}
}

// applyDefaults fills fields a partial config file left empty.
func applyDefaults(c *Config) {
	d := Default()
	setString := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	setString(&c.LogLevel, d.LogLevel)
	setString(&c.Prefix, d.Prefix)
	setString(&c.Transport, d.Transport)
	setString(&c.DataDir, d.DataDir)
	setString(&c.Owner.Name, d.Owner.Name)
	setString(&c.Reconnect.Base, d.Reconnect.Base)
	setString(&c.Reconnect.Max, d.Reconnect.Max)
	setString(&c.Send.Ephemeral, d.Send.Ephemeral)
	setString(&c.Groups.CacheTTL, d.Groups.CacheTTL)
	setString(&c.Sticker.MaxVideo, d.Sticker.MaxVideo)
	setString(&c.Sticker.MaxQuotedVideo, d.Sticker.MaxQuotedVideo)
	setString(&c.Media.MaxYouTube, d.Media.MaxYouTube)
	setString(&c.Maintenance.Schedule, d.Maintenance.Schedule)
	setString(&c.Maintenance.MaxAge, d.Maintenance.MaxAge)
	setString(&c.AI.Backend, d.AI.Backend)

	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = d.MaxConcurrency
	}
	if c.Media.FetchLimit <= 0 {
		c.Media.FetchLimit = d.Media.FetchLimit
	}
	if c.RateLimit.PerSecond <= 0 {
		c.RateLimit.PerSecond = d.RateLimit.PerSecond
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = d.RateLimit.Burst
	}
	if c.AI.HistoryTurns <= 0 {
		c.AI.HistoryTurns = d.AI.HistoryTurns
	}
	if c.AI.Model == "" && c.AI.Backend == d.AI.Backend {
		c.AI.Model = d.AI.Model
	}
	if c.Media.TempDir == "" {
		c.Media.TempDir = filepath.Join(c.DataDir, "temp")
	}
}

// DefaultDataDir returns ~/.kleinbot.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".kleinbot"
	}
	return filepath.Join(home, ".kleinbot")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// CredentialsPath is where the transport's login state is stored.
func (c *Config) CredentialsPath() string {
	return filepath.Join(c.DataDir, "auth", "creds.cbor")
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

func (c *Config) ReconnectBase() time.Duration { return parseDuration(c.Reconnect.Base, 2*time.Second) }
func (c *Config) ReconnectMax() time.Duration  { return parseDuration(c.Reconnect.Max, 60*time.Second) }
func (c *Config) Ephemeral() time.Duration     { return parseDuration(c.Send.Ephemeral, 24*time.Hour) }
func (c *Config) GroupCacheTTL() time.Duration { return parseDuration(c.Groups.CacheTTL, 5*time.Minute) }
func (c *Config) MaxVideoSticker() time.Duration {
	return parseDuration(c.Sticker.MaxVideo, 11*time.Second)
}
func (c *Config) MaxQuotedVideoSticker() time.Duration {
	return parseDuration(c.Sticker.MaxQuotedVideo, 35*time.Second)
}
func (c *Config) MaxYouTube() time.Duration { return parseDuration(c.Media.MaxYouTube, 20*time.Minute) }
func (c *Config) MaintenanceMaxAge() time.Duration {
	return parseDuration(c.Maintenance.MaxAge, time.Hour)
}
