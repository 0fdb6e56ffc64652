package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the user-facing configuration in TOML format.
type Config struct {
	// Telegram holds bot credentials and chat routing.
	Telegram TelegramSettings `toml:"telegram"`

	// Monitor tunes the polling loop.
	Monitor MonitorSettings `toml:"monitor"`

	// Claude points at the assistant runtime's data directory.
	Claude ClaudeSettings `toml:"claude"`

	// Logs configures the rotated log file.
	Logs LogSettings `toml:"logs"`
}

// TelegramSettings configures the outward chat channel.
type TelegramSettings struct {
	// Token is the bot token. MUXGRAM_TELEGRAM_TOKEN overrides.
	Token string `toml:"token"`

	// ChatID is the destination chat for relayed output.
	// MUXGRAM_TELEGRAM_CHAT_ID overrides.
	ChatID int64 `toml:"chat_id"`

	// AllowedChatIDs lists additional chats permitted to issue commands.
	// The destination chat is always allowed.
	AllowedChatIDs []int64 `toml:"allowed_chat_ids"`
}

// GetToken returns the bot token, preferring the environment override.
func (t TelegramSettings) GetToken() string {
	if tok := os.Getenv("MUXGRAM_TELEGRAM_TOKEN"); tok != "" {
		return tok
	}
	return t.Token
}

// GetChatID returns the destination chat id, preferring the environment
// override.
func (t TelegramSettings) GetChatID() int64 {
	if raw := os.Getenv("MUXGRAM_TELEGRAM_CHAT_ID"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return id
		}
	}
	return t.ChatID
}

// Allowed reports whether a chat may issue commands.
func (t TelegramSettings) Allowed(chatID int64) bool {
	if chatID == t.GetChatID() {
		return true
	}
	for _, id := range t.AllowedChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// MonitorSettings tunes the polling loop.
type MonitorSettings struct {
	// PollIntervalMS is the tick interval in milliseconds (default 2000).
	PollIntervalMS int `toml:"poll_interval_ms"`

	// FetchTimeoutMS bounds each collaborator call (default 5000).
	FetchTimeoutMS int `toml:"fetch_timeout_ms"`

	// FailureThreshold is the number of consecutive per-window failures
	// before one escalation notice is relayed (default 5).
	FailureThreshold int `toml:"failure_threshold"`
}

// GetPollInterval returns the tick interval, defaulting to 2s.
func (m MonitorSettings) GetPollInterval() time.Duration {
	if m.PollIntervalMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(m.PollIntervalMS) * time.Millisecond
}

// GetFetchTimeout returns the per-call timeout, defaulting to 5s.
func (m MonitorSettings) GetFetchTimeout() time.Duration {
	if m.FetchTimeoutMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(m.FetchTimeoutMS) * time.Millisecond
}

// GetFailureThreshold returns the escalation threshold, defaulting to 5.
func (m MonitorSettings) GetFailureThreshold() int {
	if m.FailureThreshold <= 0 {
		return 5
	}
	return m.FailureThreshold
}

// ClaudeSettings points at the assistant runtime's data directory, where
// session transcripts live under projects/.
type ClaudeSettings struct {
	// ConfigDir overrides the default ~/.claude. CLAUDE_CONFIG_DIR wins
	// over both.
	ConfigDir string `toml:"config_dir"`
}

// GetConfigDir resolves the Claude data directory.
func (c ClaudeSettings) GetConfigDir() string {
	if dir := os.Getenv("CLAUDE_CONFIG_DIR"); dir != "" {
		return ExpandTilde(dir)
	}
	if c.ConfigDir != "" {
		return ExpandTilde(c.ConfigDir)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".claude"
	}
	return filepath.Join(home, ".claude")
}

// LogSettings configures the rotated log file.
type LogSettings struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

var defaultConfig = Config{
	Logs: LogSettings{Compress: true},
}

// Cache for the config (loaded once per process).
var (
	configCache   *Config
	configCacheMu sync.RWMutex
)

// Load reads config.toml, returning cached values after the first call.
// A missing file yields defaults; a parse error yields defaults plus the
// error so the caller can surface it.
func Load() (*Config, error) {
	configCacheMu.RLock()
	if configCache != nil {
		defer configCacheMu.RUnlock()
		return configCache, nil
	}
	configCacheMu.RUnlock()

	configCacheMu.Lock()
	defer configCacheMu.Unlock()

	if configCache != nil {
		return configCache, nil
	}

	configPath, err := ConfigPath()
	if err != nil {
		cfg := defaultConfig
		configCache = &cfg
		return configCache, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := defaultConfig
		configCache = &cfg
		return configCache, nil
	}

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		// Cache defaults to avoid repeated parse attempts.
		def := defaultConfig
		configCache = &def
		return configCache, fmt.Errorf("config.toml parse error: %w", err)
	}

	configCache = &cfg
	return configCache, nil
}

// Reload drops the cache and loads fresh values.
func Reload() (*Config, error) {
	configCacheMu.Lock()
	configCache = nil
	configCacheMu.Unlock()
	return Load()
}

// Save writes the config atomically and drops the cache so the next Load
// reads fresh values.
func Save(cfg *Config) error {
	configPath, err := ConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# muxgram configuration\n")
	buf.WriteString("# Telegram credentials may also come from MUXGRAM_TELEGRAM_TOKEN / MUXGRAM_TELEGRAM_CHAT_ID\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := configPath + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, configPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to publish config: %w", err)
	}

	configCacheMu.Lock()
	configCache = nil
	configCacheMu.Unlock()
	return nil
}
