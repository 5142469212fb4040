package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv     = "BOOKMARK_SCANNER_CONFIG"
	geminiAPIKeyEnv   = "GEMINI_API_KEY"
	geminiModelEnv    = "GEMINI_MODEL"
	databaseDriverEnv = "DATABASE_DRIVER"
	databaseDSNEnv    = "DATABASE_DSN"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	httpAddrEnv       = "HTTP_ADDR"
	logLevelEnv       = "LOG_LEVEL"

	// MaxBatchItems is the hard ceiling for batch.maxItems.
	MaxBatchItems = 50
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	HTTP          HTTPConfig         `yaml:"http"`
	Gemini        GeminiConfig       `yaml:"gemini"`
	Batch         BatchConfig        `yaml:"batch"`
	Retry         RetryConfig        `yaml:"retry"`
	Scanner       ScannerConfig      `yaml:"scanner"`
	Fetcher       FetcherConfig      `yaml:"fetcher"`
	Database      DatabaseConfig     `yaml:"database"`
	Export        ExportConfig       `yaml:"export"`
	Notifications NotificationConfig `yaml:"notifications"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// HTTPConfig configures the messaging API listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// GeminiConfig defines how to contact the generateContent API.
type GeminiConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Model    string        `yaml:"model"`
	APIKey   string        `yaml:"apiKey"`
	Timeout  time.Duration `yaml:"timeout"`
}

// BatchConfig bounds batch size and the spacing between outbound analysis calls.
type BatchConfig struct {
	MaxItems      int           `yaml:"maxItems"`
	AnalysisDelay time.Duration `yaml:"analysisDelay"`
}

type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseDelay   time.Duration `yaml:"baseDelay"`
}

// ScannerConfig tunes bookmark discovery on a rendered surface.
type ScannerConfig struct {
	MaxIdentifiers  int           `yaml:"maxIdentifiers"`
	ContentWait     time.Duration `yaml:"contentWait"`
	MaxScrollCycles int           `yaml:"maxScrollCycles"`
	ScrollWait      time.Duration `yaml:"scrollWait"`
	PostMarker      string        `yaml:"postMarker"`
}

// FetcherConfig controls page downloads for fetchContent.
type FetcherConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"userAgent"`
}

// DatabaseConfig selects the result store. An empty driver keeps results in memory.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ExportConfig mirrors the persisted export preferences.
type ExportConfig struct {
	Format          string `yaml:"format"`
	Directory       string `yaml:"directory"`
	FilenamePattern string `yaml:"filenamePattern"`
	GroupByTopic    bool   `yaml:"groupByTopic"`
	AutoExport      bool   `yaml:"autoExport"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both bot credentials are present.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		fileCfg, err := LoadFile(path)
		if err != nil {
			log.Printf("config: %v (falling back to defaults)", err)
		} else {
			cfg = fileCfg
		}
	}

	cfg.applyEnvOverrides()
	cfg.normalize()
	return cfg
}

// LoadFile decodes the YAML at path on top of the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Default(), fmt.Errorf("cannot parse %s: %w", path, err)
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	overrides := []struct {
		env    string
		target *string
	}{
		{geminiAPIKeyEnv, &c.Gemini.APIKey},
		{geminiModelEnv, &c.Gemini.Model},
		{databaseDriverEnv, &c.Database.Driver},
		{databaseDSNEnv, &c.Database.DSN},
		{telegramTokenEnv, &c.Notifications.Telegram.BotToken},
		{telegramChatIDEnv, &c.Notifications.Telegram.ChatID},
		{httpAddrEnv, &c.HTTP.Addr},
		{logLevelEnv, &c.Logging.Level},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.env)); v != "" {
			*o.target = v
		}
	}
}

// normalize clamps values the rest of the application relies on.
func (c *Config) normalize() {
	def := Default()

	if c.Batch.MaxItems <= 0 || c.Batch.MaxItems > MaxBatchItems {
		c.Batch.MaxItems = MaxBatchItems
	}
	if c.Batch.AnalysisDelay < 0 {
		c.Batch.AnalysisDelay = def.Batch.AnalysisDelay
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if c.Retry.BaseDelay < 0 {
		c.Retry.BaseDelay = def.Retry.BaseDelay
	}
	if c.Gemini.Timeout <= 0 {
		c.Gemini.Timeout = def.Gemini.Timeout
	}
	if c.Scanner.MaxIdentifiers <= 0 {
		c.Scanner.MaxIdentifiers = def.Scanner.MaxIdentifiers
	}
	if c.Scanner.PostMarker == "" {
		c.Scanner.PostMarker = def.Scanner.PostMarker
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.Export.Format = strings.ToLower(strings.TrimSpace(c.Export.Format))
	if c.Export.Format == "" {
		c.Export.Format = def.Export.Format
	}
	if c.Export.FilenamePattern == "" {
		c.Export.FilenamePattern = def.Export.FilenamePattern
	}
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		HTTP:    HTTPConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Gemini: GeminiConfig{
			Endpoint: "https://generativelanguage.googleapis.com/v1beta/models",
			Model:    "gemini-1.5-flash",
			Timeout:  10 * time.Second,
		},
		Batch: BatchConfig{MaxItems: MaxBatchItems, AnalysisDelay: time.Second},
		Retry: RetryConfig{MaxAttempts: 3, BaseDelay: time.Second},
		Scanner: ScannerConfig{
			MaxIdentifiers:  100,
			ContentWait:     5 * time.Second,
			MaxScrollCycles: 10,
			ScrollWait:      2 * time.Second,
			PostMarker:      `article[data-testid="tweet"]`,
		},
		Fetcher: FetcherConfig{
			Timeout:   15 * time.Second,
			UserAgent: "BookmarkScanner/1.0",
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "file:bookmarks.db?_pragma=busy_timeout(5000)"},
		Export: ExportConfig{
			Format:          "json",
			Directory:       "exports",
			FilenamePattern: "bookmarks-{date}-{count}",
		},
	}
}
