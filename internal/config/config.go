// Package config loads and validates the versioned JSON configuration.
//
// The schema carries a version number so incompatible files fail fast with a
// structured error code instead of misbehaving at runtime. Defaults are
// applied after decoding; per-list settings resolve against the defaults.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ibeckermayer/xdigest/internal/errs"
)

// ExpectedVersion is the config schema version this build understands.
const ExpectedVersion = 1

// Config is the root configuration document.
type Config struct {
	Version                  int                   `json:"version"`
	Lists                    map[string]ListConfig `json:"lists"`
	Defaults                 Defaults              `json:"defaults"`
	Delivery                 DeliveryConfig        `json:"delivery"`
	Retry                    RetryConfig           `json:"retry"`
	Schedules                []Schedule            `json:"schedules,omitempty"`
	IdempotencyWindowMinutes int                   `json:"idempotency_window_minutes"`
}

// ListConfig configures one curated list.
type ListConfig struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name,omitempty"`
	Emoji       string    `json:"emoji,omitempty"`
	Enabled     *bool     `json:"enabled,omitempty"` // nil means enabled
	Timezone    string    `json:"timezone,omitempty"`
	Prompt      string    `json:"prompt,omitempty"` // list-specific system prompt override
	Sections    []Section `json:"sections,omitempty"`
	Recipient   string    `json:"recipient,omitempty"` // overrides delivery default
}

// Section is one digest section driven entirely by config; both
// prompt-building and splitting consume these records generically.
type Section struct {
	Emoji       string `json:"emoji"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Defaults apply to every list unless overridden.
type Defaults struct {
	LLM              LLMConfig        `json:"llm"`
	Timezone         string           `json:"timezone,omitempty"`
	TokenLimits      TokenLimits      `json:"token_limits"`
	PreSummarization PresummaryConfig `json:"pre_summarization"`
	Prompt           string           `json:"prompt,omitempty"` // global system prompt override
	Sections         []Section        `json:"sections,omitempty"`
}

// LLMConfig selects the generation backend.
type LLMConfig struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// TokenLimits bounds LLM payload sizes.
type TokenLimits struct {
	MaxInputTokens  int `json:"max_input_tokens"`
	MaxOutputTokens int `json:"max_output_tokens"`
	WarnAtPercent   int `json:"warn_at_percent"`
}

// PresummaryConfig holds the pre-summarization thresholds.
type PresummaryConfig struct {
	Enabled           *bool `json:"enabled,omitempty"` // nil means enabled
	LongTweetChars    int   `json:"long_tweet_chars"`
	LongQuoteChars    int   `json:"long_quote_chars"`
	LongCombinedChars int   `json:"long_combined_chars"`
	ThreadMinTweets   int   `json:"thread_min_tweets"`
	MaxSummaryTokens  int   `json:"max_summary_tokens"`
}

// IsEnabled reports whether pre-summarization should run.
func (p PresummaryConfig) IsEnabled() bool {
	return p.Enabled == nil || *p.Enabled
}

// RetryConfig controls delivery retry behavior.
type RetryConfig struct {
	MaxAttempts         int     `json:"max_attempts"`
	InitialDelaySeconds float64 `json:"initial_delay_seconds"`
	BackoffMultiplier   float64 `json:"backoff_multiplier"`
	MaxDelaySeconds     float64 `json:"max_delay_seconds"`
}

// DeliveryConfig selects and configures the delivery backend.
type DeliveryConfig struct {
	Provider string         `json:"provider"`
	WhatsApp WhatsAppConfig `json:"whatsapp,omitempty"`
	Telegram TelegramConfig `json:"telegram,omitempty"`
}

// WhatsAppConfig configures the WhatsApp gateway provider.
type WhatsAppConfig struct {
	GatewayURL string `json:"gateway_url"`
	Recipient  string `json:"recipient"`
}

// TelegramConfig configures the Telegram Bot API provider.
type TelegramConfig struct {
	BotToken string `json:"bot_token"`
	ChatID   string `json:"chat_id"`
}

// Schedule is a named cron entry driving a list digest.
type Schedule struct {
	Name        string `json:"name"`
	List        string `json:"list"`
	Cron        string `json:"cron"`
	Description string `json:"description,omitempty"`
}

// DefaultPresummary returns the built-in pre-summarization thresholds.
func DefaultPresummary() PresummaryConfig {
	return PresummaryConfig{
		LongTweetChars:    500,
		LongQuoteChars:    300,
		LongCombinedChars: 600,
		ThreadMinTweets:   2,
		MaxSummaryTokens:  300,
	}
}

// Default returns a Config with built-in defaults applied.
func Default() *Config {
	return &Config{
		Version: ExpectedVersion,
		Lists:   map[string]ListConfig{},
		Defaults: Defaults{
			LLM: LLMConfig{
				Provider: "gemini",
				Model:    "gemini-2.0-flash",
			},
			Timezone: "America/New_York",
			TokenLimits: TokenLimits{
				MaxInputTokens:  100000,
				MaxOutputTokens: 4000,
				WarnAtPercent:   80,
			},
			PreSummarization: DefaultPresummary(),
		},
		Retry: RetryConfig{
			MaxAttempts:         3,
			InitialDelaySeconds: 2,
			BackoffMultiplier:   2,
			MaxDelaySeconds:     30,
		},
		IdempotencyWindowMinutes: 30,
	}
}

// FindConfigFile locates the config file. An explicit path wins; otherwise
// the standard search paths are tried in order.
func FindConfigFile(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errs.Newf(errs.ConfigFileNotFound, "config file not found: %s", explicit)
		}
		return explicit, nil
	}

	home, _ := os.UserHomeDir()
	searchPaths := []string{
		"./xdigest-config.json",
		"./config/xdigest-config.json",
		filepath.Join(home, ".config", "xdigest", "config.json"),
	}
	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", errs.New(errs.ConfigFileNotFound, "no config file in search paths")
}

// Load reads, validates, and defaults a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, errs.Wrap(errs.PermissionDenied, "cannot read config file", err)
		}
		return nil, errs.Wrap(errs.ConfigFileNotFound, "cannot read config file", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errs.Wrap(errs.ConfigInvalidJSON, "config file contains invalid JSON", err)
	}

	if cfg.Version != ExpectedVersion {
		return nil, errs.Newf(errs.ConfigVersionMismatch,
			"expected version %d, got %d", ExpectedVersion, cfg.Version)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Lists) == 0 {
		return errs.New(errs.ConfigMissingField, "required field 'lists' missing or empty")
	}
	for name, lc := range c.Lists {
		if lc.ID == "" {
			return errs.Newf(errs.ConfigMissingField, "list %q missing required field 'id'", name)
		}
	}

	tl := c.Defaults.TokenLimits
	if tl.MaxInputTokens <= 0 || tl.MaxOutputTokens <= 0 {
		return errs.New(errs.ConfigInvalidValue, "token limits must be positive")
	}
	if tl.MaxInputTokens > 1000000 {
		return errs.New(errs.ConfigInvalidValue, "max_input_tokens cannot exceed 1,000,000")
	}

	ps := c.Defaults.PreSummarization
	if ps.LongTweetChars <= 0 || ps.LongQuoteChars <= 0 || ps.LongCombinedChars <= 0 || ps.ThreadMinTweets <= 0 {
		return errs.New(errs.ConfigInvalidValue, "pre_summarization thresholds must be positive")
	}

	if c.Retry.MaxAttempts <= 0 {
		return errs.New(errs.ConfigInvalidValue, "retry.max_attempts must be positive")
	}

	return nil
}

// ListSettings is a list's configuration with defaults resolved.
type ListSettings struct {
	Name        string
	ID          string
	DisplayName string
	Emoji       string
	Enabled     bool
	Timezone    string
	Prompt      string // list-specific override, empty if unset
	Sections    []Section
	Recipient   string
}

// ResolveList returns the merged settings for a named list.
func (c *Config) ResolveList(name string) (ListSettings, error) {
	lc, ok := c.Lists[name]
	if !ok {
		return ListSettings{}, errs.Newf(errs.ConfigInvalidValue, "list %q not found in configuration", name)
	}

	s := ListSettings{
		Name:        name,
		ID:          lc.ID,
		DisplayName: lc.DisplayName,
		Emoji:       lc.Emoji,
		Enabled:     lc.Enabled == nil || *lc.Enabled,
		Timezone:    lc.Timezone,
		Prompt:      lc.Prompt,
		Sections:    lc.Sections,
		Recipient:   lc.Recipient,
	}
	if s.DisplayName == "" {
		s.DisplayName = titleCase(name)
	}
	if s.Emoji == "" {
		s.Emoji = "\U0001F4CB"
	}
	if s.Timezone == "" {
		s.Timezone = c.Defaults.Timezone
	}
	if len(s.Sections) == 0 {
		s.Sections = c.Defaults.Sections
	}
	return s, nil
}

// titleCase uppercases the first rune of each dash- or space-separated word.
func titleCase(s string) string {
	words := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == ' ' || r == '_' })
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + w[size:]
	}
	return strings.Join(words, " ")
}
