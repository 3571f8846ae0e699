// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Unified configuration loading for foliochat.
//
// Supports TOML (preferred) and JSON configuration files, a .env file for
// secrets, and environment variable overrides.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/foliochat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the main configuration structure for foliochat.
type Config struct {
	// Version is the configuration file format version.
	Version string `toml:"version" json:"version"`

	// Chat configures the completion endpoint and the request orchestrator.
	Chat ChatConfig `toml:"chat" json:"chat"`

	// GitHub configures the repository digest source.
	GitHub GitHubConfig `toml:"github" json:"github"`

	// Profile configures the persona the assistant speaks for.
	Profile ProfileConfig `toml:"profile" json:"profile"`

	// Contact configures the EmailJS contact relay.
	Contact ContactConfig `toml:"contact" json:"contact"`

	// UI configures the terminal front ends.
	UI UIConfig `toml:"ui" json:"ui"`

	// Log configures structured logging.
	Log LogConfig `toml:"log" json:"log"`
}

// ChatConfig contains completion endpoint and pacing settings.
// Durations are stored as milliseconds.
type ChatConfig struct {
	// Endpoint is the base URL of the OpenAI-compatible completion service.
	Endpoint string `toml:"endpoint" json:"endpoint"`
	// Model is the model name sent with every request.
	Model string `toml:"model" json:"model"`
	// Referrer identifies this application to the endpoint.
	Referrer string `toml:"referrer" json:"referrer"`
	// Private asks the endpoint not to publish the exchange. Off by default.
	Private bool `toml:"private" json:"private"`
	// MinIntervalMs is the minimum spacing between request starts.
	MinIntervalMs int `toml:"min_interval_ms" json:"min_interval_ms"`
	// BaseRetryDelayMs is the first backoff step.
	BaseRetryDelayMs int `toml:"base_retry_delay_ms" json:"base_retry_delay_ms"`
	// MaxRetryDelayMs caps every backoff delay.
	MaxRetryDelayMs int `toml:"max_retry_delay_ms" json:"max_retry_delay_ms"`
	// MaxRetries is the number of automatic retries after the first attempt.
	MaxRetries int `toml:"max_retries" json:"max_retries"`
	// TimeoutSecs bounds a single attempt.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
}

// GitHubConfig contains settings for the repository digest.
type GitHubConfig struct {
	// User is the GitHub account the digest describes.
	User string `toml:"user" json:"user"`
	// MaxRepos is how many recently updated repositories are summarized.
	MaxRepos int `toml:"max_repos" json:"max_repos"`
	// CommitsPerRepo is how many recent commits are fetched per repository.
	CommitsPerRepo int `toml:"commits_per_repo" json:"commits_per_repo"`
	// Token is an optional personal access token.
	Token string `toml:"token" json:"token"`
	// APIURL is the REST API root.
	APIURL string `toml:"api_url" json:"api_url"`
	// RequestsPerSecond throttles API calls. Zero disables throttling.
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second"`
	// Burst is the throttle's burst size.
	Burst int `toml:"burst" json:"burst"`
	// RefreshIntervalSecs is the digest time-to-live.
	RefreshIntervalSecs int `toml:"refresh_interval_secs" json:"refresh_interval_secs"`
}

// ProfileConfig describes the portfolio owner.
type ProfileConfig struct {
	// Owner is the person the assistant represents.
	Owner string `toml:"owner" json:"owner"`
	// AssistantName is the name the assistant introduces itself with.
	AssistantName string `toml:"assistant_name" json:"assistant_name"`
	// ProfileFile is a markdown file with the owner's biography.
	ProfileFile string `toml:"profile_file" json:"profile_file"`
	// FeaturedProjects are curated "Title - tagline" entries.
	FeaturedProjects []string `toml:"featured_projects" json:"featured_projects"`
}

// ContactConfig holds EmailJS credentials.
type ContactConfig struct {
	ServiceID  string `toml:"service_id" json:"service_id"`
	TemplateID string `toml:"template_id" json:"template_id"`
	PublicKey  string `toml:"public_key" json:"public_key"`
	APIURL     string `toml:"api_url" json:"api_url"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// Theme is the color theme ("dark", "light" or "auto").
	Theme string `toml:"theme" json:"theme"`
	// WordWrap is the render width for answers. Zero follows the terminal.
	WordWrap int `toml:"word_wrap" json:"word_wrap"`
}

// LogConfig controls logging.
type LogConfig struct {
	// Level is a logrus level name.
	Level string `toml:"level" json:"level"`
	// Format is "text" or "json".
	Format string `toml:"format" json:"format"`
	// File receives logs. Empty means stderr.
	File string `toml:"file" json:"file"`
}

// MinInterval returns the request spacing as a duration.
func (c ChatConfig) MinInterval() time.Duration {
	return time.Duration(c.MinIntervalMs) * time.Millisecond
}

// BaseRetryDelay returns the first backoff step as a duration.
func (c ChatConfig) BaseRetryDelay() time.Duration {
	return time.Duration(c.BaseRetryDelayMs) * time.Millisecond
}

// MaxRetryDelay returns the backoff cap as a duration.
func (c ChatConfig) MaxRetryDelay() time.Duration {
	return time.Duration(c.MaxRetryDelayMs) * time.Millisecond
}

// Timeout returns the per-attempt timeout.
func (c ChatConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// RefreshInterval returns the digest time-to-live.
func (c GitHubConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSecs) * time.Second
}

// =============================================================================
// DEFAULTS
// =============================================================================

// DefaultFeaturedProjects is the curated project list shipped with foliochat.
var DefaultFeaturedProjects = []string{
	"AI Portfolio - Showcasing my AI tools",
	"MangaPH - Mobile-first manga reader",
	"Dreven (AI Chatbot) - NLP-based assistant",
	"BookHubPH - Sleek online book library",
	"IslaWeb - Web design agency concept",
	"SAMP Server - GTA Multiplayer RP",
	"Lazyprompter - Generate AI prompts",
	"NeuroGEN - Generate AI images",
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Version: "1",
		Chat: ChatConfig{
			Endpoint:         "https://text.pollinations.ai",
			Model:            "openai",
			Referrer:         "FolioChatApp",
			Private:          false,
			MinIntervalMs:    1500,
			BaseRetryDelayMs: 1000,
			MaxRetryDelayMs:  10000,
			MaxRetries:       3,
			TimeoutSecs:      60,
		},
		GitHub: GitHubConfig{
			User:                "sridhar1805",
			MaxRepos:            10,
			CommitsPerRepo:      3,
			APIURL:              "https://api.github.com",
			RequestsPerSecond:   5,
			Burst:               5,
			RefreshIntervalSecs: 600,
		},
		Profile: ProfileConfig{
			Owner:            "Sridharan",
			AssistantName:    "S.ai",
			FeaturedProjects: append([]string(nil), DefaultFeaturedProjects...),
		},
		Contact: ContactConfig{
			APIURL: "https://api.emailjs.com/api/v1.0/email/send",
		},
		UI: UIConfig{
			Theme: "auto",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// =============================================================================
// PATH HELPERS
// =============================================================================

// ConfigDir returns the path to the foliochat config directory (~/.foliochat).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".foliochat"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration, trying TOML then JSON, falling back to
// defaults. A .env file in the working directory is loaded first so its
// values take part in the environment overrides.
func Load() (*Config, error) {
	_ = LoadDotEnv("")

	cfg, err := loadFromDisk()
	if err != nil {
		return cfg, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadFromDisk() (*Config, error) {
	tomlPath, err := ConfigPathTOML()
	if err != nil {
		return Default(), err
	}
	if _, statErr := os.Stat(tomlPath); statErr == nil {
		cfg, err := LoadTOML(tomlPath)
		if err != nil {
			return Default(), err
		}
		return cfg, nil
	}

	jsonPath, err := ConfigPathJSON()
	if err != nil {
		return Default(), err
	}
	if _, statErr := os.Stat(jsonPath); statErr == nil {
		cfg, err := LoadJSON(jsonPath)
		if err != nil {
			return Default(), err
		}
		return cfg, nil
	}

	return Default(), nil
}

// LoadDotEnv loads KEY=VALUE pairs from path (".env" when empty) into the
// process environment. Variables that are already set win. A missing file
// is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// LoadTOML loads configuration from a TOML file. Keys absent from the file
// keep their default values.
func LoadTOML(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return cfg, nil
}

// LoadJSON loads configuration from a JSON file.
func LoadJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read JSON config: %w", err)
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file, choosing the
// format by extension, then applies env overrides and validates.
func LoadFromPath(path string) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		cfg, err = LoadJSON(path)
	case ".toml", "":
		cfg, err = LoadTOML(path)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVING
// =============================================================================

const fileHeader = "# foliochat configuration file\n" +
	"# Secrets such as github.token are better kept in .env or the environment.\n\n"

// Save writes the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var sb strings.Builder
	sb.WriteString(fileHeader)
	if err := toml.NewEncoder(&sb).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(sb.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes the configuration to a JSON file with 0600 permissions.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration and returns every problem found as
// ValidateErrors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Chat
	if err := validateHTTPURL(c.Chat.Endpoint); err != nil {
		add("chat.endpoint", "%v", err)
	}
	if strings.TrimSpace(c.Chat.Model) == "" {
		add("chat.model", "must not be empty")
	}
	if c.Chat.MinIntervalMs < 0 {
		add("chat.min_interval_ms", "must not be negative, got %d", c.Chat.MinIntervalMs)
	}
	if c.Chat.BaseRetryDelayMs <= 0 {
		add("chat.base_retry_delay_ms", "must be positive, got %d", c.Chat.BaseRetryDelayMs)
	}
	if c.Chat.MaxRetryDelayMs < c.Chat.BaseRetryDelayMs {
		add("chat.max_retry_delay_ms", "must be at least base_retry_delay_ms (%d), got %d",
			c.Chat.BaseRetryDelayMs, c.Chat.MaxRetryDelayMs)
	}
	if c.Chat.MaxRetries < 0 || c.Chat.MaxRetries > 10 {
		add("chat.max_retries", "must be between 0 and 10, got %d", c.Chat.MaxRetries)
	}
	if c.Chat.TimeoutSecs <= 0 {
		add("chat.timeout_secs", "must be positive, got %d", c.Chat.TimeoutSecs)
	}

	// GitHub
	if strings.TrimSpace(c.GitHub.User) == "" {
		add("github.user", "must not be empty")
	}
	if c.GitHub.MaxRepos < 1 || c.GitHub.MaxRepos > 100 {
		add("github.max_repos", "must be between 1 and 100, got %d", c.GitHub.MaxRepos)
	}
	if c.GitHub.CommitsPerRepo < 0 || c.GitHub.CommitsPerRepo > 100 {
		add("github.commits_per_repo", "must be between 0 and 100, got %d", c.GitHub.CommitsPerRepo)
	}
	if err := validateHTTPURL(c.GitHub.APIURL); err != nil {
		add("github.api_url", "%v", err)
	}
	if c.GitHub.RequestsPerSecond < 0 {
		add("github.requests_per_second", "must not be negative")
	}
	if c.GitHub.RefreshIntervalSecs <= 0 {
		add("github.refresh_interval_secs", "must be positive, got %d", c.GitHub.RefreshIntervalSecs)
	}

	// Profile
	if strings.TrimSpace(c.Profile.Owner) == "" {
		add("profile.owner", "must not be empty")
	}

	// Contact
	if c.Contact.APIURL != "" {
		if err := validateHTTPURL(c.Contact.APIURL); err != nil {
			add("contact.api_url", "%v", err)
		}
	}

	// UI
	switch strings.ToLower(c.UI.Theme) {
	case "", "auto", "dark", "light":
	default:
		add("ui.theme", "invalid theme '%s', must be one of: auto, dark, light", c.UI.Theme)
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must not be negative, got %d", c.UI.WordWrap)
	}

	// Log
	switch strings.ToLower(c.Log.Level) {
	case "", "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic":
	default:
		add("log.level", "unknown level '%s'", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		add("log.format", "invalid format '%s', must be text or json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("URL must include a host")
	}
	return nil
}

// SetDefaults fills zero values left by partial files or overrides.
func (c *Config) SetDefaults() {
	d := Default()
	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Chat.Endpoint == "" {
		c.Chat.Endpoint = d.Chat.Endpoint
	}
	if c.Chat.Model == "" {
		c.Chat.Model = d.Chat.Model
	}
	if c.Chat.Referrer == "" {
		c.Chat.Referrer = d.Chat.Referrer
	}
	if c.GitHub.APIURL == "" {
		c.GitHub.APIURL = d.GitHub.APIURL
	}
	if c.Profile.AssistantName == "" {
		c.Profile.AssistantName = d.Profile.AssistantName
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - FOLIOCHAT_ENDPOINT: chat.endpoint
//   - FOLIOCHAT_MODEL: chat.model
//   - FOLIOCHAT_MAX_RETRIES: chat.max_retries
//   - GITHUB_TOKEN: github.token
//   - FOLIOCHAT_GITHUB_USER: github.user
//   - FOLIOCHAT_OWNER: profile.owner
//   - FOLIOCHAT_LOG_LEVEL: log.level
//   - EMAILJS_SERVICE_ID, EMAILJS_TEMPLATE_ID, EMAILJS_PUBLIC_KEY: contact.*
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("FOLIOCHAT_ENDPOINT"); v != "" {
		c.Chat.Endpoint = v
	}
	if v := os.Getenv("FOLIOCHAT_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("FOLIOCHAT_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Chat.MaxRetries = n
		}
	}
	if v := os.Getenv("GITHUB_TOKEN"); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv("FOLIOCHAT_GITHUB_USER"); v != "" {
		c.GitHub.User = v
	}
	if v := os.Getenv("FOLIOCHAT_OWNER"); v != "" {
		c.Profile.Owner = v
	}
	if v := os.Getenv("FOLIOCHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("EMAILJS_SERVICE_ID"); v != "" {
		c.Contact.ServiceID = v
	}
	if v := os.Getenv("EMAILJS_TEMPLATE_ID"); v != "" {
		c.Contact.TemplateID = v
	}
	if v := os.Getenv("EMAILJS_PUBLIC_KEY"); v != "" {
		c.Contact.PublicKey = v
	}
}

// =============================================================================
// COPY AND DISPLAY
// =============================================================================

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Profile.FeaturedProjects = append([]string(nil), c.Profile.FeaturedProjects...)
	return &clone
}

// String returns the configuration as indented JSON with secrets redacted.
func (c *Config) String() string {
	safe := c.Clone()
	if safe.GitHub.Token != "" {
		safe.GitHub.Token = "[REDACTED]"
	}
	if safe.Contact.PublicKey != "" {
		safe.Contact.PublicKey = "[REDACTED]"
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Load errors fall back to defaults. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// ReloadGlobal reloads the global configuration from disk. Thread-safe.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
