package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all qaid configuration.
type Config struct {
	General   GeneralConfig             `toml:"general"`
	Provider  ProviderConfig            `toml:"provider"`
	Providers map[string]ProviderTarget `toml:"providers,omitempty"`
	Retry     RetryConfig               `toml:"retry"`
	Telemetry TelemetryConfig           `toml:"telemetry"`
	Server    ServerConfig              `toml:"server"`
	Dashboard DashboardConfig           `toml:"dashboard"`
	Pricing   PricingOverrides          `toml:"pricing"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DefaultDays int    `toml:"default_days"`
	DataDir     string `toml:"data_dir,omitempty"`
	LogLevel    string `toml:"log_level,omitempty"`
}

// ProviderConfig selects the active generation backend and request defaults.
type ProviderConfig struct {
	Active      string   `toml:"active"`
	Temperature float32  `toml:"temperature"`
	MaxTokens   int      `toml:"max_tokens"`
	Timeout     Duration `toml:"timeout"`
}

// ProviderTarget describes how to reach one OpenAI-compatible backend.
type ProviderTarget struct {
	BaseURL   string `toml:"base_url,omitempty"`
	Model     string `toml:"model,omitempty"`
	APIKey    string `toml:"api_key,omitempty"`
	APIKeyEnv string `toml:"api_key_env,omitempty"`
}

// RetryConfig bounds retries of the generation call.
type RetryConfig struct {
	MaxAttempts  int      `toml:"max_attempts"`
	InitialDelay Duration `toml:"initial_delay"`
	MaxDelay     Duration `toml:"max_delay"`
	Multiplier   float64  `toml:"multiplier"`
}

// TelemetryConfig holds OTLP metrics exporter settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint,omitempty"`
	Insecure bool   `toml:"insecure"`
}

// ServerConfig holds settings for `qaid serve`.
type ServerConfig struct {
	Addr           string `toml:"addr"`
	ReportSchedule string `toml:"report_schedule,omitempty"`
	ReportDir      string `toml:"report_dir,omitempty"`
	ReportDays     int    `toml:"report_days,omitempty"`
}

// DashboardConfig holds settings for the interactive dashboard.
type DashboardConfig struct {
	Theme              string `toml:"theme"`
	AutoRefresh        bool   `toml:"auto_refresh"`
	RefreshIntervalSec int    `toml:"refresh_interval_sec"`
}

// PricingOverrides allows user-defined rates for specific providers or models.
type PricingOverrides struct {
	Providers map[string]ModelPricingOverride `toml:"providers,omitempty"`
	Overrides map[string]ModelPricingOverride `toml:"overrides,omitempty"`
}

// ModelPricingOverride holds per-model pricing overrides. EffectiveFrom is
// a local date ("2006-01-02"); it only applies to model overrides.
type ModelPricingOverride struct {
	InputPerMTok  *float64 `toml:"input_per_mtok,omitempty"`
	OutputPerMTok *float64 `toml:"output_per_mtok,omitempty"`
	EffectiveFrom string   `toml:"effective_from,omitempty"`
}

// Duration wraps time.Duration so it can be written as "30s" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DefaultProviders returns the built-in backend targets.
func DefaultProviders() map[string]ProviderTarget {
	return map[string]ProviderTarget{
		"gemini": {
			BaseURL:   "https://generativelanguage.googleapis.com/v1beta/openai/",
			Model:     "gemini-2.0-flash-lite",
			APIKeyEnv: "GEMINI_API_KEY",
		},
		"openai": {
			BaseURL:   "https://api.openai.com/v1",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		"anthropic": {
			BaseURL:   "https://api.anthropic.com/v1/",
			Model:     "claude-3-5-haiku-latest",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		"local": {
			BaseURL: "http://127.0.0.1:8080/v1",
			Model:   "local-model",
		},
	}
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DefaultDays: 30,
			LogLevel:    "info",
		},
		Provider: ProviderConfig{
			Active:      DefaultProvider,
			Temperature: 0.7,
			MaxTokens:   8192,
			Timeout:     Duration{60 * time.Second},
		},
		Providers: DefaultProviders(),
		Retry: RetryConfig{
			MaxAttempts:  3,
			InitialDelay: Duration{time.Second},
			MaxDelay:     Duration{10 * time.Second},
			Multiplier:   2.0,
		},
		Server: ServerConfig{
			Addr:       "127.0.0.1:8787",
			ReportDays: 30,
		},
		Dashboard: DashboardConfig{
			Theme:              "flexoki-dark",
			AutoRefresh:        true,
			RefreshIntervalSec: 30,
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "qaid")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "qaid")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the directory holding the event database.
func DataDir(cfg Config) string {
	if cfg.General.DataDir != "" {
		return cfg.General.DataDir
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "qaid")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "qaid")
}

// DatabasePath returns the event database path.
func DatabasePath(cfg Config) string {
	return filepath.Join(DataDir(cfg), "events.db")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path, returning defaults if it doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path is the user's own config file
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	// Targets listed in the file replace defaults field by field, so a
	// config that only sets an api key keeps the default base URL and model.
	defaults := DefaultProviders()
	for name, t := range cfg.Providers {
		d := defaults[name]
		if t.BaseURL == "" {
			t.BaseURL = d.BaseURL
		}
		if t.Model == "" {
			t.Model = d.Model
		}
		if t.APIKeyEnv == "" {
			t.APIKeyEnv = d.APIKeyEnv
		}
		cfg.Providers[name] = t
	}
	for name, d := range defaults {
		if _, ok := cfg.Providers[name]; !ok {
			cfg.Providers[name] = d
		}
	}

	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config to path.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // user config path
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// GetAPIKey returns the API key for a provider from, in order, QAID_API_KEY,
// the provider's api_key_env variable, and the config file.
func GetAPIKey(cfg Config, provider string) string {
	if key := os.Getenv("QAID_API_KEY"); key != "" {
		return key
	}
	t := cfg.Providers[strings.ToLower(provider)]
	if t.APIKeyEnv != "" {
		if key := os.Getenv(t.APIKeyEnv); key != "" {
			return key
		}
	}
	return t.APIKey
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
