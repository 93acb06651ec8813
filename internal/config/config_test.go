package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/qaid/internal/model"
)

func TestLoadFrom_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.General.DefaultDays != 30 {
		t.Fatalf("DefaultDays = %d, want 30", cfg.General.DefaultDays)
	}
	if cfg.Provider.Active != DefaultProvider {
		t.Fatalf("Active = %q, want %q", cfg.Provider.Active, DefaultProvider)
	}
}

func TestLoadFrom_MergesProviderDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	body := `
[provider]
active = "openai"
timeout = "15s"

[providers.openai]
api_key = "sk-test"

[retry]
max_attempts = 5
initial_delay = "250ms"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Provider.Timeout.Duration != 15*time.Second {
		t.Fatalf("Timeout = %s, want 15s", cfg.Provider.Timeout)
	}
	if cfg.Retry.MaxAttempts != 5 || cfg.Retry.InitialDelay.Duration != 250*time.Millisecond {
		t.Fatalf("Retry = %+v", cfg.Retry)
	}
	openai := cfg.Providers["openai"]
	if openai.APIKey != "sk-test" || openai.Model != "gpt-4o-mini" || openai.BaseURL == "" {
		t.Fatalf("openai target = %+v, want defaults merged under the api key", openai)
	}
	if _, ok := cfg.Providers["gemini"]; !ok {
		t.Fatal("gemini target missing after load")
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := DefaultConfig()
	cfg.General.DefaultDays = 7
	cfg.Provider.Active = "anthropic"

	if err := SaveTo(path, cfg); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}
	got, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if got.General.DefaultDays != 7 || got.Provider.Active != "anthropic" {
		t.Fatalf("round trip lost values: %+v", got.General)
	}
}

func TestGetAPIKey_Precedence(t *testing.T) {
	cfg := DefaultConfig()
	g := cfg.Providers["gemini"]
	g.APIKey = "from-file"
	cfg.Providers["gemini"] = g

	t.Setenv("QAID_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	if k := GetAPIKey(cfg, "gemini"); k != "from-file" {
		t.Fatalf("key = %q, want from-file", k)
	}

	t.Setenv("GEMINI_API_KEY", "from-env")
	if k := GetAPIKey(cfg, "gemini"); k != "from-env" {
		t.Fatalf("key = %q, want from-env", k)
	}

	t.Setenv("QAID_API_KEY", "global")
	if k := GetAPIKey(cfg, "GEMINI"); k != "global" {
		t.Fatalf("key = %q, want global", k)
	}
}

func TestEstimateMinutesSaved(t *testing.T) {
	if got := EstimateMinutesSaved(model.KindTestCaseGeneration, 3); got != 24 {
		t.Fatalf("3 test cases = %v, want 24", got)
	}
	if got := EstimateMinutesSaved(model.KindTestCaseGeneration, 0); got != 0 {
		t.Fatalf("0 test cases = %v, want 0", got)
	}
	if got := EstimateMinutesSaved(model.KindBugReportGeneration, 4); got != 15 {
		t.Fatalf("bug report = %v, want 15 regardless of quantity", got)
	}
	if got := EstimateDocumentAnalysisMinutes(2); got != 60 {
		t.Fatalf("2 documents = %v, want 60", got)
	}
}
