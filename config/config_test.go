package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
link:
  addr: 192.168.1.50:6543
  exchange_timeout: 3s
  max_reconnects: 5
session:
  max_chunk_size: 256
  allow_writes: true
llm:
  base_url: http://localhost:1234/v1
  model: qwen2-vl
  retry_base_delay: 500ms
agent:
  poll_interval: 2s
  map_name: Dorter Trade City
power:
  enabled: true
  max_per_battle: 2
log:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Link.Addr != "192.168.1.50:6543" {
		t.Errorf("Link.Addr = %q", cfg.Link.Addr)
	}
	if cfg.Link.ExchangeTimeout.Duration != 3*time.Second {
		t.Errorf("ExchangeTimeout = %v, want 3s", cfg.Link.ExchangeTimeout.Duration)
	}
	if cfg.Link.MaxReconnects != 5 {
		t.Errorf("MaxReconnects = %d", cfg.Link.MaxReconnects)
	}
	if !cfg.Session.AllowWrites || cfg.Session.MaxChunkSize != 256 {
		t.Errorf("Session = %+v", cfg.Session)
	}
	if cfg.LLM.Model != "qwen2-vl" || cfg.LLM.RetryBaseDelay.Duration != 500*time.Millisecond {
		t.Errorf("LLM = %+v", cfg.LLM)
	}
	if cfg.Agent.PollInterval.Duration != 2*time.Second || cfg.Agent.MapName != "Dorter Trade City" {
		t.Errorf("Agent = %+v", cfg.Agent)
	}
	if !cfg.Power.Enabled || cfg.Power.MaxPerBattle != 2 {
		t.Errorf("Power = %+v", cfg.Power)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Load accepted a missing file")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "link:\n  dial_timeout: soon\n")
	if _, err := Load(path); err == nil {
		t.Fatal("Load accepted an invalid duration")
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("FFT_STUB_ADDR", "10.0.0.9:6543")
	path := writeConfig(t, `
link:
  addr: ${FFT_STUB_ADDR}
llm:
  api_key: ${FFT_LLM_KEY:-ollama}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Link.Addr != "10.0.0.9:6543" {
		t.Errorf("Link.Addr = %q, want expanded env value", cfg.Link.Addr)
	}
	if cfg.LLM.APIKey != "ollama" {
		t.Errorf("LLM.APIKey = %q, want default for unset var", cfg.LLM.APIKey)
	}
}
