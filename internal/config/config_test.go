package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.LLM.OllamaURL != "http://localhost:11434" {
		t.Errorf("OllamaURL: got %q", cfg.LLM.OllamaURL)
	}
	if cfg.LLM.Model != "llama3.2:1b" {
		t.Errorf("Model: got %q", cfg.LLM.Model)
	}
	if cfg.LLM.TimeoutSec != 30 {
		t.Errorf("TimeoutSec: got %d, want 30", cfg.LLM.TimeoutSec)
	}
	if cfg.Analysis.NewsLimit != 5 {
		t.Errorf("NewsLimit: got %d, want 5", cfg.Analysis.NewsLimit)
	}
	if cfg.API.Port != 8000 {
		t.Errorf("Port: got %d, want 8000", cfg.API.Port)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
llm:
  model: "qwen2.5:7b"
  timeout_sec: 60
providers:
  alpha_vantage_key: "testkey12345"
api:
  port: 9000
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.LLM.Model != "qwen2.5:7b" {
		t.Errorf("Model: got %q", cfg.LLM.Model)
	}
	if cfg.LLM.TimeoutSec != 60 {
		t.Errorf("TimeoutSec: got %d", cfg.LLM.TimeoutSec)
	}
	if cfg.Providers.AlphaVantageKey != "testkey12345" {
		t.Errorf("AlphaVantageKey: got %q", cfg.Providers.AlphaVantageKey)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("Port: got %d", cfg.API.Port)
	}
	// Untouched sections keep defaults.
	if cfg.LLM.OllamaURL != "http://localhost:11434" {
		t.Errorf("OllamaURL default lost: %q", cfg.LLM.OllamaURL)
	}
}

func TestCheckAPIKeys(t *testing.T) {
	cfg := &Config{}
	keys := CheckAPIKeys(cfg)
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
	if keys[0].IsSet || keys[0].Source != KeySourceNone {
		t.Errorf("unset key: got %+v", keys[0])
	}

	cfg.Providers.AlphaVantageKey = "ABCDEFGH12345"
	keys = CheckAPIKeys(cfg)
	if !keys[0].IsSet {
		t.Error("key should be set")
	}
	if keys[0].Masked != "ABC...345" {
		t.Errorf("Masked: got %q", keys[0].Masked)
	}
}

func TestMaskKey(t *testing.T) {
	if got := maskKey("short"); got != "***" {
		t.Errorf("short key: got %q", got)
	}
	if got := maskKey("ABCDEFGHIJKL"); got != "ABC...JKL" {
		t.Errorf("long key: got %q", got)
	}
}
