package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelbrown/mentor/internal/sandbox"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mentor.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFile(t *testing.T) {
	t.Setenv("MENTOR_TEST_KEY", "sk-test")
	path := writeConfig(t, `
default_provider: openai
providers:
  openai:
    base_url: https://api.openai.com/v1/
    api_key: ${MENTOR_TEST_KEY}
    models:
      default: gpt-4o-mini
      suggest: gpt-4o
  ollama:
    base_url: http://localhost:11434/v1/
    models:
      default: llama3.2
suggest:
  policy: remote
  timeout: 10s
sandbox:
  max_duration: 2s
server:
  port: 9090
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Suggest.Policy != "remote" || cfg.Suggest.Timeout != 10*time.Second {
		t.Errorf("Suggest = %+v", cfg.Suggest)
	}

	p, err := cfg.Provider("")
	if err != nil {
		t.Fatalf("Provider: %v", err)
	}
	if p.APIKey != "sk-test" {
		t.Errorf("APIKey = %q, want expanded env value", p.APIKey)
	}
	if got := p.Model(""); got != "gpt-4o" {
		t.Errorf("Model() = %q, want suggest model", got)
	}
	if got := p.Model("o3"); got != "o3" {
		t.Errorf("Model(override) = %q", got)
	}
	if p.IsOllama() {
		t.Error("openai provider reported as ollama")
	}

	ollama, err := cfg.Provider("ollama")
	if err != nil {
		t.Fatalf("Provider(ollama): %v", err)
	}
	if !ollama.IsOllama() || ollama.Model("") != "llama3.2" {
		t.Errorf("ollama = %+v", ollama)
	}

	if _, err := cfg.Provider("claude"); err == nil {
		t.Error("expected error for unknown provider")
	}

	policy, err := cfg.SandboxPolicy()
	if err != nil {
		t.Fatalf("SandboxPolicy: %v", err)
	}
	if policy.MaxDuration != 2*time.Second {
		t.Errorf("MaxDuration = %v, want 2s", policy.MaxDuration)
	}
	if len(policy.Globals) != len(sandbox.DefaultPolicy().Globals) {
		t.Errorf("Globals = %v, want defaults", policy.Globals)
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "providers: {}\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.DefaultProvider != "ollama" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.Suggest.Policy != "auto" {
		t.Errorf("Policy = %q, want auto", cfg.Suggest.Policy)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Storage.DBPath == "" {
		t.Error("DBPath has no default")
	}

	policy, err := cfg.SandboxPolicy()
	if err != nil {
		t.Fatalf("SandboxPolicy: %v", err)
	}
	def := sandbox.DefaultPolicy()
	if policy.MaxDuration != def.MaxDuration || policy.MaxCallStack != def.MaxCallStack {
		t.Errorf("policy = %+v, want defaults", policy)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MENTOR_SERVER_PORT", "7070")
	t.Setenv("MENTOR_SUGGEST_POLICY", "heuristic")

	cfg, err := LoadFile(writeConfig(t, "server:\n  port: 9090\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("Port = %d, want env override 7070", cfg.Server.Port)
	}
	if cfg.Suggest.Policy != "heuristic" {
		t.Errorf("Policy = %q, want heuristic", cfg.Suggest.Policy)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit file")
	}
	if _, err := LoadFile(writeConfig(t, "suggest:\n  policy: sometimes\n")); err == nil {
		t.Error("expected error for unknown policy")
	}

	cfg, err := LoadFile(writeConfig(t, "sandbox:\n  globals: [console, console]\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, err := cfg.SandboxPolicy(); err == nil {
		t.Error("expected duplicate globals to be rejected")
	}
}

func TestLoadWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load without config file: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want default", cfg.Server.Port)
	}
}

func TestSandboxMaxDurationZeroDisables(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "sandbox:\n  max_duration: 0s\n"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	policy, err := cfg.SandboxPolicy()
	if err != nil {
		t.Fatalf("SandboxPolicy: %v", err)
	}
	if policy.MaxDuration != 0 {
		t.Errorf("MaxDuration = %v, want 0 (disabled)", policy.MaxDuration)
	}

	// A Config assembled in code without a sandbox section keeps the default.
	policy, err = (&Config{}).SandboxPolicy()
	if err != nil {
		t.Fatalf("SandboxPolicy: %v", err)
	}
	if policy.MaxDuration != sandbox.DefaultPolicy().MaxDuration {
		t.Errorf("MaxDuration = %v, want default", policy.MaxDuration)
	}
}
