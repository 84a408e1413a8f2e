package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/michaelbrown/mentor/internal/config"
	"github.com/michaelbrown/mentor/internal/suggest"
)

func fakeProvider(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		DefaultProvider: "test",
		Providers: map[string]config.ProviderConfig{
			"test": {
				BaseURL: baseURL,
				APIKey:  "test",
				Models:  map[string]string{"default": "test-model"},
			},
		},
		Suggest: config.SuggestConfig{Policy: "auto", Timeout: 5 * time.Second},
	}
}

func ctx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return c
}

func TestNewWithRemote(t *testing.T) {
	srv := fakeProvider(t, `Here you go: [{"type":"error-fix","title":"Look at foo","description":"Where is foo declared?"}]`)
	m, err := New(testConfig(srv.URL+"/v1/"), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Remote == nil {
		t.Fatal("expected a remote source")
	}
	if got := m.Describe(); got != "test (test-model)" {
		t.Errorf("Describe = %q", got)
	}

	res := m.Engine.Execute("foo()")
	list, err := m.Suggest(ctx(t), "", "foo()", res.Errors)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(list) != 1 || list[0].Title != "Look at foo" {
		t.Errorf("suggestions = %+v", list)
	}
}

func TestNewHeuristicPolicy(t *testing.T) {
	m, err := New(testConfig("http://127.0.0.1:1/v1/"), Options{Policy: "heuristic"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Remote != nil {
		t.Error("heuristic policy should not configure a remote")
	}
	if m.Describe() != "heuristic" {
		t.Errorf("Describe = %q", m.Describe())
	}

	res := m.Engine.Execute("foo()")
	list, err := m.Suggest(ctx(t), "", "foo()", res.Errors)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(list) != 1 || list[0].Type != suggest.TypeErrorFix {
		t.Errorf("suggestions = %+v", list)
	}
}

func TestSuggestPolicyOverride(t *testing.T) {
	srv := fakeProvider(t, "[]")
	m, err := New(testConfig(srv.URL+"/v1/"), Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	list, err := m.Suggest(ctx(t), suggest.PolicyHeuristic, "var x = 1;", nil)
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(list) == 0 || list[0].Title != "Modern Variable Declarations" {
		t.Errorf("suggestions = %+v", list)
	}
}

func TestNewUnknownProvider(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1/v1/")
	cfg.DefaultProvider = "missing"

	m, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("implicit provider should degrade, got %v", err)
	}
	if m.Remote != nil {
		t.Error("expected no remote for an unknown default provider")
	}

	if _, err := New(cfg, Options{Provider: "missing"}); err == nil {
		t.Error("expected error for an explicitly requested unknown provider")
	}
}

func TestNewWithPersona(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	if err := os.WriteFile(path, []byte("name: coach\nsystem_prompt: Ask questions only.\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := testConfig("http://127.0.0.1:1/v1/")
	cfg.Suggest.Persona = path

	m, err := New(cfg, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if m.Remote == nil {
		t.Error("expected a remote source")
	}

	cfg.Suggest.Persona = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(cfg, Options{Provider: "test"}); err == nil {
		t.Error("expected error for a missing persona file")
	}
}

func TestNewRejectsBadPolicy(t *testing.T) {
	if _, err := New(testConfig(""), Options{Policy: "always"}); err == nil {
		t.Error("expected error for unknown policy")
	}
}
