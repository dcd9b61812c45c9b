package openaicompat

import (
	"context"
	"testing"
)

func TestNewClientWithoutKey(t *testing.T) {
	t.Parallel()

	if c := NewClient(Config{BaseURL: "http://localhost"}); c != nil {
		t.Fatal("expected nil client without api key")
	}
	if c := NewClient(Config{APIKey: "sk-test", SiteName: "booking"}); c == nil {
		t.Fatal("expected client with api key")
	}
}

func TestConfigBaseURL(t *testing.T) {
	t.Parallel()

	if got := (Config{}).baseURL(); got != DefaultBaseURL {
		t.Fatalf("baseURL() = %q", got)
	}
	if got := (Config{BaseURL: " https://openrouter.ai/api/v1/ "}).baseURL(); got != "https://openrouter.ai/api/v1" {
		t.Fatalf("baseURL() = %q", got)
	}
}

func TestNewRequiresKey(t *testing.T) {
	t.Parallel()

	cfg := &Config{Model: "gpt-4o-mini"}
	if _, err := cfg.New(context.Background()); err == nil {
		t.Fatal("expected error without api key")
	}
}
