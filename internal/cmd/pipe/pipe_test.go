package pipe

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("pipe", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Endpoint != "wss://api.xiaozhi.me/mcp/" {
		t.Fatalf("expected default endpoint, got %q", cfg.Endpoint)
	}
	if cfg.ServerBin != "/app/reminderd" {
		t.Fatalf("expected default server binary, got %q", cfg.ServerBin)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("XIAOZHI_ENDPOINT", "wss://example.test/mcp/")

	fs := flag.NewFlagSet("pipe", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-server-bin", "/usr/local/bin/reminderd"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Endpoint != "wss://example.test/mcp/" {
		t.Fatalf("expected env endpoint, got %q", cfg.Endpoint)
	}
	if cfg.ServerBin != "/usr/local/bin/reminderd" {
		t.Fatalf("expected flag override, got %q", cfg.ServerBin)
	}
}
