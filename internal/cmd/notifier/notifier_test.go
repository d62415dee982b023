package notifier

import (
	"flag"
	"testing"
	"time"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("notifier", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Mode != ModeContinuous {
		t.Fatalf("expected continuous mode, got %q", cfg.Mode)
	}
	if cfg.Interval != 60*time.Second {
		t.Fatalf("expected 60s interval, got %s", cfg.Interval)
	}
	if cfg.Endpoint != "wss://api.xiaozhi.me/mcp/" {
		t.Fatalf("expected default endpoint, got %q", cfg.Endpoint)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("NOTIFIER_MODE", "once")

	fs := flag.NewFlagSet("notifier", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-interval", "30s"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Mode != ModeOnce {
		t.Fatalf("expected once mode from env, got %q", cfg.Mode)
	}
	if cfg.Interval != 30*time.Second {
		t.Fatalf("expected flag interval, got %s", cfg.Interval)
	}
}

func TestParseConfigRejectsUnknownMode(t *testing.T) {
	fs := flag.NewFlagSet("notifier", flag.ContinueOnError)
	if _, err := ParseConfig(fs, []string{"-mode", "sometimes"}); err == nil {
		t.Fatal("expected mode error")
	}
}
