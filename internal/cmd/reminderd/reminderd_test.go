package reminderd

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("reminderd", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/app/data/reminders.db" {
		t.Fatalf("expected default db path, got %q", cfg.DBPath)
	}
	if cfg.InitOnly {
		t.Fatal("expected init-only off by default")
	}
	if cfg.SmitheryEnabled() {
		t.Fatal("expected smithery disabled by default")
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/env.db")

	fs := flag.NewFlagSet("reminderd", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-db-path", "/tmp/flag.db", "-init-only"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.DBPath != "/tmp/flag.db" {
		t.Fatalf("expected flag override, got %q", cfg.DBPath)
	}
	if !cfg.InitOnly {
		t.Fatal("expected init-only on")
	}
}

func TestSmitheryEnabled(t *testing.T) {
	t.Parallel()

	cases := map[string]bool{
		"1":     true,
		"true":  true,
		"TRUE":  true,
		" true": true,
		"0":     false,
		"false": false,
		"yes":   false,
		"":      false,
	}
	for value, want := range cases {
		cfg := Config{EnableSmithery: value}
		if got := cfg.SmitheryEnabled(); got != want {
			t.Errorf("SmitheryEnabled(%q) = %v, want %v", value, got, want)
		}
	}
}
