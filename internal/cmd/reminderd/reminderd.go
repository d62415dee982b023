// Package reminderd parses reminder server flags and launches the MCP stdio
// server runtime.
package reminderd

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	entrypoint "github.com/xiaozhi-community/reminderhub/internal/platform/cmd"
	registrydomain "github.com/xiaozhi-community/reminderhub/internal/services/registry/domain"
	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/app"
	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/domain"
	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/storage/sqlite"
)

// Config holds reminder server command configuration.
type Config struct {
	DBPath         string `env:"DB_PATH" envDefault:"/app/data/reminders.db"`
	EnableSmithery string `env:"ENABLE_SMITHERY"`
	SmitheryAPIKey string `env:"SMITHERY_API_KEY"`
	ServersConfig  string `env:"SERVERS_CONFIG" envDefault:"servers_config.json"`
	// InitOnly applies the schema and exits without serving. The supervisor
	// uses it to force first-run database creation.
	InitOnly bool
}

// SmitheryEnabled reports whether the smithery-enabled variant is selected.
func (c Config) SmitheryEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(c.EnableSmithery)) {
	case "1", "true":
		return true
	}
	return false
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The reminder SQLite database path")
	fs.BoolVar(&cfg.InitOnly, "init-only", false, "Initialize the database schema and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the reminder MCP server runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceReminderd, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		if cfg.InitOnly {
			log.Printf("database initialized at %s", cfg.DBPath)
			return nil
		}

		opts := app.Options{
			Service: domain.NewService(store, time.Now),
		}
		if cfg.SmitheryEnabled() {
			client := registrydomain.NewClient(cfg.SmitheryAPIKey)
			opts.Registry = client
			opts.AutoConnector = registrydomain.NewAutoConnector(client, cfg.ServersConfig)
			log.Printf("smithery registry tools enabled")
		}

		server, err := app.New(opts)
		if err != nil {
			return err
		}
		return server.Serve(ctx)
	})
}
