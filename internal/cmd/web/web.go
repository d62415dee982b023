// Package web parses web command flags and launches the HTTP status surface.
package web

import (
	"context"
	"flag"
	"fmt"
	"time"

	entrypoint "github.com/xiaozhi-community/reminderhub/internal/platform/cmd"
	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/domain"
	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/storage/sqlite"
	websvc "github.com/xiaozhi-community/reminderhub/internal/services/web"
)

// Config holds web command configuration.
type Config struct {
	Addr   string `env:"REMINDERHUB_WEB_ADDR" envDefault:"0.0.0.0:8000"`
	DBPath string `env:"DB_PATH" envDefault:"/app/data/reminders.db"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The HTTP listen address")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The reminder SQLite database path")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the web runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceWeb, func(ctx context.Context) error {
		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		service := domain.NewService(store, time.Now)
		return websvc.NewServer(cfg.Addr, service, store).Serve(ctx)
	})
}
