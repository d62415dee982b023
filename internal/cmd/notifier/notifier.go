// Package notifier parses notifier command flags and launches the due-reminder
// monitoring runtime.
package notifier

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	entrypoint "github.com/xiaozhi-community/reminderhub/internal/platform/cmd"
	"github.com/xiaozhi-community/reminderhub/internal/services/notifier/app"
	"github.com/xiaozhi-community/reminderhub/internal/services/notifier/domain"
	"github.com/xiaozhi-community/reminderhub/internal/services/reminders/storage/sqlite"
)

// Modes for the notifier run loop.
const (
	ModeContinuous = "continuous"
	ModeOnce       = "once"
)

// Config holds notifier command configuration.
type Config struct {
	DBPath   string        `env:"DB_PATH" envDefault:"/app/data/reminders.db"`
	Endpoint string        `env:"XIAOZHI_ENDPOINT" envDefault:"wss://api.xiaozhi.me/mcp/"`
	Token    string        `env:"XIAOZHI_TOKEN"`
	Mode     string        `env:"NOTIFIER_MODE" envDefault:"continuous"`
	Interval time.Duration `env:"REMINDERHUB_NOTIFIER_INTERVAL" envDefault:"60s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The reminder SQLite database path")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "Run mode: continuous or once")
	fs.DurationVar(&cfg.Interval, "interval", cfg.Interval, "Gap between due-reminder scans")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.Mode != ModeContinuous && cfg.Mode != ModeOnce {
		return Config{}, fmt.Errorf("unknown mode %q", cfg.Mode)
	}
	return cfg, nil
}

// Run starts the notifier runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceNotifier, func(ctx context.Context) error {
		// The supervisor's bootstrap creates the database before siblings
		// start; a missing file means that ordering was violated.
		if _, err := os.Stat(cfg.DBPath); err != nil {
			return fmt.Errorf("database not found at %s, run the server first: %w", cfg.DBPath, err)
		}

		store, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer store.Close()

		sender, err := app.NewSender(cfg.Endpoint, cfg.Token)
		if err != nil {
			return err
		}
		monitor := domain.NewMonitor(store, sender, cfg.Interval, time.Now)

		if cfg.Mode == ModeOnce {
			return monitor.RunOnce(ctx)
		}
		if err := monitor.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}
