// Package pipe parses bridge command flags and launches the cloud WebSocket
// bridge runtime.
package pipe

import (
	"context"
	"errors"
	"flag"

	entrypoint "github.com/xiaozhi-community/reminderhub/internal/platform/cmd"
	pipesvc "github.com/xiaozhi-community/reminderhub/internal/services/pipe"
)

// Config holds bridge command configuration.
type Config struct {
	Endpoint  string `env:"XIAOZHI_ENDPOINT" envDefault:"wss://api.xiaozhi.me/mcp/"`
	Token     string `env:"XIAOZHI_TOKEN"`
	ServerBin string `env:"REMINDERHUB_SERVER_BIN" envDefault:"/app/reminderd"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "The cloud WebSocket endpoint")
	fs.StringVar(&cfg.ServerBin, "server-bin", cfg.ServerBin, "The MCP server binary to bridge")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the bridge runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServicePipe, func(ctx context.Context) error {
		bridge, err := pipesvc.New(pipesvc.Config{
			Endpoint:  cfg.Endpoint,
			Token:     cfg.Token,
			ServerBin: cfg.ServerBin,
		})
		if err != nil {
			return err
		}
		if err := bridge.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
}
