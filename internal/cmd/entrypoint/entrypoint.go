// Package entrypoint supervises the reminder container: it bootstraps the
// database, then runs the pipe, notifier, and web processes as siblings with
// the web process as the foreground anchor.
package entrypoint

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	entrypoint "github.com/xiaozhi-community/reminderhub/internal/platform/cmd"
)

// Config holds supervisor configuration.
type Config struct {
	DBPath           string        `env:"DB_PATH" envDefault:"/app/data/reminders.db"`
	EnableSmithery   string        `env:"ENABLE_SMITHERY"`
	GraceDelay       time.Duration `env:"REMINDERHUB_GRACE_DELAY" envDefault:"5s"`
	BootstrapTimeout time.Duration `env:"REMINDERHUB_BOOTSTRAP_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout  time.Duration `env:"REMINDERHUB_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ReminderdBin     string        `env:"REMINDERHUB_SERVER_BIN" envDefault:"/app/reminderd"`
	PipeBin          string        `env:"REMINDERHUB_PIPE_BIN" envDefault:"/app/pipe"`
	NotifierBin      string        `env:"REMINDERHUB_NOTIFIER_BIN" envDefault:"/app/notifier"`
	WebBin           string        `env:"REMINDERHUB_WEB_BIN" envDefault:"/app/web"`
	EnvFile          string        `env:"REMINDERHUB_ENV_FILE" envDefault:".env"`
}

// SmitheryEnabled reports whether the smithery-enabled server variant is
// selected by the feature flag.
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
	fs.DurationVar(&cfg.GraceDelay, "grace-delay", cfg.GraceDelay, "Delay between background process starts")
	fs.DurationVar(&cfg.BootstrapTimeout, "bootstrap-timeout", cfg.BootstrapTimeout, "Timeout for the one-time database initialization")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "Grace period before forcing child exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// childProcess describes a managed child command.
type childProcess struct {
	name string
	cmd  *exec.Cmd
}

// processExit reports a child process exit result.
type processExit struct {
	name string
	err  error
}

// Run bootstraps storage and supervises the sibling processes until the
// foreground web process exits or a shutdown signal arrives. The return value
// is the container exit code.
func Run(ctx context.Context, cfg Config) int {
	loadEnvFile(cfg.EnvFile)

	if cfg.SmitheryEnabled() {
		log.Printf("server variant: smithery-enabled")
	} else {
		log.Printf("server variant: standard")
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("create data directory %s: %v", dir, err)
		}
	}
	bootstrap(ctx, cfg)

	var children []*childProcess
	exitCh := make(chan processExit, 3)

	// Background siblings: start failures are logged, never fatal.
	if pipe, err := startChild("pipe", exec.Command(cfg.PipeBin)); err != nil {
		log.Printf("start pipe: %v", err)
	} else {
		children = append(children, pipe)
		go waitChild(pipe, exitCh)
	}

	sleepFor(ctx, cfg.GraceDelay)

	if notifier, err := startChild("notifier", exec.Command(cfg.NotifierBin)); err != nil {
		log.Printf("start notifier: %v", err)
	} else {
		children = append(children, notifier)
		go waitChild(notifier, exitCh)
	}

	web, err := startChild("web", exec.Command(cfg.WebBin))
	if err != nil {
		log.Printf("start web: %v", err)
		terminateChildren(children)
		waitForChildren(exitCh, len(children), cfg.ShutdownTimeout, children)
		return 1
	}
	children = append(children, web)
	go waitChild(web, exitCh)

	running := len(children)
	for {
		select {
		case <-ctx.Done():
			log.Printf("shutdown signal received")
			terminateChildren(children)
			waitForChildren(exitCh, running, cfg.ShutdownTimeout, children)
			return 0
		case exit := <-exitCh:
			running--
			if exit.name != "web" {
				// Background siblings may die without taking the
				// container down.
				log.Printf("%s exited: %v", exit.name, exit.err)
				continue
			}
			log.Printf("web exited: %v", exit.err)
			terminateChildren(children)
			waitForChildren(exitCh, running, cfg.ShutdownTimeout, children)
			return exitCode(exit.err)
		}
	}
}

// loadEnvFile loads a .env file when one exists.
func loadEnvFile(path string) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Printf("load %s: %v", path, err)
		return
	}
	log.Printf("loaded environment from %s", path)
}

// bootstrap runs the server once with -init-only so the schema exists before
// any sibling starts. Failures are logged, not fatal.
func bootstrap(ctx context.Context, cfg Config) {
	log.Printf("initializing database at %s", cfg.DBPath)

	initCtx, cancel := context.WithTimeout(ctx, cfg.BootstrapTimeout)
	defer cancel()

	cmd := exec.CommandContext(initCtx, cfg.ReminderdBin, "-init-only", "-db-path="+cfg.DBPath)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		log.Printf("database initialization failed, continuing: %v", err)
	}

	if info, err := os.Stat(cfg.DBPath); err != nil {
		log.Printf("database file missing after bootstrap: %v", err)
	} else {
		log.Printf("database ready, %d bytes", info.Size())
	}
}

// sleepFor waits out the grace delay unless the context is cancelled first.
func sleepFor(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// startChild starts a child process with inherited stdio streams.
func startChild(name string, cmd *exec.Cmd) (*childProcess, error) {
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}
	log.Printf("%s started, pid %d", name, cmd.Process.Pid)
	return &childProcess{name: name, cmd: cmd}, nil
}

// waitChild waits for a child process and reports its exit.
func waitChild(child *childProcess, exitCh chan<- processExit) {
	err := child.cmd.Wait()
	exitCh <- processExit{name: child.name, err: err}
}

// terminateChildren sends SIGTERM to all child processes.
func terminateChildren(children []*childProcess) {
	for _, child := range children {
		if child == nil || child.cmd == nil || child.cmd.Process == nil {
			continue
		}
		if child.cmd.ProcessState != nil {
			continue
		}
		_ = child.cmd.Process.Signal(syscall.SIGTERM)
	}
}

// waitForChildren waits for the remaining exits or forces shutdown.
func waitForChildren(exitCh <-chan processExit, remaining int, timeout time.Duration, children []*childProcess) {
	if remaining <= 0 {
		return
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for remaining > 0 {
		select {
		case <-exitCh:
			remaining--
		case <-timer.C:
			forceKill(children)
			return
		}
	}
}

// forceKill sends SIGKILL to any child still running.
func forceKill(children []*childProcess) {
	for _, child := range children {
		if child == nil || child.cmd == nil || child.cmd.Process == nil {
			continue
		}
		if child.cmd.ProcessState != nil {
			continue
		}
		_ = child.cmd.Process.Kill()
	}
}

// exitCode derives a process exit code from a wait error.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}

	return 1
}
