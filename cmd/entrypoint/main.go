// Package main supervises the reminder container processes.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	entrypointcmd "github.com/xiaozhi-community/reminderhub/internal/cmd/entrypoint"
	"github.com/xiaozhi-community/reminderhub/internal/platform/config"
)

func main() {
	cfg, err := entrypointcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	log.SetPrefix("[ENTRYPOINT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(entrypointcmd.Run(ctx, cfg))
}
