// Package main starts the reminder MCP stdio server process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	reminderdcmd "github.com/xiaozhi-community/reminderhub/internal/cmd/reminderd"
)

func main() {
	cfg, err := reminderdcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	// Stdout carries the MCP byte stream; logs must stay on stderr.
	log.SetOutput(os.Stderr)
	log.SetPrefix("[REMINDERD] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := reminderdcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
