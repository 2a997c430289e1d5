package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fitauth/internal/admin"
	"github.com/dmitrijs2005/fitauth/internal/server"
	"github.com/dmitrijs2005/fitauth/internal/server/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fitauthctl:", err)
		if errors.Is(err, admin.ErrUnknownCommand) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[1:]
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		admin.Usage(os.Stdout)
		return nil
	}

	cfg, err := config.LoadConfig(args[1:])
	if err != nil {
		return err
	}
	cfg.LogFormat = "text"

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	return admin.NewApp(app.Service(), os.Stdin, os.Stdout).Run(ctx, args)
}
