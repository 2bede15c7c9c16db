package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/mattfryer/bookstack-addon/internal/config"
	"github.com/mattfryer/bookstack-addon/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	app := &cli.App{
		Name:  "bookstack-addon",
		Usage: "Poll BookStack instances and expose their counts and actions",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "options",
				Usage:   "path to the add-on options file",
				Value:   cfg.OptionsPath,
				EnvVars: []string{"ADDON_OPTIONS_PATH"},
			},
		},
		Action: func(c *cli.Context) error {
			return serve(c.Context, withOptionsPath(cfg, c), logging.New(cfg.LogLevel))
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run the pollers and the HTTP API",
				Action: func(c *cli.Context) error {
					return serve(c.Context, withOptionsPath(cfg, c), logging.New(cfg.LogLevel))
				},
			},
			{
				Name:  "check",
				Usage: "verify connectivity and credentials for every configured instance",
				Action: func(c *cli.Context) error {
					return check(c.Context, withOptionsPath(cfg, c), os.Stdout)
				},
			},
			{
				Name:      "refresh",
				Usage:     "run one refresh cycle and print the resulting state as JSON",
				ArgsUsage: "[instance-id]",
				Action: func(c *cli.Context) error {
					logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel)
					return refreshOnce(c.Context, withOptionsPath(cfg, c), c.Args().First(), os.Stdout, logger)
				},
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func withOptionsPath(cfg config.Config, c *cli.Context) config.Config {
	if path := c.String("options"); path != "" {
		cfg.OptionsPath = path
	}
	return cfg
}
