// Command server runs the bookmark manager.
//
//	server --config config.yaml
//	BOOKMARKS_SESSION_SECRET=... BOOKMARKS_OAUTH_CLIENT_ID=... server
//
// Settings come from defaults, then the YAML file, then BOOKMARKS_*
// environment variables; flags override all three.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/sakif/smart-bookmarks/internal/config"
	"github.com/sakif/smart-bookmarks/internal/logging"
	"github.com/sakif/smart-bookmarks/internal/server"
)

var version = "dev"

func main() {
	app := &cli.Command{
		Name:    "smart-bookmarks",
		Usage:   "Personal bookmark manager with a live-updating list",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML configuration file",
				Sources: cli.EnvVars("BOOKMARKS_CONFIG"),
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on (overrides config)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error (overrides config)",
			},
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "smart-bookmarks: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.IsSet("port") {
		cfg.Port = int(cmd.Int("port"))
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stdout)
	slog.SetDefault(logger)

	redacted := cfg.Redacted()
	logger.Debug("configuration loaded", slog.Any("config", redacted))

	srv, err := server.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	// Start blocks until SIGINT/SIGTERM.
	return srv.Start(ctx)
}
