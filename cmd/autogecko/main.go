package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"autogecko-go/internal/config"
)

// Process exit codes.
const (
	exitOK                 = 0
	exitFailure            = 1
	exitMissingCredentials = 2
)

func main() {
	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newCommand(os.Stdout).Run(ctx, os.Args)
	cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "autogecko:", err)
	}
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return exitOK
	case errors.Is(err, config.ErrMissingCredentials):
		return exitMissingCredentials
	default:
		return exitFailure
	}
}

func newCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "autogecko",
		Usage: "RSI/EMA trading bot for the OANDA v3 REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML configuration",
				Value:   config.DefaultPath,
				Sources: cli.EnvVars("AUTOGECKO_CONFIG"),
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "dotenv file with OANDA_ACCOUNT_ID / OANDA_API_TOKEN",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "override app.log_level",
			},
		},
		Commands: []*cli.Command{
			startCommand(),
			scheduleCommand(),
			statusCommand(stdout),
			reloadCommand(stdout),
			initCommand(stdout),
		},
	}
}

func runtimeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "dry-run", Usage: "fetch prices but only log orders"},
		&cli.StringFlag{Name: "metrics-addr", Usage: "override app.metrics_addr (e.g. :9102)"},
		&cli.StringFlag{Name: "ws-addr", Usage: "override app.ws_addr for the live event stream"},
		&cli.StringFlag{Name: "events", Usage: "override app.events_path (JSONL event journal)"},
		&cli.BoolFlag{Name: "offline", Usage: "use synthetic prices and dry-run orders; no credentials needed"},
	}
}

func startCommand() *cli.Command {
	return &cli.Command{
		Name:  "start",
		Usage: "run one trading session",
		Flags: runtimeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, creds, err := prepare(cmd)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg, cmd.Bool("offline"))
			if err != nil {
				return err
			}
			defer rt.Close()
			_, err = rt.RunSession(ctx, cfg, creds)
			return err
		},
	}
}

func scheduleCommand() *cli.Command {
	return &cli.Command{
		Name:  "schedule",
		Usage: "run sessions whenever the configured trading window is open",
		Flags: runtimeFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, creds, err := prepare(cmd)
			if err != nil {
				return err
			}
			rt, err := newRuntime(cfg, cmd.Bool("offline"))
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.Schedule(ctx, cfg, creds, func() (*config.Config, error) {
				next, err := config.Load(cmd.String("config"))
				if err != nil {
					return nil, err
				}
				applyOverrides(cmd, next)
				return next, nil
			})
		},
	}
}

func statusCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print the resolved configuration",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := config.LoadOrDefault(cmd.String("config"))
			if err != nil {
				fmt.Fprintf(stdout, "# using defaults: %v\n", err)
			}
			fmt.Fprintln(stdout, "Current config:")
			return printConfig(stdout, cfg)
		},
	}
}

func reloadCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "reload",
		Usage: "re-read and validate the configuration file",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			log := newLogger(cmd, cfg, nil)
			log.Info().Str("path", cmd.String("config")).Msg("Config reloaded via CLI.")
			fmt.Fprintln(stdout, "Config reloaded.")
			return printConfig(stdout, cfg)
		},
	}
}

func initCommand(stdout io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "write the default configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "overwrite an existing file"},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := cmd.String("config")
			if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.Defaults()); err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
			return nil
		},
	}
}
