package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"autogecko-go/internal/config"
	"autogecko-go/internal/exchange"
	"autogecko-go/internal/execution"
	"autogecko-go/internal/metrics"
	"autogecko-go/internal/notify"
	"autogecko-go/internal/schedule"
	"autogecko-go/internal/session"
	"autogecko-go/internal/util"
)

// prepare loads the config, applies flag overrides and resolves credentials.
// A missing file falls back to the defaults; an invalid one is an error.
func prepare(cmd *cli.Command) (*config.Config, config.Credentials, error) {
	path := cmd.String("config")
	cfg, err := config.Load(path)
	missing := errors.Is(err, fs.ErrNotExist)
	if missing {
		cfg = config.Defaults()
	} else if err != nil {
		return nil, config.Credentials{}, err
	}
	applyOverrides(cmd, cfg)
	if missing {
		logger := newLogger(cmd, cfg, nil)
		logger.Warn().Str("path", path).Msg("config file not found, using defaults")
	}
	if cmd.Bool("offline") {
		return cfg, config.Credentials{}, nil
	}
	creds, err := config.ResolveCredentials(cfg, cmd.String("env-file"))
	if err != nil {
		logger := newLogger(cmd, cfg, nil)
		logger.Error().Err(err).Msg("Missing OANDA credentials.")
		return nil, config.Credentials{}, err
	}
	return cfg, creds, nil
}

func applyOverrides(cmd *cli.Command, cfg *config.Config) {
	if cmd.IsSet("log-level") {
		cfg.App.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("dry-run") {
		cfg.Broker.DryRun = cmd.Bool("dry-run")
	}
	if cmd.Bool("offline") {
		cfg.Broker.DryRun = true
	}
	if cmd.IsSet("metrics-addr") {
		cfg.App.MetricsAddr = cmd.String("metrics-addr")
	}
	if cmd.IsSet("ws-addr") {
		cfg.App.WSAddr = cmd.String("ws-addr")
	}
	if cmd.IsSet("events") {
		cfg.App.EventsPath = cmd.String("events")
	}
}

func newLogger(cmd *cli.Command, cfg *config.Config, extra io.Writer) zerolog.Logger {
	level := cfg.App.LogLevel
	if cmd.IsSet("log-level") {
		level = cmd.String("log-level")
	}
	if extra == nil {
		return util.NewLogger(level)
	}
	return util.NewLogger(level, extra)
}

func printConfig(w io.Writer, cfg *config.Config) error {
	data, err := yaml.Marshal(cfg.Redacted())
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// runtime owns the process-wide pieces shared by every session: the logger,
// the trade log file, the metrics server and the websocket event hub.
type runtime struct {
	offline bool
	log     zerolog.Logger
	console *notify.Chan
	drained chan struct{}
	logFile *os.File
	hub     *notify.Hub
	servers []interface{ Close() error }
}

func newRuntime(cfg *config.Config, offline bool) (*runtime, error) {
	logFile, err := util.OpenLogFile(cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	rt := &runtime{offline: offline, logFile: logFile}
	if logFile != nil {
		rt.log = util.NewLogger(cfg.App.LogLevel, logFile)
	} else {
		rt.log = util.NewLogger(cfg.App.LogLevel)
	}
	// printed off the loop goroutine
	printer := notify.NewLogSink(zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}))
	rt.console = notify.NewChan(256)
	rt.drained = make(chan struct{})
	go func() {
		defer close(rt.drained)
		for e := range rt.console.Events() {
			printer.Emit(e)
		}
	}()

	if cfg.App.MetricsAddr != "" {
		rt.servers = append(rt.servers, metrics.Serve(cfg.App.MetricsAddr))
		rt.log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics up")
	}
	if cfg.App.WSAddr != "" {
		rt.hub = notify.NewHub(rt.log)
		rt.servers = append(rt.servers, notify.ServeHub(cfg.App.WSAddr, rt.hub))
		rt.log.Info().Str("addr", cfg.App.WSAddr).Msg("event stream up")
	}
	return rt, nil
}

// RunSession builds the price source and executor for cfg and runs one session.
// Offline runs use synthetic prices and never reach the broker.
func (rt *runtime) RunSession(ctx context.Context, cfg *config.Config, creds config.Credentials) (session.Summary, error) {
	var (
		prices  session.PriceSource
		gateway execution.Gateway
	)
	if rt.offline {
		prices = exchange.NewSynthetic(1.1)
	} else {
		client := exchange.NewClient(creds.AccountID, creds.APIToken,
			exchange.WithBaseURL(cfg.Broker.BaseURL),
			exchange.WithRetries(cfg.Broker.Retries),
			exchange.WithBackoff(time.Duration(cfg.Broker.BackoffSecs*float64(time.Second))),
			exchange.WithTimeout(time.Duration(cfg.Broker.TimeoutSecs)*time.Second),
			exchange.WithLogger(rt.log),
		)
		prices, gateway = client, client
	}
	exec := execution.NewExecutor(gateway, rt.log, execution.WithDryRun(cfg.Broker.DryRun))

	sinks := notify.Fanout{rt.console}
	if rt.hub != nil {
		sinks = append(sinks, rt.hub)
	}
	if cfg.App.EventsPath != "" {
		journal, err := notify.NewJSONL(cfg.App.EventsPath)
		if err != nil {
			return session.Summary{}, fmt.Errorf("open event journal: %w", err)
		}
		defer journal.Close()
		sinks = append(sinks, journal)
	}

	loop := session.New(session.ParamsFromConfig(cfg), prices, exec, sinks, rt.log)
	summary, err := loop.Run(ctx)
	if err != nil {
		return summary, err
	}
	rt.log.Info().Str("session_id", summary.SessionID).Int("ticks", summary.Ticks).
		Int("orders", summary.Orders).Int("errors", summary.Errors).Bool("dry_run", exec.DryRun()).Msg("session summary")
	return summary, nil
}

// Schedule runs sessions inside the configured window until ctx is cancelled.
func (rt *runtime) Schedule(ctx context.Context, cfg *config.Config, creds config.Credentials, load schedule.Loader) error {
	run := func(ctx context.Context, next *config.Config) error {
		_, err := rt.RunSession(ctx, next, creds)
		return err
	}
	return schedule.New(load, run, rt.log).Run(ctx, cfg)
}

func (rt *runtime) Close() {
	rt.console.Close()
	<-rt.drained
	if dropped := rt.console.Dropped(); dropped > 0 {
		rt.log.Warn().Int64("dropped", dropped).Msg("console fell behind, events dropped")
	}
	if rt.hub != nil {
		rt.hub.Close()
	}
	for _, srv := range rt.servers {
		_ = srv.Close()
	}
	if rt.logFile != nil {
		_ = rt.logFile.Close()
	}
}
