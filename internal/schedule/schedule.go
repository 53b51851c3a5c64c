// Package schedule starts trading sessions only inside configured market hours.
package schedule

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"autogecko-go/internal/config"
	"autogecko-go/internal/util"
)

// Window is a daily UTC trading window. Both hours are inclusive.
type Window struct {
	WeekdaysOnly bool
	StartHour    int
	EndHour      int
}

// WindowFromConfig maps the schedule section to a Window.
func WindowFromConfig(s config.Schedule) Window {
	return Window{WeekdaysOnly: s.WeekdaysOnly, StartHour: s.StartHour, EndHour: s.EndHour}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	t = t.UTC()
	if w.WeekdaysOnly {
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	h := t.Hour()
	return w.StartHour <= h && h <= w.EndHour
}

// Loader returns a freshly read configuration.
type Loader func() (*config.Config, error)

// Runner runs one session to completion with the given configuration.
type Runner func(ctx context.Context, cfg *config.Config) error

const defaultCheckInterval = 300 * time.Second

// Scheduler polls the window and runs a session whenever it is open.
type Scheduler struct {
	load  Loader
	run   Runner
	log   zerolog.Logger
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSleep replaces the cancellable wait between checks.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(s *Scheduler) {
		if sleep != nil {
			s.sleep = sleep
		}
	}
}

// New builds a scheduler that reloads through load before each check.
func New(load Loader, run Runner, log zerolog.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{load: load, run: run, log: log, now: time.Now, sleep: util.Sleep}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run checks the window until ctx is cancelled. A config that fails to load
// keeps the last good one in effect.
func (s *Scheduler) Run(ctx context.Context, initial *config.Config) error {
	cfg := initial
	if cfg == nil {
		cfg = config.Defaults()
	}
	s.log.Info().Msg("scheduler started")
	for {
		if next, err := s.load(); err != nil {
			s.log.Warn().Err(err).Msg("config reload failed, keeping previous")
		} else if next != nil {
			cfg = next
		}

		if WindowFromConfig(cfg.Schedule).Contains(s.now()) {
			s.log.Info().Msg("starting scheduled session")
			if err := s.run(ctx, cfg); err != nil {
				s.log.Error().Err(err).Msg("scheduled session failed")
			} else {
				s.log.Info().Msg("scheduled session completed")
			}
		}

		interval := time.Duration(cfg.Schedule.CheckIntervalSecs) * time.Second
		if interval <= 0 {
			interval = defaultCheckInterval
		}
		if err := s.sleep(ctx, interval); err != nil {
			return err
		}
	}
}
