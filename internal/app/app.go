// Package app wires the engine together: config, logging, storage, trigger
// substrate, scheduling, sweeps, notification pipeline and the Telegram
// transport.
package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"kanabot/internal/clock"
	"kanabot/internal/config"
	"kanabot/internal/content"
	"kanabot/internal/notify"
	"kanabot/internal/router"
	"kanabot/internal/schedule"
	"kanabot/internal/store"
	"kanabot/internal/sweep"
	"kanabot/internal/transport"
	"kanabot/internal/transport/telegram"
	"kanabot/internal/trigger"
	"kanabot/pkg/logx"
)

type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	st        *store.Store
	users     store.UserRepository
	questions store.QuestionRepository

	triggers *trigger.Service
	coord    *schedule.Coordinator
	driver   *schedule.Driver
	sweeper  *sweep.Service
	notifier *notify.Service
	adapter  *telegram.Adapter
	router   *router.Router
	source   *content.Source
	clk      clock.Clock

	defaultPerDay int
	answerLimit   time.Duration

	updates chan transport.Update
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	mgr.SetLogger(log.With(logx.String("svc", "config")))

	a := &App{
		cfgMgr: mgr,
		logSvc: logSvc,
		log:    log,
		clk:    clock.System,
	}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	// Storage.
	busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	st, err := store.Open(store.Config{Path: cfg.Storage.Path, BusyTimeout: busy},
		a.log.With(logx.String("svc", "store")))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.st = st
	a.users = st.Users()
	a.questions = st.Questions()

	// Transport.
	pollTimeout, err := config.ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout)
	if err != nil {
		return err
	}
	adapter, err := telegram.New(telegram.Config{Token: cfg.Telegram.Token, PollTimeout: pollTimeout},
		a.log.With(logx.String("svc", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram adapter: %w", err)
	}
	a.adapter = adapter

	// Notification pipeline.
	retryBase, err := config.ParseDurationField("notifier.retry_base", cfg.Notifier.RetryBase)
	if err != nil {
		return err
	}
	a.notifier = notify.New(notify.Config{
		Workers:    cfg.Notifier.Workers,
		QueueSize:  cfg.Notifier.QueueSize,
		RatePerSec: cfg.Notifier.RatePerSec,
		RetryMax:   cfg.Notifier.RetryMax,
		RetryBase:  retryBase,
	}, adapter, a.log.With(logx.String("svc", "notify")))

	// Trigger substrate; fired payloads deliver new questions.
	a.triggers = trigger.New(trigger.Config{Timezone: cfg.Schedule.Timezone}, a.deliverQuestion,
		a.log.With(logx.String("svc", "trigger")))

	// Scheduling.
	window, err := parseWindow(cfg.Schedule.Window)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	a.coord = schedule.NewCoordinator(a.triggers, window, a.triggers.Location(), rng, a.clk,
		a.log.With(logx.String("svc", "schedule")))
	a.driver = schedule.NewDriver(a.users, a.coord, a.log.With(logx.String("svc", "schedule")))

	// Sweeps.
	a.sweeper = sweep.New(a.users, a.questions, a.notifier, a.clk,
		a.log.With(logx.String("svc", "sweep")))

	// Content + knobs.
	a.source = content.NewSource(rand.New(rand.NewSource(time.Now().UnixNano() + 1)))
	a.defaultPerDay = cfg.Schedule.DefaultQuestionsPerDay
	if a.defaultPerDay < 1 {
		a.defaultPerDay = 1
	}
	a.answerLimit, err = config.ParseDurationOrDefault("schedule.answer_time_limit",
		cfg.Schedule.AnswerTimeLimit, 10*time.Minute)
	if err != nil {
		return err
	}

	// Routing: static registry, populated once at startup.
	a.router = router.New(a.log.With(logx.String("svc", "router")))
	a.router.Handle(router.KindStart, a.onStart)
	a.router.Handle(router.KindSettings, a.onSettings)
	a.router.Handle(router.KindAccept, a.onAccept)
	a.router.Handle(router.KindAnswer, a.onAnswer)

	// Standing periodic actions.
	sweepEvery, err := config.ParseDurationOrDefault("schedule.sweep_every", cfg.Schedule.SweepEvery, time.Minute)
	if err != nil {
		return err
	}
	driverCfg := schedule.DriverConfig{DailyAt: cfg.Schedule.DailyAt, SweepEvery: sweepEvery}
	if err := a.driver.Register(a.triggers, driverCfg, a.sweeper.SweepAcceptance, a.sweeper.SweepAnswers); err != nil {
		return fmt.Errorf("register schedules: %w", err)
	}
	return nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	a.notifier.Start(runCtx)
	a.triggers.Start(runCtx)

	a.updates = make(chan transport.Update, 64)
	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return fmt.Errorf("start telegram: %w", err)
	}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.updateLoop(runCtx)
	}()

	// Config hot reload (logging + notifier knobs).
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.watchConfig(runCtx)
	}()

	// Triggers live in memory; rebuild every user's set on boot.
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.driver.RunDaily(runCtx); err != nil {
			a.log.Warn("boot reconcile incomplete", logx.Err(err))
		}
	}()

	a.log.Info("kanabot started")
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	var errs []error
	if err := a.adapter.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	a.triggers.Stop(ctx)
	a.notifier.Stop(ctx)
	a.wg.Wait()
	if err := a.st.Close(); err != nil {
		errs = append(errs, err)
	}
	_ = a.logSvc.Close()
	a.log.Info("kanabot stopped")
	return errors.Join(errs...)
}

func (a *App) updateLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			a.router.Dispatch(ctx, up)
		}
	}
}

func (a *App) watchConfig(ctx context.Context) {
	sub := a.cfgMgr.Subscribe(1)
	defer a.cfgMgr.Unsubscribe(sub)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.cfgMgr.Watch(ctx); err != nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-sub:
			if cfg == nil {
				continue
			}
			a.logSvc.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
			})
			retryBase, err := config.ParseDurationField("notifier.retry_base", cfg.Notifier.RetryBase)
			if err != nil {
				a.log.Warn("config apply: bad notifier.retry_base", logx.Err(err))
				continue
			}
			a.notifier.Apply(notify.Config{
				Workers:    cfg.Notifier.Workers,
				QueueSize:  cfg.Notifier.QueueSize,
				RatePerSec: cfg.Notifier.RatePerSec,
				RetryMax:   cfg.Notifier.RetryMax,
				RetryBase:  retryBase,
			})
			a.log.Info("config applied")
		}
	}
}

func parseWindow(w config.ScheduleWindow) (schedule.Window, error) {
	from, err := schedule.ParseWindowEdge(w.From)
	if err != nil {
		return schedule.Window{}, fmt.Errorf("schedule.window.from: %w", err)
	}
	to, err := schedule.ParseWindowEdge(w.To)
	if err != nil {
		return schedule.Window{}, fmt.Errorf("schedule.window.to: %w", err)
	}
	out := schedule.Window{From: from, To: to}
	if err := out.Validate(); err != nil {
		return schedule.Window{}, fmt.Errorf("schedule.window: %w", err)
	}
	return out, nil
}
