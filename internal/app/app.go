// Package app wires the store, the reminder engine and the chat bot into
// one process and owns its start and stop order.
package app

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"pawbot/internal/bot"
	"pawbot/internal/clock"
	"pawbot/internal/config"
	"pawbot/internal/conversation"
	"pawbot/internal/notifier"
	"pawbot/internal/reconcile"
	rtsup "pawbot/internal/runtime/supervisor"
	"pawbot/internal/storage"
	"pawbot/internal/task/engine"
	"pawbot/internal/task/scheduler"
	"pawbot/internal/tracker"
	kit "pawbot/internal/transport"
	telegram "pawbot/internal/transport/telegram/adapter"
	logx "pawbot/pkg/logx"
	"pawbot/pkg/systemd"
)

const sweepEvery = time.Minute

type App struct {
	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service

	store   *storage.Store
	adapter kit.Adapter
	engine  *engine.Service
	sched   *scheduler.Service
	notif   *notifier.Service
	tracker *tracker.Service
	conv    *conversation.Manager
	router  *bot.Router

	clock      clock.Clock
	flushEvery time.Duration
	updates    chan kit.Update

	report  reconcile.Report
	stopped atomic.Bool
}

type Option func(*App)

// WithAdapter replaces the Telegram adapter; the token is then not required.
func WithAdapter(ad kit.Adapter) Option { return func(a *App) { a.adapter = ad } }

// WithClock overrides the time source used for "today" and dialog expiry.
func WithClock(c clock.Clock) Option { return func(a *App) { a.clock = c } }

// zoneClock reads the wall clock in the scheduler's current zone, so a
// timezone reload also moves "today".
type zoneClock struct{ sched *scheduler.Service }

func (z zoneClock) Now() time.Time { return time.Now().In(z.sched.Location()) }

func New(cfgPath string, opts ...Option) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	a := &App{cfgm: cfgm, updates: make(chan kit.Update, 256)}
	for _, opt := range opts {
		opt(a)
	}

	a.logs, a.log = logx.New(mapLogging(cfg))
	log := a.log
	fail := func(err error) (*App, error) {
		_ = a.logs.Close()
		return nil, err
	}

	if a.adapter == nil {
		if err := config.RequireToken(cfg); err != nil {
			return fail(err)
		}
		ad, err := telegram.New(mapTelegram(cfg), log)
		if err != nil {
			return fail(err)
		}
		a.adapter = ad
	}

	sc := mapStorage(cfg)
	backend, err := storage.Open(sc, log)
	if err != nil {
		return fail(err)
	}
	a.store = storage.NewStore(backend, log)
	log.Info("storage opened", logx.String("driver", sc.Driver), logx.String("path", sc.Path))

	a.engine = engine.New(mapTaskEngine(cfg), log)
	a.sched = scheduler.New(scheduler.Config{Timezone: cfg.Scheduler.Timezone}, a.engine, log)
	a.notif = notifier.New(mapNotifier(cfg), a.adapter, log)
	if a.clock == nil {
		a.clock = zoneClock{sched: a.sched}
	}

	a.tracker = tracker.New(tracker.Deps{
		Store:           a.store,
		Scheduler:       a.sched,
		Clock:           a.clock,
		Deliverer:       a.notif,
		DeliveryTimeout: deliveryTimeout(cfg),
		Log:             log,
	})
	a.conv = conversation.New(conversationTTL(cfg), a.clock)
	a.router = bot.New(bot.Deps{
		Sender:  a.adapter,
		Tracker: a.tracker,
		Conv:    a.conv,
		Workers: cfg.Conversation.Workers,
		Log:     log,
	})
	a.flushEvery = flushInterval(cfg)
	a.log = log.With(logx.String("comp", "app"))
	return a, nil
}

func (a *App) Tracker() *tracker.Service { return a.tracker }

// Report is the result of the startup reconciliation.
func (a *App) Report() reconcile.Report { return a.report }

// Done is closed when the app context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error seen by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start loads the records, installs one daily job per distinct reminder and
// only then begins accepting chat updates.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))
	a.cfgm.SetLogger(a.logs.Logger())
	a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
		if _, ok := a.adapter.(*telegram.Adapter); ok {
			return config.RequireToken(cfg)
		}
		return nil
	})

	a.store.Load(ctx)

	a.engine.Start(a.sup.Context())
	a.sched.Start(a.sup.Context())

	a.report = reconcile.New(a.store, a.sched, a.tracker.JobFor, a.tracker.DeliveryTimeout(), a.log).Run(ctx)
	if a.report.Failed > 0 {
		a.log.Warn("some reminders could not be scheduled", logx.Int("failed", a.report.Failed))
	}

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		a.log.Error("adapter start failed", logx.Err(err))
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		_ = a.Stop(sctx, StopFatalError)
		return err
	}
	a.sup.Go("bot.dispatch", func(c context.Context) error {
		return a.router.Run(c, a.updates)
	})
	a.sup.Go0("bot.menu", func(c context.Context) {
		mctx, cancel := context.WithTimeout(c, 10*time.Second)
		defer cancel()
		if err := a.router.PublishMenu(mctx); err != nil {
			a.log.Warn("command menu not published", logx.Err(err))
		}
	})

	a.sup.Go0("storage.flush", func(c context.Context) {
		t := time.NewTicker(a.flushEvery)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				if err := a.store.Flush(c); err != nil {
					a.log.Warn("pending changes still not persisted", logx.Err(err))
				}
			}
		}
	})
	a.sup.Go0("conversation.sweep", func(c context.Context) {
		t := time.NewTicker(sweepEvery)
		defer t.Stop()
		for {
			select {
			case <-c.Done():
				return
			case <-t.C:
				if n := a.conv.Sweep(); n > 0 {
					a.log.Debug("expired dialogs dropped", logx.Int("count", n))
				}
			}
		}
	})
	a.sup.Go0("systemd.watchdog", func(c context.Context) {
		healthy := func() bool { return a.sup.Err() == nil && a.sched.Running() }
		if err := systemd.RunWatchdog(c, healthy); err != nil {
			a.log.Warn("systemd watchdog stopped", logx.Err(err))
		}
	})

	a.startConfigReload()
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	if sent, err := systemd.Ready(); err != nil {
		a.log.Warn("systemd notify failed", logx.Err(err))
	} else if sent {
		_, _ = systemd.Status(fmt.Sprintf("%d reminders scheduled", a.report.Jobs))
	}
	a.log.Info("app started",
		logx.Int("users", a.report.Users),
		logx.Int("reminders", a.report.Reminders),
		logx.Int("jobs", a.report.Jobs),
	)
	return nil
}

func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-c.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// Coalesce bursts; only the newest config matters.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})
}

// applyConfig applies the runtime-tunable sections. Everything else is
// logged as waiting for a restart.
func (a *App) applyConfig(old, next *config.Config) {
	sections, attrs := config.SummarizeChange(old, next)
	if len(sections) == 0 {
		a.log.Info("config reloaded (no changes)")
		return
	}
	a.logs.Apply(mapLogging(next))
	a.notif.Apply(mapNotifier(next))
	a.sched.Apply(scheduler.Config{Timezone: next.Scheduler.Timezone})

	if pending := config.RestartRequired(old, next); len(pending) > 0 {
		a.log.Warn("config changes need a restart", logx.String("sections", strings.Join(pending, ",")))
	}
	fields := append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)
	a.log.Info("config reloaded", fields...)
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil || !a.stopped.CompareAndSwap(false, true) {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	if _, err := systemd.Stopping(); err != nil {
		a.log.Debug("systemd notify failed", logx.Err(err))
	}

	a.sup.Cancel()

	snap := a.sched.Snapshot()
	fields := []logx.Field{logx.Int("jobs", len(snap.Jobs))}
	if e := snap.Engine; e != nil {
		fields = append(fields,
			logx.Uint64("completed", e.Completed),
			logx.Uint64("failed", e.Failed),
			logx.Uint64("dropped", e.Dropped),
		)
	}
	a.log.Info("reminder engine summary", fields...)

	s := stepper{ctx: ctx, log: a.log}
	s.step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	s.step("scheduler", 2*time.Second, func(c context.Context) error { a.sched.Stop(c); return nil })
	s.step("taskengine", 2*time.Second, func(c context.Context) error { a.engine.Stop(c); return nil })
	s.step("supervisor", 4*time.Second, func(c context.Context) error { return a.sup.Wait(c) })
	s.step("storage.flush", 2*time.Second, func(c context.Context) error { return a.store.Flush(c) })
	s.step("storage.close", time.Second, func(context.Context) error { return a.store.Close() })

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
