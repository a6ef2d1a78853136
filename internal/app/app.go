package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"postpilot/internal/config"
	"postpilot/internal/eventbus"
	"postpilot/internal/httpapi"
	"postpilot/internal/notify"
	"postpilot/internal/push"
	"postpilot/internal/sched"
	"postpilot/internal/store"
	"postpilot/pkg/logx"
)

// App wires the subsystem together and owns start/stop ordering.
type App struct {
	cfgMgr *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	store    *store.Store
	bus      eventbus.Bus
	registry *push.Registry
	disp     *notify.Dispatcher
	sched    *sched.Service
	http     *httpapi.Server

	cancelBG context.CancelFunc
	bgWG     sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	a := &App{cfgMgr: mgr, logSvc: logSvc, log: log, bus: eventbus.New()}
	if err := a.build(cfg); err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) error {
	busyTimeout, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
	if err != nil {
		return err
	}
	st, err := store.Open(store.Config{Path: cfg.Storage.Path, BusyTimeout: busyTimeout},
		a.log.With(logx.String("comp", "store")))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.store = st

	pushWriteTimeout, err := config.ParseDurationField("notify.push.write_timeout", cfg.Notify.Push.WriteTimeout)
	if err != nil {
		return err
	}
	a.registry = push.NewRegistry(pushWriteTimeout, a.log.With(logx.String("comp", "push")))

	senders, err := a.buildSenders(cfg)
	if err != nil {
		return err
	}

	notifyCfg, err := notifyConfig(cfg)
	if err != nil {
		return err
	}
	a.disp = notify.NewDispatcher(notifyCfg, st, senders, a.log.With(logx.String("comp", "notify")))

	schedCfg, err := schedConfig(cfg)
	if err != nil {
		return err
	}
	a.sched = sched.New(schedCfg, st, a.disp, a.bus, a.log.With(logx.String("comp", "sched")))

	httpCfg, err := httpConfig(cfg)
	if err != nil {
		return err
	}
	a.http = httpapi.NewServer(httpCfg, a.sched, a.registry, a.log.With(logx.String("comp", "http")))
	return nil
}

// buildSenders resolves the channel kind -> sender table once, at startup.
func (a *App) buildSenders(cfg *config.Config) (map[notify.Kind]notify.Sender, error) {
	senders := map[notify.Kind]notify.Sender{}
	log := a.log.With(logx.String("comp", "notify"))

	if cfg.Notify.Push.Enabled {
		senders[notify.KindPush] = push.NewSender(a.registry, log)
	}
	if cfg.Notify.Email.Enabled {
		senders[notify.KindEmail] = notify.NewEmailSender(notify.EmailConfig{
			SMTPAddr: cfg.Notify.Email.SMTPAddr,
			From:     cfg.Notify.Email.From,
		}, log)
	}
	if cfg.Notify.SMS.Enabled {
		senders[notify.KindSMS] = notify.NewSMSSender(log)
	}
	if cfg.Notify.Telegram.Enabled {
		tg, err := notify.NewTelegramSender(cfg.Notify.Telegram.Token, log)
		if err != nil {
			return nil, fmt.Errorf("telegram channel: %w", err)
		}
		senders[notify.KindTelegram] = tg
	}
	return senders, nil
}

// Start brings the subsystem up. Recovery runs to completion before the HTTP
// surface exists, so reconciliation never races live requests.
func (a *App) Start(ctx context.Context) error {
	if err := a.sched.Recover(ctx); err != nil {
		return fmt.Errorf("startup recovery: %w", err)
	}
	a.sched.Start(ctx)

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancelBG = cancel

	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		_ = a.cfgMgr.Watch(bgCtx)
	}()

	updates := a.cfgMgr.Subscribe(1)
	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		defer a.cfgMgr.Unsubscribe(updates)
		for {
			select {
			case <-bgCtx.Done():
				return
			case cfg, ok := <-updates:
				if !ok {
					return
				}
				a.applyConfig(cfg)
			}
		}
	}()

	a.watchBus(bgCtx)

	if err := a.http.Start(ctx); err != nil {
		cancel()
		return err
	}
	return nil
}

// applyConfig pushes reloadable settings into running services.
// Addresses, storage paths, and the sender table stay fixed until restart.
func (a *App) applyConfig(cfg *config.Config) {
	a.logSvc.Apply(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	if nc, err := notifyConfig(cfg); err == nil {
		a.disp.Apply(nc)
	} else {
		a.log.Warn("notify config not applied", logx.Err(err))
	}
	if sc, err := schedConfig(cfg); err == nil {
		a.sched.Apply(sc)
	} else {
		a.log.Warn("scheduler config not applied", logx.Err(err))
	}
}

// watchBus logs scheduler lifecycle events at debug level.
func (a *App) watchBus(ctx context.Context) {
	events, unsub := a.bus.Subscribe(32)
	a.bgWG.Add(1)
	go func() {
		defer a.bgWG.Done()
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-events:
				if !ok {
					return
				}
				a.log.Debug("event", logx.String("type", e.Type), logx.Any("data", e.Data))
			}
		}
	}()
}

func (a *App) Stop(ctx context.Context) error {
	if a.http != nil {
		a.http.Stop(ctx)
	}
	if a.sched != nil {
		a.sched.Stop(ctx)
	}
	if a.registry != nil {
		a.registry.CloseAll()
	}
	if a.cancelBG != nil {
		a.cancelBG()
	}
	a.bgWG.Wait()
	if a.store != nil {
		_ = a.store.Close()
	}
	return a.logSvc.Close()
}

// ---- config mapping ----

func schedConfig(cfg *config.Config) (sched.Config, error) {
	dispatchTimeout, err := config.ParseDurationField("scheduler.dispatch_timeout", cfg.Scheduler.DispatchTimeout)
	if err != nil {
		return sched.Config{}, err
	}
	auditInterval, err := config.ParseDurationOrDefault("scheduler.audit_interval", cfg.Scheduler.AuditInterval, 5*time.Minute)
	if err != nil {
		return sched.Config{}, err
	}
	return sched.Config{DispatchTimeout: dispatchTimeout, AuditInterval: auditInterval}, nil
}

func notifyConfig(cfg *config.Config) (notify.Config, error) {
	sendTimeout, err := config.ParseDurationField("notify.send_timeout", cfg.Notify.SendTimeout)
	if err != nil {
		return notify.Config{}, err
	}
	return notify.Config{RatePerSec: cfg.Notify.RatePerSec, SendTimeout: sendTimeout}, nil
}

func httpConfig(cfg *config.Config) (httpapi.Config, error) {
	readTimeout, err := config.ParseDurationField("http.read_timeout", cfg.HTTP.ReadTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	writeTimeout, err := config.ParseDurationField("http.write_timeout", cfg.HTTP.WriteTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	idleTimeout, err := config.ParseDurationField("http.idle_timeout", cfg.HTTP.IdleTimeout)
	if err != nil {
		return httpapi.Config{}, err
	}
	return httpapi.Config{
		Addr:         cfg.HTTP.Addr,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}, nil
}
