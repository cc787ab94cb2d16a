// Package daemon composes the bot's components into an fx application.
package daemon

import (
	"context"

	"github.com/matheus3301/wabot/internal/bus"
	"github.com/matheus3301/wabot/internal/config"
	"github.com/matheus3301/wabot/internal/httpd"
	"github.com/matheus3301/wabot/internal/lock"
	"github.com/matheus3301/wabot/internal/logging"
	"github.com/matheus3301/wabot/internal/paths"
	"github.com/matheus3301/wabot/internal/status"
	"github.com/matheus3301/wabot/internal/store"
	"github.com/matheus3301/wabot/internal/tracker"
	"github.com/matheus3301/wabot/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds resolved startup options passed to the fx module.
type Params struct {
	ConfigPath string // optional override; empty = ~/.wabot/config.toml
	ListenAddr string // optional override for testing; empty = config value
}

// Module returns the fx module for the daemon, composing all providers and
// lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideStateMachine,
			provideLock,
			provideStore,
			provideSender,
			provideTracker,
			provideServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	path := p.ConfigPath
	if path == "" {
		path = paths.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if p.ListenAddr != "" {
		cfg.ListenAddr = p.ListenAddr
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger() (*zap.Logger, error) {
	if err := paths.EnsureDirs(); err != nil {
		return nil, err
	}
	return logging.New(paths.LogPath())
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideStateMachine(b *bus.Bus) *status.Machine {
	return status.NewMachine(b)
}

func provideLock(logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring daemon lock", zap.String("dir", paths.BaseDir()))
	l, err := lock.Acquire(paths.BaseDir())
	if err != nil {
		return nil, err
	}
	logger.Info("daemon lock acquired")
	return l, nil
}

func provideStore(logger *zap.Logger) (*store.DB, error) {
	dbPath := paths.DBPath()
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, err
	}
	result, err := db.Migrate()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if result.Changed {
		logger.Info("migrations applied", zap.Uint("version", result.Version))
	} else {
		logger.Info("migrations up to date", zap.Uint("version", result.Version))
	}
	logger.Info("store initialized", zap.String("path", dbPath))
	return db, nil
}

func provideSender(cfg *config.Config, logger *zap.Logger) *wa.Client {
	return wa.NewClient(cfg.GraphBaseURL, cfg.PhoneNumberID, cfg.AccessToken, logger)
}

func provideTracker(db *store.DB, sender *wa.Client, b *bus.Bus, machine *status.Machine, cfg *config.Config, logger *zap.Logger) *tracker.Tracker {
	return tracker.New(db, sender, b, machine, cfg, logger)
}

func provideServer(cfg *config.Config, db *store.DB, tr *tracker.Tracker, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *httpd.Server {
	return httpd.New(cfg, db, tr, machine, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *httpd.Server, lk *lock.Lock, machine *status.Machine, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("http server error", zap.Error(err))
					_ = machine.Transition(status.Error)
				}
			}()
			_ = machine.Transition(status.Ready)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			srv.Stop(ctx)
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
