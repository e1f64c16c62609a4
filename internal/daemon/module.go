package daemon

import (
	"context"

	"github.com/wabridge/wabridge/internal/bus"
	"github.com/wabridge/wabridge/internal/cache"
	"github.com/wabridge/wabridge/internal/client"
	"github.com/wabridge/wabridge/internal/config"
	"github.com/wabridge/wabridge/internal/conn"
	"github.com/wabridge/wabridge/internal/contacts"
	"github.com/wabridge/wabridge/internal/httpapi"
	"github.com/wabridge/wabridge/internal/hub"
	"github.com/wabridge/wabridge/internal/lock"
	"github.com/wabridge/wabridge/internal/logging"
	"github.com/wabridge/wabridge/internal/messages"
	"github.com/wabridge/wabridge/internal/session"
	"github.com/wabridge/wabridge/internal/wa"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Params holds the resolved session configuration passed to the fx module.
type Params struct {
	SessionName string
	ListenAddr  string // optional override for testing; empty = use config
}

// Module returns the fx module for the daemon, composing all providers
// and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideLock,
			provideManager,
			provideNameCache,
			provideAvatarCache,
			provideStatsCache,
			provideResolver,
			provideOrchestrator,
			provideHub,
			provideAPI,
			NewServer,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig() (*config.Config, error) {
	return config.Load(session.ConfigPath())
}

func provideLogger(p Params) (*zap.Logger, error) {
	if err := session.EnsureDir(p.SessionName); err != nil {
		return nil, err
	}
	return logging.New(session.LogPath(p.SessionName), p.SessionName)
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideLock(p Params, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring session lock", zap.String("session", p.SessionName))
	l, err := lock.Acquire(session.Dir(p.SessionName))
	if err != nil {
		return nil, err
	}
	logger.Info("session lock acquired")
	return l, nil
}

// provideManager opens the credential store once and hands the manager a
// factory that builds a fresh adapter over it per (re)connect. Depends
// on the lock so the sqlite file is never opened by two daemons.
func provideManager(p Params, cfg *config.Config, b *bus.Bus, logger *zap.Logger, _ *lock.Lock) (*conn.Manager, error) {
	container, err := wa.NewContainer(context.Background(), session.DBPath(p.SessionName))
	if err != nil {
		return nil, err
	}
	factory := func(ctx context.Context) (client.Session, error) {
		return wa.NewAdapter(ctx, container, cfg.MessageRetention, logger)
	}
	return conn.NewManager(factory, b, logger, 0), nil
}

func provideNameCache() *cache.Store[string, contacts.Info] {
	return cache.New[string, contacts.Info](contacts.IdentityTTL)
}

func provideAvatarCache() *cache.Store[string, string] {
	return cache.New[string, string](contacts.AvatarTTL)
}

func provideStatsCache() *cache.Store[string, httpapi.Stats] {
	return cache.New[string, httpapi.Stats](httpapi.StatsTTL)
}

func provideResolver(names *cache.Store[string, contacts.Info], avatars *cache.Store[string, string],
	cfg *config.Config, logger *zap.Logger) *contacts.Resolver {
	return contacts.NewResolver(names, avatars, cfg.ResolveWorkers, logger)
}

func provideOrchestrator(resolver *contacts.Resolver, logger *zap.Logger) *messages.Orchestrator {
	return messages.NewOrchestrator(resolver, logger)
}

func provideHub(b *bus.Bus, mgr *conn.Manager, logger *zap.Logger) *hub.Hub {
	return hub.New(b, mgr.Snapshot, logger)
}

func provideAPI(mgr *conn.Manager, pages *messages.Orchestrator, resolver *contacts.Resolver,
	avatars *cache.Store[string, string], stats *cache.Store[string, httpapi.Stats],
	h *hub.Hub, logger *zap.Logger) *httpapi.Server {
	return httpapi.NewServer(mgr, pages, resolver, avatars, stats, h, logger)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, mgr *conn.Manager, h *hub.Hub, logger *zap.Logger) {
	var cancelPush context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			pushCtx, cancel := context.WithCancel(context.Background())
			cancelPush = cancel
			go h.Run(pushCtx)

			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("HTTP server error", zap.Error(err))
				}
			}()

			// A failed first connect is not fatal: the API keeps serving
			// status and auth endpoints while the operator intervenes.
			if err := mgr.Initialize(context.Background()); err != nil {
				logger.Error("session initialization failed", zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			mgr.Shutdown()
			srv.Stop(ctx)
			if cancelPush != nil {
				cancelPush()
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
