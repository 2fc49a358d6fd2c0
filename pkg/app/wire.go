package app

import (
	"context"
	"fmt"
	"slices"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/flemzord/agentchat/internal/agent"
	"github.com/flemzord/agentchat/internal/config"
	"github.com/flemzord/agentchat/internal/core"
	"github.com/flemzord/agentchat/internal/cron"
	"github.com/flemzord/agentchat/internal/gateway"
	"github.com/flemzord/agentchat/internal/provider"
	"github.com/flemzord/agentchat/internal/security"
	"github.com/flemzord/agentchat/internal/session"
	"github.com/flemzord/agentchat/internal/stream"
	"github.com/flemzord/agentchat/internal/telemetry"
	"github.com/flemzord/agentchat/internal/transcript"
)

// rateLimitIdle is how long a chat client's bucket is kept after its last
// request.
const rateLimitIdle = 10 * time.Minute

// chatModule puts the store, the backends and the scheduler into the App
// lifecycle. It starts after the storage modules and before the gateway,
// and stops in the opposite order.
type chatModule struct {
	store     *session.Store
	failover  *provider.Failover
	scheduler *cron.Scheduler
	tracing   telemetry.ShutdownFunc
	cancel    context.CancelFunc
}

func (m *chatModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{ID: "chat"}
}

func (m *chatModule) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.failover.Start(ctx)
	if err := m.scheduler.Start(); err != nil {
		m.failover.Stop()
		cancel()
		return err
	}
	return nil
}

func (m *chatModule) Stop(ctx context.Context) error {
	err := m.scheduler.Stop(ctx)
	m.failover.Stop()
	if m.cancel != nil {
		m.cancel()
	}
	if cerr := m.store.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	if terr := m.tracing(ctx); terr != nil && err == nil {
		err = terr
	}
	return err
}

// retentionPolicy is implemented by archive modules with a purge policy.
type retentionPolicy interface {
	RetentionPolicy() (time.Duration, string)
}

// wire loads the modules and builds the chat runtime between them. Every
// module except the gateway is loaded first; the gateway is loaded last
// so that it starts after, and stops before, the runtime it serves.
func wire(ctx context.Context, rt *Runtime, version string) error {
	cfg, logger, appCtx := rt.Config, rt.Logger, rt.Context

	ids := config.Resolve(cfg)
	gatewayIDs := config.ModuleIDs(cfg, "gateway")
	ids = slices.DeleteFunc(ids, func(id string) bool { return slices.Contains(gatewayIDs, id) })

	if err := rt.App.LoadModules(ids); err != nil {
		return err
	}

	failover, err := buildFailover(rt, cfg)
	if err != nil {
		return err
	}
	rt.Failover = failover

	tp, shutdownTracing, err := telemetry.Setup(ctx, cfg.Telemetry, version)
	if err != nil {
		return err
	}

	metrics, _ := service[*gateway.Metrics](appCtx, gateway.ServiceMetrics)

	factory := agent.NewFactory(failover, cfg.Agent.Config, logger.With("component", "agent"))
	storeOpts := []session.Option{session.WithLogger(logger.With("component", "session"))}
	if metrics != nil {
		storeOpts = append(storeOpts, session.WithObserver(metrics))
	}
	store := session.NewStore(cfg.Sessions.Config, factory, storeOpts...)
	rt.Store = store

	rt.Bridge = stream.NewBridge(store, streamConfig(cfg), bridgeOptions(rt, metrics, tp)...)

	scheduler := cron.NewScheduler(logger.With("component", "cron"))
	if err := scheduler.RegisterJob(&cron.SessionCleanupJob{
		Store:        store,
		MaxIdle:      cfg.Sessions.Timeout,
		Logger:       logger,
		ScheduleExpr: cfg.Sessions.SweepSchedule,
	}); err != nil {
		return err
	}
	if err := registerRetention(rt, scheduler); err != nil {
		return err
	}
	rt.Scheduler = scheduler

	appCtx.RegisterService(gateway.ServiceSessions, store)
	appCtx.RegisterService(gateway.ServiceBridge, rt.Bridge)
	appCtx.RegisterService(gateway.ServiceFailover, failover)
	appCtx.RegisterService(gateway.ServiceScheduler, scheduler)

	rt.App.AppendModule("chat", &chatModule{
		store:     store,
		failover:  failover,
		scheduler: scheduler,
		tracing:   shutdownTracing,
	})

	if err := rt.App.LoadModules(gatewayIDs); err != nil {
		return err
	}

	if limiter, ok := service[*security.RateLimiter](appCtx, gateway.ServiceLimiter); ok && limiter.Enabled() {
		if err := scheduler.RegisterJob(&cron.RateLimitSweepJob{
			Limiter: limiter,
			MaxIdle: rateLimitIdle,
			Logger:  logger,
		}); err != nil {
			return err
		}
	}
	return nil
}

// buildFailover wraps the configured provider modules, in failover order.
func buildFailover(rt *Runtime, cfg *config.Config) (*provider.Failover, error) {
	var backends []provider.Backend
	for _, id := range config.ProviderIDs(cfg) {
		mod, ok := rt.App.Module(id)
		if !ok {
			return nil, fmt.Errorf("backend %s is not loaded", id)
		}
		p, ok := mod.(provider.Provider)
		if !ok {
			return nil, fmt.Errorf("module %s is not a provider", id)
		}
		backends = append(backends, provider.Backend{Name: id, Provider: p, Health: cfg.Agent.Health})
	}
	return provider.NewFailover(backends, provider.WithLogger(rt.Logger.With("component", "failover")))
}

func streamConfig(cfg *config.Config) stream.Config {
	sc := stream.Config{ChunkSize: cfg.Stream.ChunkSize}
	if cfg.Stream.Pacing != nil {
		sc.Pacing = *cfg.Stream.Pacing
	}
	return sc
}

func bridgeOptions(rt *Runtime, metrics *gateway.Metrics, tp trace.TracerProvider) []stream.Option {
	opts := []stream.Option{
		stream.WithLogger(rt.Logger),
		stream.WithTracerProvider(tp),
	}
	if metrics != nil {
		opts = append(opts, stream.WithObserver(metrics))
	}
	if rec, ok := service[transcript.Recorder](rt.Context, gateway.ServiceTranscripts); ok {
		opts = append(opts, stream.WithRecorder(rec))
	}
	return opts
}

// registerRetention schedules archive purging when an archive module sets
// a retention.
func registerRetention(rt *Runtime, scheduler *cron.Scheduler) error {
	purger, ok := service[cron.Purger](rt.Context, gateway.ServiceTranscripts)
	if !ok {
		return nil
	}
	for _, id := range config.ModuleIDs(rt.Config, "transcript") {
		mod, ok := rt.App.Module(id)
		if !ok {
			continue
		}
		policy, ok := mod.(retentionPolicy)
		if !ok {
			continue
		}
		retention, schedule := policy.RetentionPolicy()
		if retention <= 0 {
			return nil
		}
		return scheduler.RegisterJob(&cron.TranscriptRetentionJob{
			Archive:      purger,
			Retention:    retention,
			Logger:       rt.Logger,
			ScheduleExpr: schedule,
		})
	}
	return nil
}

func service[T any](ctx *core.AppContext, name string) (T, bool) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, false
	}
	v, ok := svc.(T)
	return v, ok
}
