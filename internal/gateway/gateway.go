// Package gateway exposes the chat API over HTTP: session management,
// Server-Sent Events and WebSocket chat streams, Prometheus metrics and a
// small authenticated admin surface.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/agentchat/internal/core"
	"github.com/flemzord/agentchat/internal/cron"
	"github.com/flemzord/agentchat/internal/provider"
	"github.com/flemzord/agentchat/internal/security"
	"github.com/flemzord/agentchat/internal/session"
	"github.com/flemzord/agentchat/internal/stream"
	"github.com/flemzord/agentchat/internal/transcript"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Responder starts one chat turn.
type Responder interface {
	Respond(ctx context.Context, sessionID, message string) (<-chan stream.Event, error)
}

// BackendReporter reports model backend health.
type BackendReporter interface {
	Status() []provider.BackendStatus
}

// JobRunner exposes scheduled maintenance jobs.
type JobRunner interface {
	Status() []cron.JobStatus
	RunNow(ctx context.Context, name string) error
}

// ConfigView returns the effective configuration as a generic tree.
type ConfigView func() (map[string]any, error)

// Deps are the collaborators the gateway serves. Only Sessions and Bridge
// are required; the rest degrade to 404 or empty fields when absent.
type Deps struct {
	Sessions    *session.Store
	Bridge      Responder
	Backends    BackendReporter
	Jobs        JobRunner
	Transcripts transcript.Reader
	Search      transcript.Searcher
	Audit       *security.AuditLogger
	Redactor    *security.Redactor
	Config      ConfigView
}

// Gateway is the HTTP gateway module. It is a leaf module: nothing imports it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	metrics   *Metrics
	limiter   *security.RateLimiter
	deps      Deps
	startedAt time.Time
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return err
	}
	g.config.defaults()
	return nil
}

// Provision implements core.Provisioner. Metrics registered beforehand
// under ServiceMetrics are reused so the store and the bridge can observe
// into them. The chat limiter is published for the sweep job.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	if m, ok := lookup[*Metrics](ctx, ServiceMetrics); ok {
		g.metrics = m
	} else {
		g.metrics = NewMetrics()
	}
	g.limiter = security.NewRateLimiter(security.RateLimitConfig{
		PerMinute: g.config.ChatRatePerMin,
		Burst:     g.chatBurst(),
	})

	ctx.RegisterService(ServiceMetrics, g.metrics)
	ctx.RegisterService(ServiceLimiter, g.limiter)
	return nil
}

func (g *Gateway) chatBurst() int {
	if g.config.ChatRatePerMin <= 0 {
		return 0
	}
	if g.config.ChatBurst > 0 {
		return g.config.ChatBurst
	}
	return g.config.ChatRatePerMin
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. It resolves dependencies from the service
// registry and starts the HTTP server.
func (g *Gateway) Start() error {
	if err := g.resolve(); err != nil {
		return err
	}
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:              g.config.Bind,
		Handler:           g.buildRouter(),
		ReadHeaderTimeout: g.config.ReadTimeout,
		ReadTimeout:       g.config.ReadTimeout,
		IdleTimeout:       g.config.IdleTimeout,
		ErrorLog:          slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen failed: %w", err)
	}

	go func() {
		g.logger.Info("gateway listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()
	return nil
}

// resolve binds services registered by the composition root.
func (g *Gateway) resolve() error {
	store, ok := lookup[*session.Store](g.appCtx, ServiceSessions)
	if !ok {
		return fmt.Errorf("gateway: service %q not registered", ServiceSessions)
	}
	bridge, ok := lookup[Responder](g.appCtx, ServiceBridge)
	if !ok {
		return fmt.Errorf("gateway: service %q not registered", ServiceBridge)
	}
	g.deps.Sessions = store
	g.deps.Bridge = bridge

	g.deps.Backends, _ = lookup[BackendReporter](g.appCtx, ServiceFailover)
	g.deps.Jobs, _ = lookup[JobRunner](g.appCtx, ServiceScheduler)
	g.deps.Transcripts, _ = lookup[transcript.Reader](g.appCtx, ServiceTranscripts)
	g.deps.Search, _ = lookup[transcript.Searcher](g.appCtx, ServiceTranscripts)
	g.deps.Audit, _ = lookup[*security.AuditLogger](g.appCtx, ServiceAudit)
	g.deps.Redactor, _ = lookup[*security.Redactor](g.appCtx, ServiceRedactor)
	g.deps.Config, _ = lookup[ConfigView](g.appCtx, ServiceConfig)
	return nil
}

func lookup[T any](ctx *core.AppContext, name string) (T, bool) {
	var zero T
	svc, ok := ctx.Service(name)
	if !ok {
		return zero, false
	}
	v, ok := svc.(T)
	return v, ok
}

// Stop implements core.Stopper. Graceful shutdown with configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}

// Config returns the effective gateway configuration.
func (g *Gateway) Config() Config {
	return g.config
}
