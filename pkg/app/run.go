// Package app is the composition root of the agentchat binary: it loads
// configuration, wires the session store, the streaming bridge and the
// backends into the module lifecycle, and runs until a shutdown signal.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/agentchat/internal/config"
	"github.com/flemzord/agentchat/internal/core"
	"github.com/flemzord/agentchat/internal/cron"
	"github.com/flemzord/agentchat/internal/gateway"
	"github.com/flemzord/agentchat/internal/provider"
	"github.com/flemzord/agentchat/internal/security"
	"github.com/flemzord/agentchat/internal/session"
	"github.com/flemzord/agentchat/internal/stream"
)

// RunParams configures the main application loop.
type RunParams struct {
	// ConfigPath is an explicit path to the YAML configuration file.
	// If empty, the search paths are tried and the built-in default is
	// used when none exists.
	ConfigPath string

	// Version, Commit, and Date are injected at build time via ldflags.
	Version string
	Commit  string
	Date    string

	// DataDir overrides data_dir from the configuration.
	DataDir string

	// LogLevel overrides log.level from the configuration.
	LogLevel string

	// LogOutput receives log records. Defaults to os.Stderr.
	LogOutput io.Writer
}

// Runtime is a fully wired application, ready to Start.
type Runtime struct {
	App       *core.App
	Context   *core.AppContext
	Config    *config.Config
	Source    string
	Logger    *slog.Logger
	Store     *session.Store
	Bridge    *stream.Bridge
	Failover  *provider.Failover
	Scheduler *cron.Scheduler

	closers []io.Closer
}

// Build loads the configuration and wires every component without
// starting anything.
func Build(ctx context.Context, params RunParams) (*Runtime, error) {
	cfg, source, err := config.FindAndLoad(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	if params.DataDir != "" {
		cfg.DataDir = params.DataDir
	}
	if params.LogLevel != "" {
		cfg.Log.Level = params.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	redactor := security.NewRedactor()
	addConfigSecrets(redactor, cfg)

	out := params.LogOutput
	if out == nil {
		out = os.Stderr
	}
	logger, err := newLogger(cfg.Log, out, redactor)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	rt := &Runtime{Config: cfg, Source: source, Logger: logger}

	var audit *security.AuditLogger
	if cfg.Log.AuditPath != "" {
		f, err := os.OpenFile(cfg.Log.AuditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening audit log: %w", err)
		}
		rt.closers = append(rt.closers, f)
		audit = security.NewAuditLogger(f, redactor)
	}

	appCtx := core.NewAppContext(logger, cfg.DataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(gateway.ServiceRedactor, redactor)
	appCtx.RegisterService(gateway.ServiceAudit, audit)
	appCtx.RegisterService(gateway.ServiceConfig, configView(cfg))
	appCtx.RegisterService(gateway.ServiceMetrics, gateway.NewMetrics())
	rt.Context = appCtx
	rt.App = core.NewApp(appCtx)

	if err := wire(ctx, rt, params.Version); err != nil {
		rt.Abort()
		return nil, err
	}
	return rt, nil
}

// Start starts every module and logs the startup banner.
func (rt *Runtime) Start() error {
	if err := rt.App.Start(); err != nil {
		rt.close()
		return err
	}
	rt.banner()
	return nil
}

// Stop stops every module in reverse order and releases files.
func (rt *Runtime) Stop() {
	rt.App.Stop()
	rt.close()
}

// Abort releases a runtime that was built but never started.
func (rt *Runtime) Abort() {
	rt.App.Abort()
	rt.close()
}

// ModuleIDs lists the wired modules in start order.
func (rt *Runtime) ModuleIDs() []string {
	return rt.App.ModuleIDs()
}

func (rt *Runtime) close() {
	for _, c := range rt.closers {
		_ = c.Close()
	}
	rt.closers = nil
}

// banner logs where the service listens and which backend it talks to.
func (rt *Runtime) banner() {
	attrs := []any{
		"config", rt.Source,
		"model", rt.Failover.ModelName(),
		"backends", len(rt.Failover.Status()),
	}
	for _, id := range config.ProviderIDs(rt.Config) {
		mod, ok := rt.App.Module(id)
		if !ok {
			continue
		}
		if h, ok := mod.(interface{ BaseURL() string }); ok {
			attrs = append(attrs, "backend_host", h.BaseURL())
			break
		}
	}
	if mod, ok := rt.App.Module("gateway.http"); ok {
		if gw, ok := mod.(*gateway.Gateway); ok {
			gc := gw.Config()
			attrs = append(attrs, "bind", gc.Bind, "cors_origins", strings.Join(gc.CORSOrigins, ","))
		}
	}
	rt.Logger.Info("agentchat ready", attrs...)
}

// Run builds the application, starts it and blocks until SIGINT or
// SIGTERM.
func Run(params RunParams) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := Build(ctx, params)
	if err != nil {
		return err
	}
	if err := rt.Start(); err != nil {
		return err
	}

	<-ctx.Done()
	rt.Logger.Info("shutdown signal received")
	rt.Stop()
	rt.Logger.Info("shutdown complete")
	return nil
}

// newLogger builds the redacting root logger described by cfg.
func newLogger(cfg config.LogConfig, out io.Writer, redactor *security.Redactor) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	var inner slog.Handler
	switch cfg.Format {
	case "json":
		inner = slog.NewJSONHandler(out, opts)
	case "", "text":
		inner = slog.NewTextHandler(out, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return slog.New(security.NewRedactingHandler(inner, redactor)), nil
}

// addConfigSecrets registers every secret-looking module setting as a
// literal so that it is masked wherever it appears in logs.
func addConfigSecrets(r *security.Redactor, cfg *config.Config) {
	ids := make([]string, 0, len(cfg.Modules))
	for id := range cfg.Modules {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		node := cfg.Modules[id]
		walkSecrets(&node, r)
	}
}

func walkSecrets(n *yaml.Node, r *security.Redactor) {
	switch n.Kind {
	case yaml.DocumentNode, yaml.SequenceNode:
		for _, c := range n.Content {
			walkSecrets(c, r)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if val.Kind == yaml.ScalarNode && security.IsSecretKey(key.Value) {
				r.AddLiteral(val.Value)
				continue
			}
			walkSecrets(val, r)
		}
	}
}

// configView renders cfg as a generic tree for the admin config endpoint.
func configView(cfg *config.Config) gateway.ConfigView {
	return func() (map[string]any, error) {
		raw, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, err
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return nil, err
		}
		if tree == nil {
			return nil, errors.New("empty configuration")
		}
		return tree, nil
	}
}
