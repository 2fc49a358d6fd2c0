package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/agentchat/internal/agent/agenttest"
	"github.com/flemzord/agentchat/internal/security"
	"github.com/flemzord/agentchat/internal/session"
	"github.com/flemzord/agentchat/internal/stream"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mustYAMLNode parses a YAML string into a *yaml.Node for Configure().
func mustYAMLNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("yaml.Unmarshal: %v", err)
	}
	if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		return doc.Content[0]
	}
	return &doc
}

// freeAddr returns a loopback address with a free port.
func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return addr
}

// testEnv is a gateway served by httptest over a real store and bridge.
type testEnv struct {
	gw      *Gateway
	srv     *httptest.Server
	store   *session.Store
	binding *agenttest.MockBinding
}

type envOption func(*Config, *Deps, *session.Config)

func withConfig(fn func(*Config)) envOption {
	return func(c *Config, _ *Deps, _ *session.Config) { fn(c) }
}

func withDeps(fn func(*Deps)) envOption {
	return func(_ *Config, d *Deps, _ *session.Config) { fn(d) }
}

func withSessions(fn func(*session.Config)) envOption {
	return func(_ *Config, _ *Deps, s *session.Config) { fn(s) }
}

func newTestEnv(t *testing.T, b *agenttest.MockBinding, opts ...envOption) *testEnv {
	t.Helper()
	if b == nil {
		b = &agenttest.MockBinding{Reply: "Hello!"}
	}

	cfg := Config{}
	deps := Deps{}
	scfg := session.Config{MaxSessions: 10, Timeout: time.Hour}
	for _, opt := range opts {
		opt(&cfg, &deps, &scfg)
	}
	cfg.defaults()

	metrics := NewMetrics()
	store := session.NewStore(scfg, agenttest.Factory(b, nil),
		session.WithLogger(discardLogger()),
		session.WithObserver(metrics),
	)
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	deps.Sessions = store
	if deps.Bridge == nil {
		deps.Bridge = stream.NewBridge(store, stream.Config{ChunkSize: 10},
			stream.WithLogger(discardLogger()),
			stream.WithObserver(metrics),
		)
	}

	g := &Gateway{
		config:    cfg,
		logger:    discardLogger(),
		metrics:   metrics,
		deps:      deps,
		startedAt: time.Now(),
	}
	g.limiter = security.NewRateLimiter(security.RateLimitConfig{
		PerMinute: cfg.ChatRatePerMin,
		Burst:     g.chatBurst(),
	})

	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return &testEnv{gw: g, srv: srv, store: store, binding: b}
}

func (e *testEnv) do(t *testing.T, method, path, body string, header ...string) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	id, err := e.store.Create(context.Background())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return id
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status = %d, want %d (body %q)", resp.StatusCode, want, body)
	}
}
