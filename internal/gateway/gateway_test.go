package gateway

import (
	"context"
	"net/http"
	"slices"
	"testing"
	"time"

	"github.com/flemzord/agentchat/internal/agent/agenttest"
	"github.com/flemzord/agentchat/internal/core"
	"github.com/flemzord/agentchat/internal/session"
	"github.com/flemzord/agentchat/internal/stream"
)

func TestGateway_ModuleInfo(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	info := g.ModuleInfo()

	if info.ID != "gateway.http" {
		t.Errorf("ID = %q, want %q", info.ID, "gateway.http")
	}
	if _, ok := info.New().(*Gateway); !ok {
		t.Error("New() should return *Gateway")
	}
}

func TestGateway_ConfigureDefaults(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "{}")); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "0.0.0.0:5001" {
		t.Errorf("Bind = %q, want default", g.config.Bind)
	}
	want := []string{"http://localhost:3000", "http://localhost:5173"}
	if !slices.Equal(g.config.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", g.config.CORSOrigins, want)
	}
	if g.config.MaxBodyBytes != 1<<20 {
		t.Errorf("MaxBodyBytes = %d, want 1MiB", g.config.MaxBodyBytes)
	}
	if g.config.ShutdownTimeout != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", g.config.ShutdownTimeout)
	}
}

func TestGateway_ConfigureCustom(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	node := mustYAMLNode(t, `
bind: "127.0.0.1:9090"
cors_origins: "http://a.example, http://b.example ,"
chat_rate_per_min: 30
auth:
  bearer_token: "my-token"
shutdown_timeout: 10s
`)
	if err := g.Configure(node); err != nil {
		t.Fatalf("Configure: %v", err)
	}

	if g.config.Bind != "127.0.0.1:9090" {
		t.Errorf("Bind = %q", g.config.Bind)
	}
	if want := []string{"http://a.example", "http://b.example"}; !slices.Equal(g.config.CORSOrigins, want) {
		t.Errorf("CORSOrigins = %v, want %v", g.config.CORSOrigins, want)
	}
	if g.config.ChatRatePerMin != 30 {
		t.Errorf("ChatRatePerMin = %d", g.config.ChatRatePerMin)
	}
	if g.chatBurst() != 30 {
		t.Errorf("chatBurst = %d, want rate as default burst", g.chatBurst())
	}
	if !g.config.Auth.IsConfigured() {
		t.Error("auth should be configured")
	}
	if g.config.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", g.config.ShutdownTimeout)
	}
}

func TestGateway_ConfigureCORSList(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "cors_origins: [\"*\"]")); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if !slices.Equal(g.config.CORSOrigins, []string{"*"}) {
		t.Errorf("CORSOrigins = %v", g.config.CORSOrigins)
	}
}

func TestGateway_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"defaults", "{}", false},
		{"bad bind", "bind: not-an-address", true},
		{"negative rate", "chat_rate_per_min: -1", true},
		{"half basic auth", "auth: {basic_user: admin}", true},
		{"full basic auth", "auth: {basic_user: admin, basic_pass: secret}", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := &Gateway{}
			if err := g.Configure(mustYAMLNode(t, tt.yaml)); err != nil {
				t.Fatalf("Configure: %v", err)
			}
			err := g.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGateway_ProvisionRegistersServices(t *testing.T) {
	t.Parallel()

	ctx := core.NewAppContext(discardLogger(), t.TempDir())
	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "chat_rate_per_min: 5")); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := g.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	if svc, ok := ctx.Service(ServiceMetrics); !ok || svc.(*Metrics) != g.metrics {
		t.Error("metrics service not registered")
	}
	if _, ok := ctx.Service(ServiceLimiter); !ok {
		t.Error("limiter service not registered")
	}
	if !g.limiter.Enabled() {
		t.Error("limiter should be enabled when chat_rate_per_min > 0")
	}
}

func TestGateway_StartRequiresSessions(t *testing.T) {
	t.Parallel()

	ctx := core.NewAppContext(discardLogger(), t.TempDir())
	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "bind: "+freeAddr(t))); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := g.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := g.Start(); err == nil {
		_ = g.Stop(context.Background())
		t.Fatal("expected Start to fail without a session store")
	}
}

func TestGateway_StartStop(t *testing.T) {
	t.Parallel()

	addr := freeAddr(t)
	ctx := core.NewAppContext(discardLogger(), t.TempDir())
	g := &Gateway{}
	if err := g.Configure(mustYAMLNode(t, "bind: "+addr)); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := g.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}

	store := session.NewStore(session.Config{}, agenttest.Factory(&agenttest.MockBinding{Reply: "hi"}, nil),
		session.WithLogger(discardLogger()))
	ctx.RegisterService(ServiceSessions, store)
	ctx.RegisterService(ServiceBridge, stream.NewBridge(store, stream.Config{}))

	if err := g.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	var resp *http.Response
	var err error
	for range 50 {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+addr+"/api/health", nil)
		resp, err = http.DefaultClient.Do(req)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /api/health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := g.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestGateway_StopWithoutStart(t *testing.T) {
	t.Parallel()

	g := &Gateway{}
	if err := g.Stop(context.Background()); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
