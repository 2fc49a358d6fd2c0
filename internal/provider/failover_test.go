package provider_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/flemzord/agentchat/internal/provider"
	"github.com/flemzord/agentchat/internal/provider/providertest"
)

func failing(err error) *providertest.MockProvider {
	return &providertest.MockProvider{
		CompleteFunc: func(context.Context, provider.CompletionRequest) (provider.CompletionResponse, error) {
			return provider.CompletionResponse{}, err
		},
	}
}

func TestNewFailover_NoBackends(t *testing.T) {
	t.Parallel()
	if _, err := provider.NewFailover(nil); !errors.Is(err, provider.ErrNoProvider) {
		t.Errorf("err = %v, want ErrNoProvider", err)
	}
}

func TestFailover_FirstBackendWins(t *testing.T) {
	t.Parallel()

	primary := providertest.Text("primary")
	secondary := providertest.Text("secondary")
	f, err := provider.NewFailover([]provider.Backend{
		{Name: "a", Provider: primary},
		{Name: "b", Provider: secondary},
	})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := f.Complete(context.Background(), provider.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != provider.TextContent("primary") {
		t.Errorf("content = %#v", resp.Content)
	}
	if secondary.Calls() != 0 {
		t.Errorf("secondary called %d times", secondary.Calls())
	}
}

func TestFailover_RetryableErrorFailsOver(t *testing.T) {
	t.Parallel()

	primary := failing(fmt.Errorf("upstream: %w", provider.ErrProviderDown))
	secondary := providertest.Text("secondary")
	f, _ := provider.NewFailover([]provider.Backend{
		{Name: "a", Provider: primary},
		{Name: "b", Provider: secondary},
	})

	resp, err := f.Complete(context.Background(), provider.CompletionRequest{})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != provider.TextContent("secondary") {
		t.Errorf("content = %#v", resp.Content)
	}

	// The primary is now in cooldown and is skipped.
	if _, err := f.Complete(context.Background(), provider.CompletionRequest{}); err != nil {
		t.Fatal(err)
	}
	if primary.Calls() != 1 {
		t.Errorf("primary calls = %d, want 1", primary.Calls())
	}
}

func TestFailover_NonRetryableStops(t *testing.T) {
	t.Parallel()

	secondary := providertest.Text("secondary")
	f, _ := provider.NewFailover([]provider.Backend{
		{Name: "a", Provider: failing(provider.ErrAuthentication)},
		{Name: "b", Provider: secondary},
	})

	_, err := f.Complete(context.Background(), provider.CompletionRequest{})
	if !errors.Is(err, provider.ErrAuthentication) {
		t.Errorf("err = %v, want ErrAuthentication", err)
	}
	if secondary.Calls() != 0 {
		t.Error("non-retryable error must not fail over")
	}
}

func TestFailover_AllExhausted(t *testing.T) {
	t.Parallel()

	f, _ := provider.NewFailover([]provider.Backend{
		{Name: "a", Provider: failing(provider.ErrRateLimit)},
		{Name: "b", Provider: failing(provider.ErrProviderDown)},
	})

	_, err := f.Complete(context.Background(), provider.CompletionRequest{})
	if !errors.Is(err, provider.ErrAllProviders) {
		t.Errorf("err = %v, want ErrAllProviders", err)
	}
	if !errors.Is(err, provider.ErrProviderDown) {
		t.Errorf("err = %v, want last error wrapped", err)
	}
}

func TestFailover_CancelledContext(t *testing.T) {
	t.Parallel()

	mock := providertest.Text("x")
	f, _ := provider.NewFailover([]provider.Backend{{Name: "a", Provider: mock}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Complete(ctx, provider.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if mock.Calls() != 0 {
		t.Error("backend must not be called with a cancelled context")
	}
}

func TestFailover_ModelName(t *testing.T) {
	t.Parallel()

	mock := providertest.Text("x")
	mock.ModelNameFunc = func() string { return "deepseek-r1:8b" }
	f, _ := provider.NewFailover([]provider.Backend{{Name: "a", Provider: mock}})
	if f.ModelName() != "deepseek-r1:8b" {
		t.Errorf("ModelName() = %q", f.ModelName())
	}
}

func TestFailover_Status(t *testing.T) {
	t.Parallel()

	down := failing(fmt.Errorf("%w: 503", provider.ErrProviderDown))
	f, err := provider.NewFailover([]provider.Backend{
		{Name: "a", Provider: down},
		{Name: "b", Provider: providertest.Text("ok")},
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Complete(context.Background(), provider.CompletionRequest{}); err != nil {
		t.Fatalf("Complete: %v", err)
	}

	st := f.Status()
	if len(st) != 2 {
		t.Fatalf("Status len = %d", len(st))
	}
	if st[0].Name != "a" || st[0].State != "cooldown" || st[0].Failures != 1 || st[0].Available {
		t.Errorf("status[0] = %+v", st[0])
	}
	if st[1].Name != "b" || st[1].State != "healthy" || !st[1].Available || st[1].Model != "mock" {
		t.Errorf("status[1] = %+v", st[1])
	}
}
