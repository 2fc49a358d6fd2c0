package gateway

import (
	"context"
	"net/http"
	"testing"

	"github.com/flemzord/agentchat/internal/agent"
	"github.com/flemzord/agentchat/internal/agent/agenttest"
	"github.com/flemzord/agentchat/internal/provider"
	"github.com/flemzord/agentchat/internal/session"
)

func TestHealth(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/api/health", "")
	expectStatus(t, resp, http.StatusOK)

	got := decodeBody[HealthResponse](t, resp)
	if got.Status != "healthy" || got.Service != "agentchat-api" {
		t.Errorf("health = %+v", got)
	}
}

func TestSessions_CreateListDelete(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	resp := env.do(t, http.MethodPost, "/api/sessions", "")
	expectStatus(t, resp, http.StatusCreated)
	created := decodeBody[map[string]string](t, resp)
	id := created["session_id"]
	if id == "" {
		t.Fatal("empty session_id")
	}

	resp = env.do(t, http.MethodGet, "/api/sessions", "")
	expectStatus(t, resp, http.StatusOK)
	list := decodeBody[struct {
		Sessions []sessionJSON `json:"sessions"`
	}](t, resp)
	if len(list.Sessions) != 1 || list.Sessions[0].ID != id || list.Sessions[0].MessageCount != 0 {
		t.Fatalf("sessions = %+v", list.Sessions)
	}

	resp = env.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	expectStatus(t, resp, http.StatusOK)
	del := decodeBody[map[string]any](t, resp)
	if del["deleted"] != true || del["message"] != "Session deleted" {
		t.Errorf("delete body = %v", del)
	}

	resp = env.do(t, http.MethodDelete, "/api/sessions/"+id, "")
	expectStatus(t, resp, http.StatusNotFound)
	del = decodeBody[map[string]any](t, resp)
	if del["deleted"] != false || del["error"] != "Session not found" {
		t.Errorf("second delete body = %v", del)
	}
}

func TestSessions_ListEmpty(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	resp := env.do(t, http.MethodGet, "/api/sessions", "")
	expectStatus(t, resp, http.StatusOK)
	got := decodeBody[map[string][]any](t, resp)
	if s, ok := got["sessions"]; !ok || s == nil || len(s) != 0 {
		t.Errorf("sessions = %v, want empty array", got)
	}
}

func TestSessions_CapacityRejected(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil, withSessions(func(c *session.Config) {
		c.MaxSessions = 1
		c.Overflow = session.OverflowReject
	}))
	env.createSession(t)

	resp := env.do(t, http.MethodPost, "/api/sessions", "")
	expectStatus(t, resp, http.StatusServiceUnavailable)
	if got := decodeBody[errorBody](t, resp); got.Error == "" {
		t.Error("expected error message")
	}
}

func TestSessions_HistoryAndClear(t *testing.T) {
	t.Parallel()

	b := &agenttest.MockBinding{InvokeFunc: func(context.Context, string) (agent.Result, error) {
		return agent.Result{Content: provider.TextContent("Hi there"), ToolsUsed: []string{"search"}}, nil
	}}
	env := newTestEnv(t, b)
	id := env.createSession(t)

	resp := env.do(t, http.MethodPost, "/api/chat", `{"session_id":"`+id+`","message":"hello"}`)
	expectStatus(t, resp, http.StatusOK)
	readSSE(t, resp)

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/history", "")
	expectStatus(t, resp, http.StatusOK)
	hist := decodeBody[struct {
		Messages []messageJSON `json:"messages"`
	}](t, resp)
	if len(hist.Messages) != 2 {
		t.Fatalf("messages = %+v, want 2", hist.Messages)
	}
	if hist.Messages[0].Role != session.RoleUser || hist.Messages[0].Content != "hello" {
		t.Errorf("first message = %+v", hist.Messages[0])
	}
	if hist.Messages[1].Role != session.RoleAssistant || hist.Messages[1].Content != "Hi there" {
		t.Errorf("second message = %+v", hist.Messages[1])
	}
	if len(hist.Messages[1].ToolsUsed) != 1 || hist.Messages[1].ToolsUsed[0] != "search" {
		t.Errorf("tools_used = %v", hist.Messages[1].ToolsUsed)
	}

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/history", "")
	expectStatus(t, resp, http.StatusOK)
	raw := decodeBody[struct {
		Messages []map[string]any `json:"messages"`
	}](t, resp)
	for i, m := range raw.Messages {
		tools, ok := m["tools_used"].([]any)
		if !ok {
			t.Errorf("message %d tools_used = %#v, want a JSON array", i, m["tools_used"])
			continue
		}
		if i == 0 && len(tools) != 0 {
			t.Errorf("user message tools_used = %v, want []", tools)
		}
	}

	resp = env.do(t, http.MethodPost, "/api/sessions/"+id+"/clear", "")
	expectStatus(t, resp, http.StatusOK)
	if got := decodeBody[map[string]string](t, resp); got["message"] != "History cleared" {
		t.Errorf("clear body = %v", got)
	}

	resp = env.do(t, http.MethodGet, "/api/sessions/"+id+"/history", "")
	expectStatus(t, resp, http.StatusOK)
	hist = decodeBody[struct {
		Messages []messageJSON `json:"messages"`
	}](t, resp)
	if len(hist.Messages) != 0 {
		t.Errorf("messages after clear = %+v", hist.Messages)
	}
	if _, resets, _ := b.Counts(); resets != 1 {
		t.Errorf("agent resets = %d, want 1", resets)
	}
}

func TestSessions_UnknownID(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/sessions/nope/history"},
		{http.MethodPost, "/api/sessions/nope/clear"},
	} {
		resp := env.do(t, tc.method, tc.path, "")
		expectStatus(t, resp, http.StatusNotFound)
		if got := decodeBody[errorBody](t, resp); got.Error != "Session not found" {
			t.Errorf("%s %s error = %q", tc.method, tc.path, got.Error)
		}
	}
}

func TestSessions_ClearWhileBusy(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	started := make(chan struct{})
	b := &agenttest.MockBinding{InvokeFunc: func(ctx context.Context, _ string) (agent.Result, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return agent.Result{Content: provider.TextContent("late")}, nil
	}}
	env := newTestEnv(t, b)
	id := env.createSession(t)

	events, err := env.gw.deps.Bridge.Respond(context.Background(), id, "slow")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	<-started

	resp := env.do(t, http.MethodPost, "/api/sessions/"+id+"/clear", "")
	expectStatus(t, resp, http.StatusConflict)

	close(release)
	drain(events)
}
