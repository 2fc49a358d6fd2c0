package gateway

import (
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/flemzord/agentchat/internal/agent/agenttest"
	"github.com/flemzord/agentchat/internal/session"
	"github.com/flemzord/agentchat/internal/stream"
)

func TestMetrics_Observers(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.SessionCreated("a")
	m.SessionCreated("b")
	m.SessionRemoved("a", session.RemovedIdle)
	m.TurnCompleted(stream.OutcomeDone, 100*time.Millisecond)
	m.TurnCompleted(stream.OutcomeError, 300*time.Millisecond)
	m.TurnCompleted(stream.OutcomeCanceled, 200*time.Millisecond)

	snap := m.Snapshot()
	if snap.SessionsCreated != 2 || snap.SessionsRemoved != 1 {
		t.Errorf("sessions = %+v", snap)
	}
	if snap.TurnsDone != 1 || snap.TurnsFailed != 1 || snap.TurnsCanceled != 1 {
		t.Errorf("turns = %+v", snap)
	}
	if snap.AvgTurnLatency != 200*time.Millisecond {
		t.Errorf("AvgTurnLatency = %v, want 200ms", snap.AvgTurnLatency)
	}
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	var wg sync.WaitGroup
	for range 100 {
		wg.Go(func() {
			m.SessionCreated("x")
			m.TurnCompleted(stream.OutcomeDone, time.Millisecond)
			_ = m.Snapshot()
		})
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.SessionsCreated != 100 || snap.TurnsDone != 100 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &agenttest.MockBinding{Reply: "ok"})
	id := env.createSession(t)
	resp := env.do(t, http.MethodPost, "/api/chat", `{"session_id":"`+id+`","message":"hi"}`)
	readSSE(t, resp)

	resp = env.do(t, http.MethodGet, "/metrics", "")
	expectStatus(t, resp, http.StatusOK)
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body := string(raw)

	for _, want := range []string{
		"agentchat_sessions_created_total 1",
		"agentchat_sessions_active 1",
		`agentchat_chat_turns_total{outcome="done"} 1`,
		`agentchat_http_requests_total{code="200",method="POST",route="/api/chat"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
