package gateway

import (
	"context"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/flemzord/agentchat/internal/agent/agenttest"
	"github.com/flemzord/agentchat/internal/stream"
)

func dialWS(t *testing.T, env *testEnv) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/api/ws"
	conn, resp, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn, ctx
}

// readTurn reads events up to and including the terminal one.
func readTurn(ctx context.Context, t *testing.T, conn *websocket.Conn) []stream.Event {
	t.Helper()
	var events []stream.Event
	for {
		var ev stream.Event
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			t.Fatalf("read: %v", err)
		}
		events = append(events, ev)
		if ev.Terminal() {
			return events
		}
	}
}

func TestWebSocket_Turns(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, &agenttest.MockBinding{Reply: "Hello!"})
	id := env.createSession(t)
	conn, ctx := dialWS(t, env)

	for range 2 {
		if err := wsjson.Write(ctx, conn, chatRequest{SessionID: id, Message: "Hi"}); err != nil {
			t.Fatalf("write: %v", err)
		}
		got := readTurn(ctx, t, conn)
		want := []stream.Event{stream.MessageEvent("Hello!"), stream.DoneEvent()}
		if !slices.Equal(got, want) {
			t.Errorf("events = %+v, want %+v", got, want)
		}
	}

	history, err := env.store.History(id)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 4 {
		t.Errorf("history len = %d, want 4", len(history))
	}
}

func TestWebSocket_SyncErrorsAreEvents(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	conn, ctx := dialWS(t, env)

	if err := wsjson.Write(ctx, conn, chatRequest{SessionID: "nope", Message: "Hi"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := readTurn(ctx, t, conn)
	if len(got) != 1 || got[0] != stream.ErrorEvent("Session not found") {
		t.Errorf("events = %+v", got)
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("{not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	got = readTurn(ctx, t, conn)
	if len(got) != 1 || got[0].Type != stream.EventError {
		t.Errorf("events = %+v", got)
	}
}

func TestOriginPatterns(t *testing.T) {
	t.Parallel()

	got := originPatterns([]string{"http://localhost:3000", "*", "::bad", "https://app.example"})
	want := []string{"localhost:3000", "*", "app.example"}
	if !slices.Equal(got, want) {
		t.Errorf("originPatterns = %v, want %v", got, want)
	}
}
