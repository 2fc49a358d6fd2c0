package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/flemzord/agentchat/internal/session"
	"github.com/flemzord/agentchat/internal/stream"
)

// handleWebSocket serves chat over a WebSocket. Each text frame
// {"session_id","message"} starts one turn; its events are sent back as
// JSON text frames. Turns on one connection run one at a time.
func (g *Gateway) handleWebSocket() http.HandlerFunc {
	origins := originPatterns(g.config.CORSOrigins)
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: origins})
		if err != nil {
			g.logger.Warn("websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()
		conn.SetReadLimit(g.config.MaxBodyBytes)

		ctx := r.Context()
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if ctx.Err() == nil {
						g.logger.Debug("websocket read ended", "error", err)
					}
				}
				return
			}

			req, err := parseChatRequest(data)
			if err != nil {
				if !g.sendWS(ctx, conn, stream.ErrorEvent(badRequestMessage(err))) {
					return
				}
				continue
			}
			if !g.allowChat(r, req.SessionID) {
				if !g.sendWS(ctx, conn, stream.ErrorEvent("Rate limit exceeded")) {
					return
				}
				continue
			}
			if !g.wsTurn(ctx, conn, req) {
				return
			}
		}
	}
}

// wsTurn streams one turn. It reports false when the connection is unusable.
func (g *Gateway) wsTurn(ctx context.Context, conn *websocket.Conn, req chatRequest) bool {
	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := g.deps.Bridge.Respond(turnCtx, req.SessionID, req.Message)
	if err != nil {
		return g.sendWS(ctx, conn, stream.ErrorEvent(syncErrorMessage(err)))
	}
	for ev := range events {
		if !g.sendWS(ctx, conn, ev) {
			cancel()
			drain(events)
			return false
		}
	}
	return true
}

func (g *Gateway) sendWS(ctx context.Context, conn *websocket.Conn, ev stream.Event) bool {
	if err := wsjson.Write(ctx, conn, ev); err != nil {
		g.logger.Debug("websocket write failed", "error", err)
		return false
	}
	return true
}

// syncErrorMessage is the error text for failures before a turn starts.
func syncErrorMessage(err error) string {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return "Session not found"
	case errors.Is(err, session.ErrBusy):
		return "Session is busy"
	default:
		return "Internal error"
	}
}

// originPatterns converts CORS origins to websocket host patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
