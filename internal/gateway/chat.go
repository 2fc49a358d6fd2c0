package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flemzord/agentchat/internal/security"
	"github.com/flemzord/agentchat/internal/stream"
)

// chatRequest is the body of POST /api/chat and of each WebSocket frame.
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

var (
	errMissingSessionID = errors.New("session_id is required")
	errMissingMessage   = errors.New("message is required")
)

func (c chatRequest) validate() error {
	if c.SessionID == "" {
		return errMissingSessionID
	}
	if strings.TrimSpace(c.Message) == "" {
		return errMissingMessage
	}
	return nil
}

// parseChatRequest decodes and validates a chat request payload.
func parseChatRequest(data []byte) (chatRequest, error) {
	var req chatRequest
	if err := security.DecodeJSON(data, &req); err != nil {
		return chatRequest{}, err
	}
	return req, req.validate()
}

// allowChat applies the per-client chat rate limit.
func (g *Gateway) allowChat(r *http.Request, sessionID string) bool {
	if !g.limiter.Enabled() {
		return true
	}
	ip := clientIP(r)
	if err := g.limiter.Allow(ip); err != nil {
		g.deps.Audit.Log(security.AuditEvent{
			Action:    security.AuditRateLimit,
			SessionID: sessionID,
			Remote:    ip,
		})
		return false
	}
	return true
}

// handleChat runs one chat turn and streams its events as Server-Sent
// Events. Errors found before the stream opens are plain JSON responses.
func (g *Gateway) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := security.ReadBody(r.Body, g.config.MaxBodyBytes)
		if err != nil {
			if errors.Is(err, security.ErrBodyTooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
				return
			}
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		req, err := parseChatRequest(body)
		if err != nil {
			writeError(w, http.StatusBadRequest, badRequestMessage(err))
			return
		}
		if !g.allowChat(r, req.SessionID) {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		events, err := g.deps.Bridge.Respond(ctx, req.SessionID, req.Message)
		if err != nil {
			writeSessionError(w, err)
			return
		}

		rc := http.NewResponseController(w)
		// Streams outlive any server-wide write timeout.
		_ = rc.SetWriteDeadline(time.Time{})

		h := w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
		_ = rc.Flush()

		for ev := range events {
			if err := writeEvent(w, ev); err != nil {
				g.logger.Debug("sse client gone", "session", req.SessionID, "error", err)
				cancel()
				drain(events)
				return
			}
			if err := rc.Flush(); err != nil {
				cancel()
				drain(events)
				return
			}
		}
	}
}

// writeEvent frames one event as an SSE data line.
func writeEvent(w io.Writer, ev stream.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}

func badRequestMessage(err error) string {
	switch {
	case errors.Is(err, errMissingSessionID), errors.Is(err, errMissingMessage):
		return err.Error()
	case errors.Is(err, security.ErrJSONTooDeep):
		return "JSON nesting too deep"
	default:
		return "Invalid JSON body"
	}
}

// drain consumes the rest of a canceled turn so its goroutine can exit.
func drain(events <-chan stream.Event) {
	for range events {
	}
}
