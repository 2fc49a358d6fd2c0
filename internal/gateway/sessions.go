package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/agentchat/internal/security"
	"github.com/flemzord/agentchat/internal/session"
)

type sessionJSON struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	MessageCount int       `json:"message_count"`
}

type messageJSON struct {
	Role      session.Role `json:"role"`
	Content   string       `json:"content"`
	Timestamp time.Time    `json:"timestamp"`
	ToolsUsed []string     `json:"tools_used"`
}

func (g *Gateway) handleListSessions() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		infos := g.deps.Sessions.List()
		out := make([]sessionJSON, 0, len(infos))
		for _, info := range infos {
			out = append(out, sessionJSON{
				ID:           info.ID,
				CreatedAt:    info.CreatedAt.UTC(),
				LastActivity: info.LastActivity.UTC(),
				MessageCount: info.MessageCount,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
	}
}

func (g *Gateway) handleCreateSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := g.deps.Sessions.Create(r.Context())
		if err != nil {
			if errors.Is(err, session.ErrCapacity) {
				writeError(w, http.StatusServiceUnavailable, "Session capacity reached")
				return
			}
			g.logger.Error("session create failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to create session")
			return
		}

		g.deps.Audit.Log(security.AuditEvent{
			Action:    security.AuditSessionCreate,
			SessionID: id,
			Remote:    clientIP(r),
		})
		writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
	}
}

func (g *Gateway) handleDeleteSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !g.deps.Sessions.Delete(id) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":   "Session not found",
				"deleted": false,
			})
			return
		}

		g.deps.Audit.Log(security.AuditEvent{
			Action:    security.AuditSessionDelete,
			SessionID: id,
			Remote:    clientIP(r),
		})
		writeJSON(w, http.StatusOK, map[string]any{
			"message": "Session deleted",
			"deleted": true,
		})
	}
}

func (g *Gateway) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		history, err := g.deps.Sessions.History(chi.URLParam(r, "id"))
		if err != nil {
			writeSessionError(w, err)
			return
		}

		out := make([]messageJSON, 0, len(history))
		for _, m := range history {
			tools := m.ToolsUsed
			if tools == nil {
				tools = []string{}
			}
			out = append(out, messageJSON{
				Role:      m.Role,
				Content:   m.Content,
				Timestamp: m.CreatedAt.UTC(),
				ToolsUsed: tools,
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{"messages": out})
	}
}

func (g *Gateway) handleClearHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := g.deps.Sessions.ClearHistory(id); err != nil {
			writeSessionError(w, err)
			return
		}

		g.deps.Audit.Log(security.AuditEvent{
			Action:    security.AuditHistoryClear,
			SessionID: id,
			Remote:    clientIP(r),
		})
		writeJSON(w, http.StatusOK, map[string]string{"message": "History cleared"})
	}
}

// writeSessionError maps session sentinels to HTTP statuses.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, session.ErrBusy):
		writeError(w, http.StatusConflict, "Session is busy")
	case errors.Is(err, session.ErrCapacity):
		writeError(w, http.StatusServiceUnavailable, "Session capacity reached")
	default:
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}
