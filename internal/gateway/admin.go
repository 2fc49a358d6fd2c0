package gateway

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flemzord/agentchat/internal/cron"
	"github.com/flemzord/agentchat/internal/transcript"
)

const (
	defaultTranscriptLimit = 50
	maxTranscriptLimit     = 500
)

// queryLimit parses ?limit=, clamped to [1, maxTranscriptLimit].
func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return defaultTranscriptLimit
	}
	return min(n, maxTranscriptLimit)
}

func exchangesOrEmpty(xs []transcript.Exchange) []transcript.Exchange {
	if xs == nil {
		return []transcript.Exchange{}
	}
	return xs
}

// handleTranscript returns archived exchanges of one session, oldest first.
// Archived exchanges outlive the session itself.
func (g *Gateway) handleTranscript() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Transcripts == nil {
			writeError(w, http.StatusNotFound, "Transcript archive disabled")
			return
		}
		id := chi.URLParam(r, "id")
		xs, err := g.deps.Transcripts.Exchanges(r.Context(), id, queryLimit(r))
		if err != nil {
			g.logger.Error("transcript read failed", "session", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to read transcript")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exchanges": exchangesOrEmpty(xs)})
	}
}

// handleSearchTranscripts runs a full-text query over archived exchanges.
func (g *Gateway) handleSearchTranscripts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Search == nil {
			writeError(w, http.StatusNotFound, "Transcript archive disabled")
			return
		}
		q := r.URL.Query().Get("q")
		if q == "" {
			writeError(w, http.StatusBadRequest, "q is required")
			return
		}
		xs, err := g.deps.Search.Search(r.Context(), q, queryLimit(r))
		if err != nil {
			g.logger.Warn("transcript search failed", "error", err)
			writeError(w, http.StatusBadRequest, "Invalid search query")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"exchanges": exchangesOrEmpty(xs)})
	}
}

func (g *Gateway) handleListJobs() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jobs := []cron.JobStatus{}
		if g.deps.Jobs != nil {
			jobs = g.deps.Jobs.Status()
		}
		writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
	}
}

// handleRunJob runs a maintenance job synchronously.
func (g *Gateway) handleRunJob() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.deps.Jobs == nil {
			writeError(w, http.StatusNotFound, "Scheduler disabled")
			return
		}
		name := chi.URLParam(r, "name")
		err := g.deps.Jobs.RunNow(r.Context(), name)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "job": name})
		case errors.Is(err, cron.ErrUnknownJob):
			writeError(w, http.StatusNotFound, "Unknown job")
		case errors.Is(err, cron.ErrJobRunning):
			writeError(w, http.StatusConflict, "Job already running")
		default:
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "Job failed",
				"cause": g.redact(err.Error()),
			})
		}
	}
}

// handleGetConfig returns the effective config with secrets redacted.
func (g *Gateway) handleGetConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.deps.Config == nil || g.deps.Redactor == nil {
			writeError(w, http.StatusServiceUnavailable, "Config not available")
			return
		}
		tree, err := g.deps.Config()
		if err != nil {
			g.logger.Error("config view failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Failed to read config")
			return
		}
		g.deps.Redactor.RedactMap(tree)
		writeJSON(w, http.StatusOK, tree)
	}
}

func (g *Gateway) redact(s string) string {
	if g.deps.Redactor == nil {
		return s
	}
	return g.deps.Redactor.Redact(s)
}
