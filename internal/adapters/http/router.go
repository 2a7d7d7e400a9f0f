package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/mkarpov/plc-technical-assistant/internal/core/ports"
	"github.com/mkarpov/plc-technical-assistant/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	queryUC  ports.QueryService
	uploadUC ports.SessionDocumentIngestor
	events   ports.SessionEventQueue
	metrics  *metrics.PipelineMetrics

	opts RouterOptions
}

type RouterOptions struct {
	MaxUploadBytes int64
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(
	queryUC ports.QueryService,
	uploadUC ports.SessionDocumentIngestor,
	events ports.SessionEventQueue,
	m *metrics.PipelineMetrics,
	opts RouterOptions,
) *Router {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 32 << 20
	}
	return &Router{
		queryUC:  queryUC,
		uploadUC: uploadUC,
		events:   events,
		metrics:  m,
		opts:     opts,
	}
}

// Handler builds the full middleware chain. The rate limiter sits outermost so
// rejected requests never touch the pipeline; stop must be called on shutdown
// to terminate its eviction goroutine.
func (rt *Router) Handler() (http.Handler, func()) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/metrics", rt.metricsHandler)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/sessions/", rt.sessionSubtree)

	var handler http.Handler = mux
	handler = accessLogMiddleware(rt.metrics, handler)
	handler = requestIDMiddleware(handler)

	rl, stop := newRateLimiter(rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
	handler = rl.middleware(handler)
	return handler, stop
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) metricsHandler(w http.ResponseWriter, r *http.Request) {
	rt.metrics.Handler().ServeHTTP(w, r)
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
		Query     string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "session_id is required"})
		return
	}

	start := time.Now()
	answer, err := rt.queryUC.Ask(r.Context(), req.SessionID, req.Query)
	if err != nil {
		rt.metrics.ObserveAsk(serviceName, "error", time.Since(start), false, 0, -1)
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}

	outcome := "success"
	if answer.Degraded {
		outcome = "degraded"
	}
	rt.metrics.ObserveAsk(serviceName, outcome, time.Since(start), answer.Degraded, answer.Iterations, len(answer.Sources))

	writeJSON(w, http.StatusOK, answer)
}

// sessionSubtree dispatches /v1/sessions/{id}/documents and
// /v1/sessions/{id}. Ending a session only publishes the lifecycle event; the
// worker owns the actual purge.
func (rt *Router) sessionSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sessions/")
	sessionID, action, _ := strings.Cut(rest, "/")
	if sessionID == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	if action == "" {
		if r.Method != http.MethodDelete {
			writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
			return
		}
		rt.endSession(w, r, sessionID)
		return
	}

	if action != "documents" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	count, err := rt.uploadUC.Upload(
		r.Context(),
		sessionID,
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	rt.metrics.ObserveUploadChunks(serviceName, count)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id":     sessionID,
		"filename":       fileHeader.Filename,
		"chunks_indexed": count,
	})
}

func (rt *Router) endSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := rt.events.PublishSessionEnded(r.Context(), sessionID); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "session end event not accepted"})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id": sessionID,
		"status":     "purge scheduled",
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
