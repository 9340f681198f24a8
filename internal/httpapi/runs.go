package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/prosearch/prosearch/internal/config"
	"github.com/prosearch/prosearch/internal/engine"
	"github.com/prosearch/prosearch/internal/server"
	"github.com/prosearch/prosearch/internal/streaming"
)

// Handler exposes the research API: run submission, cancellation, and the
// SSE/WebSocket event streams.
type Handler struct {
	svc      *server.Service
	streams  *streaming.Manager
	tunables func() config.Tunables
	logger   *zap.Logger
}

// NewHandler wires the API handler. tunables supplies the hot-reloadable
// defaults applied when a request omits the corresponding field.
func NewHandler(svc *server.Service, streams *streaming.Manager, tunables func() config.Tunables, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tunables == nil {
		tunables = func() config.Tunables { return config.Tunables{DefaultEffort: "medium"} }
	}
	return &Handler{svc: svc, streams: streams, tunables: tunables, logger: logger}
}

// RegisterRoutes registers all API routes on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/research", h.handleSubmit)
	mux.HandleFunc("/api/v1/research/cancel", h.handleCancel)
	mux.HandleFunc("/stream/sse", h.handleSSE)
	mux.HandleFunc("/stream/ws", h.handleWS)
	mux.HandleFunc("/health", h.handleHealth)
}

type submitRequest struct {
	Messages []engine.Message `json:"messages"`
	// Effort is low, medium, or high; it sets query count and loop ceiling
	// unless the explicit fields below override it.
	Effort            string `json:"effort,omitempty"`
	InitialQueryCount int    `json:"initial_query_count,omitempty"`
	MaxLoops          int    `json:"max_loops,omitempty"`
	ReasoningModel    string `json:"reasoning_model,omitempty"`
}

type submitResponse struct {
	RunID string `json:"run_id"`
}

// handleSubmit starts a run and returns its ID; progress is consumed via
// the stream endpoints.
// POST /api/v1/research
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json body"}`, http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, `{"error":"messages required"}`, http.StatusBadRequest)
		return
	}
	for _, m := range req.Messages {
		if strings.TrimSpace(m.Content) == "" {
			http.Error(w, `{"error":"empty message content"}`, http.StatusBadRequest)
			return
		}
	}

	effort := req.Effort
	if effort == "" {
		effort = h.tunables().DefaultEffort
	}
	queries, loops := config.Effort(effort)
	if req.InitialQueryCount > 0 {
		queries = req.InitialQueryCount
	}
	if req.MaxLoops > 0 {
		loops = req.MaxLoops
	}

	runID := h.svc.StartRun(engine.RunInput{
		Messages:          req.Messages,
		InitialQueryCount: queries,
		MaxLoops:          loops,
		ReasoningModel:    req.ReasoningModel,
	})
	h.logger.Info("run submitted",
		zap.String("run_id", runID),
		zap.String("effort", effort),
		zap.Int("initial_queries", queries),
		zap.Int("max_loops", loops),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(submitResponse{RunID: runID})
}

// handleCancel aborts a live run.
// POST /api/v1/research/cancel?run_id=<id>
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method not allowed"}`, http.StatusMethodNotAllowed)
		return
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		http.Error(w, `{"error":"run_id required"}`, http.StatusBadRequest)
		return
	}
	if !h.svc.Cancel(runID) {
		http.Error(w, `{"error":"run not found"}`, http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"cancelling"}`))
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":      "ok",
		"active_runs": h.svc.Active(),
	})
}
