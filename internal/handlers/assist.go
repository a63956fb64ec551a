package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"nkelo-gateway/internal/orchestrator"
	"nkelo-gateway/pkg/logging"
)

// AssistHandler serves POST /v1/ai, the gateway's single AI endpoint.
type AssistHandler struct {
	Orchestrator *orchestrator.Orchestrator
}

func NewAssistHandler(o *orchestrator.Orchestrator) *AssistHandler {
	return &AssistHandler{Orchestrator: o}
}

// assistResponse is the shape for transmute/chat/default results.
type assistResponse struct {
	Text   string `json:"text"`
	Cached bool   `json:"cached,omitempty"`
}

// exploreResponse always carries the links array, even when empty.
type exploreResponse struct {
	Text     string              `json:"text"`
	Links    []orchestrator.Link `json:"links"`
	Rewarded bool                `json:"rewarded,omitempty"`
}

// recommendResponse wraps the recommendation; no top-level text.
type recommendResponse struct {
	Recommendation *orchestrator.Recommendation `json:"recommendation"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Assist decodes the request, runs it through the orchestrator and shapes
// the response. This is the single recovery boundary: any pipeline error
// becomes a uniform {error} payload with status 500.
func (h *AssistHandler) Assist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)
	start := time.Now()

	var req orchestrator.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid request", zap.Error(err))
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON"})
		return
	}

	res, err := h.Orchestrator.Handle(ctx, req)
	if err != nil {
		logger.Error("assist pipeline failed",
			zap.String("action", req.Action),
			zap.Error(err),
		)
		h.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	logger.Info("assist completed",
		zap.String("action", req.Action),
		zap.Bool("cached", res.Cached),
		zap.Bool("rewarded", res.Rewarded),
		zap.Duration("total_latency", time.Since(start)),
	)

	switch {
	case res.Recommendation != nil:
		h.writeJSON(w, http.StatusOK, recommendResponse{Recommendation: res.Recommendation})
	case res.Links != nil:
		h.writeJSON(w, http.StatusOK, exploreResponse{
			Text:     res.Text,
			Links:    res.Links,
			Rewarded: res.Rewarded,
		})
	default:
		h.writeJSON(w, http.StatusOK, assistResponse{
			Text:   res.Text,
			Cached: res.Cached,
		})
	}
}

// writeJSON sends JSON responses consistently.
func (h *AssistHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
