package handlers

import (
	"net/http"

	"github.com/wonny/riskdash/internal/stream"
)

// StreamStatusSource reports the push-stream connection state
type StreamStatusSource interface {
	Status() stream.Status
}

// StreamHandler serves stream connection details
type StreamHandler struct {
	source StreamStatusSource
}

// NewStreamHandler creates a stream handler. source is nil when the
// stream is disabled.
func NewStreamHandler(source StreamStatusSource) *StreamHandler {
	return &StreamHandler{source: source}
}

// GetStatus returns the connection state
// GET /api/stream/status
func (h *StreamHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"state":   "disabled",
			"enabled": false,
		})
		return
	}
	respondJSON(w, http.StatusOK, h.source.Status())
}
