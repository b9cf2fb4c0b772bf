package api

import (
	"net/http"
)

// TransformHandler serves the latest gesture transform, or null when no
// control hand was seen in the last processed frame.
type TransformHandler struct {
	pipeline Pipeline
}

func NewTransformHandler(p Pipeline) *TransformHandler {
	return &TransformHandler{pipeline: p}
}

func (h *TransformHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.pipeline.Controller().Latest())
}
