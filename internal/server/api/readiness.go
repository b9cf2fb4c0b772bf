package api

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ayusman/mudra/internal/logger"
)

// ReadinessHandler serves /api/readiness and /api/readiness/retry.
type ReadinessHandler struct {
	pipeline Pipeline
}

func NewReadinessHandler(p Pipeline) *ReadinessHandler {
	return &ReadinessHandler{pipeline: p}
}

func (h *ReadinessHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/readiness")
	path = strings.Trim(path, "/")

	switch path {
	case "":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, NewReadinessView(h.pipeline.Readiness().Snapshot()))

	case "retry":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.retry(w)

	default:
		http.NotFound(w, r)
	}
}

// retry starts a full re-initialization and returns at once; progress is
// visible through GET /api/readiness and the websocket.
func (h *ReadinessHandler) retry(w http.ResponseWriter) {
	if err := h.pipeline.Retry(); err != nil {
		logger.Logger.Warnw("Retry rejected", "error", err)
		writeError(w, http.StatusConflict, errors.UnwrapAll(err).Error())
		return
	}
	writeJSON(w, http.StatusAccepted, NewReadinessView(h.pipeline.Readiness().Snapshot()))
}
