package api

import (
	"encoding/json"
	"net/http"
)

// TrackingHandler reads and sets the face and hand tracking toggles.
type TrackingHandler struct {
	pipeline Pipeline
}

func NewTrackingHandler(p Pipeline) *TrackingHandler {
	return &TrackingHandler{pipeline: p}
}

// trackingUpdate leaves a toggle unchanged when its field is omitted.
type trackingUpdate struct {
	FaceTrackingEnabled *bool `json:"faceTrackingEnabled"`
	HandTrackingEnabled *bool `json:"handTrackingEnabled"`
}

func (h *TrackingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, h.state())
	case http.MethodPut:
		h.update(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TrackingHandler) state() TrackingState {
	face, hand := h.pipeline.Tracking()
	return TrackingState{FaceTrackingEnabled: face, HandTrackingEnabled: hand}
}

func (h *TrackingHandler) update(w http.ResponseWriter, r *http.Request) {
	var req trackingUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.FaceTrackingEnabled == nil && req.HandTrackingEnabled == nil {
		writeError(w, http.StatusBadRequest, "no toggle given")
		return
	}

	if req.FaceTrackingEnabled != nil {
		h.pipeline.SetFaceTracking(*req.FaceTrackingEnabled)
	}
	if req.HandTrackingEnabled != nil {
		h.pipeline.SetHandTracking(*req.HandTrackingEnabled)
	}

	writeJSON(w, http.StatusOK, h.state())
}
