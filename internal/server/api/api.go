// Package api provides the JSON handlers of the presentation API.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/readiness"
)

// Pipeline is the running application as seen by the API.
type Pipeline interface {
	Readiness() *readiness.Machine
	Controller() *gesture.Controller
	Tracking() (face, hand bool)
	SetFaceTracking(enabled bool)
	SetHandTracking(enabled bool)
	Retry() error
}

type errorResponse struct {
	Error string `json:"error"`
}

// ReadinessView is a readiness snapshot with its derived state and message.
type ReadinessView struct {
	readiness.Snapshot
	State   readiness.State `json:"state"`
	Message string          `json:"message,omitempty"`
}

// NewReadinessView derives the view for snap.
func NewReadinessView(snap readiness.Snapshot) ReadinessView {
	return ReadinessView{Snapshot: snap, State: snap.State(), Message: snap.Message()}
}

// TrackingState is the body of GET and PUT /api/tracking.
type TrackingState struct {
	FaceTrackingEnabled bool `json:"faceTrackingEnabled"`
	HandTrackingEnabled bool `json:"handTrackingEnabled"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
