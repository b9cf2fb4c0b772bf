package detector

import (
	"context"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

// ErrAssetConflict marks a model load that failed because its backing assets
// were already being fetched or installed by an earlier attempt. Loads that
// fail with an error marked this way may be retried once.
var ErrAssetConflict = errors.New("model assets already being provisioned")

// IsAssetConflict reports whether err is marked as an asset conflict.
func IsAssetConflict(err error) bool {
	return err != nil && errors.Is(err, ErrAssetConflict)
}

// MarkAssetConflict tags err so IsAssetConflict reports true for it.
func MarkAssetConflict(err error) error {
	return errors.Mark(err, ErrAssetConflict)
}

// EstimateOptions are passed to every estimate call.
type EstimateOptions struct {
	FlipHorizontal  bool `json:"flipHorizontal"`
	StaticImageMode bool `json:"staticImageMode"`
}

// VideoOptions is what the frame loop passes for a live, unflipped feed.
var VideoOptions = EstimateOptions{FlipHorizontal: false, StaticImageMode: false}

// FaceDetector estimates face meshes in a video frame.
type FaceDetector interface {
	// EstimateFaces returns zero or more faces. Landmarks are in the frame's
	// pixel space.
	EstimateFaces(ctx context.Context, frame *gocv.Mat, opts EstimateOptions) ([]FaceResult, error)

	// Close releases any resources held by the detector.
	Close() error
}

// HandDetector estimates hands in a video frame.
type HandDetector interface {
	// EstimateHands returns zero, one or two hands. Landmarks are in the
	// frame's pixel space.
	EstimateHands(ctx context.Context, frame *gocv.Mat, opts EstimateOptions) ([]HandResult, error)

	// Close releases any resources held by the detector.
	Close() error
}

// FaceFactory loads a face detector.
type FaceFactory func(ctx context.Context, cfg ModelConfig) (FaceDetector, error)

// HandFactory loads a hand detector.
type HandFactory func(ctx context.Context, cfg ModelConfig) (HandDetector, error)

// Model names understood by the landmark service.
const (
	ModelFaceMesh = "MediaPipeFaceMesh"
	ModelHands    = "MediaPipeHands"
)

// ModelConfig describes which model variant to load and where its assets live.
type ModelConfig struct {
	Model           string  `json:"model"`
	Runtime         string  `json:"runtime"`
	SolutionPath    string  `json:"solutionPath"`
	RefineLandmarks bool    `json:"refineLandmarks,omitempty"`
	ModelType       string  `json:"modelType,omitempty"`
	MaxHands        int     `json:"maxHands,omitempty"`
	MinConfidence   float64 `json:"minConfidence,omitempty"`
}

// DefaultFaceConfig returns the face mesh configuration used by mudra.
func DefaultFaceConfig() ModelConfig {
	return ModelConfig{
		Model:           ModelFaceMesh,
		Runtime:         "mediapipe",
		SolutionPath:    "https://cdn.jsdelivr.net/npm/@mediapipe/face_mesh@0.4.1633559619",
		RefineLandmarks: true,
		MinConfidence:   0.5,
	}
}

// DefaultHandConfig returns the hand model configuration used by mudra.
func DefaultHandConfig() ModelConfig {
	return ModelConfig{
		Model:         ModelHands,
		Runtime:       "mediapipe",
		SolutionPath:  "https://cdn.jsdelivr.net/npm/@mediapipe/hands@0.4.1675469240",
		ModelType:     "full",
		MaxHands:      2,
		MinConfidence: 0.5,
	}
}
