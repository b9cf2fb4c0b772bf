// Package detector defines the face and hand landmark detector contracts and
// the result types they produce.
package detector

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Face mesh cardinalities. Refined landmarks add ten iris points.
const (
	NumFaceLandmarks        = 468
	NumRefinedFaceLandmarks = 478
)

// Handedness is the model-space hand label. It is not corrected for a
// mirrored display: "Left" is the user's right hand when the video is shown
// mirrored.
type Handedness string

const (
	Left  Handedness = "Left"
	Right Handedness = "Right"
)

// Landmark is a point in the video's native pixel space, before mirroring.
// Z is carried through from the model but unused by the overlay.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// FaceResult is one detected face mesh.
type FaceResult struct {
	Keypoints []Landmark `json:"keypoints"`
	Score     float64    `json:"score"`
}

// HandResult is one detected hand.
type HandResult struct {
	Keypoints  []Landmark `json:"keypoints"`
	Handedness Handedness `json:"handedness"`
	Score      float64    `json:"score"`
}

// Wrist returns the wrist landmark, or false when the result is too short
// to carry one.
func (h *HandResult) Wrist() (Landmark, bool) {
	if h == nil || len(h.Keypoints) <= Wrist {
		return Landmark{}, false
	}
	return h.Keypoints[Wrist], true
}

// HandConnections lists the landmark pairs joined when drawing a hand skeleton.
var HandConnections = [][2]int{
	{Wrist, ThumbCMC}, {ThumbCMC, ThumbMCP}, {ThumbMCP, ThumbIP}, {ThumbIP, ThumbTip},
	{Wrist, IndexMCP}, {IndexMCP, IndexPIP}, {IndexPIP, IndexDIP}, {IndexDIP, IndexTip},
	{IndexMCP, MiddleMCP}, {MiddleMCP, MiddlePIP}, {MiddlePIP, MiddleDIP}, {MiddleDIP, MiddleTip},
	{MiddleMCP, RingMCP}, {RingMCP, RingPIP}, {RingPIP, RingDIP}, {RingDIP, RingTip},
	{RingMCP, PinkyMCP}, {Wrist, PinkyMCP}, {PinkyMCP, PinkyPIP}, {PinkyPIP, PinkyDIP}, {PinkyDIP, PinkyTip},
}
