package render

import (
	"image"
	"image/color"
	"math"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/geometry"
)

// ErrEmptyFrame is returned when compositing onto a frame with no pixels.
var ErrEmptyFrame = errors.New("frame is empty")

// MatSurface is a gocv-backed Surface. Drawing goes to a BGR overlay and a
// single-channel mask recording which pixels were touched, so the overlay
// can later be composited over the mirrored video. A MatSurface is owned by
// one goroutine at a time.
type MatSurface struct {
	overlay gocv.Mat
	mask    gocv.Mat
	width   int
	height  int
	closed  bool
}

// NewMatSurface returns an empty surface. It has zero size until Resize.
func NewMatSurface() *MatSurface {
	return &MatSurface{
		overlay: gocv.NewMat(),
		mask:    gocv.NewMat(),
	}
}

func (s *MatSurface) Size() (int, int) {
	return s.width, s.height
}

// Resize reallocates the buffers when the frame size changes. The contents
// are undefined afterwards; call Clear.
func (s *MatSurface) Resize(width, height int) {
	if width == s.width && height == s.height {
		return
	}
	s.overlay.Close()
	s.mask.Close()
	if width <= 0 || height <= 0 {
		s.overlay, s.mask = gocv.NewMat(), gocv.NewMat()
		s.width, s.height = 0, 0
		return
	}
	s.overlay = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	s.mask = gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC1)
	s.width, s.height = width, height
}

func (s *MatSurface) Clear() {
	if s.width == 0 || s.height == 0 {
		return
	}
	s.overlay.SetTo(gocv.NewScalar(0, 0, 0, 0))
	s.mask.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

func (s *MatSurface) Circle(center geometry.Point, radius int, c color.RGBA) {
	if s.width == 0 || s.height == 0 {
		return
	}
	pt := toPixel(center)
	gocv.Circle(&s.overlay, pt, radius, c, -1)
	gocv.Circle(&s.mask, pt, radius, color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
}

func (s *MatSurface) Line(from, to geometry.Point, c color.RGBA, thickness int) {
	if s.width == 0 || s.height == 0 {
		return
	}
	a, b := toPixel(from), toPixel(to)
	gocv.Line(&s.overlay, a, b, c, thickness)
	gocv.Line(&s.mask, a, b, color.RGBA{R: 255, G: 255, B: 255, A: 255}, thickness)
}

// Composite mirrors frame horizontally and paints the overlay over it, giving
// the picture the user sees. The caller closes the returned Mat.
func (s *MatSurface) Composite(frame *gocv.Mat) (gocv.Mat, error) {
	if frame == nil || frame.Empty() {
		return gocv.NewMat(), ErrEmptyFrame
	}
	dst := gocv.NewMat()
	gocv.Flip(*frame, &dst, 1)

	if s.width == frame.Cols() && s.height == frame.Rows() && frame.Type() == gocv.MatTypeCV8UC3 {
		s.overlay.CopyToWithMask(&dst, s.mask)
	}
	return dst, nil
}

// EncodeJPEG composites the overlay over frame and encodes the result.
func (s *MatSurface) EncodeJPEG(frame *gocv.Mat) ([]byte, error) {
	composed, err := s.Composite(frame)
	defer composed.Close()
	if err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, composed)
	if err != nil {
		return nil, errors.Wrap(err, "encode frame")
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Close releases the buffers. It is safe to call more than once.
func (s *MatSurface) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.overlay.Close()
	s.mask.Close()
	s.width, s.height = 0, 0
	return nil
}

func toPixel(p geometry.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}
