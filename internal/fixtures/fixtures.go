// Package fixtures builds synthetic camera frames for tests.
package fixtures

import (
	"image"
	"image/color"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

// ErrInvalidSize is returned for frames without area.
var ErrInvalidSize = errors.New("frame size must be positive")

// Frame returns a w x h BGR frame filled with c. The caller closes it.
func Frame(w, h int, c color.RGBA) (*gocv.Mat, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "frame %dx%d", w, h)
	}
	mat := gocv.NewMatWithSizeFromScalar(
		gocv.NewScalar(float64(c.B), float64(c.G), float64(c.R), 0),
		h, w, gocv.MatTypeCV8UC3,
	)
	return &mat, nil
}

// MarkedFrame returns a black frame with a white square centred on (x, y),
// useful for checking that output is mirrored.
func MarkedFrame(w, h, x, y int) (*gocv.Mat, error) {
	mat, err := Frame(w, h, color.RGBA{})
	if err != nil {
		return nil, err
	}
	gocv.Rectangle(mat, image.Rect(x-5, y-5, x+5, y+5), color.RGBA{R: 255, G: 255, B: 255, A: 255}, -1)
	return mat, nil
}

// Sequence returns n frames whose brightness steps from dark to light.
func Sequence(n, w, h int) ([]*gocv.Mat, error) {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		v := uint8(0)
		if n > 1 {
			v = uint8(i * 255 / (n - 1))
		}
		frame, err := Frame(w, h, color.RGBA{R: v, G: v, B: v, A: 255})
		if err != nil {
			// Clean up already built frames
			Close(frames)
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// Close releases every frame.
func Close(frames []*gocv.Mat) {
	for _, f := range frames {
		f.Close()
	}
}
