package fixtures

import (
	"image/color"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestFrame(t *testing.T) {
	frame, err := Frame(64, 48, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	require.NoError(t, err)
	defer frame.Close()

	assert.Equal(t, 64, frame.Cols())
	assert.Equal(t, 48, frame.Rows())
	assert.Equal(t, gocv.MatTypeCV8UC3, frame.Type())

	px := frame.GetVecbAt(0, 0)
	assert.Equal(t, uint8(30), px[0], "blue")
	assert.Equal(t, uint8(20), px[1], "green")
	assert.Equal(t, uint8(10), px[2], "red")

	_, err = Frame(0, 48, color.RGBA{})
	assert.True(t, errors.Is(err, ErrInvalidSize))
}

func TestMarkedFrame(t *testing.T) {
	frame, err := MarkedFrame(100, 100, 20, 50)
	require.NoError(t, err)
	defer frame.Close()

	assert.Equal(t, uint8(255), frame.GetVecbAt(50, 20)[0])
	assert.Equal(t, uint8(0), frame.GetVecbAt(50, 80)[0])
}

func TestSequence(t *testing.T) {
	frames, err := Sequence(3, 8, 8)
	require.NoError(t, err)
	defer Close(frames)

	require.Len(t, frames, 3)
	assert.Equal(t, uint8(0), frames[0].GetVecbAt(0, 0)[0])
	assert.Equal(t, uint8(127), frames[1].GetVecbAt(0, 0)[0])
	assert.Equal(t, uint8(255), frames[2].GetVecbAt(0, 0)[0])
}
