package feed

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestRandomAffineIdentity(t *testing.T) {
	// All jitter ranges zero: the transform must be the identity on the box.
	a := &RandomAffine{rng: rand.New(rand.NewSource(1))}

	img := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC3)
	defer img.Close()
	box := Box{XC: 20, YC: 24, W: 10, H: 12}.Corners()

	out, outBox, err := a.Transform(img, box, 32, 32)
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 64, out.Cols())
	assert.Equal(t, 64, out.Rows())
	assert.InDelta(t, float64(box.P1.X), float64(outBox.P1.X), 1e-4)
	assert.InDelta(t, float64(box.P1.Y), float64(outBox.P1.Y), 1e-4)
	assert.InDelta(t, float64(box.P2.X), float64(outBox.P2.X), 1e-4)
	assert.InDelta(t, float64(box.P2.Y), float64(outBox.P2.Y), 1e-4)
}

func TestRandomAffineFlipPreservesSize(t *testing.T) {
	a := &RandomAffine{Flip: true, rng: rand.New(rand.NewSource(3))}

	img := gocv.NewMatWithSize(64, 64, gocv.MatTypeCV8UC3)
	defer img.Close()
	in := Box{XC: 10, YC: 16, W: 8, H: 6}

	for i := 0; i < 16; i++ {
		out, outBox, err := a.Transform(img, in.Corners(), 32, 32)
		require.NoError(t, err)
		out.Close()

		got := BoxFromCorners(outBox.P1.X, outBox.P1.Y, outBox.P2.X, outBox.P2.Y)
		assert.InDelta(t, float64(in.W), float64(got.W), 1e-4)
		assert.InDelta(t, float64(in.H), float64(got.H), 1e-4)
		// With only flipping enabled the centroid is either untouched or
		// mirrored across the vertical axis of the original frame.
		mirrored := 32 - in.XC
		assert.True(t,
			near(got.XC, in.XC) || near(got.XC, mirrored),
			"centroid x %v is neither %v nor %v", got.XC, in.XC, mirrored)
	}
}

func near(a, b float32) bool {
	d := a - b
	return d < 1e-4 && d > -1e-4
}

func TestRandomAffineOutputSizeMatchesInput(t *testing.T) {
	a := NewRandomAffine(7)
	img := gocv.NewMatWithSize(48, 48, gocv.MatTypeCV8UC3)
	defer img.Close()

	out, _, err := a.Transform(img, Box{XC: 24, YC: 24, W: 10, H: 10}.Corners(), 48, 48)
	require.NoError(t, err)
	defer out.Close()
	assert.Equal(t, 48, out.Cols())
	assert.Equal(t, 48, out.Rows())
	assert.Equal(t, gocv.MatTypeCV8UC3, out.Type())
}
