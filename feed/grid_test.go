package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gridVec(xc, yc float32, classes int, classIdx int) []float32 {
	v := make([]float32, 5+classes)
	v[0] = xc
	v[1] = yc
	v[2] = 0.2
	v[3] = 0.3
	v[4] = 1
	v[5+classIdx] = 1
	return v
}

func TestEncodeGridCellAssignment(t *testing.T) {
	const (
		anchors = 5
		classes = 3
		gw, gh  = 13, 13
	)
	depth := 5 + classes
	labels := [][]float32{
		gridVec(0.1, 0.1, classes, 0),           // cell r=1 c=1
		gridVec(0.5, 0.25, classes, 1),          // cell r=6 c=3
		gridVec(0.999999, 0.999999, classes, 2), // last cell, not dropped
		gridVec(1.0, 1.0, classes, 0),           // boundary, dropped
	}
	grid, err := EncodeGrid(labels, gh, gw, anchors, classes)
	require.NoError(t, err)
	assert.Equal(t, []int{4, gh, gw, anchors * depth}, []int(grid.Shape()))

	data := grid.Data().([]float32)
	at := func(b, c, r, a, k int) float32 {
		return data[(((b*gh+c)*gw+r)*anchors+a)*depth+k]
	}

	expect := []struct{ b, r, c int }{{0, 1, 1}, {1, 6, 3}, {2, 12, 12}}
	for _, e := range expect {
		for a := 0; a < anchors; a++ {
			assert.Equal(t, float32(1), at(e.b, e.c, e.r, a, 4),
				"objectness at b=%d cell (%d,%d) anchor %d", e.b, e.r, e.c, a)
			assert.Equal(t, labels[e.b][0], at(e.b, e.c, e.r, a, 0))
			assert.Equal(t, labels[e.b][1], at(e.b, e.c, e.r, a, 1))
		}
	}

	// Every populated sample touches exactly one cell; sample 3 none.
	var sum float64
	for _, v := range data {
		sum += float64(v)
	}
	perVec := 0.1 + 0.1 + 0.2 + 0.3 + 1 + 1
	perVec += 0.5 + 0.25 + 0.2 + 0.3 + 1 + 1
	perVec += 0.999999 + 0.999999 + 0.2 + 0.3 + 1 + 1
	assert.InDelta(t, perVec*float64(anchors), sum, 1e-3)
}

func TestEncodeGridBoundaryDrop(t *testing.T) {
	labels := [][]float32{gridVec(1.0, 0.5, 1, 0)}
	grid, err := EncodeGrid(labels, 13, 13, 2, 1)
	require.NoError(t, err)
	for _, v := range grid.Data().([]float32) {
		assert.Zero(t, v)
	}
}

func TestEncodeGridVectorLengthMismatch(t *testing.T) {
	_, err := EncodeGrid([][]float32{{0.1, 0.1, 0.2, 0.2, 1}}, 13, 13, 5, 3)
	assert.Error(t, err)
}

func TestFlatLabel(t *testing.T) {
	v := flatLabel(Box{XC: 0.1, YC: 0.2, W: 0.3, H: 0.4}, []float32{0, 1, 0})
	assert.Equal(t, []float32{0.1, 0.2, 0.3, 0.4, 1, 0, 1, 0}, v)
}
