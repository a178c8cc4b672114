package feed

import (
	"fmt"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"
)

// EncodeGrid rasterizes a batch of flat label vectors into the detection
// grid. Each vector is [xc, yc, w, h, objectness, class...] with xc/yc/w/h
// relative to the image; its box lands in the single cell containing the
// centroid and is replicated identically across every anchor slot of that
// cell. Everything else stays zero.
//
// A centroid whose cell index reaches gridW (resp. gridH) is silently
// dropped, so a relative coordinate of exactly 1.0 produces an all-zero
// label for that sample. Known boundary quirk, kept on purpose: downstream
// loss terms may depend on it.
//
// The returned tensor is shaped [batch, gridH, gridW, anchors*(5+classes)].
func EncodeGrid(labels [][]float32, gridH, gridW, anchors, classes int) (*tensor.Dense, error) {
	depth := 5 + classes
	for i, v := range labels {
		if len(v) != depth {
			return nil, fmt.Errorf("label vector %d has length %d, want %d", i, len(v), depth)
		}
	}
	batch := len(labels)
	data := make([]float32, batch*gridH*gridW*anchors*depth)
	for b, v := range labels {
		r := int(math32.Floor(v[0] * float32(gridW)))
		c := int(math32.Floor(v[1] * float32(gridH)))
		if r >= gridW || c >= gridH {
			continue
		}
		cell := ((b*gridH+c)*gridW + r) * anchors * depth
		for a := 0; a < anchors; a++ {
			copy(data[cell+a*depth:cell+(a+1)*depth], v)
		}
	}
	return tensor.New(
		tensor.WithShape(batch, gridH, gridW, anchors*depth),
		tensor.WithBacking(data),
	), nil
}

// flatLabel assembles one label vector: box coordinates, objectness 1 and
// the class encoding.
func flatLabel(b Box, class []float32) []float32 {
	v := make([]float32, 0, 5+len(class))
	v = append(v, b.XC, b.YC, b.W, b.H, 1)
	return append(v, class...)
}
