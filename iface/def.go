package iface

import (
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

type Position struct {
	X, Y float32
}

// CornerBox is the two-corner (opencv style) form of a bounding box.
// P1 and P2 are opposite corners in absolute pixel coordinates.
type CornerBox struct {
	P1 Position
	P2 Position
}

// Batch is one training batch ready for the consumer.
//
// Images is shaped [batch, size, size, 3] with float32 values in [0,1].
// Labels is the detection grid, shaped [batch, gridH, gridW, anchors*(5+classes)].
type Batch struct {
	Images *tensor.Dense
	Labels *tensor.Dense
}

// Augmenter produces a randomly transformed copy of an image together with
// the transformed bounding box. The pixel transform is applied to img (the
// already resized training image); the box transform runs in the original
// image coordinate frame, so the returned corners are validated against
// origW and origH by the caller. The returned Mat is owned by the caller.
type Augmenter interface {
	Transform(img gocv.Mat, box CornerBox, origW, origH int) (gocv.Mat, CornerBox, error)
}

// ClassEncoder turns a class index into a fixed-length encoding vector,
// one-hot or hierarchical.
type ClassEncoder interface {
	Encode(index int) []float32
	NumClasses() int
}

// BatchSource is the pull side of a feed. Next blocks until one batch is
// ready and never returns the same batch to two callers.
type BatchSource interface {
	Next() (Batch, error)
}
