package feed

import (
	"github.com/chewxy/math32"

	"YoloFeedServer/iface"
)

// Box is a bounding box in centroid/size form. Coordinates are either
// absolute pixels or, after ToRelative, normalized to [0,1] by the image
// dimensions. W and H may slightly exceed 1 after augmentation; callers
// validate the corner form against the image bounds instead of clamping.
type Box struct {
	XC, YC, W, H float32
}

// BoxFromCorners converts two opposite corner points into centroid/size
// form. Round-trips with Corners within float tolerance.
func BoxFromCorners(x1, y1, x2, y2 float32) Box {
	return Box{
		XC: (x1 + x2) / 2,
		YC: (y1 + y2) / 2,
		W:  math32.Abs(x2 - x1),
		H:  math32.Abs(y2 - y1),
	}
}

// Corners returns the two-corner (opencv style) form, P1 top-left and P2
// bottom-right.
func (b Box) Corners() iface.CornerBox {
	hw := b.W / 2
	hh := b.H / 2
	return iface.CornerBox{
		P1: iface.Position{X: b.XC - hw, Y: b.YC - hh},
		P2: iface.Position{X: b.XC + hw, Y: b.YC + hh},
	}
}

// ToRelative normalizes an absolute-pixel box by the original image
// dimensions.
func (b Box) ToRelative(width, height float32) Box {
	return Box{
		XC: b.XC / width,
		YC: b.YC / height,
		W:  b.W / width,
		H:  b.H / height,
	}
}

// inBounds reports whether both corners lie within [0,width]x[0,height].
func inBounds(c iface.CornerBox, width, height float32) bool {
	for _, p := range []iface.Position{c.P1, c.P2} {
		if p.X < 0 || p.Y < 0 || p.X > width || p.Y > height {
			return false
		}
	}
	return true
}
