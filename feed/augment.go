package feed

import (
	"image"
	"math/rand"
	"sync"

	"gocv.io/x/gocv"

	"YoloFeedServer/iface"
)

// matToFloats flattens an 8-bit RGB Mat into a float32 slice normalized to
// [0,1], row-major HWC order. The result does not alias Mat memory.
func matToFloats(img gocv.Mat) ([]float32, error) {
	f := gocv.NewMat()
	defer f.Close()
	img.ConvertToWithParams(&f, gocv.MatTypeCV32FC3, 1.0/255.0, 0)
	data, err := f.DataPtrFloat32()
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// resizeTo returns a new Mat resized to size x size.
func resizeTo(img gocv.Mat, size int) gocv.Mat {
	dst := gocv.NewMat()
	gocv.Resize(img, &dst, image.Pt(size, size), 0, 0, gocv.InterpolationLinear)
	return dst
}

// RandomAffine is the default Augmenter: a random rotation, scale jitter,
// shift and optional horizontal flip. The pixel warp is applied to the
// already resized training image; the box corners are transformed with the
// same parameters in the original image coordinate frame so the caller can
// validate them against the original bounds.
type RandomAffine struct {
	MaxRotate float64 // degrees, symmetric around 0
	MaxShift  float64 // fraction of image size
	MaxScale  float64 // scale jitter, symmetric around 1.0
	Flip      bool

	mu  sync.Mutex
	rng *rand.Rand
}

func NewRandomAffine(seed int64) *RandomAffine {
	return &RandomAffine{
		MaxRotate: 10,
		MaxShift:  0.1,
		MaxScale:  0.1,
		Flip:      true,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

type affineParams struct {
	angle  float64
	scale  float64
	tx, ty float64 // fractions of image size
	flip   bool
}

func (a *RandomAffine) roll() affineParams {
	a.mu.Lock()
	defer a.mu.Unlock()
	return affineParams{
		angle: (a.rng.Float64()*2 - 1) * a.MaxRotate,
		scale: 1 + (a.rng.Float64()*2-1)*a.MaxScale,
		tx:    (a.rng.Float64()*2 - 1) * a.MaxShift,
		ty:    (a.rng.Float64()*2 - 1) * a.MaxShift,
		flip:  a.Flip && a.rng.Intn(2) == 1,
	}
}

func (a *RandomAffine) Transform(img gocv.Mat, box iface.CornerBox, origW, origH int) (gocv.Mat, iface.CornerBox, error) {
	p := a.roll()

	w := img.Cols()
	h := img.Rows()
	m := gocv.GetRotationMatrix2D(image.Pt(w/2, h/2), p.angle, p.scale)
	m.SetDoubleAt(0, 2, m.GetDoubleAt(0, 2)+p.tx*float64(w))
	m.SetDoubleAt(1, 2, m.GetDoubleAt(1, 2)+p.ty*float64(h))

	warped := gocv.NewMat()
	gocv.WarpAffine(img, &warped, m, image.Pt(w, h))
	m.Close()
	if p.flip {
		flipped := gocv.NewMat()
		gocv.Flip(warped, &flipped, 1)
		warped.Close()
		warped = flipped
	}

	// Same parameters applied to the box in original coordinates.
	bm := gocv.GetRotationMatrix2D(image.Pt(origW/2, origH/2), p.angle, p.scale)
	defer bm.Close()
	ow := float64(origW)
	oh := float64(origH)
	apply := func(pt iface.Position) iface.Position {
		x := bm.GetDoubleAt(0, 0)*float64(pt.X) + bm.GetDoubleAt(0, 1)*float64(pt.Y) + bm.GetDoubleAt(0, 2) + p.tx*ow
		y := bm.GetDoubleAt(1, 0)*float64(pt.X) + bm.GetDoubleAt(1, 1)*float64(pt.Y) + bm.GetDoubleAt(1, 2) + p.ty*oh
		if p.flip {
			x = ow - x
		}
		return iface.Position{X: float32(x), Y: float32(y)}
	}
	out := iface.CornerBox{P1: apply(box.P1), P2: apply(box.P2)}
	return warped, out, nil
}
