package feed

import (
	"os"

	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"YoloFeedServer/logger"
	"YoloFeedServer/monitor"
)

// buildSlice expands one raw slice of (path, label) pairs into parallel
// image/label-vector containers. Images come back as flattened RGB float32
// pixels in [0,1], all sized size x size; size is the multi-scaled input
// resolution currently in effect. Unreadable files are skipped and counted,
// never fatal. Augmented variants whose transformed box leaves the original
// image bounds are discarded one at a time.
func (f *Flow) buildSlice(paths []string, labels []Label) (imgs [][]float32, vecs [][]float32, size int) {
	size = f.cfg.InputSize
	if f.cfg.Augment {
		size = int(float32(f.cfg.InputSize) * f.scale)
	}

	for k, path := range paths {
		label := labels[k]
		if _, err := os.Stat(path); err != nil {
			logger.Log().Warn("image not found, skipping sample", zap.String("path", path))
			monitor.ImagesMissingTotal.Inc()
			continue
		}
		raw := gocv.IMRead(path, gocv.IMReadColor)
		if raw.Empty() {
			raw.Close()
			logger.Log().Warn("image unreadable, skipping sample", zap.String("path", path))
			monitor.ImagesMissingTotal.Inc()
			continue
		}
		origW := float32(raw.Cols())
		origH := float32(raw.Rows())

		rgb := gocv.NewMat()
		gocv.CvtColor(raw, &rgb, gocv.ColorBGRToRGB)
		raw.Close()

		// Canonical resize first, then the multi-scale resize, so base
		// and augmented samples in one slice share the same shape.
		resized := resizeTo(rgb, f.cfg.InputSize)
		rgb.Close()
		if f.cfg.Augment && size != f.cfg.InputSize {
			scaled := resizeTo(resized, size)
			resized.Close()
			resized = scaled
		}

		classIdx, ok := f.classIndex[label.Name]
		if !ok {
			resized.Close()
			logger.Log().Warn("unknown class name, skipping sample",
				zap.String("path", path), zap.String("class", label.Name))
			continue
		}
		class := f.encoder.Encode(classIdx)

		pixels, err := matToFloats(resized)
		if err != nil {
			resized.Close()
			logger.Log().Warn("pixel conversion failed, skipping sample",
				zap.String("path", path), zap.Error(err))
			continue
		}
		imgs = append(imgs, pixels)
		vecs = append(vecs, flatLabel(label.Box.ToRelative(origW, origH), class))

		if f.cfg.Augment {
			count := f.plan[label.Name]
			for l := 0; l < count; l++ {
				augImg, augBox, err := f.augmenter.Transform(resized, label.Box.Corners(), int(origW), int(origH))
				if err != nil {
					logger.Log().Warn("augmentation failed", zap.String("path", path), zap.Error(err))
					continue
				}
				if !inBounds(augBox, origW, origH) {
					augImg.Close()
					monitor.AugmentDiscardedTotal.Inc()
					continue
				}
				augPixels, err := matToFloats(augImg)
				augImg.Close()
				if err != nil {
					continue
				}
				b := BoxFromCorners(augBox.P1.X, augBox.P1.Y, augBox.P2.X, augBox.P2.Y)
				imgs = append(imgs, augPixels)
				vecs = append(vecs, flatLabel(b.ToRelative(origW, origH), class))
			}
		}
		resized.Close()
	}
	return imgs, vecs, size
}
