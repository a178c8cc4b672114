package feed

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"gorgonia.org/tensor"

	"YoloFeedServer/iface"
	"YoloFeedServer/monitor"
)

// ErrStarved is returned by Next when a full pass over the dataset produced
// no samples at all (every image unreadable). Anything short of that is
// handled by skipping and continuing.
var ErrStarved = errors.New("feed: full epoch produced no samples")

// Flow is the infinite batch generator. Each epoch the dataset is shuffled
// in lock-step, walked in raw slices of BatchSize, expanded with augmented
// variants, reshuffled and re-sliced into exact batches, and encoded into
// detection grids. Trailing samples short of a full batch are dropped.
//
// Next is serialized by an internal mutex: any number of consumer
// goroutines may pull concurrently, each call advances the shared iteration
// exactly once and no two callers see the same batch.
type Flow struct {
	mu  sync.Mutex
	cfg Config

	paths  []string
	labels []Label

	classes    []string
	classIndex map[string]int
	encoder    iface.ClassEncoder
	augmenter  iface.Augmenter
	plan       AugmentPlan

	rng      *rand.Rand
	scale    float32
	sliceIdx int
	slices   int
	pending  []iface.Batch
	dry      int
	batches  uint64
}

// Stats is a point-in-time snapshot of a Flow.
type Stats struct {
	Batches     uint64  `json:"batches"`
	Scale       float32 `json:"scale"`
	DatasetSize int     `json:"datasetSize"`
	Slices      int     `json:"slices"`
	Classes     int     `json:"classes"`
	Augment     bool    `json:"augment"`
	BatchSize   int     `json:"batchSize"`
}

// NewFlow validates the configuration and builds a generator over the
// index-aligned paths/labels pair. classes is the class-name list from the
// categories source, read once. encoder defaults to one-hot over classes;
// augmenter is required only when cfg.Augment is set. The augmentation plan
// is computed here, once, and stays fixed across epochs (call RefreshPlan
// to recompute explicitly).
func NewFlow(cfg Config, paths []string, labels []Label, classes []string,
	encoder iface.ClassEncoder, augmenter iface.Augmenter, seed int64) (*Flow, error) {

	if len(paths) != len(labels) {
		return nil, fmt.Errorf("feed: %d paths but %d labels, must be index-aligned with one label per image", len(paths), len(labels))
	}
	if len(paths) == 0 {
		return nil, errors.New("feed: empty dataset")
	}
	if len(classes) == 0 {
		return nil, errors.New("feed: empty class list")
	}
	if err := cfg.validate(len(paths)); err != nil {
		return nil, err
	}
	if cfg.Augment && augmenter == nil {
		return nil, errors.New("feed: Augment enabled but no augmenter supplied")
	}
	if encoder == nil {
		encoder = NewOneHotEncoder(len(classes))
	}

	f := &Flow{
		cfg:        cfg,
		paths:      append([]string(nil), paths...),
		labels:     append([]Label(nil), labels...),
		classes:    classes,
		classIndex: make(map[string]int, len(classes)),
		encoder:    encoder,
		augmenter:  augmenter,
		rng:        rand.New(rand.NewSource(seed)),
		scale:      1,
		slices:     len(paths) / cfg.BatchSize,
		sliceIdx:   len(paths) / cfg.BatchSize, // force an epoch shuffle on first advance
	}
	for i, name := range classes {
		f.classIndex[name] = i
	}
	if cfg.Augment {
		f.plan = CalcAugmentPlan(f.labels, cfg.ScalingFactor)
	}
	return f, nil
}

// Next yields the next (image batch, label grid) pair. It blocks while the
// underlying slice is loaded and encoded, and runs entirely on the calling
// goroutine. Safe for concurrent use.
func (f *Flow) Next() (iface.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.pending) == 0 {
		if err := f.advance(); err != nil {
			return iface.Batch{}, err
		}
	}
	b := f.pending[0]
	f.pending = f.pending[1:]
	f.batches++
	monitor.BatchesTotal.Inc()
	return b, nil
}

// RefreshPlan recomputes the augmentation plan from the current labels.
// Never called implicitly; augmentation volume stays stable across epochs
// unless the caller asks otherwise.
func (f *Flow) RefreshPlan() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cfg.Augment {
		f.plan = CalcAugmentPlan(f.labels, f.cfg.ScalingFactor)
	}
}

func (f *Flow) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Stats{
		Batches:     f.batches,
		Scale:       f.scale,
		DatasetSize: len(f.paths),
		Slices:      f.slices,
		Classes:     len(f.classes),
		Augment:     f.cfg.Augment,
		BatchSize:   f.cfg.BatchSize,
	}
}

// advance processes one raw slice and appends any resulting full batches to
// the pending queue. Caller holds f.mu.
func (f *Flow) advance() error {
	if f.sliceIdx >= f.slices {
		f.shuffleDataset()
		f.sliceIdx = 0
	}
	i := f.sliceIdx
	f.sliceIdx++

	// Multi-scale training: re-roll the input resolution every 10 slices.
	if f.cfg.Augment && i%10 == 0 {
		f.scale = f.cfg.MultiScale[f.rng.Intn(len(f.cfg.MultiScale))]
	}

	bs := f.cfg.BatchSize
	imgs, vecs, size := f.buildSlice(f.paths[i*bs:(i+1)*bs], f.labels[i*bs:(i+1)*bs])

	// Reshuffle the expanded samples before re-slicing into exact batches.
	f.rng.Shuffle(len(imgs), func(a, b int) {
		imgs[a], imgs[b] = imgs[b], imgs[a]
		vecs[a], vecs[b] = vecs[b], vecs[a]
	})

	gridW := size / f.cfg.ShrinkFactor
	gridH := size / f.cfg.ShrinkFactor
	produced := 0
	for z := 0; z+bs <= len(imgs); z += bs {
		grid, err := EncodeGrid(vecs[z:z+bs], gridH, gridW, f.cfg.Anchors, f.encoder.NumClasses())
		if err != nil {
			return err
		}
		f.pending = append(f.pending, iface.Batch{
			Images: imageTensor(imgs[z:z+bs], size),
			Labels: grid,
		})
		produced++
	}

	if produced == 0 {
		f.dry++
		if f.dry > f.slices {
			return ErrStarved
		}
	} else {
		f.dry = 0
	}
	return nil
}

// shuffleDataset permutes paths and labels in lock-step at every epoch
// boundary. Caller holds f.mu.
func (f *Flow) shuffleDataset() {
	f.rng.Shuffle(len(f.paths), func(a, b int) {
		f.paths[a], f.paths[b] = f.paths[b], f.paths[a]
		f.labels[a], f.labels[b] = f.labels[b], f.labels[a]
	})
}

// imageTensor stacks flattened size x size RGB images into a
// [batch, size, size, 3] tensor.
func imageTensor(imgs [][]float32, size int) *tensor.Dense {
	stride := size * size * 3
	data := make([]float32, len(imgs)*stride)
	for i, img := range imgs {
		copy(data[i*stride:(i+1)*stride], img)
	}
	return tensor.New(
		tensor.WithShape(len(imgs), size, size, 3),
		tensor.WithBacking(data),
	)
}
