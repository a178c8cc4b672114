package feed

import "fmt"

// Label is the ground truth for one image: a single box and its class name.
// One image maps to exactly one Label. Multi-object images are not
// representable in this grid model and are a caller precondition violation.
type Label struct {
	Box  Box
	Name string
}

// Config carries the knobs of the batch pipeline.
type Config struct {
	// InputSize is the canonical network input resolution, e.g. 416.
	InputSize int
	// ShrinkFactor is the ratio between input resolution and grid
	// resolution, e.g. 32 for a 13x13 grid at 416.
	ShrinkFactor int
	// Anchors is the number of anchor slots per grid cell.
	Anchors int
	// MultiScale is the discrete set of input scale factors re-rolled
	// every 10 raw slices while augmenting.
	MultiScale []float32
	BatchSize  int
	// ScalingFactor drives the class-balance estimator. The higher, the
	// more augmented copies rare classes receive.
	ScalingFactor float32
	Augment       bool
}

func (c Config) validate(datasetLen int) error {
	if c.InputSize <= 0 {
		return fmt.Errorf("InputSize must be positive, got %d", c.InputSize)
	}
	if c.ShrinkFactor <= 0 || c.ShrinkFactor > c.InputSize {
		return fmt.Errorf("ShrinkFactor must be in [1, InputSize], got %d", c.ShrinkFactor)
	}
	if c.Anchors <= 0 {
		return fmt.Errorf("Anchors must be positive, got %d", c.Anchors)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("BatchSize must be positive, got %d", c.BatchSize)
	}
	if c.BatchSize > datasetLen {
		return fmt.Errorf("BatchSize %d exceeds dataset size %d, no full slice can be formed", c.BatchSize, datasetLen)
	}
	if c.Augment && len(c.MultiScale) == 0 {
		return fmt.Errorf("Augment is enabled but MultiScale is empty")
	}
	return nil
}
