package feed

// OneHotEncoder is the default ClassEncoder: index i maps to a vector of
// NumClasses zeros with a single 1 at position i. Hierarchical encoders
// (word-tree style) plug in through iface.ClassEncoder instead.
type OneHotEncoder struct {
	classes int
}

func NewOneHotEncoder(numClasses int) *OneHotEncoder {
	return &OneHotEncoder{classes: numClasses}
}

func (e *OneHotEncoder) Encode(index int) []float32 {
	v := make([]float32, e.classes)
	if index >= 0 && index < e.classes {
		v[index] = 1
	}
	return v
}

func (e *OneHotEncoder) NumClasses() int {
	return e.classes
}
