package feed

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func labelsWithFreqs(freqs map[string]int) []Label {
	var labels []Label
	for name, n := range freqs {
		for i := 0; i < n; i++ {
			labels = append(labels, Label{Name: name})
		}
	}
	return labels
}

func TestCalcAugmentPlan(t *testing.T) {
	t.Run("Test Known Frequencies", func(t *testing.T) {
		labels := labelsWithFreqs(map[string]int{"stop": 100, "yield": 10, "limit": 1})
		plan := CalcAugmentPlan(labels, 5)
		// mean = 111/3 = 37
		assert.Equal(t, 1, plan["stop"])   // floor(5*37/100)
		assert.Equal(t, 18, plan["yield"]) // floor(5*37/10)
		assert.Equal(t, 185, plan["limit"])
	})

	t.Run("Test Monotonic In Frequency", func(t *testing.T) {
		rng := rand.New(rand.NewSource(7))
		freqs := map[string]int{}
		for i := 0; i < 20; i++ {
			freqs[fmt.Sprintf("class%02d", i)] = 1 + rng.Intn(500)
		}
		plan := CalcAugmentPlan(labelsWithFreqs(freqs), 5)

		names := make([]string, 0, len(freqs))
		for name := range freqs {
			names = append(names, name)
		}
		sort.Slice(names, func(i, j int) bool { return freqs[names[i]] < freqs[names[j]] })
		for i := 1; i < len(names); i++ {
			rarer, commoner := names[i-1], names[i]
			assert.GreaterOrEqual(t, plan[rarer], plan[commoner],
				"class %s (freq %d) must get at least as many copies as %s (freq %d)",
				rarer, freqs[rarer], commoner, freqs[commoner])
		}
		for name, n := range plan {
			assert.GreaterOrEqual(t, n, 0, "plan for %s", name)
		}
	})

	t.Run("Test Uniform Distribution", func(t *testing.T) {
		plan := CalcAugmentPlan(labelsWithFreqs(map[string]int{"a": 4, "b": 4}), 5)
		// mean == frequency, every class gets exactly the scaling factor.
		assert.Equal(t, 5, plan["a"])
		assert.Equal(t, 5, plan["b"])
	})

	t.Run("Test Empty", func(t *testing.T) {
		assert.Empty(t, CalcAugmentPlan(nil, 5))
	})
}
