package feed

// AugmentPlan maps a class name to the number of augmented copies every
// sample of that class receives.
type AugmentPlan map[string]int

// CalcAugmentPlan derives the plan from the class frequencies of the full
// label set: count(c) = floor(scalingFactor * mean / frequency(c)). Classes
// rarer than the mean get proportionally more copies, classes more frequent
// than the mean can get zero.
func CalcAugmentPlan(labels []Label, scalingFactor float32) AugmentPlan {
	freq := map[string]int{}
	for _, l := range labels {
		freq[l.Name]++
	}
	plan := make(AugmentPlan, len(freq))
	if len(freq) == 0 {
		return plan
	}
	mean := float32(len(labels)) / float32(len(freq))
	for name, n := range freq {
		plan[name] = int(scalingFactor * mean / float32(n))
	}
	return plan
}
