package analysis

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// TickSet collects every matrix size seen across all series.
type TickSet struct {
	sizes mapset.Set[int]
}

func NewTickSet() *TickSet {
	return &TickSet{sizes: mapset.NewThreadUnsafeSet[int]()}
}

// Add records matrix sizes; duplicates are ignored.
func (t *TickSet) Add(sizes ...int) {
	t.sizes.Append(sizes...)
}

func (t *TickSet) Len() int {
	return t.sizes.Cardinality()
}

// Sorted returns the recorded sizes in ascending order.
func (t *TickSet) Sorted() []int {
	sizes := t.sizes.ToSlice()
	slices.Sort(sizes)
	return sizes
}
