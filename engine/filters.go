package engine

import (
	"strings"
)

// ============================================================================
// FILTERS: Dimension and range filtering via RecordView
// ============================================================================
// Single-pass filter: checks ALL constraints per record in one loop.
// Returns a SubView (index list into parent), zero data copy.
// ============================================================================

// ApplyFilters returns a view of records matching all filters.
// Dimensions are AND-combined; values within a dimension are OR-combined.
// Ranges are inclusive and compared on the raw dimension value.
// Empty filter = no restriction (returns original view).
func ApplyFilters(view RecordView, filters Filters) RecordView {
	if filters.IsEmpty() {
		return view
	}

	sets := make(map[string]map[string]bool)
	for dim, allowed := range filters.Dimensions {
		if len(allowed) > 0 {
			sets[dim] = toLowerSet(allowed)
		}
	}
	ranges := make(map[string]Range)
	for dim, r := range filters.Ranges {
		if !r.IsOpen() {
			ranges[dim] = r
		}
	}

	n := view.Len()
	indices := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if matches(view, i, sets, ranges) {
			indices = append(indices, i)
		}
	}

	return newSubView(view, indices)
}

func matches(view RecordView, i int, sets map[string]map[string]bool, ranges map[string]Range) bool {
	for dim, set := range sets {
		if !set[strings.ToLower(view.Dimension(i, dim))] {
			return false
		}
	}
	for dim, r := range ranges {
		v := view.Dimension(i, dim)
		if v == "" || !r.Contains(v) {
			return false
		}
	}
	return true
}

// toLowerSet converts a string slice to a lowercase lookup set.
func toLowerSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}
