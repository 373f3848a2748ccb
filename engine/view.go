package engine

import (
	"maps"
	"slices"
)

// ============================================================================
// RECORD VIEW: read-only indexed access to rows
// ============================================================================
// The engine never copies caller data. Three implementations:
//
//	SliceView      ad-hoc []Record rows (tests, small inputs)
//	DomainView[T]  typed structs read through registered accessors
//	SubView        index subset of a parent view, produced by filters
// ============================================================================

// RecordView provides indexed access to a dataset. Out-of-range indices
// read as "" and 0. Accessors report a missing measure as NaN.
type RecordView interface {
	Len() int
	Dimension(index int, key string) string
	Measure(index int, key string) float64
	DimensionKeys() []string
	MeasureKeys() []string
}

// ============================================================================
// SLICE VIEW
// ============================================================================

// SliceView wraps []Record. Keys are the sorted union over all rows.
type SliceView struct {
	records   []Record
	dimKeys   []string
	valueKeys []string
}

// NewSliceView creates a RecordView from a []Record slice.
func NewSliceView(records []Record) RecordView {
	dims := map[string]struct{}{}
	values := map[string]struct{}{}
	for _, r := range records {
		for k := range r.Dimensions {
			dims[k] = struct{}{}
		}
		for k := range r.Measures {
			values[k] = struct{}{}
		}
	}
	return &SliceView{
		records:   records,
		dimKeys:   slices.Sorted(maps.Keys(dims)),
		valueKeys: slices.Sorted(maps.Keys(values)),
	}
}

func (v *SliceView) Len() int { return len(v.records) }

func (v *SliceView) Dimension(i int, key string) string {
	if !inBounds(i, len(v.records)) {
		return ""
	}
	return v.records[i].Dimensions[key]
}

func (v *SliceView) Measure(i int, key string) float64 {
	if !inBounds(i, len(v.records)) {
		return 0
	}
	return v.records[i].Measures[key]
}

func (v *SliceView) DimensionKeys() []string { return v.dimKeys }
func (v *SliceView) MeasureKeys() []string   { return v.valueKeys }

// ============================================================================
// SUB VIEW
// ============================================================================

// SubView exposes the rows of parent at the given indices.
type SubView struct {
	parent  RecordView
	indices []int
}

func newSubView(parent RecordView, indices []int) RecordView {
	return &SubView{parent: parent, indices: indices}
}

func (v *SubView) Len() int { return len(v.indices) }

func (v *SubView) Dimension(i int, key string) string {
	if !inBounds(i, len(v.indices)) {
		return ""
	}
	return v.parent.Dimension(v.indices[i], key)
}

func (v *SubView) Measure(i int, key string) float64 {
	if !inBounds(i, len(v.indices)) {
		return 0
	}
	return v.parent.Measure(v.indices[i], key)
}

func (v *SubView) DimensionKeys() []string { return v.parent.DimensionKeys() }
func (v *SubView) MeasureKeys() []string   { return v.parent.MeasureKeys() }

func inBounds(i, n int) bool { return i >= 0 && i < n }

// ============================================================================
// DOMAIN ADAPTER
// ============================================================================
//
//	adapter := engine.NewDomainAdapter[orders.Order]().
//	    Dimension("payment_type", func(o orders.Order) string { return o.PaymentType }).
//	    Measure("payment_value", func(o orders.Order) float64 { return o.PaymentValue })
//
//	view := adapter.Bind(rows)
//
// ============================================================================

// accessors is the registered field table shared by every bound view.
type accessors[T any] struct {
	dimKeys   []string
	valueKeys []string
	dims      map[string]func(T) string
	values    map[string]func(T) float64
}

// DomainAdapter builds RecordViews over typed structs. Register accessors
// once at package init and Bind per request.
type DomainAdapter[T any] struct {
	acc *accessors[T]
}

// NewDomainAdapter creates an adapter with no fields.
func NewDomainAdapter[T any]() *DomainAdapter[T] {
	return &DomainAdapter[T]{acc: &accessors[T]{
		dims:   map[string]func(T) string{},
		values: map[string]func(T) float64{},
	}}
}

// Dimension registers a dimension accessor. Re-registering a key replaces
// the accessor but keeps its position.
func (a *DomainAdapter[T]) Dimension(key string, fn func(T) string) *DomainAdapter[T] {
	if _, ok := a.acc.dims[key]; !ok {
		a.acc.dimKeys = append(a.acc.dimKeys, key)
	}
	a.acc.dims[key] = fn
	return a
}

// Measure registers a measure accessor.
func (a *DomainAdapter[T]) Measure(key string, fn func(T) float64) *DomainAdapter[T] {
	if _, ok := a.acc.values[key]; !ok {
		a.acc.valueKeys = append(a.acc.valueKeys, key)
	}
	a.acc.values[key] = fn
	return a
}

// Bind returns a view over data. The slice is referenced, not copied, and
// must not be modified while the view is in use.
func (a *DomainAdapter[T]) Bind(data []T) RecordView {
	return &DomainView[T]{data: data, acc: a.acc}
}

// DomainView reads typed struct fields through registered accessors.
type DomainView[T any] struct {
	data []T
	acc  *accessors[T]
}

func (v *DomainView[T]) Len() int { return len(v.data) }

func (v *DomainView[T]) Dimension(i int, key string) string {
	fn, ok := v.acc.dims[key]
	if !ok || !inBounds(i, len(v.data)) {
		return ""
	}
	return fn(v.data[i])
}

func (v *DomainView[T]) Measure(i int, key string) float64 {
	fn, ok := v.acc.values[key]
	if !ok || !inBounds(i, len(v.data)) {
		return 0
	}
	return fn(v.data[i])
}

func (v *DomainView[T]) DimensionKeys() []string { return v.acc.dimKeys }
func (v *DomainView[T]) MeasureKeys() []string   { return v.acc.valueKeys }
