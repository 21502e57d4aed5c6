package schema

import (
	"maps"
	"slices"
	"strings"
)

// AvailabilityMap is the per-upload record of which canonical metrics carry
// usable data, together with the header assignment it was built from.
type AvailabilityMap struct {
	Bindings     []Binding
	Unrecognized []string
	// Duplicates are headers whose best key was already bound by an earlier header.
	Duplicates []string

	registry *Registry
	byKey    map[string]int
	present  map[string]bool
}

func newAvailabilityMap(r *Registry) *AvailabilityMap {
	av := &AvailabilityMap{
		registry: r,
		byKey:    make(map[string]int),
		present:  make(map[string]bool, r.Len()),
	}
	for _, k := range r.Keys() {
		av.present[k] = false
	}
	return av
}

// bind records b unless its key is already taken.
func (a *AvailabilityMap) bind(b Binding) bool {
	if _, taken := a.byKey[b.Key]; taken {
		return false
	}
	a.byKey[b.Key] = b.Index
	a.Bindings = append(a.Bindings, b)
	return true
}

func (a *AvailabilityMap) sortBindings() {
	slices.SortFunc(a.Bindings, func(x, y Binding) int { return x.Index - y.Index })
}

// Column returns the column index bound to key.
func (a *AvailabilityMap) Column(key string) (int, bool) {
	i, ok := a.byKey[key]
	return i, ok
}

// Bound reports whether some header resolved to key, regardless of data.
func (a *AvailabilityMap) Bound(key string) bool {
	_, ok := a.byKey[key]
	return ok
}

// Available reports whether key has at least one usable value.
func (a *AvailabilityMap) Available(key string) bool {
	return a.present[key]
}

// Present returns a copy of the key -> available flags for every registry key.
func (a *AvailabilityMap) Present() map[string]bool {
	return maps.Clone(a.present)
}

// AvailableKeys lists available keys in registry order.
func (a *AvailabilityMap) AvailableKeys() []string {
	var keys []string
	for _, k := range a.registry.Keys() {
		if a.present[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

// Registry returns the vocabulary the map was resolved against.
func (a *AvailabilityMap) Registry() *Registry { return a.registry }

// Populate flags each bound key available when at least one row holds a
// finite number in its column (numeric metrics) or a non-blank value (text
// metrics). Short rows count as missing. Populate may be called again with
// new rows; flags are recomputed from scratch.
func (a *AvailabilityMap) Populate(rows [][]string) {
	for k := range a.present {
		a.present[k] = false
	}
	for _, b := range a.Bindings {
		m, _ := a.registry.Metric(b.Key)
		for _, row := range rows {
			if b.Index >= len(row) {
				continue
			}
			if m.Numeric {
				if _, ok := ParseNumber(row[b.Index]); ok {
					a.present[b.Key] = true
					break
				}
				continue
			}
			if strings.TrimSpace(row[b.Index]) != "" {
				a.present[b.Key] = true
				break
			}
		}
	}
}

// Value returns the raw cell bound to key in row.
func (a *AvailabilityMap) Value(row []string, key string) (string, bool) {
	i, ok := a.byKey[key]
	if !ok || i >= len(row) {
		return "", false
	}
	return row[i], true
}

// Number returns the finite number bound to key in row.
func (a *AvailabilityMap) Number(row []string, key string) (float64, bool) {
	cell, ok := a.Value(row, key)
	if !ok {
		return 0, false
	}
	return ParseNumber(cell)
}
