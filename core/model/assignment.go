package model

import (
	"maps"
	"slices"
)

// Assignment maps trip IDs to bay IDs. Trips without an entry are pending.
type Assignment map[string]string

// Clone returns an independent copy.
func (a Assignment) Clone() Assignment {
	if a == nil {
		return Assignment{}
	}
	return maps.Clone(a)
}

// TripIDs returns the assigned trip IDs in sorted order.
func (a Assignment) TripIDs() []string {
	return slices.Sorted(maps.Keys(a))
}

// Diff lists the trips whose bay differs between a and b, sorted.
func (a Assignment) Diff(b Assignment) []string {
	changed := make(map[string]bool)
	for id, bay := range a {
		if b[id] != bay {
			changed[id] = true
		}
	}
	for id, bay := range b {
		if a[id] != bay {
			changed[id] = true
		}
	}
	return slices.Sorted(maps.Keys(changed))
}
