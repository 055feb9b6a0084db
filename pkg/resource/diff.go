package resource

import (
	"encoding/json"
)

// Change records the old and new value of a property that differs between
// two versions.
type Change struct {
	Old interface{} `json:"old"`
	New interface{} `json:"new"`
}

// DiffResult is the property-level delta between two versions
type DiffResult struct {
	Added   map[string]interface{} `json:"added"`
	Removed map[string]interface{} `json:"removed"`
	Changed map[string]Change      `json:"changed"`
}

// Empty reports whether the diff carries no changes
func (d DiffResult) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares two property maps. A key only in new is added, a key only in
// old is removed, and a key in both whose serialized values differ is
// changed. Values are compared by canonical JSON, so structurally equal maps
// and slices compare equal regardless of how they were produced.
func Diff(oldProps, newProps map[string]interface{}) DiffResult {
	d := DiffResult{
		Added:   make(map[string]interface{}),
		Removed: make(map[string]interface{}),
		Changed: make(map[string]Change),
	}

	for key, newVal := range newProps {
		oldVal, ok := oldProps[key]
		if !ok {
			d.Added[key] = newVal
			continue
		}
		if !jsonEqual(oldVal, newVal) {
			d.Changed[key] = Change{Old: oldVal, New: newVal}
		}
	}

	for key, oldVal := range oldProps {
		if _, ok := newProps[key]; !ok {
			d.Removed[key] = oldVal
		}
	}

	return d
}

// jsonEqual compares two values by their JSON serialization. encoding/json
// sorts map keys, so the comparison is order-independent for maps.
func jsonEqual(a, b interface{}) bool {
	aj, errA := json.Marshal(a)
	bj, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aj) == string(bj)
}
