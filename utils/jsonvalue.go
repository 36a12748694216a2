package utils

import (
	"reflect"
)

// CloneRecord deep copies a record
func CloneRecord(record map[string]any) map[string]any {
	if record == nil {
		return nil
	}
	cloned := make(map[string]any, len(record))
	for k, v := range record {
		cloned[k] = CloneJSONValue(v)
	}
	return cloned
}

func CloneJSONValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return CloneRecord(v)
	case []any:
		if v == nil {
			return nil
		}
		cloned := make([]any, len(v))
		for i, item := range v {
			cloned[i] = CloneJSONValue(item)
		}
		return cloned
	case []byte:
		if v == nil {
			return nil
		}
		return append([]byte{}, v...)
	default:
		return v
	}
}

// MergePatch applies a RFC 7386 merge patch over original and returns the
// result. original is not modified. changed is false when the patch is a noop.
func MergePatch(original map[string]any, patch map[string]any) (result map[string]any, changed bool) {

	result = CloneRecord(original)
	if result == nil {
		result = map[string]any{}
	}

	for k, item := range patch {
		current, exists := result[k]

		if item == nil {
			if exists {
				delete(result, k)
				changed = true
			}
			continue
		}

		if itemMap, ok := item.(map[string]any); ok {
			currentMap, _ := current.(map[string]any)
			merged, subChanged := MergePatch(currentMap, itemMap)
			result[k] = merged
			if subChanged || !exists {
				changed = true
			}
			continue
		}

		if exists && reflect.DeepEqual(current, item) {
			continue
		}

		result[k] = CloneJSONValue(item)
		changed = true
	}

	return result, changed
}

// MergeDiff returns the merge patch that transforms original into modified.
// hasDiff is false when both are equal.
func MergeDiff(original, modified map[string]any) (diff map[string]any, hasDiff bool) {

	diff = map[string]any{}

	for k := range original {
		if _, exists := modified[k]; !exists {
			diff[k] = nil
		}
	}

	for k, mv := range modified {
		ov, exists := original[k]
		if !exists {
			diff[k] = CloneJSONValue(mv)
			continue
		}

		om, isMapA := ov.(map[string]any)
		mm, isMapB := mv.(map[string]any)
		if isMapA && isMapB {
			subDiff, subChanged := MergeDiff(om, mm)
			if subChanged {
				diff[k] = subDiff
			}
			continue
		}

		if !reflect.DeepEqual(ov, mv) {
			diff[k] = CloneJSONValue(mv)
		}
	}

	return diff, len(diff) > 0
}
