package utils

import (
	"testing"

	"github.com/fulldump/biff"
)

func TestMergePatch(t *testing.T) {

	original := map[string]any{"name": "Alice", "address": map[string]any{"city": "Madrid", "zip": "28001"}}

	result, changed := MergePatch(original, map[string]any{
		"name":    "Alicia",
		"address": map[string]any{"zip": nil},
	})

	biff.AssertTrue(changed)
	biff.AssertEqual(result, map[string]any{"name": "Alicia", "address": map[string]any{"city": "Madrid"}})
	biff.AssertEqual(original["name"], "Alice") // untouched

	_, changed = MergePatch(original, map[string]any{"name": "Alice"})
	biff.AssertFalse(changed)
}

func TestMergeDiff(t *testing.T) {

	original := map[string]any{"id": int64(1), "name": "Alice", "tags": []any{"a"}}
	modified := map[string]any{"id": int64(1), "name": "Bob", "tags": []any{"a"}, "new": true}

	diff, hasDiff := MergeDiff(original, modified)

	biff.AssertTrue(hasDiff)
	biff.AssertEqual(diff, map[string]any{"name": "Bob", "new": true})

	back, _ := MergePatch(original, diff)
	biff.AssertEqual(back, modified)

	_, hasDiff = MergeDiff(original, CloneRecord(original))
	biff.AssertFalse(hasDiff)
}
