package frame

import (
	"fmt"

	"github.com/fulldump/recordset/query"
)

type entry struct {
	values   []any
	position int
}

func lessEntry(a, b *entry) bool {
	c := compareValues(a.values, b.values)
	if c != 0 {
		return c < 0
	}
	return a.position < b.position
}

// normalizeValues converts numbers to float64 so 1, int64(1) and 1.0 land in
// the same place of the index.
func normalizeValues(values []any) []any {
	result := make([]any, len(values))
	for i, value := range values {
		result[i] = query.Normalize(value)
	}
	return result
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	}
	return 4
}

func compareValues(a, b []any) int {
	for i := range a {
		valA, valB := a[i], b[i]

		rankA, rankB := typeRank(valA), typeRank(valB)
		if rankA != rankB {
			return rankA - rankB
		}

		switch valA := valA.(type) {
		case nil:
			continue
		case bool:
			valB := valB.(bool)
			if valA == valB {
				continue
			}
			if !valA {
				return -1
			}
			return 1
		case float64:
			valB := valB.(float64)
			if valA < valB {
				return -1
			}
			if valA > valB {
				return 1
			}
		case string:
			valB := valB.(string)
			if valA < valB {
				return -1
			}
			if valA > valB {
				return 1
			}
		default:
			sa, sb := fmt.Sprint(valA), fmt.Sprint(valB)
			if sa < sb {
				return -1
			}
			if sa > sb {
				return 1
			}
		}
	}
	return 0
}
