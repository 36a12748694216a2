// Package query evaluates row predicates.
//
// A Filter is a map of conditions in the MongoDB dialect: plain values mean
// equality and `$`-prefixed keys are operators (`$eq`, `$ne`, `$gt`, `$ge`,
// `$lt`, `$le`, `$in`, `$nin`, `$and`, `$or`...).
package query

import (
	"fmt"
	"strings"

	"github.com/SierraSoftworks/connor"

	"github.com/fulldump/recordset/schema"
)

type Filter = map[string]any

// Match reports whether record satisfies filter. An empty filter matches
// every record. Numbers are compared by value whatever their Go type.
func Match(filter Filter, record schema.Record) (bool, error) {

	if len(filter) == 0 {
		return true, nil
	}

	normalizedFilter, _ := Normalize(filter).(map[string]any)
	normalizedRecord, _ := Normalize(record).(map[string]any)

	match, err := connor.Match(normalizedFilter, normalizedRecord)
	if err != nil {
		return false, fmt.Errorf("match: %w", err)
	}

	return match, nil
}

// PrimaryKey builds the equality conjunction over every primary key column of
// s using the values in record.
func PrimaryKey(s *schema.Schema, record schema.Record) Filter {
	filter := Filter{}
	for _, key := range s.PrimaryKeys() {
		filter[key] = record[key]
	}
	return filter
}

// Equalities returns the column values of a filter made only of plain
// equalities (no operators). ok is false otherwise.
func Equalities(filter Filter) (values map[string]any, ok bool) {
	values = map[string]any{}
	for key, value := range filter {
		if strings.HasPrefix(key, "$") {
			return nil, false
		}
		switch v := value.(type) {
		case map[string]any:
			eq, isEq := v["$eq"]
			if len(v) != 1 || !isEq {
				return nil, false
			}
			values[key] = eq
		case []any:
			return nil, false
		default:
			values[key] = value
		}
	}
	return values, true
}
