// Package frame implements the tabular representation of a set of records:
// ordered rows over a fixed list of columns, optionally indexed by the
// primary key columns.
package frame

import (
	"encoding/json"
	"fmt"

	"github.com/google/btree"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/utils"
)

type Frame struct {
	Columns     []string
	PrimaryKeys []string

	records []schema.Record
	index   *btree.BTreeG[*entry] // nil when there are no primary keys
}

func New(columns, primaryKeys []string) *Frame {
	f := &Frame{
		Columns:     append([]string{}, columns...),
		PrimaryKeys: append([]string{}, primaryKeys...),
		records:     []schema.Record{},
	}
	if len(primaryKeys) > 0 {
		f.index = btree.NewG(32, lessEntry)
	}
	return f
}

// Append copies record into a new row at the end of the frame. Only the
// declared columns are kept.
func (f *Frame) Append(record schema.Record) {

	row := make(schema.Record, len(f.Columns))
	for _, column := range f.Columns {
		row[column] = utils.CloneJSONValue(record[column])
	}

	position := len(f.records)
	f.records = append(f.records, row)

	if f.index != nil {
		f.index.ReplaceOrInsert(&entry{
			values:   f.keyValues(row),
			position: position,
		})
	}
}

func (f *Frame) Len() int {
	return len(f.records)
}

// Indexed reports whether the frame has a primary key index
func (f *Frame) Indexed() bool {
	return f.index != nil
}

// At returns a copy of row i. It panics if i is out of range.
func (f *Frame) At(i int) schema.Record {
	return utils.CloneRecord(f.records[i])
}

func (f *Frame) Records() []schema.Record {
	result := make([]schema.Record, len(f.records))
	for i, record := range f.records {
		result[i] = utils.CloneRecord(record)
	}
	return result
}

// Loc returns the positions of the rows whose primary key equals values, in
// ascending order.
func (f *Frame) Loc(values ...any) ([]int, error) {

	if f.index == nil {
		return nil, fmt.Errorf("frame has no primary key")
	}
	if len(values) != len(f.PrimaryKeys) {
		return nil, fmt.Errorf("expected %d key values, got %d", len(f.PrimaryKeys), len(values))
	}

	positions := []int{}
	pivot := &entry{values: normalizeValues(values), position: -1}
	f.index.AscendGreaterOrEqual(pivot, func(e *entry) bool {
		if compareValues(e.values, pivot.values) != 0 {
			return false
		}
		positions = append(positions, e.position)
		return true
	})

	return positions, nil
}

// Select returns the positions of the rows matching filter
func (f *Frame) Select(filter query.Filter) ([]int, error) {
	positions := []int{}
	for i, record := range f.records {
		match, err := query.Match(filter, record)
		if err != nil {
			return nil, err
		}
		if match {
			positions = append(positions, i)
		}
	}
	return positions, nil
}

// Any reports whether at least one row matches filter
func (f *Frame) Any(filter query.Filter) (bool, error) {
	for _, record := range f.records {
		match, err := query.Match(filter, record)
		if err != nil {
			return false, err
		}
		if match {
			return true, nil
		}
	}
	return false, nil
}

func (f *Frame) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Columns     []string        `json:"columns"`
		PrimaryKeys []string        `json:"primary_keys"`
		Rows        []schema.Record `json:"rows"`
	}{
		Columns:     f.Columns,
		PrimaryKeys: f.PrimaryKeys,
		Rows:        f.records,
	})
}

func (f *Frame) keyValues(record schema.Record) []any {
	values := make([]any, len(f.PrimaryKeys))
	for i, key := range f.PrimaryKeys {
		values[i] = record[key]
	}
	return normalizeValues(values)
}
