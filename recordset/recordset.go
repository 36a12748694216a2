// Package recordset implements an in-memory, cursor navigable buffer of rows
// of one entity type. Every row carries its pending change (added, modified,
// deleted) and Update/Upsert reconcile them against a store session.
//
// Typical usage:
//
//	rs, err := recordset.New(ctx, accounts, recordset.WithSession(session), recordset.WithFilter(query.Filter{}))
//	for !rs.EOF() {
//		rs.EditRow()
//		rs.Current().Set("balance", 0.0)
//	}
//	ok := rs.Update(ctx)
//
// A Recordset is not safe for concurrent use.
package recordset

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
)

// StateColumn is the frame column holding the state of each row
const StateColumn = "_state"

type Recordset struct {
	schema      *schema.Schema
	columns     []string
	primaryKeys []string
	session     store.Session
	filter      query.Filter
	logger      *zap.Logger

	rows   []*Row
	cursor int
}

type Option func(r *Recordset)

func WithSession(session store.Session) Option {
	return func(r *Recordset) {
		r.session = session
	}
}

// WithFilter sets the predicate used to populate the recordset on creation.
// Population only happens when a session is given as well.
func WithFilter(filter query.Filter) Option {
	return func(r *Recordset) {
		if filter == nil {
			filter = query.Filter{}
		}
		r.filter = filter
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Recordset) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func New(ctx context.Context, s *schema.Schema, options ...Option) (*Recordset, error) {

	err := s.Validate()
	if err != nil {
		return nil, err
	}

	r := &Recordset{
		schema:      s,
		columns:     s.ColumnNames(),
		primaryKeys: s.PrimaryKeys(),
		logger:      zap.NewNop(),
		rows:        []*Row{},
		cursor:      -1,
	}

	for _, option := range options {
		option(r)
	}

	if r.session != nil && r.filter != nil {
		err := r.load(ctx, r.filter)
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (r *Recordset) load(ctx context.Context, filter query.Filter) error {

	records, err := r.session.Query(ctx, r.schema, filter)
	if err != nil {
		return fmt.Errorf("query '%s': %w", r.schema.Name, err)
	}

	rows := make([]*Row, 0, len(records))
	for _, record := range records {
		rows = append(rows, &Row{values: record, state: NoChanged})
	}

	r.rows = rows
	r.cursor = -1

	return nil
}

func (r *Recordset) Schema() *schema.Schema {
	return r.schema
}

func (r *Recordset) Columns() []string {
	return append([]string{}, r.columns...)
}

func (r *Recordset) PrimaryKeys() []string {
	return append([]string{}, r.primaryKeys...)
}

func (r *Recordset) Len() int {
	return len(r.rows)
}

func (r *Recordset) Cursor() int {
	return r.cursor
}

// Current returns the row under the cursor. It panics if the cursor is out
// of range.
func (r *Recordset) Current() *Row {
	return r.rows[r.cursor]
}

func (r *Recordset) Row(i int) *Row {
	return r.rows[i]
}

func (r *Recordset) Rows() []*Row {
	return append([]*Row{}, r.rows...)
}

// Move places the cursor at position i, -1 means before the first row.
func (r *Recordset) Move(i int) error {
	if i < -1 || i >= len(r.rows) {
		return fmt.Errorf("position %d out of range [-1, %d)", i, len(r.rows))
	}
	r.cursor = i
	return nil
}

// Rewind places the cursor before the first row, ready to iterate with EOF
func (r *Recordset) Rewind() {
	r.cursor = -1
}

// NewRow appends a row with every column set to its default, tagged Added.
// The cursor points to the new row.
func (r *Recordset) NewRow() {
	r.rows = append(r.rows, &Row{
		values: r.schema.NewRecord(),
		state:  Added,
	})
	r.cursor = len(r.rows) - 1
}

// EditRow marks the current row as Modified if it had no changes
func (r *Recordset) EditRow() {
	r.Current().setState(Modified)
}

// DelRow marks the current row as Deleted if it had no changes. The row stays
// in the recordset until the changes are reconciled.
func (r *Recordset) DelRow() {
	r.Current().setState(Deleted)
}

// EOF advances the cursor and reports whether it went past the last row:
//
//	for !rs.EOF() {
//		row := rs.Current()
//	}
func (r *Recordset) EOF() bool {
	r.cursor++
	return r.cursor >= len(r.rows)
}

// Find reports whether any row in memory matches filter. The store is not
// queried.
func (r *Recordset) Find(filter query.Filter) (bool, error) {
	return r.Frame().Any(filter)
}

// ExistsPrimaryKey asks the store whether a record with the primary key of row
// exists. It is always false for schemas without primary key.
func (r *Recordset) ExistsPrimaryKey(ctx context.Context, row *Row) (bool, error) {

	if r.session == nil {
		return false, fmt.Errorf("%w: '%s'", ErrNoSession, r.schema.Name)
	}

	if len(r.primaryKeys) == 0 {
		return false, nil
	}

	records, err := r.session.Query(ctx, r.schema, query.PrimaryKey(r.schema, row.values))
	if err != nil {
		return false, err
	}

	return len(records) > 0, nil
}

// Filter replaces the content of the recordset with the records of the store
// matching filter. Pending changes not yet reconciled are lost.
func (r *Recordset) Filter(ctx context.Context, filter query.Filter) error {

	if r.session == nil {
		return fmt.Errorf("%w: '%s'", ErrNoSession, r.schema.Name)
	}

	r.rows = []*Row{}
	r.cursor = -1

	return r.load(ctx, filter)
}

// Pending counts rows per state
func (r *Recordset) Pending() map[RowState]int {
	result := map[RowState]int{}
	for _, row := range r.rows {
		result[row.state]++
	}
	return result
}

func (r *Recordset) rowsWithState(state RowState) []*Row {
	result := []*Row{}
	for _, row := range r.rows {
		if row.state == state {
			result = append(result, row)
		}
	}
	return result
}
