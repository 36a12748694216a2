package recordset

import (
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/utils"
)

// Row is one record of the recordset plus its pending change. Values are
// shared with the session that loaded them, so the session sees in place
// modifications.
type Row struct {
	values schema.Record
	state  RowState
}

func (r *Row) Get(column string) any {
	return r.values[column]
}

// Set writes a value. It does not change the state of the row, call
// Recordset.EditRow before editing a loaded row.
func (r *Row) Set(column string, value any) {
	r.values[column] = value
}

// Values returns a copy of the row values
func (r *Row) Values() schema.Record {
	return utils.CloneRecord(r.values)
}

func (r *Row) State() RowState {
	return r.state
}

// setState only moves rows out of NoChanged. Added and Modified rows keep
// their state, so deleting a row that was never stored leaves it Added.
func (r *Row) setState(state RowState) {
	if r.state == NoChanged {
		r.state = state
	}
}
