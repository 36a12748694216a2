package recordset

import (
	"github.com/fulldump/recordset/frame"
)

// Frame returns the tabular view of the recordset: one row per row, in the
// same order, with the declared columns plus StateColumn. It is computed from
// the rows every time so both views can not drift apart.
func (r *Recordset) Frame() *frame.Frame {

	columns := append(r.Columns(), StateColumn)
	f := frame.New(columns, r.primaryKeys)

	for _, row := range r.rows {
		record := row.Values()
		record[StateColumn] = row.state.String()
		f.Append(record)
	}

	return f
}

// DataFrame returns a copy of rows (all of them by default) as a frame with
// the declared columns only. It is indexed by primary key when the schema
// has one and there is something to index.
func (r *Recordset) DataFrame(rows ...*Row) *frame.Frame {

	if len(rows) == 0 {
		rows = r.rows
	}

	if len(rows) == 0 {
		return frame.New(r.columns, nil)
	}

	f := frame.New(r.columns, r.primaryKeys)
	for _, row := range rows {
		f.Append(row.values)
	}

	return f
}
