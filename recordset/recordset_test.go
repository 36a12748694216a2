package recordset

import (
	"context"
	"testing"

	"github.com/fulldump/biff"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store/memstore"
)

// assertSync checks the row list and the frame hold the same values and
// states, position by position.
func assertSync(rs *Recordset) {
	f := rs.Frame()
	biff.AssertEqual(f.Len(), rs.Len())
	for i, row := range rs.Rows() {
		record := f.At(i)
		biff.AssertEqual(record[StateColumn], row.State().String())
		for _, column := range rs.Columns() {
			biff.AssertEqual(record[column], row.Get(column))
		}
	}
}

func TestNew_Empty(t *testing.T) {

	rs, err := New(context.Background(), accounts())

	biff.AssertNil(err)
	biff.AssertEqual(rs.Len(), 0)
	biff.AssertEqual(rs.Cursor(), -1)
	biff.AssertEqual(rs.Columns(), []string{"id", "name", "balance"})
	biff.AssertEqual(rs.PrimaryKeys(), []string{"id"})
	biff.AssertEqual(rs.Frame().Columns, []string{"id", "name", "balance", StateColumn})
	biff.AssertTrue(rs.Frame().Indexed())
}

func TestNew_InvalidSchema(t *testing.T) {

	_, err := New(context.Background(), &schema.Schema{Name: "broken"})

	biff.AssertTrue(err != nil)
}

func TestNew_Population(t *testing.T) {

	ctx := context.Background()
	session := &stubSession{records: []schema.Record{
		{"id": int64(1), "name": "Alice", "balance": 10.0},
		{"id": int64(2), "name": "Bob", "balance": 20.0},
	}}

	biff.Alternative("Session and filter", func(a *biff.A) {
		rs, err := New(ctx, accounts(), WithSession(session), WithFilter(query.Filter{"id": 2}))
		biff.AssertNil(err)
		biff.AssertEqual(rs.Len(), 1)
		biff.AssertEqual(rs.Row(0).Get("name"), "Bob")
		biff.AssertEqual(rs.Row(0).State(), NoChanged)
		biff.AssertEqual(rs.Cursor(), -1)
	})

	biff.Alternative("Session without filter", func(a *biff.A) {
		rs, err := New(ctx, accounts(), WithSession(session))
		biff.AssertNil(err)
		biff.AssertEqual(rs.Len(), 0)
	})

	biff.Alternative("Filter without session", func(a *biff.A) {
		rs, err := New(ctx, accounts(), WithFilter(query.Filter{}))
		biff.AssertNil(err)
		biff.AssertEqual(rs.Len(), 0)
	})
}

func TestNewRow(t *testing.T) {

	rs, _ := New(context.Background(), accounts())

	rs.NewRow()

	biff.AssertEqual(rs.Len(), 1)
	biff.AssertEqual(rs.Cursor(), 0)
	biff.AssertEqual(rs.Current().State(), Added)
	biff.AssertEqual(rs.Current().Values(), schema.Record{
		"id":      int64(0),
		"name":    "",
		"balance": 0.0,
	})
	assertSync(rs)
}

func TestNewRow_AfterIteration(t *testing.T) {

	session := &stubSession{records: []schema.Record{
		{"id": int64(1), "name": "Alice", "balance": 10.0},
		{"id": int64(2), "name": "Bob", "balance": 20.0},
	}}
	rs, _ := New(context.Background(), accounts(), WithSession(session), WithFilter(nil))

	for !rs.EOF() {
	}
	rs.NewRow()

	biff.AssertEqual(rs.Cursor(), 2)
	biff.AssertEqual(rs.Current().State(), Added)
}

func TestCursor(t *testing.T) {

	rs, _ := New(context.Background(), accounts())
	biff.AssertEqual(rs.Cursor(), -1)

	for i := 0; i < 3; i++ {
		rs.NewRow()
		biff.AssertEqual(rs.Cursor(), i)
	}

	rs.Rewind()
	visited := 0
	for i := 0; i < 3; i++ {
		biff.AssertFalse(rs.EOF())
		biff.AssertEqual(rs.Cursor(), i)
		visited++
	}
	biff.AssertTrue(rs.EOF())
	biff.AssertEqual(rs.Cursor(), 3)
	biff.AssertEqual(visited, 3)

	biff.AssertNil(rs.Move(1))
	biff.AssertEqual(rs.Cursor(), 1)
	biff.AssertNotNil(rs.Move(3))
}

func TestCurrent_OutOfRange(t *testing.T) {

	rs, _ := New(context.Background(), accounts())

	defer func() {
		biff.AssertNotNil(recover())
	}()

	rs.Current()
}

func TestEditRow(t *testing.T) {

	session := &stubSession{records: []schema.Record{
		{"id": int64(1), "name": "Alice", "balance": 10.0},
	}}
	rs, _ := New(context.Background(), accounts(), WithSession(session), WithFilter(nil))
	rs.EOF()

	rs.EditRow()
	biff.AssertEqual(rs.Current().State(), Modified)

	rs.EditRow()
	biff.AssertEqual(rs.Current().State(), Modified)

	rs.Current().Set("name", "Alicia")
	biff.AssertEqual(session.records[0]["name"], "Alicia") // shared with the session
	assertSync(rs)
}

func TestEditRow_KeepsAdded(t *testing.T) {

	rs, _ := New(context.Background(), accounts())
	rs.NewRow()

	rs.EditRow()

	biff.AssertEqual(rs.Current().State(), Added)
}

func TestSet_WithoutEditRow(t *testing.T) {

	session := &stubSession{records: []schema.Record{
		{"id": int64(1), "name": "Alice", "balance": 10.0},
	}}
	rs, _ := New(context.Background(), accounts(), WithSession(session), WithFilter(nil))
	rs.EOF()

	rs.Current().Set("name", "Silent")

	biff.AssertEqual(rs.Current().State(), NoChanged)
}

func TestDelRow(t *testing.T) {

	session := &stubSession{records: []schema.Record{
		{"id": int64(1), "name": "Alice", "balance": 10.0},
		{"id": int64(2), "name": "Bob", "balance": 20.0},
	}}

	biff.Alternative("NoChanged becomes Deleted", func(a *biff.A) {
		rs, _ := New(context.Background(), accounts(), WithSession(session), WithFilter(nil))
		rs.EOF()
		rs.DelRow()
		biff.AssertEqual(rs.Current().State(), Deleted)
		biff.AssertEqual(rs.Len(), 2)
		assertSync(rs)
	})

	biff.Alternative("Added stays Added", func(a *biff.A) {
		rs, _ := New(context.Background(), accounts())
		rs.NewRow()
		rs.DelRow()
		biff.AssertEqual(rs.Current().State(), Added)
	})

	biff.Alternative("Modified stays Modified", func(a *biff.A) {
		rs, _ := New(context.Background(), accounts(), WithSession(session), WithFilter(nil))
		rs.EOF()
		rs.EditRow()
		rs.DelRow()
		biff.AssertEqual(rs.Current().State(), Modified)
	})
}

func TestFrame_Sync(t *testing.T) {

	session := &stubSession{records: []schema.Record{
		{"id": int64(1), "name": "Alice", "balance": 10.0},
		{"id": int64(2), "name": "Bob", "balance": 20.0},
		{"id": int64(3), "name": "Carol", "balance": 30.0},
	}}
	rs, _ := New(context.Background(), accounts(), WithSession(session), WithFilter(nil))
	assertSync(rs)

	rs.EOF()
	rs.EditRow()
	rs.Current().Set("balance", 11.0)
	assertSync(rs)

	rs.EOF()
	rs.DelRow()
	assertSync(rs)

	rs.NewRow()
	rs.Current().Set("id", int64(4))
	rs.Current().Set("name", "Dave")
	assertSync(rs)

	positions, err := rs.Frame().Loc(4)
	biff.AssertNil(err)
	biff.AssertEqual(positions, []int{3})

	biff.AssertEqual(rs.Pending(), map[RowState]int{NoChanged: 1, Modified: 1, Deleted: 1, Added: 1})
}

func TestFind(t *testing.T) {

	session := &stubSession{records: []schema.Record{
		{"id": int64(1), "name": "Alice", "balance": 10.0},
	}}
	rs, _ := New(context.Background(), accounts(), WithSession(session), WithFilter(nil))
	rs.NewRow()
	rs.Current().Set("name", "Zoe")

	found, err := rs.Find(query.Filter{"name": "Zoe"})
	biff.AssertNil(err)
	biff.AssertTrue(found)

	found, err = rs.Find(query.Filter{"name": "Nobody"})
	biff.AssertNil(err)
	biff.AssertFalse(found)

	biff.AssertEqual(len(session.queries), 1) // only the initial load
}

func TestDataFrame(t *testing.T) {

	biff.Alternative("Empty", func(a *biff.A) {
		rs, _ := New(context.Background(), accounts())
		f := rs.DataFrame()
		biff.AssertEqual(f.Columns, []string{"id", "name", "balance"})
		biff.AssertEqual(f.Len(), 0)
		biff.AssertFalse(f.Indexed())
	})

	biff.Alternative("Rows", func(a *biff.A) {
		rs, _ := New(context.Background(), accounts())
		rs.NewRow()
		rs.Current().Set("id", int64(1))
		rs.Current().Set("name", "Alice")
		rs.NewRow()
		rs.Current().Set("id", int64(2))

		f := rs.DataFrame()
		biff.AssertEqual(f.Columns, []string{"id", "name", "balance"})
		biff.AssertTrue(f.Indexed())
		biff.AssertEqual(f.Records(), []schema.Record{
			{"id": int64(1), "name": "Alice", "balance": 0.0},
			{"id": int64(2), "name": "", "balance": 0.0},
		})

		// deep copy
		rs.Row(0).Set("name", "Changed")
		biff.AssertEqual(f.At(0)["name"], "Alice")
	})

	biff.Alternative("Subset", func(a *biff.A) {
		rs, _ := New(context.Background(), accounts())
		rs.NewRow()
		rs.NewRow()
		rs.Current().Set("id", int64(2))

		f := rs.DataFrame(rs.Current())
		biff.AssertEqual(f.Len(), 1)
		biff.AssertEqual(f.At(0)["id"], int64(2))
	})
}

func TestFilter_ReplacesPendingRows(t *testing.T) {

	ctx := context.Background()
	m := memstore.New()
	seed := m.NewSession()
	seed.Add(accounts(), schema.Record{"id": 1, "name": "Alice"})
	seed.Add(accounts(), schema.Record{"id": 2, "name": "Bob"})
	seed.Add(accounts(), schema.Record{"id": 3, "name": "Carol"})
	biff.AssertNil(seed.Commit(ctx))

	rs, err := New(ctx, accounts(), WithSession(m.NewSession()), WithFilter(nil))
	biff.AssertNil(err)
	rs.NewRow()
	rs.NewRow()
	biff.AssertEqual(rs.Len(), 5)

	err = rs.Filter(ctx, query.Filter{"id": query.Filter{"$gt": 1}})

	biff.AssertNil(err)
	biff.AssertEqual(rs.Len(), 2)
	biff.AssertEqual(rs.Cursor(), -1)
	biff.AssertEqual(rs.Pending(), map[RowState]int{NoChanged: 2})
}

func TestFilter_WithoutSession(t *testing.T) {

	rs, _ := New(context.Background(), accounts())

	err := rs.Filter(context.Background(), query.Filter{})

	biff.AssertNotNil(err)
}
