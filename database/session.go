package database

import (
	"context"
	"errors"
	"reflect"

	"github.com/fulldump/recordset/collection"
	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
	"github.com/fulldump/recordset/utils"
)

// Session is a store.Session over the collections of a database. Tables are
// created the first time a record is inserted into them.
type Session struct {
	*store.UnitOfWork
	db *Database
}

var _ store.Session = (*Session)(nil)

func (db *Database) NewSession() *Session {
	return &Session{
		UnitOfWork: store.NewUnitOfWork(),
		db:         db,
	}
}

func (s *Session) Query(ctx context.Context, sch *schema.Schema, filter query.Filter) ([]schema.Record, error) {

	if s.db.GetStatus() == StatusClosing {
		return nil, store.Wrap("query", sch.Name, store.ErrClosed)
	}

	result := []schema.Record{}

	table, err := s.db.GetCollection(sch.Name)
	if errors.Is(err, ErrCollectionNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, store.Wrap("query", sch.Name, err)
	}

	// primary key lookups do not need a full scan
	if values, ok := query.Equalities(filter); ok && len(sch.PrimaryKeys()) > 0 && coversKey(sch, values) {
		row, found := table.Collection.FindByKey(sch.Key(values))
		if !found {
			return result, nil
		}
		record, err := sch.Coerce(row.Payload)
		if err != nil {
			return nil, store.Wrap("query", sch.Name, err)
		}
		match, err := query.Match(filter, record)
		if err != nil {
			return nil, store.Wrap("query", sch.Name, err)
		}
		if match {
			result = append(result, s.Track(sch, record))
		}
		return result, nil
	}

	var scanErr error
	table.Collection.Traverse(func(row *collection.Row) bool {
		if scanErr = ctx.Err(); scanErr != nil {
			return false
		}
		record, err := sch.Coerce(row.Payload)
		if err != nil {
			scanErr = err
			return false
		}
		match, err := query.Match(filter, record)
		if err != nil {
			scanErr = err
			return false
		}
		if match {
			result = append(result, record)
		}
		return true
	})
	if scanErr != nil {
		return nil, store.Wrap("query", sch.Name, scanErr)
	}

	for i, record := range result {
		result[i] = s.Track(sch, record)
	}

	return result, nil
}

func coversKey(sch *schema.Schema, values map[string]any) bool {
	for _, key := range sch.PrimaryKeys() {
		if _, ok := values[key]; !ok {
			return false
		}
	}
	return true
}

type plannedWrite struct {
	table  *Table
	change *store.Change
	row    *collection.Row
}

// Commit checks every change before writing any of them, so a conflict or a
// missing row leaves all the tables untouched.
func (s *Session) Commit(ctx context.Context) error {

	changes, err := s.Changes()
	if err != nil {
		return err
	}
	if changes.Empty() {
		s.Committed()
		return nil
	}

	s.db.commit.Lock()
	defer s.db.commit.Unlock()

	if err := ctx.Err(); err != nil {
		return store.Wrap("commit", "", err)
	}
	if s.db.GetStatus() == StatusClosing {
		return store.Wrap("commit", "", store.ErrClosed)
	}

	used := map[*collection.Row]bool{}
	freed := map[string]bool{} // table + key
	taken := map[string]bool{}

	deletes := []*plannedWrite{}
	for _, change := range changes.Deletes {
		w, err := s.locate("delete", change, used)
		if err != nil {
			return err
		}
		freed[change.Schema.Name+"\x00"+change.Key] = true
		deletes = append(deletes, w)
	}

	updates := []*plannedWrite{}
	for _, change := range changes.Updates {
		w, err := s.locate("update", change, used)
		if err != nil {
			return err
		}
		newKey := change.Schema.Key(change.Record)
		if newKey != change.Key {
			freed[change.Schema.Name+"\x00"+change.Key] = true
			taken[change.Schema.Name+"\x00"+newKey] = true
		}
		updates = append(updates, w)
	}
	for _, w := range updates {
		newKey := w.change.Schema.Key(w.change.Record)
		if newKey == w.change.Key {
			continue
		}
		if _, exists := w.table.Collection.FindByKey(newKey); exists && !freed[w.change.Schema.Name+"\x00"+newKey] {
			return store.Wrap("update", w.change.Schema.Name, store.ErrConflict)
		}
	}

	for _, change := range changes.Inserts {
		if change.Key == "" {
			continue
		}
		id := change.Schema.Name + "\x00" + change.Key
		if taken[id] {
			return store.Wrap("insert", change.Schema.Name, store.ErrConflict)
		}
		taken[id] = true
		table, err := s.db.GetCollection(change.Schema.Name)
		if err != nil {
			continue
		}
		if _, exists := table.Collection.FindByKey(change.Key); exists && !freed[id] {
			return store.Wrap("insert", change.Schema.Name, store.ErrConflict)
		}
	}

	// apply
	touched := map[*Table]bool{}

	for _, w := range deletes {
		err := w.table.Collection.Remove(w.row)
		if err != nil {
			return store.Wrap("delete", w.change.Schema.Name, err)
		}
		touched[w.table] = true
	}

	for _, w := range updates {
		err := w.table.Collection.Patch(w.row, utils.CloneRecord(w.change.Diff))
		if err != nil {
			return store.Wrap("update", w.change.Schema.Name, translate(err))
		}
		touched[w.table] = true
	}

	for _, change := range changes.Inserts {
		table, err := s.table(change.Schema)
		if err != nil {
			return store.Wrap("insert", change.Schema.Name, err)
		}
		_, err = table.Collection.Insert(change.Record)
		if err != nil {
			return store.Wrap("insert", change.Schema.Name, translate(err))
		}
		touched[table] = true
	}

	for table := range touched {
		err := table.Collection.Sync()
		if err != nil {
			return store.Wrap("commit", table.Schema.Name, err)
		}
	}

	s.Committed()
	return nil
}

func (s *Session) Rollback(ctx context.Context) error {
	s.UnitOfWork.Rollback()
	return nil
}

// table returns the collection for sch, creating it if needed
func (s *Session) table(sch *schema.Schema) (*Table, error) {
	table, err := s.db.GetCollection(sch.Name)
	if err == nil {
		return table, nil
	}
	table, err = s.db.CreateCollection(sch)
	if errors.Is(err, ErrCollectionExists) {
		return s.db.GetCollection(sch.Name)
	}
	return table, err
}

// locate finds the stored row a delete or update refers to
func (s *Session) locate(op string, change *store.Change, used map[*collection.Row]bool) (*plannedWrite, error) {

	table, err := s.db.GetCollection(change.Schema.Name)
	if err != nil {
		return nil, store.Wrap(op, change.Schema.Name, store.ErrNotFound)
	}

	if change.Key != "" {
		row, found := table.Collection.FindByKey(change.Key)
		if !found || used[row] {
			return nil, store.Wrap(op, change.Schema.Name, store.ErrNotFound)
		}
		used[row] = true
		return &plannedWrite{table: table, change: change, row: row}, nil
	}

	var found *collection.Row
	table.Collection.Traverse(func(row *collection.Row) bool {
		if used[row] {
			return true
		}
		record, err := change.Schema.Coerce(row.Payload)
		if err != nil {
			return true
		}
		if reflect.DeepEqual(record, change.Original) {
			found = row
			return false
		}
		return true
	})
	if found == nil {
		return nil, store.Wrap(op, change.Schema.Name, store.ErrNotFound)
	}
	used[found] = true

	return &plannedWrite{table: table, change: change, row: found}, nil
}

func translate(err error) error {
	if errors.Is(err, collection.ErrIndexConflict) {
		return store.ErrConflict
	}
	if errors.Is(err, collection.ErrClosed) {
		return store.ErrClosed
	}
	if errors.Is(err, collection.ErrRowNotFound) {
		return store.ErrNotFound
	}
	return err
}
