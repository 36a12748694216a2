// Package memstore is a store kept in memory. Useful for tests and for
// recordsets that do not need durability.
package memstore

import (
	"context"
	"reflect"
	"sync"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
	"github.com/fulldump/recordset/utils"
)

type Store struct {
	mutex  *sync.RWMutex
	tables map[string][]schema.Record
}

func New() *Store {
	return &Store{
		mutex:  &sync.RWMutex{},
		tables: map[string][]schema.Record{},
	}
}

// Len returns the number of records stored in table
func (m *Store) Len(table string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.tables[table])
}

func (m *Store) NewSession() *Session {
	return &Session{
		store:      m,
		UnitOfWork: store.NewUnitOfWork(),
	}
}

type Session struct {
	*store.UnitOfWork
	store *Store
}

var _ store.Session = (*Session)(nil)

func (s *Session) Query(ctx context.Context, sch *schema.Schema, filter query.Filter) ([]schema.Record, error) {

	s.store.mutex.RLock()
	rows := s.store.tables[sch.Name]
	s.store.mutex.RUnlock()

	result := []schema.Record{}
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, store.Wrap("query", sch.Name, err)
		}
		match, err := query.Match(filter, row)
		if err != nil {
			return nil, store.Wrap("query", sch.Name, err)
		}
		if !match {
			continue
		}
		result = append(result, s.Track(sch, utils.CloneRecord(row)))
	}

	return result, nil
}

func (s *Session) Commit(ctx context.Context) error {

	changes, err := s.Changes()
	if err != nil {
		return err
	}

	s.store.mutex.Lock()
	defer s.store.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return store.Wrap("commit", "", err)
	}

	// work on copies so a failure leaves every table untouched
	next := map[string][]schema.Record{}
	table := func(sch *schema.Schema) []schema.Record {
		rows, ok := next[sch.Name]
		if !ok {
			rows = append([]schema.Record{}, s.store.tables[sch.Name]...)
			next[sch.Name] = rows
		}
		return rows
	}

	for _, change := range changes.Deletes {
		rows := table(change.Schema)
		i := find(rows, change)
		if i < 0 {
			return store.Wrap("delete", change.Schema.Name, store.ErrNotFound)
		}
		next[change.Schema.Name] = append(rows[:i], rows[i+1:]...)
	}

	for _, change := range changes.Updates {
		rows := table(change.Schema)
		i := find(rows, change)
		if i < 0 {
			return store.Wrap("update", change.Schema.Name, store.ErrNotFound)
		}
		rows[i] = utils.CloneRecord(change.Record)
	}

	for _, change := range changes.Inserts {
		rows := table(change.Schema)
		if change.Key != "" && find(rows, change) >= 0 {
			return store.Wrap("insert", change.Schema.Name, store.ErrConflict)
		}
		next[change.Schema.Name] = append(rows, utils.CloneRecord(change.Record))
	}

	for name, rows := range next {
		s.store.tables[name] = rows
	}

	s.Committed()
	return nil
}

func (s *Session) Rollback(ctx context.Context) error {
	s.UnitOfWork.Rollback()
	return nil
}

func find(rows []schema.Record, change *store.Change) int {
	for i, row := range rows {
		if change.Key != "" {
			if change.Schema.Key(row) == change.Key {
				return i
			}
			continue
		}
		if reflect.DeepEqual(row, change.Original) {
			return i
		}
	}
	return -1
}
