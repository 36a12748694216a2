package store

import (
	"fmt"
	"reflect"

	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/utils"
)

type Change struct {
	Schema   *schema.Schema
	Key      string        // primary key, empty for tables without primary key
	Record   schema.Record // values to write, coerced to the schema
	Original schema.Record // values as loaded (updates and deletes)
	Diff     schema.Record // merge patch from Original to Record (updates)
}

type Changes struct {
	Inserts []*Change
	Updates []*Change
	Deletes []*Change
}

func (c *Changes) Empty() bool {
	return len(c.Inserts) == 0 && len(c.Updates) == 0 && len(c.Deletes) == 0
}

type tracked struct {
	schema   *schema.Schema
	record   schema.Record
	snapshot schema.Record
}

type staged struct {
	schema *schema.Schema
	record schema.Record
}

// UnitOfWork keeps the identity map and the pending operations of a session.
// Backends embed it and only deal with reading and applying Changes.
// It is not safe for concurrent use.
type UnitOfWork struct {
	tracked  []*tracked
	byKey    map[string]*tracked // table + primary key
	byRecord map[uintptr]*tracked
	added    []*staged
	deleted  []*staged
}

func NewUnitOfWork() *UnitOfWork {
	u := &UnitOfWork{}
	u.reset()
	return u
}

func (u *UnitOfWork) reset() {
	u.tracked = []*tracked{}
	u.byKey = map[string]*tracked{}
	u.byRecord = map[uintptr]*tracked{}
	u.added = []*staged{}
	u.deleted = []*staged{}
}

func identity(record schema.Record) uintptr {
	return reflect.ValueOf(record).Pointer()
}

func identityKey(s *schema.Schema, key string) string {
	return s.Name + "\x00" + key
}

// Track registers a record loaded from the store and returns the instance the
// caller must use. If a record with the same primary key is already tracked
// that instance is returned, pending modifications included.
func (u *UnitOfWork) Track(s *schema.Schema, record schema.Record) schema.Record {

	key := s.Key(record)
	if key != "" {
		if t, exists := u.byKey[identityKey(s, key)]; exists {
			return t.record
		}
	}

	t := &tracked{
		schema:   s,
		record:   record,
		snapshot: utils.CloneRecord(record),
	}
	u.tracked = append(u.tracked, t)
	u.byRecord[identity(record)] = t
	if key != "" {
		u.byKey[identityKey(s, key)] = t
	}

	return record
}

func (u *UnitOfWork) Add(s *schema.Schema, record schema.Record) error {
	if record == nil {
		return fmt.Errorf("add: nil record")
	}
	u.added = append(u.added, &staged{schema: s, record: record})
	return nil
}

// Delete stages the removal of record. Deleting a record added in this same
// unit of work just forgets the addition.
func (u *UnitOfWork) Delete(s *schema.Schema, record schema.Record) error {
	if record == nil {
		return fmt.Errorf("delete: nil record")
	}

	for i, a := range u.added {
		if identity(a.record) == identity(record) {
			u.added = append(u.added[:i], u.added[i+1:]...)
			return nil
		}
	}

	u.deleted = append(u.deleted, &staged{schema: s, record: record})
	return nil
}

// Changes computes everything a commit has to write. Updates are detected by
// comparing tracked records with the snapshot taken when they were loaded.
func (u *UnitOfWork) Changes() (*Changes, error) {

	changes := &Changes{
		Inserts: []*Change{},
		Updates: []*Change{},
		Deletes: []*Change{},
	}

	deleted := map[uintptr]bool{}

	for _, d := range u.deleted {
		deleted[identity(d.record)] = true

		original := d.record
		if t, ok := u.byRecord[identity(d.record)]; ok {
			original = t.snapshot
		}
		record, err := d.schema.Coerce(original)
		if err != nil {
			return nil, Wrap("delete", d.schema.Name, err)
		}
		changes.Deletes = append(changes.Deletes, &Change{
			Schema:   d.schema,
			Key:      d.schema.Key(record),
			Record:   record,
			Original: record,
		})
	}

	for _, a := range u.added {
		record, err := a.schema.Coerce(a.record)
		if err != nil {
			return nil, Wrap("insert", a.schema.Name, err)
		}
		changes.Inserts = append(changes.Inserts, &Change{
			Schema: a.schema,
			Key:    a.schema.Key(record),
			Record: record,
		})
	}

	for _, t := range u.tracked {
		if deleted[identity(t.record)] {
			continue
		}
		original, err := t.schema.Coerce(t.snapshot)
		if err != nil {
			return nil, Wrap("update", t.schema.Name, err)
		}
		current, err := t.schema.Coerce(t.record)
		if err != nil {
			return nil, Wrap("update", t.schema.Name, err)
		}
		diff, hasDiff := utils.MergeDiff(original, current)
		if !hasDiff {
			continue
		}
		changes.Updates = append(changes.Updates, &Change{
			Schema:   t.schema,
			Key:      t.schema.Key(original),
			Record:   current,
			Original: original,
			Diff:     diff,
		})
	}

	return changes, nil
}

// Committed must be called by the backend once Changes are durable: added
// records become tracked and snapshots are refreshed.
func (u *UnitOfWork) Committed() {

	deleted := map[uintptr]bool{}
	for _, d := range u.deleted {
		deleted[identity(d.record)] = true
	}

	previous := u.tracked
	added := u.added
	u.reset()

	for _, t := range previous {
		if deleted[identity(t.record)] {
			continue
		}
		u.Track(t.schema, t.record)
	}
	for _, a := range added {
		u.Track(a.schema, a.record)
	}
}

// Rollback discards staged operations and restores tracked records to the
// values they had when loaded.
func (u *UnitOfWork) Rollback() {
	for _, t := range u.tracked {
		for k := range t.record {
			delete(t.record, k)
		}
		for k, v := range t.snapshot {
			t.record[k] = utils.CloneJSONValue(v)
		}
	}
	u.added = []*staged{}
	u.deleted = []*staged{}
}

// Pending reports whether there is something to commit
func (u *UnitOfWork) Pending() bool {
	changes, err := u.Changes()
	if err != nil {
		return true
	}
	return !changes.Empty()
}
