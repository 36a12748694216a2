// Package boltstore keeps every table in a bbolt bucket. Records are stored
// as JSON under their primary key, or under a sequence number when the table
// has no primary key.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
)

type Store struct {
	db *bolt.DB
}

func Open(filename string) (*Store, error) {
	db, err := bolt.Open(filename, 0666, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) NewSession() *Session {
	return &Session{
		UnitOfWork: store.NewUnitOfWork(),
		store:      s,
	}
}

type Session struct {
	*store.UnitOfWork
	store *Store
}

var _ store.Session = (*Session)(nil)

func sequenceKey(n uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)
	return key
}

func decode(sch *schema.Schema, data []byte) (schema.Record, error) {
	record := schema.Record{}
	err := json.Unmarshal(data, &record)
	if err != nil {
		return nil, err
	}
	return sch.Coerce(record)
}

func (s *Session) Query(ctx context.Context, sch *schema.Schema, filter query.Filter) ([]schema.Record, error) {

	result := []schema.Record{}

	err := s.store.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(sch.Name))
		if bucket == nil {
			return nil
		}

		visit := func(data []byte) error {
			record, err := decode(sch, data)
			if err != nil {
				return err
			}
			match, err := query.Match(filter, record)
			if err != nil {
				return err
			}
			if match {
				result = append(result, record)
			}
			return nil
		}

		if values, ok := query.Equalities(filter); ok && coversKey(sch, values) {
			data := bucket.Get([]byte(sch.Key(values)))
			if data == nil {
				return nil
			}
			return visit(data)
		}

		return bucket.ForEach(func(k, v []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return visit(v)
		})
	})
	if err != nil {
		return nil, store.Wrap("query", sch.Name, err)
	}

	for i, record := range result {
		result[i] = s.Track(sch, record)
	}

	return result, nil
}

func coversKey(sch *schema.Schema, values map[string]any) bool {
	keys := sch.PrimaryKeys()
	if len(keys) == 0 {
		return false
	}
	for _, key := range keys {
		if _, ok := values[key]; !ok {
			return false
		}
	}
	return true
}

// locate returns the bucket key of the stored record a change refers to
func locate(bucket *bolt.Bucket, change *store.Change, used map[string]bool) ([]byte, error) {

	if bucket == nil {
		return nil, store.ErrNotFound
	}

	if change.Key != "" {
		key := []byte(change.Key)
		if bucket.Get(key) == nil || used[change.Key] {
			return nil, store.ErrNotFound
		}
		used[change.Key] = true
		return key, nil
	}

	var found []byte
	err := bucket.ForEach(func(k, v []byte) error {
		if found != nil || used[string(k)] {
			return nil
		}
		record, err := decode(change.Schema, v)
		if err != nil {
			return err
		}
		if reflect.DeepEqual(record, change.Original) {
			found = bytes.Clone(k)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	used[string(found)] = true

	return found, nil
}

// Commit writes every change in a single bolt transaction
func (s *Session) Commit(ctx context.Context) error {

	changes, err := s.Changes()
	if err != nil {
		return err
	}
	if changes.Empty() {
		s.Committed()
		return nil
	}

	if err := ctx.Err(); err != nil {
		return store.Wrap("commit", "", err)
	}

	err = s.store.db.Update(func(tx *bolt.Tx) error {

		// keys already matched by a previous change, per table
		used := map[string]map[string]bool{}
		usedBy := func(name string) map[string]bool {
			if used[name] == nil {
				used[name] = map[string]bool{}
			}
			return used[name]
		}

		for _, change := range changes.Deletes {
			name := change.Schema.Name
			bucket := tx.Bucket([]byte(name))
			key, err := locate(bucket, change, usedBy(name))
			if err != nil {
				return store.Wrap("delete", name, err)
			}
			err = bucket.Delete(key)
			if err != nil {
				return store.Wrap("delete", name, err)
			}
		}

		for _, change := range changes.Updates {
			name := change.Schema.Name
			bucket := tx.Bucket([]byte(name))
			key, err := locate(bucket, change, usedBy(name))
			if err != nil {
				return store.Wrap("update", name, err)
			}

			data, err := json.Marshal(change.Record)
			if err != nil {
				return store.Wrap("update", name, err)
			}

			newKey := change.Schema.Key(change.Record)
			if change.Key != "" && newKey != change.Key {
				if bucket.Get([]byte(newKey)) != nil {
					return store.Wrap("update", name, store.ErrConflict)
				}
				err = bucket.Delete(key)
				if err != nil {
					return store.Wrap("update", name, err)
				}
				key = []byte(newKey)
			}

			err = bucket.Put(key, data)
			if err != nil {
				return store.Wrap("update", name, err)
			}
		}

		for _, change := range changes.Inserts {
			name := change.Schema.Name
			bucket, err := tx.CreateBucketIfNotExists([]byte(name))
			if err != nil {
				return store.Wrap("insert", name, err)
			}

			var key []byte
			if change.Key != "" {
				key = []byte(change.Key)
				if bucket.Get(key) != nil {
					return store.Wrap("insert", name, store.ErrConflict)
				}
			} else {
				n, err := bucket.NextSequence()
				if err != nil {
					return store.Wrap("insert", name, err)
				}
				key = sequenceKey(n)
			}

			data, err := json.Marshal(change.Record)
			if err != nil {
				return store.Wrap("insert", name, err)
			}
			err = bucket.Put(key, data)
			if err != nil {
				return store.Wrap("insert", name, err)
			}
		}

		return nil
	})
	if err != nil {
		return store.Wrap("commit", "", err)
	}

	s.Committed()
	return nil
}

func (s *Session) Rollback(ctx context.Context) error {
	s.UnitOfWork.Rollback()
	return nil
}
