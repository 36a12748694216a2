// Package sqlstore keeps tables in SQLite. Table definitions are derived
// from the schema and created on first use. Plain equality filters are
// resolved by SQLite, anything else is evaluated row by row.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
)

type Store struct {
	db      *sql.DB
	mutex   *sync.Mutex
	created map[string]bool
}

// Open opens a SQLite database, dsn is a file name or ":memory:"
func Open(dsn string) (*Store, error) {

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// a single connection keeps in memory databases alive and serialises
	// writers
	db.SetMaxOpenConns(1)

	err = db.Ping()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{
		db:      db,
		mutex:   &sync.Mutex{},
		created: map[string]bool{},
	}, nil
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

func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func sqlType(t string) string {
	switch t {
	case schema.TypeString:
		return "TEXT"
	case schema.TypeInt, schema.TypeBool:
		return "INTEGER"
	case schema.TypeFloat:
		return "REAL"
	}
	return "TEXT" // any, as JSON
}

func createTable(sch *schema.Schema) string {
	definitions := []string{}
	for _, column := range sch.Columns {
		definitions = append(definitions, quote(column.Name)+" "+sqlType(column.Type))
	}
	if keys := sch.PrimaryKeys(); len(keys) > 0 {
		quoted := make([]string, len(keys))
		for i, key := range keys {
			quoted[i] = quote(key)
		}
		definitions = append(definitions, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}
	return "CREATE TABLE IF NOT EXISTS " + quote(sch.Name) + " (" + strings.Join(definitions, ", ") + ")"
}

func (s *Store) ensureTable(ctx context.Context, sch *schema.Schema) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.created[sch.Name] {
		return nil
	}

	_, err := s.db.ExecContext(ctx, createTable(sch))
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	s.created[sch.Name] = true

	return nil
}

// encode converts a coerced value to its SQLite representation
func encode(column *schema.Column, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch column.Type {
	case schema.TypeBool:
		if value.(bool) {
			return int64(1), nil
		}
		return int64(0), nil
	case schema.TypeAny:
		data, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(data), nil
	}
	return value, nil
}

func decode(column *schema.Column, value any) (any, error) {
	if b, ok := value.([]byte); ok {
		value = string(b)
	}
	if value == nil {
		return nil, nil
	}
	switch column.Type {
	case schema.TypeBool:
		n, ok := value.(int64)
		if !ok {
			return nil, fmt.Errorf("column '%s': unexpected %T", column.Name, value)
		}
		return n != 0, nil
	case schema.TypeAny:
		text, ok := value.(string)
		if !ok {
			return value, nil
		}
		var result any
		err := json.Unmarshal([]byte(text), &result)
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", column.Name, err)
		}
		return result, nil
	}
	return value, nil
}

// where builds a condition matching every column of record. IS compares
// NULLs as equal values.
func where(sch *schema.Schema, record schema.Record, columns []string) (string, []any, error) {
	conditions := []string{}
	args := []any{}
	for _, name := range columns {
		column, _ := sch.Column(name)
		value, err := encode(column, record[name])
		if err != nil {
			return "", nil, err
		}
		conditions = append(conditions, quote(name)+" IS ?")
		args = append(args, value)
	}
	return strings.Join(conditions, " AND "), args, nil
}

func (s *Store) selectRecords(ctx context.Context, sch *schema.Schema, filter query.Filter) ([]schema.Record, error) {

	columns := make([]string, len(sch.Columns))
	for i, column := range sch.Columns {
		columns[i] = quote(column.Name)
	}

	statement := "SELECT " + strings.Join(columns, ", ") + " FROM " + quote(sch.Name)
	args := []any{}

	if values, ok := query.Equalities(filter); ok {
		pushed := []string{}
		for name, value := range values {
			column, exists := sch.Column(name)
			if !exists || column.Type == schema.TypeAny {
				continue
			}
			coerced, err := sch.Coerce(schema.Record{name: value})
			if err != nil {
				// can not be equal to any stored value of this column
				return []schema.Record{}, nil
			}
			encoded, err := encode(column, coerced[name])
			if err != nil {
				return nil, err
			}
			pushed = append(pushed, quote(name)+" IS ?")
			args = append(args, encoded)
		}
		if len(pushed) > 0 {
			statement += " WHERE " + strings.Join(pushed, " AND ")
		}
	}
	statement += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []schema.Record{}
	for rows.Next() {
		values := make([]any, len(sch.Columns))
		pointers := make([]any, len(sch.Columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		err := rows.Scan(pointers...)
		if err != nil {
			return nil, err
		}

		record := schema.Record{}
		for i, column := range sch.Columns {
			record[column.Name], err = decode(column, values[i])
			if err != nil {
				return nil, err
			}
		}
		record, err = sch.Coerce(record)
		if err != nil {
			return nil, err
		}

		match, err := query.Match(filter, record)
		if err != nil {
			return nil, err
		}
		if match {
			result = append(result, record)
		}
	}

	return result, rows.Err()
}
