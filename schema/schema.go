package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is the payload of one row, column name -> value
type Record = map[string]any

const (
	TypeString = "string"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeBool   = "bool"
	TypeAny    = "any"
)

// Special defaults, evaluated every time a new record is created
const (
	DefaultUUID     = "uuid()"
	DefaultUnixNano = "unixnano()"
)

var ErrInvalidSchema = errors.New("invalid schema")

type Column struct {
	Name       string `json:"name" yaml:"name"`
	Type       string `json:"type" yaml:"type"`
	Default    any    `json:"default,omitempty" yaml:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
}

// Schema describes one entity type: the table name and its columns in
// declaration order.
type Schema struct {
	Name    string    `json:"name" yaml:"name"`
	Columns []*Column `json:"columns" yaml:"columns"`
}

func invalid(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidSchema, fmt.Sprintf(format, a...))
}

func (s *Schema) Validate() error {

	if s == nil {
		return invalid("nil schema")
	}

	if strings.TrimSpace(s.Name) == "" {
		return invalid("name is mandatory")
	}

	if len(s.Columns) == 0 {
		return invalid("table '%s' has no columns", s.Name)
	}

	seen := map[string]bool{}
	for i, column := range s.Columns {
		if column == nil || column.Name == "" {
			return invalid("column %d has no name", i)
		}
		if strings.HasPrefix(column.Name, "_") {
			return invalid("column '%s' is reserved", column.Name)
		}
		if seen[column.Name] {
			return invalid("column '%s' is duplicated", column.Name)
		}
		seen[column.Name] = true

		switch column.Type {
		case "":
			column.Type = TypeAny
		case TypeString, TypeInt, TypeFloat, TypeBool, TypeAny:
		default:
			return invalid("column '%s' has unknown type '%s'", column.Name, column.Type)
		}

		if isSpecialDefault(column.Default) {
			continue
		}
		_, err := coerceValue(column.Type, column.Default)
		if err != nil {
			return invalid("column '%s' default: %s", column.Name, err.Error())
		}
	}

	return nil
}

func (s *Schema) Column(name string) (*Column, bool) {
	for _, column := range s.Columns {
		if column.Name == name {
			return column, true
		}
	}
	return nil, false
}

func (s *Schema) ColumnNames() []string {
	names := make([]string, 0, len(s.Columns))
	for _, column := range s.Columns {
		names = append(names, column.Name)
	}
	return names
}

func (s *Schema) PrimaryKeys() []string {
	keys := []string{}
	for _, column := range s.Columns {
		if column.PrimaryKey {
			keys = append(keys, column.Name)
		}
	}
	return keys
}

// NewRecord returns a record with every column initialized to its default.
func (s *Schema) NewRecord() Record {
	record := make(Record, len(s.Columns))
	for _, column := range s.Columns {
		record[column.Name] = column.newDefault()
	}
	return record
}

func isSpecialDefault(v any) bool {
	return v == DefaultUUID || v == DefaultUnixNano
}

func (c *Column) newDefault() any {
	switch c.Default {
	case DefaultUUID:
		return uuid.NewString()
	case DefaultUnixNano:
		return time.Now().UnixNano()
	case nil:
		return zeroValue(c.Type)
	}

	value, err := coerceValue(c.Type, c.Default)
	if err != nil {
		// Validate already checked it
		return c.Default
	}
	return value
}

func zeroValue(t string) any {
	switch t {
	case TypeString:
		return ""
	case TypeInt:
		return int64(0)
	case TypeFloat:
		return float64(0)
	case TypeBool:
		return false
	}
	return nil
}

// Coerce returns a new record holding only the declared columns, with values
// converted to the column types. Missing columns are set to nil.
func (s *Schema) Coerce(record Record) (Record, error) {
	result := make(Record, len(s.Columns))
	for _, column := range s.Columns {
		value, err := coerceValue(column.Type, record[column.Name])
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", column.Name, err)
		}
		result[column.Name] = value
	}
	return result, nil
}

// Key returns a stable string for the primary key values of record. It is
// empty when the schema declares no primary key.
func (s *Schema) Key(record Record) string {
	keys := s.PrimaryKeys()
	if len(keys) == 0 {
		return ""
	}

	values := make([]any, len(keys))
	for i, key := range keys {
		column, _ := s.Column(key)
		value, err := coerceValue(column.Type, record[key])
		if err != nil {
			value = record[key]
		}
		values[i] = value
	}

	b, err := json.Marshal(values)
	if err != nil {
		return fmt.Sprint(values...)
	}
	return string(b)
}
