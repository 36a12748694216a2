package service

import (
	"context"
	"errors"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
)

var (
	ErrorTableNotFound      = errors.New("table not found")
	ErrorTableAlreadyExists = errors.New("table already exists")
	ErrorConflict           = errors.New("primary key already exists")
	ErrorNotApplied         = errors.New("changes could not be applied")
)

type Servicer interface {
	CreateTable(s *schema.Schema) (*Table, error)
	GetTable(ctx context.Context, name string) (*Table, error)
	ListTables(ctx context.Context) ([]*Table, error)
	DropTable(name string) error

	Find(ctx context.Context, name string, filter query.Filter, skip, limit int) ([]schema.Record, error)
	Insert(ctx context.Context, name string, records []schema.Record) ([]schema.Record, error)
	Upsert(ctx context.Context, name string, records []schema.Record) ([]schema.Record, error)
	Remove(ctx context.Context, name string, filter query.Filter) ([]schema.Record, error)
	Patch(ctx context.Context, name string, filter query.Filter, patch map[string]any) ([]schema.Record, error)
}

type Table struct {
	Name        string           `json:"name"`
	Columns     []*schema.Column `json:"columns"`
	PrimaryKeys []string         `json:"primary_keys"`
	Total       int              `json:"total"`
}
