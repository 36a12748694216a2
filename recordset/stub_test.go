package recordset

import (
	"context"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
)

// stubSession records every call and answers queries from a fixed list
type stubSession struct {
	records   []schema.Record
	commitErr error

	queries   []query.Filter
	added     []schema.Record
	deleted   []schema.Record
	commits   int
	rollbacks int
}

var _ store.Session = (*stubSession)(nil)

func (s *stubSession) Query(ctx context.Context, sch *schema.Schema, filter query.Filter) ([]schema.Record, error) {
	s.queries = append(s.queries, filter)
	result := []schema.Record{}
	for _, record := range s.records {
		match, err := query.Match(filter, record)
		if err != nil {
			return nil, err
		}
		if match {
			result = append(result, record)
		}
	}
	return result, nil
}

func (s *stubSession) Add(sch *schema.Schema, record schema.Record) error {
	s.added = append(s.added, record)
	return nil
}

func (s *stubSession) Delete(sch *schema.Schema, record schema.Record) error {
	s.deleted = append(s.deleted, record)
	return nil
}

func (s *stubSession) Commit(ctx context.Context) error {
	s.commits++
	if s.commitErr != nil {
		return store.Wrap("commit", "", s.commitErr)
	}
	return nil
}

func (s *stubSession) Rollback(ctx context.Context) error {
	s.rollbacks++
	return nil
}

func accounts() *schema.Schema {
	return &schema.Schema{
		Name: "accounts",
		Columns: []*schema.Column{
			{Name: "id", Type: schema.TypeInt, PrimaryKey: true},
			{Name: "name", Type: schema.TypeString, Default: ""},
			{Name: "balance", Type: schema.TypeFloat, Default: 0.0},
		},
	}
}
