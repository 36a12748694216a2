package boltstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
	"github.com/fulldump/recordset/store/storetest"
)

func TestBoltStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "data.bolt"))
	require.NoError(t, err)
	defer s.Close()

	storetest.TechnologyCompatibilityKit(t, func() store.Session {
		return s.NewSession()
	})
}

func TestReopen(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	filename := filepath.Join(t.TempDir(), "data.bolt")
	sch := storetest.Accounts()

	s, err := Open(filename)
	require.NoError(err)
	session := s.NewSession()
	require.NoError(session.Add(sch, schema.Record{"id": 1, "name": "Alice", "balance": 3}))
	require.NoError(session.Commit(ctx))
	require.NoError(s.Close())

	s, err = Open(filename)
	require.NoError(err)
	defer s.Close()

	records, err := s.NewSession().Query(ctx, sch, query.Filter{"id": 1})
	require.NoError(err)
	require.Equal([]schema.Record{{"id": int64(1), "name": "Alice", "balance": 3.0}}, records)
}

func TestPrimaryKeyChange(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()
	sch := storetest.Accounts()

	s, err := Open(filepath.Join(t.TempDir(), "data.bolt"))
	require.NoError(err)
	defer s.Close()

	seed := s.NewSession()
	seed.Add(sch, schema.Record{"id": 1, "name": "Alice"})
	seed.Add(sch, schema.Record{"id": 2, "name": "Bob"})
	require.NoError(seed.Commit(ctx))

	session := s.NewSession()
	records, err := session.Query(ctx, sch, query.Filter{"id": 1})
	require.NoError(err)

	records[0]["id"] = int64(2)
	require.ErrorIs(session.Commit(ctx), store.ErrConflict)
	require.NoError(session.Rollback(ctx))

	records[0]["id"] = int64(3)
	require.NoError(session.Commit(ctx))

	moved, err := s.NewSession().Query(ctx, sch, query.Filter{"id": 3})
	require.NoError(err)
	require.Len(moved, 1)
	require.Equal("Alice", moved[0]["name"])

	old, err := s.NewSession().Query(ctx, sch, query.Filter{"id": 1})
	require.NoError(err)
	require.Empty(old)
}
