// Package storetest holds the compatibility suite every store backend must
// pass.
package storetest

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
)

// Accounts returns a fresh schema with a unique table name
func Accounts() *schema.Schema {
	s := &schema.Schema{
		Name: "accounts_" + strings.ReplaceAll(uuid.NewString()[:8], "-", ""),
		Columns: []*schema.Column{
			{Name: "id", Type: schema.TypeInt, PrimaryKey: true},
			{Name: "name", Type: schema.TypeString, Default: ""},
			{Name: "balance", Type: schema.TypeFloat, Default: 0.0},
		},
	}
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

// Logs returns a fresh schema without primary key
func Logs() *schema.Schema {
	s := &schema.Schema{
		Name: "logs_" + strings.ReplaceAll(uuid.NewString()[:8], "-", ""),
		Columns: []*schema.Column{
			{Name: "level", Type: schema.TypeString},
			{Name: "message", Type: schema.TypeString},
		},
	}
	if err := s.Validate(); err != nil {
		panic(err)
	}
	return s
}

// TechnologyCompatibilityKit runs the suite. newSession must return sessions
// over the same backing store.
func TechnologyCompatibilityKit(t *testing.T, newSession func() store.Session) {
	t.Run("AddCommitQuery", func(t *testing.T) { testAddCommitQuery(t, newSession) })
	t.Run("QueryFilter", func(t *testing.T) { testQueryFilter(t, newSession) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newSession) })
	t.Run("InPlaceUpdate", func(t *testing.T) { testInPlaceUpdate(t, newSession) })
	t.Run("Conflict", func(t *testing.T) { testConflict(t, newSession) })
	t.Run("Rollback", func(t *testing.T) { testRollback(t, newSession) })
	t.Run("IdentityMap", func(t *testing.T) { testIdentityMap(t, newSession) })
	t.Run("NoPrimaryKey", func(t *testing.T) { testNoPrimaryKey(t, newSession) })
	t.Run("IntKeys", func(t *testing.T) { testIntKeys(t, newSession) })
}

func seed(t *testing.T, newSession func() store.Session, s *schema.Schema, records ...schema.Record) {
	session := newSession()
	for _, record := range records {
		require.NoError(t, session.Add(s, record))
	}
	require.NoError(t, session.Commit(context.Background()))
}

func testAddCommitQuery(t *testing.T, newSession func() store.Session) {
	require := require.New(t)
	ctx := context.Background()
	s := Accounts()

	seed(t, newSession, s,
		schema.Record{"id": 1, "name": "Alice", "balance": 10},
		schema.Record{"id": 2, "name": "Bob", "balance": 20.5},
	)

	records, err := newSession().Query(ctx, s, query.Filter{})
	require.NoError(err)
	require.Len(records, 2)

	byID := map[int64]schema.Record{}
	for _, record := range records {
		byID[record["id"].(int64)] = record
	}
	require.Equal(schema.Record{"id": int64(1), "name": "Alice", "balance": 10.0}, byID[1])
	require.Equal(schema.Record{"id": int64(2), "name": "Bob", "balance": 20.5}, byID[2])
}

func testQueryFilter(t *testing.T, newSession func() store.Session) {
	require := require.New(t)
	ctx := context.Background()
	s := Accounts()

	seed(t, newSession, s,
		schema.Record{"id": 1, "name": "Alice", "balance": 10.0},
		schema.Record{"id": 2, "name": "Bob", "balance": 20.0},
		schema.Record{"id": 3, "name": "Carol", "balance": 30.0},
	)

	records, err := newSession().Query(ctx, s, query.Filter{"name": "Bob"})
	require.NoError(err)
	require.Len(records, 1)
	require.Equal(int64(2), records[0]["id"])

	records, err = newSession().Query(ctx, s, query.Filter{"balance": query.Filter{"$gt": 15.0}})
	require.NoError(err)
	require.Len(records, 2)

	records, err = newSession().Query(ctx, s, query.Filter{"id": 99})
	require.NoError(err)
	require.Len(records, 0)
}

func testDelete(t *testing.T, newSession func() store.Session) {
	require := require.New(t)
	ctx := context.Background()
	s := Accounts()

	seed(t, newSession, s,
		schema.Record{"id": 1, "name": "Alice"},
		schema.Record{"id": 2, "name": "Bob"},
	)

	session := newSession()
	records, err := session.Query(ctx, s, query.Filter{"id": 1})
	require.NoError(err)
	require.Len(records, 1)
	require.NoError(session.Delete(s, records[0]))
	require.NoError(session.Commit(ctx))

	records, err = newSession().Query(ctx, s, nil)
	require.NoError(err)
	require.Len(records, 1)
	require.Equal("Bob", records[0]["name"])
}

func testInPlaceUpdate(t *testing.T, newSession func() store.Session) {
	require := require.New(t)
	ctx := context.Background()
	s := Accounts()

	seed(t, newSession, s, schema.Record{"id": 1, "name": "Alice", "balance": 1.0})

	session := newSession()
	records, err := session.Query(ctx, s, nil)
	require.NoError(err)
	records[0]["balance"] = 99.0
	require.NoError(session.Commit(ctx))

	check, err := newSession().Query(ctx, s, nil)
	require.NoError(err)
	require.Equal(99.0, check[0]["balance"])

	// the session keeps tracking the record after commit
	records[0]["name"] = "Alicia"
	require.NoError(session.Commit(ctx))

	check, err = newSession().Query(ctx, s, nil)
	require.NoError(err)
	require.Equal(schema.Record{"id": int64(1), "name": "Alicia", "balance": 99.0}, check[0])
}

func testConflict(t *testing.T, newSession func() store.Session) {
	require := require.New(t)
	ctx := context.Background()
	s := Accounts()

	seed(t, newSession, s, schema.Record{"id": 1, "name": "Alice"})

	session := newSession()
	require.NoError(session.Add(s, schema.Record{"id": 2, "name": "Bob"}))
	require.NoError(session.Add(s, schema.Record{"id": 1, "name": "Impostor"}))

	err := session.Commit(ctx)
	require.Error(err)
	require.True(store.IsStoreError(err))
	require.ErrorIs(err, store.ErrConflict)
	require.NoError(session.Rollback(ctx))

	// nothing of the failed batch was written
	records, err := newSession().Query(ctx, s, nil)
	require.NoError(err)
	require.Len(records, 1)
	require.Equal("Alice", records[0]["name"])
}

func testRollback(t *testing.T, newSession func() store.Session) {
	require := require.New(t)
	ctx := context.Background()
	s := Accounts()

	seed(t, newSession, s, schema.Record{"id": 1, "name": "Alice"})

	session := newSession()
	records, err := session.Query(ctx, s, nil)
	require.NoError(err)
	records[0]["name"] = "Changed"
	require.NoError(session.Add(s, schema.Record{"id": 2, "name": "Bob"}))

	require.NoError(session.Rollback(ctx))
	require.Equal("Alice", records[0]["name"])

	// a commit after rollback writes nothing
	require.NoError(session.Commit(ctx))

	records, err = newSession().Query(ctx, s, nil)
	require.NoError(err)
	require.Len(records, 1)
	require.Equal("Alice", records[0]["name"])
}

func testIdentityMap(t *testing.T, newSession func() store.Session) {
	require := require.New(t)
	ctx := context.Background()
	s := Accounts()

	seed(t, newSession, s, schema.Record{"id": 1, "name": "Alice"})

	session := newSession()
	first, err := session.Query(ctx, s, nil)
	require.NoError(err)
	first[0]["name"] = "Pending"

	second, err := session.Query(ctx, s, query.Filter{"id": 1})
	require.NoError(err)
	require.Len(second, 1)
	require.Equal("Pending", second[0]["name"])
}

func testNoPrimaryKey(t *testing.T, newSession func() store.Session) {
	require := require.New(t)
	ctx := context.Background()
	s := Logs()

	seed(t, newSession, s,
		schema.Record{"level": "info", "message": "started"},
		schema.Record{"level": "error", "message": "failed"},
		schema.Record{"level": "info", "message": "started"},
	)

	session := newSession()
	records, err := session.Query(ctx, s, query.Filter{"level": "info"})
	require.NoError(err)
	require.Len(records, 2)

	require.NoError(session.Delete(s, records[0]))
	require.NoError(session.Commit(ctx))

	records, err = newSession().Query(ctx, s, nil)
	require.NoError(err)
	require.Len(records, 2)
}

// testIntKeys checks that keys written as Go ints find the int64 values the
// store gives back.
func testIntKeys(t *testing.T, newSession func() store.Session) {
	require := require.New(t)
	ctx := context.Background()
	s := Accounts()

	seed(t, newSession, s,
		schema.Record{"id": 7, "name": "Alice"},
		schema.Record{"id": 8, "name": "Bob"},
	)

	for _, filter := range []query.Filter{
		{"id": 7},
		{"id": int64(7)},
		{"id": 7.0},
		{"id": query.Filter{"$in": []any{7, 9}}},
	} {
		records, err := newSession().Query(ctx, s, filter)
		require.NoError(err)
		require.Len(records, 1, "filter %v", filter)
		require.Equal(int64(7), records[0]["id"])
	}

	session := newSession()
	records, err := session.Query(ctx, s, query.Filter{"id": 8})
	require.NoError(err)
	require.Len(records, 1)
	require.NoError(session.Delete(s, records[0]))
	require.NoError(session.Commit(ctx))

	records, err = newSession().Query(ctx, s, query.Filter{})
	require.NoError(err)
	require.Len(records, 1)
}
