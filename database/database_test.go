package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fulldump/biff"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
	"github.com/fulldump/recordset/store/storetest"
)

func Environment(t *testing.T, f func(db *Database)) {
	db := NewDatabase(&Config{Dir: t.TempDir()})
	biff.AssertNil(db.Load())
	defer db.Stop()
	f(db)
}

func accounts() *schema.Schema {
	return &schema.Schema{
		Name: "accounts",
		Columns: []*schema.Column{
			{Name: "id", Type: schema.TypeInt, PrimaryKey: true},
			{Name: "name", Type: schema.TypeString, Default: ""},
		},
	}
}

func TestSession(t *testing.T) {
	Environment(t, func(db *Database) {
		storetest.TechnologyCompatibilityKit(t, func() store.Session {
			return db.NewSession()
		})
	})
}

func TestDatabase_Status(t *testing.T) {

	db := NewDatabase(&Config{Dir: t.TempDir()})
	biff.AssertEqual(db.GetStatus(), StatusOpening)

	biff.AssertNil(db.Load())
	biff.AssertEqual(db.GetStatus(), StatusOperating)

	biff.AssertNil(db.Stop())
	biff.AssertEqual(db.GetStatus(), StatusClosing)
}

func TestDatabase_CreateCollection(t *testing.T) {
	Environment(t, func(db *Database) {

		table, err := db.CreateCollection(accounts())
		biff.AssertNil(err)
		biff.AssertEqual(table.Schema.Name, "accounts")

		_, err = db.CreateCollection(accounts())
		biff.AssertTrue(errors.Is(err, ErrCollectionExists))

		_, err = db.CreateCollection(&schema.Schema{Name: "../evil", Columns: []*schema.Column{{Name: "a"}}})
		biff.AssertNotNil(err)

		_, err = db.CreateCollection(&schema.Schema{Name: "empty"})
		biff.AssertTrue(errors.Is(err, schema.ErrInvalidSchema))

		biff.AssertEqual(len(db.ListCollections()), 1)
	})
}

func TestDatabase_DropCollection(t *testing.T) {
	Environment(t, func(db *Database) {

		db.CreateCollection(accounts())

		err := db.DropCollection("accounts")
		biff.AssertNil(err)

		_, err = db.GetCollection("accounts")
		biff.AssertTrue(errors.Is(err, ErrCollectionNotFound))
		_, statErr := os.Stat(filepath.Join(db.config.Dir, "accounts"+schemaSuffix))
		biff.AssertTrue(os.IsNotExist(statErr))

		err = db.DropCollection("accounts")
		biff.AssertTrue(errors.Is(err, ErrCollectionNotFound))
	})
}

func TestDatabase_Reload(t *testing.T) {

	ctx := context.Background()
	dir := t.TempDir()

	db := NewDatabase(&Config{Dir: dir})
	biff.AssertNil(db.Load())
	session := db.NewSession()
	session.Add(accounts(), schema.Record{"id": 1, "name": "Alice"})
	session.Add(accounts(), schema.Record{"id": 2, "name": "Bob"})
	biff.AssertNil(session.Commit(ctx))

	records, _ := session.Query(ctx, accounts(), query.Filter{"id": 2})
	records[0]["name"] = "Roberto"
	biff.AssertNil(session.Commit(ctx))
	biff.AssertNil(db.Stop())

	reopened := NewDatabase(&Config{Dir: dir})
	biff.AssertNil(reopened.Load())
	defer reopened.Stop()

	tables := reopened.ListCollections()
	biff.AssertEqual(len(tables), 1)
	biff.AssertEqual(tables[0].Schema.PrimaryKeys(), []string{"id"})

	records, err := reopened.NewSession().Query(ctx, accounts(), query.Filter{})
	biff.AssertNil(err)
	biff.AssertEqual(records, []schema.Record{
		{"id": int64(1), "name": "Alice"},
		{"id": int64(2), "name": "Roberto"},
	})
}

func TestSession_ClosedDatabase(t *testing.T) {

	db := NewDatabase(&Config{Dir: t.TempDir()})
	db.Load()
	db.Stop()

	_, err := db.NewSession().Query(context.Background(), accounts(), query.Filter{})

	biff.AssertTrue(errors.Is(err, store.ErrClosed))
}

func TestSession_PrimaryKeyLookup(t *testing.T) {
	Environment(t, func(db *Database) {

		ctx := context.Background()
		session := db.NewSession()
		for i := 1; i <= 3; i++ {
			session.Add(accounts(), schema.Record{"id": i, "name": "n"})
		}
		biff.AssertNil(session.Commit(ctx))

		records, err := db.NewSession().Query(ctx, accounts(), query.Filter{"id": 2, "name": "n"})
		biff.AssertNil(err)
		biff.AssertEqual(len(records), 1)

		records, err = db.NewSession().Query(ctx, accounts(), query.Filter{"id": 2, "name": "x"})
		biff.AssertNil(err)
		biff.AssertEqual(len(records), 0)
	})
}
