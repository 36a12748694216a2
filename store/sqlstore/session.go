package sqlstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
)

type Session struct {
	*store.UnitOfWork
	store *Store
}

var _ store.Session = (*Session)(nil)

func (s *Session) Query(ctx context.Context, sch *schema.Schema, filter query.Filter) ([]schema.Record, error) {

	err := s.store.ensureTable(ctx, sch)
	if err != nil {
		return nil, store.Wrap("query", sch.Name, err)
	}

	records, err := s.store.selectRecords(ctx, sch, filter)
	if err != nil {
		return nil, store.Wrap("query", sch.Name, err)
	}

	for i, record := range records {
		records[i] = s.Track(sch, record)
	}

	return records, nil
}

// Commit writes every change in a single transaction
func (s *Session) Commit(ctx context.Context) error {

	changes, err := s.Changes()
	if err != nil {
		return err
	}
	if changes.Empty() {
		s.Committed()
		return nil
	}

	// tables are created outside the transaction, the store has a single
	// connection
	for _, group := range [][]*store.Change{changes.Inserts, changes.Deletes} {
		for _, change := range group {
			err := s.store.ensureTable(ctx, change.Schema)
			if err != nil {
				return store.Wrap("commit", change.Schema.Name, err)
			}
		}
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return store.Wrap("commit", "", err)
	}

	err = apply(ctx, tx, changes)
	if err != nil {
		tx.Rollback()
		return err
	}

	err = tx.Commit()
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

// match returns the condition locating the stored row of a change: the
// primary key, or every column and only the first such row when there is no
// primary key.
func match(change *store.Change) (string, []any, error) {
	sch := change.Schema
	if keys := sch.PrimaryKeys(); len(keys) > 0 {
		return where(sch, change.Original, keys)
	}
	condition, args, err := where(sch, change.Original, sch.ColumnNames())
	if err != nil {
		return "", nil, err
	}
	return "rowid = (SELECT rowid FROM " + quote(sch.Name) + " WHERE " + condition + " ORDER BY rowid LIMIT 1)", args, nil
}

func affectedOne(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func exists(ctx context.Context, tx *sql.Tx, sch *schema.Schema, record schema.Record) (bool, error) {
	condition, args, err := where(sch, record, sch.PrimaryKeys())
	if err != nil {
		return false, err
	}
	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM "+quote(sch.Name)+" WHERE "+condition+" LIMIT 1", args...).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func apply(ctx context.Context, tx *sql.Tx, changes *store.Changes) error {

	for _, change := range changes.Deletes {
		sch := change.Schema
		condition, args, err := match(change)
		if err != nil {
			return store.Wrap("delete", sch.Name, err)
		}
		result, err := tx.ExecContext(ctx, "DELETE FROM "+quote(sch.Name)+" WHERE "+condition, args...)
		if err != nil {
			return store.Wrap("delete", sch.Name, err)
		}
		err = affectedOne(result)
		if err != nil {
			return store.Wrap("delete", sch.Name, err)
		}
	}

	for _, change := range changes.Updates {
		sch := change.Schema
		if key := sch.Key(change.Record); key != change.Key {
			found, err := exists(ctx, tx, sch, change.Record)
			if err != nil {
				return store.Wrap("update", sch.Name, err)
			}
			if found {
				return store.Wrap("update", sch.Name, store.ErrConflict)
			}
		}

		assignments := []string{}
		args := []any{}
		for name := range change.Diff {
			column, ok := sch.Column(name)
			if !ok {
				continue
			}
			value, err := encode(column, change.Record[name])
			if err != nil {
				return store.Wrap("update", sch.Name, err)
			}
			assignments = append(assignments, quote(name)+" = ?")
			args = append(args, value)
		}
		if len(assignments) == 0 {
			continue
		}
		condition, conditionArgs, err := match(change)
		if err != nil {
			return store.Wrap("update", sch.Name, err)
		}
		result, err := tx.ExecContext(ctx,
			"UPDATE "+quote(sch.Name)+" SET "+strings.Join(assignments, ", ")+" WHERE "+condition,
			append(args, conditionArgs...)...)
		if err != nil {
			return store.Wrap("update", sch.Name, err)
		}
		err = affectedOne(result)
		if err != nil {
			return store.Wrap("update", sch.Name, err)
		}
	}

	for _, change := range changes.Inserts {
		sch := change.Schema
		if change.Key != "" {
			found, err := exists(ctx, tx, sch, change.Record)
			if err != nil {
				return store.Wrap("insert", sch.Name, err)
			}
			if found {
				return store.Wrap("insert", sch.Name, store.ErrConflict)
			}
		}

		columns := []string{}
		placeholders := []string{}
		args := []any{}
		for _, column := range sch.Columns {
			value, err := encode(column, change.Record[column.Name])
			if err != nil {
				return store.Wrap("insert", sch.Name, err)
			}
			columns = append(columns, quote(column.Name))
			placeholders = append(placeholders, "?")
			args = append(args, value)
		}
		_, err := tx.ExecContext(ctx,
			"INSERT INTO "+quote(sch.Name)+" ("+strings.Join(columns, ", ")+") VALUES ("+strings.Join(placeholders, ", ")+")",
			args...)
		if err != nil {
			return store.Wrap("insert", sch.Name, err)
		}
	}

	return nil
}
