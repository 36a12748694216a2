// Package store defines the session a recordset reconciles its changes
// against, and the pieces shared by every backend.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/schema"
)

// Session is a unit of work over a backing store. Records returned by Query
// are tracked: in place modifications are persisted by the next Commit.
type Session interface {
	Query(ctx context.Context, s *schema.Schema, filter query.Filter) ([]schema.Record, error)
	Add(s *schema.Schema, record schema.Record) error
	Delete(s *schema.Schema, record schema.Record) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

var (
	ErrConflict      = errors.New("primary key already exists")
	ErrNotFound      = errors.New("record not found")
	ErrClosed        = errors.New("store closed")
	ErrTableNotFound = errors.New("table not found")
)

// Error is the error type returned by every backend
type Error struct {
	Op    string
	Table string
	Err   error
}

func (e *Error) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("store %s: %s", e.Op, e.Err.Error())
	}
	return fmt.Sprintf("store %s '%s': %s", e.Op, e.Table, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap decorates err as a store Error. Errors that already are store errors
// are returned as is.
func Wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	if IsStoreError(err) {
		return err
	}
	return &Error{Op: op, Table: table, Err: err}
}

func IsStoreError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}
