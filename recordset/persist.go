package recordset

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/fulldump/recordset/store"
)

var ErrNoSession = errors.New("recordset has no session")

// Update inserts the Added rows and removes the Deleted ones in a single
// commit. Modified rows are persisted by the session, which tracks the
// records it loaded. On failure the session is rolled back, the error is
// logged and false is returned.
func (r *Recordset) Update(ctx context.Context) bool {
	return r.update(ctx, false)
}

// Upsert works like Update but skips Added rows whose primary key already
// exists in the store.
func (r *Recordset) Upsert(ctx context.Context) bool {
	return r.update(ctx, true)
}

func (r *Recordset) update(ctx context.Context, upsert bool) bool {

	if r.session == nil {
		r.logger.Error("update recordset",
			zap.String("table", r.schema.Name),
			zap.Error(ErrNoSession))
		return false
	}

	err := r.stage(ctx, upsert)
	if err == nil {
		err = r.session.Commit(ctx)
	}
	if err == nil {
		return true
	}

	r.logger.Error("update recordset",
		zap.String("table", r.schema.Name),
		zap.Bool("upsert", upsert),
		zap.Error(err))

	rollbackErr := r.session.Rollback(ctx)
	if rollbackErr != nil {
		r.logger.Error("rollback recordset",
			zap.String("table", r.schema.Name),
			zap.Error(rollbackErr))
	}

	return false
}

func (r *Recordset) stage(ctx context.Context, upsert bool) error {

	for _, row := range r.rowsWithState(Added) {
		if upsert {
			exists, err := r.ExistsPrimaryKey(ctx, row)
			if err != nil {
				return store.Wrap("exists", r.schema.Name, err)
			}
			if exists {
				r.logger.Debug("skip existing row",
					zap.String("table", r.schema.Name),
					zap.String("key", r.schema.Key(row.values)))
				continue
			}
		}
		err := r.session.Add(r.schema, row.values)
		if err != nil {
			return store.Wrap("add", r.schema.Name, err)
		}
	}

	for _, row := range r.rowsWithState(Deleted) {
		err := r.session.Delete(r.schema, row.values)
		if err != nil {
			return store.Wrap("delete", r.schema.Name, err)
		}
	}

	return nil
}
