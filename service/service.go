package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fulldump/recordset/database"
	"github.com/fulldump/recordset/query"
	"github.com/fulldump/recordset/recordset"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/store"
	"github.com/fulldump/recordset/utils"
)

// Service exposes the tables of a database. Table definitions live in the
// database, records in whatever store newSession opens sessions on.
type Service struct {
	db         *database.Database
	newSession func() store.Session
	logger     *zap.Logger

	mutex *sync.Mutex
	locks map[string]*sync.Mutex
}

var _ Servicer = (*Service)(nil)

type Option func(s *Service)

// WithSessions stores records somewhere else than in the database collections
func WithSessions(newSession func() store.Session) Option {
	return func(s *Service) {
		s.newSession = newSession
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(db *database.Database, options ...Option) *Service {
	s := &Service{
		db:     db,
		logger: zap.NewNop(),
		mutex:  &sync.Mutex{},
		locks:  map[string]*sync.Mutex{},
	}
	s.newSession = func() store.Session {
		return db.NewSession()
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// lock serialises the writers of a table
func (s *Service) lock(name string) func() {
	s.mutex.Lock()
	l, ok := s.locks[name]
	if !ok {
		l = &sync.Mutex{}
		s.locks[name] = l
	}
	s.mutex.Unlock()

	l.Lock()
	return l.Unlock
}

func (s *Service) schema(name string) (*schema.Schema, error) {
	table, err := s.db.GetCollection(name)
	if errors.Is(err, database.ErrCollectionNotFound) {
		return nil, ErrorTableNotFound
	}
	if err != nil {
		return nil, err
	}
	return table.Schema, nil
}

// open creates a recordset over a new session. A nil filter leaves it empty,
// ready to add rows.
func (s *Service) open(ctx context.Context, sch *schema.Schema, filter query.Filter) (*recordset.Recordset, error) {
	options := []recordset.Option{
		recordset.WithSession(s.newSession()),
		recordset.WithLogger(s.logger),
	}
	if filter != nil {
		options = append(options, recordset.WithFilter(filter))
	}
	return recordset.New(ctx, sch, options...)
}

func matchAll(filter query.Filter) query.Filter {
	if filter == nil {
		return query.Filter{}
	}
	return filter
}

func (s *Service) describe(ctx context.Context, sch *schema.Schema) (*Table, error) {
	rs, err := s.open(ctx, sch, query.Filter{})
	if err != nil {
		return nil, err
	}
	return &Table{
		Name:        sch.Name,
		Columns:     sch.Columns,
		PrimaryKeys: sch.PrimaryKeys(),
		Total:       rs.Len(),
	}, nil
}

func (s *Service) CreateTable(sch *schema.Schema) (*Table, error) {

	_, err := s.db.CreateCollection(sch)
	if errors.Is(err, database.ErrCollectionExists) {
		return nil, ErrorTableAlreadyExists
	}
	if err != nil {
		return nil, err
	}

	return &Table{
		Name:        sch.Name,
		Columns:     sch.Columns,
		PrimaryKeys: sch.PrimaryKeys(),
	}, nil
}

func (s *Service) GetTable(ctx context.Context, name string) (*Table, error) {
	sch, err := s.schema(name)
	if err != nil {
		return nil, err
	}
	return s.describe(ctx, sch)
}

func (s *Service) ListTables(ctx context.Context) ([]*Table, error) {
	result := []*Table{}
	for _, t := range s.db.ListCollections() {
		table, err := s.describe(ctx, t.Schema)
		if err != nil {
			return nil, err
		}
		result = append(result, table)
	}
	return result, nil
}

// DropTable forgets the table definition. Records kept by external stores
// are left untouched.
func (s *Service) DropTable(name string) error {
	defer s.lock(name)()

	err := s.db.DropCollection(name)
	if errors.Is(err, database.ErrCollectionNotFound) {
		return ErrorTableNotFound
	}
	return err
}

// ImportSchemas creates a table for every schema file (yaml or json) found in
// dir, skipping the ones that already exist.
func (s *Service) ImportSchemas(dir string) error {

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read schema dir: %w", err)
	}

	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml" && ext != ".json") {
			continue
		}

		sch, err := schema.Load(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}

		_, err = s.CreateTable(sch)
		if err == ErrorTableAlreadyExists {
			s.logger.Debug("schema already imported", zap.String("table", sch.Name))
			continue
		}
		if err != nil {
			return fmt.Errorf("import '%s': %w", entry.Name(), err)
		}
		s.logger.Info("schema imported", zap.String("table", sch.Name), zap.String("file", entry.Name()))
	}

	return nil
}

func (s *Service) Find(ctx context.Context, name string, filter query.Filter, skip, limit int) ([]schema.Record, error) {

	sch, err := s.schema(name)
	if err != nil {
		return nil, err
	}

	rs, err := s.open(ctx, sch, matchAll(filter))
	if err != nil {
		return nil, err
	}

	records := rs.DataFrame().Records()
	if skip >= len(records) {
		return []schema.Record{}, nil
	}
	records = records[skip:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}

	return records, nil
}

func fill(rs *recordset.Recordset, record schema.Record) {
	rs.NewRow()
	for _, column := range rs.Columns() {
		if value, ok := record[column]; ok {
			rs.Current().Set(column, value)
		}
	}
}

func (s *Service) Insert(ctx context.Context, name string, records []schema.Record) ([]schema.Record, error) {

	sch, err := s.schema(name)
	if err != nil {
		return nil, err
	}

	defer s.lock(name)()

	rs, err := s.open(ctx, sch, nil)
	if err != nil {
		return nil, err
	}

	batch := map[string]bool{}
	for _, record := range records {
		fill(rs, record)
		if len(rs.PrimaryKeys()) == 0 {
			continue
		}
		key := sch.Key(rs.Current().Values())
		if batch[key] {
			return nil, fmt.Errorf("%w: %s", ErrorConflict, key)
		}
		batch[key] = true
		exists, err := rs.ExistsPrimaryKey(ctx, rs.Current())
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrorConflict, key)
		}
	}

	if !rs.Update(ctx) {
		return nil, ErrorNotApplied
	}

	return rs.DataFrame().Records(), nil
}

// Upsert inserts the records whose primary key is not stored yet. Records
// repeating a key already seen in the batch are skipped too. It returns the
// records actually inserted.
func (s *Service) Upsert(ctx context.Context, name string, records []schema.Record) ([]schema.Record, error) {

	sch, err := s.schema(name)
	if err != nil {
		return nil, err
	}

	defer s.lock(name)()

	rs, err := s.open(ctx, sch, nil)
	if err != nil {
		return nil, err
	}

	// rows are shaped here first so only the fresh ones reach rs
	candidates, err := recordset.New(ctx, sch)
	if err != nil {
		return nil, err
	}

	batch := map[string]bool{}
	for _, record := range records {
		fill(candidates, record)
		candidate := candidates.Current()

		if len(rs.PrimaryKeys()) > 0 {
			key := sch.Key(candidate.Values())
			if batch[key] {
				s.logger.Debug("skip repeated row", zap.String("table", name), zap.String("key", key))
				continue
			}
			batch[key] = true
		}

		exists, err := rs.ExistsPrimaryKey(ctx, candidate)
		if err != nil {
			return nil, err
		}
		if exists {
			continue
		}
		fill(rs, record)
	}

	if rs.Len() == 0 {
		return []schema.Record{}, nil
	}

	if !rs.Update(ctx) {
		return nil, ErrorNotApplied
	}

	return rs.DataFrame().Records(), nil
}

func (s *Service) Remove(ctx context.Context, name string, filter query.Filter) ([]schema.Record, error) {

	sch, err := s.schema(name)
	if err != nil {
		return nil, err
	}

	defer s.lock(name)()

	rs, err := s.open(ctx, sch, matchAll(filter))
	if err != nil {
		return nil, err
	}

	for !rs.EOF() {
		rs.DelRow()
	}

	if !rs.Update(ctx) {
		return nil, ErrorNotApplied
	}

	return rs.DataFrame().Records(), nil
}

// Patch applies a JSON merge patch to every record matching filter and
// returns the patched records.
func (s *Service) Patch(ctx context.Context, name string, filter query.Filter, patch map[string]any) ([]schema.Record, error) {

	sch, err := s.schema(name)
	if err != nil {
		return nil, err
	}

	defer s.lock(name)()

	rs, err := s.open(ctx, sch, matchAll(filter))
	if err != nil {
		return nil, err
	}

	for !rs.EOF() {
		rs.EditRow()
		row := rs.Current()
		patched, _ := utils.MergePatch(row.Values(), patch)
		for _, column := range rs.Columns() {
			row.Set(column, patched[column])
		}
	}

	if !rs.Update(ctx) {
		return nil, ErrorNotApplied
	}

	return rs.DataFrame().Records(), nil
}
