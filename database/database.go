package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fulldump/recordset/collection"
	"github.com/fulldump/recordset/schema"
	"github.com/fulldump/recordset/utils"
)

const (
	StatusOpening   = "opening"
	StatusOperating = "operating"
	StatusClosing   = "closing"
)

const schemaSuffix = ".schema.json"

var (
	ErrCollectionExists   = errors.New("collection already exists")
	ErrCollectionNotFound = errors.New("collection not found")
)

type Config struct {
	Dir    string
	Logger *zap.Logger
}

// Table is a collection plus the schema its rows follow
type Table struct {
	Schema     *schema.Schema
	Collection *collection.Collection
}

type Database struct {
	config      *Config
	logger      *zap.Logger
	status      string
	collections map[string]*Table
	mutex       *sync.RWMutex
	commit      *sync.Mutex
}

func NewDatabase(config *Config) *Database {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Database{
		config:      config,
		logger:      logger,
		status:      StatusOpening,
		collections: map[string]*Table{},
		mutex:       &sync.RWMutex{},
		commit:      &sync.Mutex{},
	}
}

func (db *Database) GetStatus() string {
	db.mutex.RLock()
	defer db.mutex.RUnlock()
	return db.status
}

func (db *Database) setStatus(status string) {
	db.mutex.Lock()
	db.status = status
	db.mutex.Unlock()
}

func (db *Database) filename(name string) string {
	return filepath.Join(db.config.Dir, name)
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid collection name '%s'", name)
	}
	return nil
}

func openTable(filename string, s *schema.Schema) (*Table, error) {
	col, err := collection.OpenCollection(filename, s.Key)
	if err != nil {
		return nil, err
	}
	return &Table{Schema: s, Collection: col}, nil
}

// CreateCollection persists the schema and opens an empty collection for it
func (db *Database) CreateCollection(s *schema.Schema) (*Table, error) {

	err := s.Validate()
	if err != nil {
		return nil, err
	}
	err = validName(s.Name)
	if err != nil {
		return nil, err
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	if _, exists := db.collections[s.Name]; exists {
		return nil, fmt.Errorf("%w: '%s'", ErrCollectionExists, s.Name)
	}

	err = os.MkdirAll(db.config.Dir, 0755)
	if err != nil {
		return nil, err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode schema: %w", err)
	}
	err = os.WriteFile(db.filename(s.Name)+schemaSuffix, data, 0666)
	if err != nil {
		return nil, fmt.Errorf("write schema: %w", err)
	}

	table, err := openTable(db.filename(s.Name), s)
	if err != nil {
		return nil, err
	}

	db.collections[s.Name] = table
	db.logger.Info("collection created", zap.String("collection", s.Name))

	return table, nil
}

func (db *Database) GetCollection(name string) (*Table, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	table, exists := db.collections[name]
	if !exists {
		return nil, fmt.Errorf("%w: '%s'", ErrCollectionNotFound, name)
	}

	return table, nil
}

// ListCollections returns every table sorted by name
func (db *Database) ListCollections() []*Table {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	result := make([]*Table, 0, len(db.collections))
	for _, name := range utils.GetKeys(db.collections) {
		result = append(result, db.collections[name])
	}

	return result
}

func (db *Database) DropCollection(name string) error {

	db.mutex.Lock()
	defer db.mutex.Unlock()

	table, exists := db.collections[name]
	if !exists {
		return fmt.Errorf("%w: '%s'", ErrCollectionNotFound, name)
	}

	err := table.Collection.Drop()
	if err != nil {
		return fmt.Errorf("drop collection '%s': %w", name, err)
	}

	err = os.Remove(db.filename(name) + schemaSuffix)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove schema '%s': %w", name, err)
	}

	delete(db.collections, name)
	db.logger.Info("collection dropped", zap.String("collection", name))

	return nil
}

// Load opens every collection found in the data directory
func (db *Database) Load() error {

	dir := db.config.Dir
	db.logger.Info("loading database", zap.String("dir", dir))

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		db.setStatus(StatusClosing)
		return err
	}

	err = filepath.WalkDir(dir, func(filename string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if filename != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(filename, schemaSuffix) {
			return nil
		}

		t0 := time.Now()

		s, err := schema.Load(filename)
		if err != nil {
			db.logger.Error("load schema", zap.String("filename", filename), zap.Error(err))
			return err
		}

		table, err := openTable(strings.TrimSuffix(filename, schemaSuffix), s)
		if err != nil {
			db.logger.Error("open collection", zap.String("collection", s.Name), zap.Error(err))
			return err
		}

		db.mutex.Lock()
		db.collections[s.Name] = table
		db.mutex.Unlock()

		db.logger.Info("collection loaded",
			zap.String("collection", s.Name),
			zap.Int("rows", table.Collection.Len()),
			zap.Duration("elapsed", time.Since(t0)))

		return nil
	})

	if err != nil {
		db.setStatus(StatusClosing)
		return err
	}

	db.setStatus(StatusOperating)

	return nil
}

func (db *Database) Stop() error {

	db.setStatus(StatusClosing)

	db.mutex.RLock()
	defer db.mutex.RUnlock()

	var lastErr error
	for name, table := range db.collections {
		db.logger.Info("closing collection", zap.String("collection", name))
		err := table.Collection.Close()
		if err != nil {
			db.logger.Error("close collection", zap.String("collection", name), zap.Error(err))
			lastErr = err
		}
	}

	return lastErr
}
