// Package collection keeps a table in memory and persists every change to
// an append only log of JSON commands, replayed when the table is opened.
package collection

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/btree"
	"github.com/google/uuid"

	"github.com/fulldump/recordset/utils"
)

var (
	ErrClosed      = errors.New("collection is closed")
	ErrRowNotFound = errors.New("row not found")
)

// Row is an item of a collection. I is assigned on insertion and never
// reused, it identifies the row in the command log.
type Row struct {
	I       int
	Payload map[string]any
}

func lessRow(a, b *Row) bool {
	return a.I < b.I
}

type Collection struct {
	Filename string

	storage *JSONStorage
	rows    *btree.BTreeG[*Row]
	index   *IndexMap
	nextI   int
	mutex   *sync.RWMutex
}

// OpenCollection loads filename and opens it for append. Rows are indexed by
// key, which can be nil for collections without a unique key.
func OpenCollection(filename string, key KeyFunc) (*Collection, error) {

	if key == nil {
		key = func(map[string]any) string { return "" }
	}

	c := &Collection{
		Filename: filename,
		rows:     btree.NewG(32, lessRow),
		index:    NewIndexMap(key),
		mutex:    &sync.RWMutex{},
	}

	err := LoadCollection(filename, c)
	if err != nil {
		return nil, fmt.Errorf("load collection: %w", err)
	}

	c.storage, err = NewJSONStorage(filename)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Collection) apply(cmd *Command) error {
	switch cmd.Name {
	case CommandInsert:
		payload := map[string]any{}
		err := json.Unmarshal(cmd.Payload, &payload)
		if err != nil {
			return err
		}
		_, err = c.addRow(payload)
		return err

	case CommandRemove:
		params := removePayload{}
		err := json.Unmarshal(cmd.Payload, &params)
		if err != nil {
			return err
		}
		row, ok := c.rows.Get(&Row{I: params.I})
		if !ok {
			return fmt.Errorf("%w: %d", ErrRowNotFound, params.I)
		}
		c.removeRow(row)
		return nil

	case CommandPatch:
		params := patchPayload{}
		err := json.Unmarshal(cmd.Payload, &params)
		if err != nil {
			return err
		}
		row, ok := c.rows.Get(&Row{I: params.I})
		if !ok {
			return fmt.Errorf("%w: %d", ErrRowNotFound, params.I)
		}
		_, _, err = c.patchRow(row, params.Diff)
		return err
	}

	return fmt.Errorf("unknown command '%s'", cmd.Name)
}

func (c *Collection) persist(name string, payload any) error {

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("json encode payload: %w", err)
	}

	return c.storage.Persist(&Command{
		Name:      name,
		Uuid:      uuid.New().String(),
		Timestamp: time.Now().UnixNano(),
		StartByte: 0,
		Payload:   data,
	})
}

func (c *Collection) addRow(payload map[string]any) (*Row, error) {

	row := &Row{
		I:       c.nextI,
		Payload: payload,
	}

	err := c.index.AddRow(row)
	if err != nil {
		return nil, err
	}

	c.nextI++
	c.rows.ReplaceOrInsert(row)

	return row, nil
}

func (c *Collection) removeRow(row *Row) {
	c.index.RemoveRow(row)
	c.rows.Delete(row)
}

// patchRow applies a merge patch, keeping the index consistent. The
// returned diff is empty when nothing changed.
func (c *Collection) patchRow(row *Row, patch map[string]any) (map[string]any, bool, error) {

	result, changed := utils.MergePatch(row.Payload, patch)
	if !changed {
		return nil, false, nil
	}

	diff, _ := utils.MergeDiff(row.Payload, result)

	previous := row.Payload
	c.index.RemoveRow(row)
	row.Payload = result
	err := c.index.AddRow(row)
	if err != nil {
		row.Payload = previous
		c.index.AddRow(row)
		return nil, false, err
	}

	return diff, true, nil
}

// Insert copies item into a new row
func (c *Collection) Insert(item map[string]any) (*Row, error) {

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.storage == nil {
		return nil, ErrClosed
	}

	payload := utils.CloneRecord(item)
	if payload == nil {
		payload = map[string]any{}
	}

	row, err := c.addRow(payload)
	if err != nil {
		return nil, err
	}

	err = c.persist(CommandInsert, payload)
	if err != nil {
		c.removeRow(row)
		return nil, err
	}

	return row, nil
}

func (c *Collection) Remove(row *Row) error {

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.storage == nil {
		return ErrClosed
	}

	if _, ok := c.rows.Get(row); !ok {
		return fmt.Errorf("%w: %d", ErrRowNotFound, row.I)
	}

	c.removeRow(row)

	return c.persist(CommandRemove, removePayload{I: row.I})
}

// Patch applies a JSON merge patch to row. Only the effective difference is
// written to the log, nothing at all if the patch changes nothing.
func (c *Collection) Patch(row *Row, patch map[string]any) error {

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.storage == nil {
		return ErrClosed
	}

	if _, ok := c.rows.Get(row); !ok {
		return fmt.Errorf("%w: %d", ErrRowNotFound, row.I)
	}

	diff, changed, err := c.patchRow(row, patch)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	return c.persist(CommandPatch, patchPayload{I: row.I, Diff: diff})
}

func (c *Collection) FindByKey(key string) (*Row, bool) {
	if key == "" {
		return nil, false
	}
	return c.index.Get(key)
}

// Traverse visits the rows in insertion order until f returns false
func (c *Collection) Traverse(f func(row *Row) bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	c.rows.Ascend(func(row *Row) bool {
		return f(row)
	})
}

func (c *Collection) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.rows.Len()
}

// Sync waits until every change is written to disk
func (c *Collection) Sync() error {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	if c.storage == nil {
		return ErrClosed
	}
	return c.storage.Sync()
}

func (c *Collection) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.storage == nil {
		return nil
	}
	err := c.storage.Close()
	c.storage = nil
	return err
}

func (c *Collection) Drop() error {
	err := c.Close()
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}

	err = os.Remove(c.Filename)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove: %w", err)
	}

	return nil
}
