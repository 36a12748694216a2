package collection

import (
	"errors"
	"fmt"
	"sync"
)

var ErrIndexConflict = errors.New("index conflict")

// KeyFunc computes the unique key of a payload. An empty key means the
// payload is not indexed.
type KeyFunc func(payload map[string]any) string

// IndexMap is a unique hash index over the rows of a collection
type IndexMap struct {
	Entries map[string]*Row
	RWmutex *sync.RWMutex
	Key     KeyFunc
}

func NewIndexMap(key KeyFunc) *IndexMap {
	return &IndexMap{
		Entries: map[string]*Row{},
		RWmutex: &sync.RWMutex{},
		Key:     key,
	}
}

func (i *IndexMap) AddRow(row *Row) error {

	key := i.Key(row.Payload)
	if key == "" {
		return nil
	}

	i.RWmutex.Lock()
	defer i.RWmutex.Unlock()

	if existing, exists := i.Entries[key]; exists && existing != row {
		return fmt.Errorf("%w: key %s", ErrIndexConflict, key)
	}
	i.Entries[key] = row

	return nil
}

func (i *IndexMap) RemoveRow(row *Row) {

	key := i.Key(row.Payload)
	if key == "" {
		return
	}

	i.RWmutex.Lock()
	defer i.RWmutex.Unlock()

	if i.Entries[key] == row {
		delete(i.Entries, key)
	}
}

func (i *IndexMap) Get(key string) (*Row, bool) {
	i.RWmutex.RLock()
	row, ok := i.Entries[key]
	i.RWmutex.RUnlock()
	return row, ok
}

func (i *IndexMap) Len() int {
	i.RWmutex.RLock()
	defer i.RWmutex.RUnlock()
	return len(i.Entries)
}
