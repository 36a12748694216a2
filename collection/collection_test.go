package collection

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	. "github.com/fulldump/biff"
)

func readCommands(filename string) []*Command {
	data, _ := os.ReadFile(filename)
	commands := []*Command{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		command := &Command{}
		json.Unmarshal([]byte(line), command)
		commands = append(commands, command)
	}
	return commands
}

func payloads(c *Collection) []map[string]any {
	result := []map[string]any{}
	c.Traverse(func(row *Row) bool {
		result = append(result, row.Payload)
		return true
	})
	return result
}

func TestInsert(t *testing.T) {
	Environment(func(filename string) {

		// Setup
		c, err := OpenCollection(filename, keyByID)
		AssertNil(err)

		// Run
		_, err = c.Insert(map[string]any{
			"hello": "world",
		})
		AssertNil(err)
		AssertNil(c.Close())

		// Check
		commands := readCommands(filename)
		AssertEqual(len(commands), 1)
		AssertEqual(commands[0].Name, CommandInsert)
		AssertEqual(string(commands[0].Payload), `{"hello":"world"}`)
		AssertNotEqual(commands[0].Uuid, "")
	})
}

func TestInsert_CopiesItem(t *testing.T) {
	Environment(func(filename string) {

		c, _ := OpenCollection(filename, nil)
		defer c.Close()

		item := map[string]any{"name": "Alice"}
		row, _ := c.Insert(item)
		item["name"] = "Changed"

		AssertEqual(row.Payload["name"], "Alice")
	})
}

func TestInsert_Conflict(t *testing.T) {
	Environment(func(filename string) {

		c, _ := OpenCollection(filename, keyByID)
		defer c.Close()

		_, err := c.Insert(map[string]any{"id": "1"})
		AssertNil(err)

		_, err = c.Insert(map[string]any{"id": "1"})
		AssertTrue(errors.Is(err, ErrIndexConflict))
		AssertEqual(c.Len(), 1)

		_, err = c.Insert(map[string]any{"other": "no key"})
		AssertNil(err)
		AssertEqual(c.Len(), 2)
	})
}

func TestInsert_Concurrency(t *testing.T) {
	Environment(func(filename string) {

		c, _ := OpenCollection(filename, nil)
		defer c.Close()

		n := 100

		wg := &sync.WaitGroup{}
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c.Insert(map[string]any{"hello": "world"})
			}()
		}
		wg.Wait()

		AssertEqual(c.Len(), n)
	})
}

func TestFindByKey(t *testing.T) {
	Environment(func(filename string) {

		c, _ := OpenCollection(filename, keyByID)
		defer c.Close()
		c.Insert(map[string]any{"id": "a", "n": 1.0})
		c.Insert(map[string]any{"id": "b", "n": 2.0})

		row, found := c.FindByKey("b")
		AssertTrue(found)
		AssertEqual(row.Payload["n"], 2.0)

		_, found = c.FindByKey("z")
		AssertFalse(found)

		_, found = c.FindByKey("")
		AssertFalse(found)
	})
}

func TestRemove(t *testing.T) {
	Environment(func(filename string) {

		c, _ := OpenCollection(filename, keyByID)
		defer c.Close()
		c.Insert(map[string]any{"id": "a"})
		row, _ := c.Insert(map[string]any{"id": "b"})

		err := c.Remove(row)

		AssertNil(err)
		AssertEqual(c.Len(), 1)
		_, found := c.FindByKey("b")
		AssertFalse(found)

		err = c.Remove(row)
		AssertTrue(errors.Is(err, ErrRowNotFound))
	})
}

func patchEnvironment(f func(filename string, c *Collection, row *Row)) {
	Environment(func(filename string) {
		c, _ := OpenCollection(filename, keyByID)
		defer c.Close()
		row, _ := c.Insert(map[string]any{"id": "a", "name": "Alice", "tmp": true})
		c.Insert(map[string]any{"id": "b"})
		f(filename, c, row)
	})
}

func TestPatch(t *testing.T) {
	patchEnvironment(func(filename string, c *Collection, row *Row) {

		err := c.Patch(row, map[string]any{"name": "Alicia", "tmp": nil})

		AssertNil(err)
		AssertEqual(row.Payload, map[string]any{"id": "a", "name": "Alicia"})
		c.Sync()
		commands := readCommands(filename)
		AssertEqual(len(commands), 3)
		AssertEqual(commands[2].Name, CommandPatch)
		payload := map[string]any{}
		json.Unmarshal(commands[2].Payload, &payload)
		AssertEqual(payload, map[string]any{
			"i":    0.0,
			"diff": map[string]any{"name": "Alicia", "tmp": nil},
		})
	})
}

func TestPatch_Noop(t *testing.T) {
	patchEnvironment(func(filename string, c *Collection, row *Row) {

		err := c.Patch(row, map[string]any{"id": "a"})

		AssertNil(err)
		c.Sync()
		AssertEqual(len(readCommands(filename)), 2)
	})
}

func TestPatch_KeyConflict(t *testing.T) {
	patchEnvironment(func(filename string, c *Collection, row *Row) {

		err := c.Patch(row, map[string]any{"id": "b"})

		AssertTrue(errors.Is(err, ErrIndexConflict))
		AssertEqual(row.Payload["id"], "a")
		found, _ := c.FindByKey("a")
		AssertEqual(found, row)
	})
}

func TestPatch_KeyChange(t *testing.T) {
	patchEnvironment(func(filename string, c *Collection, row *Row) {

		err := c.Patch(row, map[string]any{"id": "c"})

		AssertNil(err)
		_, found := c.FindByKey("a")
		AssertFalse(found)
		moved, _ := c.FindByKey("c")
		AssertEqual(moved, row)
	})
}

func TestReplay(t *testing.T) {
	Environment(func(filename string) {

		// Setup
		c, _ := OpenCollection(filename, keyByID)
		a, _ := c.Insert(map[string]any{"id": "a", "n": 1})
		b, _ := c.Insert(map[string]any{"id": "b", "n": 2})
		c.Insert(map[string]any{"id": "c", "n": 3})
		c.Remove(a)
		c.Patch(b, map[string]any{"n": 20, "extra": "yes"})
		c.Insert(map[string]any{"id": "d", "n": 4})
		AssertNil(c.Close())

		// Run
		reopened, err := OpenCollection(filename, keyByID)
		AssertNil(err)
		defer reopened.Close()

		// Check
		AssertEqual(payloads(reopened), []map[string]any{
			{"id": "b", "n": 20.0, "extra": "yes"},
			{"id": "c", "n": 3.0},
			{"id": "d", "n": 4.0},
		})
		_, found := reopened.FindByKey("a")
		AssertFalse(found)

		// new rows do not reuse identifiers
		e, _ := reopened.Insert(map[string]any{"id": "e"})
		AssertEqual(e.I, 4)
	})
}

func TestReplay_Corrupted(t *testing.T) {
	Environment(func(filename string) {

		os.WriteFile(filename, []byte(`{"name":"insert","payload":{"id":"a"}}`+"\n"+`{not json`+"\n"), 0666)

		_, err := OpenCollection(filename, keyByID)

		AssertNotNil(err)
	})
}

func TestReplay_Handwritten(t *testing.T) {
	Environment(func(filename string) {

		os.WriteFile(filename, []byte(`{"name":"insert","uuid":"ec59a0e6-8fcb-4c1c-91e5-3dd7df6a0b80","timestamp":1648937091073939741,"start_byte":0,"payload":{"name": "Fulanez"}}`), 0666)

		c, err := OpenCollection(filename, nil)
		AssertNil(err)
		defer c.Close()

		AssertEqualJson(payloads(c), []map[string]any{{"name": "Fulanez"}})
	})
}

func TestClosed(t *testing.T) {
	Environment(func(filename string) {

		c, _ := OpenCollection(filename, nil)
		row, _ := c.Insert(map[string]any{})
		c.Close()

		_, err := c.Insert(map[string]any{})
		AssertEqual(err, ErrClosed)
		AssertEqual(c.Remove(row), ErrClosed)
		AssertEqual(c.Patch(row, map[string]any{"a": 1}), ErrClosed)
		AssertNil(c.Close())
	})
}

func TestDrop(t *testing.T) {
	Environment(func(filename string) {

		c, _ := OpenCollection(filename, nil)
		c.Insert(map[string]any{"hello": "world"})

		err := c.Drop()

		AssertNil(err)
		_, statErr := os.Stat(filename)
		AssertTrue(os.IsNotExist(statErr))
	})
}
