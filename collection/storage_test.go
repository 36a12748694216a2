package collection

import (
	"os"
	"strconv"
	"strings"
	"testing"

	. "github.com/fulldump/biff"
)

func TestJSONStorage_Sync(t *testing.T) {
	Environment(func(filename string) {

		s, err := NewJSONStorage(filename)
		AssertNil(err)
		defer s.Close()

		for i := 0; i < 10; i++ {
			s.Persist(&Command{Name: CommandInsert, Payload: []byte(`{}`)})
		}
		err = s.Sync()

		AssertNil(err)
		data, _ := os.ReadFile(filename)
		AssertEqual(strings.Count(string(data), "\n"), 10)
	})
}

func TestJSONStorage_Closed(t *testing.T) {
	Environment(func(filename string) {

		s, _ := NewJSONStorage(filename)
		AssertNil(s.Close())
		AssertNil(s.Close())

		err := s.Persist(&Command{Name: CommandInsert, Payload: []byte(`{}`)})

		AssertEqual(err, ErrStorageClosed)
		AssertEqual(s.Sync(), ErrStorageClosed)
	})
}

func TestLoadCommands_Order(t *testing.T) {

	lines := []string{}
	for i := 0; i < 500; i++ {
		lines = append(lines, `{"name":"insert","start_byte":`+strconv.Itoa(i)+`,"payload":{}}`)
	}

	cmds, errs := loadCommands(strings.NewReader(strings.Join(lines, "\n")), 8)

	expected := int64(0)
	for cmd := range cmds {
		AssertEqual(cmd.StartByte, expected)
		expected++
	}
	AssertNil(<-errs)
	AssertEqual(expected, int64(500))
}

