package recordset

import (
	"fmt"
)

// RowState is the pending change of a row with respect to the store
type RowState int

const (
	NoChanged RowState = iota
	Added
	Modified
	Deleted
)

var rowStateNames = []string{"nochanged", "added", "modified", "deleted"}

func (s RowState) String() string {
	if s < 0 || int(s) >= len(rowStateNames) {
		return fmt.Sprintf("RowState(%d)", int(s))
	}
	return rowStateNames[s]
}

func (s RowState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *RowState) UnmarshalText(text []byte) error {
	for i, name := range rowStateNames {
		if name == string(text) {
			*s = RowState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown row state '%s'", string(text))
}
