package collection

import "encoding/json"

const (
	CommandInsert = "insert"
	CommandRemove = "remove"
	CommandPatch  = "patch"
)

type Command struct {
	Name      string          `json:"name"`
	Uuid      string          `json:"uuid"`
	Timestamp int64           `json:"timestamp"`
	StartByte int64           `json:"start_byte"`
	Payload   json.RawMessage `json:"payload"`
}

type removePayload struct {
	I int `json:"i"`
}

type patchPayload struct {
	I    int            `json:"i"`
	Diff map[string]any `json:"diff"`
}
