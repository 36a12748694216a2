package collection

import (
	"fmt"
	"os"
	"time"
)

func Environment(f func(filename string)) {
	filename := fmt.Sprintf("temp-%v", time.Now().UnixNano())
	defer os.Remove(filename)

	f(filename)
}

func keyByID(payload map[string]any) string {
	id, ok := payload["id"]
	if !ok {
		return ""
	}
	return fmt.Sprint(id)
}
