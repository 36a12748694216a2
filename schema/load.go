package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Parse reads a schema definition. JSON is accepted as well since it is a
// subset of YAML.
func Parse(data []byte) (*Schema, error) {

	s := &Schema{}
	err := yaml.Unmarshal(data, s)
	if err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}

	err = s.Validate()
	if err != nil {
		return nil, err
	}

	return s, nil
}

func Load(filename string) (*Schema, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Parse(data)
}
