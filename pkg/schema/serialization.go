package schema

import (
	"encoding/json"
	"fmt"
)

// Declarations renders the schema back into the path → type-string form
// accepted by ParseTypeMap.
func (s Schema) Declarations() (map[string]string, error) {
	if s == nil {
		return nil, nil
	}
	out := make(map[string]string, len(s))
	for path, typ := range s {
		if typ == nil {
			return nil, fmt.Errorf("state.%s: missing type", path)
		}
		out[path] = typ.Name()
	}
	return out, nil
}

// MarshalJSON encodes the schema as its declarations.
func (s Schema) MarshalJSON() ([]byte, error) {
	decl, err := s.Declarations()
	if err != nil {
		return nil, err
	}
	return json.Marshal(decl)
}

// UnmarshalJSON decodes declarations and parses each type string.
func (s *Schema) UnmarshalJSON(data []byte) error {
	var decl map[string]string
	if err := json.Unmarshal(data, &decl); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	if decl == nil {
		*s = nil
		return nil
	}
	parsed, err := ParseTypeMap(decl)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
