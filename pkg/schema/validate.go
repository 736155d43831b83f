package schema

import (
	"sort"

	"github.com/aretw0/arbor/pkg/value"
)

// Schema is a map of dotted State paths to their expected types.
// Example: {"user.name": String(), "retries": Int(), "tags": List(String())}
type Schema map[string]Type

// Getter reads the value at a dotted path, Null when it is missing.
// (*state.Store).Get satisfies it.
type Getter func(path string) value.Value

// Validate checks every path of the schema against get.
// Returns an error with all validation failures found, in path order.
func Validate(schema Schema, get Getter) error {
	if len(schema) == 0 {
		// No schema = no validation
		return nil
	}

	paths := make([]string, 0, len(schema))
	for path := range schema {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var errs []error
	for _, path := range paths {
		if err := check(path, schema[path], get(path)); err != nil {
			errs = append(errs, err)
		}
	}

	// If there are errors, aggregate them
	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}

// ValidateValue checks v against the type declared for path. Paths the
// schema does not mention accept anything.
func ValidateValue(schema Schema, path string, v value.Value) error {
	t, ok := schema[path]
	if !ok {
		return nil
	}
	return check(path, t, v)
}

func check(path string, t Type, v value.Value) error {
	if v.IsNull() {
		if _, optional := t.(*OptionalType); !optional {
			return &ValidationError{Key: path, Reason: "required"}
		}
	}
	if err := t.Validate(v); err != nil {
		return &ValidationError{Key: path, Reason: err.Error(), Value: v}
	}
	return nil
}
