package schema

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/value"
)

// Type defines the contract for field validation.
// Implementations determine how values are validated against a type.
type Type interface {
	// Name returns the type in the notation ParseType reads (e.g. "string", "[int]").
	Name() string
	// Validate checks if a value conforms to this type. Null is handed to
	// Validate like any other value.
	Validate(v value.Value) error
}

// --- Built-in Type Implementations ---

// kindType accepts values of the listed kinds.
type kindType struct {
	name  string
	kinds []value.Kind
}

func (t *kindType) Name() string { return t.name }

func (t *kindType) Validate(v value.Value) error {
	for _, k := range t.kinds {
		if v.Kind() == k {
			return nil
		}
	}
	return fmt.Errorf("expected %s, got %s", t.name, v.Kind())
}

// ListType validates lists of a specific element type.
type ListType struct {
	elemType Type
}

func (t *ListType) Name() string {
	return fmt.Sprintf("[%s]", t.elemType.Name())
}

func (t *ListType) Validate(v value.Value) error {
	if v.Kind() != value.KindList {
		return fmt.Errorf("expected list, got %s", v.Kind())
	}

	// Validate each element
	for i, item := range v.Items() {
		if err := t.elemType.Validate(item); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
	}
	return nil
}

// OptionalType accepts Null in addition to its base type.
type OptionalType struct {
	base Type
}

func (t *OptionalType) Name() string { return t.base.Name() + "?" }

func (t *OptionalType) Validate(v value.Value) error {
	if v.IsNull() {
		return nil
	}
	return t.base.Validate(v)
}

// CustomType applies a user-defined validation function.
type CustomType struct {
	name     string
	validate func(value.Value) error
}

func (t *CustomType) Name() string { return t.name }

func (t *CustomType) Validate(v value.Value) error {
	return t.validate(v)
}

type anyType struct{}

func (anyType) Name() string { return "any" }

func (anyType) Validate(v value.Value) error {
	if v.IsNull() {
		return fmt.Errorf("expected a value, got null")
	}
	return nil
}

// --- Factory Functions ---

// String creates a string type validator.
func String() Type { return &kindType{name: "string", kinds: []value.Kind{value.KindString}} }

// Int creates an integer type validator.
func Int() Type { return &kindType{name: "int", kinds: []value.Kind{value.KindInt}} }

// Float creates a number type validator. Ints are accepted.
func Float() Type {
	return &kindType{name: "float", kinds: []value.Kind{value.KindFloat, value.KindInt}}
}

// Bool creates a boolean type validator.
func Bool() Type { return &kindType{name: "bool", kinds: []value.Kind{value.KindBool}} }

// Map creates a validator accepting any map.
func Map() Type { return &kindType{name: "map", kinds: []value.Kind{value.KindMap}} }

// Any accepts every value except Null.
func Any() Type { return anyType{} }

// List creates a list type validator for elements of the given type.
func List(elemType Type) Type {
	return &ListType{elemType: elemType}
}

// Optional makes t accept Null, i.e. a missing value.
func Optional(t Type) Type {
	if _, ok := t.(*OptionalType); ok {
		return t
	}
	return &OptionalType{base: t}
}

// Custom creates a custom type validator with a user-defined function.
func Custom(name string, validate func(value.Value) error) Type {
	return &CustomType{name: name, validate: validate}
}

// ParseType converts a type name to a Type.
// Supports "string", "int", "float", "bool", "map", "any", lists such as
// "[string]" and "[[int]]", and a trailing "?" for optional types.
func ParseType(typeStr string) (Type, error) {
	typeStr = strings.TrimSpace(typeStr)

	if base, ok := strings.CutSuffix(typeStr, "?"); ok {
		t, err := ParseType(base)
		if err != nil {
			return nil, err
		}
		return Optional(t), nil
	}

	// Handle list types: [string], [int], etc.
	if len(typeStr) > 2 && typeStr[0] == '[' && typeStr[len(typeStr)-1] == ']' {
		elemType, err := ParseType(typeStr[1 : len(typeStr)-1])
		if err != nil {
			return nil, err
		}
		return List(elemType), nil
	}

	// Handle built-in types
	switch typeStr {
	case "string":
		return String(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "bool":
		return Bool(), nil
	case "map":
		return Map(), nil
	case "any":
		return Any(), nil
	default:
		return nil, fmt.Errorf("unsupported type: %q", typeStr)
	}
}

// ParseTypeMap converts a map of State paths to type strings into a Schema.
// Example: {"user.name": "string", "retries": "int"}
func ParseTypeMap(typeMap map[string]string) (Schema, error) {
	result := make(Schema, len(typeMap))
	for path, typeStr := range typeMap {
		t, err := ParseType(typeStr)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", path, err)
		}
		result[path] = t
	}
	return result, nil
}
