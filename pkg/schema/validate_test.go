package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"testing"

	"github.com/aretw0/arbor/pkg/value"
)

// doc builds a Getter over a flat map of paths.
func doc(values map[string]any) Getter {
	return func(path string) value.Value {
		return value.FromAny(values[path])
	}
}

func TestValidate_Success(t *testing.T) {
	schema := Schema{
		"user.name": String(),
		"retries":   Int(),
		"timeout":   Float(),
		"enabled":   Bool(),
		"tags":      List(String()),
		"theme":     Optional(String()),
		"settings":  Map(),
		"extra":     Any(),
	}

	data := doc(map[string]any{
		"user.name": "ada",
		"retries":   3,
		"timeout":   30,
		"enabled":   true,
		"tags":      []any{"prod", "critical"},
		"settings":  map[string]any{},
		"extra":     1.5,
	})

	if err := Validate(schema, data); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_MissingField(t *testing.T) {
	schema := Schema{
		"api_key": String(),
		"retries": Int(),
	}

	err := Validate(schema, doc(map[string]any{"api_key": "secret123"}))
	if err == nil {
		t.Fatal("Validate() should return error for missing field")
	}

	errs := ValidationErrors(err)
	if len(errs) != 1 {
		t.Fatalf("Validate() = %d errors, want 1", len(errs))
	}

	var validErr *ValidationError
	if !errors.As(errs[0], &validErr) {
		t.Fatalf("error should be *ValidationError, got %T", errs[0])
	}
	if validErr.Key != "retries" || validErr.Reason != "required" {
		t.Errorf("got %q/%q, want retries/required", validErr.Key, validErr.Reason)
	}
}

func TestValidate_TypeMismatchOrdered(t *testing.T) {
	schema := Schema{
		"b": Int(),
		"a": List(Int()),
	}

	err := Validate(schema, doc(map[string]any{
		"a": []any{1, "two"},
		"b": "not an int",
	}))
	errs := ValidationErrors(err)
	if len(errs) != 2 {
		t.Fatalf("Validate() = %d errors, want 2: %v", len(errs), err)
	}

	want := []string{
		`field "a": element 1: expected int, got string`,
		`field "b": expected int, got string`,
	}
	for i, w := range want {
		if got := errs[i].Error(); len(got) < len(w) || got[:len(w)] != w {
			t.Errorf("error %d = %q, want prefix %q", i, got, w)
		}
	}
}

func TestValidateValue(t *testing.T) {
	schema := Schema{"count": Int()}

	if err := ValidateValue(schema, "count", value.Int(1)); err != nil {
		t.Errorf("ValidateValue() = %v, want nil", err)
	}
	if err := ValidateValue(schema, "count", value.String("1")); err == nil {
		t.Error("ValidateValue() should reject a string")
	}
	if err := ValidateValue(schema, "other", value.String("1")); err != nil {
		t.Errorf("undeclared path should pass, got %v", err)
	}
}

func TestCustom(t *testing.T) {
	positive := Custom("positive_int", func(v value.Value) error {
		i, ok := v.AsInt()
		if !ok || i <= 0 {
			return fmt.Errorf("must be a positive int")
		}
		return nil
	})

	if err := positive.Validate(value.Int(2)); err != nil {
		t.Errorf("Validate(2) = %v", err)
	}
	if err := positive.Validate(value.Int(-2)); err == nil {
		t.Error("Validate(-2) should fail")
	}
	if positive.Name() != "positive_int" {
		t.Errorf("Name() = %q", positive.Name())
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "string", want: "string"},
		{in: "float", want: "float"},
		{in: " [int] ", want: "[int]"},
		{in: "[[bool]]", want: "[[bool]]"},
		{in: "map?", want: "map?"},
		{in: "[string]?", want: "[string]?"},
		{in: "any", want: "any"},
		{in: "date", wantErr: true},
		{in: "[]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got.Name() != tt.want {
				t.Errorf("ParseType(%q).Name() = %q, want %q", tt.in, got.Name(), tt.want)
			}
		})
	}
}

func TestSchema_JSON(t *testing.T) {
	in, err := ParseTypeMap(map[string]string{"tags": "[string]", "theme": "string?"})
	if err != nil {
		t.Fatal(err)
	}

	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"tags":"[string]","theme":"string?"}` {
		t.Errorf("MarshalJSON() = %s", data)
	}

	var out Schema
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out["theme"].Name() != "string?" {
		t.Errorf("round trip lost optional: %q", out["theme"].Name())
	}

	if err := json.Unmarshal([]byte(`{"a": "date"}`), &out); err == nil {
		t.Error("UnmarshalJSON() should reject unknown types")
	}
	if err := json.Unmarshal([]byte(`{"a": 1}`), &out); err == nil {
		t.Error("UnmarshalJSON() should reject non-string types")
	}

	var none Schema
	if data, _ := json.Marshal(none); string(data) != "null" {
		t.Errorf("MarshalJSON(nil) = %s", data)
	}
	if err := json.Unmarshal([]byte("null"), &out); err != nil || out != nil {
		t.Errorf("UnmarshalJSON(null) = %v, %v", out, err)
	}
}

func TestSchema_Declarations(t *testing.T) {
	decl := map[string]string{"owner": "string", "todos": "[map]?"}
	s, err := ParseTypeMap(decl)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Declarations()
	if err != nil {
		t.Fatal(err)
	}
	if !maps.Equal(got, decl) {
		t.Errorf("Declarations() = %v, want %v", got, decl)
	}

	if _, err := (Schema{"x": nil}).Declarations(); err == nil {
		t.Error("Declarations() should reject a missing type")
	}
}
