package registry

import (
	"fmt"
	"strings"

	"github.com/aretw0/arbor/pkg/value"
)

// RegisterBuiltins adds to_upper, to_lower, contains, len and join to r.
func RegisterBuiltins(r *Registry) {
	r.Register("to_upper", stringFunc(strings.ToUpper))
	r.Register("to_lower", stringFunc(strings.ToLower))
	r.Register("len", length)
	r.Register("contains", contains)
	r.Register("join", join)
}

func arity(args []value.Value, n int) error {
	if len(args) != n {
		return fmt.Errorf("expected %d arguments, got %d", n, len(args))
	}
	return nil
}

func stringFunc(fn func(string) string) Function {
	return func(args []value.Value) (value.Value, error) {
		if err := arity(args, 1); err != nil {
			return value.Null(), err
		}
		if args[0].IsNull() {
			return value.Null(), nil
		}
		return value.String(fn(args[0].String())), nil
	}
}

func length(args []value.Value) (value.Value, error) {
	if err := arity(args, 1); err != nil {
		return value.Null(), err
	}
	return value.Int(int64(args[0].Len())), nil
}

// contains checks list membership, map keys or substrings.
func contains(args []value.Value) (value.Value, error) {
	if err := arity(args, 2); err != nil {
		return value.Null(), err
	}
	haystack, needle := args[0], args[1]
	switch haystack.Kind() {
	case value.KindList:
		for _, item := range haystack.Items() {
			if item.Equal(needle) {
				return value.Bool(true), nil
			}
		}
		return value.Bool(false), nil
	case value.KindMap:
		_, ok := haystack.Fields()[needle.String()]
		return value.Bool(ok), nil
	case value.KindString:
		s, _ := haystack.AsString()
		return value.Bool(strings.Contains(s, needle.String())), nil
	}
	return value.Bool(false), nil
}

func join(args []value.Value) (value.Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return value.Null(), fmt.Errorf("expected 1 or 2 arguments, got %d", len(args))
	}
	sep := ", "
	if len(args) == 2 {
		sep = args[1].String()
	}
	items := args[0].Items()
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.String()
	}
	return value.String(strings.Join(parts, sep)), nil
}
