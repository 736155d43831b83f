package middleware

import (
	"context"
	"fmt"
	"regexp"
)

// Mask replaces the values of masked keys.
const Mask = "***"

type piiMiddleware struct {
	next     Store
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks, on save, the values of
// map keys matching any of the patterns, at any depth. Loads pass through.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid mask pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next Store) Store {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, data map[string]any) error {
	// The engine keeps using data; only the copy is masked.
	masked, _ := m.mask(data).(map[string]any)
	return m.next.Save(ctx, masked)
}

func (m *piiMiddleware) Load(ctx context.Context) (map[string]any, error) {
	return m.next.Load(ctx)
}

func (m *piiMiddleware) mask(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			if m.matches(k) {
				out[k] = Mask
				continue
			}
			out[k] = m.mask(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = m.mask(item)
		}
		return out
	default:
		return v
	}
}

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}
