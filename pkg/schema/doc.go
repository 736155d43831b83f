// Package schema declares the shape a State document must have.
//
// A Schema maps dotted State paths to types. The built-in types are string,
// int, float (which also accepts ints), bool, map, any and lists of any of
// these. A trailing "?" makes a path optional: it may be missing or null.
//
// Basic usage:
//
//	s := schema.Schema{
//	    "user.name": schema.String(),
//	    "retries":   schema.Int(),
//	    "tags":      schema.List(schema.String()),
//	    "theme":     schema.Optional(schema.String()),
//	}
//
//	if err := schema.Validate(s, store.Get); err != nil {
//	    // Handle validation errors
//	}
//
// Schemas can be created programmatically or parsed from type strings, the
// form templates declare them in:
//
//	s, err := schema.ParseTypeMap(map[string]string{
//	    "user.name": "string",
//	    "tags":      "[string]",
//	    "theme":     "string?",
//	})
//
// Custom validators can be registered for domain-specific validation:
//
//	positive := schema.Custom("positive_int", func(v value.Value) error {
//	    i, ok := v.AsInt()
//	    if !ok || i <= 0 {
//	        return fmt.Errorf("must be a positive int")
//	    }
//	    return nil
//	})
package schema
