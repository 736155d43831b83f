package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/dirty"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/state"
	"gopkg.in/yaml.v3"
)

// ParseValue reads a command-line value as YAML, so that 42, true, [a, b]
// and {k: v} keep their types. Anything unparsable is taken as a string.
func ParseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

// RunSet assigns value at path in the State source. Sources that support it
// are updated atomically; others are loaded and saved back.
func RunSet(ctx context.Context, opts Options, path string, value any) error {
	if opts.State == "" {
		return fmt.Errorf("--state is required")
	}
	logger, err := CreateLogger(opts)
	if err != nil {
		return err
	}
	src, err := OpenSource(opts.State, logger)
	if err != nil {
		return err
	}
	if src, err = SecureSource(src, opts); err != nil {
		return err
	}

	apply := func(doc map[string]any) error {
		return setIn(doc, path, value)
	}

	if u, ok := src.(ports.Updater); ok {
		return u.Update(ctx, apply)
	}

	sink, ok := src.(ports.Sink)
	if !ok {
		return fmt.Errorf("%w: state source cannot save", arbor.ErrNotSupported)
	}
	doc, err := src.Load(ctx)
	if errors.Is(err, domain.ErrSourceNotFound) {
		doc, err = map[string]any{}, nil
	}
	if err != nil {
		return err
	}
	if err := apply(doc); err != nil {
		return err
	}
	logger.Warn("state source has no atomic update; saved without a lock")
	return sink.Save(ctx, doc)
}

// setIn applies a path assignment to a plain document with the same rules
// the engine uses.
func setIn(doc map[string]any, path string, value any) error {
	st := state.FromMap(dirty.New(), doc)
	if err := st.Set(path, value); err != nil {
		return err
	}
	clear(doc)
	maps.Copy(doc, st.Snapshot())
	return nil
}
