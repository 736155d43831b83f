package cli

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/adapters/file"
	"github.com/aretw0/arbor/internal/adapters/redis"
	"github.com/aretw0/arbor/pkg/persistence/middleware"
	"github.com/aretw0/arbor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// CreateEngine initializes an arbor engine with standard CLI conventions.
// Extra options are applied after the ones derived from opts.
func CreateEngine(opts Options, logger *slog.Logger, extra ...arbor.Option) (*arbor.Engine, error) {
	engineOpts := []arbor.Option{arbor.WithLogger(logger)}

	// 1. Templates
	loader := file.NewLoader(opts.Dir)
	engineOpts = append(engineOpts, arbor.WithLoader(loader))

	// 2. Smart Convention: Template
	// Without --template, use the first of main/index/<dir name> that exists.
	name := opts.Template
	if name == "" {
		var err error
		if name, err = determineTemplate(loader, opts.Dir); err != nil {
			return nil, err
		}
	}
	engineOpts = append(engineOpts, arbor.WithTemplate(name))

	// 3. State
	if opts.State != "" {
		src, err := OpenSource(opts.State, logger)
		if err != nil {
			return nil, err
		}
		if src, err = SecureSource(src, opts); err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, arbor.WithSource(src))
	}

	// 4. Initialize
	engine, err := arbor.New(opts.Dir, append(engineOpts, extra...)...)
	if err != nil {
		return nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, nil
}

// OpenSource picks the state backend from location: a redis:// or
// rediss:// URL selects Redis, anything else is a file path.
func OpenSource(location string, logger *slog.Logger) (ports.Source, error) {
	if strings.HasPrefix(location, "redis://") || strings.HasPrefix(location, "rediss://") {
		redisOpts, err := backend.ParseURL(location)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return redis.NewFromClient(backend.NewClient(redisOpts), redis.WithLogger(logger)), nil
	}
	return file.NewSource(location), nil
}

// SecureSource wraps src with the PII masking and encryption middlewares
// requested by opts. Masking happens before encryption.
func SecureSource(src ports.Source, opts Options) (ports.Source, error) {
	if opts.StateKey == "" && len(opts.Mask) == 0 {
		return src, nil
	}
	store, ok := src.(middleware.Store)
	if !ok {
		return nil, fmt.Errorf("%w: state source cannot save", arbor.ErrNotSupported)
	}

	var mws []middleware.Middleware
	if len(opts.Mask) > 0 {
		mw, err := middleware.NewPIIMiddleware(opts.Mask)
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	if opts.StateKey != "" {
		key, err := hex.DecodeString(opts.StateKey)
		if err != nil {
			return nil, fmt.Errorf("invalid state key: %w", err)
		}
		mw, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key})
		if err != nil {
			return nil, err
		}
		mws = append(mws, mw)
	}
	return middleware.Chain(store, mws...), nil
}

// determineTemplate resolves the default template of a project.
func determineTemplate(loader ports.TemplateLoader, dir string) (string, error) {
	names, err := loader.ListTemplates()
	if err != nil {
		return "", err
	}

	candidates := []string{arbor.DefaultTemplate, "index"}
	if abs, err := filepath.Abs(dir); err == nil {
		candidates = append(candidates, filepath.Base(abs))
	}
	for _, c := range candidates {
		if slices.Contains(names, c) {
			return c, nil
		}
	}
	// A project with a single template needs no convention.
	if len(names) == 1 {
		return names[0], nil
	}
	return arbor.DefaultTemplate, nil
}
