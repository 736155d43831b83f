package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/arbor/internal/adapters/file"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/registry"
)

// RunValidate compiles and checks every template in opts.Dir.
func RunValidate(opts Options, w io.Writer) error {
	loader := file.NewLoader(opts.Dir)
	names, err := loader.ListTemplates()
	if err != nil {
		return err
	}

	funcs := registry.Default()
	var errs []string
	for _, name := range names {
		tpl, err := loader.GetTemplate(name)
		if err == nil {
			err = validator.ValidateTemplate(tpl, validator.WithRegistry(funcs))
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("found %d invalid templates:\n- %s", len(errs), strings.Join(errs, "\n- "))
	}
	printSystemMessage(w, "%d templates are valid! ✅", len(names))
	return nil
}
