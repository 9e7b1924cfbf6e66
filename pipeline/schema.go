package pipeline

import (
	"github.com/YuminosukeSato/adpipe/config"
	"github.com/YuminosukeSato/adpipe/dataset"
	"github.com/YuminosukeSato/adpipe/pkg/errors"
)

// Schema names the columns the Preprocessor relies on.
type Schema struct {
	Label   string
	Numeric []string
	Drop    []string
}

// SchemaFromConfig copies the preprocessing schema out of cfg.
func SchemaFromConfig(cfg config.PreprocessConfig) Schema {
	return Schema{
		Label:   cfg.Label,
		Numeric: append([]string(nil), cfg.Numeric...),
		Drop:    append([]string(nil), cfg.Drop...),
	}
}

// Required returns the label followed by the numeric columns.
func (s Schema) Required() []string {
	return append([]string{s.Label}, s.Numeric...)
}

// Check returns a SchemaMismatchError listing every required column absent from f.
func (s Schema) Check(op string, f *dataset.Frame) error {
	if missing := f.Missing(s.Required()...); len(missing) > 0 {
		return errors.NewSchemaMismatchError(op, missing)
	}
	for _, name := range s.Numeric {
		if name == s.Label {
			return errors.NewSchemaMismatchErrorf(op, "label %q cannot also be a feature", name)
		}
		for _, d := range s.Drop {
			if d == name {
				return errors.NewSchemaMismatchErrorf(op, "numeric column %q is also in the drop list", name)
			}
		}
	}
	return nil
}

// dropList always contains the label, even when Drop omits it.
func (s Schema) dropList() []string {
	for _, d := range s.Drop {
		if d == s.Label {
			return s.Drop
		}
	}
	return append(append([]string(nil), s.Drop...), s.Label)
}
