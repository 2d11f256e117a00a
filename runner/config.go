package runner

import (
	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/go-multierror"

	"github.com/YuminosukeSato/dpemu/core/model"
	"github.com/YuminosukeSato/dpemu/core/node"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/pkg/log"
)

// configValidate checks Config and ModelSpec struct tags.
var configValidate = validator.New()

// ModelSpec describes one model and the parameter sets it is run with.
type ModelSpec struct {
	// Name labels the model in results and plots.
	Name string `validate:"required"`

	// New returns a fresh model for every run, so models need not be safe
	// for concurrent use.
	New func() model.Model `validate:"required"`

	// ParamsList holds the model parameter sets. An empty list runs the
	// model once with no parameters.
	ParamsList []params.Params

	// UseCleanTrainData hands the model the uncorrupted training data.
	UseCleanTrainData bool
}

// Config describes a sweep: every error parameter set is applied to the
// data through Root and every model is scored on the result.
type Config struct {
	Train tensor.Dataset
	Test  tensor.Dataset `validate:"required"`
	Root  node.Node      `validate:"required"`

	ErrParams []params.Params `validate:"min=1"`
	Models    []ModelSpec     `validate:"min=1,dive"`

	// Preprocessor runs after error generation. Nil passes data through.
	Preprocessor  model.Preprocessor
	PreprocParams params.Params

	// Seed is the base seed. A sweep point without its own "seed" error
	// parameter uses Seed plus its index.
	Seed uint64

	// Workers bounds the number of sweep points run at once. Zero means
	// GOMAXPROCS.
	Workers int `validate:"gte=0"`

	Logger log.Logger
}

// Validate reports every problem with c at once.
func (c *Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return errors.Wrap(err, "runner: invalid config")
	}
	var result *multierror.Error
	for _, fe := range fieldErrs {
		result = multierror.Append(result,
			errors.NewValidationError(fe.Namespace(), "failed on the '"+fe.Tag()+"' rule", fe.Value()))
	}
	return result.ErrorOrNil()
}
