package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/dpemu/config"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/pkg/log"
)

type rootOptions struct {
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "dpemu",
		Short:         "Emulate data problems with error-generation trees",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level, err := log.ToLogLevel(opts.logLevel)
			if err != nil {
				return err
			}
			log.SetLogger(log.NewZerologLogger(cmd.ErrOrStderr(), level))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	cmd.AddCommand(newDescribeCmd(), newGenerateCmd(), newSweepCmd())
	return cmd
}

// paramFlags holds the flags shared by generate and sweep.
type paramFlags struct {
	seed int64
	set  []string
}

func (p *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&p.seed, "seed", -1, "random seed (default: the file's seed or the clock)")
	cmd.Flags().StringArrayVar(&p.set, "set", nil, "parameter as key=value; values are parsed as YAML")
}

// params merges --set values over base. Values go through
// config.DecodeValue, so --set 'radius={gaussian: {mean: 2, std: 1}}' works.
func (p *paramFlags) params(base map[string]any) (params.Params, error) {
	out, err := config.DecodeParams(base)
	if err != nil {
		return nil, err
	}
	for _, kv := range p.set {
		key, raw, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, errors.NewValidationError("set", "expected key=value", kv)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, errors.Wrapf(err, "--set %s", key)
		}
		if out[key], err = config.DecodeValue(key, v); err != nil {
			return nil, errors.Wrapf(err, "--set %s", key)
		}
	}
	return out, nil
}

func loadFile(path string) (*config.File, error) {
	return config.LoadFile(path)
}

func readDataset(path, dtype string) (tensor.Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	d, err := tensor.DecodeJSON(data)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	if dtype == "" {
		return d, nil
	}
	dt, err := tensor.ParseDType(dtype)
	if err != nil {
		return nil, err
	}
	return convert(d, dt)
}

// convert casts every numeric array in d to dt.
func convert(d tensor.Dataset, dt tensor.DType) (tensor.Dataset, error) {
	switch x := d.(type) {
	case *tensor.Array:
		if !x.DType().IsNumeric() {
			return x, nil
		}
		return x.AsType(dt)
	case tensor.Tuple:
		out := make(tensor.Tuple, len(x))
		for i, e := range x {
			c, err := convert(e, dt)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case tensor.List:
		out := make(tensor.List, len(x))
		for i, e := range x {
			c, err := convert(e, dt)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	}
	return d, nil
}
