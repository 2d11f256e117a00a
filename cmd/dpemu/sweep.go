package main

import (
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/plotting"
	"github.com/YuminosukeSato/dpemu/runner"
)

type sweepOptions struct {
	paramFlags
	train   string
	test    string
	dtype   string
	workers int
	ignore  []string

	plot  string
	score string
	x     string
}

func newSweepCmd() *cobra.Command {
	opts := &sweepOptions{}
	cmd := &cobra.Command{
		Use:   "sweep TREE.yaml --test TEST.json",
		Short: "Score the configured models over a grid of error parameters",
		Long: `Score the configured models over a grid of error parameters.

The tree file must carry a sweep section naming the parameter grid and the
models. --set overrides the sweep's base parameters. Results are printed as
one table per model; --plot also draws --score against the error parameter
--x.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, args[0], opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.test, "test", "", "test dataset (JSON)")
	cmd.Flags().StringVar(&opts.train, "train", "", "training dataset (JSON)")
	cmd.Flags().StringVar(&opts.dtype, "dtype", "", "cast numeric arrays to float64 or uint8 before corrupting")
	cmd.Flags().IntVar(&opts.workers, "workers", -1, "sweep points run at once (default: the file's value)")
	cmd.Flags().StringSliceVar(&opts.ignore, "ignore", nil, "parameters left out of the table")
	cmd.Flags().StringVar(&opts.plot, "plot", "", "write a score plot to this PNG or SVG file")
	cmd.Flags().StringVar(&opts.score, "score", "MSE", "score drawn by --plot")
	cmd.Flags().StringVar(&opts.x, "x", "", "error parameter on the x axis of --plot")
	_ = cmd.MarkFlagRequired("test")
	return cmd
}

func runSweep(cmd *cobra.Command, treePath string, opts *sweepOptions) error {
	if opts.plot != "" && opts.x == "" {
		return errors.NewValidationError("x", "--plot needs the error parameter to draw against", opts.x)
	}
	f, err := loadFile(treePath)
	if err != nil {
		return err
	}
	if f.Sweep == nil {
		return errors.NewValueError("sweep", treePath+" has no sweep section")
	}
	root, err := f.Tree.Build()
	if err != nil {
		return err
	}

	sweep := *f.Sweep
	if sweep.Base, err = opts.params(sweep.Base); err != nil {
		return err
	}
	if opts.seed >= 0 {
		seed := uint64(opts.seed)
		sweep.Seed = &seed
	}
	if opts.workers >= 0 {
		sweep.Workers = opts.workers
	}
	errParams, err := sweep.ErrParams()
	if err != nil {
		return err
	}
	models, err := sweep.RunnerModels()
	if err != nil {
		return err
	}

	test, err := readDataset(opts.test, opts.dtype)
	if err != nil {
		return err
	}
	var train tensor.Dataset
	if opts.train != "" {
		if train, err = readDataset(opts.train, opts.dtype); err != nil {
			return err
		}
	}

	results, err := runner.Run(cmd.Context(), runner.Config{
		Train:        train,
		Test:         test,
		Root:         root,
		ErrParams:    errParams,
		Models:       models,
		Preprocessor: sweep.RunnerPreprocessor(),
		Seed:         sweep.BaseSeed(),
		Workers:      sweep.Workers,
	})
	if err != nil {
		return err
	}
	if err := plotting.PrintResults(cmd.OutOrStdout(), results, append(opts.ignore, params.SeedKey)...); err != nil {
		return err
	}
	if opts.plot == "" {
		return nil
	}
	p, err := plotting.VisualizeScores(results, plotting.ScoreOptions{Score: opts.score, ErrParam: opts.x})
	if err != nil {
		return err
	}
	return plotting.Save(p, opts.plot)
}
