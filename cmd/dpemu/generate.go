package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/dpemu/core/node"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/pkg/log"
)

type generateOptions struct {
	paramFlags
	data  string
	out   string
	dtype string
}

func newGenerateCmd() *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate TREE.yaml --data DATA.json",
		Short: "Corrupt a JSON dataset with an error-generation tree",
		Long: `Corrupt a JSON dataset with an error-generation tree.

The parameters are the sweep's base parameters from the tree file, if any,
overridden by --set. The corrupted dataset is written as JSON to --out or
stdout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, args[0], opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().StringVar(&opts.data, "data", "", "input dataset (JSON)")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&opts.dtype, "dtype", "", "cast numeric arrays to float64 or uint8 before corrupting")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func runGenerate(cmd *cobra.Command, treePath string, opts *generateOptions) error {
	f, err := loadFile(treePath)
	if err != nil {
		return err
	}
	root, err := f.Tree.Build()
	if err != nil {
		return err
	}
	var base map[string]any
	if f.Sweep != nil {
		base = f.Sweep.Base
	}
	p, err := opts.params(base)
	if err != nil {
		return err
	}
	data, err := readDataset(opts.data, opts.dtype)
	if err != nil {
		return err
	}

	var genOpts []node.Option
	switch {
	case opts.seed >= 0:
		genOpts = append(genOpts, node.WithSeed(uint64(opts.seed)))
	case f.Sweep != nil && f.Sweep.Seed != nil:
		if _, ok := p[params.SeedKey]; !ok {
			genOpts = append(genOpts, node.WithSeed(*f.Sweep.Seed))
		}
	}
	out, err := node.GenerateError(root, data, p, genOpts...)
	if err != nil {
		return err
	}
	log.GetLogger().Info("dataset corrupted", log.ShapeKey, tensor.Describe(out))

	encoded, err := tensor.EncodeJSON(out)
	if err != nil {
		return err
	}
	encoded = append(encoded, '\n')
	if opts.out == "" {
		_, err = cmd.OutOrStdout().Write(encoded)
		return err
	}
	if err := os.WriteFile(opts.out, encoded, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", opts.out)
	}
	return nil
}
