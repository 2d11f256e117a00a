package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/dpemu/core/node"
)

func newDescribeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "describe TREE.yaml",
		Short: "Print an error-generation tree and the parameters it reads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadFile(args[0])
			if err != nil {
				return err
			}
			root, err := f.Tree.Build()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprint(out, node.Describe(root))
			if keys := node.Keys(root); len(keys) > 0 {
				fmt.Fprintf(out, "parameters: %s\n", strings.Join(keys, ", "))
			}
			return nil
		},
	}
}
