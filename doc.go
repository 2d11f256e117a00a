// Package dpemu emulates data problems: it corrupts clean datasets in
// controlled, reproducible ways so that the robustness of models and
// preprocessing can be measured against the kind and amount of damage.
//
// A corruption is described by an error-generation tree that mirrors the
// structure of the data. Leaves hold ordered chains of filters (noise,
// missing values, rotation, OCR misreadings, sensor gaps, ...); composite
// nodes split sequences and tuples and hand the pieces to their children.
// Filter parameters are either fixed when the tree is built or looked up by
// name in a parameter dictionary, so one tree can be swept over a grid of
// error parameters.
//
// # Quick Start
//
//	package main
//
//	import (
//	    "fmt"
//	    "log"
//
//	    "github.com/YuminosukeSato/dpemu/core/node"
//	    "github.com/YuminosukeSato/dpemu/core/params"
//	    "github.com/YuminosukeSato/dpemu/core/tensor"
//	    "github.com/YuminosukeSato/dpemu/filters"
//	)
//
//	func main() {
//	    data := tensor.Must(tensor.FromFloat64([]float64{1, 2, 3}, 3))
//
//	    leaf := node.NewLeaf()
//	    if err := leaf.AddFilter(filters.GaussianNoise(params.Value(0.0), params.Key[float64]("std"))); err != nil {
//	        log.Fatal(err)
//	    }
//	    root := node.Must(node.NewSeries(leaf))
//
//	    out, err := node.GenerateError(root, data, params.Params{"std": 0.5, "seed": 1})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    fmt.Println(out)
//	}
//
// The same seed, tree, data and parameters always give the same output.
//
// # Packages
//
//   - core/tensor: arrays, tuples and lists, and their JSON encoding
//   - core/params: parameter dictionary, resolver, generators and sweep grids
//   - core/node: the error-generation tree and the GenerateError driver
//   - filters: the filter contract, the probability gate and common filters
//   - filters/image, filters/text, filters/timeseries: domain filters
//   - runner: concurrent sweeps of error parameters against models
//   - core/model, linear, preprocessing, metrics: what a sweep scores
//   - plotting: result tables and score plots
//   - config: YAML descriptions of trees and sweeps
//   - cmd/dpemu: command line interface
//
// # License
//
// dpemu is released under the MIT License.
package dpemu
