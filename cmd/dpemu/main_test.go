package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/log"
)

const noiseYAML = `
tree:
  kind: leaf
  filters:
    - type: GaussianNoise
      params: {mean: 0, std: $std}
sweep:
  seed: 11
  grid: {std: [0, 2]}
  models:
    - name: predictor
      type: weighted_average
      grid: {weight: [0.5]}
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	prev := log.GetLogger()
	t.Cleanup(func() { log.SetLogger(prev) })

	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	tree := writeFile(t, dir, "tree.yaml", noiseYAML)

	out, err := execute(t, "describe", tree)
	require.NoError(t, err)
	assert.Contains(t, out, "GaussianNoise")
	assert.Contains(t, out, "parameters: std")
}

func TestGenerate(t *testing.T) {
	dir := t.TempDir()
	tree := writeFile(t, dir, "tree.yaml", noiseYAML)
	data := writeFile(t, dir, "data.json", "[1, 2, 3]")

	t.Run("zero noise is identity", func(t *testing.T) {
		out, err := execute(t, "generate", tree, "--data", data, "--set", "std=0")
		require.NoError(t, err)
		d, err := tensor.DecodeJSON([]byte(out))
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3}, d.(*tensor.Array).Floats())
	})

	t.Run("same seed same output", func(t *testing.T) {
		first := filepath.Join(dir, "a.json")
		second := filepath.Join(dir, "b.json")
		_, err := execute(t, "generate", tree, "--data", data, "--set", "std=3", "--seed", "5", "-o", first)
		require.NoError(t, err)
		_, err = execute(t, "generate", tree, "--data", data, "--set", "std=3", "--seed", "5", "-o", second)
		require.NoError(t, err)

		a, err := os.ReadFile(first)
		require.NoError(t, err)
		b, err := os.ReadFile(second)
		require.NoError(t, err)
		assert.Equal(t, string(a), string(b))
		assert.NotEqual(t, "[1,2,3]\n", string(a))
	})

	t.Run("uint8 saturates", func(t *testing.T) {
		out, err := execute(t, "generate", tree, "--data", data, "--set", "std=1000", "--dtype", "uint8")
		require.NoError(t, err)
		d, err := tensor.DecodeJSON([]byte(out))
		require.NoError(t, err)
		for _, v := range d.(*tensor.Array).Floats() {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 255.0)
			assert.Equal(t, math.Round(v), v)
		}
	})

	t.Run("missing parameter", func(t *testing.T) {
		_, err := execute(t, "generate", tree, "--data", data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "std")
	})

	t.Run("malformed set", func(t *testing.T) {
		_, err := execute(t, "generate", tree, "--data", data, "--set", "std")
		require.Error(t, err)
	})
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	tree := writeFile(t, dir, "tree.yaml", noiseYAML)
	test := writeFile(t, dir, "test.json", "[1, 2, 3, 4, 5, 6]")
	png := filepath.Join(dir, "mse.png")

	out, err := execute(t, "sweep", tree, "--test", test, "--workers", "1", "--plot", png, "--x", "std")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Model: predictor", lines[0])
	assert.Contains(t, lines[1], "std")
	assert.Contains(t, lines[1], "weight")
	assert.Contains(t, lines[1], "MSE")
	assert.NotContains(t, lines[1], "seed")

	info, err := os.Stat(png)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	_, err = execute(t, "sweep", tree, "--test", test, "--plot", png)
	assert.Error(t, err)
}

func TestSweepNeedsSweepSection(t *testing.T) {
	dir := t.TempDir()
	tree := writeFile(t, dir, "tree.yaml", "tree: {kind: leaf}\n")
	test := writeFile(t, dir, "test.json", "[1, 2]")
	_, err := execute(t, "sweep", tree, "--test", test)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no sweep section")
}

const zeroSeedYAML = `
tree:
  kind: leaf
  filters:
    - type: ApplyWithProbability
      params: {filter: $noise, p: 1.0}
sweep:
  seed: 0
  base: {noise: {filter: {type: Constant, params: {value: 9}}}}
`

func TestGenerateFileSeedZero(t *testing.T) {
	dir := t.TempDir()
	tree := writeFile(t, dir, "tree.yaml", zeroSeedYAML)
	data := writeFile(t, dir, "data.json", "[1, 2, 3, 4, 5, 6, 7, 8]")

	// seed: 0 は明示的な値として扱う
	first, err := execute(t, "generate", tree, "--data", data, "--set", "noise={filter: {type: GaussianNoise, params: {mean: 0, std: 5}}}")
	require.NoError(t, err)
	second, err := execute(t, "generate", tree, "--data", data, "--set", "noise={filter: {type: GaussianNoise, params: {mean: 0, std: 5}}}")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.NotEqual(t, "[1,2,3,4,5,6,7,8]\n", first)

	out, err := execute(t, "generate", tree, "--data", data)
	require.NoError(t, err)
	assert.Equal(t, "[9,9,9,9,9,9,9,9]\n", out)

	_, err = execute(t, "generate", tree, "--data", data, "--set", "noise={filter: {type: Blurr}}")
	assert.Error(t, err)
}
