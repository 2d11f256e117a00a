// Command dpemu corrupts datasets with error-generation trees described in
// YAML and sweeps error parameters against reference models.
//
//	dpemu describe tree.yaml
//	dpemu generate tree.yaml --data clean.json --set std=2 --seed 7 > noisy.json
//	dpemu sweep tree.yaml --test series.json --plot mse.png --score MSE --x std
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
