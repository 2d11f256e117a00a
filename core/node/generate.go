package node

import (
	"math/rand/v2"
	"time"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/filters"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/pkg/log"
)

type runConfig struct {
	seed    *uint64
	rng     *rand.Rand
	logger  log.Logger
	noCheck bool
}

// Option configures a GenerateError call.
type Option func(*runConfig)

// WithSeed seeds the random source, overriding the "seed" parameter.
func WithSeed(seed uint64) Option {
	return func(c *runConfig) { c.seed = &seed }
}

// WithRand uses rng as the random source. The caller keeps ownership and
// the run advances its state.
func WithRand(rng *rand.Rand) Option {
	return func(c *runConfig) { c.rng = rng }
}

// WithLogger sets the logger. The default is log.GetLogger().
func WithLogger(l log.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithoutPreflight skips the up-front check that every statically declared
// parameter key is present. Missing keys then surface when the filter
// that needs them runs.
func WithoutPreflight() Option {
	return func(c *runConfig) { c.noCheck = true }
}

// GenerateError applies the tree rooted at root to data and returns the
// corrupted copy.
//
// The random source is, in order of precedence, the one passed with
// WithRand, one seeded by WithSeed, one seeded by the "seed" parameter, or
// one seeded from the clock, in which case the seed is logged. The same
// seed, tree, data and parameters always produce the same output.
//
// Before anything is corrupted the tree is checked against the data's
// outer structure and every statically declared parameter key is looked up,
// so a run either fails early or runs to completion. Errors carry the path
// of the node and the name of the filter involved.
func GenerateError(root Node, data tensor.Dataset, p params.Params, opts ...Option) (tensor.Dataset, error) {
	cfg := runConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLogger()
	}

	if root == nil {
		return nil, errors.NewStructureError("GenerateError", "", "root node is nil")
	}
	if root.Parent() != nil {
		return nil, errors.NewStructureError("GenerateError", root.Name(),
			"GenerateError must be called on the root of a tree")
	}
	if data == nil {
		return nil, errors.Wrap(errors.ErrEmptyData, "GenerateError")
	}
	if err := root.expects(root.Name(), data); err != nil {
		return nil, err
	}

	resolver := params.NewResolver(p)
	if !cfg.noCheck {
		if err := preflight(root, resolver); err != nil {
			return nil, err
		}
	}

	rng, seed, err := randomSource(cfg, p)
	if err != nil {
		return nil, err
	}
	logger := cfg.logger.With(log.OperationKey, log.OperationGenerate)
	if seed != nil {
		logger = logger.With(log.RandomSeedKey, *seed)
	}

	env := filters.NewEnv(rng, resolver, logger)
	start := time.Now()
	out, err := run(root, data, env)
	if err != nil {
		logger.Debug("error generation failed", log.NodeKindKey, root.Kind().String(), log.ErrAttrKey, err)
		return nil, err
	}
	logger.Debug("error generation finished",
		log.NodeKindKey, root.Kind().String(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

func randomSource(cfg runConfig, p params.Params) (*rand.Rand, *uint64, error) {
	if cfg.rng != nil {
		return cfg.rng, nil, nil
	}
	if cfg.seed != nil {
		return params.NewRand(*cfg.seed), cfg.seed, nil
	}
	seed, ok, err := p.Seed()
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		seed = uint64(time.Now().UnixNano())
		cfg.logger.Info("no seed supplied, seeding from the clock", log.RandomSeedKey, seed)
	}
	return params.NewRand(seed), &seed, nil
}

// preflight resolves every key the tree's filters declare.
func preflight(root Node, r *params.Resolver) error {
	return Walk(root, func(path string, n Node) error {
		leaf, ok := n.(*Leaf)
		if !ok {
			return nil
		}
		for _, f := range leaf.filters {
			for _, key := range f.Keys() {
				if _, err := r.Lookup(f.Name(), key); err != nil {
					return errors.Wrapf(err, "node %q", path)
				}
			}
		}
		return nil
	})
}

// Keys returns every parameter key the tree's filters declare, in tree
// order and without duplicates.
func Keys(root Node) []string {
	var fs []filters.Filter
	_ = Walk(root, func(_ string, n Node) error {
		if leaf, ok := n.(*Leaf); ok {
			fs = append(fs, leaf.filters...)
		}
		return nil
	})
	return filters.KeysOf(fs...)
}
