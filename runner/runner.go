// Package runner sweeps error parameters against models. For every error
// parameter set it corrupts the data with an error-generation tree, runs an
// optional preprocessor and scores every model and model parameter set on
// the result.
//
// Sweep points run concurrently but each has its own seeded random source,
// so the results do not depend on scheduling and come back in sweep order.
package runner

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/dpemu/core/model"
	"github.com/YuminosukeSato/dpemu/core/node"
	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/core/tensor"
	"github.com/YuminosukeSato/dpemu/pkg/errors"
	"github.com/YuminosukeSato/dpemu/pkg/log"
)

// Result is the outcome of one model run at one sweep point.
type Result struct {
	// PointID identifies the sweep point. It is derived from the base seed
	// and the point index, so reruns produce the same ids.
	PointID uuid.UUID
	Point   int
	Seed    uint64

	Model       string
	ErrParams   params.Params
	ModelParams params.Params

	Scores        model.Scores
	PreprocScores model.Scores

	GenerateDuration time.Duration
	PreprocDuration  time.Duration
	ModelDuration    time.Duration
}

// Run executes the sweep described by cfg. The first failure cancels the
// remaining points and is returned; trees built from the bundled filters
// are safe to share between points.
func Run(ctx context.Context, cfg Config) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	logger = logger.With(log.ComponentKey, "runner", log.OperationKey, log.OperationSweep)

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger.Info("starting sweep",
		log.SweepSizeKey, len(cfg.ErrParams),
		"models", len(cfg.Models),
		log.RandomSeedKey, cfg.Seed,
	)

	start := time.Now()
	perPoint := make([][]Result, len(cfg.ErrParams))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, ep := range cfg.ErrParams {
		g.Go(func() error {
			res, err := runPoint(gctx, &cfg, i, ep, logger)
			if err != nil {
				return errors.Wrapf(err, "sweep point %d", i)
			}
			perPoint[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("sweep failed", log.ErrAttrKey, err)
		return nil, err
	}

	var results []Result
	for _, res := range perPoint {
		results = append(results, res...)
	}
	logger.Info("sweep finished",
		log.SweepSizeKey, len(cfg.ErrParams),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return results, nil
}

// PointSeed returns the seed used for sweep point i.
func PointSeed(base uint64, i int, errParams params.Params) (uint64, error) {
	seed, ok, err := errParams.Seed()
	if err != nil {
		return 0, err
	}
	if ok {
		return seed, nil
	}
	return base + uint64(i), nil
}

// PointID returns the id of sweep point i.
func PointID(base uint64, i int) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("dpemu/sweep/%d/%d", base, i)))
}

type prepared struct {
	train, test tensor.Dataset
	scores      model.Scores
	took        time.Duration
}

func runPoint(ctx context.Context, cfg *Config, i int, ep params.Params, logger log.Logger) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed, err := PointSeed(cfg.Seed, i, ep)
	if err != nil {
		return nil, err
	}
	id := PointID(cfg.Seed, i)
	logger = logger.With(log.SweepPointKey, i, log.RandomSeedKey, seed)

	// Test data is corrupted first so that its errors do not depend on
	// whether training data is corrupted too.
	rng := params.NewRand(seed)
	genStart := time.Now()
	errTest, err := node.GenerateError(cfg.Root, cfg.Test, ep, node.WithRand(rng), node.WithLogger(logger))
	if err != nil {
		return nil, errors.Wrap(err, "corrupting test data")
	}
	var errTrain tensor.Dataset
	if cfg.Train != nil && needsCorruptedTrain(cfg.Models) {
		errTrain, err = node.GenerateError(cfg.Root, cfg.Train, ep, node.WithRand(rng), node.WithLogger(logger))
		if err != nil {
			return nil, errors.Wrap(err, "corrupting training data")
		}
	}
	genTook := time.Since(genStart)

	pre := cfg.Preprocessor
	if pre == nil {
		pre = model.Passthrough
	}
	variants := map[bool]*prepared{}
	prepare := func(clean bool) (*prepared, error) {
		if p, ok := variants[clean]; ok {
			return p, nil
		}
		train := errTrain
		if clean {
			train = cfg.Train
		}
		p := &prepared{}
		start := time.Now()
		err := errors.SafeExecute("preprocessor", func() error {
			var err error
			p.train, p.test, p.scores, err = pre.Run(ctx, train, errTest, cfg.PreprocParams)
			return err
		})
		if err != nil {
			return nil, errors.Wrap(err, "preprocessing")
		}
		p.took = time.Since(start)
		variants[clean] = p
		return p, nil
	}

	var results []Result
	for _, spec := range cfg.Models {
		data, err := prepare(spec.UseCleanTrainData || cfg.Train == nil)
		if err != nil {
			return nil, err
		}
		paramsList := spec.ParamsList
		if len(paramsList) == 0 {
			paramsList = []params.Params{{}}
		}
		for _, mp := range paramsList {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			start := time.Now()
			var scores model.Scores
			err := errors.SafeExecute("model "+spec.Name, func() error {
				var err error
				scores, err = spec.New().Run(ctx, data.train, data.test, mp)
				return err
			})
			if err != nil {
				return nil, errors.Wrapf(err, "model %q with %v", spec.Name, mp)
			}
			took := time.Since(start)
			logger.Debug("model scored",
				log.ModelNameKey, spec.Name,
				log.ParamsKey, mp,
				log.ScoresKey, scores,
				log.DurationMsKey, took.Milliseconds(),
			)
			results = append(results, Result{
				PointID:          id,
				Point:            i,
				Seed:             seed,
				Model:            spec.Name,
				ErrParams:        ep,
				ModelParams:      mp,
				Scores:           scores,
				PreprocScores:    data.scores,
				GenerateDuration: genTook,
				PreprocDuration:  data.took,
				ModelDuration:    took,
			})
		}
	}
	logger.Debug("sweep point finished", log.DurationMsKey, time.Since(genStart).Milliseconds())
	return results, nil
}

func needsCorruptedTrain(models []ModelSpec) bool {
	for _, m := range models {
		if !m.UseCleanTrainData {
			return true
		}
	}
	return false
}
