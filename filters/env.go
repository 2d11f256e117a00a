package filters

import (
	"math/rand/v2"
	"strings"

	"github.com/YuminosukeSato/dpemu/core/params"
	"github.com/YuminosukeSato/dpemu/pkg/log"
)

// Env is the per-run context threaded through the tree. The random source
// is shared by reference so that all leaves draw from one sequence.
type Env struct {
	Rand   *rand.Rand
	Params *params.Resolver
	Logger log.Logger

	path []string
}

// NewEnv returns an Env. A nil logger discards records.
func NewEnv(rng *rand.Rand, resolver *params.Resolver, logger log.Logger) *Env {
	if logger == nil {
		logger = log.Nop()
	}
	if resolver == nil {
		resolver = params.NewResolver(nil)
	}
	return &Env{Rand: rng, Params: resolver, Logger: logger}
}

// Push enters a tree position.
func (e *Env) Push(segment string) { e.path = append(e.path, segment) }

// Pop leaves the current tree position.
func (e *Env) Pop() {
	if len(e.path) > 0 {
		e.path = e.path[:len(e.path)-1]
	}
}

// Path returns the current position, e.g. "series/tuple[1]/leaf".
func (e *Env) Path() string { return strings.Join(e.path, "/") }
