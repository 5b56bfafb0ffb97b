package environment

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
	"gonum.org/v1/gonum/stat/distmv"
)

// UniformStarter samples starting states uniformly from a box
type UniformStarter struct {
	features int
	rand     *distmv.Uniform
}

// NewUniformStarter returns a new UniformStarter that samples dimension
// i of a starting state uniformly from bounds[i]. Sampling draws from
// src, so that a single seeded source can drive an entire run.
func NewUniformStarter(bounds []r1.Interval, src rand.Source) UniformStarter {
	return UniformStarter{len(bounds), distmv.NewUniform(bounds, src)}
}

// Start returns a starting state vector
func (u UniformStarter) Start() mat.Vector {
	return mat.NewVecDense(u.features, u.rand.Rand(nil))
}
