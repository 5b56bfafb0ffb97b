package expreplay

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"

	ts "github.com/samuelfneumann/goirrigate/timestep"
)

// fifoRemove1Cache is a bounded ring buffer of transitions. Once
// full, each Add overwrites the oldest transition in the buffer, so
// insertion order defines eviction order.
//
// fifoRemove1Cache is not safe for concurrent use.
type fifoRemove1Cache struct {
	stateCache     []float64
	actionCache    []int
	rewardCache    []float64
	doneCache      []float64
	nextStateCache []float64

	// next is the slot written by the next call to Add
	next   int
	isFull bool

	indices []int // Scratch space for sampled slots
	src     rand.Source

	maxCapacity int
	featureSize int
}

// FifoBuffer is a bounded experience replay buffer with first-in
// first-out eviction, sampled uniformly at random without replacement.
type FifoBuffer struct {
	*fifoRemove1Cache
}

// New returns a new FifoBuffer holding at most capacity transitions
// with states of featureSize features. Samples are drawn using src.
func New(capacity, featureSize int, src rand.Source) (*FifoBuffer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("new: capacity must be >= 1, have(%v)",
			capacity)
	}
	if featureSize < 1 {
		return nil, fmt.Errorf("new: feature size must be >= 1, have(%v)",
			featureSize)
	}
	if src == nil {
		return nil, fmt.Errorf("new: nil random source")
	}

	return &FifoBuffer{newFifoRemove1Cache(capacity, featureSize, src)}, nil
}

// newFifoRemove1Cache returns a new fifoRemove1Cache
func newFifoRemove1Cache(maxCapacity, featureSize int,
	src rand.Source) *fifoRemove1Cache {
	return &fifoRemove1Cache{
		stateCache:     make([]float64, maxCapacity*featureSize),
		actionCache:    make([]int, maxCapacity),
		rewardCache:    make([]float64, maxCapacity),
		doneCache:      make([]float64, maxCapacity),
		nextStateCache: make([]float64, maxCapacity*featureSize),

		src: src,

		maxCapacity: maxCapacity,
		featureSize: featureSize,
	}
}

// String returns the string representation of the buffer
func (c *fifoRemove1Cache) String() string {
	return fmt.Sprintf("FifoBuffer  |  Len: %v  |  Capacity: %v", c.Len(),
		c.Capacity())
}

// Len returns the current number of transitions in the buffer
func (c *fifoRemove1Cache) Len() int {
	if c.isFull {
		return c.maxCapacity
	}
	return c.next
}

// Capacity returns the maximum number of transitions allowed in the
// buffer at any given time
func (c *fifoRemove1Cache) Capacity() int {
	return c.maxCapacity
}

// FeatureSize returns the number of features in each stored state
func (c *fifoRemove1Cache) FeatureSize() int {
	return c.featureSize
}

// Add copies a transition into the buffer, evicting the oldest
// transition if the buffer is full
func (c *fifoRemove1Cache) Add(t ts.Transition) error {
	if t.State.Len() != c.featureSize || t.NextState.Len() != c.featureSize {
		return fmt.Errorf("add: invalid feature size \n\twant(%v)\n\t"+
			"have(%v, %v)", c.featureSize, t.State.Len(), t.NextState.Len())
	}

	index := c.next
	stateInd := index * c.featureSize
	for i := 0; i < c.featureSize; i++ {
		c.stateCache[stateInd+i] = t.State.AtVec(i)
		c.nextStateCache[stateInd+i] = t.NextState.AtVec(i)
	}

	c.actionCache[index] = t.Action
	c.rewardCache[index] = t.Reward
	c.doneCache[index] = 0
	if t.Done {
		c.doneCache[index] = 1
	}

	c.next = (c.next + 1) % c.maxCapacity
	if c.next == 0 {
		c.isFull = true
	}
	return nil
}

// Sample draws batchSize distinct transitions uniformly at random
// from the buffer. The buffer must hold at least batchSize
// transitions.
func (c *fifoRemove1Cache) Sample(batchSize int) (Batch, error) {
	if batchSize < 1 {
		return Batch{}, &ExpReplayError{
			Op:  "sample",
			Err: fmt.Errorf("batch size must be >= 1, have(%v)", batchSize),
		}
	}
	if c.Len() == 0 {
		return Batch{}, &ExpReplayError{Op: "sample", Err: errEmptyCache}
	}
	if c.Len() < batchSize {
		err := fmt.Errorf("%w: want(%v) have(%v)", errInsufficientSamples,
			batchSize, c.Len())
		return Batch{}, &ExpReplayError{Op: "sample", Err: err}
	}

	if cap(c.indices) < batchSize {
		c.indices = make([]int, batchSize)
	}
	indices := c.indices[:batchSize]
	sampleuv.WithoutReplacement(indices, c.Len(), c.src)

	batch := Batch{
		States:     make([]float64, batchSize*c.featureSize),
		Actions:    make([]int, batchSize),
		Rewards:    make([]float64, batchSize),
		NextStates: make([]float64, batchSize*c.featureSize),
		Dones:      make([]float64, batchSize),
	}
	for i, index := range indices {
		batchStartInd := i * c.featureSize
		expStartInd := index * c.featureSize
		copy(batch.States[batchStartInd:batchStartInd+c.featureSize],
			c.stateCache[expStartInd:expStartInd+c.featureSize])
		copy(batch.NextStates[batchStartInd:batchStartInd+c.featureSize],
			c.nextStateCache[expStartInd:expStartInd+c.featureSize])

		batch.Actions[i] = c.actionCache[index]
		batch.Rewards[i] = c.rewardCache[index]
		batch.Dones[i] = c.doneCache[index]
	}

	return batch, nil
}
