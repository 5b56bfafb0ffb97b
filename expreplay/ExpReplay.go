// Package expreplay implements experience replay buffers which store
// past transitions so that they can be reused for learning.
package expreplay

import (
	"errors"
	"fmt"
)

var (
	errEmptyCache          = errors.New("buffer is empty")
	errInsufficientSamples = errors.New("insufficient samples in buffer")
)

// ExpReplayError records an error and the operation on an experience
// replay buffer that caused it.
type ExpReplayError struct {
	Op  string
	Err error
}

// Error implements the error interface
func (e *ExpReplayError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e *ExpReplayError) Unwrap() error {
	return e.Err
}

// IsEmptyBuffer returns whether an error was caused by sampling an
// empty buffer
func IsEmptyBuffer(err error) bool {
	return errors.Is(err, errEmptyCache)
}

// IsInsufficientSamples returns whether an error was caused by
// sampling more transitions than are stored in a buffer
func IsInsufficientSamples(err error) bool {
	return errors.Is(err, errInsufficientSamples)
}

// Batch is a batch of transitions sampled from a buffer, stored as
// parallel slices. Row i of States and NextStates, and element i of
// Actions, Rewards, and Dones, all belong to the same transition.
// States and NextStates are row-major with one row per transition.
//
// Dones holds 1 for transitions that ended an episode and 0
// otherwise.
type Batch struct {
	States     []float64
	Actions    []int
	Rewards    []float64
	NextStates []float64
	Dones      []float64
}

// Len returns the number of transitions in the batch
func (b Batch) Len() int {
	return len(b.Actions)
}

// String implements the fmt.Stringer interface
func (b Batch) String() string {
	str := "Batch  |  States: %v  |  Actions: %v  |  Rewards: %v  |  " +
		"Next States: %v  |  Dones: %v"
	return fmt.Sprintf(str, b.States, b.Actions, b.Rewards, b.NextStates,
		b.Dones)
}
