package tracker

import "github.com/samuelfneumann/goirrigate/utils/floatutils"

// Loss records the loss of each update of a learner. Unlike the other
// Trackers, a Loss is not driven by TimeSteps, since updates need not
// happen on every step of an experiment.
type Loss struct {
	losses   []float64
	filename string
}

// NewLoss returns a new Loss which will save its data to filename
func NewLoss(filename string) *Loss {
	return &Loss{filename: filename}
}

// Add records the loss of a single update
func (l *Loss) Add(loss float64) {
	l.losses = append(l.losses, loss)
}

// Len returns the number of updates recorded
func (l *Loss) Len() int {
	return len(l.losses)
}

// Losses returns the loss of every recorded update, in order
func (l *Loss) Losses() []float64 {
	losses := make([]float64, len(l.losses))
	copy(losses, l.losses)
	return losses
}

// TrailingMean returns the mean of the last n recorded losses, or of
// all recorded losses if fewer than n were recorded. The boolean is
// false if no losses were recorded.
func (l *Loss) TrailingMean(n int) (float64, bool) {
	if n <= 0 {
		return 0, false
	}
	return floatutils.TrailingMean(l.losses, n)
}

// Save saves the recorded losses to disk
func (l *Loss) Save() error {
	return save(l.filename, l.losses)
}
