package checkpointer

import ts "github.com/samuelfneumann/goirrigate/timestep"

// nEpisode implements checkpointing every N episodes
type nEpisode struct {
	interval int
	episodes int
	object   Serializable

	// filename returns the filename of the file to save the object in.
	// Use FilenameEnumerator to keep every checkpoint, or Fixed to keep
	// only the most recent one.
	filename func() string
}

// NewNEpisode returns a checkpointer that saves object at the end of
// every n-th episode
func NewNEpisode(n int, object Serializable,
	filename func() string) Checkpointer {
	if n <= 0 {
		n = 1
	}
	return &nEpisode{
		interval: n,
		object:   object,
		filename: filename,
	}
}

// Checkpoint saves the Checkpointer's tracked object if t ends the
// n-th episode since the last checkpoint
func (n *nEpisode) Checkpoint(t ts.TimeStep) error {
	if !t.Last() {
		return nil
	}

	n.episodes++
	if n.episodes%n.interval == 0 {
		return Save(n.filename(), n.object)
	}
	return nil
}
