package sim

import (
	"time"

	"github.com/pkg/errors"
)

// Checkpoint is an immutable snapshot of the table store taken after a
// model step completes, tagged with the full step string (including
// any key=value parameter suffix).
type Checkpoint struct {
	StepName string
	At       time.Time
	store    *TableStore
}

// Store returns a deep copy of the checkpointed table store, so a
// restored run can never reach back into the snapshot.
func (c *Checkpoint) Store() *TableStore {
	return c.store.Clone()
}

// CheckpointLog is an append-only, time-ordered record of checkpoints.
// Restoring by name is a pure function of (log, name); resuming
// truncates everything after the named entry.
type CheckpointLog struct {
	entries []Checkpoint
}

// NewCheckpointLog creates an empty log.
func NewCheckpointLog() *CheckpointLog {
	return &CheckpointLog{}
}

// Append records a snapshot of the store under the step name.
func (l *CheckpointLog) Append(stepName string, store *TableStore) {
	l.entries = append(l.entries, Checkpoint{
		StepName: stepName,
		At:       time.Now(),
		store:    store.Clone(),
	})
}

// Len returns the number of recorded checkpoints.
func (l *CheckpointLog) Len() int { return len(l.entries) }

// Names returns checkpoint step names in record order.
func (l *CheckpointLog) Names() []string {
	names := make([]string, len(l.entries))
	for i, e := range l.entries {
		names[i] = e.StepName
	}
	return names
}

// Restore returns a deep copy of the store as of the named checkpoint
// and the checkpoint's index in the log. Fails with
// ErrUnknownResumeTarget if the name was never recorded. If the same
// step name was somehow recorded twice, the last record wins.
func (l *CheckpointLog) Restore(name string) (*TableStore, int, error) {
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].StepName == name {
			return l.entries[i].store.Clone(), i, nil
		}
	}
	return nil, -1, errors.Wrap(ErrUnknownResumeTarget, name)
}

// TruncateAfter discards every checkpoint recorded after index i.
func (l *CheckpointLog) TruncateAfter(i int) {
	if i+1 < len(l.entries) {
		l.entries = l.entries[:i+1]
	}
}
