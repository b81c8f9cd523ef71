package model

import "time"

// CheckpointKind identifies one of the scheduled checks of a task.
type CheckpointKind string

const (
	// CheckpointKindMidway is the intermediate progress check at 50% of the task duration.
	CheckpointKindMidway CheckpointKind = "intermediate_50"
	// CheckpointKindLate is the intermediate progress check at 90% of the task duration.
	CheckpointKindLate CheckpointKind = "intermediate_90"
	// CheckpointKindFinal is the completion check at the deadline.
	CheckpointKindFinal CheckpointKind = "final"
)

// Intermediate returns true for progress checks that don't resolve the task.
func (k CheckpointKind) Intermediate() bool {
	return k != CheckpointKindFinal
}

// Checkpoint is a scheduled instant at which the system asks the assignee
// about a task. Checkpoints are derived from the task fields, they are never
// persisted on their own.
type Checkpoint struct {
	TaskID  string
	Kind    CheckpointKind
	FiresAt time.Time
}
