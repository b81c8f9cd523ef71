package model

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus represents the lifecycle state of a task.
type TaskStatus string

const (
	// TaskStatusPending indicates the task has been created and not acted on yet.
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusInProgress indicates the assignee reported progress on a checkpoint.
	TaskStatusInProgress TaskStatus = "in_progress"
	// TaskStatusDone indicates the task was completed (terminal).
	TaskStatusDone TaskStatus = "done"
	// TaskStatusFailed indicates the task was not completed by the deadline (terminal).
	TaskStatusFailed TaskStatus = "failed"
)

// Terminal returns true when the status admits no further transitions.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusDone || s == TaskStatusFailed
}

// CheckpointThreshold is the minimum task duration required for intermediate
// progress checkpoints. Shorter tasks only get the final deadline check.
const CheckpointThreshold = 10 * time.Minute

// Task represents a deadline-bound task assigned between two users.
type Task struct {
	ID         string
	CreatorID  int64
	AssigneeID int64
	Text       string
	Status     TaskStatus
	CreatedAt  time.Time
	Deadline   time.Time

	// CheckpointsEnabled is fixed at creation and decides whether intermediate
	// checkpoints exist for the task. Checkpoint instants are derived from
	// CreatedAt/Deadline/CheckpointsEnabled, never stored.
	CheckpointsEnabled bool

	// LastCheckAt is stamped when an intermediate checkpoint fires.
	LastCheckAt *time.Time
}

// Validate validates the task fields.
func (t *Task) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("id is required: %w", ErrNotValid)
	}
	if t.CreatorID == 0 {
		return fmt.Errorf("creator id is required: %w", ErrNotValid)
	}
	if t.AssigneeID == 0 {
		return fmt.Errorf("assignee id is required: %w", ErrNotValid)
	}
	if strings.TrimSpace(t.Text) == "" {
		return fmt.Errorf("text is required: %w", ErrNotValid)
	}
	if !t.Deadline.After(t.CreatedAt) {
		return fmt.Errorf("deadline must be strictly after creation time: %w", ErrNotValid)
	}

	return nil
}

// Answer is an assignee response to a checkpoint notification.
type Answer string

const (
	// AnswerDone reports the task as completed, valid at any moment before or at
	// the final checkpoint.
	AnswerDone Answer = "done"
	// AnswerInProgress reports the task as on track at an intermediate checkpoint.
	AnswerInProgress Answer = "in_progress"
	// AnswerProblem reports a blocking problem at an intermediate checkpoint.
	AnswerProblem Answer = "problem"
	// AnswerNotDone reports non-completion at the final checkpoint.
	AnswerNotDone Answer = "not_done"
)

// TransitionFor returns the status an answer moves a task into.
//
// It is the single source of truth of the lifecycle state machine: terminal
// statuses reject every answer with ErrStaleTransition and unknown answers are
// not valid. Applying the result must go through the repository conditional
// update so concurrent writers can't both win.
func TransitionFor(current TaskStatus, answer Answer) (TaskStatus, error) {
	if current.Terminal() {
		return current, fmt.Errorf("task already resolved as %q: %w", current, ErrStaleTransition)
	}

	switch answer {
	case AnswerDone:
		return TaskStatusDone, nil
	case AnswerInProgress, AnswerProblem:
		return TaskStatusInProgress, nil
	case AnswerNotDone:
		return TaskStatusFailed, nil
	default:
		return current, fmt.Errorf("unknown answer %q: %w", answer, ErrNotValid)
	}
}

// NoResponsePolicy decides what happens when the final checkpoint never gets
// an answer from the assignee.
type NoResponsePolicy string

const (
	// NoResponseWait leaves the task non-terminal until an explicit answer arrives.
	NoResponseWait NoResponsePolicy = "wait"
	// NoResponseFail moves the task to failed after a grace period without answer.
	NoResponseFail NoResponsePolicy = "fail"
)
