package notify

import (
	"context"

	"github.com/slok/deadliner/internal/model"
)

// Kind identifies the reason a notification is being sent.
type Kind string

const (
	// KindTaskAssigned tells an assignee a new task was created for them.
	KindTaskAssigned Kind = "task_assigned"
	// KindProgressQuery asks the assignee how an in-flight task is going.
	KindProgressQuery Kind = "progress_query"
	// KindCompletionQuery asks the assignee whether the task was completed, at the deadline.
	KindCompletionQuery Kind = "completion_query"
	// KindCompletedEarly tells the creator the assignee finished before the deadline.
	KindCompletedEarly Kind = "completed_early"
	// KindCompleted tells the creator the task was completed.
	KindCompleted Kind = "completed"
	// KindNotCompleted tells the creator the task was not completed in time.
	KindNotCompleted Kind = "not_completed"
	// KindProblemReport forwards an assignee problem description to the creator.
	KindProblemReport Kind = "problem_report"
)

// Payload is the content of a notification. Rendering it into a concrete
// message is up to every Dispatcher implementation.
type Payload struct {
	Kind Kind
	Task model.Task
	// Problem carries the assignee free text on problem reports.
	Problem string
}

// Dispatcher delivers a notification to a user.
//
// Delivery is best effort: callers log and swallow errors, they never retry
// nor let a failed dispatch break scheduling or lifecycle transitions.
type Dispatcher interface {
	Notify(ctx context.Context, userID int64, payload Payload) error
}

// DispatcherFunc is a helper to use functions as Dispatcher implementations.
type DispatcherFunc func(ctx context.Context, userID int64, payload Payload) error

// Notify satisfies the Dispatcher interface.
func (f DispatcherFunc) Notify(ctx context.Context, userID int64, payload Payload) error {
	return f(ctx, userID, payload)
}
