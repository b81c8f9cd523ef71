package storage

import (
	"context"
	"time"

	"github.com/slok/deadliner/internal/model"
)

// TaskRepository is the interface for task persistence.
//
// It is the only shared mutable resource of the system: every status mutation
// goes through UpdateTaskStatus so concurrent writers (checkpoint firings and
// user answers) contend on an explicit conditional update instead of racing.
type TaskRepository interface {
	CreateTask(ctx context.Context, t model.Task) error
	GetTask(ctx context.Context, id string) (*model.Task, error)
	// ListActiveTasks returns the non-terminal tasks where the user is creator
	// or assignee, ordered by deadline.
	ListActiveTasks(ctx context.Context, userID int64) ([]model.Task, error)
	// ListUnresolvedTasks returns every non-terminal task. Used by the
	// scheduler recovery scan on startup.
	ListUnresolvedTasks(ctx context.Context) ([]model.Task, error)
	// UpdateTaskStatus sets the task status only if the stored status still
	// matches expected. A lost race returns model.ErrStaleTransition.
	UpdateTaskStatus(ctx context.Context, id string, expected, new model.TaskStatus) error
	// SetTaskLastCheck stamps the instant at which a checkpoint last fired.
	SetTaskLastCheck(ctx context.Context, id string, t time.Time) error
}

// UserRepository is the interface for the known users directory.
type UserRepository interface {
	// SaveUser creates or refreshes a user record.
	SaveUser(ctx context.Context, u model.User) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	// ListFrequentAssignees returns the distinct users the creator assigned
	// tasks to, most recently used first, excluding the creator itself.
	ListFrequentAssignees(ctx context.Context, creatorID int64, limit int) ([]model.User, error)
}
