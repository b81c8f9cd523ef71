package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/model"
)

// RepositoryConfig is the configuration for the memory repository.
type RepositoryConfig struct {
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// Repository is an in-memory implementation of storage.TaskRepository and
// storage.UserRepository.
type Repository struct {
	tasks  map[string]model.Task
	users  map[int64]model.User
	mu     sync.RWMutex
	logger log.Logger
}

// NewRepository creates a new memory repository.
func NewRepository(cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Repository{
		tasks:  make(map[string]model.Task),
		users:  make(map[int64]model.User),
		logger: cfg.Logger,
	}, nil
}

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return fmt.Errorf("task with id %s: %w", t.ID, model.ErrAlreadyExists)
	}

	r.tasks[t.ID] = t
	r.logger.Debugf("Created task in repository: %s", t.ID)

	return nil
}

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	task, ok := r.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	// Return a copy.
	taskCopy := task
	return &taskCopy, nil
}

// ListActiveTasks returns the non-terminal tasks the user created or was
// assigned, ordered by deadline.
func (r *Repository) ListActiveTasks(ctx context.Context, userID int64) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []model.Task
	for _, task := range r.tasks {
		if task.Status.Terminal() {
			continue
		}
		if task.CreatorID != userID && task.AssigneeID != userID {
			continue
		}
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Deadline.Before(tasks[j].Deadline) })

	return tasks, nil
}

// ListUnresolvedTasks returns every non-terminal task.
func (r *Repository) ListUnresolvedTasks(ctx context.Context) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tasks []model.Task
	for _, task := range r.tasks {
		if task.Status.Terminal() {
			continue
		}
		tasks = append(tasks, task)
	}

	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Deadline.Before(tasks[j].Deadline) })

	return tasks, nil
}

// UpdateTaskStatus sets status only if the stored status still matches expected.
func (r *Repository) UpdateTaskStatus(ctx context.Context, id string, expected, new model.TaskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	if task.Status != expected {
		return fmt.Errorf("task %s status is %q, expected %q: %w", id, task.Status, expected, model.ErrStaleTransition)
	}

	task.Status = new
	r.tasks[id] = task
	r.logger.Debugf("Updated task status in repository: %s (%s -> %s)", id, expected, new)

	return nil
}

// SetTaskLastCheck stamps the last checkpoint instant of a task.
func (r *Repository) SetTaskLastCheck(ctx context.Context, id string, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	task, ok := r.tasks[id]
	if !ok {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	task.LastCheckAt = &t
	r.tasks[id] = task

	return nil
}

// SaveUser creates or refreshes a user record.
func (r *Repository) SaveUser(ctx context.Context, u model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.users[u.ID] = u
	r.logger.Debugf("Saved user in repository: %d", u.ID)

	return nil
}

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
	}

	userCopy := user
	return &userCopy, nil
}

// ListFrequentAssignees returns the distinct users the creator assigned tasks
// to, ordered by most recent task first.
func (r *Repository) ListFrequentAssignees(ctx context.Context, creatorID int64, limit int) ([]model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// Most recent task per assignee.
	lastUsed := map[int64]time.Time{}
	for _, task := range r.tasks {
		if task.CreatorID != creatorID || task.AssigneeID == creatorID {
			continue
		}
		if task.CreatedAt.After(lastUsed[task.AssigneeID]) {
			lastUsed[task.AssigneeID] = task.CreatedAt
		}
	}

	ids := make([]int64, 0, len(lastUsed))
	for id := range lastUsed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lastUsed[ids[i]].After(lastUsed[ids[j]]) })

	var users []model.User
	for _, id := range ids {
		if limit > 0 && len(users) >= limit {
			break
		}
		user, ok := r.users[id]
		if !ok {
			user = model.User{ID: id}
		}
		users = append(users, user)
	}

	return users, nil
}
