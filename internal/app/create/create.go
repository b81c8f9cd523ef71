package create

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/deadliner/internal/clock"
	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/notify"
	"github.com/slok/deadliner/internal/storage"
)

// Scheduler registers the checkpoint timers of a task.
type Scheduler interface {
	ScheduleTask(t model.Task)
}

// ServiceConfig is the configuration for the create service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Scheduler  Scheduler
	Dispatcher notify.Dispatcher
	Clock      clock.Clock
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Scheduler == nil {
		return fmt.Errorf("scheduler is required")
	}
	if c.Dispatcher == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Create"})
	return nil
}

// Service handles task creation business logic. It is the only write path
// into the engine from the creation flow.
type Service struct {
	repo       storage.TaskRepository
	scheduler  Scheduler
	dispatcher notify.Dispatcher
	clock      clock.Clock
	logger     log.Logger
}

// NewService creates a new create service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:       cfg.Repository,
		scheduler:  cfg.Scheduler,
		dispatcher: cfg.Dispatcher,
		clock:      cfg.Clock,
		logger:     cfg.Logger,
	}, nil
}

// CreateOptions are the options for creating a task.
type CreateOptions struct {
	CreatorID  int64
	AssigneeID int64
	Text       string
	Deadline   time.Time
}

// Create validates, persists and schedules a new task, and tells the assignee
// about it.
func (s *Service) Create(ctx context.Context, opts CreateOptions) (*model.Task, error) {
	now := s.clock.Now()

	task := model.Task{
		ID:         ulid.Make().String(),
		CreatorID:  opts.CreatorID,
		AssigneeID: opts.AssigneeID,
		Text:       opts.Text,
		Status:     model.TaskStatusPending,
		CreatedAt:  now,
		Deadline:   opts.Deadline,

		// Fixed at creation: short tasks only get the final deadline check.
		CheckpointsEnabled: opts.Deadline.Sub(now) > model.CheckpointThreshold,
	}

	// Invalid tasks (deadline in the past included) are rejected before
	// anything is persisted or scheduled.
	if err := task.Validate(); err != nil {
		return nil, fmt.Errorf("invalid task: %w", err)
	}

	if err := s.repo.CreateTask(ctx, task); err != nil {
		return nil, fmt.Errorf("could not save task: %w", err)
	}

	s.scheduler.ScheduleTask(task)

	// Self-assigned tasks don't need an assignment notification. Delivery is
	// best effort either way.
	if task.AssigneeID != task.CreatorID {
		err := s.dispatcher.Notify(ctx, task.AssigneeID, notify.Payload{Kind: notify.KindTaskAssigned, Task: task})
		if err != nil {
			s.logger.Warningf("Could not notify assignee of new task %s: %s", task.ID, err)
		}
	}

	s.logger.Infof("Created task %s (deadline %s, checkpoints: %t)", task.ID, task.Deadline, task.CheckpointsEnabled)

	return &task, nil
}
