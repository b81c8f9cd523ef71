// Package status implements the application service that shows the state of a
// single task together with its derived checkpoint plan.
package status

import (
	"context"
	"fmt"

	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/schedule"
	"github.com/slok/deadliner/internal/storage"
)

// ServiceConfig is the configuration of Service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.status.Service"})

	return nil
}

// Service shows task details.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService returns a new status service.
func NewService(config ServiceConfig) (*Service, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   config.Repository,
		logger: config.Logger,
	}, nil
}

// TaskStatus is a task with its full checkpoint plan. The plan is derived
// from the task itself, it is not stored, so it is always consistent with the
// task's deadline.
type TaskStatus struct {
	Task        model.Task
	Checkpoints []model.Checkpoint
}

// Status returns the task and its checkpoint plan.
func (s *Service) Status(ctx context.Context, taskID string) (*TaskStatus, error) {
	task, err := s.repo.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	return &TaskStatus{
		Task:        *task,
		Checkpoints: schedule.Plan(*task),
	}, nil
}
