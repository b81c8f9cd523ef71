// Package list implements the application service that lists a user's tasks.
package list

import (
	"context"
	"fmt"

	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/model"
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.list.Service"})

	return nil
}

// Service lists tasks.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService returns a new list service.
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

// ListOptions are the options for listing tasks.
type ListOptions struct {
	UserID int64
}

// List returns the unresolved tasks the user created or was assigned,
// ordered by deadline.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]model.Task, error) {
	tasks, err := s.repo.ListActiveTasks(ctx, opts.UserID)
	if err != nil {
		return nil, fmt.Errorf("could not list tasks: %w", err)
	}

	return tasks, nil
}
