// Package resolve implements the application service that applies a user's
// answer to a task and runs the side effects of the resulting transition.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/slok/deadliner/internal/clock"
	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/notify"
	"github.com/slok/deadliner/internal/storage"
)

// Canceller knows how to drop the pending checkpoint timers of a task.
type Canceller interface {
	CancelTask(taskID string)
}

//go:generate mockery --case underscore --output resolvemock --outpkg resolvemock --name Canceller

// ServiceConfig is the configuration of Service.
type ServiceConfig struct {
	Repository storage.TaskRepository
	Canceller  Canceller
	Dispatcher notify.Dispatcher
	Clock      clock.Clock
	Logger     log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}

	if c.Canceller == nil {
		return fmt.Errorf("canceller is required")
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
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.resolve.Service"})

	return nil
}

// Service resolves task answers into status transitions.
type Service struct {
	repo       storage.TaskRepository
	canceller  Canceller
	dispatcher notify.Dispatcher
	clock      clock.Clock
	logger     log.Logger
}

// NewService returns a new resolve service.
func NewService(config ServiceConfig) (*Service, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:       config.Repository,
		canceller:  config.Canceller,
		dispatcher: config.Dispatcher,
		clock:      config.Clock,
		logger:     config.Logger,
	}, nil
}

// AnswerOptions are the options for answering a task check.
type AnswerOptions struct {
	TaskID  string
	Answer  model.Answer
	Problem string
}

// Answer applies the given answer to the task. The status update is a
// compare-and-set on the status read here, so a concurrent resolution (e.g the
// deadline expiry marking the task failed) makes this answer lose cleanly
// instead of resurrecting the task.
func (s *Service) Answer(ctx context.Context, opts AnswerOptions) (*model.Task, error) {
	logger := s.logger.WithValues(log.Kv{"task-id": opts.TaskID, "answer": opts.Answer})

	task, err := s.repo.GetTask(ctx, opts.TaskID)
	if err != nil {
		return nil, fmt.Errorf("could not get task: %w", err)
	}

	newStatus, err := model.TransitionFor(task.Status, opts.Answer)
	if err != nil {
		return nil, fmt.Errorf("could not resolve answer: %w", err)
	}

	err = s.repo.UpdateTaskStatus(ctx, task.ID, task.Status, newStatus)
	if err != nil {
		if errors.Is(err, model.ErrStaleTransition) {
			logger.Warningf("Task status changed concurrently, answer discarded")
			return nil, fmt.Errorf("task %q was resolved concurrently: %w", task.ID, model.ErrStaleTransition)
		}
		return nil, fmt.Errorf("could not update task status: %w", err)
	}

	task.Status = newStatus
	logger.Infof("Task answered")

	s.runSideEffects(ctx, task, opts)

	return task, nil
}

// runSideEffects cancels timers and notifies the creator depending on the
// answer. Notification failures are logged and swallowed, the transition
// already happened.
func (s *Service) runSideEffects(ctx context.Context, task *model.Task, opts AnswerOptions) {
	switch opts.Answer {
	case model.AnswerDone:
		s.canceller.CancelTask(task.ID)
		kind := notify.KindCompleted
		if s.clock.Now().Before(task.Deadline) {
			kind = notify.KindCompletedEarly
		}
		s.notifyCreator(ctx, task, notify.Payload{Kind: kind, Task: *task})

	case model.AnswerNotDone:
		s.canceller.CancelTask(task.ID)
		s.notifyCreator(ctx, task, notify.Payload{Kind: notify.KindNotCompleted, Task: *task})

	case model.AnswerProblem:
		s.notifyCreator(ctx, task, notify.Payload{Kind: notify.KindProblemReport, Task: *task, Problem: opts.Problem})

	case model.AnswerInProgress:
		// Nothing to do, the checkpoints keep running.
	}
}

func (s *Service) notifyCreator(ctx context.Context, task *model.Task, payload notify.Payload) {
	if task.CreatorID == task.AssigneeID {
		return
	}

	err := s.dispatcher.Notify(ctx, task.CreatorID, payload)
	if err != nil {
		s.logger.WithValues(log.Kv{"task-id": task.ID}).Errorf("Could not notify creator: %s", err)
	}
}
