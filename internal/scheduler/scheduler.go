// Package scheduler owns the live timers for all pending checkpoints of all
// tasks. Every outstanding checkpoint is an independent goroutine suspended on
// the clock; when it elapses the task status is re-read from storage before
// anything user visible happens, so checkpoints racing a user answer degrade
// to silent no-ops.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slok/deadliner/internal/clock"
	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/notify"
	"github.com/slok/deadliner/internal/schedule"
	"github.com/slok/deadliner/internal/storage"
)

const defaultNoResponseGrace = time.Hour

// kindNoResponse keys the extra waiter of the no-response fail policy. Not a
// real checkpoint, it never notifies the assignee.
const kindNoResponse = model.CheckpointKind("no_response")

// Config is the configuration of the Scheduler.
type Config struct {
	Repository storage.TaskRepository
	Dispatcher notify.Dispatcher
	Clock      clock.Clock

	// NoResponsePolicy decides what happens when the final checkpoint is never
	// answered. NoResponseFail moves the task to failed NoResponseGrace after
	// the deadline through the same conditional update the answers use, so a
	// late answer racing the expiry still wins.
	NoResponsePolicy model.NoResponsePolicy
	NoResponseGrace  time.Duration

	Logger log.Logger
}

func (c *Config) defaults() error {
	if c.Repository == nil {
		return fmt.Errorf("repository is required")
	}
	if c.Dispatcher == nil {
		return fmt.Errorf("dispatcher is required")
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.NoResponsePolicy == "" {
		c.NoResponsePolicy = model.NoResponseWait
	}
	if c.NoResponsePolicy != model.NoResponseWait && c.NoResponsePolicy != model.NoResponseFail {
		return fmt.Errorf("unknown no-response policy %q", c.NoResponsePolicy)
	}
	if c.NoResponseGrace <= 0 {
		c.NoResponseGrace = defaultNoResponseGrace
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "scheduler.Scheduler"})
	return nil
}

type waiterKey struct {
	taskID string
	kind   model.CheckpointKind
}

// Scheduler registers, fires and cancels checkpoint waiters.
type Scheduler struct {
	repo       storage.TaskRepository
	dispatcher notify.Dispatcher
	clock      clock.Clock
	policy     model.NoResponsePolicy
	grace      time.Duration
	logger     log.Logger

	baseCtx  context.Context
	stopBase context.CancelFunc

	mu      sync.Mutex
	waiters map[waiterKey]context.CancelFunc
	wg      sync.WaitGroup
}

// NewScheduler creates a new Scheduler.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	baseCtx, stopBase := context.WithCancel(context.Background())

	return &Scheduler{
		repo:       cfg.Repository,
		dispatcher: cfg.Dispatcher,
		clock:      cfg.Clock,
		policy:     cfg.NoResponsePolicy,
		grace:      cfg.NoResponseGrace,
		logger:     cfg.Logger,
		baseCtx:    baseCtx,
		stopBase:   stopBase,
		waiters:    map[waiterKey]context.CancelFunc{},
	}, nil
}

// ScheduleTask registers waiters for every checkpoint of the task still in
// the future. Checkpoints already in the past are skipped, they are never
// fired late (recovery is the only caller that fires elapsed checkpoints).
func (s *Scheduler) ScheduleTask(t model.Task) {
	cps := schedule.Upcoming(t, s.clock.Now())
	for _, cp := range cps {
		s.register(cp)
	}

	s.logger.Debugf("Scheduled %d checkpoints for task %s", len(cps), t.ID)
}

// CancelTask cancels every outstanding waiter of a task. Used when the task
// reaches a terminal status by other means than a checkpoint firing.
func (s *Scheduler) CancelTask(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for key, cancel := range s.waiters {
		if key.taskID != taskID {
			continue
		}
		cancel()
		delete(s.waiters, key)
		cancelled++
	}

	if cancelled > 0 {
		s.logger.Debugf("Cancelled %d checkpoints for task %s", cancelled, taskID)
	}
}

// Recover re-derives the checkpoint schedule of every non-terminal task from
// storage and re-registers waiters. Checkpoints whose instant elapsed while
// the process was down are fired immediately; every firing re-checks the task
// status so duplicates stay invisible to users. Errors on a single task never
// abort the recovery of the rest.
func (s *Scheduler) Recover(ctx context.Context) error {
	tasks, err := s.repo.ListUnresolvedTasks(ctx)
	if err != nil {
		return fmt.Errorf("could not list unresolved tasks: %w", err)
	}

	now := s.clock.Now()
	recovered := 0
	for _, t := range tasks {
		if err := t.Validate(); err != nil {
			s.logger.Errorf("Could not recover task %s: %s", t.ID, err)
			continue
		}

		for _, cp := range schedule.Plan(t) {
			if cp.FiresAt.After(now) {
				s.register(cp)
				continue
			}

			s.fireDetached(cp)
		}
		if s.policy == model.NoResponseFail && !t.Deadline.Add(s.grace).After(now) {
			s.fireDetached(model.Checkpoint{TaskID: t.ID, Kind: kindNoResponse, FiresAt: t.Deadline.Add(s.grace)})
		}

		recovered++
	}

	s.logger.Infof("Recovered %d unresolved tasks", recovered)
	return nil
}

// Outstanding returns the number of registered waiters, all tasks included.
func (s *Scheduler) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.waiters)
}

// Stop cancels every waiter and blocks until all of them have finished.
func (s *Scheduler) Stop() {
	s.stopBase()
	s.wg.Wait()
}

func (s *Scheduler) register(cp model.Checkpoint) {
	key := waiterKey{taskID: cp.TaskID, kind: cp.Kind}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Already registered, keep the existing waiter (instants are deterministic
	// so both would be identical anyway).
	if _, ok := s.waiters[key]; ok {
		return
	}

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.waiters[key] = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.remove(key)

		if err := s.clock.WaitUntil(ctx, cp.FiresAt); err != nil {
			return // Cancelled while waiting.
		}

		s.fire(ctx, cp)
	}()
}

func (s *Scheduler) remove(key waiterKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cancel, ok := s.waiters[key]; ok {
		cancel()
		delete(s.waiters, key)
	}
}

// fireDetached fires a checkpoint right now on its own goroutine, without
// registering a waiter. Used by recovery for instants elapsed during downtime.
func (s *Scheduler) fireDetached(cp model.Checkpoint) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fire(s.baseCtx, cp)
	}()
}

func (s *Scheduler) fire(ctx context.Context, cp model.Checkpoint) {
	logger := s.logger.WithValues(log.Kv{"task-id": cp.TaskID, "checkpoint": cp.Kind})

	task, err := s.repo.GetTask(ctx, cp.TaskID)
	if err != nil {
		logger.Errorf("Could not get task on checkpoint firing: %s", err)
		return
	}

	// The task may have been resolved while we slept (or microseconds ago, by
	// an answer racing this firing). Either way the checkpoint is moot.
	if task.Status.Terminal() {
		logger.Debugf("Checkpoint for resolved task ignored")
		return
	}

	if cp.Kind == kindNoResponse {
		s.expire(ctx, *task, logger)
		return
	}

	var payload notify.Payload
	switch {
	case cp.Kind.Intermediate():
		if err := s.repo.SetTaskLastCheck(ctx, task.ID, s.clock.Now()); err != nil {
			logger.Warningf("Could not stamp checkpoint time: %s", err)
		}
		payload = notify.Payload{Kind: notify.KindProgressQuery, Task: *task}
	default:
		payload = notify.Payload{Kind: notify.KindCompletionQuery, Task: *task}
		if s.policy == model.NoResponseFail {
			s.register(model.Checkpoint{
				TaskID:  task.ID,
				Kind:    kindNoResponse,
				FiresAt: task.Deadline.Add(s.grace),
			})
		}
	}

	// Best effort delivery: a failed dispatch is logged and forgotten, it must
	// not break this nor any other waiter.
	if err := s.dispatcher.Notify(ctx, task.AssigneeID, payload); err != nil {
		logger.Warningf("Could not dispatch checkpoint notification: %s", err)
		return
	}

	logger.Debugf("Checkpoint notification dispatched")
}

// expire applies the no-response fail policy: the task moves to failed only if
// it is still in the status we just read, so an answer landing concurrently
// wins the compare-and-set and the expiry becomes a no-op.
func (s *Scheduler) expire(ctx context.Context, task model.Task, logger log.Logger) {
	err := s.repo.UpdateTaskStatus(ctx, task.ID, task.Status, model.TaskStatusFailed)
	if err != nil {
		logger.Debugf("No-response expiry did not apply: %s", err)
		return
	}

	logger.Infof("Task %s failed: no answer to the final checkpoint", task.ID)

	task.Status = model.TaskStatusFailed
	if err := s.dispatcher.Notify(ctx, task.CreatorID, notify.Payload{Kind: notify.KindNotCompleted, Task: task}); err != nil {
		logger.Warningf("Could not dispatch expiry notification: %s", err)
	}
}
