package create_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/deadliner/internal/app/create"
	clockfake "github.com/slok/deadliner/internal/clock/fake"
	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/notify"
	"github.com/slok/deadliner/internal/notify/notifymock"
	"github.com/slok/deadliner/internal/storage/storagemock"
)

type schedulerMock struct{ mock.Mock }

func (m *schedulerMock) ScheduleTask(t model.Task) { m.Called(t) }

func TestNewService(t *testing.T) {
	tests := map[string]struct {
		cfg    create.ServiceConfig
		expErr bool
		errMsg string
	}{
		"Valid config with all fields.": {
			cfg: create.ServiceConfig{
				Repository: &storagemock.MockTaskRepository{},
				Scheduler:  &schedulerMock{},
				Dispatcher: &notifymock.MockDispatcher{},
				Logger:     log.Noop,
			},
		},
		"Missing repository returns an error.": {
			cfg: create.ServiceConfig{
				Scheduler:  &schedulerMock{},
				Dispatcher: &notifymock.MockDispatcher{},
			},
			expErr: true,
			errMsg: "repository is required",
		},
		"Missing scheduler returns an error.": {
			cfg: create.ServiceConfig{
				Repository: &storagemock.MockTaskRepository{},
				Dispatcher: &notifymock.MockDispatcher{},
			},
			expErr: true,
			errMsg: "scheduler is required",
		},
		"Missing dispatcher returns an error.": {
			cfg: create.ServiceConfig{
				Repository: &storagemock.MockTaskRepository{},
				Scheduler:  &schedulerMock{},
			},
			expErr: true,
			errMsg: "dispatcher is required",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			svc, err := create.NewService(test.cfg)

			if test.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.errMsg)
				assert.Nil(t, svc)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestServiceCreate(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		opts        create.CreateOptions
		setupMocks  func(repo *storagemock.MockTaskRepository, sched *schedulerMock, dispatcher *notifymock.MockDispatcher)
		expErr      bool
		errMsg      string
		validateRes func(t *testing.T, task *model.Task)
	}{
		"A long task gets created with checkpoints enabled and the assignee is notified.": {
			opts: create.CreateOptions{
				CreatorID:  100,
				AssigneeID: 200,
				Text:       "write the report",
				Deadline:   t0.Add(time.Hour),
			},
			setupMocks: func(repo *storagemock.MockTaskRepository, sched *schedulerMock, dispatcher *notifymock.MockDispatcher) {
				repo.On("CreateTask", mock.Anything, mock.Anything).Return(nil)
				sched.On("ScheduleTask", mock.Anything).Return()
				dispatcher.On("Notify", mock.Anything, int64(200), mock.MatchedBy(func(p notify.Payload) bool {
					return p.Kind == notify.KindTaskAssigned
				})).Return(nil)
			},
			validateRes: func(t *testing.T, task *model.Task) {
				assert.NotEmpty(t, task.ID)
				assert.Equal(t, model.TaskStatusPending, task.Status)
				assert.True(t, task.CheckpointsEnabled)
				assert.Equal(t, t0, task.CreatedAt)
			},
		},
		"A short task gets created without checkpoints.": {
			opts: create.CreateOptions{
				CreatorID:  100,
				AssigneeID: 200,
				Text:       "send the email",
				Deadline:   t0.Add(5 * time.Minute),
			},
			setupMocks: func(repo *storagemock.MockTaskRepository, sched *schedulerMock, dispatcher *notifymock.MockDispatcher) {
				repo.On("CreateTask", mock.Anything, mock.Anything).Return(nil)
				sched.On("ScheduleTask", mock.Anything).Return()
				dispatcher.On("Notify", mock.Anything, int64(200), mock.Anything).Return(nil)
			},
			validateRes: func(t *testing.T, task *model.Task) {
				assert.False(t, task.CheckpointsEnabled)
			},
		},
		"A self-assigned task doesn't notify anyone.": {
			opts: create.CreateOptions{
				CreatorID:  100,
				AssigneeID: 100,
				Text:       "water the plants",
				Deadline:   t0.Add(time.Hour),
			},
			setupMocks: func(repo *storagemock.MockTaskRepository, sched *schedulerMock, dispatcher *notifymock.MockDispatcher) {
				repo.On("CreateTask", mock.Anything, mock.Anything).Return(nil)
				sched.On("ScheduleTask", mock.Anything).Return()
			},
			validateRes: func(t *testing.T, task *model.Task) {
				assert.Equal(t, task.CreatorID, task.AssigneeID)
			},
		},
		"A deadline in the past is rejected before persisting or scheduling.": {
			opts: create.CreateOptions{
				CreatorID:  100,
				AssigneeID: 200,
				Text:       "too late",
				Deadline:   t0.Add(-time.Minute),
			},
			setupMocks: func(repo *storagemock.MockTaskRepository, sched *schedulerMock, dispatcher *notifymock.MockDispatcher) {},
			expErr:     true,
			errMsg:     "invalid task",
		},
		"An empty text is rejected.": {
			opts: create.CreateOptions{
				CreatorID:  100,
				AssigneeID: 200,
				Text:       "   ",
				Deadline:   t0.Add(time.Hour),
			},
			setupMocks: func(repo *storagemock.MockTaskRepository, sched *schedulerMock, dispatcher *notifymock.MockDispatcher) {},
			expErr:     true,
			errMsg:     "invalid task",
		},
		"A repository error is returned and nothing is scheduled.": {
			opts: create.CreateOptions{
				CreatorID:  100,
				AssigneeID: 200,
				Text:       "write the report",
				Deadline:   t0.Add(time.Hour),
			},
			setupMocks: func(repo *storagemock.MockTaskRepository, sched *schedulerMock, dispatcher *notifymock.MockDispatcher) {
				repo.On("CreateTask", mock.Anything, mock.Anything).Return(errors.New("database error"))
			},
			expErr: true,
			errMsg: "could not save task",
		},
		"A failed assignment notification doesn't fail the creation.": {
			opts: create.CreateOptions{
				CreatorID:  100,
				AssigneeID: 200,
				Text:       "write the report",
				Deadline:   t0.Add(time.Hour),
			},
			setupMocks: func(repo *storagemock.MockTaskRepository, sched *schedulerMock, dispatcher *notifymock.MockDispatcher) {
				repo.On("CreateTask", mock.Anything, mock.Anything).Return(nil)
				sched.On("ScheduleTask", mock.Anything).Return()
				dispatcher.On("Notify", mock.Anything, int64(200), mock.Anything).Return(errors.New("blocked"))
			},
			validateRes: func(t *testing.T, task *model.Task) {
				assert.NotNil(t, task)
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			repo := storagemock.NewMockTaskRepository(t)
			sched := &schedulerMock{}
			sched.Test(t)
			t.Cleanup(func() { sched.AssertExpectations(t) })
			dispatcher := notifymock.NewMockDispatcher(t)
			test.setupMocks(repo, sched, dispatcher)

			svc, err := create.NewService(create.ServiceConfig{
				Repository: repo,
				Scheduler:  sched,
				Dispatcher: dispatcher,
				Clock:      clockfake.New(t0),
				Logger:     log.Noop,
			})
			require.NoError(t, err)

			task, err := svc.Create(context.Background(), test.opts)

			if test.expErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), test.errMsg)
				assert.Nil(t, task)
			} else {
				require.NoError(t, err)
				test.validateRes(t, task)
			}
		})
	}
}
