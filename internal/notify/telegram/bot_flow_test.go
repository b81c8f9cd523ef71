package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/slok/deadliner/internal/app/create"
	"github.com/slok/deadliner/internal/app/list"
	"github.com/slok/deadliner/internal/app/resolve"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/storage/storagemock"
)

type creatorMock struct{ mock.Mock }

func (m *creatorMock) Create(ctx context.Context, opts create.CreateOptions) (*model.Task, error) {
	args := m.Called(ctx, opts)
	task, _ := args.Get(0).(*model.Task)
	return task, args.Error(1)
}

type resolverMock struct{ mock.Mock }

func (m *resolverMock) Answer(ctx context.Context, opts resolve.AnswerOptions) (*model.Task, error) {
	args := m.Called(ctx, opts)
	task, _ := args.Get(0).(*model.Task)
	return task, args.Error(1)
}

type listerMock struct{ mock.Mock }

func (m *listerMock) List(ctx context.Context, opts list.ListOptions) ([]model.Task, error) {
	args := m.Called(ctx, opts)
	tasks, _ := args.Get(0).([]model.Task)
	return tasks, args.Error(1)
}

type botEnv struct {
	bot      *Bot
	creator  *creatorMock
	resolver *resolverMock
	lister   *listerMock
	users    *storagemock.MockUserRepository
	replies  *[]string
}

func newBotEnv(t *testing.T) *botEnv {
	replies := &[]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var payload struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal(body, &payload)
		*replies = append(*replies, payload.Text)
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 1}}`))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{Token: "test-token", BaseURL: srv.URL})
	require.NoError(t, err)

	creator := &creatorMock{}
	creator.Test(t)
	resolver := &resolverMock{}
	resolver.Test(t)
	lister := &listerMock{}
	lister.Test(t)
	users := storagemock.NewMockUserRepository(t)
	t.Cleanup(func() {
		creator.AssertExpectations(t)
		resolver.AssertExpectations(t)
		lister.AssertExpectations(t)
	})

	bot, err := NewBot(BotConfig{
		Client:   client,
		Creator:  creator,
		Resolver: resolver,
		Lister:   lister,
		Users:    users,
	})
	require.NoError(t, err)

	return &botEnv{bot: bot, creator: creator, resolver: resolver, lister: lister, users: users, replies: replies}
}

func (e *botEnv) message(text string) *Message {
	return &Message{
		From: &User{ID: 100, Username: "alice", FirstName: "Alice"},
		Chat: Chat{ID: 100, Type: "private"},
		Text: text,
	}
}

func (e *botEnv) lastReply() string {
	if len(*e.replies) == 0 {
		return ""
	}
	return (*e.replies)[len(*e.replies)-1]
}

func TestBotNewTaskConversation(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	env.users.On("SaveUser", mock.Anything, model.User{ID: 100, FullName: "Alice", Username: "alice"}).Return(nil)
	env.users.On("ListFrequentAssignees", mock.Anything, int64(100), 5).Return([]model.User{
		{ID: 200, Username: "bob"},
	}, nil)
	env.creator.On("Create", mock.Anything, create.CreateOptions{
		CreatorID:  100,
		AssigneeID: 200,
		Text:       "write the report",
		Deadline:   time.Date(2026, 1, 30, 15, 0, 0, 0, time.UTC),
	}).Return(&model.Task{ID: "task1", Deadline: time.Date(2026, 1, 30, 15, 0, 0, 0, time.UTC), CheckpointsEnabled: true}, nil)

	require.NoError(t, env.bot.handleMessage(ctx, env.message("/newtask")))
	assert.Contains(t, env.lastReply(), "Who is this task for?")
	assert.Contains(t, env.lastReply(), "@bob (200)")

	require.NoError(t, env.bot.handleMessage(ctx, env.message("200")))
	assert.Contains(t, env.lastReply(), "What is the task?")

	require.NoError(t, env.bot.handleMessage(ctx, env.message("write the report")))
	assert.Contains(t, env.lastReply(), "When is it due?")

	require.NoError(t, env.bot.handleMessage(ctx, env.message("2026-01-30 15:00")))
	assert.Contains(t, env.lastReply(), "Task created.")
	assert.Contains(t, env.lastReply(), "task1")
	assert.Contains(t, env.lastReply(), "check in at 50% and 90%")
}

func TestBotAnswerCommands(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	env.users.On("SaveUser", mock.Anything, mock.Anything).Return(nil)
	env.resolver.On("Answer", mock.Anything, resolve.AnswerOptions{
		TaskID:  "task1",
		Answer:  model.AnswerProblem,
		Problem: "missing access",
	}).Return(&model.Task{ID: "task1"}, nil)

	require.NoError(t, env.bot.handleMessage(ctx, env.message("/problem task1 missing access")))
	assert.Contains(t, env.lastReply(), "told the task creator")
}

func TestBotAnswerResolvedTask(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	env.users.On("SaveUser", mock.Anything, mock.Anything).Return(nil)
	env.resolver.On("Answer", mock.Anything, mock.Anything).Return(nil, model.ErrStaleTransition)

	require.NoError(t, env.bot.handleMessage(ctx, env.message("/done task1")))
	assert.Contains(t, env.lastReply(), "already resolved")
}

func TestBotMyTasks(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	t0 := time.Date(2026, 1, 30, 10, 0, 0, 0, time.UTC)
	env.users.On("SaveUser", mock.Anything, mock.Anything).Return(nil)
	env.lister.On("List", mock.Anything, list.ListOptions{UserID: 100}).Return([]model.Task{
		{ID: "task1", CreatorID: 100, AssigneeID: 200, Text: "write the report", Status: model.TaskStatusPending, Deadline: t0},
	}, nil)

	require.NoError(t, env.bot.handleMessage(ctx, env.message("/mytasks")))
	assert.Contains(t, env.lastReply(), "task1")
	assert.Contains(t, env.lastReply(), "created by you")
	assert.Contains(t, env.lastReply(), "write the report")
}

func TestBotUnknownCommand(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	env.users.On("SaveUser", mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, env.bot.handleMessage(ctx, env.message("/frobnicate")))
	assert.Contains(t, env.lastReply(), "Unknown command")
}

func TestBotCancelEndsConversation(t *testing.T) {
	env := newBotEnv(t)
	ctx := context.Background()

	env.users.On("SaveUser", mock.Anything, mock.Anything).Return(nil)
	env.users.On("ListFrequentAssignees", mock.Anything, int64(100), 5).Return(nil, nil)

	require.NoError(t, env.bot.handleMessage(ctx, env.message("/newtask")))
	require.NoError(t, env.bot.handleMessage(ctx, env.message("/cancel")))
	assert.Contains(t, env.lastReply(), "Cancelled")

	require.NoError(t, env.bot.handleMessage(ctx, env.message("some text")))
	assert.Contains(t, env.lastReply(), "I don't follow")
}
