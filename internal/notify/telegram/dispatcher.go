package telegram

import (
	"context"
	"fmt"

	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/notify"
	"github.com/slok/deadliner/internal/printer"
	"github.com/slok/deadliner/internal/storage"
)

// DispatcherConfig is the configuration of Dispatcher.
type DispatcherConfig struct {
	Client *Client
	Users  storage.UserRepository
	Logger log.Logger
}

func (c *DispatcherConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}

	if c.Users == nil {
		return fmt.Errorf("user repository is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "telegram.Dispatcher"})

	return nil
}

// Dispatcher renders notifications into chat messages and sends them through
// the Bot API. In private chats the chat ID equals the user ID, so the target
// user ID is used as chat ID directly.
type Dispatcher struct {
	client *Client
	users  storage.UserRepository
	logger log.Logger
}

// NewDispatcher returns a new Telegram notification dispatcher.
func NewDispatcher(config DispatcherConfig) (*Dispatcher, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Dispatcher{
		client: config.Client,
		users:  config.Users,
		logger: config.Logger,
	}, nil
}

// Notify satisfies notify.Dispatcher.
func (d *Dispatcher) Notify(ctx context.Context, userID int64, payload notify.Payload) error {
	text := d.render(ctx, payload)
	if text == "" {
		return fmt.Errorf("unknown notification kind %q", payload.Kind)
	}

	err := d.client.SendMessage(ctx, userID, text)
	if err != nil {
		return fmt.Errorf("could not send message: %w", err)
	}

	return nil
}

func (d *Dispatcher) render(ctx context.Context, p notify.Payload) string {
	task := p.Task
	deadline := printer.FormatTimestamp(task.Deadline)

	switch p.Kind {
	case notify.KindTaskAssigned:
		return fmt.Sprintf("New task from %s:\n%s\nDeadline: %s\nTask ID: %s",
			d.displayName(ctx, task.CreatorID), task.Text, deadline, task.ID)
	case notify.KindProgressQuery:
		return fmt.Sprintf("How is this task going?\n%s\nDeadline: %s\nReply with /done %s, /progress %s or /problem %s <description>",
			task.Text, deadline, task.ID, task.ID, task.ID)
	case notify.KindCompletionQuery:
		return fmt.Sprintf("The deadline has arrived. Is this task done?\n%s\nReply with /done %s or /notdone %s",
			task.Text, task.ID, task.ID)
	case notify.KindCompletedEarly:
		return fmt.Sprintf("%s finished the task ahead of the deadline:\n%s",
			d.displayName(ctx, task.AssigneeID), task.Text)
	case notify.KindCompleted:
		return fmt.Sprintf("%s finished the task:\n%s",
			d.displayName(ctx, task.AssigneeID), task.Text)
	case notify.KindNotCompleted:
		return fmt.Sprintf("Task not completed by %s:\n%s\nDeadline was: %s",
			d.displayName(ctx, task.AssigneeID), task.Text, deadline)
	case notify.KindProblemReport:
		return fmt.Sprintf("%s reports a problem with the task:\n%s\nProblem: %s",
			d.displayName(ctx, task.AssigneeID), task.Text, p.Problem)
	}

	return ""
}

// displayName resolves a user ID to the best available name. A lookup failure
// falls back to the numeric form, a broken directory must not block delivery.
func (d *Dispatcher) displayName(ctx context.Context, userID int64) string {
	user, err := d.users.GetUser(ctx, userID)
	if err != nil {
		d.logger.Debugf("Could not resolve user %d: %s", userID, err)
		return model.User{ID: userID}.DisplayName()
	}

	return user.DisplayName()
}
