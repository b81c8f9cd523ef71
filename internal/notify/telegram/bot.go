package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/slok/deadliner/internal/app/create"
	"github.com/slok/deadliner/internal/app/list"
	"github.com/slok/deadliner/internal/app/resolve"
	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/printer"
	"github.com/slok/deadliner/internal/storage"
)

// TaskCreator creates new tasks.
type TaskCreator interface {
	Create(ctx context.Context, opts create.CreateOptions) (*model.Task, error)
}

// TaskResolver applies checkpoint answers to tasks.
type TaskResolver interface {
	Answer(ctx context.Context, opts resolve.AnswerOptions) (*model.Task, error)
}

// TaskLister lists a user's tasks.
type TaskLister interface {
	List(ctx context.Context, opts list.ListOptions) ([]model.Task, error)
}

// BotConfig is the configuration of Bot.
type BotConfig struct {
	Client      *Client
	Creator     TaskCreator
	Resolver    TaskResolver
	Lister      TaskLister
	Users       storage.UserRepository
	PollTimeout time.Duration
	Logger      log.Logger
}

func (c *BotConfig) defaults() error {
	if c.Client == nil {
		return fmt.Errorf("client is required")
	}

	if c.Creator == nil {
		return fmt.Errorf("task creator is required")
	}

	if c.Resolver == nil {
		return fmt.Errorf("task resolver is required")
	}

	if c.Lister == nil {
		return fmt.Errorf("task lister is required")
	}

	if c.Users == nil {
		return fmt.Errorf("user repository is required")
	}

	if c.PollTimeout <= 0 {
		c.PollTimeout = 30 * time.Second
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "telegram.Bot"})

	return nil
}

// newTaskStep is the stage of an in-flight /newtask conversation.
type newTaskStep int

const (
	stepAssignee newTaskStep = iota
	stepText
	stepDeadline
)

// conversation holds the partial state of a /newtask flow of one chat.
type conversation struct {
	step     newTaskStep
	assignee int64
	text     string
}

// Bot is the long-polling Telegram front end. Every message handler maps a
// chat command onto one application service call.
type Bot struct {
	client      *Client
	creator     TaskCreator
	resolver    TaskResolver
	lister      TaskLister
	users       storage.UserRepository
	pollTimeout time.Duration
	logger      log.Logger

	mu            sync.Mutex
	conversations map[int64]*conversation
}

// NewBot returns a new Telegram bot.
func NewBot(config BotConfig) (*Bot, error) {
	err := config.defaults()
	if err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Bot{
		client:        config.Client,
		creator:       config.Creator,
		resolver:      config.Resolver,
		lister:        config.Lister,
		users:         config.Users,
		pollTimeout:   config.PollTimeout,
		logger:        config.Logger,
		conversations: map[int64]*conversation{},
	}, nil
}

// Run long-polls the Bot API and handles messages until the context ends.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Infof("Telegram bot started")

	offset := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		updates, err := b.client.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			b.logger.Errorf("Could not get updates: %s", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, upd := range updates {
			offset = upd.UpdateID + 1
			if upd.Message == nil || upd.Message.Text == "" {
				continue
			}
			if err := b.handleMessage(ctx, upd.Message); err != nil {
				b.logger.Errorf("Could not handle message: %s", err)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) error {
	if msg.From == nil {
		return nil
	}

	// Keep the user directory fresh on every contact.
	b.saveUser(ctx, msg.From)

	command, args := parseCommand(msg.Text)

	switch command {
	case "start", "help":
		b.endConversation(msg.Chat.ID)
		return b.reply(ctx, msg.Chat.ID, helpText)
	case "cancel":
		b.endConversation(msg.Chat.ID)
		return b.reply(ctx, msg.Chat.ID, "Cancelled.")
	case "newtask":
		return b.startNewTask(ctx, msg)
	case "mytasks":
		return b.handleMyTasks(ctx, msg)
	case "done":
		return b.handleAnswer(ctx, msg, model.AnswerDone, args)
	case "progress":
		return b.handleAnswer(ctx, msg, model.AnswerInProgress, args)
	case "problem":
		return b.handleAnswer(ctx, msg, model.AnswerProblem, args)
	case "notdone":
		return b.handleAnswer(ctx, msg, model.AnswerNotDone, args)
	case "":
		// Plain text only makes sense inside a /newtask conversation.
		if conv := b.getConversation(msg.Chat.ID); conv != nil {
			return b.continueNewTask(ctx, msg, conv)
		}
		return b.reply(ctx, msg.Chat.ID, "I don't follow. /help shows what I can do.")
	default:
		return b.reply(ctx, msg.Chat.ID, "Unknown command. /help shows what I can do.")
	}
}

func (b *Bot) startNewTask(ctx context.Context, msg *Message) error {
	b.mu.Lock()
	b.conversations[msg.Chat.ID] = &conversation{step: stepAssignee}
	b.mu.Unlock()

	prompt := "Who is this task for? Send a user ID, or \"me\" to assign it to yourself."

	suggestions, err := b.users.ListFrequentAssignees(ctx, msg.From.ID, 5)
	if err != nil {
		b.logger.Warningf("Could not list frequent assignees: %s", err)
	}
	if len(suggestions) > 0 {
		var sb strings.Builder
		sb.WriteString(prompt)
		sb.WriteString("\n\nPeople you assign tasks to often:")
		for _, u := range suggestions {
			fmt.Fprintf(&sb, "\n  %s (%d)", u.DisplayName(), u.ID)
		}
		prompt = sb.String()
	}

	return b.reply(ctx, msg.Chat.ID, prompt)
}

func (b *Bot) continueNewTask(ctx context.Context, msg *Message, conv *conversation) error {
	text := strings.TrimSpace(msg.Text)

	switch conv.step {
	case stepAssignee:
		assignee, err := parseAssignee(text, msg.From.ID)
		if err != nil {
			return b.reply(ctx, msg.Chat.ID, "That doesn't look like a user. Send a numeric user ID or \"me\".")
		}
		conv.assignee = assignee
		conv.step = stepText
		return b.reply(ctx, msg.Chat.ID, "What is the task?")

	case stepText:
		if text == "" {
			return b.reply(ctx, msg.Chat.ID, "The task text can't be empty. What is the task?")
		}
		conv.text = text
		conv.step = stepDeadline
		return b.reply(ctx, msg.Chat.ID, "When is it due? Format: YYYY-MM-DD HH:MM (UTC).")

	case stepDeadline:
		deadline, err := parseDeadline(text)
		if err != nil {
			return b.reply(ctx, msg.Chat.ID, "I couldn't parse that. Format: YYYY-MM-DD HH:MM (UTC).")
		}

		task, err := b.creator.Create(ctx, create.CreateOptions{
			CreatorID:  msg.From.ID,
			AssigneeID: conv.assignee,
			Text:       conv.text,
			Deadline:   deadline,
		})
		if err != nil {
			if errors.Is(err, model.ErrNotValid) {
				return b.reply(ctx, msg.Chat.ID, "The deadline has to be in the future. When is it due?")
			}
			b.endConversation(msg.Chat.ID)
			b.logger.Errorf("Could not create task: %s", err)
			return b.reply(ctx, msg.Chat.ID, "Something went wrong creating the task, try /newtask again.")
		}

		b.endConversation(msg.Chat.ID)

		confirmation := fmt.Sprintf("Task created.\nID: %s\nDeadline: %s", task.ID, printer.FormatTimestamp(task.Deadline))
		if task.CheckpointsEnabled {
			confirmation += "\nI'll check in at 50% and 90% of the way there."
		}
		return b.reply(ctx, msg.Chat.ID, confirmation)
	}

	return nil
}

func (b *Bot) handleMyTasks(ctx context.Context, msg *Message) error {
	tasks, err := b.lister.List(ctx, list.ListOptions{UserID: msg.From.ID})
	if err != nil {
		b.logger.Errorf("Could not list tasks: %s", err)
		return b.reply(ctx, msg.Chat.ID, "Something went wrong listing your tasks.")
	}

	if len(tasks) == 0 {
		return b.reply(ctx, msg.Chat.ID, "You have no open tasks.")
	}

	var sb strings.Builder
	sb.WriteString("Your open tasks:")
	for _, t := range tasks {
		role := "assigned to you"
		if t.CreatorID == msg.From.ID && t.AssigneeID != msg.From.ID {
			role = "created by you"
		}
		fmt.Fprintf(&sb, "\n\n%s (%s)\n%s\nDeadline: %s (%s)",
			t.ID, role, t.Text, printer.FormatTimestamp(t.Deadline), t.Status)
	}

	return b.reply(ctx, msg.Chat.ID, sb.String())
}

func (b *Bot) handleAnswer(ctx context.Context, msg *Message, answer model.Answer, args string) error {
	taskID, rest := splitArg(args)
	if taskID == "" {
		return b.reply(ctx, msg.Chat.ID, fmt.Sprintf("Format: /%s <task-id>", answerCommand(answer)))
	}

	if answer == model.AnswerProblem && rest == "" {
		return b.reply(ctx, msg.Chat.ID, "Format: /problem <task-id> <what's wrong>")
	}

	task, err := b.resolver.Answer(ctx, resolve.AnswerOptions{
		TaskID:  taskID,
		Answer:  answer,
		Problem: rest,
	})
	if err != nil {
		switch {
		case errors.Is(err, model.ErrNotFound):
			return b.reply(ctx, msg.Chat.ID, "I don't know that task.")
		case errors.Is(err, model.ErrStaleTransition):
			return b.reply(ctx, msg.Chat.ID, "That task is already resolved.")
		}
		b.logger.Errorf("Could not answer task: %s", err)
		return b.reply(ctx, msg.Chat.ID, "Something went wrong, try again.")
	}

	switch answer {
	case model.AnswerDone:
		return b.reply(ctx, msg.Chat.ID, "Nice, marked as done.")
	case model.AnswerInProgress:
		return b.reply(ctx, msg.Chat.ID, "Got it, keeping the task open.")
	case model.AnswerProblem:
		return b.reply(ctx, msg.Chat.ID, "Got it, I've told the task creator about the problem.")
	case model.AnswerNotDone:
		return b.reply(ctx, msg.Chat.ID, fmt.Sprintf("Marked %q as not completed.", task.Text))
	}

	return nil
}

func (b *Bot) saveUser(ctx context.Context, u *User) {
	fullName := strings.TrimSpace(u.FirstName + " " + u.LastName)
	err := b.users.SaveUser(ctx, model.User{ID: u.ID, FullName: fullName, Username: u.Username})
	if err != nil {
		b.logger.Warningf("Could not save user %d: %s", u.ID, err)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) error {
	return b.client.SendMessage(ctx, chatID, text)
}

func (b *Bot) getConversation(chatID int64) *conversation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[chatID]
}

func (b *Bot) endConversation(chatID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, chatID)
}

const helpText = `I track tasks with deadlines and check in on progress.

/newtask - create a task step by step
/mytasks - list your open tasks
/done <task-id> - mark a task as done
/progress <task-id> - report a task as on track
/problem <task-id> <text> - report a problem with a task
/notdone <task-id> - admit a task wasn't completed
/cancel - abort the current task creation`

func parseCommand(text string) (string, string) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return "", trimmed
	}

	parts := strings.SplitN(trimmed, " ", 2)
	cmd := strings.TrimPrefix(parts[0], "/")
	// Strip the bot mention of group chats ("/done@somebot").
	if idx := strings.Index(cmd, "@"); idx >= 0 {
		cmd = cmd[:idx]
	}
	cmd = strings.ToLower(cmd)

	if len(parts) == 1 {
		return cmd, ""
	}
	return cmd, strings.TrimSpace(parts[1])
}

func parseAssignee(text string, selfID int64) (int64, error) {
	if strings.EqualFold(text, "me") {
		return selfID, nil
	}
	return strconv.ParseInt(text, 10, 64)
}

const deadlineLayout = "2006-01-02 15:04"

func parseDeadline(text string) (time.Time, error) {
	return time.ParseInLocation(deadlineLayout, text, time.UTC)
}

func splitArg(args string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(args), " ", 2)
	if parts[0] == "" {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.TrimSpace(parts[1])
}

func answerCommand(a model.Answer) string {
	switch a {
	case model.AnswerDone:
		return "done"
	case model.AnswerInProgress:
		return "progress"
	case model.AnswerProblem:
		return "problem"
	case model.AnswerNotDone:
		return "notdone"
	}
	return string(a)
}
