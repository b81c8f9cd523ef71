package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/deadliner/internal/app/create"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/notify"
	"github.com/slok/deadliner/internal/storage/sqlite"
)

// nopScheduler satisfies the create service scheduler without arming timers.
// The CLI is an offline admin tool: the daemon owns the checkpoint timers and
// reattaches them for every unresolved task when it starts.
type nopScheduler struct{}

func (nopScheduler) ScheduleTask(t model.Task) {}

func (nopScheduler) CancelTask(taskID string) {}

// nopDispatcher drops notifications, chat delivery belongs to the daemon.
var nopDispatcher = notify.DispatcherFunc(func(ctx context.Context, userID int64, payload notify.Payload) error {
	return nil
})

type CreateCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	creator  int64
	assignee int64
	text     string
	deadline string
}

// NewCreateCommand returns the create command.
func NewCreateCommand(rootCmd *RootCommand, app *kingpin.Application) *CreateCommand {
	c := &CreateCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("create", "Create a new task.")
	c.Cmd.Flag("creator", "User ID of the task creator.").Required().Int64Var(&c.creator)
	c.Cmd.Flag("assignee", "User ID of the task assignee.").Required().Int64Var(&c.assignee)
	c.Cmd.Flag("text", "Task description.").Short('t').Required().StringVar(&c.text)
	c.Cmd.Flag("deadline", "Task deadline (YYYY-MM-DD HH:MM, UTC).").Short('d').Required().StringVar(&c.deadline)

	return c
}

func (c CreateCommand) Name() string { return c.Cmd.FullCommand() }

func (c CreateCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	deadline, err := time.ParseInLocation("2006-01-02 15:04", c.deadline, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid deadline (expected YYYY-MM-DD HH:MM): %w", err)
	}

	// Initialize storage (SQLite).
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: c.rootCmd.DBPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	// Create service.
	svc, err := create.NewService(create.ServiceConfig{
		Repository: repo,
		Scheduler:  nopScheduler{},
		Dispatcher: nopDispatcher,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute create.
	task, err := svc.Create(ctx, create.CreateOptions{
		CreatorID:  c.creator,
		AssigneeID: c.assignee,
		Text:       c.text,
		Deadline:   deadline,
	})
	if err != nil {
		return fmt.Errorf("could not create task: %w", err)
	}

	// Output success message.
	fmt.Fprintf(c.rootCmd.Stdout, "Task created successfully!\n")
	fmt.Fprintf(c.rootCmd.Stdout, "  ID:          %s\n", task.ID)
	fmt.Fprintf(c.rootCmd.Stdout, "  Status:      %s\n", task.Status)
	fmt.Fprintf(c.rootCmd.Stdout, "  Deadline:    %s\n", task.Deadline.UTC().Format("2006-01-02 15:04:05 UTC"))
	fmt.Fprintf(c.rootCmd.Stdout, "  Checkpoints: %t\n", task.CheckpointsEnabled)
	fmt.Fprintf(c.rootCmd.Stdout, "\nThe daemon will pick up the checkpoint timers on its next start.\n")

	return nil
}
