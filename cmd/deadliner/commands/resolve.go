package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/deadliner/internal/app/resolve"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/storage/sqlite"
)

type ResolveCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	taskID  string
	answer  string
	problem string
}

// NewResolveCommand returns the resolve command.
func NewResolveCommand(rootCmd *RootCommand, app *kingpin.Application) *ResolveCommand {
	c := &ResolveCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("resolve", "Apply an answer to a task.")
	c.Cmd.Arg("task-id", "ID of the task.").Required().StringVar(&c.taskID)
	c.Cmd.Flag("answer", "Answer to apply (done, in_progress, problem, not_done).").Short('a').Required().
		EnumVar(&c.answer, string(model.AnswerDone), string(model.AnswerInProgress), string(model.AnswerProblem), string(model.AnswerNotDone))
	c.Cmd.Flag("problem", "Problem description (required with the problem answer).").StringVar(&c.problem)

	return c
}

func (c ResolveCommand) Name() string { return c.Cmd.FullCommand() }

func (c ResolveCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	if c.answer == string(model.AnswerProblem) && c.problem == "" {
		return fmt.Errorf("--problem is required when the answer is problem")
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

	// Create resolve service.
	svc, err := resolve.NewService(resolve.ServiceConfig{
		Repository: repo,
		Canceller:  nopScheduler{},
		Dispatcher: nopDispatcher,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	// Execute resolve.
	task, err := svc.Answer(ctx, resolve.AnswerOptions{
		TaskID:  c.taskID,
		Answer:  model.Answer(c.answer),
		Problem: c.problem,
	})
	if err != nil {
		return fmt.Errorf("could not resolve task: %w", err)
	}

	fmt.Fprintf(c.rootCmd.Stdout, "Task %s is now %s.\n", task.ID, task.Status)

	return nil
}
