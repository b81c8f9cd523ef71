package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"

	"github.com/slok/deadliner/internal/app/create"
	"github.com/slok/deadliner/internal/app/list"
	"github.com/slok/deadliner/internal/app/resolve"
	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/notify/telegram"
	"github.com/slok/deadliner/internal/scheduler"
	storageio "github.com/slok/deadliner/internal/storage/io"
	"github.com/slok/deadliner/internal/storage/sqlite"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	configPath string
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run the bot daemon.")
	c.Cmd.Flag("config", "Path to the daemon YAML configuration file.").Short('c').Required().StringVar(&c.configPath)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	// Load daemon configuration.
	absPath, err := filepath.Abs(c.configPath)
	if err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	configRepo := storageio.NewConfigYAMLRepository(os.DirFS(filepath.Dir(absPath)))
	cfg, err := configRepo.GetConfig(ctx, filepath.Base(absPath))
	if err != nil {
		return fmt.Errorf("could not load configuration: %w", err)
	}

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = c.rootCmd.DBPath
	}

	// Initialize storage (SQLite).
	repo, err := sqlite.NewRepository(ctx, sqlite.RepositoryConfig{
		DBPath: dbPath,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create repository: %w", err)
	}
	defer repo.Close()

	// Initialize the Telegram transport.
	client, err := telegram.NewClient(telegram.ClientConfig{Token: cfg.TelegramToken})
	if err != nil {
		return fmt.Errorf("could not create telegram client: %w", err)
	}

	dispatcher, err := telegram.NewDispatcher(telegram.DispatcherConfig{
		Client: client,
		Users:  repo,
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("could not create dispatcher: %w", err)
	}

	// Checkpoint scheduler.
	sched, err := scheduler.NewScheduler(scheduler.Config{
		Repository:       repo,
		Dispatcher:       dispatcher,
		NoResponsePolicy: cfg.NoResponsePolicy,
		NoResponseGrace:  cfg.NoResponseGrace,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("could not create scheduler: %w", err)
	}

	// Application services.
	createSvc, err := create.NewService(create.ServiceConfig{
		Repository: repo,
		Scheduler:  sched,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	resolveSvc, err := resolve.NewService(resolve.ServiceConfig{
		Repository: repo,
		Canceller:  sched,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	listSvc, err := list.NewService(list.ServiceConfig{
		Repository: repo,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("could not create service: %w", err)
	}

	bot, err := telegram.NewBot(telegram.BotConfig{
		Client:      client,
		Creator:     createSvc,
		Resolver:    resolveSvc,
		Lister:      listSvc,
		Users:       repo,
		PollTimeout: cfg.PollTimeout,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("could not create bot: %w", err)
	}

	// Reattach checkpoint timers of the tasks that survived the restart.
	err = sched.Recover(ctx)
	if err != nil {
		return fmt.Errorf("could not recover scheduled tasks: %w", err)
	}

	logger.WithValues(log.Kv{"db-path": dbPath}).Infof("Daemon started")

	var g run.Group

	// Telegram long-poll loop.
	{
		botCtx, botCancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				return bot.Run(botCtx)
			},
			func(_ error) {
				botCancel()
			},
		)
	}

	// Checkpoint timers.
	{
		stopped := make(chan struct{})
		g.Add(
			func() error {
				<-stopped
				return nil
			},
			func(_ error) {
				sched.Stop()
				close(stopped)
			},
		)
	}

	err = g.Run()
	if err != nil && err != context.Canceled {
		return err
	}
	return nil
}
