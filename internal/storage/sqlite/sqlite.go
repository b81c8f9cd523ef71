package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/slok/deadliner/internal/log"
	"github.com/slok/deadliner/internal/model"
	"github.com/slok/deadliner/internal/storage/sqlite/migrations"
)

// RepositoryConfig is the configuration for the SQLite repository.
type RepositoryConfig struct {
	DBPath string
	Logger log.Logger
}

func (c *RepositoryConfig) defaults() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.SQLite"})
	return nil
}

// Repository is a SQLite implementation of storage.TaskRepository and
// storage.UserRepository.
type Repository struct {
	db     *sql.DB
	logger log.Logger
}

// NewRepository creates a new SQLite repository.
func NewRepository(ctx context.Context, cfg RepositoryConfig) (*Repository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dir := filepath.Dir(cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("could not create db directory: %w", err)
	}

	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)", cfg.DBPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	migrator, err := migrations.NewMigrator(db, cfg.Logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create migrator: %w", err)
	}
	if err := migrator.Up(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not run migrations: %w", err)
	}

	cfg.Logger.Debugf("SQLite repository initialized at %s", cfg.DBPath)

	return &Repository{db: db, logger: cfg.Logger}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error { return r.db.Close() }

// CreateTask creates a new task in the repository.
func (r *Repository) CreateTask(ctx context.Context, t model.Task) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	var lastCheckAt *int64
	if t.LastCheckAt != nil {
		u := t.LastCheckAt.Unix()
		lastCheckAt = &u
	}

	query := `
		INSERT INTO tasks (
			id, creator_id, assignee_id, text, status,
			created_at, deadline, checkpoints_enabled, last_check_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		t.ID,
		t.CreatorID,
		t.AssigneeID,
		t.Text,
		t.Status,
		t.CreatedAt.Unix(),
		t.Deadline.Unix(),
		t.CheckpointsEnabled,
		lastCheckAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: tasks.") {
			return fmt.Errorf("task already exists: %w", model.ErrAlreadyExists)
		}
		return fmt.Errorf("could not insert task: %w", err)
	}

	r.logger.Debugf("Created task in repository: %s", t.ID)
	return nil
}

const taskColumns = `
	id, creator_id, assignee_id, text, status,
	created_at, deadline, checkpoints_enabled, last_check_at
`

// GetTask retrieves a task by ID.
func (r *Repository) GetTask(ctx context.Context, id string) (*model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	task, err := r.scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query task: %w", err)
	}

	return &task, nil
}

// ListActiveTasks returns the non-terminal tasks the user created or was
// assigned, ordered by deadline.
func (r *Repository) ListActiveTasks(ctx context.Context, userID int64) ([]model.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE (creator_id = ? OR assignee_id = ?) AND status IN (?, ?)
		ORDER BY deadline ASC
	`

	return r.queryTasks(ctx, query, userID, userID, model.TaskStatusPending, model.TaskStatusInProgress)
}

// ListUnresolvedTasks returns every non-terminal task, used by the scheduler
// recovery scan.
func (r *Repository) ListUnresolvedTasks(ctx context.Context) ([]model.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status IN (?, ?)
		ORDER BY deadline ASC
	`

	return r.queryTasks(ctx, query, model.TaskStatusPending, model.TaskStatusInProgress)
}

// UpdateTaskStatus sets the task status only if the stored status still
// matches expected. The status guard lives in the UPDATE itself so the
// compare-and-set is a single atomic statement.
func (r *Repository) UpdateTaskStatus(ctx context.Context, id string, expected, new model.TaskStatus) error {
	query := `UPDATE tasks SET status = ? WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query, new, id, expected)
	if err != nil {
		return fmt.Errorf("could not update task status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows > 0 {
		r.logger.Debugf("Updated task status in repository: %s (%s -> %s)", id, expected, new)
		return nil
	}

	// Nothing matched: disambiguate a missing task from a lost race.
	var current model.TaskStatus
	err = r.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
		}
		return fmt.Errorf("could not query task status: %w", err)
	}

	return fmt.Errorf("task %s status is %q, expected %q: %w", id, current, expected, model.ErrStaleTransition)
}

// SetTaskLastCheck stamps the last checkpoint instant of a task.
func (r *Repository) SetTaskLastCheck(ctx context.Context, id string, t time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE tasks SET last_check_at = ? WHERE id = ?`, t.Unix(), id)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("task %s: %w", id, model.ErrNotFound)
	}

	return nil
}

// SaveUser creates or refreshes a user record.
func (r *Repository) SaveUser(ctx context.Context, u model.User) error {
	query := `
		INSERT INTO users (id, full_name, username)
		VALUES (?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET full_name = excluded.full_name, username = excluded.username
	`

	_, err := r.db.ExecContext(ctx, query, u.ID, u.FullName, u.Username)
	if err != nil {
		return fmt.Errorf("could not save user: %w", err)
	}

	r.logger.Debugf("Saved user in repository: %d", u.ID)
	return nil
}

// GetUser retrieves a user by ID.
func (r *Repository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT id, full_name, username FROM users WHERE id = ?`

	var user model.User
	err := r.db.QueryRowContext(ctx, query, id).Scan(&user.ID, &user.FullName, &user.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %d: %w", id, model.ErrNotFound)
		}
		return nil, fmt.Errorf("could not query user: %w", err)
	}

	return &user, nil
}

// ListFrequentAssignees returns the distinct users the creator assigned tasks
// to, most recently used first, excluding the creator itself.
func (r *Repository) ListFrequentAssignees(ctx context.Context, creatorID int64, limit int) ([]model.User, error) {
	query := `
		SELECT t.assignee_id, COALESCE(u.full_name, ''), COALESCE(u.username, '')
		FROM tasks t
		LEFT JOIN users u ON u.id = t.assignee_id
		WHERE t.creator_id = ? AND t.assignee_id != ?
		GROUP BY t.assignee_id
		ORDER BY MAX(t.created_at) DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, creatorID, creatorID, limit)
	if err != nil {
		return nil, fmt.Errorf("could not query assignees: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		var user model.User
		if err := rows.Scan(&user.ID, &user.FullName, &user.Username); err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return users, nil
}

func (r *Repository) queryTasks(ctx context.Context, query string, args ...any) ([]model.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []model.Task
	for rows.Next() {
		task, err := r.scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan row: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return tasks, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanTask(s scanner) (model.Task, error) {
	var task model.Task
	var createdAt, deadline int64
	var lastCheckAt sql.NullInt64

	err := s.Scan(
		&task.ID,
		&task.CreatorID,
		&task.AssigneeID,
		&task.Text,
		&task.Status,
		&createdAt,
		&deadline,
		&task.CheckpointsEnabled,
		&lastCheckAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	task.CreatedAt = timeFromUnix(createdAt)
	task.Deadline = timeFromUnix(deadline)
	if lastCheckAt.Valid {
		t := timeFromUnix(lastCheckAt.Int64)
		task.LastCheckAt = &t
	}

	return task, nil
}

func timeFromUnix(unix int64) time.Time { return time.Unix(unix, 0).UTC() }
