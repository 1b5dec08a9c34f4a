package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/chepyr/go-task-manager/internal/models"
)

// defines methods for task db operations
type TaskRepositoryInterface interface {
	Create(ctx context.Context, task *models.Task) error
	UpdateStatus(ctx context.Context, id int64, username string, status models.TaskStatus) error
	Delete(ctx context.Context, id int64, username string) error
	ListActive(ctx context.Context, username string) ([]*models.Task, error)
	ListByStatus(ctx context.Context, username string, status models.TaskStatus) ([]*models.Task, error)
	ListByUsername(ctx context.Context, username string) ([]*models.Task, error)
	CountByStatus(ctx context.Context, username string) (models.StatusCounts, error)
}

type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, username, start_date, due_date, task, description, status, timestamp`

func (r *TaskRepository) Create(ctx context.Context, task *models.Task) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO new_task (username, start_date, due_date, task, description, status, timestamp)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.ExecContext(ctx, query,
		task.Username, task.StartDate, task.DueDate, task.Title, task.Description,
		string(task.Status), task.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

// UpdateStatus changes the status of a task owned by username.
func (r *TaskRepository) UpdateStatus(ctx context.Context, id int64, username string, status models.TaskStatus) error {
	query := `UPDATE new_task SET status = $1 WHERE id = $2 AND username = $3`
	result, err := r.db.ExecContext(ctx, query, string(status), id, username)
	if err != nil {
		return fmt.Errorf("updating task status: %w", err)
	}
	return requireAffected(result)
}

// Delete removes a task owned by username.
func (r *TaskRepository) Delete(ctx context.Context, id int64, username string) error {
	query := `DELETE FROM new_task WHERE id = $1 AND username = $2`
	result, err := r.db.ExecContext(ctx, query, id, username)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return requireAffected(result)
}

// ListActive returns every task that is not completed, newest first.
func (r *TaskRepository) ListActive(ctx context.Context, username string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM new_task
	 WHERE status != $1 AND username = $2 ORDER BY timestamp DESC, id DESC`
	return r.list(ctx, query, string(models.TaskStatusCompleted), username)
}

func (r *TaskRepository) ListByStatus(ctx context.Context, username string, status models.TaskStatus) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM new_task
	 WHERE username = $1 AND status = $2 ORDER BY id`
	return r.list(ctx, query, username, string(status))
}

func (r *TaskRepository) ListByUsername(ctx context.Context, username string) ([]*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM new_task WHERE username = $1 ORDER BY id`
	return r.list(ctx, query, username)
}

func (r *TaskRepository) CountByStatus(ctx context.Context, username string) (models.StatusCounts, error) {
	var counts models.StatusCounts
	query := `SELECT status, COUNT(*) FROM new_task WHERE username = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, username)
	if err != nil {
		return counts, fmt.Errorf("counting tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return counts, fmt.Errorf("scanning task count: %w", err)
		}
		switch models.TaskStatus(status) {
		case models.TaskStatusPending:
			counts.Pending = n
		case models.TaskStatusInProgress:
			counts.InProgress = n
		case models.TaskStatusCompleted:
			counts.Completed = n
		}
	}
	if err := rows.Err(); err != nil {
		return counts, fmt.Errorf("iterating task counts: %w", err)
	}
	return counts, nil
}

func (r *TaskRepository) list(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	task := &models.Task{}
	var status string
	err := row.Scan(
		&task.ID, &task.Username, &task.StartDate, &task.DueDate,
		&task.Title, &task.Description, &status, &task.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	task.Status = models.TaskStatus(status)
	return task, nil
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}
