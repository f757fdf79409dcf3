package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/task"
)

const taskColumns = "id, title, due_date, priority, status, assigned_to, created_at, updated_at"

type taskRow struct {
	ID         string      `db:"id"`
	Title      string      `db:"title"`
	DueDate    null.Time   `db:"due_date"`
	Priority   string      `db:"priority"`
	Status     string      `db:"status"`
	AssignedTo null.String `db:"assigned_to"`
	CreatedAt  time.Time   `db:"created_at"`
	UpdatedAt  time.Time   `db:"updated_at"`
}

func (r taskRow) task() task.Task {
	return task.Task{
		ID:         r.ID,
		Title:      r.Title,
		DueDate:    utc(r.DueDate),
		Priority:   r.Priority,
		Status:     r.Status,
		AssignedTo: r.AssignedTo,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

type taskRepository struct {
	exec core.DBExecutor
}

var _ task.Repository = (*taskRepository)(nil) // interface compliance check

func NewTaskRepository(exec core.DBExecutor) *taskRepository {
	return &taskRepository{exec: exec}
}

func (repo taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.ID = uuid.New().String()
	t.DueDate = utc(t.DueDate)
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()

	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"INSERT INTO tasks ("+taskColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)"),
		t.ID, t.Title, t.DueDate, t.Priority, t.Status, t.AssignedTo, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "inserting task")
	}
	return t, nil
}

func (repo taskRepository) QueryTasks(ctx context.Context, filter task.Filter) ([]task.Task, error) {
	var where conditions
	if filter.AssignedTo != "" {
		where.add("assigned_to = ?", filter.AssignedTo)
	} else if filter.OnlyAssigned {
		where.add("assigned_to IS NOT NULL")
	}
	if !filter.From.IsZero() {
		where.add("created_at >= ?", filter.From.UTC())
	}
	if !filter.Until.IsZero() {
		where.add("created_at < ?", filter.Until.UTC())
	}

	var rows []taskRow
	if err := selectAll(ctx, repo.exec, &rows, "SELECT "+taskColumns+" FROM tasks", where, " ORDER BY created_at, id"); err != nil {
		return nil, errors.Wrap(err, "querying tasks")
	}
	tasks := make([]task.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}

func (repo taskRepository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind(
		"UPDATE tasks SET status = ?, updated_at = ? WHERE due_date IS NOT NULL AND due_date < ? AND status IN (?, ?)"),
		task.StatusOverdue, now, now, task.StatusPending, task.StatusInProgress,
	)
	if err != nil {
		return 0, errors.Wrap(err, "marking overdue tasks")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "counting overdue tasks")
}
