package task

import (
	"context"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
)

const (
	PriorityLow    = "L"
	PriorityMedium = "M"
	PriorityHigh   = "H"
)

const (
	StatusPending    = "P"
	StatusInProgress = "IP"
	StatusCompleted  = "C"
	StatusOverdue    = "O"
)

var (
	Priorities = []string{PriorityLow, PriorityMedium, PriorityHigh}
	Statuses   = []string{StatusPending, StatusInProgress, StatusCompleted, StatusOverdue}

	ErrNotFound = errors.New("task not found")
)

type Task struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	DueDate    null.Time   `json:"due_date"`
	Priority   string      `json:"priority"`
	Status     string      `json:"status"`
	AssignedTo null.String `json:"assigned_to"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// IsOverdue reports whether the task is past due and still open at `now`.
func (t Task) IsOverdue(now time.Time) bool {
	if !t.DueDate.Valid || t.Status == StatusCompleted || t.Status == StatusOverdue {
		return false
	}
	return t.DueDate.Time.Before(now)
}

// Filter restricts QueryTasks. Zero values mean "no restriction".
type Filter struct {
	AssignedTo   string
	OnlyAssigned bool
	From         time.Time // created_at >= From
	Until        time.Time // created_at < Until
}

type Repository interface {
	CreateTask(ctx context.Context, t Task) (Task, error)
	QueryTasks(ctx context.Context, filter Filter) ([]Task, error)
	// MarkOverdue sets StatusOverdue on open tasks due before `now` and returns the number updated.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}
