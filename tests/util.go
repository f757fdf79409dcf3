package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
	"github.com/trezcool/soko/core/customer"
	"github.com/trezcool/soko/core/report"
	"github.com/trezcool/soko/core/sale"
	"github.com/trezcool/soko/core/task"
	"github.com/trezcool/soko/core/user"
	"github.com/trezcool/soko/storage/database"
)

var seq int64

// PrepareDB opens a fresh migrated in-memory database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := database.OpenSQLite("file::memory:?_time_format=sqlite")
	if err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("PrepareDB(): %v", err)
	}
	return db
}

func stamp(at []time.Time) time.Time {
	if len(at) > 0 {
		return at[0].UTC()
	}
	return time.Now().UTC()
}

func CreateUser(t *testing.T, repo user.Repository, uname, role string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := stamp(createdAt)
	usr, err := repo.CreateUser(context.Background(), user.User{
		FirstName: uname,
		LastName:  "Test",
		Username:  uname,
		Email:     uname + "@soko.test",
		Role:      role,
		IsActive:  true,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// CreateSale creates a sale assigned to assignee (unassigned when empty).
func CreateSale(t *testing.T, repo sale.Repository, assignee, status, amount string, createdAt ...time.Time) sale.Sale {
	t.Helper()
	tstamp := stamp(createdAt)
	s := sale.Sale{
		Title:     fmt.Sprintf("Deal %d", atomic.AddInt64(&seq, 1)),
		Status:    status,
		Priority:  sale.PriorityMedium,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if assignee != "" {
		s.AssignedTo = null.StringFrom(assignee)
	}
	if amount != "" {
		s.Amount = decimal.NewNullDecimal(decimal.RequireFromString(amount))
	}
	s, err := repo.CreateSale(context.Background(), s)
	if err != nil {
		t.Fatalf("CreateSale(): %v", err)
	}
	return s
}

func CreateCustomer(t *testing.T, repo customer.Repository, owner, status, engagement string, createdAt ...time.Time) customer.Customer {
	t.Helper()
	tstamp := stamp(createdAt)
	n := atomic.AddInt64(&seq, 1)
	c := customer.Customer{
		Name:            fmt.Sprintf("Customer %d", n),
		Email:           fmt.Sprintf("customer%d@example.com", n),
		Region:          customer.RegionEurope,
		EngagementLevel: engagement,
		Status:          status,
		IsActive:        true,
		CreatedAt:       tstamp,
		UpdatedAt:       tstamp,
	}
	if owner != "" {
		c.Owner = null.StringFrom(owner)
	}
	c, err := repo.CreateCustomer(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCustomer(): %v", err)
	}
	return c
}

// CreateTask creates a task assigned to assignee, due at dueDate unless it is zero.
func CreateTask(t *testing.T, repo task.Repository, assignee, status string, dueDate time.Time, createdAt ...time.Time) task.Task {
	t.Helper()
	tstamp := stamp(createdAt)
	tsk := task.Task{
		Title:     fmt.Sprintf("Task %d", atomic.AddInt64(&seq, 1)),
		Priority:  task.PriorityMedium,
		Status:    status,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if assignee != "" {
		tsk.AssignedTo = null.StringFrom(assignee)
	}
	if !dueDate.IsZero() {
		tsk.DueDate = null.TimeFrom(dueDate.UTC())
	}
	tsk, err := repo.CreateTask(context.Background(), tsk)
	if err != nil {
		t.Fatalf("CreateTask(): %v", err)
	}
	return tsk
}

// NewValidator returns a validator with every custom validation of the app registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	analytics.InitValidators(validate, translator)
	report.InitValidators(validate, translator)
	return validate, translator
}
