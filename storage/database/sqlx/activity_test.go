package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/soko/core/customer"
	"github.com/trezcool/soko/core/sale"
	"github.com/trezcool/soko/core/task"
	"github.com/trezcool/soko/core/user"
	sqlxrepos "github.com/trezcool/soko/storage/database/sqlx"
	testutil "github.com/trezcool/soko/tests"
)

func ids(n int, id func(i int) string) []string {
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, id(i))
	}
	return out
}

func TestSaleRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	users := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewSaleRepository(db)

	alice := testutil.CreateUser(t, users, "alice", user.RoleUser)
	bob := testutil.CreateUser(t, users, "bob", user.RoleUser)

	s1 := testutil.CreateSale(t, repo, alice.ID, sale.StatusWon, "1234.56", base.AddDate(0, 0, -5))
	s2 := testutil.CreateSale(t, repo, bob.ID, sale.StatusNew, "", base.AddDate(0, 0, -3))
	s3 := testutil.CreateSale(t, repo, "", sale.StatusLost, "10", base.AddDate(0, 0, -1))
	archived := sale.Sale{
		Title:      "Archived deal",
		Status:     sale.StatusWon,
		Priority:   sale.PriorityHigh,
		IsArchived: true,
		CreatedAt:  base.AddDate(0, 0, -2),
		UpdatedAt:  base.AddDate(0, 0, -2),
	}
	archived, err := repo.CreateSale(ctx, archived)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter sale.Filter
		want   []string
	}{
		{"all", sale.Filter{}, []string{s1.ID, s2.ID, s3.ID}},
		{"with archived", sale.Filter{IncludeArchived: true}, []string{s1.ID, s2.ID, archived.ID, s3.ID}},
		{"assigned to", sale.Filter{AssignedTo: alice.ID}, []string{s1.ID}},
		{"only assigned", sale.Filter{OnlyAssigned: true}, []string{s1.ID, s2.ID}},
		{"from", sale.Filter{From: base.AddDate(0, 0, -3)}, []string{s2.ID, s3.ID}},
		{"until excluded", sale.Filter{Until: base.AddDate(0, 0, -3)}, []string{s1.ID}},
		{"range", sale.Filter{From: base.AddDate(0, 0, -4), Until: base}, []string{s2.ID, s3.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QuerySales(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(len(got), func(i int) string { return got[i].ID }))
		})
	}

	t.Run("stored values", func(t *testing.T) {
		got, err := repo.QuerySales(ctx, sale.Filter{AssignedTo: alice.ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.True(t, got[0].Amount.Valid)
		assert.True(t, decimal.RequireFromString("1234.56").Equal(got[0].Amount.Decimal))
		assert.True(t, base.AddDate(0, 0, -5).Equal(got[0].CreatedAt))
		assert.Equal(t, time.UTC, got[0].CreatedAt.Location())

		got, err = repo.QuerySales(ctx, sale.Filter{AssignedTo: bob.ID})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.False(t, got[0].Amount.Valid)
	})
}

func TestCustomerRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	users := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewCustomerRepository(db)

	alice := testutil.CreateUser(t, users, "alice", user.RoleUser)
	c1 := testutil.CreateCustomer(t, repo, alice.ID, customer.StatusActive, customer.EngagementHigh, base.AddDate(0, -1, 0))
	c2 := testutil.CreateCustomer(t, repo, "", customer.StatusLead, customer.EngagementLow, base)

	tests := []struct {
		name   string
		filter customer.Filter
		want   []string
	}{
		{"all", customer.Filter{}, []string{c1.ID, c2.ID}},
		{"owner", customer.Filter{Owner: alice.ID}, []string{c1.ID}},
		{"from", customer.Filter{From: base.AddDate(0, 0, -1)}, []string{c2.ID}},
		{"until", customer.Filter{Until: base}, []string{c1.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.QueryCustomers(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(len(got), func(i int) string { return got[i].ID }))
		})
	}

	got, err := repo.QueryCustomers(ctx, customer.Filter{Owner: alice.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, customer.EngagementHigh, got[0].EngagementLevel)
	assert.Equal(t, alice.ID, got[0].Owner.String)
}

func TestTaskRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	users := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewTaskRepository(db)

	alice := testutil.CreateUser(t, users, "alice", user.RoleUser)
	late := testutil.CreateTask(t, repo, alice.ID, task.StatusPending, base.Add(-time.Hour), base.AddDate(0, 0, -7))
	lateStarted := testutil.CreateTask(t, repo, "", task.StatusInProgress, base.Add(-time.Minute), base.AddDate(0, 0, -6))
	done := testutil.CreateTask(t, repo, alice.ID, task.StatusCompleted, base.Add(-time.Hour), base.AddDate(0, 0, -5))
	future := testutil.CreateTask(t, repo, alice.ID, task.StatusPending, base.Add(time.Hour), base.AddDate(0, 0, -4))
	noDue := testutil.CreateTask(t, repo, alice.ID, task.StatusPending, time.Time{}, base.AddDate(0, 0, -3))

	t.Run("query", func(t *testing.T) {
		got, err := repo.QueryTasks(ctx, task.Filter{AssignedTo: alice.ID, From: base.AddDate(0, 0, -5)})
		require.NoError(t, err)
		assert.Equal(t, []string{done.ID, future.ID, noDue.ID}, ids(len(got), func(i int) string { return got[i].ID }))

		got, err = repo.QueryTasks(ctx, task.Filter{OnlyAssigned: true})
		require.NoError(t, err)
		assert.Len(t, got, 4)
	})

	t.Run("mark overdue", func(t *testing.T) {
		n, err := repo.MarkOverdue(ctx, base)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		got, err := repo.QueryTasks(ctx, task.Filter{})
		require.NoError(t, err)
		statuses := make(map[string]string, len(got))
		for _, tsk := range got {
			statuses[tsk.ID] = tsk.Status
		}
		assert.Equal(t, map[string]string{
			late.ID:        task.StatusOverdue,
			lateStarted.ID: task.StatusOverdue,
			done.ID:        task.StatusCompleted,
			future.ID:      task.StatusPending,
			noDue.ID:       task.StatusPending,
		}, statuses)

		n, err = repo.MarkOverdue(ctx, base)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}
