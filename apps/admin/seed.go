package main

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/soko/core/customer"
	"github.com/trezcool/soko/core/sale"
	"github.com/trezcool/soko/core/task"
	"github.com/trezcool/soko/core/user"
)

const (
	seedCustomersPerUser = 3
	seedSalesPerUser     = 5
	seedTasksPerUser     = 6
	seedHistory          = 90 * 24 * time.Hour
)

func pick(rnd *rand.Rand, values []string) string {
	return values[rnd.Intn(len(values))]
}

// seed inserts example data: `users` users (the first one a manager) owning customers, sales and
// tasks created over the last 90 days. The same seed always produces the same data.
func (cli *commandLine) seed(ctx context.Context, users int, seed int64) error {
	rnd := rand.New(rand.NewSource(seed))
	now := cli.clock.Now().UTC()
	past := func() time.Time {
		return now.Add(-time.Duration(rnd.Int63n(int64(seedHistory)))).Truncate(time.Second)
	}

	for i := 1; i <= users; i++ {
		role := user.RoleUser
		if i == 1 {
			role = user.RoleManager
		}
		uname := fmt.Sprintf("seed%d_user%d", seed, i)
		usr, err := cli.usrSvc.Create(ctx, user.NewUser{
			FirstName: "User",
			LastName:  fmt.Sprintf("%d", i),
			Username:  uname,
			Email:     uname + "@soko.example",
			Role:      role,
		})
		if err != nil {
			return errors.Wrapf(err, "creating user %s", uname)
		}

		customerIDs := make([]string, 0, seedCustomersPerUser)
		for j := 0; j < seedCustomersPerUser; j++ {
			created := past()
			c, err := cli.customers.CreateCustomer(ctx, customer.Customer{
				Name:            fmt.Sprintf("%s customer %d", uname, j+1),
				Email:           fmt.Sprintf("%s.c%d@customer.example", uname, j+1),
				Company:         fmt.Sprintf("Company %d", rnd.Intn(100)),
				Region:          pick(rnd, customer.Regions),
				EngagementLevel: pick(rnd, customer.EngagementLevels),
				Status:          pick(rnd, customer.Statuses),
				Owner:           null.StringFrom(usr.ID),
				LastContactDate: null.TimeFrom(created.Add(time.Duration(rnd.Int63n(int64(now.Sub(created)) + 1)))),
				IsActive:        true,
				CreatedAt:       created,
				UpdatedAt:       created,
			})
			if err != nil {
				return errors.Wrap(err, "creating customer")
			}
			customerIDs = append(customerIDs, c.ID)
		}

		for j := 0; j < seedSalesPerUser; j++ {
			created := past()
			amount := decimal.New(rnd.Int63n(1000000)+10000, -2) // 100.00 to 10,099.99
			if _, err := cli.sales.CreateSale(ctx, sale.Sale{
				Title:             fmt.Sprintf("%s deal %d", uname, j+1),
				CustomerID:        null.StringFrom(customerIDs[rnd.Intn(len(customerIDs))]),
				Status:            pick(rnd, sale.Statuses),
				Amount:            decimal.NewNullDecimal(amount),
				ExpectedCloseDate: null.TimeFrom(created.AddDate(0, 1, 0)),
				AssignedTo:        null.StringFrom(usr.ID),
				Priority:          pick(rnd, sale.Priorities),
				CreatedAt:         created,
				UpdatedAt:         created,
			}); err != nil {
				return errors.Wrap(err, "creating sale")
			}
		}

		for j := 0; j < seedTasksPerUser; j++ {
			created := past()
			if _, err := cli.tasks.CreateTask(ctx, task.Task{
				Title:      fmt.Sprintf("%s task %d", uname, j+1),
				DueDate:    null.TimeFrom(created.AddDate(0, 0, 7+rnd.Intn(21))),
				Priority:   pick(rnd, task.Priorities),
				Status:     pick(rnd, []string{task.StatusPending, task.StatusInProgress, task.StatusCompleted}),
				AssignedTo: null.StringFrom(usr.ID),
				CreatedAt:  created,
				UpdatedAt:  created,
			}); err != nil {
				return errors.Wrap(err, "creating task")
			}
		}
	}

	fmt.Fprintf(cli.out, "seeded %d user(s) with %d customers, %d sales and %d tasks each\n",
		users, seedCustomersPerUser, seedSalesPerUser, seedTasksPerUser)
	return nil
}
