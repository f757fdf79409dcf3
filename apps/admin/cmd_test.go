package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	echoapi "github.com/trezcool/soko/apps/api/echo"
	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/analytics"
	"github.com/trezcool/soko/core/customer"
	"github.com/trezcool/soko/core/report"
	"github.com/trezcool/soko/core/sale"
	"github.com/trezcool/soko/core/task"
	"github.com/trezcool/soko/core/user"
	emailsvc "github.com/trezcool/soko/services/email"
	logsvc "github.com/trezcool/soko/services/logger"
	sqlxrepos "github.com/trezcool/soko/storage/database/sqlx"
	testutil "github.com/trezcool/soko/tests"
)

var now = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

const secretKey = "test-secret"

type fixture struct {
	cli   *commandLine
	out   *bytes.Buffer
	users user.Repository
}

func setup(t *testing.T) fixture {
	conf := &core.Config{
		AppName:   "Soko",
		TestMode:  true,
		SecretKey: secretKey,
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}
	logger := logsvc.NewZapLogger(zaptest.NewLogger(t))
	clock := clockwork.NewFakeClockAt(now)
	validate, _ := testutil.NewValidator()

	db := testutil.PrepareDB(t)
	users := sqlxrepos.NewUserRepository(db)
	sales := sqlxrepos.NewSaleRepository(db)
	customers := sqlxrepos.NewCustomerRepository(db)
	tasks := sqlxrepos.NewTaskRepository(db)
	analyticsSvc := analytics.NewService(users, sales, customers, tasks, clock, validate)

	out := new(bytes.Buffer)
	return fixture{
		out:   out,
		users: users,
		cli: &commandLine{
			db:        db,
			out:       out,
			clock:     clock,
			validate:  validate,
			usrSvc:    user.NewService(users),
			sales:     sales,
			customers: customers,
			tasks:     tasks,
			reportSvc: report.NewService(
				sqlxrepos.NewReportRepository(db), users, analyticsSvc, emailsvc.NewConsoleServiceMock(conf, logger),
				clock, logger, 2,
			),
			taskSvc: task.NewService(tasks, clock),
			auth:    echoapi.NewAuth(conf),
		},
	}
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
}

func (f fixture) run(args ...string) error {
	f.out.Reset()
	return f.cli.run(append([]string{"admin"}, args...))
}

func Test_commandLine_usage(t *testing.T) {
	f := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "adduser: no email", args: []string{"adduser", "-role", user.RoleAdmin}, wantErr: errHelp},
		{name: "token: no email", args: []string{"token"}, wantErr: errHelp},
		{name: "seed: no users", args: []string{"seed", "-users", "0"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantErr, f.run(tt.args...))
			assert.Contains(t, f.out.String(), "Usage")
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	var gotCommand string
	var gotArgs []string
	migrateFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		gotCommand, gotArgs = command, args
		return nil
	}
	t.Cleanup(func() { migrateFunc = defaultMigrateFunc })

	tests := []struct {
		name        string
		args        []string
		wantCommand string
		wantArgs    []string
	}{
		{name: "up", args: []string{"migrate", "up"}, wantCommand: "up", wantArgs: []string{}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}, wantCommand: "up-to", wantArgs: []string{"2"}},
		{name: "create", args: []string{"migrate", "create", "add_notes", "sql"}, wantCommand: "create", wantArgs: []string{"add_notes", "sql"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, f.run(tt.args...))
			assert.Equal(t, tt.wantCommand, gotCommand)
			assert.Equal(t, tt.wantArgs, gotArgs)
		})
	}

	t.Run("against the database", func(t *testing.T) {
		migrateFunc = defaultMigrateFunc
		assert.NoError(t, f.run("migrate", "version"))
		assert.Error(t, f.run("migrate", "lol"))
	})
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.run("adduser", "-email", " Jane@Soko.test ", "-first", "Jane", "-role", user.RoleManager))
	assert.Contains(t, f.out.String(), "created MANAGER user jane")

	usr, err := f.users.GetUser(ctx, user.GetFilter{Email: "jane@soko.test"})
	require.NoError(t, err)
	assert.Equal(t, "jane", usr.Username)
	assert.Equal(t, "Jane", usr.FirstName)
	assert.True(t, usr.IsActive)

	t.Run("invalid role", func(t *testing.T) {
		err := f.run("adduser", "-email", "joe@soko.test", "-role", "BOSS")
		assert.IsType(t, validator.ValidationErrors{}, err)
	})
	t.Run("email taken", func(t *testing.T) {
		err := f.run("adduser", "-email", "jane@soko.test", "-username", "jane2")
		assert.True(t, core.IsValidationError(err), err)
	})
}

func Test_commandLine_token(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.users, "alice", user.RoleUser)

	t.Run("unknown user", func(t *testing.T) {
		assert.Equal(t, user.ErrNotFound, f.run("token", "-email", "nobody@soko.test"))
	})

	t.Run("valid token", func(t *testing.T) {
		require.NoError(t, f.run("token", "-email", usr.Email))

		var claims echoapi.Claims
		token, err := jwt.ParseWithClaims(strings.TrimSpace(f.out.String()), &claims, func(*jwt.Token) (interface{}, error) {
			return []byte(secretKey), nil
		})
		require.NoError(t, err)
		assert.True(t, token.Valid)
		assert.Equal(t, usr.ID, claims.Subject)
		assert.Equal(t, usr.Role, claims.Role)
	})

	t.Run("deactivated user", func(t *testing.T) {
		usr.IsActive = false
		_, err := f.users.UpdateUser(context.Background(), usr)
		require.NoError(t, err)
		assert.EqualError(t, f.run("token", "-email", usr.Email), "user alice is deactivated")
	})
}

func Test_commandLine_activation(t *testing.T) {
	f := setup(t)
	alice := testutil.CreateUser(t, f.users, "alice", user.RoleUser)
	testutil.CreateUser(t, f.users, "bob", user.RoleManager)

	require.NoError(t, f.run("deactivate", "-email", alice.Email))
	assert.Equal(t, "user alice deactivated\n", f.out.String())

	require.NoError(t, f.run("deactivate", "-email", alice.Email))
	assert.Equal(t, "user alice unchanged\n", f.out.String())

	require.NoError(t, f.run("users"))
	lines := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "USERNAME")
	assert.Contains(t, lines[1], "bob@soko.test")

	require.NoError(t, f.run("activate", "-email", alice.Email))
	assert.Equal(t, "user alice activated\n", f.out.String())
	usr, err := f.users.GetUser(context.Background(), user.GetFilter{ID: alice.ID})
	require.NoError(t, err)
	assert.True(t, usr.IsActive)

	assert.Equal(t, errHelp, f.run("activate"))
	assert.Equal(t, user.ErrNotFound, f.run("deactivate", "-email", "nobody@soko.test"))
}

func Test_commandLine_seed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.run("seed", "-users", "2", "-seed", "7"))
	assert.Contains(t, f.out.String(), "seeded 2 user(s)")

	users, err := f.users.QueryUsers(ctx, user.QueryFilter{})
	require.NoError(t, err)
	require.Len(t, users, 2)
	roles := map[string]int{}
	for _, usr := range users {
		roles[usr.Role]++
	}
	assert.Equal(t, map[string]int{user.RoleManager: 1, user.RoleUser: 1}, roles)

	sales, err := f.cli.sales.QuerySales(ctx, sale.Filter{})
	require.NoError(t, err)
	assert.Len(t, sales, 2*seedSalesPerUser)
	for _, s := range sales {
		assert.False(t, s.CreatedAt.After(now))
		assert.True(t, s.Amount.Valid)
	}

	customers, err := f.cli.customers.QueryCustomers(ctx, customer.Filter{})
	require.NoError(t, err)
	assert.Len(t, customers, 2*seedCustomersPerUser)

	tasks, err := f.cli.tasks.QueryTasks(ctx, task.Filter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 2*seedTasksPerUser)

	// same seed, same usernames
	assert.True(t, core.IsValidationError(f.run("seed", "-users", "1", "-seed", "7")))
}

func Test_commandLine_jobs(t *testing.T) {
	f := setup(t)
	usr := testutil.CreateUser(t, f.users, "alice", user.RoleUser)

	testutil.CreateTask(t, f.cli.tasks, usr.ID, task.StatusPending, now.Add(-time.Hour), now.Add(-48*time.Hour))
	testutil.CreateTask(t, f.cli.tasks, usr.ID, task.StatusPending, now.Add(time.Hour), now.Add(-48*time.Hour))
	testutil.CreateTask(t, f.cli.tasks, usr.ID, task.StatusCompleted, now.Add(-time.Hour), now.Add(-48*time.Hour))

	require.NoError(t, f.run("markoverdue"))
	assert.Equal(t, "1 task(s) marked overdue\n", f.out.String())

	require.NoError(t, f.run("runschedules"))
	assert.Equal(t, "0 scheduled report(s) delivered\n", f.out.String())
}
