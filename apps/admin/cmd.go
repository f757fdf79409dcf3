package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	echoapi "github.com/trezcool/soko/apps/api/echo"
	"github.com/trezcool/soko/core/customer"
	"github.com/trezcool/soko/core/report"
	"github.com/trezcool/soko/core/sale"
	"github.com/trezcool/soko/core/task"
	"github.com/trezcool/soko/core/user"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db        *sqlx.DB
	out       io.Writer
	clock     clockwork.Clock
	validate  *validator.Validate
	usrSvc    *user.Service
	sales     sale.Repository
	customers customer.Repository
	tasks     task.Repository
	reportSvc *report.Service
	taskSvc   *task.Service
	auth      *echoapi.Auth
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]  - run a goose migration command (up, down, status, version, ...)")
	fmt.Fprintln(cli.out, "  adduser -email EMAIL [-username USERNAME] [-first FIRST] [-last LAST] [-role ROLE] - create a user")
	fmt.Fprintln(cli.out, "  token -email EMAIL      - print an API token for the user")
	fmt.Fprintln(cli.out, "  users                   - list the active users")
	fmt.Fprintln(cli.out, "  activate -email EMAIL   - reactivate a user")
	fmt.Fprintln(cli.out, "  deactivate -email EMAIL - deactivate a user; their tokens stop working")
	fmt.Fprintln(cli.out, "  seed [-users N] [-seed SEED] - insert example users, customers, sales and tasks")
	fmt.Fprintln(cli.out, "  runschedules            - run the due report schedules once")
	fmt.Fprintln(cli.out, "  markoverdue             - flag the open tasks past their due date")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email address.")
	addUserUname := addUserCmd.String("username", "", "The user's username. Defaults to the local part of the email.")
	addUserFirst := addUserCmd.String("first", "", "The user's first name.")
	addUserLast := addUserCmd.String("last", "", "The user's last name.")
	addUserRole := addUserCmd.String("role", user.RoleUser, "The user's role: ADMIN, MANAGER or USER.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenEmail := tokenCmd.String("email", "", "The user's email address.")

	activeCmd := flag.NewFlagSet(args[1], flag.ContinueOnError)
	activeEmail := activeCmd.String("email", "", "The user's email address.")

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedUsers := seedCmd.Int("users", 5, "Number of users to create.")
	seedSeed := seedCmd.Int64("seed", 1, "Seed of the random data.")

	for _, fs := range []*flag.FlagSet{addUserCmd, tokenCmd, activeCmd, seedCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(ctx, args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, user.NewUser{
			FirstName: *addUserFirst,
			LastName:  *addUserLast,
			Username:  *addUserUname,
			Email:     *addUserEmail,
			Role:      *addUserRole,
		})

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenEmail == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(ctx, *tokenEmail)

	case "users":
		return cli.listUsers(ctx)

	case "activate", "deactivate":
		if err := activeCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *activeEmail == "" {
			activeCmd.Usage()
			return errHelp
		}
		return cli.setActive(ctx, *activeEmail, args[1] == "activate")

	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedUsers < 1 {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(ctx, *seedUsers, *seedSeed)

	case "runschedules":
		return cli.runSchedules(ctx)

	case "markoverdue":
		return cli.markOverdue(ctx)

	default:
		cli.printUsage()
		return errHelp
	}
}
