package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/trezcool/soko/core"
	"github.com/trezcool/soko/core/user"
)

// addUser creates an active user; the username defaults to the local part of the email.
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	if core.CleanString(nu.Username) == "" {
		nu.Username = strings.SplitN(nu.Email, "@", 2)[0]
	}
	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s user %s (%s)\n", usr.Role, usr.Username, usr.ID)
	return nil
}

// token prints a signed API token for the user with the given email.
func (cli *commandLine) token(ctx context.Context, email string) error {
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return fmt.Errorf("user %s is deactivated", usr.Username)
	}
	token, err := cli.auth.GenerateToken(usr)
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) listUsers(ctx context.Context) error {
	users, err := cli.usrSvc.QueryActive(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tEMAIL\tROLE")
	for _, usr := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", usr.ID, usr.Username, usr.Email, usr.Role)
	}
	return w.Flush()
}

func (cli *commandLine) setActive(ctx context.Context, email string, active bool) error {
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if usr.IsActive == active {
		fmt.Fprintf(cli.out, "user %s unchanged\n", usr.Username)
		return nil
	}
	if _, err = cli.usrSvc.SetActive(ctx, usr, active); err != nil {
		return err
	}
	state := "deactivated"
	if active {
		state = "activated"
	}
	fmt.Fprintf(cli.out, "user %s %s\n", usr.Username, state)
	return nil
}
