package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) runSchedules(ctx context.Context) error {
	n, err := cli.reportSvc.RunDue(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d scheduled report(s) delivered\n", n)
	return nil
}

func (cli *commandLine) markOverdue(ctx context.Context) error {
	n, err := cli.taskSvc.MarkOverdue(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d task(s) marked overdue\n", n)
	return nil
}
