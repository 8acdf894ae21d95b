package main

import (
	"context"
	"fmt"
)

func (cli *commandLine) resetPassword(ctx context.Context, uname, pwd string) error {
	usrSvc, err := cli.userService(ctx)
	if err != nil {
		return err
	}
	if err = usrSvc.SetPassword(ctx, uname, pwd); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "password updated")
	return nil
}
