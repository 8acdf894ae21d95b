package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/mozedu/mozedu/core"
	"github.com/mozedu/mozedu/core/user"
)

var roleFlags = map[string][]string{
	"parent":  user.ParentRoles,
	"teacher": user.TeacherRoles,
	"admin":   user.AllRoles,
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, name, uname, email, role, pwd string) error {
	roles, ok := roleFlags[role]
	if !ok {
		return errors.Errorf("%q: unknown role, use parent, teacher or admin", role)
	}

	nu := user.NewUser{
		Name:            core.CleanString(name),
		Username:        core.CleanString(uname, true /* lower */),
		Email:           core.CleanString(email, true /* lower */),
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           roles,
	}
	if err := cli.validate.Struct(&nu); err != nil {
		return cli.describeError(err)
	}

	usrSvc, err := cli.userService(ctx)
	if err != nil {
		return err
	}
	usr, err := usrSvc.UpdateOrCreate(ctx, user.User{
		Name:     nu.Name,
		Username: nu.Username,
		Email:    nu.Email,
		Roles:    nu.Roles,
	}, pwd)
	if err != nil {
		return cli.describeError(err)
	}
	fmt.Fprintf(cli.out, "user %s saved (%s)\n", usr.DisplayName(), role)
	return nil
}
