package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(name, uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	name = core.CleanString(name)

	usr, err := cli.usrRepo.GetUserByUsernameOrEmail(ctx, uname)
	if errors.Cause(err) == user.ErrNotFound {
		usr, err = cli.usrRepo.GetUserByEmail(ctx, email)
	}
	exists := err == nil
	if err != nil && errors.Cause(err) != user.ErrNotFound {
		return errors.Wrap(err, "finding user")
	}

	now := time.Now().UTC()
	if !exists {
		usr = user.User{CreatedAt: now}
	}
	usr.Username = uname
	usr.Email = email
	if name != "" {
		usr.Name = name
	} else if usr.Name == "" {
		usr.Name = uname
	}
	if isAdmin {
		usr.Roles = append([]string(nil), user.AdminRoles...)
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}

	if exists {
		if err = cli.usrRepo.CheckUniqueness(ctx, uname, email, usr.ID); err != nil {
			return err
		}
		if _, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
			return errors.Wrap(err, "updating user")
		}
		fmt.Fprintf(cli.out, "user %q updated\n", uname)
		return nil
	}
	if _, err = cli.usrRepo.CreateUser(ctx, usr); err != nil {
		return errors.Wrap(err, "creating user")
	}
	fmt.Fprintf(cli.out, "user %q created\n", uname)
	return nil
}
