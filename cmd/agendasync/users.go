package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/remote"
	"github.com/njoerd114/agendasync/internal/repository"
	"github.com/njoerd114/agendasync/internal/setup"
	"github.com/njoerd114/agendasync/internal/state"
)

func (c *cli) usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"usuarios"},
		Short:   "Accounts: list, sign in, register and recover passwords",
		GroupID: "data",
	}
	cmd.AddCommand(
		c.usersListCmd(),
		c.usersLoginCmd(),
		c.usersRegisterCmd(),
		c.usersLogoutCmd(),
		c.usersCheckCmd("check-username", "Check whether a username is free",
			func(ctx context.Context, u *repository.Users, v string) (model.Availability, error) {
				return u.CheckUsername(ctx, v)
			}),
		c.usersCheckCmd("check-email", "Check whether an email is free",
			func(ctx context.Context, u *repository.Users, v string) (model.Availability, error) {
				return u.CheckEmail(ctx, v)
			}),
		c.usersRecoverPasswordCmd(),
		c.usersResetPasswordCmd(),
		c.usersSetPhotoCmd(),
	)
	return cmd
}

// password returns flagVal or prompts for it without echo.
func (c *cli) password(flagVal, label string) (string, error) {
	if flagVal != "" {
		return flagVal, nil
	}
	pw := setup.NewPrompter(c.in, c.errOut).Secret(label, true)
	if pw == "" {
		return "", errors.New("a password is required")
	}
	return pw, nil
}

// needsAPI explains failures of commands that have no offline fallback.
func needsAPI(action string, err error) error {
	if remote.IsUnreachable(err) {
		return fmt.Errorf("%s needs the API, which is unreachable: %w", action, err)
	}
	return err
}

func (c *cli) usersListCmd() *cobra.Command {
	var (
		role  string
		watch bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached accounts by name",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var want model.Role
			if role != "" {
				r, ok := model.ParseRole(role)
				if !ok {
					return fmt.Errorf("unknown role %q: want one of %s", role, roleNames())
				}
				want = r
			}
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				repo := s.app.Users
				observe := repo.ObserveAll
				if want != "" {
					observe = func(ctx context.Context) <-chan state.Snapshot[model.User] {
						return repo.ObserveByRole(ctx, want)
					}
				}
				return show(ctx, c.out, listing[model.User]{
					observe: observe,
					refresh: repo.RefreshAll,
					render:  printUsers,
				}, watch)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "only accounts with this role ("+roleNames()+")")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "keep printing as the list changes")
	return cmd
}

func roleNames() string {
	names := make([]string, len(model.Roles))
	for i, r := range model.Roles {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}

func (c *cli) usersLoginCmd() *cobra.Command {
	var (
		pw   string
		save bool
	)
	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and cache the account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := c.password(pw, "Password")
			if err != nil {
				return err
			}
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				sess, err := s.app.Users.Login(ctx, args[0], password)
				if errors.Is(err, repository.ErrInvalidCredentials) {
					return errors.New("wrong username or password")
				}
				if err != nil {
					return needsAPI("signing in", err)
				}
				fmt.Fprintf(c.out, "Signed in as %s (%s).\n", sess.User.FullName, sess.User.Role.DisplayName())

				if save && sess.Token != "" {
					s.cfg.APIToken = sess.Token
					if err := s.cfg.Write(c.cfgPath); err != nil {
						return err
					}
					fmt.Fprintf(c.out, "Token saved to %s.\n", c.cfgPath)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pw, "password", "", "password (prompted when omitted)")
	cmd.Flags().BoolVar(&save, "save", false, "store the session token as api_token in the config file")
	return cmd
}

func (c *cli) usersRegisterCmd() *cobra.Command {
	var (
		u    model.User
		role string
		pw   string
	)
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, ok := model.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q: want one of %s", role, roleNames())
			}
			u.Role = r
			u.Active = true
			if !u.ValidRUT() {
				return fmt.Errorf("invalid RUT %q: want 12345678-9", u.RUT)
			}
			password, err := c.password(pw, "Password")
			if err != nil {
				return err
			}
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				created, err := s.app.Users.Register(ctx, u, password)
				if errors.Is(err, repository.ErrUsernameTaken) {
					return fmt.Errorf("username %q is already taken", u.Username)
				}
				if err != nil {
					return needsAPI("registering", err)
				}
				fmt.Fprintf(c.out, "Registered %s as user #%d.\n", created.Username, created.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&u.Username, "username", "", "login name")
	cmd.Flags().StringVar(&u.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&u.Email, "email", "", "email address")
	cmd.Flags().StringVar(&u.RUT, "rut", "", "RUT, e.g. 12345678-9")
	cmd.Flags().StringVar(&u.Phone, "phone", "", "phone number")
	cmd.Flags().StringVar(&role, "role", string(model.RolePatient), "role ("+roleNames()+")")
	cmd.Flags().StringVar(&pw, "password", "", "password (prompted when omitted)")
	for _, f := range []string{"username", "name", "email", "rut"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func (c *cli) usersLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget every cached account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				if err := s.app.Users.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Signed out.")
				return nil
			})
		},
	}
}

func (c *cli) usersCheckCmd(use, short string, check func(context.Context, *repository.Users, string) (model.Availability, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <value>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				a, err := check(ctx, s.app.Users, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s: %s\n", args[0], a)
				return nil
			})
		},
	}
}

func (c *cli) usersRecoverPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover-password <email>",
		Short: "Ask the API to send a password reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				msg, err := s.app.Users.RecoverPassword(ctx, args[0])
				if err != nil {
					return needsAPI("password recovery", err)
				}
				fmt.Fprintln(c.out, msg)
				return nil
			})
		},
	}
}

func (c *cli) usersResetPasswordCmd() *cobra.Command {
	var pw string
	cmd := &cobra.Command{
		Use:   "reset-password <token>",
		Short: "Set a new password with a reset token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := c.password(pw, "New password")
			if err != nil {
				return err
			}
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				msg, err := s.app.Users.ResetPassword(ctx, args[0], password)
				if err != nil {
					return needsAPI("password reset", err)
				}
				fmt.Fprintln(c.out, msg)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&pw, "password", "", "new password (prompted when omitted)")
	return cmd
}

func (c *cli) usersSetPhotoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-photo <id> <url>",
		Short: "Change an account's profile photo",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return c.withSession(cmd, func(ctx context.Context, s *session) error {
				u, err := s.app.Users.UpdatePhoto(ctx, id, args[1])
				if err != nil {
					return err
				}
				if u == nil {
					return fmt.Errorf("user #%d is not cached and the API is unreachable", id)
				}
				fmt.Fprintf(c.out, "Photo of %s updated.\n", u.Username)
				return nil
			})
		},
	}
}
