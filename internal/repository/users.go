package repository

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/njoerd114/agendasync/internal/model"
	"github.com/njoerd114/agendasync/internal/remote"
	"github.com/njoerd114/agendasync/internal/state"
	syncp "github.com/njoerd114/agendasync/internal/sync"
)

// Users is the offline-first user repository plus the identity flows
// (register, login, password recovery). Unlike the cached reads, identity
// flows need the API and return its errors. Streams are ordered by full name.
//
// There is no generic Create: accounts are made with [Users.Register].
type Users struct {
	repo   *syncp.Repository[model.User, remote.User]
	api    *remote.Users
	table  *state.Table[model.User]
	mapper userMapper
}

// NewUsers binds the users API collection to its local table.
func NewUsers(api *remote.Users, table *state.Table[model.User], diag syncp.Diagnostics, opts ...syncp.Option) *Users {
	return &Users{
		repo:  syncp.New[model.User, remote.User]("users", api, table, userMapper{}, diag, opts...),
		api:   api,
		table: table,
	}
}

// Name returns "users".
func (r *Users) Name() string { return r.repo.Name() }

// ObserveAll streams every cached user and refreshes the cache in the
// background.
func (r *Users) ObserveAll(ctx context.Context) <-chan state.Snapshot[model.User] {
	return r.repo.ObserveAll(ctx)
}

// ObserveByRole streams the cached users with the given role.
func (r *Users) ObserveByRole(ctx context.Context, role model.Role) <-chan state.Snapshot[model.User] {
	return r.repo.ObserveWhere(ctx, state.Eq(state.UserRole, string(role)))
}

// RefreshAll replaces the cached users with the API's list.
func (r *Users) RefreshAll(ctx context.Context) (syncp.RefreshOutcome, error) {
	return r.repo.RefreshAll(ctx)
}

// GetByID returns the user from the API, or from the cache when offline.
func (r *Users) GetByID(ctx context.Context, id int64) (*model.User, error) {
	return r.repo.GetByID(ctx, id)
}

// Update saves a profile change, locally only when the API is unreachable.
func (r *Users) Update(ctx context.Context, u model.User) (model.User, error) {
	return r.repo.Update(ctx, u)
}

// Delete removes the user from the API (best effort) and from the cache.
func (r *Users) Delete(ctx context.Context, id int64) error {
	return r.repo.Delete(ctx, id)
}

// Shutdown waits for background refreshes to finish.
func (r *Users) Shutdown(ctx context.Context) error {
	return r.repo.Shutdown(ctx)
}

// Register creates an account with password and caches it.
func (r *Users) Register(ctx context.Context, u model.User, password string) (model.User, error) {
	taken, err := r.table.Count(ctx, state.Eq(state.UserUsername, u.Username))
	if err != nil {
		return model.User{}, fmt.Errorf("checking username %q: %w", u.Username, err)
	}
	if taken > 0 {
		return model.User{}, fmt.Errorf("registering %q: %w", u.Username, ErrUsernameTaken)
	}

	w := r.mapper.ToWire(u.WithKey(0))
	w.Password = password
	created, err := r.api.Register(ctx, w)
	if err != nil {
		if remote.StatusOf(err) == http.StatusConflict {
			return model.User{}, fmt.Errorf("registering %q: %w", u.Username, ErrUsernameTaken)
		}
		return model.User{}, fmt.Errorf("registering %q: %w", u.Username, err)
	}

	user, err := r.mapper.FromWire(created)
	if err != nil {
		return model.User{}, fmt.Errorf("registering %q: unusable response: %w", u.Username, err)
	}
	if _, err := r.table.InsertOrReplace(ctx, user); err != nil {
		return model.User{}, fmt.Errorf("caching user %q: %w", user.Username, err)
	}
	return user, nil
}

// Login checks credentials against the API and caches the returned user.
// There is no offline login.
func (r *Users) Login(ctx context.Context, username, password string) (Session, error) {
	resp, err := r.api.Login(ctx, username, password)
	if err != nil {
		if remote.StatusOf(err) == http.StatusUnauthorized {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, fmt.Errorf("logging in %q: %w", username, err)
	}
	if !resp.Success {
		return Session{}, ErrInvalidCredentials
	}
	if resp.User == nil {
		return Session{}, fmt.Errorf("logging in %q: response has no user", username)
	}

	user, err := r.mapper.FromWire(*resp.User)
	if err != nil {
		return Session{}, fmt.Errorf("logging in %q: unusable response: %w", username, err)
	}
	if _, err := r.table.InsertOrReplace(ctx, user); err != nil {
		return Session{}, fmt.Errorf("caching user %q: %w", user.Username, err)
	}
	return Session{User: user, Token: resp.Token}, nil
}

// Logout forgets every cached user.
func (r *Users) Logout(ctx context.Context) error {
	return r.repo.Clear(ctx)
}

// RecoverPassword asks the API to e-mail a reset token and returns its
// message.
func (r *Users) RecoverPassword(ctx context.Context, email string) (string, error) {
	resp, err := r.api.RecoverPassword(ctx, email)
	return answer("recovering password", resp, err)
}

// ResetPassword sets a new password with a reset token and returns the API's
// message.
func (r *Users) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	resp, err := r.api.ResetPassword(ctx, token, newPassword)
	return answer("resetting password", resp, err)
}

func answer(op string, resp remote.MessageResponse, err error) (string, error) {
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !resp.Success {
		msg := strings.TrimSpace(resp.Message)
		if msg == "" {
			return "", fmt.Errorf("%s: %w", op, ErrRefused)
		}
		return "", fmt.Errorf("%s: %w: %s", op, ErrRefused, msg)
	}
	return resp.Message, nil
}

// CheckUsername reports whether username can still be registered. A username
// in the local cache is taken without asking the API.
func (r *Users) CheckUsername(ctx context.Context, username string) (model.Availability, error) {
	return r.check(ctx, state.UserUsername, username, r.api.UsernameExists)
}

// CheckEmail reports whether email can still be registered.
func (r *Users) CheckEmail(ctx context.Context, email string) (model.Availability, error) {
	return r.check(ctx, state.UserEmail, email, r.api.EmailExists)
}

func (r *Users) check(ctx context.Context, column, value string, exists func(context.Context, string) (bool, error)) (model.Availability, error) {
	n, err := r.table.Count(ctx, state.Eq(column, value))
	if err != nil {
		return model.Availability{}, fmt.Errorf("checking %s %q: %w", column, value, err)
	}
	if n > 0 {
		return model.Taken(), nil
	}

	found, err := exists(ctx, value)
	if err != nil {
		if msg := remote.MessageOf(err); msg != "" {
			return model.Unknown(msg), nil
		}
		return model.Unknown(err.Error()), nil
	}
	if found {
		return model.Taken(), nil
	}
	return model.Available(), nil
}

// UpdatePhoto sets the profile photo URL, updating only the cache when the API
// is unreachable. It returns (nil, nil) if the API failed and the user is not
// cached.
func (r *Users) UpdatePhoto(ctx context.Context, id int64, photoURL string) (*model.User, error) {
	return r.repo.Apply(ctx, id, "update_photo",
		func(ctx context.Context) (remote.User, error) {
			return r.api.UpdatePhoto(ctx, id, photoURL)
		},
		func(u model.User) model.User {
			u.PhotoURL = photoURL
			return u
		},
	)
}
