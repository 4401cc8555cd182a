// Package repository exposes the three offline-first repositories the
// application reads and writes through: appointments, professionals, and
// users. Each wraps a [sync.Repository] bound to its API collection, its local
// table, and its wire mapper, and adds the entity's own queries and flows.
package repository

import (
	"errors"

	"github.com/njoerd114/agendasync/internal/model"
)

var (
	// ErrUsernameTaken is returned by [Users.Register] when the username is
	// already known locally or the API reports a conflict.
	ErrUsernameTaken = errors.New("username already in use")

	// ErrInvalidCredentials is returned by [Users.Login] when the API refuses
	// the username/password pair.
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrNotFound is returned when an operation needs an existing record and
	// neither the API nor the local cache has it.
	ErrNotFound = errors.New("record not found")

	// ErrRefused is returned when the API answers a request with
	// success=false. The error text carries the server's message.
	ErrRefused = errors.New("request refused")
)

// Session is the result of a successful login.
type Session struct {
	User  model.User
	Token string
}
