package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// API paths of the three collections.
const (
	AppointmentsPath  = "/api/citas"
	ProfessionalsPath = "/api/profesionales"
	UsersPath         = "/api/usuarios"
)

// Appointments is the /api/citas collection.
type Appointments struct {
	*Resource[Appointment]
}

// NewAppointments returns the appointments collection on c.
func NewAppointments(c *Client) *Appointments {
	return &Appointments{Resource: NewResource[Appointment](c, AppointmentsPath)}
}

// Professionals is the /api/profesionales collection.
type Professionals struct {
	*Resource[Professional]
}

// NewProfessionals returns the professionals collection on c.
func NewProfessionals(c *Client) *Professionals {
	return &Professionals{Resource: NewResource[Professional](c, ProfessionalsPath)}
}

// SetAvailability flips the availability flag of one professional.
func (p *Professionals) SetAvailability(ctx context.Context, id int64, available bool) (Professional, error) {
	q := url.Values{"disponible": {strconv.FormatBool(available)}}
	return p.Patch(ctx, id, "disponibilidad", q, nil)
}

// Users is the /api/usuarios collection plus the identity endpoints.
type Users struct {
	*Resource[User]
}

// NewUsers returns the users collection on c.
func NewUsers(c *Client) *Users {
	return &Users{Resource: NewResource[User](c, UsersPath)}
}

// Login checks credentials. A well-formed refusal comes back either as an
// [Error] with status 401 or as a response with Success=false.
func (u *Users) Login(ctx context.Context, username, password string) (LoginResponse, error) {
	var resp LoginResponse
	err := u.c.Do(ctx, http.MethodPost, u.path+"/login", nil,
		LoginRequest{Username: username, Password: password}, &resp)
	return resp, err
}

// Register creates an account. w.Password must be set.
func (u *Users) Register(ctx context.Context, w User) (User, error) {
	var created User
	err := u.c.Do(ctx, http.MethodPost, u.path+"/registro", nil, w, &created)
	return created, err
}

// RecoverPassword asks the API to e-mail a reset token.
func (u *Users) RecoverPassword(ctx context.Context, email string) (MessageResponse, error) {
	var resp MessageResponse
	err := u.c.Do(ctx, http.MethodPost, u.path+"/recuperar-password", nil,
		PasswordRecoveryRequest{Email: email}, &resp)
	return resp, err
}

// ResetPassword sets a new password using a reset token.
func (u *Users) ResetPassword(ctx context.Context, token, newPassword string) (MessageResponse, error) {
	var resp MessageResponse
	err := u.c.Do(ctx, http.MethodPost, u.path+"/restablecer-password", nil,
		PasswordResetRequest{Token: token, NewPassword: newPassword}, &resp)
	return resp, err
}

// UsernameExists asks whether username is registered.
func (u *Users) UsernameExists(ctx context.Context, username string) (bool, error) {
	return u.exists(ctx, "username", username)
}

// EmailExists asks whether email is registered.
func (u *Users) EmailExists(ctx context.Context, email string) (bool, error) {
	return u.exists(ctx, "email", email)
}

func (u *Users) exists(ctx context.Context, field, value string) (bool, error) {
	var resp ExistsResponse
	err := u.c.Do(ctx, http.MethodGet, u.path+"/verificar/"+field+"/"+url.PathEscape(value), nil, nil, &resp)
	return resp.Exists, err
}

// UpdatePhoto sets the profile photo URL of a user.
func (u *Users) UpdatePhoto(ctx context.Context, id int64, photoURL string) (User, error) {
	return u.Patch(ctx, id, "foto", nil, PhotoRequest{PhotoURL: photoURL})
}
