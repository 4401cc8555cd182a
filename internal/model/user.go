package model

import (
	"regexp"
	"strings"
	"time"
)

// Role is the access role of a user account.
type Role string

const (
	RolePatient      Role = "PACIENTE"
	RoleDoctor       Role = "MEDICO"
	RoleAdmin        Role = "ADMINISTRADOR"
	RoleReceptionist Role = "RECEPCIONISTA"
)

// Roles lists every known role in display order.
var Roles = []Role{RolePatient, RoleDoctor, RoleAdmin, RoleReceptionist}

// ParseRole matches s case-insensitively against the known roles.
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return "", false
}

// RoleOrPatient parses s and falls back to [RolePatient] for unknown or empty
// values, which is how accounts without a recognised role are treated.
func RoleOrPatient(s string) Role {
	if r, ok := ParseRole(s); ok {
		return r
	}
	return RolePatient
}

// DisplayName returns the human-readable label for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleDoctor:
		return "Médico"
	case RoleAdmin:
		return "Administrador"
	case RoleReceptionist:
		return "Recepcionista"
	default:
		return "Paciente"
	}
}

// User is an account of the booking system.
type User struct {
	ID       int64
	Username string
	FullName string
	Email    string
	RUT      string
	Role     Role

	// PhotoURL and Phone are optional; empty means not set.
	PhotoURL string
	Phone    string

	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the user identifier.
func (u User) Key() int64 { return u.ID }

// WithKey returns a copy of u with the identifier set to id.
func (u User) WithKey(id int64) User {
	u.ID = id
	return u
}

// Initials returns up to two upper-case initials for avatar placeholders.
func (u User) Initials() string {
	parts := strings.Fields(u.FullName)
	switch {
	case len(parts) >= 2:
		return strings.ToUpper(firstRune(parts[0]) + firstRune(parts[1]))
	case len(parts) == 1:
		r := []rune(parts[0])
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	default:
		return "US"
	}
}

// HasPhoto reports whether a profile photo is set.
func (u User) HasPhoto() bool { return strings.TrimSpace(u.PhotoURL) != "" }

var rutPattern = regexp.MustCompile(`^\d{7,8}-[0-9Kk]$`)

// ValidRUT reports whether the RUT has the basic "12345678-9" shape. The check
// digit itself is not verified.
func (u User) ValidRUT() bool { return rutPattern.MatchString(u.RUT) }

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
