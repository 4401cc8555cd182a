package backend

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/njoerd114/agendasync/internal/remote"
)

const minPasswordLength = 6

func (s *Server) timestamp() *string {
	ts := s.now().UTC().Format(time.RFC3339)
	return &ts
}

func (s *Server) userByUsername(username string) (remote.User, bool) {
	return s.users.find(func(u remote.User) bool { return strings.EqualFold(u.Username, username) })
}

func (s *Server) userByEmail(email string) (remote.User, bool) {
	return s.users.find(func(u remote.User) bool { return strings.EqualFold(u.Email, email) })
}

// addUser stores w with a hashed password and server-side defaults.
func (s *Server) addUser(w remote.User, password string) (remote.User, error) {
	if len(password) < minPasswordLength {
		return remote.User{}, echo.NewHTTPError(http.StatusBadRequest,
			"La contraseña debe tener al menos "+strconv.Itoa(minPasswordLength)+" caracteres")
	}
	if _, taken := s.userByUsername(w.Username); taken {
		return remote.User{}, echo.NewHTTPError(http.StatusConflict, "El nombre de usuario ya está en uso")
	}
	if _, taken := s.userByEmail(w.Email); taken {
		return remote.User{}, echo.NewHTTPError(http.StatusConflict, "El email ya está registrado")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return remote.User{}, err
	}

	w.Password = ""
	if w.Role == "" {
		w.Role = "PACIENTE"
	}
	if w.Active == nil {
		active := true
		w.Active = &active
	}
	w.CreatedAt = s.timestamp()
	w.UpdatedAt = w.CreatedAt

	stored := s.users.insert(w)
	s.mu.Lock()
	s.passwords[stored.ID] = hash
	s.mu.Unlock()
	return stored, nil
}

func (s *Server) register(c echo.Context) error {
	w, err := bindValid[remote.User](c)
	if err != nil {
		return err
	}
	stored, err := s.addUser(w, w.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, stored)
}

func (s *Server) createUser(c echo.Context) error {
	return s.register(c)
}

func (s *Server) login(c echo.Context) error {
	var req remote.LoginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Cuerpo inválido")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	refuse := func() error {
		return c.JSON(http.StatusUnauthorized, remote.LoginResponse{
			Success: false,
			Message: "Usuario o contraseña incorrectos",
		})
	}

	u, ok := s.userByUsername(req.Username)
	if !ok {
		return refuse()
	}
	s.mu.Lock()
	hash := s.passwords[u.ID]
	s.mu.Unlock()
	if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil {
		return refuse()
	}
	if u.Active != nil && !*u.Active {
		return c.JSON(http.StatusForbidden, remote.LoginResponse{Success: false, Message: "Usuario inactivo"})
	}

	token, err := s.issueToken(u)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, remote.LoginResponse{
		Success: true,
		Message: "Inicio de sesión exitoso",
		User:    &u,
		Token:   token,
	})
}

func (s *Server) recoverPassword(c echo.Context) error {
	var req remote.PasswordRecoveryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Cuerpo inválido")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	// Unknown addresses get the same answer, so the endpoint cannot be used
	// to discover accounts.
	if u, ok := s.userByEmail(req.Email); ok {
		token := uuid.NewString()
		s.mu.Lock()
		s.resetTokens[token] = u.ID
		s.mu.Unlock()
		s.log.Info("password reset token issued", "email", u.Email, "token", token)
	}
	return c.JSON(http.StatusOK, remote.MessageResponse{
		Success: true,
		Message: "Si el email está registrado, recibirás instrucciones para restablecer tu contraseña",
	})
}

// ResetToken returns the pending reset token for email, if any.
func (s *Server) ResetToken(email string) (string, bool) {
	u, ok := s.userByEmail(email)
	if !ok {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, id := range s.resetTokens {
		if id == u.ID {
			return token, true
		}
	}
	return "", false
}

func (s *Server) resetPassword(c echo.Context) error {
	var req remote.PasswordResetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Cuerpo inválido")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	id, ok := s.resetTokens[req.Token]
	if ok {
		delete(s.resetTokens, req.Token)
		s.passwords[id] = hash
	}
	s.mu.Unlock()
	if !ok {
		return c.JSON(http.StatusBadRequest, remote.MessageResponse{Success: false, Message: "Token inválido o expirado"})
	}

	s.users.update(id, func(u remote.User) remote.User {
		u.UpdatedAt = s.timestamp()
		return u
	})
	return c.JSON(http.StatusOK, remote.MessageResponse{Success: true, Message: "Contraseña restablecida correctamente"})
}

func (s *Server) usernameExists(c echo.Context) error {
	_, ok := s.userByUsername(c.Param("value"))
	return c.JSON(http.StatusOK, remote.ExistsResponse{Exists: ok})
}

func (s *Server) emailExists(c echo.Context) error {
	_, ok := s.userByEmail(c.Param("value"))
	return c.JSON(http.StatusOK, remote.ExistsResponse{Exists: ok})
}

func (s *Server) listUsers(c echo.Context) error {
	return c.JSON(http.StatusOK, s.users.list())
}

func (s *Server) getUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	u, ok := s.users.get(id)
	if !ok {
		return userNotFound(id)
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) updateUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	w, err := bindValid[remote.User](c)
	if err != nil {
		return err
	}
	u, ok := s.users.update(id, func(old remote.User) remote.User {
		w.Password = ""
		w.CreatedAt = old.CreatedAt
		w.UpdatedAt = s.timestamp()
		return w
	})
	if !ok {
		return userNotFound(id)
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) deleteUser(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if !s.users.remove(id) {
		return userNotFound(id)
	}
	s.mu.Lock()
	delete(s.passwords, id)
	s.mu.Unlock()
	return c.JSON(http.StatusOK, remote.MessageResponse{Success: true, Message: "Usuario eliminado"})
}

func (s *Server) updatePhoto(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req remote.PhotoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Cuerpo inválido")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	u, ok := s.users.update(id, func(u remote.User) remote.User {
		u.PhotoURL = &req.PhotoURL
		u.UpdatedAt = s.timestamp()
		return u
	})
	if !ok {
		return userNotFound(id)
	}
	return c.JSON(http.StatusOK, u)
}

func userNotFound(id int64) error {
	return echo.NewHTTPError(http.StatusNotFound, "Usuario "+strconv.FormatInt(id, 10)+" no encontrado")
}
