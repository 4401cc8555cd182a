package backend

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/njoerd114/agendasync/internal/remote"
)

// claims is the payload of a login token.
type claims struct {
	Role string `json:"rol"`
	jwt.RegisteredClaims
}

const ctxUserID = "userID"

func (s *Server) issueToken(u remote.User) (string, error) {
	now := s.now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
		},
	})
	return tok.SignedString(s.secret)
}

func (s *Server) parseToken(raw string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// authenticate checks the bearer token when the server requires one.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.requireAuth {
			return next(c)
		}
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "Token requerido")
		}
		cl, err := s.parseToken(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Token inválido o expirado")
		}
		c.Set(ctxUserID, cl.Subject)
		return next(c)
	}
}
