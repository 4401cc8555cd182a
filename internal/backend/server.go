// Package backend is an in-memory implementation of the booking REST API. It
// backs the mock-server command and the integration tests, and can be taken
// offline on demand to exercise the cache fallbacks.
//
// Routes (all JSON, under /api):
//
//	GET|POST            /citas             GET|PUT|DELETE /citas/{id}
//	GET|POST            /profesionales     GET|PUT|DELETE /profesionales/{id}
//	PATCH               /profesionales/{id}/disponibilidad?disponible=bool
//	GET|POST            /usuarios          GET|PUT|DELETE /usuarios/{id}
//	PATCH               /usuarios/{id}/foto
//	POST                /usuarios/registro, /usuarios/login,
//	                    /usuarios/recuperar-password, /usuarios/restablecer-password
//	GET                 /usuarios/verificar/username/{v}, /usuarios/verificar/email/{v}
//
// It also serves a small fixed catalogue at GET /drug/label.json in the shape
// of the openFDA drug label search, for the medication lookup.
//
// Errors are answered as {"success": false, "mensaje": "..."}.
package backend

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/njoerd114/agendasync/internal/remote"
)

const tokenTTL = 24 * time.Hour

// Option configures a [Server].
type Option func(*Server)

// WithSecret sets the HMAC key used to sign login tokens. Without it a random
// key is generated, so tokens do not survive a restart.
func WithSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

// WithRequireAuth rejects requests without a valid bearer token, except for
// the public identity routes (login, registration, password recovery and the
// availability checks).
func WithRequireAuth() Option {
	return func(s *Server) { s.requireAuth = true }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// Server is the in-memory booking API.
type Server struct {
	e   *echo.Echo
	log *slog.Logger

	secret      []byte
	requireAuth bool
	now         func() time.Time
	offline     atomic.Bool

	appointments  *collection[remote.Appointment]
	professionals *collection[remote.Professional]
	users         *collection[remote.User]

	mu          sync.Mutex
	passwords   map[int64][]byte // bcrypt hash by user id
	resetTokens map[string]int64 // user id by reset token
}

// New creates a Server with empty collections.
func New(logger *slog.Logger, opts ...Option) (*Server, error) {
	s := &Server{
		log: logger,
		now: time.Now,

		appointments: newCollection(
			func(w remote.Appointment) int64 { return w.ID },
			func(w remote.Appointment, id int64) remote.Appointment { w.ID = id; return w },
		),
		professionals: newCollection(
			func(w remote.Professional) int64 { return w.ID },
			func(w remote.Professional, id int64) remote.Professional { w.ID = id; return w },
		),
		users: newCollection(
			func(w remote.User) int64 { return w.ID },
			func(w remote.User, id int64) remote.User { w.ID = id; return w },
		),

		passwords:   make(map[int64][]byte),
		resetTokens: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(s.secret) == 0 {
		s.secret = make([]byte, 32)
		if _, err := rand.Read(s.secret); err != nil {
			return nil, fmt.Errorf("generating token secret: %w", err)
		}
	}

	s.e = s.routes()
	return s, nil
}

func (s *Server) routes() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
	e.HTTPErrorHandler = s.handleError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:    uuid.NewString,
		TargetHeader: remote.HeaderRequestID,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelDebug
			switch {
			case v.Status >= http.StatusInternalServerError:
				level = slog.LevelError
			case v.Status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			s.log.LogAttrs(c.Request().Context(), level, "api request", attrs...)
			return nil
		},
	}))
	e.Use(s.offlineSwitch)

	e.GET(remote.DrugLabelPath, s.searchDrugLabels)

	api := e.Group("/api")

	users := api.Group("/usuarios")
	users.POST("/login", s.login)
	users.POST("/registro", s.register)
	users.POST("/recuperar-password", s.recoverPassword)
	users.POST("/restablecer-password", s.resetPassword)
	users.GET("/verificar/username/:value", s.usernameExists)
	users.GET("/verificar/email/:value", s.emailExists)

	// Everything registered below may require a token.
	private := api.Group("", s.authenticate)

	appointments := crud[remote.Appointment]{items: s.appointments, noun: "Cita", prepare: s.prepareAppointment}
	appointments.register(private.Group("/citas"))

	professionals := crud[remote.Professional]{items: s.professionals, noun: "Profesional"}
	pg := private.Group("/profesionales")
	professionals.register(pg)
	pg.PATCH("/:id/disponibilidad", s.setAvailability)

	ug := private.Group("/usuarios")
	ug.GET("", s.listUsers)
	ug.POST("", s.createUser)
	ug.GET("/:id", s.getUser)
	ug.PUT("/:id", s.updateUser)
	ug.DELETE("/:id", s.deleteUser)
	ug.PATCH("/:id/foto", s.updatePhoto)

	return e
}

// Handler returns the HTTP handler, e.g. for httptest.NewServer.
func (s *Server) Handler() http.Handler { return s.e }

// Start listens on addr and blocks until the server stops. It returns nil
// after a clean [Server.Shutdown].
func (s *Server) Start(addr string) error {
	s.log.Info("mock API listening", "addr", addr)
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving on %s: %w", addr, err)
	}
	return nil
}

// Shutdown stops the listener started by [Server.Start].
func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

// SetOffline makes every request fail with 503 until called with false.
func (s *Server) SetOffline(offline bool) {
	s.offline.Store(offline)
}

// Reset empties every collection.
func (s *Server) Reset() {
	s.appointments.reset()
	s.professionals.reset()
	s.users.reset()

	s.mu.Lock()
	s.passwords = make(map[int64][]byte)
	s.resetTokens = make(map[string]int64)
	s.mu.Unlock()
}

func (s *Server) offlineSwitch(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.offline.Load() {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "Servicio no disponible")
		}
		return next(c)
	}
}

// handleError renders every error as a MessageResponse.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "Error interno del servidor"

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		msg = fmt.Sprint(he.Message)
	} else {
		s.log.Error("unhandled API error", "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, remote.MessageResponse{Success: false, Message: msg})
	}
	if err != nil {
		s.log.Error("writing error response", "error", err)
	}
}

type requestValidator struct {
	v *validator.Validate
}

func (rv *requestValidator) Validate(i any) error {
	if err := rv.v.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Datos inválidos: "+err.Error())
	}
	return nil
}
