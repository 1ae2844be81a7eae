package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/learntube/backend/core"
	"github.com/learntube/backend/core/course"
	"github.com/learntube/backend/core/enrollment"
	"github.com/learntube/backend/core/user"
)

type (
	Pinger interface {
		Ping(ctx context.Context) error
	}

	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Store          Pinger
		UserSvc        user.Service
		CourseSvc      course.Service
		EnrollmentSvc  enrollment.Service
		Validate       *validator.Validate
		Translator     ut.Translator
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Debug = conf.Debug
	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.RequestID())
		s.app.Use(requestLoggerMiddleware(s.deps.Logger))
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(middleware.CORSWithConfig(middleware.CORSConfig{AllowOrigins: conf.Server.CORSOrigins}))
	if conf.Server.RequestTimeout > 0 {
		s.app.Use(middleware.ContextTimeoutWithConfig(middleware.ContextTimeoutConfig{Timeout: conf.Server.RequestTimeout}))
	}

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	g.GET("/health", s.health)

	jwt := jwtMiddleware(conf, s.deps.UserSvc)
	registerAuthAPI(g, jwt, s.deps)
	registerCourseAPI(g, jwt, s.deps)
	registerEnrollmentAPI(g, jwt, s.deps)
}

// Start blocks until the server stops. Errors are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) Errors() <-chan error { return s.errors }

func (s *Server) ShutdownSignal() <-chan os.Signal { return s.shutdown }

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

type healthResponse struct {
	Status   string `json:"status"`
	Build    string `json:"build"`
	Database string `json:"database"`
}

func (s *Server) health(ctx echo.Context) error {
	resp := healthResponse{Status: "ok", Build: s.deps.Conf.Build, Database: "ok"}
	if s.deps.Store != nil {
		if err := s.deps.Store.Ping(ctx.Request().Context()); err != nil {
			s.deps.Logger.Error("health check: pinging database", err)
			resp.Status, resp.Database = "unavailable", "down"
			return ctx.JSON(http.StatusServiceUnavailable, resp)
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}
