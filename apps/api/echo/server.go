package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/evaluo/core"
	"github.com/trezcool/evaluo/core/evaluation"
	"github.com/trezcool/evaluo/core/school"
	"github.com/trezcool/evaluo/core/user"
)

type (
	ServerDeps struct {
		Conf          *core.Config
		Logger        core.Logger
		Validate      *validator.Validate
		Translator    ut.Translator
		UserSvc       *user.Service
		SchoolSvc     *school.Service
		EvaluationSvc *evaluation.Service
	}

	Server struct {
		addr     string
		app      *echo.Echo
		auth     *authenticator
		errors   chan error
		shutdown chan os.Signal
	}
)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		addr:     deps.Conf.Server.Address(),
		app:      echo.New(),
		auth:     newAuthenticator(deps.Conf, deps.UserSvc),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(deps)
	return s
}

func (s *Server) setup(deps ServerDeps) {
	conf := deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	s.app.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(deps.Logger, deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", func(ctx echo.Context) error {
		return ctx.String(http.StatusOK, "Welcome to "+conf.AppName+" API!")
	})

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(s.auth.jwtConfig)

	registerUserAPI(v1, jwt, s.auth, deps.UserSvc, deps.Validate, deps.Logger)
	registerSchoolAPI(v1, jwt, deps.SchoolSvc, deps.Validate)
	registerEvaluationAPI(v1, jwt, deps.EvaluationSvc, deps.SchoolSvc, deps.Validate)
}

// Start blocks until the server is stopped. Errors other than http.ErrServerClosed are sent to Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.addr); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *Server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default: // already shutting down
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
