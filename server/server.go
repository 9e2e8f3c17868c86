package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/codedrill/codedrill/internal/clock"
	"github.com/codedrill/codedrill/internal/profile"
	"github.com/codedrill/codedrill/server/auth"
	"github.com/codedrill/codedrill/server/middleware"
	apiv1 "github.com/codedrill/codedrill/server/router/api/v1"
	"github.com/codedrill/codedrill/server/service/dashboard"
	"github.com/codedrill/codedrill/server/service/review"
	"github.com/codedrill/codedrill/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
}

// NewServer assembles the HTTP server: auth, engine, dashboard, routes.
func NewServer(profile *profile.Profile, st *store.Store, policy review.Policy, c clock.Clock) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(requestLogger())
	e.Use(echomw.Recover())
	e.Use(middleware.NewRateLimiter(10, 20).Middleware())

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})

	authManager := auth.NewManager(st, c)
	engine := review.NewService(st, policy, c)
	dash := dashboard.NewService(st, c)
	apiv1.NewAPIV1Service(profile, st, authManager, engine, dash, policy, c).Register(e)

	return &Server{
		Profile:    profile,
		Store:      st,
		echoServer: e,
	}
}

// Start runs the listener until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	slog.Info("server started", "address", address, "mode", s.Profile.Mode, "policy", s.Profile.Policy)

	err := s.echoServer.Start(address)
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and closes the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close store", "error", err)
	}
	slog.Info("server stopped")
}

// requestLogger logs every request with a correlation id.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			requestID := uuid.NewString()
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			slog.Info("request",
				"id", requestID,
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"latency", time.Since(start).String(),
			)
			return err
		}
	}
}
