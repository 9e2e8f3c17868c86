// Package v1 exposes the REST surface. Handlers resolve the caller to an
// owner, pick the durable or session engine, and translate the error
// taxonomy to HTTP status codes. No scheduling logic lives here.
package v1

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/codedrill/codedrill/internal/clock"
	"github.com/codedrill/codedrill/internal/profile"
	"github.com/codedrill/codedrill/server/auth"
	errs "github.com/codedrill/codedrill/server/internal/errors"
	"github.com/codedrill/codedrill/server/service/dashboard"
	"github.com/codedrill/codedrill/server/service/review"
	"github.com/codedrill/codedrill/server/timezone"
	"github.com/codedrill/codedrill/store"
)

type APIV1Service struct {
	Profile   *profile.Profile
	Store     *store.Store
	Auth      *auth.Manager
	Engine    review.Engine
	Dashboard *dashboard.Service
	Policy    review.Policy
	Clock     clock.Clock

	loc *time.Location

	mu sync.Mutex
	// anonymous engines keyed by session token
	anonymous map[string]*review.SessionService
}

func NewAPIV1Service(p *profile.Profile, st *store.Store, authManager *auth.Manager,
	engine review.Engine, dash *dashboard.Service, policy review.Policy, c clock.Clock,
) *APIV1Service {
	loc, _ := timezone.ParseTimezone(p.Timezone)
	return &APIV1Service{
		Profile:   p,
		Store:     st,
		Auth:      authManager,
		Engine:    engine,
		Dashboard: dash,
		Policy:    policy,
		Clock:     c,
		loc:       loc,
		anonymous: map[string]*review.SessionService{},
	}
}

// Register wires the routes into the echo instance.
func (s *APIV1Service) Register(e *echo.Echo) {
	api := e.Group("/api", echomw.CORSWithConfig(echomw.CORSConfig{
		AllowCredentials: true,
		AllowOriginFunc: func(_ string) (bool, error) {
			return true, nil
		},
	}))

	api.POST("/auth/register", s.handleRegister)
	api.POST("/auth/login", s.handleLogin)
	api.POST("/auth/logout", s.handleLogout)
	api.GET("/auth/me", s.handleMe)

	api.POST("/problems", s.handleCreateProblem)
	api.GET("/problems", s.handleSearchProblems)
	api.GET("/problems/active", s.handleListActive)
	api.DELETE("/problems", s.handleDeleteProblem)
	api.POST("/problems/solve", s.handleSolve)
	api.POST("/problems/fail", s.handleFail)
	api.POST("/problems/graduate", s.handleGraduate)

	api.GET("/reviews/today", s.handleListToday)
	api.GET("/dashboard/summary", s.handleDashboardSummary)
}

// caller is the resolved identity of one request.
type caller struct {
	ownerID int32
	engine  review.Engine
	// session is non-nil only for anonymous callers.
	session *review.SessionService
}

// resolve maps the request's session cookie to an engine. Signed-in callers
// get the durable engine scoped to their user; everyone else gets a
// per-session in-memory engine, created (with its cookie) on first touch.
func (s *APIV1Service) resolve(c echo.Context) *caller {
	if cookie, err := c.Cookie(auth.SessionCookieName); err == nil {
		if session, ok := s.Auth.Authenticate(cookie.Value); ok {
			if !session.IsAnonymous() {
				return &caller{ownerID: session.UserID, engine: s.Engine}
			}
			engine := s.sessionEngine(session.Token)
			return &caller{engine: engine, session: engine}
		}
	}

	session := s.Auth.OpenAnonymous()
	s.setSessionCookie(c, session.Token)
	engine := s.sessionEngine(session.Token)
	return &caller{engine: engine, session: engine}
}

func (s *APIV1Service) sessionEngine(token string) *review.SessionService {
	s.mu.Lock()
	defer s.mu.Unlock()
	if engine, ok := s.anonymous[token]; ok {
		return engine
	}
	engine := review.NewSessionService(s.Policy, s.Clock)
	s.anonymous[token] = engine
	return engine
}

func (s *APIV1Service) dropSessionEngine(token string) {
	s.mu.Lock()
	delete(s.anonymous, token)
	s.mu.Unlock()
}

func (s *APIV1Service) setSessionCookie(c echo.Context, token string) {
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *APIV1Service) clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// errorResponse translates the error taxonomy to HTTP.
func errorResponse(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch errs.GetCodeFromError(err, errs.ErrCodeInternal) {
	case errs.ErrCodeNotFound:
		status = http.StatusNotFound
	case errs.ErrCodeConflict:
		status = http.StatusConflict
	case errs.ErrCodeInvalidArgument:
		status = http.StatusBadRequest
	case errs.ErrCodeUnauthenticated:
		status = http.StatusUnauthorized
	}

	body := echo.Map{"message": err.Error(), "code": errs.GetCodeFromError(err, errs.ErrCodeInternal)}
	var se *errs.StatusError
	if errors.As(err, &se) && se.Retryable {
		body["retryable"] = true
	}
	return c.JSON(status, body)
}
