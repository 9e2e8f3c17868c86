package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/codedrill/codedrill/server/auth"
	"github.com/codedrill/codedrill/store"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int32  `json:"id"`
	Email string `json:"email"`
}

func (s *APIV1Service) handleRegister(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	user, err := s.Auth.Register(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, userResponse{ID: user.ID, Email: user.Email})
}

func (s *APIV1Service) handleLogin(c echo.Context) error {
	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	session, user, err := s.Auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return errorResponse(c, err)
	}

	// Any anonymous session the caller had is superseded.
	if cookie, cerr := c.Cookie(auth.SessionCookieName); cerr == nil {
		s.Auth.Logout(cookie.Value)
		s.dropSessionEngine(cookie.Value)
	}
	s.setSessionCookie(c, session.Token)
	return c.JSON(http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}

func (s *APIV1Service) handleLogout(c echo.Context) error {
	if cookie, err := c.Cookie(auth.SessionCookieName); err == nil {
		s.Auth.Logout(cookie.Value)
		s.dropSessionEngine(cookie.Value)
	}
	s.clearSessionCookie(c)
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) handleMe(c echo.Context) error {
	cookie, err := c.Cookie(auth.SessionCookieName)
	if err != nil {
		return c.JSON(http.StatusOK, echo.Map{"anonymous": true})
	}
	session, ok := s.Auth.Authenticate(cookie.Value)
	if !ok || session.IsAnonymous() {
		return c.JSON(http.StatusOK, echo.Map{"anonymous": true})
	}

	user, err := s.Store.GetUser(c.Request().Context(), &store.FindUser{ID: &session.UserID})
	if err != nil || user == nil {
		return c.JSON(http.StatusOK, echo.Map{"anonymous": true})
	}
	return c.JSON(http.StatusOK, userResponse{ID: user.ID, Email: user.Email})
}
