package v1

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/codedrill/codedrill/internal/clock"
	"github.com/codedrill/codedrill/server/service/review"
	"github.com/codedrill/codedrill/store"
)

type createProblemRequest struct {
	Number     *int    `json:"number"`
	Name       string  `json:"name"`
	Category   *string `json:"category"`
	Difficulty string  `json:"difficulty"`
}

type problemActionRequest struct {
	Name string `json:"name"`
}

type problemResponse struct {
	UID         string  `json:"uid"`
	Number      *int    `json:"number,omitempty"`
	Name        string  `json:"name"`
	Category    *string `json:"category,omitempty"`
	Difficulty  string  `json:"difficulty"`
	ReviewStep  int     `json:"reviewStep"`
	ReviewCount int     `json:"reviewCount"`
	// NextReviewDate is the due calendar day in the operating timezone,
	// absent for graduated problems.
	NextReviewDate *string `json:"nextReviewDate,omitempty"`
	Status         string  `json:"status"`
}

func (s *APIV1Service) toProblemResponse(p *store.Problem) *problemResponse {
	resp := &problemResponse{
		UID:         p.UID,
		Number:      p.Number,
		Name:        p.Name,
		Difficulty:  string(p.Difficulty),
		ReviewStep:  p.ReviewStep,
		ReviewCount: p.ReviewCount,
		Status:      string(p.Status),
	}
	if p.Category != nil {
		category := string(*p.Category)
		resp.Category = &category
	}
	if p.NextReviewTs != nil {
		date := p.NextReviewTime(s.loc).Format(clock.DateLayout)
		resp.NextReviewDate = &date
	}
	return resp
}

func (s *APIV1Service) toProblemResponses(problems []*store.Problem) []*problemResponse {
	list := make([]*problemResponse, 0, len(problems))
	for _, p := range problems {
		list = append(list, s.toProblemResponse(p))
	}
	return list
}

func (s *APIV1Service) handleCreateProblem(c echo.Context) error {
	var req createProblemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	create := &review.CreateProblemRequest{
		Number:     req.Number,
		Name:       req.Name,
		Difficulty: store.Difficulty(req.Difficulty),
	}
	if req.Category != nil {
		category := store.Category(*req.Category)
		create.Category = &category
	}

	caller := s.resolve(c)
	problem, err := caller.engine.Create(c.Request().Context(), caller.ownerID, create)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusCreated, s.toProblemResponse(problem))
}

func (s *APIV1Service) handleSolve(c echo.Context) error {
	return s.handleAction(c, review.Engine.Solve)
}

func (s *APIV1Service) handleFail(c echo.Context) error {
	return s.handleAction(c, review.Engine.Fail)
}

func (s *APIV1Service) handleGraduate(c echo.Context) error {
	return s.handleAction(c, review.Engine.Graduate)
}

func (s *APIV1Service) handleAction(c echo.Context,
	action func(review.Engine, context.Context, int32, string) (*store.Problem, error),
) error {
	var req problemActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body")
	}

	caller := s.resolve(c)
	problem, err := action(caller.engine, c.Request().Context(), caller.ownerID, req.Name)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, s.toProblemResponse(problem))
}

func (s *APIV1Service) handleDeleteProblem(c echo.Context) error {
	del := &review.DeleteProblemRequest{Name: c.QueryParam("name")}
	if raw := c.QueryParam("number"); raw != "" {
		number, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "number must be an integer")
		}
		del.Number = &number
	}

	caller := s.resolve(c)
	if err := caller.engine.Delete(c.Request().Context(), caller.ownerID, del); err != nil {
		return errorResponse(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) handleSearchProblems(c echo.Context) error {
	find := &review.SearchProblemRequest{}
	if name := c.QueryParam("name"); name != "" {
		find.Name = &name
	}
	if raw := c.QueryParam("number"); raw != "" {
		number, err := strconv.Atoi(raw)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "number must be an integer")
		}
		find.Number = &number
	}
	if raw := c.QueryParam("status"); raw != "" {
		status := store.Status(raw)
		if status != store.Active && status != store.Graduated {
			return echo.NewHTTPError(http.StatusBadRequest, "unknown status")
		}
		find.Status = &status
	}

	caller := s.resolve(c)
	problems, err := caller.engine.Search(c.Request().Context(), caller.ownerID, find)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, s.toProblemResponses(problems))
}

func (s *APIV1Service) handleListActive(c echo.Context) error {
	caller := s.resolve(c)
	problems, err := caller.engine.ListActive(c.Request().Context(), caller.ownerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, s.toProblemResponses(problems))
}

func (s *APIV1Service) handleListToday(c echo.Context) error {
	caller := s.resolve(c)
	problems, err := caller.engine.ListToday(c.Request().Context(), caller.ownerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, s.toProblemResponses(problems))
}

func (s *APIV1Service) handleDashboardSummary(c echo.Context) error {
	caller := s.resolve(c)
	if caller.session != nil {
		return c.JSON(http.StatusOK, s.Dashboard.SessionSummary(caller.session.Snapshot()))
	}
	summary, err := s.Dashboard.Summary(c.Request().Context(), caller.ownerID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}
