package review

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/codedrill/codedrill/internal/clock"
	errs "github.com/codedrill/codedrill/server/internal/errors"
	"github.com/codedrill/codedrill/store"
)

// Storage is the slice of the store the durable engine depends on.
// *store.Store satisfies it; tests swap in a mock.
type Storage interface {
	CreateProblem(ctx context.Context, create *store.Problem) (*store.Problem, error)
	GetProblem(ctx context.Context, find *store.FindProblem) (*store.Problem, error)
	ListProblems(ctx context.Context, find *store.FindProblem) ([]*store.Problem, error)
	DeleteProblem(ctx context.Context, delete *store.DeleteProblem) error
	ListReviewLogs(ctx context.Context, find *store.FindReviewLog) ([]*store.ReviewLog, error)
	ApplyReview(ctx context.Context, update *store.UpdateProblem, log *store.ReviewLog) (*store.Problem, error)
}

var _ Engine = (*Service)(nil)

// Service is the durable review engine. It is stateless between calls; all
// state lives in the store, and every transition is a single guarded write
// so concurrent callers fall on the version token, not on each other.
type Service struct {
	store  Storage
	policy Policy
	clock  clock.Clock
}

// NewService creates the durable engine over the given store and policy.
func NewService(storage Storage, policy Policy, c clock.Clock) *Service {
	return &Service{store: storage, policy: policy, clock: c}
}

func (s *Service) Create(ctx context.Context, ownerID int32, create *CreateProblemRequest) (*store.Problem, error) {
	name := strings.TrimSpace(create.Name)
	if name == "" {
		return nil, errs.InvalidArgument("problem name must not be blank")
	}
	if !create.Difficulty.IsValid() {
		return nil, errs.InvalidArgument("unknown difficulty: " + string(create.Difficulty))
	}
	if create.Category != nil && !create.Category.IsValid() {
		return nil, errs.InvalidArgument("unknown category: " + string(*create.Category))
	}

	existing, err := s.store.GetProblem(ctx, &store.FindProblem{CreatorID: &ownerID, Name: &name})
	if err != nil {
		return nil, errs.Internal("failed to check problem name", err)
	}
	if existing != nil {
		return nil, errs.Conflict("problem already exists: " + name)
	}

	now := s.clock.Now()
	problem := &store.Problem{
		UID:         shortuuid.New(),
		CreatorID:   ownerID,
		Number:      create.Number,
		Name:        name,
		Category:    create.Category,
		Difficulty:  create.Difficulty,
		ReviewStep:  1,
		ReviewCount: 0,
		Status:      store.Active,
	}
	if ts, graduated := scheduleForward(s.policy, 1, 0, create.Difficulty, now); graduated {
		// An empty interval list means nothing to schedule.
		problem.ReviewStep = 0
		problem.Status = store.Graduated
	} else {
		problem.NextReviewTs = &ts
	}

	created, err := s.store.CreateProblem(ctx, problem)
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return nil, errs.Conflict("problem already exists: " + name)
		}
		return nil, errs.Internal("failed to create problem", err)
	}
	slog.Debug("problem created", "owner", ownerID, "name", name, "difficulty", create.Difficulty)
	return created, nil
}

func (s *Service) Solve(ctx context.Context, ownerID int32, name string) (*store.Problem, error) {
	problem, err := s.getByName(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()
	if err := s.ensureNoSameDayAction(ctx, problem.ID, store.ActionSolve, today); err != nil {
		return nil, err
	}

	newStep, newCount, graduated := s.policy.NextOnSolve(problem.ReviewStep, problem.ReviewCount, problem.Difficulty)
	var nextTs *int64
	if !graduated {
		ts, exhausted := scheduleForward(s.policy, newStep, newCount, problem.Difficulty, s.clock.Now())
		if exhausted {
			graduated = true
		} else {
			nextTs = &ts
		}
	}
	if graduated {
		newStep, newCount = 0, 0
	}

	updated, err := s.applyTransition(ctx, problem, store.ActionSolve, today, newStep, newCount, nextTs, graduated)
	if err != nil {
		return nil, err
	}
	slog.Debug("problem solved", "owner", ownerID, "name", name,
		"step", updated.ReviewStep, "count", updated.ReviewCount, "status", updated.Status)
	return updated, nil
}

func (s *Service) Fail(ctx context.Context, ownerID int32, name string) (*store.Problem, error) {
	problem, err := s.getByName(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}

	today := s.clock.Today()
	if err := s.ensureNoSameDayAction(ctx, problem.ID, store.ActionFail, today); err != nil {
		return nil, err
	}

	newStep, newCount := s.policy.NextOnFail(problem.ReviewStep, problem.ReviewCount, problem.Difficulty)
	ts, cappedCount := scheduleOnFailure(s.policy, newStep, newCount, problem.Difficulty, s.clock.Now())

	updated, err := s.applyTransition(ctx, problem, store.ActionFail, today, newStep, cappedCount, &ts, false)
	if err != nil {
		return nil, err
	}
	slog.Debug("problem failed", "owner", ownerID, "name", name,
		"step", updated.ReviewStep, "count", updated.ReviewCount)
	return updated, nil
}

func (s *Service) Graduate(ctx context.Context, ownerID int32, name string) (*store.Problem, error) {
	problem, err := s.getByName(ctx, ownerID, name)
	if err != nil {
		return nil, err
	}
	if problem.Status == store.Graduated {
		return problem, nil
	}

	updated, err := s.applyTransition(ctx, problem, store.ActionSolve, s.clock.Today(), 0, 0, nil, true)
	if err != nil {
		return nil, err
	}
	slog.Debug("problem graduated", "owner", ownerID, "name", name)
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, ownerID int32, delete *DeleteProblemRequest) error {
	name := strings.TrimSpace(delete.Name)

	var problem *store.Problem
	switch {
	case name != "":
		p, err := s.getByName(ctx, ownerID, name)
		if err != nil {
			return err
		}
		problem = p
	case delete.Number != nil:
		matches, err := s.store.ListProblems(ctx, &store.FindProblem{CreatorID: &ownerID, Number: delete.Number})
		if err != nil {
			return errs.Internal("failed to look up problem", err)
		}
		if len(matches) == 0 {
			return errs.NotFound("no problem with that number")
		}
		if len(matches) > 1 {
			return errs.Conflict("number matches multiple problems, delete by name")
		}
		problem = matches[0]
	default:
		return errs.InvalidArgument("name or number is required")
	}

	if err := s.store.DeleteProblem(ctx, &store.DeleteProblem{ID: problem.ID}); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return errs.NotFound("problem not found: " + problem.Name)
		}
		return errs.Internal("failed to delete problem", err)
	}
	slog.Debug("problem deleted", "owner", ownerID, "name", problem.Name)
	return nil
}

func (s *Service) ListToday(ctx context.Context, ownerID int32) ([]*store.Problem, error) {
	now := s.clock.Now()
	tomorrow := startOfNextDay(now).Unix()
	active := store.Active
	list, err := s.store.ListProblems(ctx, &store.FindProblem{
		CreatorID:        &ownerID,
		Status:           &active,
		NextReviewBefore: &tomorrow,
	})
	if err != nil {
		return nil, errs.Internal("failed to list today's reviews", err)
	}
	return list, nil
}

func (s *Service) ListActive(ctx context.Context, ownerID int32) ([]*store.Problem, error) {
	active := store.Active
	list, err := s.store.ListProblems(ctx, &store.FindProblem{CreatorID: &ownerID, Status: &active})
	if err != nil {
		return nil, errs.Internal("failed to list active problems", err)
	}
	return list, nil
}

func (s *Service) Search(ctx context.Context, ownerID int32, find *SearchProblemRequest) ([]*store.Problem, error) {
	list, err := s.store.ListProblems(ctx, &store.FindProblem{
		CreatorID: &ownerID,
		Name:      find.Name,
		Number:    find.Number,
		Status:    find.Status,
	})
	if err != nil {
		return nil, errs.Internal("failed to search problems", err)
	}
	return list, nil
}

func (s *Service) getByName(ctx context.Context, ownerID int32, name string) (*store.Problem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.InvalidArgument("problem name must not be blank")
	}
	problem, err := s.store.GetProblem(ctx, &store.FindProblem{CreatorID: &ownerID, Name: &name})
	if err != nil {
		return nil, errs.Internal("failed to look up problem", err)
	}
	if problem == nil {
		return nil, errs.NotFound("problem not found: " + name)
	}
	return problem, nil
}

// ensureNoSameDayAction gives a friendly conflict before the write. The
// unique index on (problem, action_date, action) remains the authority; a
// racing second writer fails there.
func (s *Service) ensureNoSameDayAction(ctx context.Context, problemID int32, action store.Action, today string) error {
	logs, err := s.store.ListReviewLogs(ctx, &store.FindReviewLog{
		ProblemID:  &problemID,
		Action:     &action,
		ActionDate: &today,
	})
	if err != nil {
		return errs.Internal("failed to check review log", err)
	}
	if len(logs) > 0 {
		return errs.Conflict(string(action) + " already recorded today")
	}
	return nil
}

// applyTransition writes the problem update and its log row atomically.
func (s *Service) applyTransition(ctx context.Context, before *store.Problem, action store.Action,
	today string, newStep, newCount int, nextTs *int64, graduated bool,
) (*store.Problem, error) {
	status := store.Active
	if graduated {
		status = store.Graduated
	}
	updatedTs := s.clock.Now().Unix()
	update := &store.UpdateProblem{
		ID:              before.ID,
		Version:         before.Version,
		ReviewStep:      &newStep,
		ReviewCount:     &newCount,
		NextReviewTs:    nextTs,
		ClearNextReview: graduated,
		Status:          &status,
		UpdatedTs:       &updatedTs,
	}
	log := &store.ReviewLog{
		ProblemID:         before.ID,
		Action:            action,
		ActionDate:        today,
		BeforeStep:        before.ReviewStep,
		BeforeReviewCount: before.ReviewCount,
		AfterStep:         newStep,
		AfterReviewCount:  newCount,
	}

	updated, err := s.store.ApplyReview(ctx, update, log)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrUniqueViolation):
			return nil, errs.Conflict(string(action) + " already recorded today")
		case errors.Is(err, store.ErrStaleVersion):
			return nil, errs.RetryableConflict("problem changed concurrently, retry")
		case errors.Is(err, store.ErrNotFound):
			return nil, errs.NotFound("problem not found: " + before.Name)
		default:
			return nil, errs.Internal("failed to apply review", err)
		}
	}
	return updated, nil
}

// scheduleForward computes the due instant after a success. An empty
// interval list means there is nothing left to schedule.
func scheduleForward(policy Policy, step, count int, difficulty store.Difficulty, base time.Time) (int64, bool) {
	intervals := policy.Intervals(step, difficulty)
	if len(intervals) == 0 {
		return 0, true
	}
	index := count
	if index > len(intervals)-1 {
		index = len(intervals) - 1
	}
	return base.Add(time.Duration(intervals[index]) * policy.Unit()).Unix(), false
}

// scheduleOnFailure computes the due instant after a failure and caps the
// count at the list length. A count past the list reschedules at twice the
// last interval; the cap keeps repeated failures from compounding past
// that.
func scheduleOnFailure(policy Policy, step, count int, difficulty store.Difficulty, base time.Time) (int64, int) {
	intervals := policy.Intervals(step, difficulty)
	if len(intervals) == 0 {
		return base.Add(policy.Unit()).Unix(), count
	}
	if count < len(intervals) {
		return base.Add(time.Duration(intervals[count]) * policy.Unit()).Unix(), count
	}
	last := intervals[len(intervals)-1]
	return base.Add(time.Duration(2*last) * policy.Unit()).Unix(), len(intervals)
}

// startOfNextDay returns midnight of the following day in t's location.
func startOfNextDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location()).AddDate(0, 0, 1)
}
