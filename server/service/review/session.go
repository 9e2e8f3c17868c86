package review

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/lithammer/shortuuid/v4"

	"github.com/codedrill/codedrill/internal/clock"
	errs "github.com/codedrill/codedrill/server/internal/errors"
	"github.com/codedrill/codedrill/store"
)

var _ Engine = (*SessionService)(nil)

// SessionService is the anonymous engine: the same transitions as Service
// over an in-memory collection that lives only as long as the caller's
// session. Nothing is persisted, so there is no review log and no same-day
// idempotency ledger. The owner argument is ignored; the collection itself
// is the scope.
type SessionService struct {
	mu     sync.Mutex
	policy Policy
	clock  clock.Clock

	problems []*store.Problem
	nextID   int32
}

// NewSessionService creates an empty session engine.
func NewSessionService(policy Policy, c clock.Clock) *SessionService {
	return &SessionService{policy: policy, clock: c, nextID: 1}
}

func (s *SessionService) Create(_ context.Context, _ int32, create *CreateProblemRequest) (*store.Problem, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findByName(name) != nil {
		return nil, errs.Conflict("problem already exists: " + name)
	}

	now := s.clock.Now()
	problem := &store.Problem{
		ID:          s.nextID,
		UID:         shortuuid.New(),
		CreatedTs:   now.Unix(),
		UpdatedTs:   now.Unix(),
		Number:      create.Number,
		Name:        name,
		Category:    create.Category,
		Difficulty:  create.Difficulty,
		ReviewStep:  1,
		ReviewCount: 0,
		Status:      store.Active,
		Version:     1,
	}
	s.nextID++
	if ts, graduated := scheduleForward(s.policy, 1, 0, create.Difficulty, now); graduated {
		problem.ReviewStep = 0
		problem.Status = store.Graduated
	} else {
		problem.NextReviewTs = &ts
	}

	s.problems = append(s.problems, problem)
	return copyProblem(problem), nil
}

func (s *SessionService) Solve(_ context.Context, _ int32, name string) (*store.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	problem, err := s.mustFind(name)
	if err != nil {
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

	s.transition(problem, newStep, newCount, nextTs, graduated)
	return copyProblem(problem), nil
}

func (s *SessionService) Fail(_ context.Context, _ int32, name string) (*store.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	problem, err := s.mustFind(name)
	if err != nil {
		return nil, err
	}

	newStep, newCount := s.policy.NextOnFail(problem.ReviewStep, problem.ReviewCount, problem.Difficulty)
	ts, cappedCount := scheduleOnFailure(s.policy, newStep, newCount, problem.Difficulty, s.clock.Now())

	s.transition(problem, newStep, cappedCount, &ts, false)
	return copyProblem(problem), nil
}

func (s *SessionService) Graduate(_ context.Context, _ int32, name string) (*store.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	problem, err := s.mustFind(name)
	if err != nil {
		return nil, err
	}
	if problem.Status != store.Graduated {
		s.transition(problem, 0, 0, nil, true)
	}
	return copyProblem(problem), nil
}

func (s *SessionService) Delete(_ context.Context, _ int32, delete *DeleteProblemRequest) error {
	name := strings.TrimSpace(delete.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	var target *store.Problem
	switch {
	case name != "":
		target = s.findByName(name)
		if target == nil {
			return errs.NotFound("problem not found: " + name)
		}
	case delete.Number != nil:
		var matches []*store.Problem
		for _, p := range s.problems {
			if p.Number != nil && *p.Number == *delete.Number {
				matches = append(matches, p)
			}
		}
		if len(matches) == 0 {
			return errs.NotFound("no problem with that number")
		}
		if len(matches) > 1 {
			return errs.Conflict("number matches multiple problems, delete by name")
		}
		target = matches[0]
	default:
		return errs.InvalidArgument("name or number is required")
	}

	kept := s.problems[:0]
	for _, p := range s.problems {
		if p.ID != target.ID {
			kept = append(kept, p)
		}
	}
	s.problems = kept
	return nil
}

func (s *SessionService) ListToday(_ context.Context, _ int32) ([]*store.Problem, error) {
	tomorrow := startOfNextDay(s.clock.Now()).Unix()

	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*store.Problem
	for _, p := range s.problems {
		if p.Status == store.Active && p.NextReviewTs != nil && *p.NextReviewTs < tomorrow {
			list = append(list, copyProblem(p))
		}
	}
	sortByDue(list)
	return list, nil
}

func (s *SessionService) ListActive(_ context.Context, _ int32) ([]*store.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*store.Problem
	for _, p := range s.problems {
		if p.Status == store.Active {
			list = append(list, copyProblem(p))
		}
	}
	sortByDue(list)
	return list, nil
}

func (s *SessionService) Search(_ context.Context, _ int32, find *SearchProblemRequest) ([]*store.Problem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var list []*store.Problem
	for _, p := range s.problems {
		if find.Name != nil && p.Name != *find.Name {
			continue
		}
		if find.Number != nil && (p.Number == nil || *p.Number != *find.Number) {
			continue
		}
		if find.Status != nil && p.Status != *find.Status {
			continue
		}
		list = append(list, copyProblem(p))
	}
	sortByDue(list)
	return list, nil
}

// Snapshot returns a copy of every problem in the session, for read-only
// dashboard aggregation.
func (s *SessionService) Snapshot() []*store.Problem {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*store.Problem, 0, len(s.problems))
	for _, p := range s.problems {
		list = append(list, copyProblem(p))
	}
	return list
}

func (s *SessionService) findByName(name string) *store.Problem {
	for _, p := range s.problems {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *SessionService) mustFind(name string) (*store.Problem, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.InvalidArgument("problem name must not be blank")
	}
	problem := s.findByName(name)
	if problem == nil {
		return nil, errs.NotFound("problem not found: " + name)
	}
	return problem, nil
}

func (s *SessionService) transition(problem *store.Problem, newStep, newCount int, nextTs *int64, graduated bool) {
	problem.ReviewStep = newStep
	problem.ReviewCount = newCount
	problem.NextReviewTs = nextTs
	if graduated {
		problem.Status = store.Graduated
	} else {
		problem.Status = store.Active
	}
	problem.UpdatedTs = s.clock.Now().Unix()
	problem.Version++
}

func copyProblem(p *store.Problem) *store.Problem {
	clone := *p
	if p.Number != nil {
		n := *p.Number
		clone.Number = &n
	}
	if p.Category != nil {
		c := *p.Category
		clone.Category = &c
	}
	if p.NextReviewTs != nil {
		ts := *p.NextReviewTs
		clone.NextReviewTs = &ts
	}
	return &clone
}

func sortByDue(list []*store.Problem) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch {
		case a.NextReviewTs == nil && b.NextReviewTs == nil:
			return a.ID < b.ID
		case a.NextReviewTs == nil:
			return false
		case b.NextReviewTs == nil:
			return true
		case *a.NextReviewTs != *b.NextReviewTs:
			return *a.NextReviewTs < *b.NextReviewTs
		}
		return a.ID < b.ID
	})
}
