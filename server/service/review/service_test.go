package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedrill/codedrill/internal/clock"
	errs "github.com/codedrill/codedrill/server/internal/errors"
	"github.com/codedrill/codedrill/store"
)

// mockStorage is an in-memory Storage that mirrors the driver contract:
// unique (creator, name) and (problem, date, action), version-guarded
// updates, cascading log deletes.
type mockStorage struct {
	problems  map[int32]*store.Problem
	logs      []*store.ReviewLog
	nextID    int32
	nextLogID int32

	// applyErr, when set, is returned by the next ApplyReview call.
	applyErr error
}

func newMockStorage() *mockStorage {
	return &mockStorage{problems: map[int32]*store.Problem{}, nextID: 1, nextLogID: 1}
}

func (m *mockStorage) CreateProblem(_ context.Context, create *store.Problem) (*store.Problem, error) {
	for _, p := range m.problems {
		if p.CreatorID == create.CreatorID && p.Name == create.Name {
			return nil, store.ErrUniqueViolation
		}
	}
	create.ID = m.nextID
	m.nextID++
	create.Version = 1
	stored := *create
	m.problems[stored.ID] = &stored
	return create, nil
}

func (m *mockStorage) ListProblems(_ context.Context, find *store.FindProblem) ([]*store.Problem, error) {
	var list []*store.Problem
	for _, p := range m.problems {
		if find.ID != nil && p.ID != *find.ID {
			continue
		}
		if find.CreatorID != nil && p.CreatorID != *find.CreatorID {
			continue
		}
		if find.Name != nil && p.Name != *find.Name {
			continue
		}
		if find.Number != nil && (p.Number == nil || *p.Number != *find.Number) {
			continue
		}
		if find.Status != nil && p.Status != *find.Status {
			continue
		}
		if find.NextReviewBefore != nil && (p.NextReviewTs == nil || *p.NextReviewTs >= *find.NextReviewBefore) {
			continue
		}
		if find.NextReviewNotAfter != nil && (p.NextReviewTs == nil || *p.NextReviewTs > *find.NextReviewNotAfter) {
			continue
		}
		clone := *p
		list = append(list, &clone)
	}
	return list, nil
}

func (m *mockStorage) GetProblem(ctx context.Context, find *store.FindProblem) (*store.Problem, error) {
	list, err := m.ListProblems(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (m *mockStorage) DeleteProblem(_ context.Context, del *store.DeleteProblem) error {
	if _, ok := m.problems[del.ID]; !ok {
		return store.ErrNotFound
	}
	kept := m.logs[:0]
	for _, l := range m.logs {
		if l.ProblemID != del.ID {
			kept = append(kept, l)
		}
	}
	m.logs = kept
	delete(m.problems, del.ID)
	return nil
}

func (m *mockStorage) ListReviewLogs(_ context.Context, find *store.FindReviewLog) ([]*store.ReviewLog, error) {
	var list []*store.ReviewLog
	for _, l := range m.logs {
		if find.ProblemID != nil && l.ProblemID != *find.ProblemID {
			continue
		}
		if find.Action != nil && l.Action != *find.Action {
			continue
		}
		if find.ActionDate != nil && l.ActionDate != *find.ActionDate {
			continue
		}
		clone := *l
		list = append(list, &clone)
	}
	return list, nil
}

func (m *mockStorage) ApplyReview(_ context.Context, update *store.UpdateProblem, log *store.ReviewLog) (*store.Problem, error) {
	if m.applyErr != nil {
		err := m.applyErr
		m.applyErr = nil
		return nil, err
	}

	p, ok := m.problems[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Version != update.Version {
		return nil, store.ErrStaleVersion
	}
	for _, l := range m.logs {
		if l.ProblemID == log.ProblemID && l.ActionDate == log.ActionDate && l.Action == log.Action {
			return nil, store.ErrUniqueViolation
		}
	}

	if update.ReviewStep != nil {
		p.ReviewStep = *update.ReviewStep
	}
	if update.ReviewCount != nil {
		p.ReviewCount = *update.ReviewCount
	}
	if update.ClearNextReview {
		p.NextReviewTs = nil
	} else if update.NextReviewTs != nil {
		ts := *update.NextReviewTs
		p.NextReviewTs = &ts
	}
	if update.Status != nil {
		p.Status = *update.Status
	}
	if update.UpdatedTs != nil {
		p.UpdatedTs = *update.UpdatedTs
	}
	p.Version++

	stored := *log
	stored.ID = m.nextLogID
	m.nextLogID++
	m.logs = append(m.logs, &stored)

	clone := *p
	return &clone, nil
}

var baseTime = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func newTestService(policy Policy) (*Service, *mockStorage, *clock.Fixed) {
	mock := newMockStorage()
	fixed := clock.NewFixed(baseTime)
	return NewService(mock, policy, fixed), mock, fixed
}

func mustCreate(t *testing.T, svc *Service, owner int32, name string, difficulty store.Difficulty) *store.Problem {
	t.Helper()
	p, err := svc.Create(context.Background(), owner, &CreateProblemRequest{Name: name, Difficulty: difficulty})
	require.NoError(t, err)
	return p
}

func dueIn(t *testing.T, p *store.Problem, from time.Time, days int) {
	t.Helper()
	require.NotNil(t, p.NextReviewTs)
	assert.Equal(t, from.Add(time.Duration(days)*24*time.Hour).Unix(), *p.NextReviewTs)
}

func TestServiceCreate(t *testing.T) {
	svc, _, _ := newTestService(NewDifficultyPolicy())

	p := mustCreate(t, svc, 1, "two-sum", store.DifficultyHigh)
	assert.Equal(t, store.Active, p.Status)
	assert.Equal(t, 1, p.ReviewStep)
	assert.Equal(t, 0, p.ReviewCount)
	assert.NotEmpty(t, p.UID)
	dueIn(t, p, baseTime, 1)
}

func TestServiceCreateValidation(t *testing.T) {
	svc, _, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, &CreateProblemRequest{Name: "  ", Difficulty: store.DifficultyHigh})
	assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidArgument))

	_, err = svc.Create(ctx, 1, &CreateProblemRequest{Name: "x", Difficulty: "EXTREME"})
	assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidArgument))

	bogus := store.Category("BOGUS")
	_, err = svc.Create(ctx, 1, &CreateProblemRequest{Name: "x", Difficulty: store.DifficultyLow, Category: &bogus})
	assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidArgument))
}

func TestServiceCreateDuplicateName(t *testing.T) {
	svc, _, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "two-sum", store.DifficultyHigh)

	_, err := svc.Create(ctx, 1, &CreateProblemRequest{Name: "two-sum", Difficulty: store.DifficultyLow})
	assert.True(t, errs.IsCode(err, errs.ErrCodeConflict))

	// Same name under another owner is fine.
	_, err = svc.Create(ctx, 2, &CreateProblemRequest{Name: "two-sum", Difficulty: store.DifficultyLow})
	assert.NoError(t, err)
}

func TestServiceHighDifficultyWalkthrough(t *testing.T) {
	svc, mock, fixed := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	p := mustCreate(t, svc, 1, "lru-cache", store.DifficultyHigh)
	dueIn(t, p, baseTime, 1)

	fixed.Advance(24 * time.Hour)
	p, err := svc.Solve(ctx, 1, "lru-cache")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ReviewStep)
	assert.Equal(t, 1, p.ReviewCount)
	dueIn(t, p, fixed.Now(), 3)

	fixed.Advance(3 * 24 * time.Hour)
	p, err = svc.Solve(ctx, 1, "lru-cache")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ReviewStep)
	assert.Equal(t, 2, p.ReviewCount)
	dueIn(t, p, fixed.Now(), 7)

	fixed.Advance(7 * 24 * time.Hour)
	p, err = svc.Solve(ctx, 1, "lru-cache")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ReviewStep)
	assert.Equal(t, 3, p.ReviewCount)
	dueIn(t, p, fixed.Now(), 21)

	fixed.Advance(21 * 24 * time.Hour)
	p, err = svc.Solve(ctx, 1, "lru-cache")
	require.NoError(t, err)
	assert.Equal(t, store.Graduated, p.Status)
	assert.Equal(t, 0, p.ReviewStep)
	assert.Equal(t, 0, p.ReviewCount)
	assert.Nil(t, p.NextReviewTs)

	assert.Len(t, mock.logs, 4)
	last := mock.logs[3]
	assert.Equal(t, store.ActionSolve, last.Action)
	assert.Equal(t, 2, last.BeforeStep)
	assert.Equal(t, 3, last.BeforeReviewCount)
	assert.Equal(t, 0, last.AfterStep)
	assert.Equal(t, 0, last.AfterReviewCount)
}

func TestServiceMediumFailAtTableEndKeepsSchedule(t *testing.T) {
	svc, _, fixed := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "m1", store.DifficultyMedium)

	fixed.Advance(24 * time.Hour)
	p, err := svc.Solve(ctx, 1, "m1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ReviewCount)
	dueIn(t, p, fixed.Now(), 7)

	fixed.Advance(24 * time.Hour)
	p, err = svc.Solve(ctx, 1, "m1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ReviewCount)
	dueIn(t, p, fixed.Now(), 21)

	// A failure at the end of the table keeps the same step, count, and
	// wait instead of overflowing.
	p, err = svc.Fail(ctx, 1, "m1")
	require.NoError(t, err)
	assert.Equal(t, store.Active, p.Status)
	assert.Equal(t, 2, p.ReviewStep)
	assert.Equal(t, 2, p.ReviewCount)
	dueIn(t, p, fixed.Now(), 21)
}

func TestServiceStepPolicyFailureOverflow(t *testing.T) {
	svc, _, fixed := newTestService(NewStepPolicy(map[int][]int{1: {1, 3, 7}, 2: {3}, 3: {7}}))
	ctx := context.Background()

	mustCreate(t, svc, 1, "p", store.DifficultyHigh)

	p, err := svc.Fail(ctx, 1, "p")
	require.NoError(t, err)
	assert.Equal(t, 1, p.ReviewCount)
	dueIn(t, p, fixed.Now(), 3)

	fixed.Advance(24 * time.Hour)
	p, err = svc.Fail(ctx, 1, "p")
	require.NoError(t, err)
	assert.Equal(t, 2, p.ReviewCount)
	dueIn(t, p, fixed.Now(), 7)

	// Past the list: twice the last interval, count capped at the length.
	fixed.Advance(24 * time.Hour)
	p, err = svc.Fail(ctx, 1, "p")
	require.NoError(t, err)
	assert.Equal(t, 3, p.ReviewCount)
	dueIn(t, p, fixed.Now(), 14)

	// Further failures stay at the cap, no compounding.
	fixed.Advance(24 * time.Hour)
	p, err = svc.Fail(ctx, 1, "p")
	require.NoError(t, err)
	assert.Equal(t, 3, p.ReviewCount)
	assert.Equal(t, 1, p.ReviewStep)
	dueIn(t, p, fixed.Now(), 14)
}

func TestServiceFailNeverGraduates(t *testing.T) {
	svc, _, fixed := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "stubborn", store.DifficultyLow)
	for i := 0; i < 10; i++ {
		p, err := svc.Fail(ctx, 1, "stubborn")
		require.NoError(t, err)
		assert.Equal(t, store.Active, p.Status)
		fixed.Advance(24 * time.Hour)
	}
}

func TestServiceSameDayExclusivity(t *testing.T) {
	svc, _, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "p", store.DifficultyHigh)

	_, err := svc.Solve(ctx, 1, "p")
	require.NoError(t, err)

	_, err = svc.Solve(ctx, 1, "p")
	assert.True(t, errs.IsCode(err, errs.ErrCodeConflict))

	// A FAIL on the same day is a different action and passes.
	_, err = svc.Fail(ctx, 1, "p")
	require.NoError(t, err)

	_, err = svc.Fail(ctx, 1, "p")
	assert.True(t, errs.IsCode(err, errs.ErrCodeConflict))
}

func TestServiceSameDayGuardHoldsUnderRace(t *testing.T) {
	svc, mock, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "p", store.DifficultyHigh)

	// Simulate a racing writer that slipped past the pre-check: the
	// storage unique index still rejects the second row.
	mock.applyErr = store.ErrUniqueViolation
	_, err := svc.Solve(ctx, 1, "p")
	assert.True(t, errs.IsCode(err, errs.ErrCodeConflict))
	assert.Empty(t, mock.logs)
}

func TestServiceStaleVersionIsRetryableConflict(t *testing.T) {
	svc, mock, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "p", store.DifficultyHigh)

	mock.applyErr = store.ErrStaleVersion
	_, err := svc.Solve(ctx, 1, "p")
	require.True(t, errs.IsCode(err, errs.ErrCodeConflict))
	var se *errs.StatusError
	require.ErrorAs(t, err, &se)
	assert.True(t, se.Retryable)
}

func TestServiceGraduateIdempotent(t *testing.T) {
	svc, mock, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "p", store.DifficultyMedium)

	p, err := svc.Graduate(ctx, 1, "p")
	require.NoError(t, err)
	assert.Equal(t, store.Graduated, p.Status)
	assert.Equal(t, 0, p.ReviewStep)
	assert.Equal(t, 0, p.ReviewCount)
	assert.Nil(t, p.NextReviewTs)
	assert.Len(t, mock.logs, 1)
	assert.Equal(t, store.ActionSolve, mock.logs[0].Action)

	again, err := svc.Graduate(ctx, 1, "p")
	require.NoError(t, err)
	assert.Equal(t, store.Graduated, again.Status)
	assert.Len(t, mock.logs, 1, "no second log row")
}

func TestServiceSolveReactivatesGraduated(t *testing.T) {
	svc, _, fixed := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "p", store.DifficultyLow)
	_, err := svc.Graduate(ctx, 1, "p")
	require.NoError(t, err)

	fixed.Advance(24 * time.Hour)
	p, err := svc.Solve(ctx, 1, "p")
	require.NoError(t, err)
	assert.Equal(t, store.Active, p.Status)
	assert.NotNil(t, p.NextReviewTs)
}

func TestServiceNotFound(t *testing.T) {
	svc, _, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	_, err := svc.Solve(ctx, 1, "ghost")
	assert.True(t, errs.IsCode(err, errs.ErrCodeNotFound))

	_, err = svc.Fail(ctx, 1, "ghost")
	assert.True(t, errs.IsCode(err, errs.ErrCodeNotFound))

	_, err = svc.Graduate(ctx, 1, "ghost")
	assert.True(t, errs.IsCode(err, errs.ErrCodeNotFound))

	err = svc.Delete(ctx, 1, &DeleteProblemRequest{Name: "ghost"})
	assert.True(t, errs.IsCode(err, errs.ErrCodeNotFound))
}

func TestServiceOwnerScoping(t *testing.T) {
	svc, _, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "mine", store.DifficultyHigh)

	_, err := svc.Solve(ctx, 2, "mine")
	assert.True(t, errs.IsCode(err, errs.ErrCodeNotFound))
}

func TestServiceDelete(t *testing.T) {
	svc, mock, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	n1, n2 := 42, 42
	_, err := svc.Create(ctx, 1, &CreateProblemRequest{Name: "a", Number: &n1, Difficulty: store.DifficultyHigh})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, &CreateProblemRequest{Name: "b", Number: &n2, Difficulty: store.DifficultyHigh})
	require.NoError(t, err)

	// Ambiguous number requires deletion by name.
	err = svc.Delete(ctx, 1, &DeleteProblemRequest{Number: &n1})
	assert.True(t, errs.IsCode(err, errs.ErrCodeConflict))

	err = svc.Delete(ctx, 1, &DeleteProblemRequest{Name: "a"})
	require.NoError(t, err)

	err = svc.Delete(ctx, 1, &DeleteProblemRequest{Number: &n2})
	require.NoError(t, err)
	assert.Empty(t, mock.problems)

	err = svc.Delete(ctx, 1, &DeleteProblemRequest{})
	assert.True(t, errs.IsCode(err, errs.ErrCodeInvalidArgument))
}

func TestServiceDeleteCascadesLogs(t *testing.T) {
	svc, mock, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "p", store.DifficultyHigh)
	_, err := svc.Solve(ctx, 1, "p")
	require.NoError(t, err)
	require.Len(t, mock.logs, 1)

	require.NoError(t, svc.Delete(ctx, 1, &DeleteProblemRequest{Name: "p"}))
	assert.Empty(t, mock.logs)
}

func TestServiceListToday(t *testing.T) {
	svc, _, fixed := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "due-tomorrow", store.DifficultyHigh)   // +1d
	mustCreate(t, svc, 1, "due-in-three", store.DifficultyMedium) // +3d
	_, err := svc.Graduate(ctx, 1, "due-in-three")
	require.NoError(t, err)

	today, err := svc.ListToday(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, today, "nothing due yet")

	fixed.Advance(24 * time.Hour)
	today, err = svc.ListToday(ctx, 1)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "due-tomorrow", today[0].Name)

	// Overdue items stay listed until acted on.
	fixed.Advance(5 * 24 * time.Hour)
	today, err = svc.ListToday(ctx, 1)
	require.NoError(t, err)
	require.Len(t, today, 1)
	assert.Equal(t, "due-tomorrow", today[0].Name)
}

func TestServiceSearch(t *testing.T) {
	svc, _, _ := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	n := 7
	_, err := svc.Create(ctx, 1, &CreateProblemRequest{Name: "a", Number: &n, Difficulty: store.DifficultyHigh})
	require.NoError(t, err)
	mustCreate(t, svc, 1, "b", store.DifficultyLow)
	_, err = svc.Graduate(ctx, 1, "b")
	require.NoError(t, err)

	byNumber, err := svc.Search(ctx, 1, &SearchProblemRequest{Number: &n})
	require.NoError(t, err)
	require.Len(t, byNumber, 1)
	assert.Equal(t, "a", byNumber[0].Name)

	graduated := store.Graduated
	byStatus, err := svc.Search(ctx, 1, &SearchProblemRequest{Status: &graduated})
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "b", byStatus[0].Name)
}

func TestServiceGraduationInvariant(t *testing.T) {
	svc, mock, fixed := newTestService(NewDifficultyPolicy())
	ctx := context.Background()

	mustCreate(t, svc, 1, "low", store.DifficultyLow)
	fixed.Advance(24 * time.Hour)
	_, err := svc.Solve(ctx, 1, "low")
	require.NoError(t, err)
	fixed.Advance(24 * time.Hour)
	_, err = svc.Solve(ctx, 1, "low")
	require.NoError(t, err)

	mustCreate(t, svc, 1, "active", store.DifficultyHigh)

	for _, p := range mock.problems {
		graduated := p.Status == store.Graduated
		terminal := p.NextReviewTs == nil && p.ReviewStep == 0 && p.ReviewCount == 0
		assert.Equal(t, graduated, terminal, p.Name)
	}
}
