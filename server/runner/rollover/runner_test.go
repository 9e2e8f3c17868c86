package rollover

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codedrill/codedrill/internal/clock"
	"github.com/codedrill/codedrill/store"
)

const day = 24 * time.Hour

type mockStorage struct {
	problems map[int32]*store.Problem

	failIDs map[int32]bool
	updates int
}

func newMockStorage() *mockStorage {
	return &mockStorage{problems: map[int32]*store.Problem{}, failIDs: map[int32]bool{}}
}

func (m *mockStorage) add(id int32, due time.Time, status store.Status) *store.Problem {
	ts := due.Unix()
	p := &store.Problem{ID: id, Status: status, ReviewStep: 1, ReviewCount: 1, NextReviewTs: &ts, Version: 1}
	if status == store.Graduated {
		p.NextReviewTs = nil
		p.ReviewStep = 0
		p.ReviewCount = 0
	}
	m.problems[id] = p
	return p
}

func (m *mockStorage) ListProblems(_ context.Context, find *store.FindProblem) ([]*store.Problem, error) {
	var list []*store.Problem
	for _, p := range m.problems {
		if find.Status != nil && p.Status != *find.Status {
			continue
		}
		if find.NextReviewBefore != nil && (p.NextReviewTs == nil || *p.NextReviewTs >= *find.NextReviewBefore) {
			continue
		}
		clone := *p
		list = append(list, &clone)
	}
	return list, nil
}

func (m *mockStorage) UpdateProblem(_ context.Context, update *store.UpdateProblem) (*store.Problem, error) {
	if m.failIDs[update.ID] {
		return nil, store.ErrStaleVersion
	}
	p, ok := m.problems[update.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Version != update.Version {
		return nil, store.ErrStaleVersion
	}
	if update.NextReviewTs != nil {
		ts := *update.NextReviewTs
		p.NextReviewTs = &ts
	}
	p.Version++
	m.updates++
	clone := *p
	return &clone, nil
}

func due(t *testing.T, m *mockStorage, id int32) int64 {
	t.Helper()
	p := m.problems[id]
	require.NotNil(t, p.NextReviewTs)
	return *p.NextReviewTs
}

func TestSweepAdvancesByMissedUnits(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 5, 0, 0, time.UTC)
	mock := newMockStorage()
	mock.add(1, now.Add(-3*day-2*time.Hour), store.Active)

	runner := NewRunner(mock, clock.NewFixed(now), day, 5)
	runner.RunOnce(context.Background())

	p := mock.problems[1]
	// 3 whole days missed; the 2 hour remainder stays.
	assert.Equal(t, now.Add(-2*time.Hour).Unix(), due(t, mock, 1))
	assert.Equal(t, 1, p.ReviewStep, "step untouched")
	assert.Equal(t, 1, p.ReviewCount, "count untouched")
	assert.Equal(t, store.Active, p.Status)
}

func TestSweepSkipsRecentAndInactive(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 5, 0, 0, time.UTC)
	mock := newMockStorage()
	mock.add(1, now.Add(-2*time.Hour), store.Active) // overdue less than a unit
	mock.add(2, now.Add(day), store.Active)          // not yet due
	mock.add(3, now.Add(-day), store.Graduated)      // no due date at all

	runner := NewRunner(mock, clock.NewFixed(now), day, 5)
	runner.RunOnce(context.Background())

	assert.Zero(t, mock.updates)
	assert.Equal(t, now.Add(-2*time.Hour).Unix(), due(t, mock, 1))
}

func TestSweepConverges(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 5, 0, 0, time.UTC)
	mock := newMockStorage()
	mock.add(1, now.Add(-5*day), store.Active)

	runner := NewRunner(mock, clock.NewFixed(now), day, 5)
	runner.RunOnce(context.Background())
	first := due(t, mock, 1)
	firstUpdates := mock.updates

	runner.RunOnce(context.Background())
	assert.Equal(t, first, due(t, mock, 1), "second run changes nothing")
	assert.Equal(t, firstUpdates, mock.updates)
}

func TestSweepSkipsFailingRow(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 5, 0, 0, time.UTC)
	mock := newMockStorage()
	mock.add(1, now.Add(-2*day), store.Active)
	mock.add(2, now.Add(-2*day), store.Active)
	mock.failIDs[1] = true

	runner := NewRunner(mock, clock.NewFixed(now), day, 5)
	runner.RunOnce(context.Background())

	// The failing row is skipped, the healthy one still advances.
	assert.Equal(t, now.Add(-2*day).Unix(), due(t, mock, 1))
	assert.Equal(t, now.Unix(), due(t, mock, 2))
}

func TestNextRunAt(t *testing.T) {
	loc := time.UTC

	beforeFire := time.Date(2024, 5, 10, 0, 1, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 5, 0, 0, loc), nextRunAt(beforeFire, 5))

	afterFire := time.Date(2024, 5, 10, 12, 0, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 5, 11, 0, 5, 0, 0, loc), nextRunAt(afterFire, 5))

	atFire := time.Date(2024, 5, 10, 0, 5, 0, 0, loc)
	assert.Equal(t, time.Date(2024, 5, 11, 0, 5, 0, 0, loc), nextRunAt(atFire, 5))
}
