// Package dashboard aggregates problems and review logs into read-only
// reporting figures. None of this feeds back into scheduling state.
package dashboard

import (
	"context"
	"time"

	"github.com/codedrill/codedrill/internal/clock"
	"github.com/codedrill/codedrill/server/internal/errors"
	"github.com/codedrill/codedrill/store"
)

// dailyWindow is how many days the activity histogram covers.
const dailyWindow = 30

// DayCount is one bucket of the daily activity histogram.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Summary is the dashboard payload.
type Summary struct {
	// Streak is the number of consecutive days with at least one review,
	// counting back from today (or from yesterday when today has none
	// yet, so a streak does not look broken before the day's review).
	Streak int `json:"streak"`
	// Daily covers the last 30 days, oldest first.
	Daily []DayCount `json:"daily"`
	// StepDistribution counts ACTIVE problems per review step.
	StepDistribution map[int]int `json:"stepDistribution"`
	// GraduatedByDifficulty counts graduated problems per difficulty.
	GraduatedByDifficulty map[store.Difficulty]int `json:"graduatedByDifficulty"`
	Graduated             []*store.Problem         `json:"graduated"`
	// Heatmap maps every date with activity to its review count.
	Heatmap map[string]int `json:"heatmap"`

	TotalActive    int `json:"totalActive"`
	TotalGraduated int `json:"totalGraduated"`
}

// Storage is the slice of the store the dashboard reads.
type Storage interface {
	ListProblems(ctx context.Context, find *store.FindProblem) ([]*store.Problem, error)
	ListReviewLogs(ctx context.Context, find *store.FindReviewLog) ([]*store.ReviewLog, error)
}

type Service struct {
	store Storage
	clock clock.Clock
}

func NewService(storage Storage, c clock.Clock) *Service {
	return &Service{store: storage, clock: c}
}

// Summary computes the dashboard for one owner from the durable store.
func (s *Service) Summary(ctx context.Context, ownerID int32) (*Summary, error) {
	problems, err := s.store.ListProblems(ctx, &store.FindProblem{CreatorID: &ownerID})
	if err != nil {
		return nil, errors.Internal("failed to list problems", err)
	}
	logs, err := s.store.ListReviewLogs(ctx, &store.FindReviewLog{CreatorID: &ownerID})
	if err != nil {
		return nil, errors.Internal("failed to list review logs", err)
	}

	summary := summarizeProblems(problems)

	perDay := map[string]int{}
	for _, log := range logs {
		perDay[log.ActionDate]++
	}
	summary.Heatmap = perDay
	summary.Streak = streak(perDay, s.clock.Today())
	summary.Daily = dailyHistogram(perDay, s.clock.Now())
	return summary, nil
}

// SessionSummary computes the dashboard from a session snapshot. Without a
// review log there is no activity history, so streak, daily, and heatmap
// stay empty.
func (s *Service) SessionSummary(problems []*store.Problem) *Summary {
	summary := summarizeProblems(problems)
	summary.Daily = dailyHistogram(nil, s.clock.Now())
	return summary
}

func summarizeProblems(problems []*store.Problem) *Summary {
	summary := &Summary{
		StepDistribution:      map[int]int{},
		GraduatedByDifficulty: map[store.Difficulty]int{},
		Graduated:             []*store.Problem{},
		Heatmap:               map[string]int{},
	}
	for _, p := range problems {
		switch p.Status {
		case store.Active:
			summary.TotalActive++
			summary.StepDistribution[p.ReviewStep]++
		case store.Graduated:
			summary.TotalGraduated++
			summary.GraduatedByDifficulty[p.Difficulty]++
			summary.Graduated = append(summary.Graduated, p)
		}
	}
	return summary
}

func streak(perDay map[string]int, today string) int {
	day, err := time.Parse(clock.DateLayout, today)
	if err != nil {
		return 0
	}
	if perDay[today] == 0 {
		day = day.AddDate(0, 0, -1)
	}
	count := 0
	for perDay[day.Format(clock.DateLayout)] > 0 {
		count++
		day = day.AddDate(0, 0, -1)
	}
	return count
}

func dailyHistogram(perDay map[string]int, now time.Time) []DayCount {
	buckets := make([]DayCount, 0, dailyWindow)
	for i := dailyWindow - 1; i >= 0; i-- {
		date := now.AddDate(0, 0, -i).Format(clock.DateLayout)
		buckets = append(buckets, DayCount{Date: date, Count: perDay[date]})
	}
	return buckets
}
