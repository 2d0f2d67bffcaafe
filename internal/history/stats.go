package history

import (
	"context"
	"fmt"

	"github.com/2beens/gideon/internal/telemetry/tracing"
)

type Stats struct {
	WorkoutCount   int `json:"workoutCount"`
	NutritionCount int `json:"nutritionCount"`
	ProgressCount  int `json:"progressCount"`
	ActiveDays     int `json:"activeDays"`
	GoalsAchieved  int `json:"goalsAchieved"`
	// GoalsAchievedPlaceholder is always set: there is no real goal tracking behind GoalsAchieved.
	GoalsAchievedPlaceholder bool `json:"goalsAchievedPlaceholder"`
}

type GoalsEstimator interface {
	GoalsAchieved(ctx context.Context, workouts []WorkoutRecord, nutrition []NutritionRecord, progress []ProgressRecord) int
}

// NoGoals is the default estimator and always reports zero.
type NoGoals struct{}

func (NoGoals) GoalsAchieved(context.Context, []WorkoutRecord, []NutritionRecord, []ProgressRecord) int {
	return 0
}

type StatsEngine struct {
	collections *Collections
	estimator   GoalsEstimator
}

func NewStatsEngine(collections *Collections, estimator GoalsEstimator) *StatsEngine {
	if estimator == nil {
		estimator = NoGoals{}
	}
	return &StatsEngine{
		collections: collections,
		estimator:   estimator,
	}
}

func (e *StatsEngine) Stats(ctx context.Context) (_ Stats, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "stats.history.compute")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	workouts, err := e.collections.Workouts.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats workouts: %w", err)
	}
	nutrition, err := e.collections.Nutrition.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats nutrition: %w", err)
	}
	progress, err := e.collections.Progress.List(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats progress: %w", err)
	}

	return Stats{
		WorkoutCount:             len(workouts),
		NutritionCount:           len(nutrition),
		ProgressCount:            len(progress),
		ActiveDays:               ActiveDays(workouts, nutrition),
		GoalsAchieved:            e.estimator.GoalsAchieved(ctx, workouts, nutrition, progress),
		GoalsAchievedPlaceholder: true,
	}, nil
}

// ActiveDays counts the distinct UTC calendar days on which a workout or nutrition plan was recorded.
// Progress entries do not count.
func ActiveDays(workouts []WorkoutRecord, nutrition []NutritionRecord) int {
	days := make(map[string]struct{})
	for _, w := range workouts {
		days[w.Date.UTC().Format("2006-01-02")] = struct{}{}
	}
	for _, n := range nutrition {
		days[n.Date.UTC().Format("2006-01-02")] = struct{}{}
	}
	return len(days)
}
