package planner

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/gideon/internal/history"
	"github.com/2beens/gideon/internal/telemetry/tracing"
)

// Recorder asks the generator for a plan and keeps every generated plan in the history.
type Recorder struct {
	generator   Generator
	collections *history.Collections
	now         func() time.Time
	newID       func() string
}

func NewRecorder(generator Generator, collections *history.Collections, now func() time.Time) *Recorder {
	if now == nil {
		now = time.Now
	}
	return &Recorder{
		generator:   generator,
		collections: collections,
		now:         now,
		newID:       uuid.NewString,
	}
}

func (r *Recorder) RecordWorkout(ctx context.Context, req WorkoutRequest) (_ *history.WorkoutRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "planner.record_workout")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := r.generator.WorkoutPlan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate workout plan: %w", err)
	}

	record := history.WorkoutRecord{
		ID:    r.newID(),
		Date:  r.now(),
		Goal:  req.Goal,
		Level: req.Level,
		Days:  req.Days,
		Plan:  plan,
	}
	if err := r.collections.Workouts.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("record workout plan: %w", err)
	}

	log.Debugf("planner: workout plan %s recorded [%s/%s/%d]", record.ID, req.Goal, req.Level, req.Days)
	return &record, nil
}

func (r *Recorder) RecordNutrition(ctx context.Context, req NutritionRequest) (_ *history.NutritionRecord, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "planner.record_nutrition")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	plan, err := r.generator.NutritionPlan(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate nutrition plan: %w", err)
	}

	record := history.NutritionRecord{
		ID:       r.newID(),
		Date:     r.now(),
		Diet:     req.Diet,
		Calories: req.Calories,
		Plan:     plan,
	}
	if err := r.collections.Nutrition.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("record nutrition plan: %w", err)
	}

	log.Debugf("planner: nutrition plan %s recorded [%s/%d]", record.ID, req.Diet, req.Calories)
	return &record, nil
}

// DuplicateWorkout returns the parameters a stored workout plan was generated with,
// so the same plan can be requested again.
func (r *Recorder) DuplicateWorkout(ctx context.Context, id string) (WorkoutRequest, error) {
	record, err := r.collections.Workouts.FindByID(ctx, id)
	if err != nil {
		return WorkoutRequest{}, err
	}
	return WorkoutRequest{
		Goal:  record.Goal,
		Level: record.Level,
		Days:  record.Days,
	}, nil
}

func (r *Recorder) DuplicateNutrition(ctx context.Context, id string) (NutritionRequest, error) {
	record, err := r.collections.Nutrition.FindByID(ctx, id)
	if err != nil {
		return NutritionRequest{}, err
	}
	return NutritionRequest{
		Diet:     record.Diet,
		Calories: record.Calories,
	}, nil
}
