package history

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/gideon/internal/telemetry/tracing"
)

const DefaultTimelineLimit = 10

// ErrEmptyHistory signals that no collection holds any record yet.
var ErrEmptyHistory = errors.New("no activity history yet")

type TimelineEntry struct {
	Type        Kind      `json:"type"`
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Record      Record    `json:"record"`
}

// Aggregator merges the three collections into one date ordered activity feed.
type Aggregator struct {
	collections  *Collections
	defaultLimit int
}

func NewAggregator(collections *Collections, defaultLimit int) *Aggregator {
	if defaultLimit <= 0 {
		defaultLimit = DefaultTimelineLimit
	}
	return &Aggregator{
		collections:  collections,
		defaultLimit: defaultLimit,
	}
}

// Timeline returns at most limit entries, newest first. Records sharing a date keep
// the workout, nutrition, progress order. A non-positive limit falls back to the default.
func (a *Aggregator) Timeline(ctx context.Context, limit int) (_ []TimelineEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aggregator.history.timeline")
	span.SetAttributes(attribute.Int("limit", limit))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var entries []TimelineEntry
	for _, kind := range []Kind{KindWorkout, KindNutrition, KindProgress} {
		records, err := a.collections.Get(ctx, kind)
		if err != nil {
			return nil, fmt.Errorf("timeline %s: %w", kind, err)
		}
		entries = appendEntries(entries, records)
	}

	return a.finish(entries, limit)
}

// TimelineByType is Timeline restricted to a single kind.
func (a *Aggregator) TimelineByType(ctx context.Context, kind Kind, limit int) (_ []TimelineEntry, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "aggregator.history.timeline_by_type")
	span.SetAttributes(
		attribute.String("kind", string(kind)),
		attribute.Int("limit", limit),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	records, err := a.collections.Get(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("timeline %s: %w", kind, err)
	}

	return a.finish(appendEntries(nil, records), limit)
}

func (a *Aggregator) finish(entries []TimelineEntry, limit int) ([]TimelineEntry, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyHistory
	}
	if limit <= 0 {
		limit = a.defaultLimit
	}

	slices.SortStableFunc(entries, func(x, y TimelineEntry) int {
		return y.Date.Compare(x.Date)
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func appendEntries(entries []TimelineEntry, records []Record) []TimelineEntry {
	for _, r := range records {
		entries = append(entries, NewTimelineEntry(r))
	}
	return entries
}

// NewTimelineEntry renders the display title and description of a record.
func NewTimelineEntry(r Record) TimelineEntry {
	entry := TimelineEntry{
		Type:   r.Kind(),
		ID:     r.RecordID(),
		Date:   r.RecordDate(),
		Record: r,
	}

	switch rec := r.(type) {
	case WorkoutRecord:
		entry.Title = "Workout Plan Created - " + rec.Goal
		entry.Description = fmt.Sprintf("%s level, %d days per week", rec.Level, rec.Days)
	case NutritionRecord:
		entry.Title = "Nutrition Plan Created - " + rec.Diet
		entry.Description = fmt.Sprintf("%d calories daily target", rec.Calories)
	case ProgressRecord:
		entry.Title = "Progress Entry Added"
		entry.Description = fmt.Sprintf("Weight: %skg, Body Fat: %s%%", orNA(rec.Weight), orNA(rec.BodyFat))
	default:
		entry.Title = "Activity"
	}

	return entry
}

// orNA formats an optional measurement; missing and zero values read as N/A.
func orNA(v *float64) string {
	if v == nil || *v == 0 {
		return "N/A"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
