// Package export produces JSON snapshots of the activity history and the profile,
// and restores a history snapshot back into the stores.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/multierr"

	"github.com/2beens/gideon/internal/history"
	"github.com/2beens/gideon/internal/profile"
	"github.com/2beens/gideon/internal/telemetry/metrics"
	"github.com/2beens/gideon/internal/telemetry/tracing"
	"github.com/2beens/gideon/pkg"
)

type Kind string

const (
	KindHistory Kind = "history"
	KindProfile Kind = "profile"
)

var ErrUnknownKind = errors.New("unknown export kind")

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindHistory, KindProfile:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, s)
	}
}

type HistorySnapshot struct {
	Workouts   []history.WorkoutRecord   `json:"workouts"`
	Nutrition  []history.NutritionRecord `json:"nutrition"`
	Progress   []history.ProgressRecord  `json:"progress"`
	ExportedAt time.Time                 `json:"exportedAt"`
}

type ProfileSnapshot struct {
	Profile          profile.Attributes        `json:"profile"`
	WorkoutHistory   []history.WorkoutRecord   `json:"workoutHistory"`
	NutritionHistory []history.NutritionRecord `json:"nutritionHistory"`
	ExportedAt       time.Time                 `json:"exportedAt"`
}

func HistoryFileName(t time.Time) string {
	return fmt.Sprintf("gideon_history_%s.json", t.UTC().Format(time.DateOnly))
}

func ProfileFileName(t time.Time) string {
	return fmt.Sprintf("gideon_data_export_%s.json", t.UTC().Format(time.DateOnly))
}

func FileName(kind Kind, t time.Time) string {
	if kind == KindProfile {
		return ProfileFileName(t)
	}
	return HistoryFileName(t)
}

// Service only reads from the stores, except for ImportHistory.
type Service struct {
	collections    *history.Collections
	profileStore   *profile.Store
	now            func() time.Time
	metricsManager *metrics.Manager
}

func NewService(
	collections *history.Collections,
	profileStore *profile.Store,
	now func() time.Time,
	metricsManager *metrics.Manager,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		collections:    collections,
		profileStore:   profileStore,
		now:            now,
		metricsManager: metricsManager,
	}
}

func (s *Service) HistorySnapshot(ctx context.Context) (_ *HistorySnapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "export.history_snapshot")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	workouts, err := s.collections.Workouts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export workouts: %w", err)
	}
	nutrition, err := s.collections.Nutrition.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export nutrition: %w", err)
	}
	progress, err := s.collections.Progress.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export progress: %w", err)
	}

	s.metricsManager.Exported(string(KindHistory))
	return &HistorySnapshot{
		Workouts:   workouts,
		Nutrition:  nutrition,
		Progress:   progress,
		ExportedAt: s.now(),
	}, nil
}

func (s *Service) ProfileSnapshot(ctx context.Context) (_ *ProfileSnapshot, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "export.profile_snapshot")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	attrs, err := s.profileStore.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("export profile: %w", err)
	}
	workouts, err := s.collections.Workouts.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export workouts: %w", err)
	}
	nutrition, err := s.collections.Nutrition.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("export nutrition: %w", err)
	}

	s.metricsManager.Exported(string(KindProfile))
	return &ProfileSnapshot{
		Profile:          attrs,
		WorkoutHistory:   workouts,
		NutritionHistory: nutrition,
		ExportedAt:       s.now(),
	}, nil
}

// Snapshot returns the snapshot of the given kind and the file name it is saved under.
func (s *Service) Snapshot(ctx context.Context, kind Kind) (any, string, error) {
	switch kind {
	case KindHistory:
		snapshot, err := s.HistorySnapshot(ctx)
		if err != nil {
			return nil, "", err
		}
		return snapshot, HistoryFileName(snapshot.ExportedAt), nil
	case KindProfile:
		snapshot, err := s.ProfileSnapshot(ctx)
		if err != nil {
			return nil, "", err
		}
		return snapshot, ProfileFileName(snapshot.ExportedAt), nil
	default:
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// WriteJSON writes the snapshot as two-space indented JSON.
func WriteJSON(w io.Writer, snapshot any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}

// WriteToDir saves a snapshot into dir, creating it when missing, and returns the file path.
func (s *Service) WriteToDir(ctx context.Context, dir string, kind Kind) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "export.write_to_dir")
	span.SetAttributes(
		attribute.String("dir", dir),
		attribute.String("kind", string(kind)),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	exists, err := pkg.PathExists(dir, true)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return "", fmt.Errorf("create export dir: %w", err)
		}
	}

	snapshot, fileName, err := s.Snapshot(ctx, kind)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, fileName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create export file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close export file: %w", closeErr)
		}
	}()

	if err := WriteJSON(f, snapshot); err != nil {
		return "", err
	}

	log.Debugf("export: %s snapshot written to %s", kind, path)
	return path, nil
}

// ImportHistory replaces all three collections with the snapshot contents.
// Every collection is validated before anything is written. When a later write fails,
// the collections already replaced are written back with their previous records.
func (s *Service) ImportHistory(ctx context.Context, snapshot HistorySnapshot) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "export.import_history")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := validateAll(snapshot.Workouts); err != nil {
		return fmt.Errorf("import workouts: %w", err)
	}
	if err := validateAll(snapshot.Nutrition); err != nil {
		return fmt.Errorf("import nutrition: %w", err)
	}
	if err := validateAll(snapshot.Progress); err != nil {
		return fmt.Errorf("import progress: %w", err)
	}

	var prior HistorySnapshot
	if prior.Workouts, err = s.collections.Workouts.List(ctx); err != nil {
		return fmt.Errorf("import: read current workouts: %w", err)
	}
	if prior.Nutrition, err = s.collections.Nutrition.List(ctx); err != nil {
		return fmt.Errorf("import: read current nutrition: %w", err)
	}

	if err := s.collections.Workouts.Replace(ctx, snapshot.Workouts); err != nil {
		return fmt.Errorf("import workouts: %w", err)
	}
	if err := s.collections.Nutrition.Replace(ctx, snapshot.Nutrition); err != nil {
		err = fmt.Errorf("import nutrition: %w", err)
		return multierr.Append(err, s.restore(ctx, prior, history.KindWorkout))
	}
	if err := s.collections.Progress.Replace(ctx, snapshot.Progress); err != nil {
		err = fmt.Errorf("import progress: %w", err)
		return multierr.Append(err, s.restore(ctx, prior, history.KindWorkout, history.KindNutrition))
	}

	log.Infof("export: imported %d workouts, %d nutrition plans, %d progress entries",
		len(snapshot.Workouts), len(snapshot.Nutrition), len(snapshot.Progress))
	return nil
}

// restore writes back the given collections after a failed import.
func (s *Service) restore(ctx context.Context, prior HistorySnapshot, kinds ...history.Kind) error {
	var errs error
	for _, kind := range kinds {
		var err error
		switch kind {
		case history.KindWorkout:
			err = s.collections.Workouts.Replace(ctx, prior.Workouts)
		case history.KindNutrition:
			err = s.collections.Nutrition.Replace(ctx, prior.Nutrition)
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restore %s: %w", kind, err))
		}
	}
	if errs == nil {
		log.Warnf("export: import failed, restored %v", kinds)
	}
	return errs
}

// ReadHistorySnapshot decodes a snapshot previously written by WriteJSON.
func ReadHistorySnapshot(r io.Reader) (HistorySnapshot, error) {
	var snapshot HistorySnapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return HistorySnapshot{}, history.NewValidationError("snapshot", "cannot decode: %s", err)
	}
	return snapshot, nil
}

func validateAll[T history.Record](records []T) error {
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}
