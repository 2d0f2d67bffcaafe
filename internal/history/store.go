package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/gideon/internal/storage"
	"github.com/2beens/gideon/internal/telemetry/metrics"
	"github.com/2beens/gideon/internal/telemetry/tracing"
)

const DefaultCap = 50

var (
	ErrNotFound    = errors.New("record not found")
	ErrDuplicateID = errors.New("record with the same id already exists")
)

type CollectionSpec struct {
	Name Kind
	Key  string
	Cap  int
}

var (
	WorkoutCollection   = CollectionSpec{Name: KindWorkout, Key: "workout_history", Cap: DefaultCap}
	NutritionCollection = CollectionSpec{Name: KindNutrition, Key: "nutrition_history", Cap: DefaultCap}
	ProgressCollection  = CollectionSpec{Name: KindProgress, Key: "progress_history", Cap: DefaultCap}
)

// WithCap returns a copy with the given cap; a non-positive cap keeps the current one.
func (s CollectionSpec) WithCap(limit int) CollectionSpec {
	if limit > 0 {
		s.Cap = limit
	}
	return s
}

// Store is a bounded, newest-first collection of records persisted as one JSON array under a single key.
// Every read goes to the backend; writes return only after the backend accepted the new array.
type Store[T Record] struct {
	// serializes read-modify-write cycles of this process
	mutex          sync.Mutex
	backend        storage.Backend
	spec           CollectionSpec
	metricsManager *metrics.Manager
}

func NewStore[T Record](backend storage.Backend, spec CollectionSpec, metricsManager *metrics.Manager) *Store[T] {
	if spec.Cap <= 0 {
		spec.Cap = DefaultCap
	}
	return &Store[T]{
		backend:        backend,
		spec:           spec,
		metricsManager: metricsManager,
	}
}

func (s *Store[T]) Spec() CollectionSpec {
	return s.spec
}

func (s *Store[T]) collection() string {
	return string(s.spec.Name)
}

func (s *Store[T]) Insert(ctx context.Context, record T) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.history.insert")
	span.SetAttributes(
		attribute.String("collection", s.collection()),
		attribute.String("id", record.RecordID()),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := record.Validate(); err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}

	for _, r := range records {
		if r.RecordID() == record.RecordID() {
			return fmt.Errorf("%w: %s", ErrDuplicateID, record.RecordID())
		}
	}

	updated := make([]T, 0, len(records)+1)
	updated = append(updated, record)
	updated = append(updated, records...)

	evicted := 0
	if len(updated) > s.spec.Cap {
		evicted = len(updated) - s.spec.Cap
		updated = updated[:s.spec.Cap]
	}

	if err := s.persist(ctx, updated); err != nil {
		return err
	}

	s.metricsManager.RecordInserted(s.collection())
	if evicted > 0 {
		s.metricsManager.RecordsEvicted(s.collection(), evicted)
		log.Debugf("history [%s]: evicted %d oldest records", s.collection(), evicted)
	}

	return nil
}

func (s *Store[T]) Delete(ctx context.Context, id string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.history.delete")
	span.SetAttributes(
		attribute.String("collection", s.collection()),
		attribute.String("id", id),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}

	idx := -1
	for i, r := range records {
		if r.RecordID() == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated := make([]T, 0, len(records)-1)
	updated = append(updated, records[:idx]...)
	updated = append(updated, records[idx+1:]...)

	if err := s.persist(ctx, updated); err != nil {
		return err
	}

	s.metricsManager.RecordDeleted(s.collection())
	return nil
}

// List returns the records newest first. The result is never nil.
func (s *Store[T]) List(ctx context.Context) (_ []T, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.history.list")
	span.SetAttributes(attribute.String("collection", s.collection()))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return s.load(ctx)
}

func (s *Store[T]) FindByID(ctx context.Context, id string) (_ T, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.history.find")
	span.SetAttributes(
		attribute.String("collection", s.collection()),
		attribute.String("id", id),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	var zero T
	records, err := s.load(ctx)
	if err != nil {
		return zero, err
	}
	for _, r := range records {
		if r.RecordID() == id {
			return r, nil
		}
	}
	return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Replace overwrites the whole collection. Records are validated, repeated ids keep their
// first occurrence and anything past the cap is dropped.
func (s *Store[T]) Replace(ctx context.Context, records []T) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.history.replace")
	span.SetAttributes(
		attribute.String("collection", s.collection()),
		attribute.Int("count", len(records)),
	)
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	seen := make(map[string]struct{}, len(records))
	deduped := make([]T, 0, len(records))
	for i, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s record %d: %w", s.collection(), i, err)
		}
		if _, ok := seen[r.RecordID()]; ok {
			continue
		}
		seen[r.RecordID()] = struct{}{}
		deduped = append(deduped, r)
	}

	evicted := 0
	if len(deduped) > s.spec.Cap {
		evicted = len(deduped) - s.spec.Cap
		deduped = deduped[:s.spec.Cap]
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.persist(ctx, deduped); err != nil {
		return err
	}

	if evicted > 0 {
		s.metricsManager.RecordsEvicted(s.collection(), evicted)
	}
	return nil
}

func (s *Store[T]) Clear(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.history.clear")
	span.SetAttributes(attribute.String("collection", s.collection()))
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.backend.Delete(ctx, s.spec.Key); err != nil {
		return fmt.Errorf("clear %s: %w", s.spec.Key, err)
	}
	return nil
}

// load reads the collection. A value that does not parse is logged and treated as an empty collection.
func (s *Store[T]) load(ctx context.Context) ([]T, error) {
	raw, err := s.backend.Get(ctx, s.spec.Key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return []T{}, nil
		}
		return nil, fmt.Errorf("load %s: %w", s.spec.Key, err)
	}

	var records []T
	if err := json.Unmarshal(raw, &records); err != nil {
		log.Warnf("history [%s]: malformed persisted data, treating as empty: %s", s.spec.Key, err)
		s.metricsManager.MalformedData(s.spec.Key)
		return []T{}, nil
	}
	if records == nil {
		records = []T{}
	}

	return records, nil
}

func (s *Store[T]) persist(ctx context.Context, records []T) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", s.spec.Key, err)
	}
	if err := s.backend.Set(ctx, s.spec.Key, raw); err != nil {
		return fmt.Errorf("persist %s: %w", s.spec.Key, err)
	}
	return nil
}

type Caps struct {
	Workout   int
	Nutrition int
	Progress  int
}

// Collections bundles the three history stores sharing one backend.
type Collections struct {
	Workouts  *Store[WorkoutRecord]
	Nutrition *Store[NutritionRecord]
	Progress  *Store[ProgressRecord]
}

func NewCollections(backend storage.Backend, caps Caps, metricsManager *metrics.Manager) *Collections {
	return &Collections{
		Workouts:  NewStore[WorkoutRecord](backend, WorkoutCollection.WithCap(caps.Workout), metricsManager),
		Nutrition: NewStore[NutritionRecord](backend, NutritionCollection.WithCap(caps.Nutrition), metricsManager),
		Progress:  NewStore[ProgressRecord](backend, ProgressCollection.WithCap(caps.Progress), metricsManager),
	}
}

// Get returns the records of one kind as the Record interface, newest first.
func (c *Collections) Get(ctx context.Context, kind Kind) ([]Record, error) {
	switch kind {
	case KindWorkout:
		return listAsRecords(ctx, c.Workouts)
	case KindNutrition:
		return listAsRecords(ctx, c.Nutrition)
	case KindProgress:
		return listAsRecords(ctx, c.Progress)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// Find looks a record of the given kind up by id.
func (c *Collections) Find(ctx context.Context, kind Kind, id string) (Record, error) {
	switch kind {
	case KindWorkout:
		return findAsRecord(ctx, c.Workouts, id)
	case KindNutrition:
		return findAsRecord(ctx, c.Nutrition, id)
	case KindProgress:
		return findAsRecord(ctx, c.Progress, id)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

func listAsRecords[T Record](ctx context.Context, store *Store[T]) ([]Record, error) {
	records, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Record, len(records))
	for i, r := range records {
		out[i] = r
	}
	return out, nil
}

func findAsRecord[T Record](ctx context.Context, store *Store[T], id string) (Record, error) {
	record, err := store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return record, nil
}
