package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/gideon/internal/storage"
	"github.com/2beens/gideon/internal/telemetry/metrics"
	"github.com/2beens/gideon/internal/telemetry/tracing"
)

const Key = "profile_data"

type Store struct {
	mutex          sync.Mutex
	backend        storage.Backend
	metricsManager *metrics.Manager
}

func NewStore(backend storage.Backend, metricsManager *metrics.Manager) *Store {
	return &Store{
		backend:        backend,
		metricsManager: metricsManager,
	}
}

// Save merges partial into the stored profile and returns the result.
func (s *Store) Save(ctx context.Context, partial Attributes) (_ Attributes, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.profile.save")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if err := partial.Validate(); err != nil {
		return Attributes{}, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return Attributes{}, err
	}

	merged := current.Merge(partial)
	raw, err := json.Marshal(merged)
	if err != nil {
		return Attributes{}, fmt.Errorf("marshal profile: %w", err)
	}
	if err := s.backend.Set(ctx, Key, raw); err != nil {
		return Attributes{}, fmt.Errorf("persist profile: %w", err)
	}

	return merged, nil
}

// Load returns the stored profile, or an empty one if nothing usable is stored.
func (s *Store) Load(ctx context.Context) (_ Attributes, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.profile.load")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	return s.load(ctx)
}

func (s *Store) Clear(ctx context.Context) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "store.profile.clear")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if err := s.backend.Delete(ctx, Key); err != nil {
		return fmt.Errorf("clear profile: %w", err)
	}
	return nil
}

func (s *Store) load(ctx context.Context) (Attributes, error) {
	raw, err := s.backend.Get(ctx, Key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return Attributes{}, nil
		}
		return Attributes{}, fmt.Errorf("load profile: %w", err)
	}

	var attrs Attributes
	if err := json.Unmarshal(raw, &attrs); err != nil {
		log.Warnf("profile: malformed persisted data, treating as empty: %s", err)
		s.metricsManager.MalformedData(Key)
		return Attributes{}, nil
	}

	return attrs, nil
}
