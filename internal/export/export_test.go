package export

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/2beens/gideon/internal/history"
	"github.com/2beens/gideon/internal/profile"
	"github.com/2beens/gideon/internal/storage"
	"github.com/2beens/gideon/internal/telemetry/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var exportTime = time.Date(2024, time.April, 2, 23, 15, 0, 0, time.UTC)

type testEnv struct {
	backend        *storage.MemoryBackend
	collections    *history.Collections
	profileStore   *profile.Store
	service        *Service
	metricsManager *metrics.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := storage.NewMemoryBackend()
	metricsManager := metrics.NewTestManager()
	collections := history.NewCollections(backend, history.Caps{}, metricsManager)
	profileStore := profile.NewStore(backend, metricsManager)
	return &testEnv{
		backend:        backend,
		collections:    collections,
		profileStore:   profileStore,
		service:        NewService(collections, profileStore, func() time.Time { return exportTime }, metricsManager),
		metricsManager: metricsManager,
	}
}

func (env *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	faker := gofakeit.New(7)
	base := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		require.NoError(t, env.collections.Workouts.Insert(ctx, history.WorkoutRecord{
			ID:    faker.UUID(),
			Date:  base.Add(time.Duration(i) * 24 * time.Hour),
			Goal:  faker.RandomString([]string{"strength", "endurance"}),
			Level: "beginner",
			Days:  faker.Number(1, 7),
			Plan:  `{"days":[{"name":"push"}]}`,
		}))
	}
	for i := 0; i < 3; i++ {
		require.NoError(t, env.collections.Nutrition.Insert(ctx, history.NutritionRecord{
			ID:       faker.UUID(),
			Date:     base.Add(time.Duration(i) * time.Hour),
			Diet:     "balanced",
			Calories: faker.Number(1500, 3000),
			Plan:     faker.Paragraph(1, 2, 8, " "),
		}))
	}
	weight := 82.5
	require.NoError(t, env.collections.Progress.Insert(ctx, history.ProgressRecord{
		ID:     faker.UUID(),
		Date:   base,
		Weight: &weight,
		Notes:  "start",
	}))

	height := "181"
	_, err := env.profileStore.Save(ctx, profile.Attributes{Height: &height})
	require.NoError(t, err)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, "gideon_history_2024-04-02.json", HistoryFileName(exportTime))
	assert.Equal(t, "gideon_data_export_2024-04-02.json", ProfileFileName(exportTime))

	// named by the UTC day
	late := time.Date(2024, time.April, 2, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*60*60))
	assert.Equal(t, "gideon_history_2024-04-03.json", FileName(KindHistory, late))
	assert.Equal(t, "gideon_data_export_2024-04-03.json", FileName(KindProfile, late))
}

func TestService_HistorySnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t)

	snapshot, err := env.service.HistorySnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, exportTime, snapshot.ExportedAt)
	assert.Len(t, snapshot.Workouts, 4)
	assert.Len(t, snapshot.Nutrition, 3)
	assert.Len(t, snapshot.Progress, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metricsManager.CounterExports.WithLabelValues("history")))

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, snapshot))

	// restore into a fresh store
	target := newTestEnv(t)
	decoded, err := ReadHistorySnapshot(&buf)
	require.NoError(t, err)
	require.NoError(t, target.service.ImportHistory(ctx, decoded))

	workouts, err := target.collections.Workouts.List(ctx)
	require.NoError(t, err)
	nutrition, err := target.collections.Nutrition.List(ctx)
	require.NoError(t, err)
	progress, err := target.collections.Progress.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, snapshot.Workouts, workouts)
	assert.Equal(t, snapshot.Nutrition, nutrition)
	assert.Equal(t, snapshot.Progress, progress)
}

func TestService_SnapshotDoesNotMutate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t)

	before := make(map[string]string)
	for _, key := range env.backend.Keys() {
		raw, err := env.backend.Get(ctx, key)
		require.NoError(t, err)
		before[key] = string(raw)
	}

	_, err := env.service.HistorySnapshot(ctx)
	require.NoError(t, err)
	_, err = env.service.ProfileSnapshot(ctx)
	require.NoError(t, err)

	for key, val := range before {
		raw, err := env.backend.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, val, string(raw))
	}
	assert.Len(t, env.backend.Keys(), len(before))
}

func TestService_ProfileSnapshot(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t)

	snapshot, err := env.service.ProfileSnapshot(ctx)
	require.NoError(t, err)
	require.NotNil(t, snapshot.Profile.Height)
	assert.Equal(t, "181", *snapshot.Profile.Height)
	assert.Len(t, snapshot.WorkoutHistory, 4)
	assert.Len(t, snapshot.NutritionHistory, 3)

	raw, err := json.Marshal(snapshot)
	require.NoError(t, err)
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "profile")
	assert.Contains(t, fields, "workoutHistory")
	assert.Contains(t, fields, "nutritionHistory")
	assert.Contains(t, fields, "exportedAt")
	assert.NotContains(t, fields, "progress")
}

func TestService_EmptySnapshot(t *testing.T) {
	env := newTestEnv(t)

	snapshot, err := env.service.HistorySnapshot(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, snapshot))
	assert.JSONEq(t, `{"workouts":[],"nutrition":[],"progress":[],"exportedAt":"2024-04-02T23:15:00Z"}`, buf.String())
}

func TestService_WriteToDir(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t)

	dir := filepath.Join(t.TempDir(), "exports")
	path, err := env.service.WriteToDir(ctx, dir, KindProfile)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gideon_data_export_2024-04-02.json"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var snapshot ProfileSnapshot
	require.NoError(t, json.Unmarshal(raw, &snapshot))
	assert.Len(t, snapshot.WorkoutHistory, 4)

	path, err = env.service.WriteToDir(ctx, dir, KindHistory)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "gideon_history_2024-04-02.json"), path)

	_, err = env.service.WriteToDir(ctx, path, KindHistory)
	assert.Error(t, err)

	_, err = env.service.WriteToDir(ctx, dir, Kind("everything"))
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestService_ImportRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t)

	err := env.service.ImportHistory(ctx, HistorySnapshot{
		Workouts:  []history.WorkoutRecord{{ID: "w1", Date: exportTime, Goal: "x", Level: "y", Days: 3}},
		Nutrition: []history.NutritionRecord{{ID: "n1", Date: exportTime, Diet: "keto", Calories: 9000}},
	})
	var validationErr *history.ValidationError
	require.ErrorAs(t, err, &validationErr)

	// nothing was replaced
	workouts, err := env.collections.Workouts.List(ctx)
	require.NoError(t, err)
	assert.Len(t, workouts, 4)
}

type failingSetBackend struct {
	*storage.MemoryBackend
	failKey string
}

func (b *failingSetBackend) Set(ctx context.Context, key string, value []byte) error {
	if key == b.failKey {
		return errors.New("backend unavailable")
	}
	return b.MemoryBackend.Set(ctx, key, value)
}

func TestService_ImportRestoresOnWriteFailure(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seed(t)

	workoutsBefore, err := env.collections.Workouts.List(ctx)
	require.NoError(t, err)
	nutritionBefore, err := env.collections.Nutrition.List(ctx)
	require.NoError(t, err)

	backend := &failingSetBackend{MemoryBackend: env.backend, failKey: "progress_history"}
	collections := history.NewCollections(backend, history.Caps{}, nil)
	service := NewService(collections, env.profileStore, func() time.Time { return exportTime }, nil)

	weight := 70.0
	err = service.ImportHistory(ctx, HistorySnapshot{
		Workouts:  []history.WorkoutRecord{{ID: "w1", Date: exportTime, Goal: "strength", Level: "beginner", Days: 3, Plan: "{}"}},
		Nutrition: []history.NutritionRecord{{ID: "n1", Date: exportTime, Diet: "keto", Calories: 2000, Plan: "eat"}},
		Progress:  []history.ProgressRecord{{ID: "p1", Date: exportTime, Weight: &weight}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "import progress")
	assert.Contains(t, err.Error(), "backend unavailable")

	workouts, err := env.collections.Workouts.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, workoutsBefore, workouts)
	nutrition, err := env.collections.Nutrition.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, nutritionBefore, nutrition)
}

func TestHandler_HandleDownload(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	handler := NewHandler(env.service)

	rec := httptest.NewRecorder()
	req := mux.SetURLVars(httptest.NewRequest("GET", "/export/history", nil), map[string]string{"kind": "history"})
	handler.HandleDownload(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="gideon_history_2024-04-02.json"`, rec.Header().Get("Content-Disposition"))

	var snapshot HistorySnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Len(t, snapshot.Workouts, 4)

	rec = httptest.NewRecorder()
	req = mux.SetURLVars(httptest.NewRequest("GET", "/export/profile", nil), map[string]string{"kind": "profile"})
	handler.HandleDownload(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="gideon_data_export_2024-04-02.json"`, rec.Header().Get("Content-Disposition"))

	rec = httptest.NewRecorder()
	req = mux.SetURLVars(httptest.NewRequest("GET", "/export/all", nil), map[string]string{"kind": "all"})
	handler.HandleDownload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_HandleImport(t *testing.T) {
	source := newTestEnv(t)
	source.seed(t)
	snapshot, err := source.service.HistorySnapshot(context.Background())
	require.NoError(t, err)
	body, err := json.Marshal(snapshot)
	require.NoError(t, err)

	target := newTestEnv(t)
	handler := NewHandler(target.service)

	rec := httptest.NewRecorder()
	handler.HandleImport(rec, httptest.NewRequest("POST", "/export/history", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"workouts":4,"nutrition":3,"progress":1}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.HandleImport(rec, httptest.NewRequest("POST", "/export/history", bytes.NewReader([]byte(`{"workouts":`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.HandleImport(rec, httptest.NewRequest("POST", "/export/history", bytes.NewReader([]byte(`{"progress":[{"id":"p1","date":"2024-01-01T00:00:00Z","weight":1}]}`))))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
