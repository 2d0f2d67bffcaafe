package history

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/gideon/internal/telemetry/tracing"
	"github.com/2beens/gideon/pkg"
)

const (
	StateOK               = "ok"
	StateEmpty            = "empty"
	StateInsufficientData = "insufficient_data"
)

type TimelineResponse struct {
	State   string          `json:"state"`
	Entries []TimelineEntry `json:"entries"`
}

type ChartResponse struct {
	State string `json:"state"`
	Chart *Chart `json:"chart,omitempty"`
}

type ListResponse struct {
	Type    Kind     `json:"type"`
	Records []Record `json:"records"`
	Total   int      `json:"total"`
}

type AddProgressRequest struct {
	Date    string   `json:"date"`
	Weight  *float64 `json:"weight"`
	BodyFat *float64 `json:"bodyFat"`
	Muscle  *float64 `json:"muscle"`
	Notes   string   `json:"notes"`
}

type DeleteProgressResponse struct {
	DeletedID string `json:"deletedId"`
}

type Handler struct {
	collections *Collections
	aggregator  *Aggregator
	statsEngine *StatsEngine
	chart       *ChartProjector
	now         func() time.Time
}

func NewHandler(
	collections *Collections,
	aggregator *Aggregator,
	statsEngine *StatsEngine,
	chart *ChartProjector,
	now func() time.Time,
) *Handler {
	if now == nil {
		now = time.Now
	}
	return &Handler{
		collections: collections,
		aggregator:  aggregator,
		statsEngine: statsEngine,
		chart:       chart,
		now:         now,
	}
}

// StatusCode maps domain errors to the HTTP status the handlers answer with.
func StatusCode(err error) int {
	var validationErr *ValidationError
	switch {
	case errors.As(err, &validationErr), errors.Is(err, ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicateID):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteError answers with the status matching err; internal errors are logged and not exposed.
func WriteError(w http.ResponseWriter, err error, internalMsg string) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		log.Errorf("%s: %s", internalMsg, err)
		http.Error(w, "error, "+internalMsg, status)
		return
	}
	http.Error(w, err.Error(), status)
}

func (handler *Handler) HandleTimeline(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.timeline")
	defer span.End()

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			http.Error(w, "error, limit NaN", http.StatusBadRequest)
			return
		}
	}

	var (
		entries []TimelineEntry
		err     error
	)
	typeFilter := r.URL.Query().Get("type")
	if typeFilter == "" || typeFilter == "all" {
		entries, err = handler.aggregator.Timeline(ctx, limit)
	} else {
		kind, kindErr := ParseKind(typeFilter)
		if kindErr != nil {
			http.Error(w, kindErr.Error(), http.StatusBadRequest)
			return
		}
		entries, err = handler.aggregator.TimelineByType(ctx, kind, limit)
	}

	if errors.Is(err, ErrEmptyHistory) {
		pkg.WriteJSON(w, http.StatusOK, TimelineResponse{
			State:   StateEmpty,
			Entries: []TimelineEntry{},
		})
		return
	}
	if err != nil {
		WriteError(w, err, "failed to get timeline")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, TimelineResponse{
		State:   StateOK,
		Entries: entries,
	})
}

func (handler *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.stats")
	defer span.End()

	stats, err := handler.statsEngine.Stats(ctx)
	if err != nil {
		WriteError(w, err, "failed to compute stats")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, stats)
}

func (handler *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.chart")
	defer span.End()

	chart, err := handler.chart.Project(ctx)
	if errors.Is(err, ErrInsufficientData) {
		pkg.WriteJSON(w, http.StatusOK, ChartResponse{State: StateInsufficientData})
		return
	}
	if err != nil {
		WriteError(w, err, "failed to project chart")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, ChartResponse{
		State: StateOK,
		Chart: chart,
	})
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.list")
	defer span.End()

	kind, err := ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := handler.collections.Get(ctx, kind)
	if err != nil {
		WriteError(w, err, "failed to list history")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, ListResponse{
		Type:    kind,
		Records: records,
		Total:   len(records),
	})
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.get")
	defer span.End()

	vars := mux.Vars(r)
	kind, err := ParseKind(vars["kind"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := vars["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	record, err := handler.collections.Find(ctx, kind, id)
	if err != nil {
		WriteError(w, err, "failed to get record")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, NewTimelineEntry(record))
}

func (handler *Handler) HandleAddProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.add_progress")
	defer span.End()

	var req AddProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("add progress, unmarshal json params: %s", err)
		http.Error(w, "error, invalid progress entry", http.StatusBadRequest)
		return
	}

	date := handler.now()
	if req.Date != "" {
		var err error
		date, err = ParseDate(req.Date)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	record := ProgressRecord{
		ID:      uuid.NewString(),
		Date:    date,
		Weight:  req.Weight,
		BodyFat: req.BodyFat,
		Muscle:  req.Muscle,
		Notes:   req.Notes,
	}
	if err := handler.collections.Progress.Insert(ctx, record); err != nil {
		WriteError(w, err, "failed to add progress entry")
		return
	}

	log.Debugf("progress entry added: %s", record.ID)
	pkg.WriteJSON(w, http.StatusCreated, record)
}

func (handler *Handler) HandleDeleteProgress(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.history.delete_progress")
	defer span.End()

	id := mux.Vars(r)["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	if err := handler.collections.Progress.Delete(ctx, id); err != nil {
		WriteError(w, err, "failed to delete progress entry")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, DeleteProgressResponse{DeletedID: id})
}
