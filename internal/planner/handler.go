package planner

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/gideon/internal/history"
	"github.com/2beens/gideon/internal/telemetry/tracing"
	"github.com/2beens/gideon/pkg"
)

type Handler struct {
	recorder *Recorder
}

func NewHandler(recorder *Recorder) *Handler {
	return &Handler{
		recorder: recorder,
	}
}

func (handler *Handler) HandleWorkout(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.workout")
	defer span.End()

	var req WorkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("workout plan, unmarshal json params: %s", err)
		http.Error(w, "error, invalid workout plan request", http.StatusBadRequest)
		return
	}

	record, err := handler.recorder.RecordWorkout(ctx, req)
	if err != nil {
		writePlanError(w, err, "failed to generate workout plan")
		return
	}

	pkg.WriteJSON(w, http.StatusCreated, record)
}

func (handler *Handler) HandleNutrition(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.nutrition")
	defer span.End()

	var req NutritionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("nutrition plan, unmarshal json params: %s", err)
		http.Error(w, "error, invalid nutrition plan request", http.StatusBadRequest)
		return
	}

	record, err := handler.recorder.RecordNutrition(ctx, req)
	if err != nil {
		writePlanError(w, err, "failed to generate nutrition plan")
		return
	}

	pkg.WriteJSON(w, http.StatusCreated, record)
}

// HandleDuplicate answers with the request parameters of a stored plan.
func (handler *Handler) HandleDuplicate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.plans.duplicate")
	defer span.End()

	vars := mux.Vars(r)
	id := vars["id"]
	if id == "" {
		http.Error(w, "error, id empty", http.StatusBadRequest)
		return
	}

	kind, err := history.ParseKind(vars["kind"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params any
	switch kind {
	case history.KindWorkout:
		params, err = handler.recorder.DuplicateWorkout(ctx, id)
	case history.KindNutrition:
		params, err = handler.recorder.DuplicateNutrition(ctx, id)
	default:
		http.Error(w, "error, only workout and nutrition plans can be duplicated", http.StatusBadRequest)
		return
	}
	if err != nil {
		history.WriteError(w, err, "failed to duplicate plan")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, params)
}

func writePlanError(w http.ResponseWriter, err error, msg string) {
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		log.Warnf("%s: %s", msg, err)
		if serviceErr.StatusCode >= 400 && serviceErr.StatusCode < 500 {
			http.Error(w, serviceErr.Message, http.StatusBadRequest)
			return
		}
		http.Error(w, "error, "+msg, http.StatusBadGateway)
		return
	}
	history.WriteError(w, err, msg)
}
