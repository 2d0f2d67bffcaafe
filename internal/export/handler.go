package export

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/gideon/internal/history"
	"github.com/2beens/gideon/internal/telemetry/tracing"
	"github.com/2beens/gideon/pkg"
)

type ImportResponse struct {
	Workouts  int `json:"workouts"`
	Nutrition int `json:"nutrition"`
	Progress  int `json:"progress"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

// HandleDownload serves a snapshot as a file attachment.
func (handler *Handler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.export.download")
	defer span.End()

	kind, err := ParseKind(mux.Vars(r)["kind"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	snapshot, fileName, err := handler.service.Snapshot(ctx, kind)
	if err != nil {
		history.WriteError(w, err, "failed to export data")
		return
	}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, snapshot); err != nil {
		log.Errorf("failed to write %s snapshot: %s", kind, err)
		http.Error(w, "error, failed to export data", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, buf.Bytes())
}

// HandleImport restores a history snapshot sent as the request body.
func (handler *Handler) HandleImport(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.export.import")
	defer span.End()

	snapshot, err := ReadHistorySnapshot(r.Body)
	if err != nil {
		log.Tracef("import history: %s", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := handler.service.ImportHistory(ctx, snapshot); err != nil {
		history.WriteError(w, err, "failed to import history")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, ImportResponse{
		Workouts:  len(snapshot.Workouts),
		Nutrition: len(snapshot.Nutrition),
		Progress:  len(snapshot.Progress),
	})
}
