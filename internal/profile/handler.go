package profile

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/2beens/gideon/internal/history"
	"github.com/2beens/gideon/internal/telemetry/tracing"
	"github.com/2beens/gideon/pkg"
)

type PasswordChangeRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`
}

type PasswordChangeResponse struct {
	Valid bool `json:"valid"`
	// Authoritative is always false, nothing was checked against a real credential.
	Authoritative bool `json:"authoritative"`
}

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{
		store: store,
	}
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.get")
	defer span.End()

	attrs, err := handler.store.Load(ctx)
	if err != nil {
		history.WriteError(w, err, "failed to load profile")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, attrs)
}

func (handler *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.save")
	defer span.End()

	var partial Attributes
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		log.Tracef("save profile, unmarshal json params: %s", err)
		http.Error(w, "error, invalid profile data", http.StatusBadRequest)
		return
	}

	merged, err := handler.store.Save(ctx, partial)
	if err != nil {
		history.WriteError(w, err, "failed to save profile")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, merged)
}

func (handler *Handler) HandleChangePassword(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.profile.change_password")
	defer span.End()

	var req PasswordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Tracef("change password, unmarshal json params: %s", err)
		http.Error(w, "error, invalid password change request", http.StatusBadRequest)
		return
	}

	if err := ValidatePasswordChange(req.CurrentPassword, req.NewPassword, req.ConfirmPassword); err != nil {
		history.WriteError(w, err, "failed to validate password change")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, PasswordChangeResponse{Valid: true})
}
