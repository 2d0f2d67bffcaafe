package account

import (
	"context"
	"net/http"

	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/2beens/gideon/internal/history"
	"github.com/2beens/gideon/internal/profile"
	"github.com/2beens/gideon/internal/telemetry/tracing"
	"github.com/2beens/gideon/pkg"
)

// DeleteConfirmation must be typed by the user to wipe the account.
const DeleteConfirmation = "DELETE"

type Service struct {
	profileStore *profile.Store
	collections  *history.Collections
}

func NewService(profileStore *profile.Store, collections *history.Collections) *Service {
	return &Service{
		profileStore: profileStore,
		collections:  collections,
	}
}

// Delete removes the profile and every history collection. Each key is attempted
// even when an earlier one fails; all failures are returned together.
func (s *Service) Delete(ctx context.Context, confirmation string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "account.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if confirmation != DeleteConfirmation {
		return history.NewValidationError("confirm", "type %q to confirm account deletion", DeleteConfirmation)
	}

	err = multierr.Combine(
		s.profileStore.Clear(ctx),
		s.collections.Workouts.Clear(ctx),
		s.collections.Nutrition.Clear(ctx),
		s.collections.Progress.Clear(ctx),
	)
	if err != nil {
		log.Errorf("account delete: %d keys failed: %s", len(multierr.Errors(err)), err)
		return err
	}

	log.Info("account deleted")
	return nil
}

type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.account.delete")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		log.Errorf("delete account failed, parse form error: %s", err)
		http.Error(w, "parse form error", http.StatusBadRequest)
		return
	}

	if err := handler.service.Delete(ctx, r.Form.Get("confirm")); err != nil {
		history.WriteError(w, err, "failed to delete account")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, DeleteResponse{Deleted: true})
}
