package rest

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/service/appointments"
	"salonbook/backend/internal/service/availability"
	"salonbook/backend/internal/service/schedules"
	"salonbook/backend/internal/store"
)

// respondServiceError maps service errors onto HTTP answers. Expected
// failures log at Info or Warn; anything unrecognised is a 500.
func respondServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	ctx := r.Context()

	var (
		conflictErr *appointments.ConflictError
		schedErr    *schedules.ValidationError
		apptErr     *appointments.ValidationError
		availErr    *availability.ValidationError
	)
	switch {
	case errors.As(err, &conflictErr):
		log.InfoContext(ctx, "slot taken", slog.Int("fresh_slots", len(conflictErr.Slots)))
		RespondJSON(w, http.StatusConflict, ErrorResponse{
			Code:  CodeConflict,
			Error: conflictErr.Error(),
			Slots: utcSlots(conflictErr.Slots),
		})

	case errors.As(err, &schedErr):
		log.WarnContext(ctx, "invalid request", slog.Any("err", err))
		if len(schedErr.Days) == 0 {
			RespondBadRequest(w, schedErr.Error())
			return
		}
		RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Code:  CodeValidationFailed,
			Error: "invalid schedule",
			Days:  dayErrors(schedErr.Days),
		})

	case errors.As(err, &apptErr), errors.As(err, &availErr):
		log.WarnContext(ctx, "invalid request", slog.Any("err", err))
		RespondBadRequest(w, err.Error())

	case errors.Is(err, store.ErrIdempotencyConflict):
		log.InfoContext(ctx, "idempotency conflict")
		RespondError(w, http.StatusUnprocessableEntity, CodeIdempotencyConflict,
			"this idempotency key was already used for a different request")

	case errors.Is(err, store.ErrConflict):
		log.InfoContext(ctx, "conflict", slog.Any("err", err))
		RespondError(w, http.StatusConflict, CodeConflict, "the selected time is no longer available")

	case errors.Is(err, store.ErrNotFound):
		log.InfoContext(ctx, "not found")
		RespondNotFound(w, "not found")

	case errors.Is(err, context.DeadlineExceeded):
		log.WarnContext(ctx, "request timed out", slog.Any("err", err))
		RespondError(w, http.StatusServiceUnavailable, CodeTimeout, "request timed out")

	default:
		log.ErrorContext(ctx, "request failed", slog.Any("err", err))
		RespondInternalError(w)
	}
}

func dayErrors(days map[domain.Weekday]error) map[string]string {
	out := make(map[string]string, len(days))
	for d, err := range days {
		out[d.String()] = err.Error()
	}
	return out
}
