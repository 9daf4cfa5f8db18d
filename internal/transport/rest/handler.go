package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/service/appointments"
	"salonbook/backend/internal/service/availability"
	"salonbook/backend/internal/service/schedules"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type ScheduleService interface {
	Get(ctx context.Context, staffID uuid.UUID) (domain.WeeklySchedule, error)
	Save(ctx context.Context, staffID uuid.UUID, week domain.WeeklySchedule) (domain.WeeklySchedule, error)
	CreateStaff(ctx context.Context, in schedules.CreateStaffInput) (domain.StaffMember, error)
	GetStaff(ctx context.Context, staffID uuid.UUID) (domain.StaffMember, error)
}

type AvailabilityService interface {
	ListSlots(ctx context.Context, staffID uuid.UUID, date time.Time, durationMinutes int) ([]time.Time, error)
	ListRange(ctx context.Context, staffID uuid.UUID, from, to time.Time, durationMinutes int) ([]availability.DaySlots, error)
}

type AppointmentService interface {
	Create(ctx context.Context, in appointments.CreateInput) (domain.Appointment, error)
	ListForDay(ctx context.Context, staffID uuid.UUID, date time.Time) ([]domain.Appointment, error)
	Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error)
	UpdateStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error)
}

type Handler struct {
	schedules    ScheduleService
	availability AvailabilityService
	appointments AppointmentService
	loc          *time.Location
	log          *slog.Logger
}

// NewHandler builds the REST handlers. Calendar dates in query strings are
// read in loc.
func NewHandler(sch ScheduleService, avail AvailabilityService, appts AppointmentService, loc *time.Location, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		schedules:    sch,
		availability: avail,
		appointments: appts,
		loc:          loc,
		log:          log.With(slog.String("component", "http")),
	}
}

// POST /api/v1/staff
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "CreateStaff"))

	var req StaffRequest
	if err := DecodeJSON(r, &req); err != nil {
		log.WarnContext(r.Context(), "invalid request", slog.Any("err", err))
		RespondBadRequest(w, err.Error())
		return
	}

	staff, err := h.schedules.CreateStaff(r.Context(), schedules.CreateStaffInput{Title: req.Title})
	if err != nil {
		respondServiceError(w, r, log, err)
		return
	}
	log.InfoContext(r.Context(), "staff created", slog.String("staff_id", staff.ID.String()))
	RespondJSON(w, http.StatusCreated, toStaffResponse(staff))
}

// GET /api/v1/staff/{staffId}
func (h *Handler) GetStaff(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "GetStaff"))
	staffID, ok := h.staffID(w, r, log)
	if !ok {
		return
	}

	staff, err := h.schedules.GetStaff(r.Context(), staffID)
	if err != nil {
		respondServiceError(w, r, log, err)
		return
	}
	RespondJSON(w, http.StatusOK, toStaffResponse(staff))
}

// GET /api/v1/staff/{staffId}/schedule
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "GetSchedule"))
	staffID, ok := h.staffID(w, r, log)
	if !ok {
		return
	}

	week, err := h.schedules.Get(r.Context(), staffID)
	if err != nil {
		respondServiceError(w, r, log, err)
		return
	}
	RespondJSON(w, http.StatusOK, ScheduleResponse{StaffID: staffID, Schedule: week})
}

// PUT /api/v1/staff/{staffId}/schedule
// The body is the whole week; partial documents are rejected.
func (h *Handler) SaveSchedule(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "SaveSchedule"))
	staffID, ok := h.staffID(w, r, log)
	if !ok {
		return
	}

	var week domain.WeeklySchedule
	if err := DecodeJSON(r, &week); err != nil {
		log.WarnContext(r.Context(), "invalid request", slog.Any("err", err))
		RespondBadRequest(w, err.Error())
		return
	}

	saved, err := h.schedules.Save(r.Context(), staffID, week)
	if err != nil {
		respondServiceError(w, r, log.With(slog.String("staff_id", staffID.String())), err)
		return
	}
	log.InfoContext(r.Context(), "schedule saved", slog.String("staff_id", staffID.String()))
	RespondJSON(w, http.StatusOK, ScheduleResponse{StaffID: staffID, Schedule: saved})
}

// GET /api/v1/staff/{staffId}/appointments?date=YYYY-MM-DD
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "ListAppointments"))
	staffID, ok := h.staffID(w, r, log)
	if !ok {
		return
	}
	date, ok := h.date(w, r, log, "date")
	if !ok {
		return
	}

	appts, err := h.appointments.ListForDay(r.Context(), staffID, date)
	if err != nil {
		respondServiceError(w, r, log, err)
		return
	}

	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	log.DebugContext(r.Context(), "appointments listed",
		slog.String("staff_id", staffID.String()),
		slog.Int("count", len(out)),
	)
	RespondJSON(w, http.StatusOK, AppointmentsResponse{Appointments: out})
}

// GET /api/v1/staff/{staffId}/available-slots?date=YYYY-MM-DD&duration=30
// With from and to instead of date the answer covers every date in [from, to).
func (h *Handler) ListAvailableSlots(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "ListAvailableSlots"))
	staffID, ok := h.staffID(w, r, log)
	if !ok {
		return
	}

	q := r.URL.Query()
	duration, err := strconv.Atoi(strings.TrimSpace(q.Get("duration")))
	if err != nil {
		log.WarnContext(r.Context(), "invalid request", slog.String("reason", "invalid_duration"))
		RespondBadRequest(w, "duration must be an integer number of minutes")
		return
	}

	if q.Get("date") == "" && q.Get("from") != "" {
		h.listRange(w, r, log, staffID, duration)
		return
	}

	date, ok := h.date(w, r, log, "date")
	if !ok {
		return
	}
	slots, err := h.availability.ListSlots(r.Context(), staffID, date, duration)
	if err != nil {
		respondServiceError(w, r, log, err)
		return
	}
	RespondJSON(w, http.StatusOK, SlotsResponse{
		StaffID:         staffID,
		Date:            date.Format(time.DateOnly),
		DurationMinutes: duration,
		Slots:           utcSlots(slots),
	})
}

func (h *Handler) listRange(w http.ResponseWriter, r *http.Request, log *slog.Logger, staffID uuid.UUID, duration int) {
	from, ok := h.date(w, r, log, "from")
	if !ok {
		return
	}
	to, ok := h.date(w, r, log, "to")
	if !ok {
		return
	}

	days, err := h.availability.ListRange(r.Context(), staffID, from, to, duration)
	if err != nil {
		respondServiceError(w, r, log, err)
		return
	}

	out := make([]DaySlotsResponse, 0, len(days))
	for _, d := range days {
		out = append(out, DaySlotsResponse{Date: d.Date.Format(time.DateOnly), Slots: utcSlots(d.Slots)})
	}
	RespondJSON(w, http.StatusOK, RangeSlotsResponse{StaffID: staffID, DurationMinutes: duration, Days: out})
}

// POST /api/v1/staff/{staffId}/appointments
// A lost race answers 409 with the recomputed slots for that date.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "CreateAppointment"))
	staffID, ok := h.staffID(w, r, log)
	if !ok {
		return
	}

	var req CreateAppointmentRequest
	if err := DecodeJSON(r, &req); err != nil {
		log.WarnContext(r.Context(), "invalid request", slog.Any("err", err))
		RespondBadRequest(w, err.Error())
		return
	}

	appt, err := h.appointments.Create(r.Context(), appointments.CreateInput{
		StaffID:         staffID,
		CustomerID:      req.CustomerID,
		ServiceName:     req.ServiceName,
		Notes:           req.Notes,
		StartsAt:        req.StartsAt,
		DurationMinutes: req.DurationMinutes,
		IdempotencyKey:  r.Header.Get(IdempotencyKeyHeader),
	})
	if err != nil {
		respondServiceError(w, r, log.With(
			slog.String("staff_id", staffID.String()),
			slog.Time("starts_at", req.StartsAt),
		), err)
		return
	}
	RespondJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

// GET /api/v1/appointments/{appointmentId}
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "GetAppointment"))
	id, ok := h.uuidVar(w, r, log, "appointmentId")
	if !ok {
		return
	}

	appt, err := h.appointments.Get(r.Context(), id)
	if err != nil {
		respondServiceError(w, r, log, err)
		return
	}
	RespondJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

// PATCH /api/v1/appointments/{appointmentId}/status
func (h *Handler) UpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	log := h.log.With(slog.String("op", "UpdateAppointmentStatus"))
	id, ok := h.uuidVar(w, r, log, "appointmentId")
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := DecodeJSON(r, &req); err != nil {
		log.WarnContext(r.Context(), "invalid request", slog.Any("err", err))
		RespondBadRequest(w, err.Error())
		return
	}

	appt, err := h.appointments.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondServiceError(w, r, log.With(slog.String("appointment_id", id.String())), err)
		return
	}
	log.InfoContext(r.Context(), "appointment status changed",
		slog.String("appointment_id", id.String()),
		slog.String("status", string(appt.Status)),
	)
	RespondJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *Handler) staffID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (uuid.UUID, bool) {
	return h.uuidVar(w, r, log, "staffId")
}

func (h *Handler) uuidVar(w http.ResponseWriter, r *http.Request, log *slog.Logger, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		log.WarnContext(r.Context(), "invalid request", slog.String("reason", "invalid_uuid"), slog.String("param", name))
		RespondBadRequest(w, name+" must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) date(w http.ResponseWriter, r *http.Request, log *slog.Logger, param string) (time.Time, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(param))
	if raw == "" {
		log.WarnContext(r.Context(), "invalid request", slog.String("reason", "missing_"+param))
		RespondBadRequest(w, param+" is required")
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, h.loc)
	if err != nil {
		log.WarnContext(r.Context(), "invalid request", slog.String("reason", "invalid_"+param))
		RespondBadRequest(w, param+" must be formatted as YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}
