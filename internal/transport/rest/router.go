package rest

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	// Metrics is optional; MetricsPath is only served when it is set.
	Metrics     RequestObserver
	MetricsPath string
	// BookingLimiter guards appointment creation when set.
	BookingLimiter *RateLimiter
}

func NewRouter(h *Handler, cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()

	if cfg.Metrics != nil {
		r.Use(MetricsMiddleware(cfg.Metrics))
		if cfg.MetricsPath != "" {
			r.Handle(cfg.MetricsPath, promhttp.Handler()).Methods(http.MethodGet)
		}
	}

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(TimeoutMiddleware(cfg.RequestTimeout))

	create := h.CreateAppointment
	if cfg.BookingLimiter != nil {
		create = cfg.BookingLimiter.Wrap(create)
	}

	api.HandleFunc("/staff", h.CreateStaff).Methods(http.MethodPost)
	api.HandleFunc("/staff/{staffId}", h.GetStaff).Methods(http.MethodGet)
	api.HandleFunc("/staff/{staffId}/schedule", h.GetSchedule).Methods(http.MethodGet)
	api.HandleFunc("/staff/{staffId}/schedule", h.SaveSchedule).Methods(http.MethodPut)
	api.HandleFunc("/staff/{staffId}/available-slots", h.ListAvailableSlots).Methods(http.MethodGet)
	api.HandleFunc("/staff/{staffId}/appointments", h.ListAppointments).Methods(http.MethodGet)
	api.HandleFunc("/staff/{staffId}/appointments", create).Methods(http.MethodPost)
	api.HandleFunc("/appointments/{appointmentId}", h.GetAppointment).Methods(http.MethodGet)
	api.HandleFunc("/appointments/{appointmentId}/status", h.UpdateAppointmentStatus).Methods(http.MethodPatch)

	return r
}
