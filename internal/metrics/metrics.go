// Package metrics holds the Prometheus collectors of the booking backend.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Collector struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	bookings     *prometheus.CounterVec
	slots        prometheus.Histogram
	cacheLookups *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer, service string) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{"service": service}

	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "salonbook_http_requests_total",
			Help:        "HTTP requests by route, method and status code.",
			ConstLabels: labels,
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "salonbook_http_request_duration_seconds",
			Help:        "HTTP request latency by route and method.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"route", "method"}),
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "salonbook_booking_attempts_total",
			Help:        "Appointment creation attempts by outcome.",
			ConstLabels: labels,
		}, []string{"outcome"}),
		slots: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "salonbook_generated_slots",
			Help:        "Number of slots returned per availability computation.",
			ConstLabels: labels,
			Buckets:     []float64{0, 1, 4, 8, 16, 32, 64, 96},
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "salonbook_slot_cache_lookups_total",
			Help:        "Availability cache lookups by result.",
			ConstLabels: labels,
		}, []string{"result"}),
	}
	reg.MustRegister(c.requests, c.latency, c.bookings, c.slots, c.cacheLookups)
	return c
}

func (c *Collector) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	c.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	c.latency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (c *Collector) BookingOutcome(outcome string) {
	c.bookings.WithLabelValues(outcome).Inc()
}

func (c *Collector) SlotsGenerated(n int) {
	c.slots.Observe(float64(n))
}

func (c *Collector) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}
