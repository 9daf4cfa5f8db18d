package grpc

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall
// ("") status.
const ServiceName = "salonbook.Booking"

// Probe checks one dependency. A nil Check is skipped.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthServer struct {
	srv     *health.Server
	probes  []Probe
	period  time.Duration
	timeout time.Duration
	log     *slog.Logger
}

func NewHealthServer(period time.Duration, log *slog.Logger, probes ...Probe) *HealthServer {
	if log == nil {
		log = slog.Default()
	}
	if period <= 0 {
		period = 15 * time.Second
	}
	srv := health.NewServer()
	srv.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	srv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return &HealthServer{
		srv:     srv,
		probes:  probes,
		period:  period,
		timeout: period / 2,
		log:     log.With(slog.String("component", "grpc.health")),
	}
}

func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Probe runs every probe once and publishes the combined status.
func (h *HealthServer) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	var errs []error
	for _, p := range h.probes {
		if p.Check == nil {
			continue
		}
		if err := p.Check(ctx); err != nil {
			h.log.WarnContext(ctx, "dependency unhealthy", slog.String("probe", p.Name), slog.Any("err", err))
			errs = append(errs, err)
		}
	}

	status := healthpb.HealthCheckResponse_SERVING
	if len(errs) > 0 {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(ServiceName, status)
	return errors.Join(errs...)
}

// Run probes immediately and then every period until ctx is done, after
// which every service reports NOT_SERVING.
func (h *HealthServer) Run(ctx context.Context) {
	_ = h.Probe(ctx)

	ticker := time.NewTicker(h.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			_ = h.Probe(ctx)
		}
	}
}

// UnaryTimeoutInterceptor bounds calls that arrive without a deadline.
func UnaryTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}
