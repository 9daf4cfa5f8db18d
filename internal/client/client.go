// Package client talks to the booking REST API. It satisfies editor.Store so
// the schedule editor can persist through the network.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
	"salonbook/backend/internal/transport/rest"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func New(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: log.With(slog.String("component", "client")),
	}
}

func (c *Client) CreateStaff(ctx context.Context, title string) (uuid.UUID, error) {
	var out rest.StaffResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/staff", nil, rest.StaffRequest{Title: title}, &out); err != nil {
		return uuid.Nil, err
	}
	return out.ID, nil
}

func (c *Client) FetchSchedule(ctx context.Context, staffID uuid.UUID) (domain.WeeklySchedule, error) {
	var out rest.ScheduleResponse
	if err := c.do(ctx, http.MethodGet, staffPath(staffID, "schedule"), nil, nil, &out); err != nil {
		return domain.WeeklySchedule{}, err
	}
	return out.Schedule, nil
}

// SaveSchedule replaces the whole week and returns the stored document.
func (c *Client) SaveSchedule(ctx context.Context, staffID uuid.UUID, week domain.WeeklySchedule) (domain.WeeklySchedule, error) {
	var out rest.ScheduleResponse
	if err := c.do(ctx, http.MethodPut, staffPath(staffID, "schedule"), nil, week, &out); err != nil {
		return domain.WeeklySchedule{}, err
	}
	return out.Schedule, nil
}

func (c *Client) FetchAppointments(ctx context.Context, staffID uuid.UUID, date time.Time) ([]domain.Appointment, error) {
	q := url.Values{"date": {date.Format(time.DateOnly)}}
	var out rest.AppointmentsResponse
	if err := c.do(ctx, http.MethodGet, staffPath(staffID, "appointments")+"?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	appts := make([]domain.Appointment, 0, len(out.Appointments))
	for _, a := range out.Appointments {
		appts = append(appts, a.ToAppointment())
	}
	return appts, nil
}

func (c *Client) ListAvailableSlots(ctx context.Context, staffID uuid.UUID, date time.Time, durationMinutes int) ([]time.Time, error) {
	q := url.Values{
		"date":     {date.Format(time.DateOnly)},
		"duration": {strconv.Itoa(durationMinutes)},
	}
	var out rest.SlotsResponse
	if err := c.do(ctx, http.MethodGet, staffPath(staffID, "available-slots")+"?"+q.Encode(), nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Slots, nil
}

// CreateAppointment books a window. A lost race returns *ConflictError with
// the fresh slots. Reusing idempotencyKey with the same body returns the
// original appointment.
func (c *Client) CreateAppointment(ctx context.Context, staffID uuid.UUID, req rest.CreateAppointmentRequest, idempotencyKey string) (domain.Appointment, error) {
	var headers map[string]string
	if idempotencyKey != "" {
		headers = map[string]string{rest.IdempotencyKeyHeader: idempotencyKey}
	}
	var out rest.AppointmentResponse
	if err := c.do(ctx, http.MethodPost, staffPath(staffID, "appointments"), headers, req, &out); err != nil {
		return domain.Appointment{}, err
	}
	return out.ToAppointment(), nil
}

func (c *Client) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	var out rest.AppointmentResponse
	path := "/api/v1/appointments/" + appointmentID.String() + "/status"
	if err := c.do(ctx, http.MethodPatch, path, nil, rest.UpdateStatusRequest{Status: status}, &out); err != nil {
		return domain.Appointment{}, err
	}
	return out.ToAppointment(), nil
}

func staffPath(staffID uuid.UUID, resource string) string {
	return "/api/v1/staff/" + staffID.String() + "/" + resource
}

func (c *Client) do(ctx context.Context, method, path string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", ErrNetwork, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.WarnContext(ctx, "request failed", slog.String("method", method), slog.String("path", path), slog.Any("err", err))
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", ErrInvalidResponse, err)
		}
		return nil
	}

	return c.statusError(ctx, method, path, resp)
}

func (c *Client) statusError(ctx context.Context, method, path string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var e rest.ErrorResponse
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &e)
	}

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return &ValidationError{Message: e.Error}
	case resp.StatusCode == http.StatusUnprocessableEntity && e.Code == rest.CodeIdempotencyConflict:
		return store.ErrIdempotencyConflict
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return &ValidationError{Message: e.Error, Days: dayErrors(e.Days)}
	case resp.StatusCode == http.StatusNotFound:
		return store.ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		slots := e.Slots
		if slots == nil {
			slots = []time.Time{}
		}
		return &ConflictError{Message: e.Error, Slots: slots}
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= http.StatusInternalServerError:
		c.log.WarnContext(ctx, "server error",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", ErrNetwork, resp.StatusCode)
	default:
		return fmt.Errorf("%w: unexpected status code %d: %s", ErrInvalidResponse, resp.StatusCode, string(raw))
	}
}
