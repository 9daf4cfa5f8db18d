package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

const (
	codeExclusionViolation  = "23P01"
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"

	overlapConstraint = "appointments_no_overlap"
)

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type calendarTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.InStaffTransaction(ctx, appt.StaffID, func(ctx context.Context, tx store.CalendarTx) error {
		a, err := createIfFree(ctx, tx, appt)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) List(ctx context.Context, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.db.NewSelect().
		Model(&rows).
		Where("staff_id = ?", staffID).
		Where("starts_at < ?", windowEnd).
		Where("ends_at > ?", windowStart).
		OrderExpr("starts_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AppointmentRepo) Get(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.db.NewSelect().
		Model(&a).
		Where("id = ?", appointmentID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return a, nil
}

func (r *AppointmentRepo) UpdateStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	var out domain.Appointment
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		a, err := transitionStatus(ctx, calendarTx{tx: tx}, appointmentID, status)
		if err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return domain.Appointment{}, err
	}
	return out, nil
}

// InStaffTransaction runs fn while holding the transaction-scoped advisory
// lock for one staff calendar, serializing concurrent writers.
func (r *AppointmentRepo) InStaffTransaction(ctx context.Context, staffID uuid.UUID, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockStaffCalendar(ctx, tx, staffID); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
}

func lockStaffCalendar(ctx context.Context, tx bun.Tx, staffID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", staffID.String()).Exec(ctx)
	return err
}

// createIfFree replays an idempotent retry, rejects a window already held by
// a booked or completed appointment, and otherwise inserts. The exclusion
// constraint backs this up if the lock is ever bypassed.
func createIfFree(ctx context.Context, tx store.CalendarTx, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ID != uuid.Nil {
		existing, err := tx.GetAppointment(ctx, appt.ID)
		switch {
		case err == nil:
			if !sameBooking(existing, appt) {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		case !errors.Is(err, store.ErrNotFound):
			return domain.Appointment{}, err
		}
	}

	rows, err := tx.ListAppointments(ctx, appt.StaffID, appt.StartsAt, appt.EndsAt)
	if err != nil {
		return domain.Appointment{}, err
	}
	for _, row := range rows {
		if row.Blocks(appt.StartsAt, appt.EndsAt) {
			return domain.Appointment{}, store.ErrConflict
		}
	}

	return tx.CreateAppointment(ctx, appt)
}

func transitionStatus(ctx context.Context, tx store.CalendarTx, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	current, err := tx.GetAppointment(ctx, appointmentID)
	if err != nil {
		return domain.Appointment{}, err
	}
	if current.Status == status {
		return current, nil
	}
	if !current.Status.CanTransitionTo(status) {
		return domain.Appointment{}, domain.ErrStatusTransition
	}
	return tx.SetAppointmentStatus(ctx, appointmentID, status)
}

func sameBooking(a, b domain.Appointment) bool {
	return a.StaffID == b.StaffID &&
		a.CustomerID == b.CustomerID &&
		a.ServiceName == b.ServiceName &&
		a.Notes == b.Notes &&
		a.StartsAt.Equal(b.StartsAt) &&
		a.EndsAt.Equal(b.EndsAt)
}

func (r calendarTx) CreateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	m := domain.Appointment{
		ID:          appt.ID,
		StaffID:     appt.StaffID,
		CustomerID:  appt.CustomerID,
		ServiceName: appt.ServiceName,
		Notes:       appt.Notes,
		StartsAt:    appt.StartsAt,
		EndsAt:      appt.EndsAt,
		Status:      appt.Status,
		CreatedAt:   appt.CreatedAt,
		UpdatedAt:   appt.UpdatedAt,
	}
	if m.Status == "" {
		m.Status = domain.StatusBooked
	}

	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch {
			case pgErr.Code == codeExclusionViolation && pgErr.ConstraintName == overlapConstraint:
				return domain.Appointment{}, store.ErrConflict
			case pgErr.Code == codeForeignKeyViolation:
				return domain.Appointment{}, store.ErrNotFound
			case pgErr.Code == codeUniqueViolation:
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
		}
		return domain.Appointment{}, err
	}

	return m, nil
}

func (r calendarTx) ListAppointments(ctx context.Context, staffID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := r.tx.NewSelect().
		Model(&rows).
		Where("staff_id = ?", staffID).
		Where("starts_at < ?", windowEnd).
		Where("ends_at > ?", windowStart).
		OrderExpr("starts_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r calendarTx) GetAppointment(ctx context.Context, appointmentID uuid.UUID) (domain.Appointment, error) {
	var a domain.Appointment
	err := r.tx.NewSelect().
		Model(&a).
		Where("id = ?", appointmentID).
		For("UPDATE").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Appointment{}, store.ErrNotFound
	}
	if err != nil {
		return domain.Appointment{}, err
	}
	return a, nil
}

func (r calendarTx) SetAppointmentStatus(ctx context.Context, appointmentID uuid.UUID, status domain.AppointmentStatus) (domain.Appointment, error) {
	m := domain.Appointment{ID: appointmentID, Status: status}
	res, err := r.tx.NewUpdate().
		Model(&m).
		Column("status", "updated_at").
		WherePK().
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Appointment{}, err
	}
	if affected == 0 {
		return domain.Appointment{}, store.ErrNotFound
	}
	return m, nil
}
