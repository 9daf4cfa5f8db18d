package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"salonbook/backend/internal/domain"
	"salonbook/backend/internal/store"
)

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

func (r *ScheduleRepo) GetSchedule(ctx context.Context, staffID uuid.UUID) (domain.StaffSchedule, error) {
	var s domain.StaffSchedule
	err := r.db.NewSelect().
		Model(&s).
		Where("staff_id = ?", staffID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StaffSchedule{}, store.ErrNotFound
	}
	if err != nil {
		return domain.StaffSchedule{}, err
	}
	return s, nil
}

func (r *ScheduleRepo) SaveSchedule(ctx context.Context, schedule domain.StaffSchedule) (domain.StaffSchedule, error) {
	m := domain.StaffSchedule{
		StaffID:  schedule.StaffID,
		Document: schedule.Document,
	}

	if _, err := upsertScheduleQuery(r.db, &m).Exec(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
			return domain.StaffSchedule{}, store.ErrNotFound
		}
		return domain.StaffSchedule{}, err
	}
	return m, nil
}

func upsertScheduleQuery(db bun.IDB, m *domain.StaffSchedule) *bun.InsertQuery {
	return db.NewInsert().
		Model(m).
		On("CONFLICT (staff_id) DO UPDATE").
		Set("document = EXCLUDED.document").
		Set("updated_at = EXCLUDED.updated_at")
}

type StaffRepo struct {
	db *bun.DB
}

func NewStaffRepo(db *bun.DB) *StaffRepo {
	return &StaffRepo{db: db}
}

func (r *StaffRepo) CreateStaff(ctx context.Context, staff domain.StaffMember) (domain.StaffMember, error) {
	m := domain.StaffMember{
		ID:    staff.ID,
		Title: staff.Title,
	}
	if _, err := r.db.NewInsert().Model(&m).Exec(ctx); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return domain.StaffMember{}, store.ErrIdempotencyConflict
		}
		return domain.StaffMember{}, err
	}
	return m, nil
}

func (r *StaffRepo) GetStaff(ctx context.Context, staffID uuid.UUID) (domain.StaffMember, error) {
	var m domain.StaffMember
	err := r.db.NewSelect().
		Model(&m).
		Where("id = ?", staffID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StaffMember{}, store.ErrNotFound
	}
	if err != nil {
		return domain.StaffMember{}, err
	}
	return m, nil
}
