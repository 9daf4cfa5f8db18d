package store

import (
	"context"

	"github.com/google/uuid"

	"salonbook/backend/internal/domain"
)

type StaffRepository interface {
	CreateStaff(ctx context.Context, staff domain.StaffMember) (domain.StaffMember, error)
	GetStaff(ctx context.Context, staffID uuid.UUID) (domain.StaffMember, error)
}

// ScheduleRepository stores a staff member's week as one document. Save
// replaces the whole document; there are no partial updates.
type ScheduleRepository interface {
	GetSchedule(ctx context.Context, staffID uuid.UUID) (domain.StaffSchedule, error)
	SaveSchedule(ctx context.Context, schedule domain.StaffSchedule) (domain.StaffSchedule, error)
}
