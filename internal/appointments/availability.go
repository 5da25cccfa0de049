package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MaxDuration is the longest bookable appointment.
const MaxDuration = 4 * time.Hour

// OverlapStore is the slice of the appointment store the checker needs.
type OverlapStore interface {
	CountOverlapping(ctx context.Context, tenantID uuid.UUID, start, end time.Time, vetID, excludeID *uuid.UUID) (int, error)
}

// AvailabilityChecker decides whether a time window is free for a tenant,
// optionally narrowed to one vet. Intervals are half-open: an appointment
// ending exactly when the window starts does not conflict.
//
// The check is advisory. The insert can still lose a race against a
// concurrent booking; the database exclusion constraint is the hard
// guarantee and surfaces as the same Conflict error.
type AvailabilityChecker struct {
	store OverlapStore
}

func NewAvailabilityChecker(store OverlapStore) *AvailabilityChecker {
	return &AvailabilityChecker{store: store}
}

// IsAvailable returns true when no active appointment of the tenant (and
// vet, when given) intersects [start, end). excludeID skips the
// appointment's own row when re-checking a reschedule.
func (c *AvailabilityChecker) IsAvailable(ctx context.Context, tenantID uuid.UUID, start, end time.Time, vetID, excludeID *uuid.UUID) (bool, error) {
	n, err := c.store.CountOverlapping(ctx, tenantID, start, end, vetID, excludeID)
	if err != nil {
		return false, err
	}
	return n == 0, nil
}
