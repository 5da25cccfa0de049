// Package appointments owns the appointment lifecycle: creation and
// update validation, the role-gated state machine, slot-conflict
// prevention, and per-tenant statistics.
package appointments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/db"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateAppointment(ctx context.Context, a *db.Appointment) error
	GetAppointment(ctx context.Context, id uuid.UUID) (*db.Appointment, error)
	UpdateAppointment(ctx context.Context, a *db.Appointment) error
	DeleteAppointment(ctx context.Context, id uuid.UUID) error
	ListAppointments(ctx context.Context, tenantID uuid.UUID, f db.AppointmentFilter) ([]*db.Appointment, error)
	CountOverlapping(ctx context.Context, tenantID uuid.UUID, start, end time.Time, vetID, excludeID *uuid.UUID) (int, error)
	CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[db.AppointmentStatus]int, error)
	CountStartingBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error)
}

// PetStore resolves pets for tenancy and ownership checks.
type PetStore interface {
	GetPet(ctx context.Context, id uuid.UUID) (*db.Pet, error)
}

// Actor identifies the caller of an operation. IsStaff comes from the
// authenticated session of the surrounding platform; this core only
// consumes the flag.
type Actor struct {
	ID      uuid.UUID
	IsStaff bool
}

// Service implements the appointment lifecycle.
type Service struct {
	store        Store
	pets         PetStore
	availability *AvailabilityChecker
	logger       *zap.Logger
	now          func() time.Time
}

func NewService(store Store, pets PetStore, logger *zap.Logger) *Service {
	return &Service{
		store:        store,
		pets:         pets,
		availability: NewAvailabilityChecker(store),
		logger:       logger,
		now:          time.Now,
	}
}

// Cross-tenant staff operations fail with the same business-rule error
// regardless of whether the appointment exists, so probing ids across
// tenants leaks nothing.
func errCrossTenant() error {
	return apperr.BusinessRule("operación no permitida")
}

func errStaffOnly() error {
	return apperr.BusinessRule("solo el personal puede realizar esta acción")
}

// validateWindow checks the shared time-window rules for create and
// reschedule.
func (s *Service) validateWindow(start, end time.Time) error {
	if !start.After(s.now()) {
		return apperr.Validation("la cita debe programarse en el futuro")
	}
	if !end.After(start) {
		return apperr.Validation("la hora de fin debe ser posterior a la de inicio")
	}
	if end.Sub(start) > MaxDuration {
		return apperr.Validation("la duración máxima de una cita es de 4 horas")
	}
	return nil
}

// CreateInput carries the caller-supplied fields for a new appointment.
type CreateInput struct {
	PetID     uuid.UUID
	VetID     *uuid.UUID
	StartTime time.Time
	EndTime   time.Time
	Reason    string
	Notes     string
}

// Create validates the window, the pet's tenancy, and slot availability,
// then persists the appointment in pending state.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, in CreateInput, actor Actor) (*db.Appointment, error) {
	if err := s.validateWindow(in.StartTime, in.EndTime); err != nil {
		return nil, err
	}

	pet, err := s.pets.GetPet(ctx, in.PetID)
	if err != nil {
		return nil, err
	}
	if pet.TenantID != tenantID {
		return nil, apperr.BusinessRule("la mascota no pertenece a esta clínica")
	}

	free, err := s.availability.IsAvailable(ctx, tenantID, in.StartTime, in.EndTime, in.VetID, nil)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, apperr.Conflict("horario no disponible")
	}

	now := s.now()
	a := &db.Appointment{
		ID:        uuid.New(),
		TenantID:  tenantID,
		PetID:     in.PetID,
		VetID:     in.VetID,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Status:    db.AppointmentPending,
		Reason:    in.Reason,
		Notes:     in.Notes,
		CreatedBy: actor.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateAppointment(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("appointment created",
		zap.String("appointment_id", a.ID.String()),
		zap.String("tenant_id", tenantID.String()),
		zap.Time("start_time", a.StartTime),
	)
	return a, nil
}

// Get returns a tenant's appointment by id. A foreign tenant's id reads
// as not found.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*db.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.TenantID != tenantID {
		return nil, apperr.NotFound("cita no encontrada")
	}
	return a, nil
}

// List returns a tenant's appointments matching the filter.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, f db.AppointmentFilter) ([]*db.Appointment, error) {
	return s.store.ListAppointments(ctx, tenantID, f)
}

// UpdateInput carries a partial appointment update. Nil fields are left
// unchanged.
type UpdateInput struct {
	Status    *db.AppointmentStatus
	StartTime *time.Time
	EndTime   *time.Time
	VetID     *uuid.UUID
	Reason    *string
	Notes     *string
}

// Update applies a partial update. A status change is validated against
// the transition table; a time change re-validates the window and
// re-checks availability excluding the appointment's own slot. When a
// confirmed appointment is rescheduled without an explicit status, it
// drops back to pending for re-confirmation.
func (s *Service) Update(ctx context.Context, tenantID, id uuid.UUID, in UpdateInput, actor Actor) (*db.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.TenantID != tenantID {
		return nil, errCrossTenant()
	}

	now := s.now()

	if in.Status != nil && *in.Status != a.Status {
		if !in.Status.Valid() {
			return nil, apperr.Validation("estado desconocido: %s", *in.Status)
		}
		if err := validateTransition(a.Status, *in.Status, actor.IsStaff); err != nil {
			return nil, err
		}
		stampTransition(a, *in.Status, now)
	}

	newStart, newEnd := a.StartTime, a.EndTime
	if in.StartTime != nil {
		newStart = *in.StartTime
	}
	if in.EndTime != nil {
		newEnd = *in.EndTime
	}
	rescheduled := !newStart.Equal(a.StartTime) || !newEnd.Equal(a.EndTime)

	if rescheduled {
		if err := s.validateWindow(newStart, newEnd); err != nil {
			return nil, err
		}
		vetID := a.VetID
		if in.VetID != nil {
			vetID = in.VetID
		}
		free, err := s.availability.IsAvailable(ctx, tenantID, newStart, newEnd, vetID, &a.ID)
		if err != nil {
			return nil, err
		}
		if !free {
			return nil, apperr.Conflict("horario no disponible")
		}
		a.StartTime = newStart
		a.EndTime = newEnd
		// A rescheduled confirmation needs re-confirming.
		if in.Status == nil && a.Status == db.AppointmentConfirmed {
			a.Status = db.AppointmentPending
		}
	}

	if in.VetID != nil {
		a.VetID = in.VetID
	}
	if in.Reason != nil {
		a.Reason = *in.Reason
	}
	if in.Notes != nil {
		a.Notes = *in.Notes
	}

	a.UpdatedBy = &actor.ID
	a.UpdatedAt = now

	if err := s.store.UpdateAppointment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Cancel cancels an appointment on behalf of the pet's owner or staff.
// Past and already-terminal appointments cannot be cancelled. The reason
// is stored prefixed into the notes.
func (s *Service) Cancel(ctx context.Context, tenantID, id uuid.UUID, actor Actor, reason string) (*db.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.TenantID != tenantID {
		return nil, errCrossTenant()
	}

	if !actor.IsStaff {
		pet, err := s.pets.GetPet(ctx, a.PetID)
		if err != nil {
			return nil, err
		}
		if pet.OwnerID != actor.ID {
			return nil, apperr.BusinessRule("no tienes permiso para cancelar esta cita")
		}
	}

	if a.StartTime.Before(s.now()) {
		return nil, apperr.BusinessRule("no se puede cancelar una cita pasada")
	}
	if a.Status.Terminal() {
		return nil, apperr.BusinessRule("esta cita ya no puede ser cancelada")
	}

	switch {
	case reason != "":
		a.Notes = "[Cancelado] " + reason
	case a.Status == db.AppointmentPending:
		a.Notes = "[Cancelado por el cliente]"
	default:
		a.Notes = "[Cancelado]"
	}

	now := s.now()
	a.Status = db.AppointmentCancelled
	a.CancelledAt = &now
	a.UpdatedBy = &actor.ID
	a.UpdatedAt = now

	if err := s.store.UpdateAppointment(ctx, a); err != nil {
		return nil, err
	}

	s.logger.Info("appointment cancelled",
		zap.String("appointment_id", a.ID.String()),
		zap.Bool("by_staff", actor.IsStaff),
	)
	return a, nil
}

// transition loads a tenant's appointment and moves it along one staff
// edge of the state machine.
func (s *Service) transition(ctx context.Context, tenantID, id uuid.UUID, actor Actor, to db.AppointmentStatus) (*db.Appointment, error) {
	if !actor.IsStaff {
		return nil, errStaffOnly()
	}

	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.TenantID != tenantID {
		return nil, errCrossTenant()
	}

	if err := validateTransition(a.Status, to, true); err != nil {
		return nil, err
	}

	now := s.now()
	stampTransition(a, to, now)
	a.UpdatedBy = &actor.ID
	a.UpdatedAt = now

	if err := s.store.UpdateAppointment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// CheckIn marks the patient as arrived. Staff only.
func (s *Service) CheckIn(ctx context.Context, tenantID, id uuid.UUID, actor Actor) (*db.Appointment, error) {
	return s.transition(ctx, tenantID, id, actor, db.AppointmentCheckedIn)
}

// Start begins the consultation. Staff only.
func (s *Service) Start(ctx context.Context, tenantID, id uuid.UUID, actor Actor) (*db.Appointment, error) {
	return s.transition(ctx, tenantID, id, actor, db.AppointmentInProgress)
}

// Complete closes the appointment, optionally appending closing notes.
// Staff only.
func (s *Service) Complete(ctx context.Context, tenantID, id uuid.UUID, actor Actor, closingNotes string) (*db.Appointment, error) {
	a, err := s.transition(ctx, tenantID, id, actor, db.AppointmentCompleted)
	if err != nil {
		return nil, err
	}
	if closingNotes != "" {
		if a.Notes != "" {
			a.Notes += "\n[Notas de cierre] " + closingNotes
		} else {
			a.Notes = "[Notas de cierre] " + closingNotes
		}
		if err := s.store.UpdateAppointment(ctx, a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// MarkNoShow records that the patient never arrived. Staff only.
func (s *Service) MarkNoShow(ctx context.Context, tenantID, id uuid.UUID, actor Actor) (*db.Appointment, error) {
	a, err := s.transition(ctx, tenantID, id, actor, db.AppointmentNoShow)
	if err != nil {
		return nil, err
	}
	a.Notes = "[No se presentó]"
	if err := s.store.UpdateAppointment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Delete removes an appointment record entirely. Staff only.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID, actor Actor) error {
	if !actor.IsStaff {
		return errStaffOnly()
	}
	a, err := s.store.GetAppointment(ctx, id)
	if err != nil {
		return err
	}
	if a.TenantID != tenantID {
		return errCrossTenant()
	}
	return s.store.DeleteAppointment(ctx, a.ID)
}

// Stats summarizes a tenant's appointments.
type Stats struct {
	Total    int                          `json:"total"`
	ByStatus map[db.AppointmentStatus]int `json:"by_status"`
	Today    int                          `json:"today"`
	ThisWeek int                          `json:"this_week"`
}

// GetStats aggregates counts by status plus today / this-week buckets
// counted from the start of the current day.
func (s *Service) GetStats(ctx context.Context, tenantID uuid.UUID) (*Stats, error) {
	byStatus, err := s.store.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, n := range byStatus {
		total += n
	}

	now := s.now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	today, err := s.store.CountStartingBetween(ctx, tenantID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	week, err := s.store.CountStartingBetween(ctx, tenantID, dayStart, dayStart.AddDate(0, 0, 7))
	if err != nil {
		return nil, err
	}

	return &Stats{
		Total:    total,
		ByStatus: byStatus,
		Today:    today,
		ThisWeek: week,
	}, nil
}

// stampTransition applies the status and its audit timestamp.
func stampTransition(a *db.Appointment, to db.AppointmentStatus, now time.Time) {
	a.Status = to
	switch to {
	case db.AppointmentCheckedIn:
		a.CheckedInAt = &now
	case db.AppointmentInProgress:
		a.StartedAt = &now
	case db.AppointmentCompleted:
		a.CompletedAt = &now
	case db.AppointmentCancelled:
		a.CancelledAt = &now
	}
}
