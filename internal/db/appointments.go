package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
)

// AppointmentRepo handles appointment persistence.
type AppointmentRepo struct {
	db     *DB
	logger *zap.Logger
}

func NewAppointmentRepo(db *DB, logger *zap.Logger) *AppointmentRepo {
	return &AppointmentRepo{db: db, logger: logger}
}

const appointmentColumns = `
	id, tenant_id, pet_id, vet_id, start_time, end_time, status,
	reason, notes, checked_in_at, started_at, completed_at, cancelled_at,
	created_by, created_at, updated_by, updated_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.TenantID, &a.PetID, &a.VetID,
		&a.StartTime, &a.EndTime, &a.Status,
		&a.Reason, &a.Notes,
		&a.CheckedInAt, &a.StartedAt, &a.CompletedAt, &a.CancelledAt,
		&a.CreatedBy, &a.CreatedAt, &a.UpdatedBy, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// isSlotConstraint reports whether err is the Postgres exclusion
// constraint guarding double-booked slots (see migrations).
func isSlotConstraint(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01" &&
		pgErr.ConstraintName == "appointments_no_overlap"
}

// CreateAppointment inserts a new appointment. A slot collision caught by
// the exclusion constraint surfaces as a Conflict error, the same class
// the advisory availability check raises.
func (r *AppointmentRepo) CreateAppointment(ctx context.Context, a *Appointment) error {
	query := `
		INSERT INTO appointments (
			id, tenant_id, pet_id, vet_id, start_time, end_time, status,
			reason, notes, created_by, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
		RETURNING created_at, updated_at`

	err := r.db.Pool().QueryRow(ctx, query,
		a.ID, a.TenantID, a.PetID, a.VetID, a.StartTime, a.EndTime, a.Status,
		a.Reason, a.Notes, a.CreatedBy, a.CreatedAt,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	if isSlotConstraint(err) {
		return apperr.Conflict("horario no disponible")
	}
	if err != nil {
		r.logger.Error("failed to create appointment",
			zap.Error(err),
			zap.String("appointment_id", a.ID.String()),
		)
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

// GetAppointment retrieves an appointment by id.
func (r *AppointmentRepo) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	a, err := scanAppointment(r.db.Pool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("cita no encontrada")
	}
	if err != nil {
		return nil, fmt.Errorf("query appointment: %w", err)
	}
	return a, nil
}

// UpdateAppointment persists the full mutable state of an appointment.
func (r *AppointmentRepo) UpdateAppointment(ctx context.Context, a *Appointment) error {
	query := `
		UPDATE appointments SET
			vet_id = $2, start_time = $3, end_time = $4, status = $5,
			reason = $6, notes = $7,
			checked_in_at = $8, started_at = $9, completed_at = $10, cancelled_at = $11,
			updated_by = $12, updated_at = $13
		WHERE id = $1`

	tag, err := r.db.Pool().Exec(ctx, query,
		a.ID, a.VetID, a.StartTime, a.EndTime, a.Status,
		a.Reason, a.Notes,
		a.CheckedInAt, a.StartedAt, a.CompletedAt, a.CancelledAt,
		a.UpdatedBy, a.UpdatedAt,
	)
	if isSlotConstraint(err) {
		return apperr.Conflict("horario no disponible")
	}
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("cita no encontrada")
	}
	return nil
}

// DeleteAppointment removes an appointment row. Staff-only at the
// service layer; here it is a plain hard delete.
func (r *AppointmentRepo) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Pool().Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("cita no encontrada")
	}
	return nil
}

// AppointmentFilter narrows ListAppointments.
type AppointmentFilter struct {
	Statuses []AppointmentStatus
	VetID    *uuid.UUID
	PetID    *uuid.UUID
	From     *time.Time
	To       *time.Time
	Limit    int
	Offset   int
}

// ListAppointments returns a tenant's appointments matching the filter,
// ordered by start time ascending.
func (r *AppointmentRepo) ListAppointments(ctx context.Context, tenantID uuid.UUID, f AppointmentFilter) ([]*Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE tenant_id = $1`
	args := []any{tenantID}

	if len(f.Statuses) > 0 {
		args = append(args, f.Statuses)
		query += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	if f.VetID != nil {
		args = append(args, *f.VetID)
		query += fmt.Sprintf(" AND vet_id = $%d", len(args))
	}
	if f.PetID != nil {
		args = append(args, *f.PetID)
		query += fmt.Sprintf(" AND pet_id = $%d", len(args))
	}
	if f.From != nil {
		args = append(args, *f.From)
		query += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	if f.To != nil {
		args = append(args, *f.To)
		query += fmt.Sprintf(" AND start_time < $%d", len(args))
	}
	query += " ORDER BY start_time ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountOverlapping counts active appointments of the tenant whose
// [start_time, end_time) range intersects [start, end). Half-open
// semantics: an appointment ending exactly at start does not count.
// vetID, when set, narrows the check to one vet; excludeID skips the
// appointment's own row on reschedule.
func (r *AppointmentRepo) CountOverlapping(ctx context.Context, tenantID uuid.UUID, start, end time.Time, vetID, excludeID *uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM appointments
		WHERE tenant_id = $1
		  AND status = ANY($2)
		  AND start_time < $4
		  AND end_time > $3`
	args := []any{tenantID, ActiveAppointmentStatuses, start, end}

	if vetID != nil {
		args = append(args, *vetID)
		query += fmt.Sprintf(" AND vet_id = $%d", len(args))
	}
	if excludeID != nil {
		args = append(args, *excludeID)
		query += fmt.Sprintf(" AND id <> $%d", len(args))
	}

	var n int
	if err := r.db.Pool().QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count overlapping appointments: %w", err)
	}
	return n, nil
}

// CountByStatus aggregates a tenant's appointments per status.
func (r *AppointmentRepo) CountByStatus(ctx context.Context, tenantID uuid.UUID) (map[AppointmentStatus]int, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT status, COUNT(*) FROM appointments WHERE tenant_id = $1 GROUP BY status`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[AppointmentStatus]int)
	for rows.Next() {
		var s AppointmentStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[s] = n
	}
	return counts, rows.Err()
}

// CountStartingBetween counts a tenant's appointments with start_time in
// [from, to).
func (r *AppointmentRepo) CountStartingBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (int, error) {
	var n int
	err := r.db.Pool().QueryRow(ctx,
		`SELECT COUNT(*) FROM appointments
		 WHERE tenant_id = $1 AND start_time >= $2 AND start_time < $3`,
		tenantID, from, to,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count starting between: %w", err)
	}
	return n, nil
}

// ListAppointmentsStartingBetween returns appointments across all tenants
// with start_time in [from, to) and status in statuses. Used by the
// reminder generator.
func (r *AppointmentRepo) ListAppointmentsStartingBetween(ctx context.Context, from, to time.Time, statuses []AppointmentStatus) ([]*Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE start_time >= $1 AND start_time < $2 AND status = ANY($3)
		ORDER BY start_time ASC`

	rows, err := r.db.Pool().Query(ctx, query, from, to, statuses)
	if err != nil {
		return nil, fmt.Errorf("query upcoming appointments: %w", err)
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
