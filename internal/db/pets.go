package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
)

// PetRepo reads the pet registry owned by the rest of the platform.
// The scheduling core only needs tenancy, ownership, owner contact
// details, and vaccine due dates.
type PetRepo struct {
	db     *DB
	logger *zap.Logger
}

func NewPetRepo(db *DB, logger *zap.Logger) *PetRepo {
	return &PetRepo{db: db, logger: logger}
}

// GetPet retrieves a pet with its owner's contact details.
func (r *PetRepo) GetPet(ctx context.Context, id uuid.UUID) (*Pet, error) {
	var p Pet
	err := r.db.Pool().QueryRow(ctx,
		`SELECT p.id, p.tenant_id, p.owner_id, p.name,
		        o.full_name, COALESCE(o.email, ''), COALESCE(o.phone, '')
		 FROM pets p
		 JOIN profiles o ON o.id = p.owner_id
		 WHERE p.id = $1`,
		id,
	).Scan(&p.ID, &p.TenantID, &p.OwnerID, &p.Name,
		&p.OwnerName, &p.OwnerEmail, &p.OwnerPhone)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("mascota no encontrada")
	}
	if err != nil {
		return nil, fmt.Errorf("query pet: %w", err)
	}
	return &p, nil
}

// ListTenants returns the ids of every tenant with at least one pet.
// The vaccine reminder pipeline walks tenants one at a time.
func (r *PetRepo) ListTenants(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Pool().Query(ctx, `SELECT DISTINCT tenant_id FROM pets`)
	if err != nil {
		return nil, fmt.Errorf("query tenants: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan tenant id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ListVaccinesDueOn returns a tenant's vaccine records whose next due
// date falls on the given calendar day.
func (r *PetRepo) ListVaccinesDueOn(ctx context.Context, tenantID uuid.UUID, day time.Time) ([]*VaccineRecord, error) {
	rows, err := r.db.Pool().Query(ctx,
		`SELECT id, tenant_id, pet_id, name, next_due_date
		 FROM vaccines
		 WHERE tenant_id = $1 AND next_due_date = $2::date`,
		tenantID, day,
	)
	if err != nil {
		return nil, fmt.Errorf("query vaccines due: %w", err)
	}
	defer rows.Close()

	var out []*VaccineRecord
	for rows.Next() {
		var v VaccineRecord
		if err := rows.Scan(&v.ID, &v.TenantID, &v.PetID, &v.Name, &v.NextDueDate); err != nil {
			return nil, fmt.Errorf("scan vaccine: %w", err)
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}
