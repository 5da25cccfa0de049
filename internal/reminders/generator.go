// Package reminders scans upcoming appointments and due vaccines and
// enqueues notifications for them, at most once per (entity, lead) pair.
package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/db"
	"github.com/vetly/vetly/internal/metrics"
)

// AppointmentSource lists upcoming appointments across all tenants.
type AppointmentSource interface {
	ListAppointmentsStartingBetween(ctx context.Context, from, to time.Time, statuses []db.AppointmentStatus) ([]*db.Appointment, error)
}

// PetSource resolves the pet and its owner's contact addresses.
type PetSource interface {
	GetPet(ctx context.Context, id uuid.UUID) (*db.Pet, error)
	ListTenants(ctx context.Context) ([]uuid.UUID, error)
}

// VaccineSource lists vaccine records due on a given day.
type VaccineSource interface {
	ListVaccinesDueOn(ctx context.Context, tenantID uuid.UUID, day time.Time) ([]*db.VaccineRecord, error)
}

// Ledger is the write-once dedup guard. TryInsert returns false when the
// reminder was already produced by an earlier run.
type Ledger interface {
	TryInsertLedger(ctx context.Context, e *db.ReminderLedgerEntry) (bool, error)
}

// Queue accepts the notifications a run produces.
type Queue interface {
	EnqueueNotification(ctx context.Context, item *db.QueueItem) error
}

// Config tunes the generator's lead times. Zero values are replaced by
// the defaults.
type Config struct {
	// AppointmentLeads are the offsets before an appointment's start at
	// which a reminder fires. Each lead matches within +-Window.
	AppointmentLeads []time.Duration
	Window           time.Duration
	// VaccineLeadDays are the day offsets before a vaccine due date.
	VaccineLeadDays []int
	Interval        time.Duration
}

func DefaultConfig() Config {
	return Config{
		AppointmentLeads: []time.Duration{24 * time.Hour, 2 * time.Hour},
		Window:           30 * time.Minute,
		VaccineLeadDays:  []int{7, 3, 1, 0},
		Interval:         5 * time.Minute,
	}
}

// Stats summarizes one generator run.
type Stats struct {
	Checked int `json:"checked"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Generator produces reminder notifications. Safe to run concurrently
// with itself (e.g. two replicas): the ledger makes duplicate work a
// no-op.
type Generator struct {
	cfg          Config
	appointments AppointmentSource
	pets         PetSource
	vaccines     VaccineSource
	ledger       Ledger
	queue        Queue
	logger       *zap.Logger
	now          func() time.Time
}

func NewGenerator(cfg Config, appointments AppointmentSource, pets PetSource, vaccines VaccineSource, ledger Ledger, queue Queue, logger *zap.Logger) *Generator {
	def := DefaultConfig()
	if len(cfg.AppointmentLeads) == 0 {
		cfg.AppointmentLeads = def.AppointmentLeads
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if len(cfg.VaccineLeadDays) == 0 {
		cfg.VaccineLeadDays = def.VaccineLeadDays
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	return &Generator{
		cfg:          cfg,
		appointments: appointments,
		pets:         pets,
		vaccines:     vaccines,
		ledger:       ledger,
		queue:        queue,
		logger:       logger,
		now:          time.Now,
	}
}

// Run executes one scan over all leads and returns its stats. Individual
// entity failures are counted and logged, never fatal for the run.
func (g *Generator) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	for _, lead := range g.cfg.AppointmentLeads {
		if err := g.scanAppointments(ctx, lead, stats); err != nil {
			return stats, err
		}
	}
	if err := g.scanVaccines(ctx, stats); err != nil {
		return stats, err
	}

	g.logger.Info("reminder run finished",
		zap.Int("checked", stats.Checked),
		zap.Int("created", stats.Created),
		zap.Int("skipped", stats.Skipped),
		zap.Int("errors", stats.Errors),
	)
	metrics.RemindersGenerated.Add(float64(stats.Created))
	return stats, nil
}

// Start runs the generator on a ticker until ctx is cancelled.
func (g *Generator) Start(ctx context.Context) {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	g.logger.Info("reminder generator started", zap.Duration("interval", g.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			g.logger.Info("reminder generator stopped")
			return
		case <-ticker.C:
			if _, err := g.Run(ctx); err != nil {
				g.logger.Error("reminder run failed", zap.Error(err))
			}
		}
	}
}

func (g *Generator) scanAppointments(ctx context.Context, lead time.Duration, stats *Stats) error {
	now := g.now()
	from := now.Add(lead - g.cfg.Window)
	to := now.Add(lead + g.cfg.Window)

	upcoming, err := g.appointments.ListAppointmentsStartingBetween(ctx, from, to,
		[]db.AppointmentStatus{db.AppointmentPending, db.AppointmentConfirmed})
	if err != nil {
		return fmt.Errorf("list upcoming appointments: %w", err)
	}

	leadHours := int(lead / time.Hour)
	for _, a := range upcoming {
		stats.Checked++
		key := fmt.Sprintf("apt-%s-%dh", a.ID, leadHours)

		fresh, err := g.ledger.TryInsertLedger(ctx, &db.ReminderLedgerEntry{
			TenantID:    a.TenantID,
			EntityType:  db.EntityAppointment,
			EntityID:    a.ID,
			ReminderKey: key,
		})
		if err != nil {
			stats.Errors++
			g.logger.Error("ledger insert failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if !fresh {
			stats.Skipped++
			continue
		}

		pet, err := g.pets.GetPet(ctx, a.PetID)
		if err != nil {
			stats.Errors++
			g.logger.Error("pet lookup failed",
				zap.String("appointment_id", a.ID.String()), zap.Error(err))
			continue
		}

		stats.Created += g.enqueueAppointmentReminder(ctx, a, pet, leadHours, stats)
	}
	return nil
}

// enqueueAppointmentReminder fans one reminder out to the owner's
// channels and returns how many notifications were enqueued.
func (g *Generator) enqueueAppointmentReminder(ctx context.Context, a *db.Appointment, pet *db.Pet, leadHours int, stats *Stats) int {
	when := a.StartTime.Format("02/01/2006 15:04")
	meta := map[string]string{
		"entity_type":    db.EntityAppointment,
		"appointment_id": a.ID.String(),
		"pet_id":         pet.ID.String(),
		"lead_hours":     fmt.Sprintf("%d", leadHours),
	}

	priority := db.PriorityNormal
	if leadHours <= 2 {
		priority = db.PriorityHigh
	}

	created := 0
	if pet.OwnerEmail != "" {
		item := &db.QueueItem{
			ID:               uuid.New(),
			TenantID:         a.TenantID,
			Channel:          db.ChannelEmail,
			RecipientID:      &pet.OwnerID,
			RecipientAddress: pet.OwnerEmail,
			Subject:          fmt.Sprintf("Recordatorio de cita: %s", pet.Name),
			Body: fmt.Sprintf("Hola %s, te recordamos la cita de %s el %s. Motivo: %s.",
				pet.OwnerName, pet.Name, when, a.Reason),
			Priority: priority,
			Metadata: meta,
			Status:   db.QueuePending,
		}
		if err := g.queue.EnqueueNotification(ctx, item); err != nil {
			stats.Errors++
			g.logger.Error("enqueue failed", zap.String("channel", "email"), zap.Error(err))
		} else {
			created++
		}
	}

	// SMS only for the short lead, where it is actionable.
	if pet.OwnerPhone != "" && leadHours <= 2 {
		item := &db.QueueItem{
			ID:               uuid.New(),
			TenantID:         a.TenantID,
			Channel:          db.ChannelSMS,
			RecipientID:      &pet.OwnerID,
			RecipientAddress: pet.OwnerPhone,
			Body:             fmt.Sprintf("Recordatorio: cita de %s hoy a las %s.", pet.Name, a.StartTime.Format("15:04")),
			Priority:         db.PriorityHigh,
			Metadata:         meta,
			Status:           db.QueuePending,
		}
		if err := g.queue.EnqueueNotification(ctx, item); err != nil {
			stats.Errors++
			g.logger.Error("enqueue failed", zap.String("channel", "sms"), zap.Error(err))
		} else {
			created++
		}
	}
	return created
}

func (g *Generator) scanVaccines(ctx context.Context, stats *Stats) error {
	tenants, err := g.pets.ListTenants(ctx)
	if err != nil {
		return fmt.Errorf("list tenants: %w", err)
	}

	today := g.now().Truncate(24 * time.Hour)
	for _, tenantID := range tenants {
		for _, leadDays := range g.cfg.VaccineLeadDays {
			due, err := g.vaccines.ListVaccinesDueOn(ctx, tenantID, today.AddDate(0, 0, leadDays))
			if err != nil {
				stats.Errors++
				g.logger.Error("vaccine scan failed",
					zap.String("tenant_id", tenantID.String()),
					zap.Int("lead_days", leadDays), zap.Error(err))
				continue
			}

			for _, v := range due {
				stats.Checked++
				key := fmt.Sprintf("vaccine-%s-%dd", v.ID, leadDays)

				fresh, err := g.ledger.TryInsertLedger(ctx, &db.ReminderLedgerEntry{
					TenantID:    v.TenantID,
					EntityType:  db.EntityVaccine,
					EntityID:    v.ID,
					ReminderKey: key,
				})
				if err != nil {
					stats.Errors++
					g.logger.Error("ledger insert failed", zap.String("key", key), zap.Error(err))
					continue
				}
				if !fresh {
					stats.Skipped++
					continue
				}

				pet, err := g.pets.GetPet(ctx, v.PetID)
				if err != nil {
					stats.Errors++
					g.logger.Error("pet lookup failed",
						zap.String("vaccine_id", v.ID.String()), zap.Error(err))
					continue
				}

				stats.Created += g.enqueueVaccineReminder(ctx, v, pet, leadDays, stats)
			}
		}
	}
	return nil
}

// vaccinePriority maps the remaining days to urgency: far-out reminders
// can wait behind everything else.
func vaccinePriority(leadDays int) db.Priority {
	switch {
	case leadDays >= 7:
		return db.PriorityLow
	case leadDays >= 2:
		return db.PriorityNormal
	default:
		return db.PriorityHigh
	}
}

func (g *Generator) enqueueVaccineReminder(ctx context.Context, v *db.VaccineRecord, pet *db.Pet, leadDays int, stats *Stats) int {
	due := v.NextDueDate.Format("02/01/2006")
	meta := map[string]string{
		"entity_type": db.EntityVaccine,
		"vaccine_id":  v.ID.String(),
		"pet_id":      pet.ID.String(),
		"lead_days":   fmt.Sprintf("%d", leadDays),
	}

	created := 0
	if pet.OwnerEmail != "" {
		item := &db.QueueItem{
			ID:               uuid.New(),
			TenantID:         v.TenantID,
			Channel:          db.ChannelEmail,
			RecipientID:      &pet.OwnerID,
			RecipientAddress: pet.OwnerEmail,
			Subject:          fmt.Sprintf("Vacuna próxima a vencer: %s", pet.Name),
			Body: fmt.Sprintf("Hola %s, la vacuna %s de %s vence el %s. Agenda una cita para aplicarla.",
				pet.OwnerName, v.Name, pet.Name, due),
			Priority: vaccinePriority(leadDays),
			Metadata: meta,
			Status:   db.QueuePending,
		}
		if err := g.queue.EnqueueNotification(ctx, item); err != nil {
			stats.Errors++
			g.logger.Error("enqueue failed", zap.String("channel", "email"), zap.Error(err))
		} else {
			created++
		}
	}

	if pet.OwnerPhone != "" && leadDays <= 1 {
		item := &db.QueueItem{
			ID:               uuid.New(),
			TenantID:         v.TenantID,
			Channel:          db.ChannelSMS,
			RecipientID:      &pet.OwnerID,
			RecipientAddress: pet.OwnerPhone,
			Body:             fmt.Sprintf("La vacuna %s de %s vence el %s.", v.Name, pet.Name, due),
			Priority:         db.PriorityHigh,
			Metadata:         meta,
			Status:           db.QueuePending,
		}
		if err := g.queue.EnqueueNotification(ctx, item); err != nil {
			stats.Errors++
			g.logger.Error("enqueue failed", zap.String("channel", "sms"), zap.Error(err))
		} else {
			created++
		}
	}
	return created
}
