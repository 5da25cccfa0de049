package db

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the closed set of appointment lifecycle states.
type AppointmentStatus string

const (
	AppointmentPending    AppointmentStatus = "pending"
	AppointmentConfirmed  AppointmentStatus = "confirmed"
	AppointmentCheckedIn  AppointmentStatus = "checked_in"
	AppointmentInProgress AppointmentStatus = "in_progress"
	AppointmentCompleted  AppointmentStatus = "completed"
	AppointmentCancelled  AppointmentStatus = "cancelled"
	AppointmentNoShow     AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentCheckedIn,
		AppointmentInProgress, AppointmentCompleted, AppointmentCancelled,
		AppointmentNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is defined from s.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

// ActiveAppointmentStatuses are the states that occupy a time slot for
// availability checks.
var ActiveAppointmentStatuses = []AppointmentStatus{
	AppointmentPending,
	AppointmentConfirmed,
	AppointmentCheckedIn,
	AppointmentInProgress,
}

// Channel is a notification delivery medium.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelPush     Channel = "push"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelPush, ChannelWhatsApp:
		return true
	}
	return false
}

// Priority orders queue items within the dispatcher batch.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank returns the sort weight of p, higher dispatches first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// QueueStatus is the lifecycle state of a notification queue item.
type QueueStatus string

const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueSent       QueueStatus = "sent"
	QueueFailed     QueueStatus = "failed"
	QueueCancelled  QueueStatus = "cancelled"
)

func (s QueueStatus) Terminal() bool {
	switch s {
	case QueueSent, QueueFailed, QueueCancelled:
		return true
	}
	return false
}

// Reminder ledger entity types.
const (
	EntityAppointment = "appointment"
	EntityVaccine     = "vaccine"
)

// Appointment is a scheduled visit for a pet, scoped to one clinic tenant.
type Appointment struct {
	ID       uuid.UUID  `json:"id"`
	TenantID uuid.UUID  `json:"tenant_id"`
	PetID    uuid.UUID  `json:"pet_id"`
	VetID    *uuid.UUID `json:"vet_id,omitempty"`

	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Status    AppointmentStatus `json:"status"`
	Reason    string            `json:"reason"`
	Notes     string            `json:"notes"`

	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	CreatedBy uuid.UUID  `json:"created_by"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedBy *uuid.UUID `json:"updated_by,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Pet is the read model the scheduling core needs from the pet registry:
// tenancy, ownership, and the owner's contact addresses.
type Pet struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	Name       string    `json:"name"`
	OwnerName  string    `json:"owner_name"`
	OwnerEmail string    `json:"owner_email"`
	OwnerPhone string    `json:"owner_phone"`
}

// VaccineRecord is a recurring-care item with a due date that drives
// recurring-care reminders.
type VaccineRecord struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	PetID       uuid.UUID `json:"pet_id"`
	Name        string    `json:"name"`
	NextDueDate time.Time `json:"next_due_date"`
}

// ReminderLedgerEntry is a write-once idempotency guard: its existence
// means "this exact reminder was already produced". Never updated or
// deleted.
type ReminderLedgerEntry struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	EntityType  string    `json:"entity_type"`
	EntityID    uuid.UUID `json:"entity_id"`
	ReminderKey string    `json:"reminder_key"`
	CreatedAt   time.Time `json:"created_at"`
}

// QueueItem is one pending delivery in the persisted notification queue.
// Created by the reminder generator or API callers, mutated only by the
// dispatcher.
type QueueItem struct {
	ID       uuid.UUID `json:"id"`
	TenantID uuid.UUID `json:"tenant_id"`
	Channel  Channel   `json:"channel"`

	RecipientID      *uuid.UUID `json:"recipient_id,omitempty"`
	RecipientAddress string     `json:"recipient_address"`

	TemplateID *string  `json:"template_id,omitempty"`
	Subject    string   `json:"subject,omitempty"`
	Body       string   `json:"body"`
	Priority   Priority `json:"priority"`

	ScheduledFor *time.Time        `json:"scheduled_for,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	Status            QueueStatus `json:"status"`
	RetryCount        int         `json:"retry_count"`
	LastError         *string     `json:"last_error,omitempty"`
	ProviderMessageID *string     `json:"provider_message_id,omitempty"`
	FailedAt          *time.Time  `json:"failed_at,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
}

// DeliveryLog is the immutable record of one delivery attempt. The
// mutable queue item loses per-attempt detail across retries; this does
// not.
type DeliveryLog struct {
	ID          uuid.UUID         `json:"id"`
	TenantID    uuid.UUID         `json:"tenant_id"`
	QueueItemID uuid.UUID         `json:"queue_item_id"`
	Channel     Channel           `json:"channel"`
	Recipient   string            `json:"recipient"`
	Subject     string            `json:"subject,omitempty"`
	Status      QueueStatus       `json:"status"`
	Error       *string           `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
