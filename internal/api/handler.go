// Package api exposes the HTTP surface: appointment scheduling,
// notification queue access, and the cron trigger endpoints.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/appointments"
	"github.com/vetly/vetly/internal/db"
	"github.com/vetly/vetly/internal/metrics"
	"github.com/vetly/vetly/internal/redis"
	"github.com/vetly/vetly/internal/reminders"
	"github.com/vetly/vetly/internal/sqs"
)

// AppointmentService is the scheduling surface the handler needs.
type AppointmentService interface {
	Create(ctx context.Context, tenantID uuid.UUID, in appointments.CreateInput, actor appointments.Actor) (*db.Appointment, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*db.Appointment, error)
	List(ctx context.Context, tenantID uuid.UUID, f db.AppointmentFilter) ([]*db.Appointment, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, in appointments.UpdateInput, actor appointments.Actor) (*db.Appointment, error)
	Cancel(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor, reason string) (*db.Appointment, error)
	CheckIn(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor) (*db.Appointment, error)
	Start(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor) (*db.Appointment, error)
	Complete(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor, notes string) (*db.Appointment, error)
	MarkNoShow(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor) (*db.Appointment, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor) error
	GetStats(ctx context.Context, tenantID uuid.UUID) (*appointments.Stats, error)
}

// NotificationStore is the queue surface the handler needs.
type NotificationStore interface {
	EnqueueNotification(ctx context.Context, item *db.QueueItem) error
	GetQueueItem(ctx context.Context, id uuid.UUID) (*db.QueueItem, error)
	ListQueueByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*db.QueueItem, error)
	CancelQueueItem(ctx context.Context, id uuid.UUID) error
}

// DeliveryLogStore reads the append-only delivery history.
type DeliveryLogStore interface {
	ListDeliveryLogByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*db.DeliveryLog, error)
}

// ReminderRunner triggers one reminder-generation pass.
type ReminderRunner interface {
	Run(ctx context.Context) (*reminders.Stats, error)
}

// DispatchRunner drains one queue batch.
type DispatchRunner interface {
	ProcessBatch(ctx context.Context) (int, error)
}

// ErrorResponse is the problem+json error body.
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds the API dependencies. The idempotency service and SQS
// producer are optional and nil when not configured.
type Handler struct {
	logger        *zap.Logger
	appointments  AppointmentService
	notifications NotificationStore
	deliveryLog   DeliveryLogStore
	reminders     ReminderRunner
	dispatcher    DispatchRunner
	idempotency   *redis.IdempotencyService
	producer      *sqs.Producer
	cronSecret    string
}

func NewHandler(logger *zap.Logger, svc AppointmentService, notifications NotificationStore, deliveryLog DeliveryLogStore, rem ReminderRunner, disp DispatchRunner, cronSecret string) *Handler {
	return &Handler{
		logger:        logger,
		appointments:  svc,
		notifications: notifications,
		deliveryLog:   deliveryLog,
		reminders:     rem,
		dispatcher:    disp,
		cronSecret:    cronSecret,
	}
}

// WithIdempotency enables Idempotency-Key support on create endpoints.
func (h *Handler) WithIdempotency(svc *redis.IdempotencyService) *Handler {
	h.idempotency = svc
	return h
}

// WithProducer enables wake-up events on notification enqueue.
func (h *Handler) WithProducer(p *sqs.Producer) *Handler {
	h.producer = p
	return h
}

// Routes mounts all endpoints under /v1.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/appointments", func(r chi.Router) {
		r.Post("/", h.CreateAppointment)
		r.Get("/", h.ListAppointments)
		r.Get("/stats", h.AppointmentStats)
		r.Get("/{id}", h.GetAppointment)
		r.Patch("/{id}", h.UpdateAppointment)
		r.Delete("/{id}", h.DeleteAppointment)
		r.Post("/{id}/cancel", h.CancelAppointment)
		r.Post("/{id}/check-in", h.CheckInAppointment)
		r.Post("/{id}/start", h.StartAppointment)
		r.Post("/{id}/complete", h.CompleteAppointment)
		r.Post("/{id}/no-show", h.NoShowAppointment)
	})

	r.Route("/notifications", func(r chi.Router) {
		r.Post("/", h.EnqueueNotification)
		r.Get("/", h.ListNotifications)
		r.Get("/log", h.ListDeliveryLog)
		r.Get("/{id}", h.GetNotification)
		r.Post("/{id}/cancel", h.CancelNotification)
	})

	r.Route("/cron", func(r chi.Router) {
		r.Use(h.cronAuth)
		r.Post("/reminders", h.RunReminders)
		r.Post("/dispatch", h.RunDispatch)
	})
}

// identity is the caller context resolved by the upstream gateway and
// forwarded in headers.
type identity struct {
	TenantID uuid.UUID
	Actor    appointments.Actor
}

func (h *Handler) identity(w http.ResponseWriter, r *http.Request) (*identity, bool) {
	tenantID, err := uuid.Parse(r.Header.Get("X-Tenant-ID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing tenant", "X-Tenant-ID header must be a valid UUID")
		return nil, false
	}
	userID, err := uuid.Parse(r.Header.Get("X-User-ID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing user", "X-User-ID header must be a valid UUID")
		return nil, false
	}
	return &identity{
		TenantID: tenantID,
		Actor: appointments.Actor{
			ID:      userID,
			IsStaff: r.Header.Get("X-Staff") == "true",
		},
	}, true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// statusForError maps the error taxonomy onto HTTP status codes.
func statusForError(err error) (int, string) {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return http.StatusBadRequest, "invalid_request"
	case apperr.KindBusinessRule:
		return http.StatusUnprocessableEntity, "business_rule"
	case apperr.KindNotFound:
		return http.StatusNotFound, "not_found"
	case apperr.KindConflict:
		return http.StatusConflict, "slot_conflict"
	case apperr.KindConfiguration:
		return http.StatusInternalServerError, "configuration_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status, typ := statusForError(err)
	detail := ""
	var ae *apperr.Error
	if errors.As(err, &ae) {
		detail = ae.Message
	}
	h.writeError(w, status, typ, http.StatusText(status), detail)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, typ, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   typ,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pagination(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if o, err := strconv.Atoi(s); err == nil && o >= 0 {
			offset = o
		}
	}
	return limit, offset
}

// AppointmentRequest is the create body.
type AppointmentRequest struct {
	PetID     string    `json:"pet_id"`
	VetID     *string   `json:"vet_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Reason    string    `json:"reason"`
	Notes     string    `json:"notes"`
}

// CreateAppointment handles POST /v1/appointments.
// Supports idempotency via the Idempotency-Key header.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req AppointmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	petID, err := uuid.Parse(req.PetID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid pet_id", "pet_id must be a valid UUID")
		return
	}
	var vetID *uuid.UUID
	if req.VetID != nil {
		v, err := uuid.Parse(*req.VetID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid vet_id", "vet_id must be a valid UUID")
			return
		}
		vetID = &v
	}

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey != "" && h.idempotency != nil {
		cached, err := h.idempotency.CheckOrReserve(ctx, ident.TenantID.String(), idempotencyKey)
		if err != nil {
			if errors.Is(err, redis.ErrDuplicateRequest) {
				h.writeError(w, http.StatusConflict, "duplicate_request",
					"Request is already being processed",
					"Another request with this idempotency key is in progress")
				return
			}
			h.logger.Warn("idempotency check failed, proceeding", zap.Error(err))
		} else if cached != nil {
			w.Header().Set("X-Idempotency-Replayed", "true")
			writeJSON(w, cached.StatusCode, map[string]string{"id": cached.ResourceID})
			return
		}
	}

	a, err := h.appointments.Create(ctx, ident.TenantID, appointments.CreateInput{
		PetID:     petID,
		VetID:     vetID,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		Notes:     req.Notes,
	}, ident.Actor)
	if err != nil {
		if apperr.IsConflict(err) {
			metrics.SlotConflicts.Inc()
		}
		h.writeDomainError(w, err)
		return
	}

	metrics.AppointmentsCreated.Inc()

	if idempotencyKey != "" && h.idempotency != nil {
		result := &redis.IdempotencyResult{
			ResourceID: a.ID.String(),
			StatusCode: http.StatusCreated,
		}
		if err := h.idempotency.Store(ctx, ident.TenantID.String(), idempotencyKey, result, redis.IdempotencyTTLExact); err != nil {
			h.logger.Warn("idempotency store failed", zap.Error(err))
		}
	}

	writeJSON(w, http.StatusCreated, a)
}

// GetAppointment handles GET /v1/appointments/{id}.
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	a, err := h.appointments.Get(r.Context(), ident.TenantID, id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// ListAppointments handles GET /v1/appointments with optional status,
// vet_id, pet_id, from, to, and pagination query parameters.
func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}

	f := db.AppointmentFilter{}
	f.Limit, f.Offset = pagination(r)

	if s := r.URL.Query().Get("status"); s != "" {
		for _, part := range strings.Split(s, ",") {
			st := db.AppointmentStatus(part)
			if !st.Valid() {
				h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid status", "unknown appointment status: "+part)
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}
	if s := r.URL.Query().Get("vet_id"); s != "" {
		v, err := uuid.Parse(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid vet_id", "vet_id must be a valid UUID")
			return
		}
		f.VetID = &v
	}
	if s := r.URL.Query().Get("pet_id"); s != "" {
		p, err := uuid.Parse(s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid pet_id", "pet_id must be a valid UUID")
			return
		}
		f.PetID = &p
	}
	if s := r.URL.Query().Get("from"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid from", "from must be RFC 3339")
			return
		}
		f.From = &ts
	}
	if s := r.URL.Query().Get("to"); s != "" {
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid to", "to must be RFC 3339")
			return
		}
		f.To = &ts
	}

	list, err := h.appointments.List(r.Context(), ident.TenantID, f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   list,
		"count":  len(list),
		"limit":  f.Limit,
		"offset": f.Offset,
	})
}

// AppointmentUpdateRequest is the PATCH body; absent fields are left
// unchanged.
type AppointmentUpdateRequest struct {
	Status    *string    `json:"status,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	VetID     *string    `json:"vet_id,omitempty"`
	Reason    *string    `json:"reason,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

// UpdateAppointment handles PATCH /v1/appointments/{id}.
func (h *Handler) UpdateAppointment(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req AppointmentUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	in := appointments.UpdateInput{
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
		Notes:     req.Notes,
	}
	if req.Status != nil {
		st := db.AppointmentStatus(*req.Status)
		in.Status = &st
	}
	if req.VetID != nil {
		v, err := uuid.Parse(*req.VetID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid vet_id", "vet_id must be a valid UUID")
			return
		}
		in.VetID = &v
	}

	a, err := h.appointments.Update(r.Context(), ident.TenantID, id, in, ident.Actor)
	if err != nil {
		if apperr.IsConflict(err) {
			metrics.SlotConflicts.Inc()
		}
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CancelAppointment handles POST /v1/appointments/{id}/cancel.
func (h *Handler) CancelAppointment(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
			return
		}
	}

	a, err := h.appointments.Cancel(r.Context(), ident.TenantID, id, ident.Actor, req.Reason)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) lifecycleOp(w http.ResponseWriter, r *http.Request, op func(context.Context, uuid.UUID, uuid.UUID, appointments.Actor) (*db.Appointment, error)) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	a, err := op(r.Context(), ident.TenantID, id, ident.Actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CheckInAppointment handles POST /v1/appointments/{id}/check-in.
func (h *Handler) CheckInAppointment(w http.ResponseWriter, r *http.Request) {
	h.lifecycleOp(w, r, h.appointments.CheckIn)
}

// StartAppointment handles POST /v1/appointments/{id}/start.
func (h *Handler) StartAppointment(w http.ResponseWriter, r *http.Request) {
	h.lifecycleOp(w, r, h.appointments.Start)
}

// CompleteAppointment handles POST /v1/appointments/{id}/complete.
func (h *Handler) CompleteAppointment(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var req struct {
		Notes string `json:"notes"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
			return
		}
	}

	a, err := h.appointments.Complete(r.Context(), ident.TenantID, id, ident.Actor, req.Notes)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// NoShowAppointment handles POST /v1/appointments/{id}/no-show.
func (h *Handler) NoShowAppointment(w http.ResponseWriter, r *http.Request) {
	h.lifecycleOp(w, r, h.appointments.MarkNoShow)
}

// DeleteAppointment handles DELETE /v1/appointments/{id}.
func (h *Handler) DeleteAppointment(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.appointments.Delete(r.Context(), ident.TenantID, id, ident.Actor); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AppointmentStats handles GET /v1/appointments/stats.
func (h *Handler) AppointmentStats(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}

	stats, err := h.appointments.GetStats(r.Context(), ident.TenantID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// NotificationRequest is the enqueue body.
type NotificationRequest struct {
	Channel          string            `json:"channel"`
	RecipientID      *string           `json:"recipient_id,omitempty"`
	RecipientAddress string            `json:"recipient_address"`
	Subject          string            `json:"subject"`
	Body             string            `json:"body"`
	Priority         string            `json:"priority"`
	ScheduledFor     *time.Time        `json:"scheduled_for,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// EnqueueNotification handles POST /v1/notifications.
func (h *Handler) EnqueueNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}

	var req NotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	ch := db.Channel(req.Channel)
	if !ch.Valid() {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid channel", "channel must be email, sms, push, or whatsapp")
		return
	}
	if req.RecipientAddress == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing recipient", "recipient_address is required")
		return
	}
	if req.Body == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing body", "body is required")
		return
	}

	priority := db.PriorityNormal
	if req.Priority != "" {
		priority = db.Priority(req.Priority)
		if !priority.Valid() {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid priority", "priority must be low, normal, high, or urgent")
			return
		}
	}

	var recipientID *uuid.UUID
	if req.RecipientID != nil {
		rid, err := uuid.Parse(*req.RecipientID)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid recipient_id", "recipient_id must be a valid UUID")
			return
		}
		recipientID = &rid
	}

	item := &db.QueueItem{
		ID:               uuid.New(),
		TenantID:         ident.TenantID,
		Channel:          ch,
		RecipientID:      recipientID,
		RecipientAddress: req.RecipientAddress,
		Subject:          req.Subject,
		Body:             req.Body,
		Priority:         priority,
		ScheduledFor:     req.ScheduledFor,
		Metadata:         req.Metadata,
		Status:           db.QueuePending,
	}

	if err := h.notifications.EnqueueNotification(ctx, item); err != nil {
		h.logger.Error("enqueue failed", zap.Error(err))
		h.writeDomainError(w, err)
		return
	}

	metrics.NotificationsEnqueued.WithLabelValues(string(ch)).Inc()
	h.logger.Info("notification enqueued",
		zap.String("id", item.ID.String()),
		zap.String("tenant_id", ident.TenantID.String()),
		zap.String("channel", string(ch)),
	)

	if h.producer != nil {
		if msgID, err := h.producer.Enqueue(ctx, item); err != nil {
			// The poll loop still picks the item up.
			h.logger.Warn("wake-up event failed", zap.Error(err))
		} else {
			h.logger.Debug("wake-up event published", zap.String("sqs_message_id", msgID))
		}
	}

	writeJSON(w, http.StatusCreated, item)
}

// GetNotification handles GET /v1/notifications/{id}.
func (h *Handler) GetNotification(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	item, err := h.notifications.GetQueueItem(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if item.TenantID != ident.TenantID {
		h.writeDomainError(w, apperr.NotFound("notificación no encontrada"))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// ListNotifications handles GET /v1/notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	items, err := h.notifications.ListQueueByTenant(r.Context(), ident.TenantID, limit, offset)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   items,
		"count":  len(items),
		"limit":  limit,
		"offset": offset,
	})
}

// CancelNotification handles POST /v1/notifications/{id}/cancel. Only
// still-pending items can be cancelled.
func (h *Handler) CancelNotification(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	item, err := h.notifications.GetQueueItem(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	if item.TenantID != ident.TenantID {
		h.writeDomainError(w, apperr.NotFound("notificación no encontrada"))
		return
	}

	if err := h.notifications.CancelQueueItem(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"id":     id.String(),
		"status": string(db.QueueCancelled),
	})
}

// ListDeliveryLog handles GET /v1/notifications/log.
func (h *Handler) ListDeliveryLog(w http.ResponseWriter, r *http.Request) {
	ident, ok := h.identity(w, r)
	if !ok {
		return
	}
	limit, offset := pagination(r)

	rows, err := h.deliveryLog.ListDeliveryLogByTenant(r.Context(), ident.TenantID, limit, offset)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":   rows,
		"count":  len(rows),
		"limit":  limit,
		"offset": offset,
	})
}

// cronAuth guards the cron endpoints with a shared bearer secret.
func (h *Handler) cronAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.cronSecret == "" || r.Header.Get("Authorization") != "Bearer "+h.cronSecret {
			h.writeError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized", "valid cron secret required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RunReminders handles POST /v1/cron/reminders.
func (h *Handler) RunReminders(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reminders.Run(r.Context())
	if err != nil {
		h.logger.Error("reminder run failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Reminder run failed", "")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// RunDispatch handles POST /v1/cron/dispatch.
func (h *Handler) RunDispatch(w http.ResponseWriter, r *http.Request) {
	n, err := h.dispatcher.ProcessBatch(r.Context())
	if err != nil {
		h.logger.Error("dispatch run failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal_error", "Dispatch run failed", "")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": n})
}
