package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vetly/vetly/internal/apperr"
	"github.com/vetly/vetly/internal/appointments"
	"github.com/vetly/vetly/internal/db"
	"github.com/vetly/vetly/internal/reminders"
)

var errStoreDown = errors.New("store unavailable")

// fakeScheduler is a canned AppointmentService.
type fakeScheduler struct {
	appointments map[uuid.UUID]*db.Appointment

	createErr error
	lastActor appointments.Actor
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{appointments: make(map[uuid.UUID]*db.Appointment)}
}

func (f *fakeScheduler) Create(_ context.Context, tenantID uuid.UUID, in appointments.CreateInput, actor appointments.Actor) (*db.Appointment, error) {
	f.lastActor = actor
	if f.createErr != nil {
		return nil, f.createErr
	}
	a := &db.Appointment{
		ID:        uuid.New(),
		TenantID:  tenantID,
		PetID:     in.PetID,
		VetID:     in.VetID,
		StartTime: in.StartTime,
		EndTime:   in.EndTime,
		Reason:    in.Reason,
		Status:    db.AppointmentPending,
	}
	f.appointments[a.ID] = a
	return a, nil
}

func (f *fakeScheduler) Get(_ context.Context, tenantID, id uuid.UUID) (*db.Appointment, error) {
	a, ok := f.appointments[id]
	if !ok || a.TenantID != tenantID {
		return nil, apperr.NotFound("cita no encontrada")
	}
	return a, nil
}

func (f *fakeScheduler) List(_ context.Context, tenantID uuid.UUID, _ db.AppointmentFilter) ([]*db.Appointment, error) {
	var out []*db.Appointment
	for _, a := range f.appointments {
		if a.TenantID == tenantID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeScheduler) Update(ctx context.Context, tenantID, id uuid.UUID, in appointments.UpdateInput, actor appointments.Actor) (*db.Appointment, error) {
	f.lastActor = actor
	a, err := f.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if in.Status != nil {
		a.Status = *in.Status
	}
	return a, nil
}

func (f *fakeScheduler) Cancel(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor, _ string) (*db.Appointment, error) {
	f.lastActor = actor
	a, err := f.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	a.Status = db.AppointmentCancelled
	return a, nil
}

func (f *fakeScheduler) setStatus(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor, st db.AppointmentStatus) (*db.Appointment, error) {
	f.lastActor = actor
	a, err := f.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsStaff {
		return nil, apperr.BusinessRule("solo el personal puede realizar esta acción")
	}
	a.Status = st
	return a, nil
}

func (f *fakeScheduler) CheckIn(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor) (*db.Appointment, error) {
	return f.setStatus(ctx, tenantID, id, actor, db.AppointmentCheckedIn)
}

func (f *fakeScheduler) Start(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor) (*db.Appointment, error) {
	return f.setStatus(ctx, tenantID, id, actor, db.AppointmentInProgress)
}

func (f *fakeScheduler) Complete(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor, _ string) (*db.Appointment, error) {
	return f.setStatus(ctx, tenantID, id, actor, db.AppointmentCompleted)
}

func (f *fakeScheduler) MarkNoShow(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor) (*db.Appointment, error) {
	return f.setStatus(ctx, tenantID, id, actor, db.AppointmentNoShow)
}

func (f *fakeScheduler) Delete(ctx context.Context, tenantID, id uuid.UUID, actor appointments.Actor) error {
	if _, err := f.setStatus(ctx, tenantID, id, actor, db.AppointmentCancelled); err != nil {
		return err
	}
	delete(f.appointments, id)
	return nil
}

func (f *fakeScheduler) GetStats(_ context.Context, _ uuid.UUID) (*appointments.Stats, error) {
	return &appointments.Stats{Total: len(f.appointments)}, nil
}

// fakeQueue is a canned NotificationStore.
type fakeQueue struct {
	items      map[uuid.UUID]*db.QueueItem
	shouldFail bool

	enqueueCalled bool
	cancelCalled  bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{items: make(map[uuid.UUID]*db.QueueItem)}
}

func (f *fakeQueue) EnqueueNotification(_ context.Context, item *db.QueueItem) error {
	f.enqueueCalled = true
	if f.shouldFail {
		return errStoreDown
	}
	f.items[item.ID] = item
	return nil
}

func (f *fakeQueue) GetQueueItem(_ context.Context, id uuid.UUID) (*db.QueueItem, error) {
	item, ok := f.items[id]
	if !ok {
		return nil, apperr.NotFound("notificación no encontrada")
	}
	return item, nil
}

func (f *fakeQueue) ListQueueByTenant(_ context.Context, tenantID uuid.UUID, _, _ int) ([]*db.QueueItem, error) {
	var out []*db.QueueItem
	for _, item := range f.items {
		if item.TenantID == tenantID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeQueue) CancelQueueItem(_ context.Context, id uuid.UUID) error {
	f.cancelCalled = true
	item, ok := f.items[id]
	if !ok {
		return apperr.NotFound("notificación no encontrada")
	}
	if item.Status != db.QueuePending {
		return apperr.BusinessRule("la notificación ya fue procesada")
	}
	item.Status = db.QueueCancelled
	return nil
}

type fakeDeliveryLog struct {
	rows []*db.DeliveryLog
}

func (f *fakeDeliveryLog) ListDeliveryLogByTenant(_ context.Context, tenantID uuid.UUID, _, _ int) ([]*db.DeliveryLog, error) {
	var out []*db.DeliveryLog
	for _, row := range f.rows {
		if row.TenantID == tenantID {
			out = append(out, row)
		}
	}
	return out, nil
}

type fakeReminderRunner struct {
	called bool
	err    error
}

func (f *fakeReminderRunner) Run(context.Context) (*reminders.Stats, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return &reminders.Stats{Checked: 5, Created: 2}, nil
}

type fakeDispatchRunner struct {
	called bool
}

func (f *fakeDispatchRunner) ProcessBatch(context.Context) (int, error) {
	f.called = true
	return 3, nil
}

const cronSecret = "test-cron-secret"

type fixture struct {
	scheduler  *fakeScheduler
	queue      *fakeQueue
	log        *fakeDeliveryLog
	reminders  *fakeReminderRunner
	dispatcher *fakeDispatchRunner
	router     chi.Router

	tenant uuid.UUID
	user   uuid.UUID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		scheduler:  newFakeScheduler(),
		queue:      newFakeQueue(),
		log:        &fakeDeliveryLog{},
		reminders:  &fakeReminderRunner{},
		dispatcher: &fakeDispatchRunner{},
		tenant:     uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		user:       uuid.MustParse("00000000-0000-0000-0000-000000000002"),
	}
	h := NewHandler(zap.NewNop(), f.scheduler, f.queue, f.log, f.reminders, f.dispatcher, cronSecret)
	r := chi.NewRouter()
	r.Route("/v1", h.Routes)
	f.router = r
	return f
}

func (f *fixture) request(t *testing.T, method, path string, body any, staff bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("X-Tenant-ID", f.tenant.String())
	req.Header.Set("X-User-ID", f.user.String())
	if staff {
		req.Header.Set("X-Staff", "true")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
		t.Errorf("expected problem+json content type, got %q", ct)
	}
	var e ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return e
}

func TestCreateAppointment(t *testing.T) {
	start := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	valid := AppointmentRequest{
		PetID:     uuid.New().String(),
		StartTime: start,
		EndTime:   start.Add(30 * time.Minute),
		Reason:    "vacunación anual",
	}

	tests := []struct {
		name           string
		body           any
		createErr      error
		expectedStatus int
		expectedType   string
	}{
		{
			name:           "valid request",
			body:           valid,
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "invalid pet_id",
			body:           AppointmentRequest{PetID: "not-a-uuid", StartTime: start, EndTime: start.Add(time.Hour)},
			expectedStatus: http.StatusBadRequest,
			expectedType:   "invalid_request",
		},
		{
			name:           "malformed body",
			body:           "{{{",
			expectedStatus: http.StatusBadRequest,
			expectedType:   "invalid_request",
		},
		{
			name:           "slot conflict",
			body:           valid,
			createErr:      apperr.Conflict("horario no disponible"),
			expectedStatus: http.StatusConflict,
			expectedType:   "slot_conflict",
		},
		{
			name:           "business rule rejection",
			body:           valid,
			createErr:      apperr.BusinessRule("la mascota no pertenece a esta clínica"),
			expectedStatus: http.StatusUnprocessableEntity,
			expectedType:   "business_rule",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			f.scheduler.createErr = tt.createErr

			rec := f.request(t, http.MethodPost, "/v1/appointments", tt.body, false)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedStatus == http.StatusCreated {
				var a db.Appointment
				if err := json.NewDecoder(rec.Body).Decode(&a); err != nil {
					t.Fatalf("decode response: %v", err)
				}
				if a.ID == uuid.Nil {
					t.Error("expected an id in the response")
				}
				if a.Status != db.AppointmentPending {
					t.Errorf("expected pending status, got %s", a.Status)
				}
				return
			}
			e := decodeError(t, rec)
			if e.Type != tt.expectedType {
				t.Errorf("expected error type %q, got %q", tt.expectedType, e.Type)
			}
		})
	}
}

func TestCreateAppointmentRequiresIdentity(t *testing.T) {
	f := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/appointments", bytes.NewBufferString("{}"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without identity headers, got %d", rec.Code)
	}
}

func TestGetAppointmentNotFound(t *testing.T) {
	f := setup(t)

	rec := f.request(t, http.MethodGet, "/v1/appointments/"+uuid.New().String(), nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	e := decodeError(t, rec)
	if e.Type != "not_found" {
		t.Errorf("expected not_found, got %q", e.Type)
	}
}

func TestGetAppointmentInvalidID(t *testing.T) {
	f := setup(t)

	rec := f.request(t, http.MethodGet, "/v1/appointments/nope", nil, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListAppointmentsRejectsBadStatus(t *testing.T) {
	f := setup(t)

	rec := f.request(t, http.MethodGet, "/v1/appointments?status=telepathic", nil, false)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListAppointmentsPagination(t *testing.T) {
	f := setup(t)

	rec := f.request(t, http.MethodGet, "/v1/appointments?limit=500&offset=-3", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Limit  int `json:"limit"`
		Offset int `json:"offset"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Limit != 20 || resp.Offset != 0 {
		t.Errorf("expected defaults 20/0 for out-of-range paging, got %d/%d", resp.Limit, resp.Offset)
	}
}

func TestLifecycleEndpoints(t *testing.T) {
	f := setup(t)
	a := &db.Appointment{ID: uuid.New(), TenantID: f.tenant, Status: db.AppointmentConfirmed}
	f.scheduler.appointments[a.ID] = a

	steps := []struct {
		path   string
		status db.AppointmentStatus
	}{
		{"/check-in", db.AppointmentCheckedIn},
		{"/start", db.AppointmentInProgress},
		{"/complete", db.AppointmentCompleted},
	}
	for _, step := range steps {
		rec := f.request(t, http.MethodPost, "/v1/appointments/"+a.ID.String()+step.path, nil, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", step.path, rec.Code, rec.Body.String())
		}
		if a.Status != step.status {
			t.Errorf("%s: expected status %s, got %s", step.path, step.status, a.Status)
		}
		if !f.scheduler.lastActor.IsStaff {
			t.Errorf("%s: expected staff actor forwarded", step.path)
		}
	}
}

func TestLifecycleRejectsNonStaff(t *testing.T) {
	f := setup(t)
	a := &db.Appointment{ID: uuid.New(), TenantID: f.tenant, Status: db.AppointmentConfirmed}
	f.scheduler.appointments[a.ID] = a

	rec := f.request(t, http.MethodPost, "/v1/appointments/"+a.ID.String()+"/check-in", nil, false)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for non-staff check-in, got %d", rec.Code)
	}
}

func TestCancelAppointmentWithReason(t *testing.T) {
	f := setup(t)
	a := &db.Appointment{ID: uuid.New(), TenantID: f.tenant, Status: db.AppointmentPending}
	f.scheduler.appointments[a.ID] = a

	rec := f.request(t, http.MethodPost, "/v1/appointments/"+a.ID.String()+"/cancel",
		map[string]string{"reason": "viaje imprevisto"}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if a.Status != db.AppointmentCancelled {
		t.Errorf("expected cancelled, got %s", a.Status)
	}
}

func TestCancelAppointmentEmptyBody(t *testing.T) {
	f := setup(t)
	a := &db.Appointment{ID: uuid.New(), TenantID: f.tenant, Status: db.AppointmentPending}
	f.scheduler.appointments[a.ID] = a

	rec := f.request(t, http.MethodPost, "/v1/appointments/"+a.ID.String()+"/cancel", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with empty body, got %d", rec.Code)
	}
}

func TestAppointmentStats(t *testing.T) {
	f := setup(t)
	f.scheduler.appointments[uuid.New()] = &db.Appointment{TenantID: f.tenant}

	rec := f.request(t, http.MethodGet, "/v1/appointments/stats", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats appointments.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Total != 1 {
		t.Errorf("expected total 1, got %d", stats.Total)
	}
}

func TestEnqueueNotification(t *testing.T) {
	tests := []struct {
		name           string
		body           NotificationRequest
		expectedStatus int
	}{
		{
			name: "valid email",
			body: NotificationRequest{
				Channel:          "email",
				RecipientAddress: "owner@example.com",
				Subject:          "Recordatorio de cita",
				Body:             "Su cita es mañana a las 10:00.",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "valid sms with priority",
			body: NotificationRequest{
				Channel:          "sms",
				RecipientAddress: "+525512345678",
				Body:             "Recordatorio: cita hoy 16:00",
				Priority:         "high",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "unknown channel",
			body: NotificationRequest{
				Channel:          "telegram",
				RecipientAddress: "x",
				Body:             "y",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing recipient",
			body: NotificationRequest{
				Channel: "email",
				Body:    "y",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing body",
			body: NotificationRequest{
				Channel:          "email",
				RecipientAddress: "owner@example.com",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown priority",
			body: NotificationRequest{
				Channel:          "email",
				RecipientAddress: "owner@example.com",
				Body:             "y",
				Priority:         "extreme",
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)

			rec := f.request(t, http.MethodPost, "/v1/notifications", tt.body, false)
			if rec.Code != tt.expectedStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectedStatus, rec.Code, rec.Body.String())
			}
			if tt.expectedStatus != http.StatusCreated {
				return
			}
			var item db.QueueItem
			if err := json.NewDecoder(rec.Body).Decode(&item); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if item.TenantID != f.tenant {
				t.Errorf("expected tenant from header, got %s", item.TenantID)
			}
			if item.Status != db.QueuePending {
				t.Errorf("expected pending, got %s", item.Status)
			}
			if tt.body.Priority == "" && item.Priority != db.PriorityNormal {
				t.Errorf("expected normal priority default, got %s", item.Priority)
			}
		})
	}
}

func TestEnqueueNotificationStoreFailure(t *testing.T) {
	f := setup(t)
	f.queue.shouldFail = true

	rec := f.request(t, http.MethodPost, "/v1/notifications", NotificationRequest{
		Channel:          "email",
		RecipientAddress: "owner@example.com",
		Body:             "y",
	}, false)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestGetNotificationCrossTenant(t *testing.T) {
	f := setup(t)
	item := &db.QueueItem{ID: uuid.New(), TenantID: uuid.New(), Status: db.QueuePending}
	f.queue.items[item.ID] = item

	rec := f.request(t, http.MethodGet, "/v1/notifications/"+item.ID.String(), nil, false)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign tenant, got %d", rec.Code)
	}
}

func TestCancelNotification(t *testing.T) {
	f := setup(t)
	item := &db.QueueItem{ID: uuid.New(), TenantID: f.tenant, Status: db.QueuePending}
	f.queue.items[item.ID] = item

	rec := f.request(t, http.MethodPost, "/v1/notifications/"+item.ID.String()+"/cancel", nil, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if item.Status != db.QueueCancelled {
		t.Errorf("expected cancelled, got %s", item.Status)
	}
}

func TestCancelNotificationAlreadySent(t *testing.T) {
	f := setup(t)
	item := &db.QueueItem{ID: uuid.New(), TenantID: f.tenant, Status: db.QueueSent}
	f.queue.items[item.ID] = item

	rec := f.request(t, http.MethodPost, "/v1/notifications/"+item.ID.String()+"/cancel", nil, false)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestListDeliveryLog(t *testing.T) {
	f := setup(t)
	f.log.rows = []*db.DeliveryLog{
		{ID: uuid.New(), TenantID: f.tenant, Channel: db.ChannelEmail, Status: db.QueueSent},
		{ID: uuid.New(), TenantID: uuid.New(), Channel: db.ChannelSMS, Status: db.QueueFailed},
	}

	rec := f.request(t, http.MethodGet, "/v1/notifications/log", nil, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 1 {
		t.Errorf("expected only own tenant's rows, got %d", resp.Count)
	}
}

func TestCronEndpointsRequireSecret(t *testing.T) {
	f := setup(t)

	for _, path := range []string{"/v1/cron/reminders", "/v1/cron/dispatch"} {
		req := httptest.NewRequest(http.MethodPost, path, nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 without secret, got %d", path, rec.Code)
		}

		req = httptest.NewRequest(http.MethodPost, path, nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec = httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401 with bad secret, got %d", path, rec.Code)
		}
	}
}

func TestCronReminders(t *testing.T) {
	f := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/cron/reminders", nil)
	req.Header.Set("Authorization", "Bearer "+cronSecret)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !f.reminders.called {
		t.Error("expected reminder runner to be invoked")
	}
	var stats reminders.Stats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Created != 2 {
		t.Errorf("expected created 2, got %d", stats.Created)
	}
}

func TestCronDispatch(t *testing.T) {
	f := setup(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/cron/dispatch", nil)
	req.Header.Set("Authorization", "Bearer "+cronSecret)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !f.dispatcher.called {
		t.Error("expected dispatcher to be invoked")
	}
	var resp struct {
		Processed int `json:"processed"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Processed != 3 {
		t.Errorf("expected processed 3, got %d", resp.Processed)
	}
}

func TestCronRemindersFailure(t *testing.T) {
	f := setup(t)
	f.reminders.err = errStoreDown

	req := httptest.NewRequest(http.MethodPost, "/v1/cron/reminders", nil)
	req.Header.Set("Authorization", "Bearer "+cronSecret)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
