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

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/practitioner-scheduling/internal/memstore"
	"github.com/hackgods/practitioner-scheduling/internal/scheduling"
)

var (
	testPractitioner = uuid.MustParse("00000000-0000-0000-0000-000000000005")
	testPatient      = uuid.MustParse("00000000-0000-0000-0000-0000000000aa")
	testActor        = uuid.MustParse("00000000-0000-0000-0000-0000000000fd")
)

type testServer struct {
	handler http.Handler
	now     time.Time
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{now: time.Date(2025, time.March, 1, 8, 0, 0, 0, time.UTC)}
	store := memstore.New()
	core := scheduling.New(scheduling.Stores{
		Blocks:       store.Blocks,
		Appointments: store.Appointments,
		Notes:        store.Notes,
	}, scheduling.Options{Now: func() time.Time { return ts.now }})
	ts.handler = NewRouter(RouterConfig{Core: core, Env: "test", Version: "dev"})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, actor *uuid.UUID) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req.Header.Set(ActorHeader, actor.String())
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (ts *testServer) seedBlock(t *testing.T) BlockResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/availability", map[string]any{
		"practitioner_id": testPractitioner,
		"date":            "2025-03-10",
		"start":           "09:00",
		"end":             "17:00",
		"kind":            "workable",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[BlockResponse](t, rec)
}

func (ts *testServer) book(t *testing.T, start string, minutes int) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, "/appointments", map[string]any{
		"practitioner_id": testPractitioner,
		"patient_id":      testPatient,
		"start":           start,
		"duration":        minutes,
		"motive":          "check-up",
	}, &testActor)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health/live", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	h := NewHealthHandler(map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("down") }),
	}, "test", "dev")
	rec = httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	ready := decodeBody[ReadinessResponse](t, rec)
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, "down", ready.Dependencies["redis"])
}

func TestAvailabilityEndpoints(t *testing.T) {
	ts := newTestServer(t)
	block := ts.seedBlock(t)
	assert.Equal(t, "09:00", block.Start.String())

	rec := ts.do(t, http.MethodPost, "/availability", map[string]any{
		"practitioner_id": testPractitioner,
		"date":            "2025-03-10",
		"start":           "16:00",
		"end":             "18:00",
		"kind":            "workable",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "conflict_error", decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPost, "/availability", map[string]any{
		"practitioner_id": "not-a-uuid",
		"date":            "10/03/2025",
		"start":           "09:00",
		"end":             "10:00",
		"kind":            "sometimes",
	}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	errBody := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "validation_error", errBody.Error)
	assert.Contains(t, errBody.Details, "practitioner_id must be a valid UUID")
	assert.Contains(t, errBody.Details, "kind must be one of workable, non_workable")

	rec = ts.do(t, http.MethodGet, "/availability?date=2025-03-10&practitioner_id="+testPractitioner.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]BlockResponse](t, rec), 1)

	rec = ts.do(t, http.MethodGet, "/availability", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/availability/validate?date=2025-03-10&start=10:00&end=11:00&practitioner_id="+testPractitioner.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[ValidateResponse](t, rec).Valid)

	rec = ts.do(t, http.MethodPut, "/availability/"+block.ID.String(), map[string]any{"end": "18:00"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "18:00", decodeBody[BlockResponse](t, rec).End.String())

	rec = ts.do(t, http.MethodGet, "/practitioners/"+testPractitioner.String()+"/availability", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]BlockResponse](t, rec), 1)

	rec = ts.do(t, http.MethodDelete, "/availability/"+block.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = ts.do(t, http.MethodDelete, "/availability/"+block.ID.String(), nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGenerateEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/availability/generate/recurring", map[string]any{
		"practitioner_id": testPractitioner,
		"pattern":         "weekly",
		"config":          map[string]any{"days_of_week": []int{1, 3}},
		"date_from":       "2025-03-03",
		"date_to":         "2025-03-16",
		"working_hours":   map[string]string{"start": "09:00", "end": "17:00"},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 4, decodeBody[GenerateResponse](t, rec).Created)

	rec = ts.do(t, http.MethodPost, "/availability/generate/automatic", map[string]any{
		"practitioner_id": testPractitioner,
		"date_from":       "2025-03-17",
		"date_to":         "2025-03-23",
		"working_hours":   map[string]string{"start": "08:00", "end": "12:00"},
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, 5, decodeBody[GenerateResponse](t, rec).Created)

	rec = ts.do(t, http.MethodPost, "/availability/generate/recurring", map[string]any{
		"practitioner_id": testPractitioner,
		"pattern":         "weekly",
		"config":          map[string]any{"days_of_week": []int{7}},
		"date_from":       "2025-03-03",
		"date_to":         "2025-03-16",
		"working_hours":   map[string]string{"start": "09:00", "end": "17:00"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "sunday is rejected")
}

func TestAppointmentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	ts.seedBlock(t)

	rec := ts.book(t, "2025-03-10T10:00:00Z", 30)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	appt := decodeBody[AppointmentResponse](t, rec)
	assert.Equal(t, "pending", appt.Status)
	assert.Equal(t, testActor, appt.CreatorID)

	rec = ts.book(t, "2025-03-10T10:15:00Z", 30)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/slots?date=2025-03-10&duration=30&practitioner_id="+testPractitioner.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[SlotsResponse](t, rec).Slots, 15)

	rec = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/attended", nil, &testActor)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "cannot confirm attendance before the scheduled time", decodeBody[ErrorResponse](t, rec).Details)

	rec = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/reschedule",
		map[string]any{"start": "2025-03-10T11:00:00Z"}, &testActor)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decodeBody[AppointmentResponse](t, rec)
	require.Len(t, moved.Notes, 1)
	assert.True(t, moved.Notes[0].System)

	rec = ts.do(t, http.MethodGet, "/agenda?date=2025-03-10&practitioner_id="+testPractitioner.String(), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	agenda := decodeBody[[]AppointmentResponse](t, rec)
	require.Len(t, agenda, 1)
	assert.Equal(t, time.Date(2025, time.March, 10, 11, 0, 0, 0, time.UTC), agenda[0].Start.UTC())

	rec = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", map[string]any{}, &testActor)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "reason is required")

	rec = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/cancel", map[string]any{"reason": "sick"}, &testActor)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decodeBody[AppointmentResponse](t, rec).Status)

	rec = ts.do(t, http.MethodDelete, "/appointments/"+appt.ID.String(), nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "only PENDING appointments may be modified", decodeBody[ErrorResponse](t, rec).Details)

	rec = ts.do(t, http.MethodGet, "/appointments?status=cancelled&per_page=5", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decodeBody[PageResponse](t, rec)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, 5, page.PerPage)
}

func TestListAppointmentsHugePage(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/appointments?page=922337203685477580", nil, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	assert.Equal(t, "validation_error", decodeBody[ErrorResponse](t, rec).Error)
}

func TestActorHeader(t *testing.T) {
	ts := newTestServer(t)
	ts.seedBlock(t)

	rec := ts.do(t, http.MethodPost, "/appointments", map[string]any{
		"practitioner_id": testPractitioner,
		"patient_id":      testPatient,
		"start":           "2025-03-10T10:00:00Z",
		"duration":        30,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/agenda?date=2025-03-10", nil)
	req.Header.Set(ActorHeader, "nobody")
	rec = httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNoteEndpoints(t *testing.T) {
	ts := newTestServer(t)
	ts.seedBlock(t)
	rec := ts.book(t, "2025-03-10T10:00:00Z", 30)
	require.Equal(t, http.StatusCreated, rec.Code)
	appt := decodeBody[AppointmentResponse](t, rec)

	rec = ts.do(t, http.MethodPost, "/appointments/"+appt.ID.String()+"/notes", map[string]string{"body": "needs wheelchair"}, &testActor)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	note := decodeBody[NoteResponse](t, rec)

	stranger := uuid.New()
	rec = ts.do(t, http.MethodPut, "/notes/"+note.ID.String(), map[string]string{"body": "edited"}, &stranger)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden_error", decodeBody[ErrorResponse](t, rec).Error)

	rec = ts.do(t, http.MethodPut, "/notes/"+note.ID.String(), map[string]string{"body": "edited"}, &testActor)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/appointments/"+appt.ID.String()+"/notes", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[[]NoteResponse](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "edited", list[0].Body)

	rec = ts.do(t, http.MethodDelete, "/notes/"+note.ID.String(), nil, &testActor)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOverdueEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.seedBlock(t)
	require.Equal(t, http.StatusCreated, ts.book(t, "2025-03-10T10:00:00Z", 30).Code)

	ts.now = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	rec := ts.do(t, http.MethodGet, "/appointments/overdue", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]AppointmentResponse](t, rec), 1)
}

func TestRouterCORSAndRateLimit(t *testing.T) {
	store := memstore.New()
	core := scheduling.New(scheduling.Stores{
		Blocks:       store.Blocks,
		Appointments: store.Appointments,
		Notes:        store.Notes,
	}, scheduling.Options{})
	h := NewRouter(RouterConfig{
		Core:           core,
		AllowedOrigins: []string{"https://desk.example.com"},
		RateLimit:      1,
	})

	preflight := httptest.NewRequest(http.MethodOptions, "/appointments", nil)
	preflight.Header.Set("Origin", "https://desk.example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, preflight)
	assert.Equal(t, "https://desk.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
