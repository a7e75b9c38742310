package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slotswap-availability/internal/dto"
	"github.com/noah-isme/slotswap-availability/internal/middleware"
	"github.com/noah-isme/slotswap-availability/internal/models"
	appErrors "github.com/noah-isme/slotswap-availability/pkg/errors"
)

type availabilityServiceMock struct {
	days        *dto.BlockedDaysResponse
	window      *dto.FreeWindowResponse
	plan        *dto.ProposalPlan
	summaries   []dto.DaySummary
	cached      bool
	err         error
	lastSubject models.Subject
	lastFrom    string
	lastTo      string
	lastStart   string
	lastReq     dto.ValidateProposalRequest
	invalidated []string
}

func (m *availabilityServiceMock) BlockedDays(_ context.Context, subject models.Subject, from, to string) (*dto.BlockedDaysResponse, bool, error) {
	m.lastSubject, m.lastFrom, m.lastTo = subject, from, to
	return m.days, m.cached, m.err
}

func (m *availabilityServiceMock) FreeWindow(_ context.Context, subject models.Subject, start string) (*dto.FreeWindowResponse, bool, error) {
	m.lastSubject, m.lastStart = subject, start
	return m.window, m.cached, m.err
}

func (m *availabilityServiceMock) Validate(_ context.Context, subject models.Subject, req dto.ValidateProposalRequest) (*dto.ProposalPlan, error) {
	m.lastSubject, m.lastReq = subject, req
	return m.plan, m.err
}

func (m *availabilityServiceMock) DaySummaries(_ context.Context, subject models.Subject, from, to string) ([]dto.DaySummary, bool, error) {
	m.lastSubject, m.lastFrom, m.lastTo = subject, from, to
	return m.summaries, m.cached, m.err
}

func (m *availabilityServiceMock) Invalidate(_ context.Context, userIDs ...string) error {
	m.invalidated = userIDs
	return m.err
}

func (m *availabilityServiceMock) Policy() dto.PolicyResponse {
	return dto.PolicyResponse{Timezone: "UTC", MinDurationMinutes: 5, DefaultDurationMinutes: 30, NoticeDismissMillis: 2500, DayEnd: "23:59:59.999"}
}

type watcherMock struct {
	subjects []models.Subject
}

func (w *watcherMock) Ensure(subject models.Subject) {
	w.subjects = append(w.subjects, subject)
}

func newAuthedContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Email: "a@example.com"})
	c.Set(middleware.ContextTokenKey, "tok")
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data interface{}) map[string]interface{} {
	t.Helper()
	var env struct {
		Data json.RawMessage        `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env.Meta
}

func TestAvailabilityHandlerBlockedDays(t *testing.T) {
	svc := &availabilityServiceMock{days: &dto.BlockedDaysResponse{From: "2024-01-01", To: "2024-01-31", Days: []string{"2024-01-02"}}, cached: true}
	watcher := &watcherMock{}
	h := NewAvailabilityHandler(svc, watcher)

	c, w := newAuthedContext(http.MethodGet, "/availability/blocked-days?from=2024-01-01&to=2024-01-31", nil)
	h.BlockedDays(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get(middleware.CacheHeader))
	assert.Equal(t, models.Subject{UserID: "user-1", Email: "a@example.com", Token: "tok"}, svc.lastSubject)
	assert.Equal(t, "2024-01-01", svc.lastFrom)
	assert.Equal(t, "2024-01-31", svc.lastTo)
	require.Len(t, watcher.subjects, 1)

	var got dto.BlockedDaysResponse
	meta := decodeEnvelope(t, w, &got)
	assert.Equal(t, []string{"2024-01-02"}, got.Days)
	assert.Equal(t, true, meta["cache_hit"])
}

func TestAvailabilityHandlerWindow(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	svc := &availabilityServiceMock{window: &dto.FreeWindowResponse{Start: start, Available: true, Window: &dto.Window{Start: start, End: start.Add(time.Hour), DurationMinutes: 60}}}
	h := NewAvailabilityHandler(svc, nil)

	c, w := newAuthedContext(http.MethodGet, "/availability/window?start=2024-01-01T10:00", nil)
	h.Window(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get(middleware.CacheHeader))
	assert.Equal(t, "2024-01-01T10:00", svc.lastStart)

	var got dto.FreeWindowResponse
	decodeEnvelope(t, w, &got)
	assert.True(t, got.Available)
	assert.Equal(t, 60, got.Window.DurationMinutes)
}

func TestAvailabilityHandlerWindowError(t *testing.T) {
	h := NewAvailabilityHandler(&availabilityServiceMock{err: appErrors.Clone(appErrors.ErrValidation, "invalid time x")}, nil)

	c, w := newAuthedContext(http.MethodGet, "/availability/window?start=x", nil)
	h.Window(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestAvailabilityHandlerValidate(t *testing.T) {
	svc := &availabilityServiceMock{plan: &dto.ProposalPlan{Valid: false, Reasons: []dto.PlanReason{dto.ReasonOverlapsExisting}}}
	h := NewAvailabilityHandler(svc, nil)

	c, w := newAuthedContext(http.MethodPost, "/availability/validate", []byte(`{"start":"2024-01-01T10:00","end":"2024-01-01T11:00","event_id":"ev-1"}`))
	h.Validate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ValidateProposalRequest{Start: "2024-01-01T10:00", End: "2024-01-01T11:00", EventID: "ev-1"}, svc.lastReq)

	var got dto.ProposalPlan
	decodeEnvelope(t, w, &got)
	assert.False(t, got.Valid)
	assert.Equal(t, []dto.PlanReason{dto.ReasonOverlapsExisting}, got.Reasons)
}

func TestAvailabilityHandlerValidateInvalidBody(t *testing.T) {
	h := NewAvailabilityHandler(&availabilityServiceMock{}, nil)

	c, w := newAuthedContext(http.MethodPost, "/availability/validate", []byte(`{"start":`))
	h.Validate(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerSummaryUpstreamError(t *testing.T) {
	h := NewAvailabilityHandler(&availabilityServiceMock{err: appErrors.ErrUpstream}, nil)

	c, w := newAuthedContext(http.MethodGet, "/availability/summary", nil)
	h.Summary(c)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestAvailabilityHandlerPolicy(t *testing.T) {
	h := NewAvailabilityHandler(&availabilityServiceMock{}, nil)

	c, w := newAuthedContext(http.MethodGet, "/availability/policy", nil)
	h.Policy(c)

	require.Equal(t, http.StatusOK, w.Code)
	var got dto.PolicyResponse
	decodeEnvelope(t, w, &got)
	assert.Equal(t, int64(2500), got.NoticeDismissMillis)
}

func TestAvailabilityHandlerInvalidate(t *testing.T) {
	svc := &availabilityServiceMock{}
	h := NewAvailabilityHandler(svc, nil)

	c, w := newAuthedContext(http.MethodPost, "/availability/invalidate", nil)
	h.Invalidate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"user-1"}, svc.invalidated)
}

func TestAvailabilityHandlerInvalidateRequiresUser(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/availability/invalidate", nil)

	NewAvailabilityHandler(&availabilityServiceMock{}, nil).Invalidate(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
