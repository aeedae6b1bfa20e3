package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/example/fixlite/internal/admin"
	"github.com/example/fixlite/internal/auth"
	"github.com/example/fixlite/internal/directory"
	"github.com/example/fixlite/internal/handler"
	"github.com/example/fixlite/internal/intervention/domain"
	"github.com/example/fixlite/internal/intervention/repository"
	"github.com/example/fixlite/internal/intervention/service"
	"github.com/example/fixlite/internal/matching"
	"github.com/example/fixlite/internal/message"
	"github.com/example/fixlite/internal/notification"
	"github.com/example/fixlite/internal/settlement"
	"github.com/example/fixlite/pkg/outbox"
)

const testSecret = "test-secret"

type fakeProcessor struct {
	sessions int
	status   domain.PaymentStatus
}

func (f *fakeProcessor) CreateSession(_ context.Context, _ settlement.CheckoutRequest) (settlement.CheckoutSession, error) {
	f.sessions++
	id := fmt.Sprintf("cs_%d", f.sessions)
	return settlement.CheckoutSession{SessionID: id, RedirectURL: "https://checkout.example/" + id}, nil
}

func (f *fakeProcessor) GetStatus(_ context.Context, _ string) (domain.PaymentStatus, error) {
	return f.status, nil
}

type env struct {
	router    http.Handler
	users     *repository.MemoryUserDirectory
	processor *fakeProcessor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	interventions := repository.NewMemoryInterventionRepository()
	users := repository.NewMemoryUserDirectory()
	payments := repository.NewMemoryPaymentRepository()
	processor := &fakeProcessor{status: domain.PaymentPaid}
	publisher := outbox.NewPublisher(nil, "intervention.events")
	clock := domain.SystemClock{}

	h := handler.NewHTTP(
		service.New(interventions, publisher, clock, repository.NewMemoryIdempotencyRepo()),
		matching.NewService(users),
		settlement.NewEngine(interventions, payments, processor, publisher, clock, "eur"),
		message.New(repository.NewMemoryMessageRepository(), interventions, clock),
		notification.New(repository.NewMemoryNotificationRepository(), clock),
		admin.New(interventions, users, payments),
		directory.New(users),
		testSecret,
	)
	return &env{router: h.Router(), users: users, processor: processor}
}

func signToken(t *testing.T, userID uuid.UUID, role domain.Role) string {
	t.Helper()
	claims := auth.Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/v1/interventions", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/interventions", "not-a-token", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// wrong signing key
	bad, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: uuid.NewString()}).SignedString([]byte("other"))
	require.NoError(t, err)
	rec = e.do(t, http.MethodGet, "/v1/interventions", bad, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestInterventionLifecycleOverHTTP(t *testing.T) {
	e := newEnv(t)
	owner := uuid.New()
	tech := uuid.New()
	ownerToken := signToken(t, owner, domain.RoleUser)
	techToken := signToken(t, tech, domain.RoleTechnician)

	rec := e.do(t, http.MethodPost, "/v1/interventions", ownerToken, map[string]any{
		"title":            "laptop will not boot",
		"description":      "black screen on power",
		"category":         "computer",
		"mode":             "onsite",
		"urgency":          "medium",
		"budget_min_cents": 5000,
		"budget_max_cents": 20000,
		"address":          "3 quai Saint-Antoine, Lyon",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[domain.Intervention](t, rec)
	require.Equal(t, domain.StatusPending, created.Status)

	// technicians may not create
	rec = e.do(t, http.MethodPost, "/v1/interventions", techToken, map[string]any{
		"title": "x", "category": "phone", "mode": "remote", "urgency": "low",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/interventions/"+created.ID.String()+"/claim", techToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	claimed := decode[domain.Intervention](t, rec)
	require.Equal(t, domain.StatusAssigned, claimed.Status)

	// a second claim races and loses
	rec = e.do(t, http.MethodPost, "/v1/interventions/"+created.ID.String()+"/claim", signToken(t, uuid.New(), domain.RoleTechnician), nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/interventions/"+created.ID.String()+"/status", techToken, map[string]any{"status": "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodPost, "/v1/interventions/"+created.ID.String()+"/status", techToken, map[string]any{
		"status":            "completed",
		"final_price_cents": 12000,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	completed := decode[domain.Intervention](t, rec)
	require.Equal(t, int64(12000), *completed.FinalPriceCents)

	rec = e.do(t, http.MethodPost, "/v1/payments/checkout/session", ownerToken, map[string]any{
		"intervention_id": created.ID.String(),
		"origin_url":      "https://app.example",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	checkout := decode[map[string]string](t, rec)
	require.Equal(t, "cs_1", checkout["session_id"])

	// public status reconciliation endpoint
	rec = e.do(t, http.MethodGet, "/v1/payments/checkout/status/cs_1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[map[string]string](t, rec)
	require.Equal(t, "paid", status["payment_status"])
}

func TestCreateInterventionIdempotencyHeader(t *testing.T) {
	e := newEnv(t)
	ownerToken := signToken(t, uuid.New(), domain.RoleUser)

	body := map[string]any{
		"title":            "phone stuck in boot loop",
		"description":      "restarts every thirty seconds",
		"category":         "phone",
		"mode":             "onsite",
		"urgency":          "high",
		"budget_min_cents": 8000,
		"budget_max_cents": 20000,
		"address":          "8 rue des Capucins, Lyon",
	}
	post := func() *httptest.ResponseRecorder {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		req := httptest.NewRequest(http.MethodPost, "/v1/interventions", &buf)
		req.Header.Set("Authorization", "Bearer "+ownerToken)
		req.Header.Set("Idempotency-Key", "client-generated-42")
		rec := httptest.NewRecorder()
		e.router.ServeHTTP(rec, req)
		return rec
	}

	rec := post()
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decode[domain.Intervention](t, rec)

	rec = post()
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decode[domain.Intervention](t, rec)
	require.Equal(t, first.ID, second.ID)
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)
	ownerToken := signToken(t, uuid.New(), domain.RoleUser)

	// unknown intervention
	rec := e.do(t, http.MethodGet, "/v1/interventions/"+uuid.NewString(), ownerToken, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// invalid payload
	rec = e.do(t, http.MethodPost, "/v1/interventions", ownerToken, map[string]any{
		"title": "x", "category": "toaster", "mode": "onsite", "urgency": "low",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	// unknown checkout session
	rec = e.do(t, http.MethodGet, "/v1/payments/checkout/status/cs_missing", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// admin surface is admin-only
	rec = e.do(t, http.MethodGet, "/v1/admin/dashboard", ownerToken, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNearbyIsPublic(t *testing.T) {
	e := newEnv(t)
	lat, lng := 48.8566, 2.3522
	_, err := e.users.Insert(context.Background(), domain.User{
		ID: uuid.New(), Role: domain.RoleTechnician,
		Latitude: &lat, Longitude: &lng,
		Available: true, Active: true,
	})
	require.NoError(t, err)

	rec := e.do(t, http.MethodGet, "/v1/technicians/nearby?latitude=48.85&longitude=2.35", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	matches := decode[[]map[string]any](t, rec)
	require.Len(t, matches, 1)

	rec = e.do(t, http.MethodGet, "/v1/technicians/nearby?latitude=bogus&longitude=2.35", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAvailabilityToggle(t *testing.T) {
	e := newEnv(t)
	tech := uuid.New()
	lat, lng := 45.76, 4.83
	_, err := e.users.Insert(context.Background(), domain.User{
		ID: tech, Role: domain.RoleTechnician,
		Latitude: &lat, Longitude: &lng,
		Available: true, Active: true,
	})
	require.NoError(t, err)

	rec := e.do(t, http.MethodPut, "/v1/technicians/availability", signToken(t, tech, domain.RoleTechnician), map[string]any{"available": false})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = e.do(t, http.MethodGet, "/v1/technicians/nearby?latitude=45.76&longitude=4.83", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, decode[[]map[string]any](t, rec))

	// users have no availability flag to flip
	rec = e.do(t, http.MethodPut, "/v1/technicians/availability", signToken(t, uuid.New(), domain.RoleUser), map[string]any{"available": true})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
