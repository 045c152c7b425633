package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"connect-hub/liveness-service/internal/challenge"
	"connect-hub/liveness-service/internal/credential"
	"connect-hub/liveness-service/internal/models"
	"connect-hub/liveness-service/internal/orchestrator"
	"connect-hub/liveness-service/internal/workerpool"
)

type mockStore struct {
	mu         sync.Mutex
	challenges map[string]*models.Challenge
}

func newMockStore() *mockStore {
	return &mockStore{challenges: make(map[string]*models.Challenge)}
}

func (m *mockStore) Put(_ context.Context, c *models.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	m.challenges[c.ID] = &cp
	return nil
}

func (m *mockStore) Get(_ context.Context, id string) (*models.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockStore) CompareAndSetUsed(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok || c.Used {
		return false, nil
	}
	c.Used = true
	return true, nil
}

func (m *mockStore) PutAttempt(context.Context, *models.VerificationAttempt) error { return nil }
func (m *mockStore) IsRevoked(context.Context, string) (bool, error)               { return false, nil }
func (m *mockStore) Revoke(context.Context, string) error                          { return nil }

type stubMatcher struct{ outcome models.VerifyOutcome }

func (s *stubMatcher) Match([]string, []models.GestureKind) models.VerifyOutcome { return s.outcome }

func newTestRouter(t *testing.T, outcome models.VerifyOutcome) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newMockStore()
	lifecycle := challenge.NewLifecycle(store, models.GesturePool, 3, 120)
	issuer := credential.NewIssuer("test-secret", 5, store)
	pool := workerpool.New(1, 4)
	t.Cleanup(pool.Close)

	orch := orchestrator.New(lifecycle, store, &stubMatcher{outcome: outcome}, issuer, pool, zaptest.NewLogger(t))
	h := NewVerificationHandler(orch, zaptest.NewLogger(t))

	router := gin.New()
	router.GET("/health", h.Health)
	v1 := router.Group("/api/v1")
	v1.POST("/challenge", h.GenerateChallenge)
	v1.POST("/verify", h.Verify)
	v1.POST("/attack-sim", h.AttackSim)
	return router
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t, models.VerifyOutcome{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGenerateChallengeEndpoint(t *testing.T) {
	router := newTestRouter(t, models.VerifyOutcome{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/challenge", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotEmpty(t, body["challenge_id"])
	assert.NotEmpty(t, body["steps"])
}

func TestVerifyEndpointUnknownChallenge(t *testing.T) {
	router := newTestRouter(t, models.VerifyOutcome{})

	payload, _ := json.Marshal(map[string]any{"challenge_id": "missing", "frames": []string{"x"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerifyEndpointSuccess(t *testing.T) {
	router := newTestRouter(t, models.VerifyOutcome{Passed: true, LivenessScore: 95, TemporalValid: true})

	challengeReq := httptest.NewRequest(http.MethodPost, "/api/v1/challenge", nil)
	challengeRec := httptest.NewRecorder()
	router.ServeHTTP(challengeRec, challengeReq)

	var challengeBody map[string]any
	require.NoError(t, json.Unmarshal(challengeRec.Body.Bytes(), &challengeBody))

	payload, _ := json.Marshal(map[string]any{
		"challenge_id": challengeBody["challenge_id"],
		"frames":       []string{"frame-1"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/verify", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotNil(t, body["credential"])
}

func TestAttackSimEndpoint(t *testing.T) {
	router := newTestRouter(t, models.VerifyOutcome{Passed: false, FaceDetectedCount: 0, TemporalValid: false})

	payload, _ := json.Marshal(map[string]any{"frames": []string{"frame-1"}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/attack-sim", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no face", body["rejection_reason"])
}
