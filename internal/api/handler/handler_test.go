package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gigmarket/backend/internal/api/handler"
	"gigmarket/backend/internal/chathub"
	"gigmarket/backend/internal/jobs"
	"gigmarket/backend/internal/models"
	"gigmarket/backend/internal/notify"
	"gigmarket/backend/internal/orders"
	"gigmarket/backend/internal/storage"
	"gigmarket/backend/internal/storage/storagetest"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret        = "test-jwt-secret"
	testPaymentSecret = "test-payment-secret"
)

// jobStore keeps job records in memory.
type jobStore struct {
	mu   sync.Mutex
	jobs map[string]models.Job
}

func (s *jobStore) SaveJob(_ context.Context, job *models.Job, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *jobStore) GetJob(_ context.Context, id string) (*models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &job, nil
}

type testEnv struct {
	router  *gin.Engine
	auth    *handler.Authenticator
	fixture storagetest.Fixture
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := storagetest.NewService(t)
	f := storagetest.Seed(t, store)

	notifiers := notify.NewMulti()
	orderSvc := orders.NewService(store, notifiers)
	hub := chathub.NewManagerService(orderSvc, nil)
	notifiers.Add(hub)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	auth := handler.NewAuthenticator(testSecret, "gigmarket-test")
	tracker := jobs.NewTracker(&jobStore{jobs: map[string]models.Job{}}, time.Hour)
	h := handler.NewHandler(orderSvc, hub, tracker, auth, testPaymentSecret, []string{"http://localhost:5173"})

	return &testEnv{router: h.Router(), auth: auth, fixture: f}
}

func (e *testEnv) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := e.auth.IssueToken(userID, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path, userID string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+e.token(t, userID))
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return w.Code, response
}

func errorCode(response map[string]interface{}) string {
	errObj, _ := response["error"].(map[string]interface{})
	code, _ := errObj["code"].(string)
	return code
}

func (e *testEnv) createOrder(t *testing.T) string {
	t.Helper()
	status, response := e.do(t, http.MethodPost, "/api/v1/orders", e.fixture.Buyer.ID, map[string]interface{}{
		"gigId":          e.fixture.Gig.ID,
		"sellerId":       e.fixture.Seller.ID,
		"initialMessage": "Hi",
	})
	require.Equal(t, http.StatusCreated, status, response)
	return response["data"].(map[string]interface{})["id"].(string)
}

func (e *testEnv) markPaid(orderID, secret string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/orders/"+orderID+"/paid", nil)
	if secret != "" {
		req.Header.Set("X-Payment-Secret", secret)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	env := setupTestEnv(t)
	status, response := env.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, response["success"].(bool))
}

func TestAuthRequired(t *testing.T) {
	env := setupTestEnv(t)

	status, response := env.do(t, http.MethodGet, "/api/v1/orders", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", errorCode(response))

	other := handler.NewAuthenticator("another-secret", "gigmarket-test")
	forged, err := other.IssueToken(env.fixture.Buyer.ID, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateOrder(t *testing.T) {
	env := setupTestEnv(t)
	f := env.fixture

	tests := []struct {
		name           string
		userID         string
		body           map[string]interface{}
		expectedStatus int
		expectedCode   string
	}{
		{
			name:           "buyer creates order",
			userID:         f.Buyer.ID,
			body:           map[string]interface{}{"gigId": f.Gig.ID, "sellerId": f.Seller.ID, "initialMessage": "Hi"},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "duplicate order",
			userID:         f.Buyer.ID,
			body:           map[string]interface{}{"gigId": f.Gig.ID, "sellerId": f.Seller.ID, "initialMessage": "Hi again"},
			expectedStatus: http.StatusConflict,
			expectedCode:   "CONFLICT",
		},
		{
			name:           "seller orders own gig",
			userID:         f.Seller.ID,
			body:           map[string]interface{}{"gigId": f.Gig.ID, "sellerId": f.Seller.ID, "initialMessage": "Hi"},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "missing fields",
			userID:         f.Buyer.ID,
			body:           map[string]interface{}{"gigId": f.Gig.ID},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "VALIDATION_ERROR",
		},
		{
			name:           "unknown gig",
			userID:         f.Buyer.ID,
			body:           map[string]interface{}{"gigId": "nope", "sellerId": f.Seller.ID, "initialMessage": "Hi"},
			expectedStatus: http.StatusNotFound,
			expectedCode:   "ORDER_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, response := env.do(t, http.MethodPost, "/api/v1/orders", tt.userID, tt.body)
			assert.Equal(t, tt.expectedStatus, status, response)
			if tt.expectedCode != "" {
				assert.Equal(t, tt.expectedCode, errorCode(response))
				return
			}
			data := response["data"].(map[string]interface{})
			assert.Equal(t, "pending", data["status"])
			assert.Equal(t, false, data["paid"])
			assert.Equal(t, f.Buyer.ID, data["buyerId"])
		})
	}
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	env := setupTestEnv(t)
	f := env.fixture
	orderID := env.createOrder(t)

	status, response := env.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/status", f.Buyer.ID, map[string]string{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(response))

	status, response = env.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/status", f.Seller.ID, map[string]string{"status": "shipped"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_STATUS", errorCode(response))

	status, response = env.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/status", f.Seller.ID, map[string]string{"status": "completed"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(response))

	status, _ = env.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/status", f.Seller.ID, map[string]string{"status": "accepted"})
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, http.StatusUnauthorized, env.markPaid(orderID, "").Code)
	assert.Equal(t, http.StatusUnauthorized, env.markPaid(orderID, "wrong").Code)
	require.Equal(t, http.StatusOK, env.markPaid(orderID, testPaymentSecret).Code)
	require.Equal(t, http.StatusOK, env.markPaid(orderID, testPaymentSecret).Code, "payment callback is idempotent")
	assert.Equal(t, http.StatusNotFound, env.markPaid("missing", testPaymentSecret).Code)

	for _, next := range []string{"in_progress", "completed"} {
		status, response = env.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/status", f.Seller.ID, map[string]string{"status": next})
		require.Equal(t, http.StatusOK, status, response)
	}

	status, response = env.do(t, http.MethodGet, "/api/v1/orders/"+orderID, f.Buyer.ID, nil)
	require.Equal(t, http.StatusOK, status)
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, true, data["paid"])
	assert.Len(t, data["conversation"], 1)

	status, _ = env.do(t, http.MethodGet, "/api/v1/orders/"+orderID, "stranger", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, response = env.do(t, http.MethodPost, "/api/v1/orders/"+orderID+"/review", f.Buyer.ID, map[string]interface{}{"rating": 5, "comment": "Great"})
	require.Equal(t, http.StatusCreated, status, response)

	status, response = env.do(t, http.MethodGet, "/api/v1/gigs/"+f.Gig.ID+"/reviews", f.Seller.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, response["data"], 1)

	status, response = env.do(t, http.MethodGet, "/api/v1/orders", f.Seller.ID, nil)
	require.Equal(t, http.StatusOK, status)
	list := response["data"].([]interface{})
	require.Len(t, list, 1)
	assert.NotNil(t, list[0].(map[string]interface{})["gig"])
}

func TestJobs(t *testing.T) {
	env := setupTestEnv(t)
	f := env.fixture

	status, response := env.do(t, http.MethodPost, "/api/v1/jobs", f.Seller.ID, map[string]string{"kind": "course_upload"})
	require.Equal(t, http.StatusCreated, status, response)
	jobID := response["data"].(map[string]interface{})["id"].(string)

	status, response = env.do(t, http.MethodPatch, "/api/v1/jobs/"+jobID, f.Seller.ID, map[string]interface{}{"state": "running", "progress": 50})
	require.Equal(t, http.StatusOK, status, response)

	status, response = env.do(t, http.MethodGet, "/api/v1/jobs/"+jobID, f.Seller.ID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(50), response["data"].(map[string]interface{})["progress"])

	status, _ = env.do(t, http.MethodGet, "/api/v1/jobs/"+jobID, f.Buyer.ID, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodGet, "/api/v1/jobs/missing", f.Seller.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestWebSocket_JoinReceivesSnapshot(t *testing.T) {
	env := setupTestEnv(t)
	orderID := env.createOrder(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+env.token(t, env.fixture.Seller.ID), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": "joinOrderRoom",
		"data":  map[string]string{"orderId": orderID},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Event string                      `json:"event"`
		Data  models.ConversationSnapshot `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "conversation", frame.Event)
	assert.Equal(t, orderID, frame.Data.OrderID)
	require.Len(t, frame.Data.Messages, 1)
	assert.Equal(t, "Hi", frame.Data.Messages[0].Text)
}
