package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"waitline/internal/auth"
	"waitline/internal/config"
	"waitline/internal/models"
	"waitline/internal/queue"
	"waitline/internal/storage"
	"waitline/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const kioskKey = "lobby-kiosk"

var clock = time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)

type fakeStaff map[string]*models.Staff

func (f fakeStaff) FindByEmail(_ context.Context, email string) (*models.Staff, error) {
	if s, ok := f[email]; ok {
		return s, nil
	}
	return nil, storage.ErrStaffNotFound
}

func (f fakeStaff) FindByID(_ context.Context, id string) (*models.Staff, error) {
	for _, s := range f {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, storage.ErrStaffNotFound
}

type fakePresence struct {
	mu      sync.Mutex
	serving map[string]map[string]bool
}

func (p *fakePresence) Heartbeat(_ context.Context, queueID, staffID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.serving[queueID] == nil {
		p.serving[queueID] = map[string]bool{}
	}
	p.serving[queueID][staffID] = true
	return nil
}

func (p *fakePresence) Leave(_ context.Context, queueID, staffID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.serving[queueID], staffID)
	return nil
}

func (p *fakePresence) count(queueID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.serving[queueID])
}

type testEnv struct {
	server   *httptest.Server
	hub      *ws.Hub
	repo     *storage.MemoryQueueRepository
	issuer   *auth.Issuer
	presence *fakePresence
	manager  string
	barber   string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ctx, cancel := context.WithCancel(context.Background())
	hub := ws.NewHub(nil)
	go hub.Run(ctx)

	repo := storage.NewMemoryQueueRepository()
	svc := queue.NewService(repo, &queue.ServiceConfig{Notifier: hub, RetryInterval: time.Millisecond})
	issuer := auth.NewIssuer(config.AuthConfig{
		AccessSecret:  "access",
		RefreshSecret: "refresh",
		QRSecret:      "qr",
		AccessTTL:     time.Hour,
		RefreshTTL:    24 * time.Hour,
		QRTokenTTL:    time.Hour,
	})

	hash, err := bcrypt.GenerateFromPassword([]byte("secret-pass"), bcrypt.MinCost)
	require.NoError(t, err)
	staff := fakeStaff{
		"boss@example.com": {ID: "mgr-1", Name: "Boss", Email: "boss@example.com", PasswordHash: string(hash), Role: auth.RoleManager},
	}

	presence := &fakePresence{serving: map[string]map[string]bool{}}
	qh := NewQueueHandler(svc, repo, issuer, presence, nil)
	qh.now = func() time.Time { return clock }

	r := gin.New()
	RegisterRoutes(r, Routes{
		Auth:      NewAuthHandler(staff, issuer, nil),
		Queue:     qh,
		Issuer:    issuer,
		KioskKeys: []string{kioskKey},
		WebSocket: hub.Handler,
	})
	ts := httptest.NewServer(r)
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})

	manager, _, err := issuer.IssuePair("mgr-1", auth.RoleManager)
	require.NoError(t, err)
	barber, _, err := issuer.IssuePair("barber-1", auth.RoleStaff)
	require.NoError(t, err)

	return &testEnv{server: ts, hub: hub, repo: repo, issuer: issuer, presence: presence, manager: manager, barber: barber}
}

type header struct{ key, value string }

func bearer(token string) header { return header{"Authorization", "Bearer " + token} }

func kiosk() header { return header{auth.KioskKeyHeader, kioskKey} }

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, headers ...header) (int, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for _, h := range headers {
		req.Header.Set(h.key, h.value)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]interface{}{}
	if res.StatusCode != http.StatusNoContent {
		var raw interface{}
		require.NoError(t, json.NewDecoder(res.Body).Decode(&raw))
		switch v := raw.(type) {
		case map[string]interface{}:
			out = v
		case []interface{}:
			out["items"] = v
		}
	}
	return res.StatusCode, out
}

func (e *testEnv) createQueue(t *testing.T, maxSize int) string {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/staff/queues", map[string]interface{}{
		"location_id":                     "downtown",
		"name":                            "Chair 1",
		"max_size":                        maxSize,
		"late_client_cap_time_in_minutes": 15,
	}, bearer(e.manager))
	require.Equal(t, http.StatusCreated, status, body)
	return body["id"].(string)
}

func (e *testEnv) join(t *testing.T, queueID, name string) map[string]interface{} {
	t.Helper()
	status, body := e.do(t, http.MethodPost, "/api/public/queues/"+queueID+"/join",
		map[string]interface{}{"customer_name": name})
	require.Equal(t, http.StatusCreated, status, body)
	return body
}

func TestQueueFlow(t *testing.T) {
	env := setupTestServer(t)
	queueID := env.createQueue(t, 5)

	wsURL := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/api/queues/" + queueID + "/ws"
	wsConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer wsConn.Close()
	require.Eventually(t, func() bool { return env.hub.ClientCount(queueID) == 1 }, time.Second, 5*time.Millisecond)

	status, first := env.do(t, http.MethodPost, "/api/kiosk/queues/"+queueID+"/entries",
		map[string]interface{}{"customer_name": "Ivan", "customer_id": "cust-1"}, kiosk())
	require.Equal(t, http.StatusCreated, status, first)
	assert.Equal(t, 1.0, first["position"])
	assert.Equal(t, 0.0, first["estimated_wait_minutes"])
	assert.Equal(t, "kiosk", first["source"])

	second := env.join(t, queueID, "Petr")
	assert.Equal(t, 2.0, second["position"])
	assert.Equal(t, 30.0, second["estimated_wait_minutes"])

	status, board := env.do(t, http.MethodGet, "/api/queues/"+queueID+"/status", nil)
	require.Equal(t, http.StatusOK, status)
	entries := board["entries"].([]interface{})
	assert.Len(t, entries, 2)

	require.NoError(t, wsConn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := wsConn.ReadMessage()
	require.NoError(t, err)
	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, "entry_added", event["event_type"])

	status, called := env.do(t, http.MethodPost, "/api/staff/queues/"+queueID+"/call", nil, bearer(env.barber))
	require.Equal(t, http.StatusOK, status)
	calledEntry := called["entry"].(map[string]interface{})
	assert.Equal(t, first["id"], calledEntry["id"])
	assert.Equal(t, "barber-1", calledEntry["assigned_staff_id"])

	status, done := env.do(t, http.MethodPost, fmt.Sprintf("/api/staff/queues/%s/entries/%s/complete", queueID, first["id"]), nil, bearer(env.barber))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "completed", done["status"])

	status, ticket := env.do(t, http.MethodGet, fmt.Sprintf("/api/queues/%s/entries/%s", queueID, second["id"]), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1.0, ticket["position"])
	assert.Equal(t, 0.0, ticket["estimated_wait_minutes"])

	status, left := env.do(t, http.MethodDelete, fmt.Sprintf("/api/public/queues/%s/entries/%s", queueID, second["id"]), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "cancelled", left["status"])
	assert.Equal(t, queue.ReasonLeft, left["cancel_reason"])

	status, called = env.do(t, http.MethodPost, "/api/staff/queues/"+queueID+"/call", nil, bearer(env.barber))
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, called["entry"], "empty queue answers with a null entry")
}

func TestErrorMapping(t *testing.T) {
	env := setupTestServer(t)
	queueID := env.createQueue(t, 1)
	entry := env.join(t, queueID, "A")

	tests := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		headers []header
		status  int
		code    string
	}{
		{"unknown queue", http.MethodPost, "/api/public/queues/missing/join", map[string]string{"customer_name": "B"}, nil, http.StatusNotFound, "QUEUE_NOT_FOUND"},
		{"missing name", http.MethodPost, "/api/public/queues/" + queueID + "/join", map[string]string{}, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"blank name", http.MethodPost, "/api/public/queues/" + queueID + "/join", map[string]string{"customer_name": "  "}, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"full", http.MethodPost, "/api/public/queues/" + queueID + "/join", map[string]string{"customer_name": "B"}, nil, http.StatusConflict, "QUEUE_FULL"},
		{"no kiosk key", http.MethodPost, "/api/kiosk/queues/" + queueID + "/entries", map[string]string{"customer_name": "B"}, nil, http.StatusUnauthorized, "INVALID_KIOSK_KEY"},
		{"no token", http.MethodPost, "/api/staff/queues/" + queueID + "/call", nil, nil, http.StatusUnauthorized, "NO_AUTH_HEADER"},
		{"staff can not create queues", http.MethodPost, "/api/staff/queues", map[string]interface{}{"location_id": "x", "max_size": 2}, []header{bearer(env.barber)}, http.StatusForbidden, "FORBIDDEN"},
		{"complete waiting entry", http.MethodPost, fmt.Sprintf("/api/staff/queues/%s/entries/%s/complete", queueID, entry["id"]), nil, []header{bearer(env.barber)}, http.StatusConflict, "INVALID_TRANSITION"},
		{"unknown entry", http.MethodGet, "/api/queues/" + queueID + "/entries/missing", nil, nil, http.StatusNotFound, "ENTRY_NOT_FOUND"},
		{"unknown queue status", http.MethodGet, "/api/queues/missing/status", nil, nil, http.StatusNotFound, "QUEUE_NOT_FOUND"},
		{"bad qr token", http.MethodPost, "/api/qr/join", map[string]string{"token": "forged", "customer_name": "B"}, nil, http.StatusUnauthorized, "INVALID_TOKEN"},
		{"queue id that is not a uuid", http.MethodPost, "/api/staff/queues", map[string]interface{}{"id": "chair-1", "location_id": "x", "max_size": 2}, []header{bearer(env.manager)}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"late cap above one year", http.MethodPost, "/api/staff/queues", map[string]interface{}{"location_id": "x", "max_size": 2, "late_client_cap_time_in_minutes": 200000000}, []header{bearer(env.manager)}, http.StatusBadRequest, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := env.do(t, tt.method, tt.path, tt.body, tt.headers...)
			assert.Equal(t, tt.status, status, body)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestDuplicateAndInactive(t *testing.T) {
	env := setupTestServer(t)
	queueID := env.createQueue(t, 5)
	path := "/api/public/queues/" + queueID + "/join"

	status, _ := env.do(t, http.MethodPost, path, map[string]string{"customer_name": "A", "customer_id": "c-1"})
	require.Equal(t, http.StatusCreated, status)
	status, body := env.do(t, http.MethodPost, path, map[string]string{"customer_name": "A", "customer_id": "c-1"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "ALREADY_IN_QUEUE", body["code"])

	status, body = env.do(t, http.MethodPatch, "/api/staff/queues/"+queueID+"/active", map[string]bool{"is_active": false}, bearer(env.manager))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["is_active"])

	status, body = env.do(t, http.MethodPost, path, map[string]string{"customer_name": "B"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "QUEUE_INACTIVE", body["code"])

	status, body = env.do(t, http.MethodGet, "/api/customers/c-1/entries", nil)
	require.Equal(t, http.StatusOK, status)
	items := body["items"].([]interface{})
	require.Len(t, items, 1)
	assert.Equal(t, queueID, items[0].(map[string]interface{})["queue_id"])
}

func TestQRJoin(t *testing.T) {
	env := setupTestServer(t)
	queueID := env.createQueue(t, 5)

	status, body := env.do(t, http.MethodGet, "/api/staff/queues/"+queueID+"/qr-token", nil, bearer(env.barber))
	assert.Equal(t, http.StatusForbidden, status)

	status, body = env.do(t, http.MethodGet, "/api/staff/queues/"+queueID+"/qr-token", nil, bearer(env.manager))
	require.Equal(t, http.StatusOK, status)
	token := body["token"].(string)

	status, body = env.do(t, http.MethodPost, "/api/qr/join", map[string]string{"token": token, "customer_name": "Scanner"})
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, "qr", body["source"])
	assert.Equal(t, queueID, body["queue_id"])
}

func TestStaffCancelAndHeartbeat(t *testing.T) {
	env := setupTestServer(t)
	queueID := env.createQueue(t, 5)
	entry := env.join(t, queueID, "A")

	status, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/staff/queues/%s/entries/%s/cancel", queueID, entry["id"]),
		map[string]string{"reason": "no show"}, bearer(env.barber))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "no show", body["cancel_reason"])

	status, _ = env.do(t, http.MethodPost, "/api/staff/queues/"+queueID+"/presence", nil, bearer(env.barber))
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, 1, env.presence.count(queueID))

	status, body = env.do(t, http.MethodDelete, "/api/staff/queues/"+queueID+"/presence", nil, bearer(env.barber))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Stopped serving the queue", body["message"])
	assert.Zero(t, env.presence.count(queueID))

	status, body = env.do(t, http.MethodPost, "/api/staff/queues/"+queueID+"/entries",
		map[string]string{"customer_name": "Desk"}, bearer(env.barber))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "staff", body["source"])
}

func TestAuthHandlers(t *testing.T) {
	env := setupTestServer(t)

	status, body := env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "boss@example.com", "password": "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_CREDENTIALS", body["code"])

	status, body = env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "nobody@example.com", "password": "secret-pass"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = env.do(t, http.MethodPost, "/auth/login", map[string]string{"email": "boss@example.com", "password": "secret-pass"})
	require.Equal(t, http.StatusOK, status)
	claims, err := env.issuer.ParseAccess(body["access_token"].(string))
	require.NoError(t, err)
	assert.Equal(t, "mgr-1", claims.StaffID)
	assert.Equal(t, auth.RoleManager, claims.Role)

	status, body = env.do(t, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": body["refresh_token"].(string)})
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body["access_token"])

	status, body = env.do(t, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": "nope"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", body["code"])
}

func TestStaffMe(t *testing.T) {
	env := setupTestServer(t)

	status, body := env.do(t, http.MethodGet, "/api/staff/me", nil, bearer(env.manager))
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, "mgr-1", body["id"])
	assert.Equal(t, "boss@example.com", body["email"])
	assert.Equal(t, auth.RoleManager, body["role"])

	// token is valid but the account is gone
	status, body = env.do(t, http.MethodGet, "/api/staff/me", nil, bearer(env.barber))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "INVALID_TOKEN", body["code"])

	status, body = env.do(t, http.MethodGet, "/api/staff/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "NO_AUTH_HEADER", body["code"])
}

func TestQueueError_Conflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	queueError(c, zap.NewNop(), fmt.Errorf("%w: gave up after 3 attempts", queue.ErrConcurrencyConflict))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "CONCURRENCY_CONFLICT")
}
