package httpapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"capture-scheduler-go/internal/api"
	"capture-scheduler-go/internal/database"
	"capture-scheduler-go/internal/lock"
	"capture-scheduler-go/internal/models"
	"capture-scheduler-go/internal/storage"
	"capture-scheduler-go/internal/store"

	"golang.org/x/net/http2"
)

type stubTrigger struct {
	db     *database.Service
	locker *lock.LocalLocker
}

func (s *stubTrigger) TriggerManual(ctx context.Context, userId string) (*models.CaptureSession, error) {
	if _, err := s.locker.Acquire(ctx, userId); err != nil {
		return nil, err
	}
	return s.db.CreateSession(ctx, userId, nil, time.Now())
}

func (s *stubTrigger) Status(ctx context.Context) (*models.SchedulerStatus, error) {
	return &models.SchedulerStatus{Running: true, TickInterval: "1m0s"}, nil
}

func setupTestServer(t *testing.T) (*Server, *database.Service) {
	t.Helper()
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "captures.db"),
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  time.Second,
		BusyTimeout:  5 * time.Second,
	}, 5)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(db.Close)

	writer := storage.NewWriter(storage.NewMemoryStore(), nil, models.StorageConfig{KeyPrefix: "photos"})
	service := api.NewCaptureService(db, db, writer, &stubTrigger{db: db, locker: lock.NewLocalLocker(time.Minute)})
	return NewServer(models.HTTPConfig{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second}, service), db
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestScheduleRoutes(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.Router()

	rec := doJSON(t, h, http.MethodPost, "/v1/users/alice/schedules", map[string]any{"frequency_hours": 0.5})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for short frequency, got %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/users/alice/schedules", map[string]any{"frequency_hours": 2})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var sched models.ScheduleRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &sched); err != nil {
		t.Fatalf("Failed to decode schedule: %v", err)
	}
	if sched.FrequencyHours != 2 || !sched.NotificationsEnabled {
		t.Errorf("Unexpected schedule: %+v", sched)
	}

	base := "/v1/users/alice/schedules/" + strconv.FormatInt(sched.Id, 10)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"get", http.MethodGet, base, nil, http.StatusOK},
		{"other user", http.MethodGet, "/v1/users/bob/schedules/" + strconv.FormatInt(sched.Id, 10), nil, http.StatusNotFound},
		{"bad id", http.MethodGet, "/v1/users/alice/schedules/abc", nil, http.StatusBadRequest},
		{"patch", http.MethodPatch, base, map[string]any{"silent_mode": true}, http.StatusOK},
		{"patch unknown field", http.MethodPatch, base, map[string]any{"color": "red"}, http.StatusBadRequest},
		{"pause", http.MethodPost, base + "/pause", nil, http.StatusOK},
		{"resume", http.MethodPost, base + "/resume", nil, http.StatusOK},
		{"delete", http.MethodDelete, base, nil, http.StatusNoContent},
		{"resume archived", http.MethodPost, base + "/resume", nil, http.StatusConflict},
		{"list", http.MethodGet, "/v1/users/alice/schedules", nil, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, h, tt.method, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("Expected %d, got %d: %s", tt.want, rec.Code, rec.Body)
			}
		})
	}
}

func TestCaptureRoutes(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.Router()

	rec := doJSON(t, h, http.MethodPost, "/v1/users/alice/captures", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d: %s", rec.Code, rec.Body)
	}
	var session models.SessionRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("Failed to decode session: %v", err)
	}
	if session.Status != models.SessionPending {
		t.Errorf("Expected PENDING, got %s", session.Status)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/users/alice/captures", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 for a capture in progress, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/users/alice/sessions/"+session.Id, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/users/alice/sessions/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/users/alice/sessions?limit=5", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodGet, "/v1/users/alice/photos", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
}

func TestConsentAndLedgerRoutes(t *testing.T) {
	server, db := setupTestServer(t)
	h := server.Router()

	rec := doJSON(t, h, http.MethodGet, "/v1/users/alice/consents/current", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 without consent, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/users/alice/consents", map[string]any{"scopes": []string{"telemetry"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown scope, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/users/alice/consents",
		map[string]any{"scopes": []string{models.ScopePhotoStorage, models.ScopePhotoMonetization}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body)
	}

	rec = doJSON(t, h, http.MethodPost, "/v1/users/alice/consents/7/revoke", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown version, got %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, "/v1/users/alice/consents/1/revoke", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d: %s", rec.Code, rec.Body)
	}

	if _, err := db.AppendEarning(context.Background(), store.AppendEarningParams{
		UserId: "alice", AmountCents: 5, PhotoId: "p1", Reason: "photo_capture",
	}); err != nil {
		t.Fatalf("AppendEarning failed: %v", err)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/users/alice/balance", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var balance models.UserBalance
	if err := json.Unmarshal(rec.Body.Bytes(), &balance); err != nil {
		t.Fatalf("Failed to decode balance: %v", err)
	}
	if balance.BalanceCents != 5 || balance.Balance.String() != "0.05" {
		t.Errorf("Expected 5 cents, got %+v", balance)
	}

	rec = doJSON(t, h, http.MethodGet, "/v1/users/alice/earnings?limit=1000", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var earnings []models.EarningRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &earnings); err != nil {
		t.Fatalf("Failed to decode earnings: %v", err)
	}
	if len(earnings) != 1 || earnings[0].PhotoId != "p1" {
		t.Errorf("Unexpected earnings: %+v", earnings)
	}
}

func TestHealthAndStatusRoutes(t *testing.T) {
	server, _ := setupTestServer(t)
	h := server.Router()

	if rec := doJSON(t, h, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from /healthz, got %d", rec.Code)
	}
	if rec := doJSON(t, h, http.MethodGet, "/v1/scheduler/status", nil); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 from status, got %d", rec.Code)
	}
}

func TestServe_CleartextHTTP2(t *testing.T) {
	server, _ := setupTestServer(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx, listener) }()

	client := &http.Client{Transport: &http2.Transport{
		AllowHTTP: true,
		DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, network, addr)
		},
	}}
	resp, err := client.Get("http://" + listener.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("h2c request failed: %v", err)
	}
	resp.Body.Close()
	if resp.ProtoMajor != 2 {
		t.Errorf("Expected HTTP/2, got %s", resp.Proto)
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Serve returned error: %v", err)
	}
}
