package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockHealthChecker is a mock implementation of HealthChecker for testing.
type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) HealthCheck(ctx context.Context) error {
	return m.err
}

func decodeHealth(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	var response HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHealth_Success(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{MetricsEnabled: true})

	w := httptest.NewRecorder()
	handlers.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	response := decodeHealth(t, w)
	if response.Status != "healthy" {
		t.Errorf("expected status 'healthy', got %s", response.Status)
	}
	if response.Checks["runtime"] != "ok" {
		t.Errorf("expected runtime check to be 'ok', got %s", response.Checks["runtime"])
	}
	if _, err := time.Parse(time.RFC3339, response.Timestamp); err != nil {
		t.Errorf("timestamp is not valid RFC3339: %v", err)
	}
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	handlers := NewHealthHandlers(HealthHandlersConfig{})

	for _, h := range []http.HandlerFunc{handlers.Health, handlers.Ready} {
		w := httptest.NewRecorder()
		h(w, httptest.NewRequest(http.MethodPost, "/health", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status 405, got %d", w.Code)
		}
		if got := w.Header().Get("Allow"); got != http.MethodGet {
			t.Errorf("expected Allow: GET, got %q", got)
		}
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		config     HealthHandlersConfig
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name: "all healthy",
			config: HealthHandlersConfig{
				StoreChecker:   &mockHealthChecker{},
				RedisChecker:   &mockHealthChecker{},
				MetricsEnabled: true,
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"store": "ok", "redis": "ok", "metrics": "ok"},
		},
		{
			name: "redis not configured",
			config: HealthHandlersConfig{
				StoreChecker:   &mockHealthChecker{},
				MetricsEnabled: true,
			},
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"store": "ok", "redis": "not_configured", "metrics": "ok"},
		},
		{
			name: "store down",
			config: HealthHandlersConfig{
				StoreChecker: &mockHealthChecker{err: errors.New("bucket unreachable")},
				RedisChecker: &mockHealthChecker{},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"store": "error", "redis": "ok", "metrics": "not_configured"},
		},
		{
			name: "redis down",
			config: HealthHandlersConfig{
				StoreChecker: &mockHealthChecker{},
				RedisChecker: &mockHealthChecker{err: errors.New("connection refused")},
			},
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"store": "ok", "redis": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handlers := NewHealthHandlers(tt.config)
			w := httptest.NewRecorder()
			handlers.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			response := decodeHealth(t, w)
			wantStatus := "healthy"
			if tt.wantStatus != http.StatusOK {
				wantStatus = "unhealthy"
			}
			if response.Status != wantStatus {
				t.Errorf("expected status %q, got %q", wantStatus, response.Status)
			}
			for check, want := range tt.wantChecks {
				if response.Checks[check] != want {
					t.Errorf("check %s: expected %q, got %q", check, want, response.Checks[check])
				}
			}
		})
	}
}

func TestReady_HonoursTimeout(t *testing.T) {
	slow := checkerFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	handlers := NewHealthHandlers(HealthHandlersConfig{StoreChecker: slow})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	w := httptest.NewRecorder()
	handlers.Ready(w, httptest.NewRequest(http.MethodGet, "/ready", nil).WithContext(ctx))

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", w.Code)
	}
}

type checkerFunc func(ctx context.Context) error

func (f checkerFunc) HealthCheck(ctx context.Context) error { return f(ctx) }
