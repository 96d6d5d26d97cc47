package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/listrank/internal/auth"
	"github.com/onnwee/listrank/internal/middleware"
	"github.com/onnwee/listrank/internal/predlog"
	"github.com/onnwee/listrank/internal/scoring"
)

const testSecret = "integration-secret-0123456789abcdef"

// syncBuffer is a bytes.Buffer safe for the server goroutines to log into.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// testServer is the full handler stack behind an httptest.Server.
type testServer struct {
	*httptest.Server
	logPath string
	token   string
}

// newTestServer wires the real router, scoring service, prediction log,
// auth and middleware the way the server does.
func newTestServer(t *testing.T, logBuf *syncBuffer) *testServer {
	t.Helper()
	router := newTestRouter(t)
	logPath := filepath.Join(t.TempDir(), "predictions.log")
	tokens := auth.NewTokenService(testSecret, "")

	mux := NewServeMux(MuxConfig{
		Rank:      NewRankHandlers(scoring.NewService(scoring.Config{Selector: router, Log: predlog.NewFileLogger(logPath)}), 0),
		Models:    NewModelHandlers(router, 0),
		Health:    NewHealthHandlers(HealthHandlersConfig{StoreChecker: checkerFunc(router.Ping)}),
		AdminAuth: middleware.AdminAuth(tokens, nil),
		RankLimit: middleware.RateLimiter(
			middleware.NewInMemoryRateLimitStore(),
			middleware.RateLimitConfig{RequestsPerWindow: 100, WindowDuration: time.Minute},
			middleware.IPKeyFunc(), nil),
	})

	logger := slog.New(slog.NewJSONHandler(logBuf, nil))
	srv := httptest.NewServer(middleware.RequestID(middleware.Logging(logger)(mux)))
	t.Cleanup(srv.Close)

	token, err := tokens.Issue("integration", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return &testServer{Server: srv, logPath: logPath, token: token}
}

func (s *testServer) upload(t *testing.T, name, token string) *http.Response {
	t.Helper()
	body, contentType := encodeUpload(t, name, validUpload())
	req, err := http.NewRequest(http.MethodPost, s.URL+PathModels, body)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", contentType)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	return resp
}

func TestFullIntegration_UploadRankDelete(t *testing.T) {
	var logBuf syncBuffer
	srv := newTestServer(t, &logBuf)
	client := srv.Client()

	// ranking before any upload has nothing to route to
	resp, err := client.Post(srv.URL+PathRank, "application/json", strings.NewReader(`{"caller_id": "c1", "listings": [{"id": 1}]}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("rank without models: expected 404, got %d", resp.StatusCode)
	}

	// upload without a token is rejected
	if resp := srv.upload(t, "model_a", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("upload without token: expected 401, got %d", resp.StatusCode)
	}
	if resp := srv.upload(t, "model_a", srv.token); resp.StatusCode != http.StatusCreated {
		t.Fatalf("upload: expected 201, got %d", resp.StatusCode)
	}

	// rank
	body := `{"caller_id": "c1", "listings": [
		{"id": 10, "number_of_reviews": 0, "accommodates": 4},
		{"id": 11, "number_of_reviews": 0, "accommodates": 1},
		{"id": 12, "number_of_reviews": 50, "review_scores_rating": 4.9}
	]}`
	resp, err = client.Post(srv.URL+PathRank, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	var ranked RankListingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&ranked); err != nil {
		t.Fatalf("decode: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rank: expected 200, got %d", resp.StatusCode)
	}
	if ranked.ModelName != "model_a" || resp.Header.Get(ModelHeader) != "model_a" {
		t.Errorf("expected model_a, got %q / %q", ranked.ModelName, resp.Header.Get(ModelHeader))
	}
	wantIDs := []int64{12, 10, 11}
	for i, id := range wantIDs {
		if ranked.Listings[i].ID != id {
			t.Errorf("position %d: expected id %d, got %d", i, id, ranked.Listings[i].ID)
		}
	}
	if resp.Header.Get("X-RateLimit-Limit") != "100" {
		t.Errorf("expected rate limit headers on ranking routes")
	}

	entries, _, err := predlog.ReadFile(srv.logPath)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("expected 3 prediction log entries, got %d", len(entries))
	}

	// delete
	del, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/admin/models/model_a", nil)
	del.Header.Set("Authorization", "Bearer "+srv.token)
	resp, err = client.Do(del)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", resp.StatusCode)
	}

	if !strings.Contains(logBuf.String(), `"subject":"integration"`) {
		t.Error("expected admin subject in request logs")
	}
}

func TestFullIntegration_404Handler(t *testing.T) {
	var logBuf syncBuffer
	srv := newTestServer(t, &logBuf)

	tests := []struct {
		path       string
		wantStatus int
	}{
		{"/", http.StatusOK},
		{"/api/v1/scenes", http.StatusNotFound},
		{"/api/v1/rank-listings/extra", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := srv.Client().Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			if resp.Header.Get(middleware.RequestIDHeader) == "" {
				t.Error("expected a request id header")
			}
			if tt.wantStatus == http.StatusNotFound {
				var body ErrorResponse
				if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body.Error.Code != ErrCodeNotFound {
					t.Errorf("expected code %s, got %s", ErrCodeNotFound, body.Error.Code)
				}
			}
		})
	}
}

func TestFullIntegration_Ready(t *testing.T) {
	var logBuf syncBuffer
	srv := newTestServer(t, &logBuf)

	resp, err := srv.Client().Get(srv.URL + PathReady)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected ready, got %d", resp.StatusCode)
	}
}
