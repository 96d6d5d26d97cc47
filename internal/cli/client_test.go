package cli

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/onnwee/listrank/internal/api"
	"github.com/onnwee/listrank/internal/bundle"
)

func writeBundleDir(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, f := range files {
		if err := os.WriteFile(filepath.Join(dir, f), []byte(`{"f":"`+f+`"}`), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestClient_ListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != api.PathModels {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(api.ModelsResponse{Models: []string{"a", "b"}, MaxModels: 2})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL+"/", "tok", time.Second).ListModels(t.Context())
	if err != nil {
		t.Fatalf("ListModels() error = %v", err)
	}
	if !slices.Equal(resp.Models, []string{"a", "b"}) || resp.MaxModels != 2 {
		t.Errorf("ListModels() = %+v", resp)
	}
}

func TestClient_UploadModel(t *testing.T) {
	var gotName string
	var gotFiles []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm() error = %v", err)
		}
		gotName = r.FormValue("model_name")
		for _, fhs := range r.MultipartForm.File {
			for _, fh := range fhs {
				gotFiles = append(gotFiles, fh.Filename)
			}
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(api.MessageResponse{Message: "Model baseline uploaded successfully."})
	}))
	defer srv.Close()

	dir := writeBundleDir(t, bundle.RequiredArtifacts...)
	msg, err := NewClient(srv.URL, "", time.Second).UploadModel(t.Context(), "baseline", dir)
	if err != nil {
		t.Fatalf("UploadModel() error = %v", err)
	}
	if msg != "Model baseline uploaded successfully." {
		t.Errorf("message = %q", msg)
	}
	if gotName != "baseline" {
		t.Errorf("model_name = %q", gotName)
	}
	slices.Sort(gotFiles)
	want := slices.Sorted(slices.Values(bundle.RequiredArtifacts))
	if !slices.Equal(gotFiles, want) {
		t.Errorf("files = %v, want %v", gotFiles, want)
	}
}

func TestClient_UploadModelMissingFile(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	dir := writeBundleDir(t, bundle.FilePredictor, bundle.FileConfig)
	_, err := NewClient(srv.URL, "", time.Second).UploadModel(t.Context(), "baseline", dir)
	if !errors.Is(err, ErrMissingBundleFile) {
		t.Fatalf("expected ErrMissingBundleFile, got %v", err)
	}
	if called {
		t.Error("no request should be sent when a file is missing")
	}
}

func TestClient_DeleteModel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != api.PathModels+"/baseline" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(api.MessageResponse{Message: "Model baseline deleted successfully."})
	}))
	defer srv.Close()

	msg, err := NewClient(srv.URL, "", time.Second).DeleteModel(t.Context(), "baseline")
	if err != nil {
		t.Fatalf("DeleteModel() error = %v", err)
	}
	if msg != "Model baseline deleted successfully." {
		t.Errorf("message = %q", msg)
	}
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantCode string
		wantMsg  string
	}{
		{"envelope", http.StatusNotFound, `{"error":{"code":"model_not_found","message":"model not found: x"}}`, "model_not_found", "model not found: x"},
		{"plain text", http.StatusBadGateway, "upstream down\n", "", "upstream down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "", time.Second).DeleteModel(t.Context(), "x")
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %v", err)
			}
			if apiErr.Status != tt.status || apiErr.Code != tt.wantCode || apiErr.Message != tt.wantMsg {
				t.Errorf("APIError = %+v", apiErr)
			}
		})
	}
}

func TestClient_Rank(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req RankRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if req.CallerID != "c1" || len(req.Listings) != 2 {
			t.Errorf("request = %+v", req)
		}
		_, _ = io.WriteString(w, `{"listings":[{"id":2},{"id":1}],"ratings":[4,3],"spearman_correlation":null,"model_name":"m"}`)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "", time.Second).Rank(t.Context(), RankRequest{
		CallerID: "c1",
		Listings: []map[string]any{{"id": 1}, {"id": 2}},
	})
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if resp.ModelName != "m" || len(resp.Listings) != 2 || resp.SpearmanCorrelation != nil {
		t.Errorf("Rank() = %+v", resp)
	}
}
