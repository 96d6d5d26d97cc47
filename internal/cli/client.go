package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/onnwee/listrank/internal/api"
	"github.com/onnwee/listrank/internal/bundle"
)

// DefaultServerURL is used when neither --server nor LISTRANK_URL is set.
const DefaultServerURL = "http://localhost:8080"

// ErrMissingBundleFile is returned by UploadModel before any request is sent.
var ErrMissingBundleFile = errors.New("bundle file not found")

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("server returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// Client talks to a ranking server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client. token is sent as a bearer token when set.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// ListModels returns the deployed bundle names and the server's cap.
func (c *Client) ListModels(ctx context.Context) (*api.ModelsResponse, error) {
	var out api.ModelsResponse
	if err := c.do(ctx, http.MethodGet, api.PathModels, nil, "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadModel registers the bundle stored in dir under name. The three
// artifact files must exist in dir.
func (c *Client) UploadModel(ctx context.Context, name, dir string) (string, error) {
	for _, f := range bundle.RequiredArtifacts {
		info, err := os.Stat(filepath.Join(dir, f))
		if err != nil || info.IsDir() {
			return "", fmt.Errorf("%w: %s", ErrMissingBundleFile, filepath.Join(dir, f))
		}
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model_name", name); err != nil {
		return "", err
	}
	for _, f := range bundle.RequiredArtifacts {
		if err := attach(mw, filepath.Join(dir, f)); err != nil {
			return "", err
		}
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out api.MessageResponse
	if err := c.do(ctx, http.MethodPost, api.PathModels, &body, mw.FormDataContentType(), &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

func attach(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	part, err := mw.CreateFormFile("files", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	return nil
}

// DeleteModel removes a deployed bundle.
func (c *Client) DeleteModel(ctx context.Context, name string) (string, error) {
	var out api.MessageResponse
	path := api.PathModels + "/" + url.PathEscape(name)
	if err := c.do(ctx, http.MethodDelete, path, nil, "", &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// RankRequest is the body the simulator sends. Listings stay untyped so
// fixture attributes reach the server unchanged.
type RankRequest struct {
	CallerID string           `json:"caller_id"`
	Listings []map[string]any `json:"listings"`
}

// RankResponse is the subset of the ranking response the CLI reports on.
type RankResponse struct {
	Listings            []json.RawMessage `json:"listings"`
	SpearmanCorrelation *float64          `json:"spearman_correlation"`
	ModelName           string            `json:"model_name"`
}

// Rank sends one ranking request.
func (c *Client) Rank(ctx context.Context, req RankRequest) (*RankResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	var out RankResponse
	if err := c.do(ctx, http.MethodPost, api.PathRank, bytes.NewReader(payload), "application/json", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		var envelope api.ErrorResponse
		if json.Unmarshal(data, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
