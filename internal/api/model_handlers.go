package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/onnwee/listrank/internal/bundle"
	"github.com/onnwee/listrank/internal/middleware"
)

// DefaultMaxUploadBytes bounds a bundle upload when no limit is configured.
const DefaultMaxUploadBytes = 10 << 20

// ModelRegistry manages deployed model bundles.
type ModelRegistry interface {
	Discover(ctx context.Context) ([]string, error)
	Register(ctx context.Context, name string, artifacts []bundle.Artifact) error
	Deregister(ctx context.Context, name string) error
	MaxModels() int
}

// ModelsResponse lists the deployed bundles.
type ModelsResponse struct {
	Models    []string `json:"models"`
	MaxModels int      `json:"max_models"`
}

// MessageResponse is the body of successful admin mutations.
type MessageResponse struct {
	Message string `json:"message"`
}

// ModelHandlers serves the admin model endpoints.
type ModelHandlers struct {
	registry       ModelRegistry
	maxUploadBytes int64
}

// NewModelHandlers creates ModelHandlers. A non-positive maxUploadBytes uses
// DefaultMaxUploadBytes.
func NewModelHandlers(registry ModelRegistry, maxUploadBytes int64) *ModelHandlers {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &ModelHandlers{registry: registry, maxUploadBytes: maxUploadBytes}
}

// Models handles /api/v1/admin/models: GET lists, POST uploads.
func (h *ModelHandlers) Models(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.ListModels(w, r)
	case http.MethodPost:
		h.UploadModel(w, r)
	default:
		writeMethodNotAllowed(w, r, "GET, POST")
	}
}

// ListModels returns the names of all available bundles, sorted.
func (h *ModelHandlers) ListModels(w http.ResponseWriter, r *http.Request) {
	names, err := h.registry.Discover(r.Context())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, r.Context(), http.StatusOK, ModelsResponse{Models: names, MaxModels: h.registry.MaxModels()})
}

// UploadModel registers a bundle from a multipart form. The bundle name comes
// from the model_name form field or query parameter; every file part is an
// artifact and must carry one of the canonical file names.
func (h *ModelHandlers) UploadModel(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			ctx := middleware.SetErrorCode(r.Context(), ErrCodePayloadTooLarge)
			WriteError(w, ctx, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "Upload too large")
			return
		}
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, "Expected a multipart/form-data upload")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	name := strings.TrimSpace(r.FormValue("model_name"))

	artifacts, err := readArtifacts(r.MultipartForm)
	if err != nil {
		ctx := middleware.SetErrorCode(r.Context(), ErrCodeBadRequest)
		WriteError(w, ctx, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}

	if err := h.registry.Register(r.Context(), name, artifacts); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusCreated, MessageResponse{
		Message: fmt.Sprintf("Model %s uploaded successfully.", name),
	})
}

// DeleteModel handles DELETE /api/v1/admin/models/{name}.
func (h *ModelHandlers) DeleteModel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeMethodNotAllowed(w, r, http.MethodDelete)
		return
	}

	name := r.PathValue("name")
	if err := h.registry.Deregister(r.Context(), name); err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r.Context(), http.StatusOK, MessageResponse{
		Message: fmt.Sprintf("Model %s deleted successfully.", name),
	})
}

// readArtifacts reads every file part of form, in field order per key.
func readArtifacts(form *multipart.Form) ([]bundle.Artifact, error) {
	var artifacts []bundle.Artifact
	for field, headers := range form.File {
		for _, fh := range headers {
			data, err := readPart(fh)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", field, err)
			}
			artifacts = append(artifacts, bundle.Artifact{Filename: fh.Filename, Data: data})
		}
	}
	return artifacts, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
