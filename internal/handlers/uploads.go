package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/movievault/api/internal/domain"
	"github.com/movievault/api/internal/platform/auth"
	"github.com/movievault/api/internal/platform/httpx"
	"github.com/movievault/api/internal/services"
)

const maxUploadRequestBody = 16 * 1024

// UploadHandlers exposes signed upload grant endpoints for authenticated users.
type UploadHandlers struct {
	authn   *auth.Authenticator
	uploads services.UploadService
}

// NewUploadHandlers constructs a new UploadHandlers instance.
func NewUploadHandlers(authn *auth.Authenticator, uploads services.UploadService) *UploadHandlers {
	return &UploadHandlers{
		authn:   authn,
		uploads: uploads,
	}
}

// Routes registers the /uploads endpoints.
func (h *UploadHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Post("/posters", h.issuePosterUpload)
}

func (h *UploadHandlers) issuePosterUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.uploads == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "upload service unavailable", http.StatusServiceUnavailable))
		return
	}

	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return
	}

	body, err := readLimitedBody(r, maxUploadRequestBody)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}

	var req posterUploadRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest))
		return
	}

	grant, err := h.uploads.IssuePosterUpload(ctx, services.PosterUploadCommand{
		Actor:       identity,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		writeUploadError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildUploadGrantPayload(grant))
}

type posterUploadRequest struct {
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type uploadGrantPayload struct {
	URL         string            `json:"url"`
	Method      string            `json:"method"`
	ObjectKey   string            `json:"objectKey"`
	ContentType string            `json:"contentType"`
	Headers     map[string]string `json:"headers,omitempty"`
	ExpiresAt   string            `json:"expiresAt"`
}

func buildUploadGrantPayload(grant domain.UploadGrant) uploadGrantPayload {
	return uploadGrantPayload{
		URL:         grant.URL,
		Method:      grant.Method,
		ObjectKey:   grant.ObjectKey,
		ContentType: grant.ContentType,
		Headers:     grant.Headers,
		ExpiresAt:   grant.ExpiresAt.UTC().Format(time.RFC3339),
	}
}

func writeUploadError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrUploadInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrUploadUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("signing_unavailable", "upload signing unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
