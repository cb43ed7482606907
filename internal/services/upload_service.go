package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/movievault/api/internal/domain"
	"github.com/movievault/api/internal/platform/storage"
)

var (
	// ErrUploadInvalidInput indicates the upload request failed validation.
	ErrUploadInvalidInput = errors.New("upload: invalid input")
	// ErrUploadUnavailable signals the signing backend could not produce a URL.
	ErrUploadUnavailable = errors.New("upload: signing unavailable")
)

const (
	posterKeyPrefix    = "posters"
	maxPosterSizeBytes = int64(10 * 1024 * 1024)
	posterUploadExpiry = 15 * time.Minute
)

// posterExtensions maps accepted poster content types to their object key extension.
var posterExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// UploadSigner is the subset of the storage client used to mint signed URLs.
type UploadSigner interface {
	SignUpload(ctx context.Context, bucket, object string, opts storage.UploadOptions) (storage.SignedUpload, error)
}

// UploadServiceDeps wires dependencies for the upload service implementation.
type UploadServiceDeps struct {
	Signer       UploadSigner
	Bucket       string
	UploadOrigin string
	IDGenerator  func() string
}

type uploadService struct {
	signer UploadSigner
	bucket string
	origin string
	newID  func() string
}

// NewUploadService constructs an UploadService backed by the provided dependencies.
func NewUploadService(deps UploadServiceDeps) (UploadService, error) {
	if deps.Signer == nil {
		return nil, errors.New("upload service: signer is required")
	}
	bucket := strings.TrimSpace(deps.Bucket)
	if bucket == "" {
		return nil, errors.New("upload service: bucket is required")
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	return &uploadService{
		signer: deps.Signer,
		bucket: bucket,
		origin: strings.TrimSpace(deps.UploadOrigin),
		newID:  idGen,
	}, nil
}

// IssuePosterUpload validates the request and mints a write-only signed PUT
// URL scoped to a freshly generated object key under the caller's prefix. The
// uploaded bytes are never inspected; the grant restricts method, content
// type, and expiry instead.
func (s *uploadService) IssuePosterUpload(ctx context.Context, cmd PosterUploadCommand) (domain.UploadGrant, error) {
	if cmd.Actor == nil || strings.TrimSpace(cmd.Actor.UID) == "" {
		return domain.UploadGrant{}, fmt.Errorf("%w: caller identity is required", ErrUploadInvalidInput)
	}

	contentType := strings.ToLower(strings.TrimSpace(cmd.ContentType))
	ext, ok := posterExtensions[contentType]
	if !ok {
		return domain.UploadGrant{}, fmt.Errorf("%w: unsupported content type %q", ErrUploadInvalidInput, cmd.ContentType)
	}

	if cmd.SizeBytes <= 0 {
		return domain.UploadGrant{}, fmt.Errorf("%w: size_bytes must be positive", ErrUploadInvalidInput)
	}
	if cmd.SizeBytes > maxPosterSizeBytes {
		return domain.UploadGrant{}, fmt.Errorf("%w: poster exceeds %d bytes", ErrUploadInvalidInput, maxPosterSizeBytes)
	}

	objectKey := fmt.Sprintf("%s/%s/%s.%s",
		posterKeyPrefix,
		strings.TrimSpace(cmd.Actor.UID),
		strings.ToLower(s.newID()),
		ext,
	)

	signed, err := s.signer.SignUpload(ctx, s.bucket, objectKey, storage.UploadOptions{
		ContentType: contentType,
		ExpiresIn:   posterUploadExpiry,
		Origin:      s.origin,
	})
	if err != nil {
		return domain.UploadGrant{}, fmt.Errorf("%w: %v", ErrUploadUnavailable, err)
	}

	return domain.UploadGrant{
		URL:         signed.URL,
		Method:      signed.Method,
		ObjectKey:   objectKey,
		ContentType: contentType,
		Headers:     signed.Headers,
		ExpiresAt:   signed.ExpiresAt,
	}, nil
}
