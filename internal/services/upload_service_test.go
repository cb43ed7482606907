package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/movievault/api/internal/platform/auth"
	"github.com/movievault/api/internal/platform/storage"
)

type fakeUploadSigner struct {
	lastBucket string
	lastObject string
	lastOpts   storage.UploadOptions
	err        error
}

func (s *fakeUploadSigner) SignUpload(_ context.Context, bucket, object string, opts storage.UploadOptions) (storage.SignedUpload, error) {
	s.lastBucket = bucket
	s.lastObject = object
	s.lastOpts = opts
	if s.err != nil {
		return storage.SignedUpload{}, s.err
	}
	return storage.SignedUpload{
		URL:       "https://storage.example.com/" + bucket + "/" + object + "?sig=abc",
		Method:    "PUT",
		ExpiresAt: time.Date(2026, 3, 14, 9, 15, 0, 0, time.UTC),
		Headers:   map[string]string{"Content-Type": opts.ContentType},
	}, nil
}

func newUploadServiceFixture(t *testing.T, signer *fakeUploadSigner) UploadService {
	t.Helper()

	service, err := NewUploadService(UploadServiceDeps{
		Signer:       signer,
		Bucket:       "movievault-posters",
		UploadOrigin: "https://app.example.com",
		IDGenerator:  func() string { return "01HTESTUPLOAD0001" },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return service
}

func TestIssuePosterUpload(t *testing.T) {
	signer := &fakeUploadSigner{}
	service := newUploadServiceFixture(t, signer)

	grant, err := service.IssuePosterUpload(context.Background(), PosterUploadCommand{
		Actor:       &auth.Identity{UID: "uid-owner"},
		ContentType: "image/PNG",
		SizeBytes:   1024,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if grant.ObjectKey != "posters/uid-owner/01htestupload0001.png" {
		t.Fatalf("unexpected object key %q", grant.ObjectKey)
	}
	if grant.Method != "PUT" {
		t.Fatalf("expected PUT grant, got %s", grant.Method)
	}
	if grant.ContentType != "image/png" {
		t.Fatalf("expected lowercased content type, got %q", grant.ContentType)
	}
	if !strings.Contains(grant.URL, "movievault-posters") {
		t.Fatalf("expected bucket in signed URL, got %q", grant.URL)
	}

	if signer.lastBucket != "movievault-posters" {
		t.Fatalf("unexpected bucket %q", signer.lastBucket)
	}
	if signer.lastOpts.ExpiresIn != posterUploadExpiry {
		t.Fatalf("expected %v expiry, got %v", posterUploadExpiry, signer.lastOpts.ExpiresIn)
	}
	if signer.lastOpts.Origin != "https://app.example.com" {
		t.Fatalf("expected origin pinned, got %q", signer.lastOpts.Origin)
	}
}

func TestIssuePosterUploadValidation(t *testing.T) {
	signer := &fakeUploadSigner{}
	service := newUploadServiceFixture(t, signer)

	actor := &auth.Identity{UID: "uid-owner"}
	cases := []struct {
		name string
		cmd  PosterUploadCommand
	}{
		{name: "missing actor", cmd: PosterUploadCommand{ContentType: "image/png", SizeBytes: 1}},
		{name: "unsupported content type", cmd: PosterUploadCommand{Actor: actor, ContentType: "image/gif", SizeBytes: 1}},
		{name: "zero size", cmd: PosterUploadCommand{Actor: actor, ContentType: "image/png"}},
		{name: "oversized", cmd: PosterUploadCommand{Actor: actor, ContentType: "image/png", SizeBytes: maxPosterSizeBytes + 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := service.IssuePosterUpload(context.Background(), tc.cmd); !errors.Is(err, ErrUploadInvalidInput) {
				t.Fatalf("expected ErrUploadInvalidInput, got %v", err)
			}
		})
	}
}

func TestIssuePosterUploadSignerFailure(t *testing.T) {
	signer := &fakeUploadSigner{err: errors.New("kms offline")}
	service := newUploadServiceFixture(t, signer)

	_, err := service.IssuePosterUpload(context.Background(), PosterUploadCommand{
		Actor:       &auth.Identity{UID: "uid-owner"},
		ContentType: "image/webp",
		SizeBytes:   2048,
	})
	if !errors.Is(err, ErrUploadUnavailable) {
		t.Fatalf("expected ErrUploadUnavailable, got %v", err)
	}
}
