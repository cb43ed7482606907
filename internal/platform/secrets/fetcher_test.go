package secrets

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeSecretClient struct {
	responses map[string]string
	errs      map[string]error
	calls     []string
	closed    bool
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.calls = append(f.calls, req.GetName())
	if err, ok := f.errs[req.GetName()]; ok {
		return nil, err
	}
	value, ok := f.responses[req.GetName()]
	if !ok {
		return nil, status.Error(codes.NotFound, "missing")
	}
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}, nil
}

func (f *fakeSecretClient) Close() error {
	f.closed = true
	return nil
}

func newTestFetcher(t *testing.T, client secretManagerClient) *Fetcher {
	t.Helper()
	fetcher, err := NewFetcher(context.Background(), "demo-project", WithClient(client))
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	return fetcher
}

func TestResolveReturnsSecretPayload(t *testing.T) {
	client := &fakeSecretClient{responses: map[string]string{
		"projects/demo-project/secrets/signer-key/versions/latest": "payload",
	}}
	fetcher := newTestFetcher(t, client)

	value, err := fetcher.Resolve(context.Background(), "signer-key")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != "payload" {
		t.Fatalf("expected payload, got %q", value)
	}
}

func TestResolveHonoursPinnedVersion(t *testing.T) {
	client := &fakeSecretClient{responses: map[string]string{
		"projects/demo-project/secrets/signer-key/versions/3": "pinned",
	}}
	fetcher := newTestFetcher(t, client)

	value, err := fetcher.Resolve(context.Background(), "signer-key@3")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != "pinned" {
		t.Fatalf("expected pinned payload, got %q", value)
	}
}

func TestResolveCachesValues(t *testing.T) {
	client := &fakeSecretClient{responses: map[string]string{
		"projects/demo-project/secrets/signer-key/versions/latest": "payload",
	}}
	fetcher := newTestFetcher(t, client)

	for i := 0; i < 3; i++ {
		if _, err := fetcher.Resolve(context.Background(), "signer-key"); err != nil {
			t.Fatalf("resolve %d: %v", i, err)
		}
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected a single backend call, got %d", len(client.calls))
	}
}

func TestResolveMapsNotFound(t *testing.T) {
	fetcher := newTestFetcher(t, &fakeSecretClient{})

	_, err := fetcher.Resolve(context.Background(), "missing")
	if !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected ErrSecretNotFound, got %v", err)
	}
}

func TestResolveDoesNotRetryPermanentErrors(t *testing.T) {
	resource := "projects/demo-project/secrets/denied/versions/latest"
	client := &fakeSecretClient{errs: map[string]error{
		resource: status.Error(codes.PermissionDenied, "denied"),
	}}
	fetcher := newTestFetcher(t, client)

	_, err := fetcher.Resolve(context.Background(), "denied")
	if err == nil {
		t.Fatal("expected error")
	}
	if len(client.calls) != 1 {
		t.Fatalf("expected one call for permanent error, got %d", len(client.calls))
	}
}

type flakydSecretClient struct {
	fakeSecretClient
	failures int
}

func (f *flakydSecretClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	if f.failures > 0 {
		f.failures--
		f.calls = append(f.calls, req.GetName())
		return nil, status.Error(codes.Unavailable, "try again")
	}
	return f.fakeSecretClient.AccessSecretVersion(ctx, req, opts...)
}

func TestResolveRetriesTransientErrors(t *testing.T) {
	client := &flakydSecretClient{
		fakeSecretClient: fakeSecretClient{responses: map[string]string{
			"projects/demo-project/secrets/signer-key/versions/latest": "payload",
		}},
		failures: 2,
	}
	fetcher := newTestFetcher(t, client)

	value, err := fetcher.Resolve(context.Background(), "signer-key")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != "payload" {
		t.Fatalf("expected payload after retries, got %q", value)
	}
}
