package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const (
	defaultUploadExpiry = 15 * time.Minute
	maxUploadExpiry     = time.Hour
)

var (
	errNoSigner           = errors.New("storage: signer is required")
	errInvalidBucket      = errors.New("storage: bucket name is required")
	errInvalidObject      = errors.New("storage: object name is required")
	errContentTypeMissing = errors.New("storage: content type is required for uploads")
	errExpiryTooLong      = errors.New("storage: expiry exceeds permitted maximum")
)

// Client generates write-only signed URLs backed by a Signer.
type Client struct {
	signer Signer
	scheme storage.SigningScheme
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithSigningScheme overrides the signing scheme (defaults to V4).
func WithSigningScheme(scheme storage.SigningScheme) ClientOption {
	return func(c *Client) {
		if scheme != 0 {
			c.scheme = scheme
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a new signed URL client.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}

	client := &Client{
		signer: signer,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// UploadOptions control upload URL restrictions.
type UploadOptions struct {
	ContentType string
	ExpiresIn   time.Duration
	// Origin, when set, is pinned into the signed headers so browsers uploading
	// cross-origin cannot swap it out.
	Origin            string
	AdditionalHeaders map[string]string
}

// SignedUpload describes the generated signed URL details.
type SignedUpload struct {
	URL       string
	Method    string
	ExpiresAt time.Time
	Headers   map[string]string
}

// SignUpload issues a write-only signed PUT URL for the given bucket and object.
func (c *Client) SignUpload(ctx context.Context, bucket, object string, opts UploadOptions) (SignedUpload, error) {
	if c == nil || c.signer == nil {
		return SignedUpload{}, errNoSigner
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return SignedUpload{}, errInvalidBucket
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return SignedUpload{}, errInvalidObject
	}

	contentType := strings.TrimSpace(opts.ContentType)
	if contentType == "" {
		return SignedUpload{}, errContentTypeMissing
	}

	expiry := opts.ExpiresIn
	if expiry <= 0 {
		expiry = defaultUploadExpiry
	}
	if expiry > maxUploadExpiry {
		return SignedUpload{}, errExpiryTooLong
	}

	headers := map[string]string{
		"Content-Type": contentType,
	}
	if origin := strings.TrimSpace(opts.Origin); origin != "" {
		headers["Origin"] = origin
	}
	for key, value := range opts.AdditionalHeaders {
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		if _, reserved := headers[http.CanonicalHeaderKey(key)]; reserved {
			continue
		}
		headers[http.CanonicalHeaderKey(key)] = value
	}

	signedHeaders := make([]string, 0, len(headers))
	for key, value := range headers {
		signedHeaders = append(signedHeaders, fmt.Sprintf("%s:%s", key, value))
	}
	sort.Strings(signedHeaders)

	expiresAt := c.now().UTC().Add(expiry)
	url, err := storage.SignedURL(bucket, object, &storage.SignedURLOptions{
		GoogleAccessID: c.signer.Email(),
		SignBytes: func(payload []byte) ([]byte, error) {
			return c.signer.SignBytes(ctx, payload)
		},
		Method:      http.MethodPut,
		Expires:     expiresAt,
		ContentType: contentType,
		Headers:     signedHeaders,
		Scheme:      c.scheme,
	})
	if err != nil {
		return SignedUpload{}, fmt.Errorf("storage: sign upload url: %w", err)
	}

	return SignedUpload{
		URL:       url,
		Method:    http.MethodPut,
		ExpiresAt: expiresAt,
		Headers:   headers,
	}, nil
}
