package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultVersion    = "latest"
	defaultMaxRetries = 3
)

var secretManagerClientFactory = func(ctx context.Context, opts ...option.ClientOption) (*secretmanager.Client, error) {
	return secretmanager.NewClient(ctx, opts...)
}

// ErrSecretNotFound indicates the named secret or version does not exist.
var ErrSecretNotFound = errors.New("secrets: secret not found")

type secretManagerClient interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
	Close() error
}

// Fetcher resolves secret names through Google Secret Manager with in-process caching.
type Fetcher struct {
	client     secretManagerClient
	ownsClient bool
	projectID  string
	logger     *zap.Logger
	maxRetries int
	backoff    func() gax.Backoff

	mu    sync.RWMutex
	cache map[string]string
}

type fetcherConfig struct {
	logger     *zap.Logger
	client     secretManagerClient
	clientOpts []option.ClientOption
	maxRetries int
}

// Option customises Fetcher construction.
type Option func(*fetcherConfig)

// WithLogger sets the logger used for diagnostic output.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *fetcherConfig) {
		cfg.logger = logger
	}
}

// WithClient injects a preconfigured Secret Manager client (primarily for tests).
func WithClient(client secretManagerClient) Option {
	return func(cfg *fetcherConfig) {
		cfg.client = client
	}
}

// WithClientOptions appends client options applied when the default client is created.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(cfg *fetcherConfig) {
		cfg.clientOpts = append(cfg.clientOpts, opts...)
	}
}

// WithMaxRetries bounds retry attempts for transient access failures.
func WithMaxRetries(n int) Option {
	return func(cfg *fetcherConfig) {
		if n > 0 {
			cfg.maxRetries = n
		}
	}
}

// NewFetcher constructs a Fetcher bound to the given project.
func NewFetcher(ctx context.Context, projectID string, opts ...Option) (*Fetcher, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, errors.New("secrets: project id is required")
	}

	cfg := fetcherConfig{maxRetries: defaultMaxRetries}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	fetcher := &Fetcher{
		client:     cfg.client,
		projectID:  projectID,
		logger:     cfg.logger,
		maxRetries: cfg.maxRetries,
		backoff: func() gax.Backoff {
			return gax.Backoff{Initial: 100 * time.Millisecond, Max: 2 * time.Second, Multiplier: 2}
		},
		cache: map[string]string{},
	}
	if fetcher.logger == nil {
		fetcher.logger = zap.NewNop()
	}

	if fetcher.client == nil {
		client, err := secretManagerClientFactory(ctx, cfg.clientOpts...)
		if err != nil {
			return nil, fmt.Errorf("secrets: create client: %w", err)
		}
		fetcher.client = client
		fetcher.ownsClient = true
	}

	return fetcher, nil
}

// Resolve returns the payload of the named secret's latest version.
// Accepts either a bare name or name@version.
func (f *Fetcher) Resolve(ctx context.Context, name string) (string, error) {
	if f == nil || f.client == nil {
		return "", errors.New("secrets: fetcher not initialised")
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("secrets: secret name is required")
	}

	secretName, version, found := strings.Cut(name, "@")
	if !found || strings.TrimSpace(version) == "" {
		version = defaultVersion
	}
	secretName = strings.TrimSpace(secretName)

	resource := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", f.projectID, secretName, version)

	f.mu.RLock()
	cached, ok := f.cache[resource]
	f.mu.RUnlock()
	if ok {
		return cached, nil
	}

	value, err := f.access(ctx, resource)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.cache[resource] = value
	f.mu.Unlock()

	return value, nil
}

func (f *Fetcher) access(ctx context.Context, resource string) (string, error) {
	backoff := f.backoff()
	var lastErr error

	for attempt := 0; attempt < f.maxRetries; attempt++ {
		resp, err := f.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
			Name: resource,
		})
		if err == nil {
			if resp.GetPayload() == nil {
				return "", fmt.Errorf("secrets: empty payload for %s", resource)
			}
			return string(resp.GetPayload().GetData()), nil
		}

		switch status.Code(err) {
		case codes.NotFound:
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, resource)
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded:
			lastErr = err
			f.logger.Warn("secret access retry",
				zap.String("resource", resource),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
			if sleepErr := gax.Sleep(ctx, backoff.Pause()); sleepErr != nil {
				return "", sleepErr
			}
		default:
			return "", fmt.Errorf("secrets: access %s: %w", resource, err)
		}
	}

	return "", fmt.Errorf("secrets: access %s: %w", resource, lastErr)
}

// Close releases the underlying client when owned by the fetcher.
func (f *Fetcher) Close() error {
	if f == nil || f.client == nil || !f.ownsClient {
		return nil
	}
	return f.client.Close()
}
