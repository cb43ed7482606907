package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile      = ".env"
	defaultPort         = "8080"
	defaultReadTimeout  = 15 * time.Second
	defaultWriteTimeout = 30 * time.Second
	defaultIdleTimeout  = 120 * time.Second
	defaultAdminGroup   = "admins"
	defaultGroupsClaim  = "groups"
	defaultAuthMode     = "firebase"

	secretRefPrefix = "secret://"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Firebase  FirebaseConfig
	Firestore FirestoreConfig
	Storage   StorageConfig
	PubSub    PubSubConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// AuthConfig controls identity verification and authorization boundaries.
type AuthConfig struct {
	// Mode selects the token verifier: "firebase" or "oidc".
	Mode         string
	AdminGroup   string
	GroupsClaim  string
	OIDCIssuer   string
	OIDCJWKSURL  string
	OIDCClientID string
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// StorageConfig lists object storage parameters used for poster uploads.
type StorageConfig struct {
	PostersBucket string
	// SignerKey holds the service account JSON key used for URL signing.
	// May be a secret reference (secret://name) resolved at load time.
	SignerKey     string
	SignerKeyFile string
	UploadOrigin  string
}

// PubSubConfig configures the movie event topic.
type PubSubConfig struct {
	ProjectID   string
	EventsTopic string
}

// SecretResolver resolves secret references found in environment values.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// SecretResolverFunc adapts a function to the SecretResolver interface.
type SecretResolverFunc func(ctx context.Context, name string) (string, error)

// Resolve implements SecretResolver.
func (f SecretResolverFunc) Resolve(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

type loadOptions struct {
	envFile  string
	resolver SecretResolver
}

// Option customises Load behaviour.
type Option func(*loadOptions)

// WithEnvFile overrides the dotenv file consulted before process env vars.
func WithEnvFile(path string) Option {
	return func(o *loadOptions) {
		if strings.TrimSpace(path) != "" {
			o.envFile = path
		}
	}
}

// WithSecretResolver installs the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loadOptions) {
		o.resolver = resolver
	}
}

// Load reads configuration from the environment (and optional .env file),
// resolving secret references through the configured resolver.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loadOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	values, err := environmentValues(options.envFile)
	if err != nil {
		return Config{}, err
	}

	get := func(key string) string { return strings.TrimSpace(values[key]) }

	cfg := Config{
		Server: ServerConfig{
			Port:         firstNonEmpty(get("PORT"), defaultPort),
			ReadTimeout:  durationValue(get("SERVER_READ_TIMEOUT"), defaultReadTimeout),
			WriteTimeout: durationValue(get("SERVER_WRITE_TIMEOUT"), defaultWriteTimeout),
			IdleTimeout:  durationValue(get("SERVER_IDLE_TIMEOUT"), defaultIdleTimeout),
		},
		Auth: AuthConfig{
			Mode:         strings.ToLower(firstNonEmpty(get("AUTH_MODE"), defaultAuthMode)),
			AdminGroup:   firstNonEmpty(get("AUTH_ADMIN_GROUP"), defaultAdminGroup),
			GroupsClaim:  firstNonEmpty(get("AUTH_GROUPS_CLAIM"), defaultGroupsClaim),
			OIDCIssuer:   get("AUTH_OIDC_ISSUER"),
			OIDCJWKSURL:  get("AUTH_OIDC_JWKS_URL"),
			OIDCClientID: get("AUTH_OIDC_CLIENT_ID"),
		},
		Firebase: FirebaseConfig{
			ProjectID:       firstNonEmpty(get("FIREBASE_PROJECT_ID"), get("GOOGLE_CLOUD_PROJECT")),
			CredentialsFile: get("FIREBASE_CREDENTIALS_FILE"),
		},
		Firestore: FirestoreConfig{
			ProjectID:    firstNonEmpty(get("FIRESTORE_PROJECT_ID"), get("GOOGLE_CLOUD_PROJECT")),
			EmulatorHost: get("FIRESTORE_EMULATOR_HOST"),
		},
		Storage: StorageConfig{
			PostersBucket: get("STORAGE_POSTERS_BUCKET"),
			SignerKey:     get("STORAGE_SIGNER_KEY"),
			SignerKeyFile: get("STORAGE_SIGNER_KEY_FILE"),
			UploadOrigin:  get("STORAGE_UPLOAD_ORIGIN"),
		},
		PubSub: PubSubConfig{
			ProjectID:   firstNonEmpty(get("PUBSUB_PROJECT_ID"), get("GOOGLE_CLOUD_PROJECT")),
			EventsTopic: get("PUBSUB_EVENTS_TOPIC"),
		},
	}

	if err := resolveSecrets(ctx, &cfg, options.resolver); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch c.Auth.Mode {
	case "firebase":
		if c.Firebase.ProjectID == "" {
			return errors.New("config: FIREBASE_PROJECT_ID is required in firebase auth mode")
		}
	case "oidc":
		if c.Auth.OIDCIssuer == "" || c.Auth.OIDCJWKSURL == "" {
			return errors.New("config: AUTH_OIDC_ISSUER and AUTH_OIDC_JWKS_URL are required in oidc auth mode")
		}
	default:
		return fmt.Errorf("config: unsupported AUTH_MODE %q", c.Auth.Mode)
	}
	if c.Firestore.ProjectID == "" {
		return errors.New("config: FIRESTORE_PROJECT_ID is required")
	}
	return nil
}

func resolveSecrets(ctx context.Context, cfg *Config, resolver SecretResolver) error {
	targets := []*string{&cfg.Storage.SignerKey}
	for _, target := range targets {
		value := *target
		if !strings.HasPrefix(value, secretRefPrefix) {
			continue
		}
		name := strings.TrimPrefix(value, secretRefPrefix)
		if resolver == nil {
			return fmt.Errorf("config: secret reference %q requires a secret resolver", name)
		}
		resolved, err := resolver.Resolve(ctx, name)
		if err != nil {
			return fmt.Errorf("config: resolve secret %q: %w", name, err)
		}
		*target = resolved
	}
	return nil
}

// environmentValues merges the optional dotenv file with process env vars.
// Process environment always wins.
func environmentValues(envFile string) (map[string]string, error) {
	values := map[string]string{}

	if envFile != "" {
		if err := readEnvFile(envFile, values); err != nil {
			return nil, err
		}
	}

	for _, entry := range os.Environ() {
		key, value, found := strings.Cut(entry, "=")
		if !found || key == "" {
			continue
		}
		values[key] = value
	}

	return values, nil
}

func readEnvFile(path string, into map[string]string) error {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("config: open env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key == "" {
			continue
		}
		into[key] = value
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("config: read env file: %w", err)
	}
	return nil
}

func durationValue(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(raw); err == nil && parsed > 0 {
		return parsed
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
