package di

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/movievault/api/internal/authz"
	"github.com/movievault/api/internal/platform/auth"
	"github.com/movievault/api/internal/platform/config"
	pfirestore "github.com/movievault/api/internal/platform/firestore"
	"github.com/movievault/api/internal/platform/jobs"
	"github.com/movievault/api/internal/platform/observability"
	"github.com/movievault/api/internal/platform/storage"
	"github.com/movievault/api/internal/repositories"
	firestorerepo "github.com/movievault/api/internal/repositories/firestore"
	"github.com/movievault/api/internal/services"
)

// Services bundles the service-layer contracts the handlers rely upon.
type Services struct {
	Movies  services.MovieService
	Uploads services.UploadService
	System  services.SystemService
}

// Container wires repositories, services, and platform clients for runtime use.
type Container struct {
	Config        config.Config
	Authenticator *auth.Authenticator
	Services      Services

	firestore *pfirestore.Provider
	pubsub    *pubsub.Client
}

// NewContainer assembles the runtime dependency graph from configuration.
func NewContainer(ctx context.Context, cfg config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.Authenticator = auth.NewAuthenticator(verifier)

	c.firestore = pfirestore.NewProvider(cfg.Firestore)

	movieRepo, err := firestorerepo.NewMovieRepository(c.firestore)
	if err != nil {
		return nil, fmt.Errorf("build movie repository: %w", err)
	}

	var publisher services.MovieEventPublisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.EventsTopic != "" {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("build pubsub client: %w", err)
		}
		c.pubsub = client
		publisher, err = jobs.NewPubSubMoviePublisher(client.Topic(cfg.PubSub.EventsTopic))
		if err != nil {
			return nil, fmt.Errorf("build movie event publisher: %w", err)
		}
	}

	movieSvc, err := services.NewMovieService(services.MovieServiceDeps{
		Movies: movieRepo,
		Policy: authz.NewPolicy(cfg.Auth.AdminGroup),
		Events: publisher,
		Logger: logServiceEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("build movie service: %w", err)
	}
	c.Services.Movies = movieSvc

	uploadSvc, err := buildUploadService(cfg)
	if err != nil {
		return nil, err
	}
	c.Services.Uploads = uploadSvc

	systemSvc, err := buildSystemService(c)
	if err != nil {
		return nil, err
	}
	c.Services.System = systemSvc

	return c, nil
}

// Close releases platform clients held by the container.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.pubsub != nil {
		if err := c.pubsub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.firestore != nil {
		if err := c.firestore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close firestore provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

// logServiceEvent routes service-layer diagnostics to the request logger.
func logServiceEvent(ctx context.Context, msg string, fields map[string]any) {
	logger := observability.FromContext(ctx)
	zapFields := make([]zap.Field, 0, len(fields))
	for key, value := range fields {
		zapFields = append(zapFields, zap.Any(key, value))
	}
	logger.Warn(msg, zapFields...)
}

func buildVerifier(ctx context.Context, cfg config.Config) (auth.TokenVerifier, error) {
	switch cfg.Auth.Mode {
	case "firebase":
		client, err := auth.NewFirebaseAuthClient(ctx, cfg.Firebase)
		if err != nil {
			return nil, fmt.Errorf("build firebase auth client: %w", err)
		}
		verifier, err := auth.NewFirebaseVerifier(client, cfg.Auth.GroupsClaim)
		if err != nil {
			return nil, fmt.Errorf("build firebase verifier: %w", err)
		}
		return verifier, nil
	case "oidc":
		verifier, err := auth.NewOIDCVerifier(auth.OIDCVerifierConfig{
			Issuer:      cfg.Auth.OIDCIssuer,
			JWKSURL:     cfg.Auth.OIDCJWKSURL,
			Audience:    cfg.Auth.OIDCClientID,
			GroupsClaim: cfg.Auth.GroupsClaim,
		})
		if err != nil {
			return nil, fmt.Errorf("build oidc verifier: %w", err)
		}
		return verifier, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", cfg.Auth.Mode)
	}
}

func buildUploadService(cfg config.Config) (services.UploadService, error) {
	if strings.TrimSpace(cfg.Storage.PostersBucket) == "" {
		return nil, nil
	}

	var (
		signer *storage.ServiceAccountSigner
		err    error
	)
	switch {
	case strings.TrimSpace(cfg.Storage.SignerKey) != "":
		signer, err = storage.NewServiceAccountSignerFromJSON([]byte(cfg.Storage.SignerKey))
	case strings.TrimSpace(cfg.Storage.SignerKeyFile) != "":
		signer, err = storage.NewServiceAccountSignerFromFile(cfg.Storage.SignerKeyFile)
	default:
		return nil, errors.New("storage signer key is required when posters bucket is configured")
	}
	if err != nil {
		return nil, fmt.Errorf("build storage signer: %w", err)
	}

	client, err := storage.NewClient(signer)
	if err != nil {
		return nil, fmt.Errorf("build storage client: %w", err)
	}

	uploadSvc, err := services.NewUploadService(services.UploadServiceDeps{
		Signer:       client,
		Bucket:       cfg.Storage.PostersBucket,
		UploadOrigin: cfg.Storage.UploadOrigin,
	})
	if err != nil {
		return nil, fmt.Errorf("build upload service: %w", err)
	}
	return uploadSvc, nil
}

func buildSystemService(c *Container) (services.SystemService, error) {
	checks := []repositories.DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				_, err := c.firestore.Client(ctx)
				return err
			},
		},
	}
	if c.pubsub != nil {
		topic := c.Config.PubSub.EventsTopic
		checks = append(checks, repositories.DependencyCheck{
			Name: "pubsub",
			Check: func(ctx context.Context) error {
				ok, err := c.pubsub.Topic(topic).Exists(ctx)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("topic %s does not exist", topic)
				}
				return nil
			},
		})
	}

	healthRepo, err := repositories.NewDependencyHealthRepository(checks)
	if err != nil {
		return nil, fmt.Errorf("build health repository: %w", err)
	}
	systemSvc, err := services.NewSystemService(healthRepo)
	if err != nil {
		return nil, fmt.Errorf("build system service: %w", err)
	}
	return systemSvc, nil
}
