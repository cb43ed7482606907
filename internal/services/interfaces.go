package services

import (
	"context"

	domain "github.com/movievault/api/internal/domain"
	"github.com/movievault/api/internal/platform/auth"
)

// MovieService exposes the catalog operations available to authenticated callers.
type MovieService interface {
	ListMovies(ctx context.Context, query ListMoviesQuery) (domain.CursorPage[domain.Movie], error)
	GetMovie(ctx context.Context, actor *auth.Identity, movieID string) (domain.Movie, error)
	CreateMovie(ctx context.Context, cmd CreateMovieCommand) (domain.Movie, error)
	UpdateMovie(ctx context.Context, cmd UpdateMovieCommand) (domain.Movie, error)
	DeleteMovie(ctx context.Context, cmd DeleteMovieCommand) (domain.Movie, error)
}

// UploadService issues short-lived signed upload grants for poster images.
type UploadService interface {
	IssuePosterUpload(ctx context.Context, cmd PosterUploadCommand) (domain.UploadGrant, error)
}

// SystemService surfaces health and readiness information.
type SystemService interface {
	Readiness(ctx context.Context) (domain.SystemHealthReport, error)
}

// MovieEventPublisher emits catalog lifecycle events after successful mutations.
type MovieEventPublisher interface {
	Publish(ctx context.Context, event domain.MovieEvent) error
}

// ListMoviesQuery carries listing inputs for the caller's visible catalog slice.
type ListMoviesQuery struct {
	Actor      *auth.Identity
	Pagination domain.Pagination
}

// CreateMovieCommand carries inputs for creating a movie record.
type CreateMovieCommand struct {
	Actor          *auth.Identity
	Title          string
	PublishingYear *int
	Poster         string
}

// UpdateMovieCommand replaces the mutable fields of an existing movie record.
type UpdateMovieCommand struct {
	Actor          *auth.Identity
	MovieID        string
	Title          string
	PublishingYear *int
	Poster         string
}

// DeleteMovieCommand removes an existing movie record.
type DeleteMovieCommand struct {
	Actor   *auth.Identity
	MovieID string
}

// PosterUploadCommand requests a signed upload grant for a poster image.
type PosterUploadCommand struct {
	Actor       *auth.Identity
	ContentType string
	SizeBytes   int64
}
