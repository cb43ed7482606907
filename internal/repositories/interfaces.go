package repositories

import (
	"context"
	"time"

	domain "github.com/movievault/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// MovieRepository persists movie records in the document store.
//
// Replace and Delete take an expectedOwner: when non-empty the write only
// succeeds if the stored record is owned by that subject, and an ownership
// mismatch surfaces as a conflict. An empty expectedOwner skips the ownership
// condition, which is how administrative writes bypass it. Delete reports the
// record as it stood immediately before removal.
type MovieRepository interface {
	Insert(ctx context.Context, movie domain.Movie) error
	FindByID(ctx context.Context, movieID string) (domain.Movie, error)
	Replace(ctx context.Context, movieID string, expectedOwner string, fields domain.MovieFields, updatedAt time.Time) (domain.Movie, error)
	Delete(ctx context.Context, movieID string, expectedOwner string) (domain.Movie, error)
	List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Movie], error)
	ListByOwner(ctx context.Context, ownerID string, pager domain.Pagination) (domain.CursorPage[domain.Movie], error)
}

// HealthRepository aggregates dependency probes for readiness reporting.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
