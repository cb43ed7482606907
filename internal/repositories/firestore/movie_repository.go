package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/movievault/api/internal/domain"
	pfirestore "github.com/movievault/api/internal/platform/firestore"
	"github.com/movievault/api/internal/platform/pagination"
	"github.com/movievault/api/internal/repositories"
)

const movieCollection = "movies"

// movieDocument is the Firestore persistence shape for a movie record.
type movieDocument struct {
	Title          string    `firestore:"title"`
	PublishingYear *int      `firestore:"publishingYear,omitempty"`
	Poster         string    `firestore:"poster,omitempty"`
	CreatedBy      string    `firestore:"createdBy"`
	CreatedByEmail string    `firestore:"createdByEmail,omitempty"`
	CreatedAt      time.Time `firestore:"createdAt"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

// MovieRepository persists movie records in a Firestore collection.
type MovieRepository struct {
	base *pfirestore.BaseRepository[movieDocument]
}

// NewMovieRepository constructs a Firestore-backed movie repository.
func NewMovieRepository(provider *pfirestore.Provider) (*MovieRepository, error) {
	if provider == nil {
		return nil, errors.New("movie repository requires firestore provider")
	}
	return &MovieRepository{
		base: pfirestore.NewBaseRepository[movieDocument](provider, movieCollection, nil),
	}, nil
}

// Insert stores a new movie record, failing when the ID already exists.
func (r *MovieRepository) Insert(ctx context.Context, movie domain.Movie) error {
	if r == nil || r.base == nil {
		return errors.New("movie repository not initialised")
	}
	id := strings.TrimSpace(movie.ID)
	if id == "" {
		return errors.New("movie repository: movie id is required")
	}
	return r.base.Create(ctx, id, toMovieDocument(movie))
}

// FindByID fetches a movie record by its document ID.
func (r *MovieRepository) FindByID(ctx context.Context, movieID string) (domain.Movie, error) {
	if r == nil || r.base == nil {
		return domain.Movie{}, errors.New("movie repository not initialised")
	}
	doc, err := r.base.Get(ctx, strings.TrimSpace(movieID))
	if err != nil {
		return domain.Movie{}, err
	}
	return toDomainMovie(doc.ID, doc.Data), nil
}

// Replace overwrites the mutable fields of a movie inside a transaction. The
// record is re-read transactionally so that absence and ownership mismatch
// are distinguished even when the caller raced a concurrent delete.
func (r *MovieRepository) Replace(ctx context.Context, movieID string, expectedOwner string, fields domain.MovieFields, updatedAt time.Time) (domain.Movie, error) {
	const op = "movies.replace"

	if r == nil || r.base == nil {
		return domain.Movie{}, errors.New("movie repository not initialised")
	}

	docRef, err := r.base.DocumentRef(ctx, strings.TrimSpace(movieID))
	if err != nil {
		return domain.Movie{}, err
	}

	var updated domain.Movie
	err = r.base.Provider().RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NewNotFound(op, fmt.Errorf("movie %s not found", docRef.ID))
			}
			return err
		}

		doc, err := r.base.Decode(snap)
		if err != nil {
			return err
		}

		if expectedOwner != "" && doc.Data.CreatedBy != expectedOwner {
			return pfirestore.NewConflict(op, fmt.Errorf("movie %s owner mismatch", docRef.ID))
		}

		next := doc.Data
		next.Title = fields.Title
		next.PublishingYear = fields.PublishingYear
		next.Poster = fields.Poster
		next.UpdatedAt = updatedAt.UTC()

		if err := tx.Set(docRef, next); err != nil {
			return err
		}

		updated = toDomainMovie(docRef.ID, next)
		return nil
	})
	if err != nil {
		return domain.Movie{}, pfirestore.WrapError(op, err)
	}
	return updated, nil
}

// Delete removes a movie inside a transaction, honouring the ownership
// condition, and returns the record as it stood before deletion.
func (r *MovieRepository) Delete(ctx context.Context, movieID string, expectedOwner string) (domain.Movie, error) {
	const op = "movies.delete"

	if r == nil || r.base == nil {
		return domain.Movie{}, errors.New("movie repository not initialised")
	}

	docRef, err := r.base.DocumentRef(ctx, strings.TrimSpace(movieID))
	if err != nil {
		return domain.Movie{}, err
	}

	var removed domain.Movie
	err = r.base.Provider().RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return pfirestore.NewNotFound(op, fmt.Errorf("movie %s not found", docRef.ID))
			}
			return err
		}

		doc, err := r.base.Decode(snap)
		if err != nil {
			return err
		}

		if expectedOwner != "" && doc.Data.CreatedBy != expectedOwner {
			return pfirestore.NewConflict(op, fmt.Errorf("movie %s owner mismatch", docRef.ID))
		}

		if err := tx.Delete(docRef); err != nil {
			return err
		}

		removed = toDomainMovie(docRef.ID, doc.Data)
		return nil
	})
	if err != nil {
		return domain.Movie{}, pfirestore.WrapError(op, err)
	}
	return removed, nil
}

// List returns movies across all owners ordered by newest first.
func (r *MovieRepository) List(ctx context.Context, pager domain.Pagination) (domain.CursorPage[domain.Movie], error) {
	return r.list(ctx, "", pager)
}

// ListByOwner returns movies created by ownerID ordered by newest first.
func (r *MovieRepository) ListByOwner(ctx context.Context, ownerID string, pager domain.Pagination) (domain.CursorPage[domain.Movie], error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return domain.CursorPage[domain.Movie]{}, errors.New("movie repository: owner id is required")
	}
	return r.list(ctx, ownerID, pager)
}

func (r *MovieRepository) list(ctx context.Context, ownerID string, pager domain.Pagination) (domain.CursorPage[domain.Movie], error) {
	const op = "movies.list"

	if r == nil || r.base == nil {
		return domain.CursorPage[domain.Movie]{}, errors.New("movie repository not initialised")
	}

	limit := pager.PageSize
	if limit < 0 {
		limit = 0
	}

	cursor, err := pagination.DecodeToken(pager.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Movie]{}, fmt.Errorf("%s: %w", op, err)
	}

	fetchLimit := 0
	if limit > 0 {
		fetchLimit = limit + 1
	}

	docs, err := r.base.Query(ctx, func(query firestore.Query) firestore.Query {
		if ownerID != "" {
			query = query.Where("createdBy", "==", ownerID)
		}
		query = query.
			OrderBy("createdAt", firestore.Desc).
			OrderBy(firestore.DocumentID, firestore.Desc)
		if !cursor.IsZero() {
			query = query.StartAfter(cursor.CreatedAt, cursor.ID)
		}
		if fetchLimit > 0 {
			query = query.Limit(fetchLimit)
		}
		return query
	})
	if err != nil {
		return domain.CursorPage[domain.Movie]{}, err
	}

	nextToken := ""
	if fetchLimit > 0 && len(docs) == fetchLimit {
		last := docs[len(docs)-2]
		token, err := pagination.EncodeToken(pagination.Cursor{
			CreatedAt: last.Data.CreatedAt,
			ID:        last.ID,
		})
		if err != nil {
			return domain.CursorPage[domain.Movie]{}, fmt.Errorf("%s: %w", op, err)
		}
		nextToken = token
		docs = docs[:len(docs)-1]
	}

	items := make([]domain.Movie, 0, len(docs))
	for _, doc := range docs {
		items = append(items, toDomainMovie(doc.ID, doc.Data))
	}

	return domain.CursorPage[domain.Movie]{
		Items:         items,
		NextPageToken: nextToken,
	}, nil
}

func toMovieDocument(movie domain.Movie) movieDocument {
	return movieDocument{
		Title:          movie.Title,
		PublishingYear: movie.PublishingYear,
		Poster:         movie.Poster,
		CreatedBy:      movie.CreatedBy,
		CreatedByEmail: movie.CreatedByEmail,
		CreatedAt:      movie.CreatedAt.UTC(),
		UpdatedAt:      movie.UpdatedAt.UTC(),
	}
}

func toDomainMovie(id string, doc movieDocument) domain.Movie {
	return domain.Movie{
		ID:             id,
		Title:          doc.Title,
		PublishingYear: doc.PublishingYear,
		Poster:         doc.Poster,
		CreatedBy:      doc.CreatedBy,
		CreatedByEmail: doc.CreatedByEmail,
		CreatedAt:      doc.CreatedAt,
		UpdatedAt:      doc.UpdatedAt,
	}
}

// Ensure interface compliance.
var _ repositories.MovieRepository = (*MovieRepository)(nil)
