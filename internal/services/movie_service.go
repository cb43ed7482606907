package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/movievault/api/internal/authz"
	domain "github.com/movievault/api/internal/domain"
	"github.com/movievault/api/internal/platform/auth"
	"github.com/movievault/api/internal/platform/pagination"
	"github.com/movievault/api/internal/repositories"
)

var (
	// ErrMovieInvalidInput indicates the caller provided invalid arguments.
	ErrMovieInvalidInput = errors.New("movie: invalid input")
	// ErrMovieNotFound indicates the requested movie does not exist.
	ErrMovieNotFound = errors.New("movie: not found")
	// ErrMovieUnauthorized indicates the caller may not act on the record.
	ErrMovieUnauthorized = errors.New("movie: unauthorized")
	// ErrMovieStoreUnavailable signals that persistence dependencies are unavailable.
	ErrMovieStoreUnavailable = errors.New("movie: store unavailable")
)

const (
	movieIDPrefix   = "mov_"
	maxTitleLen     = 256
	minReleaseYear  = 1850
	yearHorizon     = 5
	defaultPageSize = 10
	maxPageSize     = 100

	eventMovieCreated = "movie.created"
	eventMovieUpdated = "movie.updated"
	eventMovieDeleted = "movie.deleted"
)

// MovieServiceDeps wires dependencies for the movie service implementation.
type MovieServiceDeps struct {
	Movies      repositories.MovieRepository
	Policy      *authz.Policy
	Events      MovieEventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type movieService struct {
	movies    repositories.MovieRepository
	policy    *authz.Policy
	events    MovieEventPublisher
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
	sanitizer *bluemonday.Policy
}

// NewMovieService constructs a MovieService backed by the provided dependencies.
func NewMovieService(deps MovieServiceDeps) (MovieService, error) {
	if deps.Movies == nil {
		return nil, errors.New("movie service: movies repository is required")
	}
	if deps.Policy == nil {
		return nil, errors.New("movie service: access policy is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &movieService{
		movies:    deps.Movies,
		policy:    deps.Policy,
		events:    deps.Events,
		clock:     func() time.Time { return clock().UTC() },
		newID:     idGen,
		logger:    logger,
		sanitizer: bluemonday.StrictPolicy(),
	}, nil
}

// ListMovies returns the catalog slice visible to the caller: admins see every
// record, everyone else only their own.
func (s *movieService) ListMovies(ctx context.Context, query ListMoviesQuery) (domain.CursorPage[domain.Movie], error) {
	actor, err := requireActor(query.Actor)
	if err != nil {
		return domain.CursorPage[domain.Movie]{}, err
	}

	pager, err := normalizePagination(query.Pagination)
	if err != nil {
		return domain.CursorPage[domain.Movie]{}, err
	}

	var page domain.CursorPage[domain.Movie]
	if s.policy.ListScope(actor) == authz.ScopeAll {
		page, err = s.movies.List(ctx, pager)
	} else {
		page, err = s.movies.ListByOwner(ctx, actor.UID, pager)
	}
	if err != nil {
		if errors.Is(err, pagination.ErrInvalidPageToken) {
			return domain.CursorPage[domain.Movie]{}, fmt.Errorf("%w: %v", ErrMovieInvalidInput, err)
		}
		return domain.CursorPage[domain.Movie]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

// GetMovie fetches a single record after verifying the caller may see it. A
// record that exists but belongs to someone else is reported as unauthorized,
// not as missing.
func (s *movieService) GetMovie(ctx context.Context, actorIdentity *auth.Identity, movieID string) (domain.Movie, error) {
	actor, err := requireActor(actorIdentity)
	if err != nil {
		return domain.Movie{}, err
	}
	movieID = strings.TrimSpace(movieID)
	if movieID == "" {
		return domain.Movie{}, fmt.Errorf("%w: movie id is required", ErrMovieInvalidInput)
	}

	movie, err := s.movies.FindByID(ctx, movieID)
	if err != nil {
		return domain.Movie{}, s.mapRepositoryError(err)
	}
	if !s.policy.CanAccess(actor, movie.CreatedBy) {
		return domain.Movie{}, fmt.Errorf("%w: movie %s", ErrMovieUnauthorized, movieID)
	}
	return movie, nil
}

// CreateMovie validates the payload and persists a new record stamped with the
// caller's identity.
func (s *movieService) CreateMovie(ctx context.Context, cmd CreateMovieCommand) (domain.Movie, error) {
	actor, err := requireActor(cmd.Actor)
	if err != nil {
		return domain.Movie{}, err
	}

	now := s.clock()
	fields, err := s.normalizeFields(cmd.Title, cmd.PublishingYear, cmd.Poster, now)
	if err != nil {
		return domain.Movie{}, err
	}

	movie := domain.Movie{
		ID:             s.nextMovieID(),
		Title:          fields.Title,
		PublishingYear: fields.PublishingYear,
		Poster:         fields.Poster,
		CreatedBy:      actor.UID,
		CreatedByEmail: actor.Email,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.movies.Insert(ctx, movie); err != nil {
		return domain.Movie{}, s.mapRepositoryError(err)
	}

	s.emit(ctx, eventMovieCreated, movie.ID, actor.UID, now)
	return movie, nil
}

// UpdateMovie replaces the mutable fields of an existing record. The record is
// fetched and authorized before the write, and the write itself re-checks
// ownership so a concurrent mutation cannot widen access.
func (s *movieService) UpdateMovie(ctx context.Context, cmd UpdateMovieCommand) (domain.Movie, error) {
	actor, err := requireActor(cmd.Actor)
	if err != nil {
		return domain.Movie{}, err
	}
	movieID := strings.TrimSpace(cmd.MovieID)
	if movieID == "" {
		return domain.Movie{}, fmt.Errorf("%w: movie id is required", ErrMovieInvalidInput)
	}

	now := s.clock()
	fields, err := s.normalizeFields(cmd.Title, cmd.PublishingYear, cmd.Poster, now)
	if err != nil {
		return domain.Movie{}, err
	}

	current, err := s.movies.FindByID(ctx, movieID)
	if err != nil {
		return domain.Movie{}, s.mapRepositoryError(err)
	}
	if !s.policy.CanAccess(actor, current.CreatedBy) {
		return domain.Movie{}, fmt.Errorf("%w: movie %s", ErrMovieUnauthorized, movieID)
	}

	updated, err := s.movies.Replace(ctx, movieID, s.writeCondition(actor), fields, now)
	if err != nil {
		return domain.Movie{}, s.mapRepositoryError(err)
	}

	s.emit(ctx, eventMovieUpdated, movieID, actor.UID, now)
	return updated, nil
}

// DeleteMovie removes an existing record after the same authorize-then-write
// sequence as UpdateMovie, returning the record's last stored state.
func (s *movieService) DeleteMovie(ctx context.Context, cmd DeleteMovieCommand) (domain.Movie, error) {
	actor, err := requireActor(cmd.Actor)
	if err != nil {
		return domain.Movie{}, err
	}
	movieID := strings.TrimSpace(cmd.MovieID)
	if movieID == "" {
		return domain.Movie{}, fmt.Errorf("%w: movie id is required", ErrMovieInvalidInput)
	}

	current, err := s.movies.FindByID(ctx, movieID)
	if err != nil {
		return domain.Movie{}, s.mapRepositoryError(err)
	}
	if !s.policy.CanAccess(actor, current.CreatedBy) {
		return domain.Movie{}, fmt.Errorf("%w: movie %s", ErrMovieUnauthorized, movieID)
	}

	removed, err := s.movies.Delete(ctx, movieID, s.writeCondition(actor))
	if err != nil {
		return domain.Movie{}, s.mapRepositoryError(err)
	}

	s.emit(ctx, eventMovieDeleted, movieID, actor.UID, s.clock())
	return removed, nil
}

// writeCondition returns the ownership condition attached to a mutating write.
// Admins write unconditionally; everyone else only records they still own at
// commit time.
func (s *movieService) writeCondition(actor *auth.Identity) string {
	if s.policy.IsAdmin(actor) {
		return ""
	}
	return actor.UID
}

func (s *movieService) nextMovieID() string {
	return movieIDPrefix + strings.ToLower(strings.TrimSpace(s.newID()))
}

func (s *movieService) normalizeFields(title string, year *int, poster string, now time.Time) (domain.MovieFields, error) {
	cleanTitle, err := s.sanitizeTitle(title)
	if err != nil {
		return domain.MovieFields{}, err
	}

	if year != nil {
		maxYear := now.Year() + yearHorizon
		if *year < minReleaseYear || *year > maxYear {
			return domain.MovieFields{}, fmt.Errorf("%w: publishing_year must be between %d and %d", ErrMovieInvalidInput, minReleaseYear, maxYear)
		}
		y := *year
		year = &y
	}

	cleanPoster, err := normalizePosterRef(poster)
	if err != nil {
		return domain.MovieFields{}, err
	}

	return domain.MovieFields{
		Title:          cleanTitle,
		PublishingYear: year,
		Poster:         cleanPoster,
	}, nil
}

func (s *movieService) sanitizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", fmt.Errorf("%w: title is required", ErrMovieInvalidInput)
	}

	// Strip markup, then undo entity escaping the sanitizer applies to plain text.
	title = html.UnescapeString(s.sanitizer.Sanitize(title))
	title = norm.NFC.String(strings.TrimSpace(title))
	if title == "" {
		return "", fmt.Errorf("%w: title is empty after sanitisation", ErrMovieInvalidInput)
	}
	if len(title) > maxTitleLen {
		return "", fmt.Errorf("%w: title exceeds %d bytes", ErrMovieInvalidInput, maxTitleLen)
	}
	return title, nil
}

func (s *movieService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pagination.ErrInvalidPageToken) {
		return fmt.Errorf("%w: %v", ErrMovieInvalidInput, err)
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrMovieNotFound, err)
		case repoErr.IsConflict():
			// A failed ownership condition means the record changed hands
			// between authorize and write.
			return fmt.Errorf("%w: %v", ErrMovieUnauthorized, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %v", ErrMovieStoreUnavailable, err)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrMovieStoreUnavailable, err)
}

func (s *movieService) emit(ctx context.Context, eventType, movieID, actorID string, at time.Time) {
	if s.events == nil {
		return
	}
	event := domain.MovieEvent{
		Type:       eventType,
		MovieID:    movieID,
		ActorID:    actorID,
		OccurredAt: at,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "movie event publish failed", map[string]any{
			"event":    eventType,
			"movie_id": movieID,
			"error":    err.Error(),
		})
	}
}

func requireActor(actor *auth.Identity) (*auth.Identity, error) {
	if actor == nil || strings.TrimSpace(actor.UID) == "" {
		return nil, fmt.Errorf("%w: caller identity is required", ErrMovieInvalidInput)
	}
	return actor, nil
}

func normalizePagination(pager domain.Pagination) (domain.Pagination, error) {
	if pager.PageSize < 0 {
		return domain.Pagination{}, fmt.Errorf("%w: page_size must not be negative", ErrMovieInvalidInput)
	}
	if pager.PageSize == 0 {
		pager.PageSize = defaultPageSize
	}
	if pager.PageSize > maxPageSize {
		pager.PageSize = maxPageSize
	}
	pager.PageToken = strings.TrimSpace(pager.PageToken)
	return pager, nil
}

func normalizePosterRef(poster string) (string, error) {
	poster = strings.TrimSpace(poster)
	if poster == "" {
		return "", nil
	}
	if strings.HasPrefix(poster, "posters/") {
		return poster, nil
	}
	parsed, err := url.Parse(poster)
	if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "gs") || parsed.Host == "" {
		return "", fmt.Errorf("%w: poster must be an object key or https/gs url", ErrMovieInvalidInput)
	}
	return poster, nil
}
