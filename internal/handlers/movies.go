package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/movievault/api/internal/domain"
	"github.com/movievault/api/internal/platform/auth"
	"github.com/movievault/api/internal/platform/httpx"
	"github.com/movievault/api/internal/services"
)

const maxMovieRequestBody = 64 * 1024

// MovieHandlers exposes the movie catalog endpoints for authenticated users.
type MovieHandlers struct {
	authn  *auth.Authenticator
	movies services.MovieService
}

// NewMovieHandlers constructs a new MovieHandlers instance.
func NewMovieHandlers(authn *auth.Authenticator, movies services.MovieService) *MovieHandlers {
	return &MovieHandlers{
		authn:  authn,
		movies: movies,
	}
}

// Routes registers the /movies endpoints.
func (h *MovieHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.listMovies)
	r.Post("/", h.createMovie)
	r.Get("/{movieID}", h.getMovie)
	r.Put("/{movieID}", h.updateMovie)
	r.Delete("/{movieID}", h.deleteMovie)
}

func (h *MovieHandlers) listMovies(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	pageSize := 0
	if sizeRaw := strings.TrimSpace(r.URL.Query().Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		pageSize = size
	}

	page, err := h.movies.ListMovies(ctx, services.ListMoviesQuery{
		Actor: identity,
		Pagination: domain.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(r.URL.Query().Get("page_token")),
		},
	})
	if err != nil {
		writeMovieError(ctx, w, err)
		return
	}

	items := make([]moviePayload, 0, len(page.Items))
	for _, movie := range page.Items {
		items = append(items, buildMoviePayload(movie))
	}

	writeJSONResponse(w, http.StatusOK, movieListResponse{
		Items:         items,
		NextPageToken: page.NextPageToken,
	})
}

func (h *MovieHandlers) getMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	movieID := strings.TrimSpace(chi.URLParam(r, "movieID"))
	if movieID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "movie id is required", http.StatusBadRequest))
		return
	}

	movie, err := h.movies.GetMovie(ctx, identity, movieID)
	if err != nil {
		writeMovieError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildMoviePayload(movie))
}

func (h *MovieHandlers) createMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	req, ok := decodeMovieRequest(ctx, w, r)
	if !ok {
		return
	}

	movie, err := h.movies.CreateMovie(ctx, services.CreateMovieCommand{
		Actor:          identity,
		Title:          req.Title,
		PublishingYear: req.PublishingYear,
		Poster:         req.Poster,
	})
	if err != nil {
		writeMovieError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusCreated, buildMoviePayload(movie))
}

func (h *MovieHandlers) updateMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	movieID := strings.TrimSpace(chi.URLParam(r, "movieID"))
	if movieID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "movie id is required", http.StatusBadRequest))
		return
	}

	req, ok := decodeMovieRequest(ctx, w, r)
	if !ok {
		return
	}

	movie, err := h.movies.UpdateMovie(ctx, services.UpdateMovieCommand{
		Actor:          identity,
		MovieID:        movieID,
		Title:          req.Title,
		PublishingYear: req.PublishingYear,
		Poster:         req.Poster,
	})
	if err != nil {
		writeMovieError(ctx, w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, buildMoviePayload(movie))
}

func (h *MovieHandlers) deleteMovie(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := h.requireIdentity(ctx, w)
	if !ok {
		return
	}

	movieID := strings.TrimSpace(chi.URLParam(r, "movieID"))
	if movieID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "movie id is required", http.StatusBadRequest))
		return
	}

	removed, err := h.movies.DeleteMovie(ctx, services.DeleteMovieCommand{
		Actor:   identity,
		MovieID: movieID,
	})
	if err != nil {
		writeMovieError(ctx, w, err)
		return
	}

	// The last stored state is echoed back so clients can confirm what was removed.
	writeJSONResponse(w, http.StatusOK, buildMoviePayload(removed))
}

func (h *MovieHandlers) requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	if h.movies == nil {
		httpx.WriteError(ctx, w, httpx.NewError("service_unavailable", "movie service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

type movieRequest struct {
	Title          string `json:"title"`
	PublishingYear *int   `json:"publishingYear"`
	Poster         string `json:"poster"`
}

func decodeMovieRequest(ctx context.Context, w http.ResponseWriter, r *http.Request) (movieRequest, bool) {
	body, err := readLimitedBody(r, maxMovieRequestBody)
	if err != nil {
		status := http.StatusBadRequest
		code := "invalid_request"
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
			code = "payload_too_large"
		}
		httpx.WriteError(ctx, w, httpx.NewError(code, err.Error(), status))
		return movieRequest{}, false
	}

	var req movieRequest
	decoder := json.NewDecoder(strings.NewReader(string(body)))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", fmt.Sprintf("invalid JSON body: %v", err), http.StatusBadRequest))
		return movieRequest{}, false
	}
	return req, true
}

type moviePayload struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	PublishingYear *int   `json:"publishingYear,omitempty"`
	Poster         string `json:"poster,omitempty"`
	CreatedBy      string `json:"createdBy"`
	CreatedByEmail string `json:"createdByEmail,omitempty"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type movieListResponse struct {
	Items         []moviePayload `json:"items"`
	NextPageToken string         `json:"nextPageToken,omitempty"`
}

func buildMoviePayload(movie domain.Movie) moviePayload {
	return moviePayload{
		ID:             movie.ID,
		Title:          movie.Title,
		PublishingYear: movie.PublishingYear,
		Poster:         movie.Poster,
		CreatedBy:      movie.CreatedBy,
		CreatedByEmail: movie.CreatedByEmail,
		CreatedAt:      movie.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      movie.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func writeMovieError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, services.ErrMovieInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrMovieNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("movie_not_found", "movie not found", http.StatusNotFound))
	case errors.Is(err, services.ErrMovieUnauthorized):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "insufficient permissions", http.StatusForbidden))
	case errors.Is(err, services.ErrMovieStoreUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("store_unavailable", "movie store unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("request_timeout", "request cancelled", http.StatusGatewayTimeout))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "unexpected error", http.StatusInternalServerError))
	}
}
