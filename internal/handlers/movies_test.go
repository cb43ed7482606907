package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/movievault/api/internal/domain"
	"github.com/movievault/api/internal/platform/auth"
	"github.com/movievault/api/internal/services"
)

type stubMovieService struct {
	listFn   func(context.Context, services.ListMoviesQuery) (domain.CursorPage[domain.Movie], error)
	getFn    func(context.Context, *auth.Identity, string) (domain.Movie, error)
	createFn func(context.Context, services.CreateMovieCommand) (domain.Movie, error)
	updateFn func(context.Context, services.UpdateMovieCommand) (domain.Movie, error)
	deleteFn func(context.Context, services.DeleteMovieCommand) (domain.Movie, error)
}

func (s *stubMovieService) ListMovies(ctx context.Context, query services.ListMoviesQuery) (domain.CursorPage[domain.Movie], error) {
	if s.listFn != nil {
		return s.listFn(ctx, query)
	}
	return domain.CursorPage[domain.Movie]{}, nil
}

func (s *stubMovieService) GetMovie(ctx context.Context, actor *auth.Identity, movieID string) (domain.Movie, error) {
	if s.getFn != nil {
		return s.getFn(ctx, actor, movieID)
	}
	return domain.Movie{}, nil
}

func (s *stubMovieService) CreateMovie(ctx context.Context, cmd services.CreateMovieCommand) (domain.Movie, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return domain.Movie{}, nil
}

func (s *stubMovieService) UpdateMovie(ctx context.Context, cmd services.UpdateMovieCommand) (domain.Movie, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return domain.Movie{}, nil
}

func (s *stubMovieService) DeleteMovie(ctx context.Context, cmd services.DeleteMovieCommand) (domain.Movie, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, cmd)
	}
	return domain.Movie{}, nil
}

var _ services.MovieService = (*stubMovieService)(nil)

func sampleMovie() domain.Movie {
	year := 1973
	return domain.Movie{
		ID:             "mov_test",
		Title:          "The Long Goodbye",
		PublishingYear: &year,
		Poster:         "posters/user-1/01htest.png",
		CreatedBy:      "user-1",
		CreatedByEmail: "user@example.com",
		CreatedAt:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
	}
}

func withIdentity(req *http.Request, uid string) *http.Request {
	return req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Email: "user@example.com"}))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestMovieHandlers_CreateMovie_Success(t *testing.T) {
	var captured services.CreateMovieCommand
	stub := &stubMovieService{
		createFn: func(_ context.Context, cmd services.CreateMovieCommand) (domain.Movie, error) {
			captured = cmd
			return sampleMovie(), nil
		},
	}

	handler := NewMovieHandlers(nil, stub)

	body := `{"title": "The Long Goodbye", "publishingYear": 1973, "poster": "posters/user-1/01htest.png"}`
	req := httptest.NewRequest(http.MethodPost, "/movies", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = withIdentity(req, "user-1")

	res := httptest.NewRecorder()
	handler.createMovie(res, req)

	if res.Result().StatusCode != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", res.Result().StatusCode)
	}
	if captured.Actor == nil || captured.Actor.UID != "user-1" {
		t.Fatalf("expected actor user-1, got %+v", captured.Actor)
	}
	if captured.Title != "The Long Goodbye" {
		t.Fatalf("unexpected title %q", captured.Title)
	}
	if captured.PublishingYear == nil || *captured.PublishingYear != 1973 {
		t.Fatalf("expected publishing year propagated")
	}

	var payload moviePayload
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response decode error: %v", err)
	}
	if payload.ID != "mov_test" {
		t.Fatalf("unexpected movie id %s", payload.ID)
	}
	if payload.CreatedAt != "2026-03-14T09:00:00Z" {
		t.Fatalf("unexpected createdAt %s", payload.CreatedAt)
	}
}

func TestMovieHandlers_CreateMovie_UnknownField(t *testing.T) {
	handler := NewMovieHandlers(nil, &stubMovieService{})

	req := httptest.NewRequest(http.MethodPost, "/movies", strings.NewReader(`{"title":"x","owner":"evil"}`))
	req = withIdentity(req, "user-1")

	res := httptest.NewRecorder()
	handler.createMovie(res, req)

	if res.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Result().StatusCode)
	}
}

func TestMovieHandlers_CreateMovie_Unauthenticated(t *testing.T) {
	handler := NewMovieHandlers(nil, &stubMovieService{})

	req := httptest.NewRequest(http.MethodPost, "/movies", strings.NewReader(`{"title":"x"}`))
	res := httptest.NewRecorder()
	handler.createMovie(res, req)

	if res.Result().StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", res.Result().StatusCode)
	}
}

func TestMovieHandlers_GetMovie_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "not found", err: services.ErrMovieNotFound, wantStatus: http.StatusNotFound, wantCode: "movie_not_found"},
		{name: "unauthorized", err: services.ErrMovieUnauthorized, wantStatus: http.StatusForbidden, wantCode: "forbidden"},
		{name: "invalid", err: services.ErrMovieInvalidInput, wantStatus: http.StatusBadRequest, wantCode: "invalid_request"},
		{name: "unavailable", err: services.ErrMovieStoreUnavailable, wantStatus: http.StatusServiceUnavailable, wantCode: "store_unavailable"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stub := &stubMovieService{
				getFn: func(context.Context, *auth.Identity, string) (domain.Movie, error) {
					return domain.Movie{}, tc.err
				},
			}
			handler := NewMovieHandlers(nil, stub)

			req := httptest.NewRequest(http.MethodGet, "/movies/mov_test", nil)
			req = withIdentity(req, "user-1")
			req = withURLParam(req, "movieID", "mov_test")

			res := httptest.NewRecorder()
			handler.getMovie(res, req)

			if res.Result().StatusCode != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, res.Result().StatusCode)
			}

			var body struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
				t.Fatalf("response decode error: %v", err)
			}
			if body.Error != tc.wantCode {
				t.Fatalf("expected code %q, got %q", tc.wantCode, body.Error)
			}
		})
	}
}

func TestMovieHandlers_ListMovies(t *testing.T) {
	var captured services.ListMoviesQuery
	stub := &stubMovieService{
		listFn: func(_ context.Context, query services.ListMoviesQuery) (domain.CursorPage[domain.Movie], error) {
			captured = query
			return domain.CursorPage[domain.Movie]{
				Items:         []domain.Movie{sampleMovie()},
				NextPageToken: "next-token",
			}, nil
		},
	}
	handler := NewMovieHandlers(nil, stub)

	req := httptest.NewRequest(http.MethodGet, "/movies?page_size=5&page_token=tok", nil)
	req = withIdentity(req, "user-1")

	res := httptest.NewRecorder()
	handler.listMovies(res, req)

	if res.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Result().StatusCode)
	}
	if captured.Pagination.PageSize != 5 || captured.Pagination.PageToken != "tok" {
		t.Fatalf("pagination not propagated: %+v", captured.Pagination)
	}

	var payload movieListResponse
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response decode error: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].ID != "mov_test" {
		t.Fatalf("unexpected items %+v", payload.Items)
	}
	if payload.NextPageToken != "next-token" {
		t.Fatalf("expected next page token, got %q", payload.NextPageToken)
	}
}

func TestMovieHandlers_ListMovies_BadPageSize(t *testing.T) {
	handler := NewMovieHandlers(nil, &stubMovieService{})

	req := httptest.NewRequest(http.MethodGet, "/movies?page_size=abc", nil)
	req = withIdentity(req, "user-1")

	res := httptest.NewRecorder()
	handler.listMovies(res, req)

	if res.Result().StatusCode != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", res.Result().StatusCode)
	}
}

func TestMovieHandlers_UpdateMovie(t *testing.T) {
	var captured services.UpdateMovieCommand
	stub := &stubMovieService{
		updateFn: func(_ context.Context, cmd services.UpdateMovieCommand) (domain.Movie, error) {
			captured = cmd
			movie := sampleMovie()
			movie.Title = cmd.Title
			return movie, nil
		},
	}
	handler := NewMovieHandlers(nil, stub)

	req := httptest.NewRequest(http.MethodPut, "/movies/mov_test", strings.NewReader(`{"title":"Updated"}`))
	req = withIdentity(req, "user-1")
	req = withURLParam(req, "movieID", "mov_test")

	res := httptest.NewRecorder()
	handler.updateMovie(res, req)

	if res.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Result().StatusCode)
	}
	if captured.MovieID != "mov_test" || captured.Title != "Updated" {
		t.Fatalf("unexpected command %+v", captured)
	}
}

func TestMovieHandlers_DeleteMovie(t *testing.T) {
	var captured services.DeleteMovieCommand
	stub := &stubMovieService{
		deleteFn: func(_ context.Context, cmd services.DeleteMovieCommand) (domain.Movie, error) {
			captured = cmd
			return sampleMovie(), nil
		},
	}
	handler := NewMovieHandlers(nil, stub)

	req := httptest.NewRequest(http.MethodDelete, "/movies/mov_test", nil)
	req = withIdentity(req, "user-1")
	req = withURLParam(req, "movieID", "mov_test")

	res := httptest.NewRecorder()
	handler.deleteMovie(res, req)

	if res.Result().StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", res.Result().StatusCode)
	}
	if captured.MovieID != "mov_test" {
		t.Fatalf("unexpected command %+v", captured)
	}

	var payload moviePayload
	if err := json.Unmarshal(res.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response decode error: %v", err)
	}
	if payload.ID != "mov_test" {
		t.Fatalf("expected last state echoed back, got %+v", payload)
	}
}
