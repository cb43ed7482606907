package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/movievault/api/internal/domain"
	"github.com/movievault/api/internal/platform/auth"
	"github.com/movievault/api/internal/services"
)

type routerStubVerifier struct {
	claims auth.Claims
	err    error
}

func (s *routerStubVerifier) VerifyToken(context.Context, string) (auth.Claims, error) {
	if s.err != nil {
		return auth.Claims{}, s.err
	}
	return s.claims, nil
}

func TestRouterUnknownRouteReturnsJSON(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON error body: %v", err)
	}
	if body.Error != "route_not_found" {
		t.Fatalf("expected route_not_found, got %q", body.Error)
	}
}

func TestRouterHealthz(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRouterMoviesRequireAuthentication(t *testing.T) {
	authn := auth.NewAuthenticator(&routerStubVerifier{claims: auth.Claims{Subject: "user-1"}})
	movies := NewMovieHandlers(authn, &stubMovieService{
		listFn: func(_ context.Context, query services.ListMoviesQuery) (domain.CursorPage[domain.Movie], error) {
			return domain.CursorPage[domain.Movie]{Items: []domain.Movie{sampleMovie()}}, nil
		},
	})

	router := NewRouter(WithMovieRoutes(movies.Routes))

	// No token: rejected before the handler runs.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/movies", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}

	// Valid token: request flows through to the listing.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/movies", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", rr.Code)
	}

	var payload movieListResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("response decode error: %v", err)
	}
	if len(payload.Items) != 1 {
		t.Fatalf("expected one movie, got %d", len(payload.Items))
	}
}

func TestRouterUnconfiguredGroupReturnsNotImplemented(t *testing.T) {
	router := NewRouter()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/uploads/posters", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", rr.Code)
	}
}
