package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	jose "github.com/go-jose/go-jose/v4"
	"github.com/golang-jwt/jwt/v4"
)

const (
	defaultJWKSRefreshInterval = time.Hour
	maxJWKSBody                = 1 << 20
	oidcEmailClaim             = "email"
)

// OIDCVerifierConfig configures a generic OIDC ID-token verifier.
type OIDCVerifierConfig struct {
	Issuer      string
	JWKSURL     string
	Audience    string
	GroupsClaim string

	HTTPClient      *http.Client
	RefreshInterval time.Duration
}

// OIDCVerifier validates RS256 ID tokens against a JWKS endpoint and projects
// their claims. It is the verifier used when the identity provider is not
// Firebase.
type OIDCVerifier struct {
	issuer      string
	jwksURL     string
	audience    string
	groupsClaim string

	httpClient      *http.Client
	refreshInterval time.Duration
	now             func() time.Time
	parser          *jwt.Parser

	mu        sync.RWMutex
	keys      map[string]any
	fetchedAt time.Time
}

// NewOIDCVerifier constructs an OIDCVerifier from the provided configuration.
func NewOIDCVerifier(cfg OIDCVerifierConfig) (*OIDCVerifier, error) {
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errors.New("auth: oidc issuer is required")
	}
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		return nil, errors.New("auth: oidc jwks url is required")
	}

	groupsClaim := strings.TrimSpace(cfg.GroupsClaim)
	if groupsClaim == "" {
		groupsClaim = DefaultGroupsClaim
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	refreshInterval := cfg.RefreshInterval
	if refreshInterval <= 0 {
		refreshInterval = defaultJWKSRefreshInterval
	}

	return &OIDCVerifier{
		issuer:          issuer,
		jwksURL:         jwksURL,
		audience:        strings.TrimSpace(cfg.Audience),
		groupsClaim:     groupsClaim,
		httpClient:      httpClient,
		refreshInterval: refreshInterval,
		now:             time.Now,
		parser:          jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})),
		keys:            map[string]any{},
	}, nil
}

// VerifyToken implements TokenVerifier.
func (v *OIDCVerifier) VerifyToken(ctx context.Context, rawToken string) (Claims, error) {
	if v == nil {
		return Claims{}, ErrTokenInvalid
	}

	claims := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(rawToken, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return v.keyForKID(ctx, kid)
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if issuer := ClaimString(claims, "iss"); issuer != v.issuer {
		return Claims{}, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
	}
	if v.audience != "" && !containsString(audienceFromClaims(claims), v.audience) {
		return Claims{}, fmt.Errorf("%w: audience mismatch", ErrTokenInvalid)
	}

	subject := ClaimString(claims, "sub")
	if subject == "" {
		return Claims{}, fmt.Errorf("%w: missing sub claim", ErrTokenInvalid)
	}

	return Claims{
		Subject: subject,
		Email:   ClaimString(claims, oidcEmailClaim),
		Groups:  GroupsFromClaims(claims, v.groupsClaim),
	}, nil
}

func (v *OIDCVerifier) keyForKID(ctx context.Context, kid string) (any, error) {
	kid = strings.TrimSpace(kid)
	if kid == "" {
		return nil, errors.New("auth: token header carries no kid")
	}

	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := v.now().Sub(v.fetchedAt) < v.refreshInterval
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}

	// Unknown or stale kid: refetch the key set once and retry the lookup.
	if err := v.refreshKeys(ctx); err != nil {
		if ok {
			return key, nil
		}
		return nil, err
	}

	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("auth: no JWKS key for kid %q", kid)
	}
	return key, nil
}

func (v *OIDCVerifier) refreshKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return fmt.Errorf("auth: build jwks request: %w", err)
	}

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth: fetch jwks: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auth: fetch jwks: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBody))
	if err != nil {
		return fmt.Errorf("auth: read jwks body: %w", err)
	}

	var keySet jose.JSONWebKeySet
	if err := json.Unmarshal(body, &keySet); err != nil {
		return fmt.Errorf("auth: decode jwks: %w", err)
	}

	keys := make(map[string]any, len(keySet.Keys))
	for _, jwk := range keySet.Keys {
		if !jwk.Valid() || jwk.KeyID == "" {
			continue
		}
		keys[jwk.KeyID] = jwk.Key
	}
	if len(keys) == 0 {
		return errors.New("auth: jwks contains no usable keys")
	}

	v.mu.Lock()
	v.keys = keys
	v.fetchedAt = v.now()
	v.mu.Unlock()

	return nil
}

func audienceFromClaims(claims jwt.MapClaims) []string {
	raw, ok := claims["aud"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case string:
		return []string{strings.TrimSpace(v)}
	case []string:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				continue
			}
			if str = strings.TrimSpace(str); str != "" {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
