package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/movievault/api/internal/platform/config"
)

const firebaseEmailClaim = "email"

// NewFirebaseAuthClient initialises the Firebase Admin auth client from configuration.
func NewFirebaseAuthClient(ctx context.Context, cfg config.FirebaseConfig) (*firebaseauth.Client, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("auth: firebase project id is required")
	}

	var opts []option.ClientOption
	if credentials := strings.TrimSpace(cfg.CredentialsFile); credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("auth: initialise firebase app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("auth: initialise firebase auth client: %w", err)
	}
	return client, nil
}

// firebaseTokenVerifier is the subset of the Firebase Admin client used here.
type firebaseTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier projects verified Firebase ID tokens into Claims.
type FirebaseVerifier struct {
	client      firebaseTokenVerifier
	groupsClaim string
}

// NewFirebaseVerifier constructs a TokenVerifier backed by the Firebase Admin SDK.
func NewFirebaseVerifier(client firebaseTokenVerifier, groupsClaim string) (*FirebaseVerifier, error) {
	if client == nil {
		return nil, errors.New("auth: firebase client is required")
	}
	groupsClaim = strings.TrimSpace(groupsClaim)
	if groupsClaim == "" {
		groupsClaim = DefaultGroupsClaim
	}
	return &FirebaseVerifier{client: client, groupsClaim: groupsClaim}, nil
}

// VerifyToken implements TokenVerifier.
func (v *FirebaseVerifier) VerifyToken(ctx context.Context, rawToken string) (Claims, error) {
	if v == nil || v.client == nil {
		return Claims{}, ErrTokenInvalid
	}

	token, err := v.client.VerifyIDToken(ctx, rawToken)
	if err != nil {
		if firebaseauth.IsIDTokenExpired(err) {
			return Claims{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	return Claims{
		Subject: token.UID,
		Email:   ClaimString(token.Claims, firebaseEmailClaim),
		Groups:  GroupsFromClaims(token.Claims, v.groupsClaim),
	}, nil
}
