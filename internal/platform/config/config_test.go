package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")
	t.Setenv("FIRESTORE_PROJECT_ID", "demo-project")

	cfg, err := Load(context.Background(), WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Fatalf("expected default port %s, got %s", defaultPort, cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Fatalf("expected default read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Auth.Mode != "firebase" {
		t.Fatalf("expected firebase auth mode, got %s", cfg.Auth.Mode)
	}
	if cfg.Auth.AdminGroup != defaultAdminGroup {
		t.Fatalf("expected default admin group, got %s", cfg.Auth.AdminGroup)
	}
	if cfg.Auth.GroupsClaim != defaultGroupsClaim {
		t.Fatalf("expected default groups claim, got %s", cfg.Auth.GroupsClaim)
	}
}

func TestLoadReadsEnvFileWithProcessEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	contents := "# comment\nPORT=9090\nFIREBASE_PROJECT_ID=file-project\nFIRESTORE_PROJECT_ID=\"file-project\"\nSERVER_READ_TIMEOUT=5s\n"
	if err := os.WriteFile(envFile, []byte(contents), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("FIREBASE_PROJECT_ID", "env-project")

	cfg, err := Load(context.Background(), WithEnvFile(envFile))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Fatalf("expected port from env file, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("expected 5s read timeout, got %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firebase.ProjectID != "env-project" {
		t.Fatalf("expected process env to win, got %s", cfg.Firebase.ProjectID)
	}
	if cfg.Firestore.ProjectID != "file-project" {
		t.Fatalf("expected quoted value to be trimmed, got %q", cfg.Firestore.ProjectID)
	}
}

func TestLoadResolvesSecretReferences(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")
	t.Setenv("FIRESTORE_PROJECT_ID", "demo-project")
	t.Setenv("STORAGE_SIGNER_KEY", "secret://signer-key")

	resolver := SecretResolverFunc(func(_ context.Context, name string) (string, error) {
		if name != "signer-key" {
			t.Fatalf("unexpected secret name %q", name)
		}
		return "resolved-key", nil
	})

	cfg, err := Load(context.Background(),
		WithEnvFile(filepath.Join(t.TempDir(), "missing.env")),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage.SignerKey != "resolved-key" {
		t.Fatalf("expected resolved secret, got %q", cfg.Storage.SignerKey)
	}
}

func TestLoadFailsWithoutResolverForSecretReference(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")
	t.Setenv("FIRESTORE_PROJECT_ID", "demo-project")
	t.Setenv("STORAGE_SIGNER_KEY", "secret://signer-key")

	_, err := Load(context.Background(), WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	if err == nil {
		t.Fatal("expected error for unresolved secret reference")
	}
}

func TestLoadRejectsUnsupportedAuthMode(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "demo-project")
	t.Setenv("FIRESTORE_PROJECT_ID", "demo-project")
	t.Setenv("AUTH_MODE", "basic")

	_, err := Load(context.Background(), WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	if err == nil {
		t.Fatal("expected error for unsupported auth mode")
	}
}

func TestLoadOIDCModeRequiresIssuerAndJWKS(t *testing.T) {
	t.Setenv("FIRESTORE_PROJECT_ID", "demo-project")
	t.Setenv("AUTH_MODE", "oidc")

	_, err := Load(context.Background(), WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	if err == nil {
		t.Fatal("expected error when oidc settings are missing")
	}

	t.Setenv("AUTH_OIDC_ISSUER", "https://issuer.example.com")
	t.Setenv("AUTH_OIDC_JWKS_URL", "https://issuer.example.com/jwks")

	cfg, err := Load(context.Background(), WithEnvFile(filepath.Join(t.TempDir(), "missing.env")))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Auth.Mode != "oidc" {
		t.Fatalf("expected oidc mode, got %s", cfg.Auth.Mode)
	}
}

func TestResolveSecretsPropagatesResolverErrors(t *testing.T) {
	cfg := Config{Storage: StorageConfig{SignerKey: "secret://broken"}}
	resolver := SecretResolverFunc(func(context.Context, string) (string, error) {
		return "", errors.New("boom")
	})
	if err := resolveSecrets(context.Background(), &cfg, resolver); err == nil {
		t.Fatal("expected resolver error to propagate")
	}
}
