package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
)

func TestContextWithPrincipal(t *testing.T) {
	ctx := context.Background()
	if PrincipalFromContext(ctx) != nil {
		t.Fatal("expected no principal in empty context")
	}
	if ContextWithPrincipal(ctx, nil) != ctx {
		t.Error("nil principal should leave context unchanged")
	}

	principal := &model.Principal{ID: "u1", Email: "alice@example.com"}
	ctx = ContextWithPrincipal(ctx, principal)
	if got := PrincipalFromContext(ctx); got != principal {
		t.Errorf("PrincipalFromContext = %v, want %v", got, principal)
	}
	if got := UserIDFromContext(ctx); got != "u1" {
		t.Errorf("UserIDFromContext = %q, want u1", got)
	}
}

func TestAPIKeyProvider_Resolve(t *testing.T) {
	db := newProviderTestDB(t)
	owner, plaintext := issueTestKey(t, db, "alice@example.com")

	recorder := metrics.NewInMemory()
	cache := newMapCache()
	provider := NewAPIKeyProvider(db, cache, recorder, nil)

	tests := []struct {
		name    string
		header  string
		value   string
		want    string
		wantErr error
	}{
		{"bearer", "Authorization", "Bearer " + plaintext, owner.ID, nil},
		{"x_api_key", "X-API-Key", plaintext, owner.ID, nil},
		{"no_credentials", "", "", "", nil},
		{"basic_auth_ignored", "Authorization", "Basic dXNlcjpwYXNz", "", nil},
		{"malformed", "X-API-Key", "not-a-key", "", ErrInvalidCredentials},
		{"unknown_key", "X-API-Key", "ink_live_000000_00000000000000000000000000000000", "", ErrInvalidCredentials},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/drafts", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			principal, err := provider.Resolve(req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve error = %v, want %v", err, tt.wantErr)
			}
			if tt.want == "" {
				if principal != nil {
					t.Errorf("expected no principal, got %+v", principal)
				}
				return
			}
			if principal == nil || principal.ID != tt.want {
				t.Fatalf("expected principal %s, got %+v", tt.want, principal)
			}
			if principal.Email != owner.Email {
				t.Errorf("principal email = %s, want %s", principal.Email, owner.Email)
			}
		})
	}

	snap := recorder.Snapshot()
	if snap.PrincipalCacheMisses == 0 {
		t.Error("expected at least one cache miss")
	}
	if snap.PrincipalCacheHits == 0 {
		t.Error("expected second lookup of the same key to hit the cache")
	}
}

func TestAPIKeyProvider_WithoutCache(t *testing.T) {
	db := newProviderTestDB(t)
	owner, plaintext := issueTestKey(t, db, "bob@example.com")

	provider := NewAPIKeyProvider(db, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+plaintext)

	principal, err := provider.Resolve(req)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if principal == nil || principal.ID != owner.ID {
		t.Fatalf("expected principal %s, got %+v", owner.ID, principal)
	}
}

func TestAPIKeyProvider_RevokedKey(t *testing.T) {
	db := newProviderTestDB(t)
	_, plaintext := issueTestKey(t, db, "carol@example.com")

	parsed, err := ParseKey(plaintext)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	keys, err := db.GetAPIKeysByPrefix(context.Background(), parsed.Prefix)
	if err != nil || len(keys) != 1 {
		t.Fatalf("lookup key: %v (%d keys)", err, len(keys))
	}
	if err := db.RevokeAPIKey(context.Background(), keys[0].ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	provider := NewAPIKeyProvider(db, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", plaintext)

	if _, err := provider.Resolve(req); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for revoked key, got %v", err)
	}
}

// revokedKeyStore returns every stored key as revoked, like a store
// that does not filter revoked keys itself.
type revokedKeyStore struct {
	*repository.SQLite
}

func (s revokedKeyStore) GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error) {
	keys, err := s.SQLite.GetAPIKeysByPrefix(ctx, prefix)
	revokedAt := time.Now()
	for _, k := range keys {
		k.RevokedAt = &revokedAt
	}
	return keys, err
}

func TestAPIKeyProvider_SkipsRevokedCandidates(t *testing.T) {
	db := newProviderTestDB(t)
	_, plaintext := issueTestKey(t, db, "dave@example.com")

	provider := NewAPIKeyProvider(revokedKeyStore{db}, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-API-Key", plaintext)

	if _, err := provider.Resolve(req); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for revoked candidate, got %v", err)
	}
}

func TestHeaderProvider_Resolve(t *testing.T) {
	db := newProviderTestDB(t)
	provider := NewHeaderProvider(db, HeaderConfig{})

	t.Run("no_header_is_anonymous", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		principal, err := provider.Resolve(req)
		if err != nil || principal != nil {
			t.Fatalf("expected (nil, nil), got (%v, %v)", principal, err)
		}
	})

	t.Run("invalid_email", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Auth-Request-Email", "not-an-email")
		if _, err := provider.Resolve(req); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("first_sign_in_creates_user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Auth-Request-Email", "dana@example.com")
		req.Header.Set("X-Auth-Request-User", "Dana")
		req.Header.Set("X-Auth-Request-Image", "https://example.com/dana.png")

		first, err := provider.Resolve(req)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		if first == nil || first.ID == "" {
			t.Fatalf("expected principal with ID, got %+v", first)
		}
		if first.Name == nil || *first.Name != "Dana" {
			t.Errorf("expected name Dana, got %v", first.Name)
		}
		if first.Image == nil {
			t.Error("expected image to be set")
		}

		second, err := provider.Resolve(req)
		if err != nil {
			t.Fatalf("second Resolve failed: %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("expected same user on second sign-in, got %s and %s", first.ID, second.ID)
		}

		users, err := db.ListUsers(context.Background())
		if err != nil {
			t.Fatalf("list users: %v", err)
		}
		if len(users) != 1 {
			t.Errorf("expected exactly one user, got %d", len(users))
		}
	})

	t.Run("custom_headers", func(t *testing.T) {
		custom := NewHeaderProvider(db, HeaderConfig{EmailHeader: "X-Forwarded-Email"})
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-Email", "erin@example.com")

		principal, err := custom.Resolve(req)
		if err != nil || principal == nil {
			t.Fatalf("expected principal, got (%v, %v)", principal, err)
		}
		if principal.Email != "erin@example.com" {
			t.Errorf("email = %s, want erin@example.com", principal.Email)
		}
	})
}

func newProviderTestDB(t *testing.T) *repository.SQLite {
	t.Helper()
	db, err := repository.NewSQLite(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(db.Close)
	return db
}

func issueTestKey(t *testing.T, db *repository.SQLite, email string) (*model.User, string) {
	t.Helper()
	ctx := context.Background()

	user := &model.User{Email: email}
	if err := db.CreateUser(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}

	issued, err := IssueKey(EnvTest)
	if err != nil {
		t.Fatalf("issue key: %v", err)
	}
	if err := db.CreateAPIKey(ctx, &model.APIKey{
		UserID:    user.ID,
		KeyHash:   issued.Hash,
		KeyPrefix: issued.Prefix,
		Name:      "test",
	}); err != nil {
		t.Fatalf("store key: %v", err)
	}

	return user, issued.Plaintext
}

type mapCache struct {
	mu      sync.Mutex
	entries map[string]*model.Principal
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*model.Principal)}
}

func (c *mapCache) GetPrincipal(_ context.Context, key string) (*model.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *mapCache) SetPrincipal(_ context.Context, key string, principal *model.Principal) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = principal
	return nil
}
