package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/inkpost/inkpost/internal/metrics"
	"github.com/inkpost/inkpost/internal/model"
	"github.com/inkpost/inkpost/internal/repository"
)

// ErrInvalidCredentials is returned when a request carries credentials
// that cannot be verified.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Provider resolves a request to a principal.
// It returns (nil, nil) when the request carries no credentials it understands.
type Provider interface {
	Resolve(r *http.Request) (*model.Principal, error)
}

// ============================================================================
// API key provider
// ============================================================================

// KeyStore is the storage an APIKeyProvider reads from.
type KeyStore interface {
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
}

// PrincipalCache stores resolved principals by CacheKey.
// GetPrincipal returns (nil, nil) on a miss.
type PrincipalCache interface {
	GetPrincipal(ctx context.Context, cacheKey string) (*model.Principal, error)
	SetPrincipal(ctx context.Context, cacheKey string, principal *model.Principal) error
}

const lastUsedTimeout = 5 * time.Second

// APIKeyProvider authenticates "Authorization: Bearer <key>" and "X-API-Key" headers.
type APIKeyProvider struct {
	store   KeyStore
	cache   PrincipalCache
	metrics metrics.Recorder
	logger  *slog.Logger
}

// NewAPIKeyProvider creates an APIKeyProvider. cache may be nil.
func NewAPIKeyProvider(store KeyStore, cache PrincipalCache, recorder metrics.Recorder, logger *slog.Logger) *APIKeyProvider {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyProvider{
		store:   store,
		cache:   cache,
		metrics: recorder,
		logger:  logger,
	}
}

// Resolve implements Provider.
func (p *APIKeyProvider) Resolve(r *http.Request) (*model.Principal, error) {
	key := extractAPIKey(r)
	if key == "" {
		return nil, nil
	}

	parsed, err := ParseKey(key)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	ctx := r.Context()
	cacheKey := CacheKey(key)

	if p.cache != nil {
		cached, err := p.cache.GetPrincipal(ctx, cacheKey)
		if err != nil {
			p.logger.Warn("principal cache read failed", slog.String("error", err.Error()))
		}
		if cached != nil {
			p.metrics.IncPrincipalCacheHit()
			return cached, nil
		}
		p.metrics.IncPrincipalCacheMiss()
	}

	candidates, err := p.store.GetAPIKeysByPrefix(ctx, parsed.Prefix)
	if err != nil {
		return nil, fmt.Errorf("lookup api key: %w", err)
	}

	// Several keys may share a prefix.
	var matched *model.APIKey
	for _, candidate := range candidates {
		if candidate.IsRevoked() {
			continue
		}
		ok, err := VerifyKey(key, candidate.KeyHash)
		if err != nil {
			continue
		}
		if ok {
			matched = candidate
			break
		}
	}
	if matched == nil {
		return nil, ErrInvalidCredentials
	}

	user, err := p.store.GetUserByID(ctx, matched.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load key owner: %w", err)
	}
	principal := model.PrincipalFromUser(user)

	if p.cache != nil {
		if err := p.cache.SetPrincipal(ctx, cacheKey, principal); err != nil {
			p.logger.Warn("principal cache write failed", slog.String("error", err.Error()))
		}
	}

	go p.touch(context.WithoutCancel(ctx), matched.ID)

	return principal, nil
}

func (p *APIKeyProvider) touch(ctx context.Context, keyID string) {
	ctx, cancel := context.WithTimeout(ctx, lastUsedTimeout)
	defer cancel()

	if err := p.store.UpdateAPIKeyLastUsed(ctx, keyID); err != nil {
		p.logger.Warn("failed to update api key last_used_at",
			slog.String("key_id", keyID),
			slog.String("error", err.Error()),
		)
	}
}

// extractAPIKey reads the key from "Authorization: Bearer <key>",
// falling back to the X-API-Key header.
func extractAPIKey(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// ============================================================================
// Trusted header provider
// ============================================================================

// UserStore is the storage a HeaderProvider writes to on first sign-in.
type UserStore interface {
	GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error)
}

// HeaderConfig names the headers set by the authenticating reverse proxy.
type HeaderConfig struct {
	EmailHeader string
	NameHeader  string
	ImageHeader string
}

// HeaderProvider trusts identity headers injected by a reverse proxy
// (oauth2-proxy and similar). Only enable it behind such a proxy.
type HeaderProvider struct {
	store    UserStore
	cfg      HeaderConfig
	validate *validator.Validate
}

// NewHeaderProvider creates a HeaderProvider.
func NewHeaderProvider(store UserStore, cfg HeaderConfig) *HeaderProvider {
	if cfg.EmailHeader == "" {
		cfg.EmailHeader = "X-Auth-Request-Email"
	}
	if cfg.NameHeader == "" {
		cfg.NameHeader = "X-Auth-Request-User"
	}
	if cfg.ImageHeader == "" {
		cfg.ImageHeader = "X-Auth-Request-Image"
	}
	return &HeaderProvider{
		store:    store,
		cfg:      cfg,
		validate: validator.New(),
	}
}

// Resolve implements Provider. The user is created on first sign-in.
func (p *HeaderProvider) Resolve(r *http.Request) (*model.Principal, error) {
	email := strings.TrimSpace(r.Header.Get(p.cfg.EmailHeader))
	if email == "" {
		return nil, nil
	}
	if err := p.validate.Var(email, "email"); err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := p.store.GetOrCreateUser(r.Context(), &model.User{
		Email: email,
		Name:  optionalHeader(r, p.cfg.NameHeader),
		Image: optionalHeader(r, p.cfg.ImageHeader),
	})
	if err != nil {
		return nil, fmt.Errorf("sign in %s: %w", email, err)
	}

	return model.PrincipalFromUser(user), nil
}

func optionalHeader(r *http.Request, name string) *string {
	value := strings.TrimSpace(r.Header.Get(name))
	if value == "" {
		return nil
	}
	return &value
}
