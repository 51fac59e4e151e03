package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/inkpost/inkpost/internal/model"
)

// Common errors shared by every storage engine.
var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailExists    = errors.New("email already exists")
	ErrPostNotFound   = errors.New("post not found")
	ErrAuthorNotFound = errors.New("author not found")
	ErrAPIKeyNotFound = errors.New("API key not found")
	ErrUnsupportedURL = errors.New("unsupported database URL")
)

// Gateway is the storage contract implemented by every engine.
type Gateway interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetOrCreateUser(ctx context.Context, user *model.User) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)

	CreatePost(ctx context.Context, post *model.Post) error
	GetPostByID(ctx context.Context, id string) (*model.Post, error)
	PublishPost(ctx context.Context, id string) error
	DeletePost(ctx context.Context, id string) error
	ListPosts(ctx context.Context, filter model.PostFilter) ([]*model.Post, error)

	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeysByPrefix(ctx context.Context, prefix string) ([]*model.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id string) error
	RevokeAPIKey(ctx context.Context, id string) error

	Ping(ctx context.Context) error
	Close()
}

var (
	_ Gateway = (*Repository)(nil)
	_ Gateway = (*SQLite)(nil)
)

// Open connects to the engine selected by the URL scheme:
// postgres:// or postgresql:// for PostgreSQL, sqlite: or file: for SQLite.
func Open(ctx context.Context, databaseURL string) (Gateway, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		repo, err := New(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return repo, nil
	case strings.HasPrefix(databaseURL, "sqlite:"):
		path := strings.TrimPrefix(databaseURL, "sqlite://")
		path = strings.TrimPrefix(path, "sqlite:")
		db, err := NewSQLite(ctx, path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case strings.HasPrefix(databaseURL, "file:"):
		db, err := NewSQLite(ctx, databaseURL)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("%w: expected postgres://, sqlite: or file: scheme", ErrUnsupportedURL)
	}
}

// newID returns a fresh lexicographically sortable identifier.
func newID() string {
	return ulid.Make().String()
}

// now returns the creation timestamp for new rows.
// Truncated to microseconds so values survive a PostgreSQL round trip unchanged.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// assignUserDefaults fills gateway-owned fields of a new user.
func assignUserDefaults(user *model.User) {
	if user.ID == "" {
		user.ID = newID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now()
	}
}

// assignPostDefaults fills gateway-owned fields of a new post.
func assignPostDefaults(post *model.Post) {
	if post.ID == "" {
		post.ID = newID()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = now()
	}
}

// attachAuthor sets the optional author view from nullable join columns.
func attachAuthor(post *model.Post, name, email *string) {
	if email == nil {
		post.Author = nil
		return
	}
	post.Author = &model.PostAuthor{Name: name, Email: *email}
}
